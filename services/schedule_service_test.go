package services_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"quest-progression-system/models"
	"quest-progression-system/services"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func (f *fixture) setNow(t time.Time) {
	f.clock.mu.Lock()
	f.clock.t = t
	f.clock.mu.Unlock()
}

func TestProgression_ScheduleTaskLifecycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	task, err := f.svc.AddTask(ctx, "user-1", services.TaskInput{
		Title:    "Refactor parser",
		Category: models.DomainCoding,
		Date:     "2025-07-01",
	})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(task.ID, "task-"))

	sched, err := f.svc.GetSchedule(ctx, "user-1", "", "")
	require.NoError(t, err)
	assert.Equal(t, "2025-07-01", sched.From)
	assert.Equal(t, "2025-07-31", sched.To)
	require.Len(t, sched.Days["2025-07-01"], 1)

	title := "Refactor the parser"
	updated, err := f.svc.UpdateTask(ctx, "user-1", task.ID, services.TaskUpdate{Title: &title})
	require.NoError(t, err)
	assert.Equal(t, title, updated.Title)

	res, err := f.svc.CompleteTask(ctx, "user-1", task.ID)
	require.NoError(t, err)
	assert.True(t, res.Task.Completed)
	assert.Equal(t, int64(5), res.Rewards.Experience)
	assert.Equal(t, int64(5), res.Progress.CurrentXP)
	assert.Equal(t, int64(1), res.Progress.TotalTasksCompleted)
	assert.Equal(t, 1, res.Progress.Streak.Current)
	assert.Equal(t, models.StartingAttribute+2, res.Progress.Attributes[models.AttrIntelligence])
	assert.Equal(t, 1, res.Progress.Attributes["problem_solving"])
	assert.Equal(t, models.SkillProgress{Level: 1, Experience: 5}, res.Progress.Skills["coding"])
	assert.Equal(t, []models.EventType{models.EventTaskCompleted}, f.notifier.Types())
	assert.Equal(t, task.ID, f.notifier.events[0].TaskID)

	_, err = f.svc.CompleteTask(ctx, "user-1", task.ID)
	require.ErrorIs(t, err, services.ErrInvalidTransition)
	_, err = f.svc.UpdateTask(ctx, "user-1", task.ID, services.TaskUpdate{Title: &title})
	require.ErrorIs(t, err, services.ErrInvalidTransition)

	p, err := f.store.GetProgress(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, int64(5), p.CurrentXP)

	require.NoError(t, f.svc.DeleteTask(ctx, "user-1", task.ID))
	sched, err = f.svc.GetSchedule(ctx, "user-1", "2025-07-01", "2025-07-01")
	require.NoError(t, err)
	assert.Empty(t, sched.Days)

	err = f.svc.DeleteTask(ctx, "user-1", task.ID)
	assert.ErrorIs(t, err, services.ErrTaskNotFound)

	// deleting a completed task keeps what it paid
	p, err = f.store.GetProgress(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, int64(5), p.CurrentXP)
}

func TestProgression_TaskOwnedByAnotherUser(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	task, err := f.svc.AddTask(ctx, "user-1", services.TaskInput{Title: "Stretch", Date: "2025-07-01"})
	require.NoError(t, err)
	_, err = f.svc.EnsureProgress(ctx, "user-2")
	require.NoError(t, err)

	_, err = f.svc.CompleteTask(ctx, "user-2", task.ID)
	assert.ErrorIs(t, err, services.ErrNotFound)
	err = f.svc.DeleteTask(ctx, "user-2", task.ID)
	assert.ErrorIs(t, err, services.ErrNotFound)

	stored, err := f.store.GetTask(ctx, "user-1", task.ID)
	require.NoError(t, err)
	assert.False(t, stored.Completed)
}

func TestProgression_AddTaskInvalid(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.AddTask(ctx, "user-1", services.TaskInput{Title: "Stretch", Date: "someday"})
	assert.ErrorIs(t, err, services.ErrInvalidTask)

	_, err = f.svc.GetSchedule(ctx, "user-1", "2025-07-31", "2025-07-01")
	assert.ErrorIs(t, err, services.ErrInvalidTask)
}

func TestProgression_TaskStreakAcrossDays(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for i := range 3 {
		now := day1.AddDate(0, 0, i)
		f.setNow(now)
		task, err := f.svc.AddTask(ctx, "user-1", services.TaskInput{Title: "Journal", Category: models.DomainDiscipline, Date: now.Format(models.TaskDateLayout)})
		require.NoError(t, err)
		res, err := f.svc.CompleteTask(ctx, "user-1", task.ID)
		require.NoError(t, err)
		assert.Equal(t, i+1, res.Progress.Streak.Current)
	}

	// day three reaches the novice milestone
	assert.Contains(t, f.notifier.Types(), models.EventStreakMilestone)
	p, err := f.store.GetProgress(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, int64(3), p.TotalTasksCompleted)
	assert.Equal(t, models.StartingAttribute+6, p.Attributes[models.AttrDiscipline])
}

func TestProgression_CompletionLevelsSkill(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	p := models.NewUserProgress("p-1", "user-1")
	p.Skills["learning"] = models.SkillProgress{Level: 1, Experience: 45}
	p.Skills["coding"] = models.SkillProgress{Level: 1, Experience: 47}
	require.NoError(t, f.store.CreateProgress(ctx, p))

	q, err := f.svc.AcceptQuest(ctx, "user-1", readChapter())
	require.NoError(t, err)
	res, err := f.svc.CompleteQuest(ctx, "user-1", q.ID)
	require.NoError(t, err)
	assert.True(t, res.Skill.LeveledUp)
	assert.Equal(t, models.SkillProgress{Level: 2, Experience: 7}, res.Progress.Skills["learning"])

	task, err := f.svc.AddTask(ctx, "user-1", services.TaskInput{Title: "Kata", Category: models.DomainCoding, Date: "2025-07-01"})
	require.NoError(t, err)
	tres, err := f.svc.CompleteTask(ctx, "user-1", task.ID)
	require.NoError(t, err)
	assert.Equal(t, services.SkillResult{Skill: "coding", LeveledUp: true, NewLevel: 2, LevelsGained: 1}, tres.Skill)

	var skills []string
	for _, ev := range f.notifier.events {
		if ev.Type == models.EventSkillLevelUp {
			skills = append(skills, ev.Skill)
			assert.Equal(t, 2, ev.Level)
		}
	}
	assert.Equal(t, []string{"learning", "coding"}, skills)
}

func TestProgression_ProgressTrends(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	q, err := f.svc.AcceptQuest(ctx, "user-1", readChapter())
	require.NoError(t, err)
	_, err = f.svc.CompleteQuest(ctx, "user-1", q.ID)
	require.NoError(t, err)

	task, err := f.svc.AddTask(ctx, "user-1", services.TaskInput{Title: "Run", Category: models.DomainFitness, Date: "2025-07-01"})
	require.NoError(t, err)
	_, err = f.svc.CompleteTask(ctx, "user-1", task.ID)
	require.NoError(t, err)

	_, err = f.svc.GrantXP(ctx, "user-1", 100, "event bonus")
	require.NoError(t, err)

	sum, err := f.svc.GetProgressTrends(ctx, "user-1", "")
	require.NoError(t, err)
	assert.Equal(t, services.TimeframeWeek, sum.Timeframe)
	assert.Equal(t, day1.AddDate(0, 0, -7), sum.Since)
	assert.Equal(t, int64(117), sum.ExperienceGained)
	assert.Zero(t, sum.ExperienceLost)
	assert.Equal(t, 1, sum.QuestsCompleted)
	assert.Equal(t, 1, sum.TasksCompleted)
	assert.Equal(t, int64(12), sum.Skills["learning"].Growth)
	assert.Equal(t, int64(5), sum.Skills["fitness"].Growth)
	assert.Zero(t, sum.Skills["coding"].Growth)
	require.Len(t, sum.RecentBadges, 1)

	f.setNow(day1.AddDate(0, 0, 2))
	sum, err = f.svc.GetProgressTrends(ctx, "user-1", services.TimeframeDay)
	require.NoError(t, err)
	assert.Zero(t, sum.ExperienceGained)
	assert.Zero(t, sum.QuestsCompleted)

	sum, err = f.svc.GetProgressTrends(ctx, "user-1", services.TimeframeMonth)
	require.NoError(t, err)
	assert.Equal(t, int64(117), sum.ExperienceGained)

	_, err = f.svc.GetProgressTrends(ctx, "user-1", "year")
	assert.ErrorIs(t, err, services.ErrInvalidTimeframe)
}

func TestProgression_TrendsCountPenalties(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.svc.SetOnboardingCompleted(ctx, "user-1", true))
	_, err := f.svc.GrantXP(ctx, "user-1", 50, "seed")
	require.NoError(t, err)

	tue := time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC)
	_, err = f.svc.RunDailyMaintenance(ctx, "user-1", tue)
	require.NoError(t, err)
	res, err := f.svc.RunDailyMaintenance(ctx, "user-1", tue.AddDate(0, 0, 1))
	require.NoError(t, err)
	require.Positive(t, res.Sweep.XPRemoved)

	sum, err := f.svc.GetProgressTrends(ctx, "user-1", services.TimeframeWeek)
	require.NoError(t, err)
	assert.Equal(t, int64(50), sum.ExperienceGained)
	assert.Equal(t, res.Sweep.XPRemoved, sum.ExperienceLost)
}
