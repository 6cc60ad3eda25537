package services

import (
	"strings"
	"testing"
	"time"

	"quest-progression-system/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedGenerator() *QuestGenerator {
	g := NewQuestGenerator(DefaultRules)
	g.NewID = func() string { return "fixed" }
	return g
}

func onboarded() *models.UserProgress {
	p := newProgress()
	p.OnboardingCompleted = true
	return p
}

func TestGenerateDaily_SkipsUsersNotOnboarded(t *testing.T) {
	assert.Nil(t, fixedGenerator().GenerateDaily(newProgress(), t0))
	assert.Nil(t, fixedGenerator().GenerateWeekly(newProgress(), t0))
}

func TestGenerateDaily_LevelOne(t *testing.T) {
	quests := fixedGenerator().GenerateDaily(onboarded(), t0)
	require.Len(t, quests, 4)

	byKey := map[string]models.Quest{}
	for _, q := range quests {
		byKey[q.ID] = q
		assert.Equal(t, models.QuestTypeDaily, q.Type)
		assert.Equal(t, models.QuestActive, q.Status)
		assert.Equal(t, "user-1", q.UserID)
		assert.Equal(t, t0, q.CreatedAt)
		require.NotNil(t, q.Deadline)
		assert.Equal(t, time.Date(2025, 7, 2, 0, 0, 0, 0, time.UTC), *q.Deadline)
		assert.Zero(t, q.Rewards.Experience, "XP is paid on completion, not on claim")
		assert.NotEmpty(t, q.Rewards.StatDeltas)
	}

	pushups := byKey["fitness-daily-push-ups-fixed"]
	assert.Equal(t, "Complete 10 push-ups", pushups.Title)
	assert.Equal(t, int64(20), pushups.XPReward)

	squats := byKey["fitness-daily-squats-fixed"]
	assert.Equal(t, "Complete 15 squats", squats.Title)
	assert.Equal(t, int64(20), squats.XPReward)

	coding := byKey["coding-daily-coding-practice-fixed"]
	assert.Equal(t, "Complete 30 minutes of coding", coding.Title)
	assert.Equal(t, int64(25), coding.XPReward)

	schedule := byKey["discipline-daily-daily-schedule-fixed"]
	assert.Equal(t, "Follow your daily schedule", schedule.Title)
	assert.Equal(t, int64(30), schedule.XPReward)
}

func TestGenerateDaily_ScalesWithDomainLevel(t *testing.T) {
	p := onboarded()
	p.FitnessLevel = 2.5

	for _, q := range fixedGenerator().GenerateDaily(p, t0) {
		if q.ID == "fitness-daily-push-ups-fixed" {
			assert.Equal(t, "Complete 25 push-ups", q.Title)
			assert.Equal(t, int64(50), q.XPReward)
			return
		}
	}
	t.Fatal("push-ups quest not generated")
}

func TestGenerateWeekly_LevelOne(t *testing.T) {
	quests := fixedGenerator().GenerateWeekly(onboarded(), t0)
	require.Len(t, quests, 3)

	want := map[string]struct {
		xp     int64
		target int
	}{
		"fitness-weekly-workout-sessions-fixed":  {100, 3},
		"coding-weekly-coding-hours-fixed":       {120, 5},
		"discipline-weekly-sleep-schedule-fixed": {150, 7},
	}
	for _, q := range quests {
		w, ok := want[q.ID]
		require.True(t, ok, "unexpected quest %s", q.ID)
		assert.Equal(t, w.xp, q.XPReward, q.ID)
		assert.Equal(t, w.target, q.Target, q.ID)
		assert.Equal(t, models.QuestTypeWeekly, q.Type)
		require.NotNil(t, q.Deadline)
		assert.Equal(t, time.Date(2025, 7, 7, 0, 0, 0, 0, time.UTC), *q.Deadline)
	}
}

func TestNewCustomQuest(t *testing.T) {
	g := fixedGenerator()
	p := newProgress()
	deadline := t0.Add(48 * time.Hour)

	q, err := g.NewCustomQuest(p, CustomQuestInput{
		Title:    "  Read The Go Programming Language  ",
		Domain:   models.DomainLearning,
		Target:   3,
		Deadline: &deadline,
	}, t0)
	require.NoError(t, err)

	assert.Equal(t, "Read The Go Programming Language", q.Title)
	assert.Equal(t, "learning-custom-read-the-go-programming-language-fixed", q.ID)
	assert.Equal(t, models.DifficultyEasy, q.Difficulty)
	assert.Equal(t, int64(12), q.XPReward)
	assert.Equal(t, 3, q.Target)
	assert.Equal(t, models.QuestActive, q.Status)

	p.Level = 3
	q, err = g.NewCustomQuest(p, CustomQuestInput{Title: "Ship it", Domain: models.DomainCoding, Difficulty: models.DifficultyHard}, t0)
	require.NoError(t, err)
	assert.Equal(t, int64(90), q.XPReward)
}

func TestNewCustomQuest_LongTitleSlugTruncated(t *testing.T) {
	q, err := fixedGenerator().NewCustomQuest(newProgress(), CustomQuestInput{
		Title:  strings.Repeat("marathon training ", 10),
		Domain: models.DomainFitness,
	}, t0)
	require.NoError(t, err)

	stem := strings.TrimSuffix(strings.TrimPrefix(q.ID, "fitness-custom-"), "-fixed")
	assert.LessOrEqual(t, len(stem), 40)
	assert.False(t, strings.HasSuffix(stem, "-"))
}

func TestNewCustomQuest_Validation(t *testing.T) {
	past := t0.Add(-time.Hour)
	cases := map[string]CustomQuestInput{
		"empty title":    {Title: "   ", Domain: models.DomainCoding},
		"bad domain":     {Title: "x", Domain: "cooking"},
		"bad difficulty": {Title: "x", Domain: models.DomainCoding, Difficulty: "legendary"},
		"negative":       {Title: "x", Domain: models.DomainCoding, Target: -1},
		"past deadline":  {Title: "x", Domain: models.DomainCoding, Deadline: &past},
	}
	for name, in := range cases {
		_, err := fixedGenerator().NewCustomQuest(newProgress(), in, t0)
		assert.ErrorIs(t, err, ErrInvalidQuest, name)
	}
}

func TestNextRefresh(t *testing.T) {
	monday := time.Date(2025, 7, 7, 0, 0, 0, 0, time.UTC)
	sunday := time.Date(2025, 7, 6, 23, 59, 0, 0, time.UTC)

	assert.Equal(t, time.Date(2025, 7, 2, 0, 0, 0, 0, time.UTC), NextDailyRefresh(t0))
	assert.Equal(t, time.Date(2025, 7, 8, 0, 0, 0, 0, time.UTC), NextDailyRefresh(monday))
	assert.Equal(t, monday, NextWeeklyRefresh(t0))
	assert.Equal(t, monday, NextWeeklyRefresh(sunday))
	assert.Equal(t, time.Date(2025, 7, 14, 0, 0, 0, 0, time.UTC), NextWeeklyRefresh(monday))
}

func TestDailyDue(t *testing.T) {
	p := newProgress()
	assert.False(t, DailyDue(p, t0), "not onboarded")

	p.OnboardingCompleted = true
	assert.True(t, DailyDue(p, t0), "never generated")

	next := NextDailyRefresh(t0)
	p.NextDailyRefreshAt = &next
	assert.False(t, DailyDue(p, t0))
	assert.True(t, DailyDue(p, next))

	nextWeek := NextWeeklyRefresh(t0)
	p.NextWeeklyRefreshAt = &nextWeek
	assert.False(t, WeeklyDue(p, next))
	assert.True(t, WeeklyDue(p, nextWeek))
}
