package services

import (
	"testing"
	"time"

	"quest-progression-system/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedID() string { return "0001" }

func TestNewScheduleTask(t *testing.T) {
	task, err := NewScheduleTask("user-1", TaskInput{
		Title:    "  Morning run ",
		Category: models.DomainFitness,
		Date:     "2025-07-03",
	}, t0, fixedID)
	require.NoError(t, err)

	assert.Equal(t, "task-0001", task.ID)
	assert.Equal(t, "user-1", task.UserID)
	assert.Equal(t, "Morning run", task.Title)
	assert.Equal(t, "2025-07-03", task.Date)
	assert.False(t, task.Completed)
	assert.Equal(t, t0, task.CreatedAt)
}

func TestNewScheduleTask_Validation(t *testing.T) {
	cases := map[string]TaskInput{
		"no title":     {Title: "  ", Date: "2025-07-03"},
		"bad date":     {Title: "x", Date: "03/07/2025"},
		"missing date": {Title: "x"},
		"bad category": {Title: "x", Date: "2025-07-03", Category: "music"},
	}
	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := NewScheduleTask("user-1", in, t0, fixedID)
			assert.ErrorIs(t, err, ErrInvalidTask)
		})
	}

	task, err := NewScheduleTask("user-1", TaskInput{Title: "Plan week", Date: "2025-07-03"}, t0, fixedID)
	require.NoError(t, err)
	assert.Equal(t, models.Domain(""), task.Category)
}

func TestApplyTaskUpdate(t *testing.T) {
	task, err := NewScheduleTask("user-1", TaskInput{Title: "Run", Date: "2025-07-03"}, t0, fixedID)
	require.NoError(t, err)

	title, date, cat := "Long run", "2025-07-05", models.DomainFitness
	require.NoError(t, ApplyTaskUpdate(task, TaskUpdate{Title: &title, Date: &date, Category: &cat}))
	assert.Equal(t, "Long run", task.Title)
	assert.Equal(t, "2025-07-05", task.Date)
	assert.Equal(t, models.DomainFitness, task.Category)

	bad := "tomorrow"
	assert.ErrorIs(t, ApplyTaskUpdate(task, TaskUpdate{Date: &bad}), ErrInvalidTask)
	assert.Equal(t, "2025-07-05", task.Date)

	require.NoError(t, CompleteTask(task, t0))
	assert.ErrorIs(t, ApplyTaskUpdate(task, TaskUpdate{Title: &title}), ErrInvalidTransition)
}

func TestCompleteTask_Once(t *testing.T) {
	task, err := NewScheduleTask("user-1", TaskInput{Title: "Run", Date: "2025-07-03"}, t0, fixedID)
	require.NoError(t, err)

	require.NoError(t, CompleteTask(task, t0))
	assert.True(t, task.Completed)
	assert.Equal(t, t0, *task.CompletedAt)

	err = CompleteTask(task, t0.Add(time.Hour))
	assert.ErrorIs(t, err, ErrInvalidTransition)
	assert.Equal(t, t0, *task.CompletedAt)
}

func TestTaskRewards(t *testing.T) {
	rw := DefaultRules.TaskRewards(models.DomainCoding)
	assert.Equal(t, int64(5), rw.Experience)
	assert.Equal(t, map[string]int{models.AttrIntelligence: 2, "problem_solving": 1}, rw.StatDeltas)

	rw = DefaultRules.TaskRewards("")
	assert.Equal(t, map[string]int{models.AttrDiscipline: 1}, rw.StatDeltas)
}

func TestScheduleRange(t *testing.T) {
	from, to, err := ScheduleRange("", "", t0, time.UTC)
	require.NoError(t, err)
	assert.Equal(t, "2025-07-01", from)
	assert.Equal(t, "2025-07-31", to)

	// 2025-06-30 22:00 UTC is already July in Berlin.
	berlin, err := time.LoadLocation("Europe/Berlin")
	require.NoError(t, err)
	from, to, err = ScheduleRange("", "", time.Date(2025, 6, 30, 22, 30, 0, 0, time.UTC), berlin)
	require.NoError(t, err)
	assert.Equal(t, "2025-07-01", from)
	assert.Equal(t, "2025-07-31", to)

	from, to, err = ScheduleRange("2025-07-10", "2025-07-10", t0, time.UTC)
	require.NoError(t, err)
	assert.Equal(t, "2025-07-10", from)
	assert.Equal(t, "2025-07-10", to)

	_, _, err = ScheduleRange("2025-07-10", "2025-07-01", t0, time.UTC)
	assert.ErrorIs(t, err, ErrInvalidTask)

	_, _, err = ScheduleRange("July", "", t0, time.UTC)
	assert.ErrorIs(t, err, ErrInvalidTask)
}

func TestGroupSchedule(t *testing.T) {
	a := &models.ScheduleTask{ID: "a", Date: "2025-07-02", CreatedAt: t0.Add(time.Minute)}
	b := &models.ScheduleTask{ID: "b", Date: "2025-07-02", CreatedAt: t0}
	c := &models.ScheduleTask{ID: "c", Date: "2025-07-03", CreatedAt: t0}

	days := GroupSchedule([]*models.ScheduleTask{a, b, c})
	require.Len(t, days, 2)
	assert.Equal(t, []*models.ScheduleTask{b, a}, days["2025-07-02"])
	assert.Equal(t, []*models.ScheduleTask{c}, days["2025-07-03"])
	assert.Empty(t, GroupSchedule(nil))
}
