package services

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"quest-progression-system/models"
)

// TaskInput describes a new schedule task. Category is optional.
type TaskInput struct {
	Title       string
	Description string
	Category    models.Domain
	Date        string // YYYY-MM-DD
}

// TaskUpdate changes the non-nil fields of a task.
type TaskUpdate struct {
	Title       *string
	Description *string
	Category    *models.Domain
	Date        *string
}

func validTaskDate(date string) error {
	if _, err := time.Parse(models.TaskDateLayout, date); err != nil {
		return fmt.Errorf("date %q is not YYYY-MM-DD: %w", date, ErrInvalidTask)
	}
	return nil
}

func validTaskCategory(c models.Domain) error {
	if c != "" && !c.Valid() {
		return fmt.Errorf("category %q: %w", c, ErrInvalidTask)
	}
	return nil
}

// NewScheduleTask validates in and builds an open task for userID.
func NewScheduleTask(userID string, in TaskInput, now time.Time, newID func() string) (*models.ScheduleTask, error) {
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return nil, fmt.Errorf("title is required: %w", ErrInvalidTask)
	}
	if err := validTaskDate(in.Date); err != nil {
		return nil, err
	}
	if err := validTaskCategory(in.Category); err != nil {
		return nil, err
	}
	return &models.ScheduleTask{
		ID:          "task-" + newID(),
		UserID:      userID,
		Title:       title,
		Description: strings.TrimSpace(in.Description),
		Category:    in.Category,
		Date:        in.Date,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

// ApplyTaskUpdate edits an open task. Completed tasks are frozen.
func ApplyTaskUpdate(t *models.ScheduleTask, u TaskUpdate) error {
	if t.Completed {
		return fmt.Errorf("update task %s: already completed: %w", t.ID, ErrInvalidTransition)
	}
	if u.Title != nil {
		title := strings.TrimSpace(*u.Title)
		if title == "" {
			return fmt.Errorf("title is required: %w", ErrInvalidTask)
		}
		t.Title = title
	}
	if u.Date != nil {
		if err := validTaskDate(*u.Date); err != nil {
			return err
		}
		t.Date = *u.Date
	}
	if u.Category != nil {
		if err := validTaskCategory(*u.Category); err != nil {
			return err
		}
		t.Category = *u.Category
	}
	if u.Description != nil {
		t.Description = strings.TrimSpace(*u.Description)
	}
	return nil
}

// CompleteTask marks a task done. A task completes once.
func CompleteTask(t *models.ScheduleTask, now time.Time) error {
	if t.Completed {
		return fmt.Errorf("complete task %s: %w", t.ID, ErrInvalidTransition)
	}
	c := now
	t.Completed = true
	t.CompletedAt = &c
	return nil
}

// TaskRewards is what completing a task of the given category pays.
func (r Rules) TaskRewards(category models.Domain) models.Rewards {
	return models.Rewards{Experience: r.TaskXP, StatDeltas: CategoryStatRewards(category)}
}

// ScheduleRange resolves an inclusive date range. Empty bounds default to
// the month containing now in loc.
func ScheduleRange(from, to string, now time.Time, loc *time.Location) (string, string, error) {
	local := now.In(loc)
	first := time.Date(local.Year(), local.Month(), 1, 0, 0, 0, 0, loc)
	if from == "" {
		from = first.Format(models.TaskDateLayout)
	}
	if to == "" {
		to = first.AddDate(0, 1, -1).Format(models.TaskDateLayout)
	}
	if err := validTaskDate(from); err != nil {
		return "", "", err
	}
	if err := validTaskDate(to); err != nil {
		return "", "", err
	}
	if to < from {
		return "", "", fmt.Errorf("range %s..%s is reversed: %w", from, to, ErrInvalidTask)
	}
	return from, to, nil
}

// GroupSchedule buckets tasks by date, each day ordered by creation.
func GroupSchedule(tasks []*models.ScheduleTask) map[string][]*models.ScheduleTask {
	out := make(map[string][]*models.ScheduleTask)
	for _, t := range tasks {
		out[t.Date] = append(out[t.Date], t)
	}
	for _, day := range out {
		sort.SliceStable(day, func(i, j int) bool { return day[i].CreatedAt.Before(day[j].CreatedAt) })
	}
	return out
}
