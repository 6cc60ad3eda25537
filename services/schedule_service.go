package services

import (
	"context"

	"quest-progression-system/models"
)

// Schedule is a date range of the user's calendar, tasks bucketed by day.
type Schedule struct {
	From string                            `json:"from"`
	To   string                            `json:"to"`
	Days map[string][]*models.ScheduleTask `json:"days"`
}

// GetSchedule lists tasks dated from..to inclusive. Empty bounds default to
// the current month in the user's timezone.
func (s *ProgressionService) GetSchedule(ctx context.Context, userID, from, to string) (*Schedule, error) {
	p, err := s.EnsureProgress(ctx, userID)
	if err != nil {
		return nil, err
	}
	from, to, err = ScheduleRange(from, to, s.now(), UserLocation(p))
	if err != nil {
		return nil, err
	}
	tasks, err := s.store.ListTasks(ctx, userID, from, to)
	if err != nil {
		return nil, err
	}
	return &Schedule{From: from, To: to, Days: GroupSchedule(tasks)}, nil
}

func (s *ProgressionService) AddTask(ctx context.Context, userID string, in TaskInput) (*models.ScheduleTask, error) {
	if _, err := s.EnsureProgress(ctx, userID); err != nil {
		return nil, err
	}
	var created *models.ScheduleTask
	_, err := s.execute(ctx, userID, func(_ context.Context, o *op) error {
		t, err := NewScheduleTask(userID, in, o.now, s.generator.NewID)
		if err != nil {
			return err
		}
		o.tasks = append(o.tasks, t)
		created = t
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

func (s *ProgressionService) UpdateTask(ctx context.Context, userID, taskID string, u TaskUpdate) (*models.ScheduleTask, error) {
	var updated *models.ScheduleTask
	_, err := s.execute(ctx, userID, func(ctx context.Context, o *op) error {
		t, err := s.store.GetTask(ctx, userID, taskID)
		if err != nil {
			return err
		}
		if err := ApplyTaskUpdate(t, u); err != nil {
			return err
		}
		o.tasks = append(o.tasks, t)
		updated = t
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// DeleteTask removes a task from the calendar. Rewards already paid for a
// completed task are kept.
func (s *ProgressionService) DeleteTask(ctx context.Context, userID, taskID string) error {
	_, err := s.execute(ctx, userID, func(ctx context.Context, o *op) error {
		if _, err := s.store.GetTask(ctx, userID, taskID); err != nil {
			return err
		}
		o.deleted = append(o.deleted, taskID)
		return nil
	})
	return err
}

// TaskCompletionResult is what completing a schedule task did to the user.
type TaskCompletionResult struct {
	Task     *models.ScheduleTask `json:"task"`
	Progress *models.UserProgress `json:"progress"`
	Rewards  models.Rewards       `json:"rewards"`
	Level    LevelResult          `json:"level"`
	Streak   StreakResult         `json:"streak"`
	Skill    SkillResult          `json:"skill"`
	Events   []models.Event       `json:"events"`
}

// CompleteTask completes a task, pays TaskXP plus the category's stat
// rewards, trains the category's skill and advances the streak.
func (s *ProgressionService) CompleteTask(ctx context.Context, userID, taskID string) (*TaskCompletionResult, error) {
	var res *TaskCompletionResult
	o, err := s.execute(ctx, userID, func(ctx context.Context, o *op) error {
		t, err := s.store.GetTask(ctx, userID, taskID)
		if err != nil {
			return err
		}
		if err := CompleteTask(t, o.now); err != nil {
			return err
		}
		o.tasks = append(o.tasks, t)
		p := o.progress
		p.TotalTasksCompleted++

		rw := s.rules.TaskRewards(t.Category)
		lvl, err := s.rules.ApplyRewards(p, rw, o.now)
		if err != nil {
			return err
		}
		o.emit(models.Event{Type: models.EventTaskCompleted, TaskID: t.ID, Amount: rw.Experience, Rewards: &rw})

		skill, err := s.trainSkill(o, SkillForDomain(t.Category), rw.Experience)
		if err != nil {
			return err
		}
		entry := models.ActivityEntry{Kind: models.ActivityTaskCompleted, TaskID: t.ID, XP: rw.Experience}
		if skill.Skill != "" {
			entry.Skill, entry.SkillXP = skill.Skill, rw.Experience
		}
		o.record(entry)

		sres, milestone, err := s.checkIn(o)
		if err != nil {
			return err
		}
		lvl = mergeLevelResults(lvl, milestone)
		s.emitLevel(o, lvl)
		if err := s.awardBadges(ctx, o); err != nil {
			return err
		}
		res = &TaskCompletionResult{Task: t, Progress: p, Rewards: rw, Level: lvl, Streak: sres, Skill: skill}
		return nil
	})
	if err != nil {
		return nil, err
	}
	res.Events = o.events
	s.log.Info("task completed", "user_id", userID, "task_id", taskID, "xp", res.Rewards.Experience)
	return res, nil
}
