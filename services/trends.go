package services

import (
	"context"
	"fmt"
	"sort"
	"time"

	"quest-progression-system/models"
)

type Timeframe string

const (
	TimeframeDay   Timeframe = "day"
	TimeframeWeek  Timeframe = "week"
	TimeframeMonth Timeframe = "month"
)

// TimeframeStart is the first instant a timeframe covers. A day starts at
// local midnight; week and month reach back seven days and one month from
// now. The empty timeframe means week.
func TimeframeStart(tf Timeframe, now time.Time, loc *time.Location) (time.Time, error) {
	switch tf {
	case TimeframeDay:
		local := now.In(loc)
		return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc).UTC(), nil
	case TimeframeWeek, "":
		return now.AddDate(0, 0, -7), nil
	case TimeframeMonth:
		return now.AddDate(0, -1, 0), nil
	}
	return time.Time{}, fmt.Errorf("%q: %w", tf, ErrInvalidTimeframe)
}

// SkillTrend is a skill's standing plus what it gained in the timeframe.
type SkillTrend struct {
	Level          int   `json:"level"`
	Experience     int64 `json:"experience"`
	ProgressToNext int   `json:"progress_to_next"` // percent
	Growth         int64 `json:"growth"`
}

// ProgressTrends summarises a user's progression over a timeframe.
type ProgressTrends struct {
	Timeframe        Timeframe             `json:"timeframe"`
	Since            time.Time             `json:"since"`
	ExperienceGained int64                 `json:"experience_gained"`
	ExperienceLost   int64                 `json:"experience_lost"`
	QuestsCompleted  int                   `json:"quests_completed"`
	TasksCompleted   int                   `json:"tasks_completed"`
	Skills           map[string]SkillTrend `json:"skills"`
	Streak           models.StreakRecord   `json:"streak"`
	RecentBadges     []models.UserBadge    `json:"recent_badges"`
}

const recentBadgeLimit = 5

// SummarizeActivity folds history entries into trends. Badges are the user's
// full set; the newest few are kept.
func (r Rules) SummarizeActivity(p *models.UserProgress, entries []models.ActivityEntry, badges []models.UserBadge) ProgressTrends {
	out := ProgressTrends{
		Skills: make(map[string]SkillTrend, len(p.Skills)),
		Streak: p.Streak,
	}
	for name, sk := range p.Skills {
		out.Skills[name] = SkillTrend{
			Level:          sk.Level,
			Experience:     sk.Experience,
			ProgressToNext: r.SkillProgressPercent(sk),
		}
	}

	for _, e := range entries {
		if e.XP >= 0 {
			out.ExperienceGained = addSaturating(out.ExperienceGained, e.XP)
		} else {
			out.ExperienceLost = addSaturating(out.ExperienceLost, -e.XP)
		}
		switch e.Kind {
		case models.ActivityQuestCompleted:
			out.QuestsCompleted++
		case models.ActivityTaskCompleted:
			out.TasksCompleted++
		}
		if e.Skill != "" && e.SkillXP > 0 {
			st := out.Skills[e.Skill]
			st.Growth = addSaturating(st.Growth, e.SkillXP)
			out.Skills[e.Skill] = st
		}
	}

	recent := make([]models.UserBadge, len(badges))
	copy(recent, badges)
	sort.SliceStable(recent, func(i, j int) bool { return recent[i].AwardedAt.After(recent[j].AwardedAt) })
	if len(recent) > recentBadgeLimit {
		recent = recent[:recentBadgeLimit]
	}
	out.RecentBadges = recent
	return out
}

// GetProgressTrends reports XP gained, completions and skill growth since
// the start of the timeframe.
func (s *ProgressionService) GetProgressTrends(ctx context.Context, userID string, tf Timeframe) (*ProgressTrends, error) {
	p, err := s.EnsureProgress(ctx, userID)
	if err != nil {
		return nil, err
	}
	if tf == "" {
		tf = TimeframeWeek
	}
	since, err := TimeframeStart(tf, s.now(), UserLocation(p))
	if err != nil {
		return nil, err
	}
	entries, err := s.store.ListActivity(ctx, userID, since)
	if err != nil {
		return nil, err
	}
	badges, err := s.store.ListBadges(ctx, userID)
	if err != nil {
		return nil, err
	}
	out := s.rules.SummarizeActivity(p, entries, badges)
	out.Timeframe = tf
	out.Since = since
	return &out, nil
}
