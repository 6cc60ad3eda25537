package models

import (
	"maps"
	"slices"
	"time"
)

// PenaltyLevel controls how hard the daily sweep punishes missed quests.
type PenaltyLevel string

const (
	PenaltyGentle   PenaltyLevel = "gentle"
	PenaltyModerate PenaltyLevel = "moderate"
	PenaltyStrict   PenaltyLevel = "strict"
)

func (p PenaltyLevel) Valid() bool {
	switch p {
	case PenaltyGentle, PenaltyModerate, PenaltyStrict:
		return true
	}
	return false
}

// Starting values for a freshly registered (or reset) user.
const (
	StartingLevel      = 1
	StartingRequiredXP = 100
	StartingAttribute  = 10
)

// Attribute names a user can put stat points into.
const (
	AttrStrength     = "strength"
	AttrIntelligence = "intelligence"
	AttrDiscipline   = "discipline"
	AttrCreativity   = "creativity"
	AttrFocus        = "focus"
	AttrConsistency  = "consistency"
)

var DefaultAttributeNames = []string{
	AttrStrength, AttrIntelligence, AttrDiscipline, AttrCreativity, AttrFocus, AttrConsistency,
}

// SkillProgress is one skill's own level track. The next level needs
// Level × the per-level skill XP.
type SkillProgress struct {
	Level      int   `json:"level"`
	Experience int64 `json:"experience"`
}

// DefaultSkillNames: one skill per quest domain.
var DefaultSkillNames = []string{
	string(DomainFitness), string(DomainCoding), string(DomainDiscipline), string(DomainLearning), string(DomainProductivity),
}

// StreakRecord is embedded in UserProgress; updated at most once per calendar day.
type StreakRecord struct {
	Current     int        `json:"current" gorm:"default:0"`
	Longest     int        `json:"longest" gorm:"default:0"`
	LastCheckIn *time.Time `json:"last_check_in,omitempty"`
}

type Settings struct {
	PenaltyLevel PenaltyLevel `json:"penalty_level" gorm:"type:varchar(16);default:'moderate'"`
	Timezone     string       `json:"timezone" gorm:"type:varchar(64);default:'UTC'"`
}

// IDSet is an ordered set of quest ids stored as a JSON array.
type IDSet []string

func (s IDSet) Has(id string) bool { return slices.Contains(s, id) }

func (s *IDSet) Add(id string) {
	if !s.Has(id) {
		*s = append(*s, id)
	}
}

func (s *IDSet) Remove(id string) {
	*s = slices.DeleteFunc(*s, func(v string) bool { return v == id })
}

// UserProgress tracks gamified progression for each user (one row per user).
// Version is bumped on every committed write and checked on the next one.
type UserProgress struct {
	ID             string `gorm:"primaryKey;type:uuid" json:"id"`
	ExternalUserID string `gorm:"uniqueIndex;not null" json:"external_user_id"` // links to profile service
	Version        int64  `gorm:"not null;default:0" json:"version"`

	// Core progression
	Level      int    `json:"level" gorm:"default:1"`
	CurrentXP  int64  `json:"current_xp" gorm:"default:0"`
	RequiredXP int64  `json:"required_xp" gorm:"default:100"`
	Rank       string `json:"rank" gorm:"type:varchar(2);default:'E'"`

	// Domain levels, fractional
	FitnessLevel    float64 `json:"fitness_level" gorm:"default:1"`
	CodingLevel     float64 `json:"coding_level" gorm:"default:1"`
	DisciplineLevel float64 `json:"discipline_level" gorm:"default:1"`

	StatPoints int                      `json:"stat_points" gorm:"default:0"`
	Attributes map[string]int           `json:"attributes" gorm:"serializer:json"`
	Skills     map[string]SkillProgress `json:"skills" gorm:"serializer:json"`

	Streak   StreakRecord `json:"streak" gorm:"embedded;embeddedPrefix:streak_"`
	Settings Settings     `json:"settings" gorm:"embedded;embeddedPrefix:settings_"`

	// Back-references to quests; the quests themselves live in their own table.
	ActiveQuestIDs         IDSet `json:"active_quest_ids" gorm:"serializer:json"`
	ActiveDailyQuestIDs    IDSet `json:"active_daily_quest_ids" gorm:"serializer:json"`
	ActiveWeeklyMissionIDs IDSet `json:"active_weekly_mission_ids" gorm:"serializer:json"`

	OnboardingCompleted bool       `json:"onboarding_completed" gorm:"default:false;index"`
	NextDailyRefreshAt  *time.Time `json:"next_daily_refresh_at,omitempty"`
	NextWeeklyRefreshAt *time.Time `json:"next_weekly_refresh_at,omitempty"`

	// Activity counters
	TotalXPEarned        int64 `json:"total_xp_earned" gorm:"default:0"`
	TotalQuestsCompleted int64 `json:"total_quests_completed" gorm:"default:0"`
	TotalQuestsFailed    int64 `json:"total_quests_failed" gorm:"default:0"`
	TotalQuestsExpired   int64 `json:"total_quests_expired" gorm:"default:0"`
	TotalQuestsAbandoned int64 `json:"total_quests_abandoned" gorm:"default:0"`
	TotalTasksCompleted  int64 `json:"total_tasks_completed" gorm:"default:0"`

	// Milestones
	LastLevelUpAt *time.Time `json:"last_level_up_at,omitempty"`
	LastRankUpAt  *time.Time `json:"last_rank_up_at,omitempty"`

	Timestamps
}

// Timestamps adds GORM auto-times
type Timestamps struct {
	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

// NewUserProgress returns the registration-time defaults for a user.
func NewUserProgress(id, externalUserID string) *UserProgress {
	p := &UserProgress{ID: id, ExternalUserID: externalUserID}
	p.ResetToDefaults()
	return p
}

// ResetToDefaults reinitialises progression state. Identity, version,
// onboarding flag and settings are kept.
func (p *UserProgress) ResetToDefaults() {
	p.Level = StartingLevel
	p.CurrentXP = 0
	p.RequiredXP = StartingRequiredXP
	p.Rank = "E"
	p.FitnessLevel = 1
	p.CodingLevel = 1
	p.DisciplineLevel = 1
	p.StatPoints = 0
	p.Attributes = make(map[string]int, len(DefaultAttributeNames))
	for _, name := range DefaultAttributeNames {
		p.Attributes[name] = StartingAttribute
	}
	p.Skills = make(map[string]SkillProgress, len(DefaultSkillNames))
	for _, name := range DefaultSkillNames {
		p.Skills[name] = SkillProgress{Level: 1}
	}
	p.Streak = StreakRecord{}
	p.ActiveQuestIDs = IDSet{}
	p.ActiveDailyQuestIDs = IDSet{}
	p.ActiveWeeklyMissionIDs = IDSet{}
	p.NextDailyRefreshAt = nil
	p.NextWeeklyRefreshAt = nil
	p.TotalXPEarned = 0
	p.TotalQuestsCompleted = 0
	p.TotalQuestsFailed = 0
	p.TotalQuestsExpired = 0
	p.TotalQuestsAbandoned = 0
	p.TotalTasksCompleted = 0
	p.LastLevelUpAt = nil
	p.LastRankUpAt = nil
	if !p.Settings.PenaltyLevel.Valid() {
		p.Settings.PenaltyLevel = PenaltyModerate
	}
	if p.Settings.Timezone == "" {
		p.Settings.Timezone = "UTC"
	}
}

// Clone returns a deep copy so callers can mutate without aliasing stored state.
func (p *UserProgress) Clone() *UserProgress {
	if p == nil {
		return nil
	}
	c := *p
	c.Attributes = make(map[string]int, len(p.Attributes))
	for k, v := range p.Attributes {
		c.Attributes[k] = v
	}
	if p.Skills != nil {
		c.Skills = maps.Clone(p.Skills)
	}
	c.ActiveQuestIDs = slices.Clone(p.ActiveQuestIDs)
	c.ActiveDailyQuestIDs = slices.Clone(p.ActiveDailyQuestIDs)
	c.ActiveWeeklyMissionIDs = slices.Clone(p.ActiveWeeklyMissionIDs)
	c.Streak.LastCheckIn = cloneTime(p.Streak.LastCheckIn)
	c.NextDailyRefreshAt = cloneTime(p.NextDailyRefreshAt)
	c.NextWeeklyRefreshAt = cloneTime(p.NextWeeklyRefreshAt)
	c.LastLevelUpAt = cloneTime(p.LastLevelUpAt)
	c.LastRankUpAt = cloneTime(p.LastRankUpAt)
	return &c
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
