package models

import (
	"maps"
	"time"
)

type QuestType string

const (
	QuestTypeDaily  QuestType = "daily"
	QuestTypeWeekly QuestType = "weekly"
	QuestTypeCustom QuestType = "custom"
)

func (t QuestType) Valid() bool {
	switch t {
	case QuestTypeDaily, QuestTypeWeekly, QuestTypeCustom:
		return true
	}
	return false
}

// Domain is the life category a quest belongs to. Only fitness, coding and
// discipline carry their own fractional level.
type Domain string

const (
	DomainFitness      Domain = "fitness"
	DomainCoding       Domain = "coding"
	DomainDiscipline   Domain = "discipline"
	DomainLearning     Domain = "learning"
	DomainProductivity Domain = "productivity"
)

func (d Domain) Valid() bool {
	switch d {
	case DomainFitness, DomainCoding, DomainDiscipline, DomainLearning, DomainProductivity:
		return true
	}
	return false
}

// Leveled reports whether the domain has a level on UserProgress.
func (d Domain) Leveled() bool {
	return d == DomainFitness || d == DomainCoding || d == DomainDiscipline
}

type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
	DifficultyEpic   Difficulty = "epic"
)

func (d Difficulty) Valid() bool {
	switch d {
	case DifficultyEasy, DifficultyMedium, DifficultyHard, DifficultyEpic:
		return true
	}
	return false
}

type QuestStatus string

const (
	QuestActive    QuestStatus = "active"
	QuestCompleted QuestStatus = "completed"
	QuestFailed    QuestStatus = "failed"
	QuestExpired   QuestStatus = "expired"
	QuestAbandoned QuestStatus = "abandoned"
)

// Terminal reports whether no further transition is allowed out of s.
func (s QuestStatus) Terminal() bool {
	return s != QuestActive
}

func (s QuestStatus) Valid() bool {
	switch s {
	case QuestActive, QuestCompleted, QuestFailed, QuestExpired, QuestAbandoned:
		return true
	}
	return false
}

// Quest is one unit of trackable work. Terminal quests are kept for history.
type Quest struct {
	ID          string `gorm:"primaryKey" json:"id"`
	UserID      string `gorm:"index:idx_quests_lookup,priority:1;not null" json:"user_id"`
	Title       string `gorm:"not null" json:"title"`
	Description string `gorm:"type:text" json:"description"`

	Type       QuestType   `gorm:"type:varchar(16);index:idx_quests_lookup,priority:3;not null" json:"type"`
	Domain     Domain      `gorm:"type:varchar(16);not null" json:"domain"`
	Difficulty Difficulty  `gorm:"type:varchar(16);not null" json:"difficulty"`
	Status     QuestStatus `gorm:"type:varchar(16);index:idx_quests_lookup,priority:2;not null" json:"status"`
	XPReward   int64       `gorm:"not null" json:"xp_reward"`

	// Progress is a fraction in [0,1]. Weekly missions also count units toward Target.
	Progress float64 `json:"progress" gorm:"default:0"`
	Target   int     `json:"target,omitempty" gorm:"default:0"`
	Units    int     `json:"units,omitempty" gorm:"default:0"`

	Rewards       Rewards    `json:"rewards" gorm:"serializer:json"`
	RewardClaimed bool       `json:"reward_claimed" gorm:"default:false"`
	ClaimedAt     *time.Time `json:"claimed_at,omitempty"`

	CreatedAt   time.Time  `json:"created_at" gorm:"index"`
	Deadline    *time.Time `json:"deadline,omitempty" gorm:"index"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	FailedAt    *time.Time `json:"failed_at,omitempty"`
	ExpiredAt   *time.Time `json:"expired_at,omitempty"`
	AbandonedAt *time.Time `json:"abandoned_at,omitempty"`
	UpdatedAt   time.Time  `json:"updated_at" gorm:"autoUpdateTime"`
}

func (q *Quest) Clone() *Quest {
	if q == nil {
		return nil
	}
	c := *q
	c.Rewards.StatDeltas = maps.Clone(q.Rewards.StatDeltas)
	c.ClaimedAt = cloneTime(q.ClaimedAt)
	c.Deadline = cloneTime(q.Deadline)
	c.CompletedAt = cloneTime(q.CompletedAt)
	c.FailedAt = cloneTime(q.FailedAt)
	c.ExpiredAt = cloneTime(q.ExpiredAt)
	c.AbandonedAt = cloneTime(q.AbandonedAt)
	return &c
}
