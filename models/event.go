package models

import "time"

// EventType names a domain event emitted by the progression engine. The
// engine never formats user-facing text; delivery layers do.
type EventType string

const (
	EventLevelUp         EventType = "level_up"
	EventRankUp          EventType = "rank_up"
	EventStreakMilestone EventType = "streak_milestone"
	EventStreakReset     EventType = "streak_reset"
	EventQuestCompleted  EventType = "quest_completed"
	EventRewardClaimed   EventType = "reward_claimed"
	EventPenaltyApplied  EventType = "penalty_applied"
	EventQuestExpired    EventType = "quest_expired"
	EventBadgeAwarded    EventType = "badge_awarded"
	EventSkillLevelUp    EventType = "skill_level_up"
	EventTaskCompleted   EventType = "task_completed"
)

type Event struct {
	Type       EventType `json:"type"`
	UserID     string    `json:"user_id"`
	QuestID    string    `json:"quest_id,omitempty"`
	TaskID     string    `json:"task_id,omitempty"`
	Skill      string    `json:"skill,omitempty"`
	Level      int       `json:"level,omitempty"`
	Rank       string    `json:"rank,omitempty"`
	Days       int       `json:"days,omitempty"`
	Milestone  string    `json:"milestone,omitempty"`
	Count      int       `json:"count,omitempty"`
	Amount     int64     `json:"amount,omitempty"`
	Badge      string    `json:"badge,omitempty"`
	Rewards    *Rewards  `json:"rewards,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}
