package models

import "time"

// ActivityKind names an entry of the progression history.
type ActivityKind string

const (
	ActivityQuestCompleted ActivityKind = "quest_completed"
	ActivityTaskCompleted  ActivityKind = "task_completed"
	ActivityRewardClaimed  ActivityKind = "reward_claimed"
	ActivityMilestoneBonus ActivityKind = "milestone_bonus"
	ActivityXPGranted      ActivityKind = "xp_granted"
	ActivityPenalty        ActivityKind = "penalty"
)

// ActivityEntry is one append-only row of a user's progression history.
// XP is the change to the user's experience (negative for penalties);
// SkillXP is what Skill gained from the same action.
type ActivityEntry struct {
	ID         string       `gorm:"primaryKey;type:uuid" json:"id"`
	UserID     string       `gorm:"index:idx_activity_user_time,priority:1;not null" json:"user_id"`
	Kind       ActivityKind `gorm:"type:varchar(24);not null" json:"kind"`
	QuestID    string       `json:"quest_id,omitempty"`
	TaskID     string       `json:"task_id,omitempty"`
	XP         int64        `json:"xp"`
	Skill      string       `gorm:"type:varchar(16)" json:"skill,omitempty"`
	SkillXP    int64        `json:"skill_xp,omitempty"`
	OccurredAt time.Time    `gorm:"index:idx_activity_user_time,priority:2;not null" json:"occurred_at"`
}
