package models

import (
	"time"
)

// BadgeType: static config, compiled in
type BadgeType struct {
	Code        string           `json:"code"` // e.g., "FIRST_QUEST", "STREAK_30"
	Name        string           `json:"name"`
	Description string           `json:"description"`
	Rarity      string           `json:"rarity"`    // common, rare, epic, legendary
	Threshold   map[string]int64 `json:"threshold"` // e.g., {"quests_completed": 10}, {"level": 25}
}

// UserBadge: awarded instance, one per (user, code)
type UserBadge struct {
	ID             string    `gorm:"primaryKey;type:uuid" json:"id"`
	ExternalUserID string    `gorm:"uniqueIndex:idx_user_badge;not null" json:"external_user_id"`
	BadgeCode      string    `gorm:"uniqueIndex:idx_user_badge;not null" json:"badge_code"`
	AwardedAt      time.Time `json:"awarded_at"`
}

// Threshold keys understood by the badge evaluator.
const (
	ThresholdQuestsCompleted = "quests_completed"
	ThresholdLevel           = "level"
	ThresholdStreak          = "streak"
)

var BadgeTriggers = []BadgeType{
	{
		Code:        "FIRST_QUEST",
		Name:        "First Step",
		Description: "Completed your first quest",
		Rarity:      "common",
		Threshold:   map[string]int64{ThresholdQuestsCompleted: 1},
	},
	{
		Code:        "QUESTS_10",
		Name:        "Quest Hunter",
		Description: "Completed 10 quests",
		Rarity:      "common",
		Threshold:   map[string]int64{ThresholdQuestsCompleted: 10},
	},
	{
		Code:        "QUESTS_100",
		Name:        "Relentless",
		Description: "Completed 100 quests",
		Rarity:      "epic",
		Threshold:   map[string]int64{ThresholdQuestsCompleted: 100},
	},
	{
		Code:        "LEVEL_5",
		Name:        "Awakened",
		Description: "Reached level 5",
		Rarity:      "common",
		Threshold:   map[string]int64{ThresholdLevel: 5},
	},
	{
		Code:        "LEVEL_10",
		Name:        "Rising Hunter",
		Description: "Reached level 10",
		Rarity:      "rare",
		Threshold:   map[string]int64{ThresholdLevel: 10},
	},
	{
		Code:        "LEVEL_25",
		Name:        "Elite",
		Description: "Reached level 25",
		Rarity:      "epic",
		Threshold:   map[string]int64{ThresholdLevel: 25},
	},
	{
		Code:        "STREAK_7",
		Name:        "Consistent",
		Description: "Kept a 7-day streak",
		Rarity:      "common",
		Threshold:   map[string]int64{ThresholdStreak: 7},
	},
	{
		Code:        "STREAK_30",
		Name:        "Committed",
		Description: "Kept a 30-day streak",
		Rarity:      "rare",
		Threshold:   map[string]int64{ThresholdStreak: 30},
	},
	{
		Code:        "STREAK_100",
		Name:        "Legendary",
		Description: "Kept a 100-day streak",
		Rarity:      "legendary",
		Threshold:   map[string]int64{ThresholdStreak: 100},
	},
}
