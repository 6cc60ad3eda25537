package models

import (
	"time"
)

// Rewards is the payout attached to a quest and applied once on claim.
type Rewards struct {
	Experience int64          `json:"experience"`
	StatDeltas map[string]int `json:"stat_deltas,omitempty"`
}

// RewardClaim is the ledger row written when a quest's rewards are applied.
// QuestID is unique so a second claim can never be committed.
type RewardClaim struct {
	ID             string         `gorm:"primaryKey;type:uuid" json:"id"`
	ExternalUserID string         `gorm:"index;not null" json:"external_user_id"`
	QuestID        string         `gorm:"uniqueIndex;not null" json:"quest_id"`
	Experience     int64          `json:"experience"`
	StatDeltas     map[string]int `json:"stat_deltas" gorm:"serializer:json"`
	ClaimedAt      time.Time      `json:"claimed_at"`
}
