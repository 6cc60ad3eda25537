package services

import (
	"time"

	"quest-progression-system/models"

	"github.com/google/uuid"
)

// AwardBadges checks all badge triggers against the user's progress and
// returns the badges newly earned. owned holds codes already awarded.
func AwardBadges(p *models.UserProgress, owned map[string]bool, now time.Time) []models.UserBadge {
	var awarded []models.UserBadge
	for _, trigger := range models.BadgeTriggers {
		if owned[trigger.Code] || !meetsThreshold(p, trigger.Threshold) {
			continue
		}
		awarded = append(awarded, models.UserBadge{
			ID:             uuid.NewString(),
			ExternalUserID: p.ExternalUserID,
			BadgeCode:      trigger.Code,
			AwardedAt:      now,
		})
	}
	return awarded
}

func meetsThreshold(p *models.UserProgress, req map[string]int64) bool {
	for key, required := range req {
		switch key {
		case models.ThresholdQuestsCompleted:
			if p.TotalQuestsCompleted < required {
				return false
			}
		case models.ThresholdLevel:
			if int64(p.Level) < required {
				return false
			}
		case models.ThresholdStreak:
			if int64(p.Streak.Longest) < required {
				return false
			}
		default:
			return false
		}
	}
	return true
}

// BadgeByCode looks up a compiled-in badge definition.
func BadgeByCode(code string) (models.BadgeType, bool) {
	for _, b := range models.BadgeTriggers {
		if b.Code == code {
			return b, true
		}
	}
	return models.BadgeType{}, false
}
