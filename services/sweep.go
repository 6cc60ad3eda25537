package services

import (
	"math"
	"time"

	"quest-progression-system/models"
)

// SweepResult summarises one end-of-day sweep for a user.
type SweepResult struct {
	ExpiredQuestIDs []string `json:"expired_quest_ids"`
	XPPenalty       int64    `json:"xp_penalty"` // computed penalty
	XPRemoved       int64    `json:"xp_removed"` // what the user actually lost after flooring at 0
	Multiplier      float64  `json:"multiplier"`
}

// SweepExpiredQuests expires every daily quest still ACTIVE that was created
// before asOf and subtracts the scaled penalty. Quests in any other state are
// ignored, so running it twice for the same asOf changes nothing the second
// time. quests may hold anything of the user's; selection happens here.
func (r Rules) SweepExpiredQuests(p *models.UserProgress, quests []*models.Quest, asOf time.Time) (SweepResult, error) {
	res := SweepResult{Multiplier: r.PenaltyMultiplier(p.Settings.PenaltyLevel)}

	var sum int64
	for _, q := range quests {
		if q.Type != models.QuestTypeDaily || q.Status != models.QuestActive || !q.CreatedAt.Before(asOf) {
			continue
		}
		if err := Expire(q, asOf); err != nil {
			return res, err
		}
		DetachQuest(p, q.ID)
		sum += q.XPReward
		res.ExpiredQuestIDs = append(res.ExpiredQuestIDs, q.ID)
	}
	if len(res.ExpiredQuestIDs) == 0 {
		return res, nil
	}

	p.TotalQuestsExpired += int64(len(res.ExpiredQuestIDs))
	res.XPPenalty = int64(math.Round(float64(sum) * res.Multiplier))
	removed, err := r.SubtractExperience(p, res.XPPenalty)
	if err != nil {
		return res, err
	}
	res.XPRemoved = removed
	return res, nil
}

// RolloverWeeklyMissions expires the previous batch of weekly missions when a
// new week starts. Unlike the daily sweep this carries no XP penalty.
func RolloverWeeklyMissions(p *models.UserProgress, quests []*models.Quest, asOf time.Time) []string {
	var expired []string
	for _, q := range quests {
		if q.Type != models.QuestTypeWeekly || q.Status != models.QuestActive || !q.CreatedAt.Before(asOf) {
			continue
		}
		if Expire(q, asOf) != nil {
			continue
		}
		DetachQuest(p, q.ID)
		expired = append(expired, q.ID)
	}
	p.TotalQuestsExpired += int64(len(expired))
	return expired
}

// ExpireOverdueQuests expires custom quests whose deadline has passed by
// asOf, freeing their active slots. No XP penalty applies.
func ExpireOverdueQuests(p *models.UserProgress, quests []*models.Quest, asOf time.Time) []string {
	var expired []string
	for _, q := range quests {
		if q.Type != models.QuestTypeCustom || q.Status != models.QuestActive || q.Deadline == nil || q.Deadline.After(asOf) {
			continue
		}
		if Expire(q, asOf) != nil {
			continue
		}
		DetachQuest(p, q.ID)
		expired = append(expired, q.ID)
	}
	p.TotalQuestsExpired += int64(len(expired))
	return expired
}
