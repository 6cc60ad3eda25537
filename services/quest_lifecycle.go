package services

import (
	"fmt"
	"time"

	"quest-progression-system/models"
)

// The quest state machine. Every transition leaves ACTIVE for a terminal
// state; nothing leaves a terminal state except the claim bookkeeping on a
// completed quest. These functions only touch the structs they are given.

func requireActive(q *models.Quest, op string) error {
	if q.Status != models.QuestActive {
		return fmt.Errorf("%s quest %s in status %s: %w", op, q.ID, q.Status, ErrInvalidTransition)
	}
	return nil
}

// requireOpen is requireActive plus the quest's deadline, if it has one.
func requireOpen(q *models.Quest, op string, now time.Time) error {
	if err := requireActive(q, op); err != nil {
		return err
	}
	if q.Deadline != nil && now.After(*q.Deadline) {
		return fmt.Errorf("%s quest %s: deadline %s passed: %w", op, q.ID, q.Deadline.Format(time.RFC3339), ErrInvalidTransition)
	}
	return nil
}

// Accept adds a newly created quest to the user's accepted set, enforcing
// the concurrent active-quest cap.
func (r Rules) Accept(p *models.UserProgress, q *models.Quest) error {
	if err := requireActive(q, "accept"); err != nil {
		return err
	}
	if p.ActiveQuestIDs.Has(q.ID) || p.ActiveDailyQuestIDs.Has(q.ID) || p.ActiveWeeklyMissionIDs.Has(q.ID) {
		return fmt.Errorf("accept quest %s: already active: %w", q.ID, ErrInvalidTransition)
	}
	if len(p.ActiveQuestIDs) >= r.ActiveQuestCap {
		return fmt.Errorf("accept quest %s (cap %d): %w", q.ID, r.ActiveQuestCap, ErrCapacityExceeded)
	}
	p.ActiveQuestIDs.Add(q.ID)
	return nil
}

func Complete(q *models.Quest, now time.Time) error {
	if err := requireOpen(q, "complete", now); err != nil {
		return err
	}
	t := now
	q.Status = models.QuestCompleted
	q.CompletedAt = &t
	q.Progress = 1
	if q.Target > 0 && q.Units < q.Target {
		q.Units = q.Target
	}
	return nil
}

// UpdateProgress sets progress from a percentage clamped to [0,100]. Reaching
// 100 completes the quest; the returned bool reports that.
func UpdateProgress(q *models.Quest, percent float64, now time.Time) (bool, error) {
	if err := requireOpen(q, "update progress of", now); err != nil {
		return false, err
	}
	percent = max(0, min(100, percent))
	q.Progress = percent / 100
	if percent >= 100 {
		return true, Complete(q, now)
	}
	return false, nil
}

// RecordUnits adds units toward a mission's target and updates progress.
func RecordUnits(q *models.Quest, units int, now time.Time) (bool, error) {
	if err := requireOpen(q, "record units on", now); err != nil {
		return false, err
	}
	if q.Target <= 0 {
		return false, fmt.Errorf("quest %s has no numeric target: %w", q.ID, ErrInvalidQuest)
	}
	q.Units = max(0, q.Units+units)
	return UpdateProgress(q, float64(q.Units)/float64(q.Target)*100, now)
}

func Fail(q *models.Quest, now time.Time) error {
	if err := requireActive(q, "fail"); err != nil {
		return err
	}
	t := now
	q.Status = models.QuestFailed
	q.FailedAt = &t
	return nil
}

func Abandon(q *models.Quest, now time.Time) error {
	if err := requireActive(q, "abandon"); err != nil {
		return err
	}
	t := now
	q.Status = models.QuestAbandoned
	q.AbandonedAt = &t
	return nil
}

func Expire(q *models.Quest, now time.Time) error {
	if err := requireActive(q, "expire"); err != nil {
		return err
	}
	t := now
	q.Status = models.QuestExpired
	q.ExpiredAt = &t
	return nil
}

// ClaimReward marks a completed quest's rewards as claimed and returns them.
func ClaimReward(q *models.Quest, now time.Time) (models.Rewards, error) {
	if q.Status != models.QuestCompleted {
		return models.Rewards{}, fmt.Errorf("claim quest %s in status %s: %w", q.ID, q.Status, ErrInvalidTransition)
	}
	if q.RewardClaimed {
		return models.Rewards{}, fmt.Errorf("claim quest %s: %w", q.ID, ErrAlreadyClaimed)
	}
	t := now
	q.RewardClaimed = true
	q.ClaimedAt = &t
	return q.Rewards, nil
}

// DetachQuest drops a quest id from every active set on the user.
func DetachQuest(p *models.UserProgress, questID string) {
	p.ActiveQuestIDs.Remove(questID)
	p.ActiveDailyQuestIDs.Remove(questID)
	p.ActiveWeeklyMissionIDs.Remove(questID)
}

// ApplyRewards applies a claimed payload: experience through the leveling
// cascade, stat deltas onto attributes.
func (r Rules) ApplyRewards(p *models.UserProgress, rw models.Rewards, now time.Time) (LevelResult, error) {
	res, err := r.ApplyExperience(p, rw.Experience, "", now)
	if err != nil {
		return res, err
	}
	if len(rw.StatDeltas) > 0 && p.Attributes == nil {
		p.Attributes = make(map[string]int, len(rw.StatDeltas))
	}
	for attr, delta := range rw.StatDeltas {
		p.Attributes[attr] += delta
	}
	return res, nil
}

// SpendStatPoints moves unspent stat points into an attribute.
func SpendStatPoints(p *models.UserProgress, attribute string, points int) error {
	if points <= 0 {
		return ErrInvalidAmount
	}
	if _, ok := p.Attributes[attribute]; !ok {
		return fmt.Errorf("%q: %w", attribute, ErrInvalidAttribute)
	}
	if p.StatPoints < points {
		return ErrNotEnoughPoints
	}
	p.StatPoints -= points
	p.Attributes[attribute] += points
	return nil
}
