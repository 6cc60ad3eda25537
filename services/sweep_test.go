package services

import (
	"testing"
	"time"

	"quest-progression-system/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var midnight = time.Date(2025, 7, 2, 0, 0, 0, 0, time.UTC)

func dailyQuest(id string, xp int64) *models.Quest {
	return &models.Quest{
		ID:        id,
		UserID:    "user-1",
		Type:      models.QuestTypeDaily,
		Domain:    models.DomainFitness,
		Status:    models.QuestActive,
		XPReward:  xp,
		CreatedAt: t0,
	}
}

func TestSweep_StrictPenalty(t *testing.T) {
	p := newProgress()
	p.Settings.PenaltyLevel = models.PenaltyStrict
	p.CurrentXP = 80
	a, b := dailyQuest("a", 20), dailyQuest("b", 30)
	p.ActiveDailyQuestIDs = models.IDSet{"a", "b"}

	res, err := DefaultRules.SweepExpiredQuests(p, []*models.Quest{a, b}, midnight)
	require.NoError(t, err)

	assert.Equal(t, []string{"a", "b"}, res.ExpiredQuestIDs)
	assert.Equal(t, int64(50), res.XPPenalty)
	assert.Equal(t, int64(50), res.XPRemoved)
	assert.Equal(t, int64(30), p.CurrentXP)
	assert.Equal(t, int64(2), p.TotalQuestsExpired)
	assert.Empty(t, p.ActiveDailyQuestIDs)
	assert.Equal(t, models.QuestExpired, a.Status)
	require.NotNil(t, a.ExpiredAt)
	assert.Equal(t, midnight, *a.ExpiredAt)
}

func TestSweep_GentleFloorsAtZero(t *testing.T) {
	p := newProgress()
	p.Settings.PenaltyLevel = models.PenaltyGentle
	p.Level = 4
	p.CurrentXP = 5

	res, err := DefaultRules.SweepExpiredQuests(p, []*models.Quest{dailyQuest("a", 50)}, midnight)
	require.NoError(t, err)

	assert.Equal(t, int64(15), res.XPPenalty)
	assert.Equal(t, int64(5), res.XPRemoved)
	assert.Equal(t, int64(0), p.CurrentXP)
	assert.Equal(t, 4, p.Level, "penalties never lower the level")
}

func TestSweep_IgnoresOtherQuests(t *testing.T) {
	p := newProgress()
	p.CurrentXP = 50

	completed := dailyQuest("done", 20)
	completed.Status = models.QuestCompleted
	fresh := dailyQuest("fresh", 20)
	fresh.CreatedAt = midnight
	weekly := dailyQuest("weekly", 100)
	weekly.Type = models.QuestTypeWeekly
	custom := dailyQuest("custom", 12)
	custom.Type = models.QuestTypeCustom

	res, err := DefaultRules.SweepExpiredQuests(p, []*models.Quest{completed, fresh, weekly, custom}, midnight)
	require.NoError(t, err)

	assert.Empty(t, res.ExpiredQuestIDs)
	assert.Zero(t, res.XPPenalty)
	assert.Equal(t, int64(50), p.CurrentXP)
	assert.Equal(t, models.QuestActive, fresh.Status)
	assert.Equal(t, models.QuestActive, weekly.Status)
}

func TestSweep_SecondRunIsNoop(t *testing.T) {
	p := newProgress()
	p.CurrentXP = 90
	quests := []*models.Quest{dailyQuest("a", 20), dailyQuest("b", 20)}

	first, err := DefaultRules.SweepExpiredQuests(p, quests, midnight)
	require.NoError(t, err)
	assert.Equal(t, int64(20), first.XPPenalty)

	second, err := DefaultRules.SweepExpiredQuests(p, quests, midnight)
	require.NoError(t, err)
	assert.Empty(t, second.ExpiredQuestIDs)
	assert.Equal(t, int64(70), p.CurrentXP)
	assert.Equal(t, int64(2), p.TotalQuestsExpired)
}

func TestRolloverWeeklyMissions(t *testing.T) {
	p := newProgress()
	p.CurrentXP = 40
	w := dailyQuest("w", 150)
	w.Type = models.QuestTypeWeekly
	d := dailyQuest("d", 20)
	p.ActiveWeeklyMissionIDs = models.IDSet{"w"}

	expired := RolloverWeeklyMissions(p, []*models.Quest{w, d}, midnight)

	assert.Equal(t, []string{"w"}, expired)
	assert.Equal(t, models.QuestExpired, w.Status)
	assert.Equal(t, models.QuestActive, d.Status)
	assert.Equal(t, int64(40), p.CurrentXP, "weekly rollover carries no penalty")
	assert.Empty(t, p.ActiveWeeklyMissionIDs)
	assert.Equal(t, int64(1), p.TotalQuestsExpired)
}

func TestAwardBadges(t *testing.T) {
	p := newProgress()
	p.TotalQuestsCompleted = 1
	p.Level = 5

	awarded := AwardBadges(p, nil, t0)
	codes := make([]string, 0, len(awarded))
	for _, b := range awarded {
		codes = append(codes, b.BadgeCode)
		assert.Equal(t, "user-1", b.ExternalUserID)
		assert.NotEmpty(t, b.ID)
	}
	assert.ElementsMatch(t, []string{"FIRST_QUEST", "LEVEL_5"}, codes)

	again := AwardBadges(p, map[string]bool{"FIRST_QUEST": true, "LEVEL_5": true}, t0)
	assert.Empty(t, again)
}

func TestExpireOverdueQuests(t *testing.T) {
	p := newProgress()
	p.CurrentXP = 40
	past := midnight.Add(-time.Minute)
	future := midnight.Add(time.Hour)

	overdue := activeQuest("overdue")
	overdue.Deadline = &past
	onTime := activeQuest("on-time")
	onTime.Deadline = &future
	open := activeQuest("open")
	daily := dailyQuest("daily", 20)
	daily.Deadline = &past
	for _, id := range []string{"overdue", "on-time", "open"} {
		p.ActiveQuestIDs.Add(id)
	}

	expired := ExpireOverdueQuests(p, []*models.Quest{overdue, onTime, open, daily}, midnight)

	assert.Equal(t, []string{"overdue"}, expired)
	assert.Equal(t, models.QuestExpired, overdue.Status)
	assert.Equal(t, models.QuestActive, onTime.Status)
	assert.Equal(t, models.QuestActive, open.Status)
	assert.Equal(t, models.QuestActive, daily.Status)
	assert.Equal(t, models.IDSet{"on-time", "open"}, p.ActiveQuestIDs)
	assert.Equal(t, int64(40), p.CurrentXP)
	assert.Equal(t, int64(1), p.TotalQuestsExpired)

	assert.Empty(t, ExpireOverdueQuests(p, []*models.Quest{overdue}, midnight))
}
