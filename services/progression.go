package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"quest-progression-system/logger"
	"quest-progression-system/models"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// ProgressionService composes the pure progression rules against the store.
// It is the only component that reads or writes state or emits events. All
// operations for one user run one at a time; different users never block
// each other.
type ProgressionService struct {
	store     Store
	notifier  Notifier
	rules     Rules
	generator *QuestGenerator
	log       *logger.Logger
	locks     *userLocks
	now       func() time.Time
	workers   int
}

type Option func(*ProgressionService)

func WithNotifier(n Notifier) Option {
	return func(s *ProgressionService) {
		if n != nil {
			s.notifier = n
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *ProgressionService) { s.now = now }
}

// WithMaintenanceWorkers bounds how many users RunMaintenanceForAll processes at once.
func WithMaintenanceWorkers(n int) Option {
	return func(s *ProgressionService) {
		if n > 0 {
			s.workers = n
		}
	}
}

func WithIDGenerator(newID func() string) Option {
	return func(s *ProgressionService) { s.generator.NewID = newID }
}

func NewProgressionService(store Store, rules Rules, log *logger.Logger, opts ...Option) *ProgressionService {
	s := &ProgressionService{
		store:     store,
		notifier:  nopNotifier{},
		rules:     rules,
		generator: NewQuestGenerator(rules),
		log:       log.With("service", "ProgressionService"),
		locks:     newUserLocks(),
		now:       func() time.Time { return time.Now().UTC() },
		workers:   8,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *ProgressionService) Rules() Rules { return s.rules }

// op is the working copy of one orchestrated operation.
type op struct {
	progress *models.UserProgress
	version  int64
	now      time.Time

	quests   []*models.Quest
	claims   []models.RewardClaim
	badges   []models.UserBadge
	tasks    []*models.ScheduleTask
	deleted  []string
	activity []models.ActivityEntry
	events   []models.Event
}

func (o *op) touch(qs ...*models.Quest) {
	for _, q := range qs {
		seen := false
		for _, t := range o.quests {
			if t.ID == q.ID {
				seen = true
				break
			}
		}
		if !seen {
			o.quests = append(o.quests, q)
		}
	}
}

// record appends a history entry stamped with the operation's user and time.
func (o *op) record(e models.ActivityEntry) {
	e.ID = uuid.NewString()
	e.UserID = o.progress.ExternalUserID
	e.OccurredAt = o.now
	o.activity = append(o.activity, e)
}

func (o *op) emit(ev models.Event) {
	ev.UserID = o.progress.ExternalUserID
	if ev.OccurredAt.IsZero() {
		ev.OccurredAt = o.now
	}
	o.events = append(o.events, ev)
}

// execute loads the user's progress, runs fn on a private copy and commits
// the result as one changeset. A version conflict re-runs the whole thing
// once from a fresh read; a second conflict is returned to the caller.
// Events are dispatched only after a successful commit.
func (s *ProgressionService) execute(ctx context.Context, userID string, fn func(ctx context.Context, o *op) error) (*op, error) {
	unlock := s.locks.Lock(userID)
	defer unlock()

	var (
		o   *op
		err error
	)
	for attempt := 1; attempt <= 2; attempt++ {
		o, err = s.attempt(ctx, userID, fn)
		if !errors.Is(err, ErrPersistenceConflict) {
			break
		}
		s.log.Warn("progress write conflict", "user_id", userID, "attempt", attempt)
	}
	if err != nil {
		return nil, err
	}
	s.dispatch(ctx, userID, o.events)
	return o, nil
}

func (s *ProgressionService) attempt(ctx context.Context, userID string, fn func(ctx context.Context, o *op) error) (*op, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	stored, err := s.store.GetProgress(ctx, userID)
	if err != nil {
		return nil, err
	}
	o := &op{progress: stored.Clone(), version: stored.Version, now: s.now()}
	if err := fn(ctx, o); err != nil {
		return nil, err
	}
	o.progress.UpdatedAt = o.now
	for _, q := range o.quests {
		q.UpdatedAt = o.now
	}
	for _, t := range o.tasks {
		t.UpdatedAt = o.now
	}
	err = s.store.Commit(ctx, Changeset{
		Progress:        o.progress,
		ExpectedVersion: o.version,
		Quests:          o.quests,
		Claims:          o.claims,
		Badges:          o.badges,
		Tasks:           o.tasks,
		DeletedTaskIDs:  o.deleted,
		Activity:        o.activity,
	})
	if err != nil {
		return nil, err
	}
	return o, nil
}

func (s *ProgressionService) dispatch(ctx context.Context, userID string, events []models.Event) {
	if len(events) == 0 {
		return
	}
	if err := s.notifier.Notify(ctx, userID, events); err != nil {
		s.log.Warn("event dispatch failed",
			"user_id", userID,
			"events", len(events),
			"error", fmt.Errorf("%w: %v", ErrExternalServiceUnavailable, err),
		)
	}
}

func (s *ProgressionService) loadQuest(ctx context.Context, o *op, questID string) (*models.Quest, error) {
	q, err := s.store.GetQuest(ctx, o.progress.ExternalUserID, questID)
	if err != nil {
		return nil, err
	}
	o.touch(q)
	return q, nil
}

// EnsureProgress returns the user's progress, creating the registration-time
// defaults on first sight. Safe to call concurrently.
func (s *ProgressionService) EnsureProgress(ctx context.Context, userID string) (*models.UserProgress, error) {
	p, err := s.store.GetProgress(ctx, userID)
	if err == nil {
		return p, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	p = models.NewUserProgress(uuid.NewString(), userID)
	p.CreatedAt = s.now()
	p.UpdatedAt = p.CreatedAt
	if err := s.store.CreateProgress(ctx, p); err != nil {
		if errors.Is(err, ErrPersistenceConflict) {
			// created concurrently
			return s.store.GetProgress(ctx, userID)
		}
		return nil, err
	}
	s.log.Info("progress record created", "user_id", userID)
	return p, nil
}

// SetOnboardingCompleted mirrors the external onboarding flag. Users are
// skipped by quest generation until it is set.
func (s *ProgressionService) SetOnboardingCompleted(ctx context.Context, userID string, completed bool) error {
	p, err := s.EnsureProgress(ctx, userID)
	if err != nil {
		return err
	}
	if p.OnboardingCompleted == completed {
		return nil
	}
	_, err = s.execute(ctx, userID, func(_ context.Context, o *op) error {
		o.progress.OnboardingCompleted = completed
		return nil
	})
	return err
}

// UpdateSettings changes penalty level and/or timezone. Empty values are left alone.
func (s *ProgressionService) UpdateSettings(ctx context.Context, userID string, penalty models.PenaltyLevel, timezone string) (*models.UserProgress, error) {
	if penalty != "" && !penalty.Valid() {
		return nil, fmt.Errorf("penalty level %q: %w", penalty, ErrInvalidSettings)
	}
	if timezone != "" {
		if _, err := time.LoadLocation(timezone); err != nil {
			return nil, fmt.Errorf("timezone %q: %w", timezone, ErrInvalidSettings)
		}
	}
	o, err := s.execute(ctx, userID, func(_ context.Context, o *op) error {
		if penalty != "" {
			o.progress.Settings.PenaltyLevel = penalty
		}
		if timezone != "" {
			o.progress.Settings.Timezone = timezone
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return o.progress, nil
}

// AcceptQuest creates a custom quest and puts it in the user's active set,
// subject to the active-quest cap.
func (s *ProgressionService) AcceptQuest(ctx context.Context, userID string, in CustomQuestInput) (*models.Quest, error) {
	if _, err := s.EnsureProgress(ctx, userID); err != nil {
		return nil, err
	}
	var created *models.Quest
	_, err := s.execute(ctx, userID, func(_ context.Context, o *op) error {
		q, err := s.generator.NewCustomQuest(o.progress, in, o.now)
		if err != nil {
			return err
		}
		if err := s.rules.Accept(o.progress, q); err != nil {
			return err
		}
		o.touch(q)
		created = q
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("custom quest accepted", "user_id", userID, "quest_id", created.ID, "xp_reward", created.XPReward)
	return created, nil
}

// CompletionResult is what completing a quest did to the user.
type CompletionResult struct {
	Quest    *models.Quest        `json:"quest"`
	Progress *models.UserProgress `json:"progress"`
	Level    LevelResult          `json:"level"`
	Streak   StreakResult         `json:"streak"`
	Skill    SkillResult          `json:"skill"`
	Events   []models.Event       `json:"events"`
}

// CompleteQuest completes an active quest, awards its XP, advances the
// streak and commits it all at once.
func (s *ProgressionService) CompleteQuest(ctx context.Context, userID, questID string) (*CompletionResult, error) {
	var res *CompletionResult
	o, err := s.execute(ctx, userID, func(ctx context.Context, o *op) error {
		q, err := s.loadQuest(ctx, o, questID)
		if err != nil {
			return err
		}
		if err := Complete(q, o.now); err != nil {
			return err
		}
		res, err = s.settleCompletion(ctx, o, q)
		return err
	})
	if err != nil {
		return nil, err
	}
	res.Events = o.events
	return res, nil
}

// UpdateQuestProgress sets a quest's progress percentage; reaching 100
// completes it exactly like CompleteQuest.
func (s *ProgressionService) UpdateQuestProgress(ctx context.Context, userID, questID string, percent float64) (*CompletionResult, error) {
	return s.progressOp(ctx, userID, questID, func(q *models.Quest, now time.Time) (bool, error) {
		return UpdateProgress(q, percent, now)
	})
}

// LogMissionProgress adds units toward a mission's numeric target.
func (s *ProgressionService) LogMissionProgress(ctx context.Context, userID, questID string, units int) (*CompletionResult, error) {
	return s.progressOp(ctx, userID, questID, func(q *models.Quest, now time.Time) (bool, error) {
		return RecordUnits(q, units, now)
	})
}

func (s *ProgressionService) progressOp(ctx context.Context, userID, questID string, apply func(*models.Quest, time.Time) (bool, error)) (*CompletionResult, error) {
	var res *CompletionResult
	o, err := s.execute(ctx, userID, func(ctx context.Context, o *op) error {
		q, err := s.loadQuest(ctx, o, questID)
		if err != nil {
			return err
		}
		completed, err := apply(q, o.now)
		if err != nil {
			return err
		}
		if !completed {
			res = &CompletionResult{Quest: q, Progress: o.progress}
			return nil
		}
		res, err = s.settleCompletion(ctx, o, q)
		return err
	})
	if err != nil {
		return nil, err
	}
	res.Events = o.events
	return res, nil
}

// settleCompletion applies the consequences of a quest that just reached
// COMPLETED: XP first, then the streak, then badges.
func (s *ProgressionService) settleCompletion(ctx context.Context, o *op, q *models.Quest) (*CompletionResult, error) {
	p := o.progress
	DetachQuest(p, q.ID)
	p.TotalQuestsCompleted++

	lvl, err := s.rules.ApplyExperience(p, q.XPReward, q.Domain, o.now)
	if err != nil {
		return nil, err
	}
	rw := q.Rewards
	o.emit(models.Event{Type: models.EventQuestCompleted, QuestID: q.ID, Amount: q.XPReward, Rewards: &rw})

	skill, err := s.trainSkill(o, SkillForDomain(q.Domain), q.XPReward)
	if err != nil {
		return nil, err
	}
	o.record(models.ActivityEntry{
		Kind:    models.ActivityQuestCompleted,
		QuestID: q.ID,
		XP:      q.XPReward,
		Skill:   skill.Skill,
		SkillXP: q.XPReward,
	})

	sres, milestone, err := s.checkIn(o)
	if err != nil {
		return nil, err
	}
	lvl = mergeLevelResults(lvl, milestone)
	s.emitLevel(o, lvl)

	if err := s.awardBadges(ctx, o); err != nil {
		return nil, err
	}
	return &CompletionResult{Quest: q, Progress: p, Level: lvl, Streak: sres, Skill: skill}, nil
}

// checkIn advances the streak for a completion at o.now and pays any
// milestone it reaches.
func (s *ProgressionService) checkIn(o *op) (StreakResult, LevelResult, error) {
	p := o.progress
	streak, sres := s.rules.UpdateStreak(p.Streak, o.now, UserLocation(p))
	p.Streak = streak
	if sres.Milestone == nil {
		return sres, LevelResult{NewLevel: p.Level, NewRank: p.Rank}, nil
	}
	bonus, err := s.rules.ApplyMilestoneBonus(p, *sres.Milestone, o.now)
	if err != nil {
		return sres, bonus, err
	}
	o.emit(models.Event{
		Type:      models.EventStreakMilestone,
		Days:      streak.Current,
		Milestone: sres.Milestone.Name,
		Amount:    sres.Milestone.BonusXP,
	})
	o.record(models.ActivityEntry{Kind: models.ActivityMilestoneBonus, XP: sres.Milestone.BonusXP})
	return sres, bonus, nil
}

// trainSkill adds skill experience and emits a SkillLevelUp when it levels.
func (s *ProgressionService) trainSkill(o *op, skill string, amount int64) (SkillResult, error) {
	res, err := s.rules.ApplySkillExperience(o.progress, skill, amount)
	if err != nil {
		return res, err
	}
	if res.LeveledUp {
		o.emit(models.Event{Type: models.EventSkillLevelUp, Skill: res.Skill, Level: res.NewLevel, Count: res.LevelsGained})
	}
	return res, nil
}

func mergeLevelResults(a, b LevelResult) LevelResult {
	out := b
	out.LeveledUp = a.LeveledUp || b.LeveledUp
	out.LevelsGained = a.LevelsGained + b.LevelsGained
	out.RankedUp = a.RankedUp || b.RankedUp
	return out
}

// emitLevel turns a level result into at most one LevelUp and one RankUp.
func (s *ProgressionService) emitLevel(o *op, lvl LevelResult) {
	if lvl.LeveledUp {
		o.emit(models.Event{Type: models.EventLevelUp, Level: lvl.NewLevel, Count: lvl.LevelsGained})
	}
	if lvl.RankedUp {
		o.emit(models.Event{Type: models.EventRankUp, Rank: lvl.NewRank, Level: lvl.NewLevel})
	}
}

func (s *ProgressionService) awardBadges(ctx context.Context, o *op) error {
	existing, err := s.store.ListBadges(ctx, o.progress.ExternalUserID)
	if err != nil {
		return err
	}
	owned := make(map[string]bool, len(existing)+len(o.badges))
	for _, b := range existing {
		owned[b.BadgeCode] = true
	}
	for _, b := range o.badges {
		owned[b.BadgeCode] = true
	}
	for _, b := range AwardBadges(o.progress, owned, o.now) {
		o.badges = append(o.badges, b)
		o.emit(models.Event{Type: models.EventBadgeAwarded, Badge: b.BadgeCode})
	}
	return nil
}

// FailQuest marks an active quest failed. Failure costs FailPenaltyXP, which
// is zero unless configured.
func (s *ProgressionService) FailQuest(ctx context.Context, userID, questID string) (*models.Quest, error) {
	var failed *models.Quest
	_, err := s.execute(ctx, userID, func(ctx context.Context, o *op) error {
		q, err := s.loadQuest(ctx, o, questID)
		if err != nil {
			return err
		}
		if err := Fail(q, o.now); err != nil {
			return err
		}
		DetachQuest(o.progress, q.ID)
		o.progress.TotalQuestsFailed++
		if s.rules.FailPenaltyXP > 0 {
			removed, err := s.rules.SubtractExperience(o.progress, s.rules.FailPenaltyXP)
			if err != nil {
				return err
			}
			if removed > 0 {
				o.emit(models.Event{Type: models.EventPenaltyApplied, QuestID: q.ID, Count: 1, Amount: removed})
				o.record(models.ActivityEntry{Kind: models.ActivityPenalty, QuestID: q.ID, XP: -removed})
			}
		}
		failed = q
		return nil
	})
	if err != nil {
		return nil, err
	}
	return failed, nil
}

// AbandonQuest drops an active quest with no reward and no penalty.
func (s *ProgressionService) AbandonQuest(ctx context.Context, userID, questID string) (*models.Quest, error) {
	var abandoned *models.Quest
	_, err := s.execute(ctx, userID, func(ctx context.Context, o *op) error {
		q, err := s.loadQuest(ctx, o, questID)
		if err != nil {
			return err
		}
		if err := Abandon(q, o.now); err != nil {
			return err
		}
		DetachQuest(o.progress, q.ID)
		o.progress.TotalQuestsAbandoned++
		abandoned = q
		return nil
	})
	if err != nil {
		return nil, err
	}
	return abandoned, nil
}

// ClaimResult is the payload applied by a claim plus the resulting progress.
type ClaimResult struct {
	Rewards  models.Rewards       `json:"rewards"`
	Progress *models.UserProgress `json:"progress"`
	Level    LevelResult          `json:"level"`
}

// ClaimReward applies a completed quest's reward payload exactly once. The
// claim is also written to the reward ledger, keyed by quest.
func (s *ProgressionService) ClaimReward(ctx context.Context, userID, questID string) (*ClaimResult, error) {
	var res *ClaimResult
	_, err := s.execute(ctx, userID, func(ctx context.Context, o *op) error {
		q, err := s.loadQuest(ctx, o, questID)
		if err != nil {
			return err
		}
		rw, err := ClaimReward(q, o.now)
		if err != nil {
			return err
		}
		lvl, err := s.rules.ApplyRewards(o.progress, rw, o.now)
		if err != nil {
			return err
		}
		o.claims = append(o.claims, models.RewardClaim{
			ID:             uuid.NewString(),
			ExternalUserID: userID,
			QuestID:        q.ID,
			Experience:     rw.Experience,
			StatDeltas:     rw.StatDeltas,
			ClaimedAt:      o.now,
		})
		o.emit(models.Event{Type: models.EventRewardClaimed, QuestID: q.ID, Amount: rw.Experience, Rewards: &rw})
		if rw.Experience > 0 {
			o.record(models.ActivityEntry{Kind: models.ActivityRewardClaimed, QuestID: q.ID, XP: rw.Experience})
		}
		s.emitLevel(o, lvl)
		if lvl.LeveledUp {
			if err := s.awardBadges(ctx, o); err != nil {
				return err
			}
		}
		res = &ClaimResult{Rewards: rw, Progress: o.progress, Level: lvl}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// GrantXP awards XP outside of any quest (admin grants). amount must be in
// (0, Rules.MaxXPGrant].
func (s *ProgressionService) GrantXP(ctx context.Context, userID string, amount int64, reason string) (*models.UserProgress, error) {
	if amount <= 0 || (s.rules.MaxXPGrant > 0 && amount > s.rules.MaxXPGrant) {
		return nil, fmt.Errorf("grant of %d xp: %w", amount, ErrInvalidAmount)
	}
	o, err := s.execute(ctx, userID, func(ctx context.Context, o *op) error {
		lvl, err := s.rules.ApplyExperience(o.progress, amount, "", o.now)
		if err != nil {
			return err
		}
		o.record(models.ActivityEntry{Kind: models.ActivityXPGranted, XP: amount})
		s.emitLevel(o, lvl)
		return s.awardBadges(ctx, o)
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("xp granted",
		"user_id", userID,
		"xp", amount,
		"level", o.progress.Level,
		"reason", reason,
	)
	return o.progress, nil
}

func (s *ProgressionService) SpendStatPoints(ctx context.Context, userID, attribute string, points int) (*models.UserProgress, error) {
	o, err := s.execute(ctx, userID, func(_ context.Context, o *op) error {
		return SpendStatPoints(o.progress, attribute, points)
	})
	if err != nil {
		return nil, err
	}
	return o.progress, nil
}

// ResetProgress reinitialises the user's progression to registration
// defaults. Quests still active are abandoned; history is kept.
func (s *ProgressionService) ResetProgress(ctx context.Context, userID string) (*models.UserProgress, error) {
	o, err := s.execute(ctx, userID, func(ctx context.Context, o *op) error {
		active, err := s.store.ListQuests(ctx, userID, QuestFilter{Statuses: []models.QuestStatus{models.QuestActive}})
		if err != nil {
			return err
		}
		for _, q := range active {
			if err := Abandon(q, o.now); err != nil {
				return err
			}
			o.touch(q)
		}
		o.progress.ResetToDefaults()
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("progress reset", "user_id", userID)
	return o.progress, nil
}

// QuestStats counts the user's quests by status.
type QuestStats struct {
	Active         int64   `json:"active"`
	Completed      int64   `json:"completed"`
	Failed         int64   `json:"failed"`
	Expired        int64   `json:"expired"`
	Abandoned      int64   `json:"abandoned"`
	CompletionRate float64 `json:"completion_rate"` // completed / all terminal
}

type Summary struct {
	Progress      *models.UserProgress `json:"progress"`
	NextMilestone *MilestoneTier       `json:"next_milestone,omitempty"`
	Stats         QuestStats           `json:"stats"`
	Badges        []models.UserBadge   `json:"badges"`
}

func (s *ProgressionService) GetSummary(ctx context.Context, userID string) (*Summary, error) {
	p, err := s.EnsureProgress(ctx, userID)
	if err != nil {
		return nil, err
	}
	counts, err := s.store.CountQuestsByStatus(ctx, userID)
	if err != nil {
		return nil, err
	}
	badges, err := s.store.ListBadges(ctx, userID)
	if err != nil {
		return nil, err
	}

	st := QuestStats{
		Active:    counts[models.QuestActive],
		Completed: counts[models.QuestCompleted],
		Failed:    counts[models.QuestFailed],
		Expired:   counts[models.QuestExpired],
		Abandoned: counts[models.QuestAbandoned],
	}
	if terminal := st.Completed + st.Failed + st.Expired + st.Abandoned; terminal > 0 {
		st.CompletionRate = float64(st.Completed) / float64(terminal)
	}

	sum := &Summary{Progress: p, Stats: st, Badges: badges}
	if next, ok := s.rules.Milestones.Next(p.Streak.Current); ok {
		sum.NextMilestone = &next
	}
	return sum, nil
}

func (s *ProgressionService) ListQuests(ctx context.Context, userID string, f QuestFilter) ([]*models.Quest, error) {
	return s.store.ListQuests(ctx, userID, f)
}

// MaintenanceResult is what one user's daily maintenance did.
type MaintenanceResult struct {
	UserID          string          `json:"user_id"`
	Sweep           SweepResult     `json:"sweep"`
	StreakReset     bool            `json:"streak_reset"`
	ExpiredMissions []string        `json:"expired_missions,omitempty"`
	ExpiredOverdue  []string        `json:"expired_overdue,omitempty"`
	Generated       []*models.Quest `json:"generated"`
}

// RunDailyMaintenance sweeps expired daily quests, expires custom quests past
// their deadline, decays a lapsed streak and generates whatever batches are
// due. Re-running it for the same asOf is a
// no-op: only ACTIVE quests are swept and the refresh timestamps gate
// generation.
func (s *ProgressionService) RunDailyMaintenance(ctx context.Context, userID string, asOf time.Time) (*MaintenanceResult, error) {
	res := &MaintenanceResult{UserID: userID}
	_, err := s.execute(ctx, userID, func(ctx context.Context, o *op) error {
		*res = MaintenanceResult{UserID: userID}
		p := o.progress

		active, err := s.store.ListQuests(ctx, userID, QuestFilter{
			Statuses:      []models.QuestStatus{models.QuestActive},
			Types:         []models.QuestType{models.QuestTypeDaily, models.QuestTypeWeekly, models.QuestTypeCustom},
			CreatedBefore: &asOf,
		})
		if err != nil {
			return err
		}

		sweep, err := s.rules.SweepExpiredQuests(p, active, asOf)
		if err != nil {
			return err
		}
		res.Sweep = sweep
		expiredCount := len(sweep.ExpiredQuestIDs)
		if sweep.XPPenalty > 0 {
			o.emit(models.Event{Type: models.EventPenaltyApplied, Count: expiredCount, Amount: sweep.XPPenalty})
		}
		if sweep.XPRemoved > 0 {
			o.record(models.ActivityEntry{Kind: models.ActivityPenalty, XP: -sweep.XPRemoved})
		}

		res.ExpiredOverdue = ExpireOverdueQuests(p, active, asOf)
		expiredCount += len(res.ExpiredOverdue)

		if streak, reset := s.rules.DecayStreak(p.Streak, asOf, UserLocation(p)); reset {
			p.Streak = streak
			res.StreakReset = true
			o.emit(models.Event{Type: models.EventStreakReset})
		}

		if WeeklyDue(p, asOf) {
			res.ExpiredMissions = RolloverWeeklyMissions(p, active, asOf)
			expiredCount += len(res.ExpiredMissions)
			weekly := s.generator.GenerateWeekly(p, asOf)
			for i := range weekly {
				q := &weekly[i]
				p.ActiveWeeklyMissionIDs.Add(q.ID)
				res.Generated = append(res.Generated, q)
			}
			next := NextWeeklyRefresh(asOf)
			p.NextWeeklyRefreshAt = &next
		}
		if DailyDue(p, asOf) {
			daily := s.generator.GenerateDaily(p, asOf)
			for i := range daily {
				q := &daily[i]
				p.ActiveDailyQuestIDs.Add(q.ID)
				res.Generated = append(res.Generated, q)
			}
			next := NextDailyRefresh(asOf)
			p.NextDailyRefreshAt = &next
		}
		if expiredCount > 0 {
			o.emit(models.Event{Type: models.EventQuestExpired, Count: expiredCount})
		}

		// active holds every quest the sweep, rollover or deadline check may have expired
		for _, q := range active {
			if q.Status != models.QuestActive {
				o.touch(q)
			}
		}
		o.touch(res.Generated...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// MaintenanceReport aggregates a maintenance run across users.
type MaintenanceReport struct {
	Users     int   `json:"users"`
	Succeeded int   `json:"succeeded"`
	Failed    int   `json:"failed"`
	Expired   int   `json:"expired"`
	XPPenalty int64 `json:"xp_penalty"`
	Generated int   `json:"generated"`
}

// RunMaintenanceForAll runs daily maintenance for every user, in parallel
// across users. One user's failure is logged and counted, never fatal.
func (s *ProgressionService) RunMaintenanceForAll(ctx context.Context, asOf time.Time) (MaintenanceReport, error) {
	var report MaintenanceReport
	ids, err := s.store.ListUserIDs(ctx)
	if err != nil {
		return report, err
	}
	report.Users = len(ids)

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)
	for _, id := range ids {
		g.Go(func() error {
			res, err := s.RunDailyMaintenance(gctx, id, asOf)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				report.Failed++
				s.log.Error("daily maintenance failed", "user_id", id, "error", err)
				return nil
			}
			report.Succeeded++
			report.Expired += len(res.Sweep.ExpiredQuestIDs) + len(res.ExpiredMissions) + len(res.ExpiredOverdue)
			report.XPPenalty += res.Sweep.XPPenalty
			report.Generated += len(res.Generated)
			return nil
		})
	}
	_ = g.Wait()

	s.log.Info("daily maintenance finished",
		"as_of", asOf,
		"users", report.Users,
		"failed", report.Failed,
		"expired", report.Expired,
		"generated", report.Generated,
	)
	return report, ctx.Err()
}

// ArchiveHistory uploads every user's quests that reached a terminal state
// since the given instant, one JSON document per user.
func (s *ProgressionService) ArchiveHistory(ctx context.Context, archive Archiver, since, until time.Time) (int, error) {
	ids, err := s.store.ListUserIDs(ctx)
	if err != nil {
		return 0, err
	}

	var (
		mu       sync.Mutex
		uploaded int
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)
	for _, id := range ids {
		g.Go(func() error {
			quests, err := s.store.ListQuests(gctx, id, QuestFilter{
				Statuses:     []models.QuestStatus{models.QuestCompleted, models.QuestFailed, models.QuestExpired, models.QuestAbandoned},
				UpdatedSince: &since,
			})
			if err != nil {
				return fmt.Errorf("list history for %s: %w", id, err)
			}
			if len(quests) == 0 {
				return nil
			}
			key := fmt.Sprintf("quest-history/%s/%s.json", id, until.UTC().Format("2006-01-02"))
			doc := map[string]any{
				"user_id": id,
				"from":    since,
				"to":      until,
				"quests":  quests,
			}
			if err := archive.PutJSON(gctx, key, doc); err != nil {
				return fmt.Errorf("archive %s: %w", key, err)
			}
			mu.Lock()
			uploaded++
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return uploaded, err
	}
	return uploaded, nil
}
