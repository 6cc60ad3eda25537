package services

import (
	"context"
	"time"

	"quest-progression-system/models"
)

// QuestFilter narrows ListQuests. Zero fields match everything.
type QuestFilter struct {
	Statuses      []models.QuestStatus
	Types         []models.QuestType
	CreatedBefore *time.Time
	UpdatedSince  *time.Time
	Limit         int
}

// Changeset is everything one orchestrated operation writes. A store applies
// it atomically: either all of it lands or none of it does.
type Changeset struct {
	Progress        *models.UserProgress
	ExpectedVersion int64
	Quests          []*models.Quest // upserted by id
	Claims          []models.RewardClaim
	Badges          []models.UserBadge
	Tasks           []*models.ScheduleTask // upserted by id
	DeletedTaskIDs  []string
	Activity        []models.ActivityEntry // appended
}

// Store is the persistence port of the progression service.
//
// Commit must fail with ErrPersistenceConflict when the stored progress
// version differs from ExpectedVersion, and bump Progress.Version on success.
type Store interface {
	GetProgress(ctx context.Context, userID string) (*models.UserProgress, error)
	CreateProgress(ctx context.Context, p *models.UserProgress) error
	GetQuest(ctx context.Context, userID, questID string) (*models.Quest, error)
	ListQuests(ctx context.Context, userID string, f QuestFilter) ([]*models.Quest, error)
	CountQuestsByStatus(ctx context.Context, userID string) (map[models.QuestStatus]int64, error)
	ListBadges(ctx context.Context, userID string) ([]models.UserBadge, error)
	ListUserIDs(ctx context.Context) ([]string, error)
	GetTask(ctx context.Context, userID, taskID string) (*models.ScheduleTask, error)
	// ListTasks returns tasks dated from..to inclusive (YYYY-MM-DD).
	ListTasks(ctx context.Context, userID, from, to string) ([]*models.ScheduleTask, error)
	// ListActivity returns history entries at or after since, oldest first.
	ListActivity(ctx context.Context, userID string, since time.Time) ([]models.ActivityEntry, error)
	Commit(ctx context.Context, cs Changeset) error
}

// Notifier receives domain events after a successful commit. Delivery
// failures never roll back state.
type Notifier interface {
	Notify(ctx context.Context, userID string, events []models.Event) error
}

// Archiver stores JSON documents under a key (the weekly history export).
type Archiver interface {
	PutJSON(ctx context.Context, key string, v any) error
}

type nopNotifier struct{}

func (nopNotifier) Notify(context.Context, string, []models.Event) error { return nil }
