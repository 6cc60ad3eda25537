package repository

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"sync"
	"time"

	"quest-progression-system/models"
	"quest-progression-system/services"
)

// MemoryStore keeps everything in process. Used with STORE_DRIVER=memory and
// by tests. All reads return copies.
type MemoryStore struct {
	mu       sync.RWMutex
	progress map[string]*models.UserProgress // by external user id
	quests   map[string]*models.Quest
	claims   map[string]models.RewardClaim // by quest id
	badges   map[string][]models.UserBadge // by external user id
	tasks    map[string]*models.ScheduleTask
	activity map[string][]models.ActivityEntry // by external user id, append order
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		progress: make(map[string]*models.UserProgress),
		quests:   make(map[string]*models.Quest),
		claims:   make(map[string]models.RewardClaim),
		badges:   make(map[string][]models.UserBadge),
		tasks:    make(map[string]*models.ScheduleTask),
		activity: make(map[string][]models.ActivityEntry),
	}
}

func (m *MemoryStore) GetProgress(_ context.Context, userID string) (*models.UserProgress, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.progress[userID]
	if !ok {
		return nil, fmt.Errorf("%s: %w", userID, services.ErrProgressNotFound)
	}
	return p.Clone(), nil
}

func (m *MemoryStore) CreateProgress(_ context.Context, p *models.UserProgress) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.progress[p.ExternalUserID]; ok {
		return fmt.Errorf("progress for %s exists: %w", p.ExternalUserID, services.ErrPersistenceConflict)
	}
	m.progress[p.ExternalUserID] = p.Clone()
	return nil
}

func (m *MemoryStore) GetQuest(_ context.Context, userID, questID string) (*models.Quest, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	q, ok := m.quests[questID]
	if !ok || q.UserID != userID {
		return nil, fmt.Errorf("%s: %w", questID, services.ErrQuestNotFound)
	}
	return q.Clone(), nil
}

func (m *MemoryStore) ListQuests(_ context.Context, userID string, f services.QuestFilter) ([]*models.Quest, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*models.Quest
	for _, q := range m.quests {
		if q.UserID == userID && matches(q, f) {
			out = append(out, q.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func matches(q *models.Quest, f services.QuestFilter) bool {
	if len(f.Statuses) > 0 && !slices.Contains(f.Statuses, q.Status) {
		return false
	}
	if len(f.Types) > 0 && !slices.Contains(f.Types, q.Type) {
		return false
	}
	if f.CreatedBefore != nil && !q.CreatedAt.Before(*f.CreatedBefore) {
		return false
	}
	if f.UpdatedSince != nil && q.UpdatedAt.Before(*f.UpdatedSince) {
		return false
	}
	return true
}

func (m *MemoryStore) CountQuestsByStatus(_ context.Context, userID string) (map[models.QuestStatus]int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	counts := make(map[models.QuestStatus]int64)
	for _, q := range m.quests {
		if q.UserID == userID {
			counts[q.Status]++
		}
	}
	return counts, nil
}

func (m *MemoryStore) ListBadges(_ context.Context, userID string) ([]models.UserBadge, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.badges[userID]), nil
}

func (m *MemoryStore) ListUserIDs(_ context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([]string, 0, len(m.progress))
	for id := range m.progress {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

func (m *MemoryStore) GetTask(_ context.Context, userID, taskID string) (*models.ScheduleTask, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.tasks[taskID]
	if !ok || t.UserID != userID {
		return nil, fmt.Errorf("%s: %w", taskID, services.ErrTaskNotFound)
	}
	return t.Clone(), nil
}

func (m *MemoryStore) ListTasks(_ context.Context, userID, from, to string) ([]*models.ScheduleTask, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*models.ScheduleTask
	for _, t := range m.tasks {
		if t.UserID == userID && t.Date >= from && t.Date <= to {
			out = append(out, t.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Date != out[j].Date {
			return out[i].Date < out[j].Date
		}
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (m *MemoryStore) ListActivity(_ context.Context, userID string, since time.Time) ([]models.ActivityEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []models.ActivityEntry
	for _, e := range m.activity[userID] {
		if !e.OccurredAt.Before(since) {
			out = append(out, e)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].OccurredAt.Before(out[j].OccurredAt) })
	return out, nil
}

// Commit validates the whole changeset before touching anything, so a
// rejected commit leaves the store unchanged.
func (m *MemoryStore) Commit(_ context.Context, cs services.Changeset) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	userID := cs.Progress.ExternalUserID
	cur, ok := m.progress[userID]
	if !ok {
		return fmt.Errorf("%s: %w", userID, services.ErrProgressNotFound)
	}
	if cur.Version != cs.ExpectedVersion {
		return fmt.Errorf("progress %s at version %d, expected %d: %w",
			userID, cur.Version, cs.ExpectedVersion, services.ErrPersistenceConflict)
	}
	for _, c := range cs.Claims {
		if _, dup := m.claims[c.QuestID]; dup {
			return fmt.Errorf("quest %s: %w", c.QuestID, services.ErrAlreadyClaimed)
		}
	}

	next := cs.Progress.Clone()
	next.Version = cs.ExpectedVersion + 1
	m.progress[userID] = next
	cs.Progress.Version = next.Version

	for _, q := range cs.Quests {
		m.quests[q.ID] = q.Clone()
	}
	for _, c := range cs.Claims {
		m.claims[c.QuestID] = c
	}
	for _, b := range cs.Badges {
		if !slices.ContainsFunc(m.badges[userID], func(x models.UserBadge) bool { return x.BadgeCode == b.BadgeCode }) {
			m.badges[userID] = append(m.badges[userID], b)
		}
	}
	for _, t := range cs.Tasks {
		m.tasks[t.ID] = t.Clone()
	}
	for _, id := range cs.DeletedTaskIDs {
		if t, ok := m.tasks[id]; ok && t.UserID == userID {
			delete(m.tasks, id)
		}
	}
	m.activity[userID] = append(m.activity[userID], cs.Activity...)
	return nil
}

// Claim returns the ledger entry for a quest, if any.
func (m *MemoryStore) Claim(questID string) (models.RewardClaim, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.claims[questID]
	return c, ok
}
