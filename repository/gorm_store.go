package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"quest-progression-system/models"
	"quest-progression-system/services"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormLogger "gorm.io/gorm/logger"
)

// GormStore persists progression state in Postgres. UserProgress rows carry
// a version column; every Commit is one transaction guarded by it.
type GormStore struct {
	DB *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{DB: db}
}

// Open connects to Postgres with duplicate-key errors translated to
// gorm.ErrDuplicatedKey.
func Open(dsn string, level gormLogger.LogLevel) (*gorm.DB, error) {
	return gorm.Open(postgres.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         gormLogger.Default.LogMode(level),
		NowFunc:        func() time.Time { return time.Now().UTC() },
	})
}

func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.UserProgress{},
		&models.Quest{},
		&models.RewardClaim{},
		&models.UserBadge{},
		&models.ScheduleTask{},
		&models.ActivityEntry{},
	)
}

func (s *GormStore) GetProgress(ctx context.Context, userID string) (*models.UserProgress, error) {
	var p models.UserProgress
	err := s.DB.WithContext(ctx).Where("external_user_id = ?", userID).First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%s: %w", userID, services.ErrProgressNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *GormStore) CreateProgress(ctx context.Context, p *models.UserProgress) error {
	err := s.DB.WithContext(ctx).Create(p).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return fmt.Errorf("progress for %s exists: %w", p.ExternalUserID, services.ErrPersistenceConflict)
	}
	return err
}

func (s *GormStore) GetQuest(ctx context.Context, userID, questID string) (*models.Quest, error) {
	var q models.Quest
	err := s.DB.WithContext(ctx).Where("id = ? AND user_id = ?", questID, userID).First(&q).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%s: %w", questID, services.ErrQuestNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &q, nil
}

func (s *GormStore) ListQuests(ctx context.Context, userID string, f services.QuestFilter) ([]*models.Quest, error) {
	q := s.DB.WithContext(ctx).Where("user_id = ?", userID)
	if len(f.Statuses) > 0 {
		q = q.Where("status IN ?", f.Statuses)
	}
	if len(f.Types) > 0 {
		q = q.Where("type IN ?", f.Types)
	}
	if f.CreatedBefore != nil {
		q = q.Where("created_at < ?", *f.CreatedBefore)
	}
	if f.UpdatedSince != nil {
		q = q.Where("updated_at >= ?", *f.UpdatedSince)
	}
	if f.Limit > 0 {
		q = q.Limit(f.Limit)
	}

	var quests []*models.Quest
	if err := q.Order("created_at DESC, id ASC").Find(&quests).Error; err != nil {
		return nil, err
	}
	return quests, nil
}

func (s *GormStore) CountQuestsByStatus(ctx context.Context, userID string) (map[models.QuestStatus]int64, error) {
	var rows []struct {
		Status models.QuestStatus
		N      int64
	}
	err := s.DB.WithContext(ctx).
		Model(&models.Quest{}).
		Select("status, COUNT(*) AS n").
		Where("user_id = ?", userID).
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	counts := make(map[models.QuestStatus]int64, len(rows))
	for _, r := range rows {
		counts[r.Status] = r.N
	}
	return counts, nil
}

func (s *GormStore) ListBadges(ctx context.Context, userID string) ([]models.UserBadge, error) {
	var badges []models.UserBadge
	err := s.DB.WithContext(ctx).
		Where("external_user_id = ?", userID).
		Order("awarded_at ASC").
		Find(&badges).Error
	return badges, err
}

func (s *GormStore) ListUserIDs(ctx context.Context) ([]string, error) {
	var ids []string
	err := s.DB.WithContext(ctx).
		Model(&models.UserProgress{}).
		Order("external_user_id").
		Pluck("external_user_id", &ids).Error
	return ids, err
}

func (s *GormStore) GetTask(ctx context.Context, userID, taskID string) (*models.ScheduleTask, error) {
	var t models.ScheduleTask
	err := s.DB.WithContext(ctx).Where("id = ? AND user_id = ?", taskID, userID).First(&t).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%s: %w", taskID, services.ErrTaskNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (s *GormStore) ListTasks(ctx context.Context, userID, from, to string) ([]*models.ScheduleTask, error) {
	var tasks []*models.ScheduleTask
	err := s.DB.WithContext(ctx).
		Where("user_id = ? AND date BETWEEN ? AND ?", userID, from, to).
		Order("date ASC, created_at ASC, id ASC").
		Find(&tasks).Error
	return tasks, err
}

func (s *GormStore) ListActivity(ctx context.Context, userID string, since time.Time) ([]models.ActivityEntry, error) {
	var entries []models.ActivityEntry
	err := s.DB.WithContext(ctx).
		Where("user_id = ? AND occurred_at >= ?", userID, since).
		Order("occurred_at ASC").
		Find(&entries).Error
	return entries, err
}

// Commit writes the changeset in one transaction. The progress update only
// matches the row at ExpectedVersion; zero rows affected means someone else
// committed first.
func (s *GormStore) Commit(ctx context.Context, cs services.Changeset) error {
	next := *cs.Progress
	next.Version = cs.ExpectedVersion + 1

	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&next).
			Where("version = ?", cs.ExpectedVersion).
			Select("*").
			Omit("id", "external_user_id", "created_at").
			Updates(&next)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("progress %s at version %d: %w",
				cs.Progress.ExternalUserID, cs.ExpectedVersion, services.ErrPersistenceConflict)
		}

		if len(cs.Quests) > 0 {
			err := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "id"}},
				UpdateAll: true,
			}).Create(&cs.Quests).Error
			if err != nil {
				return fmt.Errorf("upsert quests: %w", err)
			}
		}

		if len(cs.Claims) > 0 {
			err := tx.Create(&cs.Claims).Error
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return services.ErrAlreadyClaimed
			}
			if err != nil {
				return fmt.Errorf("insert reward claims: %w", err)
			}
		}

		if len(cs.Badges) > 0 {
			err := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "external_user_id"}, {Name: "badge_code"}},
				DoNothing: true,
			}).Create(&cs.Badges).Error
			if err != nil {
				return fmt.Errorf("insert badges: %w", err)
			}
		}

		if len(cs.Tasks) > 0 {
			err := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "id"}},
				UpdateAll: true,
			}).Create(&cs.Tasks).Error
			if err != nil {
				return fmt.Errorf("upsert tasks: %w", err)
			}
		}

		if len(cs.DeletedTaskIDs) > 0 {
			err := tx.Where("user_id = ? AND id IN ?", cs.Progress.ExternalUserID, cs.DeletedTaskIDs).
				Delete(&models.ScheduleTask{}).Error
			if err != nil {
				return fmt.Errorf("delete tasks: %w", err)
			}
		}

		if len(cs.Activity) > 0 {
			if err := tx.Create(&cs.Activity).Error; err != nil {
				return fmt.Errorf("insert activity: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	cs.Progress.Version = next.Version
	return nil
}
