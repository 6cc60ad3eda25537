// services/scheduler.go
package services

import (
	"context"
	"time"

	"quest-progression-system/logger"

	"github.com/go-co-op/gocron/v2"
)

// MaintenanceScheduler drives the periodic jobs:
//   - daily at 00:00 UTC: sweep, streak decay and quest generation for every
//     user (weekly missions roll over on the Monday run)
//   - Mondays at 00:30 UTC: archive last week's finished quests, if an
//     archive is configured
type MaintenanceScheduler struct {
	svc     *ProgressionService
	archive Archiver
	log     *logger.Logger
	sched   gocron.Scheduler
	now     func() time.Time
}

// NewMaintenanceScheduler creates the scheduler. archive may be nil.
func NewMaintenanceScheduler(svc *ProgressionService, archive Archiver, log *logger.Logger) (*MaintenanceScheduler, error) {
	sched, err := gocron.NewScheduler(gocron.WithLocation(time.UTC))
	if err != nil {
		return nil, err
	}
	return &MaintenanceScheduler{
		svc:     svc,
		archive: archive,
		log:     log.With("service", "MaintenanceScheduler"),
		sched:   sched,
		now:     func() time.Time { return time.Now().UTC() },
	}, nil
}

// Start registers the jobs and starts the scheduler. Jobs run with ctx and
// stop picking up new users once it is cancelled.
func (m *MaintenanceScheduler) Start(ctx context.Context) error {
	_, err := m.sched.NewJob(
		gocron.DailyJob(1, gocron.NewAtTimes(gocron.NewAtTime(0, 0, 0))),
		gocron.NewTask(func() {
			if _, err := m.RunDaily(ctx); err != nil {
				m.log.Error("daily maintenance run failed", "error", err)
			}
		}),
		gocron.WithName("daily-maintenance"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return err
	}

	if m.archive != nil {
		_, err = m.sched.NewJob(
			gocron.WeeklyJob(1, gocron.NewWeekdays(time.Monday), gocron.NewAtTimes(gocron.NewAtTime(0, 30, 0))),
			gocron.NewTask(func() {
				if _, err := m.RunWeeklyArchive(ctx); err != nil {
					m.log.Error("weekly archive failed", "error", err)
				}
			}),
			gocron.WithName("weekly-archive"),
			gocron.WithSingletonMode(gocron.LimitModeReschedule),
		)
		if err != nil {
			return err
		}
	}

	m.sched.Start()
	m.log.Info("scheduler started", "archive", m.archive != nil)
	return nil
}

func (m *MaintenanceScheduler) Stop() error {
	return m.sched.Shutdown()
}

// RunDaily runs maintenance as of the start of the current UTC day.
func (m *MaintenanceScheduler) RunDaily(ctx context.Context) (MaintenanceReport, error) {
	return m.svc.RunMaintenanceForAll(ctx, StartOfDayUTC(m.now()))
}

// RunWeeklyArchive exports the seven days before the current UTC day.
func (m *MaintenanceScheduler) RunWeeklyArchive(ctx context.Context) (int, error) {
	until := StartOfDayUTC(m.now())
	since := until.AddDate(0, 0, -7)
	n, err := m.svc.ArchiveHistory(ctx, m.archive, since, until)
	if err != nil {
		return n, err
	}
	m.log.Info("weekly archive uploaded", "users", n, "since", since, "until", until)
	return n, nil
}

func StartOfDayUTC(t time.Time) time.Time {
	y, mo, d := t.UTC().Date()
	return time.Date(y, mo, d, 0, 0, 0, 0, time.UTC)
}
