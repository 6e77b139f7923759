// Package scheduler runs the periodic background tasks of cubelink: status
// probes of the configured server and the daily maintenance that prunes
// history and old log files.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/cubelink-project/cubelink/internal/config"
	"github.com/cubelink-project/cubelink/internal/db"
	"github.com/cubelink-project/cubelink/internal/events"
	"github.com/cubelink-project/cubelink/internal/util"
)

// ProbeFunc queries the server status once. Results travel on the event bus.
type ProbeFunc func(ctx context.Context) error

// Scheduler manages periodic background tasks.
type Scheduler struct {
	cfg      *config.Config
	eventBus *events.EventBus
	history  *db.HistoryStore
	probe    ProbeFunc
	now      func() time.Time
}

// NewScheduler creates a new task scheduler. history and probe may be nil,
// which disables pruning and probing respectively.
func NewScheduler(cfg *config.Config, eventBus *events.EventBus, history *db.HistoryStore, probe ProbeFunc) *Scheduler {
	return &Scheduler{
		cfg:      cfg,
		eventBus: eventBus,
		history:  history,
		probe:    probe,
		now:      time.Now,
	}
}

// Start runs all scheduled tasks until ctx is cancelled.
func (s *Scheduler) Start(ctx context.Context) {
	log.Info().Str("component", "scheduler").Msg("scheduler started")

	timers := s.cfg.GetApplicationData().Timers
	if s.probe != nil && timers.StatusProbeInterval > 0 {
		go s.runProbeLoop(ctx, time.Duration(timers.StatusProbeInterval)*time.Second)
	}
	go s.runMaintenanceLoop(ctx)

	<-ctx.Done()
	log.Info().Str("component", "scheduler").Msg("scheduler stopped")
}

func (s *Scheduler) runProbeLoop(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.probe(ctx); err != nil && ctx.Err() == nil {
				log.Warn().Err(err).Str("component", "scheduler").Msg("scheduled status probe failed")
				s.eventBus.Emit(ctx, events.Event{
					Type:    events.EventWarning,
					Source:  "scheduler",
					Payload: events.WarningPayload{Check: "status_probe", Message: err.Error()},
				})
			}
		}
	}
}

func (s *Scheduler) runMaintenanceLoop(ctx context.Context) {
	for {
		nextRun := s.NextMaintenance(s.now())
		sleep := nextRun.Sub(s.now())
		if sleep <= 0 {
			sleep = 24 * time.Hour
		}

		log.Info().
			Str("component", "scheduler").
			Time("next_run", nextRun).
			Dur("sleep", sleep).
			Msg("maintenance scheduled")

		timer := time.NewTimer(sleep)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
			s.RunMaintenance(ctx)
		}
	}
}

// MaintenanceResult reports what one maintenance run removed.
type MaintenanceResult struct {
	PrunedRows  int64
	RemovedLogs int
}

// RunMaintenance prunes history older than the retention window and removes
// log files beyond the configured backup count.
func (s *Scheduler) RunMaintenance(ctx context.Context) MaintenanceResult {
	app := s.cfg.GetApplicationData()
	var res MaintenanceResult

	if s.history != nil && app.Timers.HistoryRetentionDays > 0 {
		cutoff := s.now().Add(-time.Duration(app.Timers.HistoryRetentionDays) * 24 * time.Hour)
		n, err := s.history.Prune(ctx, cutoff)
		if err != nil {
			log.Warn().Err(err).Str("component", "scheduler").Msg("history pruning failed")
		}
		res.PrunedRows = n
	}

	res.RemovedLogs = util.CleanOldLogs(app.Logging.Directory, app.Logging.MaxBackups)

	log.Info().
		Str("component", "scheduler").
		Int64("pruned_rows", res.PrunedRows).
		Int("removed_logs", res.RemovedLogs).
		Msg("maintenance completed")
	return res
}

// NextMaintenance returns the first maintenance time strictly after now.
func (s *Scheduler) NextMaintenance(now time.Time) time.Time {
	hour, minute, err := s.cfg.GetApplicationData().Timers.ParseMaintenanceTime()
	if err != nil {
		hour, minute = 4, 0
	}

	next := time.Date(now.Year(), now.Month(), now.Day(), hour, minute, 0, 0, now.Location())
	if !next.After(now) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}

// String describes the schedule for logs.
func (s *Scheduler) String() string {
	t := s.cfg.GetApplicationData().Timers
	return fmt.Sprintf("probe every %ds, maintenance at %s", t.StatusProbeInterval, t.MaintenanceTime)
}
