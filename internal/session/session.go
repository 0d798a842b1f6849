// Package session ties the target registry, result log, settings and
// scheduler into one explicit MonitoringSession value. All consumers hold a
// reference to the session; there is no package-level monitoring state.
package session

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"pulsemon/internal/domain"
	"pulsemon/internal/repo"
	"pulsemon/internal/scheduler"
	"pulsemon/internal/stats"
)

type MonitoringSession struct {
	log      *zap.Logger
	targets  repo.TargetStore
	results  repo.ResultStore
	settings repo.SettingsStore
	sched    *scheduler.Scheduler
}

// New loads persisted settings (falling back to defaults), builds the
// scheduler and applies the auto-start rule: monitoring begins immediately
// when settings are enabled and at least one target exists.
func New(
	ctx context.Context,
	log *zap.Logger,
	ts repo.TargetStore,
	rs repo.ResultStore,
	ss repo.SettingsStore,
	newScheduler func(domain.Settings) *scheduler.Scheduler,
) (*MonitoringSession, error) {
	set, err := ss.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load settings: %w", err)
	}
	if set == nil {
		def := domain.DefaultSettings()
		set = &def
		if err := ss.Save(ctx, def); err != nil {
			// keep running on defaults, the store may come back
			log.Warn("settings_save_error", zap.Error(err))
		}
	}

	s := &MonitoringSession{
		log:      log,
		targets:  ts,
		results:  rs,
		settings: ss,
		sched:    newScheduler(*set),
	}

	if set.Enabled {
		targets, err := ts.List(ctx)
		if err != nil {
			return nil, fmt.Errorf("list targets: %w", err)
		}
		if len(targets) > 0 {
			s.sched.Start()
		}
	}
	return s, nil
}

// ---- target registry ----

// CreateTarget applies defaults and validates before persisting. Malformed
// targets are rejected here, synchronously, never deferred to probe time.
func (s *MonitoringSession) CreateTarget(ctx context.Context, t *domain.Target) error {
	t.ApplyDefaults()
	if err := t.Validate(); err != nil {
		return err
	}
	if err := s.targets.Add(ctx, t); err != nil {
		return fmt.Errorf("create target: %w", err)
	}
	s.log.Info("target_created",
		zap.String("target_id", string(t.ID)),
		zap.String("url", t.URL),
		zap.String("protocol", string(t.Protocol)),
	)

	// first target may satisfy the auto-start rule
	if !s.sched.Running() && s.sched.Settings().Enabled {
		s.sched.Start()
	}
	return nil
}

func (s *MonitoringSession) UpdateTarget(ctx context.Context, t *domain.Target) error {
	t.ApplyDefaults()
	if err := t.Validate(); err != nil {
		return err
	}
	if err := s.targets.Update(ctx, t); err != nil {
		return fmt.Errorf("update target: %w", err)
	}
	return nil
}

func (s *MonitoringSession) ListTargets(ctx context.Context) ([]domain.Target, error) {
	return s.targets.List(ctx)
}

func (s *MonitoringSession) GetTarget(ctx context.Context, id domain.TargetID) (*domain.Target, error) {
	return s.targets.Get(ctx, id)
}

// DeleteTarget cascades: the target's whole probe history goes with it.
func (s *MonitoringSession) DeleteTarget(ctx context.Context, id domain.TargetID) error {
	if err := s.results.DeleteByTarget(ctx, id); err != nil {
		return fmt.Errorf("delete target results: %w", err)
	}
	if err := s.targets.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete target: %w", err)
	}
	s.log.Info("target_deleted", zap.String("target_id", string(id)))
	return nil
}

// ---- settings ----

func (s *MonitoringSession) Settings() domain.Settings {
	return s.sched.Settings()
}

// UpdateSettings persists and propagates to the scheduler: interval or
// enabled changes restart the active timer so the new cadence applies
// immediately.
func (s *MonitoringSession) UpdateSettings(ctx context.Context, set domain.Settings) error {
	if err := set.Validate(); err != nil {
		return err
	}
	if err := s.settings.Save(ctx, set); err != nil {
		return fmt.Errorf("save settings: %w", err)
	}
	s.sched.Reconfigure(set)

	if set.Enabled && !s.sched.Running() {
		targets, err := s.targets.List(ctx)
		if err != nil {
			return fmt.Errorf("list targets: %w", err)
		}
		if len(targets) > 0 {
			s.sched.Start()
		}
	}
	s.log.Info("settings_updated",
		zap.Int("interval_minutes", set.IntervalMinutes),
		zap.Int("timeout_seconds", set.TimeoutSeconds),
		zap.Int("retries", set.Retries),
		zap.Bool("enabled", set.Enabled),
	)
	return nil
}

// ---- monitoring control ----

func (s *MonitoringSession) Start()        { s.sched.Start() }
func (s *MonitoringSession) Stop()         { s.sched.Stop() }
func (s *MonitoringSession) Running() bool { return s.sched.Running() }

func (s *MonitoringSession) Ping(ctx context.Context, id domain.TargetID) (*domain.ProbeResult, error) {
	return s.sched.ManualPing(ctx, id)
}

// Stats recomputes the uptime view for one target from its stored history.
func (s *MonitoringSession) Stats(ctx context.Context, id domain.TargetID) (*domain.UptimeStats, error) {
	if _, err := s.targets.Get(ctx, id); err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	history, err := s.results.Since(ctx, id, now.Add(-30*24*time.Hour))
	if err != nil {
		return nil, fmt.Errorf("load results: %w", err)
	}
	out := stats.Compute(id, history, now)

	// The newest result may predate the 30d window; status still follows it.
	if len(history) == 0 {
		last, err := s.results.Last(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("load last result: %w", err)
		}
		if last != nil {
			out.CurrentStatus = stats.CurrentState(last)
			ts := last.Timestamp
			out.LastCheck = &ts
		}
	}
	return &out, nil
}

// Results returns the most recent probe results, newest first.
func (s *MonitoringSession) Results(ctx context.Context, id domain.TargetID, limit int) ([]domain.ProbeResult, error) {
	if _, err := s.targets.Get(ctx, id); err != nil {
		return nil, err
	}
	return s.results.Recent(ctx, id, limit)
}

// Close stops the scheduler. Dispatched probes finish on their own budget.
func (s *MonitoringSession) Close() {
	s.sched.Stop()
}
