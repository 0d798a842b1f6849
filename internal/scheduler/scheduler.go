package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"pulsemon/internal/domain"
	"pulsemon/internal/notify"
	"pulsemon/internal/probe"
	"pulsemon/internal/repo"
)

// Scheduler drives periodic sweeps over all enabled targets. It is a small
// state machine: Stopped -> Running -> Stopped. Stop cancels the timer loop
// only; probes already dispatched run to completion or their own timeout and
// their results are still recorded.
type Scheduler struct {
	log         *zap.Logger
	targets     repo.TargetStore
	results     repo.ResultStore
	checker     probe.Checker
	notifier    notify.Notifier
	concurrency int

	mu       sync.Mutex
	settings domain.Settings
	cancel   context.CancelFunc

	recMu     sync.Mutex
	recording map[domain.TargetID]*sync.Mutex

	// test hook: overrides settings.Interval() when > 0
	tick time.Duration
}

func New(
	log *zap.Logger,
	ts repo.TargetStore,
	rs repo.ResultStore,
	checker probe.Checker,
	notifier notify.Notifier,
	settings domain.Settings,
	concurrency int,
) *Scheduler {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Scheduler{
		log:         log,
		targets:     ts,
		results:     rs,
		checker:     checker,
		notifier:    notifier,
		settings:    settings,
		concurrency: concurrency,
		recording:   make(map[domain.TargetID]*sync.Mutex),
	}
}

func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cancel != nil
}

func (s *Scheduler) Settings() domain.Settings {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.settings
}

// Start arms the timer and runs an immediate full sweep. No-op when already
// running.
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.startLocked(true)
}

func (s *Scheduler) startLocked(immediate bool) {
	if s.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	go s.run(ctx, s.intervalLocked(), immediate)
	s.log.Info("scheduler_started",
		zap.Int("interval_minutes", s.settings.IntervalMinutes),
		zap.Bool("immediate_sweep", immediate),
	)
}

// Stop cancels the timer and transitions to Stopped. In-flight probes are
// not aborted.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopLocked()
}

func (s *Scheduler) stopLocked() {
	if s.cancel == nil {
		return
	}
	s.cancel()
	s.cancel = nil
	s.log.Info("scheduler_stopped")
}

// Reconfigure applies new settings. While running, a cadence change restarts
// the timer so the next sweep fires at now + new interval, never at the
// stale prior time; flipping Enabled off stops the scheduler.
func (s *Scheduler) Reconfigure(set domain.Settings) {
	s.mu.Lock()
	defer s.mu.Unlock()
	wasRunning := s.cancel != nil
	s.settings = set
	if wasRunning {
		s.stopLocked()
	}
	if set.Enabled && wasRunning {
		s.startLocked(false)
	}
}

func (s *Scheduler) intervalLocked() time.Duration {
	if s.tick > 0 {
		return s.tick
	}
	return s.settings.Interval()
}

func (s *Scheduler) run(ctx context.Context, interval time.Duration, immediate bool) {
	t := time.NewTicker(interval)
	defer t.Stop()

	if immediate {
		s.Sweep(ctx)
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			s.Sweep(ctx)
		}
	}
}

// Sweep probes every enabled target concurrently and waits for the fan-in.
// Probes run on background-derived contexts so a Stop during the sweep does
// not abort them; each bounds itself by its own timeout and retry budget.
func (s *Scheduler) Sweep(ctx context.Context) {
	set := s.Settings()
	targets, err := s.targets.List(ctx)
	if err != nil {
		s.log.Warn("sweep_list_error", zap.Error(err))
		return
	}

	sem := make(chan struct{}, s.concurrency)
	var wg sync.WaitGroup
	for _, tgt := range targets {
		if !tgt.Enabled {
			continue
		}
		t := tgt
		sem <- struct{}{}
		wg.Add(1)
		go func() {
			defer func() { <-sem }()
			defer wg.Done()
			s.probeTarget(context.Background(), t, set)
		}()
	}
	wg.Wait()
}

// ManualPing runs one retrying probe for a single target outside the
// schedule. The result is recorded identically to a scheduled sweep.
func (s *Scheduler) ManualPing(ctx context.Context, id domain.TargetID) (*domain.ProbeResult, error) {
	t, err := s.targets.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("manual ping: %w", err)
	}
	return s.probeTarget(ctx, *t, s.Settings()), nil
}

func (s *Scheduler) probeTarget(ctx context.Context, t domain.Target, set domain.Settings) *domain.ProbeResult {
	rc := probe.NewRetryChecker(s.checker, set.Retries)
	timeout := t.EffectiveTimeout(set.Timeout())

	out := rc.Check(ctx, t, timeout)
	res := out.Result(t, time.Now().UTC())

	// Read-previous, append and alert run under a per-target lock so a sweep
	// racing a manual ping cannot observe the same previous result and emit
	// duplicate transition alerts.
	lock := s.recordLock(t.ID)
	lock.Lock()
	defer lock.Unlock()

	prev, err := s.results.Last(ctx, t.ID)
	if err != nil {
		s.log.Warn("probe_last_error", zap.String("target_id", string(t.ID)), zap.Error(err))
	}

	if err := s.results.Append(ctx, res); err != nil {
		s.log.Warn("probe_append_error",
			zap.String("target_id", string(t.ID)),
			zap.String("url", t.URL),
			zap.Error(err),
		)
	} else {
		s.log.Debug("probe_recorded",
			zap.String("target_id", string(t.ID)),
			zap.String("url", t.URL),
			zap.String("status", string(res.Status)),
			zap.Int64("response_ms", res.ResponseTimeMS),
			zap.String("error", res.ErrorMessage),
		)
	}

	s.notifyTransition(ctx, t, prev, res)
	return res
}

func (s *Scheduler) recordLock(id domain.TargetID) *sync.Mutex {
	s.recMu.Lock()
	defer s.recMu.Unlock()
	m, ok := s.recording[id]
	if !ok {
		m = &sync.Mutex{}
		s.recording[id] = m
	}
	return m
}

// notifyTransition sends a best-effort alert when a target flips between up
// and down. The first recorded failure for a target also alerts.
func (s *Scheduler) notifyTransition(ctx context.Context, t domain.Target, prev, cur *domain.ProbeResult) {
	if s.notifier == nil {
		return
	}
	wasUp := prev == nil || prev.Status == domain.StatusSuccess
	nowUp := cur.Status == domain.StatusSuccess
	if wasUp == nowUp {
		return
	}

	title := "Target DOWN"
	text := fmt.Sprintf("%s (%s)\nstatus: %s", t.Name, t.URL, cur.Status)
	if nowUp {
		title = "Target RECOVERED"
	} else if cur.ErrorMessage != "" {
		text += "\n" + cur.ErrorMessage
	}
	if err := s.notifier.Send(ctx, title, text); err != nil {
		s.log.Warn("notify_error", zap.String("target_id", string(t.ID)), zap.Error(err))
	}
}
