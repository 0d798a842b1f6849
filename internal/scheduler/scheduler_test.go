package scheduler

import (
	"context"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"pulsemon/internal/domain"
	"pulsemon/internal/probe"
	"pulsemon/internal/repo/memory"
)

// --- fakes ---

type countingChecker struct {
	mu    sync.Mutex
	calls map[domain.TargetID]int
	delay time.Duration
	out   probe.Outcome
}

func newCountingChecker(out probe.Outcome) *countingChecker {
	return &countingChecker{calls: map[domain.TargetID]int{}, out: out}
}

func (c *countingChecker) Check(ctx context.Context, t domain.Target, timeout time.Duration) probe.Outcome {
	if c.delay > 0 {
		time.Sleep(c.delay)
	}
	c.mu.Lock()
	c.calls[t.ID]++
	c.mu.Unlock()
	return c.out
}

func (c *countingChecker) count(id domain.TargetID) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls[id]
}

type fakeNotifier struct {
	mu     sync.Mutex
	titles []string
}

func (f *fakeNotifier) Send(ctx context.Context, title, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.titles = append(f.titles, title)
	return nil
}

func testSettings() domain.Settings {
	return domain.Settings{IntervalMinutes: 5, TimeoutSeconds: 1, Retries: 0, Enabled: true}
}

func addTarget(t *testing.T, store *memory.Store, id string, enabled bool) domain.Target {
	t.Helper()
	tgt := domain.Target{ID: domain.TargetID(id), URL: "https://" + id + ".example.com", Enabled: enabled}
	tgt.ApplyDefaults()
	if err := store.Add(context.Background(), &tgt); err != nil {
		t.Fatalf("add target: %v", err)
	}
	return tgt
}

// --- tests ---

func TestSweep_ProbesEnabledTargetsOnly(t *testing.T) {
	store := memory.New(0)
	addTarget(t, store, "on1", true)
	addTarget(t, store, "on2", true)
	addTarget(t, store, "off", false)

	chk := newCountingChecker(probe.Outcome{Status: domain.StatusSuccess, ResponseTimeMS: 5})
	s := New(zap.NewNop(), store, store, chk, nil, testSettings(), 4)

	s.Sweep(context.Background())

	if chk.count("on1") != 1 || chk.count("on2") != 1 {
		t.Fatalf("enabled targets should be probed once: on1=%d on2=%d", chk.count("on1"), chk.count("on2"))
	}
	if chk.count("off") != 0 {
		t.Fatalf("disabled target must not be probed, got %d", chk.count("off"))
	}

	last, err := store.Last(context.Background(), "on1")
	if err != nil || last == nil {
		t.Fatalf("sweep must record results: %v %v", last, err)
	}
	if last.Status != domain.StatusSuccess {
		t.Fatalf("unexpected result: %+v", last)
	}
}

func TestSweep_SlowTargetDoesNotSerialize(t *testing.T) {
	store := memory.New(0)
	for _, id := range []string{"a", "b", "c", "d"} {
		addTarget(t, store, id, true)
	}

	chk := newCountingChecker(probe.Outcome{Status: domain.StatusSuccess})
	chk.delay = 100 * time.Millisecond
	s := New(zap.NewNop(), store, store, chk, nil, testSettings(), 4)

	start := time.Now()
	s.Sweep(context.Background())
	elapsed := time.Since(start)

	// four targets at 100ms each: concurrent fan-out stays near one probe's
	// duration, sequential iteration would take 400ms+
	if elapsed > 300*time.Millisecond {
		t.Fatalf("sweep looks sequential: took %v", elapsed)
	}
}

func TestStartStop_StateMachine(t *testing.T) {
	store := memory.New(0)
	addTarget(t, store, "t1", true)

	chk := newCountingChecker(probe.Outcome{Status: domain.StatusSuccess})
	s := New(zap.NewNop(), store, store, chk, nil, testSettings(), 2)
	s.tick = time.Hour // keep the ticker out of the way

	if s.Running() {
		t.Fatalf("new scheduler must be stopped")
	}
	s.Start()
	if !s.Running() {
		t.Fatalf("want running after Start")
	}
	s.Start() // idempotent

	// immediate sweep fires on start
	deadline := time.Now().Add(time.Second)
	for chk.count("t1") == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if got := chk.count("t1"); got != 1 {
		t.Fatalf("want exactly one immediate sweep, got %d probes", got)
	}

	s.Stop()
	if s.Running() {
		t.Fatalf("want stopped after Stop")
	}
	s.Stop() // idempotent
}

func TestScheduler_PeriodicSweeps(t *testing.T) {
	store := memory.New(0)
	addTarget(t, store, "t1", true)

	chk := newCountingChecker(probe.Outcome{Status: domain.StatusSuccess})
	s := New(zap.NewNop(), store, store, chk, nil, testSettings(), 2)
	s.tick = 50 * time.Millisecond

	s.Start()
	defer s.Stop()

	deadline := time.Now().Add(2 * time.Second)
	for chk.count("t1") < 3 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if got := chk.count("t1"); got < 3 {
		t.Fatalf("expected recurring sweeps, got %d probes", got)
	}
}

func TestReconfigure_RestartsWithoutImmediateSweep(t *testing.T) {
	store := memory.New(0)
	addTarget(t, store, "t1", true)

	chk := newCountingChecker(probe.Outcome{Status: domain.StatusSuccess})
	s := New(zap.NewNop(), store, store, chk, nil, testSettings(), 2)
	s.tick = time.Hour

	s.Start()
	deadline := time.Now().Add(time.Second)
	for chk.count("t1") == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}

	set := testSettings()
	set.IntervalMinutes = 1
	s.Reconfigure(set)
	if !s.Running() {
		t.Fatalf("scheduler must stay running across a cadence change")
	}
	if s.Settings().IntervalMinutes != 1 {
		t.Fatalf("settings not applied")
	}

	// The restart arms a fresh timer; it must not run another immediate
	// sweep, the next one fires at now + new interval.
	time.Sleep(100 * time.Millisecond)
	if got := chk.count("t1"); got != 1 {
		t.Fatalf("reconfigure must not sweep immediately, got %d probes", got)
	}
	s.Stop()
}

func TestReconfigure_DisableStops(t *testing.T) {
	store := memory.New(0)
	addTarget(t, store, "t1", true)

	chk := newCountingChecker(probe.Outcome{Status: domain.StatusSuccess})
	s := New(zap.NewNop(), store, store, chk, nil, testSettings(), 2)
	s.tick = time.Hour

	s.Start()
	set := testSettings()
	set.Enabled = false
	s.Reconfigure(set)
	if s.Running() {
		t.Fatalf("disabling must stop the scheduler")
	}
}

func TestManualPing_RecordsResult(t *testing.T) {
	store := memory.New(0)
	tgt := addTarget(t, store, "t1", true)

	chk := newCountingChecker(probe.Outcome{Status: domain.StatusFailure, Message: "boom"})
	s := New(zap.NewNop(), store, store, chk, nil, testSettings(), 2)

	res, err := s.ManualPing(context.Background(), tgt.ID)
	if err != nil {
		t.Fatalf("ManualPing: %v", err)
	}
	if res.Status != domain.StatusFailure || res.ErrorMessage != "boom" {
		t.Fatalf("unexpected result: %+v", res)
	}

	last, _ := store.Last(context.Background(), tgt.ID)
	if last == nil || last.ErrorMessage != "boom" {
		t.Fatalf("manual ping must be recorded like a sweep result: %+v", last)
	}
}

func TestManualPing_UnknownTarget(t *testing.T) {
	store := memory.New(0)
	chk := newCountingChecker(probe.Outcome{Status: domain.StatusSuccess})
	s := New(zap.NewNop(), store, store, chk, nil, testSettings(), 2)

	if _, err := s.ManualPing(context.Background(), "missing"); err == nil {
		t.Fatalf("expected error for unknown target")
	}
}

// gateChecker parks every Check call until release closes, so a test can
// hold several probes in flight at once.
type gateChecker struct {
	entered chan struct{}
	release chan struct{}
	out     probe.Outcome
}

func (g *gateChecker) Check(ctx context.Context, t domain.Target, timeout time.Duration) probe.Outcome {
	g.entered <- struct{}{}
	<-g.release
	return g.out
}

func TestConcurrentProbes_SingleTransitionAlert(t *testing.T) {
	store := memory.New(0)
	tgt := addTarget(t, store, "t1", true)

	ctx := context.Background()
	up := &domain.ProbeResult{TargetID: tgt.ID, Timestamp: time.Now().UTC(), Status: domain.StatusSuccess}
	if err := store.Append(ctx, up); err != nil {
		t.Fatalf("seed result: %v", err)
	}

	n := &fakeNotifier{}
	chk := &gateChecker{
		entered: make(chan struct{}),
		release: make(chan struct{}),
		out:     probe.Outcome{Status: domain.StatusFailure, Message: "down"},
	}
	s := New(zap.NewNop(), store, store, chk, n, testSettings(), 2)

	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = s.ManualPing(ctx, tgt.ID)
		}()
	}
	<-chk.entered
	<-chk.entered // both probes in flight over the same up -> down flip
	close(chk.release)
	wg.Wait()

	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.titles) != 1 || n.titles[0] != "Target DOWN" {
		t.Fatalf("one flip must alert once regardless of probe interleaving, got %v", n.titles)
	}
	recent, _ := store.Recent(ctx, tgt.ID, 0)
	if len(recent) != 3 {
		t.Fatalf("both probe results must still be recorded, got %d", len(recent))
	}
}

func TestNotifyTransition_DownAndRecovery(t *testing.T) {
	store := memory.New(0)
	tgt := addTarget(t, store, "t1", true)

	n := &fakeNotifier{}
	chk := newCountingChecker(probe.Outcome{Status: domain.StatusFailure, Message: "down"})
	s := New(zap.NewNop(), store, store, chk, n, testSettings(), 2)

	ctx := context.Background()
	_, _ = s.ManualPing(ctx, tgt.ID) // up -> down (first result)
	_, _ = s.ManualPing(ctx, tgt.ID) // still down, no repeat alert

	chk.out = probe.Outcome{Status: domain.StatusSuccess}
	_, _ = s.ManualPing(ctx, tgt.ID) // down -> up

	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.titles) != 2 {
		t.Fatalf("want exactly one DOWN and one RECOVERED alert, got %v", n.titles)
	}
	if n.titles[0] != "Target DOWN" || n.titles[1] != "Target RECOVERED" {
		t.Fatalf("unexpected alert sequence: %v", n.titles)
	}
}
