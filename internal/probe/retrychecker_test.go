package probe

import (
	"context"
	"testing"
	"time"

	"pulsemon/internal/domain"
)

// fake checker you can control
type fakeChecker struct {
	outcomes []Outcome
	calls    int
}

func (f *fakeChecker) Check(ctx context.Context, target domain.Target, timeout time.Duration) Outcome {
	if f.calls >= len(f.outcomes) {
		return Outcome{Status: domain.StatusFailure, Message: "no more"}
	}
	out := f.outcomes[f.calls]
	f.calls++
	return out
}

func TestRetryChecker_StopsOnFirstSuccess(t *testing.T) {
	f := &fakeChecker{outcomes: []Outcome{
		{Status: domain.StatusFailure, Message: "first fail"},
		{Status: domain.StatusSuccess},
		{Status: domain.StatusFailure, Message: "never reached"},
	}}
	rc := NewRetryChecker(f, 5)
	rc.Delay = time.Millisecond

	out := rc.Check(context.Background(), domain.Target{}, time.Second)
	if out.Status != domain.StatusSuccess {
		t.Fatalf("expected success after retry, got %+v", out)
	}
	if f.calls != 2 {
		t.Fatalf("expected 2 attempts, got %d", f.calls)
	}
}

func TestRetryChecker_LastErrorPreserved(t *testing.T) {
	f := &fakeChecker{outcomes: []Outcome{
		{Status: domain.StatusFailure, Message: "fail one"},
		{Status: domain.StatusFailure, Message: "fail two"},
		{Status: domain.StatusTimeout, Message: "fail three"},
	}}
	rc := NewRetryChecker(f, 2)
	rc.Delay = time.Millisecond

	out := rc.Check(context.Background(), domain.Target{}, time.Second)
	if f.calls != 3 {
		t.Fatalf("retries=2 must mean exactly 3 attempts, got %d", f.calls)
	}
	if out.Message != "fail three" {
		t.Fatalf("expected last attempt's error, got %q", out.Message)
	}
	if out.Status != domain.StatusTimeout {
		t.Fatalf("expected last attempt's status, got %s", out.Status)
	}
}

func TestRetryChecker_ZeroRetriesSingleAttempt(t *testing.T) {
	f := &fakeChecker{outcomes: []Outcome{{Status: domain.StatusFailure, Message: "only"}}}
	rc := NewRetryChecker(f, 0)
	rc.Delay = time.Millisecond

	out := rc.Check(context.Background(), domain.Target{}, time.Second)
	if f.calls != 1 {
		t.Fatalf("expected a single attempt, got %d", f.calls)
	}
	if out.Message != "only" {
		t.Fatalf("unexpected outcome: %+v", out)
	}
}

func TestRetryChecker_DefaultDelayIsOneSecond(t *testing.T) {
	rc := NewRetryChecker(&fakeChecker{}, 1)
	if rc.Delay != time.Second {
		t.Fatalf("inter-retry delay must default to 1s, got %v", rc.Delay)
	}
}
