package probe

import (
	"context"
	"time"

	"pulsemon/internal/domain"
)

// RetryChecker wraps a Checker with the sweep retry policy: up to Retries+1
// attempts, returning on the first success, otherwise the last non-success
// outcome with its error preserved. The delay between attempts is a fixed
// 1 second — no exponential backoff, polling is low-frequency.
type RetryChecker struct {
	Inner   Checker
	Retries int
	Delay   time.Duration
}

func NewRetryChecker(inner Checker, retries int) *RetryChecker {
	if retries < 0 {
		retries = 0
	}
	return &RetryChecker{Inner: inner, Retries: retries, Delay: time.Second}
}

func (r *RetryChecker) Check(ctx context.Context, target domain.Target, timeout time.Duration) Outcome {
	attempts := r.Retries + 1
	var last Outcome
	for i := 0; i < attempts; i++ {
		last = r.Inner.Check(ctx, target, timeout)
		if last.Status == domain.StatusSuccess {
			return last
		}
		if i < attempts-1 {
			select {
			case <-ctx.Done():
				return last
			case <-time.After(r.Delay):
			}
		}
	}
	return last
}
