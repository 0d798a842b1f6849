package probe

import (
	"context"
	"fmt"
	"time"

	"pulsemon/internal/bridge"
	"pulsemon/internal/domain"
)

// DBChecker validates a database connection string and, when a bridging
// service is configured, delegates the real connectivity check to it.
// Without a bridge (or when the bridge is unreachable) it degrades to a
// syntax-only heuristic; that mode is always flagged in the outcome text so
// it can never be mistaken for a genuine connection test.
type DBChecker struct {
	Bridge *bridge.Client // nil = syntax-only mode
}

func NewDBChecker(b *bridge.Client) *DBChecker {
	return &DBChecker{Bridge: b}
}

func (d *DBChecker) Check(ctx context.Context, target domain.Target, timeout time.Duration) Outcome {
	// Validation also runs at target creation; re-parsing here keeps the
	// checker safe against targets persisted before validation tightened.
	info, err := domain.ParseConnString(target.URL)
	if err != nil {
		return Outcome{
			Status:  domain.StatusFailure,
			Message: err.Error(),
		}
	}

	if d.Bridge != nil {
		out, err := d.checkViaBridge(ctx, target, info, timeout)
		if err == nil {
			return out
		}
		// Bridge unreachable: fall through to the heuristic, flagged.
		return Outcome{
			Status:         domain.StatusSuccess,
			ResponseTimeMS: 0,
			Text:           fmt.Sprintf("syntax-only check passed (%v: %v)", domain.ErrBackendUnavailable, err),
		}
	}

	return Outcome{
		Status: domain.StatusSuccess,
		Text:   "syntax-only check passed (no bridging service configured)",
	}
}

func (d *DBChecker) checkViaBridge(ctx context.Context, target domain.Target, info *domain.ConnInfo, timeout time.Duration) (Outcome, error) {
	cctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	resp, err := d.Bridge.CheckConnection(cctx, bridge.CheckRequest{
		URI:       target.URL,
		Database:  info.Database,
		Operation: "ping",
	})
	if err != nil {
		if cctx.Err() == context.DeadlineExceeded {
			return Outcome{
				Status:         domain.StatusTimeout,
				ResponseTimeMS: timeout.Milliseconds(),
				Message:        fmt.Sprintf("%v after %s", domain.ErrTimeout, timeout),
			}, nil
		}
		return Outcome{}, err
	}

	if !resp.OK() {
		msg := resp.Error
		if msg == "" {
			msg = resp.Message
		}
		return Outcome{
			Status:         domain.StatusFailure,
			ResponseTimeMS: resp.ResponseTimeMS,
			Message:        fmt.Sprintf("%v: %s", domain.ErrNetworkFailure, msg),
		}, nil
	}

	return Outcome{
		Status:         domain.StatusSuccess,
		ResponseTimeMS: resp.ResponseTimeMS,
		Text:           "bridge connectivity check passed",
	}, nil
}
