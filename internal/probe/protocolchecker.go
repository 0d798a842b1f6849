package probe

import (
	"context"
	"fmt"
	"time"

	"pulsemon/internal/domain"
)

// ProtocolChecker dispatches to the checker matching the target's protocol.
type ProtocolChecker struct {
	HTTP Checker
	DB   Checker
}

func NewProtocolChecker(http, db Checker) *ProtocolChecker {
	return &ProtocolChecker{HTTP: http, DB: db}
}

func (p *ProtocolChecker) Check(ctx context.Context, target domain.Target, timeout time.Duration) Outcome {
	switch target.Protocol {
	case domain.ProtocolHTTP:
		return p.HTTP.Check(ctx, target, timeout)
	case domain.ProtocolDB:
		return p.DB.Check(ctx, target, timeout)
	default:
		return Outcome{
			Status:  domain.StatusFailure,
			Message: fmt.Sprintf("%v: unknown protocol %q", domain.ErrConfiguration, target.Protocol),
		}
	}
}
