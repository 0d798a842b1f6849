package probe

import (
	"context"
	"time"

	"pulsemon/internal/domain"
)

// Outcome is the unified result of a single probe attempt.
//
// StatusCode is 0 for transport/DNS errors and for DB probes without a
// bridged response. Text is a bounded body snippet, Size the full body
// length when it was read.
type Outcome struct {
	Status         domain.ProbeStatus
	ResponseTimeMS int64
	StatusCode     int
	Text           string
	Size           int64
	Message        string
}

// Checker performs a single probe attempt against a target within timeout.
type Checker interface {
	Check(ctx context.Context, target domain.Target, timeout time.Duration) Outcome
}

// Result converts an outcome into an immutable ProbeResult for target t.
func (o Outcome) Result(t domain.Target, at time.Time) *domain.ProbeResult {
	r := &domain.ProbeResult{
		TargetID:       t.ID,
		Timestamp:      at,
		Status:         o.Status,
		ResponseTimeMS: o.ResponseTimeMS,
		ResponseText:   o.Text,
	}
	if o.StatusCode != 0 {
		code := o.StatusCode
		r.StatusCode = &code
	}
	if o.Size > 0 {
		size := o.Size
		r.ResponseSize = &size
	}
	if o.Status != domain.StatusSuccess {
		r.ErrorMessage = o.Message
	}
	return r
}
