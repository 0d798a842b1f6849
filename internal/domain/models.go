package domain

import (
	"fmt"
	"net/url"
	"time"
)

type TargetID string

type Protocol string

const (
	ProtocolHTTP Protocol = "http"
	ProtocolDB   Protocol = "db"
)

// ProbeStatus is the outcome of a single probe attempt.
type ProbeStatus string

const (
	StatusSuccess ProbeStatus = "success"
	StatusFailure ProbeStatus = "failure"
	StatusTimeout ProbeStatus = "timeout"
)

// ServiceState is the derived up/down view of a target.
type ServiceState string

const (
	StateUp      ServiceState = "up"
	StateDown    ServiceState = "down"
	StateUnknown ServiceState = "unknown"
)

// DefaultExpectedStatus is applied when a target is created without an
// explicit expected-status set.
var DefaultExpectedStatus = []int{200, 201, 202, 204}

type Target struct {
	ID             TargetID          `json:"id"`
	Name           string            `json:"name"`
	URL            string            `json:"url"`
	Protocol       Protocol          `json:"protocol"`
	Method         string            `json:"method,omitempty"`
	Headers        map[string]string `json:"headers,omitempty"`
	Body           string            `json:"body,omitempty"`
	ExpectedStatus []int             `json:"expected_status"`
	ExpectedText   string            `json:"expected_text,omitempty"`
	Enabled        bool              `json:"enabled"`
	TimeoutSeconds int               `json:"timeout_seconds,omitempty"` // 0 = inherit from settings
	CreatedAt      time.Time         `json:"created_at"`
}

// ApplyDefaults fills in method, headers and the expected-status set for
// fields the caller left empty.
func (t *Target) ApplyDefaults() {
	if t.Protocol == "" {
		t.Protocol = ProtocolHTTP
	}
	if t.Method == "" {
		t.Method = "GET"
	}
	if t.Headers == nil {
		t.Headers = map[string]string{}
	}
	if len(t.ExpectedStatus) == 0 {
		t.ExpectedStatus = append([]int(nil), DefaultExpectedStatus...)
	}
}

// Validate rejects malformed targets. Violations are ConfigurationError and
// must be reported to the caller at create/update time, not at probe time.
func (t *Target) Validate() error {
	if t.URL == "" {
		return fmt.Errorf("%w: url is required", ErrConfiguration)
	}
	if t.Protocol != ProtocolHTTP && t.Protocol != ProtocolDB {
		return fmt.Errorf("%w: unknown protocol %q", ErrConfiguration, t.Protocol)
	}
	switch t.Protocol {
	case ProtocolHTTP:
		u, err := url.Parse(t.URL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("%w: invalid url %q", ErrConfiguration, t.URL)
		}
	case ProtocolDB:
		if _, err := ParseConnString(t.URL); err != nil {
			return err
		}
	}
	if len(t.ExpectedStatus) == 0 {
		return fmt.Errorf("%w: expected_status must not be empty", ErrConfiguration)
	}
	return nil
}

// ExpectsStatus reports whether code is in the target's expected-status set.
func (t *Target) ExpectsStatus(code int) bool {
	for _, c := range t.ExpectedStatus {
		if c == code {
			return true
		}
	}
	return false
}

// EffectiveTimeout returns the per-target override when set, else fallback.
func (t *Target) EffectiveTimeout(fallback time.Duration) time.Duration {
	if t.TimeoutSeconds > 0 {
		return time.Duration(t.TimeoutSeconds) * time.Second
	}
	return fallback
}

// ProbeResult is immutable once created. ResponseText is a bounded snippet
// (MaxResponseText bytes), not the full body.
type ProbeResult struct {
	ID             int64       `json:"id"`
	TargetID       TargetID    `json:"target_id"`
	Timestamp      time.Time   `json:"timestamp"`
	Status         ProbeStatus `json:"status"`
	ResponseTimeMS int64       `json:"response_time_ms"`
	StatusCode     *int        `json:"status_code,omitempty"`
	ResponseText   string      `json:"response_text,omitempty"`
	ResponseSize   *int64      `json:"response_size,omitempty"`
	ErrorMessage   string      `json:"error_message,omitempty"`
}

// MaxResponseText bounds the body snippet kept in a ProbeResult.
const MaxResponseText = 1024

// DefaultRetention is the per-target result cap.
const DefaultRetention = 1000

// Settings is the monitoring-scope singleton read by the scheduler each
// cycle. Changing IntervalMinutes or Enabled while running must restart the
// active timer.
type Settings struct {
	IntervalMinutes int  `json:"interval_minutes"`
	TimeoutSeconds  int  `json:"timeout_seconds"`
	Retries         int  `json:"retries"`
	Enabled         bool `json:"enabled"`
}

func DefaultSettings() Settings {
	return Settings{
		IntervalMinutes: 5,
		TimeoutSeconds:  10,
		Retries:         2,
		Enabled:         true,
	}
}

func (s Settings) Validate() error {
	if s.IntervalMinutes < 1 {
		return fmt.Errorf("%w: interval_minutes must be >= 1", ErrConfiguration)
	}
	if s.TimeoutSeconds < 1 {
		return fmt.Errorf("%w: timeout_seconds must be >= 1", ErrConfiguration)
	}
	if s.Retries < 0 {
		return fmt.Errorf("%w: retries must be >= 0", ErrConfiguration)
	}
	return nil
}

func (s Settings) Interval() time.Duration { return time.Duration(s.IntervalMinutes) * time.Minute }
func (s Settings) Timeout() time.Duration  { return time.Duration(s.TimeoutSeconds) * time.Second }

// UptimeStats is a pure projection over a target's result history. It is
// recomputed on demand and never persisted.
type UptimeStats struct {
	TargetID          TargetID     `json:"target_id"`
	Uptime24h         float64      `json:"uptime_24h"`
	Uptime7d          float64      `json:"uptime_7d"`
	Uptime30d         float64      `json:"uptime_30d"`
	AvgResponseTimeMS float64      `json:"avg_response_time_ms"`
	LastCheck         *time.Time   `json:"last_check,omitempty"`
	CurrentStatus     ServiceState `json:"current_status"`
}
