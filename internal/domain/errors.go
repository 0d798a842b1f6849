package domain

import "errors"

// Probe error taxonomy. Probe-time failures are captured inside the
// ProbeResult and never cross the scheduler boundary; ErrConfiguration is
// the only kind reported synchronously (at target create/update).
var (
	// ErrNetworkFailure covers connection and DNS errors.
	ErrNetworkFailure = errors.New("network failure")

	// ErrTimeout means the probe exceeded its configured duration.
	ErrTimeout = errors.New("timeout")

	// ErrAssertion means the response arrived but failed a status-code or
	// body-text expectation.
	ErrAssertion = errors.New("assertion failed")

	// ErrConfiguration means the target itself is malformed (bad URI,
	// missing credentials or database name).
	ErrConfiguration = errors.New("configuration error")

	// ErrBackendUnavailable means the DB bridging service was unreachable.
	// The probe degrades to a syntax-only check and the result must say so.
	ErrBackendUnavailable = errors.New("bridging service unavailable")
)
