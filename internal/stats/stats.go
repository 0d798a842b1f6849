// Package stats derives uptime views from a result history snapshot. All
// functions are pure: they take results ordered oldest first and never touch
// a store.
package stats

import (
	"time"

	"pulsemon/internal/domain"
)

// avgWindow is how many recent successful results feed the latency average.
const avgWindow = 10

// Uptime returns the availability percentage over the trailing window.
// No results in the window means 0, not undefined.
func Uptime(results []domain.ProbeResult, window time.Duration, now time.Time) float64 {
	cutoff := now.Add(-window)
	var total, successes int
	for _, r := range results {
		if r.Timestamp.Before(cutoff) {
			continue
		}
		total++
		if r.Status == domain.StatusSuccess {
			successes++
		}
	}
	if total == 0 {
		return 0
	}
	return float64(successes) / float64(total) * 100
}

// AvgResponseTime averages latency over the most recent avgWindow successful
// results. No qualifying results means 0, guarding against NaN.
func AvgResponseTime(results []domain.ProbeResult) float64 {
	var sum int64
	var n int
	for i := len(results) - 1; i >= 0 && n < avgWindow; i-- {
		if results[i].Status != domain.StatusSuccess {
			continue
		}
		sum += results[i].ResponseTimeMS
		n++
	}
	if n == 0 {
		return 0
	}
	return float64(sum) / float64(n)
}

// CurrentState derives up/down purely from the most recent result.
func CurrentState(last *domain.ProbeResult) domain.ServiceState {
	if last == nil {
		return domain.StateUnknown
	}
	if last.Status == domain.StatusSuccess {
		return domain.StateUp
	}
	return domain.StateDown
}

// Compute builds the full stats view for one target from its history,
// ordered oldest first.
func Compute(id domain.TargetID, results []domain.ProbeResult, now time.Time) domain.UptimeStats {
	s := domain.UptimeStats{
		TargetID:          id,
		Uptime24h:         Uptime(results, 24*time.Hour, now),
		Uptime7d:          Uptime(results, 7*24*time.Hour, now),
		Uptime30d:         Uptime(results, 30*24*time.Hour, now),
		AvgResponseTimeMS: AvgResponseTime(results),
	}
	if len(results) == 0 {
		s.CurrentStatus = domain.StateUnknown
		return s
	}
	last := results[len(results)-1]
	s.CurrentStatus = CurrentState(&last)
	ts := last.Timestamp
	s.LastCheck = &ts
	return s
}
