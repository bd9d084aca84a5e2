// Package retry provides the exponential backoff schedule used by the Step
// Runner (spec.md §4.4). The delay calculation is adapted from the
// teacher's pkg/common/retry/coordinator.go calculateDelay, trimmed to the
// one policy spec.md actually specifies: the circuit-breaker and
// fix-provider machinery around it do not survive the adaptation (see
// DESIGN.md) because only the Step Runner retries in this engine —
// executors never do (spec.md §7).
package retry

import "time"

const (
	initialDelay = 1 * time.Second
	maxDelay     = 30 * time.Second
)

// Delay returns the backoff duration before retry attempt n (0-indexed):
// 1s, 2s, 4s, ... capped at 30s, matching spec.md §4.4's fixed schedule.
func Delay(attempt int) time.Duration {
	d := initialDelay
	for i := 0; i < attempt; i++ {
		d *= 2
		if d >= maxDelay {
			return maxDelay
		}
	}
	return d
}
