package concurrency

import (
	"sync/atomic"
	"time"
)

// CancelToken is a cooperative cancellation flag: every long-running loop
// (retries, polling, sleeps) probes it between iterations (spec §4.4).
// Distinct from context.Context because the Task Service also needs to
// inject an independent, externally-owned cancellation check (shutdown,
// task deletion) that short-circuits a running pipeline without the runner
// having to hand out its own token — see CancellationCheck below.
type CancelToken struct {
	cancelled atomic.Bool
}

// NewCancelToken returns a fresh, un-cancelled token.
func NewCancelToken() *CancelToken {
	return &CancelToken{}
}

// Cancel marks the token cancelled. Safe to call more than once or
// concurrently with Cancelled/probing goroutines.
func (t *CancelToken) Cancel() {
	t.cancelled.Store(true)
}

// Cancelled reports the current cancellation state.
func (t *CancelToken) Cancelled() bool {
	return t.cancelled.Load()
}

// CancellationCheck is an externally supplied probe a runner consults in
// addition to its own CancelToken, letting a higher layer (Task Service
// shutdown, explicit task deletion) short-circuit execution without owning
// the token itself.
type CancellationCheck func() bool

// Probe reports whether either the token or an external check (if non-nil)
// indicates cancellation.
func Probe(token *CancelToken, external CancellationCheck) bool {
	if token != nil && token.Cancelled() {
		return true
	}
	if external != nil && external() {
		return true
	}
	return false
}

// InterruptibleSleep sleeps up to d but wakes early, returning true, if probe
// reports cancellation. The probe is polled at a short fixed granularity so
// cancellation latency stays bounded regardless of d.
func InterruptibleSleep(d time.Duration, probe func() bool) (cancelled bool) {
	const pollInterval = 50 * time.Millisecond

	if d <= 0 {
		return probe != nil && probe()
	}

	deadline := time.Now().Add(d)
	for {
		if probe != nil && probe() {
			return true
		}
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return false
		}
		step := pollInterval
		if remaining < step {
			step = remaining
		}
		time.Sleep(step)
	}
}
