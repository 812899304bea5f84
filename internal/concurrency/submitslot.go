package concurrency

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// DefaultMinSubmitInterval is the process-global minimum spacing between
// consecutive submits to any adapter of the same kind (spec §4.2.2 step 5).
const DefaultMinSubmitInterval = time.Second

// SubmitSlot serializes judge submissions per adapter: only one submit (plus
// its immediately-following first-poll delay) may be in flight for a given
// adapter name at a time, and consecutive submits to that adapter are spaced
// by at least a minimum interval (spec §4.2.2 step 5, §8.1 invariant 4).
//
// The slot is deliberately per-adapter-name, not global across all adapters:
// two tasks submitting to different destination judges must not block each
// other, only concurrent submits to the *same* judge.
type SubmitSlot struct {
	minInterval time.Duration

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	slots    map[string]chan struct{} // capacity-1 channel, held for submit+first-poll
}

// NewSubmitSlot builds a SubmitSlot enforcing minInterval between submits to
// the same adapter (use DefaultMinSubmitInterval when unset).
func NewSubmitSlot(minInterval time.Duration) *SubmitSlot {
	if minInterval <= 0 {
		minInterval = DefaultMinSubmitInterval
	}
	return &SubmitSlot{
		minInterval: minInterval,
		limiters:    make(map[string]*rate.Limiter),
		slots:       make(map[string]chan struct{}),
	}
}

func (s *SubmitSlot) limiterFor(adapter string) *rate.Limiter {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.limiters[adapter]
	if !ok {
		// burst of 1: never allow two submits to race ahead of the interval.
		l = rate.NewLimiter(rate.Every(s.minInterval), 1)
		s.limiters[adapter] = l
	}
	return l
}

func (s *SubmitSlot) channelFor(adapter string) chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	ch, ok := s.slots[adapter]
	if !ok {
		ch = make(chan struct{}, 1)
		s.slots[adapter] = ch
	}
	return ch
}

// Hold blocks until it is this caller's turn to submit to adapter (respecting
// both the minimum interval and mutual exclusion with any other submit to the
// same adapter currently in its first-poll window), then returns a release
// function the caller must defer-call once the first poll has completed.
// Hold returns an error only if ctx is cancelled while waiting, in which case
// it holds nothing and the caller must not call release.
func (s *SubmitSlot) Hold(ctx context.Context, adapter string) (release func(), err error) {
	ch := s.channelFor(adapter)

	select {
	case ch <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	limiter := s.limiterFor(adapter)
	if err := limiter.Wait(ctx); err != nil {
		<-ch
		return nil, fmt.Errorf("concurrency: waiting for submit slot on %q: %w", adapter, err)
	}

	return func() { <-ch }, nil
}
