package adapter

import (
	"sync"
	"time"

	"github.com/sony/gobreaker"
)

// BreakerPool lazily builds one circuit breaker per adapter name, so a
// judge that starts timing out stops being hammered by every concurrent
// task targeting it, without one judge's outage tripping another's
// breaker. Registry owns one BreakerPool and runs every remote adapter
// call (FetchProblem, UploadTestcase, SubmitSolution/GetSubmissionStatus)
// through it via CallRemote; HealthCheckAll overlays the resulting breaker
// state onto each adapter's reported HealthStatus as degraded/unhealthy.
type BreakerPool struct {
	mu       sync.Mutex
	breakers map[string]*gobreaker.CircuitBreaker
	onTrip   func(adapterName string, to gobreaker.State)
}

// NewBreakerPool builds a BreakerPool. onTrip, if non-nil, is invoked on
// every state transition. The Registry builds its pool with a nil
// onTrip, so no callback runs there.
func NewBreakerPool(onTrip func(adapterName string, to gobreaker.State)) *BreakerPool {
	return &BreakerPool{breakers: make(map[string]*gobreaker.CircuitBreaker), onTrip: onTrip}
}

func (p *BreakerPool) breakerFor(name string) *gobreaker.CircuitBreaker {
	p.mu.Lock()
	defer p.mu.Unlock()

	if b, ok := p.breakers[name]; ok {
		return b
	}
	b := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 2,
		Interval:    10 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
		OnStateChange: func(breakerName string, from, to gobreaker.State) {
			if p.onTrip != nil {
				p.onTrip(breakerName, to)
			}
		},
	})
	p.breakers[name] = b
	return b
}

// Call runs fn through the named adapter's breaker.
func (p *BreakerPool) Call(name string, fn func() (any, error)) (any, error) {
	return p.breakerFor(name).Execute(fn)
}

// State reports the current breaker state for an adapter, or
// gobreaker.StateClosed if no calls have gone through it yet.
func (p *BreakerPool) State(name string) gobreaker.State {
	p.mu.Lock()
	defer p.mu.Unlock()
	if b, ok := p.breakers[name]; ok {
		return b.State()
	}
	return gobreaker.StateClosed
}
