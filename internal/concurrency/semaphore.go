// Package concurrency holds the primitives the pipeline runner is built on:
// named semaphores bounding remote/local resource usage, cooperative
// cancellation, interruptible sleeps, and a generic retry-with-backoff
// helper. None of it is pipeline-specific; internal/pipeline and
// internal/adapter are the callers.
package concurrency

import (
	"context"
	"fmt"
	"time"
)

// ErrAcquireTimeout is returned by Acquire when the timeout elapses before a
// slot becomes free.
type ErrAcquireTimeout struct {
	Slot    string
	Timeout time.Duration
}

func (e *ErrAcquireTimeout) Error() string {
	return fmt.Sprintf("concurrency: timed out acquiring %q slot after %s", e.Slot, e.Timeout)
}

// Semaphore is a named, counted resource slot.
type Semaphore struct {
	name string
	ch   chan struct{}
}

// NewSemaphore builds a semaphore with the given number of slots.
func NewSemaphore(name string, slots int) *Semaphore {
	if slots < 1 {
		slots = 1
	}
	return &Semaphore{name: name, ch: make(chan struct{}, slots)}
}

// Acquire blocks until a slot is free, ctx is cancelled, or timeout elapses
// (timeout <= 0 means "wait forever, bounded only by ctx").
func (s *Semaphore) Acquire(ctx context.Context, timeout time.Duration) (release func(), err error) {
	var timer *time.Timer
	var timeoutCh <-chan time.Time
	if timeout > 0 {
		timer = time.NewTimer(timeout)
		timeoutCh = timer.C
		defer timer.Stop()
	}

	select {
	case s.ch <- struct{}{}:
		return func() { <-s.ch }, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-timeoutCh:
		return nil, &ErrAcquireTimeout{Slot: s.name, Timeout: timeout}
	}
}

// InUse returns the number of currently held slots, for health/metrics reporting.
func (s *Semaphore) InUse() int {
	return len(s.ch)
}

// Capacity returns the total number of slots.
func (s *Semaphore) Capacity() int {
	return cap(s.ch)
}

// Default slot sizes (spec §4.4); the remote-write slot must stay strictly
// below the remote-read slot to respect judge rate limits.
const (
	DefaultLLMSlots         = 2
	DefaultRemoteReadSlots  = 2
	DefaultRemoteWriteSlots = 1
	DefaultCompileSlots     = 1
)

// SemaphorePool bundles the four named slots the pipeline runner acquires
// from at each stage.
type SemaphorePool struct {
	LLM         *Semaphore
	RemoteRead  *Semaphore
	RemoteWrite *Semaphore
	Compile     *Semaphore
}

// PoolConfig configures slot counts; zero values fall back to the spec defaults.
type PoolConfig struct {
	LLMSlots         int
	RemoteReadSlots  int
	RemoteWriteSlots int
	CompileSlots     int
}

// NewSemaphorePool builds a pool from cfg, applying spec defaults for any
// zero field. It panics if RemoteWriteSlots >= RemoteReadSlots, since that
// invariant is load-bearing for judge rate-limit safety (spec §4.4) and a
// misconfiguration here should fail fast at startup, not silently overload
// a judge in production.
func NewSemaphorePool(cfg PoolConfig) *SemaphorePool {
	if cfg.LLMSlots <= 0 {
		cfg.LLMSlots = DefaultLLMSlots
	}
	if cfg.RemoteReadSlots <= 0 {
		cfg.RemoteReadSlots = DefaultRemoteReadSlots
	}
	if cfg.RemoteWriteSlots <= 0 {
		cfg.RemoteWriteSlots = DefaultRemoteWriteSlots
	}
	if cfg.CompileSlots <= 0 {
		cfg.CompileSlots = DefaultCompileSlots
	}
	if cfg.RemoteWriteSlots >= cfg.RemoteReadSlots {
		panic(fmt.Sprintf("concurrency: remote-write slots (%d) must be strictly fewer than remote-read slots (%d)",
			cfg.RemoteWriteSlots, cfg.RemoteReadSlots))
	}

	return &SemaphorePool{
		LLM:         NewSemaphore("llm", cfg.LLMSlots),
		RemoteRead:  NewSemaphore("remote-read", cfg.RemoteReadSlots),
		RemoteWrite: NewSemaphore("remote-write", cfg.RemoteWriteSlots),
		Compile:     NewSemaphore("compile", cfg.CompileSlots),
	}
}
