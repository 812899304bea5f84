package concurrency

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCancelToken(t *testing.T) {
	token := NewCancelToken()
	assert.False(t, token.Cancelled())
	token.Cancel()
	assert.True(t, token.Cancelled())
	token.Cancel() // idempotent
	assert.True(t, token.Cancelled())
}

func TestProbe(t *testing.T) {
	token := NewCancelToken()
	assert.False(t, Probe(token, nil))

	external := func() bool { return true }
	assert.True(t, Probe(token, external))

	token.Cancel()
	assert.True(t, Probe(token, nil))
}

func TestInterruptibleSleep_CompletesNaturally(t *testing.T) {
	start := time.Now()
	cancelled := InterruptibleSleep(30*time.Millisecond, func() bool { return false })
	elapsed := time.Since(start)

	assert.False(t, cancelled)
	assert.GreaterOrEqual(t, elapsed, 30*time.Millisecond)
}

func TestInterruptibleSleep_WakesEarlyOnCancellation(t *testing.T) {
	token := NewCancelToken()
	go func() {
		time.Sleep(10 * time.Millisecond)
		token.Cancel()
	}()

	start := time.Now()
	cancelled := InterruptibleSleep(2*time.Second, token.Cancelled)
	elapsed := time.Since(start)

	assert.True(t, cancelled)
	assert.Less(t, elapsed, 500*time.Millisecond)
}

func TestInterruptibleSleep_ZeroDurationProbesOnce(t *testing.T) {
	assert.True(t, InterruptibleSleep(0, func() bool { return true }))
	assert.False(t, InterruptibleSleep(0, func() bool { return false }))
}
