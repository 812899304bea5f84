package taskservice

import (
	"context"
	"testing"

	"github.com/inkotake/ojoagent/internal/concurrency"
	"github.com/inkotake/ojoagent/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newBareService() *Service {
	return &Service{
		workers:    concurrency.NewSemaphore("test-pool", 1),
		cancelToks: make(map[int64]*concurrency.CancelToken),
		retrying:   make(map[int64]bool),
	}
}

func TestCancelTask_UnknownTaskErrors(t *testing.T) {
	s := newBareService()
	err := s.CancelTask(999)
	require.Error(t, err)
}

func TestCancelTask_CancelsRegisteredToken(t *testing.T) {
	s := newBareService()
	tok := s.registerCancelToken(7)

	require.NoError(t, s.CancelTask(7))
	assert.True(t, tok.Cancelled())
}

func TestRetryTask_RefusesWhileTaskIsRunning(t *testing.T) {
	s := newBareService()
	s.registerCancelToken(7)

	err := s.RetryTask(context.Background(), 7, 1, models.ModuleAll, false, models.TaskConfig{})
	require.Error(t, err)
}

func TestRetryTask_RefusesConcurrentRetry(t *testing.T) {
	s := newBareService()
	s.retrying[7] = true

	err := s.RetryTask(context.Background(), 7, 1, models.ModuleAll, false, models.TaskConfig{})
	require.Error(t, err)
}
