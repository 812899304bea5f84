package bus

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inkotake/ojoagent/internal/models"
)

func TestLogBatcher_FlushesOnCriticalLine(t *testing.T) {
	b := New()
	var mu sync.Mutex
	var received []string
	b.Subscribe(TopicTaskProgress, func(ctx context.Context, topic string, event models.ProgressEvent) {
		mu.Lock()
		received = append(received, event.Logs...)
		mu.Unlock()
	})

	lb := NewLogBatcher(b, 1, "cf_1", nil)
	lb.Write(context.Background(), "starting generator")
	lb.Write(context.Background(), "[gen] retry exceeded")

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, received, 2)
	assert.Equal(t, "starting generator", received[0])
	assert.Equal(t, "[gen] retry exceeded", received[1])
}

func TestLogBatcher_FlushesAtBatchSize(t *testing.T) {
	b := New()
	flushCount := 0
	b.Subscribe(TopicTaskProgress, func(ctx context.Context, topic string, event models.ProgressEvent) {
		flushCount++
	})

	lb := NewLogBatcher(b, 1, "cf_1", nil)
	for i := 0; i < MaxBatchLines; i++ {
		lb.Write(context.Background(), "ordinary line")
	}

	assert.Equal(t, 1, flushCount)
}

func TestLogBatcher_FlushesOnTimer(t *testing.T) {
	b := New()
	flushed := make(chan struct{}, 1)
	b.Subscribe(TopicTaskProgress, func(ctx context.Context, topic string, event models.ProgressEvent) {
		flushed <- struct{}{}
	})

	lb := NewLogBatcher(b, 1, "cf_1", nil)
	lb.Write(context.Background(), "ordinary line")

	select {
	case <-flushed:
	case <-time.After(time.Second):
		t.Fatal("expected timer-driven flush within 200ms + margin")
	}
}

func TestLogBatcher_FileBufferFlushesSeparately(t *testing.T) {
	b := New()
	var mu sync.Mutex
	var fileLines []string

	lb := NewLogBatcher(b, 1, "cf_1", func(lines []string) {
		mu.Lock()
		fileLines = append(fileLines, lines...)
		mu.Unlock()
	})

	for i := 0; i < FileFlushLines; i++ {
		lb.Write(context.Background(), "line")
	}

	mu.Lock()
	defer mu.Unlock()
	assert.Len(t, fileLines, FileFlushLines)
}

func TestLogBatcher_CloseForceFlushesBothBuffers(t *testing.T) {
	b := New()
	var busLines, fileLines []string
	var mu sync.Mutex

	b.Subscribe(TopicTaskProgress, func(ctx context.Context, topic string, event models.ProgressEvent) {
		mu.Lock()
		busLines = append(busLines, event.Logs...)
		mu.Unlock()
	})

	lb := NewLogBatcher(b, 1, "cf_1", func(lines []string) {
		mu.Lock()
		fileLines = append(fileLines, lines...)
		mu.Unlock()
	})

	lb.Write(context.Background(), "partial batch line")
	lb.Close(context.Background())

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"partial batch line"}, busLines)
	assert.Equal(t, []string{"partial batch line"}, fileLines)
}

func TestLogBatcher_WriteAfterCloseIsNoop(t *testing.T) {
	b := New()
	count := 0
	b.Subscribe(TopicTaskProgress, func(ctx context.Context, topic string, event models.ProgressEvent) {
		count++
	})

	lb := NewLogBatcher(b, 1, "cf_1", nil)
	lb.Close(context.Background())
	lb.Write(context.Background(), "[gen] should not be delivered")

	assert.Equal(t, 0, count)
}
