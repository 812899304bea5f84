package bus

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/inkotake/ojoagent/internal/models"
)

func TestBus_ExactTopicSubscription(t *testing.T) {
	b := New()
	var got models.ProgressEvent
	b.Subscribe(TopicTaskStarted, func(ctx context.Context, topic string, event models.ProgressEvent) {
		got = event
	})

	b.Publish(context.Background(), TopicTaskStarted, models.ProgressEvent{TaskID: 7})
	assert.Equal(t, int64(7), got.TaskID)
}

func TestBus_DoesNotDeliverToUnrelatedExactTopic(t *testing.T) {
	b := New()
	called := false
	b.Subscribe(TopicTaskCompleted, func(ctx context.Context, topic string, event models.ProgressEvent) {
		called = true
	})

	b.Publish(context.Background(), TopicTaskStarted, models.ProgressEvent{TaskID: 1})
	assert.False(t, called)
}

func TestBus_PrefixWildcard(t *testing.T) {
	b := New()
	var topics []string
	b.Subscribe("adapter.*", func(ctx context.Context, topic string, event models.ProgressEvent) {
		topics = append(topics, topic)
	})

	b.Publish(context.Background(), "adapter.health", models.ProgressEvent{})
	b.Publish(context.Background(), "adapter.retry", models.ProgressEvent{})
	b.Publish(context.Background(), TopicTaskStarted, models.ProgressEvent{})

	assert.ElementsMatch(t, []string{"adapter.health", "adapter.retry"}, topics)
}

func TestBus_BareWildcardReceivesEverything(t *testing.T) {
	b := New()
	count := 0
	b.Subscribe(WildcardAll, func(ctx context.Context, topic string, event models.ProgressEvent) {
		count++
	})

	b.Publish(context.Background(), TopicTaskStarted, models.ProgressEvent{})
	b.Publish(context.Background(), "adapter.health", models.ProgressEvent{})
	b.Publish(context.Background(), "system.shutdown", models.ProgressEvent{})

	assert.Equal(t, 3, count)
}

func TestBus_MultipleSubscribersAllInvoked(t *testing.T) {
	b := New()
	var mu sync.Mutex
	calls := 0
	for i := 0; i < 3; i++ {
		b.Subscribe(TopicTaskProgress, func(ctx context.Context, topic string, event models.ProgressEvent) {
			mu.Lock()
			calls++
			mu.Unlock()
		})
	}

	b.Publish(context.Background(), TopicTaskProgress, models.ProgressEvent{})
	assert.Equal(t, 3, calls)
}

func TestBus_PanickingHandlerDoesNotBreakOthers(t *testing.T) {
	b := New()
	secondCalled := false

	b.Subscribe(TopicTaskFailed, func(ctx context.Context, topic string, event models.ProgressEvent) {
		panic("boom")
	})
	b.Subscribe(TopicTaskFailed, func(ctx context.Context, topic string, event models.ProgressEvent) {
		secondCalled = true
	})

	assert.NotPanics(t, func() {
		b.Publish(context.Background(), TopicTaskFailed, models.ProgressEvent{})
	})
	assert.True(t, secondCalled)
}
