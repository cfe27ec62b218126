package pubsub

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBrokerPublishSubscribe(t *testing.T) {
	b := New[string]()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sub := b.Subscribe(ctx)
	b.Publish("greeting", "hello")

	select {
	case env := <-sub:
		assert.Equal(t, Topic("greeting"), env.Topic)
		assert.Equal(t, "hello", env.Payload)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}
}

func TestBrokerSubscribeClosedOnContextCancel(t *testing.T) {
	b := New[int]()
	ctx, cancel := context.WithCancel(context.Background())
	sub := b.Subscribe(ctx)
	cancel()

	require.Eventually(t, func() bool {
		b.mu.RLock()
		defer b.mu.RUnlock()
		return b.SubscriberCount() == 0
	}, time.Second, time.Millisecond)

	_, ok := <-sub
	assert.False(t, ok)
}

func TestBrokerPublishNonBlockingWhenFull(t *testing.T) {
	b := NewSized[int](1)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sub := b.Subscribe(ctx)

	done := make(chan struct{})
	go func() {
		for i := 0; i < 10; i++ {
			b.Publish("n", i)
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publish blocked on slow subscriber")
	}
	<-sub
}

func TestBrokerCloseClosesSubscribers(t *testing.T) {
	b := New[int]()
	sub := b.Subscribe(context.Background())
	b.Close()

	_, ok := <-sub
	assert.False(t, ok)

	// Publish and Subscribe after Close are no-ops, not panics.
	b.Publish("x", 1)
	closedSub := b.Subscribe(context.Background())
	_, ok = <-closedSub
	assert.False(t, ok)
}
