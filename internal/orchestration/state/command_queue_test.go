package state

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommandQueueFIFOOrder(t *testing.T) {
	q := NewCommandQueue(0)
	require.NoError(t, q.Enqueue(QueuedCommand{ID: "1", Input: "a"}))
	require.NoError(t, q.Enqueue(QueuedCommand{ID: "2", Input: "b"}))

	cmd, ok := q.Dequeue()
	require.True(t, ok)
	assert.Equal(t, "1", cmd.ID)
	assert.Equal(t, 1, q.Len())
}

func TestCommandQueueFullReturnsError(t *testing.T) {
	q := NewCommandQueue(1)
	require.NoError(t, q.Enqueue(QueuedCommand{ID: "1"}))
	assert.ErrorIs(t, q.Enqueue(QueuedCommand{ID: "2"}), ErrCommandQueueFull)
}

func TestCommandQueueDrain(t *testing.T) {
	q := NewCommandQueue(0)
	_ = q.Enqueue(QueuedCommand{ID: "1"})
	_ = q.Enqueue(QueuedCommand{ID: "2"})

	drained := q.Drain()
	assert.Len(t, drained, 2)
	assert.Equal(t, 0, q.Len())
}

func TestCommandQueueDequeueEmpty(t *testing.T) {
	q := NewCommandQueue(0)
	_, ok := q.Dequeue()
	assert.False(t, ok)
}
