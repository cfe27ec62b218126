package state

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOutputBufferAppendAndTail(t *testing.T) {
	b := NewOutputBuffer(0)
	b.Append("one")
	b.Append("two")
	b.Append("three")

	assert.Equal(t, []string{"one", "two", "three"}, b.Lines())
	assert.Equal(t, []string{"two", "three"}, b.Tail(2))
	assert.Equal(t, []string{"one", "two", "three"}, b.Tail(100))
}

func TestOutputBufferEvictsOldestPastByteBound(t *testing.T) {
	b := NewOutputBuffer(10)
	b.Append(strings.Repeat("a", 6))
	b.Append(strings.Repeat("b", 6))

	lines := b.Lines()
	assert.Equal(t, []string{strings.Repeat("b", 6)}, lines)
}

func TestOutputBufferClear(t *testing.T) {
	b := NewOutputBuffer(0)
	b.Append("one")
	b.Clear()
	assert.Empty(t, b.Lines())
}
