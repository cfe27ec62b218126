package control

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestChanged(t *testing.T) {
	assert.False(t, Changed("same", "same"))
	assert.True(t, Changed("a", "b"))
}

func TestLineDiffReturnsOnlyInsertedLines(t *testing.T) {
	previous := "line1\nline2\n"
	current := "line1\nline2\nline3\n"

	inserted := LineDiff(previous, current)
	assert.Equal(t, []string{"line3"}, inserted)
}

func TestLineDiffNoChangeReturnsNil(t *testing.T) {
	assert.Nil(t, LineDiff("same", "same"))
}
