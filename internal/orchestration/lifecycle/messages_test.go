package lifecycle

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/strategos/strategos/internal/orchestration/worker"
)

func TestNewRalphTokenIsUniqueAndHexEncoded(t *testing.T) {
	a := newRalphToken()
	b := newRalphToken()
	assert.NotEqual(t, a, b)
	assert.Len(t, a, 32)
}

func TestInitialMessageProtectedWithNoTask(t *testing.T) {
	w := &worker.Worker{Label: "GENERAL: lead"}
	assert.Equal(t, "Awaiting orders.", initialMessage(w, nil))
}

func TestInitialMessageUnprotectedWithNoTask(t *testing.T) {
	w := &worker.Worker{Label: "PRIVATE: scout"}
	assert.Contains(t, initialMessage(w, nil), "no assigned task")
}

func TestInitialMessageWithTaskFormatsStructured(t *testing.T) {
	w := &worker.Worker{Label: "PRIVATE: scout"}
	task := &TaskSpec{
		Purpose:         "Ship the feature",
		SuccessCriteria: []string{"tests pass"},
		KeySteps:        []string{"write code"},
		Constraints:     []string{"no breaking changes"},
	}
	msg := initialMessage(w, task)
	assert.Contains(t, msg, "Purpose: Ship the feature")
	assert.Contains(t, msg, "Success criteria:")
	assert.Contains(t, msg, "- tests pass")
	assert.Contains(t, msg, "Key steps:")
	assert.Contains(t, msg, "Constraints:")
}

func TestEscapeMessageTextStripsControlCharacters(t *testing.T) {
	assert.Equal(t, "a b", escapeMessageText("a\nb"))
	assert.Equal(t, "a b", escapeMessageText("a\rb"))
	assert.Equal(t, "ab", escapeMessageText("a\x07b"))
}
