package health

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMatchesCrashDetectsKnownSignatures(t *testing.T) {
	_, ok := MatchesCrash("Fatal error: out of memory")
	assert.True(t, ok)

	_, ok = MatchesCrash("all good here")
	assert.False(t, ok)
}
