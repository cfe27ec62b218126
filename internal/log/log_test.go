package log

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoggerWritesJSONLines(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, LevelDebug)

	l.Info(CatLifecycle, "worker spawned", "workerID", "abc123")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 1)

	var rec Record
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &rec))
	assert.Equal(t, "info", rec.LevelStr)
	assert.Equal(t, CatLifecycle, rec.Category)
	assert.Equal(t, "worker spawned", rec.Message)
	assert.Equal(t, "abc123", rec.Fields["workerID"])
}

func TestLoggerFiltersBelowMinLevel(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, LevelWarn)

	l.Debug(CatState, "noisy")
	l.Info(CatState, "still noisy")
	l.Warn(CatState, "important")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 1)
	assert.Contains(t, lines[0], "important")
}

func TestLoggerBroadcastsToBroker(t *testing.T) {
	l := New(&bytes.Buffer{}, LevelDebug)
	sub := l.Broker().Subscribe(context.Background())

	l.LogLifecycle("spawned", "", "workerID", "w1")

	env := <-sub
	assert.Equal(t, "lifecycle transition", env.Payload.Message)
	assert.Equal(t, "spawned", env.Payload.Fields["event"])
	assert.Equal(t, "w1", env.Payload.Fields["workerID"])
}
