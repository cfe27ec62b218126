package tmux

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFakeSessionLifecycle(t *testing.T) {
	f := NewFake()
	ctx := context.Background()

	require.NoError(t, f.NewSession(ctx, "s1", "/tmp", "echo hi"))
	exists, _ := f.HasSession(ctx, "s1")
	assert.True(t, exists)

	f.SetPane("s1", "hello world")
	pane, err := f.CapturePane(ctx, "s1", 500)
	require.NoError(t, err)
	assert.Equal(t, "hello world", pane)

	require.NoError(t, f.SendKeys(ctx, "s1", "echo test", true))
	assert.Equal(t, []string{"echo test\n"}, f.SentKeys("s1"))

	require.NoError(t, f.KillSession(ctx, "s1"))
	exists, _ = f.HasSession(ctx, "s1")
	assert.False(t, exists)
}

func TestFakeOperationsOnMissingSessionError(t *testing.T) {
	f := NewFake()
	ctx := context.Background()

	_, err := f.CapturePane(ctx, "nope", 0)
	assert.Error(t, err)

	err = f.SendKeys(ctx, "nope", "x", false)
	assert.Error(t, err)
}
