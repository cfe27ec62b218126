package history

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStoreStartStoreEndRoundtrip(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "history.db")
	store, err := Open(dbPath)
	require.NoError(t, err)
	defer store.Close()

	ctx := context.Background()
	before := time.Now().Add(-time.Second)

	require.NoError(t, store.StartSession(ctx, "sess1", "w1", "CAPTAIN: build"))
	require.NoError(t, store.StoreOutput(ctx, "sess1", "building..."))
	require.NoError(t, store.StoreOutput(ctx, "sess1", "done"))
	require.NoError(t, store.EndSession(ctx, "sess1"))

	lines, err := store.OutputSince(ctx, "sess1", before)
	require.NoError(t, err)
	assert.Equal(t, []string{"building...", "done"}, lines)
}

func TestStoreOutputSinceFutureCutoffIsEmpty(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "history.db")
	store, err := Open(dbPath)
	require.NoError(t, err)
	defer store.Close()

	ctx := context.Background()
	require.NoError(t, store.StartSession(ctx, "sess1", "w1", "label"))
	require.NoError(t, store.StoreOutput(ctx, "sess1", "line"))

	lines, err := store.OutputSince(ctx, "sess1", time.Now().Add(time.Hour))
	require.NoError(t, err)
	assert.Empty(t, lines)
}
