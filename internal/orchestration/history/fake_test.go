package history

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFakeStoreRecordsAndQueriesOutput(t *testing.T) {
	f := NewFake()
	ctx := context.Background()

	require.NoError(t, f.StartSession(ctx, "s1", "w1", "CAPTAIN: build"))
	before := time.Now()
	require.NoError(t, f.StoreOutput(ctx, "s1", "line one"))
	require.NoError(t, f.StoreOutput(ctx, "s1", "line two"))
	require.NoError(t, f.EndSession(ctx, "s1"))

	lines, err := f.OutputSince(ctx, "s1", before)
	require.NoError(t, err)
	assert.Equal(t, []string{"line one", "line two"}, lines)
}

func TestFakeStoreOutputSinceExcludesEarlierLines(t *testing.T) {
	f := NewFake()
	ctx := context.Background()
	require.NoError(t, f.StartSession(ctx, "s1", "w1", "label"))
	require.NoError(t, f.StoreOutput(ctx, "s1", "old"))

	cutoff := time.Now().Add(time.Hour)
	lines, err := f.OutputSince(ctx, "s1", cutoff)
	require.NoError(t, err)
	assert.Empty(t, lines)
}
