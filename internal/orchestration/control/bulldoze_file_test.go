package control

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteBulldozeStateFileRoundtrip(t *testing.T) {
	dir := t.TempDir()

	f := BulldozeStateFile{
		Current:   "implementing widget",
		Backlog:   []string{"write tests"},
		Completed: []string{"scaffold package"},
		Learnings: []string{"the CLI hangs on large diffs"},
	}
	require.NoError(t, WriteBulldozeStateFile(dir, "w1", f, 2))

	data, err := os.ReadFile(BulldozeStatePath(dir, "w1"))
	require.NoError(t, err)
	body := string(data)
	assert.Contains(t, body, "## Current")
	assert.Contains(t, body, "implementing widget")
	assert.Contains(t, body, "- write tests")
	assert.Contains(t, body, "Compaction Count: 2")
}

func TestWriteBulldozeStateFileLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, WriteBulldozeStateFile(dir, "w1", BulldozeStateFile{}, 0))

	entries, err := os.ReadDir(filepath.Join(dir, "tmp"))
	require.NoError(t, err)
	for _, e := range entries {
		assert.False(t, strings.HasPrefix(e.Name(), ".strategos-bulldoze-"), "leftover temp file: %s", e.Name())
	}
}

func TestRemoveBulldozeStateFileMissingIsNotError(t *testing.T) {
	dir := t.TempDir()
	assert.NoError(t, RemoveBulldozeStateFile(dir, "absent"))
}
