package git

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func initRepo(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	run := func(args ...string) {
		cmd := exec.Command("git", args...)
		cmd.Dir = dir
		cmd.Env = append(os.Environ(),
			"GIT_AUTHOR_NAME=test", "GIT_AUTHOR_EMAIL=test@example.com",
			"GIT_COMMITTER_NAME=test", "GIT_COMMITTER_EMAIL=test@example.com",
		)
		out, err := cmd.CombinedOutput()
		require.NoErrorf(t, err, "git %v: %s", args, out)
	}
	run("init", "-q")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "f.txt"), []byte("a"), 0o644))
	run("add", ".")
	run("commit", "-q", "-m", "initial")
	return dir
}

func TestStatusPorcelainClean(t *testing.T) {
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not available")
	}
	dir := initRepo(t)
	e := NewRealExecutor()
	out, err := e.StatusPorcelain(context.Background(), dir)
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestStatusPorcelainDirty(t *testing.T) {
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not available")
	}
	dir := initRepo(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "new.txt"), []byte("x"), 0o644))

	e := NewRealExecutor()
	out, err := e.StatusPorcelain(context.Background(), dir)
	require.NoError(t, err)
	assert.Contains(t, out, "new.txt")
}

func TestLogSinceReturnsSubjects(t *testing.T) {
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not available")
	}
	dir := initRepo(t)
	e := NewRealExecutor()
	lines, err := e.LogSince(context.Background(), dir, "100 years ago")
	require.NoError(t, err)
	require.Len(t, lines, 1)
	assert.Equal(t, "initial", lines[0])
}

func TestRunTimesOut(t *testing.T) {
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not available")
	}
	dir := initRepo(t)
	e := &RealExecutor{Timeout: time.Nanosecond}
	_, err := e.StatusPorcelain(context.Background(), dir)
	assert.Error(t, err)
}
