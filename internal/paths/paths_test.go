package paths

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveProjectDirInsideRoot(t *testing.T) {
	root := t.TempDir()
	got, err := ResolveProjectDir(root, "myproject")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "myproject"), got)
}

func TestResolveProjectDirTraversalRejected(t *testing.T) {
	root := t.TempDir()
	_, err := ResolveProjectDir(root, "../escape")
	assert.ErrorIs(t, err, ErrOutsideRoot)
}

func TestResolveProjectDirAbsoluteOutsideRejected(t *testing.T) {
	root := t.TempDir()
	_, err := ResolveProjectDir(root, "/etc/passwd")
	assert.ErrorIs(t, err, ErrOutsideRoot)
}

func TestResolveProjectDirRootItself(t *testing.T) {
	root := t.TempDir()
	got, err := ResolveProjectDir(root, ".")
	require.NoError(t, err)
	assert.Equal(t, filepath.Clean(root), got)
}

func TestValidSessionName(t *testing.T) {
	assert.True(t, ValidSessionName("worker_ab12-3"))
	assert.False(t, ValidSessionName(""))
	assert.False(t, ValidSessionName("has space"))
	assert.False(t, ValidSessionName("semi;colon"))
}

func TestProjectBasename(t *testing.T) {
	assert.Equal(t, "myproject", ProjectBasename("/thea/root/myproject"))
	assert.Equal(t, "myproject", ProjectBasename("/thea/root/myproject/"))
}
