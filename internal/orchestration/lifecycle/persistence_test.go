package lifecycle

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/strategos/strategos/internal/orchestration/worker"
)

func TestToPersistedFromPersistedRoundTrip(t *testing.T) {
	w := &worker.Worker{
		ID: "w1", Label: "PRIVATE: scout", Project: "demo", WorkingDir: "/tmp/demo",
		SessionName: "strategos-w1", Status: worker.StatusRunning, Health: worker.HealthHealthy,
		DependsOn: []string{"w0"}, WorkflowID: "wf1", ChildWorkerIDs: []string{"w2"},
	}
	got := fromPersisted(toPersisted(w))
	assert.Equal(t, w.ID, got.ID)
	assert.Equal(t, w.Label, got.Label)
	assert.Equal(t, w.DependsOn, got.DependsOn)
	assert.Equal(t, w.ChildWorkerIDs, got.ChildWorkerIDs)
	assert.Equal(t, w.WorkflowID, got.WorkflowID)
}

func TestRestoreStateNoSnapshotIsNoOp(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.engine.RestoreState(context.Background()))
	assert.Empty(t, h.registry.All())
}

func TestRestoreStateSkipsOversizedSnapshot(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, os.MkdirAll(h.cfg.PersistDir, 0o755))
	big := make([]byte, MaxSnapshotBytes+1)
	require.NoError(t, os.WriteFile(filepath.Join(h.cfg.PersistDir, "workers.json"), big, 0o644))

	require.NoError(t, h.engine.RestoreState(context.Background()))
	assert.Empty(t, h.registry.All())
}

func TestRestoreStateSkipsCorruptSnapshot(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, os.MkdirAll(h.cfg.PersistDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(h.cfg.PersistDir, "workers.json"), []byte("not json"), 0o644))

	require.NoError(t, h.engine.RestoreState(context.Background()))
	assert.Empty(t, h.registry.All())
}

func TestRestoreStateMarksDeadZombieSession(t *testing.T) {
	h := newHarness(t)

	snap := snapshotFile{Timestamp: time.Now(), Workers: []persistedWorker{
		{ID: "w1", Label: "PRIVATE: scout", SessionName: "strategos-w1", Status: worker.StatusRunning},
	}}
	require.NoError(t, os.MkdirAll(h.cfg.PersistDir, 0o755))
	writeSnapshotForTest(t, h.cfg.PersistDir, snap)

	require.NoError(t, h.engine.RestoreState(context.Background()))

	got, ok := h.registry.Get("w1")
	require.True(t, ok)
	assert.Equal(t, worker.StatusFailed, got.Status)
	assert.Equal(t, worker.HealthDead, got.Health)
}

func TestRestoreStateRevivesLiveSession(t *testing.T) {
	h := newHarness(t)

	require.NoError(t, h.client.NewSession(context.Background(), "strategos-w1", t.TempDir(), "true"))

	snap := snapshotFile{Timestamp: time.Now(), Workers: []persistedWorker{
		{ID: "w1", Label: "PRIVATE: scout", SessionName: "strategos-w1", Status: worker.StatusRunning},
	}}
	require.NoError(t, os.MkdirAll(h.cfg.PersistDir, 0o755))
	writeSnapshotForTest(t, h.cfg.PersistDir, snap)

	require.NoError(t, h.engine.RestoreState(context.Background()))

	got, ok := h.registry.Get("w1")
	require.True(t, ok)
	assert.Equal(t, worker.StatusRunning, got.Status)
}

func TestRestoreStateMarksCrashedOnBareShellPane(t *testing.T) {
	h := newHarness(t)

	require.NoError(t, h.client.NewSession(context.Background(), "strategos-w1", t.TempDir(), "true"))
	h.client.SetPaneCommand("strategos-w1", "bash")

	snap := snapshotFile{Timestamp: time.Now(), Workers: []persistedWorker{
		{ID: "w1", Label: "PRIVATE: scout", SessionName: "strategos-w1", Status: worker.StatusRunning},
	}}
	require.NoError(t, os.MkdirAll(h.cfg.PersistDir, 0o755))
	writeSnapshotForTest(t, h.cfg.PersistDir, snap)

	require.NoError(t, h.engine.RestoreState(context.Background()))

	got, ok := h.registry.Get("w1")
	require.True(t, ok)
	assert.Equal(t, worker.StatusError, got.Status, "bare shell in the pane means the backend process died")
	assert.Equal(t, worker.HealthCrashed, got.Health)
}

func TestRestoreStateRequeuesPendingWorker(t *testing.T) {
	h := newHarness(t)

	snap := snapshotFile{Timestamp: time.Now(), Workers: []persistedWorker{
		{ID: "w1", Label: "PRIVATE: scout", SessionName: "strategos-w1", Status: worker.StatusPending, WorkingDir: "."},
	}}
	require.NoError(t, os.MkdirAll(h.cfg.PersistDir, 0o755))
	writeSnapshotForTest(t, h.cfg.PersistDir, snap)

	require.NoError(t, h.engine.RestoreState(context.Background()))

	h.engine.mu.Lock()
	_, pending := h.engine.pending["w1"]
	h.engine.mu.Unlock()
	assert.True(t, pending)
}

func TestRestoreStateTruncatesExcessWorkers(t *testing.T) {
	h := newHarness(t)

	var records []persistedWorker
	for i := 0; i < MaxRestoredWorkers+5; i++ {
		records = append(records, persistedWorker{
			ID: "w" + string(rune('a'+i%26)) + string(rune('0'+i/26)), SessionName: "strategos-w1", Status: worker.StatusPending, WorkingDir: ".",
		})
	}
	snap := snapshotFile{Timestamp: time.Now(), Workers: records}
	require.NoError(t, os.MkdirAll(h.cfg.PersistDir, 0o755))
	writeSnapshotForTest(t, h.cfg.PersistDir, snap)

	require.NoError(t, h.engine.RestoreState(context.Background()))
	assert.LessOrEqual(t, len(h.registry.All()), MaxRestoredWorkers)
}

func writeSnapshotForTest(t *testing.T, dir string, snap snapshotFile) {
	t.Helper()
	p := newPersistence(dir, time.Millisecond, func() snapshotFile { return snap }, nil)
	require.NoError(t, p.write(snap))
}
