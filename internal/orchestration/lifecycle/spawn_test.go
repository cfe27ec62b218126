package lifecycle

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/strategos/strategos/internal/orchestration/templates"
	"github.com/strategos/strategos/internal/orchestration/worker"
)

func TestSpawnActivatesImmediatelyWhenNoDependencies(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	w, err := h.engine.Spawn(ctx, ".", "COLONEL: lead", SpawnOptions{})
	require.NoError(t, err)
	assert.Equal(t, worker.StatusRunning, w.Status)

	has, err := h.client.HasSession(ctx, w.SessionName)
	require.NoError(t, err)
	assert.True(t, has)
}

func TestSpawnQueuesWhenDependencyUnsatisfied(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	dep := &worker.Worker{ID: "dep1", Status: worker.StatusRunning, SessionName: "strategos-dep1"}
	h.registry.Put(dep)
	require.NoError(t, h.graph.RegisterWorker(dep.ID, "", nil))

	w, err := h.engine.Spawn(ctx, ".", "PRIVATE: scout", SpawnOptions{DependsOn: []string{"dep1"}})
	require.NoError(t, err)
	assert.Equal(t, worker.StatusPending, w.Status)

	has, err := h.client.HasSession(ctx, w.SessionName)
	require.NoError(t, err)
	assert.False(t, has)
}

func TestSpawnTreatsMissingDependencyAsSatisfied(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	w, err := h.engine.Spawn(ctx, ".", "PRIVATE: scout", SpawnOptions{DependsOn: []string{"ghost"}})
	require.NoError(t, err)
	assert.Equal(t, worker.StatusRunning, w.Status)
}

func TestStartPendingWorkerActivatesQueuedSpawn(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	dep := &worker.Worker{ID: "dep1", Status: worker.StatusRunning, SessionName: "strategos-dep1"}
	h.registry.Put(dep)
	require.NoError(t, h.graph.RegisterWorker(dep.ID, "", nil))

	w, err := h.engine.Spawn(ctx, ".", "PRIVATE: scout", SpawnOptions{DependsOn: []string{"dep1"}})
	require.NoError(t, err)
	require.Equal(t, worker.StatusPending, w.Status)

	require.NoError(t, h.engine.StartPendingWorker(ctx, w.ID))

	got, ok := h.registry.Get(w.ID)
	require.True(t, ok)
	assert.Equal(t, worker.StatusRunning, got.Status)
}

func TestSpawnRejectsDuplicateLabelAndProject(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.engine.Spawn(ctx, ".", "PRIVATE: scout", SpawnOptions{})
	require.NoError(t, err)

	_, err = h.engine.Spawn(ctx, ".", "PRIVATE: scout", SpawnOptions{})
	assert.Error(t, err)
}

func TestSpawnAllowsDuplicateWhenRequested(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.engine.Spawn(ctx, ".", "PRIVATE: scout", SpawnOptions{})
	require.NoError(t, err)

	_, err = h.engine.Spawn(ctx, ".", "PRIVATE: scout", SpawnOptions{AllowDuplicate: true})
	assert.NoError(t, err)
}

func TestSpawnFailsAtCapacity(t *testing.T) {
	h := newHarness(t)
	h.cfg.MaxActiveWorkers = 1
	h.engine.cfg.MaxActiveWorkers = 1
	ctx := context.Background()

	_, err := h.engine.Spawn(ctx, ".", "PRIVATE: one", SpawnOptions{})
	require.NoError(t, err)

	_, err = h.engine.Spawn(ctx, ".", "PRIVATE: two", SpawnOptions{})
	assert.ErrorIs(t, err, ErrAtCapacity)
}

func TestSpawnTripsBreakerOnSessionFailure(t *testing.T) {
	h := newHarness(t)
	h.client.NewSessionErr = assert.AnError
	ctx := context.Background()

	_, err := h.engine.Spawn(ctx, ".", "PRIVATE: scout", SpawnOptions{})
	assert.Error(t, err)

	for i := 1; i < h.cfg.CircuitBreakerThreshold; i++ {
		_, err = h.engine.Spawn(ctx, ".", "PRIVATE: scout", SpawnOptions{})
		assert.Error(t, err)
	}
	assert.True(t, h.engine.CircuitBreakerStatus())
}

func TestBuildBackendCommandRestrictsReadOnlyRoles(t *testing.T) {
	cmd := buildBackendCommand(worker.BackendClaude, templates.RoleGeneral)
	assert.Contains(t, cmd, "--disallowedTools")
	assert.Contains(t, cmd, readOnlyToolList)
}

func TestBuildBackendCommandGemini(t *testing.T) {
	cmd := buildBackendCommand(worker.BackendGemini, templates.RoleGeneral)
	assert.Equal(t, "gemini --yolo", cmd)
}
