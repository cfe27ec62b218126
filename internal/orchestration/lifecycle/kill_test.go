package lifecycle

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/strategos/strategos/internal/orchestration/worker"
)

func TestKillWorkerIsIdempotent(t *testing.T) {
	h := newHarness(t)
	assert.NoError(t, h.engine.KillWorker(context.Background(), "ghost", KillOptions{}))
}

func TestKillWorkerRefusesUnprotectedWithoutForceIfSelfKill(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	w, err := h.engine.Spawn(ctx, ".", "PRIVATE: scout", SpawnOptions{})
	require.NoError(t, err)

	err = h.engine.KillWorker(ctx, w.ID, KillOptions{CallerWorkerID: w.ID})
	assert.Error(t, err)
}

func TestKillWorkerRequiresForceForProtected(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	w, err := h.engine.Spawn(ctx, ".", "GENERAL: lead", SpawnOptions{})
	require.NoError(t, err)

	err = h.engine.KillWorker(ctx, w.ID, KillOptions{})
	assert.Error(t, err)

	_, ok := h.registry.Get(w.ID)
	assert.True(t, ok, "protected worker must survive an unforced kill attempt")

	require.NoError(t, h.engine.KillWorker(ctx, w.ID, KillOptions{Force: true}))
	_, ok = h.registry.Get(w.ID)
	assert.False(t, ok)
}

func TestKillWorkerBlocksNonAncestorCaller(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	target, err := h.engine.Spawn(ctx, ".", "PRIVATE: target", SpawnOptions{})
	require.NoError(t, err)
	unrelated, err := h.engine.Spawn(ctx, ".", "PRIVATE: unrelated", SpawnOptions{})
	require.NoError(t, err)

	err = h.engine.KillWorker(ctx, target.ID, KillOptions{CallerWorkerID: unrelated.ID})
	assert.Error(t, err)
}

func TestKillWorkerAllowsAncestorCaller(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	parent, err := h.engine.Spawn(ctx, ".", "PRIVATE: parent", SpawnOptions{})
	require.NoError(t, err)
	child, err := h.engine.Spawn(ctx, ".", "PRIVATE: child", SpawnOptions{ParentWorkerID: parent.ID})
	require.NoError(t, err)

	require.NoError(t, h.engine.KillWorker(ctx, child.ID, KillOptions{CallerWorkerID: parent.ID}))
}

func TestKillWorkerReparentsChildrenToGrandparent(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	grandparent, err := h.engine.Spawn(ctx, ".", "PRIVATE: grandparent", SpawnOptions{})
	require.NoError(t, err)
	parent, err := h.engine.Spawn(ctx, ".", "PRIVATE: parent", SpawnOptions{ParentWorkerID: grandparent.ID})
	require.NoError(t, err)
	child, err := h.engine.Spawn(ctx, ".", "PRIVATE: child", SpawnOptions{ParentWorkerID: parent.ID})
	require.NoError(t, err)

	require.NoError(t, h.engine.KillWorker(ctx, parent.ID, KillOptions{Force: true}))

	gotChild, ok := h.registry.Get(child.ID)
	require.True(t, ok)
	assert.Equal(t, grandparent.ID, gotChild.ParentWorkerID)

	gotGrandparent, ok := h.registry.Get(grandparent.ID)
	require.True(t, ok)
	assert.Contains(t, gotGrandparent.ChildWorkerIDs, child.ID)
}

func TestKillWorkerCascadesFailureToDependents(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	parent, err := h.engine.Spawn(ctx, ".", "PRIVATE: parent", SpawnOptions{})
	require.NoError(t, err)
	dep := &worker.Worker{ID: "dep1", Status: worker.StatusPending, DependsOn: []string{parent.ID}}
	h.registry.Put(dep)
	require.NoError(t, h.graph.RegisterWorker(dep.ID, "", []string{parent.ID}))

	require.NoError(t, h.engine.KillWorker(ctx, parent.ID, KillOptions{Force: true}))

	got, ok := h.registry.Get("dep1")
	require.True(t, ok)
	assert.Equal(t, worker.StatusFailed, got.Status)
}

func TestDismissCapturesUncommittedStatusBestEffort(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	w, err := h.engine.Spawn(ctx, ".", "PRIVATE: scout", SpawnOptions{})
	require.NoError(t, err)

	_, err = h.engine.Dismiss(ctx, w.ID)
	require.NoError(t, err)

	_, ok := h.registry.Get(w.ID)
	assert.False(t, ok)
}
