package lifecycle

import (
	"context"
	"os/exec"
	"time"

	"github.com/strategos/strategos/internal/orchestration/events"
	"github.com/strategos/strategos/internal/orchestration/health"
	"github.com/strategos/strategos/internal/orchestration/worker"
)

// CleanupCallbacks builds the health.Cleanup injected into
// health.Monitor.RunCleanup, wiring the periodic sweep back into this
// Engine's registry, dependency graph, and context-file locks (§4.5).
func (e *Engine) CleanupCallbacks() health.Cleanup {
	return health.Cleanup{
		KillWorker: func(ctx context.Context, id string) error {
			return e.KillWorker(ctx, id, KillOptions{Force: true, Reason: "cleanup_expired"})
		},
		DismissWorker: func(ctx context.Context, id string) error {
			_, err := e.Dismiss(ctx, id)
			return err
		},
		RemovePendingWorker: func(ctx context.Context, id string) error {
			return e.removePending(id)
		},
		HasLiveDependency:        e.hasLiveDependency,
		HasLiveOrHistoricalChild: e.hasLiveOrHistoricalChild,
		GCDependencyGraph:        e.gcDependencyGraph,
		PruneContextLocks:        e.pruneContextLocks,
		Snapshot:                 e.snapshotImmediate,
	}
}

func (e *Engine) removePending(id string) error {
	e.mu.Lock()
	delete(e.pending, id)
	e.mu.Unlock()

	if w, ok := e.registry.Get(id); ok {
		e.graph.Remove(id)
		e.registry.Delete(id)
		e.emit(events.WorkerDeleted, w, map[string]any{"reason": "pending_expired"})
		e.recordActivity(events.WorkerDeleted, id, "pending worker removed: no live dependency")
	}
	return nil
}

func (e *Engine) hasLiveDependency(id string) bool {
	w, ok := e.registry.Get(id)
	if !ok {
		return false
	}
	for _, dep := range w.DependsOn {
		if dw, ok := e.registry.Get(dep); ok {
			switch dw.Status {
			case worker.StatusCompleted, worker.StatusFailed, worker.StatusStopped:
			default:
				return true
			}
		}
	}
	return false
}

func (e *Engine) hasLiveOrHistoricalChild(id string) bool {
	w, ok := e.registry.Get(id)
	if !ok {
		return false
	}
	return len(w.ChildWorkerIDs) > 0 || len(w.ChildWorkerHistory) > 0
}

// gcDependencyGraph reclaims graph memory by running
// CleanupFinishedWorkflows for every workflow that has a registered worker,
// which drops that workflow's completed and failed nodes (§4.3).
func (e *Engine) gcDependencyGraph() {
	workflows := map[string]bool{}
	for _, w := range e.registry.All() {
		if w.WorkflowID != "" {
			workflows[w.WorkflowID] = true
		}
	}
	for wf := range workflows {
		e.graph.CleanupFinishedWorkflows(wf)
	}
}

func (e *Engine) pruneContextLocks() {
	live := map[string]bool{}
	for _, w := range e.registry.All() {
		live[w.WorkingDir] = true
	}
	e.writer.PruneLocks(live)
}

// InstallBulldozeCheckers wires the control.Loop's bulldoze hard-stop
// callbacks to this Engine's registry and working-directory git state
// (§4.4).
func (e *Engine) InstallBulldozeCheckers() {
	e.capture.SetLiveChildrenChecker(func(w *worker.Worker) bool {
		for _, childID := range w.ChildWorkerIDs {
			child, ok := e.registry.Get(childID)
			if !ok {
				continue
			}
			if child.Status == worker.StatusRunning && child.RalphStatus == worker.RalphInProgress {
				return true
			}
		}
		return false
	})
	e.capture.SetCommitChecker(hasNewCommitsSince)
}

// commitCheckWindow is how far back hasNewCommitsSince looks for a new
// commit on each bulldoze evaluation (§4.4, §6: "git log --since=<iso>").
const commitCheckWindow = 1 * time.Hour

func hasNewCommitsSince(workingDir string) bool {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	since := time.Now().Add(-commitCheckWindow).Format(time.RFC3339)
	//nolint:gosec // G204: fixed args, workingDir is validated against the project root at spawn time.
	cmd := exec.CommandContext(ctx, "git", "log", "--since="+since, "--format=%s")
	cmd.Dir = workingDir
	out, err := cmd.Output()
	return err == nil && len(out) > 0
}
