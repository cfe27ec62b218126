package lifecycle

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/strategos/strategos/internal/log"
	"github.com/strategos/strategos/internal/orchestration/events"
	"github.com/strategos/strategos/internal/orchestration/tracing"
	"github.com/strategos/strategos/internal/orchestration/worker"
)

// AutoCleanupDelay is how long a completed worker lingers before
// TeardownWorker runs, when autoCleanup is requested (§4.6).
const AutoCleanupDelay = 30 * time.Second

// CompleteWorker marks id completed, starts any dependents that are now
// ready, dispatches its onComplete action, and (if autoCleanup and the
// worker is not protected) schedules its teardown (§4.6).
func (e *Engine) CompleteWorker(ctx context.Context, id string, autoCleanup bool) (err error) {
	ctx, span := e.traceOp(ctx, "complete", attribute.String(tracing.AttrWorkerID, id))
	defer func() { endSpan(span, err) }()

	w, ok := e.registry.Get(id)
	if !ok {
		return fmt.Errorf("lifecycle: unknown worker %q", id)
	}
	if w.Status == worker.StatusCompleted {
		return nil // idempotent
	}
	switch w.Status {
	case worker.StatusRunning, worker.StatusError, worker.StatusAwaitingReview:
	default:
		return fmt.Errorf("lifecycle: worker %q in status %q cannot complete", id, w.Status)
	}

	ready := e.graph.MarkCompleted(id)

	w.Status = worker.StatusCompleted
	w.CompletedAt = time.Now()
	e.emit(events.WorkerCompleted, w, nil)
	e.recordActivity(events.WorkerCompleted, id, fmt.Sprintf("worker %s completed", w.Label))

	for _, depID := range ready {
		e.emit(events.DependenciesTriggered, w, map[string]any{"dependent": depID})
		if err := e.StartPendingWorker(ctx, depID); err != nil {
			e.logger.Warn(log.CatLifecycle, "starting ready dependent failed", "workerId", depID, "error", err.Error())
		} else if dep, ok := e.registry.Get(depID); ok {
			e.emit(events.WorkerDependenciesSatisfied, dep, nil)
		}
	}

	if action := e.pendingOnComplete(id); action != nil {
		e.dispatchOnComplete(ctx, w, *action)
	}

	if autoCleanup && !w.IsProtected() {
		t := time.AfterFunc(AutoCleanupDelay, func() {
			_ = e.KillWorker(context.Background(), id, KillOptions{Reason: "auto_cleanup"})
		})
		e.addTimer(id, t)
	}

	e.snapshotRequest()
	return nil
}

// pendingOnComplete looks up the onComplete action stored for a worker at
// spawn time. Actions are kept in the spawn options captured when the
// worker activated; since SpawnOptions are not retained on the live
// Worker record (only the allowlisted fields are), the Engine tracks them
// separately, keyed by worker id.
func (e *Engine) pendingOnComplete(id string) *OnCompleteAction {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.onComplete[id]
}
