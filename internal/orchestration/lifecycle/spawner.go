package lifecycle

import (
	"context"
	"fmt"

	"github.com/strategos/strategos/internal/orchestration/health"
	"github.com/strategos/strategos/internal/orchestration/worker"
)

var _ health.Spawner = (*Engine)(nil)

// Respawn tears down a crashed worker's dead session and spawns a
// replacement in the same working directory with the same task and parent
// relation (§4.5 crash recovery, §4.6).
func (e *Engine) Respawn(ctx context.Context, workerID string) error {
	w, ok := e.registry.Get(workerID)
	if !ok {
		return fmt.Errorf("lifecycle: unknown worker %q", workerID)
	}

	opts := SpawnOptions{
		TaskID:         w.TaskID,
		WorkflowID:     w.WorkflowID,
		ParentWorkerID: w.ParentWorkerID,
		ParentLabel:    w.ParentLabel,
		Backend:        w.Backend,
		RalphMode:      w.RalphMode,
		AutoAccept:     w.AutoAccept,
		BulldozeMode:   w.BulldozeMode,
		AllowDuplicate: true,
		Task: &TaskSpec{
			Purpose: "Resume the task you were working on before your session ended unexpectedly.",
		},
	}

	if err := e.KillWorker(ctx, workerID, KillOptions{Force: true, Reason: "crash_respawn"}); err != nil {
		return fmt.Errorf("lifecycle: tearing down crashed worker: %w", err)
	}

	_, err := e.Spawn(ctx, w.WorkingDir, w.Label, opts)
	return err
}

// PromoteToDone runs the shared completion path for a Ralph worker that
// has reached its progress/keyword threshold (§4.5).
func (e *Engine) PromoteToDone(ctx context.Context, workerID string) error {
	w, ok := e.registry.Get(workerID)
	if !ok {
		return fmt.Errorf("lifecycle: unknown worker %q", workerID)
	}
	w.RalphStatus = worker.RalphDone
	return e.CompleteWorker(ctx, workerID, true)
}
