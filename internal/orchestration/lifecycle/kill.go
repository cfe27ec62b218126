package lifecycle

import (
	"context"
	"fmt"
	"os/exec"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/strategos/strategos/internal/log"
	"github.com/strategos/strategos/internal/orchestration/control"
	"github.com/strategos/strategos/internal/orchestration/events"
	"github.com/strategos/strategos/internal/orchestration/tracing"
	"github.com/strategos/strategos/internal/orchestration/worker"
)

// GitStatusTimeout bounds the best-effort `git status --porcelain` call
// Dismiss makes before tearing a worker down (§4.6, §6).
const GitStatusTimeout = 5 * time.Second

// KillOptions carries KillWorker's optional arguments (§4.6).
type KillOptions struct {
	Force          bool
	CallerWorkerID string
	Reason         string
}

// KillWorker tears down id, idempotent if it is already gone (§4.6).
func (e *Engine) KillWorker(ctx context.Context, id string, opts KillOptions) (err error) {
	ctx, span := e.traceOp(ctx, "kill", attribute.String(tracing.AttrWorkerID, id), attribute.String(tracing.AttrReason, opts.Reason))
	defer func() { endSpan(span, err) }()

	w, ok := e.registry.Get(id)
	if !ok {
		return nil // idempotent
	}

	if opts.CallerWorkerID != "" {
		if opts.CallerWorkerID == id {
			return fmt.Errorf("lifecycle: a worker cannot kill itself")
		}
		if !e.isStrictAncestor(opts.CallerWorkerID, id) {
			e.emit(events.WorkerKillBlocked, w, map[string]any{"callerWorkerId": opts.CallerWorkerID})
			return fmt.Errorf("lifecycle: caller %q is not an ancestor of %q", opts.CallerWorkerID, id)
		}
	}

	if w.IsProtected() && !opts.Force {
		e.emit(events.WorkerKillBlocked, w, map[string]any{"reason": "protected"})
		return fmt.Errorf("lifecycle: worker %q is protected; force required", id)
	}

	reason := opts.Reason
	if reason == "" {
		reason = "killed"
	}
	e.logger.LogLifecycle("kill", reason, "workerId", id)

	checkpoint := worker.NewCheckpoint(w, reason, e.tailFor(w))
	if err := writeCheckpoint(e.cfg.PersistDir, checkpoint); err != nil {
		e.logger.Warn(log.CatLifecycle, "writing checkpoint failed", "workerId", id, "error", err.Error())
	}

	// Graceful-then-force: nudge the agent with Ctrl-C before the hard
	// kill-session, best-effort either way.
	_ = e.tmux.SendKeys(ctx, w.SessionName, "\x03", false)
	if err := e.tmux.KillSession(ctx, w.SessionName); err != nil {
		e.logger.Warn(log.CatLifecycle, "kill-session failed", "workerId", id, "error", err.Error())
	}

	e.reparentChildren(w)
	e.teardownWorker(ctx, w)
	return nil
}

// isStrictAncestor reports whether ancestorID is a strict ancestor of id
// in the live parent chain, guarding against a cycle in corrupted parent
// links (§4.6: "verifies... using the live parent chain with cycle
// guard").
func (e *Engine) isStrictAncestor(ancestorID, id string) bool {
	seen := map[string]bool{id: true}
	cur, ok := e.registry.Get(id)
	if !ok {
		return false
	}
	for cur.ParentWorkerID != "" {
		if seen[cur.ParentWorkerID] {
			return false
		}
		if cur.ParentWorkerID == ancestorID {
			return true
		}
		seen[cur.ParentWorkerID] = true
		next, ok := e.registry.Get(cur.ParentWorkerID)
		if !ok {
			return false
		}
		cur = next
	}
	return false
}

// reparentChildren moves w's live children to w's grandparent (or makes
// them root if none) before w is torn down (§4.6).
func (e *Engine) reparentChildren(w *worker.Worker) {
	grandparentID := ""
	grandparentLabel := ""
	if w.ParentWorkerID != "" {
		if grandparent, ok := e.registry.Get(w.ParentWorkerID); ok {
			grandparentID = grandparent.ID
			grandparentLabel = grandparent.Label
		}
	}

	for _, childID := range append([]string(nil), w.ChildWorkerIDs...) {
		child, ok := e.registry.Get(childID)
		if !ok {
			continue
		}
		child.ParentWorkerID = grandparentID
		child.ParentLabel = grandparentLabel
		if grandparentID != "" {
			if gp, ok := e.registry.Get(grandparentID); ok {
				gp.AddChild(childID)
			}
		}
	}
}

// teardownWorker is the shared cleanup path for kill and auto-cleanup
// (§4.6: "TeardownWorker").
func (e *Engine) teardownWorker(ctx context.Context, w *worker.Worker) {
	e.cancelTimers(w.ID)

	if e.hist != nil {
		_ = e.hist.EndSession(ctx, w.SessionName)
	}
	_ = e.writer.Remove(w.WorkingDir, w.ID, w.Backend)

	cascaded := e.graph.MarkFailed(w.ID)
	for _, depID := range cascaded {
		if dep, ok := e.registry.Get(depID); ok {
			dep.Status = worker.StatusFailed
			e.emit(events.WorkerUpdated, dep, map[string]any{"cascadedFailureFrom": w.ID})
		}
	}
	e.graph.Remove(w.ID)

	if w.ParentWorkerID != "" {
		if parent, ok := e.registry.Get(w.ParentWorkerID); ok {
			parent.RemoveChild(w.ID)
		}
	}

	if err := control.RemoveBulldozeStateFile(w.WorkingDir, w.ID); err != nil {
		e.logger.Warn(log.CatLifecycle, "removing bulldoze state file failed", "workerId", w.ID, "error", err.Error())
	}

	e.mu.Lock()
	delete(e.pending, w.ID)
	delete(e.onComplete, w.ID)
	e.mu.Unlock()

	e.registry.Delete(w.ID)

	e.emit(events.WorkerDeleted, w, nil)
	e.recordActivity(events.WorkerDeleted, w.ID, fmt.Sprintf("worker %s torn down", w.Label))
	e.snapshotImmediate()
}

// Dismiss reports uncommitted work in w's working directory on a
// best-effort basis, then kills it with reason "dismissed" (§4.6).
func (e *Engine) Dismiss(ctx context.Context, id string) (uncommitted string, err error) {
	w, ok := e.registry.Get(id)
	if !ok {
		return "", fmt.Errorf("lifecycle: unknown worker %q", id)
	}

	gitCtx, cancel := context.WithTimeout(ctx, GitStatusTimeout)
	defer cancel()
	//nolint:gosec // G204: fixed args, workingDir is validated against the project root at spawn time.
	cmd := exec.CommandContext(gitCtx, "git", "status", "--porcelain")
	cmd.Dir = w.WorkingDir
	out, gitErr := cmd.Output()
	if gitErr == nil {
		uncommitted = string(out)
	}

	return uncommitted, e.KillWorker(ctx, id, KillOptions{Force: true, Reason: "dismissed"})
}

func (e *Engine) tailFor(w *worker.Worker) []string {
	if e.capture == nil {
		return nil
	}
	return e.capture.OutputBuffer(w.ID).Tail(worker.MaxCheckpointLines)
}
