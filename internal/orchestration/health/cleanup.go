package health

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/strategos/strategos/internal/log"
	"github.com/strategos/strategos/internal/orchestration/worker"
)

// CleanupInterval is the periodic cleanup sweep tick (§4.5: "every 60 s").
const CleanupInterval = 60 * time.Second

// CompletedGracePeriod plus CompletedMargin is how long a completed worker
// lingers before the sweep kills it (§4.5: "30 s + 10 s margin").
const (
	CompletedGracePeriod = 30 * time.Second
	CompletedMargin      = 10 * time.Second
)

// AwaitingReviewTimeoutRootless is the auto-dismiss timeout for a rootless
// awaiting_review worker (§4.5).
const AwaitingReviewTimeoutRootless = 15 * time.Minute

// AwaitingReviewTimeoutWithParent is the auto-dismiss timeout for an
// awaiting_review worker that has a parent (§4.5).
const AwaitingReviewTimeoutWithParent = 30 * time.Minute

// RunningIdleWarnThreshold flags a long-idle running worker once (§4.5:
// "warn on running workers idle > 30 min (once, flagged)").
const RunningIdleWarnThreshold = 30 * time.Minute

// PendingTimeout removes a pending worker that has waited this long, even
// if it still has a live dependency; a pending worker with no live
// dependency is removed regardless of age (§4.5).
const PendingTimeout = 30 * time.Minute

// Cleanup is the set of callbacks the periodic sweep needs from lifecycle
// to act on a worker, injected to avoid a health-lifecycle import cycle.
type Cleanup struct {
	// KillWorker tears down a completed/expired worker (TeardownWorker).
	KillWorker func(ctx context.Context, workerID string) error
	// DismissWorker auto-dismisses a stale awaiting_review worker.
	DismissWorker func(ctx context.Context, workerID string) error
	// RemovePendingWorker drops a pending worker with no live dependencies.
	RemovePendingWorker func(ctx context.Context, workerID string) error
	// HasLiveDependency reports whether a pending worker still has an
	// unsatisfied live dependency.
	HasLiveDependency func(workerID string) bool
	// HasLiveOrHistoricalChild reports whether a worker has any live or
	// historical child, which blocks auto-dismiss.
	HasLiveOrHistoricalChild func(workerID string) bool
	// GCDependencyGraph runs the dependency graph's finished-workflow sweep.
	GCDependencyGraph func()
	// PruneContextLocks drops per-project write locks for projects with no
	// live worker.
	PruneContextLocks func()
	// Snapshot requests an immediate state persistence snapshot.
	Snapshot func()
}

// running guards against overlapping sweeps (§4.5: "non-overlapping via a
// 'running' flag").
type running struct{ flag atomic.Bool }

// RunCleanup starts the periodic cleanup sweep, ticking every
// CleanupInterval until ctx is cancelled.
func (m *Monitor) RunCleanup(ctx context.Context, cb Cleanup) {
	ticker := time.NewTicker(CleanupInterval)
	defer ticker.Stop()

	var r running
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !r.flag.CompareAndSwap(false, true) {
				continue
			}
			m.cleanupSweep(ctx, cb)
			r.flag.Store(false)
		}
	}
}

func (m *Monitor) cleanupSweep(ctx context.Context, cb Cleanup) {
	now := time.Now()
	for _, w := range m.registry.All() {
		switch w.Status {
		case worker.StatusCompleted:
			m.maybeKillCompleted(ctx, w, now, cb)
		case worker.StatusAwaitingReview:
			m.maybeDismissAwaitingReview(ctx, w, now, cb)
		case worker.StatusRunning:
			m.warnIfLongIdle(w, now)
		case worker.StatusPending:
			m.maybeRemovePending(ctx, w, now, cb)
		}
	}

	m.respawn.PruneStale()
	if cb.GCDependencyGraph != nil {
		cb.GCDependencyGraph()
	}
	if cb.PruneContextLocks != nil {
		cb.PruneContextLocks()
	}
	if cb.Snapshot != nil {
		cb.Snapshot()
	}
}

func (m *Monitor) maybeKillCompleted(ctx context.Context, w *worker.Worker, now time.Time, cb Cleanup) {
	if w.IsProtected() || w.CompletedAt.IsZero() || cb.KillWorker == nil {
		return
	}
	if now.Sub(w.CompletedAt) < CompletedGracePeriod+CompletedMargin {
		return
	}
	_ = cb.KillWorker(ctx, w.ID)
}

func (m *Monitor) maybeDismissAwaitingReview(ctx context.Context, w *worker.Worker, now time.Time, cb Cleanup) {
	if cb.DismissWorker == nil || w.AwaitingReviewAt.IsZero() {
		return
	}
	if cb.HasLiveOrHistoricalChild != nil && cb.HasLiveOrHistoricalChild(w.ID) {
		return
	}

	timeout := AwaitingReviewTimeoutRootless
	if w.ParentWorkerID != "" {
		timeout = AwaitingReviewTimeoutWithParent
	}
	if now.Sub(w.AwaitingReviewAt) < timeout {
		return
	}
	_ = cb.DismissWorker(ctx, w.ID)
}

func (m *Monitor) warnIfLongIdle(w *worker.Worker, now time.Time) {
	if w.LastOutputAt.IsZero() || m.warnedIdle[w.ID] {
		return
	}
	if now.Sub(w.LastOutputAt) <= RunningIdleWarnThreshold {
		return
	}
	m.warnedIdle[w.ID] = true
	m.logger.Warn(log.CatHealth, "worker idle past warn threshold", "workerId", w.ID, "label", w.Label)
}

func (m *Monitor) maybeRemovePending(ctx context.Context, w *worker.Worker, now time.Time, cb Cleanup) {
	if cb.RemovePendingWorker == nil {
		return
	}
	noLiveDep := cb.HasLiveDependency == nil || !cb.HasLiveDependency(w.ID)
	expired := !w.CreatedAt.IsZero() && now.Sub(w.CreatedAt) > PendingTimeout
	if noLiveDep || expired {
		_ = cb.RemovePendingWorker(ctx, w.ID)
	}
}
