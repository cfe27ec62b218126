package lifecycle

import (
	"context"
	"fmt"
	"time"

	"github.com/strategos/strategos/internal/orchestration/events"
	"github.com/strategos/strategos/internal/orchestration/state"
	"github.com/strategos/strategos/internal/orchestration/worker"
)

// InterruptFollowupDelay is how long after the SIGINT key sequence
// InterruptWorker's optional follow-up message is enqueued (§4.4, §6).
const InterruptFollowupDelay = 500 * time.Millisecond

// SendInput enqueues text for delivery to id's pane via the capture loop's
// command queue (§6: "sendInput(id, text) enqueues and returns
// immediately").
func (e *Engine) SendInput(id, text string) error {
	w, ok := e.registry.Get(id)
	if !ok {
		return fmt.Errorf("lifecycle: worker %q not found", id)
	}
	if e.capture == nil {
		return fmt.Errorf("lifecycle: no capture loop configured")
	}
	q := e.capture.CommandQueue(id)
	if err := q.Enqueue(state.QueuedCommand{Input: text, EnqueuedAt: time.Now(), From: "human"}); err != nil {
		return fmt.Errorf("lifecycle: enqueuing input for %q: %w", id, err)
	}
	w.QueuedCommands = q.Len()
	return nil
}

// InterruptWorker sends a SIGINT key sequence to id's pane and, if message
// is non-empty, enqueues it for delivery InterruptFollowupDelay later (§6:
// "interruptWorker sends a SIGINT key sequence, optionally followed by a
// queued message after 500ms").
func (e *Engine) InterruptWorker(ctx context.Context, id, message string) error {
	w, ok := e.registry.Get(id)
	if !ok {
		return fmt.Errorf("lifecycle: worker %q not found", id)
	}
	if err := e.tmux.SendKeys(ctx, w.SessionName, "\x03", false); err != nil {
		return fmt.Errorf("lifecycle: interrupting %q: %w", id, err)
	}
	if message == "" || e.capture == nil {
		return nil
	}
	time.AfterFunc(InterruptFollowupDelay, func() {
		q := e.capture.CommandQueue(id)
		_ = q.Enqueue(state.QueuedCommand{Input: message, EnqueuedAt: time.Now(), From: "interrupt"})
	})
	return nil
}

// UpdateWorkerLabel renames id's label (§6: "updateWorkerLabel"), emitting
// worker:updated. Changing a worker's label in or out of the "GENERAL:"
// prefix changes its protected status for every subsequent operation.
func (e *Engine) UpdateWorkerLabel(id, label string) error {
	w, ok := e.registry.Get(id)
	if !ok {
		return fmt.Errorf("lifecycle: worker %q not found", id)
	}
	w.Label = label
	e.emit(events.WorkerUpdated, w, map[string]any{"label": label})
	e.snapshotRequest()
	return nil
}

// WorkerSettings is the subset of a worker's control flags mutable after
// spawn (§6: "updateWorkerSettings").
type WorkerSettings struct {
	AutoAccept   *bool
	BulldozeMode *bool
	RalphMode    *bool
	AutoContinue *bool
}

// UpdateWorkerSettings applies the non-nil fields of settings to id,
// emitting worker:updated.
func (e *Engine) UpdateWorkerSettings(id string, settings WorkerSettings) error {
	w, ok := e.registry.Get(id)
	if !ok {
		return fmt.Errorf("lifecycle: worker %q not found", id)
	}
	if settings.AutoAccept != nil {
		w.AutoAccept = *settings.AutoAccept
	}
	if settings.BulldozeMode != nil {
		w.BulldozeMode = *settings.BulldozeMode
	}
	if settings.RalphMode != nil {
		w.RalphMode = *settings.RalphMode
	}
	if settings.AutoContinue != nil {
		w.AutoContinue = *settings.AutoContinue
	}
	e.emit(events.WorkerUpdated, w, nil)
	e.snapshotRequest()
	return nil
}

// ResizeWorkerTerminal resizes id's multiplexer window (§6:
// "resizeWorkerTerminal").
func (e *Engine) ResizeWorkerTerminal(ctx context.Context, id string, cols, rows int) error {
	w, ok := e.registry.Get(id)
	if !ok {
		return fmt.Errorf("lifecycle: worker %q not found", id)
	}
	if err := e.tmux.ResizeWindow(ctx, w.SessionName, cols, rows); err != nil {
		return fmt.Errorf("lifecycle: resizing %q: %w", id, err)
	}
	return nil
}

// ResourceStats is the read-only aggregate returned by GetResourceStats
// (SPEC_FULL.md SUPPLEMENTED FEATURES: "counts of workers by status
// /health, buffer memory in use, queue depths, and circuit breaker
// state").
type ResourceStats struct {
	WorkersByStatus       map[worker.Status]int
	WorkersByHealth       map[worker.Health]int
	BufferBytesUsed       int
	QueueDepth            int
	CircuitBreakerTripped bool
}

// GetResourceStats aggregates the engine's current resource footprint
// (§6: "getResourceStats").
func (e *Engine) GetResourceStats() ResourceStats {
	stats := ResourceStats{
		WorkersByStatus:       make(map[worker.Status]int),
		WorkersByHealth:       make(map[worker.Health]int),
		CircuitBreakerTripped: e.creationBreaker.Tripped(),
	}
	for _, w := range e.registry.All() {
		stats.WorkersByStatus[w.Status]++
		stats.WorkersByHealth[w.Health]++
	}
	if e.capture != nil {
		stats.BufferBytesUsed = e.capture.BufferBytesUsed()
		stats.QueueDepth = e.capture.QueueDepth()
	}
	return stats
}
