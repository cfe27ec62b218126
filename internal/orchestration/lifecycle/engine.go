// Package lifecycle implements the engine's Lifecycle & Persistence facade
// (§4.6): it is the only component that creates or tears down a worker,
// owning the multiplexer session, the per-worker context file, the
// dependency graph registration, and the on-disk snapshot. Every other
// package (control, health, depgraph, templates) is driven by lifecycle
// through the interfaces those packages expose.
package lifecycle

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/strategos/strategos/internal/config"
	"github.com/strategos/strategos/internal/log"
	"github.com/strategos/strategos/internal/orchestration/control"
	"github.com/strategos/strategos/internal/orchestration/depgraph"
	"github.com/strategos/strategos/internal/orchestration/events"
	"github.com/strategos/strategos/internal/orchestration/health"
	"github.com/strategos/strategos/internal/orchestration/history"
	"github.com/strategos/strategos/internal/orchestration/state"
	"github.com/strategos/strategos/internal/orchestration/templates"
	"github.com/strategos/strategos/internal/orchestration/tmux"
	"github.com/strategos/strategos/internal/orchestration/tracing"
	"github.com/strategos/strategos/internal/orchestration/worker"
)

// MaxActivityEntries bounds the recent-activity ring (§4.1, §6).
const MaxActivityEntries = 100

// pendingSpawn is a stored spawn request waiting on unmet dependencies
// (§4.6 step 3: "store a pending record (including all spawn-time
// options)").
type pendingSpawn struct {
	ProjectPath string
	Label       string
	Opts        SpawnOptions
	CreatedAt   time.Time
}

// Engine is the Lifecycle facade: the single owner of worker creation,
// completion, and teardown. It composes every other orchestration package
// and satisfies health.Spawner so the health monitor can ask it to respawn
// or auto-promote a worker without an import cycle.
type Engine struct {
	cfg    config.Config
	logger *log.Logger
	bus    *events.Broadcaster

	registry *state.Registry
	graph    *depgraph.Graph
	writer   *templates.Writer
	tmux     tmux.Client
	hist     history.HistoryStore
	capture  *control.Loop
	health   *health.Monitor
	tracer   trace.Tracer

	// creationBreaker trips on consecutive multiplexer-session creation
	// failures (§7: "Circuit-breaker tripped... only session creation
	// failures do"), distinct from health's per-worker respawn breaker.
	creationBreaker *state.CircuitBreaker
	inFlight        *state.StringSet
	activity        *state.Ring[events.ActivityEntry]

	mu         sync.Mutex
	pending    map[string]pendingSpawn
	timers     map[string][]*time.Timer
	onComplete map[string]*OnCompleteAction

	persist *persistence
}

// New constructs an Engine bound to its collaborators. capture and mon may
// already be running their own tick loops (control.Loop.Run / Monitor.Run);
// the Engine only needs them to install/query worker state.
func New(cfg config.Config, logger *log.Logger, bus *events.Broadcaster, registry *state.Registry, graph *depgraph.Graph, writer *templates.Writer, client tmux.Client, hist history.HistoryStore, capture *control.Loop, mon *health.Monitor) *Engine {
	e := &Engine{
		cfg:             cfg,
		logger:          logger,
		bus:             bus,
		registry:        registry,
		graph:           graph,
		writer:          writer,
		tmux:            client,
		hist:            hist,
		capture:         capture,
		health:          mon,
		tracer:          tracing.Tracer("strategos/lifecycle"),
		creationBreaker: state.NewCircuitBreaker(cfg.CircuitBreakerThreshold, cfg.CircuitBreakerWindow),
		inFlight:        state.NewStringSet(),
		activity:        state.NewRing[events.ActivityEntry](MaxActivityEntries),
		pending:         make(map[string]pendingSpawn),
		timers:          make(map[string][]*time.Timer),
		onComplete:      make(map[string]*OnCompleteAction),
	}
	e.persist = newPersistence(cfg.PersistDir, cfg.SaveDebounce, e.snapshot, logger)
	if mon != nil {
		mon.SetCheckpointWriter(func(cp worker.Checkpoint) error {
			return writeCheckpoint(cfg.PersistDir, cp)
		})
	}
	if capture != nil {
		e.InstallBulldozeCheckers()
	}
	return e
}

// SetHealthMonitor wires mon into an Engine that was constructed with a nil
// monitor, and installs its checkpoint writer. This breaks the
// construction cycle between Engine (which health.NewMonitor's Spawner
// argument must satisfy) and Monitor (which Engine.New would otherwise
// require up front): callers build the Engine first with mon=nil,
// construct the Monitor with that Engine as its Spawner, then call this to
// complete the wiring.
func (e *Engine) SetHealthMonitor(mon *health.Monitor) {
	e.health = mon
	if mon != nil {
		mon.SetCheckpointWriter(func(cp worker.Checkpoint) error {
			return writeCheckpoint(e.cfg.PersistDir, cp)
		})
	}
}

// RunCleanup starts the periodic cleanup sweep on the injected health
// monitor, bound to this Engine's callbacks (§4.5). It is a no-op if no
// monitor was supplied to New.
func (e *Engine) RunCleanup(ctx context.Context) {
	if e.health == nil {
		return
	}
	e.health.RunCleanup(ctx, e.CleanupCallbacks())
}

// Activity returns the current recent-activity log, newest last.
func (e *Engine) Activity() []events.ActivityEntry {
	return e.activity.Items()
}

// CircuitBreakerStatus reports whether the spawn-creation circuit breaker
// is currently tripped (§6: "getCircuitBreakerStatus").
func (e *Engine) CircuitBreakerStatus() bool {
	return e.creationBreaker.Tripped()
}

// ResetCircuitBreaker clears the spawn-creation circuit breaker (§6:
// "resetCircuitBreaker").
func (e *Engine) ResetCircuitBreaker() {
	e.creationBreaker.Reset()
}

func (e *Engine) recordActivity(topic events.Topic, workerID, message string) {
	e.activity.Push(events.ActivityEntry{Topic: topic, WorkerID: workerID, Message: message, Timestamp: time.Now()})
	e.bus.Emit(events.Event{Topic: events.ActivityNew, Extra: map[string]any{"workerId": workerID, "message": message}, Timestamp: time.Now()})
}

func (e *Engine) emit(topic events.Topic, w *worker.Worker, extra map[string]any) {
	n := worker.Normalize(w)
	e.bus.Emit(events.New(topic, &n, extra))
}

// addTimer tracks a scheduled timer under workerID so teardown can cancel
// every outstanding timer for a worker (initial message, adoption
// reminder, auto-cleanup kill) instead of letting it fire on a dead record.
func (e *Engine) addTimer(workerID string, t *time.Timer) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.timers[workerID] = append(e.timers[workerID], t)
}

func (e *Engine) cancelTimers(workerID string) {
	e.mu.Lock()
	ts := e.timers[workerID]
	delete(e.timers, workerID)
	e.mu.Unlock()

	for _, t := range ts {
		t.Stop()
	}
}

func (e *Engine) snapshotRequest() {
	e.persist.requestDebounced()
}

func (e *Engine) snapshotImmediate() {
	e.persist.requestImmediate()
}

// activeCount reports the number of registered workers that are neither
// completed, failed, nor stopped -- the "active" term in the capacity
// check (§4.6 step 1).
func (e *Engine) activeCount() int {
	n := 0
	for _, w := range e.registry.All() {
		switch w.Status {
		case worker.StatusCompleted, worker.StatusFailed, worker.StatusStopped:
		default:
			n++
		}
	}
	return n
}

// traceOp starts a span for a Lifecycle operation (§: DOMAIN STACK "each
// Lifecycle operation... is wrapped in a span"), named
// tracing.SpanPrefixLifecycle+op.
func (e *Engine) traceOp(ctx context.Context, op string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return e.tracer.Start(ctx, tracing.SpanPrefixLifecycle+op, trace.WithAttributes(attrs...))
}

// endSpan records err (if any) on span and ends it, the way the teacher's
// tracing middleware records command outcomes.
func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}

func (e *Engine) pendingCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.pending)
}

// ErrAtCapacity is returned by Spawn when active+pending+in-flight workers
// have reached config.Config.MaxActiveWorkers.
var ErrAtCapacity = fmt.Errorf("lifecycle: at worker capacity")
