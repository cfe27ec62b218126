package health

import (
	"context"
	"strings"
	"time"

	"github.com/strategos/strategos/internal/log"
	"github.com/strategos/strategos/internal/orchestration/events"
	"github.com/strategos/strategos/internal/orchestration/state"
	"github.com/strategos/strategos/internal/orchestration/tmux"
	"github.com/strategos/strategos/internal/orchestration/worker"
)

// EvaluationInterval is the global health-check tick (§4.5: "≈ 10 s").
const EvaluationInterval = 10 * time.Second

// StallTimeout marks a worker stalled after this long with no output
// (§4.5).
const StallTimeout = 10 * time.Minute

// RalphProgressStallTimeout marks an in-progress Ralph worker stalled if no
// progress signal has arrived in this long, even if output is flowing
// (§4.5).
const RalphProgressStallTimeout = 30 * time.Minute

// AutoPromoteProgressThreshold is the minimum Ralph progress percentage
// eligible for auto-promotion to done (§4.5: "≥ 90 %").
const AutoPromoteProgressThreshold = 90

// completionKeywords are substrings of ralphCurrentStep that, combined with
// AutoPromoteProgressThreshold and a brief idle period, auto-promote a
// Ralph worker to done (§4.5).
var completionKeywords = []string{"complete", "done", "finished"}

// OutputSource supplies a worker's recent captured output tail, used for
// crash-pattern matching. Implemented by *control.Loop's per-worker output
// buffers.
type OutputSource interface {
	Tail(workerID string, n int) []string
}

// Monitor runs the engine's periodic health evaluation and cleanup sweeps
// (§4.5). It depends on tmux.Client to verify a session is still
// capturable and on a Spawner to perform respawn/auto-promotion, keeping
// this package decoupled from lifecycle.
type Monitor struct {
	registry *state.Registry
	client   tmux.Client
	spawner  Spawner
	bus      *events.Broadcaster
	logger   *log.Logger
	output   OutputSource

	respawn     *RespawnTracker
	suggestions *SuggestionLog
	breakers    map[string]*state.CircuitBreaker

	warnedIdle map[string]bool

	cleanupRunning bool

	// checkpointWriter persists a crash checkpoint, injected by lifecycle
	// (which owns the persistence directory) to avoid an import cycle.
	checkpointWriter func(cp worker.Checkpoint) error
}

// SetCheckpointWriter installs the callback used to persist a crash
// checkpoint to disk (§4.6, §6).
func (m *Monitor) SetCheckpointWriter(f func(cp worker.Checkpoint) error) {
	m.checkpointWriter = f
}

// NewMonitor constructs a Monitor bound to registry and its collaborators.
func NewMonitor(registry *state.Registry, client tmux.Client, spawner Spawner, bus *events.Broadcaster, logger *log.Logger, output OutputSource) *Monitor {
	return &Monitor{
		registry:    registry,
		client:      client,
		spawner:     spawner,
		bus:         bus,
		logger:      logger,
		output:      output,
		respawn:     NewRespawnTracker(),
		suggestions: NewSuggestionLog(),
		breakers:    make(map[string]*state.CircuitBreaker),
		warnedIdle:  make(map[string]bool),
	}
}

// Suggestions returns the current respawn-suggestions log.
func (m *Monitor) Suggestions() []RespawnSuggestion {
	return m.suggestions.Items()
}

// CircuitBreaker returns (creating if necessary) workerID's circuit
// breaker.
func (m *Monitor) CircuitBreaker(workerID string) *state.CircuitBreaker {
	b, ok := m.breakers[workerID]
	if !ok {
		b = state.NewCircuitBreaker(MaxRespawnAttempts+1, RespawnCooldown)
		m.breakers[workerID] = b
	}
	return b
}

// Run ticks every EvaluationInterval until ctx is cancelled, evaluating
// every registered worker in turn.
func (m *Monitor) Run(ctx context.Context) {
	ticker := time.NewTicker(EvaluationInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.evaluateAll(ctx)
		}
	}
}

// Evaluate runs a single worker through the same crash/stall/auto-promote
// checks as the periodic tick, used by lifecycle's post-restore re-check
// (§4.6: "5s later re-runs crash detection and auto-promotion").
func (m *Monitor) Evaluate(ctx context.Context, w *worker.Worker) {
	m.evaluate(ctx, w)
}

func (m *Monitor) evaluateAll(ctx context.Context) {
	for _, w := range m.registry.All() {
		m.evaluate(ctx, w)
	}
}

func (m *Monitor) evaluate(ctx context.Context, w *worker.Worker) {
	if w.Status != worker.StatusRunning {
		return
	}

	if w.IsProtected() {
		if capturable, err := m.sessionCapturable(ctx, w); err != nil || !capturable {
			w.Health = worker.HealthDead
			m.bus.Emit(events.New(events.WorkerGeneralDead, ptrNormalize(w), nil))
			return
		}
	}

	tail := m.tailFor(w)
	if reason, matched := MatchesCrash(strings.Join(tail, "\n")); matched {
		m.onCrash(ctx, w, reason, tail)
		return
	}

	if m.isStalled(w) {
		w.Health = worker.HealthStalled
		m.bus.Emit(events.New(events.WorkerStalled, ptrNormalize(w), nil))
	}

	m.maybeAutoPromote(ctx, w)

	m.bus.Emit(events.New(events.WorkerUpdated, ptrNormalize(w), map[string]any{"queuedCommands": w.QueuedCommands}))
}

func (m *Monitor) sessionCapturable(ctx context.Context, w *worker.Worker) (bool, error) {
	ok, err := m.client.HasSession(ctx, w.SessionName)
	if err != nil || !ok {
		return false, err
	}
	_, err = m.client.CapturePane(ctx, w.SessionName, 1)
	return err == nil, err
}

func (m *Monitor) tailFor(w *worker.Worker) []string {
	if m.output == nil {
		return nil
	}
	return m.output.Tail(w.ID, worker.MaxCheckpointLines)
}

func (m *Monitor) isStalled(w *worker.Worker) bool {
	if w.LastOutputAt.IsZero() {
		return false
	}
	if time.Since(w.LastOutputAt) > StallTimeout {
		return true
	}
	if w.RalphStatus == worker.RalphInProgress && time.Since(w.LastActivityAt) > RalphProgressStallTimeout {
		return true
	}
	return false
}

func (m *Monitor) onCrash(ctx context.Context, w *worker.Worker, reason string, tail []string) {
	w.Health = worker.HealthCrashed
	w.CrashReason = reason
	w.CrashedAt = time.Now()
	cp := worker.NewCheckpoint(w, reason, tail)
	if m.checkpointWriter != nil {
		if err := m.checkpointWriter(cp); err != nil {
			m.logger.Warn(log.CatHealth, "writing crash checkpoint failed", "workerId", w.ID, "error", err.Error())
		}
	}
	m.bus.Emit(events.New(events.WorkerCrashed, ptrNormalize(w), map[string]any{"reason": reason}))

	m.suggestions.RecordDeath(w)
	m.recover(ctx, w)
}

// recover attempts a bounded respawn of a crashed worker (§4.5 crash
// recovery). Protected workers are never respawned.
func (m *Monitor) recover(ctx context.Context, w *worker.Worker) {
	if w.IsProtected() {
		return
	}
	if m.CircuitBreaker(w.ID).Tripped() {
		return
	}
	if !m.respawn.CanRespawn(w.ID) {
		m.CircuitBreaker(w.ID).RecordFailure(time.Now())
		return
	}

	m.respawn.RecordAttempt(w.ID)
	if m.spawner == nil {
		return
	}
	if err := m.spawner.Respawn(ctx, w.ID); err != nil {
		m.logger.Warn(log.CatHealth, "respawn failed", "workerId", w.ID, "error", err.Error())
		m.CircuitBreaker(w.ID).RecordFailure(time.Now())
		return
	}
	m.bus.Emit(events.New(events.WorkerRespawned, ptrNormalize(w), nil))
}

func (m *Monitor) maybeAutoPromote(ctx context.Context, w *worker.Worker) {
	if w.RalphStatus != worker.RalphInProgress || w.RalphProgress < AutoPromoteProgressThreshold {
		return
	}
	if !containsAny(strings.ToLower(w.RalphCurrentStep), completionKeywords) {
		return
	}
	if time.Since(w.LastActivityAt) < EvaluationInterval {
		return
	}
	if m.spawner == nil {
		return
	}
	_ = m.spawner.PromoteToDone(ctx, w.ID)
}

func containsAny(s string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(s, n) {
			return true
		}
	}
	return false
}

func ptrNormalize(w *worker.Worker) *worker.Normalized {
	n := worker.Normalize(w)
	return &n
}
