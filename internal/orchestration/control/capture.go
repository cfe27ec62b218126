package control

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/strategos/strategos/internal/log"
	"github.com/strategos/strategos/internal/orchestration/events"
	"github.com/strategos/strategos/internal/orchestration/history"
	"github.com/strategos/strategos/internal/orchestration/state"
	"github.com/strategos/strategos/internal/orchestration/textutil"
	"github.com/strategos/strategos/internal/orchestration/tmux"
	"github.com/strategos/strategos/internal/orchestration/tracing"
	"github.com/strategos/strategos/internal/orchestration/worker"
)

// CommandSpacing is the minimum delay between two drained commands sent to
// the same worker pane (§4.4: "200ms spacing").
const CommandSpacing = 200 * time.Millisecond

// MaxDrainPerTick bounds how many queued commands are sent to a single
// worker in one drain pass (§4.4: "20 commands").
const MaxDrainPerTick = 20

// Loop is the Output & Control Plane: it polls every registered worker's
// pane on an interval, detects changes, applies heuristics, and drains
// each worker's command queue.
type Loop struct {
	registry *state.Registry
	tmux     tmux.Client
	hist     history.HistoryStore
	bus      *events.Broadcaster
	logger   *log.Logger
	dedup    *Dedup
	tracer   trace.Tracer

	interval time.Duration

	buffers   map[string]*state.OutputBuffer
	queues    map[string]*state.CommandQueue
	lastPane  map[string]string
	bulldoze  map[string]*BulldozeState
	idleTicks map[string]int

	// hasNewCommits, when set, reports whether a worker's working directory
	// has new git commits since the last check (§4.4: "5 consecutive cycles
	// with zero new git commits"). Nil disables the commit-based hard stop.
	hasNewCommits func(workingDir string) bool

	// liveChildren, when set, reports whether a worker has any child that
	// is both running and in_progress (§4.4: pause condition). Nil disables
	// the children-pause gate.
	liveChildren func(w *worker.Worker) bool
}

// NewLoop constructs a Loop bound to registry for its worker set and the
// given collaborators. interval is the capture tick (0 uses 5s).
func NewLoop(registry *state.Registry, client tmux.Client, hist history.HistoryStore, bus *events.Broadcaster, logger *log.Logger, interval time.Duration) *Loop {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	return &Loop{
		registry:  registry,
		tmux:      client,
		hist:      hist,
		bus:       bus,
		logger:    logger,
		dedup:     NewDedup(),
		tracer:    tracing.Tracer("strategos/control"),
		interval:  interval,
		buffers:   make(map[string]*state.OutputBuffer),
		queues:    make(map[string]*state.CommandQueue),
		lastPane:  make(map[string]string),
		bulldoze:  make(map[string]*BulldozeState),
		idleTicks: make(map[string]int),
	}
}

// SetCommitChecker installs the callback used to drive bulldoze's
// no-new-commits hard stop (§4.4).
func (l *Loop) SetCommitChecker(f func(workingDir string) bool) {
	l.hasNewCommits = f
}

// SetLiveChildrenChecker installs the callback used to drive bulldoze's
// pause-while-children-active gate (§4.4).
func (l *Loop) SetLiveChildrenChecker(f func(w *worker.Worker) bool) {
	l.liveChildren = f
}

// Bulldoze returns (creating if necessary) w's bulldoze continuation state.
func (l *Loop) Bulldoze(workerID string) *BulldozeState {
	b, ok := l.bulldoze[workerID]
	if !ok {
		b = NewBulldozeState()
		l.bulldoze[workerID] = b
	}
	return b
}

// idleContinuationThreshold is how many consecutive no-change ticks must
// elapse before bulldoze treats the worker as idle (§4.4: "once >= 3
// ticks").
const idleContinuationThreshold = 3

// OutputBuffer returns (creating if necessary) w's output buffer.
func (l *Loop) OutputBuffer(workerID string) *state.OutputBuffer {
	buf, ok := l.buffers[workerID]
	if !ok {
		buf = state.NewOutputBuffer(0)
		l.buffers[workerID] = buf
	}
	return buf
}

// Tail returns workerID's last n captured output lines, satisfying
// health.OutputSource so the health monitor can inspect the same buffers
// this loop fills without an import cycle.
func (l *Loop) Tail(workerID string, n int) []string {
	return l.OutputBuffer(workerID).Tail(n)
}

// CommandQueue returns (creating if necessary) w's command queue.
func (l *Loop) CommandQueue(workerID string) *state.CommandQueue {
	q, ok := l.queues[workerID]
	if !ok {
		q = state.NewCommandQueue(0)
		l.queues[workerID] = q
	}
	return q
}

// BufferBytesUsed sums every worker's retained captured-output buffer
// size, for the resource-stats endpoint (SPEC_FULL.md SUPPLEMENTED
// FEATURES: "buffer memory in use").
func (l *Loop) BufferBytesUsed() int {
	total := 0
	for _, buf := range l.buffers {
		total += buf.Bytes()
	}
	return total
}

// QueueDepth sums every worker's pending command-queue length, for the
// resource-stats endpoint ("queue depths").
func (l *Loop) QueueDepth() int {
	total := 0
	for _, q := range l.queues {
		total += q.Len()
	}
	return total
}

// Run ticks every interval until ctx is cancelled, capturing and processing
// every registered worker's pane in turn.
func (l *Loop) Run(ctx context.Context) {
	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.tick(ctx)
		}
	}
}

func (l *Loop) tick(ctx context.Context) {
	ctx, span := l.tracer.Start(ctx, tracing.SpanPrefixControl+"tick")
	defer func() {
		span.SetStatus(codes.Ok, "")
		span.End()
	}()

	for _, w := range l.registry.All() {
		if w.Status != worker.StatusRunning {
			continue
		}
		l.captureOne(ctx, w)
		if w.BulldozeMode {
			l.evaluateBulldoze(ctx, w)
		}
		l.drainQueue(ctx, w)
	}
}

func (l *Loop) captureOne(ctx context.Context, w *worker.Worker) {
	raw, err := l.tmux.CapturePane(ctx, w.SessionName, 0)
	if err != nil {
		l.logger.Warn(log.CatControl, "capture-pane failed", "workerId", w.ID, "error", err.Error())
		return
	}

	clean := textutil.StripANSI(raw)
	prev := l.lastPane[w.ID]
	if !Changed(prev, clean) {
		l.idleTicks[w.ID]++
		return
	}
	l.idleTicks[w.ID] = 0
	l.lastPane[w.ID] = clean

	inserted := LineDiff(prev, clean)
	buf := l.OutputBuffer(w.ID)
	for _, line := range inserted {
		buf.Append(line)
		if l.hist != nil {
			_ = l.hist.StoreOutput(ctx, w.SessionName, line)
		}
		l.evaluateLine(ctx, w, line)
		if MatchesRateLimit(line) {
			l.Bulldoze(w.ID).RecordCompaction()
		}
	}

	w.LastOutputAt = time.Now()
	l.bus.Emit(events.New(events.WorkerOutput, ptrNormalize(w), map[string]any{"linesAdded": len(inserted)}))
}

// evaluateBulldoze drives one worker's continuation loop: it pauses while
// live children are active, otherwise checks idleness and hard-stop
// conditions and, once eligible, queues the next continuation prompt
// (§4.4).
func (l *Loop) evaluateBulldoze(ctx context.Context, w *worker.Worker) {
	b := l.Bulldoze(w.ID)
	if l.liveChildren != nil && l.liveChildren(w) {
		b.PauseForChildren()
		return
	}
	b.ResumeFromChildren()

	if b.Phase != BulldozeRunning {
		return
	}

	if l.idleTicks[w.ID] < idleContinuationThreshold {
		return
	}
	if !MatchesIdlePrompt(l.lastPane[w.ID]) {
		return
	}

	if l.hasNewCommits != nil {
		if !b.RecordCommitCheck(l.hasNewCommits(w.WorkingDir)) {
			l.emitBulldozePaused(w, b)
			return
		}
	}

	if !b.Advance(l.lastPane[w.ID]) {
		l.emitBulldozePaused(w, b)
		return
	}

	l.idleTicks[w.ID] = 0
	prompt := "continue with the next item in your backlog"
	if b.IsAuditCycle() {
		prompt = "AUDIT: review Current/Backlog/Completed before continuing"
	}
	q := l.CommandQueue(w.ID)
	if err := q.Enqueue(state.QueuedCommand{Input: prompt, EnqueuedAt: time.Now(), From: "bulldoze"}); err != nil {
		return
	}
	w.BulldozeCyclesCompleted = b.CyclesDone
	l.bus.Emit(events.New(events.WorkerBulldozeCycle, ptrNormalize(w), map[string]any{"cycle": b.CyclesDone, "audit": b.IsAuditCycle()}))
}

func (l *Loop) emitBulldozePaused(w *worker.Worker, b *BulldozeState) {
	w.BulldozePaused = true
	w.BulldozePauseReason = b.PauseReason
	l.bus.Emit(events.New(events.WorkerBulldozePaused, ptrNormalize(w), map[string]any{"reason": b.PauseReason}))
}

func (l *Loop) evaluateLine(ctx context.Context, w *worker.Worker, line string) {
	switch {
	case w.IsProtected() && MatchesRoleViolation(line):
		if l.dedup.ShouldFire(w.ID + "::role::" + line) {
			w.DelegationMetrics.RoleViolations++
			l.sendInterrupt(ctx, w, roleViolationCorrection)
			l.bus.Emit(events.New(events.WorkerRoleViolation, ptrNormalize(w), map[string]any{"line": line}))
		}
	case MatchesRateLimit(line):
		w.RateLimited = true
		l.bus.Emit(events.New(events.WorkerRateLimited, ptrNormalize(w), nil))
	case w.AutoAccept && !w.AutoAcceptPaused && MatchesAutoAccept(line):
		if l.dedup.ShouldFire(w.ID + "::" + line) {
			l.sendAutoAccept(w)
		}
	}
}

// roleViolationCorrection is the follow-up message queued after the
// interrupt sent to a GENERAL worker caught doing implementation work
// itself instead of delegating it (§4.2, §4.4).
const roleViolationCorrection = "STOP: as GENERAL you delegate implementation work to a child worker; you do not edit files or run implementation commands yourself."

// interruptFollowupDelay is how long after the SIGINT key sequence the
// optional follow-up message is enqueued (§4.4, §6).
const interruptFollowupDelay = 500 * time.Millisecond

// sendInterrupt sends a SIGINT key sequence to w's pane and, if message is
// non-empty, enqueues it for delivery interruptFollowupDelay later (§4.4,
// §6: "interruptWorker sends a SIGINT key sequence, optionally followed by
// a queued message after 500 ms").
func (l *Loop) sendInterrupt(ctx context.Context, w *worker.Worker, message string) {
	if err := l.tmux.SendKeys(ctx, w.SessionName, "\x03", false); err != nil {
		l.logger.Warn(log.CatControl, "interrupt send-keys failed", "workerId", w.ID, "error", err.Error())
		return
	}
	if message == "" {
		return
	}
	workerID := w.ID
	time.AfterFunc(interruptFollowupDelay, func() {
		q := l.CommandQueue(workerID)
		_ = q.Enqueue(state.QueuedCommand{Input: message, EnqueuedAt: time.Now(), From: "interrupt"})
	})
}

func (l *Loop) sendAutoAccept(w *worker.Worker) {
	q := l.CommandQueue(w.ID)
	_ = q.Enqueue(state.QueuedCommand{Input: "y", EnqueuedAt: time.Now(), From: "auto-accept"})
}

func (l *Loop) drainQueue(ctx context.Context, w *worker.Worker) {
	q := l.CommandQueue(w.ID)
	sent := 0
	for sent < MaxDrainPerTick {
		cmd, ok := q.Dequeue()
		if !ok {
			return
		}
		if err := l.tmux.SendKeys(ctx, w.SessionName, textutil.SanitizeTerminalInput(cmd.Input), true); err != nil {
			l.logger.Warn(log.CatControl, "send-keys failed", "workerId", w.ID, "error", err.Error())
			if cmd.From == "bulldoze" {
				if !l.Bulldoze(w.ID).RecordSendError() {
					l.emitBulldozePaused(w, l.Bulldoze(w.ID))
				}
			}
			return
		}
		if cmd.From == "bulldoze" {
			l.Bulldoze(w.ID).RecordSendSuccess()
		}
		if cmd.From == "human" && w.BulldozeMode {
			l.Bulldoze(w.ID).PauseForHumanInput()
			w.BulldozePaused = true
			w.BulldozePauseReason = PauseReasonHumanInput
		}
		sent++
		w.QueuedCommands = q.Len()
		if sent < MaxDrainPerTick && q.Len() > 0 {
			time.Sleep(CommandSpacing)
		}
	}
}

func ptrNormalize(w *worker.Worker) *worker.Normalized {
	n := worker.Normalize(w)
	return &n
}
