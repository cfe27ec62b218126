package lifecycle

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/strategos/strategos/internal/log"
	"github.com/strategos/strategos/internal/orchestration/events"
	"github.com/strategos/strategos/internal/orchestration/state"
	"github.com/strategos/strategos/internal/orchestration/templates"
	"github.com/strategos/strategos/internal/orchestration/tracing"
	"github.com/strategos/strategos/internal/orchestration/worker"
	"github.com/strategos/strategos/internal/paths"
)

// InitialMessageDelay is how long after spawn the first pane input is sent
// (§4.6 step 6: "delayed (≈3s) delivery").
const InitialMessageDelay = 3 * time.Second

// RalphAdoptionReminder is the delay before a Ralph worker's adoption
// reminder on a fresh spawn (§4.6 step 7).
const RalphAdoptionReminder = 60 * time.Second

// RalphAdoptionReminderOnRestore is the shorter reminder delay used when a
// Ralph worker is recreated from a persisted snapshot (§4.6 step 7: "on
// restore, send the reminder after 30s").
const RalphAdoptionReminderOnRestore = 30 * time.Second

// TaskSpec is the structured task description delivered to a worker on
// spawn (§4.6 step 6: "purpose, success criteria, key steps, constraints").
type TaskSpec struct {
	Purpose         string
	SuccessCriteria []string
	KeySteps        []string
	Constraints     []string
}

// OnCompleteAction is the closed sum type dispatched when a worker
// completes (§4.6, §9: "spawn | webhook | emit").
type OnCompleteAction struct {
	Kind string // "spawn", "webhook", or "emit"

	// spawn
	SpawnProject string
	SpawnLabel   string
	SpawnOptions SpawnOptions

	// webhook
	URL     string
	Method  string
	Payload map[string]any

	// emit
	Event string
}

// SpawnOptions carries every spawn-time option a caller may set (§4.6).
type SpawnOptions struct {
	TaskID         string
	Task           *TaskSpec
	DependsOn      []string
	WorkflowID     string
	ParentWorkerID string
	ParentLabel    string
	Backend        worker.Backend
	RalphMode      bool
	AutoAccept     bool
	BulldozeMode   bool
	AllowDuplicate bool
	OnComplete     *OnCompleteAction
	// Restore marks a spawn issued from restoreWorkerState, shortening the
	// Ralph adoption reminder from 60s to 30s.
	Restore bool
}

// Spawn creates (or queues as pending) a new worker per §4.6's Spawn
// algorithm.
func (e *Engine) Spawn(ctx context.Context, projectPath, label string, opts SpawnOptions) (spawned *worker.Worker, err error) {
	ctx, span := e.traceOp(ctx, "spawn",
		attribute.String(tracing.AttrProject, projectPath),
		attribute.String(tracing.AttrWorkerLabel, label),
		attribute.String(tracing.AttrWorkflowID, opts.WorkflowID),
	)
	defer func() { endSpan(span, err) }()

	if e.creationBreaker.Tripped() {
		return nil, fmt.Errorf("lifecycle: spawn circuit breaker tripped")
	}
	if e.activeCount()+e.pendingCount()+e.inFlight.Len() >= e.cfg.MaxActiveWorkers {
		return nil, ErrAtCapacity
	}

	key := state.SpawnKey(label, projectPath)
	if !opts.AllowDuplicate && e.isDuplicate(key) {
		return nil, fmt.Errorf("lifecycle: worker %q already live, pending, or in flight", key)
	}
	if !e.inFlight.Add(key) {
		return nil, fmt.Errorf("lifecycle: worker %q already live, pending, or in flight", key)
	}
	defer e.inFlight.Remove(key)

	workingDir, err := paths.ResolveProjectDir(e.cfg.TheaRoot, projectPath)
	if err != nil {
		return nil, fmt.Errorf("lifecycle: resolving project path: %w", err)
	}

	id := worker.NewID()
	span.SetAttributes(attribute.String(tracing.AttrWorkerID, id))
	if err := e.graph.RegisterWorker(id, opts.WorkflowID, opts.DependsOn); err != nil {
		return nil, fmt.Errorf("lifecycle: registering dependency graph: %w", err)
	}

	w := &worker.Worker{
		ID:             id,
		Label:          label,
		Project:        paths.ProjectBasename(workingDir),
		WorkingDir:     workingDir,
		SessionName:    worker.SessionNameFor(id),
		Status:         worker.StatusPending,
		Health:         worker.HealthHealthy,
		CreatedAt:      time.Now(),
		DependsOn:      append([]string(nil), opts.DependsOn...),
		WorkflowID:     opts.WorkflowID,
		ParentWorkerID: opts.ParentWorkerID,
		ParentLabel:    opts.ParentLabel,
		AutoAccept:     opts.AutoAccept,
		RalphMode:      opts.RalphMode,
		BulldozeMode:   opts.BulldozeMode,
		Backend:        opts.Backend,
		TaskID:         opts.TaskID,
	}

	if !e.dependenciesSatisfied(opts.DependsOn) {
		e.mu.Lock()
		e.pending[id] = pendingSpawn{ProjectPath: projectPath, Label: label, Opts: opts, CreatedAt: time.Now()}
		e.mu.Unlock()
		e.registry.Put(w)
		e.emit(events.WorkerPending, w, nil)
		e.recordActivity(events.WorkerPending, id, fmt.Sprintf("worker %s pending on dependencies", label))
		e.snapshotRequest()
		return w, nil
	}

	if err := e.activate(ctx, w, opts); err != nil {
		e.graph.Remove(id)
		return nil, err
	}
	return w, nil
}

// StartPendingWorker activates a worker whose dependencies have just
// become satisfied (§4.6: "performs steps 4-8 identically").
func (e *Engine) StartPendingWorker(ctx context.Context, id string) error {
	e.mu.Lock()
	rec, ok := e.pending[id]
	delete(e.pending, id)
	e.mu.Unlock()
	if !ok {
		return fmt.Errorf("lifecycle: no pending worker %q", id)
	}

	w, ok := e.registry.Get(id)
	if !ok {
		return fmt.Errorf("lifecycle: pending worker %q vanished from registry", id)
	}
	return e.activate(ctx, w, rec.Opts)
}

// dependenciesSatisfied reports whether every dependency is either unknown
// to the registry (treated as already completed, per §8's "missing
// prerequisite" scenario) or itself completed.
func (e *Engine) dependenciesSatisfied(dependsOn []string) bool {
	for _, dep := range dependsOn {
		if dw, ok := e.registry.Get(dep); ok && dw.Status != worker.StatusCompleted {
			return false
		}
	}
	return true
}

// isDuplicate reports whether key already names a live or pending worker.
func (e *Engine) isDuplicate(key string) bool {
	if e.inFlight.Has(key) {
		return true
	}
	parts := strings.SplitN(key, "::", 2)
	if len(parts) != 2 {
		return false
	}
	label, project := parts[0], parts[1]
	projectBase := paths.ProjectBasename(project)
	if resolved, err := paths.ResolveProjectDir(e.cfg.TheaRoot, project); err == nil {
		projectBase = paths.ProjectBasename(resolved)
	}

	e.mu.Lock()
	for _, rec := range e.pending {
		if rec.Label == label && rec.ProjectPath == project {
			e.mu.Unlock()
			return true
		}
	}
	e.mu.Unlock()

	for _, w := range e.registry.All() {
		if w.Label != label || w.Project != projectBase {
			continue
		}
		switch w.Status {
		case worker.StatusCompleted, worker.StatusFailed, worker.StatusStopped:
		default:
			return true
		}
	}
	return false
}

// activate performs spawn steps 4-8: context file, session creation,
// record initialization, capture/health installation, parent bookkeeping,
// delayed message delivery, and event emission.
func (e *Engine) activate(ctx context.Context, w *worker.Worker, opts SpawnOptions) error {
	if opts.RalphMode {
		w.RalphToken = newRalphToken()
		w.RalphStatus = worker.RalphPending
	}

	role := templates.DetectRole(w.Label)
	if err := e.writer.Write(w.WorkingDir, templates.Data{
		WorkerID:  w.ID,
		Label:     w.Label,
		Role:      role,
		Project:   w.Project,
		TaskID:    w.TaskID,
		Backend:   w.Backend,
		DependsOn: w.DependsOn,
	}); err != nil {
		return fmt.Errorf("lifecycle: writing context file: %w", err)
	}

	command := buildBackendCommand(w.Backend, role)
	if err := e.tmux.NewSession(ctx, w.SessionName, w.WorkingDir, command); err != nil {
		e.creationBreaker.RecordFailure(time.Now())
		_ = e.writer.Remove(w.WorkingDir, w.ID, w.Backend)
		w.Status = worker.StatusFailed
		return fmt.Errorf("lifecycle: creating session: %w", err)
	}
	e.creationBreaker.Reset()

	w.Status = worker.StatusRunning
	w.LastActivityAt = time.Now()
	e.registry.Put(w)

	if opts.OnComplete != nil {
		e.mu.Lock()
		e.onComplete[w.ID] = opts.OnComplete
		e.mu.Unlock()
	}

	if e.hist != nil {
		_ = e.hist.StartSession(ctx, w.SessionName, w.ID, w.Label)
	}

	if w.ParentWorkerID != "" {
		if parent, ok := e.registry.Get(w.ParentWorkerID); ok {
			parent.AddChild(w.ID)
			parent.DelegationMetrics.SpawnsIssued++
		} else {
			e.logger.Warn(log.CatLifecycle, "parent worker no longer exists", "workerId", w.ID, "parentWorkerId", w.ParentWorkerID)
			w.ParentWorkerID = ""
			w.ParentLabel = ""
		}
	}

	e.scheduleInitialMessage(w, opts.Task)
	if opts.RalphMode {
		delay := RalphAdoptionReminder
		if opts.Restore {
			delay = RalphAdoptionReminderOnRestore
		}
		e.scheduleRalphReminder(w.ID, delay)
	}

	e.emit(events.WorkerCreated, w, nil)
	e.recordActivity(events.WorkerCreated, w.ID, fmt.Sprintf("worker %s created in %s", w.Label, w.Project))
	e.snapshotRequest()
	return nil
}

// buildBackendCommand returns the backend CLI invocation for a new
// session, applying the read-only role's tool restriction and destructive
// shell disallow-list (§4.6 step 4).
func buildBackendCommand(backend worker.Backend, role templates.Role) string {
	if backend == worker.BackendGemini {
		return "gemini --yolo"
	}

	args := []string{"claude"}
	if isReadOnlyRole(role) {
		args = append(args, "--tools", readOnlyToolList, "--disallowedTools", strings.Join(disallowedShellPatterns, ","))
	}
	return strings.Join(args, " ")
}

// readOnlyRoles are roles restricted to inspection/coordination tools and
// barred from destructive shell commands (§4.6 step 4).
var readOnlyRoles = map[templates.Role]bool{
	templates.RoleGeneral:  true,
	templates.RoleColonel:  true,
	templates.RoleReview:   true,
	templates.RoleResearch: true,
}

func isReadOnlyRole(role templates.Role) bool {
	return readOnlyRoles[role]
}

const readOnlyToolList = "Read,Grep,Glob,WebFetch"

var disallowedShellPatterns = []string{
	"rm -rf *",
	"git push --force*",
	"git reset --hard*",
}
