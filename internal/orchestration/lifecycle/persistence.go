package lifecycle

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/strategos/strategos/internal/log"
	"github.com/strategos/strategos/internal/orchestration/worker"
	"github.com/strategos/strategos/internal/paths"
)

// MaxSnapshotBytes is the largest workers.json restoreWorkerState will
// accept (§4.6: "refuses files > 10 MiB").
const MaxSnapshotBytes = 10 * 1024 * 1024

// MaxRestoredWorkers caps the number of records restoreWorkerState will
// load from a single snapshot (§4.6: "caps the worker list to 500").
const MaxRestoredWorkers = 500

// snapshotFile is the on-disk shape of workers.json (§6).
type snapshotFile struct {
	Timestamp time.Time          `json:"timestamp"`
	Workers   []persistedWorker  `json:"workers"`
}

// persistedWorker is the explicit, hand-maintained allowlist of fields
// written to and read from workers.json -- deliberately not a wildcard
// copy of worker.Worker, so a corrupt or hostile snapshot cannot smuggle
// an unexpected field into a restored worker (§4.6).
type persistedWorker struct {
	ID          string `json:"id"`
	Label       string `json:"label"`
	Project     string `json:"project"`
	WorkingDir  string `json:"workingDir"`
	SessionName string `json:"sessionName"`

	Status           worker.Status `json:"status"`
	Health           worker.Health `json:"health"`
	CrashReason      string        `json:"crashReason,omitempty"`
	CreatedAt        time.Time     `json:"createdAt"`
	LastActivityAt   time.Time     `json:"lastActivityAt,omitzero"`
	LastOutputAt     time.Time     `json:"lastOutputAt,omitzero"`
	CompletedAt      time.Time     `json:"completedAt,omitzero"`
	AwaitingReviewAt time.Time     `json:"awaitingReviewAt,omitzero"`
	CrashedAt        time.Time     `json:"crashedAt,omitzero"`

	DependsOn          []string `json:"dependsOn,omitempty"`
	WorkflowID         string   `json:"workflowId,omitempty"`
	TaskID             string   `json:"taskId,omitempty"`
	ParentWorkerID     string   `json:"parentWorkerId,omitempty"`
	ParentLabel        string   `json:"parentLabel,omitempty"`
	ChildWorkerIDs     []string `json:"childWorkerIds,omitempty"`
	ChildWorkerHistory []string `json:"childWorkerHistory,omitempty"`

	AutoAccept          bool   `json:"autoAccept"`
	AutoAcceptPaused    bool   `json:"autoAcceptPaused"`
	RalphMode           bool   `json:"ralphMode"`
	RalphToken          string `json:"ralphToken,omitempty"`
	BulldozeMode        bool   `json:"bulldozeMode"`
	BulldozePaused      bool   `json:"bulldozePaused"`
	BulldozePauseReason string `json:"bulldozePauseReason,omitempty"`
	AutoContinue        bool   `json:"autoContinue"`

	Backend worker.Backend `json:"backend,omitempty"`

	RalphStatus      worker.RalphStatus `json:"ralphStatus,omitempty"`
	RalphProgress    int                `json:"ralphProgress"`
	RalphCurrentStep string             `json:"ralphCurrentStep,omitempty"`
	RalphLearnings   []string           `json:"ralphLearnings,omitempty"`
	RalphArtifacts   []string           `json:"ralphArtifacts,omitempty"`

	QueuedCommands          int                      `json:"queuedCommands"`
	DelegationMetrics       worker.DelegationMetrics `json:"delegationMetrics"`
	BulldozeCyclesCompleted int                      `json:"bulldozeCyclesCompleted"`
	AutoContinueCount       int                      `json:"autoContinueCount"`
	RateLimited             bool                     `json:"rateLimited"`
	RateLimitResetAt        time.Time                `json:"rateLimitResetAt,omitzero"`
}

func toPersisted(w *worker.Worker) persistedWorker {
	return persistedWorker{
		ID: w.ID, Label: w.Label, Project: w.Project, WorkingDir: w.WorkingDir, SessionName: w.SessionName,
		Status: w.Status, Health: w.Health, CrashReason: w.CrashReason,
		CreatedAt: w.CreatedAt, LastActivityAt: w.LastActivityAt, LastOutputAt: w.LastOutputAt,
		CompletedAt: w.CompletedAt, AwaitingReviewAt: w.AwaitingReviewAt, CrashedAt: w.CrashedAt,
		DependsOn: w.DependsOn, WorkflowID: w.WorkflowID, TaskID: w.TaskID,
		ParentWorkerID: w.ParentWorkerID, ParentLabel: w.ParentLabel,
		ChildWorkerIDs: w.ChildWorkerIDs, ChildWorkerHistory: w.ChildWorkerHistory,
		AutoAccept: w.AutoAccept, AutoAcceptPaused: w.AutoAcceptPaused,
		RalphMode: w.RalphMode, RalphToken: w.RalphToken,
		BulldozeMode: w.BulldozeMode, BulldozePaused: w.BulldozePaused, BulldozePauseReason: w.BulldozePauseReason,
		AutoContinue: w.AutoContinue, Backend: w.Backend,
		RalphStatus: w.RalphStatus, RalphProgress: w.RalphProgress, RalphCurrentStep: w.RalphCurrentStep,
		RalphLearnings: w.RalphLearnings, RalphArtifacts: w.RalphArtifacts,
		QueuedCommands: w.QueuedCommands, DelegationMetrics: w.DelegationMetrics,
		BulldozeCyclesCompleted: w.BulldozeCyclesCompleted, AutoContinueCount: w.AutoContinueCount,
		RateLimited: w.RateLimited, RateLimitResetAt: w.RateLimitResetAt,
	}
}

func fromPersisted(p persistedWorker) *worker.Worker {
	return &worker.Worker{
		ID: p.ID, Label: p.Label, Project: p.Project, WorkingDir: p.WorkingDir, SessionName: p.SessionName,
		Status: p.Status, Health: p.Health, CrashReason: p.CrashReason,
		CreatedAt: p.CreatedAt, LastActivityAt: p.LastActivityAt, LastOutputAt: p.LastOutputAt,
		CompletedAt: p.CompletedAt, AwaitingReviewAt: p.AwaitingReviewAt, CrashedAt: p.CrashedAt,
		DependsOn: p.DependsOn, WorkflowID: p.WorkflowID, TaskID: p.TaskID,
		ParentWorkerID: p.ParentWorkerID, ParentLabel: p.ParentLabel,
		ChildWorkerIDs: p.ChildWorkerIDs, ChildWorkerHistory: p.ChildWorkerHistory,
		AutoAccept: p.AutoAccept, AutoAcceptPaused: p.AutoAcceptPaused,
		RalphMode: p.RalphMode, RalphToken: p.RalphToken,
		BulldozeMode: p.BulldozeMode, BulldozePaused: p.BulldozePaused, BulldozePauseReason: p.BulldozePauseReason,
		AutoContinue: p.AutoContinue, Backend: p.Backend,
		RalphStatus: p.RalphStatus, RalphProgress: p.RalphProgress, RalphCurrentStep: p.RalphCurrentStep,
		RalphLearnings: p.RalphLearnings, RalphArtifacts: p.RalphArtifacts,
		QueuedCommands: p.QueuedCommands, DelegationMetrics: p.DelegationMetrics,
		BulldozeCyclesCompleted: p.BulldozeCyclesCompleted, AutoContinueCount: p.AutoContinueCount,
		RateLimited: p.RateLimited, RateLimitResetAt: p.RateLimitResetAt,
	}
}

// persistence owns the debounced, serialized workers.json writer (§4.6,
// §5: "a single global save-state chain ensures snapshots never
// interleave; a 2s debounce coalesces bursts").
type persistence struct {
	dir      string
	debounce time.Duration
	snapshot func() snapshotFile
	logger   *log.Logger

	mu    sync.Mutex
	timer *time.Timer
	chain sync.Mutex // serializes the actual write, distinct from the debounce timer lock
}

func newPersistence(dir string, debounce time.Duration, snapshot func() snapshotFile, logger *log.Logger) *persistence {
	if debounce <= 0 {
		debounce = 2 * time.Second
	}
	return &persistence{dir: dir, debounce: debounce, snapshot: snapshot, logger: logger}
}

// requestDebounced schedules a write debounce.Duration from now, resetting
// any pending timer (saveWorkerState).
func (p *persistence) requestDebounced() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.timer != nil {
		p.timer.Stop()
	}
	p.timer = time.AfterFunc(p.debounce, p.writeNow)
}

// requestImmediate writes now, bypassing the debounce (saveWorkerStateImmediate).
func (p *persistence) requestImmediate() {
	p.mu.Lock()
	if p.timer != nil {
		p.timer.Stop()
		p.timer = nil
	}
	p.mu.Unlock()
	p.writeNow()
}

// writeNowSync is saveWorkerStateSync: a synchronous best-effort variant
// for crash handlers, sharing the same write chain lock.
func (p *persistence) writeNowSync() {
	p.writeNow()
}

func (p *persistence) writeNow() {
	p.chain.Lock()
	defer p.chain.Unlock()

	snap := p.snapshot()
	if err := p.write(snap); err != nil && p.logger != nil {
		p.logger.Warn(log.CatLifecycle, "saving worker snapshot failed", "error", err.Error())
	}
}

func (p *persistence) write(snap snapshotFile) error {
	if err := os.MkdirAll(p.dir, 0o755); err != nil {
		return fmt.Errorf("lifecycle: creating persist dir: %w", err)
	}
	body, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("lifecycle: encoding snapshot: %w", err)
	}

	path := filepath.Join(p.dir, "workers.json")
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, body, 0o644); err != nil {
		return fmt.Errorf("lifecycle: writing snapshot temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("lifecycle: renaming snapshot into place: %w", err)
	}
	return nil
}

// snapshot builds the current workers.json payload from the live registry.
func (e *Engine) snapshot() snapshotFile {
	all := e.registry.All()
	out := make([]persistedWorker, 0, len(all))
	for _, w := range all {
		out = append(out, toPersisted(w))
	}
	return snapshotFile{Timestamp: time.Now(), Workers: out}
}

// SaveStateSync is the crash-handler persistence path
// (saveWorkerStateSync): synchronous, best-effort, never returns an error
// to the caller (§4.6, §7).
func (e *Engine) SaveStateSync() {
	e.persist.writeNowSync()
}

// RestoreState loads workers.json from disk and re-populates the registry
// and dependency graph (§4.6: "restoreWorkerState").
func (e *Engine) RestoreState(ctx context.Context) error {
	path := filepath.Join(e.cfg.PersistDir, "workers.json")
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("lifecycle: statting snapshot: %w", err)
	}
	if info.Size() > MaxSnapshotBytes {
		e.logger.Warn(log.CatLifecycle, "snapshot exceeds size cap, skipping restore", "bytes", info.Size())
		return nil
	}

	body, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("lifecycle: reading snapshot: %w", err)
	}

	var snap snapshotFile
	if err := json.Unmarshal(body, &snap); err != nil {
		e.logger.Warn(log.CatLifecycle, "snapshot is corrupt, skipping restore", "error", err.Error())
		return nil
	}

	records := snap.Workers
	if len(records) > MaxRestoredWorkers {
		e.logger.Warn(log.CatLifecycle, "snapshot exceeds worker cap, truncating", "count", len(records))
		records = records[:MaxRestoredWorkers]
	}

	// Phase 1: register every worker as a graph node with no edges, so
	// phase 2 can add dependsOn edges against ids that are all already
	// known (§4.6: "first standalone nodes as graph targets, then
	// dependent nodes").
	valid := make([]*worker.Worker, 0, len(records))
	for _, rec := range records {
		if !paths.ValidSessionName(rec.SessionName) || rec.ID == "" {
			continue
		}
		w := fromPersisted(rec)
		valid = append(valid, w)
		if err := e.graph.RegisterWorker(w.ID, w.WorkflowID, nil); err != nil {
			e.logger.Warn(log.CatLifecycle, "restoring graph node failed", "workerId", w.ID, "error", err.Error())
		}
	}

	for _, w := range valid {
		if len(w.DependsOn) > 0 {
			e.graph.Remove(w.ID)
			if err := e.graph.RegisterWorker(w.ID, w.WorkflowID, w.DependsOn); err != nil {
				e.logger.Warn(log.CatLifecycle, "restoring dependency edges failed", "workerId", w.ID, "error", err.Error())
			}
		}
		switch w.Status {
		case worker.StatusCompleted:
			e.graph.MarkCompleted(w.ID)
		case worker.StatusFailed:
			e.graph.MarkFailed(w.ID)
		case worker.StatusRunning, worker.StatusWaiting:
			e.graph.MarkStarted(w.ID)
		}

		e.restoreOne(ctx, w)
	}

	time.AfterFunc(5*time.Second, func() {
		for _, w := range valid {
			if live, ok := e.registry.Get(w.ID); ok && e.health != nil {
				e.health.Evaluate(ctx, live)
			}
		}
	})

	return nil
}

// bareShellCommands lists the process names tmux reports for
// #{pane_current_command} when a pane's foreground process is a plain
// login/interactive shell rather than a backend CLI -- the signature of a
// crashed backend that tmux itself survived (§4.6: "detect dead pane
// processes (bare shell means the backend died)").
var bareShellCommands = map[string]bool{
	"sh": true, "bash": true, "zsh": true, "dash": true,
	"ksh": true, "csh": true, "tcsh": true, "fish": true,
}

// restoreOne verifies a single restored worker's session is still alive
// and capturable before re-registering it, marking it crashed if the
// backend process is gone (zombie-shell detection) (§4.6).
func (e *Engine) restoreOne(ctx context.Context, w *worker.Worker) {
	if w.Status == worker.StatusPending {
		e.mu.Lock()
		e.pending[w.ID] = pendingSpawn{ProjectPath: w.WorkingDir, Label: w.Label, CreatedAt: w.CreatedAt}
		e.mu.Unlock()
		e.registry.Put(w)
		return
	}

	ok, err := e.tmux.HasSession(ctx, w.SessionName)
	if err != nil || !ok {
		w.Status = worker.StatusFailed
		w.Health = worker.HealthDead
		e.registry.Put(w)
		return
	}

	if _, err := e.tmux.CapturePane(ctx, w.SessionName, 1); err != nil {
		w.Status = worker.StatusError
		w.Health = worker.HealthCrashed
	} else if cmd, err := e.tmux.DisplayMessage(ctx, w.SessionName, "#{pane_current_command}"); err == nil && bareShellCommands[cmd] {
		w.Status = worker.StatusError
		w.Health = worker.HealthCrashed
	}

	e.registry.Put(w)
	if e.hist != nil {
		_ = e.hist.StartSession(ctx, w.SessionName, w.ID, w.Label)
	}
}
