// Package worker defines the engine's core domain model: the Worker
// record, its lifecycle/health enumerations, and the allowlisted
// projection used on every external interface (§3, §6). Nothing in this
// package talks to a multiplexer, the filesystem, or a clock source beyond
// reading time.Now() for defaults -- it is pure data.
package worker

import (
	"encoding/base32"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Status is the worker lifecycle state (§3).
type Status string

// Lifecycle states.
const (
	StatusPending         Status = "pending"
	StatusWaiting         Status = "waiting"
	StatusReady           Status = "ready"
	StatusRunning         Status = "running"
	StatusAwaitingReview  Status = "awaiting_review"
	StatusCompleted       Status = "completed"
	StatusStopped         Status = "stopped"
	StatusError           Status = "error"
	StatusFailed          Status = "failed"
)

// Health is the worker health state (§3).
type Health string

// Health states.
const (
	HealthHealthy  Health = "healthy"
	HealthDegraded Health = "degraded"
	HealthStalled  Health = "stalled"
	HealthCrashed  Health = "crashed"
	HealthDead     Health = "dead"
)

// RalphStatus is the Ralph progress-signaling state (§3).
type RalphStatus string

// Ralph signaling states.
const (
	RalphPending    RalphStatus = "pending"
	RalphInProgress RalphStatus = "in_progress"
	RalphDone       RalphStatus = "done"
	RalphBlocked    RalphStatus = "blocked"
)

// Backend identifies which AI CLI a worker runs.
type Backend string

// Supported backends (§4.3, §6).
const (
	BackendClaude Backend = "claude"
	BackendGemini Backend = "gemini"
)

// DelegationMetrics tracks a worker's command-and-control activity (§3).
type DelegationMetrics struct {
	SpawnsIssued  int `json:"spawnsIssued"`
	RoleViolations int `json:"roleViolations"`
	FilesEdited   int `json:"filesEdited"`
	CommandsRun   int `json:"commandsRun"`
}

// Worker is the engine's primary entity: a managed terminal session running
// an AI coding agent. Fields are grouped per §3.
type Worker struct {
	// Identity.
	ID          string
	Label       string
	Project     string
	WorkingDir  string
	SessionName string

	// Lifecycle.
	Status            Status
	Health            Health
	CrashReason       string
	CreatedAt         time.Time
	LastActivityAt    time.Time
	LastOutputAt      time.Time
	CompletedAt       time.Time
	AwaitingReviewAt  time.Time
	CrashedAt         time.Time

	// Relations.
	DependsOn          []string
	WorkflowID         string
	TaskID             string
	ParentWorkerID     string
	ParentLabel        string
	ChildWorkerIDs     []string
	ChildWorkerHistory []string

	// Control flags.
	AutoAccept       bool
	AutoAcceptPaused bool
	RalphMode        bool
	RalphToken       string
	BulldozeMode     bool
	BulldozePaused   bool
	BulldozePauseReason string
	AutoContinue     bool

	// Backend/role.
	Backend Backend

	// Signaling.
	RalphStatus      RalphStatus
	RalphProgress    int
	RalphCurrentStep string
	RalphLearnings   []string
	// RalphOutputs may be either a plain map or an opaque string, per the
	// source system's permissive Ralph payload.
	RalphOutputs   any
	RalphArtifacts []string

	// Metrics.
	QueuedCommands          int
	DelegationMetrics       DelegationMetrics
	BulldozeCyclesCompleted int
	AutoContinueCount       int
	RateLimited             bool
	RateLimitResetAt        time.Time
}

// IsProtected reports whether the worker's label marks it as a GENERAL
// (protected) worker, exempt from auto-kill/auto-respawn/auto-cleanup
// (§3 invariants, GLOSSARY).
func (w *Worker) IsProtected() bool {
	return strings.HasPrefix(strings.ToUpper(w.Label), "GENERAL:")
}

// AddChild appends childID to ChildWorkerIDs if it is not already present
// and is not w's own ID, preserving the "no duplicates, no self-reference"
// invariant (§3) regardless of how many times it is called.
func (w *Worker) AddChild(childID string) {
	if childID == "" || childID == w.ID {
		return
	}
	for _, id := range w.ChildWorkerIDs {
		if id == childID {
			return
		}
	}
	w.ChildWorkerIDs = append(w.ChildWorkerIDs, childID)
}

// RemoveChild splices childID out of ChildWorkerIDs in place and appends it
// to ChildWorkerHistory (§4.6 TeardownWorker) unless it is already recorded
// there. An absent childID leaves ChildWorkerIDs unchanged but is still
// recorded in ChildWorkerHistory.
func (w *Worker) RemoveChild(childID string) {
	for i, id := range w.ChildWorkerIDs {
		if id == childID {
			w.ChildWorkerIDs = append(w.ChildWorkerIDs[:i], w.ChildWorkerIDs[i+1:]...)
			break
		}
	}
	for _, id := range w.ChildWorkerHistory {
		if id == childID {
			return
		}
	}
	w.ChildWorkerHistory = append(w.ChildWorkerHistory, childID)
}

// idAlphabet is Crockford base32 (no padding, lowercase) so generated
// worker IDs are short, opaque, and filesystem/shell safe.
const idAlphabet = "0123456789abcdefghjkmnpqrstvwxyz"

var idEncoding = base32.NewEncoding(strings.ToUpper(idAlphabet)).WithPadding(base32.NoPadding)

// idLength is how many base32 characters of a generated UUID's bytes are
// kept for a worker ID (§3: "short opaque string").
const idLength = 8

// NewID returns a short opaque worker ID: a fresh UUIDv4, base32-encoded
// and truncated to idLength characters (§3). A collision against an
// already-registered ID is vanishingly unlikely at this length but is the
// caller's (depgraph.RegisterWorker's) responsibility to reject.
func NewID() string {
	u := uuid.New()
	encoded := strings.ToLower(idEncoding.EncodeToString(u[:]))
	return encoded[:idLength]
}

// SessionNameFor derives a worker's multiplexer session name from its ID
// (§3: "sessionName (derived from id)").
func SessionNameFor(id string) string {
	return "strategos-" + id
}
