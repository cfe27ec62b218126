package control

import (
	"fmt"
	"strings"
	"time"
)

// BulldozePhase is the state of a worker's autonomous continuation loop
// (§4.4: repeatedly feed a continuation prompt until a hard stop, the
// cycle limit, or a pause condition is reached).
type BulldozePhase string

// Bulldoze phases.
const (
	BulldozeIdle    BulldozePhase = "idle"
	BulldozeRunning BulldozePhase = "running"
	BulldozePaused  BulldozePhase = "paused"
	BulldozeStopped BulldozePhase = "stopped"
)

// Tuning constants for the continuation loop's hard stops (§4.4).
const (
	MaxBulldozeCycles        = 50
	MaxBulldozeWallClock     = 8 * time.Hour
	MaxConsecutiveSendErrors = 3
	MaxCompactions           = 3
	MaxNoCommitCycles        = 5
	AuditEveryNCycles        = 5

	PauseReasonHumanInput = "human_input"
	PauseReasonChildren   = "awaiting_children"
)

// hardStopPatterns are output substrings that always pause bulldoze
// regardless of cycle count -- the CLI is waiting on something only a
// human (or a role-appropriate worker) can resolve.
var hardStopPatterns = []string{
	"permission denied",
	"authentication required",
	"disk quota exceeded",
}

// explicitStateMarkers are tokens a worker writes into its own output (or
// bulldoze state file) to signal it cannot make further autonomous
// progress (§4.4).
var explicitStateMarkers = []string{"EXHAUSTED", "BLOCKED", "NEEDS_HUMAN"}

// BulldozeState tracks one worker's continuation loop: cycle count, the
// three hard-stop counters (send errors, compactions, commit-less cycles),
// and the current phase/pause reason.
type BulldozeState struct {
	Phase       BulldozePhase
	PauseReason string

	StartedAt time.Time

	CyclesDone            int
	ConsecutiveSendErrors int
	CompactionCount       int
	NoCommitCycles        int
}

// NewBulldozeState creates an idle BulldozeState.
func NewBulldozeState() *BulldozeState {
	return &BulldozeState{Phase: BulldozeIdle}
}

// Start transitions to running and records the loop's start time, a no-op
// if already running.
func (b *BulldozeState) Start() {
	if b.Phase == BulldozeRunning {
		return
	}
	b.Phase = BulldozeRunning
	b.PauseReason = ""
	if b.StartedAt.IsZero() {
		b.StartedAt = time.Now()
	}
}

// IsAuditCycle reports whether the cycle about to run is an audit cycle:
// every AuditEveryNCycles'th continuation is an "AUDIT" prompt instead of
// a "next cycle" prompt (§4.4).
func (b *BulldozeState) IsAuditCycle() bool {
	return b.CyclesDone > 0 && b.CyclesDone%AuditEveryNCycles == 0
}

// Advance records a completed continuation cycle against output, pausing
// the loop if a hard-stop pattern, an explicit state marker, the wall-clock
// budget, or the cycle cap is hit. Returns true if another continuation
// prompt should be sent.
func (b *BulldozeState) Advance(output string) bool {
	if b.Phase != BulldozeRunning {
		return false
	}

	b.CyclesDone++

	if reason, hit := matchesAny(output, explicitStateMarkers); hit {
		return b.pause(fmt.Sprintf("explicit state marker: %s", reason))
	}

	lowerOutput := strings.ToLower(output)
	for _, pat := range hardStopPatterns {
		if strings.Contains(lowerOutput, pat) {
			return b.pause(fmt.Sprintf("hard stop matched: %q", pat))
		}
	}

	if !b.StartedAt.IsZero() && time.Since(b.StartedAt) >= MaxBulldozeWallClock {
		return b.pause("wall-clock budget exceeded")
	}
	if b.CyclesDone >= MaxBulldozeCycles {
		return b.pause("cycle limit reached")
	}

	return true
}

// RecordSendError counts a failed attempt to deliver the continuation
// prompt, pausing after MaxConsecutiveSendErrors in a row (§4.4: "3
// consecutive send errors"). Returns true if the loop may continue.
func (b *BulldozeState) RecordSendError() bool {
	b.ConsecutiveSendErrors++
	if b.ConsecutiveSendErrors >= MaxConsecutiveSendErrors {
		return b.pause("3 consecutive send errors")
	}
	return b.Phase == BulldozeRunning
}

// RecordSendSuccess resets the consecutive-send-error counter.
func (b *BulldozeState) RecordSendSuccess() {
	b.ConsecutiveSendErrors = 0
}

// RecordCompaction counts a detected context-compaction event, pausing
// after MaxCompactions (§4.4: "3 compactions"). Returns true if the loop
// may continue.
func (b *BulldozeState) RecordCompaction() bool {
	b.CompactionCount++
	if b.CompactionCount >= MaxCompactions {
		return b.pause("3 compactions")
	}
	return b.Phase == BulldozeRunning
}

// RecordCommitCheck updates the commit-less-cycle counter from whether git
// history advanced since the last cycle (§4.4: "5 consecutive cycles with
// zero new git commits"). Returns true if the loop may continue.
func (b *BulldozeState) RecordCommitCheck(hasNewCommits bool) bool {
	if hasNewCommits {
		b.NoCommitCycles = 0
		return b.Phase == BulldozeRunning
	}
	b.NoCommitCycles++
	if b.NoCommitCycles >= MaxNoCommitCycles {
		return b.pause("5 consecutive cycles with zero new commits")
	}
	return b.Phase == BulldozeRunning
}

// PauseForHumanInput auto-pauses bulldoze because a human sent non-bulldoze
// input to the worker (§4.4: "Any non-bulldoze input from a human
// auto-pauses bulldoze with reason human_input").
func (b *BulldozeState) PauseForHumanInput() {
	b.pause(PauseReasonHumanInput)
}

// PauseForChildren pauses bulldoze while the worker has a live child that is
// running and in_progress (§4.4), a no-op if already paused.
func (b *BulldozeState) PauseForChildren() {
	if b.Phase != BulldozeRunning {
		return
	}
	b.pause(PauseReasonChildren)
}

// ResumeFromChildren resumes a pause that was specifically for live
// children, once none remain; it does not clear other pause reasons.
func (b *BulldozeState) ResumeFromChildren() {
	if b.Phase == BulldozePaused && b.PauseReason == PauseReasonChildren {
		b.Resume()
	}
}

func (b *BulldozeState) pause(reason string) bool {
	b.Phase = BulldozePaused
	b.PauseReason = reason
	return false
}

// Stop ends the loop permanently.
func (b *BulldozeState) Stop() {
	b.Phase = BulldozeStopped
}

// Resume clears a pause and returns to running, a no-op unless currently
// paused.
func (b *BulldozeState) Resume() {
	if b.Phase != BulldozePaused {
		return
	}
	b.Phase = BulldozeRunning
	b.PauseReason = ""
}

func matchesAny(output string, markers []string) (string, bool) {
	for _, m := range markers {
		if strings.Contains(output, m) {
			return m, true
		}
	}
	return "", false
}
