package control

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBulldozeAdvanceContinuesUntilHardStop(t *testing.T) {
	b := NewBulldozeState()
	b.Start()

	assert.True(t, b.Advance("still working"))
	assert.Equal(t, BulldozeRunning, b.Phase)

	cont := b.Advance("Permission denied while writing file")
	assert.False(t, cont)
	assert.Equal(t, BulldozePaused, b.Phase)
	assert.Contains(t, b.PauseReason, "permission denied")
}

func TestBulldozePausesAtCycleLimit(t *testing.T) {
	b := NewBulldozeState()
	b.Start()

	for i := 0; i < MaxBulldozeCycles-1; i++ {
		assert.True(t, b.Advance("ok"))
	}
	cont := b.Advance("ok")
	assert.False(t, cont)
	assert.Equal(t, BulldozePaused, b.Phase)
}

func TestBulldozeResume(t *testing.T) {
	b := NewBulldozeState()
	b.Start()
	b.Advance("authentication required")
	assert.Equal(t, BulldozePaused, b.Phase)

	b.Resume()
	assert.Equal(t, BulldozeRunning, b.Phase)
	assert.Empty(t, b.PauseReason)
}

func TestBulldozeAdvanceNoopWhenNotRunning(t *testing.T) {
	b := NewBulldozeState()
	assert.False(t, b.Advance("anything"))
	assert.Equal(t, 0, b.CyclesDone)
}

func TestBulldozeAdvancePausesOnExplicitMarker(t *testing.T) {
	b := NewBulldozeState()
	b.Start()

	cont := b.Advance("nothing left to do, state: EXHAUSTED")
	assert.False(t, cont)
	assert.Equal(t, BulldozePaused, b.Phase)
	assert.Contains(t, b.PauseReason, "EXHAUSTED")
}

func TestBulldozeRecordSendErrorPausesAfterThreeInARow(t *testing.T) {
	b := NewBulldozeState()
	b.Start()

	assert.True(t, b.RecordSendError())
	assert.True(t, b.RecordSendError())
	assert.False(t, b.RecordSendError())
	assert.Equal(t, BulldozePaused, b.Phase)

	b.Resume()
	b.RecordSendSuccess()
	assert.Equal(t, 0, b.ConsecutiveSendErrors)
}

func TestBulldozeRecordCompactionPausesAfterThree(t *testing.T) {
	b := NewBulldozeState()
	b.Start()

	assert.True(t, b.RecordCompaction())
	assert.True(t, b.RecordCompaction())
	assert.False(t, b.RecordCompaction())
	assert.Equal(t, BulldozePaused, b.Phase)
	assert.Contains(t, b.PauseReason, "compactions")
}

func TestBulldozeRecordCommitCheckPausesAfterFiveDryCycles(t *testing.T) {
	b := NewBulldozeState()
	b.Start()

	for i := 0; i < MaxNoCommitCycles-1; i++ {
		assert.True(t, b.RecordCommitCheck(false))
	}
	assert.False(t, b.RecordCommitCheck(false))
	assert.Equal(t, BulldozePaused, b.Phase)

	b.Resume()
	assert.True(t, b.RecordCommitCheck(true))
	assert.Equal(t, 0, b.NoCommitCycles)
}

func TestBulldozeIsAuditCycleEveryFifthCycle(t *testing.T) {
	b := NewBulldozeState()
	b.Start()

	for i := 1; i <= AuditEveryNCycles; i++ {
		b.Advance("ok")
	}
	assert.True(t, b.IsAuditCycle())
}

func TestBulldozePauseForChildrenAndResume(t *testing.T) {
	b := NewBulldozeState()
	b.Start()

	b.PauseForChildren()
	assert.Equal(t, BulldozePaused, b.Phase)
	assert.Equal(t, PauseReasonChildren, b.PauseReason)

	b.ResumeFromChildren()
	assert.Equal(t, BulldozeRunning, b.Phase)
}

func TestBulldozePauseForHumanInput(t *testing.T) {
	b := NewBulldozeState()
	b.Start()

	b.PauseForHumanInput()
	assert.Equal(t, BulldozePaused, b.Phase)
	assert.Equal(t, PauseReasonHumanInput, b.PauseReason)
}
