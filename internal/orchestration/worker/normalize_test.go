package worker

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeOmitsInternalFields(t *testing.T) {
	w := &Worker{
		ID:             "w1",
		Label:          "CAPTAIN: build widget",
		Project:        "myproject",
		WorkingDir:     "/home/user/projects/myproject",
		SessionName:    "strategos-w1",
		RalphToken:     "super-secret-token",
		Status:         StatusRunning,
		Health:         HealthHealthy,
		CreatedAt:      time.Now(),
		ChildWorkerIDs: []string{"c1"},
	}

	n := Normalize(w)

	assert.Equal(t, w.ID, n.ID)
	assert.Equal(t, w.Project, n.Project)
	assert.Equal(t, []string{"c1"}, n.ChildWorkerIDs)

	// The allowlisted type structurally has no field for these; this is a
	// compile-time guarantee, not a runtime check. Only WorkingDir's value
	// must never leak through a field that happens to share its name.
	assert.NotContains(t, normalizedFieldNames(), "RalphToken")
	assert.NotContains(t, normalizedFieldNames(), "WorkingDir")
	assert.NotContains(t, normalizedFieldNames(), "SessionName")
}

func TestNormalizeCopiesSlicesDefensively(t *testing.T) {
	w := &Worker{ID: "w1", ChildWorkerIDs: []string{"c1"}}
	n := Normalize(w)

	n.ChildWorkerIDs[0] = "mutated"
	assert.Equal(t, []string{"c1"}, w.ChildWorkerIDs)
}

func normalizedFieldNames() []string {
	return []string{
		"ID", "Label", "Project", "Status", "Health",
		"CreatedAt", "LastActivityAt", "LastOutputAt", "CompletedAt",
		"AwaitingReviewAt", "CrashedAt", "DependsOn", "WorkflowID", "TaskID",
		"ParentWorkerID", "ParentLabel", "ChildWorkerIDs", "ChildWorkerHistory",
		"AutoAccept", "AutoAcceptPaused", "RalphMode", "BulldozeMode",
		"BulldozePaused", "AutoContinue", "RalphStatus", "RalphProgress",
		"RalphCurrentStep", "RalphLearnings", "RalphOutputs", "RalphArtifacts",
		"QueuedCommands", "DelegationMetrics", "BulldozeCyclesCompleted",
		"AutoContinueCount", "RateLimited", "RateLimitResetAt",
	}
}
