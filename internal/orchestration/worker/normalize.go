package worker

import "time"

// Normalized is the explicit allowlisted projection of a Worker used on
// every outbound event and API response (§6: "Normalized worker payload").
// It deliberately has no field for RalphToken, internal guard flags, or the
// absolute WorkingDir -- only Project (a basename) is exposed.
type Normalized struct {
	ID      string `json:"id"`
	Label   string `json:"label"`
	Project string `json:"project"`

	Status Status `json:"status"`
	Health Health `json:"health"`

	CreatedAt        time.Time `json:"createdAt"`
	LastActivityAt   time.Time `json:"lastActivityAt,omitzero"`
	LastOutputAt     time.Time `json:"lastOutputAt,omitzero"`
	CompletedAt      time.Time `json:"completedAt,omitzero"`
	AwaitingReviewAt time.Time `json:"awaitingReviewAt,omitzero"`
	CrashedAt        time.Time `json:"crashedAt,omitzero"`

	DependsOn          []string `json:"dependsOn,omitempty"`
	WorkflowID         string   `json:"workflowId,omitempty"`
	TaskID             string   `json:"taskId,omitempty"`
	ParentWorkerID     string   `json:"parentWorkerId,omitempty"`
	ParentLabel        string   `json:"parentLabel,omitempty"`
	ChildWorkerIDs     []string `json:"childWorkerIds,omitempty"`
	ChildWorkerHistory []string `json:"childWorkerHistory,omitempty"`

	AutoAccept       bool `json:"autoAccept"`
	AutoAcceptPaused bool `json:"autoAcceptPaused"`
	RalphMode        bool `json:"ralphMode"`
	BulldozeMode     bool `json:"bulldozeMode"`
	BulldozePaused   bool `json:"bulldozePaused"`
	AutoContinue     bool `json:"autoContinue"`

	RalphStatus      RalphStatus `json:"ralphStatus,omitempty"`
	RalphProgress    int         `json:"ralphProgress"`
	RalphCurrentStep string      `json:"ralphCurrentStep,omitempty"`
	RalphLearnings   []string    `json:"ralphLearnings,omitempty"`
	RalphOutputs     any         `json:"ralphOutputs,omitempty"`
	RalphArtifacts   []string    `json:"ralphArtifacts,omitempty"`

	QueuedCommands          int               `json:"queuedCommands"`
	DelegationMetrics       DelegationMetrics `json:"delegationMetrics"`
	BulldozeCyclesCompleted int               `json:"bulldozeCyclesCompleted"`
	AutoContinueCount       int               `json:"autoContinueCount"`
	RateLimited             bool              `json:"rateLimited"`
	RateLimitResetAt        time.Time         `json:"rateLimitResetAt,omitzero"`
}

// Normalize projects w through the allowlist. It never copies RalphToken,
// WorkingDir, SessionName, or any field not named here (§8 property 5).
func Normalize(w *Worker) Normalized {
	return Normalized{
		ID:      w.ID,
		Label:   w.Label,
		Project: w.Project,

		Status: w.Status,
		Health: w.Health,

		CreatedAt:        w.CreatedAt,
		LastActivityAt:   w.LastActivityAt,
		LastOutputAt:     w.LastOutputAt,
		CompletedAt:      w.CompletedAt,
		AwaitingReviewAt: w.AwaitingReviewAt,
		CrashedAt:        w.CrashedAt,

		DependsOn:          append([]string(nil), w.DependsOn...),
		WorkflowID:         w.WorkflowID,
		TaskID:             w.TaskID,
		ParentWorkerID:     w.ParentWorkerID,
		ParentLabel:        w.ParentLabel,
		ChildWorkerIDs:     append([]string(nil), w.ChildWorkerIDs...),
		ChildWorkerHistory: append([]string(nil), w.ChildWorkerHistory...),

		AutoAccept:       w.AutoAccept,
		AutoAcceptPaused: w.AutoAcceptPaused,
		RalphMode:        w.RalphMode,
		BulldozeMode:     w.BulldozeMode,
		BulldozePaused:   w.BulldozePaused,
		AutoContinue:     w.AutoContinue,

		RalphStatus:      w.RalphStatus,
		RalphProgress:    w.RalphProgress,
		RalphCurrentStep: w.RalphCurrentStep,
		RalphLearnings:   append([]string(nil), w.RalphLearnings...),
		RalphOutputs:     w.RalphOutputs,
		RalphArtifacts:   append([]string(nil), w.RalphArtifacts...),

		QueuedCommands:          w.QueuedCommands,
		DelegationMetrics:       w.DelegationMetrics,
		BulldozeCyclesCompleted: w.BulldozeCyclesCompleted,
		AutoContinueCount:       w.AutoContinueCount,
		RateLimited:             w.RateLimited,
		RateLimitResetAt:        w.RateLimitResetAt,
	}
}
