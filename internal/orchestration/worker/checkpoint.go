package worker

import "time"

// Checkpoint is the forensic JSON document written on every abnormal
// worker termination (§3, §6). It is append-only: once written it is never
// mutated, only eventually pruned by retention.
type Checkpoint struct {
	WorkerID       string    `json:"workerId"`
	Label          string    `json:"label"`
	Reason         string    `json:"reason"`
	Task           string    `json:"task"`
	UptimeSeconds  float64   `json:"uptimeSeconds"`
	LastOutput     []string  `json:"lastOutput"` // last 50 cleaned output lines
	HealthAtDeath  Health    `json:"healthAtDeath"`
	ParentWorkerID string    `json:"parentWorkerId,omitempty"`
	ChildWorkerIDs []string  `json:"childWorkerIds,omitempty"`
	WrittenAt      time.Time `json:"writtenAt"`
}

// MaxCheckpointLines bounds the forensic output excerpt (§3: "last 50").
const MaxCheckpointLines = 50

// MaxRetainedCheckpoints bounds how many checkpoint files are kept per
// engine instance (§3: "Retained bounded (50 most recent)").
const MaxRetainedCheckpoints = 50

// NewCheckpoint builds a Checkpoint from w at the moment of abnormal
// termination. lastOutputLines is truncated to the newest MaxCheckpointLines
// entries.
func NewCheckpoint(w *Worker, reason string, lastOutputLines []string) Checkpoint {
	if len(lastOutputLines) > MaxCheckpointLines {
		lastOutputLines = lastOutputLines[len(lastOutputLines)-MaxCheckpointLines:]
	}

	var uptime float64
	if !w.CreatedAt.IsZero() {
		uptime = time.Since(w.CreatedAt).Seconds()
	}

	return Checkpoint{
		WorkerID:       w.ID,
		Label:          w.Label,
		Reason:         reason,
		Task:           w.TaskID,
		UptimeSeconds:  uptime,
		LastOutput:     append([]string(nil), lastOutputLines...),
		HealthAtDeath:  w.Health,
		ParentWorkerID: w.ParentWorkerID,
		ChildWorkerIDs: append([]string(nil), w.ChildWorkerIDs...),
		WrittenAt:      time.Now(),
	}
}
