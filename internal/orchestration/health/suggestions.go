package health

import (
	"time"

	"github.com/strategos/strategos/internal/orchestration/state"
	"github.com/strategos/strategos/internal/orchestration/worker"
)

// MaxRespawnSuggestions bounds the suggestions ring (§4.5).
const MaxRespawnSuggestions = 20

// RespawnSuggestion is a compact record surfaced when a worker dies mid
// Ralph-signaled task, letting an operator (or the GENERAL) pick up where
// it left off (§4.5).
type RespawnSuggestion struct {
	WorkerID         string    `json:"workerId"`
	Label            string    `json:"label"`
	Project          string    `json:"project"`
	Task             string    `json:"task"`
	DiedAt           time.Time `json:"diedAt"`
	RalphProgress    int       `json:"ralphProgress"`
	RalphCurrentStep string    `json:"ralphCurrentStep"`
}

// SuggestionLog is the bounded ring of RespawnSuggestion records.
type SuggestionLog struct {
	ring *state.Ring[RespawnSuggestion]
}

// NewSuggestionLog creates an empty SuggestionLog.
func NewSuggestionLog() *SuggestionLog {
	return &SuggestionLog{ring: state.NewRing[RespawnSuggestion](MaxRespawnSuggestions)}
}

// RecordDeath prepends a suggestion for w if it died with Ralph in progress
// and a task assigned (§4.5: "whenever a worker dies while Ralph was
// in_progress and had a task").
func (s *SuggestionLog) RecordDeath(w *worker.Worker) {
	if w.RalphStatus != worker.RalphInProgress || w.TaskID == "" {
		return
	}
	s.ring.Push(RespawnSuggestion{
		WorkerID:         w.ID,
		Label:            w.Label,
		Project:          w.Project,
		Task:             w.TaskID,
		DiedAt:           time.Now(),
		RalphProgress:    w.RalphProgress,
		RalphCurrentStep: w.RalphCurrentStep,
	})
}

// Items returns the current suggestions, newest first.
func (s *SuggestionLog) Items() []RespawnSuggestion {
	items := s.ring.Items()
	for i, j := 0, len(items)-1; i < j; i, j = i+1, j-1 {
		items[i], items[j] = items[j], items[i]
	}
	return items
}
