package health

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/strategos/strategos/internal/orchestration/worker"
)

func TestSuggestionLogRecordsOnlyInProgressRalphWithTask(t *testing.T) {
	s := NewSuggestionLog()

	s.RecordDeath(&worker.Worker{ID: "w1", RalphStatus: worker.RalphInProgress, TaskID: "t1", RalphProgress: 40})
	s.RecordDeath(&worker.Worker{ID: "w2", RalphStatus: worker.RalphDone, TaskID: "t2"})
	s.RecordDeath(&worker.Worker{ID: "w3", RalphStatus: worker.RalphInProgress})

	items := s.Items()
	assert.Len(t, items, 1)
	assert.Equal(t, "w1", items[0].WorkerID)
}
