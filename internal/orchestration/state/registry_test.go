package state

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/strategos/strategos/internal/orchestration/worker"
)

func TestRegistryPutGetDelete(t *testing.T) {
	r := NewRegistry()
	w := &worker.Worker{ID: "w1"}
	r.Put(w)

	got, ok := r.Get("w1")
	assert.True(t, ok)
	assert.Same(t, w, got)

	r.Delete("w1")
	_, ok = r.Get("w1")
	assert.False(t, ok)
}

func TestRegistryAllIsSortedByID(t *testing.T) {
	r := NewRegistry()
	r.Put(&worker.Worker{ID: "z"})
	r.Put(&worker.Worker{ID: "a"})
	r.Put(&worker.Worker{ID: "m"})

	all := r.All()
	assert.Equal(t, []string{"a", "m", "z"}, []string{all[0].ID, all[1].ID, all[2].ID})
	assert.Equal(t, 3, r.Count())
}

func TestRegistryIsCompleted(t *testing.T) {
	r := NewRegistry()
	r.Put(&worker.Worker{ID: "w1", Status: worker.StatusCompleted})
	r.Put(&worker.Worker{ID: "w2", Status: worker.StatusRunning})

	assert.True(t, r.IsCompleted("w1"))
	assert.False(t, r.IsCompleted("w2"))
	assert.False(t, r.IsCompleted("unknown"))
}
