// Package state is the engine's in-memory State Core (§4.1): the worker
// registry, output buffers, command queues, and the small bounded sets and
// rings every other component reads and mutates through it. It holds no
// knowledge of tmux, the filesystem, or the dependency graph -- callers
// supply worker.Worker values and read them back.
package state

import (
	"sort"
	"sync"

	"github.com/strategos/strategos/internal/orchestration/worker"
)

// Registry is the thread-safe store of all known workers, keyed by ID.
type Registry struct {
	mu      sync.RWMutex
	workers map[string]*worker.Worker
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{workers: make(map[string]*worker.Worker)}
}

// Put inserts or replaces w.
func (r *Registry) Put(w *worker.Worker) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.workers[w.ID] = w
}

// Get returns the worker with id, or (nil, false) if unknown.
func (r *Registry) Get(id string) (*worker.Worker, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	w, ok := r.workers[id]
	return w, ok
}

// Delete removes id from the registry, a no-op if it is absent.
func (r *Registry) Delete(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.workers, id)
}

// All returns every known worker, ordered deterministically by ID.
func (r *Registry) All() []*worker.Worker {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*worker.Worker, 0, len(r.workers))
	for _, w := range r.workers {
		out = append(out, w)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Count returns the number of registered workers.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.workers)
}

// IsCompleted reports whether id refers to a worker in a completed status.
// It satisfies the isWorkerCompleted signature worker.Workflow.IsComplete
// expects; unknown ids are treated as not completed.
func (r *Registry) IsCompleted(id string) bool {
	w, ok := r.Get(id)
	if !ok {
		return false
	}
	return w.Status == worker.StatusCompleted
}
