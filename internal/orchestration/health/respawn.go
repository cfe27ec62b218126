package health

import (
	"sync"
	"time"
)

// MaxRespawnAttempts bounds how many times a crashed worker may be
// respawned within RespawnCooldown (§4.5: "at most 2 times within a 60 s
// cooldown").
const MaxRespawnAttempts = 2

// RespawnCooldown is the rolling window RespawnTracker counts attempts in.
const RespawnCooldown = 60 * time.Second

// StaleRespawnAge is how long an idle per-worker counter is kept before
// being reset on the next cleanup sweep (§4.5: "stale counters (> 60 min)
// reset").
const StaleRespawnAge = 60 * time.Minute

type respawnCounter struct {
	count       int
	lastAttempt time.Time
}

// RespawnTracker counts respawn attempts per worker ID, gating further
// attempts once MaxRespawnAttempts is reached within RespawnCooldown.
type RespawnTracker struct {
	mu       sync.Mutex
	counters map[string]*respawnCounter
}

// NewRespawnTracker creates an empty RespawnTracker.
func NewRespawnTracker() *RespawnTracker {
	return &RespawnTracker{counters: make(map[string]*respawnCounter)}
}

// CanRespawn reports whether workerID is still under the attempt cap for
// the current cooldown window.
func (r *RespawnTracker) CanRespawn(workerID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.counters[workerID]
	if !ok {
		return true
	}
	if time.Since(c.lastAttempt) >= RespawnCooldown {
		return true
	}
	return c.count < MaxRespawnAttempts
}

// RecordAttempt registers a respawn attempt for workerID, resetting the
// counter first if the previous attempt fell outside the cooldown window.
func (r *RespawnTracker) RecordAttempt(workerID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.counters[workerID]
	if !ok || time.Since(c.lastAttempt) >= RespawnCooldown {
		c = &respawnCounter{}
		r.counters[workerID] = c
	}
	c.count++
	c.lastAttempt = time.Now()
}

// PruneStale drops counters whose last attempt is older than
// StaleRespawnAge (§4.5 periodic cleanup: "trim stale respawn counters").
func (r *RespawnTracker) PruneStale() {
	r.mu.Lock()
	defer r.mu.Unlock()

	cutoff := time.Now().Add(-StaleRespawnAge)
	for id, c := range r.counters {
		if c.lastAttempt.Before(cutoff) {
			delete(r.counters, id)
		}
	}
}
