package state

import (
	"sync"
	"time"
)

// CircuitBreaker trips after a threshold of consecutive failures within a
// rolling time window. The health monitor keeps one per worker ID to stop
// respawning a worker that keeps dying immediately (§4.5, SPEC_FULL.md
// DOMAIN STACK); the lifecycle Engine keeps a single one for multiplexer
// session creation.
type CircuitBreaker struct {
	mu        sync.Mutex
	threshold int
	window    time.Duration
	failures  []time.Time
	tripped   bool
}

// NewCircuitBreaker creates a CircuitBreaker that trips once `threshold`
// failures are recorded within `window`.
func NewCircuitBreaker(threshold int, window time.Duration) *CircuitBreaker {
	if threshold <= 0 {
		threshold = 3
	}
	if window <= 0 {
		window = 60 * time.Second
	}
	return &CircuitBreaker{threshold: threshold, window: window}
}

// RecordFailure registers a failure at now and reports whether the breaker
// is tripped as a result. Failures older than the window are discarded
// before counting.
func (c *CircuitBreaker) RecordFailure(now time.Time) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	cutoff := now.Add(-c.window)
	kept := c.failures[:0]
	for _, t := range c.failures {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	c.failures = append(kept, now)

	if len(c.failures) >= c.threshold {
		c.tripped = true
	}
	return c.tripped
}

// Tripped reports whether the breaker is currently tripped.
func (c *CircuitBreaker) Tripped() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.tripped
}

// Reset clears all recorded failures and un-trips the breaker, used after a
// successful respawn or operator intervention.
func (c *CircuitBreaker) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failures = nil
	c.tripped = false
}
