// Package events defines the topic vocabulary broadcast over the engine's
// pubsub broker (§6). Events carry only Normalized worker payloads and
// scalar fields -- never a raw Worker, RalphToken, or absolute path.
package events

import (
	"time"

	"github.com/strategos/strategos/internal/orchestration/worker"
)

// Topic identifies an event's channel on the broker.
type Topic string

// The full topic vocabulary (§6).
const (
	WorkerCreated               Topic = "worker:created"
	WorkerUpdated               Topic = "worker:updated"
	WorkerDeleted               Topic = "worker:deleted"
	WorkerOutput                Topic = "worker:output"
	WorkerCompleted             Topic = "worker:completed"
	WorkerCrashed               Topic = "worker:crashed"
	WorkerStalled               Topic = "worker:stalled"
	WorkerRespawned             Topic = "worker:respawned"
	WorkerRateLimited           Topic = "worker:rate_limited"
	WorkerAutoContinue          Topic = "worker:autocontinue"
	WorkerAutoContinueExhausted Topic = "worker:autocontinue:exhausted"
	WorkerRoleViolation         Topic = "worker:role:violation"
	WorkerGeneralDead           Topic = "worker:general:dead"
	WorkerKillBlocked           Topic = "worker:kill:blocked"
	WorkerPending               Topic = "worker:pending"
	WorkerBulldozeCycle         Topic = "worker:bulldoze:cycle"
	WorkerBulldozePaused        Topic = "worker:bulldoze:paused"
	WorkerDependenciesSatisfied Topic = "worker:dependencies_satisfied"
	DependenciesTriggered       Topic = "dependencies:triggered"
	ActivityNew                 Topic = "activity:new"
)

// Event is the envelope published on every topic. Extra carries
// topic-specific scalar detail (e.g. "reason", "cycle", "crashPattern");
// it must never hold a full worker.Worker or any sensitive key -- see
// StripSensitive.
type Event struct {
	Topic     Topic
	Worker    *worker.Normalized
	Extra     map[string]any
	Timestamp time.Time
}

// sensitiveKeys lists Extra keys that must never reach a subscriber (§6:
// "emit... strips sensitive keys before publishing").
var sensitiveKeys = map[string]bool{
	"ralphToken": true,
	"token":      true,
	"secret":     true,
	"password":   true,
	"apiKey":     true,
	"workingDir": true,
}

// StripSensitive returns a copy of extra with every sensitive key removed.
// It is applied to every outbound Event.Extra before publish.
func StripSensitive(extra map[string]any) map[string]any {
	if extra == nil {
		return nil
	}
	out := make(map[string]any, len(extra))
	for k, v := range extra {
		if sensitiveKeys[k] {
			continue
		}
		out[k] = v
	}
	return out
}

// New builds an Event for topic, stamping Timestamp and stripping Extra.
func New(topic Topic, w *worker.Normalized, extra map[string]any) Event {
	return Event{
		Topic:     topic,
		Worker:    w,
		Extra:     StripSensitive(extra),
		Timestamp: time.Now(),
	}
}

// ActivityEntry is a single bounded-ring activity record surfaced for the
// "recent activity" view (§6, SPEC_FULL.md state core).
type ActivityEntry struct {
	Topic     Topic     `json:"topic"`
	WorkerID  string    `json:"workerId,omitempty"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}
