package health

import "context"

// Spawner is the subset of lifecycle operations health needs to drive
// respawn and auto-promotion, injected to avoid an import cycle between
// health and lifecycle (lifecycle constructs and owns the Monitor).
type Spawner interface {
	// Respawn spawns a replacement worker in workerID's working directory
	// with the same task and parent relation, telling the agent it is
	// resuming (§4.5 crash recovery).
	Respawn(ctx context.Context, workerID string) error

	// PromoteToDone runs the shared done-path for a Ralph worker that has
	// reached completion: status change, parent delivery, parent
	// aggregation, events (§4.5: "delegated to a shared helper").
	PromoteToDone(ctx context.Context, workerID string) error
}
