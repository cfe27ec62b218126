package history

import (
	"context"
	"time"
)

// HistoryStore is the durable session-log contract consumed by the control
// and lifecycle packages. *Store implements it; tests substitute an
// in-memory fake.
type HistoryStore interface {
	StartSession(ctx context.Context, sessionID, workerID, label string) error
	StoreOutput(ctx context.Context, sessionID, line string) error
	EndSession(ctx context.Context, sessionID string) error
	OutputSince(ctx context.Context, sessionID string, since time.Time) ([]string, error)
}

var _ HistoryStore = (*Store)(nil)
