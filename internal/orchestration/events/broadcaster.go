package events

import (
	"context"

	"github.com/strategos/strategos/internal/pubsub"
)

// Broadcaster is the single point through which every orchestration
// component emits Events. It wraps a pubsub.Broker[Event] the way the
// engine wraps its log broker (internal/log), keeping publish non-blocking.
type Broadcaster struct {
	broker *pubsub.Broker[Event]
}

// NewBroadcaster constructs a Broadcaster over a freshly created broker.
func NewBroadcaster() *Broadcaster {
	return &Broadcaster{broker: pubsub.New[Event]()}
}

// Subscribe returns a channel of Events, closed when ctx is done or the
// Broadcaster is closed.
func (b *Broadcaster) Subscribe(ctx context.Context) <-chan pubsub.Envelope[Event] {
	return b.broker.Subscribe(ctx)
}

// Emit publishes ev on its own Topic, after stripping sensitive Extra keys.
func (b *Broadcaster) Emit(ev Event) {
	ev.Extra = StripSensitive(ev.Extra)
	b.broker.Publish(pubsub.Topic(ev.Topic), ev)
}

// Close shuts the underlying broker down, closing all subscribers.
func (b *Broadcaster) Close() {
	b.broker.Close()
}
