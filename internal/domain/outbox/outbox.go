package outbox

import (
	"context"
	"time"
)

// Event is any domain event with a name identifier.
type Event interface {
	EventName() string
}

// Keyed events carry the partition key that orders their delivery.
type Keyed interface {
	PartitionKey() string
}

// Handler processes a published event.
type Handler func(ctx context.Context, e Event) error

// Publisher publishes events to interested subscribers.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
}

// Subscriber registers handlers for event names.
type Subscriber interface {
	Subscribe(eventName string, h Handler)
}

// Message is an event recorded together with the state change that raised it,
// waiting to be relayed to the bus. Event is nil when the stored payload could not be decoded.
type Message struct {
	ID        int64
	Name      string
	Key       string
	Event     Event
	CreatedAt time.Time
}

// Store holds the recorded messages until they are relayed.
// Repositories append to it in the same transaction as their own writes.
type Store interface {
	// Pending returns up to limit unsent messages in the order they were recorded.
	Pending(ctx context.Context, limit int) ([]Message, error)
	MarkSent(ctx context.Context, id int64) error
}

// KeyOf returns the partition key of e, or "" when e is not keyed.
func KeyOf(e Event) string {
	if k, ok := e.(Keyed); ok {
		return k.PartitionKey()
	}
	return ""
}
