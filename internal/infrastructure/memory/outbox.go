package memory

import (
	"context"
	"sync"
	"time"

	domoutbox "github.com/Zhima-Mochi/minishop-checkout/internal/domain/outbox"
)

// Outbox keeps recorded events in memory until the relay marks them sent.
// Repositories append while holding their own lock, so a write and its events land together.
type Outbox struct {
	mu      sync.Mutex
	seq     int64
	pending []domoutbox.Message
	wake    chan struct{}
}

func NewOutbox() *Outbox {
	return &Outbox{wake: make(chan struct{}, 1)}
}

func (o *Outbox) append(events ...domoutbox.Event) {
	if o == nil {
		return
	}
	o.mu.Lock()
	added := false
	for _, e := range events {
		if e == nil {
			continue
		}
		o.seq++
		o.pending = append(o.pending, domoutbox.Message{
			ID:        o.seq,
			Name:      e.EventName(),
			Key:       domoutbox.KeyOf(e),
			Event:     e,
			CreatedAt: time.Now().UTC(),
		})
		added = true
	}
	o.mu.Unlock()

	if added {
		select {
		case o.wake <- struct{}{}:
		default:
		}
	}
}

func (o *Outbox) Pending(ctx context.Context, limit int) ([]domoutbox.Message, error) {
	_ = ctx

	o.mu.Lock()
	defer o.mu.Unlock()

	n := len(o.pending)
	if limit > 0 && limit < n {
		n = limit
	}
	return append([]domoutbox.Message(nil), o.pending[:n]...), nil
}

func (o *Outbox) MarkSent(ctx context.Context, id int64) error {
	_ = ctx

	o.mu.Lock()
	defer o.mu.Unlock()

	for i, m := range o.pending {
		if m.ID == id {
			o.pending = append(o.pending[:i], o.pending[i+1:]...)
			return nil
		}
	}
	return nil
}

// Wake signals that new messages were recorded.
func (o *Outbox) Wake() <-chan struct{} {
	return o.wake
}
