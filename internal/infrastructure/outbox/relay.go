package outbox

import (
	"context"
	"sync"
	"time"

	domoutbox "github.com/Zhima-Mochi/minishop-checkout/internal/domain/outbox"
	"github.com/Zhima-Mochi/minishop-checkout/internal/observability"
	"github.com/Zhima-Mochi/minishop-checkout/internal/observability/logctx"
)

const (
	componentRelay = "outbox_relay"
	relayPeer      = "outbox"
)

// waker is implemented by stores that can signal freshly recorded messages.
type waker interface {
	Wake() <-chan struct{}
}

// Relay moves recorded events from a Store onto the bus, in the order they were recorded.
// A message is marked sent only after Publish succeeded, so delivery is at least once.
type Relay struct {
	store          domoutbox.Store
	publisher      domoutbox.Publisher
	interval       time.Duration
	batch          int
	publishTimeout time.Duration

	startOnce sync.Once
	stopOnce  sync.Once
	cancel    context.CancelFunc
	done      chan struct{}

	log          observability.Logger
	extCounter   observability.Counter
	extHistogram observability.Histogram
}

type RelayOption func(*Relay)

func WithPollInterval(d time.Duration) RelayOption {
	return func(r *Relay) {
		if d > 0 {
			r.interval = d
		}
	}
}

func WithBatchSize(n int) RelayOption {
	return func(r *Relay) {
		if n > 0 {
			r.batch = n
		}
	}
}

func NewRelay(store domoutbox.Store, publisher domoutbox.Publisher, tel observability.Observability, opts ...RelayOption) *Relay {
	if tel == nil {
		tel = observability.Nop()
	}
	m := tel.Metrics()
	r := &Relay{
		store:          store,
		publisher:      publisher,
		interval:       time.Second,
		batch:          100,
		publishTimeout: 5 * time.Second,
		done:           make(chan struct{}),
		log:            tel.Logger().With(observability.F("component", componentRelay)),
		extCounter:     m.Counter(observability.MExternalRequests),
		extHistogram:   m.Histogram(observability.MExternalRequestDuration),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Relay) Start(ctx context.Context) {
	r.startOnce.Do(func() {
		bg, cancel := context.WithCancel(context.WithoutCancel(ctx))
		r.cancel = cancel
		go r.run(bg)
		logctx.FromOr(ctx, r.log).Info("outbox_relay_started", observability.F("interval", r.interval.String()))
	})
}

// Stop ends the polling loop and makes one last pass over pending messages.
func (r *Relay) Stop(ctx context.Context) {
	r.stopOnce.Do(func() {
		if r.cancel == nil {
			return
		}
		r.cancel()
		select {
		case <-r.done:
		case <-ctx.Done():
		}
		if _, err := r.Flush(ctx); err != nil {
			logctx.FromOr(ctx, r.log).Warn("outbox_final_flush_failed", observability.F("error", err))
		}
		logctx.FromOr(ctx, r.log).Info("outbox_relay_stopped")
	})
}

func (r *Relay) run(ctx context.Context) {
	defer close(r.done)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	var wake <-chan struct{}
	if w, ok := r.store.(waker); ok {
		wake = w.Wake()
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		case <-wake:
		}
		for {
			n, err := r.Flush(ctx)
			if err != nil || n < r.batch {
				break
			}
		}
	}
}

// Flush relays one batch of pending messages and returns how many were handled.
// It stops at the first publish failure so later messages never overtake it.
func (r *Relay) Flush(ctx context.Context) (int, error) {
	msgs, err := r.store.Pending(ctx, r.batch)
	if err != nil {
		r.log.Warn("outbox_fetch_failed", observability.F("error", err))
		return 0, err
	}

	handled := 0
	for _, m := range msgs {
		logger := r.log.With(
			observability.F("outbox_id", m.ID),
			observability.F("event", m.Name),
			observability.F("key", m.Key),
		)
		if m.Event == nil {
			logger.Error("outbox_message_undecodable")
		} else if err := r.publish(ctx, m.Event); err != nil {
			logger.Warn("outbox_publish_failed", observability.F("error", err))
			return handled, err
		}
		if err := r.store.MarkSent(ctx, m.ID); err != nil {
			logger.Warn("outbox_mark_sent_failed", observability.F("error", err))
			return handled, err
		}
		handled++
		logger.Debug("outbox_message_relayed")
	}
	return handled, nil
}

func (r *Relay) publish(ctx context.Context, e domoutbox.Event) error {
	pubCtx, cancel := context.WithTimeout(ctx, r.publishTimeout)
	defer cancel()

	start := time.Now()
	err := r.publisher.Publish(pubCtx, e)
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	r.extCounter.Add(1,
		observability.L("peer", relayPeer),
		observability.L("endpoint", e.EventName()),
		observability.L("outcome", outcome),
	)
	r.extHistogram.Observe(time.Since(start).Seconds(),
		observability.L("peer", relayPeer),
		observability.L("endpoint", e.EventName()),
	)
	return err
}
