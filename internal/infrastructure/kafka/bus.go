package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	domoutbox "github.com/Zhima-Mochi/minishop-checkout/internal/domain/outbox"
	"github.com/Zhima-Mochi/minishop-checkout/internal/observability"
	"github.com/Zhima-Mochi/minishop-checkout/internal/observability/logctx"

	"github.com/segmentio/kafka-go"
)

const (
	componentKafka  = "kafka_bus"
	headerEventType = "event_type"
	retryBackoff    = time.Second
)

var ErrUnroutable = errors.New("kafka: no topic for event")

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type Config struct {
	Brokers        []string
	GroupID        string
	Routes         map[string]Route // event name -> route
	HandlerTimeout time.Duration
}

// Bus publishes events to Kafka topics keyed by their partition key and feeds
// subscribed handlers from one consumer-group reader per topic.
// Offsets are committed after the handlers ran, so delivery is at least once.
type Bus struct {
	cfg       Config
	newWriter func(topic string) messageWriter
	newReader func(topic string) messageReader

	mu      sync.Mutex
	writers map[string]messageWriter
	readers []messageReader
	subs    map[string][]domoutbox.Handler

	cancel context.CancelFunc
	wg     sync.WaitGroup

	log          observability.Logger
	consumed     observability.Counter
	extCounter   observability.Counter
	extHistogram observability.Histogram
}

func NewBus(cfg Config, tel observability.Observability) *Bus {
	if tel == nil {
		tel = observability.Nop()
	}
	if cfg.Routes == nil {
		cfg.Routes = DefaultRoutes()
	}
	if cfg.HandlerTimeout <= 0 {
		cfg.HandlerTimeout = 30 * time.Second
	}
	m := tel.Metrics()
	b := &Bus{
		cfg:          cfg,
		writers:      make(map[string]messageWriter),
		subs:         make(map[string][]domoutbox.Handler),
		log:          tel.Logger().With(observability.F("component", componentKafka)),
		consumed:     m.Counter(observability.MEventsConsumed),
		extCounter:   m.Counter(observability.MExternalRequests),
		extHistogram: m.Histogram(observability.MExternalRequestDuration),
	}
	b.newWriter = func(topic string) messageWriter {
		return &kafka.Writer{
			Addr:                   kafka.TCP(cfg.Brokers...),
			Topic:                  topic,
			Balancer:               &kafka.Hash{},
			RequiredAcks:           kafka.RequireAll,
			AllowAutoTopicCreation: true,
		}
	}
	b.newReader = func(topic string) messageReader {
		return kafka.NewReader(kafka.ReaderConfig{
			Brokers:  cfg.Brokers,
			Topic:    topic,
			GroupID:  cfg.GroupID,
			MinBytes: 1,
			MaxBytes: 10e6,
		})
	}
	return b
}

func (b *Bus) Publish(ctx context.Context, e domoutbox.Event) error {
	if e == nil {
		return nil
	}
	name := e.EventName()
	route, ok := b.cfg.Routes[name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnroutable, name)
	}
	payload, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("kafka: encode %s: %w", name, err)
	}

	start := time.Now()
	err = b.writer(route.Topic).WriteMessages(ctx, kafka.Message{
		Key:     []byte(domoutbox.KeyOf(e)),
		Value:   payload,
		Headers: []kafka.Header{{Key: headerEventType, Value: []byte(name)}},
		Time:    time.Now().UTC(),
	})
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	b.extCounter.Add(1,
		observability.L("peer", "kafka"),
		observability.L("endpoint", route.Topic),
		observability.L("outcome", outcome),
	)
	b.extHistogram.Observe(time.Since(start).Seconds(),
		observability.L("peer", "kafka"),
		observability.L("endpoint", route.Topic),
	)
	if err != nil {
		return fmt.Errorf("kafka: write %s: %w", route.Topic, err)
	}
	return nil
}

func (b *Bus) writer(topic string) messageWriter {
	b.mu.Lock()
	defer b.mu.Unlock()
	w, ok := b.writers[topic]
	if !ok {
		w = b.newWriter(topic)
		b.writers[topic] = w
	}
	return w
}

// Subscribe must be called before Start.
func (b *Bus) Subscribe(eventName string, h domoutbox.Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs[eventName] = append(b.subs[eventName], h)
}

func (b *Bus) Start(ctx context.Context) {
	ctx, b.cancel = context.WithCancel(context.WithoutCancel(ctx))

	b.mu.Lock()
	defer b.mu.Unlock()
	for name, handlers := range b.subs {
		route, ok := b.cfg.Routes[name]
		if !ok {
			b.log.Warn("subscription_without_route", observability.F("event", name))
			continue
		}
		r := b.newReader(route.Topic)
		b.readers = append(b.readers, r)
		b.wg.Add(1)
		go b.consume(ctx, r, name, route, append([]domoutbox.Handler(nil), handlers...))
	}
	b.log.Info("event_bus_started",
		observability.F("group_id", b.cfg.GroupID),
		observability.F("subscriptions", len(b.readers)),
	)
}

func (b *Bus) Stop(ctx context.Context) {
	if b.cancel != nil {
		b.cancel()
	}
	done := make(chan struct{})
	go func() {
		b.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	for _, r := range b.readers {
		if err := r.Close(); err != nil {
			b.log.Warn("kafka_reader_close_failed", observability.F("error", err))
		}
	}
	for topic, w := range b.writers {
		if err := w.Close(); err != nil {
			b.log.Warn("kafka_writer_close_failed", observability.F("topic", topic), observability.F("error", err))
		}
	}
	b.log.Info("event_bus_stopped")
}

func (b *Bus) consume(ctx context.Context, r messageReader, name string, route Route, handlers []domoutbox.Handler) {
	defer b.wg.Done()
	logger := b.log.With(observability.F("topic", route.Topic), observability.F("event", name))

	for {
		msg, err := r.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			logger.Warn("kafka_fetch_failed", observability.F("error", err))
			select {
			case <-ctx.Done():
				return
			case <-time.After(retryBackoff):
			}
			continue
		}

		outcome := b.handle(ctx, logger, msg, route, handlers)
		b.consumed.Add(1, observability.L("topic", route.Topic), observability.L("outcome", outcome))

		if err := r.CommitMessages(ctx, msg); err != nil && ctx.Err() == nil {
			logger.Warn("kafka_commit_failed",
				observability.F("offset", msg.Offset),
				observability.F("error", err),
			)
		}
	}
}

// handle runs every handler for one message. Failures are logged and the message is still committed.
func (b *Bus) handle(ctx context.Context, logger observability.Logger, msg kafka.Message, route Route, handlers []domoutbox.Handler) string {
	logger = logger.With(
		observability.F("key", string(msg.Key)),
		observability.F("partition", msg.Partition),
		observability.F("offset", msg.Offset),
	)

	evt, err := route.Decode(msg.Value)
	if err != nil {
		logger.Warn("event_decode_failed", observability.F("error", err))
		return "decode_error"
	}

	outcome := "success"
	for _, h := range handlers {
		if herr := b.invoke(logctx.With(ctx, logger), logger, h, evt); herr != nil {
			outcome = "error"
			logger.Warn("event_handler_error", observability.F("error", herr))
		}
	}
	return outcome
}

func (b *Bus) invoke(ctx context.Context, logger observability.Logger, h domoutbox.Handler, evt domoutbox.Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("event_handler_panic",
				observability.F("panic", r),
				observability.F("stack", string(debug.Stack())),
			)
			err = fmt.Errorf("kafka: handler panic: %v", r)
		}
	}()
	hctx, cancel := context.WithTimeout(ctx, b.cfg.HandlerTimeout)
	defer cancel()
	return h(hctx, evt)
}
