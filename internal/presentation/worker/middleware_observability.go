package workerpresentation

import (
	"context"

	domoutbox "github.com/Zhima-Mochi/minishop-checkout/internal/domain/outbox"
	"github.com/Zhima-Mochi/minishop-checkout/internal/observability"
	"github.com/Zhima-Mochi/minishop-checkout/internal/observability/logctx"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// WithEventContext injects an event-scoped logger for background executions.
// Dynamic fields only: event_id (generated if empty), trace_id/span_id when valid,
// plus caller-provided low-cardinality attributes (service, event, key).
func WithEventContext(
	ctx context.Context,
	base observability.Logger,
	sc trace.SpanContext,
	attrs map[string]string,
) context.Context {
	if base == nil {
		base = logctx.FromOr(ctx, observability.NopLogger())
	}

	evtID := attrs["event_id"]
	if evtID == "" {
		evtID = uuid.NewString()
	}
	fields := make([]observability.Field, 0, len(attrs)+3)
	fields = append(fields, observability.F("event_id", evtID))
	if sc.HasTraceID() {
		fields = append(fields, observability.F("trace_id", sc.TraceID().String()))
	}
	if sc.HasSpanID() {
		fields = append(fields, observability.F("span_id", sc.SpanID().String()))
	}
	for k, v := range attrs {
		if k == "event_id" || v == "" {
			continue
		}
		fields = append(fields, observability.F(k, v))
	}
	return logctx.With(ctx, base.With(fields...))
}

// Subscriber decorates a bus subscriber so every handler of one service runs
// inside a consumer span with an event-scoped logger tagged with that service.
type Subscriber struct {
	next    domoutbox.Subscriber
	service string
	tel     observability.Observability
}

var _ domoutbox.Subscriber = (*Subscriber)(nil)

func NewSubscriber(next domoutbox.Subscriber, service string, tel observability.Observability) *Subscriber {
	if tel == nil {
		tel = observability.Nop()
	}
	return &Subscriber{next: next, service: service, tel: tel}
}

func (s *Subscriber) Subscribe(eventName string, h domoutbox.Handler) {
	tracer := s.tel.Tracer()
	s.next.Subscribe(eventName, func(ctx context.Context, e domoutbox.Event) error {
		key := domoutbox.KeyOf(e)
		ctx, span := tracer.Start(ctx, "EVT "+eventName,
			attribute.String("messaging.destination", eventName),
			attribute.String("messaging.message.key", key),
			attribute.String("service", s.service),
		)
		defer span.End()

		ctx = WithEventContext(ctx, logctx.FromOr(ctx, s.tel.Logger()), span.SpanContext(), map[string]string{
			"service": s.service,
			"event":   eventName,
			"key":     key,
		})
		err := h(ctx, e)
		if err != nil {
			span.RecordError(err)
		}
		return err
	})
}
