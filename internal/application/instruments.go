package application

import (
	"context"
	"time"

	"github.com/Zhima-Mochi/minishop-checkout/internal/observability"
	"github.com/Zhima-Mochi/minishop-checkout/internal/observability/logctx"

	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const SpanPrefix = "UC."

// Instruments bundles the logger, tracer and RED metrics a use case reports to.
// Instruments are resolved once at construction, never inside Execute.
type Instruments struct {
	Log    observability.Logger
	Tracer observability.Tracer

	reqCounter   observability.Counter   // usecase_requests_total{use_case,outcome}
	durHistogram observability.Histogram // usecase_duration_seconds{use_case}
	extCounter   observability.Counter   // external_requests_total{peer,endpoint,outcome}
	extHistogram observability.Histogram // external_request_duration_seconds{peer,endpoint}
}

func NewInstruments(tel observability.Observability, service string) Instruments {
	if tel == nil {
		tel = observability.Nop()
	}
	m := tel.Metrics()
	return Instruments{
		Log:          tel.Logger().With(observability.F("service", service)),
		Tracer:       tel.Tracer(),
		reqCounter:   m.Counter(observability.MUsecaseRequests),
		durHistogram: m.Histogram(observability.MUsecaseDuration),
		extCounter:   m.Counter(observability.MExternalRequests),
		extHistogram: m.Histogram(observability.MExternalRequestDuration),
	}
}

// Logger returns the request-scoped logger when present, bound to the use case name.
func (in Instruments) Logger(ctx context.Context, useCase string, fields ...observability.Field) observability.Logger {
	base := in.Log
	if base == nil {
		base = observability.NopLogger()
	}
	fields = append([]observability.Field{observability.F("use_case", useCase)}, fields...)
	return logctx.FromOr(ctx, base).With(fields...)
}

// Run describes one finished use case execution.
type Run struct {
	UseCase string
	Outcome string
	Status  string
	Start   time.Time
	Err     error
	Fields  []observability.Field
}

// Done closes the span, records RED metrics and writes the use_case_done log entry.
func (in Instruments) Done(ctx context.Context, logger observability.Logger, span trace.Span, r Run) {
	lat := time.Since(r.Start).Seconds()

	if span != nil {
		if r.Err != nil {
			span.RecordError(r.Err)
			span.SetStatus(codes.Error, r.Status)
		} else {
			span.SetStatus(codes.Ok, r.Status)
		}
		span.End()
	}

	if in.reqCounter != nil {
		in.reqCounter.Add(1,
			observability.L("use_case", r.UseCase),
			observability.L("outcome", r.Outcome),
		)
	}
	if in.durHistogram != nil {
		in.durHistogram.Observe(lat,
			observability.L("use_case", r.UseCase),
		)
	}

	fields := []observability.Field{
		observability.F("outcome", r.Outcome),
		observability.F("status", r.Status),
		observability.F("latency_seconds", lat),
	}
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		fields = append(fields,
			observability.F("trace_id", sc.TraceID().String()),
			observability.F("span_id", sc.SpanID().String()),
		)
	}
	fields = append(fields, r.Fields...)
	if r.Err != nil {
		fields = append(fields, observability.F("error", r.Err.Error()))
	}
	logger.Info("use_case_done", fields...)
}

// External records one call to a peer service, gateway or broker.
func (in Instruments) External(peer, endpoint, outcome string, start time.Time) {
	if in.extCounter != nil {
		in.extCounter.Add(1,
			observability.L("peer", peer),
			observability.L("endpoint", endpoint),
			observability.L("outcome", outcome),
		)
	}
	if in.extHistogram != nil {
		in.extHistogram.Observe(time.Since(start).Seconds(),
			observability.L("peer", peer),
			observability.L("endpoint", endpoint),
		)
	}
}

// Outcome returns "error" for a non-nil error, "success" otherwise.
func Outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}
