package application

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	domoutbox "github.com/Zhima-Mochi/minishop-checkout/internal/domain/outbox"
	"github.com/Zhima-Mochi/minishop-checkout/internal/observability"
	"github.com/Zhima-Mochi/minishop-checkout/internal/observability/logctx"
)

type UseCase[C any, R any] interface {
	Execute(ctx context.Context, cmd C) (R, error)
}

const (
	spanPrefix = "UC."

	publishPeer = "outbox"

	// PublishTimeout bounds how long a committed use case waits on the event bus.
	PublishTimeout = 300 * time.Millisecond
)

// Instruments carries the telemetry every use case reports through.
type Instruments struct {
	tracer observability.Tracer
	log    observability.Logger
	// RED metrics (supplied via DI; do not instantiate inside methods).
	reqCounter   observability.Counter   // usecase_requests_total{use_case,outcome}
	durHistogram observability.Histogram // usecase_duration_seconds{use_case}
	extCounter   observability.Counter   // external_requests_total{peer,endpoint,outcome}
	extHistogram observability.Histogram // external_request_duration_seconds{peer,endpoint}
}

func NewInstruments(tel observability.Observability, service string) Instruments {
	tracer, logger, metrics := observability.Resolve(tel)
	return Instruments{
		tracer:       tracer,
		log:          logger.With(observability.F("service", service)),
		reqCounter:   metrics.Counter(observability.MUsecaseRequests),
		durHistogram: metrics.Histogram(observability.MUsecaseDuration),
		extCounter:   metrics.Counter(observability.MExternalRequests),
		extHistogram: metrics.Histogram(observability.MExternalRequestDuration),
	}
}

func (in Instruments) Logger() observability.Logger { return in.log }

// Call tracks one use case execution from span start to the use_case_done log line.
type Call struct {
	in      Instruments
	ctx     context.Context
	span    trace.Span
	start   time.Time
	useCase string
	log     observability.Logger

	outcome string
	status  string
	fields  []observability.Field
}

// Start opens the use case span. Callers must defer End.
func (in Instruments) Start(ctx context.Context, useCase, spanName string, attrs ...attribute.KeyValue) (context.Context, *Call) {
	logger := logctx.FromOr(ctx, in.log).With(observability.F("use_case", useCase))
	attrs = append([]attribute.KeyValue{attribute.String("use_case", useCase)}, attrs...)
	ctx, span := in.tracer.Start(ctx, spanPrefix+spanName, attrs...)
	return ctx, &Call{
		in:      in,
		ctx:     ctx,
		span:    span,
		start:   time.Now(),
		useCase: useCase,
		log:     logger,
		outcome: "success",
		status:  "OK",
	}
}

func (c *Call) Logger() observability.Logger { return c.log }
func (c *Call) Span() trace.Span             { return c.span }

// Fail marks the call as failed with a SCREAMING_SNAKE status code.
func (c *Call) Fail(status string) {
	c.outcome, c.status = "error", status
}

// Status overrides the status code while keeping the outcome.
func (c *Call) Status(status string) {
	c.status = status
}

func (c *Call) Annotate(fields ...observability.Field) {
	c.fields = append(c.fields, fields...)
}

// External records a dependency call made during the use case.
func (c *Call) External(peer, endpoint, outcome string, started time.Time) {
	c.in.extCounter.Add(1,
		observability.L("peer", peer),
		observability.L("endpoint", endpoint),
		observability.L("outcome", outcome),
	)
	c.in.extHistogram.Observe(time.Since(started).Seconds(),
		observability.L("peer", peer),
		observability.L("endpoint", endpoint),
	)
}

// Publish hands committed events to p, one outbox dependency call each.
// Failures are annotated on the call and not returned.
func (c *Call) Publish(ctx context.Context, p domoutbox.Publisher, events ...domoutbox.Event) {
	if p == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, PublishTimeout)
	defer cancel()

	for _, e := range events {
		if e == nil {
			continue
		}
		start := time.Now()
		outcome := "success"
		if err := p.Publish(ctx, e); err != nil {
			outcome = "error"
			c.Annotate(observability.F("event_publish_error", err.Error()))
		}
		c.External(publishPeer, e.EventName(), outcome, start)
	}
}

func (c *Call) End(err error) {
	lat := time.Since(c.start).Seconds()
	if err != nil && c.outcome == "success" {
		c.outcome = "error"
		if c.status == "OK" {
			c.status = "UNEXPECTED_ERROR"
		}
	}

	if c.span != nil {
		if err != nil {
			c.span.RecordError(err)
			c.span.SetStatus(codes.Error, c.status)
		} else {
			c.span.SetStatus(codes.Ok, c.status)
		}
		c.span.End()
	}

	c.in.reqCounter.Add(1,
		observability.L("use_case", c.useCase),
		observability.L("outcome", c.outcome),
	)
	c.in.durHistogram.Observe(lat,
		observability.L("use_case", c.useCase),
	)

	fields := []observability.Field{
		observability.F("outcome", c.outcome),
		observability.F("status", c.status),
		observability.F("latency_seconds", lat),
	}
	if sc := trace.SpanContextFromContext(c.ctx); sc.IsValid() {
		fields = append(fields,
			observability.F("trace_id", sc.TraceID().String()),
			observability.F("span_id", sc.SpanID().String()),
		)
	}
	fields = append(fields, c.fields...)
	if err != nil {
		fields = append(fields, observability.F("error", err.Error()))
	}

	c.log.Info("use_case_done", fields...)
}
