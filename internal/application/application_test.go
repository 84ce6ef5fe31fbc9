package application

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domoutbox "github.com/Zhima-Mochi/minishop-checkout/internal/domain/outbox"
	"github.com/Zhima-Mochi/minishop-checkout/internal/observability"
)

type recordingLogger struct {
	mu      sync.Mutex
	entries []map[string]any
	fields  []observability.Field
}

func (l *recordingLogger) With(fields ...observability.Field) observability.Logger {
	return &childLogger{root: l, fields: append(append([]observability.Field(nil), l.fields...), fields...)}
}
func (l *recordingLogger) Debug(msg string, f ...observability.Field) { l.record(msg, nil, f) }
func (l *recordingLogger) Info(msg string, f ...observability.Field)  { l.record(msg, nil, f) }
func (l *recordingLogger) Warn(msg string, f ...observability.Field)  { l.record(msg, nil, f) }
func (l *recordingLogger) Error(msg string, f ...observability.Field) { l.record(msg, nil, f) }

func (l *recordingLogger) record(msg string, bound, fields []observability.Field) {
	l.mu.Lock()
	defer l.mu.Unlock()
	e := map[string]any{"msg": msg}
	for _, f := range append(bound, fields...) {
		e[f.Key] = f.Value
	}
	l.entries = append(l.entries, e)
}

type childLogger struct {
	root   *recordingLogger
	fields []observability.Field
}

func (c *childLogger) With(fields ...observability.Field) observability.Logger {
	return &childLogger{root: c.root, fields: append(append([]observability.Field(nil), c.fields...), fields...)}
}
func (c *childLogger) Debug(msg string, f ...observability.Field) { c.root.record(msg, c.fields, f) }
func (c *childLogger) Info(msg string, f ...observability.Field)  { c.root.record(msg, c.fields, f) }
func (c *childLogger) Warn(msg string, f ...observability.Field)  { c.root.record(msg, c.fields, f) }
func (c *childLogger) Error(msg string, f ...observability.Field) { c.root.record(msg, c.fields, f) }

type countingCounter struct {
	mu    sync.Mutex
	calls [][]observability.Label
}

func (c *countingCounter) Add(_ float64, labels ...observability.Label) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, labels)
}

type fakeMetrics struct{ counter *countingCounter }

func (m fakeMetrics) Counter(name observability.MetricKey) observability.Counter {
	if name == observability.MUsecaseRequests {
		return m.counter
	}
	return observability.NopCounter()
}
func (fakeMetrics) Histogram(observability.MetricKey) observability.Histogram {
	return observability.NopHistogram()
}

type fakeTel struct {
	log     *recordingLogger
	metrics fakeMetrics
}

func (t fakeTel) Tracer() observability.Tracer   { return observability.NopTracer() }
func (t fakeTel) Logger() observability.Logger   { return t.log }
func (t fakeTel) Metrics() observability.Metrics { return t.metrics }

func TestCallEndReportsOutcome(t *testing.T) {
	log := &recordingLogger{}
	counter := &countingCounter{}
	in := NewInstruments(fakeTel{log: log, metrics: fakeMetrics{counter: counter}}, "checkout")

	_, call := in.Start(context.Background(), "order.place", "PlaceOrder")
	call.Fail("INSUFFICIENT_INVENTORY")
	call.Annotate(observability.F("order_id", "ord-1"))
	call.End(errors.New("out of stock"))

	require.Len(t, log.entries, 1)
	entry := log.entries[0]
	assert.Equal(t, "use_case_done", entry["msg"])
	assert.Equal(t, "error", entry["outcome"])
	assert.Equal(t, "INSUFFICIENT_INVENTORY", entry["status"])
	assert.Equal(t, "ord-1", entry["order_id"])
	assert.Equal(t, "order.place", entry["use_case"])
	assert.Equal(t, "checkout", entry["service"])

	require.Len(t, counter.calls, 1)
	assert.Contains(t, counter.calls[0], observability.L("outcome", "error"))
}

func TestCallEndDefaultsUnexpectedError(t *testing.T) {
	log := &recordingLogger{}
	in := NewInstruments(fakeTel{log: log, metrics: fakeMetrics{counter: &countingCounter{}}}, "checkout")

	_, call := in.Start(context.Background(), "order.cancel", "CancelOrder")
	call.End(errors.New("boom"))

	assert.Equal(t, "UNEXPECTED_ERROR", log.entries[0]["status"])
}

func TestCallEndKeepsExplicitStatus(t *testing.T) {
	log := &recordingLogger{}
	in := NewInstruments(fakeTel{log: log, metrics: fakeMetrics{counter: &countingCounter{}}}, "checkout")

	_, call := in.Start(context.Background(), "order.place", "PlaceOrder")
	call.Status("INVOICE_UNAVAILABLE")
	call.End(errors.New("gateway down"))

	require.Len(t, log.entries, 1)
	assert.Equal(t, "error", log.entries[0]["outcome"])
	assert.Equal(t, "INVOICE_UNAVAILABLE", log.entries[0]["status"])
}

func TestNilObservabilityIsSafe(t *testing.T) {
	in := NewInstruments(nil, "checkout")
	_, call := in.Start(context.Background(), "x", "X")
	assert.NotPanics(t, func() { call.End(nil) })
}

type namedEvent string

func (e namedEvent) EventName() string { return string(e) }

type flakyPublisher struct{ published []string }

func (p *flakyPublisher) Publish(ctx context.Context, e domoutbox.Event) error {
	if _, ok := ctx.Deadline(); !ok {
		return errors.New("publish without deadline")
	}
	if e.EventName() == "payment.failed" {
		return errors.New("queue full")
	}
	p.published = append(p.published, e.EventName())
	return nil
}

func TestCallPublishAnnotatesFailures(t *testing.T) {
	log := &recordingLogger{}
	in := NewInstruments(fakeTel{log: log, metrics: fakeMetrics{counter: &countingCounter{}}}, "checkout")
	pub := &flakyPublisher{}

	ctx, call := in.Start(context.Background(), "payment.reconcile", "Reconcile")
	call.Publish(ctx, pub, namedEvent("payment.failed"), nil, namedEvent("order.canceled"))
	call.End(nil)

	assert.Equal(t, []string{"order.canceled"}, pub.published)
	require.Len(t, log.entries, 1)
	assert.Equal(t, "success", log.entries[0]["outcome"])
	assert.Equal(t, "queue full", log.entries[0]["event_publish_error"])
}

func TestCallPublishWithoutPublisher(t *testing.T) {
	in := NewInstruments(nil, "checkout")
	ctx, call := in.Start(context.Background(), "order.place", "PlaceOrder")
	assert.NotPanics(t, func() { call.Publish(ctx, nil, namedEvent("order.placed")) })
	call.End(nil)
}
