package observability

import (
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"

	"github.com/Zhima-Mochi/minishop-checkout/internal/infrastructure/observability/oteltrace"
	"github.com/Zhima-Mochi/minishop-checkout/internal/infrastructure/observability/prometrics"
	"github.com/Zhima-Mochi/minishop-checkout/internal/infrastructure/observability/zaplogger"
	"github.com/Zhima-Mochi/minishop-checkout/internal/observability"
)

// Options configures the process telemetry.
type Options struct {
	ServiceName string
	Env         string
	LogLevel    string
	LogFile     string
	// Registry receives the standard collectors. A fresh registry with Go and
	// process collectors is created when nil.
	Registry *prometheus.Registry
}

// Stack is the telemetry of one running process.
type Stack struct {
	observability.Observability
	zap      *zaplogger.Logger
	gatherer prometheus.Gatherer
}

// Setup builds the zap logger, the Prometheus instruments and the OTel tracer,
// and installs W3C trace-context propagation globally.
func Setup(opts Options) (*Stack, error) {
	logger, err := zaplogger.New(zaplogger.Options{
		Level: opts.LogLevel,
		File:  opts.LogFile,
		Fields: []observability.Field{
			observability.F("service", opts.ServiceName),
			observability.F("env", opts.Env),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	reg := opts.Registry
	if reg == nil {
		reg = prometheus.NewRegistry()
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}
	counters, histograms := prometrics.Standard(prometrics.New(reg, "", ""))

	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	return &Stack{
		Observability: New(oteltrace.New(opts.ServiceName), logger, counters, histograms),
		zap:           logger,
		gatherer:      reg,
	}, nil
}

// MetricsHandler serves the registry in the Prometheus exposition format.
func (s *Stack) MetricsHandler() http.Handler {
	return promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})
}

// Sync flushes buffered log entries.
func (s *Stack) Sync() error { return s.zap.Sync() }

type provider struct {
	tracer  observability.Tracer
	logger  observability.Logger
	metrics observability.Metrics
}

func (p *provider) Tracer() observability.Tracer   { return p.tracer }
func (p *provider) Logger() observability.Logger   { return p.logger }
func (p *provider) Metrics() observability.Metrics { return p.metrics }

// instruments looks up pre-registered collectors by key; unknown keys are no-ops.
type instruments struct {
	counters   map[observability.MetricKey]observability.Counter
	histograms map[observability.MetricKey]observability.Histogram
}

func (m instruments) Counter(key observability.MetricKey) observability.Counter {
	if c := m.counters[key]; c != nil {
		return c
	}
	return observability.NopCounter()
}

func (m instruments) Histogram(key observability.MetricKey) observability.Histogram {
	if h := m.histograms[key]; h != nil {
		return h
	}
	return observability.NopHistogram()
}

// New assembles an Observability from already built parts. Nil parts resolve to no-ops.
func New(
	tracer observability.Tracer,
	logger observability.Logger,
	counters map[observability.MetricKey]observability.Counter,
	histograms map[observability.MetricKey]observability.Histogram,
) observability.Observability {
	if tracer == nil {
		tracer = observability.NopTracer()
	}
	if logger == nil {
		logger = observability.NopLogger()
	}
	m := instruments{
		counters:   make(map[observability.MetricKey]observability.Counter, len(counters)),
		histograms: make(map[observability.MetricKey]observability.Histogram, len(histograms)),
	}
	for k, c := range counters {
		m.counters[k] = c
	}
	for k, h := range histograms {
		m.histograms[k] = h
	}
	return &provider{tracer: tracer, logger: logger, metrics: m}
}
