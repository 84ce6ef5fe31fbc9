package workerpresentation

import (
	"context"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"

	"github.com/Zhima-Mochi/minishop-checkout/internal/observability"
	"github.com/Zhima-Mochi/minishop-checkout/internal/observability/logctx"
)

// WithRunContext injects a run-scoped logger for a background job execution.
// Fields: run_id (generated unless attrs carries one), trace_id/span_id when ctx
// holds a valid span, plus caller-provided low-cardinality attributes such as "job".
func WithRunContext(ctx context.Context, base observability.Logger, attrs map[string]string) context.Context {
	if base == nil {
		base = observability.NopLogger()
	}

	fields := make([]observability.Field, 0, 3+len(attrs))
	runID := attrs["run_id"]
	if runID == "" {
		runID = uuid.NewString()
	}
	fields = append(fields, observability.F("run_id", runID))

	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		fields = append(fields,
			observability.F("trace_id", sc.TraceID().String()),
			observability.F("span_id", sc.SpanID().String()),
		)
	}
	for k, v := range attrs {
		if k == "run_id" || v == "" {
			continue
		}
		fields = append(fields, observability.F(k, v))
	}
	return logctx.With(ctx, base.With(fields...))
}
