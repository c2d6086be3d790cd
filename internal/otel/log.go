package otel

import (
	"context"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/trace"
)

// TraceContextFrom returns trace_id and span_id from the span in ctx, if any.
func TraceContextFrom(ctx context.Context) (traceID, spanID string) {
	sc := trace.SpanFromContext(ctx).SpanContext()
	if !sc.IsValid() {
		return "", ""
	}
	return sc.TraceID().String(), sc.SpanID().String()
}

// LogTraceFields returns a zerolog Func hook that correlates a log line with
// the request and span it was written under:
//
//	log.Info().Str("interaction_id", id).Func(otel.LogTraceFields(ctx)).Msg("interaction_stored")
//
// request_id comes from chi's RequestID middleware; trace_id and span_id
// only appear when tracing is enabled.
func LogTraceFields(ctx context.Context) func(e *zerolog.Event) {
	return func(e *zerolog.Event) {
		if id := middleware.GetReqID(ctx); id != "" {
			e.Str("request_id", id)
		}
		traceID, spanID := TraceContextFrom(ctx)
		if traceID != "" {
			e.Str("trace_id", traceID)
			e.Str("span_id", spanID)
		}
	}
}
