package otel

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestTraceContextFrom_NoSpan(t *testing.T) {
	traceID, spanID := TraceContextFrom(context.Background())
	assert.Empty(t, traceID)
	assert.Empty(t, spanID)
}

func TestLogTraceFields_Empty(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)
	logger.Info().Func(LogTraceFields(context.Background())).Msg("capture_closed")
	assert.NotContains(t, buf.String(), "request_id")
	assert.NotContains(t, buf.String(), "trace_id")
}

func TestLogTraceFields_RequestID(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)
	h := middleware.RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		logger.Info().Func(LogTraceFields(r.Context())).Msg("capture_closed")
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/v1/capture/int_1/close", nil))
	assert.Contains(t, buf.String(), `"request_id":"`)
}
