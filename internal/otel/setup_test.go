package otel

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"
)

func shutdownNow(t *testing.T, shutdown func(context.Context) error) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	assert.NoError(t, shutdown(ctx))
}

func TestSetup(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
	}{
		{"enabled", Config{ServiceName: "kiralog", Version: "1.0.0", Enabled: true, Output: &bytes.Buffer{}}},
		{"custom interval", Config{ServiceName: "kiralog", Version: "dev", Enabled: true, Output: &bytes.Buffer{}, MetricInterval: time.Second}},
		{"disabled", Config{ServiceName: "kiralog"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			shutdown, err := Setup(tt.cfg)
			require.NoError(t, err)
			require.NotNil(t, shutdown)
			shutdownNow(t, shutdown)
		})
	}
}

func TestSetup_SpansGoToOutput(t *testing.T) {
	var out bytes.Buffer
	shutdown, err := Setup(Config{ServiceName: "kiralog", Version: "0.0.1", Enabled: true, Output: &out})
	require.NoError(t, err)

	_, span := Tracer("github.com/vietanhdev/kirapilot-app-sub002/internal/otel/test").Start(context.Background(), "capture.close")
	assert.True(t, span.SpanContext().IsValid())
	assert.True(t, span.SpanContext().HasTraceID())
	span.End()

	shutdownNow(t, shutdown)
	assert.Contains(t, out.String(), "capture.close")
}

func TestTracer_NoopWithoutSetup(t *testing.T) {
	_, span := Tracer("github.com/vietanhdev/kirapilot-app-sub002/internal/noop").Start(context.Background(), "noop.operation")
	defer span.End()
	assert.Implements(t, (*trace.Span)(nil), span)
}
