package capture

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

var meter = otel.Meter("github.com/vietanhdev/kirapilot-app-sub002/internal/capture")

var (
	openedTotal    metric.Int64Counter
	storedTotal    metric.Int64Counter
	failedTotal    metric.Int64Counter
	skippedTotal   metric.Int64Counter
	toolExecutions metric.Int64Counter
	responseTime   metric.Int64Histogram
)

func init() {
	var err error
	openedTotal, err = meter.Int64Counter("capture.opened",
		metric.WithDescription("Correlations opened"))
	if err != nil {
		openedTotal, _ = meter.Int64Counter("capture.opened.fallback")
	}

	storedTotal, err = meter.Int64Counter("capture.stored",
		metric.WithDescription("Interaction records persisted"))
	if err != nil {
		storedTotal, _ = meter.Int64Counter("capture.stored.fallback")
	}

	failedTotal, err = meter.Int64Counter("capture.failed",
		metric.WithDescription("Storage writes that failed"))
	if err != nil {
		failedTotal, _ = meter.Int64Counter("capture.failed.fallback")
	}

	skippedTotal, err = meter.Int64Counter("capture.skipped",
		metric.WithDescription("Captures skipped because retention is disabled"))
	if err != nil {
		skippedTotal, _ = meter.Int64Counter("capture.skipped.fallback")
	}

	toolExecutions, err = meter.Int64Counter("capture.tool_executions",
		metric.WithDescription("Tool executions persisted"))
	if err != nil {
		toolExecutions, _ = meter.Int64Counter("capture.tool_executions.fallback")
	}

	responseTime, err = meter.Int64Histogram("capture.response_time_ms",
		metric.WithDescription("Time between open and close of a correlation"),
		metric.WithUnit("ms"))
	if err != nil {
		responseTime, _ = meter.Int64Histogram("capture.response_time_ms.fallback")
	}
}
