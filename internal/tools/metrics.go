package tools

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

var meter = otel.Meter("github.com/vietanhdev/kirapilot-app-sub002/internal/tools")

var (
	runsTotal   metric.Int64Counter
	runsDenied  metric.Int64Counter
	runDuration metric.Int64Histogram
)

func init() {
	var err error
	runsTotal, err = meter.Int64Counter("tools.runs",
		metric.WithDescription("Tool runs attempted"))
	if err != nil {
		runsTotal, _ = meter.Int64Counter("tools.runs.fallback")
	}

	runsDenied, err = meter.Int64Counter("tools.denied",
		metric.WithDescription("Tool runs denied by permission or confirmation"))
	if err != nil {
		runsDenied, _ = meter.Int64Counter("tools.denied.fallback")
	}

	runDuration, err = meter.Int64Histogram("tools.duration_ms",
		metric.WithDescription("Tool handler execution time"),
		metric.WithUnit("ms"))
	if err != nil {
		runDuration, _ = meter.Int64Histogram("tools.duration_ms.fallback")
	}
}
