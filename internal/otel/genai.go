package otel

import (
	"go.opentelemetry.io/otel/attribute"
)

// GenAI semantic convention keys, plus the kiralog-specific keys used on
// capture and tool spans.
const (
	GenAISystem       = attribute.Key("gen_ai.system")        // AI backend, e.g. "gemini", "local"
	GenAIRequestModel = attribute.Key("gen_ai.request.model") // e.g. "gemini-1.5-pro"

	GenAIRequestTemperature = attribute.Key("gen_ai.request.temperature")
	GenAIRequestMaxTokens   = attribute.Key("gen_ai.request.max_tokens")

	GenAIUsageInputTokens  = attribute.Key("gen_ai.usage.input_tokens")
	GenAIUsageOutputTokens = attribute.Key("gen_ai.usage.output_tokens")

	InteractionID       = attribute.Key("kiralog.interaction.id")
	InteractionSession  = attribute.Key("kiralog.session.id")
	InteractionTier     = attribute.Key("kiralog.classification")
	InteractionDuration = attribute.Key("kiralog.response_time_ms")
	ToolName            = attribute.Key("kiralog.tool.name")
	ToolSuccess         = attribute.Key("kiralog.tool.success")
)

// ModelAttributes creates attributes describing the backend and model
// settings of one interaction.
func ModelAttributes(system, model string, temperature float64, maxTokens int) []attribute.KeyValue {
	return []attribute.KeyValue{
		GenAISystem.String(system),
		GenAIRequestModel.String(model),
		GenAIRequestTemperature.Float64(temperature),
		GenAIRequestMaxTokens.Int(maxTokens),
	}
}

// UsageAttributes creates attributes for token usage. Counts are split
// evenly when only a total is known.
func UsageAttributes(inputTokens, outputTokens int) []attribute.KeyValue {
	return []attribute.KeyValue{
		GenAIUsageInputTokens.Int(inputTokens),
		GenAIUsageOutputTokens.Int(outputTokens),
	}
}

// InteractionAttributes creates the attributes recorded when an interaction
// is closed and persisted.
func InteractionAttributes(id, sessionID, tier string, responseTimeMs int64) []attribute.KeyValue {
	return []attribute.KeyValue{
		InteractionID.String(id),
		InteractionSession.String(sessionID),
		InteractionTier.String(tier),
		InteractionDuration.Int64(responseTimeMs),
	}
}
