package otel

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestModelAttributes(t *testing.T) {
	attrs := ModelAttributes("gemini", "gemini-1.5-pro", 0.7, 4096)
	require.Len(t, attrs, 4)
	assert.Equal(t, GenAISystem, attrs[0].Key)
	assert.Equal(t, "gemini", attrs[0].Value.AsString())
	assert.Equal(t, "gemini-1.5-pro", attrs[1].Value.AsString())
	assert.InDelta(t, 0.7, attrs[2].Value.AsFloat64(), 1e-9)
	assert.Equal(t, int64(4096), attrs[3].Value.AsInt64())
}

func TestUsageAttributes(t *testing.T) {
	attrs := UsageAttributes(120, 80)
	require.Len(t, attrs, 2)
	assert.Equal(t, int64(120), attrs[0].Value.AsInt64())
	assert.Equal(t, int64(80), attrs[1].Value.AsInt64())
}

func TestInteractionAttributes(t *testing.T) {
	attrs := InteractionAttributes("int_1", "sess", "internal", 1500)
	require.Len(t, attrs, 4)
	assert.Equal(t, InteractionID, attrs[0].Key)
	assert.Equal(t, "internal", attrs[2].Value.AsString())
	assert.Equal(t, int64(1500), attrs[3].Value.AsInt64())
}
