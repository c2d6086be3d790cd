package interaction

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vietanhdev/kirapilot-app-sub002/internal/classifier"
	"github.com/vietanhdev/kirapilot-app-sub002/internal/evidence"
)

func TestRecordRowConversion(t *testing.T) {
	at := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	rec := Record{
		ID:        "int_1",
		Timestamp: at,
		SessionID: "sess",
		Backend: Backend{
			Name: "gemini", Provider: "google", Version: "1.5",
			CapabilityTags: []string{"tools"}, ContextWindow: 1000000,
		},
		UserMessage:       "hi",
		AIResponse:        "hello",
		ResponseTimeMs:    900,
		TokenCount:        12,
		Error:             "boom",
		ContainsSensitive: true,
		Classification:    classifier.TierInternal,
	}

	row := rec.ToRow()
	assert.Equal(t, "gemini", row.Backend)
	assert.Contains(t, row.ModelInfo, `"provider":"google"`)
	assert.Equal(t, "internal", row.Classification)

	back := FromRow(*row)
	assert.Equal(t, rec, back)
	assert.True(t, back.HasError())
}

func TestFromRow_DegradesOnBadModelInfo(t *testing.T) {
	rec := FromRow(evidence.Row{ID: "x", Backend: "local", ModelInfo: "{not json", Classification: "weird"})
	assert.Equal(t, "local", rec.Backend.Name)
	assert.Empty(t, rec.Backend.Provider)
	assert.Equal(t, classifier.TierConfidential, rec.Classification)
}

func TestToolRowConversion(t *testing.T) {
	te := ToolExecution{
		ID: "tool_1", InteractionID: "int_1", ToolName: "create_task",
		Arguments:   map[string]any{"title": "Write report"},
		Result:      `{"success":true}`,
		Success:     true,
		ImpactLevel: ImpactMedium,
	}
	row := te.ToRow()
	assert.Equal(t, `{"title":"Write report"}`, row.Arguments)
	assert.Equal(t, "[]", row.ResourcesAccessed)

	back := ToolFromRow(*row)
	assert.Equal(t, "Write report", back.Arguments["title"])
	assert.Equal(t, ImpactMedium, back.ImpactLevel)
	assert.Empty(t, back.ResourcesAccessed)
}

func TestToolFromRow_BadJSON(t *testing.T) {
	back := ToolFromRow(evidence.ToolRow{Arguments: "nope", ResourcesAccessed: "{", ImpactLevel: "extreme"})
	assert.NotNil(t, back.Arguments)
	assert.Empty(t, back.Arguments)
	assert.NotNil(t, back.ResourcesAccessed)
	assert.Equal(t, ImpactLow, back.ImpactLevel)
}

func TestFeedback_Validate(t *testing.T) {
	assert.NoError(t, Feedback{Rating: 5, Categories: map[Category]int{CategoryClarity: 3}}.Validate())
	assert.Error(t, Feedback{Rating: 0}.Validate())
	assert.Error(t, Feedback{Rating: 6}.Validate())
	assert.Error(t, Feedback{Rating: 3, Categories: map[Category]int{CategorySpeed: 9}}.Validate())
	assert.Error(t, Feedback{Rating: 3, Categories: map[Category]int{"vibes": 3}}.Validate())
}

func TestFeedbackRowConversion(t *testing.T) {
	fb := Feedback{Rating: 4, Comment: "nice", Categories: map[Category]int{CategoryAccuracy: 5}}
	row := fb.ToRow("int_9")
	assert.Equal(t, "int_9", row.InteractionID)
	back := FeedbackFromRow(*row)
	assert.Equal(t, 5, back.Categories[CategoryAccuracy])

	empty := FeedbackFromRow(evidence.FeedbackRow{Rating: 2, Categories: "garbage"})
	assert.NotNil(t, empty.Categories)
}

func TestLegacyFeedback(t *testing.T) {
	fb := Feedback{Rating: 2, Comment: "too long", Categories: map[Category]int{CategoryClarity: 2}}
	stored := AppendLegacyFeedback("1. look up tasks\n2. answer", fb)

	clean, got, ok := SplitLegacyFeedback(stored)
	require.True(t, ok)
	assert.Equal(t, "1. look up tasks\n2. answer", clean)
	assert.Equal(t, 2, got.Rating)
	assert.Equal(t, "too long", got.Comment)
	assert.Equal(t, 2, got.Categories[CategoryClarity])
}

func TestLegacyFeedback_Malformed(t *testing.T) {
	tests := []string{
		"no marker at all",
		"reason" + LegacyFeedbackMarker + "{broken",
		"reason" + LegacyFeedbackMarker + `{"rating": 9}`,
		"reason" + LegacyFeedbackMarker + `{"rating": 3} {"rating": 4}`,
	}
	for _, in := range tests {
		clean, _, ok := SplitLegacyFeedback(in)
		assert.False(t, ok, in)
		assert.Equal(t, in, clean)
	}
}
