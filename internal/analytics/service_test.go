package analytics

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vietanhdev/kirapilot-app-sub002/internal/evidence"
	"github.com/vietanhdev/kirapilot-app-sub002/internal/heuristic"
	"github.com/vietanhdev/kirapilot-app-sub002/internal/interaction"
	"github.com/vietanhdev/kirapilot-app-sub002/internal/testutil"
)

var day1 = time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)

func fixedNow() time.Time { return time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC) }

func addTool(t *testing.T, s *evidence.Store, parent, name string, ok bool, ms int64) {
	t.Helper()
	te := interaction.ToolExecution{
		InteractionID:   parent,
		ToolName:        name,
		Arguments:       map[string]any{},
		Success:         ok,
		ExecutionTimeMs: ms,
	}
	require.NoError(t, s.CreateToolExecution(context.Background(), te.ToRow()))
}

func TestRecord_Enrichment(t *testing.T) {
	store := testutil.NewTestStore(t)
	svc := NewService(store)
	ctx := context.Background()

	legacy := interaction.Feedback{Rating: 4, Comment: "good", Categories: map[interaction.Category]int{interaction.CategoryClarity: 5}}
	testutil.SeedRow(t, store, "int_1", day1, func(r *evidence.Row) {
		r.UserMessage = "add a new task for tomorrow"
		r.Reasoning = interaction.AppendLegacyFeedback("First, check tasks. Then, create one.", legacy)
	})
	addTool(t, store, "int_1", "create_task", true, 30)

	rec, err := svc.Record(ctx, "int_1")
	require.NoError(t, err)
	assert.Equal(t, heuristic.IntentCreateTask, rec.Intent)
	assert.Equal(t, "First, check tasks. Then, create one.", rec.Reasoning)
	assert.Equal(t, []string{"First, check tasks.", "Then, create one."}, rec.ReasoningChain)
	require.Len(t, rec.ToolExecutions, 1)
	assert.Equal(t, "create_task", rec.ToolExecutions[0].ToolName)
	require.NotNil(t, rec.Feedback)
	assert.Equal(t, 4, rec.Feedback.Rating)
	assert.Equal(t, 5, rec.Feedback.Categories[interaction.CategoryClarity])
}

func TestRecord_FeedbackTableWinsOverLegacy(t *testing.T) {
	store := testutil.NewTestStore(t)
	svc := NewService(store)
	ctx := context.Background()

	testutil.SeedRow(t, store, "int_1", day1, func(r *evidence.Row) {
		r.Reasoning = interaction.AppendLegacyFeedback("because", interaction.Feedback{Rating: 1})
	})
	require.NoError(t, svc.SubmitFeedback(ctx, "int_1", interaction.Feedback{Rating: 5}))

	rec, err := svc.Record(ctx, "int_1")
	require.NoError(t, err)
	require.NotNil(t, rec.Feedback)
	assert.Equal(t, 5, rec.Feedback.Rating)
	assert.Equal(t, "because", rec.Reasoning)
}

func TestRecord_MalformedLegacyBlock(t *testing.T) {
	store := testutil.NewTestStore(t)
	svc := NewService(store)

	reasoning := "thinking" + interaction.LegacyFeedbackMarker + `{"rating": 4,`
	testutil.SeedRow(t, store, "int_1", day1, func(r *evidence.Row) { r.Reasoning = reasoning })

	rec, err := svc.Record(context.Background(), "int_1")
	require.NoError(t, err)
	assert.Nil(t, rec.Feedback)
	assert.Equal(t, reasoning, rec.Reasoning)
	assert.Empty(t, rec.ToolExecutions)
	assert.NotNil(t, rec.ToolExecutions)
}

func TestRecord_NotFound(t *testing.T) {
	svc := NewService(testutil.NewTestStore(t))
	_, err := svc.Record(context.Background(), "int_missing")
	assert.ErrorIs(t, err, evidence.ErrNotFound)
}

type brokenChildren struct {
	*evidence.Store
}

func (b brokenChildren) ListToolExecutions(ctx context.Context, id string) ([]evidence.ToolRow, error) {
	return nil, errors.New("disk error")
}

func (b brokenChildren) GetFeedback(ctx context.Context, id string) (*evidence.FeedbackRow, error) {
	return nil, errors.New("disk error")
}

func TestRecords_ChildLookupErrorsDegrade(t *testing.T) {
	store := testutil.NewTestStore(t)
	testutil.SeedRow(t, store, "int_1", day1)
	testutil.SeedRow(t, store, "int_2", day1.Add(time.Hour))

	recs, err := NewService(brokenChildren{store}).Records(context.Background(), evidence.Filter{})
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, "int_2", recs[0].ID, "newest first")
	for _, r := range recs {
		assert.Empty(t, r.ToolExecutions)
		assert.Nil(t, r.Feedback)
	}
}

func seedAnalyticsFixture(t *testing.T, store *evidence.Store) {
	t.Helper()
	testutil.SeedRow(t, store, "int_a", day1, func(r *evidence.Row) {
		r.UserMessage = "show my tasks, thanks"
		r.ResponseTimeMs = 1000
	})
	testutil.SeedRow(t, store, "int_b", day1.Add(time.Hour), func(r *evidence.Row) {
		r.UserMessage = "ugh this is broken and urgent"
		r.ResponseTimeMs = 2000
		r.Error = "backend timeout"
	})
	testutil.SeedRow(t, store, "int_c", day1.Add(24*time.Hour), func(r *evidence.Row) {
		r.UserMessage = "create a task for the report"
		r.ResponseTimeMs = 3000
		r.Backend = "local"
	})
	testutil.SeedRow(t, store, "int_d", day1.Add(25*time.Hour), func(r *evidence.Row) {
		r.UserMessage = "delete the old draft"
		r.ResponseTimeMs = 2000
	})
	addTool(t, store, "int_a", "get_tasks", true, 10)
	addTool(t, store, "int_b", "get_tasks", false, 20)
	addTool(t, store, "int_c", "create_task", true, 30)
	addTool(t, store, "int_c", "get_tasks", true, 30)
	addTool(t, store, "int_d", "delete_task", true, 40)
}

func TestAnalytics(t *testing.T) {
	store := testutil.NewTestStore(t)
	seedAnalyticsFixture(t, store)
	svc := NewService(store, WithTopTools(2))
	ctx := context.Background()
	require.NoError(t, svc.SubmitFeedback(ctx, "int_a", interaction.Feedback{Rating: 5}))
	require.NoError(t, svc.SubmitFeedback(ctx, "int_b", interaction.Feedback{Rating: 2}))

	a, err := svc.Analytics(ctx, evidence.Filter{})
	require.NoError(t, err)

	assert.Equal(t, 4, a.TotalRecords)
	assert.InDelta(t, 2000, a.AvgResponseTimeMs, 1e-9)
	assert.InDelta(t, 0.75, a.SuccessRate, 1e-9)
	assert.InDelta(t, 0.25, a.ErrorRate, 1e-9)
	assert.InDelta(t, 5*0.75+3, a.SatisfactionScore, 1e-9)
	assert.Equal(t, 2, a.FeedbackCount)
	assert.InDelta(t, 3.5, a.AvgRating, 1e-9)

	require.Len(t, a.TopTools, 2)
	assert.Equal(t, "get_tasks", a.TopTools[0].Name)
	assert.Equal(t, 3, a.TopTools[0].Count)
	assert.InDelta(t, 2.0/3.0, a.TopTools[0].SuccessRate, 1e-9)
	assert.InDelta(t, 20, a.TopTools[0].AvgRuntimeMs, 1e-9)
	assert.Equal(t, "create_task", a.TopTools[1].Name, "ties break by name")

	assert.Equal(t, 1, a.Intents[heuristic.IntentListTasks])
	assert.Equal(t, 1, a.Intents[heuristic.IntentCreateTask])
	assert.Equal(t, 1, a.Intents[heuristic.IntentDeleteTask])
	assert.Equal(t, 3, a.Backends["gemini"])
	assert.Equal(t, 1, a.Backends["local"])

	require.Len(t, a.Trend, 2)
	assert.Equal(t, "2025-03-01", a.Trend[0].Date)
	assert.Equal(t, 2, a.Trend[0].Interactions)
	assert.Equal(t, 1, a.Trend[0].Emotions[heuristic.EmotionFrustrated])
	assert.Equal(t, 1, a.Trend[0].Emotions[heuristic.EmotionPositive])
	assert.Equal(t, heuristic.EmotionFrustrated, a.Trend[0].DominantEmotion, "tie broken lexically")
	assert.Equal(t, 1, a.Trend[0].Stress[heuristic.StressHigh])
	assert.Equal(t, "2025-03-02", a.Trend[1].Date)
	assert.Equal(t, heuristic.EmotionNeutral, a.Trend[1].DominantEmotion)
}

func TestAnalytics_Empty(t *testing.T) {
	a, err := NewService(testutil.NewTestStore(t)).Analytics(context.Background(), evidence.Filter{})
	require.NoError(t, err)
	assert.Zero(t, a.TotalRecords)
	assert.Zero(t, a.AvgResponseTimeMs)
	assert.Zero(t, a.SatisfactionScore)
	assert.Empty(t, a.TopTools)
	assert.Empty(t, a.Trend)
}

func TestSatisfactionScore(t *testing.T) {
	assert.InDelta(t, 10, SatisfactionScore(0, 0), 1e-9)
	assert.InDelta(t, 5, SatisfactionScore(0, 9000), 1e-9)
	assert.InDelta(t, 0, SatisfactionScore(1, 12000), 1e-9)
	assert.InDelta(t, 2.5+4.5, SatisfactionScore(0.5, 500), 1e-9)
}

func TestSearch(t *testing.T) {
	store := testutil.NewTestStore(t)
	seedAnalyticsFixture(t, store)
	svc := NewService(store)
	ctx := context.Background()

	ids := func(recs []EnrichedRecord) []string {
		out := make([]string, len(recs))
		for i, r := range recs {
			out[i] = r.ID
		}
		return out
	}

	tests := []struct {
		name  string
		query Query
		want  []string
	}{
		{"everything", Query{}, []string{"int_d", "int_c", "int_b", "int_a"}},
		{"text", Query{Text: "task"}, []string{"int_c", "int_a"}},
		{"intent", Query{Intent: heuristic.IntentDeleteTask}, []string{"int_d"}},
		{"tool", Query{Tool: "get_tasks"}, []string{"int_c", "int_b", "int_a"}},
		{"tool and ceiling", Query{Tool: "get_tasks", MaxResponseTimeMs: 2000}, []string{"int_b", "int_a"}},
		{"text and tool", Query{Text: "task", Tool: "create_task"}, []string{"int_c"}},
		{"no match", Query{Intent: heuristic.IntentStartTimer}, []string{}},
		{"paged after filtering", Query{Tool: "get_tasks", Filter: evidence.Filter{Limit: 1, Offset: 1}}, []string{"int_b"}},
		{"offset past end", Query{Filter: evidence.Filter{Offset: 10}}, []string{}},
		{"backend filter", Query{Filter: evidence.Filter{Backend: "local"}}, []string{"int_c"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := svc.Search(ctx, tt.query)
			require.NoError(t, err)
			assert.Equal(t, tt.want, ids(got))
		})
	}
}

func TestExport_JSON(t *testing.T) {
	store := testutil.NewTestStore(t)
	testutil.SeedRow(t, store, "int_1", day1)
	testutil.SeedRow(t, store, "int_2", day1.Add(time.Hour), func(r *evidence.Row) {
		r.UserMessage = "my password: hunter22"
		r.Classification = "confidential"
		r.ContainsSensitive = true
	})
	svc := NewService(store, WithClock(fixedNow))

	var buf bytes.Buffer
	require.NoError(t, svc.Export(context.Background(), &buf, ExportRequest{Filter: evidence.Filter{Backend: "gemini"}}))

	var out struct {
		Metadata struct {
			TotalRecords int             `json:"totalRecords"`
			GeneratedAt  time.Time       `json:"generatedAt"`
			Filters      evidence.Filter `json:"filters"`
		} `json:"metadata"`
		Records []EnrichedRecord `json:"records"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &out))
	assert.Equal(t, 2, out.Metadata.TotalRecords)
	assert.True(t, fixedNow().Equal(out.Metadata.GeneratedAt))
	assert.Equal(t, "gemini", out.Metadata.Filters.Backend)
	require.Len(t, out.Records, 2)
	assert.Equal(t, RedactedPlaceholder, out.Records[0].UserMessage)
	assert.Equal(t, RedactedPlaceholder, out.Records[0].AIResponse)
	assert.Equal(t, "hello int_1", out.Records[1].UserMessage)
}

func TestExport_IncludeSensitive(t *testing.T) {
	store := testutil.NewTestStore(t)
	testutil.SeedRow(t, store, "int_1", day1, func(r *evidence.Row) {
		r.UserMessage = "mail a@b.com"
		r.ContainsSensitive = true
		r.Classification = "internal"
	})
	svc := NewService(store)

	var buf bytes.Buffer
	require.NoError(t, svc.Export(context.Background(), &buf, ExportRequest{Format: FormatCSV}))
	assert.Contains(t, buf.String(), RedactedPlaceholder)
	assert.NotContains(t, buf.String(), "a@b.com")

	buf.Reset()
	require.NoError(t, svc.Export(context.Background(), &buf, ExportRequest{Format: FormatCSV, IncludeSensitive: true}))
	assert.Contains(t, buf.String(), "mail a@b.com")
}

func TestExport_CSVRoundTrip(t *testing.T) {
	store := testutil.NewTestStore(t)
	tricky := "Buy milk, eggs and \"fresh\" bread\nthen call mom"
	testutil.SeedRow(t, store, "int_1", day1, func(r *evidence.Row) {
		r.UserMessage = tricky
		r.TokenCount = 42
		r.Error = "oops"
	})
	svc := NewService(store)

	var buf bytes.Buffer
	require.NoError(t, svc.Export(context.Background(), &buf, ExportRequest{Format: FormatCSV}))

	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, CSVHeader, rows[0])
	assert.Equal(t, []string{
		"int_1", "2025-03-01T10:00:00Z", "sess_1", "gemini", tricky, "hi there", "1000", "42", "true", "public",
	}, rows[1])
}

func TestExport_UnsupportedFormat(t *testing.T) {
	svc := NewService(testutil.NewTestStore(t))
	err := svc.Export(context.Background(), &bytes.Buffer{}, ExportRequest{Format: "xml"})
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestSubmitFeedback(t *testing.T) {
	store := testutil.NewTestStore(t)
	svc := NewService(store, WithClock(fixedNow))
	ctx := context.Background()
	testutil.SeedRow(t, store, "int_1", day1)

	err := svc.SubmitFeedback(ctx, "int_1", interaction.Feedback{Rating: 7})
	assert.ErrorIs(t, err, ErrInvalidFeedback)

	err = svc.SubmitFeedback(ctx, "int_1", interaction.Feedback{Rating: 3, Categories: map[interaction.Category]int{"vibes": 3}})
	assert.ErrorIs(t, err, ErrInvalidFeedback)

	err = svc.SubmitFeedback(ctx, "int_missing", interaction.Feedback{Rating: 3})
	assert.ErrorIs(t, err, evidence.ErrNotFound)

	require.NoError(t, svc.SubmitFeedback(ctx, "int_1", interaction.Feedback{Rating: 3, Comment: "ok"}))
	require.NoError(t, svc.SubmitFeedback(ctx, "int_1", interaction.Feedback{Rating: 4, Comment: "better"}))

	rec, err := svc.Record(ctx, "int_1")
	require.NoError(t, err)
	require.NotNil(t, rec.Feedback)
	assert.Equal(t, 4, rec.Feedback.Rating, "a later submission replaces the earlier one")
	assert.Equal(t, "better", rec.Feedback.Comment)
	assert.True(t, fixedNow().Equal(rec.Feedback.Timestamp))
}

func TestSplitReasoning(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"", nil},
		{"just one thought", []string{"just one thought"}},
		{"1. parse 2. create", []string{"1. parse", "2. create"}},
		{"Step 1: read. Step 2: write.", []string{"Step 1: read.", "Step 2: write."}},
		{"Plan: First, look. Then, act. Finally, report.", []string{"Plan:", "First, look.", "Then, act.", "Finally, report."}},
		{"took 1.5 hours", []string{"took 1.5 hours"}},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, SplitReasoning(tt.in), "input %q", tt.in)
	}
}
