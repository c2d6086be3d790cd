package cmd

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vietanhdev/kirapilot-app-sub002/internal/analytics"
	"github.com/vietanhdev/kirapilot-app-sub002/internal/config"
	"github.com/vietanhdev/kirapilot-app-sub002/internal/feedback"
	"github.com/vietanhdev/kirapilot-app-sub002/internal/interaction"
	"github.com/vietanhdev/kirapilot-app-sub002/internal/tools"
)

func TestParseTimeFlag(t *testing.T) {
	got, err := parseTimeFlag("from", "")
	require.NoError(t, err)
	assert.True(t, got.IsZero())

	got, err = parseTimeFlag("from", "2025-03-01")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC), got)

	got, err = parseTimeFlag("to", "2025-03-01T10:15:00Z")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 3, 1, 10, 15, 0, 0, time.UTC), got)

	_, err = parseTimeFlag("from", "yesterday")
	assert.ErrorContains(t, err, "--from")
}

func TestFilterFlags(t *testing.T) {
	f := filterFlags{from: "2025-03-01", backend: "local", text: "standup", limit: 5}
	got, err := f.filter()
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC), got.StartDate)
	assert.True(t, got.EndDate.IsZero())
	assert.Equal(t, "local", got.Backend)
	assert.Equal(t, "standup", got.SearchText)
	assert.Equal(t, 5, got.Limit)

	_, err = (&filterFlags{to: "soon"}).filter()
	assert.ErrorContains(t, err, "--to")
}

func TestNewGrant(t *testing.T) {
	g, err := newGrant(&config.Config{
		ToolCapabilities:   []string{"read_only", "timer_control"},
		ToolAutoApprove:    []string{"delete_task"},
		ToolConfirmTimeout: time.Minute,
	})
	require.NoError(t, err)
	assert.True(t, g.Has(tools.CapReadOnly))
	assert.True(t, g.Has(tools.CapTimerControl))
	assert.False(t, g.Has(tools.CapModifyTasks))
	assert.True(t, g.AutoApproves("delete_task"))
	assert.Equal(t, time.Minute, g.ConfirmTimeout())

	_, err = newGrant(&config.Config{ToolCapabilities: []string{"root"}})
	assert.ErrorContains(t, err, "tool_capabilities")
}

func TestParseFeedbackArgs(t *testing.T) {
	fb, err := parseFeedbackArgs("4", "clear answer", map[string]int{"clarity": 5})
	require.NoError(t, err)
	assert.Equal(t, 4, fb.Rating)
	assert.Equal(t, "clear answer", fb.Comment)
	assert.Equal(t, map[interaction.Category]int{interaction.CategoryClarity: 5}, fb.Categories)

	fb, err = parseFeedbackArgs("2", "", nil)
	require.NoError(t, err)
	assert.Nil(t, fb.Categories)

	_, err = parseFeedbackArgs("4x", "", nil)
	assert.ErrorContains(t, err, "rating must be a number")
}

func TestRenderAnalytics(t *testing.T) {
	var buf bytes.Buffer
	renderAnalytics(&buf, &analytics.Analytics{})
	assert.Equal(t, "Interactions:        0\n", buf.String())

	buf.Reset()
	renderAnalytics(&buf, &analytics.Analytics{
		TotalRecords:      4,
		AvgResponseTimeMs: 812.4,
		SuccessRate:       0.75,
		SatisfactionScore: 7.5,
		FeedbackCount:     2,
		AvgRating:         3.5,
		TopTools:          []analytics.ToolUsage{{Name: "get_tasks", Count: 3, SuccessRate: 1, AvgRuntimeMs: 40}},
		Backends:          map[string]int{"local": 1, "gemini": 3},
	})
	out := buf.String()
	assert.Contains(t, out, "Avg response time:   812ms")
	assert.Contains(t, out, "Success rate:        75.0%")
	assert.Contains(t, out, "Feedback:            2 (avg rating 3.50)")
	assert.Contains(t, out, "get_tasks")
	assert.Less(t, bytes.Index(buf.Bytes(), []byte("gemini")), bytes.Index(buf.Bytes(), []byte("local")), "backends sorted by name")
}

func TestRenderSearchResults(t *testing.T) {
	var buf bytes.Buffer
	renderSearchResults(&buf, nil)
	assert.Equal(t, "No matching interactions.\n", buf.String())

	buf.Reset()
	rec := analytics.EnrichedRecord{}
	rec.ID = "int_1"
	rec.Timestamp = time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	rec.UserMessage = "what is on my plate today"
	renderSearchResults(&buf, []analytics.EnrichedRecord{rec})
	assert.Contains(t, buf.String(), "Found 1 interactions:")
	assert.Contains(t, buf.String(), "int_1 | 2025-03-01 09:00:00")
	assert.Contains(t, buf.String(), "0 tools | what is on my plate today")
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "abcd…", truncate("abcdefgh", 5))
	assert.Equal(t, "ééé…", truncate("éééééé", 4))
}

func TestRenderFeedbackAnalysis(t *testing.T) {
	var buf bytes.Buffer
	renderFeedbackAnalysis(&buf, &feedback.Analysis{})
	assert.Equal(t, "Feedback entries:   0\n", buf.String())

	buf.Reset()
	renderFeedbackAnalysis(&buf, &feedback.Analysis{
		TotalFeedbacks:   10,
		AverageRating:    3.2,
		SatisfactionRate: 0.4,
		Trend:            feedback.TrendDeclining,
		Categories: map[interaction.Category]feedback.CategoryStats{
			interaction.CategorySpeed: {Mean: 2, Count: 3},
		},
		Suggestions: []feedback.Suggestion{{Area: "speed", Priority: feedback.PriorityHigh, Message: "Reduce response latency"}},
	})
	out := buf.String()
	assert.Contains(t, out, "Satisfied (4+):     40%")
	assert.Contains(t, out, "Trend:              declining")
	assert.Contains(t, out, "speed          2.00 (3)")
	assert.Contains(t, out, "1. [high] speed: Reduce response latency")
}

func TestRenderFeedbackSummary(t *testing.T) {
	var buf bytes.Buffer
	renderFeedbackSummary(&buf, &feedback.Summary{
		Days:           7,
		TotalFeedbacks: 3,
		AverageRating:  4,
		Strengths:      []interaction.Category{interaction.CategoryHelpfulness, interaction.CategoryClarity},
		Weaknesses:     []interaction.Category{},
	})
	assert.Equal(t,
		"Last 7 days: 3 feedback entries, average 4.00\nStrengths:  helpfulness, clarity\n",
		buf.String())
}

func TestRetentionPatchFromFlags(t *testing.T) {
	assert.Equal(t, config.RetentionPatch{}, retentionPatchFromFlags(retentionShowCmd), "a command without the flags yields an empty patch")

	fl := retentionSetCmd.Flags()
	require.NoError(t, fl.Set("max-records", "500"))
	require.NoError(t, fl.Set("auto-cleanup", "false"))
	require.NoError(t, fl.Set("verbosity", "minimal"))

	p := retentionPatchFromFlags(retentionSetCmd)
	require.NotNil(t, p.MaxRecords)
	assert.Equal(t, 500, *p.MaxRecords)
	require.NotNil(t, p.AutoCleanup)
	assert.False(t, *p.AutoCleanup)
	require.NotNil(t, p.Verbosity)
	assert.Equal(t, config.VerbosityMinimal, *p.Verbosity)
	assert.Nil(t, p.Enabled)
	assert.Nil(t, p.RetentionDays)
	assert.Nil(t, p.ExportFormat)
}

func TestRenderRetention(t *testing.T) {
	r := config.DefaultRetention()
	r.MaxSizeMB = 0

	var buf bytes.Buffer
	renderRetention(&buf, r, "/etc/kiralog/retention.yaml")
	out := buf.String()
	assert.Contains(t, out, "Retention config (from /etc/kiralog/retention.yaml):")
	assert.Contains(t, out, "retention_days:              30\n")
	assert.Contains(t, out, "max_size_mb:                 unlimited\n")
	assert.Contains(t, out, "export_format:               json\n")
}

func TestRenderToolList(t *testing.T) {
	e := tools.NewEngine(tools.NewGrant([]tools.Capability{tools.CapReadOnly}, nil, time.Second))
	var buf bytes.Buffer
	renderToolList(&buf, e)
	out := buf.String()
	assert.Contains(t, out, "Grant: read_only\n")
	assert.Contains(t, out, "✓ get_tasks")
	assert.Contains(t, out, "✗ delete_task")
	assert.Contains(t, out, "Delete a task (confirm)")
}

func TestToolsFormat(t *testing.T) {
	c, buf := testCommand()
	require.NoError(t, toolsFormat(c, []string{"get_tasks", `{"success":true,"tasks":[{"title":"Only"}]}`}))
	assert.Equal(t, "Found 1 task:\n• Only\n", buf.String())

	buf.Reset()
	assert.Error(t, toolsFormat(c, []string{"get_tasks", "not json"}))
}

func TestRenderConfig(t *testing.T) {
	cfg := &config.Config{
		DataDir:            "/var/lib/kiralog",
		ListenAddr:         config.DefaultListenAddr,
		SigningKey:         "super-secret-signing-key-that-is-long",
		APIKey:             "k-123",
		CleanupSchedule:    config.DefaultCleanupSchedule,
		ToolCapabilities:   []string{"read_only"},
		ToolConfirmTimeout: config.DefaultConfirmTimeout,
	}
	var buf bytes.Buffer
	renderConfig(&buf, cfg, "")
	out := buf.String()
	assert.Contains(t, out, "(none, env and defaults only)")
	assert.Contains(t, out, "/var/lib/kiralog/interactions.db")
	assert.Contains(t, out, "Signing key:          set")
	assert.Contains(t, out, "API key:              set")
	assert.Contains(t, out, "Tool auto-approve:    (none)")
	assert.NotContains(t, out, cfg.SigningKey)
	assert.NotContains(t, out, cfg.APIKey)
}
