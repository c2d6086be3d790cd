package doctor

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vietanhdev/kirapilot-app-sub002/internal/config"
	"github.com/vietanhdev/kirapilot-app-sub002/internal/evidence"
	"github.com/vietanhdev/kirapilot-app-sub002/internal/testutil"
)

func isolated(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("KIRALOG_DATA_DIR", dir)
	for _, k := range []string{
		"KIRALOG_SIGNING_KEY", "KIRALOG_API_KEY", "KIRALOG_PATTERN_FILE", "KIRALOG_RETENTION_FILE",
		"KIRALOG_CLEANUP_SCHEDULE", "KIRALOG_TOOL_CAPABILITIES", "KIRALOG_TOOL_AUTO_APPROVE",
	} {
		t.Setenv(k, "")
	}
	return dir
}

func byName(r *Report) map[string]CheckResult {
	m := make(map[string]CheckResult, len(r.Checks))
	for _, c := range r.Checks {
		m[c.Name] = c
	}
	return m
}

func TestRun_FreshInstall(t *testing.T) {
	isolated(t)

	report := Run(context.Background())
	checks := byName(report)

	assert.Equal(t, StatusWarn, report.Status, "default signing key and missing API key warn")
	assert.Equal(t, 0, report.Summary.Fail)
	assert.Equal(t, 2, report.Summary.Warn)
	assert.Equal(t, StatusPass, checks["data_dir_writable"].Status)
	assert.Equal(t, StatusWarn, checks["signing_key"].Status)
	assert.Equal(t, StatusWarn, checks["api_key"].Status)
	assert.Equal(t, "built-in", checks["privacy_patterns"].Message)
	assert.Equal(t, config.DefaultCleanupSchedule, checks["cleanup_schedule"].Message)
	assert.Equal(t, "read_only", checks["tool_grant"].Message)
	assert.Equal(t, "stored", checks["retention_config"].Message)
	assert.Equal(t, "0 interactions, 0.0 MB", checks["store_stats"].Message)
}

func TestRun_Configured(t *testing.T) {
	isolated(t)
	t.Setenv("KIRALOG_SIGNING_KEY", testutil.TestSigningKey)
	t.Setenv("KIRALOG_API_KEY", "local-key")

	report := Run(context.Background())
	assert.Equal(t, StatusPass, report.Status)
	assert.Equal(t, len(report.Checks), report.Summary.Pass)
}

func TestRun_Failures(t *testing.T) {
	tests := []struct {
		name  string
		env   map[string]string
		check string
	}{
		{"bad schedule", map[string]string{"KIRALOG_CLEANUP_SCHEDULE": "nightly"}, "cleanup_schedule"},
		{"bad capability", map[string]string{"KIRALOG_TOOL_CAPABILITIES": "root"}, "tool_grant"},
		{"missing pattern file", map[string]string{"KIRALOG_PATTERN_FILE": "/nonexistent/patterns.yaml"}, "privacy_patterns"},
		{"missing retention file", map[string]string{"KIRALOG_RETENTION_FILE": "/nonexistent/retention.yaml"}, "retention_config"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			isolated(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			report := Run(context.Background())
			assert.Equal(t, StatusFail, report.Status)
			c := byName(report)[tt.check]
			assert.Equal(t, StatusFail, c.Status, c.Message)
		})
	}
}

func TestRun_UnknownAutoApproveWarns(t *testing.T) {
	isolated(t)
	t.Setenv("KIRALOG_TOOL_AUTO_APPROVE", "rm_rf")

	c := byName(Run(context.Background()))["tool_grant"]
	assert.Equal(t, StatusWarn, c.Status)
	assert.Contains(t, c.Message, "rm_rf")
}

func TestRun_RetentionFile(t *testing.T) {
	dir := isolated(t)
	path := filepath.Join(dir, "retention.yaml")
	require.NoError(t, os.WriteFile(path, []byte("max_records: 1\n"), 0o600))
	t.Setenv("KIRALOG_RETENTION_FILE", path)

	cfg, err := config.Load()
	require.NoError(t, err)
	store, err := evidence.NewStore(cfg.InteractionsDBPath(), cfg.SigningKey)
	require.NoError(t, err)
	base := time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)
	testutil.SeedRow(t, store, "int_a", base)
	testutil.SeedRow(t, store, "int_b", base.Add(time.Minute))
	require.NoError(t, store.Close())

	checks := byName(Run(context.Background()))
	assert.Equal(t, path, checks["retention_config"].Message)
	stats := checks["store_stats"]
	assert.Equal(t, StatusWarn, stats.Status)
	assert.Contains(t, stats.Message, "2 interactions")
	assert.Contains(t, stats.Message, "over retention limits")
}

func TestRun_MissingPatternFileHint(t *testing.T) {
	isolated(t)
	t.Setenv("KIRALOG_PATTERN_FILE", "/nonexistent/patterns.yaml")

	c := byName(Run(context.Background()))["privacy_patterns"]
	assert.Equal(t, StatusFail, c.Status)
	assert.Contains(t, c.Message, "/nonexistent/patterns.yaml")
	assert.Equal(t, "Create the file or unset KIRALOG_PATTERN_FILE", c.Fix)
}
