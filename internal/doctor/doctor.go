// Package doctor provides health checks for kiralog configuration and the
// interaction store. Used by `kiralog doctor`.
package doctor

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/robfig/cron/v3"

	"github.com/vietanhdev/kirapilot-app-sub002/internal/classifier"
	"github.com/vietanhdev/kirapilot-app-sub002/internal/config"
	"github.com/vietanhdev/kirapilot-app-sub002/internal/evidence"
	"github.com/vietanhdev/kirapilot-app-sub002/internal/tools"
)

// Check statuses, in increasing severity.
const (
	StatusPass = "pass"
	StatusWarn = "warn"
	StatusFail = "fail"
)

// CheckResult is a single doctor check outcome.
type CheckResult struct {
	Name     string `json:"name"`
	Category string `json:"category"`
	Status   string `json:"status"` // pass, warn, fail
	Message  string `json:"message"`
	Fix      string `json:"fix,omitempty"`
}

// Summary tallies pass/warn/fail counts.
type Summary struct {
	Pass int `json:"pass"`
	Warn int `json:"warn"`
	Fail int `json:"fail"`
}

// Report is the complete doctor output.
type Report struct {
	Status  string        `json:"status"` // worst of all checks
	Checks  []CheckResult `json:"checks"`
	Summary Summary       `json:"summary"`
}

// Run executes all checks against the current configuration.
func Run(ctx context.Context) *Report {
	report := &Report{}

	cfg, err := config.Load()
	if err != nil {
		report.Checks = []CheckResult{{
			Name: "config_load", Category: "config", Status: StatusFail,
			Message: fmt.Sprintf("Cannot load config: %v", err),
			Fix:     "Check KIRALOG_* env vars and kiralog.config.yaml",
		}}
	} else {
		report.Checks = append(report.Checks, checkConfig(cfg)...)
		report.Checks = append(report.Checks, checkStore(ctx, cfg)...)
	}

	for _, c := range report.Checks {
		switch c.Status {
		case StatusPass:
			report.Summary.Pass++
		case StatusWarn:
			report.Summary.Warn++
		case StatusFail:
			report.Summary.Fail++
		}
	}

	report.Status = StatusPass
	if report.Summary.Warn > 0 {
		report.Status = StatusWarn
	}
	if report.Summary.Fail > 0 {
		report.Status = StatusFail
	}
	return report
}

func checkConfig(cfg *config.Config) []CheckResult {
	return []CheckResult{
		checkDataDir(cfg),
		checkSigningKey(cfg),
		checkAPIKey(cfg),
		checkPatterns(cfg),
		checkSchedule(cfg),
		checkToolGrant(cfg),
	}
}

func checkDataDir(cfg *config.Config) CheckResult {
	if err := cfg.EnsureDataDir(); err != nil {
		return CheckResult{
			Name: "data_dir_writable", Category: "config", Status: StatusFail,
			Message: fmt.Sprintf("%s (%v)", cfg.DataDir, err),
			Fix:     "Ensure directory exists and is writable",
		}
	}
	testFile := filepath.Join(cfg.DataDir, ".doctor-write-test")
	if err := os.WriteFile(testFile, []byte("ok"), 0o600); err != nil {
		return CheckResult{
			Name: "data_dir_writable", Category: "config", Status: StatusFail,
			Message: fmt.Sprintf("%s not writable (%v)", cfg.DataDir, err),
		}
	}
	_ = os.Remove(testFile)
	return CheckResult{
		Name: "data_dir_writable", Category: "config", Status: StatusPass,
		Message: fmt.Sprintf("%s (writable)", cfg.DataDir),
	}
}

func checkSigningKey(cfg *config.Config) CheckResult {
	if cfg.UsingDefaultSigningKey() {
		return CheckResult{
			Name: "signing_key", Category: "config", Status: StatusWarn,
			Message: "Using derived default",
			Fix:     "Set KIRALOG_SIGNING_KEY for production",
		}
	}
	return CheckResult{Name: "signing_key", Category: "config", Status: StatusPass, Message: "Configured"}
}

func checkAPIKey(cfg *config.Config) CheckResult {
	if cfg.APIKey == "" {
		return CheckResult{
			Name: "api_key", Category: "config", Status: StatusWarn,
			Message: "Not set, the HTTP API accepts any local caller",
			Fix:     "Set KIRALOG_API_KEY",
		}
	}
	return CheckResult{Name: "api_key", Category: "config", Status: StatusPass, Message: "Configured"}
}

func checkPatterns(cfg *config.Config) CheckResult {
	var opts []classifier.ScannerOption
	msg := "built-in"
	if cfg.PatternFile != "" {
		if _, err := os.Stat(cfg.PatternFile); err != nil {
			return CheckResult{
				Name: "privacy_patterns", Category: "config", Status: StatusFail,
				Message: fmt.Sprintf("pattern_file %s: %v", cfg.PatternFile, err),
				Fix:     "Create the file or unset KIRALOG_PATTERN_FILE",
			}
		}
		opts = append(opts, classifier.WithPatternFile(cfg.PatternFile))
		msg = "built-in + " + cfg.PatternFile
	}
	if _, err := classifier.NewScanner(opts...); err != nil {
		return CheckResult{
			Name: "privacy_patterns", Category: "config", Status: StatusFail,
			Message: err.Error(),
			Fix:     "Fix the regex or YAML in pattern_file",
		}
	}
	return CheckResult{Name: "privacy_patterns", Category: "config", Status: StatusPass, Message: msg}
}

func checkSchedule(cfg *config.Config) CheckResult {
	if _, err := cron.ParseStandard(cfg.CleanupSchedule); err != nil {
		return CheckResult{
			Name: "cleanup_schedule", Category: "config", Status: StatusFail,
			Message: fmt.Sprintf("%q: %v", cfg.CleanupSchedule, err),
			Fix:     "Use a five-field cron expression, e.g. \"0 3 * * *\"",
		}
	}
	return CheckResult{Name: "cleanup_schedule", Category: "config", Status: StatusPass, Message: cfg.CleanupSchedule}
}

func checkToolGrant(cfg *config.Config) CheckResult {
	for _, name := range cfg.ToolCapabilities {
		if _, err := tools.ParseCapability(name); err != nil {
			return CheckResult{
				Name: "tool_grant", Category: "config", Status: StatusFail,
				Message: err.Error(),
				Fix:     "Use read_only, modify_tasks, timer_control or full_access",
			}
		}
	}
	var unknown []string
	for _, name := range cfg.ToolAutoApprove {
		if _, ok := tools.Lookup(name); !ok {
			unknown = append(unknown, name)
		}
	}
	if len(unknown) > 0 {
		return CheckResult{
			Name: "tool_grant", Category: "config", Status: StatusWarn,
			Message: "auto-approve names unknown tools: " + strings.Join(unknown, ", "),
		}
	}
	return CheckResult{
		Name: "tool_grant", Category: "config", Status: StatusPass,
		Message: strings.Join(cfg.ToolCapabilities, ", "),
	}
}

func checkStore(ctx context.Context, cfg *config.Config) []CheckResult {
	store, err := evidence.NewStore(cfg.InteractionsDBPath(), cfg.SigningKey)
	if err != nil {
		return []CheckResult{{
			Name: "interaction_store", Category: "store", Status: StatusFail,
			Message: err.Error(),
			Fix:     "Check permissions on " + cfg.InteractionsDBPath(),
		}}
	}
	defer store.Close()

	results := []CheckResult{{
		Name: "interaction_store", Category: "store", Status: StatusPass,
		Message: cfg.InteractionsDBPath(),
	}}

	var r config.Retention
	if cfg.RetentionFile != "" {
		r, err = config.LoadRetentionFile(cfg.RetentionFile)
	} else {
		r, err = store.RetentionConfig(ctx)
		if errors.Is(err, evidence.ErrNotFound) {
			r, err = config.DefaultRetention(), nil
		}
	}
	if err != nil {
		results = append(results, CheckResult{
			Name: "retention_config", Category: "store", Status: StatusFail,
			Message: err.Error(),
			Fix:     "Fix the file or run `kiralog retention set`",
		})
		r = config.DefaultRetention()
	} else {
		src := "stored"
		if cfg.RetentionFile != "" {
			src = cfg.RetentionFile
		}
		results = append(results, CheckResult{Name: "retention_config", Category: "store", Status: StatusPass, Message: src})
	}

	st, err := store.Stats(ctx)
	if err != nil {
		return append(results, CheckResult{
			Name: "store_stats", Category: "store", Status: StatusFail, Message: err.Error(),
		})
	}
	sizeMB := float64(st.TotalSizeBytes) / (1024 * 1024)
	res := CheckResult{
		Name: "store_stats", Category: "store", Status: StatusPass,
		Message: fmt.Sprintf("%d interactions, %.1f MB", st.Count, sizeMB),
	}
	if (r.MaxRecords > 0 && st.Count > r.MaxRecords) || (r.MaxSizeMB > 0 && sizeMB > float64(r.MaxSizeMB)) {
		res.Status = StatusWarn
		res.Message += " (over retention limits)"
		res.Fix = "Run `kiralog retention run`"
	}
	return append(results, res)
}
