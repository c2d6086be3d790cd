package cmd

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/vietanhdev/kirapilot-app-sub002/internal/config"
	"github.com/vietanhdev/kirapilot-app-sub002/internal/retention"
)

var retentionSetFlags struct {
	enabled, systemPrompts, toolExecutions, perfMetrics, autoCleanup bool
	verbosity, exportFormat                                          string
	days, maxRecords, maxSizeMB                                      int
}

var retentionCmd = &cobra.Command{
	Use:   "retention",
	Short: "Show, change and enforce the retention config",
}

var retentionShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective retention config and storage usage",
	RunE:  retentionShow,
}

var retentionSetCmd = &cobra.Command{
	Use:   "set",
	Short: "Change stored retention settings; unset flags keep their value",
	RunE:  retentionSet,
}

var retentionRunCmd = &cobra.Command{
	Use:   "run",
	Short: "Run retention cleanup once, regardless of auto_cleanup",
	RunE:  retentionRun,
}

func init() {
	f := retentionSetCmd.Flags()
	f.BoolVar(&retentionSetFlags.enabled, "enabled", true, "capture interactions")
	f.StringVar(&retentionSetFlags.verbosity, "verbosity", "", "minimal, standard or detailed")
	f.IntVar(&retentionSetFlags.days, "retention-days", 0, "delete interactions older than this (0 keeps forever)")
	f.IntVar(&retentionSetFlags.maxRecords, "max-records", 0, "keep at most this many interactions (0 is unlimited)")
	f.IntVar(&retentionSetFlags.maxSizeMB, "max-size-mb", 0, "keep stored text under this size (0 is unlimited)")
	f.BoolVar(&retentionSetFlags.systemPrompts, "include-system-prompts", true, "store system prompts")
	f.BoolVar(&retentionSetFlags.toolExecutions, "include-tool-executions", true, "store tool calls")
	f.BoolVar(&retentionSetFlags.perfMetrics, "include-performance-metrics", true, "store latency and token counts")
	f.BoolVar(&retentionSetFlags.autoCleanup, "auto-cleanup", true, "run cleanup on the schedule")
	f.StringVar(&retentionSetFlags.exportFormat, "export-format", "", "default export format (json, csv)")

	retentionCmd.AddCommand(retentionShowCmd, retentionSetCmd, retentionRunCmd)
	rootCmd.AddCommand(retentionCmd)
}

func retentionShow(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), commandTimeout)
	defer cancel()

	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	r := a.retention(ctx)
	st, err := a.store.Stats(ctx)
	if err != nil {
		return fmt.Errorf("reading stats: %w", err)
	}
	renderRetention(cmd.OutOrStdout(), r, a.cfg.RetentionFile)
	fmt.Fprintf(cmd.OutOrStdout(), "\nStored: %d interactions, %.2f MB\n", st.Count, float64(st.TotalSizeBytes)/(1024*1024))
	return nil
}

// retentionPatchFromFlags includes only the flags the user set.
func retentionPatchFromFlags(cmd *cobra.Command) config.RetentionPatch {
	var p config.RetentionPatch
	fl := cmd.Flags()
	v := &retentionSetFlags
	if fl.Changed("enabled") {
		p.Enabled = &v.enabled
	}
	if fl.Changed("verbosity") {
		verb := config.Verbosity(v.verbosity)
		p.Verbosity = &verb
	}
	if fl.Changed("retention-days") {
		p.RetentionDays = &v.days
	}
	if fl.Changed("max-records") {
		p.MaxRecords = &v.maxRecords
	}
	if fl.Changed("max-size-mb") {
		p.MaxSizeMB = &v.maxSizeMB
	}
	if fl.Changed("include-system-prompts") {
		p.IncludeSystemPrompts = &v.systemPrompts
	}
	if fl.Changed("include-tool-executions") {
		p.IncludeToolExecutions = &v.toolExecutions
	}
	if fl.Changed("include-performance-metrics") {
		p.IncludePerformanceMetrics = &v.perfMetrics
	}
	if fl.Changed("auto-cleanup") {
		p.AutoCleanup = &v.autoCleanup
	}
	if fl.Changed("export-format") {
		p.ExportFormat = &v.exportFormat
	}
	return p
}

func retentionSet(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), commandTimeout)
	defer cancel()

	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	next, err := a.store.UpdateRetentionConfig(ctx, retentionPatchFromFlags(cmd))
	if err != nil {
		return err
	}
	if a.cfg.RetentionFile != "" {
		fmt.Fprintf(cmd.ErrOrStderr(), "note: %s overrides the stored config while it is readable\n", a.cfg.RetentionFile)
	}
	renderRetention(cmd.OutOrStdout(), next, "")
	return nil
}

func retentionRun(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Minute)
	defer cancel()

	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	res, err := retention.RunCleanup(ctx, a.store, a.retention(ctx), time.Now())
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "✓ Removed %d interactions (%d expired, %d over max_records, %d over max_size_mb)\n",
		res.Total(), res.Purged, res.Evicted, res.EvictedForSize)
	return nil
}

// renderRetention writes r to w (testable). source names an override file.
func renderRetention(w io.Writer, r config.Retention, source string) {
	if source != "" {
		fmt.Fprintf(w, "Retention config (from %s):\n", source)
	} else {
		fmt.Fprintln(w, "Retention config:")
	}
	fmt.Fprintf(w, "  enabled:                     %t\n", r.Enabled)
	fmt.Fprintf(w, "  verbosity:                   %s\n", r.Verbosity)
	fmt.Fprintf(w, "  retention_days:              %s\n", limitString(r.RetentionDays))
	fmt.Fprintf(w, "  max_records:                 %s\n", limitString(r.MaxRecords))
	fmt.Fprintf(w, "  max_size_mb:                 %s\n", limitString(r.MaxSizeMB))
	fmt.Fprintf(w, "  include_system_prompts:      %t\n", r.IncludeSystemPrompts)
	fmt.Fprintf(w, "  include_tool_executions:     %t\n", r.IncludeToolExecutions)
	fmt.Fprintf(w, "  include_performance_metrics: %t\n", r.IncludePerformanceMetrics)
	fmt.Fprintf(w, "  auto_cleanup:                %t\n", r.AutoCleanup)
	fmt.Fprintf(w, "  export_format:               %s\n", r.ExportFormat)
}

func limitString(n int) string {
	if n <= 0 {
		return "unlimited"
	}
	return strconv.Itoa(n)
}
