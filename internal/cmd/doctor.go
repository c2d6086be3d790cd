package cmd

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/vietanhdev/kirapilot-app-sub002/internal/doctor"
)

var doctorJSON bool

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Run preflight checks (data dir, store, patterns, retention, tool grant)",
	Long:  "Verifies the data directory is writable, the interaction store opens, extra privacy patterns compile, the retention config and cleanup schedule are valid, and the tool grant parses.",
	RunE:  runDoctor,
}

func init() {
	doctorCmd.Flags().BoolVar(&doctorJSON, "json", false, "print the report as JSON")
	rootCmd.AddCommand(doctorCmd)
}

func runDoctor(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), 15*time.Second)
	defer cancel()

	report := doctor.Run(ctx)
	out := cmd.OutOrStdout()
	if doctorJSON {
		if err := writeIndentedJSON(out, report); err != nil {
			return err
		}
	} else {
		renderDoctorReport(out, report)
	}
	if report.Status == doctor.StatusFail {
		return fmt.Errorf("preflight checks failed")
	}
	return nil
}

// renderDoctorReport writes one line per check to w (testable).
func renderDoctorReport(w io.Writer, r *doctor.Report) {
	for _, c := range r.Checks {
		mark := "✓"
		switch c.Status {
		case doctor.StatusWarn:
			mark = "⚠"
		case doctor.StatusFail:
			mark = "✗"
		}
		fmt.Fprintf(w, "%s %-18s %s\n", mark, c.Name, c.Message)
		if c.Fix != "" && c.Status != doctor.StatusPass {
			fmt.Fprintf(w, "  fix: %s\n", c.Fix)
		}
	}
	fmt.Fprintf(w, "\n%d passed, %d warnings, %d failed\n", r.Summary.Pass, r.Summary.Warn, r.Summary.Fail)
	if r.Status != doctor.StatusFail {
		fmt.Fprintln(w, "All checks passed.")
	}
}
