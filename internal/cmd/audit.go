package cmd

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/vietanhdev/kirapilot-app-sub002/internal/evidence"
)

var auditFlags filterFlags

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "List stored interactions and verify their signatures",
}

var auditListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored interactions, newest first",
	RunE:  auditList,
}

var auditVerifyCmd = &cobra.Command{
	Use:   "verify [interaction-id]",
	Short: "Verify the HMAC signature of a stored interaction",
	Args:  cobra.ExactArgs(1),
	RunE:  auditVerify,
}

func init() {
	auditListCmd.Flags().StringVar(&auditFlags.from, "from", "", "only interactions at or after this time")
	auditListCmd.Flags().StringVar(&auditFlags.to, "to", "", "only interactions at or before this time")
	auditListCmd.Flags().StringVar(&auditFlags.backend, "backend", "", "filter by backend name")
	auditListCmd.Flags().IntVar(&auditFlags.limit, "limit", 20, "maximum records to show")

	auditCmd.AddCommand(auditListCmd)
	auditCmd.AddCommand(auditVerifyCmd)
	rootCmd.AddCommand(auditCmd)
}

func auditList(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), commandTimeout)
	defer cancel()

	f, err := auditFlags.filter()
	if err != nil {
		return err
	}
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	rows, err := a.store.List(ctx, f)
	if err != nil {
		return fmt.Errorf("querying interactions: %w", err)
	}
	if len(rows) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No interactions found.")
		return nil
	}
	renderAuditList(cmd.OutOrStdout(), rows)
	return nil
}

func auditVerify(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), commandTimeout)
	defer cancel()

	id := args[0]
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	valid, err := a.store.Verify(ctx, id)
	if err != nil {
		return fmt.Errorf("verifying interaction: %w", err)
	}
	renderVerifyResult(cmd.OutOrStdout(), id, valid)
	if !valid {
		return fmt.Errorf("signature verification failed for %s", id)
	}
	return nil
}

// renderAuditList writes one line per interaction to w (testable).
func renderAuditList(w io.Writer, rows []evidence.Row) {
	fmt.Fprintf(w, "Interactions (showing %d):\n\n", len(rows))
	for i := range rows {
		r := &rows[i]
		status := "✓"
		errorMark := ""
		if r.Error != "" {
			status = "✗"
			errorMark = " [ERROR]"
		}
		sensitive := ""
		if r.ContainsSensitive {
			sensitive = " [SENSITIVE]"
		}
		fmt.Fprintf(w, "  %s %s | %s | %s | %s | %dms | %s%s%s\n",
			status,
			r.ID,
			r.Timestamp.Format("2006-01-02 15:04:05"),
			r.SessionID,
			r.Backend,
			r.ResponseTimeMs,
			r.Classification,
			sensitive,
			errorMark,
		)
	}
}

// renderVerifyResult writes verify outcome to w (testable).
func renderVerifyResult(w io.Writer, id string, valid bool) {
	if valid {
		fmt.Fprintf(w, "✓ Interaction %s: signature VALID (HMAC-SHA256 intact)\n", id)
	} else {
		fmt.Fprintf(w, "✗ Interaction %s: signature INVALID (possible tampering)\n", id)
	}
}
