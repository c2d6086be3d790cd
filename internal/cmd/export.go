package cmd

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/vietanhdev/kirapilot-app-sub002/internal/analytics"
)

var (
	exportFlags            filterFlags
	exportFormat           string
	exportOut              string
	exportIncludeSensitive bool
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export interactions as JSON or CSV",
	Long: `Export writes the matching interactions with their tool calls and feedback.
Message fields of confidential or sensitive records are replaced with a
placeholder unless --include-sensitive is given.`,
	RunE: runExport,
}

func init() {
	exportCmd.Flags().StringVar(&exportFlags.from, "from", "", "only interactions at or after this time")
	exportCmd.Flags().StringVar(&exportFlags.to, "to", "", "only interactions at or before this time")
	exportCmd.Flags().StringVar(&exportFlags.backend, "backend", "", "filter by backend name")
	exportCmd.Flags().StringVar(&exportFormat, "format", "", "json or csv (default: export_format of the retention config)")
	exportCmd.Flags().StringVarP(&exportOut, "out", "o", "", "output file (default: stdout)")
	exportCmd.Flags().BoolVar(&exportIncludeSensitive, "include-sensitive", false, "keep message text of sensitive records")
	rootCmd.AddCommand(exportCmd)
}

func runExport(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), commandTimeout)
	defer cancel()

	f, err := exportFlags.filter()
	if err != nil {
		return err
	}
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	format := exportFormat
	if format == "" {
		format = a.retention(ctx).ExportFormat
	}

	var w io.Writer = cmd.OutOrStdout()
	if exportOut != "" {
		file, err := os.OpenFile(exportOut, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
		if err != nil {
			return fmt.Errorf("creating %s: %w", exportOut, err)
		}
		defer file.Close()
		w = file
	}

	if exportIncludeSensitive {
		log.Warn().Msg("export includes sensitive message text")
	}
	err = a.analytics.Export(ctx, w, analytics.ExportRequest{
		Filter:           f,
		Format:           format,
		IncludeSensitive: exportIncludeSensitive,
	})
	if err != nil {
		return fmt.Errorf("exporting: %w", err)
	}
	if exportOut != "" {
		fmt.Fprintf(cmd.ErrOrStderr(), "Exported to %s\n", exportOut)
	}
	return nil
}
