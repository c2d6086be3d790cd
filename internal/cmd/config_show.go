package cmd

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/vietanhdev/kirapilot-app-sub002/internal/config"
	"github.com/vietanhdev/kirapilot-app-sub002/internal/cryptoutil"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage kiralog configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the resolved operator configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		_, span := tracer.Start(cmd.Context(), "config.show")
		defer span.End()

		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		renderConfig(cmd.OutOrStdout(), cfg, viper.ConfigFileUsed())
		return nil
	},
}

func init() {
	configCmd.AddCommand(configShowCmd)
	rootCmd.AddCommand(configCmd)
}

// renderConfig writes cfg to w with secrets masked (testable).
func renderConfig(w io.Writer, cfg *config.Config, file string) {
	if file == "" {
		file = "(none, env and defaults only)"
	}
	signing := "set"
	if cfg.UsingDefaultSigningKey() {
		signing = "derived default"
	}
	if key, err := cryptoutil.DecodeKey(cfg.SigningKey); err == nil {
		signing += " (fingerprint " + cryptoutil.Fingerprint(key) + ")"
	}
	apiKey := "not set (API unauthenticated)"
	if cfg.APIKey != "" {
		apiKey = "set"
	}
	fmt.Fprintf(w, "Config file:          %s\n", file)
	fmt.Fprintf(w, "Data directory:       %s\n", cfg.DataDir)
	fmt.Fprintf(w, "Database:             %s\n", cfg.InteractionsDBPath())
	fmt.Fprintf(w, "Listen address:       %s\n", cfg.ListenAddr)
	fmt.Fprintf(w, "Signing key:          %s\n", signing)
	fmt.Fprintf(w, "API key:              %s\n", apiKey)
	fmt.Fprintf(w, "Pattern file:         %s\n", orNone(cfg.PatternFile))
	fmt.Fprintf(w, "Retention file:       %s\n", orNone(cfg.RetentionFile))
	fmt.Fprintf(w, "Cleanup schedule:     %s\n", cfg.CleanupSchedule)
	fmt.Fprintf(w, "Tool capabilities:    %s\n", strings.Join(cfg.ToolCapabilities, ", "))
	fmt.Fprintf(w, "Tool auto-approve:    %s\n", orNone(strings.Join(cfg.ToolAutoApprove, ", ")))
	fmt.Fprintf(w, "Confirmation timeout: %s\n", cfg.ToolConfirmTimeout)
}

func orNone(s string) string {
	if s == "" {
		return "(none)"
	}
	return s
}
