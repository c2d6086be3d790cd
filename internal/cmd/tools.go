package cmd

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/vietanhdev/kirapilot-app-sub002/internal/config"
	"github.com/vietanhdev/kirapilot-app-sub002/internal/tools"
)

var toolsFormatDuration time.Duration

var toolsCmd = &cobra.Command{
	Use:   "tools",
	Short: "Inspect the tool catalog under the configured capability grant",
}

var toolsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List known tools with permission and confirmation status",
	RunE:  toolsList,
}

var toolsValidateCmd = &cobra.Command{
	Use:   "validate [tool]",
	Short: "Check whether the configured grant allows a tool",
	Args:  cobra.ExactArgs(1),
	RunE:  toolsValidate,
}

var toolsFormatCmd = &cobra.Command{
	Use:   "format [tool] [raw-json|-]",
	Short: "Render a raw tool result as the user-facing message",
	Args:  cobra.ExactArgs(2),
	RunE:  toolsFormat,
}

func init() {
	toolsFormatCmd.Flags().DurationVar(&toolsFormatDuration, "duration", 0, "execution time to report")
	toolsCmd.AddCommand(toolsListCmd, toolsValidateCmd, toolsFormatCmd)
	rootCmd.AddCommand(toolsCmd)
}

func loadToolEngine() (*tools.Engine, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	grant, err := newGrant(cfg)
	if err != nil {
		return nil, err
	}
	return tools.NewEngine(grant), nil
}

func toolsList(cmd *cobra.Command, args []string) error {
	engine, err := loadToolEngine()
	if err != nil {
		return err
	}
	renderToolList(cmd.OutOrStdout(), engine)
	return nil
}

func toolsValidate(cmd *cobra.Command, args []string) error {
	engine, err := loadToolEngine()
	if err != nil {
		return err
	}
	v := engine.Validate(args[0], nil)
	out := cmd.OutOrStdout()
	switch {
	case !v.Allowed:
		fmt.Fprintf(out, "✗ %s: %s\n", args[0], v.Reason)
		return fmt.Errorf("%s is not allowed", args[0])
	case v.RequiresConfirmation:
		fmt.Fprintf(out, "✓ %s: allowed, %s\n", args[0], v.Reason)
	default:
		fmt.Fprintf(out, "✓ %s: allowed\n", args[0])
	}
	return nil
}

func toolsFormat(cmd *cobra.Command, args []string) error {
	raw := args[1]
	if raw == "-" {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return fmt.Errorf("reading stdin: %w", err)
		}
		raw = string(data)
	}
	res := tools.NewEngine(nil).FormatResult(args[0], raw, toolsFormatDuration)
	fmt.Fprintln(cmd.OutOrStdout(), res.UserMessage)
	if !res.Success {
		return fmt.Errorf("%s result reports failure", args[0])
	}
	return nil
}

// renderToolList writes the catalog with the grant's view of each tool (testable).
func renderToolList(w io.Writer, e *tools.Engine) {
	caps := e.Grant().Capabilities()
	names := make([]string, len(caps))
	for i, c := range caps {
		names[i] = string(c)
	}
	fmt.Fprintf(w, "Grant: %s\n\n", strings.Join(names, ", "))
	for _, spec := range tools.Catalog() {
		mark := "✓"
		if !e.HasPermission(spec.Name) {
			mark = "✗"
		}
		confirm := ""
		if e.RequiresConfirmation(spec.Name) {
			confirm = " (confirm)"
		}
		fmt.Fprintf(w, "  %s %-26s %s%s\n", mark, spec.Name, spec.Description, confirm)
	}
}
