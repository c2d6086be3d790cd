package cmd

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"
)

var versionJSON bool

type versionInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildDate string `json:"build_date"`
	Go        string `json:"go"`
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	RunE: func(cmd *cobra.Command, args []string) error {
		_, span := tracer.Start(cmd.Context(), "version")
		defer span.End()

		info := versionInfo{Version: resolvedVersion(), Commit: Commit, BuildDate: BuildDate, Go: runtime.Version()}
		out := cmd.OutOrStdout()
		if versionJSON {
			return writeIndentedJSON(out, info)
		}
		fmt.Fprintf(out, "Kiralog %s\nCommit: %s\nBuilt:  %s\nGo:     %s\n", info.Version, info.Commit, info.BuildDate, info.Go)
		return nil
	},
}

func init() {
	versionCmd.Flags().BoolVar(&versionJSON, "json", false, "print JSON")
	rootCmd.AddCommand(versionCmd)
}
