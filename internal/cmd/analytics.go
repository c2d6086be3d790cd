package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sort"

	"github.com/spf13/cobra"

	"github.com/vietanhdev/kirapilot-app-sub002/internal/analytics"
	"github.com/vietanhdev/kirapilot-app-sub002/internal/heuristic"
)

var (
	analyticsFlags filterFlags
	analyticsJSON  bool

	searchFlags   filterFlags
	searchIntent  string
	searchTool    string
	searchMaxMs   int64
	searchJSONOut bool
)

var analyticsCmd = &cobra.Command{
	Use:   "analytics",
	Short: "Summarize stored interactions",
	RunE:  runAnalytics,
}

var searchCmd = &cobra.Command{
	Use:   "search [text]",
	Short: "Search interactions by text, intent, tool and latency",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runSearch,
}

func init() {
	analyticsCmd.Flags().StringVar(&analyticsFlags.from, "from", "", "only interactions at or after this time")
	analyticsCmd.Flags().StringVar(&analyticsFlags.to, "to", "", "only interactions at or before this time")
	analyticsCmd.Flags().StringVar(&analyticsFlags.backend, "backend", "", "filter by backend name")
	analyticsCmd.Flags().BoolVar(&analyticsJSON, "json", false, "print JSON")
	rootCmd.AddCommand(analyticsCmd)

	searchCmd.Flags().StringVar(&searchFlags.from, "from", "", "only interactions at or after this time")
	searchCmd.Flags().StringVar(&searchFlags.to, "to", "", "only interactions at or before this time")
	searchCmd.Flags().StringVar(&searchFlags.backend, "backend", "", "filter by backend name")
	searchCmd.Flags().IntVar(&searchFlags.limit, "limit", 20, "maximum results")
	searchCmd.Flags().StringVar(&searchIntent, "intent", "", "required intent (e.g. create_task, start_timer)")
	searchCmd.Flags().StringVar(&searchTool, "tool", "", "required tool name")
	searchCmd.Flags().Int64Var(&searchMaxMs, "max-response-ms", 0, "maximum response time")
	searchCmd.Flags().BoolVar(&searchJSONOut, "json", false, "print JSON")
	rootCmd.AddCommand(searchCmd)
}

func runAnalytics(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), commandTimeout)
	defer cancel()

	f, err := analyticsFlags.filter()
	if err != nil {
		return err
	}
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	res, err := a.analytics.Analytics(ctx, f)
	if err != nil {
		return fmt.Errorf("computing analytics: %w", err)
	}
	if analyticsJSON {
		return writeIndentedJSON(cmd.OutOrStdout(), res)
	}
	renderAnalytics(cmd.OutOrStdout(), res)
	return nil
}

func runSearch(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), commandTimeout)
	defer cancel()

	f, err := searchFlags.filter()
	if err != nil {
		return err
	}
	q := analytics.Query{
		Intent:            heuristic.Tag(searchIntent),
		Tool:              searchTool,
		MaxResponseTimeMs: searchMaxMs,
		Filter:            f,
	}
	if len(args) == 1 {
		q.Text = args[0]
	}
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	records, err := a.analytics.Search(ctx, q)
	if err != nil {
		return fmt.Errorf("searching: %w", err)
	}
	if searchJSONOut {
		return writeIndentedJSON(cmd.OutOrStdout(), records)
	}
	renderSearchResults(cmd.OutOrStdout(), records)
	return nil
}

func writeIndentedJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// renderAnalytics writes a human summary to w (testable).
func renderAnalytics(w io.Writer, a *analytics.Analytics) {
	fmt.Fprintf(w, "Interactions:        %d\n", a.TotalRecords)
	if a.TotalRecords == 0 {
		return
	}
	fmt.Fprintf(w, "Avg response time:   %.0fms\n", a.AvgResponseTimeMs)
	fmt.Fprintf(w, "Success rate:        %.1f%%\n", a.SuccessRate*100)
	fmt.Fprintf(w, "Satisfaction score:  %.1f/10\n", a.SatisfactionScore)
	if a.FeedbackCount > 0 {
		fmt.Fprintf(w, "Feedback:            %d (avg rating %.2f)\n", a.FeedbackCount, a.AvgRating)
	}
	if len(a.TopTools) > 0 {
		fmt.Fprintln(w, "\nTop tools:")
		for _, t := range a.TopTools {
			fmt.Fprintf(w, "  %-28s %4d calls  %5.1f%% ok  %6.0fms avg\n", t.Name, t.Count, t.SuccessRate*100, t.AvgRuntimeMs)
		}
	}
	if len(a.Backends) > 0 {
		fmt.Fprintln(w, "\nBackends:")
		for _, name := range sortedKeys(a.Backends) {
			fmt.Fprintf(w, "  %-28s %4d\n", name, a.Backends[name])
		}
	}
	if len(a.Intents) > 0 {
		fmt.Fprintln(w, "\nIntents:")
		intents := make(map[string]int, len(a.Intents))
		for k, v := range a.Intents {
			intents[string(k)] = v
		}
		for _, name := range sortedKeys(intents) {
			fmt.Fprintf(w, "  %-28s %4d\n", name, intents[name])
		}
	}
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// renderSearchResults writes one line per match to w (testable).
func renderSearchResults(w io.Writer, records []analytics.EnrichedRecord) {
	if len(records) == 0 {
		fmt.Fprintln(w, "No matching interactions.")
		return
	}
	fmt.Fprintf(w, "Found %d interactions:\n\n", len(records))
	for i := range records {
		r := &records[i]
		fmt.Fprintf(w, "  %s | %s | %s | %s | %d tools | %s\n",
			r.ID,
			r.Timestamp.Format("2006-01-02 15:04:05"),
			r.Backend.Name,
			r.Intent,
			len(r.ToolExecutions),
			truncate(r.UserMessage, 60),
		)
	}
}

func truncate(s string, n int) string {
	rs := []rune(s)
	if len(rs) <= n {
		return s
	}
	return string(rs[:n-1]) + "…"
}
