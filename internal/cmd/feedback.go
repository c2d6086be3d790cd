package cmd

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/vietanhdev/kirapilot-app-sub002/internal/feedback"
	"github.com/vietanhdev/kirapilot-app-sub002/internal/interaction"
)

var (
	feedbackFrom, feedbackTo string
	feedbackDays             int
	feedbackJSON             bool
	feedbackComment          string
	feedbackCategories       map[string]int
)

var feedbackCmd = &cobra.Command{
	Use:   "feedback",
	Short: "Analyze and record user feedback",
}

var feedbackAnalyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Rating patterns, trend and improvement suggestions",
	RunE:  feedbackAnalyze,
}

var feedbackSummaryCmd = &cobra.Command{
	Use:   "summary",
	Short: "Strengths, weaknesses and top suggestions over the last N days",
	RunE:  feedbackSummary,
}

var feedbackSubmitCmd = &cobra.Command{
	Use:   "submit [interaction-id] [rating]",
	Short: "Attach a 1-5 rating to an interaction",
	Args:  cobra.ExactArgs(2),
	RunE:  feedbackSubmit,
}

func init() {
	feedbackAnalyzeCmd.Flags().StringVar(&feedbackFrom, "from", "", "only interactions at or after this time")
	feedbackAnalyzeCmd.Flags().StringVar(&feedbackTo, "to", "", "only interactions at or before this time")
	feedbackAnalyzeCmd.Flags().BoolVar(&feedbackJSON, "json", false, "print JSON")
	feedbackSummaryCmd.Flags().IntVar(&feedbackDays, "days", feedback.DefaultSummaryDays, "window in days")
	feedbackSummaryCmd.Flags().BoolVar(&feedbackJSON, "json", false, "print JSON")
	feedbackSubmitCmd.Flags().StringVar(&feedbackComment, "comment", "", "free-text comment")
	feedbackSubmitCmd.Flags().StringToIntVar(&feedbackCategories, "category", nil, "category ratings, e.g. --category accuracy=4,clarity=3")

	feedbackCmd.AddCommand(feedbackAnalyzeCmd, feedbackSummaryCmd, feedbackSubmitCmd)
	rootCmd.AddCommand(feedbackCmd)
}

func feedbackAnalyze(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), commandTimeout)
	defer cancel()

	start, err := parseTimeFlag("from", feedbackFrom)
	if err != nil {
		return err
	}
	end, err := parseTimeFlag("to", feedbackTo)
	if err != nil {
		return err
	}
	var tr *feedback.TimeRange
	if !start.IsZero() || !end.IsZero() {
		tr = &feedback.TimeRange{Start: start, End: end}
	}

	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	res, err := a.feedback.AnalyzePatterns(ctx, tr)
	if err != nil {
		return fmt.Errorf("analyzing feedback: %w", err)
	}
	if feedbackJSON {
		return writeIndentedJSON(cmd.OutOrStdout(), res)
	}
	renderFeedbackAnalysis(cmd.OutOrStdout(), res)
	return nil
}

func feedbackSummary(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), commandTimeout)
	defer cancel()

	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	sum, err := a.feedback.Summarize(ctx, feedbackDays)
	if err != nil {
		return fmt.Errorf("summarizing feedback: %w", err)
	}
	if feedbackJSON {
		return writeIndentedJSON(cmd.OutOrStdout(), sum)
	}
	renderFeedbackSummary(cmd.OutOrStdout(), sum)
	return nil
}

func feedbackSubmit(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), commandTimeout)
	defer cancel()

	fb, err := parseFeedbackArgs(args[1], feedbackComment, feedbackCategories)
	if err != nil {
		return err
	}
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.analytics.SubmitFeedback(ctx, args[0], fb); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "✓ Feedback recorded for %s\n", args[0])
	return nil
}

func parseFeedbackArgs(rating, comment string, cats map[string]int) (interaction.Feedback, error) {
	n, err := strconv.Atoi(rating)
	if err != nil {
		return interaction.Feedback{}, fmt.Errorf("rating must be a number 1-5, got %q", rating)
	}
	fb := interaction.Feedback{Rating: n, Comment: comment}
	if len(cats) > 0 {
		fb.Categories = make(map[interaction.Category]int, len(cats))
		for k, v := range cats {
			fb.Categories[interaction.Category(k)] = v
		}
	}
	return fb, nil
}

// renderFeedbackAnalysis writes a human report to w (testable).
func renderFeedbackAnalysis(w io.Writer, a *feedback.Analysis) {
	fmt.Fprintf(w, "Feedback entries:   %d\n", a.TotalFeedbacks)
	if a.TotalFeedbacks == 0 {
		return
	}
	fmt.Fprintf(w, "Average rating:     %.2f\n", a.AverageRating)
	fmt.Fprintf(w, "Satisfied (4+):     %.0f%%\n", a.SatisfactionRate*100)
	if a.Trend != feedback.TrendNone {
		fmt.Fprintf(w, "Trend:              %s\n", a.Trend)
	}
	if len(a.Categories) > 0 {
		fmt.Fprintln(w, "\nCategories:")
		for _, c := range interaction.Categories {
			if st, ok := a.Categories[c]; ok {
				fmt.Fprintf(w, "  %-14s %.2f (%d)\n", c, st.Mean, st.Count)
			}
		}
	}
	renderSuggestions(w, a.Suggestions)
}

// renderFeedbackSummary writes a human report to w (testable).
func renderFeedbackSummary(w io.Writer, s *feedback.Summary) {
	fmt.Fprintf(w, "Last %d days: %d feedback entries, average %.2f\n", s.Days, s.TotalFeedbacks, s.AverageRating)
	if len(s.Strengths) > 0 {
		fmt.Fprintf(w, "Strengths:  %s\n", joinCategories(s.Strengths))
	}
	if len(s.Weaknesses) > 0 {
		fmt.Fprintf(w, "Weaknesses: %s\n", joinCategories(s.Weaknesses))
	}
	renderSuggestions(w, s.TopSuggestions)
}

func renderSuggestions(w io.Writer, sugs []feedback.Suggestion) {
	if len(sugs) == 0 {
		return
	}
	fmt.Fprintln(w, "\nSuggestions:")
	for i, s := range sugs {
		fmt.Fprintf(w, "  %d. [%s] %s: %s\n", i+1, s.Priority, s.Area, s.Message)
	}
}

func joinCategories(cs []interaction.Category) string {
	parts := make([]string, len(cs))
	for i, c := range cs {
		parts[i] = string(c)
	}
	return strings.Join(parts, ", ")
}
