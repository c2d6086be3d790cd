// Package feedback turns recorded user ratings into pattern summaries and
// ranked improvement suggestions.
package feedback

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"

	"github.com/vietanhdev/kirapilot-app-sub002/internal/analytics"
	"github.com/vietanhdev/kirapilot-app-sub002/internal/evidence"
	"github.com/vietanhdev/kirapilot-app-sub002/internal/interaction"
	kotel "github.com/vietanhdev/kirapilot-app-sub002/internal/otel"
)

var tracer = kotel.Tracer("github.com/vietanhdev/kirapilot-app-sub002/internal/feedback")

const (
	// MinTrendPoints is how many feedback entries a trend needs.
	MinTrendPoints = 10
	// trendDelta is the mean-rating change that counts as a trend.
	trendDelta = 0.5
	// satisfiedRating is the lowest rating counted as satisfied.
	satisfiedRating = 4
	// DefaultSummaryDays is the Summarize window when days is not positive.
	DefaultSummaryDays = 7
)

// Source provides enriched records. *analytics.Service satisfies it.
type Source interface {
	Records(ctx context.Context, f evidence.Filter) ([]analytics.EnrichedRecord, error)
}

// TimeRange bounds AnalyzePatterns. Zero ends are open.
type TimeRange struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Trend is the direction of ratings over the analyzed window.
type Trend string

const (
	TrendNone      Trend = ""
	TrendImproving Trend = "improving"
	TrendDeclining Trend = "declining"
	TrendStable    Trend = "stable"
)

// CategoryStats is the mean rating of one category and how many entries
// rated it.
type CategoryStats struct {
	Mean  float64 `json:"mean"`
	Count int     `json:"count"`
}

// Analysis is the result of AnalyzePatterns. An empty window yields zeros
// and an empty, non-nil Suggestions list.
type Analysis struct {
	AverageRating    float64                                `json:"averageRating"`
	TotalFeedbacks   int                                    `json:"totalFeedbacks"`
	SatisfactionRate float64                                `json:"satisfactionRate"`
	Categories       map[interaction.Category]CategoryStats `json:"categories"`
	Trend            Trend                                  `json:"trend,omitempty"`
	Suggestions      []Suggestion                           `json:"suggestions"`
}

// Summary is a short report over the last N days.
type Summary struct {
	Days             int                    `json:"days"`
	Start            time.Time              `json:"start"`
	End              time.Time              `json:"end"`
	TotalFeedbacks   int                    `json:"totalFeedbacks"`
	AverageRating    float64                `json:"averageRating"`
	SatisfactionRate float64                `json:"satisfactionRate"`
	Trend            Trend                  `json:"trend,omitempty"`
	Strengths        []interaction.Category `json:"strengths"`
	Weaknesses       []interaction.Category `json:"weaknesses"`
	TopSuggestions   []Suggestion           `json:"topSuggestions"`
}

// Service analyzes feedback attached to stored interactions.
type Service struct {
	source Source
	now    func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService creates a feedback service reading from source.
func NewService(source Source, opts ...Option) *Service {
	s := &Service{source: source, now: time.Now}
	for _, o := range opts {
		o(s)
	}
	return s
}

type entry struct {
	fb       interaction.Feedback
	at       time.Time
	response string
}

// AnalyzePatterns analyzes every feedback entry on interactions within r
// (all interactions when r is nil).
func (s *Service) AnalyzePatterns(ctx context.Context, r *TimeRange) (*Analysis, error) {
	ctx, span := tracer.Start(ctx, "feedback.analyze_patterns")
	defer span.End()

	var f evidence.Filter
	if r != nil {
		f.StartDate, f.EndDate = r.Start, r.End
	}
	records, err := s.source.Records(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("loading records: %w", err)
	}

	var entries []entry
	for _, rec := range records {
		if rec.Feedback == nil {
			continue
		}
		at := rec.Feedback.Timestamp
		if at.IsZero() {
			at = rec.Timestamp
		}
		entries = append(entries, entry{fb: *rec.Feedback, at: at, response: rec.AIResponse})
	}
	sort.SliceStable(entries, func(i, j int) bool { return entries[i].at.Before(entries[j].at) })

	a := analyze(entries)
	span.SetAttributes(
		attribute.Int("feedback.total", a.TotalFeedbacks),
		attribute.String("feedback.trend", string(a.Trend)),
	)
	log.Debug().Int("feedbacks", a.TotalFeedbacks).Str("trend", string(a.Trend)).Msg("feedback_analyzed")
	return a, nil
}

func analyze(entries []entry) *Analysis {
	a := &Analysis{
		Categories:  map[interaction.Category]CategoryStats{},
		Suggestions: []Suggestion{},
	}
	if len(entries) == 0 {
		return a
	}

	var sum, satisfied int
	catSum := map[interaction.Category]int{}
	catN := map[interaction.Category]int{}
	ratings := make([]int, len(entries))
	var comments []string
	longLowRated := 0
	for i, e := range entries {
		sum += e.fb.Rating
		ratings[i] = e.fb.Rating
		if e.fb.Rating >= satisfiedRating {
			satisfied++
		}
		for c, v := range e.fb.Categories {
			catSum[c] += v
			catN[c]++
		}
		if e.fb.Comment != "" {
			comments = append(comments, e.fb.Comment)
		}
		if e.fb.Rating <= lowSingleRating && isLongResponse(e.response) {
			longLowRated++
		}
	}

	n := float64(len(entries))
	a.TotalFeedbacks = len(entries)
	a.AverageRating = float64(sum) / n
	a.SatisfactionRate = float64(satisfied) / n
	for c, count := range catN {
		a.Categories[c] = CategoryStats{Mean: float64(catSum[c]) / float64(count), Count: count}
	}
	a.Trend = trend(ratings)

	var sugs []Suggestion
	sugs = append(sugs, categorySuggestions(a.Categories)...)
	if a.Trend == TrendDeclining {
		sugs = append(sugs, declineSuggestion)
	}
	if a.AverageRating < lowOverallRating {
		sugs = append(sugs, lowOverallSuggestion)
	}
	sugs = append(sugs, commentSuggestions(comments)...)
	if ls, ok := lengthSuggestion(longLowRated); ok {
		sugs = append(sugs, ls)
	}
	a.Suggestions = rank(sugs)
	return a
}

// trend compares the mean of the later half of ratings with the earlier
// half. It needs MinTrendPoints ratings.
func trend(ratings []int) Trend {
	if len(ratings) < MinTrendPoints {
		return TrendNone
	}
	mid := len(ratings) / 2
	diff := mean(ratings[mid:]) - mean(ratings[:mid])
	switch {
	case diff > trendDelta:
		return TrendImproving
	case diff < -trendDelta:
		return TrendDeclining
	default:
		return TrendStable
	}
}

func mean(xs []int) float64 {
	if len(xs) == 0 {
		return 0
	}
	total := 0
	for _, x := range xs {
		total += x
	}
	return float64(total) / float64(len(xs))
}

// Summarize reports on the last days days (DefaultSummaryDays when days is
// not positive).
func (s *Service) Summarize(ctx context.Context, days int) (*Summary, error) {
	if days <= 0 {
		days = DefaultSummaryDays
	}
	end := s.now().UTC()
	start := end.AddDate(0, 0, -days)

	a, err := s.AnalyzePatterns(ctx, &TimeRange{Start: start, End: end})
	if err != nil {
		return nil, err
	}

	sum := &Summary{
		Days:             days,
		Start:            start,
		End:              end,
		TotalFeedbacks:   a.TotalFeedbacks,
		AverageRating:    a.AverageRating,
		SatisfactionRate: a.SatisfactionRate,
		Trend:            a.Trend,
		Strengths:        []interaction.Category{},
		Weaknesses:       []interaction.Category{},
		TopSuggestions:   a.Suggestions,
	}
	for _, c := range interaction.Categories {
		st, ok := a.Categories[c]
		if !ok {
			continue
		}
		switch {
		case st.Mean >= strongCategoryRating:
			sum.Strengths = append(sum.Strengths, c)
		case st.Mean < weakCategoryRating:
			sum.Weaknesses = append(sum.Weaknesses, c)
		}
	}
	if len(sum.TopSuggestions) > maxSummarySuggestions {
		sum.TopSuggestions = sum.TopSuggestions[:maxSummarySuggestions]
	}
	return sum, nil
}
