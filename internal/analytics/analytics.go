package analytics

import (
	"context"
	"math"
	"sort"

	"go.opentelemetry.io/otel/attribute"

	"github.com/vietanhdev/kirapilot-app-sub002/internal/evidence"
	"github.com/vietanhdev/kirapilot-app-sub002/internal/heuristic"
)

// ToolUsage is how often one tool ran.
type ToolUsage struct {
	Name         string  `json:"name"`
	Count        int     `json:"count"`
	SuccessRate  float64 `json:"success_rate"`
	AvgRuntimeMs float64 `json:"avg_runtime_ms"`
}

// TrendPoint is the heuristic emotion and stress reading of one day. It is
// derived from keyword scans and is not a source of truth.
type TrendPoint struct {
	Date            string                `json:"date"`
	Interactions    int                   `json:"interactions"`
	Emotions        map[heuristic.Tag]int `json:"emotions"`
	Stress          map[heuristic.Tag]int `json:"stress"`
	DominantEmotion heuristic.Tag         `json:"dominant_emotion"`
	DominantStress  heuristic.Tag         `json:"dominant_stress"`
}

// Analytics aggregates a filtered record set. An empty set yields zeros.
type Analytics struct {
	TotalRecords      int                   `json:"total_records"`
	AvgResponseTimeMs float64               `json:"avg_response_time_ms"`
	SuccessRate       float64               `json:"success_rate"`
	ErrorRate         float64               `json:"error_rate"`
	TopTools          []ToolUsage           `json:"top_tools"`
	Intents           map[heuristic.Tag]int `json:"intents"`
	Backends          map[string]int        `json:"backends"`
	Trend             []TrendPoint          `json:"trend"`
	FeedbackCount     int                   `json:"feedback_count"`
	AvgRating         float64               `json:"avg_rating"`
	SatisfactionScore float64               `json:"satisfaction_score"`
}

// Analytics computes aggregates over the records matching f.
func (s *Service) Analytics(ctx context.Context, f evidence.Filter) (*Analytics, error) {
	ctx, span := tracer.Start(ctx, "analytics.analytics")
	defer span.End()

	records, err := s.Records(ctx, f)
	if err != nil {
		return nil, err
	}
	a := s.aggregate(records)
	span.SetAttributes(
		attribute.Int("analytics.total_records", a.TotalRecords),
		attribute.Float64("analytics.satisfaction_score", a.SatisfactionScore),
	)
	return a, nil
}

func (s *Service) aggregate(records []EnrichedRecord) *Analytics {
	a := &Analytics{
		TopTools: []ToolUsage{},
		Intents:  map[heuristic.Tag]int{},
		Backends: map[string]int{},
		Trend:    []TrendPoint{},
	}
	a.TotalRecords = len(records)
	if len(records) == 0 {
		return a
	}

	type toolAcc struct {
		count, ok int
		runtime   int64
	}
	tools := map[string]*toolAcc{}
	days := map[string]*TrendPoint{}

	var totalMs int64
	var errorsN, ratingSum int
	for i := range records {
		r := &records[i]
		totalMs += r.ResponseTimeMs
		if r.HasError() {
			errorsN++
		}
		a.Intents[r.Intent]++
		a.Backends[r.Backend.Name]++
		if r.Feedback != nil {
			a.FeedbackCount++
			ratingSum += r.Feedback.Rating
		}
		for _, t := range r.ToolExecutions {
			acc := tools[t.ToolName]
			if acc == nil {
				acc = &toolAcc{}
				tools[t.ToolName] = acc
			}
			acc.count++
			acc.runtime += t.ExecutionTimeMs
			if t.Success {
				acc.ok++
			}
		}

		day := r.Timestamp.UTC().Format("2006-01-02")
		p := days[day]
		if p == nil {
			p = &TrendPoint{Date: day, Emotions: map[heuristic.Tag]int{}, Stress: map[heuristic.Tag]int{}}
			days[day] = p
		}
		p.Interactions++
		p.Emotions[s.taggers.Emotion.Classify(r.UserMessage)]++
		p.Stress[s.taggers.Stress.Classify(r.UserMessage)]++
	}

	n := float64(len(records))
	a.AvgResponseTimeMs = float64(totalMs) / n
	a.ErrorRate = float64(errorsN) / n
	a.SuccessRate = 1 - a.ErrorRate
	if a.FeedbackCount > 0 {
		a.AvgRating = float64(ratingSum) / float64(a.FeedbackCount)
	}
	a.SatisfactionScore = SatisfactionScore(a.ErrorRate, a.AvgResponseTimeMs)

	for name, acc := range tools {
		a.TopTools = append(a.TopTools, ToolUsage{
			Name:         name,
			Count:        acc.count,
			SuccessRate:  float64(acc.ok) / float64(acc.count),
			AvgRuntimeMs: float64(acc.runtime) / float64(acc.count),
		})
	}
	sort.Slice(a.TopTools, func(i, j int) bool {
		if a.TopTools[i].Count != a.TopTools[j].Count {
			return a.TopTools[i].Count > a.TopTools[j].Count
		}
		return a.TopTools[i].Name < a.TopTools[j].Name
	})
	if len(a.TopTools) > s.topN {
		a.TopTools = a.TopTools[:s.topN]
	}

	for _, p := range days {
		p.DominantEmotion = dominant(p.Emotions)
		p.DominantStress = dominant(p.Stress)
		a.Trend = append(a.Trend, *p)
	}
	sort.Slice(a.Trend, func(i, j int) bool { return a.Trend[i].Date < a.Trend[j].Date })
	return a
}

// SatisfactionScore is 5 x (1 - errorRate) + max(0, 5 - average response
// seconds), on a 0-10 scale.
func SatisfactionScore(errorRate, avgResponseTimeMs float64) float64 {
	score := 5*(1-errorRate) + math.Max(0, 5-avgResponseTimeMs/1000)
	return math.Max(0, math.Min(10, score))
}

// dominant returns the most frequent tag; ties go to the lexically smaller
// tag so results are stable.
func dominant(counts map[heuristic.Tag]int) heuristic.Tag {
	var best heuristic.Tag
	bestN := -1
	for tag, n := range counts {
		if n > bestN || (n == bestN && tag < best) {
			best, bestN = tag, n
		}
	}
	return best
}
