package analytics

import (
	"context"

	"go.opentelemetry.io/otel/attribute"

	"github.com/vietanhdev/kirapilot-app-sub002/internal/evidence"
	"github.com/vietanhdev/kirapilot-app-sub002/internal/heuristic"
)

// Query is an advanced search. All set fields must hold (logical AND).
// Text is matched by the storage layer; the other fields are applied to the
// enriched records, so Filter's Limit and Offset page the final result.
type Query struct {
	Text              string          `json:"text,omitempty"`
	Intent            heuristic.Tag   `json:"intent,omitempty"`
	Tool              string          `json:"tool,omitempty"`
	MaxResponseTimeMs int64           `json:"max_response_time_ms,omitempty"`
	Filter            evidence.Filter `json:"filter"`
}

// Search returns the enriched records matching q, newest first.
func (s *Service) Search(ctx context.Context, q Query) ([]EnrichedRecord, error) {
	ctx, span := tracer.Start(ctx, "analytics.search")
	defer span.End()

	f := q.Filter
	if q.Text != "" {
		f.SearchText = q.Text
	}
	limit, offset := f.Limit, f.Offset
	f.Limit, f.Offset = 0, 0

	records, err := s.Records(ctx, f)
	if err != nil {
		return nil, err
	}

	matched := make([]EnrichedRecord, 0, len(records))
	for _, r := range records {
		if q.Intent != "" && r.Intent != q.Intent {
			continue
		}
		if q.Tool != "" && !r.UsedTool(q.Tool) {
			continue
		}
		if q.MaxResponseTimeMs > 0 && r.ResponseTimeMs > q.MaxResponseTimeMs {
			continue
		}
		matched = append(matched, r)
	}

	if offset > 0 {
		if offset >= len(matched) {
			matched = matched[:0]
		} else {
			matched = matched[offset:]
		}
	}
	if limit > 0 && len(matched) > limit {
		matched = matched[:limit]
	}
	span.SetAttributes(attribute.Int("analytics.search_results", len(matched)))
	return matched, nil
}
