// Package analytics re-hydrates stored interactions with their tool
// executions, feedback and derived fields, and computes aggregates, search
// results and exports over them. Every operation is read-only except
// SubmitFeedback, and none of them touch the capture pipeline's state.
package analytics

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/vietanhdev/kirapilot-app-sub002/internal/evidence"
	"github.com/vietanhdev/kirapilot-app-sub002/internal/heuristic"
	"github.com/vietanhdev/kirapilot-app-sub002/internal/interaction"
	kotel "github.com/vietanhdev/kirapilot-app-sub002/internal/otel"
)

var tracer = kotel.Tracer("github.com/vietanhdev/kirapilot-app-sub002/internal/analytics")

// enrichConcurrency bounds parallel per-record lookups.
const enrichConcurrency = 4

// ErrInvalidFeedback is wrapped when submitted feedback fails validation.
var ErrInvalidFeedback = errors.New("invalid feedback")

// Store is the part of the storage collaborator the analytics layer reads.
// *evidence.Store satisfies it.
type Store interface {
	List(ctx context.Context, f evidence.Filter) ([]evidence.Row, error)
	Get(ctx context.Context, id string) (*evidence.Row, error)
	ListToolExecutions(ctx context.Context, interactionID string) ([]evidence.ToolRow, error)
	GetFeedback(ctx context.Context, interactionID string) (*evidence.FeedbackRow, error)
	SaveFeedback(ctx context.Context, f *evidence.FeedbackRow) error
}

// EnrichedRecord is a stored interaction with its children and derived
// fields attached.
type EnrichedRecord struct {
	interaction.Record
	ToolExecutions []interaction.ToolExecution `json:"tool_executions"`
	Intent         heuristic.Tag               `json:"intent"`
	ReasoningChain []string                    `json:"reasoning_chain,omitempty"`
	Feedback       *interaction.Feedback       `json:"feedback,omitempty"`
}

// UsedTool reports whether the record triggered a tool with the given name.
func (r *EnrichedRecord) UsedTool(name string) bool {
	for _, t := range r.ToolExecutions {
		if t.ToolName == name {
			return true
		}
	}
	return false
}

// Service serves enriched records, aggregates, search and export.
type Service struct {
	store   Store
	taggers heuristic.Set
	topN    int
	now     func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithTaggers replaces the keyword taggers.
func WithTaggers(s heuristic.Set) Option {
	return func(svc *Service) { svc.taggers = s }
}

// WithTopTools sets how many tools Analytics ranks (default 5).
func WithTopTools(n int) Option {
	return func(svc *Service) {
		if n > 0 {
			svc.topN = n
		}
	}
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(svc *Service) { svc.now = now }
}

// NewService creates an analytics service over store.
func NewService(store Store, opts ...Option) *Service {
	svc := &Service{store: store, taggers: heuristic.DefaultSet(), topN: 5, now: time.Now}
	for _, o := range opts {
		o(svc)
	}
	return svc
}

// Records lists the interactions matching f, enriched, newest first.
func (s *Service) Records(ctx context.Context, f evidence.Filter) ([]EnrichedRecord, error) {
	ctx, span := tracer.Start(ctx, "analytics.records")
	defer span.End()

	rows, err := s.store.List(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("listing interactions: %w", err)
	}
	out, err := s.enrichAll(ctx, rows)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.Int("analytics.records", len(out)))
	return out, nil
}

// Record returns one enriched interaction. A missing ID wraps
// evidence.ErrNotFound.
func (s *Service) Record(ctx context.Context, id string) (*EnrichedRecord, error) {
	ctx, span := tracer.Start(ctx, "analytics.record",
		trace.WithAttributes(kotel.InteractionID.String(id)))
	defer span.End()

	row, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	rec := s.enrich(ctx, *row)
	return &rec, nil
}

func (s *Service) enrichAll(ctx context.Context, rows []evidence.Row) ([]EnrichedRecord, error) {
	out := make([]EnrichedRecord, len(rows))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(enrichConcurrency)
	for i := range rows {
		i := i
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			out[i] = s.enrich(gctx, rows[i])
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("enriching interactions: %w", err)
	}
	return out, nil
}

// enrich never fails: lookup errors degrade to empty children.
func (s *Service) enrich(ctx context.Context, row evidence.Row) EnrichedRecord {
	rec := interaction.FromRow(row)
	clean, legacy, hasLegacy := interaction.SplitLegacyFeedback(rec.Reasoning)
	rec.Reasoning = clean

	out := EnrichedRecord{
		Record:         rec,
		ToolExecutions: []interaction.ToolExecution{},
		Intent:         s.taggers.Intent.Classify(rec.UserMessage),
		ReasoningChain: SplitReasoning(clean),
	}

	toolRows, err := s.store.ListToolExecutions(ctx, row.ID)
	if err != nil {
		log.Warn().Err(err).Str("interaction_id", row.ID).Msg("tool_executions_unreadable")
	}
	for _, tr := range toolRows {
		out.ToolExecutions = append(out.ToolExecutions, interaction.ToolFromRow(tr))
	}

	fbRow, err := s.store.GetFeedback(ctx, row.ID)
	switch {
	case err == nil:
		fb := interaction.FeedbackFromRow(*fbRow)
		out.Feedback = &fb
	case hasLegacy:
		out.Feedback = &legacy
	case !errors.Is(err, evidence.ErrNotFound):
		log.Warn().Err(err).Str("interaction_id", row.ID).Msg("feedback_unreadable")
	}
	return out
}

// SubmitFeedback validates fb and attaches it to the interaction, replacing
// any earlier feedback.
func (s *Service) SubmitFeedback(ctx context.Context, id string, fb interaction.Feedback) error {
	ctx, span := tracer.Start(ctx, "analytics.submit_feedback",
		trace.WithAttributes(kotel.InteractionID.String(id)))
	defer span.End()

	if err := fb.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidFeedback, err)
	}
	if fb.Timestamp.IsZero() {
		fb.Timestamp = s.now()
	}
	if err := s.store.SaveFeedback(ctx, fb.ToRow(id)); err != nil {
		return fmt.Errorf("saving feedback: %w", err)
	}
	log.Info().Str("interaction_id", id).Int("rating", fb.Rating).Msg("feedback_submitted")
	return nil
}
