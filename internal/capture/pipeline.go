// Package capture correlates an outgoing AI request with its eventual
// response, classifies both ends and persists the finished exchange.
//
// The pipeline never returns errors to the conversational flow. Storage
// failures are reported through the StatusFunc; unknown or evicted
// correlation IDs are ignored.
package capture

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/vietanhdev/kirapilot-app-sub002/internal/classifier"
	"github.com/vietanhdev/kirapilot-app-sub002/internal/config"
	"github.com/vietanhdev/kirapilot-app-sub002/internal/evidence"
	"github.com/vietanhdev/kirapilot-app-sub002/internal/heuristic"
	"github.com/vietanhdev/kirapilot-app-sub002/internal/interaction"
	kotel "github.com/vietanhdev/kirapilot-app-sub002/internal/otel"
	"github.com/vietanhdev/kirapilot-app-sub002/internal/tools"
)

var tracer = kotel.Tracer("github.com/vietanhdev/kirapilot-app-sub002/internal/capture")

// DefaultPendingTTL is how long a correlation may stay open before the next
// Open evicts it.
const DefaultPendingTTL = 10 * time.Minute

// Store is the part of the storage collaborator the pipeline writes to.
// *evidence.Store satisfies it.
type Store interface {
	Create(ctx context.Context, row *evidence.Row) (string, error)
	Exists(ctx context.Context, id string) (bool, error)
	CreateToolExecution(ctx context.Context, t *evidence.ToolRow) error
	Update(ctx context.Context, id string, p evidence.RowPatch) (*evidence.Row, error)
}

// Op names the write a Status reports on.
type Op string

const (
	OpStoreInteraction Op = "store_interaction"
	OpStoreTool        Op = "store_tool_execution"
)

// Status is the outcome of one storage write. Err is nil on success.
type Status struct {
	Op  Op
	ID  string
	Err error
}

// StatusFunc receives write outcomes. It runs on the caller's goroutine and
// must not block.
type StatusFunc func(Status)

// Input is what is known about a request when it is sent.
type Input struct {
	SessionID       string
	Backend         interaction.Backend
	SystemPrompt    string
	ContextSnapshot string
}

// Output is what is known once the response (or failure) arrives.
type Output struct {
	Response     string
	Reasoning    string
	InputTokens  int
	OutputTokens int
	Error        string
}

// ToolCall is one tool invocation triggered by a stored interaction.
type ToolCall struct {
	InteractionID string
	ToolName      string
	Arguments     map[string]any
	Result        string
	Duration      time.Duration
	Success       bool
	Error         string
	Reasoning     string
	UserConfirmed bool
}

type pending struct {
	record    interaction.Record
	tier      classifier.Tier
	sensitive bool
	started   time.Time
}

// Pipeline owns the in-memory correlation map of one running instance.
type Pipeline struct {
	store     Store
	scanner   *classifier.Scanner
	intent    heuristic.Tagger
	retention atomic.Pointer[config.Retention]
	status    StatusFunc
	ttl       time.Duration
	now       func() time.Time

	mu      sync.Mutex
	pending map[string]*pending
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithStatus sets the callback for storage outcomes.
func WithStatus(fn StatusFunc) Option {
	return func(p *Pipeline) { p.status = fn }
}

// WithRetention sets the initial retention config. Without it the pipeline
// starts from config.DefaultRetention.
func WithRetention(r config.Retention) Option {
	return func(p *Pipeline) { p.SetRetention(r) }
}

// WithPendingTTL overrides DefaultPendingTTL.
func WithPendingTTL(d time.Duration) Option {
	return func(p *Pipeline) { p.ttl = d }
}

// WithIntentTagger replaces the keyword intent tagger.
func WithIntentTagger(t heuristic.Tagger) Option {
	return func(p *Pipeline) { p.intent = t }
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) { p.now = now }
}

// NewPipeline creates a pipeline writing to store and classifying with
// scanner.
func NewPipeline(store Store, scanner *classifier.Scanner, opts ...Option) *Pipeline {
	p := &Pipeline{
		store:   store,
		scanner: scanner,
		intent:  heuristic.IntentTagger(),
		ttl:     DefaultPendingTTL,
		now:     time.Now,
		pending: make(map[string]*pending),
	}
	p.SetRetention(config.DefaultRetention())
	for _, o := range opts {
		o(p)
	}
	return p
}

// SetRetention swaps the retention config. In-flight correlations pick up
// the new values at their next Close.
func (p *Pipeline) SetRetention(r config.Retention) {
	p.retention.Store(&r)
}

// Retention returns the active retention config.
func (p *Pipeline) Retention() config.Retention {
	return *p.retention.Load()
}

// Pending returns how many correlations are open.
func (p *Pipeline) Pending() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.pending)
}

// Reset drops every open correlation. Later Close calls for them are no-ops.
func (p *Pipeline) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pending = make(map[string]*pending)
}

// Open starts a correlation for text and returns its ID. The ID is returned
// even when capture is disabled, so callers never branch on it.
func (p *Pipeline) Open(ctx context.Context, text string, in Input) string {
	ctx, span := tracer.Start(ctx, "capture.open")
	defer span.End()

	id := evidence.NewInteractionID()
	span.SetAttributes(kotel.InteractionID.String(id))

	cfg := p.Retention()
	if !cfg.Enabled {
		skippedTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("op", "open")))
		return id
	}

	a := p.scanner.Analyze(ctx, text)
	rec := interaction.Record{
		ID:        id,
		SessionID: in.SessionID,
		Backend:   in.Backend,
	}
	rec.UserMessage = applyVerbosity(text, a, cfg.Verbosity)
	if cfg.IncludeSystemPrompts && cfg.Verbosity != config.VerbosityMinimal && in.SystemPrompt != "" {
		rec.SystemPrompt = applyVerbosity(in.SystemPrompt, p.scanner.Analyze(ctx, in.SystemPrompt), cfg.Verbosity)
	}
	if cfg.Verbosity != config.VerbosityMinimal {
		rec.ContextSnapshot = in.ContextSnapshot
	}

	now := p.now()
	rec.Timestamp = now.UTC()

	p.mu.Lock()
	evicted := p.evictStaleLocked(now)
	p.pending[id] = &pending{record: rec, tier: a.Tier, sensitive: a.Sensitive, started: now}
	p.mu.Unlock()

	openedTotal.Add(ctx, 1)
	span.SetAttributes(
		attribute.String("capture.intent", string(p.intent.Classify(text))),
		kotel.InteractionTier.String(string(a.Tier)),
	)
	if evicted > 0 {
		log.Debug().Int("evicted", evicted).Msg("stale_correlations_evicted")
	}
	return id
}

// evictStaleLocked drops correlations older than the TTL. p.mu must be held.
func (p *Pipeline) evictStaleLocked(now time.Time) int {
	if p.ttl <= 0 {
		return 0
	}
	n := 0
	for id, e := range p.pending {
		if now.Sub(e.started) > p.ttl {
			delete(p.pending, id)
			n++
		}
	}
	return n
}

// Close completes the correlation id with out and persists the record. An
// unknown id is ignored and produces no status callback. The correlation is
// discarded whether or not the write succeeds.
func (p *Pipeline) Close(ctx context.Context, id string, out Output) {
	ctx, span := tracer.Start(ctx, "capture.close",
		trace.WithAttributes(kotel.InteractionID.String(id)))
	defer span.End()

	p.mu.Lock()
	e, ok := p.pending[id]
	delete(p.pending, id)
	p.mu.Unlock()
	if !ok {
		log.Debug().Str("interaction_id", id).Msg("close_without_open")
		return
	}

	cfg := p.Retention()
	if !cfg.Enabled {
		skippedTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("op", "close")))
		return
	}

	a := p.scanner.Analyze(ctx, out.Response)
	rec := e.record
	rec.Classification = classifier.MaxTier(e.tier, a.Tier)
	rec.ContainsSensitive = e.sensitive || a.Sensitive
	rec.AIResponse = applyVerbosity(out.Response, a, cfg.Verbosity)
	rec.Error = out.Error
	if cfg.Verbosity != config.VerbosityMinimal && out.Reasoning != "" {
		rec.Reasoning = applyVerbosity(out.Reasoning, p.scanner.Analyze(ctx, out.Reasoning), cfg.Verbosity)
	}

	elapsed := p.now().Sub(e.started)
	if elapsed < 0 {
		elapsed = 0
	}
	if cfg.IncludePerformanceMetrics {
		rec.ResponseTimeMs = elapsed.Milliseconds()
		rec.TokenCount = out.InputTokens + out.OutputTokens
	}

	span.SetAttributes(kotel.InteractionAttributes(id, rec.SessionID, string(rec.Classification), rec.ResponseTimeMs)...)
	span.SetAttributes(kotel.ModelAttributes(rec.Backend.Provider, rec.Backend.Name, rec.Backend.Temperature, rec.Backend.MaxTokens)...)
	span.SetAttributes(kotel.UsageAttributes(out.InputTokens, out.OutputTokens)...)

	storedID, err := p.store.Create(ctx, rec.ToRow())
	if err != nil {
		failedTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("op", string(OpStoreInteraction))))
		span.RecordError(err)
		span.SetStatus(codes.Error, "store failed")
		log.Warn().Err(err).Str("interaction_id", id).Func(kotel.LogTraceFields(ctx)).Msg("interaction_store_failed")
		p.report(Status{Op: OpStoreInteraction, ID: id, Err: err})
		return
	}

	storedTotal.Add(ctx, 1)
	responseTime.Record(ctx, elapsed.Milliseconds(),
		metric.WithAttributes(attribute.String("backend", rec.Backend.Name)))
	log.Info().
		Str("interaction_id", storedID).
		Str("classification", string(rec.Classification)).
		Bool("sensitive", rec.ContainsSensitive).
		Int64("response_time_ms", rec.ResponseTimeMs).
		Func(kotel.LogTraceFields(ctx)).
		Msg("interaction_stored")
	p.report(Status{Op: OpStoreInteraction, ID: storedID})
}

// LogToolExecution persists a tool call as a child of an already stored
// interaction. It is skipped when tool executions are excluded by retention
// or the parent is not stored.
func (p *Pipeline) LogToolExecution(ctx context.Context, call ToolCall) {
	ctx, span := tracer.Start(ctx, "capture.tool_execution",
		trace.WithAttributes(
			kotel.InteractionID.String(call.InteractionID),
			kotel.ToolName.String(call.ToolName),
			kotel.ToolSuccess.Bool(call.Success),
		))
	defer span.End()

	cfg := p.Retention()
	if !cfg.Enabled || !cfg.IncludeToolExecutions {
		skippedTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("op", "tool_execution")))
		return
	}

	exists, err := p.store.Exists(ctx, call.InteractionID)
	if err != nil {
		failedTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("op", string(OpStoreTool))))
		log.Warn().Err(err).Str("interaction_id", call.InteractionID).Msg("tool_parent_lookup_failed")
		p.report(Status{Op: OpStoreTool, ID: call.InteractionID, Err: err})
		return
	}
	if !exists {
		log.Debug().Str("interaction_id", call.InteractionID).Str("tool", call.ToolName).Msg("tool_execution_without_parent")
		return
	}

	scan := newToolScan(ctx, p.scanner, cfg.Verbosity)
	args := scan.args(call.Arguments)
	te := interaction.ToolExecution{
		InteractionID:     call.InteractionID,
		ToolName:          call.ToolName,
		Arguments:         args,
		Result:            scan.result(call.Result),
		ExecutionTimeMs:   call.Duration.Milliseconds(),
		Success:           call.Success,
		Error:             scan.text(call.Error),
		ImpactLevel:       tools.DeriveImpact(call.ToolName),
		ResourcesAccessed: tools.DeriveResources(args),
		UserConfirmed:     call.UserConfirmed,
		Reasoning:         scan.text(call.Reasoning),
		Timestamp:         p.now().UTC(),
	}
	row := te.ToRow()
	if err := p.store.CreateToolExecution(ctx, row); err != nil {
		failedTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("op", string(OpStoreTool))))
		span.RecordError(err)
		span.SetStatus(codes.Error, "store failed")
		log.Warn().Err(err).Str("interaction_id", call.InteractionID).Str("tool", call.ToolName).Msg("tool_execution_store_failed")
		p.report(Status{Op: OpStoreTool, ID: call.InteractionID, Err: err})
		return
	}

	p.escalateParent(ctx, call.InteractionID, scan.tier, scan.sensitive)

	toolExecutions.Add(ctx, 1, metric.WithAttributes(attribute.String("tool", call.ToolName)))
	log.Info().
		Str("interaction_id", call.InteractionID).
		Str("tool_execution_id", row.ID).
		Str("tool", call.ToolName).
		Bool("success", call.Success).
		Msg("tool_execution_stored")
	p.report(Status{Op: OpStoreTool, ID: row.ID})
}

// escalateParent raises the stored interaction to the tier found in its
// tool calls. Stored tiers only move up.
func (p *Pipeline) escalateParent(ctx context.Context, id string, tier classifier.Tier, sensitive bool) {
	if tier == classifier.TierPublic && !sensitive {
		return
	}
	t := string(tier)
	if _, err := p.store.Update(ctx, id, evidence.RowPatch{Classification: &t, ContainsSensitive: &sensitive}); err != nil {
		log.Warn().Err(err).Str("interaction_id", id).Str("tier", t).Msg("tool_tier_escalation_failed")
		return
	}
	log.Debug().Str("interaction_id", id).Str("tier", t).Bool("sensitive", sensitive).Msg("interaction_tier_escalated")
}

func (p *Pipeline) report(s Status) {
	if p.status != nil {
		p.status(s)
	}
}

// applyVerbosity returns the text to persist: minimal always redacts,
// standard redacts confidential text, detailed keeps it as given.
func applyVerbosity(text string, a *classifier.Analysis, v config.Verbosity) string {
	switch v {
	case config.VerbosityMinimal:
		return classifier.RedactWith(text, a)
	case config.VerbosityDetailed:
		return text
	default:
		if a.Tier == classifier.TierConfidential {
			return classifier.RedactWith(text, a)
		}
		return text
	}
}
