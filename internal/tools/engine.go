package tools

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	kotel "github.com/vietanhdev/kirapilot-app-sub002/internal/otel"
)

var tracer = kotel.Tracer("github.com/vietanhdev/kirapilot-app-sub002/internal/tools")

var (
	// ErrUnknownTool is set on results for tool names outside the catalog
	// or without a registered handler.
	ErrUnknownTool = errors.New("unknown tool")
	// ErrPermissionDenied is set on results denied by the capability grant.
	ErrPermissionDenied = errors.New("insufficient permissions")
	// ErrConfirmationDenied is set when a required confirmation was refused,
	// failed or timed out.
	ErrConfirmationDenied = errors.New("confirmation denied")
)

// Validation is the outcome of Validate. Denial is an expected value, not
// an error.
type Validation struct {
	Allowed              bool         `json:"allowed"`
	Reason               string       `json:"reason,omitempty"`
	RequiresConfirmation bool         `json:"requires_confirmation"`
	Missing              []Capability `json:"missing,omitempty"`
}

// Confirmer asks the actor to approve a call. Run bounds the call with the
// grant's confirmation timeout through ctx.
type Confirmer interface {
	Confirm(ctx context.Context, name string, args map[string]any) (bool, error)
}

// ConfirmFunc adapts a function to Confirmer.
type ConfirmFunc func(ctx context.Context, name string, args map[string]any) (bool, error)

// Confirm implements Confirmer.
func (f ConfirmFunc) Confirm(ctx context.Context, name string, args map[string]any) (bool, error) {
	return f(ctx, name, args)
}

// Engine validates, runs and formats tool calls for one actor.
type Engine struct {
	grant      atomic.Pointer[Grant]
	registry   *Registry
	translator Translator
}

// Option configures an Engine.
type Option func(*Engine)

// WithRegistry sets the handlers Run dispatches to.
func WithRegistry(r *Registry) Option {
	return func(e *Engine) { e.registry = r }
}

// WithTranslator replaces the built-in English messages.
func WithTranslator(t Translator) Option {
	return func(e *Engine) { e.translator = t }
}

// NewEngine creates an engine for grant. A nil grant holds nothing.
func NewEngine(grant *Grant, opts ...Option) *Engine {
	e := &Engine{registry: NewRegistry(), translator: DefaultTranslator()}
	for _, o := range opts {
		o(e)
	}
	e.SetGrant(grant)
	return e
}

// SetGrant replaces the grant wholesale. Calls already past Validate keep
// the grant they were validated under.
func (e *Engine) SetGrant(g *Grant) {
	if g == nil {
		g = NewGrant(nil, nil, 0)
	}
	e.grant.Store(g)
}

// Grant returns the current grant.
func (e *Engine) Grant() *Grant { return e.grant.Load() }

// Registry returns the handler registry.
func (e *Engine) Registry() *Registry { return e.registry }

// HasPermission holds iff the tool is known and every capability it
// requires is granted, or the grant includes full_access.
func (e *Engine) HasPermission(name string) bool {
	spec, ok := Lookup(name)
	if !ok {
		return false
	}
	return len(e.grant.Load().missing(spec.Requires)) == 0
}

// RequiresConfirmation is false for auto-approved tools, otherwise the
// tool's static default. Unknown tools require confirmation.
func (e *Engine) RequiresConfirmation(name string) bool {
	return requiresConfirmation(e.grant.Load(), name)
}

func requiresConfirmation(g *Grant, name string) bool {
	if g.AutoApproves(name) {
		return false
	}
	spec, ok := Lookup(name)
	if !ok {
		return true
	}
	return spec.Confirm
}

// Validate is the single check callers run before executing a tool.
func (e *Engine) Validate(name string, args map[string]any) Validation {
	return e.validate(e.grant.Load(), name)
}

func (e *Engine) validate(g *Grant, name string) Validation {
	spec, ok := Lookup(name)
	if !ok {
		return Validation{Reason: e.translator.T(msgUnknownTool, name)}
	}
	if missing := g.missing(spec.Requires); len(missing) > 0 {
		names := make([]string, len(missing))
		for i, c := range missing {
			names[i] = string(c)
		}
		return Validation{
			Reason:  e.translator.T(msgInsufficient, strings.Join(names, ", ")),
			Missing: missing,
		}
	}
	v := Validation{Allowed: true, RequiresConfirmation: requiresConfirmation(g, name)}
	if v.RequiresConfirmation {
		v.Reason = e.translator.T(msgConfirmRequired, name)
	}
	return v
}

// Run validates the call, obtains confirmation when needed, executes the
// registered handler and formats its result. It never returns an error:
// denials and failures come back as a failed Result with Err set.
func (e *Engine) Run(ctx context.Context, name string, args map[string]any, confirmer Confirmer) Result {
	ctx, span := tracer.Start(ctx, "tools.run",
		trace.WithAttributes(attribute.String("tool.name", name)))
	defer span.End()

	g := e.grant.Load()
	attrs := metric.WithAttributes(attribute.String("tool", name))
	runsTotal.Add(ctx, 1, attrs)

	v := e.validate(g, name)
	if !v.Allowed {
		runsDenied.Add(ctx, 1, attrs)
		span.SetStatus(codes.Error, "denied")
		log.Info().Str("tool", name).Str("reason", v.Reason).Msg("tool_denied")
		err := ErrPermissionDenied
		if KindOf(name) == KindUnknown {
			err = ErrUnknownTool
		}
		return e.failure(name, v.Reason, 0, err)
	}

	confirmed := false
	if v.RequiresConfirmation {
		ok, err := e.confirm(ctx, g, name, args, confirmer)
		if !ok {
			runsDenied.Add(ctx, 1, attrs)
			span.SetStatus(codes.Error, "not confirmed")
			log.Info().Str("tool", name).Err(err).Msg("tool_not_confirmed")
			return e.failure(name, e.translator.T(msgConfirmDenied, name), 0, ErrConfirmationDenied)
		}
		confirmed = true
	}

	h, ok := e.registry.Get(name)
	if !ok {
		return e.failure(name, e.translator.T(msgNoHandler, name), 0, ErrUnknownTool)
	}

	start := time.Now()
	raw, err := h.Execute(ctx, args)
	elapsed := time.Since(start)
	runDuration.Record(ctx, elapsed.Milliseconds(), attrs)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		log.Warn().Err(err).Str("tool", name).Int64("duration_ms", elapsed.Milliseconds()).Msg("tool_failed")
		res := e.failure(name, e.translator.T(msgFailed, name, err.Error()), elapsed, err)
		res.Metadata.UserConfirmed = confirmed
		return res
	}

	res := e.FormatResult(name, raw, elapsed)
	res.Metadata.UserConfirmed = confirmed
	span.SetAttributes(attribute.Bool("tool.success", res.Success))
	return res
}

func (e *Engine) confirm(ctx context.Context, g *Grant, name string, args map[string]any, confirmer Confirmer) (bool, error) {
	if confirmer == nil {
		return false, fmt.Errorf("%w: no confirmer", ErrConfirmationDenied)
	}
	cctx, cancel := context.WithTimeout(ctx, g.ConfirmTimeout())
	defer cancel()

	type answer struct {
		ok  bool
		err error
	}
	ch := make(chan answer, 1)
	go func() {
		ok, err := confirmer.Confirm(cctx, name, args)
		ch <- answer{ok, err}
	}()

	select {
	case a := <-ch:
		return a.ok && a.err == nil, a.err
	case <-cctx.Done():
		return false, cctx.Err()
	}
}

func (e *Engine) failure(name, msg string, elapsed time.Duration, err error) Result {
	return Result{
		Success:     false,
		UserMessage: msg,
		Metadata: Metadata{
			ToolName:        name,
			Kind:            KindOf(name).String(),
			ExecutionTimeMs: elapsed.Milliseconds(),
		},
		Err: err,
	}
}
