package capture

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"strings"

	"github.com/vietanhdev/kirapilot-app-sub002/internal/classifier"
	"github.com/vietanhdev/kirapilot-app-sub002/internal/config"
)

// toolScan classifies every string inside a tool call and applies the
// verbosity rule to each one. Structure is preserved, so JSON stays JSON.
type toolScan struct {
	ctx       context.Context
	scanner   *classifier.Scanner
	verbosity config.Verbosity

	tier      classifier.Tier
	sensitive bool
	changed   bool
}

func newToolScan(ctx context.Context, s *classifier.Scanner, v config.Verbosity) *toolScan {
	return &toolScan{ctx: ctx, scanner: s, verbosity: v, tier: classifier.TierPublic}
}

func (s *toolScan) text(v string) string {
	if v == "" {
		return v
	}
	a := s.scanner.Analyze(s.ctx, v)
	s.tier = classifier.MaxTier(s.tier, a.Tier)
	s.sensitive = s.sensitive || a.Sensitive
	out := applyVerbosity(v, a, s.verbosity)
	if out != v {
		s.changed = true
	}
	return out
}

func (s *toolScan) value(v any) any {
	switch t := v.(type) {
	case string:
		return s.text(t)
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, x := range t {
			out[k] = s.value(x)
		}
		return out
	case map[string]string:
		out := make(map[string]string, len(t))
		for k, x := range t {
			out[k] = s.text(x)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, x := range t {
			out[i] = s.value(x)
		}
		return out
	case []string:
		out := make([]string, len(t))
		for i, x := range t {
			out[i] = s.text(x)
		}
		return out
	default:
		return v
	}
}

func (s *toolScan) args(args map[string]any) map[string]any {
	if args == nil {
		return nil
	}
	return s.value(args).(map[string]any)
}

// result scans a tool result. A single JSON document is walked value by
// value and re-encoded only when something was redacted; anything else is
// scanned as plain text.
func (s *toolScan) result(raw string) string {
	if strings.TrimSpace(raw) == "" {
		return raw
	}
	dec := json.NewDecoder(strings.NewReader(raw))
	dec.UseNumber()
	var parsed any
	if err := dec.Decode(&parsed); err != nil {
		return s.text(raw)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return s.text(raw)
	}

	before := s.changed
	s.changed = false
	scrubbed := s.value(parsed)
	changed := s.changed
	s.changed = before || changed
	if !changed {
		return raw
	}
	b, err := json.Marshal(scrubbed)
	if err != nil {
		return s.text(raw)
	}
	return string(b)
}
