// Package classifier detects sensitive substrings in free text, assigns a
// classification tier and produces redacted or anonymized variants.
//
// Detection is best-effort and pattern based. Malformed input never fails:
// it degrades to "no match".
package classifier

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"go.opentelemetry.io/otel/attribute"

	kotel "github.com/vietanhdev/kirapilot-app-sub002/internal/otel"
)

var tracer = kotel.Tracer("github.com/vietanhdev/kirapilot-app-sub002/internal/classifier")

const (
	// HighConfidence is the threshold above which a pattern match suppresses
	// the secondary keyword pass.
	HighConfidence = 0.7

	// ConfidentialConfidence is the threshold above which a single match
	// forces the confidential tier.
	ConfidentialConfidence = 0.8

	// KeywordConfidence is the confidence assigned to secondary keyword hits.
	KeywordConfidence = 0.4

	// KeywordType is the Match.Type of secondary keyword hits. Keyword hits
	// count toward tiering but are never redacted.
	KeywordType = "keyword"

	// confidentialKeywordThreshold is how many confidential keywords force
	// the confidential tier on their own.
	confidentialKeywordThreshold = 3
)

// Match is one detected sensitive span.
type Match struct {
	Type       string  `json:"type"`
	Recognizer string  `json:"recognizer"`
	Value      string  `json:"value"`
	Start      int     `json:"start"`
	End        int     `json:"end"`
	Confidence float64 `json:"confidence"`

	placeholder string
}

// IsKeyword reports whether m came from the secondary keyword pass.
func (m Match) IsKeyword() bool { return m.Type == KeywordType }

// Analysis is the result of analyzing one string. It is built once and
// not mutated afterwards.
type Analysis struct {
	Sensitive  bool    `json:"sensitive"`
	Tier       Tier    `json:"tier"`
	Matches    []Match `json:"matches"`
	Confidence float64 `json:"confidence"`
}

// Types returns the distinct match types in order of first appearance.
func (a *Analysis) Types() []string {
	seen := make(map[string]bool, len(a.Matches))
	var out []string
	for _, m := range a.Matches {
		if !seen[m.Type] {
			seen[m.Type] = true
			out = append(out, m.Type)
		}
	}
	return out
}

// Scanner runs the ordered recognizers and the keyword scorers.
type Scanner struct {
	patterns     []Pattern
	confidential *keywordSet
	internal     *keywordSet
	public       *keywordSet
	sensitive    *keywordSet
}

// ScannerOption configures a Scanner via the functional options pattern.
type ScannerOption func(*scannerConfig)

type scannerConfig struct {
	patternFile       string
	enabledEntities   []string
	disabledEntities  []string
	customRecognizers []RecognizerConfig
	keywords          *KeywordConfig
}

// WithPatternFile loads additional recognizers and keyword overrides from a
// YAML file. A missing file is silently skipped.
func WithPatternFile(path string) ScannerOption {
	return func(c *scannerConfig) { c.patternFile = path }
}

// WithEnabledEntities keeps only recognizers for the given entities.
func WithEnabledEntities(entities []string) ScannerOption {
	return func(c *scannerConfig) { c.enabledEntities = entities }
}

// WithDisabledEntities drops recognizers for the given entities.
func WithDisabledEntities(entities []string) ScannerOption {
	return func(c *scannerConfig) { c.disabledEntities = entities }
}

// WithCustomRecognizers adds recognizers after the defaults and pattern file.
func WithCustomRecognizers(recognizers []RecognizerConfig) ScannerOption {
	return func(c *scannerConfig) { c.customRecognizers = recognizers }
}

// WithKeywords overrides keyword lists (non-empty lists only).
func WithKeywords(k KeywordConfig) ScannerOption {
	return func(c *scannerConfig) { c.keywords = &k }
}

// NewScanner creates a scanner from the embedded defaults, layered with the
// optional pattern file and custom recognizers.
func NewScanner(opts ...ScannerOption) (*Scanner, error) {
	var cfg scannerConfig
	for _, o := range opts {
		o(&cfg)
	}

	defaults, err := DefaultRecognizerFile()
	if err != nil {
		return nil, err
	}
	keywords := mergeKeywords(KeywordConfig{}, defaults.Keywords)

	var fileRecs []*RecognizerConfig
	if cfg.patternFile != "" {
		rf, err := LoadRecognizerFile(cfg.patternFile)
		if err != nil {
			return nil, fmt.Errorf("loading pattern file: %w", err)
		}
		if rf != nil {
			fileRecs = toPtrSlice(rf.Recognizers)
			keywords = mergeKeywords(keywords, rf.Keywords)
		}
	}
	keywords = mergeKeywords(keywords, cfg.keywords)

	merged := MergeRecognizers(toPtrSlice(defaults.Recognizers), fileRecs, toPtrSlice(cfg.customRecognizers))
	merged = FilterByEntities(merged, cfg.enabledEntities, cfg.disabledEntities)

	compiled, err := CompilePatterns(merged)
	if err != nil {
		return nil, fmt.Errorf("compiling patterns: %w", err)
	}

	s := &Scanner{patterns: compiled}
	for _, kw := range []struct {
		dst   **keywordSet
		words []string
	}{
		{&s.confidential, keywords.Confidential},
		{&s.internal, keywords.Internal},
		{&s.public, keywords.Public},
		{&s.sensitive, keywords.Sensitive},
	} {
		set, err := newKeywordSet(kw.words)
		if err != nil {
			return nil, err
		}
		*kw.dst = set
	}
	return s, nil
}

// MustNewScanner is like NewScanner but panics on error. The embedded
// defaults are expected to always compile.
func MustNewScanner(opts ...ScannerOption) *Scanner {
	s, err := NewScanner(opts...)
	if err != nil {
		panic(fmt.Sprintf("classifier.NewScanner: %v", err))
	}
	return s
}

// Analyze detects sensitive spans in text and assigns a tier.
func (s *Scanner) Analyze(ctx context.Context, text string) *Analysis {
	_, span := tracer.Start(ctx, "classifier.analyze")
	defer span.End()

	result := &Analysis{Tier: TierPublic, Matches: []Match{}}
	if text == "" {
		return result
	}

	overlapping := func(start, end int) []int {
		var hits []int
		for i, m := range result.Matches {
			if start < m.End && m.Start < end {
				hits = append(hits, i)
			}
		}
		return hits
	}
	// A longer span wins over the matches it wholly covers when its
	// confidence is at least theirs, e.g. a connection string over the
	// user@host part an email matcher claimed first.
	supersedes := func(start, end int, score float64, hits []int) bool {
		for _, i := range hits {
			m := result.Matches[i]
			if m.Start < start || m.End > end || m.Confidence > score || m.End-m.Start == end-start {
				return false
			}
		}
		return true
	}

	highConfidence := false
	for _, p := range s.patterns {
		for _, loc := range p.Regex.FindAllStringIndex(text, -1) {
			value := text[loc[0]:loc[1]]
			if p.ValidateLuhn && !luhnValid(stripNonDigits(value)) {
				continue
			}
			if hits := overlapping(loc[0], loc[1]); len(hits) > 0 {
				if !supersedes(loc[0], loc[1], p.Score, hits) {
					continue
				}
				result.Matches = dropMatches(result.Matches, hits)
			}
			result.Matches = append(result.Matches, Match{
				Type:        p.Type,
				Recognizer:  p.Recognizer,
				Value:       value,
				Start:       loc[0],
				End:         loc[1],
				Confidence:  p.Score,
				placeholder: p.Placeholder,
			})
			if p.Score > HighConfidence {
				highConfidence = true
			}
		}
	}

	if !highConfidence {
		for _, loc := range s.sensitive.find(text) {
			if len(overlapping(loc[0], loc[1])) > 0 {
				continue
			}
			result.Matches = append(result.Matches, Match{
				Type:       KeywordType,
				Recognizer: "sensitive_keyword",
				Value:      text[loc[0]:loc[1]],
				Start:      loc[0],
				End:        loc[1],
				Confidence: KeywordConfidence,
			})
		}
	}

	sort.SliceStable(result.Matches, func(i, j int) bool {
		return result.Matches[i].Start < result.Matches[j].Start
	})

	result.Tier = s.determineTier(text, result.Matches)
	result.Confidence = aggregateConfidence(result.Matches, len(text))
	result.Sensitive = result.Tier == TierConfidential
	for _, m := range result.Matches {
		if !m.IsKeyword() {
			result.Sensitive = true
			break
		}
	}

	span.SetAttributes(
		attribute.Bool("privacy.sensitive", result.Sensitive),
		attribute.Int("privacy.match_count", len(result.Matches)),
		attribute.String("privacy.tier", string(result.Tier)),
	)
	return result
}

// dropMatches returns matches without the entries at the given indexes.
func dropMatches(matches []Match, drop []int) []Match {
	skip := make(map[int]bool, len(drop))
	for _, i := range drop {
		skip[i] = true
	}
	kept := make([]Match, 0, len(matches))
	for i, m := range matches {
		if !skip[i] {
			kept = append(kept, m)
		}
	}
	return kept
}

// Redact replaces every pattern match with its type placeholder, working
// from the end of the string so earlier offsets stay valid.
func (s *Scanner) Redact(ctx context.Context, text string) string {
	ctx, span := tracer.Start(ctx, "classifier.redact")
	defer span.End()

	return redactMatches(text, s.Analyze(ctx, text).Matches)
}

// RedactWith applies an existing analysis of text, avoiding a second scan.
func RedactWith(text string, a *Analysis) string {
	if a == nil {
		return text
	}
	return redactMatches(text, a.Matches)
}

func redactMatches(text string, matches []Match) string {
	if len(matches) == 0 {
		return text
	}
	out := text
	for i := len(matches) - 1; i >= 0; i-- {
		m := matches[i]
		if m.IsKeyword() || m.placeholder == "" {
			continue
		}
		if m.Start < 0 || m.End > len(out) || m.Start > m.End {
			continue
		}
		out = out[:m.Start] + m.placeholder + out[m.End:]
	}
	return out
}

// determineTier combines match confidence with keyword-frequency scoring:
// any match above ConfidentialConfidence or three confidential keywords make
// the text confidential; any match or an internal-keyword majority makes it
// internal; otherwise it is public.
func (s *Scanner) determineTier(text string, matches []Match) Tier {
	for _, m := range matches {
		if m.Confidence > ConfidentialConfidence {
			return TierConfidential
		}
	}
	if s.confidential.count(text) >= confidentialKeywordThreshold {
		return TierConfidential
	}
	if len(matches) > 0 {
		return TierInternal
	}
	if s.internal.count(text) > s.public.count(text) {
		return TierInternal
	}
	return TierPublic
}

// aggregateConfidence is 0.8 x mean match confidence plus 0.2 x match
// density (matches per 100 characters, capped at 1).
func aggregateConfidence(matches []Match, textLen int) float64 {
	if len(matches) == 0 || textLen == 0 {
		return 0
	}
	var sum float64
	for _, m := range matches {
		sum += m.Confidence
	}
	mean := sum / float64(len(matches))
	density := float64(len(matches)) * 100 / float64(textLen)
	if density > 1 {
		density = 1
	}
	return 0.8*mean + 0.2*density
}

// luhnValid checks whether a digit string passes the Luhn algorithm.
func luhnValid(number string) bool {
	n := len(number)
	if n < 2 {
		return false
	}
	sum := 0
	alt := false
	for i := n - 1; i >= 0; i-- {
		d := int(number[i] - '0')
		if d < 0 || d > 9 {
			return false
		}
		if alt {
			d *= 2
			if d > 9 {
				d -= 9
			}
		}
		sum += d
		alt = !alt
	}
	return sum%10 == 0
}

func stripNonDigits(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, ch := range s {
		if ch >= '0' && ch <= '9' {
			b.WriteRune(ch)
		}
	}
	return b.String()
}
