package classifier

import (
	"fmt"
	"os"
	"regexp"

	"gopkg.in/yaml.v3"
)

// RecognizerFile is the top-level YAML structure for a recognizer config file.
type RecognizerFile struct {
	Recognizers []RecognizerConfig `yaml:"recognizers"`
	Keywords    *KeywordConfig     `yaml:"keywords,omitempty"`
}

// RecognizerConfig mirrors Presidio's YAML recognizer schema with local extensions.
type RecognizerConfig struct {
	Name            string          `yaml:"name" json:"name"`
	SupportedEntity string          `yaml:"supported_entity" json:"supported_entity"`
	Enabled         *bool           `yaml:"enabled,omitempty" json:"enabled,omitempty"`
	Patterns        []PatternConfig `yaml:"patterns,omitempty" json:"patterns,omitempty"`
	// Placeholder overrides the default "[<ENTITY>_REDACTED]" token.
	Placeholder string `yaml:"placeholder,omitempty" json:"placeholder,omitempty"`
	// Validate names a post-match check; only "luhn" is supported.
	Validate string `yaml:"validate,omitempty" json:"validate,omitempty"`
}

// PatternConfig is a single regex pattern within a recognizer.
type PatternConfig struct {
	Name  string  `yaml:"name" json:"name"`
	Regex string  `yaml:"regex" json:"regex"`
	Score float64 `yaml:"score" json:"score"`
}

// KeywordConfig holds the word lists used for tier scoring and for the
// low-confidence secondary pass.
type KeywordConfig struct {
	Confidential []string `yaml:"confidential,omitempty"`
	Internal     []string `yaml:"internal,omitempty"`
	Public       []string `yaml:"public,omitempty"`
	Sensitive    []string `yaml:"sensitive,omitempty"`
}

func (r *RecognizerConfig) isEnabled() bool {
	if r.Enabled == nil {
		return true
	}
	return *r.Enabled
}

// ParseRecognizerFile parses recognizer YAML bytes into a RecognizerFile.
func ParseRecognizerFile(data []byte) (*RecognizerFile, error) {
	var rf RecognizerFile
	if err := yaml.Unmarshal(data, &rf); err != nil {
		return nil, fmt.Errorf("parsing recognizer YAML: %w", err)
	}
	return &rf, nil
}

// LoadRecognizerFile reads and parses a recognizer YAML file from disk.
// Returns nil (not an error) if the file does not exist, so callers can
// treat a missing pattern file as a no-op.
func LoadRecognizerFile(path string) (*RecognizerFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading recognizer file %s: %w", path, err)
	}
	return ParseRecognizerFile(data)
}

// MergeRecognizers layers recognizer lists: later layers override earlier
// ones by Name and keep the earlier position, new names are appended. The
// resulting order is the evaluation order.
func MergeRecognizers(layers ...[]*RecognizerConfig) []RecognizerConfig {
	index := make(map[string]int)
	var merged []RecognizerConfig

	for _, layer := range layers {
		for _, rc := range layer {
			if rc == nil {
				continue
			}
			if idx, exists := index[rc.Name]; exists {
				merged[idx] = *rc
			} else {
				index[rc.Name] = len(merged)
				merged = append(merged, *rc)
			}
		}
	}

	return merged
}

func toPtrSlice(configs []RecognizerConfig) []*RecognizerConfig {
	ptrs := make([]*RecognizerConfig, len(configs))
	for i := range configs {
		ptrs[i] = &configs[i]
	}
	return ptrs
}

// CompilePatterns converts recognizer configs into the ordered runtime
// pattern list. Disabled recognizers are skipped. Each regex produces one
// Pattern entry, keeping the recognizer's position.
func CompilePatterns(recognizers []RecognizerConfig) ([]Pattern, error) {
	var patterns []Pattern

	for _, rec := range recognizers {
		if !rec.isEnabled() {
			continue
		}
		if rec.Validate != "" && rec.Validate != "luhn" {
			return nil, fmt.Errorf("recognizer %q: unsupported validation %q", rec.Name, rec.Validate)
		}
		placeholder := rec.Placeholder
		if placeholder == "" {
			placeholder = "[" + rec.SupportedEntity + "_REDACTED]"
		}
		for _, p := range rec.Patterns {
			compiled, err := regexp.Compile(p.Regex)
			if err != nil {
				return nil, fmt.Errorf("compiling pattern %q in recognizer %q: %w", p.Name, rec.Name, err)
			}
			patterns = append(patterns, Pattern{
				Recognizer:   rec.Name,
				Type:         toLowerSnake(rec.SupportedEntity),
				Regex:        compiled,
				Score:        p.Score,
				Placeholder:  placeholder,
				ValidateLuhn: rec.Validate == "luhn",
			})
		}
	}

	return patterns, nil
}

// FilterByEntities applies enabled/disabled entity filters to a recognizer list.
// If enabledEntities is non-empty, only recognizers with a matching
// supported_entity are kept. Then anything in disabledEntities is removed.
func FilterByEntities(recognizers []RecognizerConfig, enabledEntities, disabledEntities []string) []RecognizerConfig {
	result := recognizers

	if len(enabledEntities) > 0 {
		allowed := make(map[string]bool, len(enabledEntities))
		for _, e := range enabledEntities {
			allowed[e] = true
		}
		var filtered []RecognizerConfig
		for _, r := range result {
			if allowed[r.SupportedEntity] {
				filtered = append(filtered, r)
			}
		}
		result = filtered
	}

	if len(disabledEntities) > 0 {
		blocked := make(map[string]bool, len(disabledEntities))
		for _, e := range disabledEntities {
			blocked[e] = true
		}
		var filtered []RecognizerConfig
		for _, r := range result {
			if !blocked[r.SupportedEntity] {
				filtered = append(filtered, r)
			}
		}
		result = filtered
	}

	return result
}

// mergeKeywords replaces each non-empty list of base with the override's.
func mergeKeywords(base KeywordConfig, override *KeywordConfig) KeywordConfig {
	if override == nil {
		return base
	}
	if len(override.Confidential) > 0 {
		base.Confidential = override.Confidential
	}
	if len(override.Internal) > 0 {
		base.Internal = override.Internal
	}
	if len(override.Public) > 0 {
		base.Public = override.Public
	}
	if len(override.Sensitive) > 0 {
		base.Sensitive = override.Sensitive
	}
	return base
}

// toLowerSnake converts SCREAMING_SNAKE_CASE to lower_snake_case.
func toLowerSnake(s string) string {
	result := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c >= 'A' && c <= 'Z' {
			result = append(result, c+'a'-'A')
		} else {
			result = append(result, c)
		}
	}
	return string(result)
}
