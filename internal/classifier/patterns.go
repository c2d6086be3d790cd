package classifier

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/vietanhdev/kirapilot-app-sub002/patterns"
)

// Pattern is a compiled, ready-to-use detection pattern.
type Pattern struct {
	Recognizer   string
	Type         string
	Regex        *regexp.Regexp
	Score        float64
	Placeholder  string
	ValidateLuhn bool
}

// DefaultRecognizerFile returns the built-in recognizers and keyword sets
// parsed from the embedded privacy.yaml.
func DefaultRecognizerFile() (*RecognizerFile, error) {
	rf, err := ParseRecognizerFile(patterns.PrivacyYAML())
	if err != nil {
		return nil, fmt.Errorf("parsing embedded privacy patterns: %w", err)
	}
	return rf, nil
}

// keywordSet matches whole words or phrases case-insensitively.
type keywordSet struct {
	re *regexp.Regexp
}

func newKeywordSet(words []string) (*keywordSet, error) {
	if len(words) == 0 {
		return &keywordSet{}, nil
	}
	quoted := make([]string, 0, len(words))
	for _, w := range words {
		w = strings.TrimSpace(w)
		if w == "" {
			continue
		}
		quoted = append(quoted, regexp.QuoteMeta(strings.ToLower(w)))
	}
	re, err := regexp.Compile(`(?i)\b(?:` + strings.Join(quoted, "|") + `)\b`)
	if err != nil {
		return nil, fmt.Errorf("compiling keyword set: %w", err)
	}
	return &keywordSet{re: re}, nil
}

func (k *keywordSet) count(text string) int {
	if k.re == nil {
		return 0
	}
	return len(k.re.FindAllStringIndex(text, -1))
}

func (k *keywordSet) find(text string) [][]int {
	if k.re == nil {
		return nil
	}
	return k.re.FindAllStringIndex(text, -1)
}
