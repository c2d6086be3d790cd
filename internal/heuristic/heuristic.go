// Package heuristic derives coarse tags (intent, emotion, stress) from free
// text with fixed keyword tables. It is a lookup, not language understanding:
// callers depend on the Tagger interface so a better implementation can be
// swapped in.
package heuristic

import (
	"strings"
	"unicode"
)

// Tag is a derived label such as "create_task" or "frustrated".
type Tag string

// Intents.
const (
	IntentCreateTask   Tag = "create_task"
	IntentCompleteTask Tag = "complete_task"
	IntentDeleteTask   Tag = "delete_task"
	IntentUpdateTask   Tag = "update_task"
	IntentStopTimer    Tag = "stop_timer"
	IntentStartTimer   Tag = "start_timer"
	IntentListTasks    Tag = "list_tasks"
	IntentInsights     Tag = "get_insights"
	IntentGeneral      Tag = "general_interaction"
)

// Emotions.
const (
	EmotionFrustrated Tag = "frustrated"
	EmotionPositive   Tag = "positive"
	EmotionConfused   Tag = "confused"
	EmotionNeutral    Tag = "neutral"
)

// Stress levels.
const (
	StressHigh   Tag = "high"
	StressMedium Tag = "medium"
	StressLow    Tag = "low"
)

// Tagger maps text to a single Tag.
type Tagger interface {
	Classify(text string) Tag
}

// Rule assigns Tag when any keyword occurs in the text. Keywords may be
// multi-word phrases; they match on whole words only.
type Rule struct {
	Tag      Tag
	Keywords []string
}

// KeywordTagger checks its rules in order against lower-cased text; the first
// rule with a hit wins, otherwise Fallback is returned.
type KeywordTagger struct {
	rules    []Rule
	fallback Tag
}

// NewKeywordTagger returns a tagger over rules, evaluated in the given order.
func NewKeywordTagger(fallback Tag, rules ...Rule) *KeywordTagger {
	return &KeywordTagger{rules: rules, fallback: fallback}
}

// Classify implements Tagger.
func (k *KeywordTagger) Classify(text string) Tag {
	padded := normalize(text)
	if padded == "" {
		return k.fallback
	}
	for _, r := range k.rules {
		for _, kw := range r.Keywords {
			if strings.Contains(padded, " "+kw+" ") {
				return r.Tag
			}
		}
	}
	return k.fallback
}

// Count returns how many keyword occurrences of tag's rule appear in text.
// Used for trend scoring where one hit per record is too coarse.
func (k *KeywordTagger) Count(text string, tag Tag) int {
	padded := normalize(text)
	n := 0
	for _, r := range k.rules {
		if r.Tag != tag {
			continue
		}
		for _, kw := range r.Keywords {
			n += countWord(padded, " "+kw+" ")
		}
	}
	return n
}

// countWord counts occurrences of needle, letting adjacent hits share their
// separating space.
func countWord(padded, needle string) int {
	n := 0
	for i := 0; ; {
		j := strings.Index(padded[i:], needle)
		if j < 0 {
			return n
		}
		n++
		i += j + len(needle) - 1
	}
}

// normalize lower-cases text and reduces it to single-space separated words
// with a leading and trailing space, so " kw " matches whole words.
func normalize(text string) string {
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '\''
	})
	if len(words) == 0 {
		return ""
	}
	return " " + strings.Join(words, " ") + " "
}

// IntentTagger returns the task-manager intent table. Order matters:
// "create"/"add"/"new" is checked before everything else.
func IntentTagger() *KeywordTagger {
	return NewKeywordTagger(IntentGeneral,
		Rule{IntentCreateTask, []string{"create", "add", "new"}},
		Rule{IntentCompleteTask, []string{"complete", "finish", "done", "mark as done"}},
		Rule{IntentDeleteTask, []string{"delete", "remove"}},
		Rule{IntentUpdateTask, []string{"update", "edit", "change", "rename", "reschedule"}},
		Rule{IntentStopTimer, []string{"stop", "pause"}},
		Rule{IntentStartTimer, []string{"start", "begin", "timer", "track time"}},
		Rule{IntentListTasks, []string{"list", "show", "my tasks", "what tasks"}},
		Rule{IntentInsights, []string{"insights", "insight", "productivity", "analytics", "how am i doing"}},
	)
}

// EmotionTagger returns the emotion table.
func EmotionTagger() *KeywordTagger {
	return NewKeywordTagger(EmotionNeutral,
		Rule{EmotionFrustrated, []string{"frustrated", "frustrating", "annoyed", "annoying", "angry", "hate", "useless", "stuck", "ugh", "broken"}},
		Rule{EmotionPositive, []string{"thanks", "thank you", "great", "awesome", "love", "perfect", "excellent", "happy", "nice"}},
		Rule{EmotionConfused, []string{"confused", "confusing", "unclear", "don't understand", "don't get", "what do you mean"}},
	)
}

// StressTagger returns the stress table.
func StressTagger() *KeywordTagger {
	return NewKeywordTagger(StressLow,
		Rule{StressHigh, []string{"urgent", "asap", "overwhelmed", "stressed", "panic", "immediately", "emergency", "deadline today"}},
		Rule{StressMedium, []string{"busy", "deadline", "soon", "pressure", "behind", "worried", "tight"}},
	)
}

// Set bundles the three taggers the capture and analytics layers use.
type Set struct {
	Intent  Tagger
	Emotion Tagger
	Stress  Tagger
}

// DefaultSet returns the keyword-table taggers.
func DefaultSet() Set {
	return Set{Intent: IntentTagger(), Emotion: EmotionTagger(), Stress: StressTagger()}
}
