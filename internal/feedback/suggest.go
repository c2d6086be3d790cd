package feedback

import (
	"sort"
	"strings"

	"github.com/vietanhdev/kirapilot-app-sub002/internal/heuristic"
	"github.com/vietanhdev/kirapilot-app-sub002/internal/interaction"
)

// Priority orders suggestions.
type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

func (p Priority) rank() int {
	switch p {
	case PriorityHigh:
		return 0
	case PriorityMedium:
		return 1
	default:
		return 2
	}
}

// Suggestion is one improvement idea. Area identifies what it is about;
// at most one suggestion per area survives ranking.
type Suggestion struct {
	Area     string   `json:"area"`
	Priority Priority `json:"priority"`
	Message  string   `json:"message"`
}

const (
	weakCategoryRating     = 3.0
	criticalCategoryRating = 2.5
	strongCategoryRating   = 4.0
	lowOverallRating       = 3.0
	lowSingleRating        = 2
	longResponseChars      = 1200
	maxSummarySuggestions  = 3
	// repeatedComplaint is how many comments must raise a topic before its
	// suggestion is promoted to medium.
	repeatedComplaint = 3
)

var categoryAdvice = map[interaction.Category]string{
	interaction.CategoryHelpfulness: "Focus answers on the task the user is working on",
	interaction.CategoryAccuracy:    "Double-check task and time data before answering",
	interaction.CategoryClarity:     "Use plainer wording and break answers into steps",
	interaction.CategorySpeed:       "Answer faster by trimming responses and tool calls",
	interaction.CategoryPersonality: "Use a warmer, more conversational tone",
}

var (
	declineSuggestion = Suggestion{
		Area:     "trend",
		Priority: PriorityHigh,
		Message:  "Ratings are declining; review recent changes to prompts or backends",
	}
	lowOverallSuggestion = Suggestion{
		Area:     "overall",
		Priority: PriorityHigh,
		Message:  "Overall satisfaction is low; review the lowest rated interactions",
	}
)

// Comment topics.
const (
	topicConciseness heuristic.Tag = "conciseness"
	topicDetail      heuristic.Tag = "detail"
	topicAccuracy    heuristic.Tag = "accuracy"
	topicSpeed       heuristic.Tag = "speed"
	topicClarity     heuristic.Tag = "clarity"
)

// speedPhrases complain about waiting. They are removed before the
// conciseness check so "took too long to answer" is not about length.
var speedPhrases = []string{"slow", "took forever", "took too long", "too long to"}

var commentTopics = heuristic.NewKeywordTagger("",
	heuristic.Rule{Tag: topicConciseness, Keywords: []string{"too long", "verbose", "wordy", "rambling", "shorter"}},
	heuristic.Rule{Tag: topicDetail, Keywords: []string{"too short", "more detail", "vague", "incomplete"}},
	heuristic.Rule{Tag: topicAccuracy, Keywords: []string{"wrong", "incorrect", "mistake", "inaccurate"}},
	heuristic.Rule{Tag: topicSpeed, Keywords: speedPhrases},
	heuristic.Rule{Tag: topicClarity, Keywords: []string{"confusing", "unclear", "hard to follow"}},
)

var topicOrder = []heuristic.Tag{topicConciseness, topicDetail, topicAccuracy, topicSpeed, topicClarity}

var topicAdvice = map[heuristic.Tag]string{
	topicConciseness: "Keep responses concise",
	topicDetail:      "Give more detail and concrete next steps",
	topicAccuracy:    "Verify facts before answering",
	topicSpeed:       "Reduce response latency",
	topicClarity:     "Structure answers so they are easy to follow",
}

// topicsIn lists the complaint topics a comment raises, in topicOrder.
func topicsIn(comment string) []heuristic.Tag {
	withoutWaits := strings.ToLower(comment)
	for _, p := range speedPhrases {
		withoutWaits = strings.ReplaceAll(withoutWaits, p, " ")
	}
	var out []heuristic.Tag
	for _, topic := range topicOrder {
		text := comment
		if topic == topicConciseness {
			text = withoutWaits
		}
		if commentTopics.Count(text, topic) > 0 {
			out = append(out, topic)
		}
	}
	return out
}

func categorySuggestions(cats map[interaction.Category]CategoryStats) []Suggestion {
	var out []Suggestion
	for _, c := range interaction.Categories {
		st, ok := cats[c]
		if !ok || st.Mean >= weakCategoryRating {
			continue
		}
		p := PriorityMedium
		if st.Mean < criticalCategoryRating {
			p = PriorityHigh
		}
		out = append(out, Suggestion{Area: string(c), Priority: p, Message: categoryAdvice[c]})
	}
	return out
}

// commentSuggestions scans free-text comments for recurring complaints.
func commentSuggestions(comments []string) []Suggestion {
	hits := map[heuristic.Tag]int{}
	for _, c := range comments {
		for _, topic := range topicsIn(c) {
			hits[topic]++
		}
	}
	var out []Suggestion
	for _, topic := range topicOrder {
		n := hits[topic]
		if n == 0 {
			continue
		}
		p := PriorityLow
		if n >= repeatedComplaint {
			p = PriorityMedium
		}
		out = append(out, Suggestion{Area: string(topic), Priority: p, Message: topicAdvice[topic]})
	}
	return out
}

func isLongResponse(text string) bool {
	return len(strings.TrimSpace(text)) > longResponseChars
}

// lengthSuggestion flags long answers that were rated poorly, promoted to
// medium once it happens repeatedly.
func lengthSuggestion(longLowRated int) (Suggestion, bool) {
	if longLowRated == 0 {
		return Suggestion{}, false
	}
	p := PriorityLow
	if longLowRated >= repeatedComplaint {
		p = PriorityMedium
	}
	return Suggestion{Area: string(topicConciseness), Priority: p, Message: topicAdvice[topicConciseness]}, true
}

// SuggestImprovements derives suggestions from one feedback entry and the
// response it rated.
func (s *Service) SuggestImprovements(fb interaction.Feedback, responseText string) []Suggestion {
	var sugs []Suggestion
	for _, c := range interaction.Categories {
		v, ok := fb.Categories[c]
		if !ok || v > lowSingleRating {
			continue
		}
		sugs = append(sugs, Suggestion{Area: string(c), Priority: PriorityHigh, Message: categoryAdvice[c]})
	}

	comment := fb.Comment
	if fb.Rating <= lowSingleRating && isLongResponse(responseText) {
		sugs = append(sugs, Suggestion{Area: string(topicConciseness), Priority: PriorityMedium, Message: topicAdvice[topicConciseness]})
	}
	for _, topic := range topicsIn(comment) {
		p := PriorityMedium
		if fb.Rating <= lowSingleRating {
			p = PriorityHigh
		}
		sugs = append(sugs, Suggestion{Area: string(topic), Priority: p, Message: topicAdvice[topic]})
	}
	return rank(sugs)
}

// rank keeps the highest priority suggestion per area and sorts high to
// low, keeping input order within a priority.
func rank(sugs []Suggestion) []Suggestion {
	best := map[string]int{}
	out := make([]Suggestion, 0, len(sugs))
	for _, s := range sugs {
		if i, ok := best[s.Area]; ok {
			if s.Priority.rank() < out[i].Priority.rank() {
				out[i] = s
			}
			continue
		}
		best[s.Area] = len(out)
		out = append(out, s)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Priority.rank() < out[j].Priority.rank() })
	return out
}
