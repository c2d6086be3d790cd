package interaction

import (
	"encoding/json"
	"strings"
)

// LegacyFeedbackMarker precedes a JSON feedback object appended to the
// reasoning field by older writers, which had no feedback table.
const LegacyFeedbackMarker = "\n\n__USER_FEEDBACK__:"

// SplitLegacyFeedback extracts a feedback block appended to reasoning. It
// returns the reasoning without the block and ok=true on success; on any
// parse failure it returns the input unchanged and ok=false.
func SplitLegacyFeedback(reasoning string) (clean string, fb Feedback, ok bool) {
	idx := strings.LastIndex(reasoning, LegacyFeedbackMarker)
	if idx < 0 {
		return reasoning, Feedback{}, false
	}
	dec := json.NewDecoder(strings.NewReader(reasoning[idx+len(LegacyFeedbackMarker):]))
	if err := dec.Decode(&fb); err != nil {
		return reasoning, Feedback{}, false
	}
	if dec.More() {
		return reasoning, Feedback{}, false
	}
	if err := fb.Validate(); err != nil {
		return reasoning, Feedback{}, false
	}
	if fb.Categories == nil {
		fb.Categories = map[Category]int{}
	}
	return reasoning[:idx], fb, true
}

// AppendLegacyFeedback writes fb in the legacy format. Only tests and
// migration fixtures use it.
func AppendLegacyFeedback(reasoning string, fb Feedback) string {
	data, err := json.Marshal(fb)
	if err != nil {
		return reasoning
	}
	return reasoning + LegacyFeedbackMarker + string(data)
}
