package analytics

import (
	"regexp"
	"strings"
)

// stepMarker matches ordinal and sequencing markers that start a reasoning
// step: "1. ", "Step 2:", "First,", "Then," and similar.
var stepMarker = regexp.MustCompile(`(?i)(?:^|\s)(?:\d+\.\s|step\s+\d+:|(?:first|second|third|then|next|finally),)`)

// SplitReasoning splits a reasoning trace into steps at sequencing markers.
// Text without markers is a single step; empty text has none.
func SplitReasoning(text string) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	locs := stepMarker.FindAllStringIndex(text, -1)
	if len(locs) == 0 {
		return []string{text}
	}

	var steps []string
	add := func(s string) {
		if s = strings.TrimSpace(s); s != "" {
			steps = append(steps, s)
		}
	}
	add(text[:locs[0][0]])
	for i, loc := range locs {
		end := len(text)
		if i+1 < len(locs) {
			end = locs[i+1][0]
		}
		add(text[loc[0]:end])
	}
	return steps
}
