package tools

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"
)

// Result is the user-facing rendering of one tool call.
type Result struct {
	Success     bool           `json:"success"`
	Data        map[string]any `json:"data,omitempty"`
	UserMessage string         `json:"user_message"`
	Metadata    Metadata       `json:"metadata"`
	Err         error          `json:"-"`
}

// Metadata describes the call a Result came from.
type Metadata struct {
	ToolName        string `json:"tool_name"`
	Kind            string `json:"kind"`
	ExecutionTimeMs int64  `json:"execution_time_ms"`
	UserConfirmed   bool   `json:"user_confirmed,omitempty"`
}

// taskPreviewLimit caps how many tasks a list message names.
const taskPreviewLimit = 3

// maxRecommendations caps the insight recommendations shown.
const maxRecommendations = 3

// FormatResult parses a raw tool result and renders its message. It never
// panics or fails: malformed input yields a failed Result with a generic
// invalid-response message. It does not mutate any state.
func (e *Engine) FormatResult(name, raw string, elapsed time.Duration) Result {
	kind := KindOf(name)
	res := Result{
		Metadata: Metadata{ToolName: name, Kind: kind.String(), ExecutionTimeMs: elapsed.Milliseconds()},
	}

	var data map[string]any
	if err := json.Unmarshal([]byte(raw), &data); err != nil || data == nil {
		res.UserMessage = e.translator.T(msgInvalidResponse, name)
		return res
	}
	res.Data = data

	if ok, present := data["success"].(bool); present && !ok {
		reason := stringField(data, "error", "message")
		if reason == "" {
			reason = "unknown error"
		}
		res.UserMessage = e.translator.T(msgFailed, name, reason)
		return res
	}

	res.Success = true
	res.UserMessage = e.render(kind, name, data)
	return res
}

func (e *Engine) render(kind Kind, name string, data map[string]any) string {
	switch kind {
	case KindGetTasks, KindSearchTasks:
		return e.renderTaskList(data)
	case KindCreateTask:
		return e.renderTask(data, msgTaskCreated, msgTaskCreatedPlain)
	case KindUpdateTask:
		return e.renderTask(data, msgTaskUpdated, msgTaskUpdatedPlain)
	case KindCompleteTask:
		return e.renderTask(data, msgTaskCompleted, msgTaskCompletePlain)
	case KindDeleteTask:
		return e.renderTask(data, msgTaskDeleted, msgTaskDeletedPlain)
	case KindBulkUpdateTasks:
		n := intField(data, "updated", "updated_count", "updatedCount")
		if n == 0 {
			n = len(listField(data, "tasks"))
		}
		return e.translator.T(msgTasksBulkUpdated, n)
	case KindStartTimer:
		if title := taskTitle(data); title != "" {
			return e.translator.T(msgTimerStartedTask, title)
		}
		return e.translator.T(msgTimerStarted)
	case KindStopTimer:
		return e.translator.T(msgTimerStopped, wholeMinutes(sessionDuration(data)))
	case KindTimeTrackingSummary:
		return e.renderTimeSummary(data)
	case KindProductivityInsights:
		return e.renderInsights(data)
	default:
		return e.translator.T(msgExecuted, name)
	}
}

func (e *Engine) renderTaskList(data map[string]any) string {
	tasks := listField(data, "tasks", "results")
	n := len(tasks)
	if n == 0 {
		return e.translator.T(msgTasksFound, 0)
	}
	var b strings.Builder
	b.WriteString(e.translator.T(msgTasksFound, n))
	for i, t := range tasks {
		if i == taskPreviewLimit {
			break
		}
		title := ""
		if m, ok := t.(map[string]any); ok {
			title = stringField(m, "title", "name")
		}
		if title == "" {
			title = e.translator.T(msgUntitledTask)
		}
		b.WriteString("\n• ")
		b.WriteString(title)
	}
	if n > taskPreviewLimit {
		b.WriteString("\n")
		b.WriteString(e.translator.T(msgTasksMore, n-taskPreviewLimit))
	}
	return b.String()
}

func (e *Engine) renderTask(data map[string]any, withTitle, plain string) string {
	if title := taskTitle(data); title != "" {
		return e.translator.T(withTitle, title)
	}
	return e.translator.T(plain)
}

func (e *Engine) renderTimeSummary(data map[string]any) string {
	summary := data
	if m, ok := data["summary"].(map[string]any); ok {
		summary = m
	}
	total := floatField(summary, "total_time", "totalTime", "total_time_ms")
	sessions := intField(summary, "session_count", "sessionCount", "sessions")
	return e.translator.T(msgTimeSummary, wholeMinutes(total), sessions)
}

type recommendation struct {
	text     string
	priority int
}

func priorityRank(p string) int {
	switch strings.ToLower(p) {
	case "high":
		return 0
	case "medium":
		return 1
	case "low":
		return 2
	default:
		return 3
	}
}

func (e *Engine) renderInsights(data map[string]any) string {
	insights := data
	if m, ok := data["insights"].(map[string]any); ok {
		insights = m
	}

	var lines []string
	if _, ok := insights["productivity_score"]; ok {
		lines = append(lines, e.translator.T(msgInsightsScore, intField(insights, "productivity_score")))
	} else if _, ok := insights["productivityScore"]; ok {
		lines = append(lines, e.translator.T(msgInsightsScore, intField(insights, "productivityScore")))
	}

	var recs []recommendation
	for _, item := range listField(insights, "recommendations") {
		switch r := item.(type) {
		case string:
			recs = append(recs, recommendation{text: r, priority: priorityRank("")})
		case map[string]any:
			text := stringField(r, "title", "text", "description")
			if text == "" {
				continue
			}
			recs = append(recs, recommendation{text: text, priority: priorityRank(stringField(r, "priority"))})
		}
	}
	sort.SliceStable(recs, func(i, j int) bool { return recs[i].priority < recs[j].priority })

	if len(recs) == 0 {
		lines = append(lines, e.translator.T(msgInsightsNone))
		return strings.Join(lines, "\n")
	}
	lines = append(lines, e.translator.T(msgInsightsTop))
	for i, r := range recs {
		if i == maxRecommendations {
			break
		}
		lines = append(lines, fmt.Sprintf("%d. %s", i+1, r.text))
	}
	return strings.Join(lines, "\n")
}

// sessionDuration returns the stopped session length in milliseconds.
func sessionDuration(data map[string]any) float64 {
	if m, ok := data["session"].(map[string]any); ok {
		return floatField(m, "duration", "duration_ms", "durationMs")
	}
	return floatField(data, "duration", "duration_ms", "durationMs")
}

func wholeMinutes(ms float64) int {
	if ms <= 0 {
		return 0
	}
	return int(ms / float64(time.Minute/time.Millisecond))
}

func taskTitle(data map[string]any) string {
	if m, ok := data["task"].(map[string]any); ok {
		return stringField(m, "title", "name")
	}
	return stringField(data, "title")
}

func stringField(m map[string]any, keys ...string) string {
	for _, k := range keys {
		if s, ok := m[k].(string); ok && s != "" {
			return s
		}
	}
	return ""
}

func floatField(m map[string]any, keys ...string) float64 {
	for _, k := range keys {
		if f, ok := m[k].(float64); ok {
			return f
		}
	}
	return 0
}

func intField(m map[string]any, keys ...string) int {
	return int(floatField(m, keys...))
}

func listField(m map[string]any, keys ...string) []any {
	for _, k := range keys {
		if l, ok := m[k].([]any); ok {
			return l
		}
	}
	return nil
}
