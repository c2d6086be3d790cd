package evidence

import (
	"errors"
	"time"
)

// ErrNotFound is returned when a record, feedback entry or setting does not exist.
var ErrNotFound = errors.New("not found")

// Row is the flat storage shape of one interaction. Rich types live in
// package interaction; nothing nested crosses this boundary except
// pre-serialized JSON strings.
type Row struct {
	ID                string    `json:"id"`
	Timestamp         time.Time `json:"timestamp"`
	SessionID         string    `json:"session_id"`
	Backend           string    `json:"backend"`
	ModelInfo         string    `json:"model_info"`
	UserMessage       string    `json:"user_message"`
	AIResponse        string    `json:"ai_response"`
	SystemPrompt      string    `json:"system_prompt"`
	ContextSnapshot   string    `json:"context_snapshot"`
	Reasoning         string    `json:"reasoning"`
	ResponseTimeMs    int64     `json:"response_time_ms"`
	TokenCount        int       `json:"token_count"`
	Error             string    `json:"error"`
	ContainsSensitive bool      `json:"contains_sensitive"`
	Classification    string    `json:"classification"`
	Signature         string    `json:"signature"`
}

// RowPatch is a partial update of a stored Row. ID and Timestamp are immutable.
type RowPatch struct {
	AIResponse        *string `json:"ai_response,omitempty"`
	Reasoning         *string `json:"reasoning,omitempty"`
	Error             *string `json:"error,omitempty"`
	ResponseTimeMs    *int64  `json:"response_time_ms,omitempty"`
	TokenCount        *int    `json:"token_count,omitempty"`
	ContainsSensitive *bool   `json:"contains_sensitive,omitempty"`
	Classification    *string `json:"classification,omitempty"`
}

// ToolRow is the flat storage shape of one tool execution.
type ToolRow struct {
	ID                string    `json:"id"`
	InteractionID     string    `json:"interaction_id"`
	ToolName          string    `json:"tool_name"`
	Arguments         string    `json:"arguments"`
	Result            string    `json:"result"`
	ExecutionTimeMs   int64     `json:"execution_time_ms"`
	Success           bool      `json:"success"`
	Error             string    `json:"error"`
	ImpactLevel       string    `json:"impact_level"`
	ResourcesAccessed string    `json:"resources_accessed"`
	UserConfirmed     bool      `json:"user_confirmed"`
	Reasoning         string    `json:"reasoning"`
	Timestamp         time.Time `json:"timestamp"`
}

// FeedbackRow is the flat storage shape of the feedback attached to one
// interaction. Categories is a JSON object of category → rating.
type FeedbackRow struct {
	InteractionID string    `json:"interaction_id"`
	Rating        int       `json:"rating"`
	Comment       string    `json:"comment"`
	Categories    string    `json:"categories"`
	Timestamp     time.Time `json:"timestamp"`
}

// Filter is the shared query vocabulary for storage, analytics, search and
// export. Zero values mean "no constraint".
type Filter struct {
	StartDate    time.Time `json:"start_date,omitempty"`
	EndDate      time.Time `json:"end_date,omitempty"`
	Backend      string    `json:"backend,omitempty"`
	HasErrors    *bool     `json:"has_errors,omitempty"`
	HasToolCalls *bool     `json:"has_tool_calls,omitempty"`
	SearchText   string    `json:"search_text,omitempty"`
	Limit        int       `json:"limit,omitempty"`
	Offset       int       `json:"offset,omitempty"`
}

// Stats summarizes the stored record set.
type Stats struct {
	Count             int            `json:"count"`
	TotalSizeBytes    int64          `json:"total_size_bytes"`
	Oldest            *time.Time     `json:"oldest,omitempty"`
	Newest            *time.Time     `json:"newest,omitempty"`
	ByBackend         map[string]int `json:"by_backend"`
	AvgResponseTimeMs float64        `json:"avg_response_time_ms"`
}
