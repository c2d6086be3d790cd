// Package interaction holds the rich in-memory shapes of captured AI
// exchanges and translates them to and from the flat storage rows.
// Malformed serialized fields degrade to empty values; they never fail a
// conversion.
package interaction

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/vietanhdev/kirapilot-app-sub002/internal/classifier"
	"github.com/vietanhdev/kirapilot-app-sub002/internal/evidence"
)

// Backend describes the AI backend that produced a response.
type Backend struct {
	Name           string   `json:"name"`
	Provider       string   `json:"provider,omitempty"`
	Version        string   `json:"version,omitempty"`
	CapabilityTags []string `json:"capability_tags,omitempty"`
	ContextWindow  int      `json:"context_window,omitempty"`
	Temperature    float64  `json:"temperature,omitempty"`
	MaxTokens      int      `json:"max_tokens,omitempty"`
}

// Record is one AI exchange.
type Record struct {
	ID                string          `json:"id"`
	Timestamp         time.Time       `json:"timestamp"`
	SessionID         string          `json:"session_id"`
	Backend           Backend         `json:"backend"`
	UserMessage       string          `json:"user_message"`
	AIResponse        string          `json:"ai_response"`
	SystemPrompt      string          `json:"system_prompt,omitempty"`
	ContextSnapshot   string          `json:"context_snapshot,omitempty"`
	Reasoning         string          `json:"reasoning,omitempty"`
	ResponseTimeMs    int64           `json:"response_time_ms"`
	TokenCount        int             `json:"token_count,omitempty"`
	Error             string          `json:"error,omitempty"`
	ContainsSensitive bool            `json:"contains_sensitive"`
	Classification    classifier.Tier `json:"classification"`
}

// HasError reports whether the exchange failed.
func (r *Record) HasError() bool { return r.Error != "" }

// ToRow flattens r into its storage shape.
func (r *Record) ToRow() *evidence.Row {
	info, err := json.Marshal(r.Backend)
	if err != nil {
		info = []byte("{}")
	}
	return &evidence.Row{
		ID:                r.ID,
		Timestamp:         r.Timestamp,
		SessionID:         r.SessionID,
		Backend:           r.Backend.Name,
		ModelInfo:         string(info),
		UserMessage:       r.UserMessage,
		AIResponse:        r.AIResponse,
		SystemPrompt:      r.SystemPrompt,
		ContextSnapshot:   r.ContextSnapshot,
		Reasoning:         r.Reasoning,
		ResponseTimeMs:    r.ResponseTimeMs,
		TokenCount:        r.TokenCount,
		Error:             r.Error,
		ContainsSensitive: r.ContainsSensitive,
		Classification:    string(r.Classification),
	}
}

// FromRow rebuilds a Record from its storage shape.
func FromRow(row evidence.Row) Record {
	var backend Backend
	if row.ModelInfo != "" {
		_ = json.Unmarshal([]byte(row.ModelInfo), &backend)
	}
	backend.Name = row.Backend
	return Record{
		ID:                row.ID,
		Timestamp:         row.Timestamp,
		SessionID:         row.SessionID,
		Backend:           backend,
		UserMessage:       row.UserMessage,
		AIResponse:        row.AIResponse,
		SystemPrompt:      row.SystemPrompt,
		ContextSnapshot:   row.ContextSnapshot,
		Reasoning:         row.Reasoning,
		ResponseTimeMs:    row.ResponseTimeMs,
		TokenCount:        row.TokenCount,
		Error:             row.Error,
		ContainsSensitive: row.ContainsSensitive,
		Classification:    classifier.ParseTier(row.Classification),
	}
}

// ImpactLevel is the advisory impact of a tool execution. It is derived
// from names, not authoritative, and never used for authorization.
type ImpactLevel string

const (
	ImpactLow    ImpactLevel = "low"
	ImpactMedium ImpactLevel = "medium"
	ImpactHigh   ImpactLevel = "high"
)

// ToolExecution is one tool invocation triggered by an interaction.
type ToolExecution struct {
	ID                string         `json:"id"`
	InteractionID     string         `json:"interaction_id"`
	ToolName          string         `json:"tool_name"`
	Arguments         map[string]any `json:"arguments"`
	Result            string         `json:"result"`
	ExecutionTimeMs   int64          `json:"execution_time_ms"`
	Success           bool           `json:"success"`
	Error             string         `json:"error,omitempty"`
	ImpactLevel       ImpactLevel    `json:"impact_level"`
	ResourcesAccessed []string       `json:"resources_accessed"`
	UserConfirmed     bool           `json:"user_confirmed"`
	Reasoning         string         `json:"reasoning,omitempty"`
	Timestamp         time.Time      `json:"timestamp"`
}

// ToRow flattens t into its storage shape.
func (t *ToolExecution) ToRow() *evidence.ToolRow {
	args, err := json.Marshal(t.Arguments)
	if err != nil || t.Arguments == nil {
		args = []byte("{}")
	}
	resources, err := json.Marshal(t.ResourcesAccessed)
	if err != nil || t.ResourcesAccessed == nil {
		resources = []byte("[]")
	}
	return &evidence.ToolRow{
		ID:                t.ID,
		InteractionID:     t.InteractionID,
		ToolName:          t.ToolName,
		Arguments:         string(args),
		Result:            t.Result,
		ExecutionTimeMs:   t.ExecutionTimeMs,
		Success:           t.Success,
		Error:             t.Error,
		ImpactLevel:       string(t.ImpactLevel),
		ResourcesAccessed: string(resources),
		UserConfirmed:     t.UserConfirmed,
		Reasoning:         t.Reasoning,
		Timestamp:         t.Timestamp,
	}
}

// ToolFromRow rebuilds a ToolExecution; unparseable arguments or resource
// lists become empty.
func ToolFromRow(row evidence.ToolRow) ToolExecution {
	args := map[string]any{}
	if err := json.Unmarshal([]byte(row.Arguments), &args); err != nil || args == nil {
		args = map[string]any{}
	}
	resources := []string{}
	if err := json.Unmarshal([]byte(row.ResourcesAccessed), &resources); err != nil || resources == nil {
		resources = []string{}
	}
	impact := ImpactLevel(row.ImpactLevel)
	switch impact {
	case ImpactLow, ImpactMedium, ImpactHigh:
	default:
		impact = ImpactLow
	}
	return ToolExecution{
		ID:                row.ID,
		InteractionID:     row.InteractionID,
		ToolName:          row.ToolName,
		Arguments:         args,
		Result:            row.Result,
		ExecutionTimeMs:   row.ExecutionTimeMs,
		Success:           row.Success,
		Error:             row.Error,
		ImpactLevel:       impact,
		ResourcesAccessed: resources,
		UserConfirmed:     row.UserConfirmed,
		Reasoning:         row.Reasoning,
		Timestamp:         row.Timestamp,
	}
}

// Category is a feedback rating dimension.
type Category string

const (
	CategoryHelpfulness Category = "helpfulness"
	CategoryAccuracy    Category = "accuracy"
	CategoryClarity     Category = "clarity"
	CategorySpeed       Category = "speed"
	CategoryPersonality Category = "personality"
)

// Categories lists the feedback dimensions in display order.
var Categories = []Category{CategoryHelpfulness, CategoryAccuracy, CategoryClarity, CategorySpeed, CategoryPersonality}

// Feedback is the user's rating of one interaction.
type Feedback struct {
	Rating     int              `json:"rating"`
	Comment    string           `json:"comment,omitempty"`
	Categories map[Category]int `json:"categories,omitempty"`
	Timestamp  time.Time        `json:"timestamp"`
}

// Validate checks that the overall rating and every category rating are 1-5
// and that categories are known.
func (f Feedback) Validate() error {
	if f.Rating < 1 || f.Rating > 5 {
		return fmt.Errorf("rating must be between 1 and 5 (got %d)", f.Rating)
	}
	for c, v := range f.Categories {
		if !c.known() {
			return fmt.Errorf("unknown feedback category %q", c)
		}
		if v < 1 || v > 5 {
			return fmt.Errorf("%s rating must be between 1 and 5 (got %d)", c, v)
		}
	}
	return nil
}

func (c Category) known() bool {
	for _, k := range Categories {
		if c == k {
			return true
		}
	}
	return false
}

// ToRow flattens f for the interaction with the given ID.
func (f Feedback) ToRow(interactionID string) *evidence.FeedbackRow {
	cats, err := json.Marshal(f.Categories)
	if err != nil || f.Categories == nil {
		cats = []byte("{}")
	}
	return &evidence.FeedbackRow{
		InteractionID: interactionID,
		Rating:        f.Rating,
		Comment:       f.Comment,
		Categories:    string(cats),
		Timestamp:     f.Timestamp,
	}
}

// FeedbackFromRow rebuilds Feedback; unparseable categories become empty.
func FeedbackFromRow(row evidence.FeedbackRow) Feedback {
	cats := map[Category]int{}
	if err := json.Unmarshal([]byte(row.Categories), &cats); err != nil || cats == nil {
		cats = map[Category]int{}
	}
	return Feedback{
		Rating:     row.Rating,
		Comment:    row.Comment,
		Categories: cats,
		Timestamp:  row.Timestamp,
	}
}
