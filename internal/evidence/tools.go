package evidence

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const toolColumns = `id, interaction_id, tool_name, arguments, result, execution_time_ms, success, error,
	impact_level, resources_accessed, user_confirmed, reasoning, timestamp`

// CreateToolExecution stores a tool execution under an existing interaction.
// The parent must already be stored; the foreign key rejects orphans.
func (s *Store) CreateToolExecution(ctx context.Context, t *ToolRow) error {
	if t.ID == "" {
		t.ID = "tool_" + uuid.New().String()[:8]
	}
	ctx, span := tracer.Start(ctx, "evidence.create_tool_execution",
		trace.WithAttributes(
			attribute.String("interaction.id", t.InteractionID),
			attribute.String("tool.name", t.ToolName),
		))
	defer span.End()

	if t.Timestamp.IsZero() {
		t.Timestamp = time.Now()
	}
	t.Timestamp = t.Timestamp.UTC()
	if t.Arguments == "" {
		t.Arguments = "{}"
	}
	if t.ResourcesAccessed == "" {
		t.ResourcesAccessed = "[]"
	}
	if t.ImpactLevel == "" {
		t.ImpactLevel = "low"
	}

	_, err := s.db.ExecContext(ctx, `INSERT INTO tool_executions (`+toolColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.InteractionID, t.ToolName, t.Arguments, t.Result, t.ExecutionTimeMs, t.Success, t.Error,
		t.ImpactLevel, t.ResourcesAccessed, t.UserConfirmed, t.Reasoning, t.Timestamp)
	if err != nil {
		return fmt.Errorf("storing tool execution: %w", err)
	}
	return nil
}

// ListToolExecutions returns the tool executions of one interaction in
// execution order.
func (s *Store) ListToolExecutions(ctx context.Context, interactionID string) ([]ToolRow, error) {
	ctx, span := tracer.Start(ctx, "evidence.list_tool_executions",
		trace.WithAttributes(attribute.String("interaction.id", interactionID)))
	defer span.End()

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+toolColumns+` FROM tool_executions WHERE interaction_id = ? ORDER BY timestamp ASC, rowid ASC`,
		interactionID)
	if err != nil {
		return nil, fmt.Errorf("querying tool executions: %w", err)
	}
	defer rows.Close()

	var out []ToolRow
	for rows.Next() {
		var t ToolRow
		if err := rows.Scan(&t.ID, &t.InteractionID, &t.ToolName, &t.Arguments, &t.Result, &t.ExecutionTimeMs,
			&t.Success, &t.Error, &t.ImpactLevel, &t.ResourcesAccessed, &t.UserConfirmed, &t.Reasoning, &t.Timestamp); err != nil {
			continue
		}
		t.Timestamp = t.Timestamp.UTC()
		out = append(out, t)
	}
	return out, rows.Err()
}
