package evidence

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// SaveFeedback stores the feedback for an interaction, replacing any earlier
// entry for the same interaction.
func (s *Store) SaveFeedback(ctx context.Context, f *FeedbackRow) error {
	ctx, span := tracer.Start(ctx, "evidence.save_feedback",
		trace.WithAttributes(attribute.String("interaction.id", f.InteractionID)))
	defer span.End()

	ok, err := s.Exists(ctx, f.InteractionID)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("interaction %s: %w", f.InteractionID, ErrNotFound)
	}

	if f.Timestamp.IsZero() {
		f.Timestamp = time.Now()
	}
	f.Timestamp = f.Timestamp.UTC()
	if f.Categories == "" {
		f.Categories = "{}"
	}

	_, err = s.db.ExecContext(ctx, `INSERT INTO feedback (interaction_id, rating, comment, categories, timestamp)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(interaction_id) DO UPDATE SET
			rating = excluded.rating, comment = excluded.comment,
			categories = excluded.categories, timestamp = excluded.timestamp`,
		f.InteractionID, f.Rating, f.Comment, f.Categories, f.Timestamp)
	if err != nil {
		return fmt.Errorf("storing feedback: %w", err)
	}
	return nil
}

// GetFeedback returns the feedback attached to an interaction.
func (s *Store) GetFeedback(ctx context.Context, interactionID string) (*FeedbackRow, error) {
	ctx, span := tracer.Start(ctx, "evidence.get_feedback",
		trace.WithAttributes(attribute.String("interaction.id", interactionID)))
	defer span.End()

	var f FeedbackRow
	err := s.db.QueryRowContext(ctx,
		`SELECT interaction_id, rating, comment, categories, timestamp FROM feedback WHERE interaction_id = ?`,
		interactionID).Scan(&f.InteractionID, &f.Rating, &f.Comment, &f.Categories, &f.Timestamp)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("feedback for %s: %w", interactionID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("querying feedback: %w", err)
	}
	f.Timestamp = f.Timestamp.UTC()
	return &f, nil
}
