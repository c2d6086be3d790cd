package evidence

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
)

// deleteBatch stays under SQLite's bound-parameter limit.
const deleteBatch = 500

// PurgeBefore deletes interactions older than cutoff, with their children.
func (s *Store) PurgeBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	ctx, span := tracer.Start(ctx, "evidence.purge_before")
	defer span.End()

	res, err := s.db.ExecContext(ctx, `DELETE FROM interactions WHERE timestamp < ?`, cutoff.UTC())
	if err != nil {
		return 0, fmt.Errorf("purging interactions: %w", err)
	}
	n, _ := res.RowsAffected()
	span.SetAttributes(attribute.Int64("purged", n))
	return n, nil
}

// EnforceMaxRecords keeps the newest max interactions and deletes the rest.
// max <= 0 means unlimited.
func (s *Store) EnforceMaxRecords(ctx context.Context, max int) (int64, error) {
	if max <= 0 {
		return 0, nil
	}
	ctx, span := tracer.Start(ctx, "evidence.enforce_max_records")
	defer span.End()

	res, err := s.db.ExecContext(ctx, `DELETE FROM interactions WHERE id NOT IN
		(SELECT id FROM interactions ORDER BY timestamp DESC LIMIT ?)`, max)
	if err != nil {
		return 0, fmt.Errorf("evicting interactions: %w", err)
	}
	n, _ := res.RowsAffected()
	span.SetAttributes(attribute.Int64("evicted", n))
	return n, nil
}

// EnforceMaxSize deletes the oldest interactions until the approximate total
// stored size is at most maxBytes. maxBytes <= 0 means unlimited.
func (s *Store) EnforceMaxSize(ctx context.Context, maxBytes int64) (int64, error) {
	if maxBytes <= 0 {
		return 0, nil
	}
	ctx, span := tracer.Start(ctx, "evidence.enforce_max_size")
	defer span.End()

	rows, err := s.db.QueryContext(ctx, `SELECT id, `+sizeExpr+` FROM interactions ORDER BY timestamp DESC`)
	if err != nil {
		return 0, fmt.Errorf("querying interaction sizes: %w", err)
	}
	var total int64
	var evict []any
	for rows.Next() {
		var id string
		var size int64
		if err := rows.Scan(&id, &size); err != nil {
			continue
		}
		total += size
		if total > maxBytes {
			evict = append(evict, id)
		}
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return 0, fmt.Errorf("iterating interaction sizes: %w", err)
	}
	rows.Close()

	var n int64
	for len(evict) > 0 {
		batch := evict
		if len(batch) > deleteBatch {
			batch = batch[:deleteBatch]
		}
		evict = evict[len(batch):]
		placeholders := strings.TrimSuffix(strings.Repeat("?,", len(batch)), ",")
		res, err := s.db.ExecContext(ctx, `DELETE FROM interactions WHERE id IN (`+placeholders+`)`, batch...)
		if err != nil {
			return n, fmt.Errorf("evicting interactions: %w", err)
		}
		affected, _ := res.RowsAffected()
		n += affected
	}
	span.SetAttributes(attribute.Int64("evicted", n))
	return n, nil
}
