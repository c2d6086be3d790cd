// Package retention enforces RetentionConfig limits on stored interactions:
// the retention window, the record cap and the size cap.
package retention

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/vietanhdev/kirapilot-app-sub002/internal/config"
	kotel "github.com/vietanhdev/kirapilot-app-sub002/internal/otel"
)

var tracer = kotel.Tracer("github.com/vietanhdev/kirapilot-app-sub002/internal/retention")

const bytesPerMB = 1024 * 1024

// Store is the subset of *evidence.Store cleanup needs.
type Store interface {
	PurgeBefore(ctx context.Context, cutoff time.Time) (int64, error)
	EnforceMaxRecords(ctx context.Context, max int) (int64, error)
	EnforceMaxSize(ctx context.Context, maxBytes int64) (int64, error)
}

// Result counts the interactions removed by one cleanup run.
type Result struct {
	Purged         int64 `json:"purged"`
	Evicted        int64 `json:"evicted"`
	EvictedForSize int64 `json:"evicted_for_size"`
}

// Total is the number of interactions removed.
func (r Result) Total() int64 {
	return r.Purged + r.Evicted + r.EvictedForSize
}

// RunCleanup applies cfg to store once. It runs whether or not
// cfg.AutoCleanup is set; the scheduler checks that flag. Each step runs even
// when an earlier one fails, and the first error is returned.
func RunCleanup(ctx context.Context, store Store, cfg config.Retention, now time.Time) (Result, error) {
	ctx, span := tracer.Start(ctx, "retention.cleanup",
		trace.WithAttributes(
			attribute.Int("retention_days", cfg.RetentionDays),
			attribute.Int("max_records", cfg.MaxRecords),
			attribute.Int("max_size_mb", cfg.MaxSizeMB),
		),
	)
	defer span.End()

	var res Result
	var firstErr error
	keep := func(err error) {
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}

	if cfg.RetentionDays > 0 {
		n, err := store.PurgeBefore(ctx, now.UTC().AddDate(0, 0, -cfg.RetentionDays))
		if err != nil {
			log.Error().Err(err).Int("retention_days", cfg.RetentionDays).Msg("retention: purge failed")
		}
		res.Purged = n
		keep(err)
	}
	if cfg.MaxRecords > 0 {
		n, err := store.EnforceMaxRecords(ctx, cfg.MaxRecords)
		if err != nil {
			log.Error().Err(err).Int("max_records", cfg.MaxRecords).Msg("retention: max_records enforcement failed")
		}
		res.Evicted = n
		keep(err)
	}
	if cfg.MaxSizeMB > 0 {
		n, err := store.EnforceMaxSize(ctx, int64(cfg.MaxSizeMB)*bytesPerMB)
		if err != nil {
			log.Error().Err(err).Int("max_size_mb", cfg.MaxSizeMB).Msg("retention: max_size enforcement failed")
		}
		res.EvictedForSize = n
		keep(err)
	}

	span.SetAttributes(attribute.Int64("removed", res.Total()))
	if firstErr != nil {
		return res, fmt.Errorf("retention cleanup: %w", firstErr)
	}
	if res.Total() > 0 {
		log.Info().
			Int64("purged", res.Purged).
			Int64("evicted", res.Evicted).
			Int64("evicted_for_size", res.EvictedForSize).
			Msg("retention_cleanup_completed")
	}
	return res, nil
}
