package evidence

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/vietanhdev/kirapilot-app-sub002/internal/config"
)

const retentionKey = "retention_config"

// RetentionConfig returns the stored retention config. ErrNotFound means none
// was saved yet; a corrupt value yields an error wrapping
// config.ErrInvalidRetention. Callers fall back to config.DefaultRetention.
func (s *Store) RetentionConfig(ctx context.Context) (config.Retention, error) {
	var raw string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM settings WHERE key = ?`, retentionKey).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return config.Retention{}, fmt.Errorf("retention config: %w", ErrNotFound)
	}
	if err != nil {
		return config.Retention{}, fmt.Errorf("querying retention config: %w", err)
	}
	return config.ParseRetention([]byte(raw))
}

// SaveRetentionConfig validates and stores r.
func (s *Store) SaveRetentionConfig(ctx context.Context, r config.Retention) error {
	if err := r.Validate(); err != nil {
		return err
	}
	data, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("marshaling retention config: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `INSERT INTO settings (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		retentionKey, string(data), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("storing retention config: %w", err)
	}
	return nil
}

// UpdateRetentionConfig applies p on top of the stored config (or the
// default when none or a corrupt one is stored) and saves the result.
func (s *Store) UpdateRetentionConfig(ctx context.Context, p config.RetentionPatch) (config.Retention, error) {
	current, err := s.RetentionConfig(ctx)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			log.Warn().Err(err).Msg("retention_config_unreadable_using_default")
		}
		current = config.DefaultRetention()
	}
	next, err := p.Apply(current)
	if err != nil {
		return config.Retention{}, err
	}
	if err := s.SaveRetentionConfig(ctx, next); err != nil {
		return config.Retention{}, err
	}
	return next, nil
}

// LoadRetentionOrDefault returns the stored config, falling back to the
// default with a warning when it is missing or corrupt.
func (s *Store) LoadRetentionOrDefault(ctx context.Context) config.Retention {
	r, err := s.RetentionConfig(ctx)
	if err == nil {
		return r
	}
	if !errors.Is(err, ErrNotFound) {
		log.Warn().Err(err).Msg("retention_config_unreadable_using_default")
	}
	return config.DefaultRetention()
}
