// Package evidence is the SQLite storage layer for captured AI interactions.
//
// Every interaction row is signed (HMAC-SHA256) on write and re-signed on
// update so tampering is detectable. Tool executions and feedback are child
// rows deleted together with their parent.
package evidence

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/vietanhdev/kirapilot-app-sub002/internal/classifier"
	kotel "github.com/vietanhdev/kirapilot-app-sub002/internal/otel"
)

var tracer = kotel.Tracer("github.com/vietanhdev/kirapilot-app-sub002/internal/evidence")

// Store persists signed interaction rows and their children in SQLite.
type Store struct {
	db     *sql.DB
	signer *Signer
}

const schema = `
CREATE TABLE IF NOT EXISTS interactions (
	id TEXT PRIMARY KEY,
	timestamp TIMESTAMP NOT NULL,
	session_id TEXT NOT NULL,
	backend TEXT NOT NULL,
	model_info TEXT NOT NULL DEFAULT '{}',
	user_message TEXT NOT NULL,
	ai_response TEXT NOT NULL DEFAULT '',
	system_prompt TEXT NOT NULL DEFAULT '',
	context_snapshot TEXT NOT NULL DEFAULT '',
	reasoning TEXT NOT NULL DEFAULT '',
	response_time_ms INTEGER NOT NULL DEFAULT 0,
	token_count INTEGER NOT NULL DEFAULT 0,
	error TEXT NOT NULL DEFAULT '',
	contains_sensitive INTEGER NOT NULL DEFAULT 0,
	classification TEXT NOT NULL DEFAULT 'public',
	signature TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_interactions_timestamp ON interactions(timestamp);
CREATE INDEX IF NOT EXISTS idx_interactions_session ON interactions(session_id);
CREATE INDEX IF NOT EXISTS idx_interactions_backend ON interactions(backend);

CREATE TABLE IF NOT EXISTS tool_executions (
	id TEXT PRIMARY KEY,
	interaction_id TEXT NOT NULL REFERENCES interactions(id) ON DELETE CASCADE,
	tool_name TEXT NOT NULL,
	arguments TEXT NOT NULL DEFAULT '{}',
	result TEXT NOT NULL DEFAULT '',
	execution_time_ms INTEGER NOT NULL DEFAULT 0,
	success INTEGER NOT NULL DEFAULT 0,
	error TEXT NOT NULL DEFAULT '',
	impact_level TEXT NOT NULL DEFAULT 'low',
	resources_accessed TEXT NOT NULL DEFAULT '[]',
	user_confirmed INTEGER NOT NULL DEFAULT 0,
	reasoning TEXT NOT NULL DEFAULT '',
	timestamp TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_tool_executions_parent ON tool_executions(interaction_id);
CREATE INDEX IF NOT EXISTS idx_tool_executions_name ON tool_executions(tool_name);

CREATE TABLE IF NOT EXISTS feedback (
	interaction_id TEXT PRIMARY KEY REFERENCES interactions(id) ON DELETE CASCADE,
	rating INTEGER NOT NULL,
	comment TEXT NOT NULL DEFAULT '',
	categories TEXT NOT NULL DEFAULT '{}',
	timestamp TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS settings (
	key TEXT PRIMARY KEY,
	value TEXT NOT NULL,
	updated_at TIMESTAMP NOT NULL
);
`

// sizeExpr approximates the stored size of one interaction row.
const sizeExpr = `(length(user_message) + length(ai_response) + length(system_prompt) + length(context_snapshot) + length(reasoning))`

const rowColumns = `id, timestamp, session_id, backend, model_info, user_message, ai_response,
	system_prompt, context_snapshot, reasoning, response_time_ms, token_count, error,
	contains_sensitive, classification, signature`

// NewStore opens (or creates) the interaction database with HMAC signing.
func NewStore(dbPath string, signingKey string) (*Store, error) {
	signer, err := NewSigner(signingKey)
	if err != nil {
		return nil, fmt.Errorf("creating signer: %w", err)
	}

	db, err := sql.Open("sqlite3", withPragmas(dbPath))
	if err != nil {
		return nil, fmt.Errorf("opening interaction database: %w", err)
	}
	// One writer keeps SQLite free of SQLITE_BUSY under concurrent captures.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(context.Background(), schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating interaction schema: %w", err)
	}

	log.Debug().Str("path", dbPath).Str("key_fingerprint", signer.Fingerprint()).Msg("interaction_store_opened")
	return &Store{db: db, signer: signer}, nil
}

func withPragmas(dbPath string) string {
	sep := "?"
	if strings.Contains(dbPath, "?") {
		sep = "&"
	}
	return dbPath + sep + "_foreign_keys=on&_busy_timeout=5000"
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// NewInteractionID returns a fresh interaction identifier.
func NewInteractionID() string {
	return "int_" + uuid.New().String()
}

// Create stores a new interaction row and returns its ID. A missing ID is
// generated; the timestamp is normalized to UTC.
func (s *Store) Create(ctx context.Context, row *Row) (string, error) {
	if row.ID == "" {
		row.ID = NewInteractionID()
	}
	ctx, span := tracer.Start(ctx, "evidence.create",
		trace.WithAttributes(
			attribute.String("interaction.id", row.ID),
			attribute.String("interaction.classification", row.Classification),
		))
	defer span.End()

	if row.Timestamp.IsZero() {
		row.Timestamp = time.Now()
	}
	row.Timestamp = row.Timestamp.UTC()
	row.Classification = string(classifier.ParseTier(row.Classification))
	if row.ModelInfo == "" {
		row.ModelInfo = "{}"
	}
	if err := s.signer.SignRow(row); err != nil {
		return "", err
	}

	query := `INSERT INTO interactions (` + rowColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := s.db.ExecContext(ctx, query,
		row.ID, row.Timestamp, row.SessionID, row.Backend, row.ModelInfo, row.UserMessage, row.AIResponse,
		row.SystemPrompt, row.ContextSnapshot, row.Reasoning, row.ResponseTimeMs, row.TokenCount, row.Error,
		row.ContainsSensitive, row.Classification, row.Signature,
	)
	if err != nil {
		return "", fmt.Errorf("storing interaction: %w", err)
	}
	return row.ID, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRow(sc rowScanner) (*Row, error) {
	var r Row
	err := sc.Scan(&r.ID, &r.Timestamp, &r.SessionID, &r.Backend, &r.ModelInfo, &r.UserMessage, &r.AIResponse,
		&r.SystemPrompt, &r.ContextSnapshot, &r.Reasoning, &r.ResponseTimeMs, &r.TokenCount, &r.Error,
		&r.ContainsSensitive, &r.Classification, &r.Signature)
	if err != nil {
		return nil, err
	}
	r.Timestamp = r.Timestamp.UTC()
	return &r, nil
}

// Get retrieves an interaction row by ID.
func (s *Store) Get(ctx context.Context, id string) (*Row, error) {
	ctx, span := tracer.Start(ctx, "evidence.get",
		trace.WithAttributes(attribute.String("interaction.id", id)))
	defer span.End()

	row, err := scanRow(s.db.QueryRowContext(ctx, `SELECT `+rowColumns+` FROM interactions WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("interaction %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("querying interaction: %w", err)
	}
	return row, nil
}

// Exists reports whether an interaction row with id is stored.
func (s *Store) Exists(ctx context.Context, id string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM interactions WHERE id = ?`, id).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("checking interaction: %w", err)
	}
	return n > 0, nil
}

// List returns interaction rows matching f, newest first.
func (s *Store) List(ctx context.Context, f Filter) ([]Row, error) {
	ctx, span := tracer.Start(ctx, "evidence.list",
		trace.WithAttributes(
			attribute.String("filter.backend", f.Backend),
			attribute.Int("filter.limit", f.Limit),
		))
	defer span.End()

	where, args := filterClause(f)
	query := `SELECT ` + rowColumns + ` FROM interactions` + where + ` ORDER BY timestamp DESC`
	if f.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, f.Limit)
		if f.Offset > 0 {
			query += ` OFFSET ?`
			args = append(args, f.Offset)
		}
	} else if f.Offset > 0 {
		query += ` LIMIT -1 OFFSET ?`
		args = append(args, f.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying interactions: %w", err)
	}
	defer rows.Close()

	var results []Row
	for rows.Next() {
		r, err := scanRow(rows)
		if err != nil {
			continue
		}
		results = append(results, *r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating interactions: %w", err)
	}

	span.SetAttributes(attribute.Int("interaction.count", len(results)))
	return results, nil
}

func filterClause(f Filter) (string, []any) {
	var conds []string
	var args []any

	if !f.StartDate.IsZero() {
		conds = append(conds, `timestamp >= ?`)
		args = append(args, f.StartDate.UTC())
	}
	if !f.EndDate.IsZero() {
		conds = append(conds, `timestamp <= ?`)
		args = append(args, f.EndDate.UTC())
	}
	if f.Backend != "" {
		conds = append(conds, `backend = ?`)
		args = append(args, f.Backend)
	}
	if f.HasErrors != nil {
		if *f.HasErrors {
			conds = append(conds, `error != ''`)
		} else {
			conds = append(conds, `error = ''`)
		}
	}
	if f.HasToolCalls != nil {
		exists := `EXISTS (SELECT 1 FROM tool_executions t WHERE t.interaction_id = interactions.id)`
		if *f.HasToolCalls {
			conds = append(conds, exists)
		} else {
			conds = append(conds, `NOT `+exists)
		}
	}
	if f.SearchText != "" {
		pattern := "%" + escapeLike(f.SearchText) + "%"
		conds = append(conds, `(user_message LIKE ? ESCAPE '\' OR ai_response LIKE ? ESCAPE '\')`)
		args = append(args, pattern, pattern)
	}

	if len(conds) == 0 {
		return "", args
	}
	return ` WHERE ` + strings.Join(conds, ` AND `), args
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

// Update applies p to the row and re-signs it. The classification never
// downgrades: the stored tier becomes the higher of the old and new tiers.
func (s *Store) Update(ctx context.Context, id string, p RowPatch) (*Row, error) {
	ctx, span := tracer.Start(ctx, "evidence.update",
		trace.WithAttributes(attribute.String("interaction.id", id)))
	defer span.End()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning update: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	row, err := scanRow(tx.QueryRowContext(ctx, `SELECT `+rowColumns+` FROM interactions WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("interaction %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("querying interaction: %w", err)
	}

	if p.AIResponse != nil {
		row.AIResponse = *p.AIResponse
	}
	if p.Reasoning != nil {
		row.Reasoning = *p.Reasoning
	}
	if p.Error != nil {
		row.Error = *p.Error
	}
	if p.ResponseTimeMs != nil {
		row.ResponseTimeMs = *p.ResponseTimeMs
	}
	if p.TokenCount != nil {
		row.TokenCount = *p.TokenCount
	}
	if p.ContainsSensitive != nil {
		row.ContainsSensitive = row.ContainsSensitive || *p.ContainsSensitive
	}
	if p.Classification != nil {
		row.Classification = string(classifier.MaxTier(
			classifier.ParseTier(row.Classification),
			classifier.ParseTier(*p.Classification),
		))
	}
	if err := s.signer.SignRow(row); err != nil {
		return nil, err
	}

	_, err = tx.ExecContext(ctx, `UPDATE interactions SET ai_response = ?, reasoning = ?, error = ?,
		response_time_ms = ?, token_count = ?, contains_sensitive = ?, classification = ?, signature = ?
		WHERE id = ?`,
		row.AIResponse, row.Reasoning, row.Error, row.ResponseTimeMs, row.TokenCount,
		row.ContainsSensitive, row.Classification, row.Signature, id)
	if err != nil {
		return nil, fmt.Errorf("updating interaction: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing update: %w", err)
	}
	return row, nil
}

// Delete removes an interaction and, by cascade, its tool executions and feedback.
func (s *Store) Delete(ctx context.Context, id string) error {
	ctx, span := tracer.Start(ctx, "evidence.delete",
		trace.WithAttributes(attribute.String("interaction.id", id)))
	defer span.End()

	res, err := s.db.ExecContext(ctx, `DELETE FROM interactions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting interaction: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("interaction %s: %w", id, ErrNotFound)
	}
	return nil
}

// Verify checks the HMAC signature integrity of a stored interaction.
func (s *Store) Verify(ctx context.Context, id string) (bool, error) {
	ctx, span := tracer.Start(ctx, "evidence.verify",
		trace.WithAttributes(attribute.String("interaction.id", id)))
	defer span.End()

	row, err := s.Get(ctx, id)
	if err != nil {
		return false, err
	}
	return s.signer.VerifyRow(*row)
}

// Stats summarizes the stored interactions.
func (s *Store) Stats(ctx context.Context) (*Stats, error) {
	ctx, span := tracer.Start(ctx, "evidence.stats")
	defer span.End()

	st := &Stats{ByBackend: map[string]int{}}
	var total sql.NullInt64
	var avg sql.NullFloat64
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(1), SUM(`+sizeExpr+`), AVG(response_time_ms) FROM interactions`).
		Scan(&st.Count, &total, &avg)
	if err != nil {
		return nil, fmt.Errorf("querying stats: %w", err)
	}
	st.TotalSizeBytes = total.Int64
	st.AvgResponseTimeMs = avg.Float64
	if st.Count == 0 {
		return st, nil
	}

	var oldest, newest time.Time
	if err := s.db.QueryRowContext(ctx, `SELECT timestamp FROM interactions ORDER BY timestamp ASC LIMIT 1`).Scan(&oldest); err != nil {
		return nil, fmt.Errorf("querying oldest interaction: %w", err)
	}
	if err := s.db.QueryRowContext(ctx, `SELECT timestamp FROM interactions ORDER BY timestamp DESC LIMIT 1`).Scan(&newest); err != nil {
		return nil, fmt.Errorf("querying newest interaction: %w", err)
	}
	oldest, newest = oldest.UTC(), newest.UTC()
	st.Oldest, st.Newest = &oldest, &newest

	rows, err := s.db.QueryContext(ctx, `SELECT backend, COUNT(1) FROM interactions GROUP BY backend`)
	if err != nil {
		return nil, fmt.Errorf("querying backend stats: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var backend string
		var n int
		if err := rows.Scan(&backend, &n); err != nil {
			continue
		}
		st.ByBackend[backend] = n
	}
	return st, rows.Err()
}
