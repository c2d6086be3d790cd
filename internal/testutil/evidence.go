// Package testutil provides shared test helpers and fakes for kiralog tests.
package testutil

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/vietanhdev/kirapilot-app-sub002/internal/evidence"
)

// NewTestStore creates an interaction store in a temp dir and registers
// t.Cleanup to close it. Uses TestSigningKey.
func NewTestStore(t *testing.T) *evidence.Store {
	t.Helper()
	dir := t.TempDir()
	store, err := evidence.NewStore(filepath.Join(dir, "interactions.db"), TestSigningKey)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

// ErrStoreDown is returned by FailingStore.
var ErrStoreDown = errors.New("store unavailable")

// FailingStore is a capture store whose writes always fail. Exists reports
// every ID as present so tool writes reach CreateToolExecution.
type FailingStore struct {
	mu     sync.Mutex
	Writes int
}

// Create implements capture.Store.
func (f *FailingStore) Create(ctx context.Context, row *evidence.Row) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Writes++
	return "", ErrStoreDown
}

// Exists implements capture.Store.
func (f *FailingStore) Exists(ctx context.Context, id string) (bool, error) {
	return true, nil
}

// CreateToolExecution implements capture.Store.
func (f *FailingStore) CreateToolExecution(ctx context.Context, t *evidence.ToolRow) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Writes++
	return ErrStoreDown
}

// Update implements capture.Store.
func (f *FailingStore) Update(ctx context.Context, id string, p evidence.RowPatch) (*evidence.Row, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Writes++
	return nil, ErrStoreDown
}

// SeedRow stores a public interaction at the given time and returns it.
// mutate runs before the write.
func SeedRow(t *testing.T, s *evidence.Store, id string, at time.Time, mutate ...func(*evidence.Row)) *evidence.Row {
	t.Helper()
	row := &evidence.Row{
		ID:             id,
		Timestamp:      at,
		SessionID:      "sess_1",
		Backend:        "gemini",
		UserMessage:    "hello " + id,
		AIResponse:     "hi there",
		ResponseTimeMs: 1000,
		Classification: "public",
	}
	for _, m := range mutate {
		m(row)
	}
	if _, err := s.Create(context.Background(), row); err != nil {
		t.Fatal(err)
	}
	return row
}
