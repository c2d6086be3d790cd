package retention

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vietanhdev/kirapilot-app-sub002/internal/config"
	"github.com/vietanhdev/kirapilot-app-sub002/internal/evidence"
	"github.com/vietanhdev/kirapilot-app-sub002/internal/testutil"
)

var now = time.Date(2025, 6, 30, 12, 0, 0, 0, time.UTC)

type fakeStore struct {
	purgeErr  error
	cutoff    time.Time
	maxRecs   int
	maxBytes  int64
	purgeCall int
}

func (f *fakeStore) PurgeBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	f.purgeCall++
	f.cutoff = cutoff
	if f.purgeErr != nil {
		return 0, f.purgeErr
	}
	return 3, nil
}

func (f *fakeStore) EnforceMaxRecords(ctx context.Context, max int) (int64, error) {
	f.maxRecs = max
	return 2, nil
}

func (f *fakeStore) EnforceMaxSize(ctx context.Context, maxBytes int64) (int64, error) {
	f.maxBytes = maxBytes
	return 1, nil
}

func TestRunCleanup_Limits(t *testing.T) {
	fs := &fakeStore{}
	cfg := config.DefaultRetention()

	res, err := RunCleanup(context.Background(), fs, cfg, now)
	require.NoError(t, err)
	assert.Equal(t, Result{Purged: 3, Evicted: 2, EvictedForSize: 1}, res)
	assert.Equal(t, int64(6), res.Total())
	assert.Equal(t, now.AddDate(0, 0, -30), fs.cutoff)
	assert.Equal(t, 10000, fs.maxRecs)
	assert.Equal(t, int64(100*1024*1024), fs.maxBytes)
}

func TestRunCleanup_ZeroMeansUnlimited(t *testing.T) {
	fs := &fakeStore{}
	cfg := config.DefaultRetention()
	cfg.RetentionDays, cfg.MaxRecords, cfg.MaxSizeMB = 0, 0, 0

	res, err := RunCleanup(context.Background(), fs, cfg, now)
	require.NoError(t, err)
	assert.Zero(t, res.Total())
	assert.Zero(t, fs.purgeCall)
	assert.Zero(t, fs.maxRecs)
	assert.Zero(t, fs.maxBytes)
}

func TestRunCleanup_ErrorDoesNotStopLaterSteps(t *testing.T) {
	fs := &fakeStore{purgeErr: errors.New("disk I/O error")}
	res, err := RunCleanup(context.Background(), fs, config.DefaultRetention(), now)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk I/O error")
	assert.Equal(t, Result{Evicted: 2, EvictedForSize: 1}, res)
}

func TestRunCleanup_WithStore(t *testing.T) {
	store := testutil.NewTestStore(t)
	ctx := context.Background()

	testutil.SeedRow(t, store, "int_old", now.AddDate(0, 0, -45))
	testutil.SeedRow(t, store, "int_1", now.Add(-3*time.Hour))
	testutil.SeedRow(t, store, "int_2", now.Add(-2*time.Hour))
	testutil.SeedRow(t, store, "int_3", now.Add(-time.Hour))
	require.NoError(t, store.SaveFeedback(ctx, &evidence.FeedbackRow{InteractionID: "int_old", Rating: 4, Timestamp: now}))

	cfg := config.DefaultRetention()
	cfg.MaxRecords = 2
	res, err := RunCleanup(ctx, store, cfg, now)
	require.NoError(t, err)
	assert.Equal(t, int64(1), res.Purged)
	assert.Equal(t, int64(1), res.Evicted)

	rows, err := store.List(ctx, evidence.Filter{})
	require.NoError(t, err)
	ids := make([]string, len(rows))
	for i, r := range rows {
		ids[i] = r.ID
	}
	assert.Equal(t, []string{"int_3", "int_2"}, ids)

	_, err = store.GetFeedback(ctx, "int_old")
	assert.ErrorIs(t, err, evidence.ErrNotFound, "feedback cascades with its interaction")
}

func TestRunCleanup_SizeCap(t *testing.T) {
	store := testutil.NewTestStore(t)
	ctx := context.Background()
	big := strings.Repeat("x", 600*1024)
	testutil.SeedRow(t, store, "int_a", now.Add(-2*time.Hour), func(r *evidence.Row) { r.AIResponse = big })
	testutil.SeedRow(t, store, "int_b", now.Add(-time.Hour), func(r *evidence.Row) { r.AIResponse = big })

	cfg := config.DefaultRetention()
	cfg.MaxSizeMB = 1
	res, err := RunCleanup(ctx, store, cfg, now)
	require.NoError(t, err)
	assert.Equal(t, int64(1), res.EvictedForSize)

	_, err = store.Get(ctx, "int_a")
	assert.ErrorIs(t, err, evidence.ErrNotFound, "oldest goes first")
	_, err = store.Get(ctx, "int_b")
	assert.NoError(t, err)
}

func TestScheduler_Register(t *testing.T) {
	s := NewScheduler(&fakeStore{}, config.DefaultRetention)
	require.NoError(t, s.Register(config.DefaultCleanupSchedule))
	assert.Equal(t, 1, s.Entries())

	assert.Error(t, s.Register("not a valid cron"))
	assert.Equal(t, 1, s.Entries())
}

func TestScheduler_RunHonorsAutoCleanup(t *testing.T) {
	fs := &fakeStore{}
	cfg := config.DefaultRetention()
	cfg.AutoCleanup = false
	s := NewScheduler(fs, func() config.Retention { return cfg })
	s.now = func() time.Time { return now }

	s.run()
	assert.Zero(t, fs.purgeCall)

	cfg.AutoCleanup = true
	s.run()
	assert.Equal(t, 1, fs.purgeCall, "config is re-read on every run")
	assert.Equal(t, now.AddDate(0, 0, -30), fs.cutoff)
}

func TestScheduler_StartStop(t *testing.T) {
	s := NewScheduler(&fakeStore{}, config.DefaultRetention)
	require.NoError(t, s.Register("@every 1h"))
	s.Start()
	s.Stop()
}
