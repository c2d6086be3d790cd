package retention

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"

	"github.com/vietanhdev/kirapilot-app-sub002/internal/config"
)

// jobTimeout bounds one scheduled cleanup run.
const jobTimeout = 10 * time.Minute

// ConfigFunc returns the retention config in effect. It is called on every
// run so hot-swapped values apply to the next run.
type ConfigFunc func() config.Retention

// Scheduler runs RunCleanup on a cron schedule.
type Scheduler struct {
	cron  *cron.Cron
	store Store
	cfg   ConfigFunc
	now   func() time.Time
}

// NewScheduler creates a scheduler for store. Schedules use the standard
// 5-field cron format (e.g. "0 3 * * *" for 03:00 daily).
func NewScheduler(store Store, cfg ConfigFunc) *Scheduler {
	return &Scheduler{
		cron:  cron.New(),
		store: store,
		cfg:   cfg,
		now:   time.Now,
	}
}

// Register adds a cleanup job on schedule.
func (s *Scheduler) Register(schedule string) error {
	if _, err := s.cron.AddFunc(schedule, s.run); err != nil {
		return fmt.Errorf("registering cleanup cron %q: %w", schedule, err)
	}
	return nil
}

func (s *Scheduler) run() {
	cfg := s.cfg()
	if !cfg.AutoCleanup {
		log.Debug().Msg("retention cleanup skipped: auto_cleanup off")
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	log.Info().Msg("scheduled_cleanup_fired")
	if _, err := RunCleanup(ctx, s.store, cfg, s.now()); err != nil {
		log.Error().Err(err).Msg("scheduled_cleanup_failed")
	}
}

// Start begins executing registered jobs.
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop halts the scheduler and waits for a running job to complete.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
}

// Entries returns the number of registered jobs.
func (s *Scheduler) Entries() int {
	return len(s.cron.Entries())
}
