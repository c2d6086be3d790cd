package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/vietanhdev/kirapilot-app-sub002/internal/analytics"
	"github.com/vietanhdev/kirapilot-app-sub002/internal/classifier"
	"github.com/vietanhdev/kirapilot-app-sub002/internal/config"
	"github.com/vietanhdev/kirapilot-app-sub002/internal/evidence"
	"github.com/vietanhdev/kirapilot-app-sub002/internal/feedback"
	"github.com/vietanhdev/kirapilot-app-sub002/internal/tools"
)

// commandTimeout bounds one-shot commands.
const commandTimeout = 30 * time.Second

// app is the set of components one-shot commands share.
type app struct {
	cfg       *config.Config
	store     *evidence.Store
	analytics *analytics.Service
	feedback  *feedback.Service
}

func openApp() (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if err := cfg.EnsureDataDir(); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}
	store, err := evidence.NewStore(cfg.InteractionsDBPath(), cfg.SigningKey)
	if err != nil {
		return nil, fmt.Errorf("initializing interaction store: %w", err)
	}
	an := analytics.NewService(store)
	return &app{
		cfg:       cfg,
		store:     store,
		analytics: an,
		feedback:  feedback.NewService(an),
	}, nil
}

func (a *app) Close() error {
	return a.store.Close()
}

// retention returns the effective RetentionConfig: the override file when
// one is configured and readable, otherwise the stored config or the
// default.
func (a *app) retention(ctx context.Context) config.Retention {
	if a.cfg.RetentionFile != "" {
		r, err := config.LoadRetentionFile(a.cfg.RetentionFile)
		if err == nil {
			return r
		}
		log.Warn().Err(err).Str("path", a.cfg.RetentionFile).Msg("retention_file_unreadable_using_store")
	}
	return a.store.LoadRetentionOrDefault(ctx)
}

func newScanner(cfg *config.Config) (*classifier.Scanner, error) {
	var opts []classifier.ScannerOption
	if cfg.PatternFile != "" {
		if _, err := os.Stat(cfg.PatternFile); err != nil {
			log.Warn().Err(err).Str("pattern_file", cfg.PatternFile).Msg("pattern_file_unavailable")
		}
		opts = append(opts, classifier.WithPatternFile(cfg.PatternFile))
	}
	s, err := classifier.NewScanner(opts...)
	if err != nil {
		return nil, fmt.Errorf("initializing classifier: %w", err)
	}
	return s, nil
}

func newGrant(cfg *config.Config) (*tools.Grant, error) {
	caps := make([]tools.Capability, 0, len(cfg.ToolCapabilities))
	for _, name := range cfg.ToolCapabilities {
		c, err := tools.ParseCapability(name)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", config.KeyToolCaps, err)
		}
		caps = append(caps, c)
	}
	return tools.NewGrant(caps, cfg.ToolAutoApprove, cfg.ToolConfirmTimeout), nil
}

// parseTimeFlag accepts RFC3339 or a bare date. Empty means unset.
func parseTimeFlag(name, v string) (time.Time, error) {
	if v == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return t, nil
	}
	t, err := time.Parse("2006-01-02", v)
	if err != nil {
		return time.Time{}, fmt.Errorf("--%s: want RFC3339 or YYYY-MM-DD, got %q", name, v)
	}
	return t, nil
}

// filterFlags is the list filter shared by audit, analytics, search and export.
type filterFlags struct {
	from, to string
	backend  string
	text     string
	limit    int
}

func (f *filterFlags) filter() (evidence.Filter, error) {
	start, err := parseTimeFlag("from", f.from)
	if err != nil {
		return evidence.Filter{}, err
	}
	end, err := parseTimeFlag("to", f.to)
	if err != nil {
		return evidence.Filter{}, err
	}
	return evidence.Filter{
		StartDate:  start,
		EndDate:    end,
		Backend:    f.backend,
		SearchText: f.text,
		Limit:      f.limit,
	}, nil
}
