package cmd

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/vietanhdev/kirapilot-app-sub002/internal/capture"
	"github.com/vietanhdev/kirapilot-app-sub002/internal/config"
	"github.com/vietanhdev/kirapilot-app-sub002/internal/retention"
	"github.com/vietanhdev/kirapilot-app-sub002/internal/server"
	"github.com/vietanhdev/kirapilot-app-sub002/internal/tools"
)

var (
	serveAddr      string
	serveQueryRate int
	serveCORS      []string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the capture and query API with scheduled retention cleanup",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (default: listen_addr from config)")
	serveCmd.Flags().IntVar(&serveQueryRate, "query-rate", 5, "requests per second allowed on search, analytics and export (0 disables)")
	serveCmd.Flags().StringSliceVar(&serveCORS, "cors-origin", []string{"*"}, "allowed CORS origins")
	rootCmd.AddCommand(serveCmd)
}

// logStatus reports capture write outcomes. Failures never reach the
// conversational caller; they are only logged here.
func logStatus(s capture.Status) {
	if s.Err != nil {
		log.Error().Err(s.Err).Str("op", string(s.Op)).Str("id", s.ID).Msg("capture_write_failed")
		return
	}
	log.Debug().Str("op", string(s.Op)).Str("id", s.ID).Msg("capture_write_ok")
}

//nolint:gocyclo // orchestration flow is inherently branched
func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()
	cfg := a.cfg
	cfg.WarnIfDefaultKeys()

	scanner, err := newScanner(cfg)
	if err != nil {
		return err
	}
	grant, err := newGrant(cfg)
	if err != nil {
		return err
	}
	engine := tools.NewEngine(grant)

	pipeline := capture.NewPipeline(a.store, scanner,
		capture.WithStatus(logStatus),
		capture.WithRetention(a.retention(ctx)),
	)

	if cfg.RetentionFile != "" {
		watcher, err := config.WatchRetentionFile(cfg.RetentionFile)
		if err != nil {
			log.Warn().Err(err).Str("path", cfg.RetentionFile).Msg("retention_file_not_watched")
		} else {
			defer watcher.Close()
			watcher.OnChange(func(r config.Retention) {
				pipeline.SetRetention(r)
				log.Info().Str("verbosity", string(r.Verbosity)).Bool("enabled", r.Enabled).Msg("retention_config_reloaded")
			})
		}
	}

	scheduler := retention.NewScheduler(a.store, pipeline.Retention)
	if err := scheduler.Register(cfg.CleanupSchedule); err != nil {
		return err
	}
	scheduler.Start()
	defer scheduler.Stop()

	srv := server.NewServer(a.store, pipeline, a.analytics, a.feedback,
		server.WithToolEngine(engine),
		server.WithAPIKey(cfg.APIKey),
		server.WithCORSOrigins(serveCORS),
		server.WithQueryRate(serveQueryRate),
		server.WithRetentionFile(cfg.RetentionFile),
	)

	addr := serveAddr
	if addr == "" {
		addr = cfg.ListenAddr
	}
	httpServer := &http.Server{
		Addr:         addr,
		Handler:      srv.Routes(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 2 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	log.Info().
		Str("addr", addr).
		Str("cleanup_schedule", cfg.CleanupSchedule).
		Int("cron_entries", scheduler.Entries()).
		Bool("auth", cfg.APIKey != "").
		Msg("kiralog_serve_started")

	errCh := make(chan error, 1)
	go func() {
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		log.Info().Msg("shutdown_signal_received")
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	pipeline.Reset()
	log.Info().Msg("server_stopped")
	return nil
}
