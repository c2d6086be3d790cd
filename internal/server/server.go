// Package server provides the HTTP API for capture, query, analytics,
// export, feedback and retention.
package server

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/time/rate"

	"github.com/vietanhdev/kirapilot-app-sub002/internal/analytics"
	"github.com/vietanhdev/kirapilot-app-sub002/internal/capture"
	"github.com/vietanhdev/kirapilot-app-sub002/internal/evidence"
	"github.com/vietanhdev/kirapilot-app-sub002/internal/feedback"
	"github.com/vietanhdev/kirapilot-app-sub002/internal/otel"
	"github.com/vietanhdev/kirapilot-app-sub002/internal/tools"
)

const (
	defaultTimeout = 60 * time.Second
	// defaultQueryRate is the steady rate (requests/s) for the expensive
	// query routes; bursts of twice that are allowed.
	defaultQueryRate = 5
)

// Server holds all dependencies for the HTTP API.
type Server struct {
	router      *chi.Mux
	store       *evidence.Store
	pipeline    *capture.Pipeline
	analytics   *analytics.Service
	feedback    *feedback.Service
	engine      *tools.Engine
	apiKey      string
	corsOrigins []string
	limiter     *rate.Limiter
	startTime   time.Time

	retentionFile string
}

// Option configures the Server.
type Option func(*Server)

// WithToolEngine exposes the tool catalog, validation and result formatting.
func WithToolEngine(e *tools.Engine) Option {
	return func(s *Server) { s.engine = e }
}

// WithAPIKey requires key on every /v1 route. Empty disables auth.
func WithAPIKey(key string) Option {
	return func(s *Server) { s.apiKey = key }
}

// WithCORSOrigins sets allowed CORS origins (["*"] for any).
func WithCORSOrigins(origins []string) Option {
	return func(s *Server) { s.corsOrigins = origins }
}

// WithRetentionFile names the retention override file. While it is
// readable, PATCH /v1/retention is refused with 409.
func WithRetentionFile(path string) Option {
	return func(s *Server) { s.retentionFile = path }
}

// WithQueryRate sets the steady request rate of the search, analytics and
// export routes. Zero or less disables limiting.
func WithQueryRate(perSecond int) Option {
	return func(s *Server) {
		if perSecond <= 0 {
			s.limiter = nil
			return
		}
		s.limiter = rate.NewLimiter(rate.Limit(perSecond), perSecond*2)
	}
}

// NewServer builds a Server with the required dependencies and optional Option(s).
func NewServer(
	store *evidence.Store,
	pipeline *capture.Pipeline,
	an *analytics.Service,
	fb *feedback.Service,
	opts ...Option,
) *Server {
	s := &Server{
		router:      chi.NewRouter(),
		store:       store,
		pipeline:    pipeline,
		analytics:   an,
		feedback:    fb,
		corsOrigins: []string{"*"},
		limiter:     rate.NewLimiter(rate.Limit(defaultQueryRate), defaultQueryRate*2),
		startTime:   time.Now(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Routes returns the configured http.Handler (chi router with all middleware and routes).
func (s *Server) Routes() http.Handler {
	r := s.router
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(otel.HTTPMiddleware())
	r.Use(CORSMiddleware(s.corsOrigins))

	// Unauthenticated
	r.Get("/health", s.handleHealth)
	r.Get("/v1/health", s.handleHealth)

	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(s.apiKey))
		r.Use(middleware.Timeout(defaultTimeout))

		r.Post("/v1/capture/open", s.handleCaptureOpen)
		r.Post("/v1/capture/{id}/close", s.handleCaptureClose)
		r.Post("/v1/capture/{id}/tools", s.handleCaptureTool)

		r.Get("/v1/interactions", s.handleInteractionList)
		r.Get("/v1/interactions/{id}", s.handleInteractionGet)
		r.Delete("/v1/interactions/{id}", s.handleInteractionDelete)
		r.Get("/v1/interactions/{id}/verify", s.handleInteractionVerify)
		r.Post("/v1/interactions/{id}/feedback", s.handleFeedbackSubmit)

		r.Get("/v1/feedback/analysis", s.handleFeedbackAnalysis)
		r.Get("/v1/feedback/summary", s.handleFeedbackSummary)

		r.Get("/v1/retention", s.handleRetentionGet)
		r.Patch("/v1/retention", s.handleRetentionPatch)
		r.Get("/v1/stats", s.handleStats)

		if s.engine != nil {
			r.Get("/v1/tools", s.handleToolsList)
			r.Post("/v1/tools/{name}/validate", s.handleToolValidate)
			r.Post("/v1/tools/{name}/format", s.handleToolFormat)
		}

		r.Group(func(r chi.Router) {
			r.Use(RateLimitMiddleware(s.limiter))
			r.Get("/v1/analytics", s.handleAnalytics)
			r.Post("/v1/search", s.handleSearch)
			r.Post("/v1/export", s.handleExport)
		})
	})

	return r
}
