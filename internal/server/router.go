package server

import (
	"log/slog"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/time/rate"

	"github.com/sonavox/mediad/internal/config"
	"github.com/sonavox/mediad/internal/core"
	"github.com/sonavox/mediad/internal/dispatch"
	"github.com/sonavox/mediad/internal/queue"
	"github.com/sonavox/mediad/internal/ratelimit"
	"github.com/sonavox/mediad/internal/server/handler"
)

// Deps carries everything the router needs.
type Deps struct {
	Config     *config.Config
	Gateway    *dispatch.Gateway
	Queue      *queue.Queue
	Operations map[string]core.Operation
	Sink       core.StatusSink
	Stats      *dispatch.Stats
	Limiter    *ratelimit.Limiter
	Global     *rate.Limiter
	Logger     *slog.Logger
}

// NewRouter creates and configures a new HTTP router with middleware and API
// routes. Health and stats stay outside the rate limit so probes never get
// throttled out.
func NewRouter(deps Deps) *chi.Mux {
	r := chi.NewRouter()

	// Configure middleware stack
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	statusHandler := handler.NewStatusHandler(deps.Sink, deps.Stats, deps.Queue, deps.Logger)

	r.Get("/health", statusHandler.Health)
	r.Get("/stats", statusHandler.Stats)

	// API routes
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(ratelimit.Middleware(deps.Limiter, deps.Global, deps.Config.RateLimitIdentity, deps.Logger))

		mediaHandler := handler.NewMediaHandler(deps.Gateway, deps.Operations, deps.Logger)
		r.Post("/transcribe", mediaHandler.Transcribe)
		r.Post("/convert", mediaHandler.Convert)
		r.Post("/download", mediaHandler.Download)

		r.Get("/jobs/{jobID}", statusHandler.Job)
	})

	return r
}
