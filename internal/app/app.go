// Package app initializes and orchestrates the main components of the media
// API. It wires together configuration, the status store, the dispatch
// engine, and the HTTP server.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"

	"github.com/sonavox/mediad/internal/config"
	"github.com/sonavox/mediad/internal/core"
	"github.com/sonavox/mediad/internal/db"
	"github.com/sonavox/mediad/internal/dispatch"
	"github.com/sonavox/mediad/internal/media"
	"github.com/sonavox/mediad/internal/notify"
	"github.com/sonavox/mediad/internal/queue"
	"github.com/sonavox/mediad/internal/ratelimit"
	"github.com/sonavox/mediad/internal/server"
	"github.com/sonavox/mediad/internal/store"
)

// App holds the main application components.
type App struct {
	cfg      *config.Config
	logger   *slog.Logger
	server   *server.Server
	worker   *dispatch.Worker
	notifier *notify.WebhookNotifier
	cleanup  func()
}

// NewApp sets up the application with all its dependencies.
func NewApp(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	logger.Info("initializing media dispatch service",
		"worker_id", cfg.WorkerID,
		"max_queue_length", cfg.MaxQueueLength,
		"store_backend", cfg.StoreBackend,
	)

	sink, cleanup, err := newStatusSink(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create status store: %w", err)
	}

	q := queue.New(cfg.MaxQueueLength)
	stats := dispatch.NewStats()
	notifier := notify.NewWebhook(cfg.WebhookTimeout(), 64, logger)

	gateway := dispatch.NewGateway(q, sink, stats, cfg.WorkerID, cfg.BuildNumber, logger)
	worker := dispatch.NewWorker(q, sink, notifier, stats, cfg.WorkerID, cfg.BuildNumber, logger)
	worker.Start()

	limiter := ratelimit.New(cfg.RateLimitRequests, cfg.RateLimitWindow(), cfg.RateLimitBurstCap)
	limiter.StartSweeper(ctx, 5*cfg.RateLimitWindow())
	global := rate.NewLimiter(rate.Limit(cfg.GlobalRatePerSecond), cfg.GlobalRateBurst)

	toolset := media.NewToolset(cfg.MediaDir, logger)

	router := server.NewRouter(server.Deps{
		Config:     cfg,
		Gateway:    gateway,
		Queue:      q,
		Operations: toolset.Registry(),
		Sink:       sink,
		Stats:      stats,
		Limiter:    limiter,
		Global:     global,
		Logger:     logger,
	})
	httpServer := server.NewServer(cfg.ServerPort, router, logger)

	logger.Info("media dispatch service initialized successfully")
	return &App{
		cfg:      cfg,
		logger:   logger,
		server:   httpServer,
		worker:   worker,
		notifier: notifier,
		cleanup:  cleanup,
	}, nil
}

// newStatusSink builds the configured status store backend.
func newStatusSink(ctx context.Context, cfg *config.Config) (core.StatusSink, func(), error) {
	switch cfg.StoreBackend {
	case config.StoreRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := client.Ping(pingCtx).Err(); err != nil {
			return nil, nil, fmt.Errorf("failed to connect to redis at %s: %w", cfg.RedisAddr, err)
		}
		ttl := time.Duration(cfg.JobTTLHours) * time.Hour
		return store.NewRedis(client, ttl), func() { _ = client.Close() }, nil

	case config.StorePostgres:
		dbConn, cleanup, err := db.NewDatabase(cfg.Database)
		if err != nil {
			return nil, nil, err
		}
		return store.NewPostgres(dbConn.DB), cleanup, nil

	default:
		return store.NewMemory(), func() {}, nil
	}
}

// Start runs the HTTP server and blocks until shutdown or error.
func (a *App) Start() error {
	a.logger.Info("starting media dispatch service",
		"server_port", a.cfg.ServerPort,
		"worker_id", a.cfg.WorkerID,
	)
	return a.server.Start()
}

// Stop shuts down the application cleanly: no new requests, then the
// in-flight job, then pending webhook deliveries, then the store.
func (a *App) Stop() error {
	a.logger.Info("shutting down media dispatch service")

	serverErr := a.server.Stop()
	if serverErr != nil {
		a.logger.Error("error during HTTP server shutdown", "error", serverErr)
		// Continue to stop other components even if the server failed.
	}

	a.worker.Stop()
	a.notifier.Stop()
	a.cleanup()

	if serverErr != nil {
		return serverErr
	}
	a.logger.Info("media dispatch service stopped successfully")
	return nil
}
