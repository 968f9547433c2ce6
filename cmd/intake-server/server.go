package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/ehr/intake/internal/config"
	"github.com/ehr/intake/internal/domain/chart"
	"github.com/ehr/intake/internal/domain/intake"
	"github.com/ehr/intake/internal/platform/db"
	"github.com/ehr/intake/internal/platform/metrics"
	"github.com/ehr/intake/internal/platform/middleware"
	"github.com/ehr/intake/internal/platform/store"
	"github.com/ehr/intake/internal/platform/validation"
)

const version = "0.1.0"

// backend is the repository selected by REPOSITORY_BACKEND plus the
// resources that must be released on shutdown.
type backend struct {
	repo store.Repository
	pool *pgxpool.Pool
}

func (b *backend) Close() {
	if b.pool != nil {
		b.pool.Close()
	}
}

func openBackend(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*backend, error) {
	switch cfg.RepositoryBackend {
	case config.BackendPostgres:
		pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
		if err != nil {
			return nil, err
		}
		logger.Info().Msg("connected to database")
		return &backend{repo: store.NewPGStore(pool), pool: pool}, nil

	case config.BackendMemory:
		logger.Warn().Msg("using in-memory repository; data is lost on restart")
		return &backend{repo: store.NewMemoryStore()}, nil

	default:
		var tokens store.TokenSource
		switch {
		case cfg.FHIRTokenURL != "":
			tokens = store.NewClientCredentials(cfg.FHIRTokenURL, cfg.FHIRClientID, cfg.FHIRClientSecret,
				cfg.FHIRScope, &http.Client{Timeout: cfg.FHIRTimeout})
		case cfg.FHIRAccessToken != "":
			tokens = store.StaticToken(cfg.FHIRAccessToken)
		}
		repo, err := store.NewHTTPStore(store.HTTPConfig{
			BaseURL:          cfg.FHIRBaseURL,
			Timeout:          cfg.FHIRTimeout,
			Tokens:           tokens,
			FailureThreshold: cfg.BreakerFailureThreshold,
			OpenTimeout:      cfg.BreakerOpenTimeout,
			Logger:           logger,
		})
		if err != nil {
			return nil, err
		}
		logger.Info().Str("base_url", cfg.FHIRBaseURL).Msg("using FHIR repository")
		return &backend{repo: repo}, nil
	}
}

// openIdempotencyStore uses Redis when REDIS_URL is set so replays survive
// restarts and are shared between replicas.
func openIdempotencyStore(ctx context.Context, cfg *config.Config) (middleware.IdempotencyStore, func(), error) {
	if cfg.RedisURL == "" {
		return middleware.NewMemoryIdempotencyStore(cfg.IdempotencyTTL), func() {}, nil
	}
	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, nil, fmt.Errorf("ping redis: %w", err)
	}
	return middleware.NewRedisIdempotencyStore(client, cfg.IdempotencyTTL), func() { client.Close() }, nil
}

// newServer wires the HTTP surface around an opened repository.
func newServer(cfg *config.Config, logger zerolog.Logger, b *backend, idem middleware.IdempotencyStore, m *metrics.Collector) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = validation.New()

	// Global middleware
	e.Use(middleware.RequestID())
	e.Use(middleware.Recovery(logger))
	e.Use(middleware.Logger(logger))
	e.Use(m.Middleware())
	e.Use(middleware.SecurityHeaders(cfg.TLSEnabled))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins:  cfg.CORSOrigins,
		AllowMethods:  []string{http.MethodGet, http.MethodPost},
		AllowHeaders:  []string{echo.HeaderContentType, middleware.RequestIDHeader, middleware.IdempotencyKeyHeader},
		ExposeHeaders: []string{"Retry-After", middleware.RequestIDHeader, middleware.IdempotencyReplayedHeader},
	}))

	rateLimitCfg := middleware.RateLimitConfig{
		RequestsPerSecond: cfg.RateLimitRPS,
		BurstSize:         cfg.RateLimitBurst,
	}
	if rateLimitCfg.RequestsPerSecond <= 0 {
		rateLimitCfg = middleware.DefaultRateLimitConfig()
	}
	limit := middleware.RateLimit(rateLimitCfg)
	timeout := middleware.RequestTimeout(cfg.RequestTimeout)

	// Intake
	svc := intake.NewService(b.repo, logger, m)
	intake.NewHandler(svc).RegisterRoutes(e,
		limit,
		timeout,
		middleware.BodyLimit(cfg.BodyLimit),
		middleware.Idempotency(idem, logger, m.ObserveReplay),
	)

	// Chart
	reader := chart.NewReader(b.repo, logger, m, chart.Config{
		Strict:         cfg.ChartStrict,
		QueryTimeout:   cfg.ChartQueryTimeout,
		SearchLimit:    cfg.ChartSearchLimit,
		ConsoleBaseURL: cfg.ConsoleBaseURL,
	})
	chart.NewHandler(reader).RegisterRoutes(e, limit, timeout)

	// Health and metrics
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"version": version,
		})
	})
	if p, ok := b.repo.(store.Pinger); ok {
		e.GET("/health/repository", db.HealthHandler(cfg.RepositoryBackend, p, b.pool))
	}
	e.GET("/metrics", echo.WrapHandler(m.Handler()))

	return e
}

func runServer(ctx context.Context, cfg *config.Config, logger zerolog.Logger) error {
	if ctx == nil {
		ctx = context.Background()
	}

	b, err := openBackend(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("open repository: %w", err)
	}
	defer b.Close()

	idem, closeIdem, err := openIdempotencyStore(ctx, cfg)
	if err != nil {
		return fmt.Errorf("open idempotency store: %w", err)
	}
	defer closeIdem()

	e := newServer(cfg, logger, b, idem, metrics.NewCollector("intake"))

	// Graceful shutdown
	errCh := make(chan error, 1)
	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Bool("tls", cfg.TLSEnabled).Str("backend", cfg.RepositoryBackend).Msg("starting server")
		var err error
		if cfg.TLSEnabled {
			err = e.StartTLS(addr, cfg.TLSCertFile, cfg.TLSKeyFile)
		} else {
			err = e.Start(addr)
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("server error: %w", err)
		}
	}

	logger.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	logger.Info().Msg("server stopped")
	return nil
}
