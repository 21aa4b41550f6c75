package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/medclinic/clinic/internal/config"
	"github.com/medclinic/clinic/internal/domain/appointment"
	"github.com/medclinic/clinic/internal/domain/catalog"
	"github.com/medclinic/clinic/internal/domain/education"
	"github.com/medclinic/clinic/internal/domain/news"
	"github.com/medclinic/clinic/internal/domain/user"
	"github.com/medclinic/clinic/internal/platform/auth"
	"github.com/medclinic/clinic/internal/platform/cache"
	"github.com/medclinic/clinic/internal/platform/db"
	"github.com/medclinic/clinic/internal/platform/keylock"
	"github.com/medclinic/clinic/internal/platform/middleware"
	"github.com/medclinic/clinic/internal/platform/outbox"
	"github.com/medclinic/clinic/internal/platform/telemetry"
)

const serviceName = "clinic-server"

var version = "0.1.0"

// backends holds the stores that live in Redis when it is configured and in
// process memory otherwise.
type backends struct {
	cache       cache.Store
	revocations auth.RevocationStore
	loginWindow middleware.WindowCounter
	checks      []db.Check
}

func newBackends(rdb *redis.Client, cfg *config.Config) backends {
	if rdb == nil {
		return backends{
			cache:       cache.NewMemoryStore(),
			revocations: auth.NewMemoryRevocationStore(),
			loginWindow: middleware.NewMemoryWindowCounter(cfg.LoginRateWindow),
		}
	}
	return backends{
		cache:       cache.NewRedisStore(rdb, "clinic:cache:"),
		revocations: auth.NewRedisRevocationStore(rdb, "clinic:revoked:"),
		loginWindow: middleware.NewRedisWindowCounter(rdb, cfg.LoginRateWindow, "clinic:ratelimit:"),
		checks: []db.Check{{
			Name: "redis",
			Ping: func(ctx context.Context) error { return rdb.Ping(ctx).Err() },
		}},
	}
}

func rateLimitConfig(cfg *config.Config) middleware.RateLimitConfig {
	rl := middleware.RateLimitConfig{
		RequestsPerSecond: cfg.RateLimitRPS,
		BurstSize:         cfg.RateLimitBurst,
	}
	if rl.RequestsPerSecond <= 0 {
		return middleware.DefaultRateLimitConfig()
	}
	if rl.BurstSize <= 0 {
		rl.BurstSize = int(rl.RequestsPerSecond)
	}
	return rl
}

func corsConfig(cfg *config.Config) echomw.CORSConfig {
	return echomw.CORSConfig{
		AllowOrigins:  cfg.CORSOrigins,
		AllowMethods:  []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete},
		AllowHeaders:  []string{"Authorization", "Content-Type", "X-Request-ID"},
		ExposeHeaders: []string{"X-Request-ID", "X-RateLimit-Limit", "X-RateLimit-Remaining", "Retry-After"},
	}
}

func runServer() error {
	// Config
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	logger := newLogger(cfg.Env)
	if cfg.IsDev() {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}

	ctx := context.Background()

	// Tracing
	shutdownTracing, err := telemetry.SetupTracing(ctx, telemetry.TracingConfig{
		Enabled:        cfg.OTelEnabled,
		ServiceName:    serviceName,
		ServiceVersion: version,
		Environment:    cfg.Env,
		OTLPEndpoint:   cfg.OTelEndpoint,
		SampleRatio:    cfg.OTelSamplingRatio,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to set up tracing")
	}

	// Database
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()
	logger.Info().Msg("connected to database")

	// Redis is optional; without it every shared store falls back to memory.
	var rdb *redis.Client
	if cfg.RedisURL != "" {
		rdb, err = cache.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect to redis")
		}
		defer rdb.Close()
		logger.Info().Msg("connected to redis")
	} else {
		logger.Warn().Msg("REDIS_URL not set; using in-memory cache, rate limits and revocations")
	}
	be := newBackends(rdb, cfg)

	metrics := telemetry.NewMetrics("clinic")
	tx := db.NewTransactor(pool)
	events := outbox.NewRepository(pool)

	// Domain services
	tokens := auth.NewTokenIssuer([]byte(cfg.JWTSecret), cfg.JWTIssuer, cfg.JWTTTL)
	userSvc := user.NewService(user.NewRepoPG(pool), tokens, be.revocations)
	apptSvc := appointment.NewService(appointment.NewRepoPG(pool), tx, userSvc, events, keylock.New(), metrics)
	catalogSvc := catalog.NewService(catalog.NewRepoPG(pool), be.cache, cfg.CatalogCacheTTL, metrics, logger)
	newsSvc := news.NewService(news.NewRepoPG(pool))
	eduSvc := education.NewService(education.NewRepoPG(pool))

	// Echo server
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Global middleware
	e.Use(middleware.Recovery(logger))
	e.Use(echo.WrapMiddleware(otelhttp.NewMiddleware(serviceName)))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(middleware.SecurityHeaders())
	e.Use(echomw.CORSWithConfig(corsConfig(cfg)))
	e.Use(middleware.BodyLimit(cfg.BodyLimit))
	e.Use(middleware.RequestTimeout(cfg.RequestTimeout))
	e.Use(metrics.Middleware())

	// Ops endpoints
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"version": version,
		})
	})
	e.GET("/health/db", db.HealthHandler(pool, be.checks...))
	e.GET("/metrics", metrics.Handler())

	// API group
	apiV1 := e.Group("/api/v1")
	apiV1.Use(middleware.RateLimit(rateLimitConfig(cfg)))
	apiV1.Use(auth.JWTMiddleware(auth.JWTConfig{
		Issuer:      cfg.JWTIssuer,
		SigningKey:  []byte(cfg.JWTSecret),
		Revocations: be.revocations,
		Skipper:     auth.AuthSkipper,
		Logger:      logger,
	}))

	loginLimit := middleware.WindowLimit(be.loginWindow, cfg.LoginRateLimit, "login", logger)
	user.NewHandler(userSvc, loginLimit).RegisterRoutes(apiV1)
	appointment.NewHandler(apptSvc).RegisterRoutes(apiV1)
	catalog.NewHandler(catalogSvc).RegisterRoutes(apiV1)
	news.NewHandler(newsSvc).RegisterRoutes(apiV1)
	education.NewHandler(eduSvc).RegisterRoutes(apiV1)

	// Outbox relay
	pubCtx, stopPublisher := context.WithCancel(context.Background())
	defer stopPublisher()
	pubDone := make(chan struct{})
	if brokers := cfg.Brokers(); len(brokers) > 0 {
		publisher := outbox.NewPublisher(events, tx, outbox.NewKafkaWriter(brokers, cfg.KafkaTopic), logger, metrics, outbox.PublisherConfig{
			Brokers:   brokers,
			Topic:     cfg.KafkaTopic,
			PollEvery: cfg.OutboxPollEvery,
			BatchSize: cfg.OutboxBatchSize,
		})
		go func() {
			defer close(pubDone)
			publisher.Run(pubCtx)
		}()
	} else {
		close(pubDone)
		pending, err := events.Pending(ctx)
		if err != nil {
			logger.Warn().Err(err).Msg("failed to count pending outbox events")
		}
		logger.Warn().Int64("pending", pending).Msg("KAFKA_BROKERS not set; outbox events are stored but not published")
	}

	// Graceful shutdown
	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Str("env", cfg.Env).Msg("starting server")
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("server shutdown failed")
	}

	stopPublisher()
	select {
	case <-pubDone:
	case <-shutdownCtx.Done():
		logger.Warn().Msg("outbox publisher did not stop in time")
	}

	if err := shutdownTracing(shutdownCtx); err != nil {
		logger.Warn().Err(err).Msg("tracer shutdown failed")
	}
	logger.Info().Msg("server stopped")
	return nil
}
