package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	"github.com/intellium/patentguard/pkg/api"
	"github.com/intellium/patentguard/pkg/auth"
	"github.com/intellium/patentguard/pkg/config"
	"github.com/intellium/patentguard/pkg/middleware"
	"github.com/intellium/patentguard/pkg/observability"
	"github.com/intellium/patentguard/pkg/storage"
)

const (
	dbStatsInterval = 15 * time.Second
	redisKeyPrefix  = "patentguard:ratelimit"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger := observability.NewLoggerWithFormat(cfg.Observability.Level(), os.Stdout, cfg.Observability.JSONLogs)

	if err := run(context.Background(), cfg, logger); err != nil {
		logger.WithError(err).Error("PatentGuard API exited with error")
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logger *observability.Logger) error {
	logger.WithFields(map[string]interface{}{
		"environment": cfg.Environment,
		"storage":     cfg.Storage.Type,
		"rate_limit":  cfg.RateLimit.Backend,
	}).Info("Starting PatentGuard API")

	if cfg.GeneratedSecret {
		logger.Warn("PATENTGUARD_SECRET_KEY is not set; using a generated development key. Tokens will not survive a restart")
	}

	shutdown := observability.NewShutdownManager(logger, cfg.Server.ShutdownTimeout)

	otelProviders, err := observability.InitOTel(ctx, cfg.Observability.OTel(), logger)
	if err != nil {
		// Tracing is optional; keep serving without it
		logger.WithError(err).Warn("Failed to initialize OpenTelemetry")
	}
	shutdown.RegisterShutdownFunc("opentelemetry", func(ctx context.Context) error {
		return observability.ShutdownOTel(ctx, otelProviders, logger)
	})

	var (
		registry *prometheus.Registry
		metrics  *observability.Metrics
	)
	if cfg.Observability.MetricsEnabled {
		registry = prometheus.NewRegistry()
		registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		metrics = observability.NewMetrics(registry)
	}

	store, err := openStore(ctx, cfg.Storage, metrics, logger)
	if err != nil {
		return err
	}
	shutdown.RegisterShutdownFunc("store", func(context.Context) error {
		return store.Close()
	})

	var redisCounter *middleware.RedisCounter
	if cfg.RateLimit.Enabled && cfg.RateLimit.Backend == "redis" {
		redisClient, err := storage.NewRedisClient(ctx, cfg.Storage)
		if err != nil {
			_ = store.Close()
			return fmt.Errorf("failed to connect to redis: %w", err)
		}
		logger.Info("Connected to Redis for rate limiting")
		shutdown.RegisterShutdownFunc("redis", func(context.Context) error {
			return redisClient.Close()
		})
		redisCounter = middleware.NewRedisCounter(redisClient, redisKeyPrefix)
	}

	authService, err := newAuthService(cfg, store, logger, metrics)
	if err != nil {
		_ = shutdown.Shutdown(ctx)
		return err
	}

	if cfg.Auth.BootstrapEnabled() {
		user, created, err := authService.EnsureSuperuser(ctx, cfg.Auth.FirstSuperuserEmail, cfg.Auth.FirstSuperuserPassword)
		if err != nil {
			_ = shutdown.Shutdown(ctx)
			return fmt.Errorf("failed to bootstrap superuser: %w", err)
		}
		logger.WithFields(map[string]interface{}{
			"user_id": user.ID,
			"created": created,
		}).Info("Superuser bootstrap complete")
	}

	limiter, err := newRateLimiter(cfg, redisCounter, logger, metrics)
	if err != nil {
		_ = shutdown.Shutdown(ctx)
		return err
	}

	db := sqlHandle(store)
	healthCfg := observability.HealthConfig{
		Service: api.ServiceName,
		Version: cfg.Observability.OTelServiceVersion,
		DB:      db,
		Metrics: metrics,
	}
	if redisCounter != nil {
		healthCfg.Redis = redisCounter
	}
	health := observability.NewHealthChecker(healthCfg)

	server := api.NewServer(cfg, api.Options{
		Auth:        authService,
		RateLimiter: limiter,
		Health:      health,
		Logger:      logger,
		Metrics:     metrics,
		Registry:    registry,
	})

	apiServer := server.HTTPServer()
	healthServer := server.HealthHTTPServer()
	shutdown.AddServer("api", apiServer)
	shutdown.AddServer("health", healthServer)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		defer observability.RecoverToError(logger, "api server", &err)
		logger.Infof("API server listening on %s", apiServer.Addr)
		return serve(apiServer)
	})
	g.Go(func() (err error) {
		defer observability.RecoverToError(logger, "health server", &err)
		logger.Infof("Health server listening on %s", healthServer.Addr)
		return serve(healthServer)
	})
	if db != nil && metrics != nil {
		g.Go(func() error {
			defer observability.RecoverPanic(logger, "db stats")
			recordDBStats(gctx, db, metrics)
			return nil
		})
	}
	g.Go(func() error {
		return shutdown.WaitForShutdown(gctx)
	})

	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info("PatentGuard API stopped")
	return nil
}

func newAuthService(cfg *config.Config, store auth.UserStore, logger *observability.Logger, metrics *observability.Metrics) (*auth.Service, error) {
	hasher, err := auth.NewPasswordHasher(cfg.Auth.BcryptCost, logger, metrics)
	if err != nil {
		return nil, fmt.Errorf("failed to create password hasher: %w", err)
	}

	tokens, err := auth.NewTokenCodec(auth.TokenConfig{
		Secret:     []byte(cfg.Auth.SecretKey),
		AccessTTL:  cfg.Auth.AccessTokenTTL,
		RefreshTTL: cfg.Auth.RefreshTokenTTL,
		Leeway:     cfg.Auth.TokenLeeway,
	}, logger, metrics)
	if err != nil {
		return nil, fmt.Errorf("failed to create token codec: %w", err)
	}

	return auth.NewService(store, hasher, tokens, auth.NewAuditLogger(metrics)), nil
}

// newRateLimiter builds the limiter on redisCounter when it is set and on an
// in-process counter otherwise
func newRateLimiter(cfg *config.Config, redisCounter *middleware.RedisCounter, logger *observability.Logger, metrics *observability.Metrics) (*middleware.RateLimiter, error) {
	profiles, err := middleware.ParseProfiles(cfg.RateLimit.Profiles)
	if err != nil {
		return nil, err
	}

	var counter middleware.Counter
	if redisCounter != nil {
		counter = redisCounter
	} else {
		memCounter, err := middleware.NewMemoryCounter(cfg.RateLimit.MaxKeys)
		if err != nil {
			return nil, err
		}
		counter = memCounter
	}

	return middleware.NewRateLimiter(counter, middleware.RateLimiterConfig{
		Enabled:    cfg.RateLimit.Enabled,
		TrustProxy: cfg.RateLimit.TrustProxyHeaders,
		Backend:    cfg.RateLimit.Backend,
		Profiles:   profiles,
	}, logger, metrics)
}

func serve(srv *http.Server) error {
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server on %s failed: %w", srv.Addr, err)
	}
	return nil
}
