// Package observability provides structured logging, Prometheus metrics,
// OpenTelemetry tracing, health checks and graceful shutdown.
//
// # Structured Logging
//
// The logger is backed by logrus and emits JSON or logfmt lines:
//
//	logger := observability.NewLoggerWithFormat(observability.InfoLevel, os.Stdout, true)
//	logger.WithField("user_id", 42).Info("login succeeded")
//
// Request-scoped loggers pick up request, user and trace ids:
//
//	observability.FromContext(r.Context()).Warn("token rejected")
//
// # Prometheus Metrics
//
//	registry := prometheus.NewRegistry()
//	metrics := observability.NewMetrics(registry)
//	metrics.RecordAuthEvent("login", "success")
//	router.Use(observability.HTTPMetricsMiddleware(metrics))
//	http.Handle("/metrics", observability.MetricsHandler(registry))
//
// All Record/Observe helpers are no-ops on a nil *Metrics.
//
// # Health Checks
//
//	checker := observability.NewHealthChecker(observability.HealthConfig{
//		Service: "patentguard",
//		DB:      db,
//		Redis:   redisCounter,
//	})
//
// A failing database makes the service unhealthy (503); a failing Redis
// only degrades it.
//
// # OpenTelemetry
//
//	providers, err := observability.InitOTel(ctx, observability.OTelConfig{
//		Enabled:     true,
//		Endpoint:    "otel-collector:4317",
//		ServiceName: "patentguard",
//	}, logger)
//	defer observability.ShutdownOTel(ctx, providers, logger)
//
// # Graceful Shutdown
//
//	sm := observability.NewShutdownManager(logger, 30*time.Second)
//	sm.AddServer("api", apiServer)
//	sm.RegisterShutdownFunc("store", func(ctx context.Context) error { return store.Close() })
//	err := sm.WaitForShutdown(ctx)
package observability
