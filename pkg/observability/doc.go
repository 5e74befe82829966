// Package observability provides structured logging, Prometheus metrics, health
// checks and OpenTelemetry export for warden.
//
// # Structured Logging
//
//	logger := observability.NewLogger(observability.InfoLevel, os.Stdout)
//	logger.WithField("project_id", id).Info("Scan recorded")
//
// Loggers are logrus-backed and emit JSON lines. NewFileLogger adds a
// lumberjack-rotated file next to stdout.
//
// # Prometheus Metrics
//
//	metrics := observability.NewMetrics(registry)
//	metrics.ScansTotal.WithLabelValues("completed").Inc()
//
// # Health Checks
//
//	checker := observability.NewHealthChecker(db.DB, redisClient, version)
//	observability.RegisterHealthRoutes(serveMux, checker)
//
// # OpenTelemetry
//
//	providers, err := observability.InitOTel(ctx, cfg, logger)
//	defer providers.Shutdown(ctx)
package observability
