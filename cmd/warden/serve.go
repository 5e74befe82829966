package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/platinummonkey/warden/pkg/api"
	"github.com/platinummonkey/warden/pkg/archive"
	"github.com/platinummonkey/warden/pkg/middleware"
	"github.com/platinummonkey/warden/pkg/observability"
	"github.com/platinummonkey/warden/pkg/projects"
	"github.com/platinummonkey/warden/pkg/rbac"
	"github.com/platinummonkey/warden/pkg/scanner"
	"github.com/platinummonkey/warden/pkg/storage"
)

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the health/metrics listener",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx)
		},
	}
}

func serve(ctx context.Context) error {
	a, err := bootstrap(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	cfg := a.cfg
	logger := a.logger

	if err := a.seedAdmin(ctx); err != nil {
		return fmt.Errorf("failed to seed administrator: %w", err)
	}

	otel, err := observability.InitOTel(ctx, observability.OTelConfig{
		Enabled:        cfg.Observability.OTelEnabled,
		Endpoint:       cfg.Observability.OTelEndpoint,
		ServiceName:    cfg.Observability.OTelServiceName,
		ServiceVersion: cfg.Observability.OTelServiceVersion,
		Insecure:       cfg.Observability.OTelInsecure,
		SampleRatio:    cfg.Observability.OTelSampleRatio,
	}, logger)
	if err != nil {
		return err
	}

	gate := rbac.NewGate(a.db, rbac.GateConfig{
		CacheTTL:  cfg.Access.MembershipCacheTTL,
		CacheSize: cfg.Access.MembershipCacheSize,
	})
	projectSvc := projects.NewService(a.db, gate, a.recorder, logger)

	artifacts, err := storage.New(ctx, storage.Config{
		Backend:        cfg.Artifacts.Backend,
		FilesystemRoot: cfg.Artifacts.Root,
		S3Endpoint:     cfg.Artifacts.S3Endpoint,
		S3Region:       cfg.Artifacts.S3Region,
		S3Bucket:       cfg.Artifacts.S3Bucket,
		S3Prefix:       cfg.Artifacts.S3Prefix,
		S3AccessKey:    cfg.Artifacts.S3AccessKey,
		S3SecretKey:    cfg.Artifacts.S3SecretKey,
		S3UsePathStyle: cfg.Artifacts.S3UsePathStyle,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize artifact store: %w", err)
	}

	runner := scanner.New(scanner.Config{
		Command:    cfg.Scanner.Command,
		Args:       cfg.Scanner.Args,
		WorkDir:    cfg.Scanner.WorkDir,
		OutputGlob: cfg.Scanner.OutputGlob,
		Timeout:    cfg.Scanner.Timeout,
	}, logger)

	archiveSvc := archive.NewService(a.db, projectSvc, gate, a.recorder, logger, archive.Options{
		Scanner:   runner,
		Artifacts: artifacts,
		Metrics:   a.metrics,
	})

	apiServer := api.NewServer(api.Services{
		Auth:     a.users,
		Projects: projectSvc,
		Archive:  archiveSvc,
		Audit:    a.trail,
	}, api.Options{
		Logger:         logger,
		Metrics:        a.metrics,
		LoginLimiter:   a.loginLimiter(ctx),
		TrustProxy:     cfg.Server.TrustProxy,
		MaxUploadBytes: cfg.Server.MaxUploadBytes,
		Tracing:        otel != nil,
	})

	httpServer := &http.Server{
		Addr:         net.JoinHostPort(cfg.Server.Host, cfg.Server.Port),
		Handler:      apiServer,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	checker := observability.NewHealthChecker(a.db.DB, a.redis, version)
	if artifacts != nil {
		checker.AddProbe("artifacts", false, artifacts.HealthCheck)
	}
	healthMux := http.NewServeMux()
	observability.RegisterHealthRoutes(healthMux, checker)
	if cfg.Observability.MetricsEnabled {
		observability.RegisterMetricsEndpoint(healthMux, a.registry)
	}
	healthServer := &http.Server{
		Addr:              net.JoinHostPort(cfg.Server.Host, cfg.Server.HealthPort),
		Handler:           healthMux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	shutdown := observability.NewShutdownManager(logger, cfg.Server.ShutdownTimeout)
	if otel != nil {
		shutdown.Register("opentelemetry", otel.Shutdown)
	}
	shutdown.Register("health server", healthServer.Shutdown)
	shutdown.Register("api server", httpServer.Shutdown)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.WithField("addr", httpServer.Addr).Info("Starting API server")
		return listen(httpServer)
	})
	g.Go(func() error {
		logger.WithField("addr", healthServer.Addr).Info("Starting health server")
		return listen(healthServer)
	})
	g.Go(func() error {
		ticker := time.NewTicker(15 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-ticker.C:
				a.metrics.RecordDBStats(a.db.Stats())
			}
		}
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down")
		return shutdown.Shutdown()
	})

	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info("Server stopped")
	return nil
}

// loginLimiter throttles POST /auth/login per client address. Redis-backed
// sessions imply several replicas, so the limit is shared through Redis too.
func (a *app) loginLimiter(ctx context.Context) middleware.Limiter {
	access := a.cfg.Access
	if access.LoginRateLimit == 0 {
		return nil
	}
	limits := &middleware.RateLimitConfig{
		RequestsPerWindow: access.LoginRateLimit,
		WindowDuration:    time.Minute,
		BurstSize:         access.LoginBurst,
	}
	if a.redis != nil {
		return middleware.NewDistributedRateLimiter(a.redis, limits, "warden:ratelimit:login")
	}
	limiter := middleware.NewRateLimiter(limits)
	limiter.StartCleanup(ctx)
	return limiter
}

func listen(srv *http.Server) error {
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("%s: %w", srv.Addr, err)
	}
	return nil
}
