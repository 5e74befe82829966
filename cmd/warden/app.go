package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/platinummonkey/warden/pkg/audit"
	"github.com/platinummonkey/warden/pkg/auth"
	"github.com/platinummonkey/warden/pkg/config"
	"github.com/platinummonkey/warden/pkg/database"
	"github.com/platinummonkey/warden/pkg/observability"
)

// app holds the components every command needs: configuration, logger,
// migrated store, audit trail and identity service
type app struct {
	cfg      *config.Config
	logger   *observability.Logger
	db       *database.DB
	redis    *redis.Client
	registry *prometheus.Registry
	metrics  *observability.Metrics
	trail    *audit.DBLogger
	recorder *audit.Recorder
	users    *auth.Service
	applied  []int

	closers []io.Closer
}

func bootstrap(ctx context.Context) (*app, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, err
	}

	a := &app{cfg: cfg}
	if cfg.Observability.LogFile != "" {
		var closer io.Closer
		a.logger, closer = observability.NewFileLogger(cfg.LogLevel(), observability.FileOptions{
			Path:       cfg.Observability.LogFile,
			MaxSizeMB:  100,
			MaxBackups: 5,
			MaxAgeDays: 30,
			Compress:   true,
		})
		a.closers = append(a.closers, closer)
	} else {
		a.logger = observability.NewLogger(cfg.LogLevel(), os.Stdout)
	}

	a.registry = prometheus.NewRegistry()
	a.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	a.metrics = observability.NewMetrics(a.registry)

	if err := a.openStore(ctx); err != nil {
		a.Close()
		return nil, err
	}
	if err := a.openAudit(); err != nil {
		a.Close()
		return nil, err
	}

	sessions, err := a.sessionStore(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.users = auth.NewService(a.db, sessions, a.recorder, a.logger, auth.Options{
		SessionTTL: cfg.Sessions.TTL,
		Metrics:    a.metrics,
	})

	return a, nil
}

func (a *app) openStore(ctx context.Context) error {
	dbCfg := a.cfg.Database
	db, err := database.Open(ctx, database.Config{
		Driver:          dbCfg.Driver,
		DSN:             dbCfg.DSN,
		MaxOpenConns:    dbCfg.MaxOpenConns,
		MaxIdleConns:    dbCfg.MaxIdleConns,
		ConnMaxLifetime: dbCfg.ConnMaxLifetime,
	})
	if err != nil {
		return err
	}
	a.db = db
	a.closers = append(a.closers, db)

	applied, err := db.Migrate(ctx)
	if err != nil {
		return err
	}
	a.applied = applied
	if len(applied) > 0 {
		a.logger.WithField("versions", applied).Info("Applied schema migrations")
	}
	return nil
}

func (a *app) openAudit() error {
	trail, err := audit.NewDBLogger(a.db)
	if err != nil {
		return err
	}
	a.trail = trail

	var sink audit.Logger = trail
	if path := a.cfg.Audit.FilePath; path != "" {
		file, err := audit.NewFileLogger(audit.FileLoggerConfig{
			Path:       path,
			MaxSizeMB:  a.cfg.Audit.MaxSizeMB,
			MaxBackups: a.cfg.Audit.MaxBackups,
			MaxAgeDays: a.cfg.Audit.MaxAgeDays,
			Compress:   true,
		})
		if err != nil {
			return err
		}
		sink = audit.NewMultiLogger(trail, file)
	}
	a.closers = append(a.closers, sink)

	a.recorder = audit.NewRecorder(sink, a.logger, a.metrics)
	return nil
}

func (a *app) sessionStore(ctx context.Context) (auth.SessionStore, error) {
	switch a.cfg.Sessions.Backend {
	case "sql", "":
		return auth.NewSQLSessionStore(a.db), nil
	case "redis":
		opts, err := redis.ParseURL(a.cfg.Sessions.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("invalid redis url: %w", err)
		}
		client := redis.NewClient(opts)
		a.closers = append(a.closers, client)
		if err := client.Ping(ctx).Err(); err != nil {
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		a.redis = client
		return auth.NewRedisSessionStore(client), nil
	default:
		return nil, fmt.Errorf("unsupported session backend %q", a.cfg.Sessions.Backend)
	}
}

// seedAdmin creates the bootstrap administrator on an empty store
func (a *app) seedAdmin(ctx context.Context) error {
	b := a.cfg.Bootstrap
	_, err := a.users.EnsureDefaultAdmin(ctx, b.AdminUsername, b.AdminEmail, b.AdminPassword)
	return err
}

// Close releases resources in reverse order of acquisition
func (a *app) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
