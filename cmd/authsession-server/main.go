// Command authsession-server serves the session API over HTTP.
//
// Configuration comes from an optional .env file and AUTHSESSION_* variables
// (see authsession.LoadConfig). Without AUTHSESSION_DATABASE_URL accounts are
// kept in memory.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/swipewise/authsession"
	"github.com/swipewise/authsession/account"
	"github.com/swipewise/authsession/internal/httpapi"
	"github.com/swipewise/authsession/internal/observability"
	"github.com/swipewise/authsession/metrics/export/prometheus"
	"github.com/swipewise/authsession/middleware"
)

var version = "dev"

func main() {
	envFile := flag.String("env", "", "dotenv file to load before reading AUTHSESSION_* variables")
	flag.Parse()

	if err := run(*envFile); err != nil {
		fmt.Fprintf(os.Stderr, "authsession-server: %v\n", err)
		os.Exit(1)
	}
}

func run(envFile string) error {
	cfg, err := authsession.LoadConfig(envFile)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	logger := observability.NewLogger(os.Stdout, cfg.Observability.LogLevel, cfg.Observability.LogFormat)

	if err := observability.InitSentry(cfg.Observability.SentryDSN, cfg.Observability.Environment, version); err != nil {
		logger.Error(context.Background(), "init_sentry_failed", "error", err)
	}
	defer observability.FlushSentry()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer rdb.Close()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping: %w", err)
	}

	accounts, closeAccounts, err := openAccounts(ctx, cfg.Database, logger)
	if err != nil {
		return err
	}
	defer closeAccounts()

	builder := authsession.New().
		WithConfig(cfg).
		WithRedis(rdb).
		WithAccounts(accounts).
		WithLogger(logger)

	if cfg.Audit.Enabled {
		if len(cfg.Observability.KafkaBrokers) > 0 {
			sink := authsession.NewKafkaAuditSink(cfg.Observability.KafkaBrokers, cfg.Observability.KafkaTopic)
			// Runs after engine.Close, which drains the dispatcher into the sink.
			defer func() {
				if err := sink.Close(); err != nil {
					logger.Warn(context.Background(), "kafka_sink_close_failed", "error", err)
				}
			}()
			builder = builder.WithAuditSink(sink)
		} else {
			builder = builder.WithAuditSink(authsession.NewJSONAuditSink(os.Stdout))
		}
	}

	engine, err := builder.Build()
	if err != nil {
		return fmt.Errorf("build engine: %w", err)
	}
	defer engine.Close()

	srv := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           newHandler(engine, cfg, logger),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	logger.Info(ctx, "server_start", "addr", cfg.HTTP.Addr, "version", version)

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info(context.Background(), "server_stop", "reason", "signal")
	case err := <-errCh:
		return fmt.Errorf("listen: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	logger.Info(shutdownCtx, "server_stopped")
	return nil
}

// newHandler assembles Recover, RequestLogging, the gate and the routes, plus
// /metrics outside the gate.
func newHandler(engine *authsession.Engine, cfg authsession.Config, logger *observability.SlogLogger) http.Handler {
	gate := middleware.NewGate(engine, middleware.WithExclusions(cfg.HTTP.Exclusions...))
	api := httpapi.NewHandler(engine, cfg.HTTP.BasePath, httpapi.WithLogger(logger))

	root := http.NewServeMux()
	root.Handle("/", gate.Middleware(api.Routes()))
	if cfg.Metrics.Enabled {
		root.Handle("GET /metrics", prometheus.NewExporter(engine).Handler())
	}
	return observability.Recover(logger, observability.RequestLogging(logger, root))
}

func openAccounts(ctx context.Context, cfg authsession.DatabaseConfig, logger *observability.SlogLogger) (authsession.AccountStore, func(), error) {
	if cfg.URL == "" {
		logger.Warn(ctx, "database_disabled", "accounts", "memory")
		return account.NewMemoryStore(), func() {}, nil
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, nil, fmt.Errorf("parse database url: %w", err)
	}
	if cfg.MaxConnections > 0 {
		poolCfg.MaxConns = int32(cfg.MaxConnections)
	}
	if cfg.MinConnections > 0 {
		poolCfg.MinConns = int32(cfg.MinConnections)
	}
	if cfg.ConnMaxLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.ConnMaxLifetime
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, nil, fmt.Errorf("connect database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("ping database: %w", err)
	}
	if cfg.AutoMigrate {
		if err := account.Migrate(ctx, pool); err != nil {
			pool.Close()
			return nil, nil, err
		}
	}

	store, err := account.NewPostgresStore(pool)
	if err != nil {
		pool.Close()
		return nil, nil, err
	}
	return store, pool.Close, nil
}
