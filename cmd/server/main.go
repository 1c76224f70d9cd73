// Package main is the entry point for the caseflow server.
// It wires all dependencies together and starts the HTTP server.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/juridia/caseflow/internal/cases"
	"github.com/juridia/caseflow/internal/config"
	"github.com/juridia/caseflow/internal/observability"
	"github.com/juridia/caseflow/internal/store"
	"github.com/juridia/caseflow/internal/transport"
	"github.com/juridia/caseflow/internal/workflow"
)

// Build-time variables set via ldflags:
//
//	go build -ldflags "-X main.version=1.0.0 -X main.commit=abc1234"
var (
	version = "dev"
	commit  = "unknown"
)

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "config.yaml", "path to configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		return 1
	}

	logger, err := observability.NewLogger(cfg.Observability)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger error: %v\n", err)
		return 1
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	metrics := observability.InitMetrics(prometheus.DefaultRegisterer)

	st, ready, closeStore, err := buildStore(ctx, cfg.Store, logger)
	if err != nil {
		logger.Error("store initialization failed", zap.Error(err))
		return 1
	}

	allocator := cases.NewAllocator(st, logger, metrics, cfg.Workflow.AllocationMaxAttempts)
	resolver := workflow.NewResolver(st)
	materializer := workflow.NewMaterializer(st, logger, cfg.Workflow.TaskGracePeriod)
	coordinator := cases.NewCoordinator(st, allocator, resolver, materializer, logger, metrics)
	templates := workflow.NewTemplateService(st, logger)

	router := transport.NewRouter(transport.Dependencies{
		Config:      cfg,
		Logger:      logger,
		Metrics:     metrics,
		Coordinator: coordinator,
		Templates:   templates,
		Ready:       ready,
	})

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	logger.Info("server started",
		zap.Int("port", cfg.Server.Port),
		zap.String("version", version),
		zap.String("commit", commit),
		zap.String("store_driver", cfg.Store.Driver),
	)

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown initiated")
	case err := <-errCh:
		logger.Error("server error", zap.Error(err))
		return 1
	}

	shutdownTimeout := cfg.Server.ShutdownTimeout
	if shutdownTimeout == 0 {
		shutdownTimeout = 30 * time.Second
	}
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown error", zap.Error(err))
	}

	if closeStore != nil {
		closeStore()
	}

	logger.Info("shutdown complete")
	return 0
}

// buildStore creates the persistence layer based on config. The readiness
// check pings the database for the postgres driver and is a no-op for the
// in-memory store.
func buildStore(ctx context.Context, cfg config.StoreConfig, logger *zap.Logger) (store.Store, func() error, func(), error) {
	switch cfg.Driver {
	case "memory", "":
		logger.Info("using in-memory store")
		return store.NewMemoryStore(), nil, nil, nil
	case "postgres":
		dsn := os.Getenv(cfg.DSNEnv)
		if dsn == "" {
			return nil, nil, nil, fmt.Errorf("store: %s environment variable not set", cfg.DSNEnv)
		}

		poolCfg, err := pgxpool.ParseConfig(dsn)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("store: parse DSN: %w", err)
		}
		poolCfg.MaxConns = int32(cfg.MaxOpenConns)
		poolCfg.MinConns = int32(cfg.MinIdleConns)
		poolCfg.MaxConnLifetime = cfg.ConnMaxLifetime

		pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("store: connect: %w", err)
		}
		if err := pool.Ping(ctx); err != nil {
			pool.Close()
			return nil, nil, nil, fmt.Errorf("store: ping: %w", err)
		}

		pg := store.NewPgStore(pool)
		if err := pg.EnsureSchema(ctx); err != nil {
			pool.Close()
			return nil, nil, nil, err
		}

		ready := func() error {
			pingCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			return pool.Ping(pingCtx)
		}
		return pg, ready, pool.Close, nil
	default:
		return nil, nil, nil, fmt.Errorf("unsupported store driver: %q", cfg.Driver)
	}
}
