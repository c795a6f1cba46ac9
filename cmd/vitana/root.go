package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/vitanapos/vitana/internal/api"
	"github.com/vitanapos/vitana/internal/config"
	"github.com/vitanapos/vitana/internal/data"
	"github.com/vitanapos/vitana/internal/gateway"
	"github.com/vitanapos/vitana/internal/store"
	syncengine "github.com/vitanapos/vitana/internal/sync"
	"github.com/vitanapos/vitana/internal/worker"
)

// Version is set at build time via ldflags: -ldflags "-X main.Version=1.0.0"
var Version = "dev"

var rootCmd = &cobra.Command{
	Use:   "vitana",
	Short: "Vitana - Offline-first POS persistence service",
	RunE:  run,
}

func run(cmd *cobra.Command, args []string) error {
	// 1. Signal handling
	ctx, cancel := signal.NotifyContext(context.Background(),
		syscall.SIGTERM, syscall.SIGINT)
	defer cancel()

	// 2. Load configuration
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	slog.Info("configuration loaded")

	// 3. Initialize logger
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: parseLogLevel(cfg.Log.Level),
	}))
	slog.SetDefault(logger)
	slog.Info("logger initialized", "level", cfg.Log.Level)

	// 4. Initialize store (migrations, WAL mode)
	db, err := store.NewSQLiteStore(cfg.Database.Path)
	if err != nil {
		return err
	}
	slog.Info("store initialized", "path", cfg.Database.Path)

	// 5. Initialize backend gateway
	remote := gateway.New(gateway.Options{
		BaseURL:        cfg.Remote.BaseURL,
		APIKey:         cfg.Remote.APIKey,
		RequestTimeout: time.Duration(cfg.Remote.RequestTimeout),
		RetryAttempts:  uint64(cfg.Remote.RetryAttempts),
		RetryBaseDelay: time.Duration(cfg.Remote.RetryBaseDelay),
	})
	slog.Info("gateway initialized", "base_url", cfg.Remote.BaseURL)

	// 6. Initialize sync layer
	monitor := syncengine.NewMonitor(remote)
	engine := syncengine.NewEngine(db, remote, monitor, cfg.Sync.MaxRetries)
	passTimeout := time.Duration(cfg.Sync.PassTimeout)
	monitor.OnOnline(func() {
		// Drain the queue as soon as the backend comes back.
		go func() {
			flushCtx, flushCancel := context.WithTimeout(context.Background(), passTimeout)
			defer flushCancel()
			if _, err := engine.SyncAll(flushCtx); err != nil {
				slog.Error("reconnect sync failed", "error", err)
			}
		}()
	})
	svc := data.NewService(db, remote, engine, monitor, passTimeout)
	slog.Info("sync engine initialized", "max_retries", cfg.Sync.MaxRetries)

	// 7. Initialize HTTP router
	handler := api.NewHandler(svc, cfg.Auth.APIKey, Version)
	router := api.NewRouter(handler)
	slog.Info("router initialized")

	// 8. Configure HTTP server
	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout),
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout),
	}

	// 9. Worker lifecycle infrastructure
	var wg sync.WaitGroup
	connectivity := worker.NewConnectivityWorker(monitor,
		time.Duration(cfg.Sync.HealthCheck), time.Duration(cfg.Remote.RequestTimeout))
	coordinator := worker.NewSyncCoordinator(engine, svc, monitor,
		time.Duration(cfg.Sync.Interval), passTimeout)
	startWorker(ctx, &wg, "connectivity", connectivity.Run)
	startWorker(ctx, &wg, "sync-coordinator", coordinator.Run)

	// 10. Start HTTP server in goroutine
	go func() {
		slog.Info("server starting", "address", addr)
		// ErrServerClosed is the expected error when Shutdown() is called gracefully.
		// Any other error indicates an actual server failure that should trigger shutdown.
		if err := srv.ListenAndServe(); err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			cancel() // Trigger shutdown on server failure
		}
	}()

	// 11. Block until signal received
	<-ctx.Done()
	slog.Info("shutdown initiated")

	// 12. Graceful shutdown sequence
	shutdownCtx, shutdownCancel := context.WithTimeout(
		context.Background(),
		time.Duration(cfg.Server.ShutdownTimeout))
	defer shutdownCancel()

	// 12a. Stop HTTP server (drains in-flight requests)
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server shutdown error", "error", err)
	}

	// 12b. Wait for workers to complete
	wg.Wait()

	// 12c. Best-effort final flush so pending mutations survive fewer restarts
	if cfg.Sync.FlushOnClose && monitor.Online() {
		if _, err := engine.SyncAll(shutdownCtx); err != nil {
			slog.Error("final sync flush failed", "error", err)
		}
	}

	// 12d. Close store
	if err := db.Close(); err != nil {
		slog.Error("store close error", "error", err)
	}

	slog.Info("shutdown complete")
	return nil
}

func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// startWorker launches a background worker goroutine that respects context cancellation.
// Workers are tracked via WaitGroup for graceful shutdown.
func startWorker(ctx context.Context, wg *sync.WaitGroup, name string, fn func(ctx context.Context)) {
	wg.Add(1)
	go func() {
		defer wg.Done()
		slog.Info("worker started", "worker", name)
		fn(ctx)
		slog.Info("worker stopped", "worker", name)
	}()
}
