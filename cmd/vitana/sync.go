package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/vitanapos/vitana/internal/config"
	"github.com/vitanapos/vitana/internal/gateway"
	"github.com/vitanapos/vitana/internal/store"
	syncengine "github.com/vitanapos/vitana/internal/sync"
)

var syncJSONOutput bool

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Run a single sync pass and exit",
	Long:  "Drain the pending mutation queue against the backend without starting the server.",
	RunE:  runSync,
}

func init() {
	syncCmd.Flags().BoolVar(&syncJSONOutput, "json", false, "Output in JSON format")
	rootCmd.AddCommand(syncCmd)
}

func runSync(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	// One-shot runs keep log noise out of the result output.
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelWarn,
	})))

	db, err := store.NewSQLiteStore(cfg.Database.Path)
	if err != nil {
		return err
	}
	defer db.Close()

	remote := gateway.New(gateway.Options{
		BaseURL:        cfg.Remote.BaseURL,
		APIKey:         cfg.Remote.APIKey,
		RequestTimeout: time.Duration(cfg.Remote.RequestTimeout),
		RetryAttempts:  uint64(cfg.Remote.RetryAttempts),
		RetryBaseDelay: time.Duration(cfg.Remote.RetryBaseDelay),
	})

	ctx, cancel := context.WithTimeout(cmd.Context(), time.Duration(cfg.Sync.PassTimeout))
	defer cancel()

	monitor := syncengine.NewMonitor(remote)
	if !monitor.Check(ctx) {
		return fmt.Errorf("backend unreachable: %s", cfg.Remote.BaseURL)
	}

	engine := syncengine.NewEngine(db, remote, monitor, cfg.Sync.MaxRetries)
	result, err := engine.SyncAll(ctx)
	if err != nil {
		return err
	}

	if syncJSONOutput {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "synced: %d  failed: %d  dropped: %d  (%s)\n",
		result.Synced, result.Failed, result.Dropped, result.Duration)
	return nil
}
