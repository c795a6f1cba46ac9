package worker

import (
	"context"
	"log/slog"
	"time"

	"github.com/vitanapos/vitana/internal/types"
)

// SyncRunner runs one sync pass.
type SyncRunner interface {
	SyncAll(ctx context.Context) (*types.SyncResult, error)
}

// PendingCounter reports how many mutations await confirmation.
type PendingCounter interface {
	PendingCount(ctx context.Context) (int, error)
}

// Connectivity reports backend reachability.
type Connectivity interface {
	Online() bool
}

// SyncCoordinator triggers periodic sync passes while the backend is
// reachable and work is pending. Concurrent triggers (reconnect callback,
// force sync, post-write flush) are collapsed by the engine's in-flight
// guard, so firing on a busy engine is harmless.
type SyncCoordinator struct {
	engine      SyncRunner
	pending     PendingCounter
	conn        Connectivity
	interval    time.Duration
	passTimeout time.Duration
}

// NewSyncCoordinator creates a coordinator that drains the queue every
// interval.
func NewSyncCoordinator(engine SyncRunner, pending PendingCounter, conn Connectivity, interval, passTimeout time.Duration) *SyncCoordinator {
	if passTimeout <= 0 {
		passTimeout = time.Minute
	}
	return &SyncCoordinator{
		engine:      engine,
		pending:     pending,
		conn:        conn,
		interval:    interval,
		passTimeout: passTimeout,
	}
}

// Run starts the coordinator loop. Returns when ctx is cancelled.
func (c *SyncCoordinator) Run(ctx context.Context) {
	slog.Info("sync schedule active",
		"component", "worker",
		"worker", "sync-coordinator",
		"interval", c.interval.String(),
	)

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.tick(ctx)
		}
	}
}

// tick runs one conditional pass: skip when offline or nothing pending.
func (c *SyncCoordinator) tick(ctx context.Context) {
	if !c.conn.Online() {
		return
	}

	count, err := c.pending.PendingCount(ctx)
	if err != nil {
		slog.Error("pending count failed",
			"component", "worker",
			"worker", "sync-coordinator",
			"error", err,
		)
		return
	}
	if count == 0 {
		return
	}

	passCtx, cancel := context.WithTimeout(ctx, c.passTimeout)
	defer cancel()

	if _, err := c.engine.SyncAll(passCtx); err != nil {
		slog.Error("scheduled sync pass failed",
			"component", "worker",
			"worker", "sync-coordinator",
			"error", err,
		)
	}
}
