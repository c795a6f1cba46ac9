// Package sync drains the local mutation queue against the backend
// gateway. One pass runs at a time; failed items are retried across
// passes up to a cap, then dropped.
package sync

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/vitanapos/vitana/internal/gateway"
	"github.com/vitanapos/vitana/internal/types"
)

// MetaLastSyncAt is the sync_meta key recording the completion time of
// the most recent pass.
const MetaLastSyncAt = "last_sync_at"

// Remote is the subset of the gateway the engine replays mutations
// through.
type Remote interface {
	Create(ctx context.Context, rt types.RecordType, payload json.RawMessage) error
	Update(ctx context.Context, rt types.RecordType, id string, payload json.RawMessage) error
	Delete(ctx context.Context, rt types.RecordType, id string) error
}

// QueueStore is the subset of the local store the engine needs.
// MarkSynced and IncrementRetry take the item's queued time so the
// update lands only on the exact snapshot the engine dispatched: a
// handler may replace a queue item while it is in flight, and the
// replacement must stay pending.
type QueueStore interface {
	Queue(ctx context.Context) ([]types.QueueItem, error)
	MarkSynced(ctx context.Context, id string, queuedAt time.Time) error
	IncrementRetry(ctx context.Context, id string, queuedAt time.Time) error
	CleanupQueue(ctx context.Context, maxRetries int) (int64, error)
	SetSyncMeta(ctx context.Context, key, value string) error
}

// Connectivity reports whether the backend is currently reachable.
// Injected so triggering logic is testable without real network state.
type Connectivity interface {
	Online() bool
}

// Engine drains the sync queue. Construct one per process and share it;
// the in-flight flag collapses concurrent triggers into a single pass.
type Engine struct {
	store      QueueStore
	remote     Remote
	conn       Connectivity
	maxRetries int

	inFlight atomic.Bool
}

// NewEngine creates an Engine. maxRetries bounds how many failed passes
// an item survives before being dropped.
func NewEngine(store QueueStore, remote Remote, conn Connectivity, maxRetries int) *Engine {
	if maxRetries < 1 {
		maxRetries = 3
	}
	return &Engine{
		store:      store,
		remote:     remote,
		conn:       conn,
		maxRetries: maxRetries,
	}
}

// Syncing reports whether a pass is currently in progress.
func (e *Engine) Syncing() bool {
	return e.inFlight.Load()
}

// SyncAll performs one pass over the queue. If offline, or another pass
// is already running, it returns immediately with Skipped set; the losing
// trigger is a no-op by design.
//
// Per-item failures never abort the pass: the item's retry counter is
// bumped and the pass continues. An item whose counter reaches the cap is
// removed by cleanup and will never be retried again; the mutation is
// lost and logged. This trade-off bounds queue growth.
func (e *Engine) SyncAll(ctx context.Context) (*types.SyncResult, error) {
	result := &types.SyncResult{}
	start := time.Now()
	defer func() { result.Duration = time.Since(start) }()

	if !e.conn.Online() {
		result.Skipped = true
		return result, nil
	}
	if !e.inFlight.CompareAndSwap(false, true) {
		result.Skipped = true
		return result, nil
	}
	defer e.inFlight.Store(false)

	items, err := e.store.Queue(ctx)
	if err != nil {
		return nil, fmt.Errorf("load queue: %w", err)
	}

	for _, item := range items {
		if item.Synced {
			continue
		}
		if ctx.Err() != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("pass aborted: %v", ctx.Err()))
			break
		}

		if err := e.dispatchItem(ctx, item); err != nil {
			e.recordFailure(ctx, item, err, result)
			continue
		}

		if err := e.store.MarkSynced(ctx, item.ID, item.Timestamp); err != nil {
			slog.Error("failed to mark item synced", "id", item.ID, "error", err)
			result.Errors = append(result.Errors, fmt.Sprintf("%s:%s: mark synced: %v", item.Type, item.ID, err))
			continue
		}
		result.Synced++
	}

	if _, err := e.store.CleanupQueue(ctx, e.maxRetries); err != nil {
		slog.Error("queue cleanup failed", "error", err)
		result.Errors = append(result.Errors, fmt.Sprintf("cleanup: %v", err))
	}

	if err := e.store.SetSyncMeta(ctx, MetaLastSyncAt, time.Now().UTC().Format(time.RFC3339Nano)); err != nil {
		slog.Warn("failed to record last sync time", "error", err)
	}

	slog.Info("sync pass completed",
		"component", "sync",
		"synced", result.Synced,
		"failed", result.Failed,
		"dropped", result.Dropped,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	return result, nil
}

// recordFailure bumps the item's retry counter and classifies the error.
// Network-unreachable and server-rejected failures are counted the same
// way: both consume a retry. A rejection the server will never accept is
// therefore bounded by the retry cap rather than surfaced immediately.
func (e *Engine) recordFailure(ctx context.Context, item types.QueueItem, cause error, result *types.SyncResult) {
	result.Failed++
	result.Errors = append(result.Errors, fmt.Sprintf("%s:%s: %v", item.Type, item.ID, cause))

	if err := e.store.IncrementRetry(ctx, item.ID, item.Timestamp); err != nil {
		slog.Error("failed to increment retry count", "id", item.ID, "error", err)
		return
	}

	class := "rejected"
	if gateway.IsUnreachable(cause) {
		class = "unreachable"
	}

	if item.RetryCount+1 >= e.maxRetries {
		result.Dropped++
		slog.Error("dropping mutation after retry cap",
			"component", "sync",
			"id", item.ID,
			"type", string(item.Type),
			"action", string(item.Action),
			"retries", item.RetryCount+1,
			"class", class,
			"error", cause,
		)
		return
	}

	slog.Warn("sync attempt failed",
		"component", "sync",
		"id", item.ID,
		"type", string(item.Type),
		"action", string(item.Action),
		"retries", item.RetryCount+1,
		"class", class,
		"error", cause,
	)
}
