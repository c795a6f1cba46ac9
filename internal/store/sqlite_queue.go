package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/vitanapos/vitana/internal/types"
)

// Enqueue adds a pending mutation to the sync queue. The record id is the
// primary key, so a new mutation for an already-queued id replaces the
// previous entry (last write wins locally). The replacement keeps the
// invariant of at most one live queue item per record.
func (s *SQLiteStore) Enqueue(ctx context.Context, item types.QueueItem) error {
	if item.Timestamp.IsZero() {
		item.Timestamp = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO sync_queue (record_id, record_type, action, payload, business_id, queued_at, synced, retry_count)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, item.ID, string(item.Type), string(item.Action), string(item.Data), item.BusinessID,
		item.Timestamp.Format(time.RFC3339Nano), boolToInt(item.Synced), item.RetryCount)
	if err != nil {
		return fmt.Errorf("enqueue: %w", err)
	}
	return nil
}

// Queue returns all queue items in enqueue order.
func (s *SQLiteStore) Queue(ctx context.Context) ([]types.QueueItem, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT record_id, record_type, action, payload, business_id, queued_at, synced, retry_count
		FROM sync_queue
		ORDER BY queued_at ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query sync queue: %w", err)
	}
	defer rows.Close()

	var items []types.QueueItem
	for rows.Next() {
		var item types.QueueItem
		var rt, action, payload, queuedAt string
		var synced int

		if err := rows.Scan(&item.ID, &rt, &action, &payload, &item.BusinessID, &queuedAt, &synced, &item.RetryCount); err != nil {
			return nil, fmt.Errorf("scan queue item: %w", err)
		}

		item.Type = types.RecordType(rt)
		item.Action = types.Action(action)
		item.Data = json.RawMessage(payload)
		item.Synced = synced != 0

		t, parseErr := time.Parse(time.RFC3339Nano, queuedAt)
		if parseErr != nil {
			slog.Warn("sync_queue: failed to parse queued_at", "value", queuedAt, "error", parseErr)
		} else {
			item.Timestamp = t
		}

		items = append(items, item)
	}
	return items, rows.Err()
}

// GetQueueItem returns the live queue item for a record id, or
// ErrNotFound.
func (s *SQLiteStore) GetQueueItem(ctx context.Context, id string) (*types.QueueItem, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT record_id, record_type, action, payload, business_id, queued_at, synced, retry_count
		FROM sync_queue
		WHERE record_id = ?
	`, id)

	var item types.QueueItem
	var rt, action, payload, queuedAt string
	var synced int

	err := row.Scan(&item.ID, &rt, &action, &payload, &item.BusinessID, &queuedAt, &synced, &item.RetryCount)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get queue item: %w", err)
	}

	item.Type = types.RecordType(rt)
	item.Action = types.Action(action)
	item.Data = json.RawMessage(payload)
	item.Synced = synced != 0
	if t, parseErr := time.Parse(time.RFC3339Nano, queuedAt); parseErr == nil {
		item.Timestamp = t
	}

	return &item, nil
}

// MarkSynced flags a queue item as confirmed by the remote; it becomes
// eligible for cleanup. The update is conditional on queuedAt so that a
// replacement enqueued while its predecessor was in flight is never
// marked off the back of the predecessor's confirmation.
func (s *SQLiteStore) MarkSynced(ctx context.Context, id string, queuedAt time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE sync_queue SET synced = 1 WHERE record_id = ? AND queued_at = ?
	`, id, queuedAt.Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("mark synced: %w", err)
	}
	return nil
}

// IncrementRetry bumps the retry counter of a queue item after a failed
// sync attempt. Conditional on queuedAt for the same reason as
// MarkSynced: a replacement starts with a fresh retry budget and must
// not inherit its predecessor's failures.
func (s *SQLiteStore) IncrementRetry(ctx context.Context, id string, queuedAt time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE sync_queue SET retry_count = retry_count + 1 WHERE record_id = ? AND queued_at = ?
	`, id, queuedAt.Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("increment retry: %w", err)
	}
	return nil
}

// CleanupQueue removes queue items that reached a terminal state: either
// confirmed by the remote, or past the retry cap. Items past the cap are
// dropped rather than retried forever; this bounds queue growth at the
// cost of losing the mutation.
// Returns the number of removed items.
func (s *SQLiteStore) CleanupQueue(ctx context.Context, maxRetries int) (int64, error) {
	result, err := s.db.ExecContext(ctx, `
		DELETE FROM sync_queue WHERE synced = 1 OR retry_count >= ?
	`, maxRetries)
	if err != nil {
		return 0, fmt.Errorf("cleanup queue: %w", err)
	}
	return result.RowsAffected()
}

// PendingIDs returns the record ids of a type with a live unsynced queue
// item, scoped to a business. Used to decide which local records may
// shadow a fresh server listing.
func (s *SQLiteStore) PendingIDs(ctx context.Context, rt types.RecordType, businessID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT record_id FROM sync_queue
		WHERE synced = 0 AND record_type = ? AND business_id = ?
	`, string(rt), businessID)
	if err != nil {
		return nil, fmt.Errorf("query pending ids: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan pending id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// PendingCount returns the number of queue items not yet confirmed by the
// remote.
func (s *SQLiteStore) PendingCount(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM sync_queue WHERE synced = 0
	`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("pending count: %w", err)
	}
	return count, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
