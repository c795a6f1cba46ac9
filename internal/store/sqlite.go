package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/vitanapos/vitana/internal/types"
	_ "modernc.org/sqlite"
)

// SQLiteStore is the local record store and sync queue. All POS writes
// land here first; the sync engine drains the queue against the remote
// later. Reads served from this store are the durable source of truth
// for the front-end while offline.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLiteStore instance.
// It initializes the database with WAL mode, applies pragmas, and runs migrations.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	// Ensure parent directory exists
	if dir := filepath.Dir(dbPath); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := enablePragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable pragmas: %w", err)
	}

	if err := RunMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// enablePragmas sets SQLite pragmas for optimal performance and safety.
func enablePragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
		"PRAGMA synchronous=NORMAL",
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("execute %s: %w", pragma, err)
		}
	}

	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// PutRecord stores or overwrites a single record keyed by type+id.
func (s *SQLiteStore) PutRecord(ctx context.Context, rec types.Record) error {
	if rec.UpdatedAt.IsZero() {
		rec.UpdatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO records (record_type, record_id, business_id, action, payload, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, string(rec.Type), rec.ID, rec.BusinessID, string(rec.Action), string(rec.Data), rec.UpdatedAt.Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("put record: %w", err)
	}
	return nil
}

// GetRecord retrieves a record by type and id. Deleted records are still
// returned; callers filter on Action where it matters.
func (s *SQLiteStore) GetRecord(ctx context.Context, rt types.RecordType, id string) (*types.Record, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT record_type, record_id, business_id, action, payload, updated_at
		FROM records
		WHERE record_type = ? AND record_id = ?
	`, string(rt), id)

	rec, err := scanRecord(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scan record: %w", err)
	}
	return rec, nil
}

// ListByBusiness returns all records of a type scoped to a business,
// excluding records whose most recent action was a delete.
func (s *SQLiteStore) ListByBusiness(ctx context.Context, rt types.RecordType, businessID string) ([]types.Record, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT record_type, record_id, business_id, action, payload, updated_at
		FROM records
		WHERE record_type = ? AND business_id = ? AND action != ?
		ORDER BY updated_at ASC
	`, string(rt), businessID, string(types.ActionDelete))
	if err != nil {
		return nil, fmt.Errorf("query records: %w", err)
	}
	defer rows.Close()

	var records []types.Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		records = append(records, *rec)
	}
	return records, rows.Err()
}

// DeletedIDs returns the ids of records whose most recent local action
// was a delete. Used to drop tombstoned entries from bulk listings.
func (s *SQLiteStore) DeletedIDs(ctx context.Context, rt types.RecordType, businessID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT record_id FROM records
		WHERE record_type = ? AND business_id = ? AND action = ?
	`, string(rt), businessID, string(types.ActionDelete))
	if err != nil {
		return nil, fmt.Errorf("query deleted ids: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan deleted id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// PutBackup stores the last known full server listing for a type. Used as
// the primary fallback when the remote is unreachable.
func (s *SQLiteStore) PutBackup(ctx context.Context, rt types.RecordType, businessID string, payload json.RawMessage) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO backups (record_type, business_id, payload, fetched_at)
		VALUES (?, ?, ?, ?)
	`, string(rt), businessID, string(payload), time.Now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("put backup: %w", err)
	}
	return nil
}

// GetBackup returns the stored bulk snapshot for a type, or ErrNotFound.
func (s *SQLiteStore) GetBackup(ctx context.Context, rt types.RecordType, businessID string) (json.RawMessage, error) {
	var payload string
	err := s.db.QueryRowContext(ctx, `
		SELECT payload FROM backups WHERE record_type = ? AND business_id = ?
	`, string(rt), businessID).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get backup: %w", err)
	}
	return json.RawMessage(payload), nil
}

// ClearBusiness removes every record, backup, and queue item scoped to a
// business id. Used for logout/reset flows.
func (s *SQLiteStore) ClearBusiness(ctx context.Context, businessID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, stmt := range []string{
		`DELETE FROM records WHERE business_id = ?`,
		`DELETE FROM backups WHERE business_id = ?`,
		`DELETE FROM sync_queue WHERE business_id = ?`,
	} {
		if _, err := tx.ExecContext(ctx, stmt, businessID); err != nil {
			return fmt.Errorf("clear business: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// GetSyncMeta retrieves a sync metadata value by key.
func (s *SQLiteStore) GetSyncMeta(ctx context.Context, key string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `
		SELECT value FROM sync_meta WHERE key = ?
	`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("sync meta key %q: %w", key, ErrNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("get sync meta: %w", err)
	}
	return value, nil
}

// SetSyncMeta sets a sync metadata value.
func (s *SQLiteStore) SetSyncMeta(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO sync_meta (key, value) VALUES (?, ?)
	`, key, value)
	if err != nil {
		return fmt.Errorf("set sync meta: %w", err)
	}
	return nil
}

// scanRecord scans a row into a Record, parsing the stored timestamp.
func scanRecord(scanner interface{ Scan(...any) error }) (*types.Record, error) {
	var rec types.Record
	var rt, action, payload, updatedAt string

	if err := scanner.Scan(&rt, &rec.ID, &rec.BusinessID, &action, &payload, &updatedAt); err != nil {
		return nil, err
	}

	rec.Type = types.RecordType(rt)
	rec.Action = types.Action(action)
	rec.Data = json.RawMessage(payload)

	t, err := time.Parse(time.RFC3339Nano, updatedAt)
	if err != nil {
		slog.Warn("records: failed to parse updated_at", "value", updatedAt, "error", err)
	} else {
		rec.UpdatedAt = t
	}

	return &rec, nil
}
