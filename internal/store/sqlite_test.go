package store

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/vitanapos/vitana/internal/types"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	db, err := NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func testRecord(id, businessID string, action types.Action) types.Record {
	return types.Record{
		ID:         id,
		Type:       types.TypeProducts,
		BusinessID: businessID,
		Action:     action,
		Data:       json.RawMessage(`{"id":"` + id + `","name":"Coffee","price":9.9}`),
		UpdatedAt:  time.Now().UTC(),
	}
}

func TestStore_NewSQLiteStore(t *testing.T) {
	newTestStore(t)
}

func TestStore_PutGetRecord(t *testing.T) {
	db := newTestStore(t)
	ctx := context.Background()

	rec := testRecord("prod-1", "biz-1", types.ActionCreate)
	if err := db.PutRecord(ctx, rec); err != nil {
		t.Fatal(err)
	}

	got, err := db.GetRecord(ctx, types.TypeProducts, "prod-1")
	if err != nil {
		t.Fatal(err)
	}
	if got.ID != "prod-1" {
		t.Errorf("ID = %q, want %q", got.ID, "prod-1")
	}
	if got.BusinessID != "biz-1" {
		t.Errorf("BusinessID = %q, want %q", got.BusinessID, "biz-1")
	}
	if got.Action != types.ActionCreate {
		t.Errorf("Action = %q, want %q", got.Action, types.ActionCreate)
	}
	if string(got.Data) != string(rec.Data) {
		t.Errorf("Data = %s, want %s", got.Data, rec.Data)
	}
}

func TestStore_PutRecord_Overwrite(t *testing.T) {
	db := newTestStore(t)
	ctx := context.Background()

	if err := db.PutRecord(ctx, testRecord("prod-1", "biz-1", types.ActionCreate)); err != nil {
		t.Fatal(err)
	}

	updated := testRecord("prod-1", "biz-1", types.ActionUpdate)
	updated.Data = json.RawMessage(`{"id":"prod-1","name":"Espresso","price":12.5}`)
	if err := db.PutRecord(ctx, updated); err != nil {
		t.Fatal(err)
	}

	got, err := db.GetRecord(ctx, types.TypeProducts, "prod-1")
	if err != nil {
		t.Fatal(err)
	}
	if got.Action != types.ActionUpdate {
		t.Errorf("Action = %q, want %q", got.Action, types.ActionUpdate)
	}
	if string(got.Data) != string(updated.Data) {
		t.Errorf("Data = %s, want %s", got.Data, updated.Data)
	}

	records, err := db.ListByBusiness(ctx, types.TypeProducts, "biz-1")
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 1 {
		t.Errorf("len(records) = %d, want 1", len(records))
	}
}

func TestStore_GetRecord_NotFound(t *testing.T) {
	db := newTestStore(t)

	_, err := db.GetRecord(context.Background(), types.TypeProducts, "missing")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestStore_ListByBusiness_ExcludesDeleted(t *testing.T) {
	db := newTestStore(t)
	ctx := context.Background()

	if err := db.PutRecord(ctx, testRecord("prod-1", "biz-1", types.ActionCreate)); err != nil {
		t.Fatal(err)
	}
	if err := db.PutRecord(ctx, testRecord("prod-2", "biz-1", types.ActionDelete)); err != nil {
		t.Fatal(err)
	}
	if err := db.PutRecord(ctx, testRecord("prod-3", "biz-2", types.ActionCreate)); err != nil {
		t.Fatal(err)
	}

	records, err := db.ListByBusiness(ctx, types.TypeProducts, "biz-1")
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 1 {
		t.Fatalf("len(records) = %d, want 1", len(records))
	}
	if records[0].ID != "prod-1" {
		t.Errorf("ID = %q, want %q", records[0].ID, "prod-1")
	}
}

func TestStore_DeletedIDs(t *testing.T) {
	db := newTestStore(t)
	ctx := context.Background()

	if err := db.PutRecord(ctx, testRecord("prod-1", "biz-1", types.ActionCreate)); err != nil {
		t.Fatal(err)
	}
	if err := db.PutRecord(ctx, testRecord("prod-2", "biz-1", types.ActionDelete)); err != nil {
		t.Fatal(err)
	}

	ids, err := db.DeletedIDs(ctx, types.TypeProducts, "biz-1")
	if err != nil {
		t.Fatal(err)
	}
	if len(ids) != 1 || ids[0] != "prod-2" {
		t.Errorf("ids = %v, want [prod-2]", ids)
	}
}

func TestStore_Backup(t *testing.T) {
	db := newTestStore(t)
	ctx := context.Background()

	payload := json.RawMessage(`[{"id":"prod-1"},{"id":"prod-2"}]`)
	if err := db.PutBackup(ctx, types.TypeProducts, "biz-1", payload); err != nil {
		t.Fatal(err)
	}

	got, err := db.GetBackup(ctx, types.TypeProducts, "biz-1")
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != string(payload) {
		t.Errorf("backup = %s, want %s", got, payload)
	}

	// A fresh fetch replaces the previous snapshot
	refreshed := json.RawMessage(`[{"id":"prod-1"}]`)
	if err := db.PutBackup(ctx, types.TypeProducts, "biz-1", refreshed); err != nil {
		t.Fatal(err)
	}
	got, err = db.GetBackup(ctx, types.TypeProducts, "biz-1")
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != string(refreshed) {
		t.Errorf("backup = %s, want %s", got, refreshed)
	}
}

func TestStore_GetBackup_NotFound(t *testing.T) {
	db := newTestStore(t)

	_, err := db.GetBackup(context.Background(), types.TypeSales, "biz-1")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestStore_ClearBusiness(t *testing.T) {
	db := newTestStore(t)
	ctx := context.Background()

	if err := db.PutRecord(ctx, testRecord("prod-1", "biz-1", types.ActionCreate)); err != nil {
		t.Fatal(err)
	}
	if err := db.PutRecord(ctx, testRecord("prod-2", "biz-2", types.ActionCreate)); err != nil {
		t.Fatal(err)
	}
	if err := db.PutBackup(ctx, types.TypeProducts, "biz-1", json.RawMessage(`[]`)); err != nil {
		t.Fatal(err)
	}
	if err := db.Enqueue(ctx, testQueueItem("prod-1", "biz-1")); err != nil {
		t.Fatal(err)
	}

	if err := db.ClearBusiness(ctx, "biz-1"); err != nil {
		t.Fatal(err)
	}

	if _, err := db.GetRecord(ctx, types.TypeProducts, "prod-1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("record err = %v, want ErrNotFound", err)
	}
	if _, err := db.GetBackup(ctx, types.TypeProducts, "biz-1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("backup err = %v, want ErrNotFound", err)
	}
	count, err := db.PendingCount(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if count != 0 {
		t.Errorf("pending = %d, want 0", count)
	}

	// Other businesses untouched
	if _, err := db.GetRecord(ctx, types.TypeProducts, "prod-2"); err != nil {
		t.Errorf("unexpected error for other business: %v", err)
	}
}

func TestStore_SyncMeta(t *testing.T) {
	db := newTestStore(t)
	ctx := context.Background()

	if _, err := db.GetSyncMeta(ctx, "last_sync_at"); !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}

	if err := db.SetSyncMeta(ctx, "last_sync_at", "2026-01-02T15:04:05Z"); err != nil {
		t.Fatal(err)
	}
	got, err := db.GetSyncMeta(ctx, "last_sync_at")
	if err != nil {
		t.Fatal(err)
	}
	if got != "2026-01-02T15:04:05Z" {
		t.Errorf("value = %q, want %q", got, "2026-01-02T15:04:05Z")
	}

	// Overwrite
	if err := db.SetSyncMeta(ctx, "last_sync_at", "2026-01-03T00:00:00Z"); err != nil {
		t.Fatal(err)
	}
	got, err = db.GetSyncMeta(ctx, "last_sync_at")
	if err != nil {
		t.Fatal(err)
	}
	if got != "2026-01-03T00:00:00Z" {
		t.Errorf("value = %q, want %q", got, "2026-01-03T00:00:00Z")
	}
}
