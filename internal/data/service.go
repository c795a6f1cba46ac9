// Package data is the persistence facade the local API talks to. Writes
// are applied optimistically: they land in the local store and the sync
// queue, and the call returns as soon as the record is durable locally.
// Server confirmation happens later via the sync engine.
package data

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/vitanapos/vitana/internal/store"
	syncengine "github.com/vitanapos/vitana/internal/sync"
	"github.com/vitanapos/vitana/internal/types"
)

// Store is the local persistence surface the facade writes through.
type Store interface {
	PutRecord(ctx context.Context, rec types.Record) error
	GetRecord(ctx context.Context, rt types.RecordType, id string) (*types.Record, error)
	ListByBusiness(ctx context.Context, rt types.RecordType, businessID string) ([]types.Record, error)
	DeletedIDs(ctx context.Context, rt types.RecordType, businessID string) ([]string, error)
	PendingIDs(ctx context.Context, rt types.RecordType, businessID string) ([]string, error)
	PutBackup(ctx context.Context, rt types.RecordType, businessID string, payload json.RawMessage) error
	GetBackup(ctx context.Context, rt types.RecordType, businessID string) (json.RawMessage, error)
	ClearBusiness(ctx context.Context, businessID string) error
	Enqueue(ctx context.Context, item types.QueueItem) error
	GetQueueItem(ctx context.Context, id string) (*types.QueueItem, error)
	PendingCount(ctx context.Context) (int, error)
	GetSyncMeta(ctx context.Context, key string) (string, error)
}

// Lister is the gateway's bulk-read surface.
type Lister interface {
	List(ctx context.Context, rt types.RecordType) (json.RawMessage, error)
}

// Syncer triggers and observes sync passes.
type Syncer interface {
	SyncAll(ctx context.Context) (*types.SyncResult, error)
	Syncing() bool
}

// Service is the persistence facade.
type Service struct {
	store       Store
	remote      Lister
	engine      Syncer
	conn        syncengine.Connectivity
	passTimeout time.Duration
}

// NewService creates a Service. passTimeout bounds the best-effort sync
// pass triggered after a write.
func NewService(st Store, remote Lister, engine Syncer, conn syncengine.Connectivity, passTimeout time.Duration) *Service {
	if passTimeout <= 0 {
		passTimeout = time.Minute
	}
	return &Service{
		store:       st,
		remote:      remote,
		engine:      engine,
		conn:        conn,
		passTimeout: passTimeout,
	}
}

// SaveData writes a mutation to the local store, queues it for sync, and
// returns the record id immediately. The caller may treat the write as
// durable enough to display the moment this returns.
//
// Local storage failures are logged and swallowed: blocking a checkout on
// a local write error is worse than losing one write. Only programmer
// errors (unknown type, bad action, invalid payload) are returned.
func (s *Service) SaveData(ctx context.Context, rt types.RecordType, action types.Action, data json.RawMessage, businessID, id string) (string, error) {
	if !rt.Valid() {
		return "", fmt.Errorf("unknown record type %q", rt)
	}
	if !action.Valid() {
		return "", fmt.Errorf("unknown action %q", action)
	}
	if businessID == "" {
		return "", errors.New("business id is required")
	}

	if id == "" {
		id = ulid.Make().String()
	}

	data, err := stampID(data, id)
	if err != nil {
		return "", fmt.Errorf("invalid payload: %w", err)
	}

	now := time.Now().UTC()
	rec := types.Record{
		ID:         id,
		Type:       rt,
		BusinessID: businessID,
		Action:     action,
		Data:       data,
		UpdatedAt:  now,
	}
	if err := s.store.PutRecord(ctx, rec); err != nil {
		slog.Error("local record write failed", "type", string(rt), "id", id, "error", err)
	}

	item := types.QueueItem{
		ID:         id,
		Type:       rt,
		Action:     s.coalesceAction(ctx, id, action),
		Data:       data,
		BusinessID: businessID,
		Timestamp:  now,
	}
	if err := s.store.Enqueue(ctx, item); err != nil {
		slog.Error("enqueue failed", "type", string(rt), "id", id, "error", err)
	}

	if s.conn.Online() {
		go s.backgroundSync()
	}

	return id, nil
}

// coalesceAction decides the action of the surviving queue item when a
// mutation replaces an earlier one for the same id. A create followed by
// an update before any sync stays a create carrying the latest payload:
// the remote never saw the record, so an update would have nothing to
// target.
func (s *Service) coalesceAction(ctx context.Context, id string, action types.Action) types.Action {
	if action != types.ActionUpdate {
		return action
	}
	existing, err := s.store.GetQueueItem(ctx, id)
	if err != nil {
		return action
	}
	if existing.Action == types.ActionCreate && !existing.Synced {
		return types.ActionCreate
	}
	return action
}

// backgroundSync runs a best-effort pass after a write. Failures are
// already counted per item; nothing to surface here.
func (s *Service) backgroundSync() {
	ctx, cancel := context.WithTimeout(context.Background(), s.passTimeout)
	defer cancel()
	if _, err := s.engine.SyncAll(ctx); err != nil {
		slog.Warn("background sync failed", "error", err)
	}
}

// LoadData returns the current listing for a type. Online, the server is
// authoritative: the listing refreshes the local backup and is returned
// as-is with local unsynced mutations overlaid. Offline (or on any
// gateway failure) the local fallback serves: backup snapshot merged with
// individually stored records. Offline is a steady state, not an error.
func (s *Service) LoadData(ctx context.Context, rt types.RecordType, businessID string) (json.RawMessage, error) {
	if !rt.Valid() {
		return nil, fmt.Errorf("unknown record type %q", rt)
	}
	if businessID == "" {
		return nil, errors.New("business id is required")
	}

	var base json.RawMessage
	serverFresh := false
	if s.conn.Online() {
		serverData, err := s.remote.List(ctx, rt)
		if err == nil {
			if err := s.store.PutBackup(ctx, rt, businessID, serverData); err != nil {
				slog.Warn("backup refresh failed", "type", string(rt), "error", err)
			}
			base = serverData
			serverFresh = true
		} else {
			slog.Warn("server load failed, falling back to local data", "type", string(rt), "error", err)
		}
	}

	if base == nil {
		backup, err := s.store.GetBackup(ctx, rt, businessID)
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			slog.Warn("backup read failed", "type", string(rt), "error", err)
		}
		base = backup
	}

	merged, err := s.overlayLocal(ctx, rt, businessID, base, serverFresh)
	if err != nil {
		return nil, err
	}
	return merged, nil
}

// overlayLocal merges individually stored records over a bulk listing.
// Local mutations win by id and deletes are excluded, so a record written
// moments ago is always visible regardless of how stale the bulk listing
// is (read your own writes).
//
// When the listing came fresh from the server, only mutations still
// awaiting confirmation may shadow it: once a local write has synced, the
// server copy is authoritative and may carry newer changes from other
// clients. Against a stale backup every local record wins.
func (s *Service) overlayLocal(ctx context.Context, rt types.RecordType, businessID string, base json.RawMessage, serverFresh bool) (json.RawMessage, error) {
	local, err := s.store.ListByBusiness(ctx, rt, businessID)
	if err != nil {
		slog.Warn("local record scan failed", "type", string(rt), "error", err)
	}

	var baseItems []json.RawMessage
	if len(base) > 0 {
		if err := json.Unmarshal(base, &baseItems); err != nil {
			slog.Warn("malformed bulk listing, ignoring", "type", string(rt), "error", err)
			baseItems = nil
		}
	}

	deleted := make(map[string]bool)
	if ids, err := s.store.DeletedIDs(ctx, rt, businessID); err == nil {
		for _, id := range ids {
			deleted[id] = true
		}
	}

	if serverFresh {
		pending := make(map[string]bool)
		if ids, err := s.store.PendingIDs(ctx, rt, businessID); err == nil {
			for _, id := range ids {
				pending[id] = true
			}
		} else {
			slog.Warn("pending id scan failed", "type", string(rt), "error", err)
		}
		filtered := local[:0]
		for _, rec := range local {
			if pending[rec.ID] {
				filtered = append(filtered, rec)
			}
		}
		local = filtered
		for id := range deleted {
			if !pending[id] {
				delete(deleted, id)
			}
		}
	}

	localByID := make(map[string]types.Record, len(local))
	for _, rec := range local {
		localByID[rec.ID] = rec
	}

	out := make([]json.RawMessage, 0, len(baseItems)+len(local))
	seen := make(map[string]bool, len(baseItems))
	for _, item := range baseItems {
		id := extractID(item)
		if deleted[id] {
			continue
		}
		if rec, ok := localByID[id]; ok && id != "" {
			out = append(out, rec.Data)
			seen[id] = true
			continue
		}
		out = append(out, item)
		if id != "" {
			seen[id] = true
		}
	}
	for _, rec := range local {
		if !seen[rec.ID] {
			out = append(out, rec.Data)
		}
	}

	return json.Marshal(out)
}

// PendingCount returns the number of mutations awaiting server
// confirmation.
func (s *Service) PendingCount(ctx context.Context) (int, error) {
	return s.store.PendingCount(ctx)
}

// ConnectionStatus returns "online" or "offline".
func (s *Service) ConnectionStatus() string {
	if s.conn.Online() {
		return "online"
	}
	return "offline"
}

// Status returns the snapshot polled by the connectivity indicator.
func (s *Service) Status(ctx context.Context) types.SyncStatus {
	status := types.SyncStatus{
		IsOnline:  s.conn.Online(),
		IsSyncing: s.engine.Syncing(),
	}

	if count, err := s.store.PendingCount(ctx); err == nil {
		status.QueueLength = count
	}

	if raw, err := s.store.GetSyncMeta(ctx, syncengine.MetaLastSyncAt); err == nil {
		if t, err := time.Parse(time.RFC3339Nano, raw); err == nil {
			status.LastSync = &t
		}
	}

	return status
}

// ForceSync runs one pass immediately and returns its summary.
func (s *Service) ForceSync(ctx context.Context) (*types.SyncResult, error) {
	return s.engine.SyncAll(ctx)
}

// ClearAllData removes every locally stored record and queued mutation
// for a business. Used on logout/reset.
func (s *Service) ClearAllData(ctx context.Context, businessID string) error {
	if businessID == "" {
		return errors.New("business id is required")
	}
	return s.store.ClearBusiness(ctx, businessID)
}

// stampID ensures the payload object carries the record id, so replayed
// creates are idempotent by id on the server.
func stampID(data json.RawMessage, id string) (json.RawMessage, error) {
	if len(data) == 0 {
		return nil, errors.New("payload is required")
	}

	var obj map[string]any
	if err := json.Unmarshal(data, &obj); err != nil {
		return nil, err
	}
	if existing, ok := obj["id"].(string); ok && existing != "" && existing == id {
		return data, nil
	}
	obj["id"] = id
	return json.Marshal(obj)
}

// extractID pulls the id field from a raw JSON object, or "".
func extractID(item json.RawMessage) string {
	var probe struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(item, &probe); err != nil {
		return ""
	}
	return probe.ID
}
