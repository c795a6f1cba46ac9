package worker

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/vitanapos/vitana/internal/types"
)

type fakeEngine struct {
	mu    sync.Mutex
	calls int
}

func (f *fakeEngine) SyncAll(ctx context.Context) (*types.SyncResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return &types.SyncResult{Synced: 1}, nil
}

func (f *fakeEngine) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakePending struct{ count int }

func (f fakePending) PendingCount(ctx context.Context) (int, error) { return f.count, nil }

type fakeConn struct{ online bool }

func (f fakeConn) Online() bool { return f.online }

func TestSyncCoordinator_TriggersWhenPending(t *testing.T) {
	engine := &fakeEngine{}
	c := NewSyncCoordinator(engine, fakePending{count: 2}, fakeConn{online: true},
		5*time.Millisecond, time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		c.Run(ctx)
		close(done)
	}()

	deadline := time.After(time.Second)
	for engine.count() == 0 {
		select {
		case <-deadline:
			t.Fatal("sync never triggered")
		case <-time.After(5 * time.Millisecond):
		}
	}

	cancel()
	<-done
}

func TestSyncCoordinator_SkipsWhenOffline(t *testing.T) {
	engine := &fakeEngine{}
	c := NewSyncCoordinator(engine, fakePending{count: 2}, fakeConn{online: false},
		time.Minute, time.Second)

	c.tick(context.Background())

	if engine.count() != 0 {
		t.Errorf("calls = %d, want 0 while offline", engine.count())
	}
}

func TestSyncCoordinator_SkipsWhenQueueEmpty(t *testing.T) {
	engine := &fakeEngine{}
	c := NewSyncCoordinator(engine, fakePending{count: 0}, fakeConn{online: true},
		time.Minute, time.Second)

	c.tick(context.Background())

	if engine.count() != 0 {
		t.Errorf("calls = %d, want 0 with empty queue", engine.count())
	}
}

func TestSyncCoordinator_RunStopsOnCancel(t *testing.T) {
	c := NewSyncCoordinator(&fakeEngine{}, fakePending{}, fakeConn{}, time.Minute, time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		c.Run(ctx)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not stop on context cancellation")
	}
}
