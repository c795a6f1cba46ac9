package worker

import (
	"context"
	"log/slog"
	"time"
)

// Checker probes reachability once and records the observation.
type Checker interface {
	Check(ctx context.Context) bool
}

// ConnectivityWorker polls the backend health endpoint so the sync layer
// notices offline-to-online transitions without waiting for a failed
// write. The monitor itself fires the reconnect flush.
type ConnectivityWorker struct {
	checker      Checker
	interval     time.Duration
	probeTimeout time.Duration
}

// NewConnectivityWorker creates a worker polling at the given interval.
func NewConnectivityWorker(checker Checker, interval, probeTimeout time.Duration) *ConnectivityWorker {
	if probeTimeout <= 0 {
		probeTimeout = 10 * time.Second
	}
	return &ConnectivityWorker{
		checker:      checker,
		interval:     interval,
		probeTimeout: probeTimeout,
	}
}

// Run starts the polling loop. The first probe fires immediately so the
// service knows its state at startup. Returns when ctx is cancelled.
func (w *ConnectivityWorker) Run(ctx context.Context) {
	slog.Info("connectivity polling active",
		"component", "worker",
		"worker", "connectivity",
		"interval", w.interval.String(),
	)

	w.probe(ctx)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.probe(ctx)
		}
	}
}

func (w *ConnectivityWorker) probe(ctx context.Context) {
	probeCtx, cancel := context.WithTimeout(ctx, w.probeTimeout)
	defer cancel()
	w.checker.Check(probeCtx)
}
