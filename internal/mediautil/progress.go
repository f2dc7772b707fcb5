// Package mediautil carries sync-progress plumbing shared by the media
// clients and the catalog. It lives outside package media so the concrete
// clients can report progress without importing their own factory.
package mediautil

import (
	"context"
	"sync"
)

const (
	PhaseLibraries = "libraries"
	PhaseItems     = "items"
	PhaseEnriching = "enriching"
	PhasePruning   = "pruning"
	PhaseDone      = "done"
	PhaseError     = "error"
)

// SyncProgress is one progress update from a running catalog sync.
type SyncProgress struct {
	Phase   string `json:"phase"`
	Current int    `json:"current,omitempty"`
	Total   int    `json:"total,omitempty"`
	Library string `json:"library,omitempty"`
	Error   string `json:"error,omitempty"`
	Synced  int    `json:"synced,omitempty"`
	Pruned  int    `json:"pruned,omitempty"`
}

// reporter owns the progress channel for one sync run. The closed flag
// lets workers that outlive CloseProgress keep sending harmlessly.
type reporter struct {
	mu     sync.Mutex
	ch     chan SyncProgress
	closed bool
}

func (r *reporter) send(p SyncProgress) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	select {
	case r.ch <- p:
	default:
		// Listener is behind; drop rather than stall the sync.
	}
}

func (r *reporter) close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.closed {
		r.closed = true
		close(r.ch)
	}
}

type reporterKey struct{}

// ContextWithProgress attaches a progress stream to ctx and returns its
// receive end. The stream stays open until CloseProgress.
func ContextWithProgress(ctx context.Context) (context.Context, <-chan SyncProgress) {
	r := &reporter{ch: make(chan SyncProgress, 64)}
	return context.WithValue(ctx, reporterKey{}, r), r.ch
}

// SendProgress delivers one update to the stream attached to ctx, if any.
// It never blocks.
func SendProgress(ctx context.Context, p SyncProgress) {
	if r, ok := ctx.Value(reporterKey{}).(*reporter); ok {
		r.send(p)
	}
}

// CloseProgress ends the stream attached to ctx, if any. Safe to call more
// than once; sends after close are dropped.
func CloseProgress(ctx context.Context) {
	if r, ok := ctx.Value(reporterKey{}).(*reporter); ok {
		r.close()
	}
}
