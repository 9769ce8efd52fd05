package memory

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/nextlevelbuilder/goclaw-memory/internal/bus"
)

// Progress reports incremental sync status (§4.11, optional).
type Progress struct {
	Completed int
	Total     int
	Label     string
}

// ProgressReporter receives Progress updates during a sync pass.
type ProgressReporter func(Progress)

// SyncFunc performs one sync pass and is supplied by the Manager; the
// coordinator only owns de-duplication, not the indexing algorithm itself.
type SyncFunc func(ctx context.Context, reason string, report ProgressReporter) error

// warmSessionTTL is the de-dup window for warm_session calls (§4.11).
const warmSessionTTL = 60 * time.Second

// SyncCoordinator serializes concurrent sync calls behind a single
// in-flight future and de-duplicates warm-session triggers for 60s.
type SyncCoordinator struct {
	mu      sync.Mutex
	inFlight *syncFuture
	syncFn  SyncFunc
	warmed  *bus.DedupeCache
	dirty   bool
}

type syncFuture struct {
	done chan struct{}
	err  error
}

func NewSyncCoordinator(syncFn SyncFunc) *SyncCoordinator {
	return &SyncCoordinator{
		syncFn: syncFn,
		warmed: bus.NewDedupeCache(warmSessionTTL, 10_000),
	}
}

// Sync is idempotent under concurrency: if a sync is already running,
// the caller awaits that same run rather than starting a new one.
func (c *SyncCoordinator) Sync(ctx context.Context, reason string, report ProgressReporter) error {
	c.mu.Lock()
	if c.inFlight != nil {
		fut := c.inFlight
		c.mu.Unlock()
		<-fut.done
		return fut.err
	}

	fut := &syncFuture{done: make(chan struct{})}
	c.inFlight = fut
	c.mu.Unlock()

	err := c.syncFn(ctx, reason, report)

	c.mu.Lock()
	c.inFlight = nil
	c.dirty = false
	c.mu.Unlock()

	fut.err = err
	close(fut.done)
	return err
}

// WarmSession triggers a fire-and-forget sync for a session start, unless
// this session key was already warmed within the last 60s.
func (c *SyncCoordinator) WarmSession(sessionKey string) {
	if c.warmed.IsDuplicate(sessionKey) {
		return
	}
	go func() {
		if err := c.Sync(context.Background(), "warm_session", nil); err != nil {
			slog.Warn("warm session sync failed", "session_key", sessionKey, "err", err)
		}
	}()
}

// MarkDirty flags the index as stale, e.g. after a watcher event observed
// between syncs. SyncIfDirtyAsync is used by the on_search trigger.
func (c *SyncCoordinator) MarkDirty() {
	c.mu.Lock()
	c.dirty = true
	c.mu.Unlock()
}

// SyncIfDirtyAsync kicks off a background sync if the index is marked
// dirty, without blocking the caller (search proceeds against current
// state regardless, §4.11).
func (c *SyncCoordinator) SyncIfDirtyAsync() {
	c.mu.Lock()
	dirty := c.dirty
	c.mu.Unlock()
	if !dirty {
		return
	}
	go func() {
		if err := c.Sync(context.Background(), "on_search", nil); err != nil {
			slog.Warn("on-search sync failed", "err", err)
		}
	}()
}
