package memory

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// watchDebounce coalesces bursts of filesystem events (e.g. an editor's
// save-as-temp-then-rename sequence) into a single re-index (§4.13).
const watchDebounce = 250 * time.Millisecond

// Watcher observes the workspace's memory files for changes and triggers
// targeted re-indexing through the owning Manager. It is a liveness
// mechanism only: a missed or coalesced event does not corrupt the index,
// it just delays a re-index until the next full sync (§4.13 Non-goals).
type Watcher struct {
	manager *Manager
	fsw     *fsnotify.Watcher
	done    chan struct{}
}

// NewWatcher constructs a Watcher rooted at the manager's configured
// workspace. The caller must call Start to begin watching and Close to
// release the underlying inotify/kqueue handle.
func NewWatcher(manager *Manager) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := addRecursive(fsw, manager.cfg.Workspace); err != nil {
		fsw.Close()
		return nil, err
	}
	for _, p := range manager.cfg.ExtraPaths {
		addRecursive(fsw, p)
	}
	if manager.cfg.SessionsDir != "" {
		fsw.Add(manager.cfg.SessionsDir)
	}
	return &Watcher{manager: manager, fsw: fsw, done: make(chan struct{})}, nil
}

// Start runs the debounced watch loop until ctx is cancelled or Close is
// called.
func (w *Watcher) Start(ctx context.Context) {
	go w.loop(ctx)
}

func (w *Watcher) loop(ctx context.Context) {
	var mu sync.Mutex
	var timer *time.Timer
	pending := map[string]struct{}{}

	// flush runs on the timer's own goroutine, concurrently with the
	// select loop below, so it takes mu before touching pending.
	flush := func() {
		mu.Lock()
		if len(pending) == 0 {
			mu.Unlock()
			return
		}
		paths := make([]string, 0, len(pending))
		for p := range pending {
			paths = append(paths, p)
		}
		pending = map[string]struct{}{}
		mu.Unlock()

		for _, p := range paths {
			if err := w.manager.IndexFile(context.Background(), p); err != nil {
				slog.Warn("watcher: index file failed, marking dirty for next full sync", "path", p, "err", err)
				w.manager.MarkDirty()
			}
		}
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.done:
			return
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if !isRelevantEvent(ev) {
				continue
			}
			mu.Lock()
			pending[ev.Name] = struct{}{}
			mu.Unlock()
			// Stop and recreate rather than Reset: Reset on a timer whose
			// function may already be running races flush against a new
			// firing of the same timer.
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(watchDebounce, flush)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			slog.Warn("watcher: fsnotify error", "err", err)
		}
	}
}

func isRelevantEvent(ev fsnotify.Event) bool {
	if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
		return false
	}
	name := strings.ToLower(ev.Name)
	return strings.HasSuffix(name, ".md") || strings.HasSuffix(name, ".jsonl")
}

func addRecursive(fsw *fsnotify.Watcher, root string) error {
	if root == "" {
		return nil
	}
	return filepath.Walk(root, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			return nil
		}
		if info.IsDir() {
			fsw.Add(p)
		}
		return nil
	})
}

// Close stops the watch loop and releases the filesystem handle.
func (w *Watcher) Close() error {
	close(w.done)
	return w.fsw.Close()
}
