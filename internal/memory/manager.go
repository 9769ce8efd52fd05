package memory

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// StoreDriver selects the storage backend (§4.14).
type StoreDriver string

const (
	DriverPostgres StoreDriver = "postgres"
	DriverSQLite   StoreDriver = "sqlite"
)

// ManagerConfig is the full set of knobs needed to construct a Manager.
type ManagerConfig struct {
	Driver StoreDriver

	// Postgres (managed) connection.
	PostgresDSN     string
	MigrationsTable string

	// SQLite (standalone) path.
	SQLitePath string

	Workspace   string
	ExtraPaths  []string
	SessionsDir string
	Sources     []Source
	Chunk       ChunkConfig
	Hybrid      HybridConfig

	// ActorsSnapshotPath, when set, points at a session-store snapshot
	// (§4.7, §4.11) reloaded before every sync pass: it refreshes the
	// actor directory and supplies the session-key -> actor-id mapping
	// session chunking needs.
	ActorsSnapshotPath string

	Provider EmbeddingProvider

	// Redis is the optional shared embedding-cache front door (§6
	// memorySearch.cache.redis.*). Zero value (empty Addr) disables it.
	Redis RedisCacheConfig
}

// DefaultManagerConfig fills in the ambient defaults for a workspace rooted
// at workspace: both sources enabled, default chunking, default hybrid
// fusion weights, standalone SQLite driver at <workspace>/.memory/index.db.
func DefaultManagerConfig(workspace string) ManagerConfig {
	return ManagerConfig{
		Driver:      DriverSQLite,
		SQLitePath:  filepath.Join(workspace, ".memory", "index.db"),
		Workspace:   workspace,
		SessionsDir: filepath.Join(workspace, ".memory", "sessions"),
		Sources:     []Source{SourceMemory, SourceSessions},
		Chunk:       DefaultChunkConfig(),
		Hybrid:      DefaultHybridConfig(),
	}
}

// Manager is the top-level façade over the memory index: it owns the
// storage driver, the embedding provider, the indexer, the retriever, and
// the sync coordinator, and is the entry point used by the tool surface,
// the CLI, and the MCP server.
type Manager struct {
	cfg      ManagerConfig
	store    ChunkStore
	provider EmbeddingProvider
	indexer  *Indexer
	retr     *Retriever
	sync     *SyncCoordinator
	redis    *RedisCache
}

// NewManager opens the configured storage driver, applies migrations (for
// Postgres), and wires the indexer/retriever/sync coordinator together.
func NewManager(cfg ManagerConfig) (*Manager, error) {
	if len(cfg.Sources) == 0 {
		cfg.Sources = []Source{SourceMemory, SourceSessions}
	}
	if cfg.Chunk.Tokens == 0 {
		cfg.Chunk = DefaultChunkConfig()
	}
	if cfg.Hybrid.VectorWeight == 0 && cfg.Hybrid.TextWeight == 0 {
		cfg.Hybrid = DefaultHybridConfig()
	}

	var store ChunkStore
	var err error
	switch cfg.Driver {
	case DriverPostgres:
		if strings.TrimSpace(cfg.PostgresDSN) == "" {
			return nil, fmt.Errorf("manager: postgres driver requires a DSN")
		}
		store, err = OpenPGStore(cfg.PostgresDSN, cfg.MigrationsTable)
	case DriverSQLite, "":
		path := cfg.SQLitePath
		if path == "" {
			path = filepath.Join(cfg.Workspace, ".memory", "index.db")
		}
		if dir := filepath.Dir(path); dir != "" && dir != "." {
			if mkErr := os.MkdirAll(dir, 0o755); mkErr != nil {
				return nil, fmt.Errorf("manager: create sqlite dir: %w", mkErr)
			}
		}
		store, err = NewSQLiteStore(path)
	default:
		return nil, fmt.Errorf("manager: unknown store driver %q", cfg.Driver)
	}
	if err != nil {
		return nil, fmt.Errorf("manager: open store: %w", err)
	}

	idx, err := NewIndexer(store, cfg.Provider, IndexerConfig{
		Workspace:   cfg.Workspace,
		ExtraPaths:  cfg.ExtraPaths,
		SessionsDir: cfg.SessionsDir,
		Sources:     cfg.Sources,
		Chunk:       cfg.Chunk,
	})
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("manager: construct indexer: %w", err)
	}

	redisCache, err := NewRedisCache(cfg.Redis)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("manager: construct redis cache: %w", err)
	}
	idx.SetRedisCache(redisCache)

	m := &Manager{
		cfg:      cfg,
		store:    store,
		provider: cfg.Provider,
		indexer:  idx,
		retr:     NewRetriever(store, cfg.Hybrid),
		redis:    redisCache,
	}
	m.sync = NewSyncCoordinator(func(ctx context.Context, reason string, report ProgressReporter) error {
		m.refreshActorsFromSnapshot(ctx)
		return m.indexer.SyncAll(ctx, report)
	})
	return m, nil
}

// refreshActorsFromSnapshot reloads the configured session-store snapshot
// (if any), refreshes the actor directory from it, and hands it to the
// indexer so session chunking can resolve actor ids (§4.7). A missing or
// unparseable snapshot is logged and otherwise non-fatal: sync still runs
// against whatever actor directory state already exists.
func (m *Manager) refreshActorsFromSnapshot(ctx context.Context) {
	if m.cfg.ActorsSnapshotPath == "" {
		return
	}
	snapshot, err := LoadSessionSnapshot(m.cfg.ActorsSnapshotPath)
	if err != nil {
		slog.Warn("load actor snapshot failed", "path", m.cfg.ActorsSnapshotPath, "err", err)
		return
	}
	if err := SyncActorsFromSnapshot(ctx, m.store, snapshot); err != nil {
		slog.Warn("sync actors from snapshot failed", "path", m.cfg.ActorsSnapshotPath, "err", err)
	}
	m.indexer.SetSessionSnapshot(snapshot)
}

// SetEmbeddingProvider swaps the active embedding provider at runtime (e.g.
// after a fallback or operator reconfiguration). The next sync observes the
// new provider's fingerprint and triggers a rebuild if it differs (§4.2).
func (m *Manager) SetEmbeddingProvider(provider EmbeddingProvider) {
	m.provider = provider
	m.indexer.provider = provider
}

// IndexAll runs a full synchronization pass, coalescing with any in-flight
// sync (§4.11).
func (m *Manager) IndexAll(ctx context.Context) error {
	return m.sync.Sync(ctx, "manual", nil)
}

// IndexAllWithProgress is IndexAll with progress reporting, used by the CLI.
func (m *Manager) IndexAllWithProgress(ctx context.Context, report ProgressReporter) error {
	return m.sync.Sync(ctx, "manual", report)
}

// IndexFile indexes a single path immediately, bypassing the sync
// coordinator's single-flight (used by the workspace watcher for targeted
// re-indexing, §4.13).
func (m *Manager) IndexFile(ctx context.Context, path string) error {
	return m.indexer.IndexFile(ctx, path)
}

// WarmSession notifies the coordinator that a session has started,
// triggering a de-duplicated background sync (§4.11).
func (m *Manager) WarmSession(sessionKey string) {
	m.sync.WarmSession(sessionKey)
}

// MarkDirty flags the index stale, e.g. from the workspace watcher.
func (m *Manager) MarkDirty() {
	m.sync.MarkDirty()
}

// Search runs a retrieval query and triggers a non-blocking background sync
// if the index has been marked dirty since the last sync (§4.11's
// on_search trigger never blocks the search itself).
func (m *Manager) Search(ctx context.Context, opts SearchOptions) ([]SearchResult, error) {
	m.sync.SyncIfDirtyAsync()
	return m.retr.Search(ctx, m.provider, opts)
}

// GetFile returns a line range from an indexed memory file (used by the
// memory_get tool). from is 1-indexed; lines <= 0 means "to end of file".
// Symlinks and paths outside the workspace and the extra paths are rejected.
func (m *Manager) GetFile(path string, from, lines int) (string, error) {
	abs := path
	if !filepath.IsAbs(abs) {
		abs = filepath.Join(m.cfg.Workspace, path)
	}
	allowed := false
	for _, root := range append([]string{m.cfg.Workspace}, m.cfg.ExtraPaths...) {
		rel, relErr := filepath.Rel(root, abs)
		if relErr == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			allowed = true
			break
		}
	}
	if !allowed {
		return "", fmt.Errorf("read file: %s is outside the workspace and extra paths", path)
	}
	if info, lerr := os.Lstat(abs); lerr == nil && info.Mode()&os.ModeSymlink != 0 {
		return "", fmt.Errorf("read file: %s is a symlink", path)
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		return "", fmt.Errorf("read file: %w", err)
	}
	allLines := strings.Split(string(data), "\n")
	if from < 1 {
		from = 1
	}
	start := from - 1
	if start >= len(allLines) {
		return "", nil
	}
	end := len(allLines)
	if lines > 0 && start+lines < end {
		end = start + lines
	}
	return strings.Join(allLines[start:end], "\n"), nil
}

// ChunkCount reports the total number of indexed chunks.
func (m *Manager) ChunkCount() int {
	n, err := m.store.ChunkCount(context.Background())
	if err != nil {
		return 0
	}
	return n
}

// LookupActors proxies the actor directory (§4.7).
func (m *Manager) LookupActors(ctx context.Context, query string, limit int) ([]Actor, error) {
	return LookupActors(ctx, m.store, query, limit)
}

// SyncActorsFromSnapshot refreshes the actor directory from an external
// session-store snapshot and hands the same snapshot to the indexer so
// the next sync pass can resolve session-chunk actor ids from it (§4.7).
func (m *Manager) SyncActorsFromSnapshot(ctx context.Context, snapshot map[string]SessionSnapshotEntry) error {
	if err := SyncActorsFromSnapshot(ctx, m.store, snapshot); err != nil {
		return err
	}
	m.indexer.SetSessionSnapshot(snapshot)
	return nil
}

// Close releases the underlying storage driver's resources.
func (m *Manager) Close() error {
	if m.redis != nil {
		m.redis.Close()
	}
	return m.store.Close()
}
