package file

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/nextlevelbuilder/goclaw-memory/internal/memory"
	"github.com/nextlevelbuilder/goclaw-memory/internal/store"
)

// ManagerMemoryStore wraps a memory.Manager to implement store.MemoryStore.
// It backs both the standalone (SQLite) and managed (Postgres) drivers
// identically: driver selection happens inside memory.NewManager, not here.
type ManagerMemoryStore struct {
	mgr       *memory.Manager
	workspace string
}

func NewManagerMemoryStore(mgr *memory.Manager, workspace string) *ManagerMemoryStore {
	return &ManagerMemoryStore{mgr: mgr, workspace: workspace}
}

// Manager returns the underlying memory.Manager for direct access (used by
// the CLI and MCP server, which need operations beyond the MemoryStore
// interface, e.g. WarmSession).
func (f *ManagerMemoryStore) Manager() *memory.Manager { return f.mgr }

func (f *ManagerMemoryStore) GetDocument(_ context.Context, path string) (string, error) {
	return f.mgr.GetFile(path, 0, 0)
}

func (f *ManagerMemoryStore) PutDocument(path, content string) error {
	absPath := path
	if !filepath.IsAbs(absPath) {
		absPath = filepath.Join(f.workspace, path)
	}
	dir := filepath.Dir(absPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create dir: %w", err)
	}
	return os.WriteFile(absPath, []byte(content), 0644)
}

func (f *ManagerMemoryStore) ListDocuments(_ context.Context, source string) ([]store.DocumentInfo, error) {
	// Memory files are discovered on each sync pass rather than tracked
	// here directly; callers that need the live list should read the
	// indexer's file records through the store driver.
	_ = source
	return nil, nil
}

func (f *ManagerMemoryStore) Search(ctx context.Context, query string, opts memory.SearchOptions) ([]memory.SearchResult, error) {
	opts.Query = query
	return f.mgr.Search(ctx, opts)
}

func (f *ManagerMemoryStore) IndexDocument(ctx context.Context, path string) error {
	return f.mgr.IndexFile(ctx, path)
}

func (f *ManagerMemoryStore) IndexAll(ctx context.Context) error {
	return f.mgr.IndexAll(ctx)
}

func (f *ManagerMemoryStore) LookupActors(ctx context.Context, query string, limit int) ([]memory.Actor, error) {
	return f.mgr.LookupActors(ctx, query, limit)
}

func (f *ManagerMemoryStore) SetEmbeddingProvider(provider memory.EmbeddingProvider) {
	f.mgr.SetEmbeddingProvider(provider)
}

func (f *ManagerMemoryStore) Close() error {
	return f.mgr.Close()
}
