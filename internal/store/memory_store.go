package store

import (
	"context"

	"github.com/nextlevelbuilder/goclaw-memory/internal/memory"
)

// DocumentInfo describes an indexed memory file.
type DocumentInfo struct {
	Path       string `json:"path"`
	Hash       string `json:"hash"`
	Source     string `json:"source"`
	SessionKey string `json:"session_key,omitempty"`
	UpdatedAt  int64  `json:"updated_at"`
}

// MemoryStore is the narrow interface the tool surface, CLI, and MCP
// server are written against, independent of which driver backs the
// underlying memory.Manager.
type MemoryStore interface {
	GetDocument(ctx context.Context, path string) (string, error)
	ListDocuments(ctx context.Context, source string) ([]DocumentInfo, error)

	Search(ctx context.Context, query string, opts memory.SearchOptions) ([]memory.SearchResult, error)

	IndexDocument(ctx context.Context, path string) error
	IndexAll(ctx context.Context) error

	LookupActors(ctx context.Context, query string, limit int) ([]memory.Actor, error)

	SetEmbeddingProvider(provider memory.EmbeddingProvider)
	Close() error
}
