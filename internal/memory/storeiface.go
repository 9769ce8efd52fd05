package memory

import "context"

// ChunkStore is the storage contract shared by the managed (Postgres +
// pgvector) and standalone (SQLite + FTS5) drivers (§4.14). The rest of
// the package — indexer, retriever, actor directory, sync coordinator —
// is written entirely against this interface and is agnostic to which
// driver backs it.
type ChunkStore interface {
	// Meta
	GetMeta(ctx context.Context) (Meta, bool, error)
	SetMeta(ctx context.Context, m Meta) error
	// PurgeAll drops every chunk, file record, and cache entry. Used when
	// the provider fingerprint or chunking parameters change (§3 Meta
	// lifecycle, §8 property 6).
	PurgeAll(ctx context.Context) error

	// Files
	GetFileRecord(ctx context.Context, path string, source Source) (FileRecord, bool, error)
	ListFileRecords(ctx context.Context, source Source) ([]FileRecord, error)
	UpsertFileRecord(ctx context.Context, rec FileRecord) error
	DeleteFileRecord(ctx context.Context, path string, source Source) error

	// Chunks: ReplaceChunks deletes all existing chunks for (path, source)
	// and inserts the new set in one transaction (§4.5 step 4c).
	ReplaceChunks(ctx context.Context, path string, source Source, chunks []Chunk) error
	DeleteChunksByPath(ctx context.Context, path string, source Source) error
	ChunkCount(ctx context.Context) (int, error)

	// EnsureVectorIndex creates the vector similarity index for dims if
	// it does not already exist (§4.4, created lazily).
	EnsureVectorIndex(ctx context.Context, dims int) error

	// Embedding cache (§4.3), keyed by provider fingerprint + content hash.
	GetCachedEmbeddings(ctx context.Context, fingerprint string, hashes []string) (map[string][]float32, error)
	CacheEmbeddings(ctx context.Context, fingerprint string, entries map[string][]float32, dims int) error

	// Actor directory (§4.7)
	UpsertActor(ctx context.Context, a Actor) error
	UpsertActorAlias(ctx context.Context, alias ActorAlias) error
	LookupActors(ctx context.Context, query string, limit int) ([]Actor, error)

	// Retrieval (§4.9)
	KeywordSearch(ctx context.Context, query string, candidates int, opts SearchOptions) ([]SearchResult, error)
	VectorSearch(ctx context.Context, queryVec []float32, candidates int, opts SearchOptions) ([]SearchResult, error)

	Close() error
}
