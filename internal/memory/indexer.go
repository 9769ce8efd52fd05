package memory

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"go.opentelemetry.io/otel"
)

var tracer = otel.Tracer("memory")

// IndexerConfig parameterizes the file indexer (§4.5).
type IndexerConfig struct {
	Workspace   string
	ExtraPaths  []string
	SessionsDir string
	Sources     []Source // must be non-empty (§9 open question resolution)
	Chunk       ChunkConfig
}

// Indexer walks workspace memory files and session transcripts, diffs
// them against stored file records by content hash, and upserts chunks
// with embeddings.
type Indexer struct {
	store      ChunkStore
	provider   EmbeddingProvider
	cfg        IndexerConfig
	lruCache   *FingerprintCache
	redisCache *RedisCache

	// sessionSnapshot maps a session key to its external session-store
	// entry, refreshed by SetSessionSnapshot ahead of a sync pass so
	// chunkSessionFile can resolve the human actor's canonical user id
	// (§4.7) instead of the session bucket key.
	sessionSnapshot map[string]SessionSnapshotEntry
}

// NewIndexer constructs an Indexer. Per §9's resolved open question, an
// empty Sources list is a construction-time error rather than a silently
// skipped sync.
func NewIndexer(store ChunkStore, provider EmbeddingProvider, cfg IndexerConfig) (*Indexer, error) {
	if len(cfg.Sources) == 0 {
		return nil, fmt.Errorf("indexer: at least one source must be configured")
	}
	lruCache, err := NewFingerprintCache(4096)
	if err != nil {
		return nil, err
	}
	return &Indexer{store: store, provider: provider, cfg: cfg, lruCache: lruCache}, nil
}

// SetRedisCache attaches the optional shared embedding-cache front door
// (§6 memorySearch.cache.redis.*). Passing nil disables it.
func (idx *Indexer) SetRedisCache(c *RedisCache) { idx.redisCache = c }

// SetSessionSnapshot installs the session-store snapshot used to resolve
// the human actor id for session chunks (§4.7). Passing nil clears it,
// which leaves human-message chunks with no actor id rather than a wrong
// one.
func (idx *Indexer) SetSessionSnapshot(snapshot map[string]SessionSnapshotEntry) {
	idx.sessionSnapshot = snapshot
}

// resolveSessionActorID looks up the canonical human actor id for a
// session key from the installed snapshot. Returns "" when no snapshot is
// installed or the session has no resolvable user id — scope=actor
// filtering simply won't match those chunks, rather than matching on the
// session key as if it were an actor id.
func (idx *Indexer) resolveSessionActorID(sessionKey string) string {
	if idx.sessionSnapshot == nil {
		return ""
	}
	entry, ok := idx.sessionSnapshot[sessionKey]
	if !ok {
		return ""
	}
	return resolveUserID(entry)
}

// candidateFile is an enumerated path awaiting hash comparison.
type candidateFile struct {
	path       string // relative, forward-slash
	absPath    string
	source     Source
	sessionKey string
	content    string
	mtime      int64
	size       int64
}

// SyncAll runs one full indexing pass across every configured source
// (§4.5). Per-file failures are absorbed: they leave that file's prior
// hash in place and do not roll back other files (§7).
func (idx *Indexer) SyncAll(ctx context.Context, report ProgressReporter) error {
	ctx, span := tracer.Start(ctx, "memory.sync_all")
	defer span.End()

	if err := idx.checkMetaAndMaybeRebuild(ctx); err != nil {
		return fmt.Errorf("check meta: %w", err)
	}

	var total, completed int
	perSource := map[Source][]candidateFile{}
	for _, src := range idx.cfg.Sources {
		candidates, err := idx.enumerate(src)
		if err != nil {
			return fmt.Errorf("enumerate %s: %w", src, err)
		}
		perSource[src] = candidates
		total += len(candidates)
	}

	for _, src := range idx.cfg.Sources {
		candidates := perSource[src]
		if err := idx.reconcileDeletions(ctx, src, candidates); err != nil {
			return fmt.Errorf("reconcile deletions (%s): %w", src, err)
		}

		for _, c := range candidates {
			if err := idx.indexCandidate(ctx, c); err != nil {
				slog.Warn("index file failed, leaving prior hash", "path", c.path, "source", c.source, "err", err)
			}
			completed++
			if report != nil {
				report(Progress{Completed: completed, Total: total, Label: c.path})
			}
		}
	}

	if meta, ok, err := idx.store.GetMeta(ctx); err == nil && ok && meta.VectorDims > 0 {
		if err := idx.store.EnsureVectorIndex(ctx, meta.VectorDims); err != nil {
			slog.Warn("ensure vector index failed", "err", err)
		}
	}

	return nil
}

// IndexFile indexes (or re-indexes) a single path outside a full sync.
func (idx *Indexer) IndexFile(ctx context.Context, path string) error {
	ctx, span := tracer.Start(ctx, "memory.index_file")
	defer span.End()

	for _, src := range idx.cfg.Sources {
		candidates, err := idx.enumerate(src)
		if err != nil {
			continue
		}
		for _, c := range candidates {
			if c.path == path || c.absPath == path {
				return idx.indexCandidate(ctx, c)
			}
		}
	}
	return fmt.Errorf("index file: %s not found in any configured source", path)
}

func (idx *Indexer) checkMetaAndMaybeRebuild(ctx context.Context) error {
	if idx.provider == nil {
		return nil
	}
	want := Meta{
		Provider:     idx.provider.ID(),
		Model:        idx.provider.Model(),
		ProviderKey:  idx.provider.Fingerprint(),
		ChunkTokens:  idx.cfg.Chunk.Tokens,
		ChunkOverlap: idx.cfg.Chunk.Overlap,
	}

	existing, ok, err := idx.store.GetMeta(ctx)
	if err != nil {
		return err
	}
	if !ok {
		return idx.store.SetMeta(ctx, want)
	}
	if existing.rebuildKey() != want.rebuildKey() {
		slog.Info("embedding identity changed, rebuilding index",
			"old_provider", existing.Provider, "new_provider", want.Provider,
			"old_model", existing.Model, "new_model", want.Model)
		if err := idx.store.PurgeAll(ctx); err != nil {
			return err
		}
		want.VectorDims = 0
		return idx.store.SetMeta(ctx, want)
	}
	return nil
}

func (idx *Indexer) enumerate(src Source) ([]candidateFile, error) {
	switch src {
	case SourceMemory:
		return idx.enumerateMemoryFiles()
	case SourceSessions:
		return idx.enumerateSessionFiles()
	default:
		return nil, fmt.Errorf("unknown source %q", src)
	}
}

func (idx *Indexer) enumerateMemoryFiles() ([]candidateFile, error) {
	roots := append([]string{idx.cfg.Workspace}, idx.cfg.ExtraPaths...)
	seen := map[string]bool{}
	var out []candidateFile

	for _, root := range roots {
		if root == "" {
			continue
		}
		err := filepath.Walk(root, func(p string, info os.FileInfo, err error) error {
			if err != nil {
				return nil
			}
			if info.Mode()&os.ModeSymlink != 0 {
				return nil
			}
			if info.IsDir() {
				return nil
			}
			if !strings.HasSuffix(strings.ToLower(p), ".md") {
				return nil
			}
			rel, rerr := filepath.Rel(idx.cfg.Workspace, p)
			if rerr != nil || strings.HasPrefix(rel, "..") {
				rel = p
			}
			rel = filepath.ToSlash(rel)
			if seen[rel] {
				return nil
			}
			seen[rel] = true

			data, rerr := os.ReadFile(p)
			if rerr != nil {
				return nil
			}
			out = append(out, candidateFile{
				path: rel, absPath: p, source: SourceMemory,
				content: string(data), mtime: info.ModTime().Unix(), size: info.Size(),
			})
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (idx *Indexer) enumerateSessionFiles() ([]candidateFile, error) {
	if idx.cfg.SessionsDir == "" {
		return nil, nil
	}
	entries, err := os.ReadDir(idx.cfg.SessionsDir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var out []candidateFile
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".jsonl") {
			continue
		}
		absPath := filepath.Join(idx.cfg.SessionsDir, e.Name())
		info, err := e.Info()
		if err != nil {
			continue
		}

		messages, err := ExtractSessionMessages(absPath)
		if err != nil {
			slog.Warn("extract session messages failed", "path", absPath, "err", err)
			continue
		}
		sessionKey := strings.TrimSuffix(e.Name(), ".jsonl")
		out = append(out, candidateFile{
			path: sessionKey + ".jsonl", absPath: absPath, source: SourceSessions, sessionKey: sessionKey,
			content: TranscriptHashBasis(messages), mtime: info.ModTime().Unix(), size: info.Size(),
		})
	}
	return out, nil
}

// reconcileDeletions removes file+chunk records for paths no longer
// present in the candidate set for this source.
func (idx *Indexer) reconcileDeletions(ctx context.Context, src Source, candidates []candidateFile) error {
	existing, err := idx.store.ListFileRecords(ctx, src)
	if err != nil {
		return err
	}
	present := map[string]bool{}
	for _, c := range candidates {
		present[c.path] = true
	}
	for _, rec := range existing {
		if present[rec.Path] {
			continue
		}
		if err := idx.store.DeleteChunksByPath(ctx, rec.Path, src); err != nil {
			return err
		}
		if err := idx.store.DeleteFileRecord(ctx, rec.Path, src); err != nil {
			return err
		}
	}
	return nil
}

func (idx *Indexer) indexCandidate(ctx context.Context, c candidateFile) error {
	hash := ContentHash(c.content)

	existing, ok, err := idx.store.GetFileRecord(ctx, c.path, c.source)
	if err != nil {
		return err
	}
	if ok && existing.Hash == hash {
		return nil // unchanged
	}

	ctx, span := tracer.Start(ctx, "memory.index_file_tx")
	defer span.End()

	var chunks []Chunk
	var chunkErr error
	switch c.source {
	case SourceMemory:
		chunks, chunkErr = idx.chunkMemoryFile(c)
	case SourceSessions:
		chunks, chunkErr = idx.chunkSessionFile(ctx, c)
	}
	if chunkErr != nil {
		return chunkErr
	}

	if idx.provider != nil && len(chunks) > 0 {
		hashToText := map[string]string{}
		for _, ch := range chunks {
			hashToText[ch.Hash] = ch.Text
		}
		vecs, err := resolveEmbeddingsLayered(ctx, idx.store, idx.provider, idx.provider.Fingerprint(), hashToText, idx.lruCache, idx.redisCache)
		if err != nil {
			return fmt.Errorf("resolve embeddings: %w", err)
		}
		for i := range chunks {
			chunks[i].Embedding = vecs[chunks[i].Hash]
			chunks[i].Model = idx.provider.Model()
		}
		if meta, ok, _ := idx.store.GetMeta(ctx); ok && meta.VectorDims == 0 && len(vecs) > 0 {
			for _, v := range vecs {
				meta.VectorDims = len(v)
				idx.store.SetMeta(ctx, meta)
				break
			}
		}
	}

	if err := idx.store.ReplaceChunks(ctx, c.path, c.source, chunks); err != nil {
		return fmt.Errorf("replace chunks: %w", err)
	}

	rec := FileRecord{Path: c.path, Source: c.source, SessionKey: c.sessionKey, Hash: hash, MTime: c.mtime, Size: c.size}
	if c.source == SourceMemory {
		rec.Role = RoleSystem
	}
	if err := idx.store.UpsertFileRecord(ctx, rec); err != nil {
		return fmt.Errorf("upsert file record: %w", err)
	}
	return nil
}

func (idx *Indexer) chunkMemoryFile(c candidateFile) ([]Chunk, error) {
	textChunks := ChunkText(c.content, idx.cfg.Chunk)
	chunks := make([]Chunk, len(textChunks))
	for i, tc := range textChunks {
		chunks[i] = Chunk{
			ID:        fmt.Sprintf("%s#%d", c.path, i),
			Path:      c.path,
			Source:    SourceMemory,
			Role:      RoleSystem,
			StartLine: tc.StartLine,
			EndLine:   tc.EndLine,
			Hash:      tc.Hash,
			Text:      tc.Text,
		}
	}
	return chunks, nil
}

func (idx *Indexer) chunkSessionFile(_ context.Context, c candidateFile) ([]Chunk, error) {
	messages, err := ExtractSessionMessages(c.absPath)
	if err != nil {
		return nil, err
	}

	var chunks []Chunk
	for mi, msg := range messages {
		textChunks := ChunkText(msg.Text, idx.cfg.Chunk)
		for ci, tc := range textChunks {
			actorType := ActorHuman
			actorID := idx.resolveSessionActorID(c.sessionKey)
			if msg.Role == RoleAssistant {
				actorType = ActorAgent
				actorID = SyntheticAgentActorID(c.sessionKey)
			}
			chunks = append(chunks, Chunk{
				ID:               fmt.Sprintf("%s#%d#%d", c.path, mi, ci),
				Path:             c.path,
				Source:           SourceSessions,
				SessionKey:       c.sessionKey,
				Role:             msg.Role,
				ActorType:        actorType,
				ActorID:          actorID,
				MessageID:        msg.MessageID,
				MessageCreatedAt: msg.CreatedAt,
				StartLine:        tc.StartLine,
				EndLine:          tc.EndLine,
				Hash:             tc.Hash,
				Text:             tc.Text,
			})
		}
	}
	return chunks, nil
}
