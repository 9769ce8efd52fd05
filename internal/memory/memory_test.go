package memory

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestChunkText(t *testing.T) {
	text := `# Title

First paragraph with some content.
More content in the same paragraph.

Second paragraph here.
And a second line.

Third paragraph is short.`

	chunks := ChunkText(text, ChunkConfig{Tokens: 8, Overlap: 2})

	if len(chunks) < 2 {
		t.Fatalf("expected at least 2 chunks, got %d", len(chunks))
	}
	if chunks[0].StartLine != 1 {
		t.Errorf("first chunk start line = %d, want 1", chunks[0].StartLine)
	}
	for i, c := range chunks {
		if c.Text == "" {
			t.Errorf("chunk %d has empty text", i)
		}
		if c.Hash == "" {
			t.Errorf("chunk %d has empty hash", i)
		}
	}
}

func TestChunkText_SingleChunk(t *testing.T) {
	text := "Short text."
	chunks := ChunkText(text, ChunkConfig{Tokens: 1000, Overlap: 0})

	if len(chunks) != 1 {
		t.Fatalf("expected 1 chunk, got %d", len(chunks))
	}
	if chunks[0].Text != "Short text." {
		t.Errorf("text = %q, want %q", chunks[0].Text, "Short text.")
	}
}

func TestContentHash_Stable(t *testing.T) {
	a := ContentHash("hello world")
	b := ContentHash("hello world")
	c := ContentHash("hello there")
	if a != b {
		t.Error("identical input produced different hashes")
	}
	if a == c {
		t.Error("different input produced identical hashes")
	}
}

func TestSQLiteStore_ChunksAndFiles(t *testing.T) {
	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	store, err := NewSQLiteStore(dbPath)
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	defer store.Close()

	chunk := Chunk{
		ID:        "test#0",
		Path:      "MEMORY.md",
		Source:    SourceMemory,
		StartLine: 1,
		EndLine:   5,
		Hash:      ContentHash("hello world"),
		Text:      "hello world this is a test",
	}

	if err := store.ReplaceChunks(ctx, "MEMORY.md", SourceMemory, []Chunk{chunk}); err != nil {
		t.Fatalf("ReplaceChunks: %v", err)
	}

	count, err := store.ChunkCount(ctx)
	if err != nil {
		t.Fatalf("ChunkCount: %v", err)
	}
	if count != 1 {
		t.Errorf("ChunkCount = %d, want 1", count)
	}

	if err := store.UpsertFileRecord(ctx, FileRecord{Path: "MEMORY.md", Source: SourceMemory, Hash: chunk.Hash}); err != nil {
		t.Fatalf("UpsertFileRecord: %v", err)
	}
	rec, ok, err := store.GetFileRecord(ctx, "MEMORY.md", SourceMemory)
	if err != nil || !ok {
		t.Fatalf("GetFileRecord: ok=%v err=%v", ok, err)
	}
	if rec.Hash != chunk.Hash {
		t.Errorf("file record hash = %q, want %q", rec.Hash, chunk.Hash)
	}

	if err := store.DeleteChunksByPath(ctx, "MEMORY.md", SourceMemory); err != nil {
		t.Fatalf("DeleteChunksByPath: %v", err)
	}
	count, err = store.ChunkCount(ctx)
	if err != nil {
		t.Fatalf("ChunkCount after delete: %v", err)
	}
	if count != 0 {
		t.Errorf("after delete, ChunkCount = %d, want 0", count)
	}
}

func TestSQLiteStore_KeywordSearch(t *testing.T) {
	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	store, err := NewSQLiteStore(dbPath)
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	defer store.Close()

	byPath := map[string][]Chunk{
		"MEMORY.md": {
			{ID: "memo#0", Path: "MEMORY.md", Source: SourceMemory, StartLine: 1, EndLine: 3, Hash: "h1",
				Text: "The project uses Go for backend development with SQLite as the database"},
			{ID: "memo#1", Path: "MEMORY.md", Source: SourceMemory, StartLine: 4, EndLine: 6, Hash: "h2",
				Text: "Authentication is handled via JWT tokens and API keys"},
		},
		"memory/notes.md": {
			{ID: "notes#0", Path: "memory/notes.md", Source: SourceMemory, StartLine: 1, EndLine: 2, Hash: "h3",
				Text: "Go is a compiled programming language designed at Google"},
		},
	}
	for path, chunks := range byPath {
		if err := store.ReplaceChunks(ctx, path, SourceMemory, chunks); err != nil {
			t.Fatalf("ReplaceChunks(%s): %v", path, err)
		}
	}

	results, err := store.KeywordSearch(ctx, "Go", 10, SearchOptions{})
	if err != nil {
		t.Fatalf("KeywordSearch: %v", err)
	}
	if len(results) < 2 {
		t.Errorf("expected at least 2 results for 'Go', got %d", len(results))
	}

	results, err = store.KeywordSearch(ctx, "authentication", 10, SearchOptions{})
	if err != nil {
		t.Fatalf("KeywordSearch: %v", err)
	}
	if len(results) != 1 {
		t.Errorf("expected 1 result for 'authentication', got %d", len(results))
	}

	results, err = store.KeywordSearch(ctx, "Go", 10, SearchOptions{PathPrefix: "memory/"})
	if err != nil {
		t.Fatalf("KeywordSearch with path filter: %v", err)
	}
	if len(results) != 1 {
		t.Errorf("expected 1 result for 'Go' in memory/, got %d", len(results))
	}
}

func TestCosineSimilarity(t *testing.T) {
	a := []float32{1, 0, 0}
	b := []float32{1, 0, 0}
	if sim := CosineSimilarity(a, b); sim < 0.99 {
		t.Errorf("identical vectors: similarity = %f, want ~1.0", sim)
	}

	a = []float32{1, 0}
	b = []float32{0, 1}
	if sim := CosineSimilarity(a, b); sim > 0.01 {
		t.Errorf("orthogonal vectors: similarity = %f, want ~0.0", sim)
	}

	a = []float32{1, 0}
	b = []float32{-1, 0}
	if sim := CosineSimilarity(a, b); sim > -0.99 {
		t.Errorf("opposite vectors: similarity = %f, want ~-1.0", sim)
	}
}

func TestManager_IndexAndSearch(t *testing.T) {
	tmpDir := t.TempDir()

	memoryMD := filepath.Join(tmpDir, "MEMORY.md")
	os.WriteFile(memoryMD, []byte("# Project Notes\n\nThe project uses Go for backend.\nDatabase is SQLite.\n\n## Architecture\n\nMicroservices pattern with message bus."), 0644)

	memDir := filepath.Join(tmpDir, "memory")
	os.MkdirAll(memDir, 0755)
	os.WriteFile(filepath.Join(memDir, "config.md"), []byte("# Config\n\nConfiguration uses JSON5 format.\nSupports hot-reload via file watcher."), 0644)

	cfg := DefaultManagerConfig(tmpDir)
	cfg.Sources = []Source{SourceMemory}
	mgr, err := NewManager(cfg)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	defer mgr.Close()

	ctx := context.Background()
	if err := mgr.IndexAll(ctx); err != nil {
		t.Fatalf("IndexAll: %v", err)
	}

	if count := mgr.ChunkCount(); count == 0 {
		t.Fatal("no chunks indexed")
	}

	results, err := mgr.Search(ctx, SearchOptions{Query: "Go backend", Mode: ModeKeyword, MaxResults: 5})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) == 0 {
		t.Error("expected search results for 'Go backend'")
	}

	results, err = mgr.Search(ctx, SearchOptions{Query: "configuration reload", Mode: ModeKeyword, MaxResults: 5})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) == 0 {
		t.Error("expected search results for 'configuration reload'")
	}
}

func TestManager_GetFile(t *testing.T) {
	tmpDir := t.TempDir()

	testFile := filepath.Join(tmpDir, "MEMORY.md")
	os.WriteFile(testFile, []byte("line1\nline2\nline3\nline4\nline5"), 0644)

	cfg := DefaultManagerConfig(tmpDir)
	mgr, err := NewManager(cfg)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	defer mgr.Close()

	text, err := mgr.GetFile("MEMORY.md", 0, 0)
	if err != nil {
		t.Fatalf("GetFile: %v", err)
	}
	if text != "line1\nline2\nline3\nline4\nline5" {
		t.Errorf("full file = %q", text)
	}

	text, err = mgr.GetFile("MEMORY.md", 2, 3)
	if err != nil {
		t.Fatalf("GetFile: %v", err)
	}
	if text != "line2\nline3\nline4" {
		t.Errorf("lines 2-4 = %q", text)
	}
}

func TestEmbeddingCache(t *testing.T) {
	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	store, err := NewSQLiteStore(dbPath)
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	defer store.Close()

	emb := []float32{0.1, 0.2, 0.3}
	hash := ContentHash("test text")
	fingerprint := Fingerprint("openai", "text-embedding-3-small", "https://api.openai.com/v1", nil)

	cached, err := store.GetCachedEmbeddings(ctx, fingerprint, []string{hash})
	if err != nil {
		t.Fatalf("GetCachedEmbeddings: %v", err)
	}
	if _, ok := cached[hash]; ok {
		t.Error("expected cache miss")
	}

	if err := store.CacheEmbeddings(ctx, fingerprint, map[string][]float32{hash: emb}, 3); err != nil {
		t.Fatalf("CacheEmbeddings: %v", err)
	}

	cached, err = store.GetCachedEmbeddings(ctx, fingerprint, []string{hash})
	if err != nil {
		t.Fatalf("GetCachedEmbeddings: %v", err)
	}
	got, ok := cached[hash]
	if !ok {
		t.Fatal("expected cache hit")
	}
	if len(got) != 3 || got[0] != 0.1 {
		t.Errorf("cached embedding = %v", got)
	}
}

func TestScopeResolver_SharedContextOverridesActor(t *testing.T) {
	ctx := ScopeContext{SessionKey: "chan:123", ChatType: "group", ActorID: "u1", ActorType: ActorHuman}
	scope, _, _ := ResolveScope(ctx, "what do we think about this?", ScopeOverride{})
	if scope != ScopeSession {
		t.Errorf("shared-context query in a group chat: scope = %v, want %v", scope, ScopeSession)
	}
}

func TestScopeResolver_DirectActorQuery(t *testing.T) {
	ctx := ScopeContext{SessionKey: "dm:u1", ChatType: "direct", ActorID: "u1", ActorType: ActorHuman}
	scope, actorID, actorType := ResolveScope(ctx, "what did I say yesterday?", ScopeOverride{})
	if scope != ScopeActor {
		t.Errorf("direct-chat actor query: scope = %v, want %v", scope, ScopeActor)
	}
	if actorID != "u1" || actorType != ActorHuman {
		t.Errorf("actorID/actorType = %q/%q, want u1/human", actorID, actorType)
	}
}

func TestRecencyWindow_DatedFile(t *testing.T) {
	now := time.Date(2026, 8, 6, 0, 0, 0, 0, time.UTC)
	after, before := RecencyWindow([]string{"memory/2026-08-01.md"}, now)
	if after.IsZero() || before.IsZero() {
		t.Fatal("expected a non-empty window for a dated file")
	}
	if after.Day() != 1 || before.Day() != 1 {
		t.Errorf("window = [%v, %v], want day 1", after, before)
	}
}

func TestRecencyWindow_MemoryMDFallback(t *testing.T) {
	now := time.Date(2026, 8, 6, 0, 0, 0, 0, time.UTC)
	after, before := RecencyWindow([]string{"MEMORY.md"}, now)
	if after.IsZero() {
		t.Fatal("expected a 30-day lookback for MEMORY.md")
	}
	if !before.IsZero() {
		t.Errorf("expected no upper bound, got %v", before)
	}
}

// TestManager_SessionChunkActorID_FromSnapshot covers scenario S3: an
// actor-scoped query for the human's resolved user id must find their
// session chunks. It would fail if session chunking stored the session
// key in place of the actor id.
func TestManager_SessionChunkActorID_FromSnapshot(t *testing.T) {
	tmpDir := t.TempDir()
	sessionsDir := filepath.Join(tmpDir, "sessions")
	os.MkdirAll(sessionsDir, 0755)

	sessionKey := "tg:chan:42"
	transcript := `{"type":"message","message":{"role":"user","content":[{"type":"text","text":"remember my flight is delayed"}]}}
{"type":"message","message":{"role":"assistant","content":[{"type":"text","text":"got it, noted"}]}}
`
	os.WriteFile(filepath.Join(sessionsDir, sessionKey+".jsonl"), []byte(transcript), 0644)

	snapshotPath := filepath.Join(tmpDir, "snapshot.json")
	snapshot := `{"` + sessionKey + `":{"Origin":{"From":"tg:+1234","Label":"Traveler"}}}`
	os.WriteFile(snapshotPath, []byte(snapshot), 0644)

	cfg := DefaultManagerConfig(tmpDir)
	cfg.Sources = []Source{SourceSessions}
	cfg.SessionsDir = sessionsDir
	cfg.ActorsSnapshotPath = snapshotPath
	mgr, err := NewManager(cfg)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	defer mgr.Close()

	ctx := context.Background()
	if err := mgr.IndexAll(ctx); err != nil {
		t.Fatalf("IndexAll: %v", err)
	}

	actors, err := mgr.LookupActors(ctx, "Traveler", 10)
	if err != nil {
		t.Fatalf("LookupActors: %v", err)
	}
	if len(actors) != 1 || actors[0].ActorID != "tg:+1234" {
		t.Fatalf("LookupActors = %+v, want a single actor tg:+1234", actors)
	}

	results, err := mgr.Search(ctx, SearchOptions{
		Query:      "flight delayed",
		Mode:       ModeKeyword,
		MaxResults: 5,
		Scope:      ScopeActor,
		ActorID:    "tg:+1234",
	})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) == 0 {
		t.Fatal("expected actor-scoped search to find the session chunk by resolved user id")
	}

	results, err = mgr.Search(ctx, SearchOptions{
		Query:      "flight delayed",
		Mode:       ModeKeyword,
		MaxResults: 5,
		Scope:      ScopeActor,
		ActorID:    sessionKey,
	})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 0 {
		t.Fatalf("actor-scoped search on the session key (not the resolved actor id) should find nothing, got %d", len(results))
	}
}
