package memory

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements ChunkStore for the standalone driver (§4.14): a
// single-file backend with FTS5 full-text search and an in-process
// cosine scan in place of a real vector index. It exists so the rest of
// the system can run without a Postgres server.
type SQLiteStore struct {
	db *sql.DB
	mu sync.RWMutex
}

func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	slog.Info("standalone memory store opened", "path", dbPath)
	return s, nil
}

func (s *SQLiteStore) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS memory_meta (key TEXT PRIMARY KEY, value TEXT NOT NULL)`,
		`CREATE TABLE IF NOT EXISTS memory_files (
			path TEXT NOT NULL, source TEXT NOT NULL, session_key TEXT, hash TEXT NOT NULL,
			mtime INTEGER NOT NULL DEFAULT 0, size INTEGER NOT NULL DEFAULT 0,
			role TEXT, actor_type TEXT, actor_id TEXT,
			PRIMARY KEY (path, source)
		)`,
		`CREATE TABLE IF NOT EXISTS memory_chunks (
			id TEXT PRIMARY KEY, path TEXT NOT NULL, source TEXT NOT NULL DEFAULT 'memory',
			session_key TEXT, role TEXT, actor_type TEXT, actor_id TEXT,
			message_id TEXT, message_created_at INTEGER,
			start_line INTEGER NOT NULL, end_line INTEGER NOT NULL,
			hash TEXT NOT NULL, model TEXT NOT NULL DEFAULT '', text TEXT NOT NULL,
			embedding TEXT NOT NULL DEFAULT '[]',
			created_at INTEGER NOT NULL DEFAULT (strftime('%s','now')),
			updated_at INTEGER NOT NULL DEFAULT (strftime('%s','now'))
		)`,
		`CREATE INDEX IF NOT EXISTS idx_chunks_path ON memory_chunks(path)`,
		`CREATE INDEX IF NOT EXISTS idx_chunks_source ON memory_chunks(source)`,
		`CREATE INDEX IF NOT EXISTS idx_chunks_session_key ON memory_chunks(session_key)`,
		`CREATE VIRTUAL TABLE IF NOT EXISTS memory_chunks_fts USING fts5(
			text, id UNINDEXED, path UNINDEXED, source UNINDEXED,
			start_line UNINDEXED, end_line UNINDEXED, session_key UNINDEXED, actor_id UNINDEXED,
			tokenize='porter unicode61'
		)`,
		`CREATE TABLE IF NOT EXISTS embedding_cache (
			fingerprint TEXT NOT NULL, hash TEXT NOT NULL, embedding TEXT NOT NULL,
			dims INTEGER NOT NULL DEFAULT 0, updated_at INTEGER NOT NULL DEFAULT (strftime('%s','now')),
			PRIMARY KEY (fingerprint, hash)
		)`,
		`CREATE TABLE IF NOT EXISTS memory_actors (
			actor_id TEXT PRIMARY KEY, actor_type TEXT NOT NULL, display_name TEXT
		)`,
		`CREATE TABLE IF NOT EXISTS memory_actor_aliases (
			alias_norm TEXT NOT NULL, actor_id TEXT NOT NULL, alias TEXT NOT NULL,
			source TEXT NOT NULL DEFAULT '', confidence REAL NOT NULL DEFAULT 1,
			PRIMARY KEY (alias_norm, actor_id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_actor_aliases_norm ON memory_actor_aliases(alias_norm)`,
	}

	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("exec %q: %w", stmt[:min(len(stmt), 60)], err)
		}
	}
	return nil
}

func (s *SQLiteStore) Close() error { return s.db.Close() }

// --- Meta ---

func (s *SQLiteStore) GetMeta(_ context.Context) (Meta, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(`SELECT key, value FROM memory_meta`)
	if err != nil {
		return Meta{}, false, err
	}
	defer rows.Close()

	kv := map[string]string{}
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return Meta{}, false, err
		}
		kv[k] = v
	}
	if len(kv) == 0 {
		return Meta{}, false, nil
	}
	var m Meta
	m.Provider, m.Model, m.ProviderKey = kv["provider"], kv["model"], kv["provider_key"]
	fmt.Sscanf(kv["chunk_tokens"], "%d", &m.ChunkTokens)
	fmt.Sscanf(kv["chunk_overlap"], "%d", &m.ChunkOverlap)
	fmt.Sscanf(kv["vector_dims"], "%d", &m.VectorDims)
	return m, true, nil
}

func (s *SQLiteStore) SetMeta(_ context.Context, m Meta) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	kv := map[string]string{
		"provider": m.Provider, "model": m.Model, "provider_key": m.ProviderKey,
		"chunk_tokens": fmt.Sprintf("%d", m.ChunkTokens), "chunk_overlap": fmt.Sprintf("%d", m.ChunkOverlap),
		"vector_dims": fmt.Sprintf("%d", m.VectorDims),
	}
	for k, v := range kv {
		if _, err := s.db.Exec(`INSERT OR REPLACE INTO memory_meta (key, value) VALUES (?, ?)`, k, v); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLiteStore) PurgeAll(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, stmt := range []string{
		`DELETE FROM memory_chunks`, `DELETE FROM memory_chunks_fts`,
		`DELETE FROM memory_files`, `DELETE FROM embedding_cache`, `DELETE FROM memory_meta`,
	} {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// --- Files ---

func (s *SQLiteStore) GetFileRecord(_ context.Context, path string, source Source) (FileRecord, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var rec FileRecord
	var sessionKey, role, actorType, actorID sql.NullString
	err := s.db.QueryRow(`SELECT path, source, session_key, hash, mtime, size, role, actor_type, actor_id
		FROM memory_files WHERE path = ? AND source = ?`, path, source).
		Scan(&rec.Path, &rec.Source, &sessionKey, &rec.Hash, &rec.MTime, &rec.Size, &role, &actorType, &actorID)
	if err == sql.ErrNoRows {
		return FileRecord{}, false, nil
	}
	if err != nil {
		return FileRecord{}, false, err
	}
	rec.SessionKey, rec.Role, rec.ActorType, rec.ActorID = sessionKey.String, Role(role.String), ActorType(actorType.String), actorID.String
	return rec, true, nil
}

func (s *SQLiteStore) ListFileRecords(_ context.Context, source Source) ([]FileRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(`SELECT path, source, session_key, hash, mtime, size, role, actor_type, actor_id
		FROM memory_files WHERE source = ?`, source)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []FileRecord
	for rows.Next() {
		var rec FileRecord
		var sessionKey, role, actorType, actorID sql.NullString
		if err := rows.Scan(&rec.Path, &rec.Source, &sessionKey, &rec.Hash, &rec.MTime, &rec.Size, &role, &actorType, &actorID); err != nil {
			return nil, err
		}
		rec.SessionKey, rec.Role, rec.ActorType, rec.ActorID = sessionKey.String, Role(role.String), ActorType(actorType.String), actorID.String
		out = append(out, rec)
	}
	return out, nil
}

func (s *SQLiteStore) UpsertFileRecord(_ context.Context, rec FileRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(`INSERT OR REPLACE INTO memory_files (path, source, session_key, hash, mtime, size, role, actor_type, actor_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.Path, rec.Source, rec.SessionKey, rec.Hash, rec.MTime, rec.Size, string(rec.Role), string(rec.ActorType), rec.ActorID)
	return err
}

func (s *SQLiteStore) DeleteFileRecord(_ context.Context, path string, source Source) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(`DELETE FROM memory_files WHERE path = ? AND source = ?`, path, source)
	return err
}

// --- Chunks ---

func (s *SQLiteStore) ReplaceChunks(_ context.Context, path string, source Source, chunks []Chunk) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM memory_chunks WHERE path = ? AND source = ?`, path, source); err != nil {
		return err
	}
	if _, err := tx.Exec(`DELETE FROM memory_chunks_fts WHERE path = ? AND source = ?`, path, source); err != nil {
		return err
	}

	for _, c := range chunks {
		embJSON, err := json.Marshal(c.Embedding)
		if err != nil {
			return fmt.Errorf("marshal embedding: %w", err)
		}
		var msgCreatedAt sql.NullInt64
		if !c.MessageCreatedAt.IsZero() {
			msgCreatedAt = sql.NullInt64{Int64: c.MessageCreatedAt.Unix(), Valid: true}
		}

		_, err = tx.Exec(`INSERT INTO memory_chunks (
				id, path, source, session_key, role, actor_type, actor_id, message_id,
				message_created_at, start_line, end_line, hash, model, text, embedding, updated_at)
			VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?, strftime('%s','now'))`,
			c.ID, c.Path, c.Source, c.SessionKey, string(c.Role), string(c.ActorType), c.ActorID, c.MessageID,
			msgCreatedAt, c.StartLine, c.EndLine, c.Hash, c.Model, c.Text, string(embJSON))
		if err != nil {
			return fmt.Errorf("insert chunk %s: %w", c.ID, err)
		}

		_, err = tx.Exec(`INSERT INTO memory_chunks_fts (text, id, path, source, start_line, end_line, session_key, actor_id)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			c.Text, c.ID, c.Path, c.Source, c.StartLine, c.EndLine, c.SessionKey, c.ActorID)
		if err != nil {
			return fmt.Errorf("insert fts: %w", err)
		}
	}

	return tx.Commit()
}

func (s *SQLiteStore) DeleteChunksByPath(_ context.Context, path string, source Source) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM memory_chunks_fts WHERE path = ? AND source = ?`, path, source); err != nil {
		return err
	}
	if _, err := tx.Exec(`DELETE FROM memory_chunks WHERE path = ? AND source = ?`, path, source); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *SQLiteStore) ChunkCount(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var n int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM memory_chunks`).Scan(&n)
	return n, err
}

// EnsureVectorIndex is a no-op in the standalone driver: there is no ANN
// index, search falls back to an in-process cosine scan (see VectorSearch).
func (s *SQLiteStore) EnsureVectorIndex(_ context.Context, _ int) error { return nil }

// --- Embedding cache ---

func (s *SQLiteStore) GetCachedEmbeddings(_ context.Context, fingerprint string, hashes []string) (map[string][]float32, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := map[string][]float32{}
	for _, h := range hashes {
		var embJSON string
		err := s.db.QueryRow(`SELECT embedding FROM embedding_cache WHERE fingerprint = ? AND hash = ?`, fingerprint, h).Scan(&embJSON)
		if err == sql.ErrNoRows {
			continue
		}
		if err != nil {
			return nil, err
		}
		var vec []float32
		if err := json.Unmarshal([]byte(embJSON), &vec); err != nil {
			continue
		}
		out[h] = vec
	}
	return out, nil
}

func (s *SQLiteStore) CacheEmbeddings(_ context.Context, fingerprint string, entries map[string][]float32, dims int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for hash, vec := range entries {
		embJSON, _ := json.Marshal(vec)
		_, err := s.db.Exec(`INSERT OR REPLACE INTO embedding_cache (fingerprint, hash, embedding, dims, updated_at)
			VALUES (?, ?, ?, ?, strftime('%s','now'))`, fingerprint, hash, string(embJSON), dims)
		if err != nil {
			return err
		}
	}
	return nil
}

// --- Actor directory ---

func (s *SQLiteStore) UpsertActor(_ context.Context, a Actor) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(`INSERT OR REPLACE INTO memory_actors (actor_id, actor_type, display_name) VALUES (?, ?, ?)`,
		a.ActorID, a.ActorType, a.DisplayName)
	return err
}

func (s *SQLiteStore) UpsertActorAlias(_ context.Context, alias ActorAlias) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(`INSERT OR REPLACE INTO memory_actor_aliases (alias_norm, actor_id, alias, source, confidence)
		VALUES (?, ?, ?, ?, ?)`, alias.AliasNorm, alias.ActorID, alias.Alias, alias.SourceChan, alias.Confidence)
	return err
}

func (s *SQLiteStore) LookupActors(_ context.Context, query string, limit int) ([]Actor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 || limit > 50 {
		limit = 50
	}
	like := "%" + strings.ToLower(query) + "%"
	rows, err := s.db.Query(`
		SELECT a.actor_id, a.actor_type, a.display_name, MAX(COALESCE(al.confidence, 0)) AS max_conf
		FROM memory_actors a
		LEFT JOIN memory_actor_aliases al ON al.actor_id = a.actor_id
		WHERE LOWER(COALESCE(a.display_name, '')) LIKE ? OR LOWER(al.alias) LIKE ?
		GROUP BY a.actor_id, a.actor_type, a.display_name
		ORDER BY max_conf DESC, a.display_name ASC
		LIMIT ?`, like, like, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Actor
	for rows.Next() {
		var a Actor
		var displayName sql.NullString
		var maxConf float64
		if err := rows.Scan(&a.ActorID, &a.ActorType, &displayName, &maxConf); err != nil {
			return nil, err
		}
		a.DisplayName = displayName.String
		out = append(out, a)
	}
	return out, nil
}

// --- Retrieval ---

func (s *SQLiteStore) KeywordSearch(_ context.Context, query string, candidates int, opts SearchOptions) ([]SearchResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	where, args := sqliteScopeWhere(opts)
	args = append([]interface{}{query}, args...)
	args = append(args, candidates)

	q := fmt.Sprintf(`SELECT path, source, start_line, end_line, text, session_key, actor_id,
		1.0 / (1.0 + abs(rank)) as score
		FROM memory_chunks_fts
		WHERE memory_chunks_fts MATCH ? %s
		ORDER BY rank
		LIMIT ?`, where)

	rows, err := s.db.Query(q, args...)
	if err != nil {
		return nil, fmt.Errorf("keyword search: %w", err)
	}
	defer rows.Close()
	return scanSQLiteResults(rows)
}

func (s *SQLiteStore) VectorSearch(_ context.Context, queryVec []float32, candidates int, opts SearchOptions) ([]SearchResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(`SELECT id, path, source, start_line, end_line, text, session_key, actor_id, embedding FROM memory_chunks`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	type scored struct {
		r     SearchResult
		score float64
	}
	var all []scored
	for rows.Next() {
		var id, path, source, text, sessionKey, actorID, embJSON string
		var startLine, endLine int
		if err := rows.Scan(&id, &path, &source, &startLine, &endLine, &text, &sessionKey, &actorID, &embJSON); err != nil {
			continue
		}
		if !sqliteMatchesScope(opts, Source(source), sessionKey, actorID, path) {
			continue
		}
		var emb []float32
		if err := json.Unmarshal([]byte(embJSON), &emb); err != nil || len(emb) == 0 {
			continue
		}
		sim := CosineSimilarity(queryVec, emb)
		all = append(all, scored{
			r: SearchResult{Path: path, StartLine: startLine, EndLine: endLine, Score: sim,
				Snippet: truncateSnippet(text, 700), Source: source, SessionKey: sessionKey, ActorID: actorID},
			score: sim,
		})
	}

	sort.Slice(all, func(i, j int) bool { return all[i].score > all[j].score })
	if len(all) > candidates {
		all = all[:candidates]
	}
	out := make([]SearchResult, len(all))
	for i, a := range all {
		out[i] = a.r
	}
	return out, nil
}

func sqliteScopeWhere(opts SearchOptions) (string, []interface{}) {
	var clauses []string
	var args []interface{}

	switch opts.Scope {
	case ScopeSession:
		clauses = append(clauses, "source = 'sessions' AND session_key = ?")
		args = append(args, opts.SessionKey)
	case ScopeActor:
		if opts.ActorID != "" {
			clauses = append(clauses, "(source = 'memory' OR (source = 'sessions' AND actor_id = ?))")
			args = append(args, opts.ActorID)
		} else {
			clauses = append(clauses, "source = 'memory'")
		}
	}
	if opts.Source != "" {
		clauses = append(clauses, "source = ?")
		args = append(args, opts.Source)
	}
	if opts.PathPrefix != "" {
		clauses = append(clauses, "path LIKE ?")
		args = append(args, opts.PathPrefix+"%")
	}
	if len(clauses) == 0 {
		return "", nil
	}
	return " AND " + strings.Join(clauses, " AND "), args
}

func sqliteMatchesScope(opts SearchOptions, source Source, sessionKey, actorID, path string) bool {
	switch opts.Scope {
	case ScopeSession:
		if source != SourceSessions || sessionKey != opts.SessionKey {
			return false
		}
	case ScopeActor:
		if opts.ActorID != "" && !(source == SourceMemory || (source == SourceSessions && actorID == opts.ActorID)) {
			return false
		}
	}
	if opts.Source != "" && string(source) != opts.Source {
		return false
	}
	if opts.PathPrefix != "" && !strings.HasPrefix(path, opts.PathPrefix) {
		return false
	}
	return true
}

func scanSQLiteResults(rows *sql.Rows) ([]SearchResult, error) {
	var out []SearchResult
	for rows.Next() {
		var r SearchResult
		var sessionKey, actorID, text string
		if err := rows.Scan(&r.Path, &r.Source, &r.StartLine, &r.EndLine, &text, &sessionKey, &actorID, &r.Score); err != nil {
			continue
		}
		r.Snippet = truncateSnippet(text, 700)
		r.SessionKey = sessionKey
		r.ActorID = actorID
		out = append(out, r)
	}
	return out, nil
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
