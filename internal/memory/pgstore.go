package memory

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	pgvec "github.com/pgvector/pgvector-go"

	"github.com/nextlevelbuilder/goclaw-memory/internal/store/pg"
)

// PGStore implements ChunkStore against Postgres + pgvector. It is the
// managed, primary backend required by §4.4.
type PGStore struct {
	db *sql.DB
}

// OpenPGStore opens a pooled pgx connection via the shared store/pg pool
// helper and runs pending migrations. migrationsTable overrides the
// golang-migrate schema-version table name; empty uses the driver default.
func OpenPGStore(dsn string, migrationsTable string) (*PGStore, error) {
	db, err := pg.OpenDB(dsn)
	if err != nil {
		return nil, err
	}
	if err := MigrateUp(db, migrationsTable); err != nil {
		db.Close()
		return nil, err
	}
	return &PGStore{db: db}, nil
}

func (s *PGStore) Close() error { return s.db.Close() }

// --- Meta ---

func (s *PGStore) GetMeta(ctx context.Context) (Meta, bool, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT key, value FROM memory_meta`)
	if err != nil {
		return Meta{}, false, fmt.Errorf("get meta: %w", err)
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
	m.Provider = kv["provider"]
	m.Model = kv["model"]
	m.ProviderKey = kv["provider_key"]
	fmt.Sscanf(kv["chunk_tokens"], "%d", &m.ChunkTokens)
	fmt.Sscanf(kv["chunk_overlap"], "%d", &m.ChunkOverlap)
	fmt.Sscanf(kv["vector_dims"], "%d", &m.VectorDims)
	return m, true, nil
}

func (s *PGStore) SetMeta(ctx context.Context, m Meta) error {
	kv := map[string]string{
		"provider":      m.Provider,
		"model":         m.Model,
		"provider_key":  m.ProviderKey,
		"chunk_tokens":  fmt.Sprintf("%d", m.ChunkTokens),
		"chunk_overlap": fmt.Sprintf("%d", m.ChunkOverlap),
		"vector_dims":   fmt.Sprintf("%d", m.VectorDims),
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for k, v := range kv {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO memory_meta (key, value) VALUES ($1, $2)
			ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value`, k, v); err != nil {
			return fmt.Errorf("set meta %s: %w", k, err)
		}
	}
	return tx.Commit()
}

func (s *PGStore) PurgeAll(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, stmt := range []string{
		`TRUNCATE memory_chunks`,
		`TRUNCATE memory_files`,
		`TRUNCATE embedding_cache`,
		`DELETE FROM memory_meta`,
	} {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("purge (%s): %w", stmt, err)
		}
	}
	return tx.Commit()
}

// --- Files ---

func (s *PGStore) GetFileRecord(ctx context.Context, path string, source Source) (FileRecord, bool, error) {
	var rec FileRecord
	var sessionKey, role, actorType, actorID sql.NullString
	err := s.db.QueryRowContext(ctx, `
		SELECT path, source, session_key, hash, mtime, size, role, actor_type, actor_id
		FROM memory_files WHERE path = $1 AND source = $2`, path, source).
		Scan(&rec.Path, &rec.Source, &sessionKey, &rec.Hash, &rec.MTime, &rec.Size, &role, &actorType, &actorID)
	if err == sql.ErrNoRows {
		return FileRecord{}, false, nil
	}
	if err != nil {
		return FileRecord{}, false, fmt.Errorf("get file record: %w", err)
	}
	rec.SessionKey = sessionKey.String
	rec.Role = Role(role.String)
	rec.ActorType = ActorType(actorType.String)
	rec.ActorID = actorID.String
	return rec, true, nil
}

func (s *PGStore) ListFileRecords(ctx context.Context, source Source) ([]FileRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT path, source, session_key, hash, mtime, size, role, actor_type, actor_id
		FROM memory_files WHERE source = $1`, source)
	if err != nil {
		return nil, fmt.Errorf("list file records: %w", err)
	}
	defer rows.Close()

	var out []FileRecord
	for rows.Next() {
		var rec FileRecord
		var sessionKey, role, actorType, actorID sql.NullString
		if err := rows.Scan(&rec.Path, &rec.Source, &sessionKey, &rec.Hash, &rec.MTime, &rec.Size, &role, &actorType, &actorID); err != nil {
			return nil, err
		}
		rec.SessionKey = sessionKey.String
		rec.Role = Role(role.String)
		rec.ActorType = ActorType(actorType.String)
		rec.ActorID = actorID.String
		out = append(out, rec)
	}
	return out, nil
}

func (s *PGStore) UpsertFileRecord(ctx context.Context, rec FileRecord) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO memory_files (path, source, session_key, hash, mtime, size, role, actor_type, actor_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (path, source) DO UPDATE SET
			session_key = EXCLUDED.session_key, hash = EXCLUDED.hash, mtime = EXCLUDED.mtime,
			size = EXCLUDED.size, role = EXCLUDED.role, actor_type = EXCLUDED.actor_type, actor_id = EXCLUDED.actor_id`,
		rec.Path, rec.Source, nullable(rec.SessionKey), rec.Hash, rec.MTime, rec.Size,
		nullable(string(rec.Role)), nullable(string(rec.ActorType)), nullable(rec.ActorID))
	if err != nil {
		return fmt.Errorf("upsert file record: %w", err)
	}
	return nil
}

func (s *PGStore) DeleteFileRecord(ctx context.Context, path string, source Source) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM memory_files WHERE path = $1 AND source = $2`, path, source)
	if err != nil {
		return fmt.Errorf("delete file record: %w", err)
	}
	return nil
}

// --- Chunks ---

func (s *PGStore) ReplaceChunks(ctx context.Context, path string, source Source, chunks []Chunk) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM memory_chunks WHERE path = $1 AND source = $2`, path, source); err != nil {
		return fmt.Errorf("delete prior chunks: %w", err)
	}

	for _, c := range chunks {
		var emb interface{}
		if len(c.Embedding) > 0 {
			emb = pgvec.NewVector(c.Embedding)
		}
		msgCreatedAt := nullableTime(c.MessageCreatedAt)
		_, err := tx.ExecContext(ctx, `
			INSERT INTO memory_chunks (
				id, path, source, session_key, role, actor_type, actor_id, message_id,
				message_created_at, start_line, end_line, hash, model, text, embedding,
				created_at, updated_at
			) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15, now(), now())`,
			c.ID, c.Path, c.Source, nullable(c.SessionKey), nullable(string(c.Role)),
			nullable(string(c.ActorType)), nullable(c.ActorID), nullable(c.MessageID),
			msgCreatedAt, c.StartLine, c.EndLine, c.Hash, c.Model, c.Text, emb)
		if err != nil {
			return fmt.Errorf("insert chunk %s: %w", c.ID, err)
		}
	}

	return tx.Commit()
}

func (s *PGStore) DeleteChunksByPath(ctx context.Context, path string, source Source) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM memory_chunks WHERE path = $1 AND source = $2`, path, source)
	if err != nil {
		return fmt.Errorf("delete chunks: %w", err)
	}
	return nil
}

func (s *PGStore) ChunkCount(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM memory_chunks`).Scan(&n); err != nil {
		return 0, fmt.Errorf("chunk count: %w", err)
	}
	return n, nil
}

func (s *PGStore) EnsureVectorIndex(ctx context.Context, dims int) error {
	if dims <= 0 {
		return nil
	}
	var exists bool
	if err := s.db.QueryRowContext(ctx,
		`SELECT to_regclass('idx_memory_chunks_embedding_hnsw') IS NOT NULL`).Scan(&exists); err != nil {
		return fmt.Errorf("check vector index: %w", err)
	}
	if exists {
		return nil
	}

	if _, err := s.db.ExecContext(ctx, fmt.Sprintf(
		`ALTER TABLE memory_chunks ALTER COLUMN embedding TYPE vector(%d) USING embedding::vector(%d)`, dims, dims)); err != nil {
		return fmt.Errorf("set embedding dims: %w", err)
	}
	if _, err := s.db.ExecContext(ctx,
		`CREATE INDEX IF NOT EXISTS idx_memory_chunks_embedding_hnsw ON memory_chunks USING hnsw (embedding vector_cosine_ops)`); err != nil {
		return fmt.Errorf("create vector index: %w", err)
	}
	return nil
}

// --- Embedding cache ---

func (s *PGStore) GetCachedEmbeddings(ctx context.Context, fingerprint string, hashes []string) (map[string][]float32, error) {
	if len(hashes) == 0 {
		return map[string][]float32{}, nil
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT hash, embedding FROM embedding_cache WHERE fingerprint = $1 AND hash = ANY($2)`,
		fingerprint, hashes)
	if err != nil {
		return nil, fmt.Errorf("get cached embeddings: %w", err)
	}
	defer rows.Close()

	out := map[string][]float32{}
	for rows.Next() {
		var hash string
		var vec pgvec.Vector
		if err := rows.Scan(&hash, &vec); err != nil {
			return nil, err
		}
		out[hash] = vec.Slice()
	}
	return out, nil
}

func (s *PGStore) CacheEmbeddings(ctx context.Context, fingerprint string, entries map[string][]float32, dims int) error {
	if len(entries) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for hash, vec := range entries {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO embedding_cache (fingerprint, hash, embedding, dims, updated_at)
			VALUES ($1, $2, $3, $4, now())
			ON CONFLICT (fingerprint, hash) DO UPDATE SET embedding = EXCLUDED.embedding, dims = EXCLUDED.dims, updated_at = now()`,
			fingerprint, hash, pgvec.NewVector(vec), dims)
		if err != nil {
			return fmt.Errorf("cache embedding %s: %w", hash, err)
		}
	}
	return tx.Commit()
}

// --- Actor directory ---

func (s *PGStore) UpsertActor(ctx context.Context, a Actor) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO memory_actors (actor_id, actor_type, display_name, metadata)
		VALUES ($1, $2, $3, NULL)
		ON CONFLICT (actor_id) DO UPDATE SET actor_type = EXCLUDED.actor_type, display_name = COALESCE(EXCLUDED.display_name, memory_actors.display_name)`,
		a.ActorID, a.ActorType, nullable(a.DisplayName))
	if err != nil {
		return fmt.Errorf("upsert actor: %w", err)
	}
	return nil
}

func (s *PGStore) UpsertActorAlias(ctx context.Context, alias ActorAlias) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO memory_actor_aliases (alias_norm, actor_id, alias, source, confidence, metadata)
		VALUES ($1, $2, $3, $4, $5, NULL)
		ON CONFLICT (alias_norm, actor_id) DO UPDATE SET alias = EXCLUDED.alias, source = EXCLUDED.source, confidence = EXCLUDED.confidence`,
		alias.AliasNorm, alias.ActorID, alias.Alias, alias.SourceChan, alias.Confidence)
	if err != nil {
		return fmt.Errorf("upsert actor alias: %w", err)
	}
	return nil
}

func (s *PGStore) LookupActors(ctx context.Context, query string, limit int) ([]Actor, error) {
	if limit <= 0 || limit > 50 {
		limit = 50
	}
	like := "%" + query + "%"
	rows, err := s.db.QueryContext(ctx, `
		SELECT a.actor_id, a.actor_type, a.display_name, MAX(COALESCE(al.confidence, 0)) AS max_conf
		FROM memory_actors a
		LEFT JOIN memory_actor_aliases al ON al.actor_id = a.actor_id
		WHERE a.display_name ILIKE $1 OR al.alias ILIKE $1
		GROUP BY a.actor_id, a.actor_type, a.display_name
		ORDER BY max_conf DESC, a.display_name ASC
		LIMIT $2`, like, limit)
	if err != nil {
		return nil, fmt.Errorf("lookup actors: %w", err)
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

func (s *PGStore) KeywordSearch(ctx context.Context, query string, candidates int, opts SearchOptions) ([]SearchResult, error) {
	where, args, next := scopeWhereSQL(opts, 2)
	_ = next
	q := fmt.Sprintf(`
		SELECT path, source, start_line, end_line, text, session_key, actor_id,
			ts_rank(tsv, plainto_tsquery('english', $1)) AS score
		FROM memory_chunks
		WHERE tsv @@ plainto_tsquery('english', $1) %s
		ORDER BY score DESC
		LIMIT %d`, where, candidates)

	allArgs := append([]interface{}{query}, args...)
	rows, err := s.db.QueryContext(ctx, q, allArgs...)
	if err != nil {
		return nil, fmt.Errorf("keyword search: %w", err)
	}
	defer rows.Close()
	return scanSearchResults(rows)
}

func (s *PGStore) VectorSearch(ctx context.Context, queryVec []float32, candidates int, opts SearchOptions) ([]SearchResult, error) {
	where, args, _ := scopeWhereSQL(opts, 2)
	q := fmt.Sprintf(`
		SELECT path, source, start_line, end_line, text, session_key, actor_id,
			1 - (embedding <=> $1) AS score
		FROM memory_chunks
		WHERE embedding IS NOT NULL %s
		ORDER BY embedding <=> $1
		LIMIT %d`, where, candidates)

	allArgs := append([]interface{}{pgvec.NewVector(queryVec)}, args...)
	rows, err := s.db.QueryContext(ctx, q, allArgs...)
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}
	defer rows.Close()
	return scanSearchResults(rows)
}

func scanSearchResults(rows *sql.Rows) ([]SearchResult, error) {
	var out []SearchResult
	for rows.Next() {
		var r SearchResult
		var sessionKey, actorID sql.NullString
		var text string
		if err := rows.Scan(&r.Path, &r.Source, &r.StartLine, &r.EndLine, &text, &sessionKey, &actorID, &r.Score); err != nil {
			return nil, err
		}
		r.Snippet = truncateSnippet(text, 700)
		r.SessionKey = sessionKey.String
		r.ActorID = actorID.String
		out = append(out, r)
	}
	return out, nil
}

// scopeWhereSQL builds the privacy and filter predicate from §4.8/§4.9.
// Placeholders start at argStart; it returns the SQL fragment (prefixed
// with " AND "), the positional args in order, and the next free
// placeholder index.
func scopeWhereSQL(opts SearchOptions, argStart int) (string, []interface{}, int) {
	var clauses []string
	var args []interface{}
	n := argStart

	switch opts.Scope {
	case ScopeSession:
		clauses = append(clauses, fmt.Sprintf("source = 'sessions' AND session_key = $%d", n))
		args = append(args, opts.SessionKey)
		n++
	case ScopeActor:
		sub := "source = 'memory'"
		if opts.ActorID != "" {
			if opts.ActorType != "" {
				sub = fmt.Sprintf("source = 'memory' OR (source = 'sessions' AND actor_id = $%d AND actor_type = $%d)", n, n+1)
				args = append(args, opts.ActorID, string(opts.ActorType))
				n += 2
			} else {
				sub = fmt.Sprintf("source = 'memory' OR (source = 'sessions' AND actor_id = $%d)", n)
				args = append(args, opts.ActorID)
				n++
			}
		}
		clauses = append(clauses, "("+sub+")")
	case ScopeGlobal:
		// no privacy filter
	}

	if opts.Source != "" {
		clauses = append(clauses, fmt.Sprintf("source = $%d", n))
		args = append(args, opts.Source)
		n++
	}
	if opts.Role != "" {
		clauses = append(clauses, fmt.Sprintf("role = $%d", n))
		args = append(args, string(opts.Role))
		n++
	}
	if opts.PathPrefix != "" {
		clauses = append(clauses, fmt.Sprintf("path LIKE $%d", n))
		args = append(args, opts.PathPrefix+"%")
		n++
	}
	if !opts.UpdatedAfter.IsZero() {
		clauses = append(clauses, fmt.Sprintf("updated_at >= $%d", n))
		args = append(args, opts.UpdatedAfter)
		n++
	}
	if !opts.UpdatedBefore.IsZero() {
		clauses = append(clauses, fmt.Sprintf("updated_at <= $%d", n))
		args = append(args, opts.UpdatedBefore)
		n++
	}

	if len(clauses) == 0 {
		return "", nil, n
	}
	return " AND " + strings.Join(clauses, " AND "), args, n
}

func nullable(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

func nullableTime(t time.Time) interface{} {
	if t.IsZero() {
		return nil
	}
	return t
}
