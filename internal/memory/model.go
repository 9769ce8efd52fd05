// Package memory provides the hybrid memory index for a long-running
// conversational agent: chunking, embedding, storage, and hybrid
// keyword+vector retrieval over agent memory files and session transcripts.
package memory

import "time"

// Source identifies which family a chunk or file record belongs to.
type Source string

const (
	SourceMemory   Source = "memory"
	SourceSessions Source = "sessions"
)

// Role is the speaker role of a session-derived chunk.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// ActorType distinguishes human participants from agent participants.
type ActorType string

const (
	ActorHuman ActorType = "human"
	ActorAgent ActorType = "agent"
)

// Chunk is a line-anchored slice of a file's or message's text, the unit
// of embedding and search.
type Chunk struct {
	ID                string    `json:"id"`
	Path              string    `json:"path"`
	Source            Source    `json:"source"`
	SessionKey        string    `json:"session_key,omitempty"`
	Role              Role      `json:"role,omitempty"`
	ActorType         ActorType `json:"actor_type,omitempty"`
	ActorID           string    `json:"actor_id,omitempty"`
	MessageID         string    `json:"message_id,omitempty"`
	MessageCreatedAt  time.Time `json:"message_created_at,omitempty"`
	StartLine         int       `json:"start_line"`
	EndLine           int       `json:"end_line"`
	Hash              string    `json:"hash"`
	Model             string    `json:"model"`
	Text              string    `json:"text"`
	Embedding         []float32 `json:"embedding,omitempty"`
	CreatedAt         time.Time `json:"created_at,omitempty"`
	UpdatedAt         time.Time `json:"updated_at,omitempty"`
}

// FileRecord tracks one indexed path per source for change detection.
type FileRecord struct {
	Path       string    `json:"path"`
	Source     Source    `json:"source"`
	SessionKey string    `json:"session_key,omitempty"`
	Hash       string    `json:"hash"`
	MTime      int64     `json:"mtime"`
	Size       int64     `json:"size"`
	Role       Role      `json:"role,omitempty"`
	ActorType  ActorType `json:"actor_type,omitempty"`
	ActorID    string    `json:"actor_id,omitempty"`
}

// Meta is the singleton record describing the active embedding identity
// and chunking parameters. A mismatch on any of Provider/Model/ProviderKey/
// ChunkTokens/ChunkOverlap forces a full rebuild (see
// Indexer.checkMetaAndMaybeRebuild).
type Meta struct {
	Model        string `json:"model"`
	Provider     string `json:"provider"`
	ProviderKey  string `json:"provider_key"`
	ChunkTokens  int    `json:"chunk_tokens"`
	ChunkOverlap int    `json:"chunk_overlap"`
	VectorDims   int    `json:"vector_dims,omitempty"`
}

// rebuildKey returns the subset of Meta that forces a full rebuild when
// changed: every field except VectorDims.
func (m Meta) rebuildKey() Meta {
	m.VectorDims = 0
	return m
}

// Actor is a canonical participant referenced by chunks but owned by the
// actor directory.
type Actor struct {
	ActorID     string            `json:"actor_id"`
	ActorType   ActorType         `json:"actor_type"`
	DisplayName string            `json:"display_name,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

// ActorAlias maps a normalized alias string back to a canonical actor.
type ActorAlias struct {
	AliasNorm  string            `json:"alias_norm"`
	Alias      string            `json:"alias"`
	ActorID    string            `json:"actor_id"`
	SourceChan string            `json:"source"`
	Confidence float64           `json:"confidence"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

// SearchResult is a single result from a memory search.
type SearchResult struct {
	Path      string  `json:"path"`
	StartLine int     `json:"start_line"`
	EndLine   int     `json:"end_line"`
	Score     float64 `json:"score"`
	Snippet   string  `json:"snippet"`
	Source    string  `json:"source"`
	SessionKey string `json:"session_key,omitempty"`
	ActorID   string  `json:"actor_id,omitempty"`
}

// Mode selects which signal(s) the retriever uses.
type Mode string

const (
	ModeHybrid  Mode = "hybrid"
	ModeVector  Mode = "vector"
	ModeKeyword Mode = "keyword"
)

// Scope is the resolved privacy scope of a query (see scope.go).
type Scope string

const (
	ScopeSession Scope = "session"
	ScopeActor   Scope = "actor"
	ScopeGlobal  Scope = "global"
)

// SearchOptions configures a search query end to end: retrieval mode,
// result shaping, and the scope filters produced by the scope resolver.
type SearchOptions struct {
	Query      string
	Mode       Mode
	MaxResults int
	MinScore   float64

	// Legacy / standalone-mode filters (path-prefix, source-only).
	Source     string
	PathPrefix string

	// Scope filters (see §4.8).
	Scope      Scope
	SessionKey string
	ActorID    string
	ActorType  ActorType
	Role       Role

	UpdatedAfter  time.Time
	UpdatedBefore time.Time
}
