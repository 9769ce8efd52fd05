package store

import (
	"time"

	"github.com/google/uuid"
)

// BaseModel provides common fields for all database models.
type BaseModel struct {
	ID        uuid.UUID `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// GenNewID generates a new UUID v7 (time-ordered).
func GenNewID() uuid.UUID {
	return uuid.Must(uuid.NewV7())
}

// StoreConfig configures the store layer: which driver backs the memory
// index and where its ambient on-disk state lives.
type StoreConfig struct {
	// PostgresDSN is the Postgres connection string. If empty, standalone
	// (SQLite) mode is used.
	PostgresDSN string

	// Mode: "standalone" (default, SQLite) or "managed" (Postgres + pgvector).
	Mode string

	// MigrationsTable overrides golang-migrate's schema_migrations table
	// name, for deployments sharing a database with other services.
	MigrationsTable string

	// SQLitePath is the standalone driver's database file path.
	SQLitePath string

	// Workspace is the root directory walked for memory files.
	Workspace string

	// ExtraPaths are additional directories walked for memory files beyond
	// Workspace.
	ExtraPaths []string

	// SessionsDir is the directory containing session transcript JSONL files.
	SessionsDir string

	// ActorsSnapshotPath, when set, points at a session-store snapshot
	// reloaded before every sync pass to populate the actor directory and
	// resolve session-chunk actor ids (§4.7).
	ActorsSnapshotPath string

	// Redis is the optional shared embedding-cache front door (§6
	// memorySearch.cache.redis.*). Zero value (empty Addr) disables it.
	Redis RedisCacheConfig
}

// RedisCacheConfig configures the optional shared embedding cache that sits
// behind the in-process LRU cache and in front of the store-backed cache.
type RedisCacheConfig struct {
	Addr     string
	Password string
	DB       int
	TTL      time.Duration
}

// IsManaged returns true if the system is in managed (Postgres) mode.
func (c StoreConfig) IsManaged() bool {
	return c.PostgresDSN != "" && c.Mode == "managed"
}
