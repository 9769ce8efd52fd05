package file

import (
	"fmt"

	"github.com/nextlevelbuilder/goclaw-memory/internal/memory"
	"github.com/nextlevelbuilder/goclaw-memory/internal/store"
)

// NewMemoryStore constructs the memory-backed store.MemoryStore described
// by cfg: managed (Postgres + pgvector) when cfg.IsManaged(), standalone
// (SQLite + FTS5) otherwise. Both drivers are wired through the same
// memory.Manager, so the rest of the system never branches on mode.
func NewMemoryStore(cfg store.StoreConfig) (*ManagerMemoryStore, error) {
	memCfg := memory.DefaultManagerConfig(cfg.Workspace)
	memCfg.ExtraPaths = cfg.ExtraPaths
	if cfg.SessionsDir != "" {
		memCfg.SessionsDir = cfg.SessionsDir
	}
	memCfg.ActorsSnapshotPath = cfg.ActorsSnapshotPath
	memCfg.Redis = memory.RedisCacheConfig{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
		TTL:      cfg.Redis.TTL,
	}

	if cfg.IsManaged() {
		memCfg.Driver = memory.DriverPostgres
		memCfg.PostgresDSN = cfg.PostgresDSN
		memCfg.MigrationsTable = cfg.MigrationsTable
	} else if cfg.SQLitePath != "" {
		memCfg.SQLitePath = cfg.SQLitePath
	}

	memMgr, err := memory.NewManager(memCfg)
	if err != nil {
		return nil, fmt.Errorf("create memory manager: %w", err)
	}

	return NewManagerMemoryStore(memMgr, cfg.Workspace), nil
}
