package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/nextlevelbuilder/goclaw-memory/internal/config"
	"github.com/nextlevelbuilder/goclaw-memory/internal/memory"
	"github.com/nextlevelbuilder/goclaw-memory/internal/store"
	"github.com/nextlevelbuilder/goclaw-memory/internal/store/file"
	"github.com/nextlevelbuilder/goclaw-memory/internal/tools"
)

// resolveConfigPath returns the --config flag value, or "" to fall back
// to ambient defaults (mirrors the teacher CLI's resolveConfigPath, minus
// the XDG search path since this tool has no single fixed install location).
func resolveConfigPath() string {
	return configPath
}

// loadMemoryStore builds the memory store described by the config file
// (or ambient defaults rooted at the current directory), wires its
// embedding provider, and installs tracing if enabled.
func loadMemoryStore() (*file.ManagerMemoryStore, config.Config, error) {
	wd, err := os.Getwd()
	if err != nil {
		return nil, config.Config{}, fmt.Errorf("getwd: %w", err)
	}

	cfg, err := config.Load(resolveConfigPath(), wd)
	if err != nil {
		return nil, config.Config{}, err
	}

	if cfg.Tracing.Enabled {
		if _, err := memory.InitTracing(memory.TracingConfig{Enabled: true}); err != nil {
			return nil, cfg, fmt.Errorf("init tracing: %w", err)
		}
	}

	var redisTTL time.Duration
	if cfg.Cache.Redis.TTL != "" {
		redisTTL, err = time.ParseDuration(cfg.Cache.Redis.TTL)
		if err != nil {
			return nil, cfg, fmt.Errorf("parse cache.redis.ttl %q: %w", cfg.Cache.Redis.TTL, err)
		}
	}

	storeCfg := store.StoreConfig{
		PostgresDSN:        cfg.Store.PostgresDSN,
		Mode:               modeFromDriver(cfg.Store.Driver),
		MigrationsTable:    cfg.Store.MigrationsTable,
		SQLitePath:         cfg.Store.SQLitePath,
		Workspace:          cfg.Workspace,
		ExtraPaths:         cfg.ExtraPaths,
		SessionsDir:        cfg.SessionsDir,
		ActorsSnapshotPath: cfg.Store.ActorsSnapshotPath,
		Redis: store.RedisCacheConfig{
			Addr:     cfg.Cache.Redis.Addr,
			Password: cfg.Cache.Redis.Password,
			DB:       cfg.Cache.Redis.DB,
			TTL:      redisTTL,
		},
	}

	ms, err := file.NewMemoryStore(storeCfg)
	if err != nil {
		return nil, cfg, err
	}

	// memorySearch.rateLimit.* is the operator-facing knob for embedding
	// throughput; it overrides a provider-specific rate pair when set.
	rateRPS, rateBurst := cfg.Provider.Remote.RateRPS, cfg.Provider.Remote.RateBurst
	if cfg.RateLimit.EmbedRPS > 0 {
		rateRPS, rateBurst = cfg.RateLimit.EmbedRPS, cfg.RateLimit.EmbedBurst
	}

	provider, err := memory.BuildProvider(memory.ProviderConfig{
		Provider: cfg.Provider.Provider,
		Fallback: cfg.Provider.Fallback,
		Remote: memory.RemoteProviderConfig{
			BaseURL:    cfg.Provider.Remote.BaseURL,
			Model:      cfg.Provider.Remote.Model,
			APIKey:     cfg.Provider.Remote.APIKey,
			Dimensions: cfg.Provider.Remote.Dimensions,
			RateRPS:    rateRPS,
			RateBurst:  rateBurst,
		},
	})
	if err != nil {
		return nil, cfg, fmt.Errorf("build embedding provider: %w", err)
	}
	ms.SetEmbeddingProvider(provider)

	return ms, cfg, nil
}

func modeFromDriver(driver string) string {
	if driver == "postgres" {
		return "managed"
	}
	return "standalone"
}

// toolConfig converts the ambient tools config into tools.ToolConfig.
func toolConfig(cfg config.Config) tools.ToolConfig {
	return tools.ToolConfig{
		Citations:     tools.CitationMode(cfg.Tools.Citations),
		ResultCharMax: cfg.Tools.ResultCharMax,
	}
}
