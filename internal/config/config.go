// Package config loads the memindex CLI's YAML configuration file,
// covering store selection, workspace layout, the embedding provider, and
// the ambient cache/rate-limit/tracing knobs (§6 memorySearch.*).
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// StoreConfig selects and configures the storage driver.
type StoreConfig struct {
	Driver             string `yaml:"driver"` // "sqlite" (default) or "postgres"
	PostgresDSN        string `yaml:"postgresDsn"`
	MigrationsTable    string `yaml:"migrationsTable"`
	SQLitePath         string `yaml:"sqlitePath"`
	ActorsSnapshotPath string `yaml:"actorsSnapshotPath"`
}

// RemoteConfig configures a remote (HTTP) embedding provider variant.
type RemoteConfig struct {
	BaseURL    string  `yaml:"baseUrl"`
	Model      string  `yaml:"model"`
	APIKey     string  `yaml:"apiKey"`
	Dimensions int     `yaml:"dimensions"`
	RateRPS    float64 `yaml:"rateRps"`
	RateBurst  int     `yaml:"rateBurst"`
}

// ProviderConfig selects the embedding provider and its fallback.
type ProviderConfig struct {
	Provider string       `yaml:"provider"` // "openai", "gemini", "local"
	Remote   RemoteConfig `yaml:"remote"`
	Fallback string       `yaml:"fallback"`
}

// ChunkingConfig mirrors memorySearch.chunking.{tokens,overlap}.
type ChunkingConfig struct {
	Tokens  int `yaml:"tokens"`
	Overlap int `yaml:"overlap"`
}

// HybridConfig mirrors memorySearch.query.hybrid.{enabled,candidateMultiplier,vectorWeight,textWeight}.
type HybridConfig struct {
	Enabled             bool    `yaml:"enabled"`
	CandidateMultiplier float64 `yaml:"candidateMultiplier"`
	VectorWeight        float64 `yaml:"vectorWeight"`
	TextWeight          float64 `yaml:"textWeight"`
}

// QueryConfig mirrors memorySearch.query.{minScore,maxResults,hybrid}.
type QueryConfig struct {
	MinScore   float64      `yaml:"minScore"`
	MaxResults int          `yaml:"maxResults"`
	Hybrid     HybridConfig `yaml:"hybrid"`
}

// RedisCacheConfig mirrors memorySearch.cache.redis.*.
type RedisCacheConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	TTL      string `yaml:"ttl"` // parsed with time.ParseDuration by the caller
}

// CacheConfig mirrors memorySearch.cache.{enabled,maxEntries,redis}.
type CacheConfig struct {
	Enabled    bool             `yaml:"enabled"`
	MaxEntries int              `yaml:"maxEntries"`
	Redis      RedisCacheConfig `yaml:"redis"`
}

// RateLimitConfig mirrors memorySearch.rateLimit.{embedRPS,embedBurst}.
type RateLimitConfig struct {
	EmbedRPS   float64 `yaml:"embedRPS"`
	EmbedBurst int     `yaml:"embedBurst"`
}

// ToolsConfig mirrors memory.citations and the result char budget.
type ToolsConfig struct {
	Citations     string `yaml:"citations"` // "off", "on", "auto"
	ResultCharMax int    `yaml:"resultCharMax"`
}

// Config is the full memindex configuration file shape.
type Config struct {
	Workspace   string         `yaml:"workspace"`
	ExtraPaths  []string       `yaml:"extraPaths"`
	SessionsDir string         `yaml:"sessionsDir"`
	Sources     []string       `yaml:"sources"`
	Store       StoreConfig    `yaml:"store"`
	Provider    ProviderConfig `yaml:"provider"`
	Chunking    ChunkingConfig `yaml:"chunking"`
	Query       QueryConfig    `yaml:"query"`
	Cache       CacheConfig    `yaml:"cache"`
	RateLimit   RateLimitConfig `yaml:"rateLimit"`
	Tools       ToolsConfig    `yaml:"tools"`
	Tracing     struct {
		Enabled bool `yaml:"enabled"`
	} `yaml:"tracing"`
}

// Default returns the ambient defaults for a workspace rooted at dir: a
// standalone SQLite store, both sources, default chunking, default
// hybrid weights, and citations auto-on for direct chats.
func Default(dir string) Config {
	return Config{
		Workspace: dir,
		Sources:   []string{"memory", "sessions"},
		Store:     StoreConfig{Driver: "sqlite"},
		Provider:  ProviderConfig{Provider: "local"},
		Chunking:  ChunkingConfig{Tokens: 400, Overlap: 60},
		Query: QueryConfig{
			MaxResults: 10,
			Hybrid:     HybridConfig{Enabled: true, CandidateMultiplier: 4, VectorWeight: 0.6, TextWeight: 0.4},
		},
		Tools: ToolsConfig{Citations: "auto"},
	}
}

// Load reads and parses a YAML config file at path, overlaying it onto
// the defaults for workspace. A missing file is not an error: the
// defaults are used as-is, matching the CLI's "works with zero config in
// the current directory" behavior.
func Load(path, workspace string) (Config, error) {
	cfg := Default(workspace)
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return cfg, fmt.Errorf("read config %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	if cfg.Workspace == "" {
		cfg.Workspace = workspace
	}
	return cfg, nil
}
