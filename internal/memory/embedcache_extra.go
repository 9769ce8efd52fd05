package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/redis/go-redis/v9"
)

// FingerprintCache is a small in-process bound cache from (provider
// fingerprint, content hash) -> embedding vector, fronting the store-backed embedding
// cache so repeated hashes across files in the same sync pass don't incur
// a round trip (§10 ambient stack: hashicorp/golang-lru).
type FingerprintCache struct {
	entries *lru.Cache[string, []float32]
}

// NewFingerprintCache constructs an LRU cache holding up to size entries.
func NewFingerprintCache(size int) (*FingerprintCache, error) {
	if size <= 0 {
		size = 4096
	}
	c, err := lru.New[string, []float32](size)
	if err != nil {
		return nil, fmt.Errorf("new fingerprint cache: %w", err)
	}
	return &FingerprintCache{entries: c}, nil
}

func fpCacheKey(fingerprint, hash string) string { return fingerprint + ":" + hash }

func (f *FingerprintCache) Get(fingerprint, hash string) ([]float32, bool) {
	if f == nil {
		return nil, false
	}
	return f.entries.Get(fpCacheKey(fingerprint, hash))
}

func (f *FingerprintCache) Put(fingerprint, hash string, vec []float32) {
	if f == nil {
		return
	}
	f.entries.Add(fpCacheKey(fingerprint, hash), vec)
}

// RedisCache is an optional shared, cross-process front door for the
// embedding cache (§6 memorySearch.cache.redis.*). It sits in front of the
// store-backed cache so multiple indexer processes sharing one Redis
// instance avoid redundant provider calls for the same content hash.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

// RedisCacheConfig configures the optional Redis front door.
type RedisCacheConfig struct {
	Addr     string
	Password string
	DB       int
	TTL      time.Duration
}

// NewRedisCache constructs a Redis-backed cache front door. Returns nil,
// nil if cfg.Addr is empty (the feature is opt-in).
func NewRedisCache(cfg RedisCacheConfig) (*RedisCache, error) {
	if cfg.Addr == "" {
		return nil, nil
	}
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = time.Hour
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	return &RedisCache{client: client, ttl: ttl}, nil
}

func redisKey(fingerprint, hash string) string {
	return "memsearch:emb:" + fingerprint + ":" + hash
}

// GetMany returns whichever of hashes are present in Redis. Missing keys
// are simply absent from the result; Redis errors are logged by the caller
// and degrade to a store-backed lookup, never surfaced as a hard failure.
func (r *RedisCache) GetMany(ctx context.Context, fingerprint string, hashes []string) (map[string][]float32, error) {
	if r == nil || len(hashes) == 0 {
		return map[string][]float32{}, nil
	}
	keys := make([]string, len(hashes))
	for i, h := range hashes {
		keys[i] = redisKey(fingerprint, h)
	}
	vals, err := r.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("redis mget: %w", err)
	}
	out := make(map[string][]float32, len(hashes))
	for i, v := range vals {
		if v == nil {
			continue
		}
		s, ok := v.(string)
		if !ok {
			continue
		}
		var vec []float32
		if err := json.Unmarshal([]byte(s), &vec); err != nil {
			continue
		}
		out[hashes[i]] = vec
	}
	return out, nil
}

// SetMany writes entries to Redis with the configured TTL.
func (r *RedisCache) SetMany(ctx context.Context, fingerprint string, entries map[string][]float32) error {
	if r == nil || len(entries) == 0 {
		return nil
	}
	pipe := r.client.Pipeline()
	for hash, vec := range entries {
		data, err := json.Marshal(vec)
		if err != nil {
			continue
		}
		pipe.Set(ctx, redisKey(fingerprint, hash), data, r.ttl)
	}
	_, err := pipe.Exec(ctx)
	if err != nil {
		return fmt.Errorf("redis pipeline set: %w", err)
	}
	return nil
}

func (r *RedisCache) Close() error {
	if r == nil {
		return nil
	}
	return r.client.Close()
}
