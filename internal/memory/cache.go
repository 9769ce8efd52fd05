package memory

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
)

// resolveEmbeddings implements the read-through cache algorithm of §4.3:
//  1. look up all hashes present in the cache for this fingerprint,
//  2. deduplicate missing entries by hash (several chunks may share text),
//  3. deduplicate a second time by normalized text as a diagnostic signal
//     only — never as the cache key,
//  4. request embeddings for the unique missing entries,
//  5. fan one embedding out to every chunk sharing that hash,
//  6. upsert (fingerprint, hash) -> vector via store.CacheEmbeddings, as a
//     write of its own that runs before the caller's chunk write; the two
//     are not one transaction, so cached vectors stay if the chunk write
//     later fails.
//
// Returns hash -> vector for every distinct hash among texts. Aborts (and
// returns an error) if the provider yields fewer vectors than requested or
// any empty vector for non-empty input — the caller must not commit its
// chunk transaction when this happens (§4.3 Failure mode).
func resolveEmbeddings(ctx context.Context, store ChunkStore, provider EmbeddingProvider, fingerprint string, hashToText map[string]string) (map[string][]float32, error) {
	hashes := make([]string, 0, len(hashToText))
	for h := range hashToText {
		hashes = append(hashes, h)
	}

	cached, err := store.GetCachedEmbeddings(ctx, fingerprint, hashes)
	if err != nil {
		return nil, fmt.Errorf("lookup embedding cache: %w", err)
	}

	missing := make([]string, 0, len(hashes))
	for _, h := range hashes {
		if _, ok := cached[h]; !ok {
			missing = append(missing, h)
		}
	}
	if len(missing) == 0 {
		return cached, nil
	}

	// Diagnostic-only dedup by normalized text: surfaces content that is
	// byte-different but semantically identical so operators can see cache
	// pressure, without ever using it as the lookup key.
	normSeen := map[string]int{}
	for _, h := range missing {
		norm := strings.TrimSpace(strings.ToLower(hashToText[h]))
		normSeen[norm]++
	}
	dupNorm := 0
	for _, n := range normSeen {
		if n > 1 {
			dupNorm++
		}
	}
	if dupNorm > 0 {
		slog.Info("embedding cache: normalized-text duplicates among misses", "distinct_normalized_dupes", dupNorm, "misses", len(missing))
	}

	texts := make([]string, len(missing))
	for i, h := range missing {
		texts[i] = hashToText[h]
	}

	vecs, err := provider.EmbedBatch(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("embed batch: %w", err)
	}
	if len(vecs) != len(texts) {
		return nil, fmt.Errorf("embedding cache: provider returned %d vectors for %d texts", len(vecs), len(texts))
	}

	dims := 0
	fresh := make(map[string][]float32, len(missing))
	for i, h := range missing {
		if len(vecs[i]) == 0 {
			return nil, fmt.Errorf("embedding cache: empty vector for hash %s", h)
		}
		if dims == 0 {
			dims = len(vecs[i])
		}
		fresh[h] = vecs[i]
		cached[h] = vecs[i]
	}

	if err := store.CacheEmbeddings(ctx, fingerprint, fresh, dims); err != nil {
		return nil, fmt.Errorf("write embedding cache: %w", err)
	}

	return cached, nil
}

// resolveEmbeddingsLayered wraps resolveEmbeddings with two optional
// front-door caches consulted before the store-backed cache: an
// in-process LRU (always free, per-process) and a shared Redis cache
// (cross-process, §6 memorySearch.cache.redis.*). Both are best-effort —
// a Redis error degrades to the store-backed path rather than failing the
// whole resolve.
func resolveEmbeddingsLayered(ctx context.Context, store ChunkStore, provider EmbeddingProvider, fingerprint string, hashToText map[string]string, lruCache *FingerprintCache, redisCache *RedisCache) (map[string][]float32, error) {
	result := make(map[string][]float32, len(hashToText))
	remaining := make(map[string]string, len(hashToText))

	for h, text := range hashToText {
		if vec, ok := lruCache.Get(fingerprint, h); ok {
			result[h] = vec
			continue
		}
		remaining[h] = text
	}
	if len(remaining) == 0 {
		return result, nil
	}

	if redisCache != nil {
		hashes := make([]string, 0, len(remaining))
		for h := range remaining {
			hashes = append(hashes, h)
		}
		fromRedis, err := redisCache.GetMany(ctx, fingerprint, hashes)
		if err != nil {
			slog.Warn("redis embedding cache lookup failed, falling back to store", "err", err)
		} else {
			for h, vec := range fromRedis {
				result[h] = vec
				lruCache.Put(fingerprint, h, vec)
				delete(remaining, h)
			}
		}
	}
	if len(remaining) == 0 {
		return result, nil
	}

	resolved, err := resolveEmbeddings(ctx, store, provider, fingerprint, remaining)
	if err != nil {
		return nil, err
	}
	for h, vec := range resolved {
		result[h] = vec
		lruCache.Put(fingerprint, h, vec)
	}
	if redisCache != nil {
		if err := redisCache.SetMany(ctx, fingerprint, resolved); err != nil {
			slog.Warn("redis embedding cache write failed", "err", err)
		}
	}
	return result, nil
}
