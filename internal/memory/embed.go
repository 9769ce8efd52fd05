package memory

import (
	"context"
	"crypto/sha256"
	"fmt"
	"math"
	"sort"
	"strings"
)

// EmbeddingProvider is the abstract embedding capability. Implementations
// must preserve length and order: len(EmbedBatch(xs)) == len(xs), and
// result[i] corresponds to xs[i]. A provider never returns a zero-length
// vector for non-empty input.
type EmbeddingProvider interface {
	// ID is the provider's stable identifier, e.g. "openai", "gemini", "local".
	ID() string
	// Model is the embedding model tag, e.g. "text-embedding-3-small".
	Model() string
	// Fingerprint is a stable hash over (provider id, model, base url,
	// curated headers). Changing any of these invalidates cached vectors.
	Fingerprint() string

	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// ProviderStatus reports the identity actually in effect after
// construction, including fallback information.
type ProviderStatus struct {
	Provider       string
	Model          string
	Fallback       bool
	FallbackFrom   string
	FallbackReason string
}

// Fingerprint computes the stable identity hash described in §4.2: a hash
// over the provider id, model, base URL, and a curated (sorted, filtered)
// subset of headers. Only headers relevant to routing/identity are
// curated in; secrets (Authorization, API keys) are never included.
func Fingerprint(providerID, model, baseURL string, headers map[string]string) string {
	keys := make([]string, 0, len(headers))
	for k := range headers {
		lk := strings.ToLower(k)
		if lk == "authorization" || strings.Contains(lk, "key") || strings.Contains(lk, "token") {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(providerID)
	b.WriteByte('\x00')
	b.WriteString(model)
	b.WriteByte('\x00')
	b.WriteString(baseURL)
	for _, k := range keys {
		b.WriteByte('\x00')
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(headers[k])
	}

	sum := sha256.Sum256([]byte(b.String()))
	return fmt.Sprintf("%x", sum[:16])
}

// FallbackProvider tries a primary provider and, only on *construction*
// failure, degrades permanently to a fallback. Runtime (per-call) failures
// are never silently swallowed by a second provider: they propagate so a
// query's result stability is preserved (§4.2).
type FallbackProvider struct {
	active EmbeddingProvider
	status ProviderStatus
}

// NewFallbackProvider selects primary if primaryErr is nil and primary is
// non-nil;
// otherwise it falls back to fallback (which must itself construct
// successfully) and records the reason.
func NewFallbackProvider(primary EmbeddingProvider, primaryErr error, fallback EmbeddingProvider, reason string) (*FallbackProvider, error) {
	if primaryErr == nil && primary != nil {
		return &FallbackProvider{
			active: primary,
			status: ProviderStatus{Provider: primary.ID(), Model: primary.Model()},
		}, nil
	}
	if fallback == nil {
		return nil, fmt.Errorf("embedding provider unavailable: %w", primaryErr)
	}
	return &FallbackProvider{
		active: fallback,
		status: ProviderStatus{
			Provider:       fallback.ID(),
			Model:          fallback.Model(),
			Fallback:       true,
			FallbackFrom:   providerIDOrEmpty(primary),
			FallbackReason: reason,
		},
	}, nil
}

func providerIDOrEmpty(p EmbeddingProvider) string {
	if p == nil {
		return ""
	}
	return p.ID()
}

func (f *FallbackProvider) ID() string          { return f.active.ID() }
func (f *FallbackProvider) Model() string       { return f.active.Model() }
func (f *FallbackProvider) Fingerprint() string { return f.active.Fingerprint() }
func (f *FallbackProvider) Status() ProviderStatus { return f.status }

func (f *FallbackProvider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	vecs, err := f.active.EmbedBatch(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("embed batch (%s): %w", f.active.ID(), err)
	}
	if len(vecs) != len(texts) {
		return nil, fmt.Errorf("embed batch (%s): provider returned %d vectors for %d inputs", f.active.ID(), len(vecs), len(texts))
	}
	for i, v := range vecs {
		if len(v) == 0 && texts[i] != "" {
			return nil, fmt.Errorf("embed batch (%s): empty vector for non-empty input at index %d", f.active.ID(), i)
		}
	}
	return vecs, nil
}

func (f *FallbackProvider) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vec, err := f.active.EmbedQuery(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("embed query (%s): %w", f.active.ID(), err)
	}
	return vec, nil
}

// CosineSimilarity computes cosine similarity between two equal-length
// vectors. Returns 0 if either vector has zero magnitude or the lengths
// differ.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, magA, magB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		magA += float64(a[i]) * float64(a[i])
		magB += float64(b[i]) * float64(b[i])
	}
	if magA == 0 || magB == 0 {
		return 0
	}
	return dot / (math.Sqrt(magA) * math.Sqrt(magB))
}

// isZeroVector reports whether every component is zero, the signal a
// degraded provider uses to indicate it could not embed the query (§4.9
// edge rule: fall back to keyword-only).
func isZeroVector(v []float32) bool {
	for _, x := range v {
		if x != 0 {
			return false
		}
	}
	return true
}
