package memory

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
	"unicode"
)

const (
	localModelName = "local-hashing-384"
	localDims      = 384
)

// LocalProvider is an in-process embedder with no network dependency: a
// hashed bag-of-words projected into a fixed-dimension unit vector. It
// exists so the system is fully exercisable (indexing, hybrid search,
// scope filtering) without any external embedding endpoint.
type LocalProvider struct{}

func NewLocalProvider() *LocalProvider { return &LocalProvider{} }

func (p *LocalProvider) ID() string          { return "local" }
func (p *LocalProvider) Model() string       { return localModelName }
func (p *LocalProvider) Fingerprint() string { return Fingerprint(p.ID(), localModelName, "", nil) }

func (p *LocalProvider) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = localEmbedOne(t)
	}
	return out, nil
}

func (p *LocalProvider) EmbedQuery(_ context.Context, text string) ([]float32, error) {
	return localEmbedOne(text), nil
}

func localEmbedOne(text string) []float32 {
	vec := make([]float32, localDims)
	for _, tok := range localTokenize(text) {
		h := fnv.New64a()
		_, _ = h.Write([]byte(tok))
		i := int(h.Sum64() % uint64(localDims))
		vec[i]++
	}
	var norm float32
	for _, v := range vec {
		norm += v * v
	}
	if norm == 0 {
		return vec
	}
	inv := 1 / float32(math.Sqrt(float64(norm)))
	for i := range vec {
		vec[i] *= inv
	}
	return vec
}

func localTokenize(text string) []string {
	text = strings.TrimSpace(strings.ToLower(text))
	if text == "" {
		return nil
	}
	return strings.FieldsFunc(text, func(r rune) bool {
		return !(unicode.IsLetter(r) || unicode.IsNumber(r))
	})
}
