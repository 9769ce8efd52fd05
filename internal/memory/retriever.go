package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
)

// HybridConfig controls candidate sizing and fusion weights (§4.9).
type HybridConfig struct {
	Enabled            bool
	CandidateMultiplier float64
	VectorWeight       float64
	TextWeight         float64
}

func DefaultHybridConfig() HybridConfig {
	return HybridConfig{Enabled: true, CandidateMultiplier: 4, VectorWeight: 0.6, TextWeight: 0.4}
}

// Retriever executes vector, keyword, or hybrid search against a ChunkStore.
type Retriever struct {
	store  ChunkStore
	hybrid HybridConfig
}

func NewRetriever(store ChunkStore, hybrid HybridConfig) *Retriever {
	return &Retriever{store: store, hybrid: hybrid}
}

// Search runs the retrieval algorithm described in §4.9. provider may be
// nil, in which case the retriever behaves as keyword-only regardless of
// opts.Mode (mirrors the "no embedding provider configured" edge case).
func (r *Retriever) Search(ctx context.Context, provider EmbeddingProvider, opts SearchOptions) ([]SearchResult, error) {
	if strings.TrimSpace(opts.Query) == "" {
		return nil, nil
	}

	maxResults := opts.MaxResults
	if maxResults <= 0 {
		maxResults = 10
	}
	candidates := clampInt(int(float64(maxResults)*r.hybrid.CandidateMultiplier), 1, 200)

	mode := opts.Mode
	if mode == "" {
		mode = ModeHybrid
	}
	if provider == nil {
		mode = ModeKeyword
	}

	var keywordResults, vectorResults []SearchResult
	var err error

	runKeyword := mode != ModeVector
	runVector := mode != ModeKeyword && provider != nil

	if runKeyword {
		keywordResults, err = r.store.KeywordSearch(ctx, opts.Query, candidates, opts)
		if err != nil {
			return nil, fmt.Errorf("keyword search: %w", err)
		}
	}

	if runVector {
		queryVec, embErr := provider.EmbedQuery(ctx, opts.Query)
		if embErr != nil {
			return nil, fmt.Errorf("embed query: %w", embErr)
		}
		if isZeroVector(queryVec) {
			// Degraded provider: fall back to keyword-only (§4.9 edge rule).
			if keywordResults == nil {
				keywordResults, err = r.store.KeywordSearch(ctx, opts.Query, candidates, opts)
				if err != nil {
					return nil, fmt.Errorf("keyword search (fallback): %w", err)
				}
			}
			return clampResults(keywordResults, opts.MinScore, maxResults), nil
		}
		vectorResults, err = r.store.VectorSearch(ctx, queryVec, candidates, opts)
		if err != nil {
			return nil, fmt.Errorf("vector search: %w", err)
		}
	}

	var merged []SearchResult
	switch {
	case mode == ModeKeyword:
		merged = keywordResults
	case mode == ModeVector:
		merged = vectorResults
	default:
		merged = fuseResults(keywordResults, vectorResults, r.hybrid)
	}

	return clampResults(merged, opts.MinScore, maxResults), nil
}

type resultKey struct {
	path      string
	startLine int
	source    string
}

// fuseResults combines keyword and vector candidate lists per §4.9 step 4:
// score = vector_weight*v_score + text_weight*t_score, missing scores
// treated as 0; ties break by vector score then lexical rank.
func fuseResults(keyword, vector []SearchResult, cfg HybridConfig) []SearchResult {
	type fused struct {
		result   SearchResult
		vScore   float64
		tScore   float64
	}
	byKey := map[resultKey]*fused{}
	order := []resultKey{}

	for _, v := range vector {
		k := resultKey{v.Path, v.StartLine, v.Source}
		byKey[k] = &fused{result: v, vScore: v.Score}
		order = append(order, k)
	}
	for _, t := range keyword {
		k := resultKey{t.Path, t.StartLine, t.Source}
		if existing, ok := byKey[k]; ok {
			existing.tScore = t.Score
		} else {
			byKey[k] = &fused{result: t, tScore: t.Score}
			order = append(order, k)
		}
	}

	out := make([]SearchResult, 0, len(order))
	for _, k := range order {
		f := byKey[k]
		f.result.Score = cfg.VectorWeight*f.vScore + cfg.TextWeight*f.tScore
		out = append(out, f.result)
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		fi, fj := byKey[resultKey{out[i].Path, out[i].StartLine, out[i].Source}], byKey[resultKey{out[j].Path, out[j].StartLine, out[j].Source}]
		if fi.vScore != fj.vScore {
			return fi.vScore > fj.vScore
		}
		return fi.tScore > fj.tScore
	})
	return out
}

func clampResults(results []SearchResult, minScore float64, maxResults int) []SearchResult {
	var out []SearchResult
	for _, r := range results {
		if r.Score >= minScore {
			out = append(out, r)
		}
	}
	if len(out) > maxResults {
		out = out[:maxResults]
	}
	return out
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
