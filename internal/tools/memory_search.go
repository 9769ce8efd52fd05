package tools

import (
	"context"
	"fmt"

	"github.com/nextlevelbuilder/goclaw-memory/internal/memory"
)

// MemorySearchTool implements memory_search (§4.12): hybrid keyword+vector
// search over memory files and session transcripts, scoped by the §4.8
// resolver unless the caller supplies an explicit scope override.
type MemorySearchTool struct {
	memoryToolBase
}

func NewMemorySearchTool(cfg ToolConfig) *MemorySearchTool {
	return &MemorySearchTool{memoryToolBase: memoryToolBase{cfg: cfg}}
}

func (t *MemorySearchTool) Name() string { return "memory_search" }

func (t *MemorySearchTool) Description() string {
	return "Search agent memory files and session transcripts for prior work, decisions, dates, people, preferences, or todos. Returns top snippets with path and line range. If disabled=true, memory retrieval is unavailable and should be surfaced to the user."
}

func (t *MemorySearchTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"query": map[string]interface{}{
				"type":        "string",
				"description": "Natural language search query, in the same language as the stored memory content.",
			},
			"mode": map[string]interface{}{
				"type":        "string",
				"enum":        []string{"hybrid", "vector", "keyword"},
				"description": "Retrieval mode. Defaults to hybrid.",
			},
			"maxResults": map[string]interface{}{
				"type":        "number",
				"description": "Maximum number of results to return (default 10).",
			},
			"minScore": map[string]interface{}{
				"type":        "number",
				"description": "Minimum relevance score threshold (0-1).",
			},
			"sessionScope": map[string]interface{}{
				"type":        "string",
				"enum":        []string{"session", "actor", "global"},
				"description": "Explicit scope override. Omit to auto-resolve from ambient context and query text.",
			},
			"actorType": map[string]interface{}{
				"type":        "string",
				"enum":        []string{"human", "agent"},
				"description": "Actor-type filter, used with actorId.",
			},
			"actorId": map[string]interface{}{
				"type":        "string",
				"description": "Explicit actor id override for scope=actor.",
			},
			"role": map[string]interface{}{
				"type":        "string",
				"enum":        []string{"user", "assistant", "system"},
				"description": "Restrict session-derived hits to this speaker role.",
			},
		},
		"required": []string{"query"},
	}
}

func (t *MemorySearchTool) Execute(ctx context.Context, args map[string]interface{}) *Result {
	opts, ok, errMsg := buildSearchOptions(args)
	if !ok {
		return validationErrorResult(errMsg)
	}
	return runSearch(ctx, &t.memoryToolBase, opts)
}

// buildSearchOptions parses the shared memory_search/memory_recall
// argument shape into a SearchOptions with the scope override resolved
// (explicit values win; when no sessionScope is given, runSearch resolves
// the scope afterwards via ResolveScope).
func buildSearchOptions(args map[string]interface{}) (memory.SearchOptions, bool, string) {
	query, _ := args["query"].(string)
	if query == "" {
		return memory.SearchOptions{}, false, "query is required"
	}

	opts := memory.SearchOptions{Query: query}
	if mode, ok := args["mode"].(string); ok && mode != "" {
		opts.Mode = memory.Mode(mode)
	}
	if mr, ok := args["maxResults"].(float64); ok {
		opts.MaxResults = int(mr)
	}
	if ms, ok := args["minScore"].(float64); ok {
		opts.MinScore = ms
	}
	if s, ok := args["sessionScope"].(string); ok && s != "" {
		opts.Scope = memory.Scope(s)
	}
	if at, ok := args["actorType"].(string); ok && at != "" {
		opts.ActorType = memory.ActorType(at)
	}
	if aid, ok := args["actorId"].(string); ok && aid != "" {
		opts.ActorID = aid
	}
	if role, ok := args["role"].(string); ok && role != "" {
		opts.Role = memory.Role(role)
	}
	return opts, true, ""
}

// runSearch resolves scope (unless the caller already pinned one),
// dispatches to the store, and renders the tool-surface envelope.
func runSearch(ctx context.Context, b *memoryToolBase, opts memory.SearchOptions) *Result {
	if b.store == nil {
		return disabledResult("memory system not available")
	}

	if opts.Scope == "" {
		override := memory.ScopeOverride{ActorID: opts.ActorID, ActorType: opts.ActorType, Role: opts.Role}
		scope, actorID, actorType := memory.ResolveScope(memory.ScopeContext{
			SessionKey: b.sessionKey,
			ChatType:   b.chatType,
			ActorID:    b.actorID,
			ActorType:  memory.ActorType(b.actorType),
		}, opts.Query, override)
		opts.Scope = scope
		if opts.ActorID == "" {
			opts.ActorID = actorID
		}
		if opts.ActorType == "" {
			opts.ActorType = actorType
		}
	}
	if opts.SessionKey == "" {
		opts.SessionKey = b.sessionKey
	}

	results, err := b.store.Search(ctx, opts.Query, opts)
	if err != nil {
		return resultFromEnvelope(&envelope{Error: fmt.Sprintf("memory search failed: %v", err)})
	}

	views, cited := decorateResults(results, b.useCitations(), b.cfg.ResultCharMax)
	return resultFromEnvelope(&envelope{Results: views, Citations: cited})
}
