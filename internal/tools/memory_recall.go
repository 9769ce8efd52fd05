package tools

import (
	"context"
	"time"
)

// MemoryRecallTool implements memory_recall (§4.12): identical to
// memory_search but scoped to content updated within a trailing time
// window, for "what happened recently" style queries.
type MemoryRecallTool struct {
	memoryToolBase
}

func NewMemoryRecallTool(cfg ToolConfig) *MemoryRecallTool {
	return &MemoryRecallTool{memoryToolBase: memoryToolBase{cfg: cfg}}
}

func (t *MemoryRecallTool) Name() string { return "memory_recall" }

func (t *MemoryRecallTool) Description() string {
	return "Like memory_search, but restricted to content updated within the last N hours. Use for time-bounded recall such as \"what did we discuss yesterday\"."
}

func (t *MemoryRecallTool) Parameters() map[string]interface{} {
	params := (&MemorySearchTool{}).Parameters()
	props := params["properties"].(map[string]interface{})
	props["timeWindowHours"] = map[string]interface{}{
		"type":        "number",
		"description": "Only include content updated within this many hours (default 24).",
	}
	return params
}

func (t *MemoryRecallTool) Execute(ctx context.Context, args map[string]interface{}) *Result {
	opts, ok, errMsg := buildSearchOptions(args)
	if !ok {
		return validationErrorResult(errMsg)
	}

	hours := 24.0
	if h, ok := args["timeWindowHours"].(float64); ok && h > 0 {
		hours = h
	}
	opts.UpdatedAfter = time.Now().Add(-time.Duration(hours * float64(time.Hour)))

	return runSearch(ctx, &t.memoryToolBase, opts)
}
