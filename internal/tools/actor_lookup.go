package tools

import (
	"context"
	"fmt"
)

// ActorLookupTool implements actor_lookup (§4.12), a thin proxy over the
// actor directory (§4.7): resolve a free-text name or alias fragment to
// canonical actor ids.
type ActorLookupTool struct {
	memoryToolBase
}

func NewActorLookupTool(cfg ToolConfig) *ActorLookupTool {
	return &ActorLookupTool{memoryToolBase: memoryToolBase{cfg: cfg}}
}

func (t *ActorLookupTool) Name() string { return "actor_lookup" }

func (t *ActorLookupTool) Description() string {
	return "Resolve a name or alias fragment to canonical actor ids, for disambiguating who a memory or session snippet refers to."
}

func (t *ActorLookupTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"query": map[string]interface{}{
				"type":        "string",
				"description": "Name or alias fragment to resolve.",
			},
			"limit": map[string]interface{}{
				"type":        "number",
				"description": "Maximum actors to return (default/clamp 50).",
			},
		},
		"required": []string{"query"},
	}
}

func (t *ActorLookupTool) Execute(ctx context.Context, args map[string]interface{}) *Result {
	query, _ := args["query"].(string)
	if query == "" {
		return validationErrorResult("query is required")
	}
	limit := 0
	if l, ok := args["limit"].(float64); ok {
		limit = int(l)
	}

	if t.store == nil {
		return disabledResult("memory system not available")
	}

	actors, err := t.store.LookupActors(ctx, query, limit)
	if err != nil {
		return resultFromEnvelope(&envelope{Error: fmt.Sprintf("actor lookup failed: %v", err)})
	}
	return resultFromEnvelope(&envelope{Actors: actors})
}
