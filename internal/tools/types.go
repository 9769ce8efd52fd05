package tools

import (
	"context"

	"github.com/nextlevelbuilder/goclaw-memory/internal/store"
)

// Tool is the interface all tools must implement.
type Tool interface {
	Name() string
	Description() string
	Parameters() map[string]interface{}
	Execute(ctx context.Context, args map[string]interface{}) *Result
}

// ContextualTool receives the ambient session/actor context before
// execution, the input to the scope resolver (§4.8).
type ContextualTool interface {
	Tool
	SetContext(sessionKey, actorID, actorType, chatType string)
}

// MemoryStoreAware tools receive the memory store for search/recall/lookup
// queries.
type MemoryStoreAware interface {
	SetMemoryStore(store.MemoryStore)
}
