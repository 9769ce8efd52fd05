// Package mcpserver exposes the memory tool surface (§4.12: memory_search,
// memory_recall, memory_get, actor_lookup) over MCP, so an agent host that
// speaks the protocol can reach the same memory.Manager the CLI uses
// in-process.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"

	mcpgo "github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/nextlevelbuilder/goclaw-memory/internal/store"
	"github.com/nextlevelbuilder/goclaw-memory/internal/tools"
)

// Config controls how the memory tools are exposed and what ambient
// session/actor context is attached to every call (§4.8).
type Config struct {
	Tools      tools.ToolConfig
	SessionKey string
	ActorID    string
	ActorType  string
	ChatType   string
}

// New builds an MCP server wrapping the four memory tools over the given
// store, ready to be served over stdio.
func New(name, version string, memStore store.MemoryStore, cfg Config) *mcpserver.MCPServer {
	s := mcpserver.NewMCPServer(name, version, mcpserver.WithToolCapabilities(true))

	for _, t := range buildTools(memStore, cfg) {
		registerTool(s, t)
	}

	return s
}

func buildTools(memStore store.MemoryStore, cfg Config) []tools.Tool {
	built := []tools.Tool{
		tools.NewMemorySearchTool(cfg.Tools),
		tools.NewMemoryRecallTool(cfg.Tools),
		tools.NewMemoryGetTool(cfg.Tools),
		tools.NewActorLookupTool(cfg.Tools),
	}
	for _, t := range built {
		if aware, ok := t.(tools.MemoryStoreAware); ok {
			aware.SetMemoryStore(memStore)
		}
		if ctxTool, ok := t.(tools.ContextualTool); ok {
			ctxTool.SetContext(cfg.SessionKey, cfg.ActorID, cfg.ActorType, cfg.ChatType)
		}
	}
	return built
}

// registerTool adapts a tools.Tool into the mcp-go server's tool/handler
// pair, translating its JSON-schema Parameters() into a mcpgo.Tool and its
// *tools.Result into a mcpgo.CallToolResult.
func registerTool(s *mcpserver.MCPServer, t tools.Tool) {
	mcpTool := mcpgo.NewToolWithRawSchema(t.Name(), t.Description(), mustMarshalSchema(t.Parameters()))

	s.AddTool(mcpTool, func(ctx context.Context, req mcpgo.CallToolRequest) (*mcpgo.CallToolResult, error) {
		args, ok := req.Params.Arguments.(map[string]interface{})
		if !ok {
			args = map[string]interface{}{}
		}
		result := t.Execute(ctx, args)
		if result == nil {
			return mcpgo.NewToolResultText(""), nil
		}
		if result.IsError {
			return mcpgo.NewToolResultError(result.ForLLM), nil
		}
		return mcpgo.NewToolResultText(result.ForLLM), nil
	})
}

func mustMarshalSchema(params map[string]interface{}) json.RawMessage {
	if params == nil {
		params = map[string]interface{}{"type": "object"}
	}
	data, err := json.Marshal(params)
	if err != nil {
		panic(fmt.Sprintf("mcpserver: marshal tool schema: %v", err))
	}
	return data
}

// ServeStdio blocks serving the given server over stdio until the client
// disconnects or the process is interrupted.
func ServeStdio(s *mcpserver.MCPServer) error {
	return mcpserver.ServeStdio(s)
}
