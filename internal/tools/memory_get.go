package tools

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
)

// MemoryGetTool implements memory_get (§4.12): a safe snippet read from a
// workspace memory file, used after memory_search to pull only the lines
// needed. This tool rejects non-.md paths and any path containing "..";
// memory.Manager.GetFile, which owns the workspace root, rejects symlinks
// and paths outside the workspace and the configured extra paths (§7
// Scoped denial).
type MemoryGetTool struct {
	memoryToolBase
}

func NewMemoryGetTool(cfg ToolConfig) *MemoryGetTool {
	return &MemoryGetTool{memoryToolBase: memoryToolBase{cfg: cfg}}
}

func (t *MemoryGetTool) Name() string { return "memory_get" }

func (t *MemoryGetTool) Description() string {
	return "Read a markdown memory file (or a slice of it) from the workspace or an approved extra path. Use after memory_search to pull the lines a result points at."
}

func (t *MemoryGetTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"path": map[string]interface{}{
				"type":        "string",
				"description": "Relative path to a memory file, e.g. MEMORY.md or memory/notes.md.",
			},
			"from": map[string]interface{}{
				"type":        "number",
				"description": "Start line number (1-indexed). Omit to read from the beginning.",
			},
			"lines": map[string]interface{}{
				"type":        "number",
				"description": "Number of lines to read. Omit to read to end of file.",
			},
		},
		"required": []string{"path"},
	}
}

func (t *MemoryGetTool) Execute(ctx context.Context, args map[string]interface{}) *Result {
	path, _ := args["path"].(string)
	if strings.TrimSpace(path) == "" {
		return disabledResult("path required")
	}
	if filepath.Ext(path) != ".md" {
		return disabledResult("path required")
	}
	if strings.Contains(path, "..") {
		return disabledResult("path required")
	}

	var fromLine, numLines int
	if from, ok := args["from"].(float64); ok {
		fromLine = int(from)
	}
	if lines, ok := args["lines"].(float64); ok {
		numLines = int(lines)
	}

	if t.store == nil {
		return disabledResult("memory system not available")
	}

	text, err := t.store.GetDocument(ctx, path)
	if err != nil {
		return resultFromEnvelope(&envelope{Error: fmt.Sprintf("failed to read %s: %v", path, err)})
	}
	text = sliceLines(text, fromLine, numLines)

	return resultFromEnvelope(&envelope{Path: path, Text: text})
}

// sliceLines extracts a 1-indexed line range. from <= 0 means "from start";
// lines <= 0 means "to end of file".
func sliceLines(content string, from, lines int) string {
	if from <= 0 && lines <= 0 {
		return content
	}
	all := strings.Split(content, "\n")
	start := 0
	if from > 0 {
		start = from - 1
	}
	if start >= len(all) {
		return ""
	}
	end := len(all)
	if lines > 0 && start+lines < end {
		end = start + lines
	}
	return strings.Join(all[start:end], "\n")
}
