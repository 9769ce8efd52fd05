package tools

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/nextlevelbuilder/goclaw-memory/internal/memory"
	"github.com/nextlevelbuilder/goclaw-memory/internal/store"
)

// fakeMemoryStore is a minimal store.MemoryStore stand-in for tool tests.
type fakeMemoryStore struct {
	searchResults []memory.SearchResult
	searchErr     error
	document      string
	documentErr   error
	actors        []memory.Actor
	lastQuery     string
	lastOpts      memory.SearchOptions
}

func (f *fakeMemoryStore) GetDocument(ctx context.Context, path string) (string, error) {
	return f.document, f.documentErr
}
func (f *fakeMemoryStore) ListDocuments(ctx context.Context, source string) ([]store.DocumentInfo, error) {
	return nil, nil
}
func (f *fakeMemoryStore) Search(ctx context.Context, query string, opts memory.SearchOptions) ([]memory.SearchResult, error) {
	f.lastQuery, f.lastOpts = query, opts
	return f.searchResults, f.searchErr
}
func (f *fakeMemoryStore) IndexDocument(ctx context.Context, path string) error { return nil }
func (f *fakeMemoryStore) IndexAll(ctx context.Context) error                   { return nil }
func (f *fakeMemoryStore) LookupActors(ctx context.Context, query string, limit int) ([]memory.Actor, error) {
	return f.actors, nil
}
func (f *fakeMemoryStore) SetEmbeddingProvider(provider memory.EmbeddingProvider) {}
func (f *fakeMemoryStore) Close() error                                          { return nil }

var _ store.MemoryStore = (*fakeMemoryStore)(nil)

func TestMemorySearchTool_RequiresQuery(t *testing.T) {
	tool := NewMemorySearchTool(ToolConfig{})
	res := tool.Execute(context.Background(), map[string]interface{}{})
	if !res.IsError {
		t.Fatal("expected validation error for missing query")
	}
}

func TestMemorySearchTool_Disabled(t *testing.T) {
	tool := NewMemorySearchTool(ToolConfig{})
	res := tool.Execute(context.Background(), map[string]interface{}{"query": "budget"})

	var env envelope
	if err := json.Unmarshal([]byte(res.ForLLM), &env); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !env.Disabled {
		t.Fatal("expected disabled envelope when no store is configured")
	}
}

func TestMemorySearchTool_CitationsAppendedWhenOn(t *testing.T) {
	fake := &fakeMemoryStore{searchResults: []memory.SearchResult{
		{Path: "memory/2024-06-01.md", StartLine: 1, EndLine: 1, Score: 1, Snippet: "Meeting with Alice about budget", Source: "memory"},
	}}
	tool := NewMemorySearchTool(ToolConfig{Citations: CitationOn})
	tool.SetMemoryStore(fake)

	res := tool.Execute(context.Background(), map[string]interface{}{"query": "budget"})

	var env envelope
	if err := json.Unmarshal([]byte(res.ForLLM), &env); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(env.Results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(env.Results))
	}
	if env.Results[0].Citation != "memory/2024-06-01.md#L1" {
		t.Errorf("unexpected citation: %q", env.Results[0].Citation)
	}
	if !env.Citations {
		t.Error("expected envelope.Citations=true")
	}
}

func TestMemorySearchTool_CitationsAutoOffInGroupChat(t *testing.T) {
	fake := &fakeMemoryStore{searchResults: []memory.SearchResult{
		{Path: "memory/notes.md", StartLine: 3, EndLine: 3, Score: 1, Snippet: "alpha bravo", Source: "memory"},
	}}
	tool := NewMemorySearchTool(ToolConfig{Citations: CitationAuto})
	tool.SetMemoryStore(fake)
	tool.SetContext("s1", "", "", "group")

	res := tool.Execute(context.Background(), map[string]interface{}{"query": "alpha"})

	var env envelope
	if err := json.Unmarshal([]byte(res.ForLLM), &env); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if env.Results[0].Citation != "" {
		t.Errorf("expected no citation in group chat with auto mode, got %q", env.Results[0].Citation)
	}
}

func TestMemorySearchTool_ResultClamping(t *testing.T) {
	fake := &fakeMemoryStore{searchResults: []memory.SearchResult{
		{Path: "a.md", StartLine: 1, EndLine: 1, Score: 1, Snippet: "12345", Source: "memory"},
		{Path: "b.md", StartLine: 1, EndLine: 1, Score: 0.9, Snippet: "abcdefgh", Source: "memory"},
	}}
	tool := NewMemorySearchTool(ToolConfig{ResultCharMax: 8})
	tool.SetMemoryStore(fake)

	res := tool.Execute(context.Background(), map[string]interface{}{"query": "x"})

	var env envelope
	if err := json.Unmarshal([]byte(res.ForLLM), &env); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(env.Results) != 2 {
		t.Fatalf("expected clamp to stop after the truncated second result, got %d entries", len(env.Results))
	}
	if env.Results[1].Snippet != "abc" {
		t.Errorf("expected second snippet truncated to 3 chars, got %q", env.Results[1].Snippet)
	}
}

func TestMemorySearchTool_ScopeAutoResolvesActor(t *testing.T) {
	fake := &fakeMemoryStore{}
	tool := NewMemorySearchTool(ToolConfig{})
	tool.SetMemoryStore(fake)
	tool.SetContext("s1", "tg:+1234", "human", "direct")

	tool.Execute(context.Background(), map[string]interface{}{"query": "what did I say yesterday?"})

	if fake.lastOpts.Scope != memory.ScopeActor || fake.lastOpts.ActorID != "tg:+1234" {
		t.Errorf("expected scope=actor actorId=tg:+1234, got scope=%s actorId=%s", fake.lastOpts.Scope, fake.lastOpts.ActorID)
	}
}

func TestMemoryRecallTool_SetsUpdatedAfter(t *testing.T) {
	fake := &fakeMemoryStore{}
	tool := NewMemoryRecallTool(ToolConfig{})
	tool.SetMemoryStore(fake)

	tool.Execute(context.Background(), map[string]interface{}{"query": "x", "timeWindowHours": float64(6)})

	if fake.lastOpts.UpdatedAfter.IsZero() {
		t.Error("expected UpdatedAfter to be set")
	}
}

func TestMemoryGetTool_RejectsNonMarkdown(t *testing.T) {
	tool := NewMemoryGetTool(ToolConfig{})
	tool.SetMemoryStore(&fakeMemoryStore{})

	res := tool.Execute(context.Background(), map[string]interface{}{"path": "notes.txt"})

	var env envelope
	if err := json.Unmarshal([]byte(res.ForLLM), &env); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !env.Disabled || env.Error != "path required" {
		t.Errorf("expected disabled path-required envelope, got %+v", env)
	}
}

func TestMemoryGetTool_RejectsPathEscape(t *testing.T) {
	tool := NewMemoryGetTool(ToolConfig{})
	tool.SetMemoryStore(&fakeMemoryStore{})

	res := tool.Execute(context.Background(), map[string]interface{}{"path": "../../etc/passwd.md"})

	var env envelope
	json.Unmarshal([]byte(res.ForLLM), &env)
	if !env.Disabled {
		t.Error("expected disabled envelope for path escaping workspace")
	}
}

func TestMemoryGetTool_SlicesLines(t *testing.T) {
	fake := &fakeMemoryStore{document: "line1\nline2\nline3\nline4"}
	tool := NewMemoryGetTool(ToolConfig{})
	tool.SetMemoryStore(fake)

	res := tool.Execute(context.Background(), map[string]interface{}{"path": "MEMORY.md", "from": float64(2), "lines": float64(2)})

	var env envelope
	if err := json.Unmarshal([]byte(res.ForLLM), &env); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if env.Text != "line2\nline3" {
		t.Errorf("expected line2\\nline3, got %q", env.Text)
	}
}

func TestActorLookupTool_RequiresQuery(t *testing.T) {
	tool := NewActorLookupTool(ToolConfig{})
	res := tool.Execute(context.Background(), map[string]interface{}{})
	if !res.IsError {
		t.Fatal("expected validation error for missing query")
	}
}

func TestActorLookupTool_ReturnsActors(t *testing.T) {
	fake := &fakeMemoryStore{actors: []memory.Actor{{ActorID: "tg:+1234", ActorType: memory.ActorHuman, DisplayName: "Alice"}}}
	tool := NewActorLookupTool(ToolConfig{})
	tool.SetMemoryStore(fake)

	res := tool.Execute(context.Background(), map[string]interface{}{"query": "alice"})

	var env envelope
	if err := json.Unmarshal([]byte(res.ForLLM), &env); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(env.Actors) != 1 || env.Actors[0].ActorID != "tg:+1234" {
		t.Errorf("unexpected actors: %+v", env.Actors)
	}
}
