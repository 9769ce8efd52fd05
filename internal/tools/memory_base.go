package tools

import (
	"encoding/json"
	"strconv"

	"github.com/nextlevelbuilder/goclaw-memory/internal/memory"
	"github.com/nextlevelbuilder/goclaw-memory/internal/store"
)

// CitationMode selects when memory_search/memory_recall append a
// path#Lstart[-Lend] citation line to each snippet (§4.12, memory.citations
// config key). "auto" turns citations on for direct chats only.
type CitationMode string

const (
	CitationOff  CitationMode = "off"
	CitationOn   CitationMode = "on"
	CitationAuto CitationMode = "auto"
)

// ToolConfig carries the ambient knobs shared by the search-family tools:
// citation mode and an optional character budget for result clamping.
type ToolConfig struct {
	Citations     CitationMode
	ResultCharMax int // 0 disables clamping
}

// memoryToolBase holds the per-call context a ContextualTool receives
// (§4.8 scope resolver inputs) plus the store/config every search-family
// tool needs. Embedded, not exported standalone.
type memoryToolBase struct {
	store store.MemoryStore
	cfg   ToolConfig

	sessionKey string
	actorID    string
	actorType  string
	chatType   string
}

func (b *memoryToolBase) SetMemoryStore(s store.MemoryStore) { b.store = s }

func (b *memoryToolBase) SetContext(sessionKey, actorID, actorType, chatType string) {
	b.sessionKey = sessionKey
	b.actorID = actorID
	b.actorType = actorType
	b.chatType = chatType
}

func (b *memoryToolBase) useCitations() bool {
	switch b.cfg.Citations {
	case CitationOn:
		return true
	case CitationAuto:
		return b.chatType == "direct"
	default:
		return false
	}
}

// searchResultView is the JSON shape returned for one search hit, adding
// the optional citation field the retriever itself never computes
// (§9 "citation decoration stays at the tool surface").
type searchResultView struct {
	Path       string  `json:"path"`
	StartLine  int     `json:"start_line"`
	EndLine    int     `json:"end_line"`
	Score      float64 `json:"score"`
	Snippet    string  `json:"snippet"`
	Source     string  `json:"source"`
	SessionKey string  `json:"session_key,omitempty"`
	ActorID    string  `json:"actor_id,omitempty"`
	Citation   string  `json:"citation,omitempty"`
}

// envelope is the unified tool-surface return shape (§6).
type envelope struct {
	Results   []searchResultView `json:"results,omitempty"`
	Actors    []memory.Actor     `json:"actors,omitempty"`
	Text      string             `json:"text,omitempty"`
	Path      string             `json:"path,omitempty"`
	Disabled  bool               `json:"disabled,omitempty"`
	Error     string             `json:"error,omitempty"`
	Provider  string             `json:"provider,omitempty"`
	Model     string             `json:"model,omitempty"`
	Fallback  bool               `json:"fallback,omitempty"`
	Citations bool               `json:"citations,omitempty"`
}

func disabledResult(msg string) *Result {
	return resultFromEnvelope(&envelope{Disabled: true, Error: msg})
}

func validationErrorResult(msg string) *Result {
	r := resultFromEnvelope(&envelope{Disabled: true, Error: msg})
	r.IsError = true
	return r
}

// decorateResults converts store hits into the tool-surface view,
// appending a citation line to the snippet when citations are active,
// then applies the character-budget clamp (§4.12): keep full snippets
// until the budget is exhausted, truncate the first overflowing one, and
// stop — never emit a result past it.
func decorateResults(results []memory.SearchResult, useCitations bool, charMax int) ([]searchResultView, bool) {
	views := make([]searchResultView, 0, len(results))
	for _, r := range results {
		v := searchResultView{
			Path:       r.Path,
			StartLine:  r.StartLine,
			EndLine:    r.EndLine,
			Score:      r.Score,
			Snippet:    r.Snippet,
			Source:     r.Source,
			SessionKey: r.SessionKey,
			ActorID:    r.ActorID,
		}
		if useCitations {
			v.Citation = citationLine(r)
			v.Snippet = v.Snippet + "\n" + v.Citation
		}
		views = append(views, v)
	}
	if charMax <= 0 {
		return views, useCitations
	}
	return clampByBudget(views, charMax), useCitations
}

func citationLine(r memory.SearchResult) string {
	if r.EndLine > r.StartLine {
		return r.Path + "#L" + strconv.Itoa(r.StartLine) + "-L" + strconv.Itoa(r.EndLine)
	}
	return r.Path + "#L" + strconv.Itoa(r.StartLine)
}

// resultFromEnvelope marshals the envelope as the tool's ForLLM payload.
func resultFromEnvelope(e *envelope) *Result {
	data, err := json.MarshalIndent(e, "", "  ")
	if err != nil {
		return ErrorResult("marshal result: " + err.Error())
	}
	return NewResult(string(data))
}

func clampByBudget(views []searchResultView, budget int) []searchResultView {
	out := make([]searchResultView, 0, len(views))
	used := 0
	for _, v := range views {
		remaining := budget - used
		if remaining <= 0 {
			break
		}
		if len(v.Snippet) <= remaining {
			out = append(out, v)
			used += len(v.Snippet)
			continue
		}
		v.Snippet = v.Snippet[:remaining]
		out = append(out, v)
		break
	}
	return out
}
