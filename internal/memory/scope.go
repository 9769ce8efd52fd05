package memory

import "regexp"

// sharedContextTokens are the case-insensitive, word-boundary tokens that
// signal a query is about a shared/group context rather than the asking
// actor alone (§4.8).
var sharedContextTokens = []string{
	"we", "our", "us", "team", "group", "everyone", "anyone", "all",
	"channel", "server", "thread", "guild", "room", "together", "others", "people",
}

var sharedContextRe = regexp.MustCompile(`(?i)\b(` + joinTokens(sharedContextTokens) + `)\b`)

func joinTokens(tokens []string) string {
	out := tokens[0]
	for _, t := range tokens[1:] {
		out += "|" + t
	}
	return out
}

// ScopeContext is the ambient information available to the resolver at
// query time: the session the query arrived on, its chat type, and any
// already-known actor identity.
type ScopeContext struct {
	SessionKey string
	ChatType   string // "direct" or "group" (or any non-"direct" value)
	ActorID    string
	ActorType  ActorType
}

// ScopeOverride lets a caller bypass auto-resolution with explicit values
// (§4.8 "optional explicit overrides").
type ScopeOverride struct {
	Scope     Scope
	ActorID   string
	ActorType ActorType
	Role      Role
}

// ResolveScope is a pure function mapping ambient context and query text
// to a concrete scope and actor filter (§4.8, §8 property 7). It contains
// no I/O and is deterministic for a given (ctx, query, override).
func ResolveScope(ctx ScopeContext, query string, override ScopeOverride) (Scope, string, ActorType) {
	if override.Scope != "" {
		return override.Scope, override.ActorID, override.ActorType
	}

	hasSharedTokens := sharedContextRe.MatchString(query)
	if hasSharedTokens {
		if ctx.ChatType == "direct" || ctx.ChatType == "" {
			return ScopeGlobal, "", ""
		}
		return ScopeSession, "", ""
	}

	if ctx.ActorID != "" && ctx.ChatType == "direct" {
		return ScopeActor, ctx.ActorID, ctx.ActorType
	}

	return ScopeSession, "", ""
}
