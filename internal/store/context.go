package store

import "context"

type contextKey string

const (
	// SessionKeyCtxKey is the context key for the ambient session identifier
	// a query arrived on.
	SessionKeyCtxKey contextKey = "memory_session_key"
	// ActorIDCtxKey is the context key for the already-known actor identity.
	ActorIDCtxKey contextKey = "memory_actor_id"
	// ActorTypeCtxKey is the context key for the actor's type ("human" or "agent").
	ActorTypeCtxKey contextKey = "memory_actor_type"
	// ChatTypeCtxKey is the context key for the chat type ("direct" or "group").
	ChatTypeCtxKey contextKey = "memory_chat_type"
)

// WithSessionKey returns a new context carrying the session key.
func WithSessionKey(ctx context.Context, key string) context.Context {
	return context.WithValue(ctx, SessionKeyCtxKey, key)
}

// SessionKeyFromContext extracts the session key from context. Returns "" if not set.
func SessionKeyFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(SessionKeyCtxKey).(string); ok {
		return v
	}
	return ""
}

// WithActorID returns a new context carrying the actor ID.
func WithActorID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ActorIDCtxKey, id)
}

// ActorIDFromContext extracts the actor ID from context. Returns "" if not set.
func ActorIDFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(ActorIDCtxKey).(string); ok {
		return v
	}
	return ""
}

// WithActorType returns a new context carrying the actor type.
func WithActorType(ctx context.Context, t string) context.Context {
	return context.WithValue(ctx, ActorTypeCtxKey, t)
}

// ActorTypeFromContext extracts the actor type from context. Returns "" if not set.
func ActorTypeFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(ActorTypeCtxKey).(string); ok {
		return v
	}
	return ""
}

// WithChatType returns a new context carrying the chat type.
func WithChatType(ctx context.Context, t string) context.Context {
	return context.WithValue(ctx, ChatTypeCtxKey, t)
}

// ChatTypeFromContext extracts the chat type from context. Returns "" if not set.
func ChatTypeFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(ChatTypeCtxKey).(string); ok {
		return v
	}
	return ""
}
