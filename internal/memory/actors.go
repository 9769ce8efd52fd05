package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

// SessionSnapshotEntry mirrors the narrow contract the session store
// exposes for actor-directory construction (§6): enough to derive a
// canonical human actor and, optionally, a display-name alias.
type SessionSnapshotEntry struct {
	SessionID string
	Origin    struct {
		Provider string
		From     string
		Label    string
	}
	Channel         string
	ChatType        string
	LastChannel     string
	DeliveryContext struct {
		To string
	}
	LastTo string
}

// SyncActorsFromSnapshot upserts canonical actors and aliases from an
// external session-store snapshot (§4.7). Actor and alias rows are never
// deleted here — their lifecycle is owned by the session store, not the
// indexer.
func SyncActorsFromSnapshot(ctx context.Context, store ChunkStore, snapshot map[string]SessionSnapshotEntry) error {
	for sessionKey, entry := range snapshot {
		userID := resolveUserID(entry)
		if userID == "" {
			continue
		}

		actor := Actor{ActorID: userID, ActorType: ActorHuman, DisplayName: entry.Origin.Label}
		if err := store.UpsertActor(ctx, actor); err != nil {
			return fmt.Errorf("upsert actor for session %s: %w", sessionKey, err)
		}

		if entry.Origin.Label != "" {
			alias := ActorAlias{
				AliasNorm:  normalizeAlias(entry.Origin.Label),
				Alias:      entry.Origin.Label,
				ActorID:    userID,
				SourceChan: entry.Channel,
				Confidence: 1,
			}
			if err := store.UpsertActorAlias(ctx, alias); err != nil {
				return fmt.Errorf("upsert alias for session %s: %w", sessionKey, err)
			}
		}
	}
	return nil
}

// LoadSessionSnapshot reads a session-store snapshot exported as a JSON
// object keyed by session key (§4.7, §4.11). Used by the sync coordinator
// and the CLI's "sync --actors-from" flag to populate the actor directory
// and resolve session chunk actor ids from the same source.
func LoadSessionSnapshot(path string) (map[string]SessionSnapshotEntry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read session snapshot %s: %w", path, err)
	}
	var snapshot map[string]SessionSnapshotEntry
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return nil, fmt.Errorf("parse session snapshot %s: %w", path, err)
	}
	return snapshot, nil
}

// resolveUserID picks the best available identifier for the human side
// of a session: the origin's From field, falling back to delivery/last
// addressing fields when From is unset.
func resolveUserID(entry SessionSnapshotEntry) string {
	switch {
	case entry.Origin.From != "":
		return entry.Origin.From
	case entry.DeliveryContext.To != "":
		return entry.DeliveryContext.To
	case entry.LastTo != "":
		return entry.LastTo
	default:
		return ""
	}
}

func normalizeAlias(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// SyntheticAgentActorID derives the canonical actor id for an agent
// participant: "agent:<agentID>" (§4.7).
func SyntheticAgentActorID(agentID string) string {
	return "agent:" + agentID
}

// EnsureAgentActor upserts the synthetic agent actor for agentID.
func EnsureAgentActor(ctx context.Context, store ChunkStore, agentID string) error {
	return store.UpsertActor(ctx, Actor{ActorID: SyntheticAgentActorID(agentID), ActorType: ActorAgent})
}

// LookupActors proxies the actor directory lookup (§4.7): query, limit
// clamp to 50.
func LookupActors(ctx context.Context, store ChunkStore, query string, limit int) ([]Actor, error) {
	if limit <= 0 || limit > 50 {
		limit = 50
	}
	return store.LookupActors(ctx, query, limit)
}
