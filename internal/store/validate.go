package store

import "fmt"

// MaxActorIDLength is the maximum allowed length for actor identifier
// strings (actor_id, session_key, alias). The database columns are TEXT,
// so this limit is enforced only here, not by the schema.
const MaxActorIDLength = 255

// ValidateActorID checks that an actor identifier does not exceed
// MaxActorIDLength.
func ValidateActorID(id string) error {
	if len(id) > MaxActorIDLength {
		return fmt.Errorf("actor identifier too long: %d chars (max %d)", len(id), MaxActorIDLength)
	}
	return nil
}
