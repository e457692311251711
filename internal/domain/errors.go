package domain

import "fmt"

// AuthError means a client-credentials exchange failed. It is fatal for
// any fetch that needed the token; callers may retry the whole fetch.
type AuthError struct {
	Service string
	Status  int
	Reason  string
}

func (e *AuthError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("auth failed for %s: status %d: %s", e.Service, e.Status, e.Reason)
	}
	return fmt.Sprintf("auth failed for %s: %s", e.Service, e.Reason)
}

// SchemaError means an upstream payload violated the expected shape.
// Fatal for that single fetch only, never for sibling fetches.
type SchemaError struct {
	Path   string
	Reason string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("schema violation at %s: %s", e.Path, e.Reason)
}

// MetadataMismatchError means the dungeon name join between the metadata
// provider and the combat-log service failed. Fatal at startup: serving
// without the join produces silently wrong labels.
type MetadataMismatchError struct {
	Dungeon string
}

func (e *MetadataMismatchError) Error() string {
	return fmt.Sprintf("mismatched metadata/combat-log dungeon %q", e.Dungeon)
}

// NoRankingFoundError means no leaderboard entry survived filtering.
// Expected and non-fatal: it signals "no comparison available".
type NoRankingFoundError struct {
	EncounterID int
	ClassID     int
	SpecID      int
}

func (e *NoRankingFoundError) Error() string {
	return fmt.Sprintf("no ranking found for encounter %d class %d spec %d", e.EncounterID, e.ClassID, e.SpecID)
}
