package domain

import (
	"time"
)

// Role is a party role resolved from the combat-log player details.
type Role string

const (
	RoleTank   Role = "tank"
	RoleHealer Role = "healer"
	RoleDamage Role = "damage"
)

// Priority orders tank before healer before damage for party display.
func (r Role) Priority() int {
	switch r {
	case RoleTank:
		return 0
	case RoleHealer:
		return 1
	default:
		return 2
	}
}

// Dungeon is the joined dungeon metadata, keyed by combat-log encounter id.
type Dungeon struct {
	Title       string
	EncounterID int
	Timer       time.Duration
	Image       string
}

// Affix is a weekly run modifier.
type Affix struct {
	ID   int
	Name string
	Icon string
}

// Run is one normalized keystone attempt. Immutable once built; the
// deduplicator replaces whole entries, it never mutates them.
type Run struct {
	Key      string      `json:"key"`
	Image    string      `json:"image"`
	Level    int         `json:"level"`
	Affixes  []string    `json:"affixes"`
	Finished bool        `json:"finished"`
	Timed    bool        `json:"timed"`
	Time     string      `json:"time"`
	TimeDiff string      `json:"timeDiff"`
	Owner    string      `json:"owner"`
	Date     int64       `json:"date"` // epoch ms, report start + fight offset
	Players  []RunPlayer `json:"players"`
	URL      string      `json:"url"`
}

// RunPlayer is one party member of a run. A run carries at most five,
// with at most one tank and one healer.
type RunPlayer struct {
	Role       Role   `json:"role"`
	ID         int    `json:"id"`
	Name       string `json:"name"`
	Type       string `json:"type"`
	ClassSpec  string `json:"classSpec"`
	RioURL     string `json:"rioUrl"`
	CompareURL string `json:"compareUrl,omitempty"`
}
