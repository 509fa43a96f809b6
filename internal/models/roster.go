package models

import "github.com/google/uuid"

// Roster entry statuses as written by the web layer. The pipeline only
// scores active rosters.
const (
	EntryStatusDraft   = "draft"
	EntryStatusActive  = "active"
	EntryStatusDeleted = "deleted"
)

// RosterSize is the number of player picks per roster; scoring always
// counts the best RosterSize-1 of them.
const RosterSize = 8

// Roster is a user's set of player picks for a season. It is owned by the
// web layer; the pipeline treats it as read-only input.
type Roster struct {
	ID          uuid.UUID `db:"id"`
	SeasonYear  int       `db:"season_year"`
	EntryStatus string    `db:"entry_status"`
	PlayerIDs   []int     `db:"player_ids"`
}
