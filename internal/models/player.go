package models

import (
	"database/sql"
	"time"
)

// Player is a permanent identity for a major-league hitter. A player is
// created the first time the external feed reports them and is never
// deleted. TeamAbbr is mutable (trades); name changes from the feed are
// treated as upstream corrections and overwritten.
type Player struct {
	ID          int            `db:"id"`
	ExternalID  string         `db:"external_id"`
	DisplayName string         `db:"display_name"`
	TeamAbbr    string         `db:"team_abbr"`
	PhotoRef    sql.NullString `db:"photo_ref"`
	CreatedAt   time.Time      `db:"created_at"`
	UpdatedAt   time.Time      `db:"updated_at"`
}
