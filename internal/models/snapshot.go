package models

import (
	"database/sql"
	"time"
)

// StatSnapshot is one point in a player's per-season home-run time series,
// keyed by (player, season, date). Within a season the series is append-only:
// a later date never rewrites an earlier one, and only a write for the same
// date may replace an existing value (same-day stat corrections).
type StatSnapshot struct {
	ID               int       `db:"id"`
	PlayerID         int       `db:"player_id"`
	SeasonYear       int       `db:"season_year"`
	Date             time.Time `db:"snapshot_date"`
	HRsTotal         int       `db:"hrs_total"`
	HRsRegularSeason int       `db:"hrs_regular"`
	HRsPostseason    int       `db:"hrs_postseason"`
	CreatedAt        time.Time `db:"created_at"`
	UpdatedAt        time.Time `db:"updated_at"`
}

// SeasonArchiveEntry is the per-(player, season) final line. Rows are
// upserted from the latest snapshots while a season runs and frozen once
// the season is closed.
type SeasonArchiveEntry struct {
	PlayerID      int            `db:"player_id"`
	SeasonYear    int            `db:"season_year"`
	CumulativeHRs int            `db:"cumulative_hrs"`
	TeamAbbr      sql.NullString `db:"team_abbr"`
	UpdatedAt     time.Time      `db:"updated_at"`
}
