package models

import (
	"time"

	"github.com/google/uuid"
)

// LeaderboardType selects the counting rule and period shape for a board.
type LeaderboardType string

const (
	// LeaderboardOverall counts regular season + postseason home runs over
	// the full lock-to-date window.
	LeaderboardOverall LeaderboardType = "overall"
	// LeaderboardMonthly counts regular-season home runs inside one named
	// month.
	LeaderboardMonthly LeaderboardType = "monthly"
	// LeaderboardAllStar is a single-date snapshot at the all-star break.
	LeaderboardAllStar LeaderboardType = "allstar"
)

// Valid reports whether t is a known leaderboard type.
func (t LeaderboardType) Valid() bool {
	switch t {
	case LeaderboardOverall, LeaderboardMonthly, LeaderboardAllStar:
		return true
	}
	return false
}

// ScoreRecord is the best-7-of-8 result for a single roster and period.
// It is derived state: recomputed every cycle from snapshots and the
// roster, never persisted on its own.
type ScoreRecord struct {
	RosterID         uuid.UUID
	LeaderboardType  LeaderboardType
	PeriodKey        string
	BestSevenTotal   int
	ExcludedPlayerID int
	PlayerTotals     []int
}

// LeaderboardEntry is one materialized row of a published standings batch.
// All rows for a (type, period) share a BatchID and CalculatedAt and are
// replaced wholesale on every publish.
type LeaderboardEntry struct {
	ID              int             `db:"id"`
	RosterID        uuid.UUID       `db:"roster_id"`
	LeaderboardType LeaderboardType `db:"leaderboard_type"`
	PeriodKey       string          `db:"period_key"`
	Rank            int             `db:"rank"`
	TotalHRs        int             `db:"total_hrs"`
	BatchID         uuid.UUID       `db:"batch_id"`
	CalculatedAt    time.Time       `db:"calculated_at"`
}
