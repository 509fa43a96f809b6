package pipeline

import (
	"context"
	"time"

	"hrpool/ingestion/internal/models"
)

// CountingMode selects which home-run column a period sums.
type CountingMode int

const (
	// CountTotal counts regular season plus postseason home runs.
	CountTotal CountingMode = iota
	// CountRegularSeason counts regular-season home runs only.
	CountRegularSeason
)

// Fetcher retrieves the season home-run listing from the external source.
// A failed fetch never partially applies: either the full normalized list
// is returned or an error wrapping ErrSourceUnavailable.
type Fetcher interface {
	FetchSeasonHomeRuns(ctx context.Context, season int) ([]models.SourceRecord, error)
}

// PlayerStore is the identity side of the durable store.
type PlayerStore interface {
	// GetByExternalID returns (nil, nil) when the identity is unseen.
	GetByExternalID(ctx context.Context, externalID string) (*models.Player, error)
	// Create inserts a new player; a concurrent claim of the same external
	// id surfaces as an error wrapping ErrIdentityConflict.
	Create(ctx context.Context, player *models.Player) error
	UpdateTeam(ctx context.Context, id int, teamAbbr string) error
	UpdateName(ctx context.Context, id int, displayName string) error
}

// Archive is the per-player home-run time series. Each write is atomic on
// its own; a cycle aborted mid-archive leaves no partial snapshot.
type Archive interface {
	RecordSnapshot(ctx context.Context, snap *models.StatSnapshot) error
	// CumulativeForPeriod returns home runs accrued inside (start, end]:
	// the last value at or before end minus the last value strictly before
	// start, clamped to >= 0. found is false when the player has no
	// snapshot at or before end, in which case hrs is 0.
	CumulativeForPeriod(ctx context.Context, playerID, season int, start, end time.Time, counting CountingMode) (hrs int, found bool, err error)
	// ValueAt returns the last known total at or before date.
	ValueAt(ctx context.Context, playerID, season int, date time.Time) (hrs int, found bool, err error)
}

// RosterSource lists the rosters to score. Rosters are owned by the web
// layer; the pipeline only reads them.
type RosterSource interface {
	ListActive(ctx context.Context, season int) ([]*models.Roster, error)
}

// LeaderboardStore publishes standings. ReplaceAll swaps every row for the
// (type, period) pair in one unit; readers never observe a mix of batches.
type LeaderboardStore interface {
	ReplaceAll(ctx context.Context, lbType models.LeaderboardType, periodKey string, entries []*models.LeaderboardEntry) error
}
