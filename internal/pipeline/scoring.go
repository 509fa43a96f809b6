package pipeline

import (
	"context"
	"fmt"

	"hrpool/ingestion/internal/models"

	"github.com/rs/zerolog/log"
)

// Scorer computes a roster's best-7-of-8 total for a period. It only reads
// the archive and never mutates anything.
type Scorer struct {
	archive Archive
}

func NewScorer(archive Archive) *Scorer {
	return &Scorer{archive: archive}
}

// Score computes the roster's ScoreRecord for the period. Players with no
// snapshot in the window contribute 0 and draw a warning; the roster is
// still scored.
func (s *Scorer) Score(ctx context.Context, roster *models.Roster, period Period) (*models.ScoreRecord, error) {
	totals := make([]int, len(roster.PlayerIDs))

	for i, playerID := range roster.PlayerIDs {
		var (
			hrs   int
			found bool
			err   error
		)
		if period.Snapshot() {
			hrs, found, err = s.archive.ValueAt(ctx, playerID, roster.SeasonYear, period.End)
		} else {
			hrs, found, err = s.archive.CumulativeForPeriod(ctx, playerID, roster.SeasonYear, period.Start, period.End, period.Counting)
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read archive for player %d: %w", playerID, err)
		}
		if !found {
			log.Warn().
				Str("roster_id", roster.ID.String()).
				Int("player_id", playerID).
				Str("period", period.Key).
				Msg("No snapshots for rostered player, counting 0")
		}
		totals[i] = hrs
	}

	sum := 0
	for _, hrs := range totals {
		sum += hrs
	}

	// Drop the lowest total. Ties exclude the later roster position, so
	// recomputations always pick the same player.
	excluded := 0
	for i := 1; i < len(totals); i++ {
		if totals[i] <= totals[excluded] {
			excluded = i
		}
	}

	return &models.ScoreRecord{
		RosterID:         roster.ID,
		LeaderboardType:  period.Type,
		PeriodKey:        period.Key,
		BestSevenTotal:   sum - totals[excluded],
		ExcludedPlayerID: roster.PlayerIDs[excluded],
		PlayerTotals:     totals,
	}, nil
}
