package pipeline

import (
	"context"
	"fmt"
	"sort"
	"time"

	"hrpool/ingestion/internal/models"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// Builder recomputes ranked standings for a period from all active
// rosters. Scoring fans out across a bounded worker group; the publish is
// a single atomic replace.
type Builder struct {
	rosters     RosterSource
	scorer      *Scorer
	store       LeaderboardStore
	concurrency int
}

func NewBuilder(rosters RosterSource, scorer *Scorer, store LeaderboardStore, concurrency int) *Builder {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Builder{
		rosters:     rosters,
		scorer:      scorer,
		store:       store,
		concurrency: concurrency,
	}
}

// ScoreAll scores every active roster for the season against the period.
// Rosters with the wrong number of picks are skipped with a warning.
func (b *Builder) ScoreAll(ctx context.Context, season int, period Period) ([]*models.ScoreRecord, error) {
	rosters, err := b.rosters.ListActive(ctx, season)
	if err != nil {
		return nil, fmt.Errorf("failed to list active rosters: %w", err)
	}

	scores := make([]*models.ScoreRecord, len(rosters))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.concurrency)

	for i, roster := range rosters {
		if len(roster.PlayerIDs) != models.RosterSize {
			log.Warn().
				Str("roster_id", roster.ID.String()).
				Int("players", len(roster.PlayerIDs)).
				Msg("Roster does not have the expected number of picks, skipping")
			continue
		}

		i, roster := i, roster
		g.Go(func() error {
			score, err := b.scorer.Score(gctx, roster, period)
			if err != nil {
				return err
			}
			scores[i] = score
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("failed to score rosters: %w", err)
	}

	out := scores[:0]
	for _, score := range scores {
		if score != nil {
			out = append(out, score)
		}
	}
	return out, nil
}

// Publish ranks the scores and swaps them in as the new standings for the
// period. Old rows are removed and new rows inserted as one unit, so a
// failed cycle leaves the previous batch untouched.
func (b *Builder) Publish(ctx context.Context, period Period, scores []*models.ScoreRecord) ([]*models.LeaderboardEntry, error) {
	sorted := make([]*models.ScoreRecord, len(scores))
	copy(sorted, scores)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].BestSevenTotal != sorted[j].BestSevenTotal {
			return sorted[i].BestSevenTotal > sorted[j].BestSevenTotal
		}
		return sorted[i].RosterID.String() < sorted[j].RosterID.String()
	})

	batchID := uuid.New()
	calculatedAt := time.Now().UTC()

	entries := make([]*models.LeaderboardEntry, len(sorted))
	for i, score := range sorted {
		// Standard competition ranking: ties share a rank, the next
		// distinct total ranks below all of them.
		rank := i + 1
		if i > 0 && score.BestSevenTotal == sorted[i-1].BestSevenTotal {
			rank = entries[i-1].Rank
		}
		entries[i] = &models.LeaderboardEntry{
			RosterID:        score.RosterID,
			LeaderboardType: period.Type,
			PeriodKey:       period.Key,
			Rank:            rank,
			TotalHRs:        score.BestSevenTotal,
			BatchID:         batchID,
			CalculatedAt:    calculatedAt,
		}
	}

	if err := b.store.ReplaceAll(ctx, period.Type, period.Key, entries); err != nil {
		return nil, fmt.Errorf("failed to publish leaderboard %s/%s: %w", period.Type, period.Key, err)
	}

	log.Info().
		Str("type", string(period.Type)).
		Str("period", period.Key).
		Int("entries", len(entries)).
		Str("batch_id", batchID.String()).
		Msg("Leaderboard published")

	return entries, nil
}
