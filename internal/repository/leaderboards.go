package repository

import (
	"context"
	"fmt"

	"hrpool/ingestion/internal/models"

	"github.com/rs/zerolog/log"
)

// LeaderboardRepository materializes published standings. Rows for a
// (type, period) pair are only ever swapped wholesale inside one
// transaction, so readers always see a single consistent batch.
type LeaderboardRepository struct {
	db *Database
}

// ReplaceAll removes the current rows for (lbType, periodKey) and inserts
// the new batch as one unit.
func (r *LeaderboardRepository) ReplaceAll(ctx context.Context, lbType models.LeaderboardType, periodKey string, entries []*models.LeaderboardEntry) error {
	tx, err := r.db.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin leaderboard replace: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx,
		`DELETE FROM leaderboard_entries WHERE leaderboard_type = $1 AND period_key = $2`,
		lbType, periodKey,
	); err != nil {
		return fmt.Errorf("failed to clear leaderboard %s/%s: %w", lbType, periodKey, err)
	}

	query := `
		INSERT INTO leaderboard_entries (
			roster_id, leaderboard_type, period_key, rank, total_hrs, batch_id, calculated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	for _, entry := range entries {
		if _, err := tx.Exec(ctx, query,
			entry.RosterID, entry.LeaderboardType, entry.PeriodKey,
			entry.Rank, entry.TotalHRs, entry.BatchID, entry.CalculatedAt,
		); err != nil {
			return fmt.Errorf("failed to insert leaderboard entry: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit leaderboard replace: %w", err)
	}

	log.Debug().
		Str("type", string(lbType)).
		Str("period", periodKey).
		Int("entries", len(entries)).
		Msg("Leaderboard rows replaced")

	return nil
}

// GetLeaderboard retrieves the published standings for a (type, period)
// pair, best rank first.
func (r *LeaderboardRepository) GetLeaderboard(ctx context.Context, lbType models.LeaderboardType, periodKey string) ([]*models.LeaderboardEntry, error) {
	query := `
		SELECT id, roster_id, leaderboard_type, period_key, rank, total_hrs, batch_id, calculated_at
		FROM leaderboard_entries
		WHERE leaderboard_type = $1 AND period_key = $2
		ORDER BY rank, total_hrs DESC, roster_id
	`

	rows, err := r.db.Pool.Query(ctx, query, lbType, periodKey)
	if err != nil {
		return nil, fmt.Errorf("failed to get leaderboard: %w", err)
	}
	defer rows.Close()

	var entries []*models.LeaderboardEntry
	for rows.Next() {
		var entry models.LeaderboardEntry
		err := rows.Scan(
			&entry.ID, &entry.RosterID, &entry.LeaderboardType, &entry.PeriodKey,
			&entry.Rank, &entry.TotalHRs, &entry.BatchID, &entry.CalculatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan leaderboard entry: %w", err)
		}
		entries = append(entries, &entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating leaderboard entries: %w", err)
	}

	return entries, nil
}
