package repository

import (
	"context"
	"fmt"
	"time"

	"hrpool/ingestion/internal/models"
	"hrpool/ingestion/internal/pipeline"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog/log"
)

// SnapshotRepository is the stats archive: the per-player, per-season,
// per-date home-run time series plus the frozen season archive rows.
type SnapshotRepository struct {
	db *Database
}

// RecordSnapshot upserts a snapshot keyed by (player, season, date). A
// write for an existing date replaces it (same-day corrections); writes
// never touch other dates. Writes into a closed season are rejected.
func (r *SnapshotRepository) RecordSnapshot(ctx context.Context, snap *models.StatSnapshot) error {
	closed, err := r.IsSeasonClosed(ctx, snap.SeasonYear)
	if err != nil {
		return fmt.Errorf("%w: %v", pipeline.ErrArchiveWriteFailure, err)
	}
	if closed {
		return fmt.Errorf("%w: season %d", pipeline.ErrSeasonClosed, snap.SeasonYear)
	}

	query := `
		INSERT INTO stat_snapshots (
			player_id, season_year, snapshot_date, hrs_total, hrs_regular, hrs_postseason
		) VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (player_id, season_year, snapshot_date) DO UPDATE SET
			hrs_total = EXCLUDED.hrs_total,
			hrs_regular = EXCLUDED.hrs_regular,
			hrs_postseason = EXCLUDED.hrs_postseason,
			updated_at = NOW()
		RETURNING id, created_at, updated_at
	`

	err = r.db.Pool.QueryRow(
		ctx, query,
		snap.PlayerID, snap.SeasonYear, snap.Date,
		snap.HRsTotal, snap.HRsRegularSeason, snap.HRsPostseason,
	).Scan(&snap.ID, &snap.CreatedAt, &snap.UpdatedAt)

	if err != nil {
		return fmt.Errorf("%w: player_id=%d date=%s: %v",
			pipeline.ErrArchiveWriteFailure, snap.PlayerID, snap.Date.Format("2006-01-02"), err)
	}

	return nil
}

// CumulativeForPeriod returns home runs accrued in the window: the last
// value at or before end minus the last value strictly before start,
// clamped to >= 0. A snapshot dated on a window boundary counts in the
// window that starts there, never in both.
func (r *SnapshotRepository) CumulativeForPeriod(ctx context.Context, playerID, season int, start, end time.Time, counting pipeline.CountingMode) (int, bool, error) {
	column := "hrs_total"
	if counting == pipeline.CountRegularSeason {
		column = "hrs_regular"
	}

	endQuery := fmt.Sprintf(`
		SELECT %s FROM stat_snapshots
		WHERE player_id = $1 AND season_year = $2 AND snapshot_date <= $3
		ORDER BY snapshot_date DESC
		LIMIT 1
	`, column)

	var endVal int
	err := r.db.Pool.QueryRow(ctx, endQuery, playerID, season, end).Scan(&endVal)
	if err == pgx.ErrNoRows {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("failed to read period end value: %w", err)
	}

	startQuery := fmt.Sprintf(`
		SELECT %s FROM stat_snapshots
		WHERE player_id = $1 AND season_year = $2 AND snapshot_date < $3
		ORDER BY snapshot_date DESC
		LIMIT 1
	`, column)

	startVal := 0
	err = r.db.Pool.QueryRow(ctx, startQuery, playerID, season, start).Scan(&startVal)
	if err == pgx.ErrNoRows {
		startVal = 0
	} else if err != nil {
		return 0, false, fmt.Errorf("failed to read period baseline: %w", err)
	}

	hrs := endVal - startVal
	if hrs < 0 {
		hrs = 0
	}
	return hrs, true, nil
}

// ValueAt returns the last known cumulative total at or before date.
func (r *SnapshotRepository) ValueAt(ctx context.Context, playerID, season int, date time.Time) (int, bool, error) {
	query := `
		SELECT hrs_total FROM stat_snapshots
		WHERE player_id = $1 AND season_year = $2 AND snapshot_date <= $3
		ORDER BY snapshot_date DESC
		LIMIT 1
	`

	var hrs int
	err := r.db.Pool.QueryRow(ctx, query, playerID, season, date).Scan(&hrs)
	if err == pgx.ErrNoRows {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("failed to read snapshot value: %w", err)
	}

	return hrs, true, nil
}

// HistoryByPlayer retrieves a player's full snapshot time series, newest
// season first, dates ascending within a season.
func (r *SnapshotRepository) HistoryByPlayer(ctx context.Context, playerID int) ([]*models.StatSnapshot, error) {
	query := `
		SELECT id, player_id, season_year, snapshot_date,
		       hrs_total, hrs_regular, hrs_postseason,
		       created_at, updated_at
		FROM stat_snapshots
		WHERE player_id = $1
		ORDER BY season_year DESC, snapshot_date ASC
	`

	rows, err := r.db.Pool.Query(ctx, query, playerID)
	if err != nil {
		return nil, fmt.Errorf("failed to get player history: %w", err)
	}
	defer rows.Close()

	var snaps []*models.StatSnapshot
	for rows.Next() {
		var snap models.StatSnapshot
		err := rows.Scan(
			&snap.ID, &snap.PlayerID, &snap.SeasonYear, &snap.Date,
			&snap.HRsTotal, &snap.HRsRegularSeason, &snap.HRsPostseason,
			&snap.CreatedAt, &snap.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan snapshot: %w", err)
		}
		snaps = append(snaps, &snap)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating snapshots: %w", err)
	}

	return snaps, nil
}

// seasonTotalsQuery upserts season archive rows from each player's latest
// snapshot in the season.
const seasonTotalsQuery = `
	INSERT INTO season_archive (player_id, season_year, cumulative_hrs, team_abbr)
	SELECT DISTINCT ON (s.player_id)
	       s.player_id, s.season_year, s.hrs_total, p.team_abbr
	FROM stat_snapshots s
	JOIN players p ON p.id = s.player_id
	WHERE s.season_year = $1
	ORDER BY s.player_id, s.snapshot_date DESC
	ON CONFLICT (player_id, season_year) DO UPDATE SET
		cumulative_hrs = EXCLUDED.cumulative_hrs,
		team_abbr = EXCLUDED.team_abbr,
		updated_at = NOW()
`

// UpsertSeasonTotals refreshes the in-season archive rows from the latest
// snapshots. No-op once the season is closed.
func (r *SnapshotRepository) UpsertSeasonTotals(ctx context.Context, season int) error {
	closed, err := r.IsSeasonClosed(ctx, season)
	if err != nil {
		return err
	}
	if closed {
		log.Debug().Int("season", season).Msg("Season closed, skipping archive refresh")
		return nil
	}

	result, err := r.db.Pool.Exec(ctx, seasonTotalsQuery, season)
	if err != nil {
		return fmt.Errorf("failed to refresh season totals: %w", err)
	}

	log.Debug().
		Int("season", season).
		Int64("players", result.RowsAffected()).
		Msg("Season archive totals refreshed")

	return nil
}

// CloseSeason freezes the season: archive rows are materialized from the
// final snapshots and further snapshot writes for the season are rejected.
func (r *SnapshotRepository) CloseSeason(ctx context.Context, season int) error {
	closed, err := r.IsSeasonClosed(ctx, season)
	if err != nil {
		return err
	}
	if closed {
		return fmt.Errorf("%w: season %d", pipeline.ErrSeasonClosed, season)
	}

	tx, err := r.db.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin close-season transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, seasonTotalsQuery, season); err != nil {
		return fmt.Errorf("failed to freeze season archive: %w", err)
	}

	if _, err := tx.Exec(ctx,
		`INSERT INTO season_closures (season_year) VALUES ($1) ON CONFLICT (season_year) DO NOTHING`,
		season,
	); err != nil {
		return fmt.Errorf("failed to mark season closed: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit close-season transaction: %w", err)
	}

	log.Info().Int("season", season).Msg("Season closed, archive frozen")
	return nil
}

// IsSeasonClosed reports whether the season's archive has been frozen.
func (r *SnapshotRepository) IsSeasonClosed(ctx context.Context, season int) (bool, error) {
	var closed bool
	err := r.db.Pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM season_closures WHERE season_year = $1)`,
		season,
	).Scan(&closed)
	if err != nil {
		return false, fmt.Errorf("failed to check season closure: %w", err)
	}
	return closed, nil
}

// SeasonArchive retrieves the archived (or in-season running) totals for a
// season, highest first.
func (r *SnapshotRepository) SeasonArchive(ctx context.Context, season int) ([]*models.SeasonArchiveEntry, error) {
	query := `
		SELECT player_id, season_year, cumulative_hrs, team_abbr, updated_at
		FROM season_archive
		WHERE season_year = $1
		ORDER BY cumulative_hrs DESC, player_id
	`

	rows, err := r.db.Pool.Query(ctx, query, season)
	if err != nil {
		return nil, fmt.Errorf("failed to get season archive: %w", err)
	}
	defer rows.Close()

	var entries []*models.SeasonArchiveEntry
	for rows.Next() {
		var entry models.SeasonArchiveEntry
		err := rows.Scan(
			&entry.PlayerID, &entry.SeasonYear, &entry.CumulativeHRs,
			&entry.TeamAbbr, &entry.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan archive entry: %w", err)
		}
		entries = append(entries, &entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating archive entries: %w", err)
	}

	return entries, nil
}
