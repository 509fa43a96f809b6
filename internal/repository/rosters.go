package repository

import (
	"context"
	"fmt"

	"hrpool/ingestion/internal/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// RosterRepository reads rosters owned by the web layer. The pipeline
// never writes to this table.
type RosterRepository struct {
	db *Database
}

// ListActive retrieves all scoreable rosters for a season: entered, not
// draft, not deleted.
func (r *RosterRepository) ListActive(ctx context.Context, season int) ([]*models.Roster, error) {
	query := `
		SELECT id, season_year, entry_status, player_ids
		FROM rosters
		WHERE season_year = $1 AND entry_status = $2
		ORDER BY id
	`

	rows, err := r.db.Pool.Query(ctx, query, season, models.EntryStatusActive)
	if err != nil {
		return nil, fmt.Errorf("failed to list active rosters: %w", err)
	}
	defer rows.Close()

	var rosters []*models.Roster
	for rows.Next() {
		var roster models.Roster
		var playerIDs []int32
		err := rows.Scan(&roster.ID, &roster.SeasonYear, &roster.EntryStatus, &playerIDs)
		if err != nil {
			return nil, fmt.Errorf("failed to scan roster: %w", err)
		}
		roster.PlayerIDs = make([]int, len(playerIDs))
		for i, id := range playerIDs {
			roster.PlayerIDs[i] = int(id)
		}
		rosters = append(rosters, &roster)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rosters: %w", err)
	}

	return rosters, nil
}

// GetByID retrieves a single roster.
func (r *RosterRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Roster, error) {
	query := `
		SELECT id, season_year, entry_status, player_ids
		FROM rosters
		WHERE id = $1
	`

	var roster models.Roster
	var playerIDs []int32
	err := r.db.Pool.QueryRow(ctx, query, id).Scan(
		&roster.ID, &roster.SeasonYear, &roster.EntryStatus, &playerIDs,
	)

	if err == pgx.ErrNoRows {
		return nil, fmt.Errorf("roster not found: id=%s", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get roster: %w", err)
	}

	roster.PlayerIDs = make([]int, len(playerIDs))
	for i, pid := range playerIDs {
		roster.PlayerIDs[i] = int(pid)
	}

	return &roster, nil
}
