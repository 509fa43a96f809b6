package repository

import (
	"context"
	"errors"
	"fmt"

	"hrpool/ingestion/internal/models"
	"hrpool/ingestion/internal/pipeline"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog/log"
)

// PlayerRepository handles player identity database operations
type PlayerRepository struct {
	db *Database
}

// uniqueViolation is the Postgres error code for duplicate key writes
const uniqueViolation = "23505"

// Create inserts a new player identity. A duplicate external id surfaces
// as pipeline.ErrIdentityConflict so the resolver can skip the record.
func (r *PlayerRepository) Create(ctx context.Context, player *models.Player) error {
	query := `
		INSERT INTO players (external_id, display_name, team_abbr, photo_ref)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at, updated_at
	`

	err := r.db.Pool.QueryRow(
		ctx, query,
		player.ExternalID, player.DisplayName, player.TeamAbbr, player.PhotoRef,
	).Scan(&player.ID, &player.CreatedAt, &player.UpdatedAt)

	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return fmt.Errorf("%w: external_id=%s already claimed", pipeline.ErrIdentityConflict, player.ExternalID)
		}
		return fmt.Errorf("failed to create player: %w", err)
	}

	log.Debug().
		Int("id", player.ID).
		Str("external_id", player.ExternalID).
		Str("name", player.DisplayName).
		Msg("Player created")

	return nil
}

// GetByExternalID retrieves a player by the feed's player id. Returns
// (nil, nil) when the identity has not been seen yet.
func (r *PlayerRepository) GetByExternalID(ctx context.Context, externalID string) (*models.Player, error) {
	query := `
		SELECT id, external_id, display_name, team_abbr, photo_ref, created_at, updated_at
		FROM players
		WHERE external_id = $1
	`

	var player models.Player
	err := r.db.Pool.QueryRow(ctx, query, externalID).Scan(
		&player.ID, &player.ExternalID, &player.DisplayName,
		&player.TeamAbbr, &player.PhotoRef,
		&player.CreatedAt, &player.UpdatedAt,
	)

	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get player: %w", err)
	}

	return &player, nil
}

// GetByID retrieves a player by its database ID
func (r *PlayerRepository) GetByID(ctx context.Context, id int) (*models.Player, error) {
	query := `
		SELECT id, external_id, display_name, team_abbr, photo_ref, created_at, updated_at
		FROM players
		WHERE id = $1
	`

	var player models.Player
	err := r.db.Pool.QueryRow(ctx, query, id).Scan(
		&player.ID, &player.ExternalID, &player.DisplayName,
		&player.TeamAbbr, &player.PhotoRef,
		&player.CreatedAt, &player.UpdatedAt,
	)

	if err == pgx.ErrNoRows {
		return nil, fmt.Errorf("player not found: id=%d", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get player: %w", err)
	}

	return &player, nil
}

// UpdateTeam records a trade: only the current team changes
func (r *PlayerRepository) UpdateTeam(ctx context.Context, id int, teamAbbr string) error {
	query := `UPDATE players SET team_abbr = $1, updated_at = NOW() WHERE id = $2`

	result, err := r.db.Pool.Exec(ctx, query, teamAbbr, id)
	if err != nil {
		return fmt.Errorf("failed to update player team: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("player not found: id=%d", id)
	}

	return nil
}

// UpdateName overwrites the display name with an upstream correction
func (r *PlayerRepository) UpdateName(ctx context.Context, id int, displayName string) error {
	query := `UPDATE players SET display_name = $1, updated_at = NOW() WHERE id = $2`

	result, err := r.db.Pool.Exec(ctx, query, displayName, id)
	if err != nil {
		return fmt.Errorf("failed to update player name: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("player not found: id=%d", id)
	}

	return nil
}

// List retrieves all players
func (r *PlayerRepository) List(ctx context.Context) ([]*models.Player, error) {
	query := `
		SELECT id, external_id, display_name, team_abbr, photo_ref, created_at, updated_at
		FROM players
		ORDER BY display_name
	`

	rows, err := r.db.Pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list players: %w", err)
	}
	defer rows.Close()

	var players []*models.Player
	for rows.Next() {
		var player models.Player
		err := rows.Scan(
			&player.ID, &player.ExternalID, &player.DisplayName,
			&player.TeamAbbr, &player.PhotoRef,
			&player.CreatedAt, &player.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan player: %w", err)
		}
		players = append(players, &player)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating players: %w", err)
	}

	return players, nil
}

// Count returns the total number of players
func (r *PlayerRepository) Count(ctx context.Context) (int, error) {
	query := `SELECT COUNT(*) FROM players`

	var count int
	err := r.db.Pool.QueryRow(ctx, query).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count players: %w", err)
	}

	return count, nil
}
