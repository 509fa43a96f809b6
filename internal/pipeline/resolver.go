package pipeline

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"hrpool/ingestion/internal/models"

	"github.com/rs/zerolog/log"
)

// ResolvedRecord is a fetched record mapped to its stable internal player
// identity.
type ResolvedRecord struct {
	PlayerID int
	models.SourceRecord
}

// Resolver maps fetched records to Player identities, creating identities
// on first sighting. Resolving the same input twice produces no writes
// beyond the first run.
type Resolver struct {
	players PlayerStore
}

func NewResolver(players PlayerStore) *Resolver {
	return &Resolver{players: players}
}

// Resolve looks up or creates a player for every record. Records that lose
// an identity race are logged and skipped; storage failures abort the
// whole batch.
func (r *Resolver) Resolve(ctx context.Context, records []models.SourceRecord) ([]ResolvedRecord, error) {
	resolved := make([]ResolvedRecord, 0, len(records))

	for _, rec := range records {
		player, err := r.players.GetByExternalID(ctx, rec.ExternalID)
		if err != nil {
			return nil, fmt.Errorf("failed to look up player %s: %w", rec.ExternalID, err)
		}

		if player == nil {
			player = &models.Player{
				ExternalID:  rec.ExternalID,
				DisplayName: rec.Name,
				TeamAbbr:    rec.TeamAbbr,
			}
			if rec.PhotoRef != "" {
				player.PhotoRef = sql.NullString{String: rec.PhotoRef, Valid: true}
			}

			if err := r.players.Create(ctx, player); err != nil {
				if errors.Is(err, ErrIdentityConflict) {
					log.Warn().
						Err(err).
						Str("external_id", rec.ExternalID).
						Str("name", rec.Name).
						Msg("Identity conflict, skipping record")
					continue
				}
				return nil, fmt.Errorf("failed to create player %s: %w", rec.ExternalID, err)
			}

			log.Debug().
				Int("player_id", player.ID).
				Str("external_id", rec.ExternalID).
				Str("name", rec.Name).
				Msg("Player created")
		} else {
			if rec.TeamAbbr != "" && rec.TeamAbbr != player.TeamAbbr {
				if err := r.players.UpdateTeam(ctx, player.ID, rec.TeamAbbr); err != nil {
					return nil, fmt.Errorf("failed to update team for player %d: %w", player.ID, err)
				}
				log.Info().
					Int("player_id", player.ID).
					Str("from", player.TeamAbbr).
					Str("to", rec.TeamAbbr).
					Msg("Player traded, team updated")
			}

			// Name changes from the feed are corrections, not new identities.
			if rec.Name != "" && rec.Name != player.DisplayName {
				if err := r.players.UpdateName(ctx, player.ID, rec.Name); err != nil {
					return nil, fmt.Errorf("failed to update name for player %d: %w", player.ID, err)
				}
			}
		}

		resolved = append(resolved, ResolvedRecord{PlayerID: player.ID, SourceRecord: rec})
	}

	return resolved, nil
}
