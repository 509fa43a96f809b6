package api

import (
	"context"
	"net/http"

	"hrpool/ingestion/internal/cache"
	"hrpool/ingestion/internal/models"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
)

// LeaderboardReader serves published standings.
type LeaderboardReader interface {
	GetLeaderboard(ctx context.Context, lbType models.LeaderboardType, periodKey string) ([]*models.LeaderboardEntry, error)
}

// HistoryReader serves a player's snapshot time series.
type HistoryReader interface {
	HistoryByPlayer(ctx context.Context, playerID int) ([]*models.StatSnapshot, error)
}

// NewRouter builds the read API consumed by the web layer. The cache is
// optional; pass nil to read straight from the database.
func NewRouter(leaderboards LeaderboardReader, history HistoryReader, c *cache.Cache) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.Recoverer)

	handler := NewReadHandler(leaderboards, history, c)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/leaderboards/{type}/{period}", handler.GetLeaderboard)
		r.Get("/players/{playerID}/history", handler.GetPlayerHistory)
	})

	return r
}
