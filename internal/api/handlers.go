package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"hrpool/ingestion/internal/cache"
	"hrpool/ingestion/internal/models"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"
)

// ReadHandler serves the leaderboard and player-history read endpoints.
type ReadHandler struct {
	leaderboards LeaderboardReader
	history      HistoryReader
	cache        *cache.Cache
}

func NewReadHandler(leaderboards LeaderboardReader, history HistoryReader, c *cache.Cache) *ReadHandler {
	return &ReadHandler{leaderboards: leaderboards, history: history, cache: c}
}

type LeaderboardEntryResponse struct {
	Rank         int       `json:"rank"`
	RosterID     string    `json:"rosterId"`
	TotalHRs     int       `json:"totalHrs"`
	CalculatedAt time.Time `json:"calculatedAt"`
}

type LeaderboardResponse struct {
	Type    string                     `json:"type"`
	Period  string                     `json:"period"`
	BatchID string                     `json:"batchId,omitempty"`
	Entries []LeaderboardEntryResponse `json:"entries"`
}

// GetLeaderboard returns the last published standings for a (type, period)
// pair, served from cache when possible.
func (h *ReadHandler) GetLeaderboard(w http.ResponseWriter, r *http.Request) {
	lbType := models.LeaderboardType(chi.URLParam(r, "type"))
	period := chi.URLParam(r, "period")

	if !lbType.Valid() {
		http.Error(w, "Unknown leaderboard type", http.StatusBadRequest)
		return
	}

	var entries []*models.LeaderboardEntry
	cached := false
	if h.cache != nil {
		entries, cached = h.cache.GetLeaderboard(r.Context(), lbType, period)
	}

	if !cached {
		var err error
		entries, err = h.leaderboards.GetLeaderboard(r.Context(), lbType, period)
		if err != nil {
			log.Error().Err(err).
				Str("type", string(lbType)).
				Str("period", period).
				Msg("Failed to read leaderboard")
			http.Error(w, "Failed to read leaderboard", http.StatusInternalServerError)
			return
		}
		if h.cache != nil && len(entries) > 0 {
			h.cache.SetLeaderboard(r.Context(), lbType, period, entries)
		}
	}

	resp := LeaderboardResponse{
		Type:    string(lbType),
		Period:  period,
		Entries: make([]LeaderboardEntryResponse, len(entries)),
	}
	for i, entry := range entries {
		if i == 0 {
			resp.BatchID = entry.BatchID.String()
		}
		resp.Entries[i] = LeaderboardEntryResponse{
			Rank:         entry.Rank,
			RosterID:     entry.RosterID.String(),
			TotalHRs:     entry.TotalHRs,
			CalculatedAt: entry.CalculatedAt,
		}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

type SnapshotResponse struct {
	SeasonYear       int    `json:"seasonYear"`
	Date             string `json:"date"`
	HRsTotal         int    `json:"hrsTotal"`
	HRsRegularSeason int    `json:"hrsRegularSeason"`
	HRsPostseason    int    `json:"hrsPostseason"`
}

type PlayerHistoryResponse struct {
	PlayerID  int                `json:"playerId"`
	Snapshots []SnapshotResponse `json:"snapshots"`
}

// GetPlayerHistory returns a player's full snapshot time series.
func (h *ReadHandler) GetPlayerHistory(w http.ResponseWriter, r *http.Request) {
	playerID, err := strconv.Atoi(chi.URLParam(r, "playerID"))
	if err != nil {
		http.Error(w, "Invalid player id", http.StatusBadRequest)
		return
	}

	snaps, err := h.history.HistoryByPlayer(r.Context(), playerID)
	if err != nil {
		log.Error().Err(err).Int("player_id", playerID).Msg("Failed to read player history")
		http.Error(w, "Failed to read player history", http.StatusInternalServerError)
		return
	}

	resp := PlayerHistoryResponse{
		PlayerID:  playerID,
		Snapshots: make([]SnapshotResponse, len(snaps)),
	}
	for i, snap := range snaps {
		resp.Snapshots[i] = SnapshotResponse{
			SeasonYear:       snap.SeasonYear,
			Date:             snap.Date.Format("2006-01-02"),
			HRsTotal:         snap.HRsTotal,
			HRsRegularSeason: snap.HRsRegularSeason,
			HRsPostseason:    snap.HRsPostseason,
		}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}
