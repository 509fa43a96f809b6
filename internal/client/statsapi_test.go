package client

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"hrpool/ingestion/internal/pipeline"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(handler http.HandlerFunc) (*Client, *httptest.Server) {
	server := httptest.NewServer(handler)
	return NewClient(server.URL, "test-key", 5*time.Second), server
}

func TestFetchSeasonHomeRuns(t *testing.T) {
	var gotPath, gotKey string
	client, server := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotKey = r.Header.Get("Ocp-Apim-Subscription-Key")
		w.Write([]byte(`[
			{"PlayerID": "mlb-660271", "Name": "Shohei Ohtani", "Team": "LAD", "HomeRuns": 30, "PostseasonHomeRuns": 3, "PhotoUrl": "https://img.example/660271.png"},
			{"PlayerID": "mlb-592450", "Name": "Aaron Judge", "Team": "NYY", "HomeRuns": 28, "PostseasonHomeRuns": 0}
		]`))
	})
	defer server.Close()

	records, err := client.FetchSeasonHomeRuns(context.Background(), 2025)
	require.NoError(t, err)
	require.Len(t, records, 2)

	assert.Equal(t, "/stats/json/PlayerSeasonHomeRuns/2025", gotPath)
	assert.Equal(t, "test-key", gotKey)

	assert.Equal(t, "mlb-660271", records[0].ExternalID)
	assert.Equal(t, "Shohei Ohtani", records[0].Name)
	assert.Equal(t, "LAD", records[0].TeamAbbr)
	assert.Equal(t, 30, records[0].RegularSeasonHR)
	assert.Equal(t, 3, records[0].PostseasonHR)
	assert.Equal(t, 33, records[0].TotalHR())
	assert.Equal(t, "https://img.example/660271.png", records[0].PhotoRef)
}

func TestFetchSeasonHomeRuns_DuplicatesLastWins(t *testing.T) {
	client, server := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[
			{"PlayerID": "mlb-660271", "Name": "Shohei Ohtani", "Team": "LAD", "HomeRuns": 29},
			{"PlayerID": "mlb-592450", "Name": "Aaron Judge", "Team": "NYY", "HomeRuns": 28},
			{"PlayerID": "mlb-660271", "Name": "Shohei Ohtani", "Team": "LAD", "HomeRuns": 30}
		]`))
	})
	defer server.Close()

	records, err := client.FetchSeasonHomeRuns(context.Background(), 2025)
	require.NoError(t, err)
	require.Len(t, records, 2)

	// The later duplicate replaces the earlier one, position preserved
	assert.Equal(t, "mlb-660271", records[0].ExternalID)
	assert.Equal(t, 30, records[0].RegularSeasonHR)
	assert.Equal(t, "mlb-592450", records[1].ExternalID)
}

func TestFetchSeasonHomeRuns_DropsRecordsWithoutID(t *testing.T) {
	client, server := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[
			{"PlayerID": "", "Name": "Mystery Player", "Team": "???", "HomeRuns": 5},
			{"PlayerID": "mlb-592450", "Name": "Aaron Judge", "Team": "NYY", "HomeRuns": 28}
		]`))
	})
	defer server.Close()

	records, err := client.FetchSeasonHomeRuns(context.Background(), 2025)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "mlb-592450", records[0].ExternalID)
}

func TestFetchSeasonHomeRuns_ServerErrorIsSourceUnavailable(t *testing.T) {
	client, server := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})
	defer server.Close()

	_, err := client.FetchSeasonHomeRuns(context.Background(), 2025)
	require.Error(t, err)
	assert.ErrorIs(t, err, pipeline.ErrSourceUnavailable)
}

func TestFetchSeasonHomeRuns_MalformedBodyIsSourceUnavailable(t *testing.T) {
	client, server := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"unexpected": "shape"`))
	})
	defer server.Close()

	_, err := client.FetchSeasonHomeRuns(context.Background(), 2025)
	require.Error(t, err)
	assert.ErrorIs(t, err, pipeline.ErrSourceUnavailable)
}

func TestFetchSeasonHomeRuns_CancelledContext(t *testing.T) {
	client, server := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[]`))
	})
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := client.FetchSeasonHomeRuns(ctx, 2025)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.NotErrorIs(t, err, pipeline.ErrSourceUnavailable)
}

func TestFetchCurrentSeason(t *testing.T) {
	client, server := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/scores/json/CurrentSeason", r.URL.Path)
		w.Write([]byte(`2025`))
	})
	defer server.Close()

	season, err := client.FetchCurrentSeason(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2025, season)
}
