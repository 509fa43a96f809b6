package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"hrpool/ingestion/internal/models"
	"hrpool/ingestion/internal/pipeline"

	"github.com/rs/zerolog/log"
)

const maxConcurrentRequests = 20

// Client is the HTTP client for the external home-run stats feed. Each
// call is a single attempt with an explicit timeout; the scheduler owns
// retry and backoff. Failures surface as pipeline.ErrSourceUnavailable.
type Client struct {
	baseURL     string
	apiKey      string
	httpClient  *http.Client
	rateLimiter chan struct{} // request concurrency semaphore
}

// NewClient creates a stats feed client.
func NewClient(baseURL, apiKey string, timeout time.Duration) *Client {
	rateLimiter := make(chan struct{}, maxConcurrentRequests)
	for i := 0; i < maxConcurrentRequests; i++ {
		rateLimiter <- struct{}{}
	}

	return &Client{
		baseURL:     baseURL,
		apiKey:      apiKey,
		rateLimiter: rateLimiter,
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
}

// get performs a single GET against the feed. Network errors, timeouts and
// non-2xx responses all map to pipeline.ErrSourceUnavailable so the
// scheduler can apply one backoff policy to every failure mode.
func (c *Client) get(ctx context.Context, path string) ([]byte, error) {
	url := fmt.Sprintf("%s/%s", c.baseURL, path)

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-c.rateLimiter:
		defer func() { c.rateLimiter <- struct{}{} }()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Ocp-Apim-Subscription-Key", c.apiKey)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "hrpool-ingestion/1.0")

	log.Debug().
		Str("url", url).
		Str("method", req.Method).
		Msg("Making feed request")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: request failed: %v", pipeline.ErrSourceUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read response body: %v", pipeline.ErrSourceUnavailable, err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: GET %s returned status %d", pipeline.ErrSourceUnavailable, path, resp.StatusCode)
	}

	log.Debug().
		Str("url", url).
		Int("status", resp.StatusCode).
		Int("size", len(body)).
		Msg("Feed request successful")

	return body, nil
}

// FetchSeasonHomeRuns retrieves the per-player home-run listing for a
// season, deduplicated by external player id (last record wins). The list
// is returned whole or not at all.
func (c *Client) FetchSeasonHomeRuns(ctx context.Context, season int) ([]models.SourceRecord, error) {
	path := fmt.Sprintf("stats/json/PlayerSeasonHomeRuns/%d", season)

	body, err := c.get(ctx, path)
	if err != nil {
		return nil, err
	}

	var raw []models.SourceRecord
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("%w: failed to unmarshal home run listing: %v", pipeline.ErrSourceUnavailable, err)
	}

	seen := make(map[string]int, len(raw))
	records := make([]models.SourceRecord, 0, len(raw))
	for _, rec := range raw {
		if rec.ExternalID == "" {
			log.Warn().Str("name", rec.Name).Msg("Feed record missing player id, dropping")
			continue
		}
		if i, ok := seen[rec.ExternalID]; ok {
			records[i] = rec
			continue
		}
		seen[rec.ExternalID] = len(records)
		records = append(records, rec)
	}

	return records, nil
}

// FetchCurrentSeason fetches the current season year.
func (c *Client) FetchCurrentSeason(ctx context.Context) (int, error) {
	body, err := c.get(ctx, "scores/json/CurrentSeason")
	if err != nil {
		return 0, err
	}

	var season int
	if err := json.Unmarshal(body, &season); err != nil {
		return 0, fmt.Errorf("%w: failed to unmarshal season: %v", pipeline.ErrSourceUnavailable, err)
	}

	return season, nil
}
