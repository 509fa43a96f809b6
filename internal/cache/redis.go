package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"hrpool/ingestion/internal/metrics"
	"hrpool/ingestion/internal/models"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// Config holds Redis connection configuration
type Config struct {
	Host     string
	Port     string
	Password string
	DB       int
}

// Cache is the Redis-backed read cache for published leaderboards. It is
// optional: the worker runs without it and reads fall through to postgres.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisCache connects to Redis and verifies the connection.
func NewRedisCache(cfg Config, ttl time.Duration) (*Cache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%s", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}

	log.Info().
		Str("addr", fmt.Sprintf("%s:%s", cfg.Host, cfg.Port)).
		Dur("ttl", ttl).
		Msg("Redis cache connected")

	return &Cache{client: client, ttl: ttl}, nil
}

func leaderboardKey(lbType models.LeaderboardType, periodKey string) string {
	return fmt.Sprintf("leaderboard:%s:%s", lbType, periodKey)
}

// GetLeaderboard returns the cached standings, if present.
func (c *Cache) GetLeaderboard(ctx context.Context, lbType models.LeaderboardType, periodKey string) ([]*models.LeaderboardEntry, bool) {
	data, err := c.client.Get(ctx, leaderboardKey(lbType, periodKey)).Bytes()
	if err == redis.Nil {
		metrics.RecordCacheMiss()
		return nil, false
	}
	if err != nil {
		log.Warn().Err(err).Msg("Leaderboard cache read failed")
		metrics.RecordCacheMiss()
		return nil, false
	}

	var entries []*models.LeaderboardEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		log.Warn().Err(err).Msg("Failed to decode cached leaderboard")
		metrics.RecordCacheMiss()
		return nil, false
	}

	metrics.RecordCacheHit()
	return entries, true
}

// SetLeaderboard caches the standings for the configured TTL.
func (c *Cache) SetLeaderboard(ctx context.Context, lbType models.LeaderboardType, periodKey string, entries []*models.LeaderboardEntry) {
	data, err := json.Marshal(entries)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to encode leaderboard for cache")
		return
	}

	if err := c.client.Set(ctx, leaderboardKey(lbType, periodKey), data, c.ttl).Err(); err != nil {
		log.Warn().Err(err).Msg("Leaderboard cache write failed")
	}
}

// InvalidateLeaderboard drops the cached standings after a publish.
func (c *Cache) InvalidateLeaderboard(ctx context.Context, lbType models.LeaderboardType, periodKey string) error {
	if err := c.client.Del(ctx, leaderboardKey(lbType, periodKey)).Err(); err != nil {
		return fmt.Errorf("failed to invalidate leaderboard cache: %w", err)
	}
	return nil
}

// Close closes the Redis connection.
func (c *Cache) Close() {
	if err := c.client.Close(); err != nil {
		log.Warn().Err(err).Msg("Failed to close redis client")
	}
}
