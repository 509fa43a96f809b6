package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"hrpool/ingestion/internal/alert"
	"hrpool/ingestion/internal/api"
	"hrpool/ingestion/internal/cache"
	"hrpool/ingestion/internal/client"
	"hrpool/ingestion/internal/config"
	"hrpool/ingestion/internal/metrics"
	"hrpool/ingestion/internal/pipeline"
	"hrpool/ingestion/internal/repository"
	"hrpool/ingestion/internal/scheduler"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	// Setup logger
	setupLogger()

	log.Info().Msg("Starting home run pool ingestion worker")

	// Load configuration
	cfg := config.MustLoad()
	log.Info().
		Str("env", cfg.AppEnv).
		Str("log_level", cfg.LogLevel).
		Msg("Configuration loaded")

	// Create context that listens for cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Setup graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		log.Info().Msg("Received shutdown signal, gracefully shutting down...")
		cancel()
	}()

	// Initialize stats feed client
	feedClient := client.NewClient(
		cfg.StatsAPIBaseURL,
		cfg.StatsAPIKey,
		cfg.StatsAPITimeout,
	)
	log.Info().Msg("Stats feed client initialized")

	// Initialize database connection
	db, err := repository.NewDatabase(ctx, repository.Config{
		Host:     cfg.DatabaseHost,
		Port:     strconv.Itoa(cfg.DatabasePort),
		User:     cfg.DatabaseUser,
		Password: cfg.DatabasePassword,
		Database: cfg.DatabaseName,
		SSLMode:  cfg.DatabaseSSLMode,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer db.Close()
	log.Info().Msg("Database connection established")

	// Initialize Redis read cache (optional)
	redisCache, err := cache.NewRedisCache(cache.Config{
		Host:     cfg.RedisHost,
		Port:     strconv.Itoa(cfg.RedisPort),
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	}, cfg.LeaderboardCacheTTL)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to connect to Redis - continuing without cache")
		redisCache = nil
	} else {
		defer redisCache.Close()
	}

	// Resolve the season to ingest
	season := cfg.CurrentSeason
	if season == 0 {
		season, err = feedClient.FetchCurrentSeason(ctx)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to determine current season")
		}
	}
	log.Info().Int("season", season).Msg("Ingesting season")

	// Start metrics HTTP server
	go startMetricsServer(strconv.Itoa(cfg.MetricsPort))

	// Start the read API consumed by the web layer
	go startAPIServer(strconv.Itoa(cfg.APIPort), db, redisCache)

	// Update system uptime metric
	startTime := time.Now()
	go func() {
		ticker := time.NewTicker(10 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				metrics.SystemUptime.Set(time.Since(startTime).Seconds())
			case <-ctx.Done():
				return
			}
		}
	}()

	// Assemble the pipeline and scheduler
	sched, err := buildScheduler(cfg, season, feedClient, db, redisCache)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to build scheduler")
	}

	if cfg.EnableScheduler {
		log.Info().Msg("Starting scheduler...")
		if err := sched.Start(ctx); err != nil {
			log.Fatal().Err(err).Msg("Failed to start scheduler")
		}
	}

	// Run an initial cycle so fresh deploys publish standings immediately
	if cfg.InitialCycleEnabled {
		log.Info().Msg("Running initial ingestion cycle...")
		if err := sched.RunCycle(ctx); err != nil && !errors.Is(err, scheduler.ErrCycleRunning) {
			log.Error().Err(err).Msg("Initial cycle failed, continuing anyway...")
		} else {
			log.Info().Msg("Initial cycle completed successfully")
		}
	}

	// Keep running until context is cancelled
	<-ctx.Done()

	// Graceful shutdown
	log.Info().Msg("Shutting down scheduler...")
	sched.Stop()

	log.Info().Msg("Worker shutdown complete")
}

// buildScheduler wires the pipeline components together. Every dependency
// is passed in explicitly; nothing reaches for globals.
func buildScheduler(cfg *config.Config, season int, feedClient *client.Client, db *repository.Database, redisCache *cache.Cache) (*scheduler.Scheduler, error) {
	lockDate, err := cfg.LockDate()
	if err != nil {
		return nil, err
	}
	allStarDate, err := cfg.AllStarDate()
	if err != nil {
		return nil, err
	}
	windowStart, windowEnd, err := cfg.ActiveWindow()
	if err != nil {
		return nil, err
	}

	resolver := pipeline.NewResolver(db.Players)
	scorer := pipeline.NewScorer(db.Snapshots)
	builder := pipeline.NewBuilder(db.Rosters, scorer, db.Leaderboards, cfg.ScoringConcurrency)

	deps := scheduler.Deps{
		Fetcher:  feedClient,
		Resolver: resolver,
		Archive:  db.Snapshots,
		Builder:  builder,
		Seasons:  db.Snapshots,
		Notifier: alert.NewLogNotifier(),
	}
	if redisCache != nil {
		deps.Cache = redisCache
	}

	opts := scheduler.Options{
		Season:            season,
		LockDate:          lockDate,
		AllStarDate:       allStarDate,
		MonthlyPeriods:    cfg.MonthlyPeriods,
		ActiveWindowStart: windowStart,
		ActiveWindowEnd:   windowEnd,
		ActiveInterval:    cfg.ActivePollInterval,
		IdleInterval:      cfg.IdlePollInterval,
		Backoff: scheduler.BackoffPolicy{
			MaxAttempts: cfg.FetchMaxAttempts,
			BaseDelay:   cfg.BackoffBaseDelay,
			Multiplier:  cfg.BackoffMultiplier,
			MaxDelay:    cfg.BackoffMaxDelay,
		},
		NightlyRefreshCron: cfg.NightlyRefreshCron,
	}

	return scheduler.New(opts, deps), nil
}

// setupLogger configures the zerolog logger
func setupLogger() {
	// Pretty console logging in development
	if os.Getenv("APP_ENV") == "development" {
		log.Logger = log.Output(zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: time.RFC3339,
		})
	}

	// Set log level
	level := zerolog.InfoLevel
	if lvl := os.Getenv("LOG_LEVEL"); lvl != "" {
		parsedLevel, err := zerolog.ParseLevel(lvl)
		if err == nil {
			level = parsedLevel
		}
	}
	zerolog.SetGlobalLevel(level)

	log.Info().
		Str("level", level.String()).
		Msg("Logger initialized")
}

// startMetricsServer starts the Prometheus metrics HTTP server
func startMetricsServer(port string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	// Health check endpoint
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"healthy"}`))
	})

	addr := fmt.Sprintf(":%s", port)
	log.Info().Str("port", port).Msg("Starting metrics server")

	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Error().Err(err).Msg("Metrics server failed")
	}
}

// startAPIServer starts the read API consumed by the web layer
func startAPIServer(port string, db *repository.Database, redisCache *cache.Cache) {
	router := api.NewRouter(db.Leaderboards, db.Snapshots, redisCache)

	addr := fmt.Sprintf(":%s", port)
	log.Info().Str("port", port).Msg("Starting read API server")

	if err := http.ListenAndServe(addr, router); err != nil {
		log.Error().Err(err).Msg("Read API server failed")
	}
}
