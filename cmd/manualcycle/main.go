package main

import (
	"context"
	"flag"
	"os"
	"strconv"
	"time"

	"hrpool/ingestion/internal/alert"
	"hrpool/ingestion/internal/client"
	"hrpool/ingestion/internal/config"
	"hrpool/ingestion/internal/pipeline"
	"hrpool/ingestion/internal/repository"
	"hrpool/ingestion/internal/scheduler"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// manualcycle runs one ingestion cycle (or a maintenance action) and exits.
// Useful for backfills and for closing out a finished season.
func main() {
	var (
		season      = flag.Int("season", 0, "season year to ingest (0 = current season from feed)")
		closeSeason = flag.Bool("close-season", false, "finalize the season archive and freeze it instead of running a cycle")
		refreshOnly = flag.Bool("refresh-archive", false, "only refresh the season archive rows, skip fetch and publish")
	)
	flag.Parse()

	log.Logger = log.Output(zerolog.ConsoleWriter{
		Out:        os.Stdout,
		TimeFormat: time.RFC3339,
	})

	cfg := config.MustLoad()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	feedClient := client.NewClient(
		cfg.StatsAPIBaseURL,
		cfg.StatsAPIKey,
		cfg.StatsAPITimeout,
	)

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

	targetSeason := *season
	if targetSeason == 0 {
		targetSeason = cfg.CurrentSeason
	}
	if targetSeason == 0 {
		targetSeason, err = feedClient.FetchCurrentSeason(ctx)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to determine current season")
		}
	}

	switch {
	case *closeSeason:
		log.Info().Int("season", targetSeason).Msg("Closing season")
		if err := db.Snapshots.CloseSeason(ctx, targetSeason); err != nil {
			log.Fatal().Err(err).Msg("Failed to close season")
		}
		log.Info().Int("season", targetSeason).Msg("Season closed, archive is now frozen")

	case *refreshOnly:
		log.Info().Int("season", targetSeason).Msg("Refreshing season archive")
		if err := db.Snapshots.UpsertSeasonTotals(ctx, targetSeason); err != nil {
			log.Fatal().Err(err).Msg("Failed to refresh season archive")
		}
		log.Info().Msg("Season archive refreshed")

	default:
		sched, err := buildScheduler(cfg, targetSeason, feedClient, db)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to build pipeline")
		}

		log.Info().Int("season", targetSeason).Msg("Running one ingestion cycle")
		if err := sched.RunCycle(ctx); err != nil {
			log.Fatal().Err(err).Msg("Cycle failed")
		}
		log.Info().Msg("Cycle completed")
	}
}

func buildScheduler(cfg *config.Config, season int, feedClient *client.Client, db *repository.Database) (*scheduler.Scheduler, error) {
	lockDate, err := cfg.LockDate()
	if err != nil {
		return nil, err
	}
	allStarDate, err := cfg.AllStarDate()
	if err != nil {
		return nil, err
	}

	resolver := pipeline.NewResolver(db.Players)
	scorer := pipeline.NewScorer(db.Snapshots)
	builder := pipeline.NewBuilder(db.Rosters, scorer, db.Leaderboards, cfg.ScoringConcurrency)

	opts := scheduler.Options{
		Season:         season,
		LockDate:       lockDate,
		AllStarDate:    allStarDate,
		MonthlyPeriods: cfg.MonthlyPeriods,
		Backoff: scheduler.BackoffPolicy{
			MaxAttempts: cfg.FetchMaxAttempts,
			BaseDelay:   cfg.BackoffBaseDelay,
			Multiplier:  cfg.BackoffMultiplier,
			MaxDelay:    cfg.BackoffMaxDelay,
		},
	}
	deps := scheduler.Deps{
		Fetcher:  feedClient,
		Resolver: resolver,
		Archive:  db.Snapshots,
		Builder:  builder,
		Seasons:  db.Snapshots,
		Notifier: alert.NewLogNotifier(),
	}

	return scheduler.New(opts, deps), nil
}
