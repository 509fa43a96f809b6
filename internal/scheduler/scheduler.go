package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"hrpool/ingestion/internal/alert"
	"hrpool/ingestion/internal/metrics"
	"hrpool/ingestion/internal/models"
	"hrpool/ingestion/internal/pipeline"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
)

// CycleState is the phase an ingestion cycle is in.
type CycleState string

const (
	StateIdle       CycleState = "idle"
	StateFetching   CycleState = "fetching"
	StateResolving  CycleState = "resolving"
	StateArchiving  CycleState = "archiving"
	StateScoring    CycleState = "scoring"
	StatePublishing CycleState = "publishing"
	StateFailed     CycleState = "failed"
)

// ErrCycleRunning is returned when a tick lands while the previous cycle
// for the season is still in flight. The tick is collapsed, not queued.
var ErrCycleRunning = errors.New("ingestion cycle already running")

// SeasonMaintainer refreshes the in-season archive rows (nightly job).
type SeasonMaintainer interface {
	UpsertSeasonTotals(ctx context.Context, season int) error
}

// CacheInvalidator drops cached leaderboard reads after a publish.
type CacheInvalidator interface {
	InvalidateLeaderboard(ctx context.Context, lbType models.LeaderboardType, periodKey string) error
}

// Deps are the pipeline collaborators, injected at construction.
type Deps struct {
	Fetcher  pipeline.Fetcher
	Resolver *pipeline.Resolver
	Archive  pipeline.Archive
	Builder  *pipeline.Builder
	Seasons  SeasonMaintainer
	Notifier alert.Notifier
	Cache    CacheInvalidator // optional
}

// Options is the externally supplied cadence and period configuration.
type Options struct {
	Season         int
	LockDate       time.Time
	AllStarDate    time.Time
	MonthlyPeriods []string

	// Poll short during the active window (live games), long otherwise.
	ActiveWindowStart time.Duration // offset from local midnight
	ActiveWindowEnd   time.Duration
	ActiveInterval    time.Duration
	IdleInterval      time.Duration

	Backoff            BackoffPolicy
	NightlyRefreshCron string
}

// Scheduler drives the ingestion pipeline: fetch, resolve, archive, score,
// publish. One cycle at a time per scheduler; a failing cycle leaves the
// previously published standings untouched.
type Scheduler struct {
	opts Options
	deps Deps

	cron     *cron.Cron
	stopChan chan struct{}
	stopOnce sync.Once
	running  atomic.Bool

	mu    sync.Mutex
	state CycleState

	now func() time.Time
}

// New creates a scheduler. All collaborators come in through deps.
func New(opts Options, deps Deps) *Scheduler {
	return &Scheduler{
		opts:     opts,
		deps:     deps,
		cron:     cron.New(),
		stopChan: make(chan struct{}),
		state:    StateIdle,
		now:      time.Now,
	}
}

// State returns the current cycle phase.
func (s *Scheduler) State() CycleState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Scheduler) setState(state CycleState) {
	s.mu.Lock()
	s.state = state
	s.mu.Unlock()
	log.Debug().Str("state", string(state)).Msg("Cycle state changed")
}

// Start schedules the nightly archive refresh and begins the polling loop.
func (s *Scheduler) Start(ctx context.Context) error {
	log.Info().Msg("Scheduler starting...")

	if s.opts.NightlyRefreshCron != "" {
		if _, err := s.cron.AddFunc(s.opts.NightlyRefreshCron, func() {
			log.Info().Int("season", s.opts.Season).Msg("Running nightly season archive refresh...")
			if err := s.deps.Seasons.UpsertSeasonTotals(ctx, s.opts.Season); err != nil {
				log.Error().Err(err).Msg("Nightly season archive refresh failed")
			}
		}); err != nil {
			return fmt.Errorf("failed to schedule nightly refresh: %w", err)
		}
		s.cron.Start()
		log.Info().
			Str("schedule", s.opts.NightlyRefreshCron).
			Msg("Nightly season archive refresh scheduled")
	}

	log.Info().
		Dur("active_interval", s.opts.ActiveInterval).
		Dur("idle_interval", s.opts.IdleInterval).
		Msg("Ingestion polling started")

	go s.poll(ctx)

	return nil
}

// Stop stops the scheduler. An in-flight cycle finishes its current phase
// and aborts at the next phase boundary via context cancellation.
func (s *Scheduler) Stop() {
	log.Info().Msg("Stopping scheduler...")

	if s.cron != nil {
		s.cron.Stop()
	}
	s.stopOnce.Do(func() { close(s.stopChan) })

	log.Info().Msg("Scheduler stopped")
}

// poll runs cycles on the configured cadence, switching between the
// active-window and idle intervals on every tick.
func (s *Scheduler) poll(ctx context.Context) {
	for {
		timer := time.NewTimer(s.interval(s.now()))
		select {
		case <-ctx.Done():
			timer.Stop()
			log.Info().Msg("Context cancelled, stopping ingestion polling")
			return
		case <-s.stopChan:
			timer.Stop()
			log.Info().Msg("Stop signal received, stopping ingestion polling")
			return
		case <-timer.C:
			if err := s.RunCycle(ctx); err != nil {
				if errors.Is(err, ErrCycleRunning) {
					log.Warn().Msg("Previous cycle still running, tick skipped")
					continue
				}
				log.Error().Err(err).Msg("Ingestion cycle failed")
			}
		}
	}
}

// interval picks the polling cadence for the given wall-clock time.
func (s *Scheduler) interval(now time.Time) time.Duration {
	if s.inActiveWindow(now) {
		return s.opts.ActiveInterval
	}
	return s.opts.IdleInterval
}

func (s *Scheduler) inActiveWindow(now time.Time) bool {
	if s.opts.ActiveWindowStart == s.opts.ActiveWindowEnd {
		return false
	}
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	offset := now.Sub(midnight)
	if s.opts.ActiveWindowStart < s.opts.ActiveWindowEnd {
		return offset >= s.opts.ActiveWindowStart && offset < s.opts.ActiveWindowEnd
	}
	// Window spans midnight.
	return offset >= s.opts.ActiveWindowStart || offset < s.opts.ActiveWindowEnd
}

// RunCycle runs one full ingestion cycle. Overlapping invocations are
// rejected with ErrCycleRunning so no two cycles race writes into the
// archive.
func (s *Scheduler) RunCycle(ctx context.Context) error {
	if !s.running.CompareAndSwap(false, true) {
		metrics.RecordCycleSkipped()
		return ErrCycleRunning
	}
	defer s.running.Store(false)

	start := s.now()
	err := s.runCycle(ctx, start.UTC())
	duration := time.Since(start).Seconds()

	if err != nil {
		s.setState(StateFailed)
		metrics.RecordCycle("failed", duration)
		s.setState(StateIdle)
		return err
	}

	metrics.RecordCycle("success", duration)
	return nil
}

func (s *Scheduler) runCycle(ctx context.Context, asOf time.Time) error {
	cycleDate := asOf.Truncate(24 * time.Hour)

	log.Info().
		Int("season", s.opts.Season).
		Str("date", cycleDate.Format("2006-01-02")).
		Msg("Ingestion cycle starting")

	// Fetching
	s.setState(StateFetching)
	records, err := s.fetchWithBackoff(ctx)
	if err != nil {
		return err
	}
	log.Info().Int("count", len(records)).Msg("Feed records fetched")

	// Resolving
	if err := ctx.Err(); err != nil {
		return err
	}
	s.setState(StateResolving)
	resolved, err := s.deps.Resolver.Resolve(ctx, records)
	if err != nil {
		metrics.RecordError("resolver", "resolve_failed")
		return fmt.Errorf("identity resolution failed: %w", err)
	}

	// Archiving. Each snapshot write is atomic on its own; an abort here
	// leaves earlier writes in place and the leaderboards untouched.
	if err := ctx.Err(); err != nil {
		return err
	}
	s.setState(StateArchiving)
	written := 0
	for _, rec := range resolved {
		if err := ctx.Err(); err != nil {
			return err
		}
		snap := &models.StatSnapshot{
			PlayerID:         rec.PlayerID,
			SeasonYear:       s.opts.Season,
			Date:             cycleDate,
			HRsTotal:         rec.TotalHR(),
			HRsRegularSeason: rec.RegularSeasonHR,
			HRsPostseason:    rec.PostseasonHR,
		}
		if err := s.deps.Archive.RecordSnapshot(ctx, snap); err != nil {
			metrics.RecordError("archive", "write_failed")
			s.deps.Notifier.Notify(ctx, alert.SeverityCritical,
				"archive write failed, cycle aborted",
				map[string]interface{}{
					"season":    s.opts.Season,
					"player_id": rec.PlayerID,
					"error":     err.Error(),
				})
			return fmt.Errorf("archiving aborted: %w", err)
		}
		written++
	}
	metrics.RecordSnapshotsWritten(written)
	metrics.PlayersTracked.Set(float64(len(resolved)))
	log.Info().Int("count", written).Msg("Snapshots archived")

	// Scoring: every period scored before anything is published.
	if err := ctx.Err(); err != nil {
		return err
	}
	s.setState(StateScoring)
	periods := s.periods(asOf)
	scored := make([][]*models.ScoreRecord, len(periods))
	for i, period := range periods {
		scores, err := s.deps.Builder.ScoreAll(ctx, s.opts.Season, period)
		if err != nil {
			metrics.RecordError("scoring", "score_failed")
			return fmt.Errorf("scoring %s/%s failed: %w", period.Type, period.Key, err)
		}
		scored[i] = scores
	}

	// Publishing
	if err := ctx.Err(); err != nil {
		return err
	}
	s.setState(StatePublishing)
	for i, period := range periods {
		if _, err := s.deps.Builder.Publish(ctx, period, scored[i]); err != nil {
			metrics.RecordError("publish", "replace_failed")
			return fmt.Errorf("publishing %s/%s failed: %w", period.Type, period.Key, err)
		}
		metrics.RecordPublish(string(period.Type))

		if s.deps.Cache != nil {
			if err := s.deps.Cache.InvalidateLeaderboard(ctx, period.Type, period.Key); err != nil {
				log.Warn().Err(err).
					Str("type", string(period.Type)).
					Str("period", period.Key).
					Msg("Failed to invalidate leaderboard cache")
			}
		}
	}

	s.setState(StateIdle)
	log.Info().
		Int("season", s.opts.Season).
		Int("records", len(resolved)).
		Int("leaderboards", len(periods)).
		Msg("Ingestion cycle complete")

	return nil
}

// fetchWithBackoff retries the feed per the backoff policy. When the
// attempt ceiling is exhausted it emits exactly one alert and abandons
// the cycle; the next scheduled tick starts fresh.
func (s *Scheduler) fetchWithBackoff(ctx context.Context) ([]models.SourceRecord, error) {
	var lastErr error

	for attempt := 1; attempt <= s.opts.Backoff.MaxAttempts; attempt++ {
		records, err := s.deps.Fetcher.FetchSeasonHomeRuns(ctx, s.opts.Season)
		if err == nil {
			metrics.RecordFetchAttempt("success")
			return records, nil
		}
		metrics.RecordFetchAttempt("failure")
		lastErr = err

		if !errors.Is(err, pipeline.ErrSourceUnavailable) {
			return nil, fmt.Errorf("fetch failed: %w", err)
		}

		if attempt == s.opts.Backoff.MaxAttempts {
			break
		}

		delay := s.opts.Backoff.Delay(attempt)
		log.Warn().
			Err(err).
			Int("attempt", attempt).
			Dur("backoff", delay).
			Msg("Feed unavailable, backing off")

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
	}

	s.deps.Notifier.Notify(ctx, alert.SeverityCritical,
		"home run feed unavailable, cycle abandoned",
		map[string]interface{}{
			"season":   s.opts.Season,
			"attempts": s.opts.Backoff.MaxAttempts,
			"error":    lastErr.Error(),
		})

	return nil, fmt.Errorf("fetch attempts exhausted: %w", lastErr)
}

// periods selects the leaderboards to recompute this cycle: overall
// always, the current month when it is a configured scoring month, and
// the all-star snapshot once its date has passed. Closed months are not
// retroactively recalculated.
func (s *Scheduler) periods(asOf time.Time) []pipeline.Period {
	periods := []pipeline.Period{pipeline.OverallPeriod(s.opts.LockDate, asOf)}

	monthKey := asOf.Format("2006-01")
	for _, key := range s.opts.MonthlyPeriods {
		if key != monthKey {
			continue
		}
		period, err := pipeline.MonthlyPeriod(key)
		if err != nil {
			log.Error().Err(err).Str("key", key).Msg("Invalid monthly period, skipping")
			continue
		}
		periods = append(periods, period)
	}

	if !s.opts.AllStarDate.IsZero() && !asOf.Before(s.opts.AllStarDate) {
		periods = append(periods, pipeline.AllStarPeriod(s.opts.AllStarDate))
	}

	return periods
}
