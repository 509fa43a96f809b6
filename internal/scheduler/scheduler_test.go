package scheduler

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"hrpool/ingestion/internal/alert"
	"hrpool/ingestion/internal/models"
	"hrpool/ingestion/internal/pipeline"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubFetcher struct {
	mu      sync.Mutex
	calls   int
	records []models.SourceRecord
	err     error

	// When set, FetchSeasonHomeRuns blocks until the channel is closed.
	block chan struct{}
	// Closed once the first call has started.
	started chan struct{}
}

func (f *stubFetcher) FetchSeasonHomeRuns(_ context.Context, _ int) ([]models.SourceRecord, error) {
	f.mu.Lock()
	f.calls++
	first := f.calls == 1
	f.mu.Unlock()

	if first && f.started != nil {
		close(f.started)
	}
	if f.block != nil {
		<-f.block
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.records, nil
}

func (f *stubFetcher) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type stubPlayerStore struct {
	mu      sync.Mutex
	nextID  int
	byExtID map[string]*models.Player
}

func (s *stubPlayerStore) GetByExternalID(_ context.Context, externalID string) (*models.Player, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	player, ok := s.byExtID[externalID]
	if !ok {
		return nil, nil
	}
	copied := *player
	return &copied, nil
}

func (s *stubPlayerStore) Create(_ context.Context, player *models.Player) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	player.ID = s.nextID
	copied := *player
	s.byExtID[player.ExternalID] = &copied
	return nil
}

func (s *stubPlayerStore) UpdateTeam(_ context.Context, id int, teamAbbr string) error { return nil }
func (s *stubPlayerStore) UpdateName(_ context.Context, id int, name string) error    { return nil }

type stubArchive struct {
	mu     sync.Mutex
	totals map[int]int
	err    error
}

func (a *stubArchive) RecordSnapshot(_ context.Context, snap *models.StatSnapshot) error {
	if a.err != nil {
		return a.err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.totals[snap.PlayerID] = snap.HRsTotal
	return nil
}

func (a *stubArchive) CumulativeForPeriod(_ context.Context, playerID, _ int, _, _ time.Time, _ pipeline.CountingMode) (int, bool, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	hrs, ok := a.totals[playerID]
	return hrs, ok, nil
}

func (a *stubArchive) ValueAt(_ context.Context, playerID, _ int, _ time.Time) (int, bool, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	hrs, ok := a.totals[playerID]
	return hrs, ok, nil
}

type stubRosters struct {
	rosters []*models.Roster
}

func (s *stubRosters) ListActive(_ context.Context, _ int) ([]*models.Roster, error) {
	return s.rosters, nil
}

type stubLeaderboards struct {
	mu        sync.Mutex
	published map[string][]*models.LeaderboardEntry
}

func (s *stubLeaderboards) ReplaceAll(_ context.Context, lbType models.LeaderboardType, periodKey string, entries []*models.LeaderboardEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.published[string(lbType)+"/"+periodKey] = entries
	return nil
}

func (s *stubLeaderboards) get(lbType models.LeaderboardType, periodKey string) []*models.LeaderboardEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.published[string(lbType)+"/"+periodKey]
}

type stubNotifier struct {
	mu       sync.Mutex
	messages []string
}

func (n *stubNotifier) Notify(_ context.Context, _ alert.Severity, message string, _ map[string]interface{}) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.messages = append(n.messages, message)
}

func (n *stubNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.messages)
}

type stubSeasons struct{}

func (stubSeasons) UpsertSeasonTotals(_ context.Context, _ int) error { return nil }

// testScheduler wires a scheduler against in-memory collaborators. The
// feed returns eight players whose totals spell out a single full roster.
func testScheduler(fetcher *stubFetcher) (*Scheduler, *stubLeaderboards, *stubNotifier) {
	players := &stubPlayerStore{byExtID: make(map[string]*models.Player)}
	archive := &stubArchive{totals: make(map[int]int)}
	leaderboards := &stubLeaderboards{published: make(map[string][]*models.LeaderboardEntry)}
	notifier := &stubNotifier{}

	roster := &models.Roster{
		ID:         uuid.New(),
		SeasonYear: 2025,
		PlayerIDs:  []int{1, 2, 3, 4, 5, 6, 7, 8},
	}

	scorer := pipeline.NewScorer(archive)
	builder := pipeline.NewBuilder(&stubRosters{rosters: []*models.Roster{roster}}, scorer, leaderboards, 2)

	opts := Options{
		Season:   2025,
		LockDate: time.Date(2025, 3, 27, 0, 0, 0, 0, time.UTC),
		Backoff: BackoffPolicy{
			MaxAttempts: 3,
			BaseDelay:   time.Millisecond,
			Multiplier:  2,
			MaxDelay:    10 * time.Millisecond,
		},
	}
	deps := Deps{
		Fetcher:  fetcher,
		Resolver: pipeline.NewResolver(players),
		Archive:  archive,
		Builder:  builder,
		Seasons:  stubSeasons{},
		Notifier: notifier,
	}

	return New(opts, deps), leaderboards, notifier
}

func feedRecords() []models.SourceRecord {
	totals := []int{30, 25, 20, 18, 15, 10, 5, 0}
	records := make([]models.SourceRecord, len(totals))
	for i, hrs := range totals {
		records[i] = models.SourceRecord{
			ExternalID:      fmt.Sprintf("mlb-%03d", i+1),
			Name:            fmt.Sprintf("Player %d", i+1),
			TeamAbbr:        "LAD",
			RegularSeasonHR: hrs,
		}
	}
	return records
}

func TestScheduler_CyclePublishesStandings(t *testing.T) {
	fetcher := &stubFetcher{records: feedRecords()}
	sched, leaderboards, notifier := testScheduler(fetcher)

	err := sched.RunCycle(context.Background())
	require.NoError(t, err)

	entries := leaderboards.get(models.LeaderboardOverall, pipeline.OverallPeriodKey)
	require.Len(t, entries, 1)
	assert.Equal(t, 1, entries[0].Rank)
	assert.Equal(t, 123, entries[0].TotalHRs)
	assert.Equal(t, 0, notifier.count())
	assert.Equal(t, StateIdle, sched.State())
}

func TestScheduler_FetchExhaustionAlertsOnce(t *testing.T) {
	fetcher := &stubFetcher{err: fmt.Errorf("%w: 503", pipeline.ErrSourceUnavailable)}
	sched, leaderboards, notifier := testScheduler(fetcher)

	err := sched.RunCycle(context.Background())
	require.Error(t, err)

	// Three attempts, exactly one alert, nothing published
	assert.Equal(t, 3, fetcher.callCount())
	assert.Equal(t, 1, notifier.count())
	assert.Empty(t, leaderboards.get(models.LeaderboardOverall, pipeline.OverallPeriodKey))
}

func TestScheduler_NonRetryableFetchErrorFailsFast(t *testing.T) {
	fetcher := &stubFetcher{err: fmt.Errorf("bad credentials")}
	sched, _, _ := testScheduler(fetcher)

	err := sched.RunCycle(context.Background())
	require.Error(t, err)
	assert.Equal(t, 1, fetcher.callCount())
}

func TestScheduler_FailedCycleKeepsPreviousStandings(t *testing.T) {
	fetcher := &stubFetcher{records: feedRecords()}
	sched, leaderboards, _ := testScheduler(fetcher)
	ctx := context.Background()

	require.NoError(t, sched.RunCycle(ctx))
	before := leaderboards.get(models.LeaderboardOverall, pipeline.OverallPeriodKey)
	require.Len(t, before, 1)

	// Feed goes down; the failed cycle must not touch the standings
	fetcher.mu.Lock()
	fetcher.err = fmt.Errorf("%w: timeout", pipeline.ErrSourceUnavailable)
	fetcher.mu.Unlock()

	require.Error(t, sched.RunCycle(ctx))

	after := leaderboards.get(models.LeaderboardOverall, pipeline.OverallPeriodKey)
	require.Len(t, after, 1)
	assert.Equal(t, before[0].BatchID, after[0].BatchID)
	assert.Equal(t, before[0].TotalHRs, after[0].TotalHRs)
}

func TestScheduler_OverlappingCyclesRejected(t *testing.T) {
	fetcher := &stubFetcher{
		records: feedRecords(),
		block:   make(chan struct{}),
		started: make(chan struct{}),
	}
	sched, _, _ := testScheduler(fetcher)

	done := make(chan error, 1)
	go func() {
		done <- sched.RunCycle(context.Background())
	}()

	<-fetcher.started
	err := sched.RunCycle(context.Background())
	assert.ErrorIs(t, err, ErrCycleRunning)

	close(fetcher.block)
	require.NoError(t, <-done)

	// With the first cycle finished a new one is accepted again
	require.NoError(t, sched.RunCycle(context.Background()))
}

func TestScheduler_PeriodSelection(t *testing.T) {
	fetcher := &stubFetcher{records: feedRecords()}
	sched, _, _ := testScheduler(fetcher)
	sched.opts.MonthlyPeriods = []string{"2025-04", "2025-05", "2025-06", "2025-07", "2025-08", "2025-09"}
	sched.opts.AllStarDate = time.Date(2025, 7, 14, 0, 0, 0, 0, time.UTC)

	// Mid June: overall plus the June board
	periods := sched.periods(time.Date(2025, 6, 15, 20, 0, 0, 0, time.UTC))
	require.Len(t, periods, 2)
	assert.Equal(t, models.LeaderboardOverall, periods[0].Type)
	assert.Equal(t, models.LeaderboardMonthly, periods[1].Type)
	assert.Equal(t, "2025-06", periods[1].Key)

	// After the break: the all-star snapshot joins in
	periods = sched.periods(time.Date(2025, 7, 20, 20, 0, 0, 0, time.UTC))
	require.Len(t, periods, 3)
	assert.Equal(t, models.LeaderboardAllStar, periods[2].Type)
	assert.Equal(t, "2025-07-14", periods[2].Key)

	// October is not a scoring month, only overall and the snapshot remain
	periods = sched.periods(time.Date(2025, 10, 3, 20, 0, 0, 0, time.UTC))
	require.Len(t, periods, 2)
	assert.Equal(t, models.LeaderboardOverall, periods[0].Type)
	assert.Equal(t, models.LeaderboardAllStar, periods[1].Type)
}

func TestScheduler_ActiveWindowInterval(t *testing.T) {
	sched, _, _ := testScheduler(&stubFetcher{})
	sched.opts.ActiveWindowStart = 17 * time.Hour
	sched.opts.ActiveWindowEnd = 23*time.Hour + 30*time.Minute
	sched.opts.ActiveInterval = 10 * time.Minute
	sched.opts.IdleInterval = 2 * time.Hour

	evening := time.Date(2025, 6, 15, 19, 0, 0, 0, time.UTC)
	morning := time.Date(2025, 6, 15, 9, 0, 0, 0, time.UTC)
	assert.Equal(t, 10*time.Minute, sched.interval(evening))
	assert.Equal(t, 2*time.Hour, sched.interval(morning))
}

func TestScheduler_ActiveWindowSpanningMidnight(t *testing.T) {
	sched, _, _ := testScheduler(&stubFetcher{})
	sched.opts.ActiveWindowStart = 22 * time.Hour
	sched.opts.ActiveWindowEnd = 2 * time.Hour

	assert.True(t, sched.inActiveWindow(time.Date(2025, 6, 15, 23, 0, 0, 0, time.UTC)))
	assert.True(t, sched.inActiveWindow(time.Date(2025, 6, 16, 1, 0, 0, 0, time.UTC)))
	assert.False(t, sched.inActiveWindow(time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)))
}
