package pipeline

import (
	"context"
	"fmt"
	"sync"
	"time"

	"hrpool/ingestion/internal/models"
)

// In-memory stand-ins for the durable stores, used by the unit tests in
// this package.

type memArchive struct {
	mu    sync.Mutex
	snaps map[int][]*models.StatSnapshot
	err   error
}

func newMemArchive() *memArchive {
	return &memArchive{snaps: make(map[int][]*models.StatSnapshot)}
}

func (a *memArchive) RecordSnapshot(_ context.Context, snap *models.StatSnapshot) error {
	if a.err != nil {
		return a.err
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	// Same-day rewrite replaces the earlier value, like the upsert does.
	for i, existing := range a.snaps[snap.PlayerID] {
		if existing.SeasonYear == snap.SeasonYear && existing.Date.Equal(snap.Date) {
			a.snaps[snap.PlayerID][i] = snap
			return nil
		}
	}
	a.snaps[snap.PlayerID] = append(a.snaps[snap.PlayerID], snap)
	return nil
}

func (a *memArchive) lastAtOrBefore(playerID, season int, date time.Time) *models.StatSnapshot {
	var last *models.StatSnapshot
	for _, snap := range a.snaps[playerID] {
		if snap.SeasonYear != season || snap.Date.After(date) {
			continue
		}
		if last == nil || snap.Date.After(last.Date) {
			last = snap
		}
	}
	return last
}

func (a *memArchive) CumulativeForPeriod(_ context.Context, playerID, season int, start, end time.Time, counting CountingMode) (int, bool, error) {
	if a.err != nil {
		return 0, false, a.err
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	value := func(snap *models.StatSnapshot) int {
		if counting == CountRegularSeason {
			return snap.HRsRegularSeason
		}
		return snap.HRsTotal
	}

	endSnap := a.lastAtOrBefore(playerID, season, end)
	if endSnap == nil {
		return 0, false, nil
	}
	base := 0
	if baseSnap := a.lastAtOrBefore(playerID, season, start.Add(-time.Nanosecond)); baseSnap != nil {
		base = value(baseSnap)
	}
	hrs := value(endSnap) - base
	if hrs < 0 {
		hrs = 0
	}
	return hrs, true, nil
}

func (a *memArchive) ValueAt(_ context.Context, playerID, season int, date time.Time) (int, bool, error) {
	if a.err != nil {
		return 0, false, a.err
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	snap := a.lastAtOrBefore(playerID, season, date)
	if snap == nil {
		return 0, false, nil
	}
	return snap.HRsTotal, true, nil
}

type memPlayerStore struct {
	mu      sync.Mutex
	nextID  int
	byExtID map[string]*models.Player

	createErr   error
	teamUpdates []string
	nameUpdates []string
}

func newMemPlayerStore() *memPlayerStore {
	return &memPlayerStore{byExtID: make(map[string]*models.Player)}
}

func (s *memPlayerStore) GetByExternalID(_ context.Context, externalID string) (*models.Player, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	player, ok := s.byExtID[externalID]
	if !ok {
		return nil, nil
	}
	copied := *player
	return &copied, nil
}

func (s *memPlayerStore) Create(_ context.Context, player *models.Player) error {
	if s.createErr != nil {
		return s.createErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.byExtID[player.ExternalID]; exists {
		return fmt.Errorf("%w: external id %s", ErrIdentityConflict, player.ExternalID)
	}
	s.nextID++
	player.ID = s.nextID
	copied := *player
	s.byExtID[player.ExternalID] = &copied
	return nil
}

func (s *memPlayerStore) UpdateTeam(_ context.Context, id int, teamAbbr string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, player := range s.byExtID {
		if player.ID == id {
			player.TeamAbbr = teamAbbr
			s.teamUpdates = append(s.teamUpdates, fmt.Sprintf("%d:%s", id, teamAbbr))
			return nil
		}
	}
	return fmt.Errorf("player %d not found", id)
}

func (s *memPlayerStore) UpdateName(_ context.Context, id int, displayName string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, player := range s.byExtID {
		if player.ID == id {
			player.DisplayName = displayName
			s.nameUpdates = append(s.nameUpdates, fmt.Sprintf("%d:%s", id, displayName))
			return nil
		}
	}
	return fmt.Errorf("player %d not found", id)
}

type memRosterSource struct {
	rosters []*models.Roster
	err     error
}

func (s *memRosterSource) ListActive(_ context.Context, _ int) ([]*models.Roster, error) {
	return s.rosters, s.err
}

type memLeaderboardStore struct {
	mu        sync.Mutex
	published map[string][]*models.LeaderboardEntry
	err       error
}

func newMemLeaderboardStore() *memLeaderboardStore {
	return &memLeaderboardStore{published: make(map[string][]*models.LeaderboardEntry)}
}

func (s *memLeaderboardStore) ReplaceAll(_ context.Context, lbType models.LeaderboardType, periodKey string, entries []*models.LeaderboardEntry) error {
	if s.err != nil {
		return s.err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.published[string(lbType)+"/"+periodKey] = entries
	return nil
}

func (s *memLeaderboardStore) get(lbType models.LeaderboardType, periodKey string) []*models.LeaderboardEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.published[string(lbType)+"/"+periodKey]
}
