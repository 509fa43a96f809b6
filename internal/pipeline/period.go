package pipeline

import (
	"fmt"
	"time"

	"hrpool/ingestion/internal/models"
)

// OverallPeriodKey identifies the season-long leaderboard period.
const OverallPeriodKey = "season"

// Period is a resolved scoring window: leaderboard type, the key it is
// published under, the date bounds and the counting rule.
type Period struct {
	Type     models.LeaderboardType
	Key      string
	Start    time.Time
	End      time.Time
	Counting CountingMode
}

// Snapshot reports whether the period is a single-date snapshot rather
// than a windowed sum.
func (p Period) Snapshot() bool {
	return p.Type == models.LeaderboardAllStar
}

// OverallPeriod covers roster lock through asOf, counting regular season
// and postseason home runs.
func OverallPeriod(lockDate, asOf time.Time) Period {
	return Period{
		Type:     models.LeaderboardOverall,
		Key:      OverallPeriodKey,
		Start:    lockDate,
		End:      asOf,
		Counting: CountTotal,
	}
}

// MonthlyPeriod builds the window for a YYYY-MM key, counting
// regular-season home runs only.
func MonthlyPeriod(key string) (Period, error) {
	start, err := time.Parse("2006-01", key)
	if err != nil {
		return Period{}, fmt.Errorf("invalid monthly period key %q: %w", key, err)
	}
	return Period{
		Type:     models.LeaderboardMonthly,
		Key:      key,
		Start:    start,
		End:      start.AddDate(0, 1, 0).Add(-time.Nanosecond),
		Counting: CountRegularSeason,
	}, nil
}

// AllStarPeriod is the single-date standings snapshot at the all-star
// break.
func AllStarPeriod(date time.Time) Period {
	return Period{
		Type:     models.LeaderboardAllStar,
		Key:      date.Format("2006-01-02"),
		Start:    date,
		End:      date,
		Counting: CountTotal,
	}
}
