package scheduler

import "time"

// BackoffPolicy bounds retries within a single cycle: MaxAttempts tries,
// delays growing from BaseDelay by Multiplier per attempt, capped at
// MaxDelay. The policy is pure; logging and alerting live with callers.
type BackoffPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	Multiplier  float64
	MaxDelay    time.Duration
}

// Delay returns the wait before retrying after the given attempt
// (1-based). Attempts below 1 are treated as 1.
func (p BackoffPolicy) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}

	delay := float64(p.BaseDelay)
	for i := 1; i < attempt; i++ {
		delay *= p.Multiplier
		if time.Duration(delay) >= p.MaxDelay {
			return p.MaxDelay
		}
	}

	d := time.Duration(delay)
	if p.MaxDelay > 0 && d > p.MaxDelay {
		d = p.MaxDelay
	}
	return d
}
