package job

import (
	"errors"
	"math"
	"time"

	"github.com/hanifsetyadi/cv-analyzer/internal/domain/model"
)

// ErrInvalidBackoff indicates a backoff policy cannot produce a usable schedule.
var ErrInvalidBackoff = errors.New("invalid backoff policy")

// Backoff computes retry delays from a model.BackoffPolicy.
type Backoff struct {
	policy model.BackoffPolicy
}

// NewBackoff validates p and returns a Backoff. A zero MaxDelay means uncapped.
func NewBackoff(p model.BackoffPolicy) (Backoff, error) {
	if p.BaseDelay < 0 || p.Multiplier < 1 || p.MaxDelay < 0 {
		return Backoff{}, ErrInvalidBackoff
	}
	return Backoff{policy: p}, nil
}

// Policy returns the underlying policy.
func (b Backoff) Policy() model.BackoffPolicy { return b.policy }

// Delay returns how long a job waits after its nth failed attempt (n starts at 1):
// BaseDelay * Multiplier^(n-1), capped at MaxDelay.
func (b Backoff) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	if b.policy.BaseDelay == 0 {
		return 0
	}
	limit := time.Duration(math.MaxInt64)
	if b.policy.MaxDelay > 0 {
		limit = b.policy.MaxDelay
	}

	d := float64(b.policy.BaseDelay) * math.Pow(b.policy.Multiplier, float64(attempt-1))
	// float64(MaxInt64) rounds up to 2^63, so anything at or past it would overflow.
	if math.IsInf(d, 1) || d >= float64(math.MaxInt64) || d >= float64(limit) {
		return limit
	}
	return time.Duration(d)
}

// NextAttemptAt returns when a job that just failed attempt n becomes eligible again.
func (b Backoff) NextAttemptAt(now time.Time, attempt int) time.Time {
	return now.Add(b.Delay(attempt))
}
