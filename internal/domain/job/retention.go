package job

import (
	"errors"
	"time"
)

// Default retention thresholds for terminal jobs.
const (
	DefaultCompletedMaxAge = 24 * time.Hour
	DefaultCompletedKeep   = 1000
	DefaultFailedMaxAge    = 7 * 24 * time.Hour
)

// ErrInvalidRetention indicates a retention policy with non-positive thresholds.
var ErrInvalidRetention = errors.New("invalid retention policy")

// RetentionPolicy decides when terminal jobs are evicted from the queue.
// Completed jobs go at the earlier of CompletedMaxAge or falling outside the newest
// CompletedKeep; failed jobs go after FailedMaxAge.
type RetentionPolicy struct {
	CompletedMaxAge time.Duration
	CompletedKeep   int
	FailedMaxAge    time.Duration
}

// DefaultRetentionPolicy returns the standard thresholds.
func DefaultRetentionPolicy() RetentionPolicy {
	return RetentionPolicy{
		CompletedMaxAge: DefaultCompletedMaxAge,
		CompletedKeep:   DefaultCompletedKeep,
		FailedMaxAge:    DefaultFailedMaxAge,
	}
}

// Validate checks that every threshold is positive.
func (p RetentionPolicy) Validate() error {
	if p.CompletedMaxAge <= 0 || p.CompletedKeep <= 0 || p.FailedMaxAge <= 0 {
		return ErrInvalidRetention
	}
	return nil
}

// CompletedCutoff returns the completion time before which completed jobs are evicted.
func (p RetentionPolicy) CompletedCutoff(now time.Time) time.Time {
	return now.Add(-p.CompletedMaxAge)
}

// FailedCutoff returns the failure time before which failed jobs are evicted.
func (p RetentionPolicy) FailedCutoff(now time.Time) time.Time {
	return now.Add(-p.FailedMaxAge)
}
