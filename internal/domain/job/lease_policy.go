package job

import (
	"errors"
	"time"
)

// MinLease is the shortest lease the queue will grant.
const MinLease = time.Second

// ErrInvalidDefaultLease indicates the configured default lease duration is not positive.
var ErrInvalidDefaultLease = errors.New("default lease must be positive")

// LeaseSource identifies how a lease duration was resolved.
type LeaseSource string

const (
	// LeaseSourceExplicit indicates the caller supplied a usable duration.
	LeaseSourceExplicit LeaseSource = "explicit"
	// LeaseSourceDefault indicates the default duration was used.
	LeaseSourceDefault LeaseSource = "default"
	// LeaseSourceClamped indicates the requested duration was raised to MinLease.
	LeaseSourceClamped LeaseSource = "clamped"
)

// LeasePolicy normalises how long a worker may hold a claimed job before it is
// considered crashed and the job is returned to the queue.
type LeasePolicy struct {
	defaultLease time.Duration
}

// NewLeasePolicy constructs a LeasePolicy with the provided default lease duration.
func NewLeasePolicy(defaultLease time.Duration) (*LeasePolicy, error) {
	if defaultLease <= 0 {
		return nil, ErrInvalidDefaultLease
	}
	return &LeasePolicy{defaultLease: defaultLease}, nil
}

// Default returns the configured default lease duration.
func (p *LeasePolicy) Default() time.Duration {
	if p == nil {
		return 0
	}
	return p.defaultLease
}

// HeartbeatInterval returns how often a worker should extend a lease it holds.
func (p *LeasePolicy) HeartbeatInterval() time.Duration {
	iv := p.Default() / 3
	if iv < MinLease/2 {
		return MinLease / 2
	}
	return iv
}

// LeaseDecision captures the outcome of resolving a lease request.
type LeaseDecision struct {
	Duration  time.Duration
	Source    LeaseSource
	Requested time.Duration
}

// Resolve picks the lease for a claim or heartbeat. Zero selects the default;
// anything below MinLease, including negative values, is clamped.
func (p *LeasePolicy) Resolve(request time.Duration) LeaseDecision {
	d := LeaseDecision{Requested: request}
	switch {
	case request == 0:
		d.Duration, d.Source = p.Default(), LeaseSourceDefault
	case request < MinLease:
		d.Duration, d.Source = MinLease, LeaseSourceClamped
	default:
		d.Duration, d.Source = request.Truncate(time.Millisecond), LeaseSourceExplicit
	}
	return d
}
