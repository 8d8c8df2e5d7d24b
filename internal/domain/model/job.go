// Package model defines the core data types shared by the evaluation queue, worker, and HTTP surface.
package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// JobState represents the lifecycle state of an evaluation job in the queue.
//
//nolint:recvcheck // UnmarshalText needs pointer receiver, Valid needs value receiver
type JobState string

const (
	// JobStateWaiting indicates a job is ready to be claimed by a worker.
	JobStateWaiting JobState = "waiting"
	// JobStateActive indicates a job is leased by exactly one worker.
	JobStateActive JobState = "active"
	// JobStateCompleted indicates a job finished and its result is persisted.
	JobStateCompleted JobState = "completed"
	// JobStateFailed indicates a job exhausted its attempts.
	JobStateFailed JobState = "failed"
	// JobStateDelayed indicates a job is backing off before it returns to waiting.
	JobStateDelayed JobState = "delayed"
)

// DefaultMaxAttempts is the attempt budget applied when a request does not set one.
const DefaultMaxAttempts = 3

// ErrNoJobsAvailable is returned when no jobs are available for claiming.
var ErrNoJobsAvailable = errors.New("no jobs available")

// Valid returns true if the JobState is one of the known states.
func (s JobState) Valid() bool {
	switch s {
	case JobStateWaiting, JobStateActive, JobStateCompleted, JobStateFailed, JobStateDelayed:
		return true
	default:
		return false
	}
}

// Terminal reports whether no further transitions are possible from this state.
func (s JobState) Terminal() bool {
	return s == JobStateCompleted || s == JobStateFailed
}

// UnmarshalText implements encoding.TextUnmarshaler so states can be parsed from query strings and flags.
func (s *JobState) UnmarshalText(text []byte) error {
	v := JobState(strings.ToLower(strings.TrimSpace(string(text))))
	if !v.Valid() {
		return fmt.Errorf("invalid JobState: %q", v)
	}
	*s = v
	return nil
}

// BackoffPolicy describes the exponential retry schedule stored with each job.
type BackoffPolicy struct {
	BaseDelay  time.Duration `json:"base_delay"`
	Multiplier float64       `json:"multiplier"`
	MaxDelay   time.Duration `json:"max_delay,omitempty"`
}

// EvaluationJob is a queued request to evaluate one candidate's documents.
type EvaluationJob struct {
	ID             string          `json:"id"                         db:"id"`
	CorrelationID  string          `json:"correlation_id"             db:"correlation_id"`
	JobTitle       string          `json:"job_title"                  db:"job_title"`
	Status         JobState        `json:"status"                     db:"status"`
	Attempts       int             `json:"attempts"                   db:"attempts"`
	MaxAttempts    int             `json:"max_attempts"               db:"max_attempts"`
	Backoff        BackoffPolicy   `json:"backoff"`
	Result         json.RawMessage `json:"result,omitempty"           db:"result"`
	LastError      *string         `json:"last_error,omitempty"       db:"last_error"`
	ScheduledAt    time.Time       `json:"scheduled_at"               db:"scheduled_at"`
	StartedAt      *time.Time      `json:"started_at,omitempty"       db:"started_at"`
	CompletedAt    *time.Time      `json:"completed_at,omitempty"     db:"completed_at"`
	FailedAt       *time.Time      `json:"failed_at,omitempty"        db:"failed_at"`
	LeaseExpiresAt *time.Time      `json:"lease_expires_at,omitempty" db:"lease_expires_at"`
	ClaimID        string          `json:"-"                          db:"claim_id"` // token of the current lease holder
	CreatedAt      time.Time       `json:"created_at"                 db:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"                 db:"updated_at"`
}

// EnqueueRequest represents a request to schedule an evaluation.
type EnqueueRequest struct {
	CorrelationID string         `json:"id"`
	JobTitle      string         `json:"jobTitle"`
	MaxAttempts   int            `json:"-"`
	Backoff       *BackoffPolicy `json:"-"`
}

// Normalize trims user supplied fields in place.
func (r *EnqueueRequest) Normalize() {
	r.CorrelationID = strings.TrimSpace(r.CorrelationID)
	r.JobTitle = strings.TrimSpace(r.JobTitle)
}

// Validate validates the EnqueueRequest fields.
func (r *EnqueueRequest) Validate() error {
	if r.CorrelationID == "" {
		return errors.New("id is required")
	}
	if r.JobTitle == "" {
		return errors.New("jobTitle is required")
	}
	if r.MaxAttempts < 0 {
		return errors.New("max attempts must be >= 0")
	}
	if r.Backoff != nil {
		if r.Backoff.BaseDelay < 0 {
			return errors.New("backoff base delay must be >= 0")
		}
		if r.Backoff.Multiplier < 1 {
			return errors.New("backoff multiplier must be >= 1")
		}
	}
	return nil
}

// FailOutcome describes where a job landed after a failure report.
type FailOutcome struct {
	Status      JobState  `json:"status"`
	Attempts    int       `json:"attempts"`
	ScheduledAt time.Time `json:"scheduled_at"`
}

// Retrying reports whether the job will be attempted again.
func (o FailOutcome) Retrying() bool {
	return o.Status == JobStateDelayed
}

// JobStats represents counts of jobs per state.
type JobStats struct {
	Waiting   int `json:"waiting"`
	Active    int `json:"active"`
	Delayed   int `json:"delayed"`
	Completed int `json:"completed"`
	Failed    int `json:"failed"`
}

// JobListOptions groups parameters for listing queue jobs.
type JobListOptions struct {
	Status *JobState
	Limit  int
	Offset int
}
