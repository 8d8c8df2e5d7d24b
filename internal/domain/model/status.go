package model

import (
	"encoding/json"
	"time"
)

// ResolvedStatus is the externally visible state of an evaluation.
type ResolvedStatus string

const (
	StatusQueued    ResolvedStatus = "queued"
	StatusActive    ResolvedStatus = "active"
	StatusCompleted ResolvedStatus = "completed"
	StatusFailed    ResolvedStatus = "failed"
	StatusNotFound  ResolvedStatus = "not_found"
	// StatusError is only used in enqueue responses.
	StatusError ResolvedStatus = "error"
)

// StatusSourceDatabase marks a status served from the result store after queue eviction.
const StatusSourceDatabase = "database"

// ResolvedStatusFor maps a queue state onto the public status vocabulary.
func ResolvedStatusFor(state JobState) ResolvedStatus {
	switch state {
	case JobStateWaiting, JobStateDelayed:
		return StatusQueued
	case JobStateActive:
		return StatusActive
	case JobStateCompleted:
		return StatusCompleted
	case JobStateFailed:
		return StatusFailed
	default:
		return StatusNotFound
	}
}

// StatusResponse answers "what is the state of job X".
type StatusResponse struct {
	ID          string          `json:"id"`
	Status      ResolvedStatus  `json:"status"`
	Result      json.RawMessage `json:"result,omitempty"`
	CompletedAt *time.Time      `json:"completedAt,omitempty"`
	Error       string          `json:"error,omitempty"`
	FailedAt    *time.Time      `json:"failedAt,omitempty"`
	Attempts    int             `json:"attempts,omitempty"`
	Source      string          `json:"source,omitempty"`
}

// EnqueueResponse is returned to the submitter of an evaluation.
type EnqueueResponse struct {
	ID      string         `json:"id"`
	Status  ResolvedStatus `json:"status"`
	Message string         `json:"message,omitempty"`
}

// EnqueueFailure is the auxiliary record kept when a submission cannot be queued.
type EnqueueFailure struct {
	CorrelationID string    `json:"correlationId"`
	JobTitle      string    `json:"jobTitle"`
	Error         string    `json:"error"`
	Timestamp     time.Time `json:"timestamp"`
}
