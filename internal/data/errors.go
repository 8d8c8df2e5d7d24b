package data

import "errors"

// Shared sentinel errors for data-layer repositories.
var (
	// ErrJobNotFound is returned when no evaluation job matches the given id.
	ErrJobNotFound = errors.New("job not found")
	// ErrJobNotActive is returned when a completion or failure is reported for a job that is not leased.
	ErrJobNotActive = errors.New("job is not active")
	// ErrResultNotFound is returned when no evaluation result matches the given key.
	ErrResultNotFound = errors.New("evaluation result not found")
	// ErrRubricExists is returned when a rubric document id is already indexed.
	ErrRubricExists = errors.New("rubric document already exists")
)
