package model

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"
)

// Score bounds accepted from the generation service.
const (
	MinCVScore      = 0.0
	MaxCVScore      = 1.0
	MinProjectScore = 1.0
	MaxProjectScore = 5.0
)

// ErrInvalidEvaluation indicates a generated evaluation violates the result schema.
var ErrInvalidEvaluation = errors.New("invalid evaluation")

// Evaluation is the structured verdict produced by the generation service.
type Evaluation struct {
	CVScore         float64 `json:"cvScore"         db:"cv_score"`
	CVFeedback      string  `json:"cvFeedback"      db:"cv_feedback"`
	ProjectScore    float64 `json:"projectScore"    db:"project_score"`
	ProjectFeedback string  `json:"projectFeedback" db:"project_feedback"`
	Summary         string  `json:"summary"         db:"summary"`
}

// Normalize validates score bounds and required text, then rounds scores to their
// published precision (two decimals for the CV score, one for the project score).
func (e *Evaluation) Normalize() error {
	if e == nil {
		return fmt.Errorf("%w: empty evaluation", ErrInvalidEvaluation)
	}
	if math.IsNaN(e.CVScore) || e.CVScore < MinCVScore || e.CVScore > MaxCVScore {
		return fmt.Errorf("%w: cvScore %v outside [%v,%v]", ErrInvalidEvaluation, e.CVScore, MinCVScore, MaxCVScore)
	}
	if math.IsNaN(e.ProjectScore) || e.ProjectScore < MinProjectScore || e.ProjectScore > MaxProjectScore {
		return fmt.Errorf(
			"%w: projectScore %v outside [%v,%v]",
			ErrInvalidEvaluation, e.ProjectScore, MinProjectScore, MaxProjectScore,
		)
	}

	e.CVFeedback = strings.TrimSpace(e.CVFeedback)
	e.ProjectFeedback = strings.TrimSpace(e.ProjectFeedback)
	e.Summary = strings.TrimSpace(e.Summary)
	switch {
	case e.CVFeedback == "":
		return fmt.Errorf("%w: cvFeedback is required", ErrInvalidEvaluation)
	case e.ProjectFeedback == "":
		return fmt.Errorf("%w: projectFeedback is required", ErrInvalidEvaluation)
	case e.Summary == "":
		return fmt.Errorf("%w: summary is required", ErrInvalidEvaluation)
	}

	e.CVScore = roundTo(e.CVScore, 2)
	e.ProjectScore = roundTo(e.ProjectScore, 1)
	return nil
}

func roundTo(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}

// EvaluationResult is the persisted outcome of a successful evaluation job.
// It is keyed by CorrelationID; a retried job overwrites the previous record.
type EvaluationResult struct {
	CorrelationID string `json:"correlationId" db:"correlation_id"`
	JobID         string `json:"jobId"         db:"job_id"`
	JobTitle      string `json:"jobTitle"      db:"job_title"`
	Evaluation
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
}

// GenerationRequest carries everything the generation service needs for one evaluation.
type GenerationRequest struct {
	JobTitle    string
	Context     string
	CVText      string
	ProjectText string
}
