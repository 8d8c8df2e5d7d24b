package model

import (
	"errors"
	"strings"
	"time"
)

// EmbeddingDimensions is the vector width of the rubric index column.
const EmbeddingDimensions = 768

// RubricKind classifies a document stored in the retrieval index.
type RubricKind string

const (
	// RubricKindCV scores the candidate's CV.
	RubricKindCV RubricKind = "rubric_cv"
	// RubricKindJobDescription describes the role being evaluated.
	RubricKindJobDescription RubricKind = "job_desc"
	// RubricKindProject scores the candidate's project report.
	RubricKindProject RubricKind = "rubric_project"
)

// Valid returns true if the RubricKind is known.
func (k RubricKind) Valid() bool {
	return k == RubricKindCV || k == RubricKindJobDescription || k == RubricKindProject
}

// RubricDocID returns the index identifier for a rubric document, e.g. rubric_cv_Backend Engineer.
func RubricDocID(kind RubricKind, jobTitle string) string {
	return string(kind) + "_" + jobTitle
}

// RubricDocument is one embedded fragment in the retrieval index.
type RubricDocument struct {
	ID        string     `json:"id"         db:"id"`
	JobTitle  string     `json:"job_title"  db:"job_title"`
	Kind      RubricKind `json:"kind"       db:"kind"`
	Content   string     `json:"content"    db:"content"`
	Embedding []float32  `json:"-"`
	CreatedAt time.Time  `json:"created_at" db:"created_at"`
}

// RubricMatch is a rubric fragment returned by similarity search.
type RubricMatch struct {
	ID       string     `json:"id"`
	Kind     RubricKind `json:"kind"`
	Content  string     `json:"content"`
	Distance float64    `json:"distance"`
}

// CreateRubricRequest registers the three rubric documents for a job title.
type CreateRubricRequest struct {
	JobTitle       string `json:"jobTitle"`
	CVRubric       string `json:"cvRubric"`
	JobDescription string `json:"jobDescription"`
	ProjectRubric  string `json:"projectRubric"`
}

// Validate validates the CreateRubricRequest fields.
func (r *CreateRubricRequest) Validate() error {
	if strings.TrimSpace(r.JobTitle) == "" {
		return errors.New("jobTitle is required")
	}
	if strings.TrimSpace(r.CVRubric) == "" {
		return errors.New("cvRubric is required")
	}
	if strings.TrimSpace(r.JobDescription) == "" {
		return errors.New("jobDescription is required")
	}
	if strings.TrimSpace(r.ProjectRubric) == "" {
		return errors.New("projectRubric is required")
	}
	return nil
}

// Documents expands the request into index documents, without embeddings.
func (r *CreateRubricRequest) Documents() []RubricDocument {
	title := strings.TrimSpace(r.JobTitle)
	return []RubricDocument{
		{ID: RubricDocID(RubricKindCV, title), JobTitle: title, Kind: RubricKindCV, Content: r.CVRubric},
		{
			ID:       RubricDocID(RubricKindJobDescription, title),
			JobTitle: title,
			Kind:     RubricKindJobDescription,
			Content:  r.JobDescription,
		},
		{ID: RubricDocID(RubricKindProject, title), JobTitle: title, Kind: RubricKindProject, Content: r.ProjectRubric},
	}
}

// ContextQuery is the ephemeral input of one context retrieval call chain.
type ContextQuery struct {
	QueryText   string
	K           int
	MaxAttempts int
	Delay       time.Duration
}
