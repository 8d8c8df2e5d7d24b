package testutil

import (
	"time"

	"github.com/google/uuid"

	"github.com/hanifsetyadi/cv-analyzer/internal/domain/model"
)

// TestTime returns a fixed time for testing.
func TestTime() time.Time {
	return time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
}

// StringPtr returns a pointer to s.
func StringPtr(s string) *string { return &s }

// TimePtr returns a pointer to t.
func TimePtr(t time.Time) *time.Time { return &t }

// EnqueueRequestBuilder builds model.EnqueueRequest values with sensible defaults.
type EnqueueRequestBuilder struct {
	req model.EnqueueRequest
}

// NewEnqueueRequest starts a builder with a random correlation id and a backend title.
func NewEnqueueRequest() *EnqueueRequestBuilder {
	return &EnqueueRequestBuilder{req: model.EnqueueRequest{
		CorrelationID: uuid.NewString(),
		JobTitle:      "backend",
	}}
}

// WithCorrelationID sets the correlation id.
func (b *EnqueueRequestBuilder) WithCorrelationID(id string) *EnqueueRequestBuilder {
	b.req.CorrelationID = id
	return b
}

// WithJobTitle sets the job title.
func (b *EnqueueRequestBuilder) WithJobTitle(title string) *EnqueueRequestBuilder {
	b.req.JobTitle = title
	return b
}

// WithMaxAttempts sets the attempt budget.
func (b *EnqueueRequestBuilder) WithMaxAttempts(n int) *EnqueueRequestBuilder {
	b.req.MaxAttempts = n
	return b
}

// WithBackoff sets an explicit backoff policy.
func (b *EnqueueRequestBuilder) WithBackoff(base time.Duration, multiplier float64) *EnqueueRequestBuilder {
	b.req.Backoff = &model.BackoffPolicy{BaseDelay: base, Multiplier: multiplier}
	return b
}

// Build returns the request.
func (b *EnqueueRequestBuilder) Build() *model.EnqueueRequest {
	req := b.req
	return &req
}

// SampleEvaluation returns a valid evaluation.
func SampleEvaluation() model.Evaluation {
	return model.Evaluation{
		CVScore:         0.82,
		CVFeedback:      "Strong Go and Postgres background; limited cloud exposure.",
		ProjectScore:    4.5,
		ProjectFeedback: "Clean queue design with retries; tests are thin.",
		Summary:         "Recommend for interview.",
	}
}
