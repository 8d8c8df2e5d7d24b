// Package core defines the ports between the evaluation services and their adapters.
package core

import (
	"context"
	"encoding/json"
	"io"
	"time"

	"github.com/hanifsetyadi/cv-analyzer/internal/domain/model"
)

// These interfaces are the contracts between the service layer and the data and
// adapter layers. Services depend on them, never on concrete implementations.

// QueueRepository is the durable job queue with its claim/lease protocol.
type QueueRepository interface {
	Enqueue(ctx context.Context, req *model.EnqueueRequest) (*model.EvaluationJob, error)
	ClaimNext(ctx context.Context, lease time.Duration) (*model.EvaluationJob, error)
	WaitForNotification(ctx context.Context) error
	// Heartbeat, Complete and Fail act only while claimID, stamped by ClaimNext, still holds the job.
	Heartbeat(ctx context.Context, id, claimID string, lease time.Duration) (bool, error)
	Complete(ctx context.Context, id, claimID string, result json.RawMessage) (bool, error)
	Fail(ctx context.Context, id, claimID, errMsg string) (*model.FailOutcome, error)
	GetByID(ctx context.Context, id string) (*model.EvaluationJob, error)
	List(ctx context.Context, opts model.JobListOptions) ([]*model.EvaluationJob, error)
	Stats(ctx context.Context) (*model.JobStats, error)
}

// RetentionRepository evicts finished jobs from the queue.
type RetentionRepository interface {
	DeleteCompletedBefore(ctx context.Context, cutoff time.Time, batchSize int) (int64, error)
	TrimCompleted(ctx context.Context, keep, batchSize int) (int64, error)
	DeleteFailedBefore(ctx context.Context, cutoff time.Time, batchSize int) (int64, error)
}

// ResultRepository is the system of record for completed evaluations.
type ResultRepository interface {
	// Upsert writes the result keyed by correlation id, replacing any previous one.
	Upsert(ctx context.Context, res *model.EvaluationResult) error
	// Get looks a result up by job id or correlation id.
	Get(ctx context.Context, key string) (*model.EvaluationResult, error)
}

// RubricRepository is the retrieval index of embedded rubric documents.
type RubricRepository interface {
	InsertSet(ctx context.Context, docs []model.RubricDocument) error
	ExistsForTitle(ctx context.Context, jobTitle string) (bool, error)
	Search(ctx context.Context, embedding []float32, k int) ([]model.RubricMatch, error)
}

// EnqueueErrorRecorder keeps a best-effort record of submissions that could not be queued.
type EnqueueErrorRecorder interface {
	Record(ctx context.Context, f model.EnqueueFailure) error
}

// DocumentStore holds uploaded candidate documents keyed by correlation id.
type DocumentStore interface {
	Open(ctx context.Context, kind model.DocumentKind, correlationID string) (io.ReadCloser, error)
	Save(ctx context.Context, kind model.DocumentKind, correlationID string, r io.Reader) (string, error)
	Remove(ctx context.Context, kind model.DocumentKind, correlationID string) error
}

// TextExtractor turns a document into plain text.
type TextExtractor interface {
	ExtractText(ctx context.Context, r io.Reader) (string, error)
}

// Embedder converts text into vectors for the retrieval index.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// Generator produces a structured evaluation from the assembled request.
type Generator interface {
	Evaluate(ctx context.Context, req model.GenerationRequest) (*model.Evaluation, error)
}
