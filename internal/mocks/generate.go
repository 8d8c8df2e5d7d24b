// Package mocks provides gomock implementations of the ports in internal/core.
//
// To regenerate mocks after interface changes, run:
//
//	go generate ./internal/mocks
//
// Usage in tests:
//
//	ctrl := gomock.NewController(t)
//	queue := mocks.NewMockQueueRepository(ctrl)
//	queue.EXPECT().Enqueue(gomock.Any(), gomock.Any()).Return(job, nil)
package mocks

//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=queue_repository_mock.go github.com/hanifsetyadi/cv-analyzer/internal/core QueueRepository
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=retention_repository_mock.go github.com/hanifsetyadi/cv-analyzer/internal/core RetentionRepository
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=result_repository_mock.go github.com/hanifsetyadi/cv-analyzer/internal/core ResultRepository
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=rubric_repository_mock.go github.com/hanifsetyadi/cv-analyzer/internal/core RubricRepository
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=enqueue_error_recorder_mock.go github.com/hanifsetyadi/cv-analyzer/internal/core EnqueueErrorRecorder
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=document_store_mock.go github.com/hanifsetyadi/cv-analyzer/internal/core DocumentStore
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=text_extractor_mock.go github.com/hanifsetyadi/cv-analyzer/internal/core TextExtractor
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=embedder_mock.go github.com/hanifsetyadi/cv-analyzer/internal/core Embedder
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=generator_mock.go github.com/hanifsetyadi/cv-analyzer/internal/core Generator
