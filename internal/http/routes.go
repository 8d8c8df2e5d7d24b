package httpx

import (
	"log/slog"
	"net/http"
)

// RouterServices holds all the services needed by the HTTP router.
type RouterServices struct {
	Queue   EvaluationQueue
	Status  StatusService
	Uploads Uploader      // Optional: POST /upload is omitted when nil
	Rubrics RubricCreator // Optional: POST /rubrics is omitted when nil
	// Readiness checks keyed by dependency name (e.g. "postgres", "redis").
	Readiness map[string]Pinger
	Logger    *slog.Logger
}

// NewRouter creates and configures the API router with logging and panic recovery.
func NewRouter(services RouterServices) http.Handler {
	logger := services.Logger
	if logger == nil {
		logger = slog.Default()
	}
	mux := http.NewServeMux()

	evalHandlers := &EvaluationHandlers{Queue: services.Queue, Status: services.Status, Logger: logger}
	mux.HandleFunc("POST /evaluate", evalHandlers.Evaluate)
	mux.HandleFunc("GET /result/{jobId}", evalHandlers.Result)

	jobHandlers := &JobHandlers{Queue: services.Queue, Logger: logger}
	mux.HandleFunc("GET /jobs", jobHandlers.List)
	mux.HandleFunc("GET /jobs/stats", jobHandlers.Stats)
	mux.HandleFunc("GET /jobs/{id}", jobHandlers.Get)

	if services.Uploads != nil {
		mux.HandleFunc("POST /upload", (&UploadHandlers{Svc: services.Uploads, Logger: logger}).Upload)
	}
	if services.Rubrics != nil {
		mux.HandleFunc("POST /rubrics", (&RubricHandlers{Svc: services.Rubrics, Logger: logger}).Create)
	}

	mux.HandleFunc("GET /healthz", healthHandler)
	mux.HandleFunc("HEAD /healthz", healthHandler)
	mux.HandleFunc("GET /readyz", readinessHandler(services.Readiness))

	var h http.Handler = mux
	h = Logging(logger)(h)
	h = Recover(logger)(h)
	return RequestID()(h)
}
