// Package metrics emits the evaluation pipeline's StatsD metrics.
package metrics

import (
	"time"

	obserrors "github.com/hanifsetyadi/cv-analyzer/internal/observability/errors"
	"github.com/hanifsetyadi/cv-analyzer/internal/observability/statsd"
)

// Result constants for metric tagging.
const (
	ResultSuccess = "success"
	ResultError   = "error"
	ResultRetry   = "retry"
	ResultNoop    = "noop"
)

// JobMetric captures details about a job lifecycle event for metric emission.
type JobMetric struct {
	Transition string
	Result     string
	Attempt    int
	Duration   time.Duration
	Err        error
}

// EmitJobLifecycle emits job.transition and job.duration.
func EmitJobLifecycle(sink statsd.Sink, in JobMetric) {
	if sink == nil {
		return
	}

	tags := map[string]string{
		"transition": in.Transition,
		"result":     in.Result,
	}
	if in.Err != nil && in.Result != ResultSuccess {
		if class := obserrors.Classify(in.Err); class != "" {
			tags["error_class"] = class
		}
	}

	sink.Count("job.transition", 1, tags)
	if in.Duration > 0 {
		sink.Timing("job.duration", in.Duration, CloneTags(tags))
	}
}

// EmitStage records the latency and outcome of one pipeline stage (parse, context, generate, persist).
func EmitStage(sink statsd.Sink, stage string, d time.Duration, err error) {
	if sink == nil {
		return
	}
	tags := map[string]string{"stage": stage, "result": ResultSuccess}
	if err != nil {
		tags["result"] = ResultError
		tags["error_class"] = obserrors.Classify(err)
	}
	sink.Timing("pipeline.stage", d, tags)
}

// EmitContextDegraded counts evaluations that proceeded without rubric context.
func EmitContextDegraded(sink statsd.Sink, attempts int) {
	if sink == nil {
		return
	}
	sink.Count("context.degraded", 1, nil)
	sink.Gauge("context.attempts", float64(attempts), nil)
}

// CloneTags creates a shallow copy of a tag map.
func CloneTags(src map[string]string) map[string]string {
	if len(src) == 0 {
		return nil
	}
	out := make(map[string]string, len(src))
	for k, v := range src {
		out[k] = v
	}
	return out
}
