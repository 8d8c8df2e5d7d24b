package service

import (
	"sync"
	"time"

	"github.com/hanifsetyadi/cv-analyzer/internal/observability/statsd"
)

var _ statsd.Sink = (*recordingSink)(nil)

type metricCall struct {
	kind  string
	name  string
	value float64
	tags  map[string]string
}

// recordingSink captures emitted metrics for assertions.
type recordingSink struct {
	mu    sync.Mutex
	calls []metricCall
}

func (r *recordingSink) record(c metricCall) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, c)
}

func (r *recordingSink) Count(name string, value int64, tags map[string]string) {
	r.record(metricCall{kind: "count", name: name, value: float64(value), tags: tags})
}

func (r *recordingSink) Gauge(name string, value float64, tags map[string]string) {
	r.record(metricCall{kind: "gauge", name: name, value: value, tags: tags})
}

func (r *recordingSink) Timing(name string, value time.Duration, tags map[string]string) {
	r.record(metricCall{kind: "timing", name: name, value: float64(value), tags: tags})
}

// named returns the calls recorded under name, in emission order.
func (r *recordingSink) named(name string) []metricCall {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []metricCall
	for _, c := range r.calls {
		if c.name == name {
			out = append(out, c)
		}
	}
	return out
}
