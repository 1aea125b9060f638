// Package metrics turns job lifecycle events into StatsD metrics.
package metrics

import (
	"time"

	obserrors "github.com/imgforge/imgforge-api/internal/observability/errors"
	"github.com/imgforge/imgforge-api/internal/observability/statsd"
)

// Result constants for metric tagging.
const (
	ResultSuccess   = "success"
	ResultError     = "error"
	ResultCancelled = "cancelled"
	ResultNoop      = "noop"
)

// JobMetric captures one job lifecycle event.
type JobMetric struct {
	Kind       string
	Transition string
	Result     string
	Duration   time.Duration
	Err        error
}

// EmitJobLifecycle counts the transition and, when the job has run, records
// its duration under the same tags.
func EmitJobLifecycle(sink statsd.Sink, in JobMetric) {
	if sink == nil {
		return
	}

	tags := map[string]string{
		"kind":       in.Kind,
		"transition": in.Transition,
		"result":     in.Result,
	}
	if in.Err != nil && in.Result == ResultError {
		if class := obserrors.Classify(in.Err); class != "" {
			tags["error_class"] = class
		}
	}

	sink.Count("job.transition", 1, tags)
	if in.Duration > 0 {
		sink.Timing("job.duration", in.Duration, CloneTags(tags))
	}
}

// EmitJobSubmitted counts an accepted submission.
func EmitJobSubmitted(sink statsd.Sink, kind string) {
	if sink == nil {
		return
	}
	sink.Count("job.submitted", 1, map[string]string{"kind": kind})
}

// EmitRunning reports how many job legs currently hold a worker slot.
func EmitRunning(sink statsd.Sink, running int) {
	if sink == nil {
		return
	}
	sink.Gauge("job.running", float64(running), nil)
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
