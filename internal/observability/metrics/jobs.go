// Package metrics holds the shared metric shapes emitted by workers and periodic tasks.
package metrics

import (
	"strconv"
	"time"

	obserrors "github.com/target/mmk-moderation/internal/observability/errors"
	"github.com/target/mmk-moderation/internal/observability/statsd"
)

// Result constants for metric tagging.
const (
	ResultSuccess = "success"
	ResultError   = "error"
	ResultNoop    = "noop"
)

// Transition names a step in a job's life.
const (
	TransitionDequeued  = "dequeued"
	TransitionCompleted = "completed"
	TransitionRequeued  = "requeued"
	TransitionFinalized = "finalized_error"
	TransitionAckFailed = "ack_failed"
)

// JobMetric captures details about a job lifecycle event for metric emission.
type JobMetric struct {
	Kind       string
	Transition string
	Result     string
	Verdict    string
	Attempt    int
	Duration   time.Duration
	Err        error
}

// EmitJobLifecycle emits job.transition and, when a duration is set, job.duration.
func EmitJobLifecycle(sink statsd.Sink, in JobMetric) {
	if sink == nil {
		return
	}

	tags := map[string]string{
		"kind":       in.Kind,
		"transition": in.Transition,
		"result":     in.Result,
	}
	if in.Verdict != "" {
		tags["verdict"] = in.Verdict
	}
	if in.Attempt > 0 {
		tags["attempt"] = strconv.Itoa(in.Attempt)
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

// TaskMetric captures one run of a periodic task (rollup, cleanup, scheduler tick).
type TaskMetric struct {
	Task     string
	Result   string
	Rows     int64
	Duration time.Duration
	Err      error
}

// EmitTask emits <task>.run, <task>.duration and <task>.rows.
func EmitTask(sink statsd.Sink, in TaskMetric) {
	if sink == nil || in.Task == "" {
		return
	}
	tags := map[string]string{"result": in.Result}
	if in.Err != nil {
		tags["error_class"] = obserrors.Classify(in.Err)
	}
	sink.Count(in.Task+".run", 1, tags)
	if in.Duration > 0 {
		sink.Timing(in.Task+".duration", in.Duration, CloneTags(tags))
	}
	if in.Rows > 0 {
		sink.Count(in.Task+".rows", in.Rows, CloneTags(tags))
	}
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
