package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/target/mmk-moderation/internal/observability/statsd"
)

func TestEmitJobLifecycle(t *testing.T) {
	sink := &statsd.MemorySink{}
	EmitJobLifecycle(sink, JobMetric{
		Kind:       "text",
		Transition: TransitionRequeued,
		Result:     ResultError,
		Attempt:    2,
		Duration:   20 * time.Millisecond,
		Err:        errors.New("boom"),
	})

	counts := sink.Named("job.transition")
	require.Len(t, counts, 1)
	assert.Equal(t, "requeued", counts[0].Tags["transition"])
	assert.Equal(t, "2", counts[0].Tags["attempt"])
	assert.Equal(t, "errors_errorstring", counts[0].Tags["error_class"])

	timings := sink.Named("job.duration")
	require.Len(t, timings, 1)
	assert.InDelta(t, 20.0, timings[0].Value, 0.001)

	assert.NotPanics(t, func() { EmitJobLifecycle(nil, JobMetric{}) })
}

func TestEmitTask(t *testing.T) {
	sink := &statsd.MemorySink{}
	EmitTask(sink, TaskMetric{Task: "analytics.rollup", Result: ResultSuccess, Rows: 2, Duration: time.Second})

	assert.Len(t, sink.Named("analytics.rollup.run"), 1)
	assert.Len(t, sink.Named("analytics.rollup.duration"), 1)
	rows := sink.Named("analytics.rollup.rows")
	require.Len(t, rows, 1)
	assert.InDelta(t, 2.0, rows[0].Value, 0)

	EmitTask(sink, TaskMetric{Result: ResultSuccess})
	assert.Len(t, sink.Samples(), 3)
}

func TestCloneTags(t *testing.T) {
	assert.Nil(t, CloneTags(nil))
	src := map[string]string{"a": "1"}
	cp := CloneTags(src)
	cp["a"] = "2"
	assert.Equal(t, "1", src["a"])
}
