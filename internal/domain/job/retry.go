package job

import (
	"time"

	"github.com/target/mmk-moderation/internal/domain/model"
)

// DefaultRetryBackoff is the fixed delay before a failed attempt is retried.
const DefaultRetryBackoff = 60 * time.Second

// Action is what the worker does with a job after one processing attempt.
type Action string

const (
	// ActionComplete acknowledges a job whose terminal result was written.
	ActionComplete Action = "complete"
	// ActionRequeue returns the job to the queue after Outcome.Delay.
	ActionRequeue Action = "requeue"
	// ActionFinalizeError acknowledges a job whose error result was written.
	ActionFinalizeError Action = "finalize_error"
)

// Outcome is the result of one processing attempt.
type Outcome struct {
	Action  Action
	Delay   time.Duration
	Err     error
	Verdict model.Verdict
}

// WithVerdict returns a copy of o tagged with the verdict that was written.
func (o Outcome) WithVerdict(v model.Verdict) Outcome {
	o.Verdict = v
	return o
}

// Terminal reports whether the job leaves the queue.
func (o Outcome) Terminal() bool {
	return o.Action != ActionRequeue
}

// Complete is a successful terminal outcome.
func Complete() Outcome { return Outcome{Action: ActionComplete} }

// Requeue asks for another attempt after delay.
func Requeue(delay time.Duration, err error) Outcome {
	return Outcome{Action: ActionRequeue, Delay: delay, Err: err}
}

// FinalizeError is a terminal outcome recorded as verdict=error.
func FinalizeError(err error) Outcome { return Outcome{Action: ActionFinalizeError, Err: err} }

// RetryPolicy bounds attempts for transient classification failures.
type RetryPolicy struct {
	MaxAttempts int
	Backoff     time.Duration
}

// DefaultRetryPolicy returns three attempts with a 60s backoff.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: model.DefaultMaxAttempts, Backoff: DefaultRetryBackoff}
}

// OnTransientFailure records a failed attempt on j and decides whether another is allowed.
// The job's own MaxAttempts wins over the policy when set.
func (p RetryPolicy) OnTransientFailure(j *model.Job, err error) Outcome {
	j.AttemptCount++
	limit := j.MaxAttempts
	if limit <= 0 {
		limit = p.MaxAttempts
	}
	if limit <= 0 {
		limit = model.DefaultMaxAttempts
	}
	if j.AttemptCount < limit {
		return Requeue(p.Backoff, err)
	}
	return FinalizeError(err)
}
