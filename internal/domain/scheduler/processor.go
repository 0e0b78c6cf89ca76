package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// RunStore records which trigger periods have fired.
type RunStore interface {
	// Claim inserts (taskName, fireKey); false means another run already claimed it.
	Claim(ctx context.Context, taskName, fireKey string, firedAt time.Time) (bool, error)
	// Release removes a claim so the period can fire again.
	Release(ctx context.Context, taskName, fireKey string) error
}

// Action is the work a task performs for the period that started at fire.
type Action func(ctx context.Context, fire time.Time) error

// Task binds a trigger to its action.
type Task struct {
	Trigger Trigger
	Run     Action
}

// TaskProcessorOptions configures TaskProcessor.
type TaskProcessorOptions struct {
	Store RunStore
	// MaxLag skips periods whose fire time is older than this; zero always catches up.
	MaxLag time.Duration
}

// TaskProcessor claims due periods and runs their actions at most once per period.
type TaskProcessor struct {
	store  RunStore
	maxLag time.Duration
}

// NewTaskProcessor constructs a TaskProcessor.
func NewTaskProcessor(opts TaskProcessorOptions) (*TaskProcessor, error) {
	if opts.Store == nil {
		return nil, errors.New("run store is required")
	}
	return &TaskProcessor{store: opts.Store, maxLag: opts.MaxLag}, nil
}

// ProcessParams supplies the task and clock for one evaluation.
type ProcessParams struct {
	Task Task
	Now  time.Time
}

// ProcessResult captures what happened during one evaluation.
type ProcessResult struct {
	FireKey string
	Fire    time.Time
	Claimed bool
	Ran     bool
	Skipped bool
}

// Process fires the task for its most recent period unless that period was already claimed.
// A failed action releases its claim so the next evaluation retries the same period.
func (p *TaskProcessor) Process(ctx context.Context, params ProcessParams) (*ProcessResult, error) {
	if params.Task.Run == nil {
		return nil, fmt.Errorf("task %s has no action", params.Task.Trigger.Name)
	}
	now := params.Now
	if now.IsZero() {
		now = time.Now()
	}

	fire := params.Task.Trigger.LastFire(now)
	result := &ProcessResult{Fire: fire, FireKey: params.Task.Trigger.FireKey(fire)}

	if p.maxLag > 0 && now.Sub(fire) > p.maxLag {
		result.Skipped = true
		return result, nil
	}

	name := params.Task.Trigger.Name
	claimed, err := p.store.Claim(ctx, name, result.FireKey, now)
	if err != nil {
		return nil, fmt.Errorf("claim %s: %w", result.FireKey, err)
	}
	if !claimed {
		return result, nil
	}
	result.Claimed = true

	if runErr := params.Task.Run(ctx, fire); runErr != nil {
		if relErr := p.store.Release(context.WithoutCancel(ctx), name, result.FireKey); relErr != nil {
			return result, errors.Join(
				fmt.Errorf("run %s: %w", name, runErr),
				fmt.Errorf("release %s: %w", result.FireKey, relErr),
			)
		}
		return result, fmt.Errorf("run %s: %w", name, runErr)
	}
	result.Ran = true
	return result, nil
}
