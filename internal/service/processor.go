// Package service provides the business logic of the moderation pipeline.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/target/mmk-moderation/internal/core"
	"github.com/target/mmk-moderation/internal/domain/job"
	"github.com/target/mmk-moderation/internal/domain/model"
	"github.com/target/mmk-moderation/internal/domain/moderation"
	obserrors "github.com/target/mmk-moderation/internal/observability/errors"
	"github.com/target/mmk-moderation/internal/observability/notify"
)

// MetricProcessingTime is the system metric recorded for every terminal job.
const MetricProcessingTime = "moderation.processing_time"

// FailureNotifier receives tasks that were finalized with verdict=error.
type FailureNotifier interface {
	NotifyFailure(ctx context.Context, payload notify.FailurePayload)
}

// ProcessorStores groups the persistence ports written by the processor.
type ProcessorStores struct {
	Results core.TaskResultRepository // Required
	Events  core.EventRepository      // Required
	Metrics core.MetricRepository     // Optional: processing time samples
	Files   core.FileStore            // Optional: stored uploads removed on terminal error
}

// ProcessorClassifiers groups the external classification capabilities.
type ProcessorClassifiers struct {
	Text  core.TextClassifier
	Image core.ImageClassifier
}

// ProcessorOptions groups dependencies for Processor.
type ProcessorOptions struct {
	Stores      ProcessorStores
	Classifiers ProcessorClassifiers
	Policy      moderation.Policy
	Retry       job.RetryPolicy
	Notifier    FailureNotifier // Optional
	Logger      *slog.Logger
	Now         func() time.Time
}

// Processor runs one classification attempt per call and persists its outcome.
//
// Ordering on a terminal outcome: the moderation event is written first, then the
// processing-time metric, then the task result transition. An event write failure is
// logged and does not block the result. A delivery that finds its task's event already
// recorded completes with the recorded verdict.
type Processor struct {
	stores      ProcessorStores
	classifiers ProcessorClassifiers
	policy      moderation.Policy
	retry       job.RetryPolicy
	notifier    FailureNotifier
	logger      *slog.Logger
	now         func() time.Time
}

// NewProcessor validates required dependencies and constructs a Processor.
func NewProcessor(opts ProcessorOptions) (*Processor, error) {
	if opts.Stores.Results == nil {
		return nil, errors.New("TaskResultRepository is required")
	}
	if opts.Stores.Events == nil {
		return nil, errors.New("EventRepository is required")
	}
	if opts.Classifiers.Text == nil && opts.Classifiers.Image == nil {
		return nil, errors.New("at least one classifier is required")
	}
	policy := opts.Policy
	if policy == (moderation.Policy{}) {
		policy = moderation.DefaultPolicy()
	}
	retry := opts.Retry
	if retry.MaxAttempts <= 0 {
		retry.MaxAttempts = model.DefaultMaxAttempts
	}
	if retry.Backoff <= 0 {
		retry.Backoff = job.DefaultRetryBackoff
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Processor{
		stores:      opts.Stores,
		classifiers: opts.Classifiers,
		policy:      policy,
		retry:       retry,
		notifier:    opts.Notifier,
		logger:      logger.With("component", "processor"),
		now:         now,
	}, nil
}

// target is what a job points at, decoded best-effort from its payload.
type target struct {
	itemID string
	file   *model.FileInfo
}

type attempt struct {
	job    *model.Job
	target target
	start  time.Time
}

type completion struct {
	verdict  model.Verdict
	scores   model.Scores
	analysis *model.ImageAnalysis
	err      error
}

// Process runs one attempt of j. It never panics on bad input; malformed payloads finalize as errors.
func (p *Processor) Process(ctx context.Context, j *model.Job) job.Outcome {
	a := &attempt{job: j, start: p.now()}

	if j.Exhausted() && j.MaxAttempts > 0 {
		// Redelivered after its final attempt: only the terminal write is left to do.
		a.target = targetOf(j)
		return p.finalize(ctx, a, errors.New("attempts exhausted before completion"))
	}

	switch j.Kind {
	case model.KindText:
		return p.processText(ctx, a)
	case model.KindImage:
		return p.processImage(ctx, a)
	default:
		p.consumeAttempt(j)
		return p.finalize(ctx, a, fmt.Errorf("unsupported job kind %q", j.Kind))
	}
}

// Fail applies the transient retry policy to err as if the current attempt had failed.
func (p *Processor) Fail(ctx context.Context, j *model.Job, err error) job.Outcome {
	a := &attempt{job: j, target: targetOf(j), start: p.now()}
	return p.handleFailure(ctx, a, err)
}

func (p *Processor) processText(ctx context.Context, a *attempt) job.Outcome {
	payload, err := model.DecodeTextPayload(a.job.Payload)
	if err != nil {
		p.consumeAttempt(a.job)
		return p.finalize(ctx, a, err)
	}
	a.target.itemID = payload.SourceID

	if moderation.IsBlankText(payload.Content) {
		return p.complete(ctx, a, completion{verdict: model.VerdictClean, scores: model.Scores{}})
	}
	if p.classifiers.Text == nil {
		p.consumeAttempt(a.job)
		return p.finalize(ctx, a, errors.New("text classifier is not configured"))
	}
	if c, ok := p.recorded(ctx, a); ok {
		return p.complete(ctx, a, c)
	}

	scores, err := p.classifiers.Text.ClassifyText(ctx, payload.Content)
	if err != nil {
		return p.handleFailure(ctx, a, err)
	}
	return p.complete(ctx, a, completion{verdict: p.policy.Verdict(model.KindText, scores), scores: scores})
}

func (p *Processor) processImage(ctx context.Context, a *attempt) job.Outcome {
	payload, err := model.DecodeImagePayload(a.job.Payload)
	if err != nil {
		p.consumeAttempt(a.job)
		return p.finalize(ctx, a, err)
	}
	a.target = imageTarget(payload)

	if p.classifiers.Image == nil {
		p.consumeAttempt(a.job)
		return p.finalize(ctx, a, errors.New("image classifier is not configured"))
	}
	if c, ok := p.recorded(ctx, a); ok {
		return p.complete(ctx, a, c)
	}

	analysis, err := p.classifiers.Image.ClassifyImage(ctx, payload.FilePath)
	if err != nil {
		return p.handleFailure(ctx, a, err)
	}
	return p.complete(ctx, a, completion{
		verdict:  p.policy.Verdict(model.KindImage, analysis.NSFWScores),
		scores:   analysis.NSFWScores,
		analysis: &analysis,
	})
}

// recorded returns the verdict an earlier delivery already wrote as this task's event, so a
// redelivery whose result write failed completes with that verdict instead of classifying again.
// Error events are not reused; the retry path reproduces them.
func (p *Processor) recorded(ctx context.Context, a *attempt) (completion, bool) {
	ev, err := p.stores.Events.GetByTaskID(ctx, a.job.ID)
	if errors.Is(err, model.ErrEventNotFound) {
		return completion{}, false
	}
	if err != nil {
		p.logger.WarnContext(ctx, "lookup recorded event failed", "task_id", a.job.ID, "error", err)
		return completion{}, false
	}
	if ev.Verdict == model.VerdictError {
		return completion{}, false
	}

	p.logger.InfoContext(ctx, "completing task from recorded event", "task_id", a.job.ID, "verdict", ev.Verdict)
	c := completion{verdict: ev.Verdict, scores: ev.Scores}
	if a.job.Kind == model.KindImage {
		c.analysis = &model.ImageAnalysis{NSFWScores: ev.Scores}
	}
	return c, true
}

func (p *Processor) handleFailure(ctx context.Context, a *attempt, err error) job.Outcome {
	j := a.job
	if ctx.Err() != nil {
		// Shutdown interrupted the attempt; it does not count.
		return job.Requeue(0, err)
	}
	if moderation.IsPermanentFailure(err) {
		p.consumeAttempt(j)
		return p.finalize(ctx, a, err)
	}

	out := p.retry.OnTransientFailure(j, err)
	if out.Action == job.ActionRequeue {
		p.logger.WarnContext(ctx, "classification failed, will retry",
			"task_id", j.ID,
			"kind", j.Kind,
			"attempt", j.AttemptCount,
			"max_attempts", j.MaxAttempts,
			"error", err,
		)
		return out
	}
	return p.finalize(ctx, a, err)
}

// consumeAttempt counts an attempt that ends the job without going through the retry policy.
func (p *Processor) consumeAttempt(j *model.Job) {
	if j.MaxAttempts <= 0 || j.AttemptCount < j.MaxAttempts {
		j.AttemptCount++
	}
}

func (p *Processor) complete(ctx context.Context, a *attempt, c completion) job.Outcome {
	a.job.AttemptCount++
	if err := p.persistTerminal(ctx, a, c); err != nil {
		// The attempt produced a verdict; only the write failed, so it is not counted.
		a.job.AttemptCount--
		return job.Requeue(p.retry.Backoff, err)
	}
	return job.Complete().WithVerdict(c.verdict)
}

func (p *Processor) finalize(ctx context.Context, a *attempt, cause error) job.Outcome {
	j := a.job
	c := completion{verdict: model.VerdictError, scores: model.Scores{}, err: cause}
	if err := p.persistTerminal(ctx, a, c); err != nil {
		return job.Requeue(p.retry.Backoff, errors.Join(cause, err))
	}

	p.logger.ErrorContext(ctx, "moderation task finalized with error",
		"task_id", j.ID,
		"kind", j.Kind,
		"attempts", j.AttemptCount,
		"error", cause,
	)
	p.removeUpload(ctx, a)
	p.notify(ctx, a, cause)
	return job.FinalizeError(cause).WithVerdict(model.VerdictError)
}

func (p *Processor) persistTerminal(ctx context.Context, a *attempt, c completion) error {
	j := a.job
	elapsed := p.now().Sub(a.start)
	ms := elapsed.Milliseconds()

	req := model.RecordEventRequest{
		TaskID:       j.ID,
		Source:       j.Kind,
		ItemID:       a.target.itemID,
		Verdict:      c.verdict,
		Scores:       c.scores,
		File:         a.target.file,
		Analysis:     c.analysis,
		ProcessingMs: &ms,
		OccurredAt:   p.now().UTC(),
	}
	if j.Kind == model.KindImage && req.Analysis == nil && c.err != nil {
		req.Analysis = &model.ImageAnalysis{NSFWScores: model.Scores{}, Error: c.err.Error()}
	}
	if _, err := p.stores.Events.Record(ctx, req); err != nil {
		p.logger.ErrorContext(ctx, "moderation event persist failed", "task_id", j.ID, "error", err)
	}

	p.recordProcessingTime(ctx, j.Kind, c.verdict, elapsed)

	params := model.CompleteTaskParams{
		TaskID:   j.ID,
		Status:   model.TaskStatusSucceeded,
		Verdict:  model.VerdictPtr(c.verdict),
		Scores:   c.scores,
		Analysis: c.analysis,
		Attempts: j.AttemptCount,
	}
	if c.err != nil {
		msg := c.err.Error()
		params.Error = &msg
	}
	updated, err := p.stores.Results.Complete(ctx, params)
	if err != nil {
		p.logger.ErrorContext(ctx, "task result persist failed", "task_id", j.ID, "error", err)
		return fmt.Errorf("complete task result: %w", err)
	}
	if !updated {
		p.logger.DebugContext(ctx, "task result already terminal", "task_id", j.ID)
	}
	return nil
}

func (p *Processor) recordProcessingTime(ctx context.Context, kind model.Kind, verdict model.Verdict, d time.Duration) {
	if p.stores.Metrics == nil {
		return
	}
	unit := "ms"
	err := p.stores.Metrics.Record(ctx, model.SystemMetric{
		Name:      MetricProcessingTime,
		Value:     float64(d.Milliseconds()),
		Unit:      &unit,
		Tags:      map[string]string{"source": string(kind), "verdict": string(verdict)},
		Timestamp: p.now().UTC(),
	})
	if err != nil {
		p.logger.WarnContext(ctx, "record processing time failed", "error", err)
	}
}

func (p *Processor) removeUpload(ctx context.Context, a *attempt) {
	if p.stores.Files == nil || a.job.Kind != model.KindImage || a.target.file == nil || a.target.file.FilePath == "" {
		return
	}
	if err := p.stores.Files.Remove(ctx, a.target.file.FilePath); err != nil {
		p.logger.WarnContext(ctx, "remove upload failed", "task_id", a.job.ID, "path", a.target.file.FilePath, "error", err)
	}
}

func (p *Processor) notify(ctx context.Context, a *attempt, cause error) {
	if p.notifier == nil {
		return
	}
	p.notifier.NotifyFailure(ctx, notify.FailurePayload{
		TaskID:     a.job.ID,
		Kind:       string(a.job.Kind),
		SourceID:   a.target.itemID,
		Attempts:   a.job.AttemptCount,
		Error:      cause.Error(),
		ErrorClass: obserrors.Classify(cause),
		OccurredAt: p.now().UTC(),
	})
}

func imageTarget(payload model.ImageJobPayload) target {
	info := payload.FileInfo
	if info.FilePath == "" {
		info.FilePath = payload.FilePath
	}
	return target{itemID: payload.SourceID, file: &info}
}

func targetOf(j *model.Job) target {
	switch j.Kind {
	case model.KindText:
		if payload, err := model.DecodeTextPayload(j.Payload); err == nil {
			return target{itemID: payload.SourceID}
		}
	case model.KindImage:
		if payload, err := model.DecodeImagePayload(j.Payload); err == nil {
			return imageTarget(payload)
		}
	}
	return target{}
}
