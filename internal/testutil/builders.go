package testutil

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/target/mmk-moderation/internal/domain/model"
)

// JobBuilder provides a fluent interface for building jobs in tests.
type JobBuilder struct {
	job *model.Job
}

// NewTextJob starts a text job with the given content.
func NewTextJob(content string) *JobBuilder {
	payload, _ := json.Marshal(model.TextJobPayload{Content: content, SourceID: "comment-1"})
	return &JobBuilder{job: &model.Job{
		ID:          uuid.NewString(),
		Kind:        model.KindText,
		Status:      model.JobStatusPending,
		Payload:     payload,
		MaxAttempts: model.DefaultMaxAttempts,
		CreatedAt:   TestTime(),
		ScheduledAt: TestTime(),
	}}
}

// NewImageJob starts an image job for the file at path.
func NewImageJob(path string) *JobBuilder {
	info := model.FileInfo{FilePath: path, FileSize: 1024, FileType: "image/png", FileHash: "deadbeef"}
	payload, _ := json.Marshal(model.ImageJobPayload{FilePath: path, SourceID: "img-00000001", FileInfo: info})
	return &JobBuilder{job: &model.Job{
		ID:          uuid.NewString(),
		Kind:        model.KindImage,
		Status:      model.JobStatusPending,
		Payload:     payload,
		MaxAttempts: model.DefaultMaxAttempts,
		CreatedAt:   TestTime(),
		ScheduledAt: TestTime(),
	}}
}

// WithID sets the job id.
func (b *JobBuilder) WithID(id string) *JobBuilder {
	b.job.ID = id
	return b
}

// WithAttempts sets the number of attempts already made.
func (b *JobBuilder) WithAttempts(n int) *JobBuilder {
	b.job.AttemptCount = n
	return b
}

// WithPayload replaces the payload.
func (b *JobBuilder) WithPayload(raw string) *JobBuilder {
	b.job.Payload = json.RawMessage(raw)
	return b
}

// ScheduledAt sets when the job becomes due.
func (b *JobBuilder) ScheduledAt(t time.Time) *JobBuilder {
	b.job.ScheduledAt = t
	return b
}

// Build returns a copy of the built job.
func (b *JobBuilder) Build() *model.Job {
	j := *b.job
	j.Payload = append(json.RawMessage(nil), b.job.Payload...)
	return &j
}
