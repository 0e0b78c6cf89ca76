// Package model defines the core data types shared by the moderation pipeline.
package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Kind identifies the content a job, result, or event carries.
//
//nolint:recvcheck // UnmarshalText needs pointer receiver, Valid needs value receiver
type Kind string

// JobStatus represents the queue-side status of a job.
type JobStatus string

const (
	// KindText is a text moderation request.
	KindText Kind = "text"
	// KindImage is an image moderation request.
	KindImage Kind = "image"

	// JobStatusPending indicates a job is waiting (or delayed) for a worker.
	JobStatusPending JobStatus = "pending"
	// JobStatusRunning indicates a worker holds the job lease.
	JobStatusRunning JobStatus = "running"
	// JobStatusCompleted indicates the job reached a terminal outcome and was acknowledged.
	JobStatusCompleted JobStatus = "completed"
)

// DefaultMaxAttempts is the number of classification attempts a job gets before it is finalized as an error.
const DefaultMaxAttempts = 3

var (
	// ErrNoJobsAvailable is returned when no jobs are available for reservation.
	ErrNoJobsAvailable = errors.New("no jobs available")
	// ErrTaskNotFound is returned when a task id has no stored result.
	ErrTaskNotFound = errors.New("task result not found")
	// ErrEventNotFound is returned when a task has no recorded moderation event.
	ErrEventNotFound = errors.New("moderation event not found")
)

// Kinds returns every supported kind in a stable order.
func Kinds() []Kind {
	return []Kind{KindText, KindImage}
}

// UnmarshalText implements encoding.TextUnmarshaler for Kind to allow env parsing.
func (k *Kind) UnmarshalText(text []byte) error {
	v := Kind(strings.ToLower(strings.TrimSpace(string(text))))
	if !v.Valid() {
		return fmt.Errorf("invalid kind: %q", v)
	}
	*k = v
	return nil
}

// Valid returns true if the Kind is supported.
func (k Kind) Valid() bool {
	return k == KindText || k == KindImage
}

// Valid returns true if the JobStatus is known.
func (s JobStatus) Valid() bool {
	return s == JobStatusPending || s == JobStatusRunning || s == JobStatusCompleted
}

// Job is one unit of queued classification work. ID doubles as the task id callers poll.
type Job struct {
	ID             string          `json:"id"                         db:"id"`
	Kind           Kind            `json:"kind"                       db:"type"`
	Status         JobStatus       `json:"status"                     db:"status"`
	Payload        json.RawMessage `json:"payload"                    db:"payload"`
	AttemptCount   int             `json:"attempt_count"              db:"retry_count"`
	MaxAttempts    int             `json:"max_attempts"               db:"max_retries"`
	ScheduledAt    time.Time       `json:"scheduled_at"               db:"scheduled_at"`
	StartedAt      *time.Time      `json:"started_at,omitempty"       db:"started_at"`
	CompletedAt    *time.Time      `json:"completed_at,omitempty"     db:"completed_at"`
	LastError      *string         `json:"last_error,omitempty"       db:"last_error"`
	LeaseExpiresAt *time.Time      `json:"lease_expires_at,omitempty" db:"lease_expires_at"`
	CreatedAt      time.Time       `json:"created_at"                 db:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"                 db:"updated_at"`
}

// Exhausted reports whether the job has used all of its attempts.
func (j *Job) Exhausted() bool {
	return j.AttemptCount >= j.MaxAttempts
}

// TextJobPayload is the payload of a KindText job.
type TextJobPayload struct {
	Content  string `json:"content"`
	SourceID string `json:"source_id"`
}

// ImageJobPayload is the payload of a KindImage job.
type ImageJobPayload struct {
	FilePath string   `json:"file_path"`
	SourceID string   `json:"source_id"`
	FileInfo FileInfo `json:"file_info"`
}

// DecodeTextPayload parses a text job payload.
func DecodeTextPayload(raw json.RawMessage) (TextJobPayload, error) {
	var p TextJobPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return p, fmt.Errorf("decode text payload: %w", err)
	}
	return p, nil
}

// DecodeImagePayload parses an image job payload. A payload without a file path is rejected.
func DecodeImagePayload(raw json.RawMessage) (ImageJobPayload, error) {
	var p ImageJobPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return p, fmt.Errorf("decode image payload: %w", err)
	}
	if strings.TrimSpace(p.FilePath) == "" {
		return p, errors.New("decode image payload: file_path is required")
	}
	return p, nil
}

// JobStats counts jobs per status for one kind.
type JobStats struct {
	Pending   int `json:"pending"`
	Running   int `json:"running"`
	Completed int `json:"completed"`
}
