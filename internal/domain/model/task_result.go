package model

import (
	"errors"
	"time"
)

// TaskStatus is the caller-visible state of a submitted task.
type TaskStatus string

const (
	// TaskStatusPending means the job has not reached a terminal outcome.
	TaskStatusPending TaskStatus = "pending"
	// TaskStatusSucceeded means a verdict (possibly "error") was produced.
	TaskStatusSucceeded TaskStatus = "succeeded"
	// TaskStatusFailed means no result could be produced at all.
	TaskStatusFailed TaskStatus = "failed"
)

// Terminal reports whether the status is final.
func (s TaskStatus) Terminal() bool {
	return s == TaskStatusSucceeded || s == TaskStatusFailed
}

// Valid returns true if the TaskStatus is known.
func (s TaskStatus) Valid() bool {
	return s == TaskStatusPending || s.Terminal()
}

// TaskResult is the pollable state of one submitted task.
type TaskResult struct {
	TaskID      string         `json:"task_id"                db:"task_id"`
	Kind        Kind           `json:"kind"                   db:"kind"`
	SourceID    string         `json:"source_id"              db:"source_id"`
	Status      TaskStatus     `json:"status"                 db:"status"`
	Verdict     *Verdict       `json:"verdict,omitempty"      db:"verdict"`
	Scores      Scores         `json:"scores,omitempty"       db:"scores"`
	Analysis    *ImageAnalysis `json:"analysis,omitempty"     db:"analysis"`
	FileInfo    *FileInfo      `json:"file_info,omitempty"    db:"file_info"`
	Error       *string        `json:"error,omitempty"        db:"error"`
	Attempts    int            `json:"attempts"               db:"attempts"`
	CreatedAt   time.Time      `json:"created_at"             db:"created_at"`
	CompletedAt *time.Time     `json:"completed_at,omitempty" db:"completed_at"`
}

// Terminal reports whether the result can no longer change.
func (r *TaskResult) Terminal() bool {
	return r != nil && r.Status.Terminal()
}

// CompleteTaskParams describes a pending → terminal transition.
type CompleteTaskParams struct {
	TaskID   string
	Status   TaskStatus
	Verdict  *Verdict
	Scores   Scores
	Analysis *ImageAnalysis
	Error    *string
	Attempts int
}

// Validate checks that the transition targets a terminal status and carries a verdict when it succeeded.
func (p CompleteTaskParams) Validate() error {
	if p.TaskID == "" {
		return errors.New("task id is required")
	}
	if !p.Status.Terminal() {
		return errors.New("completion status must be terminal")
	}
	if p.Status == TaskStatusSucceeded && (p.Verdict == nil || !p.Verdict.Valid()) {
		return errors.New("succeeded results require a valid verdict")
	}
	return nil
}

// VerdictPtr returns a pointer to v.
func VerdictPtr(v Verdict) *Verdict { return &v }
