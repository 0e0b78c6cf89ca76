package data

import (
	"errors"

	"github.com/target/mmk-moderation/internal/domain/model"
)

// Shared sentinel errors for data-layer repositories.
var (
	ErrTaskResultNotFound = model.ErrTaskNotFound
	ErrTaskIDRequired     = errors.New("task_id is required")
	ErrMetricNameRequired = errors.New("metric name is required")
)
