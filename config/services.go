package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ServiceMode represents the available service modes.
type ServiceMode string

const (
	// ServiceModeHTTP runs the HTTP API.
	ServiceModeHTTP ServiceMode = "http"
	// ServiceModeWorker runs the moderation worker pool.
	ServiceModeWorker ServiceMode = "worker"
	// ServiceModeScheduler runs the calendar scheduler (daily rollup, weekly cleanup).
	ServiceModeScheduler ServiceMode = "scheduler"
)

// ValidServiceModes returns all valid service mode names.
func ValidServiceModes() []ServiceMode {
	return []ServiceMode{ServiceModeHTTP, ServiceModeWorker, ServiceModeScheduler}
}

// ParseServices parses a comma-delimited string of service names and returns the enabled services.
func ParseServices(servicesStr string) (map[ServiceMode]bool, error) {
	services := make(map[ServiceMode]bool)

	if strings.TrimSpace(servicesStr) == "" {
		return services, errors.New("at least one service must be specified")
	}

	for _, part := range strings.Split(servicesStr, ",") {
		name := strings.TrimSpace(part)
		if name == "" {
			continue
		}
		mode := ServiceMode(name)
		switch mode {
		case ServiceModeHTTP, ServiceModeWorker, ServiceModeScheduler:
			services[mode] = true
		default:
			return nil, fmt.Errorf("invalid service name: %q (valid options: http, worker, scheduler)", name)
		}
	}

	if len(services) == 0 {
		return nil, errors.New("at least one valid service must be specified")
	}
	return services, nil
}

// QueueBackend selects the job queue implementation.
//
//nolint:recvcheck // UnmarshalText needs pointer receiver
type QueueBackend string

const (
	// QueueBackendPostgres stores jobs in the jobs table and wakes workers with LISTEN/NOTIFY.
	QueueBackendPostgres QueueBackend = "postgres"
	// QueueBackendRedis stores jobs in Redis lists with a delay sorted set.
	QueueBackendRedis QueueBackend = "redis"
)

// UnmarshalText implements encoding.TextUnmarshaler for env parsing.
func (b *QueueBackend) UnmarshalText(text []byte) error {
	v := QueueBackend(strings.ToLower(strings.TrimSpace(string(text))))
	switch v {
	case QueueBackendPostgres, QueueBackendRedis:
		*b = v
		return nil
	default:
		return fmt.Errorf("invalid queue backend: %q", v)
	}
}

// QueueConfig contains job queue configuration.
type QueueConfig struct {
	Backend QueueBackend `env:"QUEUE_BACKEND" envDefault:"postgres"`

	// Lease is how long a dequeued job stays invisible before another worker may take it.
	Lease time.Duration `env:"QUEUE_LEASE" envDefault:"5m"`

	// PollInterval bounds how long an idle worker waits before re-checking for delayed jobs.
	PollInterval time.Duration `env:"QUEUE_POLL_INTERVAL" envDefault:"5s"`

	// ClaimInterval is how often an idle Redis worker retries its claim.
	ClaimInterval time.Duration `env:"QUEUE_CLAIM_INTERVAL" envDefault:"250ms"`

	// KeyPrefix namespaces the Redis backend keys.
	KeyPrefix string `env:"QUEUE_KEY_PREFIX" envDefault:"moderation"`
}

// Sanitize applies guardrails to queue configuration values.
func (q *QueueConfig) Sanitize() {
	if q.Backend == "" {
		q.Backend = QueueBackendPostgres
	}
	if q.Lease < 30*time.Second {
		q.Lease = 30 * time.Second
	}
	if q.PollInterval < 100*time.Millisecond {
		q.PollInterval = 100 * time.Millisecond
	}
	if q.ClaimInterval < 10*time.Millisecond {
		q.ClaimInterval = 10 * time.Millisecond
	}
	q.KeyPrefix = strings.Trim(strings.TrimSpace(q.KeyPrefix), ":")
	if q.KeyPrefix == "" {
		q.KeyPrefix = "moderation"
	}
}

// WorkerConfig contains worker pool configuration.
type WorkerConfig struct {
	// TextConcurrency is the number of goroutines processing text jobs.
	TextConcurrency int `env:"WORKER_TEXT_CONCURRENCY" envDefault:"4"`

	// ImageConcurrency is the number of goroutines processing image jobs.
	ImageConcurrency int `env:"WORKER_IMAGE_CONCURRENCY" envDefault:"2"`
}

// Sanitize applies guardrails to worker configuration values.
func (w *WorkerConfig) Sanitize() {
	if w.TextConcurrency < 1 {
		w.TextConcurrency = 1
	}
	if w.ImageConcurrency < 1 {
		w.ImageConcurrency = 1
	}
}

// SchedulerConfig contains calendar scheduler configuration. All hours are UTC.
type SchedulerConfig struct {
	// Interval is the scheduler tick interval.
	Interval time.Duration `env:"SCHEDULER_INTERVAL" envDefault:"30s"`

	// RollupHour is the hour the daily rollup fires.
	RollupHour int `env:"SCHEDULER_ROLLUP_HOUR" envDefault:"1"`

	// CleanupWeekday is the weekday the weekly cleanup fires (0 = Sunday).
	CleanupWeekday int `env:"SCHEDULER_CLEANUP_WEEKDAY" envDefault:"0"`

	// CleanupHour is the hour the weekly cleanup fires.
	CleanupHour int `env:"SCHEDULER_CLEANUP_HOUR" envDefault:"2"`

	// MaxLag skips periods missed by more than this; zero always catches up.
	MaxLag time.Duration `env:"SCHEDULER_MAX_LAG" envDefault:"0s"`
}

// Sanitize applies guardrails to scheduler configuration values.
func (s *SchedulerConfig) Sanitize() {
	if s.Interval < time.Second {
		s.Interval = time.Second
	}
	if s.RollupHour < 0 || s.RollupHour > 23 {
		s.RollupHour = 1
	}
	if s.CleanupWeekday < 0 || s.CleanupWeekday > 6 {
		s.CleanupWeekday = 0
	}
	if s.CleanupHour < 0 || s.CleanupHour > 23 {
		s.CleanupHour = 2
	}
	if s.MaxLag < 0 {
		s.MaxLag = 0
	}
}

// CleanupConfig contains weekly cleanup configuration.
type CleanupConfig struct {
	// JobsMaxAge is the age after which completed jobs are deleted.
	JobsMaxAge time.Duration `env:"CLEANUP_JOBS_MAX_AGE" envDefault:"168h"`

	// ResultsMaxAge is the age after which terminal task results are deleted.
	ResultsMaxAge time.Duration `env:"CLEANUP_RESULTS_MAX_AGE" envDefault:"720h"`

	// MetricsMaxAge is the age after which system metrics are deleted.
	MetricsMaxAge time.Duration `env:"CLEANUP_METRICS_MAX_AGE" envDefault:"720h"`

	// UploadsMaxAge is the age after which stored uploads are removed from disk.
	UploadsMaxAge time.Duration `env:"CLEANUP_UPLOADS_MAX_AGE" envDefault:"720h"`

	// BatchSize is the maximum number of rows deleted per statement.
	BatchSize int `env:"CLEANUP_BATCH_SIZE" envDefault:"1000"`
}

// Sanitize applies guardrails to cleanup configuration values.
func (c *CleanupConfig) Sanitize() {
	if c.JobsMaxAge < time.Hour {
		c.JobsMaxAge = time.Hour
	}
	if c.ResultsMaxAge < 24*time.Hour {
		c.ResultsMaxAge = 24 * time.Hour
	}
	if c.MetricsMaxAge < 24*time.Hour {
		c.MetricsMaxAge = 24 * time.Hour
	}
	if c.UploadsMaxAge < 24*time.Hour {
		c.UploadsMaxAge = 24 * time.Hour
	}
	if c.BatchSize < 1 {
		c.BatchSize = 1
	}
	if c.BatchSize > 10000 {
		c.BatchSize = 10000
	}
}
