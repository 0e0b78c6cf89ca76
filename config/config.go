package config

import (
	"os"
	"strings"
)

// AppConfig is the main application configuration struct that composes
// domain-specific configuration from separate files.
//
// Configuration is loaded from environment variables using the
// github.com/caarlos0/env library. See individual domain config
// files for details on available environment variables:
//   - database.go: Postgres, Redis and result cache configuration
//   - http.go: HTTP server configuration
//   - moderation.go: thresholds, retry policy, classifier and uploads
//   - services.go: service modes, queue, workers, scheduler and cleanup
//   - observability.go: metrics and failure notifications
type AppConfig struct {
	// IsDev controls development mode behavior (text logs, relaxed defaults).
	// Set DEV=true or NODE_ENV=development for development mode.
	IsDev bool `env:"DEV" envDefault:"false"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	Postgres    DBConfig    `envPrefix:"DB_"`
	Redis       RedisConfig `envPrefix:"REDIS_"`
	ResultCache ResultCacheConfig

	HTTP HTTPConfig

	// Services is a comma-delimited list of enabled services.
	Services string `env:"SERVICES" envDefault:"http,worker,scheduler"`

	Queue      QueueConfig
	Worker     WorkerConfig
	Moderation ModerationConfig
	Classifier ClassifierConfig
	Uploads    UploadsConfig
	Scheduler  SchedulerConfig
	Cleanup    CleanupConfig

	Observability ObservabilityConfig
}

// Sanitize applies guardrails to configuration values loaded from env.
// This should be called after loading configuration from environment variables.
func (c *AppConfig) Sanitize() {
	c.HTTP.Sanitize()
	c.ResultCache.Sanitize()
	c.Queue.Sanitize()
	c.Worker.Sanitize()
	c.Moderation.Sanitize()
	c.Classifier.Sanitize()
	c.Uploads.Sanitize()
	c.Scheduler.Sanitize()
	c.Cleanup.Sanitize()
	c.Observability.Sanitize()

	c.LogLevel = strings.ToLower(strings.TrimSpace(c.LogLevel))
	c.detectDevMode()
}

// detectDevMode checks NODE_ENV as a fallback for DEV.
func (c *AppConfig) detectDevMode() {
	if !c.IsDev {
		nodeEnv := strings.ToLower(os.Getenv("NODE_ENV"))
		c.IsDev = nodeEnv == "development" || nodeEnv == "dev"
	}
}

// GetEnabledServices returns the enabled services based on the Services field.
func (c *AppConfig) GetEnabledServices() (map[ServiceMode]bool, error) {
	return ParseServices(c.Services)
}

func (c *AppConfig) serviceEnabled(mode ServiceMode) bool {
	services, err := c.GetEnabledServices()
	if err != nil {
		return false
	}
	return services[mode]
}

// IsHTTPServerEnabled returns true if the HTTP API is enabled.
func (c *AppConfig) IsHTTPServerEnabled() bool { return c.serviceEnabled(ServiceModeHTTP) }

// IsWorkerEnabled returns true if the moderation worker pool is enabled.
func (c *AppConfig) IsWorkerEnabled() bool { return c.serviceEnabled(ServiceModeWorker) }

// IsSchedulerEnabled returns true if the calendar scheduler is enabled.
func (c *AppConfig) IsSchedulerEnabled() bool { return c.serviceEnabled(ServiceModeScheduler) }
