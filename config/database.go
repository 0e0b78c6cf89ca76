package config

import "time"

// DBConfig contains PostgreSQL database configuration.
type DBConfig struct {
	Host     string `env:"HOST"                    envDefault:"localhost"`
	Port     int    `env:"PORT"                    envDefault:"5432"`
	User     string `env:"USER"                    envDefault:"moderation"`
	Password string `env:"PASSWORD"                envDefault:"moderation"`
	Name     string `env:"NAME"                    envDefault:"moderation"`
	SSLMode  string `env:"SSL_MODE"                envDefault:"disable"`
	// RunMigrationsOnStart controls whether the application automatically applies migrations during startup.
	RunMigrationsOnStart bool `env:"RUN_MIGRATIONS_ON_START" envDefault:"true"`
}

// RedisConfig contains Redis configuration shared by the Redis queue backend and the result cache.
type RedisConfig struct {
	URI                string   `env:"URI"                  envDefault:"localhost:6379"`
	Password           string   `env:"PASSWORD"             envDefault:""`
	DB                 int      `env:"DB"                   envDefault:"0"`
	SentinelNodes      []string `env:"SENTINEL_NODES"       envDefault:"localhost:26379"`
	SentinelMasterName string   `env:"SENTINEL_MASTER_NAME" envDefault:"mymaster"`
	SentinelPassword   string   `env:"SENTINEL_PASSWORD"    envDefault:""`
	UseSentinel        bool     `env:"USE_SENTINEL"         envDefault:"false"`
	ClusterNodes       []string `env:"CLUSTER_NODES"        envDefault:""`
	UseCluster         bool     `env:"USE_CLUSTER"          envDefault:"false"`
}

// ResultCacheConfig controls the Redis read-through cache for terminal task results.
type ResultCacheConfig struct {
	Enabled bool          `env:"RESULT_CACHE_ENABLED" envDefault:"true"`
	TTL     time.Duration `env:"RESULT_CACHE_TTL"     envDefault:"1h"`
}

// Sanitize applies guardrails to result cache configuration values.
func (c *ResultCacheConfig) Sanitize() {
	if c.TTL <= 0 {
		c.Enabled = false
	}
}
