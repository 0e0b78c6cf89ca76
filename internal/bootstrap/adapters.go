package bootstrap

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"
	"github.com/target/mmk-moderation/config"
	"github.com/target/mmk-moderation/internal/adapters/classifier"
	"github.com/target/mmk-moderation/internal/adapters/queue"
	"github.com/target/mmk-moderation/internal/adapters/storage"
	"github.com/target/mmk-moderation/internal/core"
	"github.com/target/mmk-moderation/internal/data"
)

// repositories groups the data adapters backing service ports; no business rules here.
type repositories struct {
	Jobs      *data.JobRepo
	Results   *data.TaskResultRepo
	Events    *data.EventRepo
	Analytics *data.AnalyticsRepo
	Metrics   *data.MetricRepo
	Reaper    *data.ReaperRepo
	Runs      *data.ScheduledRunsRepo
	// Cache is nil when Redis is not connected or the result cache is disabled.
	Cache *data.RedisCacheRepo
}

func buildRepositories(db *sql.DB, rdb redis.UniversalClient, cfg *config.AppConfig, logger *slog.Logger) *repositories {
	repos := &repositories{
		Jobs:      data.NewJobRepo(db, data.RepoConfig{Logger: logger}),
		Results:   data.NewTaskResultRepo(db, nil),
		Events:    data.NewEventRepo(db, nil),
		Analytics: data.NewAnalyticsRepo(db, nil),
		Metrics:   data.NewMetricRepo(db, nil),
		Reaper:    data.NewReaperRepo(db, nil),
		Runs:      data.NewScheduledRunsRepo(db),
	}
	if rdb != nil && cfg.ResultCache.Enabled {
		repos.Cache = data.NewRedisCacheRepo(rdb, "")
	}
	return repos
}

// NeedsRedis reports whether the configuration uses Redis for the queue or the result cache.
func NeedsRedis(cfg *config.AppConfig) bool {
	return cfg.Queue.Backend == config.QueueBackendRedis || cfg.ResultCache.Enabled
}

// jobQueue is the configured queue plus its release hook.
type jobQueue struct {
	core.JobQueue
	close func()
}

func buildQueue(cfg config.QueueConfig, repos *repositories, rdb redis.UniversalClient, logger *slog.Logger) (jobQueue, error) {
	switch cfg.Backend {
	case config.QueueBackendRedis:
		if rdb == nil {
			return jobQueue{}, errors.New("redis queue backend requires a redis connection")
		}
		q, err := queue.NewRedisQueue(queue.RedisOptions{
			Client:        rdb,
			Prefix:        cfg.KeyPrefix,
			Lease:         cfg.Lease,
			ClaimInterval: cfg.ClaimInterval,
			Logger:        logger,
		})
		if err != nil {
			return jobQueue{}, fmt.Errorf("create redis queue: %w", err)
		}
		return jobQueue{JobQueue: q, close: func() {}}, nil
	default:
		q, err := queue.NewPostgresQueue(queue.PostgresOptions{
			Repo:         repos.Jobs,
			Lease:        cfg.Lease,
			PollInterval: cfg.PollInterval,
			Logger:       logger,
		})
		if err != nil {
			return jobQueue{}, fmt.Errorf("create postgres queue: %w", err)
		}
		return jobQueue{JobQueue: q, close: q.Close}, nil
	}
}

type classifiers struct {
	Text  *classifier.TextClient
	Image *classifier.ImageClient
}

func buildClassifiers(cfg config.ClassifierConfig, logger *slog.Logger) (classifiers, error) {
	text, err := classifier.NewTextClient(classifier.TextOptions{
		HTTPOptions: classifier.HTTPOptions{
			URL:              cfg.TextURL,
			Token:            cfg.TextToken,
			Timeout:          cfg.Timeout,
			MaxResponseBytes: cfg.MaxResponseBytes,
			Logger:           logger,
		},
		Format:     classifier.RequestFormat(cfg.TextFormat),
		ScoresPath: cfg.TextScoresPath,
	})
	if err != nil {
		return classifiers{}, fmt.Errorf("create text classifier: %w", err)
	}

	image, err := classifier.NewImageClient(classifier.ImageOptions{
		HTTPOptions: classifier.HTTPOptions{
			URL:              cfg.ImageURL,
			Token:            cfg.ImageToken,
			Timeout:          cfg.Timeout,
			MaxResponseBytes: cfg.MaxResponseBytes,
			Logger:           logger,
		},
		ScoresPath: cfg.ImageScoresPath,
	})
	if err != nil {
		return classifiers{}, fmt.Errorf("create image classifier: %w", err)
	}
	return classifiers{Text: text, Image: image}, nil
}

func buildFileStore(cfg config.UploadsConfig, logger *slog.Logger) (*storage.LocalStore, error) {
	store, err := storage.NewLocalStore(storage.LocalStoreOptions{
		Dir:      cfg.Dir,
		MaxBytes: cfg.MaxBytes,
		Logger:   logger,
	})
	if err != nil {
		return nil, fmt.Errorf("create upload store: %w", err)
	}
	return store, nil
}
