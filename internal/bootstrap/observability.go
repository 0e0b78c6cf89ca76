package bootstrap

import (
	"log/slog"

	"github.com/target/mmk-moderation/config"
	"github.com/target/mmk-moderation/internal/observability/notify/pagerduty"
	"github.com/target/mmk-moderation/internal/observability/notify/slack"
	"github.com/target/mmk-moderation/internal/observability/statsd"
	"github.com/target/mmk-moderation/internal/service/failurenotifier"
)

// ObservabilityContainer groups shared observability dependencies.
type ObservabilityContainer struct {
	// MetricsSink is never nil; a disabled client drops every sample.
	MetricsSink     *statsd.Client
	FailureNotifier *failurenotifier.Service
}

// buildObservability configures metrics and notification adapters.
func buildObservability(logger *slog.Logger, cfg config.ObservabilityConfig) ObservabilityContainer {
	if logger == nil {
		logger = slog.Default()
	}

	sink, err := statsd.NewClient(statsd.Config{
		Enabled: cfg.Metrics.IsEnabled(),
		Address: cfg.Metrics.StatsdAddress,
		Prefix:  cfg.Metrics.Prefix,
		Logger:  logger,
	})
	if err != nil {
		logger.Error("failed to initialise statsd client; metrics disabled", "error", err)
		sink, _ = statsd.NewClient(statsd.Config{Prefix: cfg.Metrics.Prefix, Logger: logger})
	}

	return ObservabilityContainer{
		MetricsSink:     sink,
		FailureNotifier: buildFailureNotifier(logger, cfg.Notifications),
	}
}

// buildFailureNotifier registers the Slack and PagerDuty sinks that are enabled.
// Sinks that fail to initialise are logged and skipped.
func buildFailureNotifier(logger *slog.Logger, cfg config.ObservabilityNotificationsConfig) *failurenotifier.Service {
	sinks := make([]failurenotifier.SinkRegistration, 0, 2)
	if !cfg.Enabled {
		return failurenotifier.NewService(failurenotifier.Options{Logger: logger, Timeout: cfg.Timeout})
	}

	if cfg.Slack.Enabled {
		client, err := slack.NewClient(slack.Config{
			WebhookURL:      cfg.Slack.WebhookURL,
			Channel:         cfg.Slack.Channel,
			Username:        cfg.Slack.Username,
			Timeout:         cfg.Timeout,
			RetryLimit:      cfg.RetryLimit,
			ResultURLPrefix: cfg.Slack.ResultURLPrefix,
		})
		if err != nil {
			logger.Error("failed to initialise slack notifier", "error", err)
		} else {
			sinks = append(sinks, failurenotifier.SinkRegistration{Name: "slack", Sink: client})
		}
	}

	if cfg.PagerDuty.Enabled {
		client, err := pagerduty.NewClient(pagerduty.Config{
			RoutingKey: cfg.PagerDuty.RoutingKey,
			Source:     cfg.PagerDuty.Source,
			Component:  cfg.PagerDuty.Component,
			Timeout:    cfg.Timeout,
			RetryLimit: cfg.RetryLimit,
		})
		if err != nil {
			logger.Error("failed to initialise pagerduty notifier", "error", err)
		} else {
			sinks = append(sinks, failurenotifier.SinkRegistration{Name: "pagerduty", Sink: client})
		}
	}

	if len(sinks) == 0 {
		logger.Warn("failure notifications enabled but no sinks configured")
	}
	return failurenotifier.NewService(failurenotifier.Options{
		Logger:  logger,
		Sinks:   sinks,
		Timeout: cfg.Timeout,
	})
}
