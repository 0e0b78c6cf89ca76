package bootstrap

import (
	"log/slog"
	"net/http"

	"github.com/target/mmk-moderation/config"
	httpx "github.com/target/mmk-moderation/internal/http"
)

// HTTPServerConfig contains configuration for the HTTP server.
type HTTPServerConfig struct {
	HTTP     config.HTTPConfig
	Uploads  config.UploadsConfig
	Services *ServiceContainer
	Logger   *slog.Logger
}

// NewHTTPServer builds the API server. It does not listen until Serve is called.
func NewHTTPServer(cfg HTTPServerConfig) *httpx.Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	router := httpx.NewRouter(httpx.RouterServices{
		Dispatch:       cfg.Services.Dispatch,
		Results:        cfg.Services.Results,
		Summaries:      cfg.Services.Aggregator,
		Metrics:        cfg.Services.Analytics,
		MaxUploadBytes: cfg.Uploads.MaxBytes,
		Logger:         logger,
	})

	return httpx.NewServer(httpx.ServerOptions{
		Addr:           cfg.HTTP.Addr,
		Handler:        buildHTTPHandler(router, cfg.HTTP, logger),
		MaxConnections: cfg.HTTP.MaxConnections,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		Logger:         logger,
	})
}

// buildHTTPHandler wraps the router as Recover -> Logging -> Compression -> router,
// so logging records compressed sizes.
func buildHTTPHandler(router http.Handler, cfg config.HTTPConfig, logger *slog.Logger) http.Handler {
	mws := []httpx.Middleware{httpx.Recover(logger), httpx.Logging(logger)}
	if cfg.CompressionEnabled {
		logger.Info("HTTP compression enabled", "level", cfg.CompressionLevel)
		mws = append(mws, httpx.Compression(httpx.CompressionConfig{Level: cfg.CompressionLevel, Logger: logger}))
	}
	return httpx.Chain(router, mws...)
}
