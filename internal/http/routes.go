package httpx

import (
	"log/slog"
	"net/http"
)

// RouterServices holds all the services needed by the HTTP router.
type RouterServices struct {
	Dispatch       Dispatcher
	Results        ResultReader
	Summaries      SummaryReader
	Metrics        MetricHistoryReader
	MaxUploadBytes int64
	Logger         *slog.Logger
}

// NewRouter registers every route on a ServeMux.
func NewRouter(services RouterServices) http.Handler {
	logger := services.Logger
	if logger == nil {
		logger = slog.Default()
	}
	mux := http.NewServeMux()

	registerModerationRoutes(mux, &ModerationHandlers{
		Dispatch:       services.Dispatch,
		Results:        services.Results,
		MaxUploadBytes: services.MaxUploadBytes,
		Logger:         logger,
	})
	registerAnalyticsRoutes(mux, &AnalyticsHandlers{
		Summaries: services.Summaries,
		Metrics:   services.Metrics,
		Logger:    logger,
	})
	mux.HandleFunc("GET /health", healthHandler)
	mux.HandleFunc("HEAD /health", healthHandler)

	return mux
}

func registerModerationRoutes(mux *http.ServeMux, h *ModerationHandlers) {
	mux.HandleFunc("POST /moderate/text", h.SubmitText)
	mux.HandleFunc("GET /moderate/task/{task_id}", h.GetTask)
	mux.HandleFunc("POST /moderate/image", h.SubmitImage)
	mux.HandleFunc("GET /moderate/image/{task_id}", h.GetImage)
}

func registerAnalyticsRoutes(mux *http.ServeMux, h *AnalyticsHandlers) {
	mux.HandleFunc("GET /analytics/summary", h.Summary)
	mux.HandleFunc("GET /analytics/metrics/{metric_name}", h.MetricHistory)
}

// healthHandler reports liveness. HEAD gets the headers only.
func healthHandler(w http.ResponseWriter, _ *http.Request) {
	WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
