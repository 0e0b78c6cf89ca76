package httpx

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/target/mmk-moderation/internal/domain/model"
	apperrors "github.com/target/mmk-moderation/internal/errors"
	"github.com/target/mmk-moderation/internal/service"
)

// SummaryReader builds the analytics summary.
type SummaryReader interface {
	Summary(ctx context.Context, days int) (*model.AnalyticsSummary, error)
}

// MetricHistoryReader returns recorded samples of a system metric.
type MetricHistoryReader interface {
	MetricHistory(ctx context.Context, name string, hours int) (*model.MetricHistory, error)
}

// AnalyticsHandlers serves the /analytics endpoints.
type AnalyticsHandlers struct {
	Summaries SummaryReader
	Metrics   MetricHistoryReader
	Logger    *slog.Logger
}

// Summary handles GET /analytics/summary?days=N.
func (h *AnalyticsHandlers) Summary(w http.ResponseWriter, r *http.Request) {
	days, err := intQuery(r, "days", service.DefaultSummaryDays)
	if err != nil {
		WriteAppError(w, r, h.Logger, err)
		return
	}
	summary, err := h.Summaries.Summary(r.Context(), days)
	if err != nil {
		WriteAppError(w, r, h.Logger, err)
		return
	}
	WriteJSON(w, http.StatusOK, summary)
}

// MetricHistory handles GET /analytics/metrics/{metric_name}?hours=N.
func (h *AnalyticsHandlers) MetricHistory(w http.ResponseWriter, r *http.Request) {
	hours, err := intQuery(r, "hours", service.DefaultHistoryHours)
	if err != nil {
		WriteAppError(w, r, h.Logger, err)
		return
	}
	hist, err := h.Metrics.MetricHistory(r.Context(), r.PathValue("metric_name"), hours)
	if err != nil {
		WriteAppError(w, r, h.Logger, err)
		return
	}
	WriteJSON(w, http.StatusOK, hist)
}

// intQuery parses an integer query parameter. A missing value yields def;
// a malformed one is a validation error.
func intQuery(r *http.Request, key string, def int) (int, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, apperrors.ValidationField(key, key+" must be an integer")
	}
	return v, nil
}
