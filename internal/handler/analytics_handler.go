package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/hitoshi/layofflens/internal/analytics"
	"github.com/hitoshi/layofflens/internal/model"
)

// AnalyticsServiceInterface は集計ハンドラーが必要とするサービスインターフェース。
type AnalyticsServiceInterface interface {
	GetAnalytics(ctx context.Context, days int) (*model.Stats, error)
}

// AnalyticsHandler は人員削減ニュース集計のHTTPハンドラー。
type AnalyticsHandler struct {
	service AnalyticsServiceInterface
	logger  *slog.Logger
}

// NewAnalyticsHandler はAnalyticsHandlerを生成する。
func NewAnalyticsHandler(service AnalyticsServiceInterface, logger *slog.Logger) *AnalyticsHandler {
	return &AnalyticsHandler{
		service: service,
		logger:  logger,
	}
}

// GetAnalytics は集計結果を返す。
// GET /api/analytics?days=N（既定90日）
func (h *AnalyticsHandler) GetAnalytics(w http.ResponseWriter, r *http.Request) {
	days, err := queryInt(r, "days")
	if err != nil {
		handleServiceError(w, h.logger, err)
		return
	}
	if days == nil {
		d := analytics.DefaultDays
		days = &d
	}

	stats, err := h.service.GetAnalytics(r.Context(), *days)
	if err != nil {
		handleServiceError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, stats)
}
