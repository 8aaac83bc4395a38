package handler

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/hitoshi/layofflens/internal/middleware"
	"github.com/hitoshi/layofflens/internal/model"
)

// Ingester は取り込みサイクルを1回実行する。ingest.Pipeline が満たす。
type Ingester interface {
	RunCycle(ctx context.Context) (int, error)
}

// Purger は保持期間を過ぎたレコードを削除する。cleanup.PurgeJob が満たす。
type Purger interface {
	Run(ctx context.Context, retentionDays int) (int, error)
}

// AdminHandler は管理操作（手動取り込み・手動削除）のHTTPハンドラー。
// 認証は middleware.NewAdminTokenMiddleware が前段で行う。
type AdminHandler struct {
	ingester Ingester
	purger   Purger
	logger   *slog.Logger
}

// NewAdminHandler はAdminHandlerを生成する。
func NewAdminHandler(ingester Ingester, purger Purger, logger *slog.Logger) *AdminHandler {
	return &AdminHandler{
		ingester: ingester,
		purger:   purger,
		logger:   logger,
	}
}

// fetchResponse は手動取り込みのレスポンス。
type fetchResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Count   int    `json:"count"`
}

// purgeResponse は手動削除のレスポンス。
type purgeResponse struct {
	Success bool `json:"success"`
	Deleted int  `json:"deleted"`
}

// FetchNow は取り込みサイクルをリクエストのゴルーチン上で実行する。
// POST /api/admin/fetch
func (h *AdminHandler) FetchNow(w http.ResponseWriter, r *http.Request) {
	h.logger.Info("手動取り込みを開始します")

	count, err := h.ingester.RunCycle(r.Context())
	if err != nil {
		h.logger.Error("手動取り込みに失敗しました",
			slog.Int("saved_count", count),
			slog.String("error", err.Error()),
		)
		middleware.WriteAPIError(w, model.NewIngestFailedError(err.Error()))
		return
	}

	writeJSON(w, http.StatusOK, fetchResponse{
		Success: true,
		Message: fmt.Sprintf("Fetched and saved %d items", count),
		Count:   count,
	})
}

// Purge は保持期間を過ぎたレコードを削除する。
// POST /api/admin/purge?days=N（未指定時は設定の保持日数）
func (h *AdminHandler) Purge(w http.ResponseWriter, r *http.Request) {
	days, err := queryInt(r, "days")
	if err != nil {
		handleServiceError(w, h.logger, err)
		return
	}
	retention := 0
	if days != nil {
		if *days < 1 {
			handleServiceError(w, h.logger, model.NewInvalidParameterError("days", "must be a positive integer"))
			return
		}
		retention = *days
	}

	deleted, err := h.purger.Run(r.Context(), retention)
	if err != nil {
		h.logger.Error("手動削除に失敗しました",
			slog.Int("deleted_count", deleted),
			slog.String("error", err.Error()),
		)
		middleware.WriteAPIError(w, model.NewPurgeFailedError(err.Error()))
		return
	}

	writeJSON(w, http.StatusOK, purgeResponse{Success: true, Deleted: deleted})
}
