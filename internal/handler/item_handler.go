package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/hitoshi/layofflens/internal/item"
)

// ItemServiceInterface は記事一覧ハンドラーが必要とするサービスインターフェース。
type ItemServiceInterface interface {
	// ListItems は保存済みレコードを期間・業種・ページ指定で返す。
	ListItems(ctx context.Context, p item.ListParams) (*item.ListResult, error)
}

// ItemHandler は記事一覧のHTTPハンドラー。
type ItemHandler struct {
	service ItemServiceInterface
	logger  *slog.Logger
}

// NewItemHandler はItemHandlerを生成する。
func NewItemHandler(service ItemServiceInterface, logger *slog.Logger) *ItemHandler {
	return &ItemHandler{
		service: service,
		logger:  logger,
	}
}

// ListItems は記事一覧を取得する。
// GET /api/items?days=N&limit=N&page=N&sector=S
//
// limit 指定時はレコードの配列を、それ以外は {items, pagination} を返す。
func (h *ItemHandler) ListItems(w http.ResponseWriter, r *http.Request) {
	var params item.ListParams
	var err error

	if params.Days, err = queryInt(r, "days"); err != nil {
		handleServiceError(w, h.logger, err)
		return
	}
	if params.Limit, err = queryInt(r, "limit"); err != nil {
		handleServiceError(w, h.logger, err)
		return
	}
	if params.Page, err = queryInt(r, "page"); err != nil {
		handleServiceError(w, h.logger, err)
		return
	}
	params.Sector = r.URL.Query().Get("sector")

	result, err := h.service.ListItems(r.Context(), params)
	if err != nil {
		handleServiceError(w, h.logger, err)
		return
	}

	if result.Plain {
		writeJSON(w, http.StatusOK, result.Items)
		return
	}
	writeJSON(w, http.StatusOK, result)
}
