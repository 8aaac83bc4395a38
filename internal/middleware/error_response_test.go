package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hitoshi/layofflens/internal/model"
)

func TestWriteAPIError_StatusFollowsCode(t *testing.T) {
	tests := []struct {
		name       string
		apiErr     *model.APIError
		wantStatus int
		wantCode   string
		wantCat    string
	}{
		{"不正なパラメータ", model.NewInvalidParameterError("days", "must be a positive integer"), http.StatusBadRequest, model.ErrCodeInvalidParameter, "validation"},
		{"トークン不一致", model.NewUnauthorizedError(), http.StatusUnauthorized, model.ErrCodeUnauthorized, "auth"},
		{"管理操作無効", model.NewAdminDisabledError(), http.StatusForbidden, model.ErrCodeAdminDisabled, "auth"},
		{"レート制限", model.NewRateLimitedError(), http.StatusTooManyRequests, model.ErrCodeRateLimited, "system"},
		{"取り込み失敗", model.NewIngestFailedError("boom"), http.StatusInternalServerError, model.ErrCodeIngestFailed, "system"},
		{"削除失敗", model.NewPurgeFailedError("boom"), http.StatusInternalServerError, model.ErrCodePurgeFailed, "system"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			WriteAPIError(w, tt.apiErr)

			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", w.Code, tt.wantStatus)
			}
			body := decodeErrorBody(t, w)
			if body.Code != tt.wantCode {
				t.Errorf("code = %q, want %q", body.Code, tt.wantCode)
			}
			if body.Category != tt.wantCat {
				t.Errorf("category = %q, want %q", body.Category, tt.wantCat)
			}
			if body.Action == "" {
				t.Error("action が空であってはならない")
			}
		})
	}
}

func TestWriteErrorResponse_ErrorFieldMirrorsMessage(t *testing.T) {
	w := httptest.NewRecorder()
	WriteErrorResponse(w, http.StatusBadRequest, model.NewInvalidParameterError("days", "must be a positive integer"))

	body := decodeErrorBody(t, w)
	if body.Error != "days must be a positive integer" {
		t.Errorf("error = %q, want %q", body.Error, "days must be a positive integer")
	}
	if body.Error != body.Message {
		t.Errorf("error と message は同じ値であるべき: %q != %q", body.Error, body.Message)
	}
}

func TestWriteInternalServerError_HidesCause(t *testing.T) {
	w := httptest.NewRecorder()
	WriteInternalServerError(w)

	if w.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want %d", w.Code, http.StatusInternalServerError)
	}
	body := decodeErrorBody(t, w)
	if body.Code != model.ErrCodeInternal {
		t.Errorf("code = %q, want %q", body.Code, model.ErrCodeInternal)
	}
	if body.Error != "Internal server error" {
		t.Errorf("error = %q, want %q", body.Error, "Internal server error")
	}
}
