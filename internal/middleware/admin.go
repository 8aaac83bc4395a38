package middleware

import (
	"crypto/subtle"
	"log/slog"
	"net/http"

	"github.com/hitoshi/layofflens/internal/model"
)

// AdminTokenHeader は管理トークンを渡すリクエストヘッダー名。
const AdminTokenHeader = "X-Admin-Token"

// NewAdminTokenMiddleware は管理操作を共有トークンで保護するミドルウェアを返す。
// トークンはクエリ ?token= またはヘッダー X-Admin-Token で受け取り、定数時間で比較する。
// 設定側のトークンが空の場合は管理操作自体を無効とし、常に403を返す。
func NewAdminTokenMiddleware(token string, logger *slog.Logger) func(next http.Handler) http.Handler {
	expected := []byte(token)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if len(expected) == 0 {
				WriteAPIError(w, model.NewAdminDisabledError())
				return
			}

			given := r.Header.Get(AdminTokenHeader)
			if given == "" {
				given = r.URL.Query().Get("token")
			}

			if subtle.ConstantTimeCompare([]byte(given), expected) != 1 {
				logger.Warn("管理トークンが一致しません",
					slog.String("path", r.URL.Path),
					slog.String("client_ip", ClientIP(r)),
				)
				WriteAPIError(w, model.NewUnauthorizedError())
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
