package model

import (
	"fmt"
	"net/http"
)

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, system
	Action   string // 利用者向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeInvalidParameter = "INVALID_PARAMETER"
	ErrCodeUnauthorized     = "UNAUTHORIZED"
	ErrCodeAdminDisabled    = "ADMIN_DISABLED"
	ErrCodeIngestFailed     = "INGEST_FAILED"
	ErrCodePurgeFailed      = "PURGE_FAILED"
	ErrCodeRateLimited      = "RATE_LIMIT_EXCEEDED"
	ErrCodeInternal         = "INTERNAL_ERROR"
)

// HTTPStatus はエラーコードに対応するHTTPステータスコードを返す。
// 未知のコードは500とする。
func (e *APIError) HTTPStatus() int {
	switch e.Code {
	case ErrCodeInvalidParameter:
		return http.StatusBadRequest
	case ErrCodeUnauthorized:
		return http.StatusUnauthorized
	case ErrCodeAdminDisabled:
		return http.StatusForbidden
	case ErrCodeRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// NewInvalidParameterError はクエリパラメータ不正エラーを生成する。
func NewInvalidParameterError(name, reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidParameter,
		Message:  fmt.Sprintf("%s %s", name, reason),
		Category: "validation",
		Action:   fmt.Sprintf("%s には正の整数を指定してください。", name),
	}
}

// NewUnauthorizedError は管理トークン不一致エラーを生成する。
func NewUnauthorizedError() *APIError {
	return &APIError{
		Code:     ErrCodeUnauthorized,
		Message:  "Unauthorized. Invalid token.",
		Category: "auth",
		Action:   "正しい管理トークンを指定してください。",
	}
}

// NewAdminDisabledError は管理トークン未設定のため管理操作が無効であることを示すエラーを生成する。
func NewAdminDisabledError() *APIError {
	return &APIError{
		Code:     ErrCodeAdminDisabled,
		Message:  "管理操作は無効化されています。",
		Category: "auth",
		Action:   "ADMIN_TOKEN を設定してからサーバーを再起動してください。",
	}
}

// NewIngestFailedError は手動取り込みの失敗エラーを生成する。
func NewIngestFailedError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeIngestFailed,
		Message:  fmt.Sprintf("取り込みに失敗しました: %s", reason),
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	}
}

// NewPurgeFailedError は手動削除の失敗エラーを生成する。
func NewPurgeFailedError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodePurgeFailed,
		Message:  fmt.Sprintf("古いレコードの削除に失敗しました: %s", reason),
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	}
}

// NewRateLimitedError はレート制限超過エラーを生成する。
func NewRateLimitedError() *APIError {
	return &APIError{
		Code:     ErrCodeRateLimited,
		Message:  "Too many requests. Please try again later.",
		Category: "system",
		Action:   "Retry-After ヘッダーの秒数だけ待ってから再度お試しください。",
	}
}

// NewInternalError は内部エラーを生成する。詳細はログにのみ残す。
func NewInternalError() *APIError {
	return &APIError{
		Code:     ErrCodeInternal,
		Message:  "Internal server error",
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	}
}
