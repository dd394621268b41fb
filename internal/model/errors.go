package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// HTTP層では {"error": Label, "message": Message} として出力する。
type APIError struct {
	Code    string // エラーコード
	Label   string // クライアント向けの汎用エラーラベル
	Message string // 原因の詳細
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeFetchFailed = "FETCH_FAILED"
	ErrCodeRateLimited = "RATE_LIMITED"
	ErrCodeInternal    = "INTERNAL_ERROR"
	ErrCodeNoEndpoints = "NO_ENDPOINTS"
	ErrCodeNotFound    = "NOT_FOUND"
)

// FetchFailedLabel はアラート取得失敗時のエラーラベル。
const FetchFailedLabel = "Failed to fetch MTA alerts"

// NewFetchFailedError はアラート取得パイプライン全体の失敗を表すエラーを生成する。
func NewFetchFailedError(reason string) *APIError {
	return &APIError{
		Code:    ErrCodeFetchFailed,
		Label:   FetchFailedLabel,
		Message: reason,
	}
}

// NewNoEndpointsError は取得対象エンドポイントが1件も設定されていない場合のエラーを生成する。
func NewNoEndpointsError() *APIError {
	return &APIError{
		Code:    ErrCodeNoEndpoints,
		Label:   FetchFailedLabel,
		Message: "no feed endpoints configured",
	}
}

// NewRateLimitedError はレート制限超過エラーを生成する。
func NewRateLimitedError() *APIError {
	return &APIError{
		Code:    ErrCodeRateLimited,
		Label:   "Too many requests",
		Message: "Too many requests. Please try again later.",
	}
}

// NewInternalError は内部エラーを生成する。詳細はログにのみ記録する。
func NewInternalError() *APIError {
	return &APIError{
		Code:    ErrCodeInternal,
		Label:   "Internal server error",
		Message: "Unknown error",
	}
}

// NewNotFoundError は存在しないパスへのリクエストを表すエラーを生成する。
func NewNotFoundError() *APIError {
	return &APIError{
		Code:    ErrCodeNotFound,
		Label:   "Not found",
		Message: "The requested resource does not exist.",
	}
}
