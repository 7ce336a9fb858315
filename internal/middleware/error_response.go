package middleware

import (
	"encoding/json"
	"net/http"

	"github.com/hitoshi/culqipay/internal/model"
)

// ErrorResponseBody はAPIエラーレスポンスの統一フォーマット。
// 原因カテゴリと対処方法を含む。
type ErrorResponseBody struct {
	Code     string `json:"code"`
	Message  string `json:"message"`
	Category string `json:"category"`
	Action   string `json:"action"`
}

// WriteErrorResponse は統一エラーフォーマットでHTTPエラーレスポンスを書き込む。
// すべてのAPIエンドポイントで一貫したエラーレスポンスを提供する。
func WriteErrorResponse(w http.ResponseWriter, statusCode int, apiErr *model.APIError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(ErrorResponseBody{
		Code:     apiErr.Code,
		Message:  apiErr.Message,
		Category: apiErr.Category,
		Action:   apiErr.Action,
	})
}

// WriteInternalServerError は内部サーバーエラーの統一レスポンスを書き込む。
// 詳細はログのみに記録し、ユーザーには一般的なメッセージを返す。
func WriteInternalServerError(w http.ResponseWriter) {
	WriteErrorResponse(w, http.StatusInternalServerError, model.NewInternalError())
}

// StatusForError はAPIErrorに対応するHTTPステータスコードを返す。
// カテゴリを基本とし、一部のコードは個別に扱う。
func StatusForError(apiErr *model.APIError) int {
	if apiErr.Code == model.ErrCodePurchaseInFlight {
		return http.StatusConflict
	}

	switch apiErr.Category {
	case "auth":
		return http.StatusUnauthorized
	case "validation":
		return http.StatusBadRequest
	case "checkout", "payment":
		return http.StatusPaymentRequired
	case "network":
		return http.StatusBadGateway
	default:
		// config, system
		return http.StatusInternalServerError
	}
}

// WriteAPIError はAPIErrorを適切なステータスコードで書き込む。
func WriteAPIError(w http.ResponseWriter, apiErr *model.APIError) {
	WriteErrorResponse(w, StatusForError(apiErr), apiErr)
}
