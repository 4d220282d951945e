package middleware

import (
	"encoding/json"
	"net/http"

	"github.com/hitoshi/recipebox/internal/model"
)

// Envelope はAPIレスポンスの統一フォーマット。
// 成功時は data を、失敗時は error を持つ。
type Envelope struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

// WriteJSON は任意の値をJSONで書き込む。
func WriteJSON(w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(v)
}

// WriteSuccessResponse は成功エンベロープを書き込む。
func WriteSuccessResponse(w http.ResponseWriter, statusCode int, data any) {
	WriteJSON(w, statusCode, Envelope{Success: true, Data: data})
}

// WriteErrorResponse は失敗エンベロープを書き込む。
// エラーコードやカテゴリはログ用であり、レスポンスにはメッセージのみを含める。
func WriteErrorResponse(w http.ResponseWriter, statusCode int, apiErr *model.APIError) {
	WriteJSON(w, statusCode, Envelope{Success: false, Error: apiErr.Message})
}

// WriteInternalServerError は内部サーバーエラーの統一レスポンスを書き込む。
// 詳細はログのみに記録する。
func WriteInternalServerError(w http.ResponseWriter) {
	WriteErrorResponse(w, http.StatusInternalServerError, model.NewInternalError())
}
