package handler

import (
	"net/http"

	"github.com/hitoshi/recipebox/internal/middleware"
)

// StoreModeReporter は現在のお気に入りストアのモードを返す。database.Managerが実装する。
// 接続試行を伴わず即座に返すこと。
type StoreModeReporter interface {
	CachedMode() string
}

type healthResponse struct {
	Status string `json:"status"`
	Store  string `json:"store"`
}

// NewHealthHandler はヘルスチェックハンドラーを返す。
// 永続ストアに接続できない場合もフォールバックで稼働しているため200を返す。
// 接続が未確立の間は "fallback" と報告する。
// GET /health
func NewHealthHandler(modes StoreModeReporter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		middleware.WriteJSON(w, http.StatusOK, healthResponse{
			Status: "ok",
			Store:  modes.CachedMode(),
		})
	}
}
