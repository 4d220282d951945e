package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"runtime/debug"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/recipebox/internal/middleware"
	"github.com/hitoshi/recipebox/internal/model"
)

// FavoriteServiceInterface はお気に入りハンドラーが必要とするサービスインターフェース。
type FavoriteServiceInterface interface {
	// List は全お気に入りを新しい順で返す。
	List(ctx context.Context) ([]model.Favorite, error)
	// Create はお気に入りを追加する。重複時はmodel.ErrDuplicateFavoriteを返す。
	Create(ctx context.Context, recipeID, recipeName, imageURL string) (*model.Favorite, error)
	// DeleteByRecipeID はお気に入りを削除する。存在しない場合はmodel.ErrFavoriteNotFoundを返す。
	DeleteByRecipeID(ctx context.Context, recipeID string) (*model.Favorite, error)
}

// FavoriteHandler はお気に入りAPIのHTTPハンドラー。
type FavoriteHandler struct {
	service FavoriteServiceInterface
}

// NewFavoriteHandler はFavoriteHandlerを生成する。
func NewFavoriteHandler(service FavoriteServiceInterface) *FavoriteHandler {
	return &FavoriteHandler{service: service}
}

// createFavoriteRequest はお気に入り追加リクエストのボディ。
type createFavoriteRequest struct {
	RecipeID   string `json:"recipeId"`
	RecipeName string `json:"recipeName"`
	ImageURL   string `json:"imageUrl"`
}

// deleteFavoriteRequest はボディ形式のお気に入り削除リクエスト。
type deleteFavoriteRequest struct {
	RecipeID string `json:"recipeId"`
}

// List はお気に入り一覧を返す。
// GET /api/favorites
//
// 読み取り経路は常に利用可能とし、失敗やpanicの場合も200で空配列を返す。
func (h *FavoriteHandler) List(w http.ResponseWriter, r *http.Request) {
	defer recoverWith(w, r, writeEmptyList)

	favs, err := h.service.List(r.Context())
	if err != nil {
		slog.Error("failed to list favorites", slog.String("error", err.Error()))
		writeEmptyList(w)
		return
	}
	if favs == nil {
		favs = []model.Favorite{}
	}

	middleware.WriteJSON(w, http.StatusOK, favs)
}

// Create はお気に入りを追加する。
// POST /api/favorites
func (h *FavoriteHandler) Create(w http.ResponseWriter, r *http.Request) {
	defer recoverWith(w, r, func(w http.ResponseWriter) {
		middleware.WriteErrorResponse(w, http.StatusInternalServerError, model.NewAddFavoriteFailedError())
	})

	var req createFavoriteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil ||
		req.RecipeID == "" || req.RecipeName == "" || req.ImageURL == "" {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewMissingFieldsError())
		return
	}

	fav, err := h.service.Create(r.Context(), req.RecipeID, req.RecipeName, req.ImageURL)
	if err != nil {
		handleFavoriteError(w, err, model.NewAddFavoriteFailedError())
		return
	}

	middleware.WriteSuccessResponse(w, http.StatusCreated, fav)
}

// DeleteByBody はボディでrecipeIdを受け取ってお気に入りを削除する。
// DELETE /api/favorites
func (h *FavoriteHandler) DeleteByBody(w http.ResponseWriter, r *http.Request) {
	defer recoverWith(w, r, writeRemoveFailed)

	var req deleteFavoriteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		req.RecipeID = ""
	}
	h.delete(w, r, req.RecipeID)
}

// DeleteByPath はパスでrecipeIdを受け取ってお気に入りを削除する。
// DELETE /api/favorites/{id}
func (h *FavoriteHandler) DeleteByPath(w http.ResponseWriter, r *http.Request) {
	defer recoverWith(w, r, writeRemoveFailed)

	h.delete(w, r, chi.URLParam(r, "id"))
}

// delete は2つの削除形式で共通の処理。
func (h *FavoriteHandler) delete(w http.ResponseWriter, r *http.Request, recipeID string) {
	if recipeID == "" {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewMissingRecipeIDError())
		return
	}

	fav, err := h.service.DeleteByRecipeID(r.Context(), recipeID)
	if err != nil {
		handleFavoriteError(w, err, model.NewRemoveFavoriteFailedError())
		return
	}

	middleware.WriteSuccessResponse(w, http.StatusOK, fav)
}

// SetupFavoriteRoutes はお気に入りAPIのルーティングを設定したchi.Routerを返す。
// writeLimiterがnilの場合は更新系のレート制限を適用しない。
func SetupFavoriteRoutes(service FavoriteServiceInterface, writeLimiter func(http.Handler) http.Handler) http.Handler {
	r := chi.NewRouter()
	h := NewFavoriteHandler(service)

	if writeLimiter != nil {
		r.Use(writeLimiter)
	}

	r.Get("/", h.List)
	r.Post("/", h.Create)
	r.Delete("/", h.DeleteByBody)
	r.Delete("/{id}", h.DeleteByPath)

	return r
}

// handleFavoriteError はサービス層のエラーをHTTPステータスコードに変換する。
// 業務上のエラー以外はログに記録し、internalErrの汎用メッセージを返す。
func handleFavoriteError(w http.ResponseWriter, err error, internalErr *model.APIError) {
	switch {
	case errors.Is(err, model.ErrDuplicateFavorite):
		middleware.WriteErrorResponse(w, http.StatusConflict, model.NewDuplicateFavoriteError())
	case errors.Is(err, model.ErrFavoriteNotFound):
		middleware.WriteErrorResponse(w, http.StatusNotFound, model.NewFavoriteNotFoundError())
	default:
		slog.Error("internal server error",
			slog.String("code", internalErr.Code),
			slog.String("error", err.Error()),
		)
		middleware.WriteErrorResponse(w, http.StatusInternalServerError, internalErr)
	}
}

// recoverWith はハンドラー単位のpanic境界。deferで直接呼び出すこと。
func recoverWith(w http.ResponseWriter, r *http.Request, onPanic func(w http.ResponseWriter)) {
	if rec := recover(); rec != nil {
		slog.Error("panic recovered in handler",
			slog.Any("panic", rec),
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.String("stack", string(debug.Stack())),
		)
		onPanic(w)
	}
}

func writeEmptyList(w http.ResponseWriter) {
	middleware.WriteJSON(w, http.StatusOK, []model.Favorite{})
}

func writeRemoveFailed(w http.ResponseWriter) {
	middleware.WriteErrorResponse(w, http.StatusInternalServerError, model.NewRemoveFavoriteFailedError())
}
