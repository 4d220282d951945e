package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/recipebox/internal/middleware"
	"github.com/hitoshi/recipebox/internal/model"
)

const (
	defaultRandomCount = 8
	maxRandomCount     = 20
)

// RecipeCatalog はレシピハンドラーが必要とするカタログインターフェース。
// 一致なしの場合は nil, nil を返す。
type RecipeCatalog interface {
	RandomRecipes(ctx context.Context, n int) ([]model.Recipe, error)
	RecipeByID(ctx context.Context, id string) ([]model.Recipe, error)
	Search(ctx context.Context, query string) ([]model.Recipe, error)
	ByCategory(ctx context.Context, category string) ([]model.Recipe, error)
}

// mealsResponse はレシピAPIのレスポンス。カタログと同じ形を保ち、一致なしは null。
type mealsResponse struct {
	Meals []model.Recipe `json:"meals"`
}

// RecipeHandler はレシピカタログのプロキシハンドラー。
type RecipeHandler struct {
	catalog RecipeCatalog
}

// NewRecipeHandler はRecipeHandlerを生成する。
func NewRecipeHandler(catalog RecipeCatalog) *RecipeHandler {
	return &RecipeHandler{catalog: catalog}
}

// Random はランダムなレシピを返す。
// GET /api/recipes/random?count=n
func (h *RecipeHandler) Random(w http.ResponseWriter, r *http.Request) {
	count := parseCount(r.URL.Query().Get("count"))
	recipes, err := h.catalog.RandomRecipes(r.Context(), count)
	writeMeals(w, "random", recipes, err)
}

// Get はIDでレシピを返す。
// GET /api/recipes/{id}
func (h *RecipeHandler) Get(w http.ResponseWriter, r *http.Request) {
	recipes, err := h.catalog.RecipeByID(r.Context(), chi.URLParam(r, "id"))
	writeMeals(w, "lookup", recipes, err)
}

// Search はレシピ名で検索する。クエリが空の場合はカタログを呼ばずに null を返す。
// GET /api/recipes/search?q=
func (h *RecipeHandler) Search(w http.ResponseWriter, r *http.Request) {
	q := strings.TrimSpace(r.URL.Query().Get("q"))
	if q == "" {
		middleware.WriteJSON(w, http.StatusOK, mealsResponse{})
		return
	}
	recipes, err := h.catalog.Search(r.Context(), q)
	writeMeals(w, "search", recipes, err)
}

// ByCategory はカテゴリでレシピを絞り込む。
// GET /api/recipes/category/{category}
func (h *RecipeHandler) ByCategory(w http.ResponseWriter, r *http.Request) {
	recipes, err := h.catalog.ByCategory(r.Context(), chi.URLParam(r, "category"))
	writeMeals(w, "category", recipes, err)
}

// SetupRecipeRoutes はレシピAPIのルーティングを設定したchi.Routerを返す。
func SetupRecipeRoutes(catalog RecipeCatalog) http.Handler {
	r := chi.NewRouter()
	h := NewRecipeHandler(catalog)

	r.Get("/random", h.Random)
	r.Get("/search", h.Search)
	r.Get("/category/{category}", h.ByCategory)
	r.Get("/{id}", h.Get)

	return r
}

func writeMeals(w http.ResponseWriter, endpoint string, recipes []model.Recipe, err error) {
	if err != nil {
		slog.Error("recipe catalog unavailable",
			slog.String("endpoint", endpoint),
			slog.String("error", err.Error()),
		)
		middleware.WriteJSON(w, http.StatusBadGateway, mealsResponse{})
		return
	}
	middleware.WriteJSON(w, http.StatusOK, mealsResponse{Meals: recipes})
}

// parseCount はcountパラメータを1〜maxRandomCountの範囲に収める。
// 未指定・不正値の場合はdefaultRandomCount。
func parseCount(raw string) int {
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return defaultRandomCount
	}
	if n > maxRandomCount {
		return maxRandomCount
	}
	return n
}
