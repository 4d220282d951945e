// Package model はドメインモデルを定義する。
package model

import (
	"errors"
	"fmt"
)

// リポジトリが返す業務上のエラー。障害ではなく想定された状態を表す。
var (
	// ErrDuplicateFavorite は同じrecipeIdのお気に入りが既に存在することを表す。
	ErrDuplicateFavorite = errors.New("favorite already exists")
	// ErrFavoriteNotFound は指定recipeIdのお気に入りが存在しないことを表す。
	ErrFavoriteNotFound = errors.New("favorite not found")
)

// APIError はAPIレスポンスに載せるエラーを表す。
// Message はレスポンスエンベロープの error フィールドにそのまま出力される。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: validation, favorite, catalog, system
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeMissingFields      = "MISSING_FIELDS"
	ErrCodeMissingRecipeID    = "MISSING_RECIPE_ID"
	ErrCodeDuplicateFavorite  = "DUPLICATE_FAVORITE"
	ErrCodeFavoriteNotFound   = "FAVORITE_NOT_FOUND"
	ErrCodeAddFavoriteFailed  = "ADD_FAVORITE_FAILED"
	ErrCodeRemoveFavoriteFail = "REMOVE_FAVORITE_FAILED"
	ErrCodeInternal           = "INTERNAL_ERROR"
)

// NewMissingFieldsError は必須フィールド欠落エラーを生成する。
func NewMissingFieldsError() *APIError {
	return &APIError{
		Code:     ErrCodeMissingFields,
		Message:  "Missing required fields",
		Category: "validation",
	}
}

// NewMissingRecipeIDError はrecipeId未指定エラーを生成する。
func NewMissingRecipeIDError() *APIError {
	return &APIError{
		Code:     ErrCodeMissingRecipeID,
		Message:  "Recipe ID is required",
		Category: "validation",
	}
}

// NewDuplicateFavoriteError は登録済みレシピを再度お気に入りに追加しようとした場合のエラーを生成する。
func NewDuplicateFavoriteError() *APIError {
	return &APIError{
		Code:     ErrCodeDuplicateFavorite,
		Message:  "Recipe already in favorites",
		Category: "favorite",
	}
}

// NewFavoriteNotFoundError はお気に入りが見つからない場合のエラーを生成する。
func NewFavoriteNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeFavoriteNotFound,
		Message:  "Favorite not found",
		Category: "favorite",
	}
}

// NewAddFavoriteFailedError はお気に入り追加時の内部エラーを生成する。
// 詳細はログにのみ記録し、クライアントには一般的なメッセージを返す。
func NewAddFavoriteFailedError() *APIError {
	return &APIError{
		Code:     ErrCodeAddFavoriteFailed,
		Message:  "Failed to add favorite",
		Category: "system",
	}
}

// NewRemoveFavoriteFailedError はお気に入り削除時の内部エラーを生成する。
func NewRemoveFavoriteFailedError() *APIError {
	return &APIError{
		Code:     ErrCodeRemoveFavoriteFail,
		Message:  "Failed to remove favorite",
		Category: "system",
	}
}

// NewInternalError は汎用の内部エラーを生成する。
func NewInternalError() *APIError {
	return &APIError{
		Code:     ErrCodeInternal,
		Message:  "Internal server error",
		Category: "system",
	}
}
