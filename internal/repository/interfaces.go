// Package repository はデータ永続化のインターフェースと実装を定義する。
package repository

import (
	"context"

	"github.com/hitoshi/recipebox/internal/model"
)

// FavoriteRepository はお気に入りの永続化インターフェース。
// 永続ストア（PostgreSQL）とインメモリのフォールバックストアの2実装を持つ。
type FavoriteRepository interface {
	// List は全お気に入りを作成日時の降順（新しい順）で返す。
	List(ctx context.Context) ([]model.Favorite, error)

	// Create はお気に入りを作成する。
	// 同じrecipeIdが既に存在する場合はmodel.ErrDuplicateFavoriteを返す。
	Create(ctx context.Context, recipeID, recipeName, imageURL string) (*model.Favorite, error)

	// DeleteByRecipeID はrecipeIdに一致するお気に入りを削除し、削除したレコードを返す。
	// 存在しない場合はmodel.ErrFavoriteNotFoundを返す。
	DeleteByRecipeID(ctx context.Context, recipeID string) (*model.Favorite, error)
}
