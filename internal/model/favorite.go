// Package model はドメインモデルを定義する。
package model

import "time"

// Favorite はユーザーがお気に入り登録したレシピへの参照を表す。
// RecipeName と ImageURL は登録時点のカタログ値を非正規化して保持し、
// カタログ側の更新には追従しない。作成後は不変であり、更新操作は存在しない。
type Favorite struct {
	ID         string    `json:"id"`
	RecipeID   string    `json:"recipeId"`
	RecipeName string    `json:"recipeName"`
	ImageURL   string    `json:"imageUrl"`
	CreatedAt  time.Time `json:"createdAt"`
}
