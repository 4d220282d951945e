// Package model はドメインモデルを定義する。
package model

import (
	"encoding/json"
	"fmt"
	"strings"
)

// maxIngredientSlots はカタログのレシピが持つ材料フィールド（strIngredient1..20）の数。
const maxIngredientSlots = 20

// Ingredient はレシピの材料と分量の組。
type Ingredient struct {
	Name    string `json:"ingredient"`
	Measure string `json:"measure"`
}

// Recipe はレシピカタログ（TheMealDB）から取得したレシピを表す。
// 一覧系エンドポイント（filter.php）では IDMeal/StrMeal/StrMealThumb のみが埋まる。
type Recipe struct {
	IDMeal          string       `json:"idMeal"`
	StrMeal         string       `json:"strMeal"`
	StrMealThumb    string       `json:"strMealThumb"`
	StrInstructions string       `json:"strInstructions,omitempty"`
	StrCategory     string       `json:"strCategory,omitempty"`
	StrArea         string       `json:"strArea,omitempty"`
	StrTags         string       `json:"strTags,omitempty"`
	StrYoutube      string       `json:"strYoutube,omitempty"`
	StrSource       string       `json:"strSource,omitempty"`
	Ingredients     []Ingredient `json:"ingredients,omitempty"`
}

// UnmarshalJSON はカタログのフラットな strIngredientN / strMeasureN フィールドを
// Ingredients に集約しながらデコードする。材料名が空のスロットは読み飛ばす。
// キャッシュから読み戻す場合のように ingredients 配列を持つ入力もそのまま受け付ける。
func (r *Recipe) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("レシピのデコードに失敗しました: %w", err)
	}

	// 文字列以外（null含む）は空文字として扱う
	get := func(key string) string {
		var s string
		if v, ok := raw[key]; ok {
			_ = json.Unmarshal(v, &s)
		}
		return s
	}

	*r = Recipe{
		IDMeal:          get("idMeal"),
		StrMeal:         get("strMeal"),
		StrMealThumb:    get("strMealThumb"),
		StrInstructions: get("strInstructions"),
		StrCategory:     get("strCategory"),
		StrArea:         get("strArea"),
		StrTags:         get("strTags"),
		StrYoutube:      get("strYoutube"),
		StrSource:       get("strSource"),
	}

	if v, ok := raw["ingredients"]; ok {
		if err := json.Unmarshal(v, &r.Ingredients); err != nil {
			return fmt.Errorf("材料リストのデコードに失敗しました: %w", err)
		}
		return nil
	}

	for i := 1; i <= maxIngredientSlots; i++ {
		name := strings.TrimSpace(get(fmt.Sprintf("strIngredient%d", i)))
		if name == "" {
			continue
		}
		r.Ingredients = append(r.Ingredients, Ingredient{
			Name:    name,
			Measure: strings.TrimSpace(get(fmt.Sprintf("strMeasure%d", i))),
		})
	}

	return nil
}

// FavoriteFields はお気に入り登録に必要な3項目（recipeId, recipeName, imageUrl）を返す。
func (r Recipe) FavoriteFields() (recipeID, recipeName, imageURL string) {
	return r.IDMeal, r.StrMeal, r.StrMealThumb
}
