package security

import (
	"html"
	"net/url"
	"strings"

	"github.com/hitoshi/recipebox/internal/model"
	"github.com/microcosm-cc/bluemonday"
)

// TextSanitizer は外部カタログから受け取ったテキストからHTMLを除去する。
// レシピ名や手順はプレーンテキストとして扱い、タグはすべて取り除く。
// 画像・動画・出典のURLはhttp/httpsのみ通過させる。
type TextSanitizer struct {
	policy *bluemonday.Policy
}

// NewTextSanitizer はTextSanitizerを生成する。
func NewTextSanitizer() *TextSanitizer {
	return &TextSanitizer{policy: bluemonday.StrictPolicy()}
}

// Text はタグを除去したプレーンテキストを返す。
// bluemondayがエスケープした文字実体は元に戻す（JSONで返すため）。
func (s *TextSanitizer) Text(raw string) string {
	if raw == "" {
		return ""
	}
	return strings.TrimSpace(html.UnescapeString(s.policy.Sanitize(raw)))
}

// URL はhttp/httpsの絶対URLのみを返し、それ以外は空文字列にする。
func (s *TextSanitizer) URL(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" || !isAllowedScheme(u.Scheme) {
		return ""
	}
	return raw
}

// Recipe はレシピの全テキスト項目を無害化したコピーを返す。
func (s *TextSanitizer) Recipe(r model.Recipe) model.Recipe {
	out := model.Recipe{
		IDMeal:          s.Text(r.IDMeal),
		StrMeal:         s.Text(r.StrMeal),
		StrMealThumb:    s.URL(r.StrMealThumb),
		StrInstructions: s.Text(r.StrInstructions),
		StrCategory:     s.Text(r.StrCategory),
		StrArea:         s.Text(r.StrArea),
		StrTags:         s.Text(r.StrTags),
		StrYoutube:      s.URL(r.StrYoutube),
		StrSource:       s.URL(r.StrSource),
	}
	if len(r.Ingredients) > 0 {
		out.Ingredients = make([]model.Ingredient, 0, len(r.Ingredients))
		for _, ing := range r.Ingredients {
			name := s.Text(ing.Name)
			if name == "" {
				continue
			}
			out.Ingredients = append(out.Ingredients, model.Ingredient{
				Name:    name,
				Measure: s.Text(ing.Measure),
			})
		}
	}
	return out
}
