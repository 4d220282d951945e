// Package catalog は外部レシピカタログ（TheMealDB）との連携を提供する。
package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/hitoshi/recipebox/internal/metrics"
	"github.com/hitoshi/recipebox/internal/model"
	"github.com/hitoshi/recipebox/internal/security"
)

const (
	// MaxRandomCount は1回に取得できるランダムレシピの上限。
	MaxRandomCount = 20
	// maxResponseSize はレスポンスボディの読み取り上限。
	maxResponseSize = 2 * 1024 * 1024
	userAgent       = "recipebox/1.0"
)

// エンドポイント名（メトリクスのendpointラベルとキャッシュキーに使用）。
const (
	endpointRandom   = "random"
	endpointLookup   = "lookup"
	endpointSearch   = "search"
	endpointCategory = "category"
)

// Catalog はレシピカタログの読み取り操作を表す。
// いずれの操作も一致するレシピが無い場合は nil, nil を返す。
type Catalog interface {
	RandomRecipes(ctx context.Context, n int) ([]model.Recipe, error)
	RecipeByID(ctx context.Context, id string) ([]model.Recipe, error)
	Search(ctx context.Context, query string) ([]model.Recipe, error)
	ByCategory(ctx context.Context, category string) ([]model.Recipe, error)
}

// mealsResponse はカタログAPIのレスポンス形式。一致なしの場合 meals は null。
type mealsResponse struct {
	Meals []model.Recipe `json:"meals"`
}

// Client はTheMealDB APIのクライアント。
type Client struct {
	httpClient *http.Client
	baseURL    string
	sanitizer  *security.TextSanitizer
	metrics    metrics.MetricsCollector
	logger     *slog.Logger
}

// ClientOption はClientの設定を変更する。
type ClientOption func(*Client)

// WithMetrics はメトリクスコレクタを設定する。
func WithMetrics(m metrics.MetricsCollector) ClientOption {
	return func(c *Client) { c.metrics = m }
}

// WithSanitizer はレスポンスの無害化に使うサニタイザを設定する。
func WithSanitizer(s *security.TextSanitizer) ClientOption {
	return func(c *Client) { c.sanitizer = s }
}

// NewClient はClientの新しいインスタンスを生成する。
// baseURLは "https://www.themealdb.com/api/json/v1/1" のようなAPIのルート。
func NewClient(httpClient *http.Client, baseURL string, logger *slog.Logger, opts ...ClientOption) *Client {
	c := &Client{
		httpClient: httpClient,
		baseURL:    strings.TrimRight(baseURL, "/"),
		sanitizer:  security.NewTextSanitizer(),
		logger:     logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// RandomRecipes はランダムなレシピをn件取得する。
// random.php は1件ずつしか返さないため並行にn回呼び出し、1つでも失敗すれば全体を失敗とする。
func (c *Client) RandomRecipes(ctx context.Context, n int) ([]model.Recipe, error) {
	if n <= 0 {
		return nil, nil
	}
	if n > MaxRandomCount {
		n = MaxRandomCount
	}

	results := make([][]model.Recipe, n)
	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < n; i++ {
		g.Go(func() error {
			meals, err := c.getMeals(gctx, endpointRandom, "random.php", nil)
			if err != nil {
				return err
			}
			results[i] = meals
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var recipes []model.Recipe
	for _, meals := range results {
		recipes = append(recipes, meals...)
	}
	return recipes, nil
}

// RecipeByID はIDでレシピを1件取得する。
func (c *Client) RecipeByID(ctx context.Context, id string) ([]model.Recipe, error) {
	return c.getMeals(ctx, endpointLookup, "lookup.php", url.Values{"i": {id}})
}

// Search はレシピ名で検索する。
func (c *Client) Search(ctx context.Context, query string) ([]model.Recipe, error) {
	return c.getMeals(ctx, endpointSearch, "search.php", url.Values{"s": {query}})
}

// ByCategory はカテゴリでレシピを絞り込む。
// カタログはこの操作でID・名前・サムネイルのみを返す。
func (c *Client) ByCategory(ctx context.Context, category string) ([]model.Recipe, error) {
	return c.getMeals(ctx, endpointCategory, "filter.php", url.Values{"c": {category}})
}

// getMeals は1回のAPI呼び出しを行い、無害化したレシピを返す。
func (c *Client) getMeals(ctx context.Context, endpoint, path string, query url.Values) (meals []model.Recipe, err error) {
	start := time.Now()
	defer func() {
		if c.metrics != nil {
			c.metrics.RecordCatalogLatency(time.Since(start))
			c.metrics.RecordCatalogRequest(endpoint, err)
		}
	}()

	reqURL := c.baseURL + "/" + path
	if len(query) > 0 {
		reqURL += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("HTTPリクエストの作成に失敗しました: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("recipe catalog request failed",
			slog.String("endpoint", endpoint),
			slog.String("error", err.Error()),
		)
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.logger.Error("recipe catalog returned error status",
			slog.String("endpoint", endpoint),
			slog.Int("http_status", resp.StatusCode),
		)
		return nil, fmt.Errorf("レシピカタログがステータス %d を返しました", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("レスポンスボディの読み取りに失敗しました: %w", err)
	}

	var result mealsResponse
	if err := json.Unmarshal(body, &result); err != nil {
		c.logger.Error("failed to parse recipe catalog response",
			slog.String("endpoint", endpoint),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("レスポンスJSONのパースに失敗しました: %w", err)
	}

	if len(result.Meals) == 0 {
		return nil, nil
	}

	recipes := make([]model.Recipe, len(result.Meals))
	for i, r := range result.Meals {
		recipes[i] = c.sanitizer.Recipe(r)
	}
	return recipes, nil
}

// compile-time interface check
var _ Catalog = (*Client)(nil)
