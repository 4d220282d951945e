package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/hitoshi/recipebox/internal/metrics"
	"github.com/hitoshi/recipebox/internal/model"
)

// DefaultCacheTTL はキャッシュエントリの既定の有効期間。
const DefaultCacheTTL = 10 * time.Minute

// CachedCatalog はRedisで結果をキャッシュするCatalog。
// redisクライアントがnilの場合はキャッシュせずそのまま委譲する。
// ランダム取得は毎回異なる結果が期待されるためキャッシュしない。
// Redisの障害はキャッシュミスとして扱い、カタログへの呼び出しは継続する。
type CachedCatalog struct {
	next    Catalog
	redis   *redis.Client
	ttl     time.Duration
	metrics metrics.MetricsCollector
	logger  *slog.Logger
}

// NewCachedCatalog はCachedCatalogを生成する。ttlが0以下の場合はDefaultCacheTTLを使う。
func NewCachedCatalog(next Catalog, rdb *redis.Client, ttl time.Duration, m metrics.MetricsCollector, logger *slog.Logger) *CachedCatalog {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &CachedCatalog{
		next:    next,
		redis:   rdb,
		ttl:     ttl,
		metrics: m,
		logger:  logger,
	}
}

// RandomRecipes はキャッシュを通さずに委譲する。
func (c *CachedCatalog) RandomRecipes(ctx context.Context, n int) ([]model.Recipe, error) {
	return c.next.RandomRecipes(ctx, n)
}

// RecipeByID はIDによる取得結果をキャッシュする。
func (c *CachedCatalog) RecipeByID(ctx context.Context, id string) ([]model.Recipe, error) {
	return c.cached(ctx, cacheKey(endpointLookup, id), func() ([]model.Recipe, error) {
		return c.next.RecipeByID(ctx, id)
	})
}

// Search は検索結果をキャッシュする。クエリは大文字小文字を区別しない。
func (c *CachedCatalog) Search(ctx context.Context, query string) ([]model.Recipe, error) {
	return c.cached(ctx, cacheKey(endpointSearch, strings.ToLower(query)), func() ([]model.Recipe, error) {
		return c.next.Search(ctx, query)
	})
}

// ByCategory はカテゴリ絞り込みの結果をキャッシュする。
func (c *CachedCatalog) ByCategory(ctx context.Context, category string) ([]model.Recipe, error) {
	return c.cached(ctx, cacheKey(endpointCategory, category), func() ([]model.Recipe, error) {
		return c.next.ByCategory(ctx, category)
	})
}

func (c *CachedCatalog) cached(ctx context.Context, key string, load func() ([]model.Recipe, error)) ([]model.Recipe, error) {
	if c.redis == nil {
		return load()
	}

	data, err := c.redis.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var recipes []model.Recipe
		if jsonErr := json.Unmarshal(data, &recipes); jsonErr == nil {
			c.recordCache(true)
			c.logger.Debug("catalog cache hit", slog.String("cache_key", key))
			return recipes, nil
		}
		c.logger.Warn("discarding undecodable catalog cache entry", slog.String("cache_key", key))
	case !errors.Is(err, redis.Nil):
		c.logger.Warn("catalog cache read failed",
			slog.String("cache_key", key),
			slog.String("error", err.Error()),
		)
	}
	c.recordCache(false)

	recipes, err := load()
	if err != nil {
		return nil, err
	}

	data, err = json.Marshal(recipes)
	if err != nil {
		return recipes, nil
	}
	if err := c.redis.Set(ctx, key, data, c.ttl).Err(); err != nil {
		c.logger.Warn("failed to cache catalog response",
			slog.String("cache_key", key),
			slog.String("error", err.Error()),
		)
	}
	return recipes, nil
}

func (c *CachedCatalog) recordCache(hit bool) {
	if c.metrics != nil {
		c.metrics.RecordCatalogCache(hit)
	}
}

// cacheKey は "catalog:<endpoint>:<value>" 形式のキーを返す。
func cacheKey(endpoint, value string) string {
	return "catalog:" + endpoint + ":" + url.QueryEscape(strings.TrimSpace(value))
}

// compile-time interface check
var _ Catalog = (*CachedCatalog)(nil)
