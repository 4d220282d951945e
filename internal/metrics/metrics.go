// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// お気に入り操作の結果ラベル。
const (
	ResultSuccess   = "success"
	ResultDuplicate = "duplicate"
	ResultNotFound  = "not_found"
	ResultError     = "error"
)

// MetricsCollector はメトリクス収集のインターフェース。
// サービス層、カタログクライアント、ミドルウェアから利用する。
type MetricsCollector interface {
	RecordFavoriteOperation(operation, store, result string)
	RecordCatalogRequest(endpoint string, err error)
	RecordCatalogLatency(duration time.Duration)
	RecordCatalogCache(hit bool)
	RecordHTTPStatus(statusCode int)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	favoriteOps    *prometheus.CounterVec
	catalogReqs    *prometheus.CounterVec
	catalogLatency prometheus.Histogram
	catalogCache   *prometheus.CounterVec
	httpStatus     *prometheus.CounterVec
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		favoriteOps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "recipebox_favorite_operations_total",
			Help: "お気に入り操作の合計数（操作・ストア・結果別）",
		}, []string{"operation", "store", "result"}),
		catalogReqs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "recipebox_catalog_requests_total",
			Help: "レシピカタログへのリクエスト数",
		}, []string{"endpoint", "result"}),
		catalogLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "recipebox_catalog_latency_seconds",
			Help:    "レシピカタログ呼び出しのレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}),
		catalogCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "recipebox_catalog_cache_total",
			Help: "カタログキャッシュの参照数",
		}, []string{"result"}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "recipebox_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
	}

	reg.MustRegister(
		c.favoriteOps,
		c.catalogReqs,
		c.catalogLatency,
		c.catalogCache,
		c.httpStatus,
	)

	return c
}

// RecordFavoriteOperation はお気に入り操作を記録する。
// store は "durable" または "fallback"。
func (c *Collector) RecordFavoriteOperation(operation, store, result string) {
	c.favoriteOps.WithLabelValues(operation, store, result).Inc()
}

// RecordCatalogRequest はカタログへのリクエスト結果を記録する。
func (c *Collector) RecordCatalogRequest(endpoint string, err error) {
	result := ResultSuccess
	if err != nil {
		result = ResultError
	}
	c.catalogReqs.WithLabelValues(endpoint, result).Inc()
}

// RecordCatalogLatency はカタログ呼び出しのレイテンシを記録する。
func (c *Collector) RecordCatalogLatency(duration time.Duration) {
	c.catalogLatency.Observe(duration.Seconds())
}

// RecordCatalogCache はキャッシュのヒット/ミスを記録する。
func (c *Collector) RecordCatalogCache(hit bool) {
	if hit {
		c.catalogCache.WithLabelValues("hit").Inc()
		return
	}
	c.catalogCache.WithLabelValues("miss").Inc()
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
