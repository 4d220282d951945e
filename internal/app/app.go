package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/hitoshi/recipebox/internal/catalog"
	"github.com/hitoshi/recipebox/internal/config"
	"github.com/hitoshi/recipebox/internal/database"
	"github.com/hitoshi/recipebox/internal/favclient"
	"github.com/hitoshi/recipebox/internal/favorite"
	"github.com/hitoshi/recipebox/internal/handler"
	"github.com/hitoshi/recipebox/internal/logger"
	"github.com/hitoshi/recipebox/internal/metrics"
	"github.com/hitoshi/recipebox/internal/middleware"
	"github.com/hitoshi/recipebox/internal/repository"
	"github.com/hitoshi/recipebox/internal/security"
)

// Init はアプリケーションの初期化を行う。
// JSON構造化ログをセットアップし、環境変数からConfigを読み込む。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w)

	// 2. 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応するモードで起動する。
// argsにはos.Args[1:]を渡す。
func Run(w io.Writer, args []string) error {
	cmd := ParseCommand(args)

	// healthcheck は軽量サブコマンドのため、フル初期化をスキップする
	if cmd == CommandHealthcheck {
		port := os.Getenv("SERVER_PORT")
		if port == "" {
			port = "8080"
		}
		return runHealthcheck(port)
	}

	cfg, err := Init(w)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	slog.Info("starting application",
		slog.String("command", string(cmd)),
		slog.String("port", cfg.ServerPort),
		slog.Bool("fallback_store", cfg.UsesFallbackStore()),
	)

	switch cmd {
	case CommandMigrate:
		return runMigrate(cfg)
	case CommandFavorite:
		if len(args) < 2 || args[1] == "" {
			return errors.New("usage: recipebox favorite <recipeId>")
		}
		return runFavorite(context.Background(), cfg, w, args[1])
	default:
		return runServe(cfg)
	}
}

// server はserveモードで組み立てた依存関係を保持する。
type server struct {
	handler     http.Handler
	manager     *database.Manager
	rateLimiter *middleware.RateLimiter
	redis       *redis.Client
}

// Close は保持しているリソースを解放する。
func (s *server) Close() {
	s.rateLimiter.Stop()
	if s.redis != nil {
		if err := s.redis.Close(); err != nil {
			slog.Warn("failed to close redis client", slog.String("error", err.Error()))
		}
	}
	if err := s.manager.Close(); err != nil {
		slog.Warn("failed to close database", slog.String("error", err.Error()))
	}
}

// newServer はConfigから全依存関係をワイヤリングする。
// 永続ストアへの接続はここでは行わず、最初のリクエスト時にConnection Managerが試行する。
func newServer(ctx context.Context, cfg *config.Config) *server {
	log := slog.Default()

	// 1. メトリクス
	registry := prometheus.NewRegistry()
	collector := metrics.NewCollector(registry)

	// 2. Connection Manager
	managerOpts := []database.ManagerOption{
		database.WithConnectTimeout(cfg.DBConnectTimeout),
		database.WithLogger(log),
	}
	if cfg.DBAutoMigrate {
		// 確立した接続上で、接続試行と同じ期限内に適用する
		managerOpts = append(managerOpts, database.WithOnConnect(database.RunMigrationsContext))
	}
	manager := database.NewManager(cfg.DatabaseURL, managerOpts...)

	// 3. お気に入りサービス（フォールバックストアはプロセス内で1つだけ）
	favService := favorite.NewService(manager, repository.NewMemoryFavoriteRepo(),
		favorite.WithMetrics(collector),
		favorite.WithLogger(log),
	)

	// 4. レシピカタログ
	recipes, rdb := newCatalog(ctx, cfg, collector, log)

	// 5. ルーター
	rl := middleware.NewRateLimiter(middleware.NewRateLimiterConfig(cfg.RateLimitGeneral, cfg.RateLimitWrite))
	router := handler.NewRouter(&handler.RouterDeps{
		Logger:            log,
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		RateLimiter:       rl,
		Metrics:           collector,
		MetricsGatherer:   registry,
		FavoriteService:   favService,
		StoreMode:         manager,
		Catalog:           recipes,
	})

	return &server{
		handler:     router,
		manager:     manager,
		rateLimiter: rl,
		redis:       rdb,
	}
}

// newCatalog はSSRF対策済みのHTTPクライアントでカタログクライアントを構築し、
// REDIS_URLが設定されていればRedisキャッシュで包む。
// Redisに接続できない場合はキャッシュなしで動作する。
func newCatalog(ctx context.Context, cfg *config.Config, m metrics.MetricsCollector, log *slog.Logger) (catalog.Catalog, *redis.Client) {
	guard := security.NewSSRFGuard()
	if err := guard.ValidateURL(cfg.CatalogBaseURL); err != nil {
		log.Warn("catalog base URL rejected by SSRF guard, requests will fail",
			slog.String("catalog_base_url", cfg.CatalogBaseURL),
			slog.String("error", err.Error()),
		)
	}

	client := catalog.NewClient(guard.NewSafeClient(cfg.CatalogTimeout), cfg.CatalogBaseURL, log,
		catalog.WithMetrics(m),
	)

	rdb := newRedisClient(ctx, cfg.RedisURL, log)
	return catalog.NewCachedCatalog(client, rdb, cfg.CatalogCacheTTL, m, log), rdb
}

// newRedisClient はREDIS_URLからRedisクライアントを生成する。
// 未設定・解析失敗・疎通失敗の場合はnilを返す。
func newRedisClient(ctx context.Context, redisURL string, log *slog.Logger) *redis.Client {
	if redisURL == "" {
		return nil
	}

	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		log.Warn("invalid REDIS_URL, catalog cache disabled", slog.String("error", err.Error()))
		return nil
	}

	rdb := redis.NewClient(opts)
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		log.Warn("redis unreachable, catalog cache disabled", slog.String("error", err.Error()))
		rdb.Close()
		return nil
	}

	log.Info("catalog cache enabled", slog.String("redis_addr", opts.Addr))
	return rdb
}

// runServe はAPIサーバーモードで起動する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(cfg *config.Config) error {
	srv := newServer(context.Background(), cfg)
	defer srv.Close()

	// /health は接続を試行しないため、起動時に1回試行しておく
	go srv.manager.Acquire(context.Background())

	httpServer := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      srv.handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// グレースフルシャットダウンのためのシグナルハンドリング
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	listenErr := make(chan error, 1)
	go func() {
		slog.Info("API server starting",
			slog.String("addr", httpServer.Addr),
		)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			listenErr <- err
		}
	}()

	select {
	case <-stop:
	case err := <-listenErr:
		return fmt.Errorf("server listen error: %w", err)
	}
	slog.Info("shutting down API server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("API server stopped gracefully")
	return nil
}

// runMigrate はデータベースマイグレーションを実行する。
// すべての未適用マイグレーションを順番に適用する。
func runMigrate(cfg *config.Config) error {
	if cfg.UsesFallbackStore() {
		return errors.New("DATABASE_URL is required for migrate")
	}

	slog.Info("running database migrations",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	if err := database.RunMigrations(cfg.DatabaseURL); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	slog.Info("database migrations completed successfully")
	return nil
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /health エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(port string) error {
	endpoint := fmt.Sprintf("http://localhost:%s/health", port)
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(endpoint)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}

// runFavorite はカタログからレシピを取得し、API_BASE_URLのお気に入りAPIに対して
// お気に入り状態を切り替えて、切り替え後の状態をwに出力する。
func runFavorite(ctx context.Context, cfg *config.Config, w io.Writer, recipeID string) error {
	recipes, rdb := newCatalog(ctx, cfg, nil, slog.Default())
	if rdb != nil {
		defer rdb.Close()
	}

	api := favclient.NewHTTPClient(&http.Client{Timeout: 10 * time.Second}, cfg.APIBaseURL)
	return toggleFavorite(ctx, recipes, api, w, recipeID)
}

func toggleFavorite(ctx context.Context, recipes catalog.Catalog, api favclient.FavoritesAPI, w io.Writer, recipeID string) error {
	found, err := recipes.RecipeByID(ctx, recipeID)
	if err != nil {
		return fmt.Errorf("failed to look up recipe %s: %w", recipeID, err)
	}
	if len(found) == 0 {
		return fmt.Errorf("recipe %s not found in catalog", recipeID)
	}
	recipe := found[0]

	controller := favclient.NewController(api, slog.Default())
	controller.Load(ctx)

	if !controller.ToggleFavorite(ctx, recipe) {
		return fmt.Errorf("failed to toggle favorite for recipe %s", recipeID)
	}

	state := "removed from"
	if controller.IsFavorite(recipe.IDMeal) {
		state = "added to"
	}
	fmt.Fprintf(w, "%s (%s) %s favorites (%d total)\n",
		recipe.StrMeal, recipe.IDMeal, state, len(controller.Favorites()))
	return nil
}

// maskDatabaseURL はデータベースURLの認証情報をマスクする。
func maskDatabaseURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "***"
	}
	if u.User != nil {
		u.User = url.User("***")
	}
	u.RawQuery = ""
	return u.String()
}
