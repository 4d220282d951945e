// Package favorite は永続化モードを意識しないお気に入りの操作を提供する。
package favorite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hitoshi/recipebox/internal/database"
	"github.com/hitoshi/recipebox/internal/metrics"
	"github.com/hitoshi/recipebox/internal/model"
	"github.com/hitoshi/recipebox/internal/repository"
)

// 操作名（メトリクスのoperationラベル）。
const (
	OpList   = "list"
	OpCreate = "create"
	OpDelete = "delete"
)

// storePending はストアが選ばれる前に中断された呼び出しのstoreラベル。
const storePending = "pending"

// ConnectionAcquirer は永続ストアの接続を払い出す。database.Managerが実装する。
type ConnectionAcquirer interface {
	Acquire(ctx context.Context) database.Connection
}

// DurableRepoFunc は接続から永続ストア用のリポジトリを生成する。
type DurableRepoFunc func(db *sql.DB) repository.FavoriteRepository

// Service はお気に入りのサービス層。
// 呼び出しごとに接続を取得し、永続ストアかフォールバックストアのいずれかに振り分ける。
// 1回の呼び出しの途中でストアを切り替えることはない。
type Service struct {
	conns    ConnectionAcquirer
	fallback repository.FavoriteRepository
	durable  DurableRepoFunc
	metrics  metrics.MetricsCollector
	logger   *slog.Logger
}

// Option はServiceの設定を変更する。
type Option func(*Service)

// WithDurableRepo は永続ストア用リポジトリの生成処理を差し替える。
func WithDurableRepo(fn DurableRepoFunc) Option {
	return func(s *Service) { s.durable = fn }
}

// WithMetrics はメトリクスコレクタを設定する。
func WithMetrics(m metrics.MetricsCollector) Option {
	return func(s *Service) { s.metrics = m }
}

// WithLogger はロガーを設定する。
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// NewService はServiceの新しいインスタンスを生成する。
// fallbackはプロセスにつき1つのフォールバックストアで、呼び出し元が所有する。
func NewService(conns ConnectionAcquirer, fallback repository.FavoriteRepository, opts ...Option) *Service {
	s := &Service{
		conns:    conns,
		fallback: fallback,
		durable: func(db *sql.DB) repository.FavoriteRepository {
			return repository.NewPostgresFavoriteRepo(db)
		},
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// List は全お気に入りを新しい順で返す。
func (s *Service) List(ctx context.Context) ([]model.Favorite, error) {
	repo, store, err := s.resolve(ctx)
	if err != nil {
		s.record(OpList, store, err)
		return nil, err
	}

	favs, err := repo.List(ctx)
	s.record(OpList, store, err)
	if err != nil {
		return nil, err
	}
	return favs, nil
}

// Create はお気に入りを追加する。
// 同じrecipeIdが既に存在する場合はmodel.ErrDuplicateFavoriteを返す。
func (s *Service) Create(ctx context.Context, recipeID, recipeName, imageURL string) (*model.Favorite, error) {
	repo, store, err := s.resolve(ctx)
	if err != nil {
		s.record(OpCreate, store, err)
		return nil, err
	}

	fav, err := repo.Create(ctx, recipeID, recipeName, imageURL)
	s.record(OpCreate, store, err)
	if err != nil {
		return nil, err
	}
	return fav, nil
}

// DeleteByRecipeID はrecipeIdに一致するお気に入りを削除し、削除したレコードを返す。
// 存在しない場合はmodel.ErrFavoriteNotFoundを返す。
func (s *Service) DeleteByRecipeID(ctx context.Context, recipeID string) (*model.Favorite, error) {
	repo, store, err := s.resolve(ctx)
	if err != nil {
		s.record(OpDelete, store, err)
		return nil, err
	}

	fav, err := repo.DeleteByRecipeID(ctx, recipeID)
	s.record(OpDelete, store, err)
	if err != nil {
		return nil, err
	}
	return fav, nil
}

// resolve は今回の呼び出しで使うストアとそのモード名を返す。
// 接続試行を待つ間にctxが終了した場合は、どちらのストアにも振り分けずにエラーを返す。
func (s *Service) resolve(ctx context.Context) (repository.FavoriteRepository, string, error) {
	conn := s.conns.Acquire(ctx)
	if conn.Err != nil {
		return nil, storePending, fmt.Errorf("ストアの選択前に処理が中断されました: %w", conn.Err)
	}
	if conn.Fallback() {
		return s.fallback, database.ModeFallback, nil
	}
	return s.durable(conn.DB), database.ModeDurable, nil
}

func (s *Service) record(op, store string, err error) {
	if err != nil && !isBusinessError(err) {
		s.logger.Error("favorite operation failed",
			slog.String("operation", op),
			slog.String("store", store),
			slog.String("error", err.Error()),
		)
	}
	if s.metrics == nil {
		return
	}
	s.metrics.RecordFavoriteOperation(op, store, resultLabel(err))
}

func isBusinessError(err error) bool {
	return errors.Is(err, model.ErrDuplicateFavorite) || errors.Is(err, model.ErrFavoriteNotFound)
}

func resultLabel(err error) string {
	switch {
	case err == nil:
		return metrics.ResultSuccess
	case errors.Is(err, model.ErrDuplicateFavorite):
		return metrics.ResultDuplicate
	case errors.Is(err, model.ErrFavoriteNotFound):
		return metrics.ResultNotFound
	default:
		return metrics.ResultError
	}
}
