package repository

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/hitoshi/recipebox/internal/model"
)

// MemoryFavoriteRepo はプロセス内メモリに保持するフォールバック用のお気に入りストア。
// 永続ストアが未設定または到達不能な場合に使用する。
//
// 所有者はアプリケーションの起動処理であり、1プロセスにつき1インスタンスを生成して
// favorite.Serviceに注入する。内容はプロセスの寿命の間だけ保持され、再起動で失われる。
//
// 要素は新しい順に並ぶ。検索と挿入はそれぞれ個別にロックされるが、
// Createの重複チェックと挿入は1つの不可分な操作ではない。同じrecipeIdへの同時Createは
// 両方とも重複チェックを通過しうる（既知の制約。単一プロセス・低並行度を前提とする）。
type MemoryFavoriteRepo struct {
	mu        sync.RWMutex
	favorites []model.Favorite
	lastID    int64
	now       func() time.Time
}

// NewMemoryFavoriteRepo は空のMemoryFavoriteRepoを生成する。
func NewMemoryFavoriteRepo() *MemoryFavoriteRepo {
	return &MemoryFavoriteRepo{now: time.Now}
}

// List は保持している全お気に入りのコピーを新しい順で返す。
func (r *MemoryFavoriteRepo) List(ctx context.Context) ([]model.Favorite, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]model.Favorite, len(r.favorites))
	copy(out, r.favorites)
	return out, nil
}

// Create は線形探索で重複を確認したのち、先頭に追加する。
func (r *MemoryFavoriteRepo) Create(ctx context.Context, recipeID, recipeName, imageURL string) (*model.Favorite, error) {
	if r.indexOf(recipeID) >= 0 {
		return nil, model.ErrDuplicateFavorite
	}

	now := r.now()
	fav := model.Favorite{
		RecipeID:   recipeID,
		RecipeName: recipeName,
		ImageURL:   imageURL,
		CreatedAt:  now,
	}

	r.mu.Lock()
	fav.ID = r.nextID(now)
	r.favorites = append([]model.Favorite{fav}, r.favorites...)
	r.mu.Unlock()

	return &fav, nil
}

// DeleteByRecipeID は線形探索で一致する要素を取り除く。
func (r *MemoryFavoriteRepo) DeleteByRecipeID(ctx context.Context, recipeID string) (*model.Favorite, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i, fav := range r.favorites {
		if fav.RecipeID == recipeID {
			r.favorites = append(r.favorites[:i:i], r.favorites[i+1:]...)
			return &fav, nil
		}
	}
	return nil, model.ErrFavoriteNotFound
}

// Len は保持しているお気に入りの件数を返す。
func (r *MemoryFavoriteRepo) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.favorites)
}

func (r *MemoryFavoriteRepo) indexOf(recipeID string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for i, fav := range r.favorites {
		if fav.RecipeID == recipeID {
			return i
		}
	}
	return -1
}

// nextID は現在時刻（ナノ秒）から単調増加するIDを生成する。r.muを保持して呼ぶこと。
func (r *MemoryFavoriteRepo) nextID(now time.Time) string {
	id := now.UnixNano()
	if id <= r.lastID {
		id = r.lastID + 1
	}
	r.lastID = id
	return strconv.FormatInt(id, 10)
}

// compile-time interface check
var _ FavoriteRepository = (*MemoryFavoriteRepo)(nil)
