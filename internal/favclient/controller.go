// Package favclient はお気に入りAPIのクライアント側コントローラーを提供する。
//
// Controllerはサーバー上のお気に入り一覧のミラーを保持し、
// 楽観的更新（失敗時はロールバック）でお気に入りの切り替えを行う。
// ミラーは表示用の写しであり、正はあくまでサーバー側のストアである。
package favclient

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/hitoshi/recipebox/internal/model"
)

// State はコントローラーの読み込み状態。
type State int

const (
	// StateLoading は初回の一覧取得が完了していない状態。
	StateLoading State = iota
	// StateReady は一覧取得が完了した状態（失敗して空になった場合を含む）。
	StateReady
)

// String は状態名を返す。
func (s State) String() string {
	if s == StateReady {
		return "ready"
	}
	return "loading"
}

// FavoritesAPI はコントローラーが利用するお気に入りAPI。HTTPClientが実装する。
// いずれの操作も失敗時はエラーを返す。
type FavoritesAPI interface {
	List(ctx context.Context) ([]model.Favorite, error)
	Add(ctx context.Context, recipeID, recipeName, imageURL string) (*model.Favorite, error)
	Remove(ctx context.Context, recipeID string) (*model.Favorite, error)
}

// Controller はお気に入り一覧のミラーを保持する。
// ミラーはRWMutexで保護し、ネットワーク呼び出しはロックの外で行う。
type Controller struct {
	api    FavoritesAPI
	logger *slog.Logger
	now    func() time.Time

	mu        sync.RWMutex
	state     State
	favorites []model.Favorite
}

// NewController は読み込み中状態のControllerを生成する。Loadを呼ぶまでミラーは空。
func NewController(api FavoritesAPI, logger *slog.Logger) *Controller {
	if logger == nil {
		logger = slog.Default()
	}
	return &Controller{
		api:    api,
		logger: logger,
		now:    time.Now,
		state:  StateLoading,
	}
}

// Load は一覧を取得してミラーを置き換え、準備完了状態にする。
// 取得に失敗した場合はミラーを空にする。
func (c *Controller) Load(ctx context.Context) {
	favs, err := c.api.List(ctx)
	if err != nil {
		c.logger.Error("failed to load favorites", slog.String("error", err.Error()))
		favs = nil
	}

	c.mu.Lock()
	c.favorites = append([]model.Favorite(nil), favs...)
	c.state = StateReady
	c.mu.Unlock()
}

// Refetch は一覧を再取得してミラーを丸ごと置き換える。失敗時の扱いはLoadと同じ。
func (c *Controller) Refetch(ctx context.Context) {
	c.Load(ctx)
}

// State は現在の読み込み状態を返す。
func (c *Controller) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// Favorites はミラーのコピーを返す。
func (c *Controller) Favorites() []model.Favorite {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]model.Favorite, len(c.favorites))
	copy(out, c.favorites)
	return out
}

// IsFavorite はミラーにrecipeIDが含まれるかを返す。
func (c *Controller) IsFavorite(recipeID string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.indexOf(recipeID) >= 0
}

// ToggleFavorite はお気に入り状態を楽観的に切り替える。
// 先にミラーを更新し、バックエンドの呼び出しが失敗した場合は切り替え前の状態に戻す。
// 成功したかどうかを返す。
func (c *Controller) ToggleFavorite(ctx context.Context, recipe model.Recipe) bool {
	cmd := c.apply(recipe)

	var (
		confirmed *model.Favorite
		err       error
	)
	if cmd.wasFavorite {
		_, err = c.api.Remove(ctx, cmd.recipeID)
	} else {
		confirmed, err = c.api.Add(ctx, cmd.recipeID, cmd.tentative.RecipeName, cmd.tentative.ImageURL)
	}

	if err != nil {
		c.logger.Warn("favorite toggle failed, rolling back",
			slog.String("recipe_id", cmd.recipeID),
			slog.Bool("was_favorite", cmd.wasFavorite),
			slog.String("error", err.Error()),
		)
		c.compensate(cmd)
		return false
	}

	if confirmed != nil {
		c.confirm(cmd, *confirmed)
	}
	return true
}

// AddFavorite はバックエンドへの追加が成功した場合のみミラーの先頭に追加する。
func (c *Controller) AddFavorite(ctx context.Context, recipe model.Recipe) bool {
	recipeID, recipeName, imageURL := recipe.FavoriteFields()

	fav, err := c.api.Add(ctx, recipeID, recipeName, imageURL)
	if err != nil {
		c.logger.Warn("failed to add favorite",
			slog.String("recipe_id", recipeID),
			slog.String("error", err.Error()),
		)
		return false
	}

	c.mu.Lock()
	if c.indexOf(recipeID) < 0 {
		c.favorites = append([]model.Favorite{*fav}, c.favorites...)
	}
	c.mu.Unlock()
	return true
}

// RemoveFavorite はバックエンドからの削除が成功した場合のみミラーから取り除く。
func (c *Controller) RemoveFavorite(ctx context.Context, recipeID string) bool {
	if _, err := c.api.Remove(ctx, recipeID); err != nil {
		c.logger.Warn("failed to remove favorite",
			slog.String("recipe_id", recipeID),
			slog.String("error", err.Error()),
		)
		return false
	}

	c.mu.Lock()
	c.removeAt(c.indexOf(recipeID))
	c.mu.Unlock()
	return true
}

// toggleCommand は1回の切り替えで行ったミラー操作を記録する。
type toggleCommand struct {
	recipeID    string
	wasFavorite bool

	// wasFavoriteの場合: 取り除いたレコードと元の位置
	removed      model.Favorite
	removedIndex int

	// !wasFavoriteの場合: 仮に先頭へ追加したレコード
	tentative model.Favorite
}

// apply は切り替え前の所属を判定し、ミラーを仮更新する。
func (c *Controller) apply(recipe model.Recipe) toggleCommand {
	recipeID, recipeName, imageURL := recipe.FavoriteFields()

	c.mu.Lock()
	defer c.mu.Unlock()

	cmd := toggleCommand{recipeID: recipeID}
	if idx := c.indexOf(recipeID); idx >= 0 {
		cmd.wasFavorite = true
		cmd.removed = c.favorites[idx]
		cmd.removedIndex = idx
		c.removeAt(idx)
		return cmd
	}

	cmd.tentative = model.Favorite{
		RecipeID:   recipeID,
		RecipeName: recipeName,
		ImageURL:   imageURL,
		CreatedAt:  c.now(),
	}
	c.favorites = append([]model.Favorite{cmd.tentative}, c.favorites...)
	return cmd
}

// compensate はapplyで行ったミラー操作を取り消す。
// 取り除いたレコードは先頭ではなく元の位置に戻し、ミラーを切り替え前と同じ並びにする
// （先頭に戻す実装とは意図的に異なる）。その間に同じrecipeIdが追加されていれば何もしない。
func (c *Controller) compensate(cmd toggleCommand) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !cmd.wasFavorite {
		c.removeAt(c.indexOf(cmd.recipeID))
		return
	}

	if c.indexOf(cmd.recipeID) >= 0 {
		return
	}
	idx := cmd.removedIndex
	if idx > len(c.favorites) {
		idx = len(c.favorites)
	}
	c.favorites = append(c.favorites, model.Favorite{})
	copy(c.favorites[idx+1:], c.favorites[idx:])
	c.favorites[idx] = cmd.removed
}

// confirm は仮のレコードをサーバーが返したレコードで置き換える。
func (c *Controller) confirm(cmd toggleCommand, fav model.Favorite) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if idx := c.indexOf(cmd.recipeID); idx >= 0 {
		c.favorites[idx] = fav
	}
}

// indexOf はc.muを保持して呼ぶこと。
func (c *Controller) indexOf(recipeID string) int {
	for i, fav := range c.favorites {
		if fav.RecipeID == recipeID {
			return i
		}
	}
	return -1
}

// removeAt はc.muを保持して呼ぶこと。idxが負の場合は何もしない。
func (c *Controller) removeAt(idx int) {
	if idx < 0 {
		return
	}
	c.favorites = append(c.favorites[:idx:idx], c.favorites[idx+1:]...)
}
