package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hitoshi/recipebox/internal/model"
	"github.com/lib/pq"
)

// pgUniqueViolation はPostgreSQLの一意制約違反のSQLSTATE。
const pgUniqueViolation = "23505"

// PostgresFavoriteRepo はPostgreSQLを使用したお気に入りリポジトリ。
// recipe_idの一意性はfavorites_recipe_id_unique制約でも保証される。
type PostgresFavoriteRepo struct {
	db *sql.DB
}

// NewPostgresFavoriteRepo はPostgresFavoriteRepoを生成する。
func NewPostgresFavoriteRepo(db *sql.DB) *PostgresFavoriteRepo {
	return &PostgresFavoriteRepo{db: db}
}

// List は全お気に入りをcreated_at降順で返す。
func (r *PostgresFavoriteRepo) List(ctx context.Context) ([]model.Favorite, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, recipe_id, recipe_name, image_url, created_at
		 FROM favorites ORDER BY created_at DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("お気に入り一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	favorites := make([]model.Favorite, 0)
	for rows.Next() {
		var fav model.Favorite
		if err := rows.Scan(&fav.ID, &fav.RecipeID, &fav.RecipeName, &fav.ImageURL, &fav.CreatedAt); err != nil {
			return nil, fmt.Errorf("お気に入りの読み取りに失敗しました: %w", err)
		}
		favorites = append(favorites, fav)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("お気に入り一覧の走査に失敗しました: %w", err)
	}

	return favorites, nil
}

// Create は重複を確認したうえでお気に入りを挿入する。
// 確認と挿入の間に別リクエストが挿入した場合は一意制約違反となり、
// それもmodel.ErrDuplicateFavoriteとして返す。
func (r *PostgresFavoriteRepo) Create(ctx context.Context, recipeID, recipeName, imageURL string) (*model.Favorite, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM favorites WHERE recipe_id = $1)`,
		recipeID,
	).Scan(&exists)
	if err != nil {
		return nil, fmt.Errorf("お気に入りの存在確認に失敗しました: %w", err)
	}
	if exists {
		return nil, model.ErrDuplicateFavorite
	}

	fav := &model.Favorite{
		ID:         uuid.New().String(),
		RecipeID:   recipeID,
		RecipeName: recipeName,
		ImageURL:   imageURL,
		CreatedAt:  time.Now().UTC(),
	}

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO favorites (id, recipe_id, recipe_name, image_url, created_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		fav.ID, fav.RecipeID, fav.RecipeName, fav.ImageURL, fav.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, model.ErrDuplicateFavorite
		}
		return nil, fmt.Errorf("お気に入りの作成に失敗しました: %w", err)
	}

	return fav, nil
}

// DeleteByRecipeID はDELETE ... RETURNINGで検索と削除を1文で行う。
func (r *PostgresFavoriteRepo) DeleteByRecipeID(ctx context.Context, recipeID string) (*model.Favorite, error) {
	fav := &model.Favorite{}
	err := r.db.QueryRowContext(ctx,
		`DELETE FROM favorites WHERE recipe_id = $1
		 RETURNING id, recipe_id, recipe_name, image_url, created_at`,
		recipeID,
	).Scan(&fav.ID, &fav.RecipeID, &fav.RecipeName, &fav.ImageURL, &fav.CreatedAt)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, model.ErrFavoriteNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("お気に入りの削除に失敗しました: %w", err)
	}

	return fav, nil
}

// isUniqueViolation はエラーが一意制約違反かを判定する。
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && string(pqErr.Code) == pgUniqueViolation
}

// compile-time interface check
var _ FavoriteRepository = (*PostgresFavoriteRepo)(nil)
