package repository

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/hitoshi/recipebox/internal/model"
	"github.com/lib/pq"
)

func TestPostgresFavoriteRepo_ImplementsInterface(t *testing.T) {
	var _ FavoriteRepository = (*PostgresFavoriteRepo)(nil)
}

func newMockRepo(t *testing.T) (*PostgresFavoriteRepo, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New returned error: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewPostgresFavoriteRepo(db), mock
}

var favoriteColumns = []string{"id", "recipe_id", "recipe_name", "image_url", "created_at"}

func TestPostgresFavoriteRepo_List_OrdersByCreatedAtDesc(t *testing.T) {
	repo, mock := newMockRepo(t)
	newer := time.Date(2024, 5, 2, 0, 0, 0, 0, time.UTC)
	older := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery(regexp.QuoteMeta("FROM favorites ORDER BY created_at DESC")).
		WillReturnRows(sqlmock.NewRows(favoriteColumns).
			AddRow("id-2", "B", "Recipe B", "b.jpg", newer).
			AddRow("id-1", "A", "Recipe A", "a.jpg", older))

	favs, err := repo.List(context.Background())
	if err != nil {
		t.Fatalf("List returned error: %v", err)
	}
	if len(favs) != 2 || favs[0].RecipeID != "B" || favs[1].RecipeID != "A" {
		t.Errorf("List() = %+v, want [B, A]", favs)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestPostgresFavoriteRepo_List_EmptyIsNonNil(t *testing.T) {
	repo, mock := newMockRepo(t)
	mock.ExpectQuery(regexp.QuoteMeta("FROM favorites")).
		WillReturnRows(sqlmock.NewRows(favoriteColumns))

	favs, err := repo.List(context.Background())
	if err != nil {
		t.Fatalf("List returned error: %v", err)
	}
	if favs == nil {
		t.Error("List() should return empty non-nil slice")
	}
}

func TestPostgresFavoriteRepo_List_QueryError(t *testing.T) {
	repo, mock := newMockRepo(t)
	mock.ExpectQuery(regexp.QuoteMeta("FROM favorites")).
		WillReturnError(errors.New("connection reset"))

	if _, err := repo.List(context.Background()); err == nil {
		t.Fatal("expected error, got nil")
	}
}

func TestPostgresFavoriteRepo_Create_Success(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT EXISTS (SELECT 1 FROM favorites WHERE recipe_id = $1)")).
		WithArgs("52772").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO favorites (id, recipe_id, recipe_name, image_url, created_at)")).
		WithArgs(sqlmock.AnyArg(), "52772", "Teriyaki Chicken", "https://example/thumb.jpg", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	fav, err := repo.Create(context.Background(), "52772", "Teriyaki Chicken", "https://example/thumb.jpg")
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}
	if fav.ID == "" {
		t.Error("expected storage-assigned id")
	}
	if fav.RecipeID != "52772" || fav.RecipeName != "Teriyaki Chicken" || fav.ImageURL != "https://example/thumb.jpg" {
		t.Errorf("Create() = %+v, fields not preserved", fav)
	}
	if fav.CreatedAt.IsZero() {
		t.Error("expected CreatedAt to be set")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestPostgresFavoriteRepo_Create_ExistingReturnsDuplicate(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT EXISTS")).
		WithArgs("52772").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	_, err := repo.Create(context.Background(), "52772", "Teriyaki Chicken", "https://example/thumb.jpg")
	if !errors.Is(err, model.ErrDuplicateFavorite) {
		t.Fatalf("error = %v, want ErrDuplicateFavorite", err)
	}
	// INSERTは実行されない
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

// TestPostgresFavoriteRepo_Create_UniqueViolationReturnsDuplicate は
// 確認後に競合した挿入が一意制約違反で弾かれた場合も重複として扱うことを検証する。
func TestPostgresFavoriteRepo_Create_UniqueViolationReturnsDuplicate(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT EXISTS")).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO favorites")).
		WillReturnError(&pq.Error{Code: "23505", Message: "duplicate key value violates unique constraint"})

	_, err := repo.Create(context.Background(), "52772", "Teriyaki Chicken", "https://example/thumb.jpg")
	if !errors.Is(err, model.ErrDuplicateFavorite) {
		t.Fatalf("error = %v, want ErrDuplicateFavorite", err)
	}
}

func TestPostgresFavoriteRepo_Create_InsertError(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT EXISTS")).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO favorites")).
		WillReturnError(errors.New("disk full"))

	_, err := repo.Create(context.Background(), "52772", "Teriyaki Chicken", "https://example/thumb.jpg")
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if errors.Is(err, model.ErrDuplicateFavorite) {
		t.Error("generic insert error must not be reported as duplicate")
	}
}

func TestPostgresFavoriteRepo_DeleteByRecipeID_Success(t *testing.T) {
	repo, mock := newMockRepo(t)
	created := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery(regexp.QuoteMeta("DELETE FROM favorites WHERE recipe_id = $1")).
		WithArgs("52772").
		WillReturnRows(sqlmock.NewRows(favoriteColumns).
			AddRow("id-1", "52772", "Teriyaki Chicken", "https://example/thumb.jpg", created))

	fav, err := repo.DeleteByRecipeID(context.Background(), "52772")
	if err != nil {
		t.Fatalf("DeleteByRecipeID returned error: %v", err)
	}
	if fav.ID != "id-1" || fav.RecipeID != "52772" {
		t.Errorf("DeleteByRecipeID() = %+v", fav)
	}
}

func TestPostgresFavoriteRepo_DeleteByRecipeID_NotFound(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectQuery(regexp.QuoteMeta("DELETE FROM favorites")).
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.DeleteByRecipeID(context.Background(), "missing")
	if !errors.Is(err, model.ErrFavoriteNotFound) {
		t.Fatalf("error = %v, want ErrFavoriteNotFound", err)
	}
}

func TestIsUniqueViolation(t *testing.T) {
	if !isUniqueViolation(&pq.Error{Code: "23505"}) {
		t.Error("23505 should be a unique violation")
	}
	if isUniqueViolation(&pq.Error{Code: "23503"}) {
		t.Error("23503 should not be a unique violation")
	}
	if isUniqueViolation(errors.New("plain")) {
		t.Error("plain error should not be a unique violation")
	}
}
