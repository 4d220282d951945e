package repository

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/hitoshi/recipebox/internal/model"
)

func TestMemoryFavoriteRepo_ImplementsInterface(t *testing.T) {
	var _ FavoriteRepository = (*MemoryFavoriteRepo)(nil)
}

func TestMemoryFavoriteRepo_List_EmptyIsNonNil(t *testing.T) {
	repo := NewMemoryFavoriteRepo()

	favs, err := repo.List(context.Background())
	if err != nil {
		t.Fatalf("List returned error: %v", err)
	}
	if favs == nil || len(favs) != 0 {
		t.Errorf("List() = %v, want empty non-nil slice", favs)
	}
}

// TestMemoryFavoriteRepo_List_NewestFirst はA→B→Cの順に作成するとC,B,Aの順で返ることを検証する。
func TestMemoryFavoriteRepo_List_NewestFirst(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryFavoriteRepo()

	for _, id := range []string{"A", "B", "C"} {
		if _, err := repo.Create(ctx, id, "Recipe "+id, "https://example/"+id+".jpg"); err != nil {
			t.Fatalf("Create(%s) returned error: %v", id, err)
		}
	}

	favs, err := repo.List(ctx)
	if err != nil {
		t.Fatalf("List returned error: %v", err)
	}

	want := []string{"C", "B", "A"}
	if len(favs) != len(want) {
		t.Fatalf("len(List()) = %d, want %d", len(favs), len(want))
	}
	for i, id := range want {
		if favs[i].RecipeID != id {
			t.Errorf("List()[%d].RecipeID = %q, want %q", i, favs[i].RecipeID, id)
		}
	}
}

func TestMemoryFavoriteRepo_Create_Duplicate(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryFavoriteRepo()

	if _, err := repo.Create(ctx, "52772", "Teriyaki Chicken", "https://example/thumb.jpg"); err != nil {
		t.Fatalf("first Create returned error: %v", err)
	}

	_, err := repo.Create(ctx, "52772", "Other Name", "https://example/other.jpg")
	if !errors.Is(err, model.ErrDuplicateFavorite) {
		t.Fatalf("second Create error = %v, want ErrDuplicateFavorite", err)
	}

	// ストアは変化しない
	favs, _ := repo.List(ctx)
	if len(favs) != 1 {
		t.Fatalf("len(List()) = %d, want 1", len(favs))
	}
	if favs[0].RecipeName != "Teriyaki Chicken" {
		t.Errorf("RecipeName = %q, want original value", favs[0].RecipeName)
	}
}

func TestMemoryFavoriteRepo_Create_PreservesFields(t *testing.T) {
	repo := NewMemoryFavoriteRepo()
	fixed := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	repo.now = func() time.Time { return fixed }

	fav, err := repo.Create(context.Background(), "52772", "Teriyaki Chicken", "https://example/thumb.jpg")
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}

	if fav.RecipeID != "52772" || fav.RecipeName != "Teriyaki Chicken" || fav.ImageURL != "https://example/thumb.jpg" {
		t.Errorf("Create() = %+v, fields not preserved", fav)
	}
	if !fav.CreatedAt.Equal(fixed) {
		t.Errorf("CreatedAt = %v, want %v", fav.CreatedAt, fixed)
	}
	if fav.ID != strconv.FormatInt(fixed.UnixNano(), 10) {
		t.Errorf("ID = %q, want time-derived id", fav.ID)
	}
}

// TestMemoryFavoriteRepo_IDsAreMonotonic は同一時刻に作成されても
// IDが単調増加することを検証する。
func TestMemoryFavoriteRepo_IDsAreMonotonic(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryFavoriteRepo()
	fixed := time.Unix(1700000000, 0)
	repo.now = func() time.Time { return fixed }

	a, _ := repo.Create(ctx, "A", "A", "a")
	b, _ := repo.Create(ctx, "B", "B", "b")

	idA, _ := strconv.ParseInt(a.ID, 10, 64)
	idB, _ := strconv.ParseInt(b.ID, 10, 64)
	if idB <= idA {
		t.Errorf("ids not increasing: %d then %d", idA, idB)
	}
}

func TestMemoryFavoriteRepo_DeleteByRecipeID(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryFavoriteRepo()

	repo.Create(ctx, "A", "Recipe A", "a.jpg")
	repo.Create(ctx, "B", "Recipe B", "b.jpg")
	repo.Create(ctx, "C", "Recipe C", "c.jpg")

	deleted, err := repo.DeleteByRecipeID(ctx, "B")
	if err != nil {
		t.Fatalf("DeleteByRecipeID returned error: %v", err)
	}
	if deleted.RecipeID != "B" || deleted.RecipeName != "Recipe B" {
		t.Errorf("deleted = %+v, want recipe B", deleted)
	}

	favs, _ := repo.List(ctx)
	if len(favs) != 2 || favs[0].RecipeID != "C" || favs[1].RecipeID != "A" {
		t.Errorf("List() after delete = %+v, want [C, A]", favs)
	}
}

func TestMemoryFavoriteRepo_DeleteByRecipeID_NotFound(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryFavoriteRepo()
	repo.Create(ctx, "A", "Recipe A", "a.jpg")

	_, err := repo.DeleteByRecipeID(ctx, "missing")
	if !errors.Is(err, model.ErrFavoriteNotFound) {
		t.Fatalf("error = %v, want ErrFavoriteNotFound", err)
	}
	if repo.Len() != 1 {
		t.Errorf("Len() = %d, want 1 (store unchanged)", repo.Len())
	}
}

// TestMemoryFavoriteRepo_List_ReturnsCopy は返却スライスへの変更がストアに影響しないことを検証する。
func TestMemoryFavoriteRepo_List_ReturnsCopy(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryFavoriteRepo()
	repo.Create(ctx, "A", "Recipe A", "a.jpg")

	favs, _ := repo.List(ctx)
	favs[0].RecipeName = "mutated"

	again, _ := repo.List(ctx)
	if again[0].RecipeName != "Recipe A" {
		t.Errorf("store was mutated through List() result")
	}
}

// TestMemoryFavoriteRepo_ConcurrentDistinctRecipes は異なるrecipeIdへの並行操作が
// 取りこぼしなく反映されることを検証する（go test -race 前提）。
func TestMemoryFavoriteRepo_ConcurrentDistinctRecipes(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryFavoriteRepo()

	const n = 50
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func(i int) {
			defer wg.Done()
			id := strconv.Itoa(i)
			if _, err := repo.Create(ctx, id, "Recipe "+id, id+".jpg"); err != nil {
				t.Errorf("Create(%s) returned error: %v", id, err)
			}
			repo.List(ctx)
		}(i)
	}
	wg.Wait()

	if repo.Len() != n {
		t.Errorf("Len() = %d, want %d", repo.Len(), n)
	}
}
