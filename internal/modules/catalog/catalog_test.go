// README: Catalog tests (validation without a database, CRUD against Postgres when configured).
package catalog

import (
	"bufio"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"fooddash/internal/apperr"
	"fooddash/internal/types"
)

func validItem() *FoodItem {
	return &FoodItem{
		Name:                   "Margherita",
		Description:            "Tomato, mozzarella, basil",
		Price:                  1000,
		Category:               CategoryPizza,
		ImageURL:               "https://img.example/margherita.png",
		IsAvailable:            true,
		PreparationTimeMinutes: 12,
	}
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*FoodItem)
		want   string
	}{
		{"valid", func(*FoodItem) {}, ""},
		{"free item is fine", func(it *FoodItem) { it.Price = 0 }, ""},
		{"negative price", func(it *FoodItem) { it.Price = -1 }, "price cannot be negative"},
		{"zero prep time", func(it *FoodItem) { it.PreparationTimeMinutes = 0 }, "preparationTimeMinutes"},
		{"unknown category", func(it *FoodItem) { it.Category = "Tacos" }, "category"},
		{"missing name", func(it *FoodItem) { it.Name = "" }, "name is required"},
		{"missing image", func(it *FoodItem) { it.ImageURL = " " }, "imageUrl is required"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			it := validItem()
			tc.mutate(it)
			err := Validate(it)
			if tc.want == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if !errors.Is(err, ErrValidation) {
				t.Fatalf("expected ErrValidation, got %v", err)
			}
			if apperr.KindOf(err) != apperr.KindValidation {
				t.Fatalf("kind = %s", apperr.KindOf(err))
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("error %q does not mention %q", err, tc.want)
			}
		})
	}
}

func TestCreateRejectsInvalidBeforeStore(t *testing.T) {
	svc := NewService(nil)
	_, err := svc.Create(context.Background(), CreateCommand{Name: "x", Price: -5})
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}

func TestListRejectsUnknownCategory(t *testing.T) {
	svc := NewService(nil)
	cat := Category("Tacos")
	if _, err := svc.List(context.Background(), Filter{Category: &cat}); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}

func TestKeyByRequestedMatchesAnySpelling(t *testing.T) {
	id := uuid.New()
	items := []FoodItem{{ID: id.String(), Name: "Pepperoni"}}
	ids := []string{
		id.String(),
		strings.ToUpper(id.String()),
		"{" + id.String() + "}",
		"urn:uuid:" + id.String(),
		uuid.NewString(),
		"not-a-uuid",
	}
	got := keyByRequested(ids, items)
	if len(got) != 4 {
		t.Fatalf("expected 4 matches, got %+v", got)
	}
	for _, req := range ids[:4] {
		if got[req].ID != id.String() {
			t.Errorf("%q not resolved: %+v", req, got[req])
		}
	}
}

func TestCatalogCRUD(t *testing.T) {
	svc := NewService(setupTestStore(t))
	ctx := context.Background()

	pizza := mustCreateItem(t, svc, "Pepperoni", CategoryPizza, 1250, true)
	mustCreateItem(t, svc, "Cola", CategoryDrink, 250, false)

	got, err := svc.Get(ctx, pizza.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Price != 1250 || got.Category != CategoryPizza {
		t.Fatalf("unexpected item %+v", got)
	}

	available := true
	list, err := svc.List(ctx, Filter{Available: &available})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 1 || list[0].ID != pizza.ID {
		t.Fatalf("available filter returned %+v", list)
	}

	newPrice := types.Money(1400)
	updated, err := svc.Update(ctx, UpdateCommand{ID: pizza.ID, Price: &newPrice})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Price != 1400 || updated.Name != "Pepperoni" {
		t.Fatalf("partial update lost fields: %+v", updated)
	}

	upper := strings.ToUpper(pizza.ID)
	found, err := svc.LookupMany(ctx, []string{pizza.ID, upper, uuid.NewString(), "not-a-uuid"})
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if len(found) != 2 || found[pizza.ID].Price != 1400 || found[upper].ID != pizza.ID {
		t.Fatalf("lookup returned %+v", found)
	}

	menu, err := svc.CreateMenu(ctx, CreateMenuCommand{Name: "Lunch", ItemIDs: []string{pizza.ID}})
	if err != nil {
		t.Fatalf("create menu: %v", err)
	}
	menus, err := svc.ListMenus(ctx)
	if err != nil {
		t.Fatalf("list menus: %v", err)
	}
	if len(menus) != 1 || menus[0].ID != menu.ID || len(menus[0].Items) != 1 {
		t.Fatalf("menus = %+v", menus)
	}

	if err := svc.Delete(ctx, pizza.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := svc.Get(ctx, pizza.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
	if err := svc.Delete(ctx, pizza.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("second delete: expected ErrNotFound, got %v", err)
	}
}

func mustCreateItem(t *testing.T, svc *Service, name string, cat Category, price types.Money, available bool) *FoodItem {
	t.Helper()
	it, err := svc.Create(context.Background(), CreateCommand{
		Name:                   name,
		Description:            name + " description",
		Price:                  price,
		Category:               cat,
		ImageURL:               "https://img.example/" + strings.ToLower(name) + ".png",
		IsAvailable:            &available,
		PreparationTimeMinutes: 10,
	})
	if err != nil {
		t.Fatalf("create %s: %v", name, err)
	}
	return it
}

func setupTestStore(t *testing.T) *Store {
	t.Helper()

	dsn := os.Getenv("FOODDASH_TEST_DSN")
	if dsn == "" {
		t.Skip("FOODDASH_TEST_DSN not set; skipping DB-backed catalog tests")
	}

	ctx := context.Background()
	db, err := pgxpool.New(ctx, dsn)
	if err != nil {
		t.Fatalf("connect db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := applyMigrations(ctx, db); err != nil {
		t.Fatalf("apply migration: %v", err)
	}
	if _, err := db.Exec(ctx, "TRUNCATE TABLE menu_items, menus, food_items"); err != nil {
		t.Fatalf("truncate tables: %v", err)
	}
	return NewStore(db)
}

func applyMigrations(ctx context.Context, db *pgxpool.Pool) error {
	root, err := repoRoot()
	if err != nil {
		return err
	}
	paths, err := filepath.Glob(filepath.Join(root, "migrations", "*.sql"))
	if err != nil {
		return err
	}
	for _, path := range paths {
		content, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		for _, stmt := range splitSQL(stripSQLComments(string(content))) {
			if _, err := db.Exec(ctx, stmt); err != nil {
				return err
			}
		}
	}
	return nil
}

func repoRoot() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}
	for i := 0; i < 6; i++ {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return "", os.ErrNotExist
}

func stripSQLComments(input string) string {
	var b strings.Builder
	scanner := bufio.NewScanner(strings.NewReader(input))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "--") {
			continue
		}
		b.WriteString(scanner.Text())
		b.WriteString("\n")
	}
	return b.String()
}

func splitSQL(input string) []string {
	parts := strings.Split(input, ";")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		stmt := strings.TrimSpace(p)
		if stmt == "" {
			continue
		}
		out = append(out, stmt)
	}
	return out
}
