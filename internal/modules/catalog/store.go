// README: Catalog store backed by PostgreSQL.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"fooddash/internal/types"
)

type Store struct {
	db *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

const foodItemColumns = `id, name, description, price_cents, category, image_url,
       is_available, preparation_minutes, created_at, updated_at`

func (s *Store) Create(ctx context.Context, it *FoodItem) error {
	id, err := uuid.Parse(it.ID)
	if err != nil {
		return fmt.Errorf("food item id: %w", err)
	}
	_, err = s.db.Exec(ctx, `
        INSERT INTO food_items (
            id, name, description, price_cents, category, image_url,
            is_available, preparation_minutes, created_at, updated_at
        ) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		id, it.Name, it.Description, int64(it.Price), string(it.Category), it.ImageURL,
		it.IsAvailable, it.PreparationTimeMinutes, it.CreatedAt, it.UpdatedAt,
	)
	return err
}

func (s *Store) Get(ctx context.Context, id string) (*FoodItem, error) {
	uid, err := uuid.Parse(id)
	if err != nil {
		return nil, ErrNotFound
	}
	row := s.db.QueryRow(ctx, `SELECT `+foodItemColumns+` FROM food_items WHERE id = $1`, uid)
	it, err := scanFoodItem(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return it, nil
}

func (s *Store) List(ctx context.Context, f Filter) ([]FoodItem, error) {
	var (
		where []string
		args  []any
	)
	if f.Category != nil {
		args = append(args, string(*f.Category))
		where = append(where, fmt.Sprintf("category = $%d", len(args)))
	}
	if f.Available != nil {
		args = append(args, *f.Available)
		where = append(where, fmt.Sprintf("is_available = $%d", len(args)))
	}
	q := `SELECT ` + foodItemColumns + ` FROM food_items`
	if len(where) > 0 {
		q += ` WHERE ` + strings.Join(where, " AND ")
	}
	q += ` ORDER BY category, name`

	rows, err := s.db.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectFoodItems(rows)
}

// LookupMany returns the items that exist among ids, keyed by the id exactly
// as the caller spelled it. Malformed ids are simply absent from the result.
func (s *Store) LookupMany(ctx context.Context, ids []string) (map[string]FoodItem, error) {
	parsed := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if u, err := uuid.Parse(id); err == nil {
			parsed = append(parsed, u)
		}
	}
	if len(parsed) == 0 {
		return map[string]FoodItem{}, nil
	}
	rows, err := s.db.Query(ctx, `SELECT `+foodItemColumns+` FROM food_items WHERE id = ANY($1)`, parsed)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items, err := collectFoodItems(rows)
	if err != nil {
		return nil, err
	}
	return keyByRequested(ids, items), nil
}

// keyByRequested maps each requested id to its item. uuid.Parse accepts
// uppercase, braced and urn forms, so rows are matched on the canonical id.
func keyByRequested(ids []string, items []FoodItem) map[string]FoodItem {
	byID := make(map[string]FoodItem, len(items))
	for _, it := range items {
		byID[it.ID] = it
	}
	out := make(map[string]FoodItem, len(ids))
	for _, id := range ids {
		u, err := uuid.Parse(id)
		if err != nil {
			continue
		}
		if it, ok := byID[u.String()]; ok {
			out[id] = it
		}
	}
	return out
}

func (s *Store) Update(ctx context.Context, it *FoodItem) error {
	id, err := uuid.Parse(it.ID)
	if err != nil {
		return ErrNotFound
	}
	tag, err := s.db.Exec(ctx, `
        UPDATE food_items
        SET name = $2, description = $3, price_cents = $4, category = $5,
            image_url = $6, is_available = $7, preparation_minutes = $8, updated_at = $9
        WHERE id = $1`,
		id, it.Name, it.Description, int64(it.Price), string(it.Category),
		it.ImageURL, it.IsAvailable, it.PreparationTimeMinutes, it.UpdatedAt,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, id string) error {
	uid, err := uuid.Parse(id)
	if err != nil {
		return ErrNotFound
	}
	tag, err := s.db.Exec(ctx, `DELETE FROM food_items WHERE id = $1`, uid)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ListMenus returns every menu with its items in position order.
func (s *Store) ListMenus(ctx context.Context) ([]Menu, error) {
	rows, err := s.db.Query(ctx, `
        SELECT m.id, m.name, m.description,
               f.id, f.name, f.description, f.price_cents, f.category, f.image_url,
               f.is_available, f.preparation_minutes, f.created_at, f.updated_at
        FROM menus m
        LEFT JOIN menu_items mi ON mi.menu_id = m.id
        LEFT JOIN food_items f ON f.id = mi.food_item_id
        ORDER BY m.name, m.id, mi.position`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var menus []Menu
	index := map[uuid.UUID]int{}
	for rows.Next() {
		var (
			menuID               uuid.UUID
			menuName, menuDesc   string
			itemID               *uuid.UUID
			name, desc, cat, img *string
			price                *int64
			available            *bool
			prep                 *int
			createdAt, updatedAt *time.Time
		)
		if err := rows.Scan(&menuID, &menuName, &menuDesc,
			&itemID, &name, &desc, &price, &cat, &img, &available, &prep, &createdAt, &updatedAt); err != nil {
			return nil, err
		}
		i, ok := index[menuID]
		if !ok {
			menus = append(menus, Menu{ID: menuID.String(), Name: menuName, Description: menuDesc, Items: []FoodItem{}})
			i = len(menus) - 1
			index[menuID] = i
		}
		if itemID == nil {
			continue
		}
		menus[i].Items = append(menus[i].Items, FoodItem{
			ID:                     itemID.String(),
			Name:                   *name,
			Description:            *desc,
			Price:                  types.Money(*price),
			Category:               Category(*cat),
			ImageURL:               *img,
			IsAvailable:            *available,
			PreparationTimeMinutes: *prep,
			CreatedAt:              *createdAt,
			UpdatedAt:              *updatedAt,
		})
	}
	return menus, rows.Err()
}

func (s *Store) CreateMenu(ctx context.Context, m *Menu) error {
	menuID, err := uuid.Parse(m.ID)
	if err != nil {
		return fmt.Errorf("menu id: %w", err)
	}
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `INSERT INTO menus (id, name, description) VALUES ($1, $2, $3)`,
		menuID, m.Name, m.Description); err != nil {
		return err
	}
	for pos, it := range m.Items {
		itemID, err := uuid.Parse(it.ID)
		if err != nil {
			return ErrNotFound
		}
		if _, err := tx.Exec(ctx, `INSERT INTO menu_items (menu_id, food_item_id, position) VALUES ($1, $2, $3)`,
			menuID, itemID, pos); err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}

func scanFoodItem(row pgx.Row) (*FoodItem, error) {
	var (
		it    FoodItem
		id    uuid.UUID
		price int64
		cat   string
	)
	if err := row.Scan(&id, &it.Name, &it.Description, &price, &cat, &it.ImageURL,
		&it.IsAvailable, &it.PreparationTimeMinutes, &it.CreatedAt, &it.UpdatedAt); err != nil {
		return nil, err
	}
	it.ID = id.String()
	it.Price = types.Money(price)
	it.Category = Category(cat)
	return &it, nil
}

func collectFoodItems(rows pgx.Rows) ([]FoodItem, error) {
	items := []FoodItem{}
	for rows.Next() {
		it, err := scanFoodItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *it)
	}
	return items, rows.Err()
}
