// README: Catalog service validates and persists food items and menus.
package catalog

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"fooddash/internal/apperr"
	"fooddash/internal/types"
)

var (
	ErrNotFound   = apperr.New(apperr.KindNotFound, "food item not found")
	ErrValidation = apperr.New(apperr.KindValidation, "validation failed")
)

type Service struct {
	store *Store
	now   func() time.Time
}

func NewService(store *Store) *Service {
	return &Service{store: store, now: time.Now}
}

type CreateCommand struct {
	Name                   string
	Description            string
	Price                  types.Money
	Category               Category
	ImageURL               string
	IsAvailable            *bool
	PreparationTimeMinutes int
}

// UpdateCommand carries only the fields the caller supplied.
type UpdateCommand struct {
	ID                     string
	Name                   *string
	Description            *string
	Price                  *types.Money
	Category               *Category
	ImageURL               *string
	IsAvailable            *bool
	PreparationTimeMinutes *int
}

type CreateMenuCommand struct {
	Name        string
	Description string
	ItemIDs     []string
}

func (s *Service) Create(ctx context.Context, cmd CreateCommand) (*FoodItem, error) {
	now := s.now().UTC()
	it := &FoodItem{
		ID:                     uuid.NewString(),
		Name:                   strings.TrimSpace(cmd.Name),
		Description:            cmd.Description,
		Price:                  cmd.Price,
		Category:               cmd.Category,
		ImageURL:               cmd.ImageURL,
		IsAvailable:            true,
		PreparationTimeMinutes: cmd.PreparationTimeMinutes,
		CreatedAt:              now,
		UpdatedAt:              now,
	}
	if cmd.IsAvailable != nil {
		it.IsAvailable = *cmd.IsAvailable
	}
	if err := Validate(it); err != nil {
		return nil, err
	}
	if err := s.store.Create(ctx, it); err != nil {
		return nil, err
	}
	return it, nil
}

func (s *Service) Get(ctx context.Context, id string) (*FoodItem, error) {
	return s.store.Get(ctx, id)
}

func (s *Service) List(ctx context.Context, f Filter) ([]FoodItem, error) {
	if f.Category != nil && !f.Category.Valid() {
		return nil, fmt.Errorf("%w: unknown category %q", ErrValidation, *f.Category)
	}
	return s.store.List(ctx, f)
}

func (s *Service) Update(ctx context.Context, cmd UpdateCommand) (*FoodItem, error) {
	it, err := s.store.Get(ctx, cmd.ID)
	if err != nil {
		return nil, err
	}
	if cmd.Name != nil {
		it.Name = strings.TrimSpace(*cmd.Name)
	}
	if cmd.Description != nil {
		it.Description = *cmd.Description
	}
	if cmd.Price != nil {
		it.Price = *cmd.Price
	}
	if cmd.Category != nil {
		it.Category = *cmd.Category
	}
	if cmd.ImageURL != nil {
		it.ImageURL = *cmd.ImageURL
	}
	if cmd.IsAvailable != nil {
		it.IsAvailable = *cmd.IsAvailable
	}
	if cmd.PreparationTimeMinutes != nil {
		it.PreparationTimeMinutes = *cmd.PreparationTimeMinutes
	}
	it.UpdatedAt = s.now().UTC()
	if err := Validate(it); err != nil {
		return nil, err
	}
	if err := s.store.Update(ctx, it); err != nil {
		return nil, err
	}
	return it, nil
}

// Delete removes the item from the catalog. Orders keep their captured copy.
func (s *Service) Delete(ctx context.Context, id string) error {
	return s.store.Delete(ctx, id)
}

func (s *Service) LookupMany(ctx context.Context, ids []string) (map[string]FoodItem, error) {
	return s.store.LookupMany(ctx, ids)
}

func (s *Service) ListMenus(ctx context.Context) ([]Menu, error) {
	return s.store.ListMenus(ctx)
}

func (s *Service) CreateMenu(ctx context.Context, cmd CreateMenuCommand) (*Menu, error) {
	if strings.TrimSpace(cmd.Name) == "" {
		return nil, fmt.Errorf("%w: name is required", ErrValidation)
	}
	found, err := s.store.LookupMany(ctx, cmd.ItemIDs)
	if err != nil {
		return nil, err
	}
	m := &Menu{ID: uuid.NewString(), Name: strings.TrimSpace(cmd.Name), Description: cmd.Description, Items: []FoodItem{}}
	seen := map[string]bool{}
	for _, id := range cmd.ItemIDs {
		it, ok := found[id]
		if !ok {
			return nil, fmt.Errorf("food item %s: %w", id, ErrNotFound)
		}
		if seen[it.ID] {
			continue
		}
		seen[it.ID] = true
		m.Items = append(m.Items, it)
	}
	if err := s.store.CreateMenu(ctx, m); err != nil {
		return nil, err
	}
	return m, nil
}

// Validate checks the invariants every stored food item holds.
func Validate(it *FoodItem) error {
	var problems []string
	if it.Name == "" {
		problems = append(problems, "name is required")
	}
	if strings.TrimSpace(it.Description) == "" {
		problems = append(problems, "description is required")
	}
	if it.Price < 0 {
		problems = append(problems, "price cannot be negative")
	}
	if !it.Category.Valid() {
		problems = append(problems, fmt.Sprintf("category %q is not one of %v", it.Category, Categories))
	}
	if strings.TrimSpace(it.ImageURL) == "" {
		problems = append(problems, "imageUrl is required")
	}
	if it.PreparationTimeMinutes < 1 {
		problems = append(problems, "preparationTimeMinutes must be at least 1")
	}
	if len(problems) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %s", ErrValidation, strings.Join(problems, "; "))
}
