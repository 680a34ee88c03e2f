// README: Food item and menu definitions.
package catalog

import (
	"time"

	"fooddash/internal/types"
)

type Category string

const (
	CategoryPizza   Category = "Pizza"
	CategoryBurger  Category = "Burger"
	CategorySushi   Category = "Sushi"
	CategoryPasta   Category = "Pasta"
	CategorySalad   Category = "Salad"
	CategoryDessert Category = "Dessert"
	CategoryDrink   Category = "Drink"
)

var Categories = []Category{
	CategoryPizza, CategoryBurger, CategorySushi, CategoryPasta,
	CategorySalad, CategoryDessert, CategoryDrink,
}

func (c Category) Valid() bool {
	for _, v := range Categories {
		if v == c {
			return true
		}
	}
	return false
}

type FoodItem struct {
	ID                     string      `json:"id"`
	Name                   string      `json:"name"`
	Description            string      `json:"description"`
	Price                  types.Money `json:"price"`
	Category               Category    `json:"category"`
	ImageURL               string      `json:"imageUrl"`
	IsAvailable            bool        `json:"isAvailable"`
	PreparationTimeMinutes int         `json:"preparationTimeMinutes"`
	CreatedAt              time.Time   `json:"createdAt"`
	UpdatedAt              time.Time   `json:"updatedAt"`
}

type Menu struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Description string     `json:"description,omitempty"`
	Items       []FoodItem `json:"items"`
}

type Filter struct {
	Category  *Category
	Available *bool
}
