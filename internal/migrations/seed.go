package migrations

import (
	"context"
	"errors"
	"fmt"

	"little_lemon/internal/models"
	"little_lemon/internal/repository"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type sampleItem struct {
	title    string
	price    string
	featured bool
}

var sampleMenu = []struct {
	category models.Category
	items    []sampleItem
}{
	{
		category: models.Category{Slug: "appetizers", Title: "Appetizers"},
		items: []sampleItem{
			{"Bruschetta", "7.25", true},
			{"Greek salad", "12.50", true},
		},
	},
	{
		category: models.Category{Slug: "mains", Title: "Main courses"},
		items: []sampleItem{
			{"Grilled fish", "20.00", false},
			{"Lamb souvlaki", "18.75", false},
		},
	},
	{
		category: models.Category{Slug: "desserts", Title: "Desserts"},
		items: []sampleItem{
			{"Lemon dessert", "6.00", true},
			{"Baklava", "5.50", false},
		},
	},
}

// SeedMenu adds the sample categories and their items. A category whose slug
// already exists is skipped together with its items.
func SeedMenu(ctx context.Context, categories repository.CategoryRepository, menuItems repository.MenuItemRepository, log *zap.Logger) error {
	for _, sample := range sampleMenu {
		category := sample.category
		if err := categories.Create(ctx, &category); err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				log.Debug("sample category exists", zap.String("slug", category.Slug))
				continue
			}
			return fmt.Errorf("failed to create category %s: %w", category.Slug, err)
		}

		for _, s := range sample.items {
			item := models.MenuItem{
				Title:      s.title,
				Price:      decimal.RequireFromString(s.price),
				Featured:   s.featured,
				CategoryID: category.ID,
			}
			if err := menuItems.Create(ctx, &item); err != nil {
				return fmt.Errorf("failed to create menu item %s: %w", s.title, err)
			}
		}
		log.Info("sample category seeded", zap.String("slug", category.Slug), zap.Int("items", len(sample.items)))
	}
	return nil
}
