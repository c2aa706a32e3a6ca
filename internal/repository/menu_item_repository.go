package repository

import (
	"context"
	"strings"

	"little_lemon/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type MenuItemRepository interface {
	Create(ctx context.Context, item *models.MenuItem) error
	GetByID(ctx context.Context, id uint) (*models.MenuItem, error)
	List(ctx context.Context, filter MenuItemFilter) ([]models.MenuItem, int64, error)
	Update(ctx context.Context, item *models.MenuItem) error
	Delete(ctx context.Context, id uint) error
}

type menuItemRepository struct {
	db *gorm.DB
}

func NewMenuItemRepository(db *gorm.DB) MenuItemRepository {
	return &menuItemRepository{db: db}
}

func (r *menuItemRepository) Create(ctx context.Context, item *models.MenuItem) error {
	if err := r.db.WithContext(ctx).Omit(clause.Associations).Create(item).Error; err != nil {
		return err
	}
	item.Category = models.Category{}
	return r.db.WithContext(ctx).First(&item.Category, item.CategoryID).Error
}

func (r *menuItemRepository) GetByID(ctx context.Context, id uint) (*models.MenuItem, error) {
	var item models.MenuItem
	err := r.db.WithContext(ctx).Preload("Category").First(&item, id).Error
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (r *menuItemRepository) List(ctx context.Context, filter MenuItemFilter) ([]models.MenuItem, int64, error) {
	scope := menuItemFilterScope(filter)

	var count int64
	err := r.db.WithContext(ctx).Model(&models.MenuItem{}).Scopes(scope).Count(&count).Error
	if err != nil {
		return nil, 0, err
	}

	order, ok := MenuItemOrderings[filter.Ordering]
	if !ok {
		order = "id ASC"
	}

	var items []models.MenuItem
	err = r.db.WithContext(ctx).Scopes(scope, paginate(filter.Page)).
		Preload("Category").
		Order(order).
		Find(&items).Error
	return items, count, err
}

func menuItemFilterScope(filter MenuItemFilter) func(*gorm.DB) *gorm.DB {
	return func(query *gorm.DB) *gorm.DB {
		if filter.CategoryID != nil {
			query = query.Where("category_id = ?", *filter.CategoryID)
		}
		if filter.Price != nil {
			query = query.Where("price = ?", *filter.Price)
		}
		if filter.MinPrice != nil {
			query = query.Where("price >= ?", *filter.MinPrice)
		}
		if filter.MaxPrice != nil {
			query = query.Where("price <= ?", *filter.MaxPrice)
		}
		if filter.Featured != nil {
			query = query.Where("featured = ?", *filter.Featured)
		}
		if filter.Search != "" {
			query = query.Where("LOWER(title) LIKE ?", "%"+strings.ToLower(filter.Search)+"%")
		}
		return query
	}
}

// Update writes every column of item. A row deleted since it was read is
// reported as gorm.ErrRecordNotFound rather than recreated.
func (r *menuItemRepository) Update(ctx context.Context, item *models.MenuItem) error {
	result := r.db.WithContext(ctx).Model(item).Select("*").Omit(clause.Associations).Updates(item)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	item.Category = models.Category{}
	return r.db.WithContext(ctx).First(&item.Category, item.CategoryID).Error
}

func (r *menuItemRepository) Delete(ctx context.Context, id uint) error {
	result := r.db.WithContext(ctx).Delete(&models.MenuItem{}, id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
