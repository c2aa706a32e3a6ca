package repository

import (
	"context"
	"errors"

	"little_lemon/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrCartLineFull is returned by Add when merging would push a line past
// models.MaxLineQuantity. The stored line is left unchanged.
var ErrCartLineFull = errors.New("cart line quantity limit reached")

type CartRepository interface {
	ListByUser(ctx context.Context, userID uint) ([]models.CartLine, error)
	// Add inserts line, or merges it into the user's existing line for the
	// same menu item. line is refreshed with the stored row.
	Add(ctx context.Context, line *models.CartLine) error
	// LockByUser reads the user's lines and locks them until the surrounding
	// transaction ends.
	LockByUser(ctx context.Context, userID uint) ([]models.CartLine, error)
	DeleteByUser(ctx context.Context, userID uint) (int64, error)
}

type cartRepository struct {
	db *gorm.DB
}

func NewCartRepository(db *gorm.DB) CartRepository {
	return &cartRepository{db: db}
}

func (r *cartRepository) ListByUser(ctx context.Context, userID uint) ([]models.CartLine, error) {
	var lines []models.CartLine
	err := r.db.WithContext(ctx).
		Preload("MenuItem").
		Where("user_id = ?", userID).
		Order("id").
		Find(&lines).Error
	return lines, err
}

func (r *cartRepository) Add(ctx context.Context, line *models.CartLine) error {
	result := r.db.WithContext(ctx).
		Omit(clause.Associations).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "user_id"}, {Name: "menu_item_id"}},
			DoUpdates: clause.Assignments(map[string]interface{}{
				"quantity":   gorm.Expr("cart_lines.quantity + excluded.quantity"),
				"unit_price": gorm.Expr("excluded.unit_price"),
				"price":      gorm.Expr("(cart_lines.quantity + excluded.quantity) * excluded.unit_price"),
			}),
			Where: clause.Where{Exprs: []clause.Expression{
				gorm.Expr("cart_lines.quantity + excluded.quantity <= ?", models.MaxLineQuantity),
			}},
		}).
		Create(line)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrCartLineFull
	}

	var stored models.CartLine
	err := r.db.WithContext(ctx).
		Preload("MenuItem").
		Where("user_id = ? AND menu_item_id = ?", line.UserID, line.MenuItemID).
		First(&stored).Error
	if err != nil {
		return err
	}
	*line = stored
	return nil
}

func (r *cartRepository) LockByUser(ctx context.Context, userID uint) ([]models.CartLine, error) {
	var lines []models.CartLine
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("user_id = ?", userID).
		Order("id").
		Find(&lines).Error
	return lines, err
}

func (r *cartRepository) DeleteByUser(ctx context.Context, userID uint) (int64, error) {
	result := r.db.WithContext(ctx).Where("user_id = ?", userID).Delete(&models.CartLine{})
	return result.RowsAffected, result.Error
}
