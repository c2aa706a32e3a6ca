package repository

import (
	"context"

	"little_lemon/internal/models"

	"gorm.io/gorm"
)

type OrderRepository interface {
	Create(ctx context.Context, order *models.Order) error
	GetByID(ctx context.Context, id uint, scope OrderScope) (*models.Order, error)
	List(ctx context.Context, scope OrderScope, filter OrderFilter) ([]models.Order, int64, error)
	Update(ctx context.Context, id uint, changes map[string]interface{}) error
	Delete(ctx context.Context, id uint) error
}

type orderRepository struct {
	db *gorm.DB
}

func NewOrderRepository(db *gorm.DB) OrderRepository {
	return &orderRepository{db: db}
}

// Create inserts the order together with its items.
func (r *orderRepository) Create(ctx context.Context, order *models.Order) error {
	return r.db.WithContext(ctx).Omit("User", "DeliveryCrew").Create(order).Error
}

func (r *orderRepository) GetByID(ctx context.Context, id uint, scope OrderScope) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).
		Scopes(orderVisibility(scope)).
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("id") }).
		First(&order, id).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *orderRepository) List(ctx context.Context, scope OrderScope, filter OrderFilter) ([]models.Order, int64, error) {
	scopes := []func(*gorm.DB) *gorm.DB{orderVisibility(scope), orderFilterScope(filter)}

	var count int64
	err := r.db.WithContext(ctx).Model(&models.Order{}).Scopes(scopes...).Count(&count).Error
	if err != nil {
		return nil, 0, err
	}

	order, ok := OrderOrderings[filter.Ordering]
	if !ok {
		order = "id ASC"
	}

	var orders []models.Order
	err = r.db.WithContext(ctx).
		Scopes(append(scopes, paginate(filter.Page))...).
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("id") }).
		Order(order).
		Find(&orders).Error
	return orders, count, err
}

func (r *orderRepository) Update(ctx context.Context, id uint, changes map[string]interface{}) error {
	result := r.db.WithContext(ctx).Model(&models.Order{}).Where("id = ?", id).Updates(changes)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *orderRepository) Delete(ctx context.Context, id uint) error {
	result := r.db.WithContext(ctx).Delete(&models.Order{}, id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func orderVisibility(scope OrderScope) func(*gorm.DB) *gorm.DB {
	return func(query *gorm.DB) *gorm.DB {
		if scope.OwnerID != nil {
			query = query.Where("orders.user_id = ?", *scope.OwnerID)
		}
		if scope.DeliveryCrewID != nil {
			query = query.Where("orders.delivery_crew_id = ?", *scope.DeliveryCrewID)
		}
		return query
	}
}

func orderFilterScope(filter OrderFilter) func(*gorm.DB) *gorm.DB {
	return func(query *gorm.DB) *gorm.DB {
		if filter.Status != nil {
			query = query.Where("status = ?", string(*filter.Status))
		}
		if filter.UserID != nil {
			query = query.Where("user_id = ?", *filter.UserID)
		}
		if filter.DeliveryCrewID != nil {
			query = query.Where("delivery_crew_id = ?", *filter.DeliveryCrewID)
		}
		if filter.Date != nil {
			day := *filter.Date
			query = query.Where("date >= ? AND date < ?", day, day.AddDate(0, 0, 1))
		}
		return query
	}
}
