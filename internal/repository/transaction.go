package repository

import (
	"context"

	"gorm.io/gorm"
)

// Transactor runs fn against repositories bound to a single database
// transaction. Returning an error from fn rolls everything back.
type Transactor interface {
	Transaction(ctx context.Context, fn func(cart CartRepository, orders OrderRepository) error) error
}

type gormTransactor struct {
	db *gorm.DB
}

func NewTransactor(db *gorm.DB) Transactor {
	return &gormTransactor{db: db}
}

func (t *gormTransactor) Transaction(ctx context.Context, fn func(cart CartRepository, orders OrderRepository) error) error {
	return t.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(NewCartRepository(tx), NewOrderRepository(tx))
	})
}
