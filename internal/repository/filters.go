package repository

import (
	"time"

	"little_lemon/internal/models"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Page is a 1-based page request.
type Page struct {
	Number int
	Size   int
}

func (p Page) Offset() int {
	if p.Number < 1 {
		return 0
	}
	return (p.Number - 1) * p.Size
}

type MenuItemFilter struct {
	CategoryID *uint
	Price      *decimal.Decimal
	MinPrice   *decimal.Decimal
	MaxPrice   *decimal.Decimal
	Featured   *bool
	Search     string
	Ordering   string
	Page       Page
}

// MenuItemOrderings maps accepted ordering values to SQL.
var MenuItemOrderings = map[string]string{
	"price":  "price ASC, id ASC",
	"-price": "price DESC, id ASC",
	"title":  "title ASC, id ASC",
	"-title": "title DESC, id ASC",
}

// OrderScope restricts which orders a query can see. A zero scope sees all.
type OrderScope struct {
	OwnerID        *uint
	DeliveryCrewID *uint
}

type OrderFilter struct {
	Status         *models.OrderStatus
	UserID         *uint
	DeliveryCrewID *uint
	Date           *time.Time
	Ordering       string
	Page           Page
}

var OrderOrderings = map[string]string{
	"total":  "total ASC, id ASC",
	"-total": "total DESC, id ASC",
	"date":   "date ASC, id ASC",
	"-date":  "date DESC, id ASC",
}

func paginate(page Page) func(*gorm.DB) *gorm.DB {
	return func(query *gorm.DB) *gorm.DB {
		if page.Size <= 0 {
			return query
		}
		return query.Offset(page.Offset()).Limit(page.Size)
	}
}
