package models

import (
	"github.com/shopspring/decimal"
)

// OrderItem is a frozen copy of a cart line taken when the order was placed.
type OrderItem struct {
	ID         uint            `json:"id" gorm:"primaryKey"`
	OrderID    uint            `json:"order" gorm:"not null;index"`
	MenuItemID uint            `json:"menuitem" gorm:"not null;index"`
	MenuItem   *MenuItem       `json:"-" gorm:"constraint:OnDelete:RESTRICT"`
	Quantity   int             `json:"quantity" gorm:"not null"`
	UnitPrice  decimal.Decimal `json:"unit_price" gorm:"type:numeric(6,2);not null"`
	Price      decimal.Decimal `json:"price" gorm:"type:numeric(8,2);not null"`
}
