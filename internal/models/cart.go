package models

import (
	"github.com/shopspring/decimal"
)

// CartLine is one menu item in a user's cart. UnitPrice is the menu price
// captured when the item was added.
type CartLine struct {
	ID         uint            `json:"id" gorm:"primaryKey"`
	UserID     uint            `json:"user" gorm:"not null;uniqueIndex:idx_cart_user_menuitem"`
	User       *User           `json:"-" gorm:"constraint:OnDelete:CASCADE"`
	MenuItemID uint            `json:"menuitem" gorm:"not null;uniqueIndex:idx_cart_user_menuitem"`
	MenuItem   *MenuItem       `json:"menuitem_details,omitempty" gorm:"constraint:OnDelete:CASCADE"`
	Quantity   int             `json:"quantity" gorm:"not null"`
	UnitPrice  decimal.Decimal `json:"unit_price" gorm:"type:numeric(6,2);not null"`
	Price      decimal.Decimal `json:"price" gorm:"type:numeric(8,2);not null"`
}

// MaxLineQuantity caps one cart line, so a line at the highest menu price
// still fits numeric(8,2).
const MaxLineQuantity = 100

// LinePrice is quantity × unit price.
func LinePrice(quantity int, unitPrice decimal.Decimal) decimal.Decimal {
	return unitPrice.Mul(decimal.NewFromInt(int64(quantity)))
}
