package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type Order struct {
	ID             uint            `json:"id" gorm:"primaryKey"`
	UserID         uint            `json:"user" gorm:"not null;index"`
	User           *User           `json:"-" gorm:"constraint:OnDelete:CASCADE"`
	DeliveryCrewID *uint           `json:"delivery_crew" gorm:"index"`
	DeliveryCrew   *User           `json:"-" gorm:"constraint:OnDelete:SET NULL"`
	Status         OrderStatus     `json:"status" gorm:"type:varchar(32);index;not null;default:'pending'"`
	Total          decimal.Decimal `json:"total" gorm:"type:numeric(12,2);not null"`
	Date           time.Time       `json:"date" gorm:"index;not null"`
	Items          []OrderItem     `json:"order_items" gorm:"constraint:OnDelete:CASCADE"`
}

// MaxOrderTotal is the largest total the orders table can hold.
var MaxOrderTotal = decimal.RequireFromString("9999999999.99")

type OrderStatus string

const (
	OrderPending        OrderStatus = "pending"
	OrderOutForDelivery OrderStatus = "out_for_delivery"
	OrderDelivered      OrderStatus = "delivered"
)

var statusRank = map[OrderStatus]int{
	OrderPending:        0,
	OrderOutForDelivery: 1,
	OrderDelivered:      2,
}

func (s OrderStatus) Valid() bool {
	_, ok := statusRank[s]
	return ok
}

// CanTransitionTo allows staying in place or moving forward, never backward.
func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	from, ok := statusRank[s]
	if !ok {
		return false
	}
	to, ok := statusRank[next]
	if !ok {
		return false
	}
	return to >= from
}
