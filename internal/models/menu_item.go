package models

import (
	"github.com/shopspring/decimal"
)

type MenuItem struct {
	ID         uint            `json:"id" gorm:"primaryKey"`
	Title      string          `json:"title" gorm:"type:varchar(255);index;not null"`
	Price      decimal.Decimal `json:"price" gorm:"type:numeric(6,2);index;not null"`
	Featured   bool            `json:"featured" gorm:"index;default:false"`
	CategoryID uint            `json:"category" gorm:"not null;index"`
	Category   Category        `json:"category_details" gorm:"constraint:OnUpdate:CASCADE,OnDelete:RESTRICT"`
}
