package models

type Category struct {
	ID    uint   `json:"id" gorm:"primaryKey"`
	Slug  string `json:"slug" gorm:"type:varchar(255);unique;not null"`
	Title string `json:"title" gorm:"type:varchar(255);index;not null"`
}
