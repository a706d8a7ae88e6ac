package models

import "time"

// Category groups clients
type Category struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"size:255;not null;uniqueIndex:uk_categories_name" json:"name"`
	CreatedAt time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}

func (Category) TableName() string {
	return "categories"
}

// CategoryFilter represents filter criteria for category queries
type CategoryFilter struct {
	ID   *uint
	Name *string
}
