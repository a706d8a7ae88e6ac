package models

import "time"

// Client is a registered client holding an active serial number.
// A row in this table is the active assignment of SerialNumber; the column
// is written once on insert and never updated.
type Client struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	FirstName      string    `gorm:"size:255;not null" json:"first_name"`
	LastName       string    `gorm:"size:255;not null" json:"last_name"`
	SerialNumber   int64     `gorm:"not null;uniqueIndex:uk_clients_serial_number;check:chk_clients_serial_number_range,serial_number >= 5000 AND serial_number <= 99999" json:"serial_number"`
	RegisteredByID uint      `gorm:"not null;index:idx_clients_registered_by_id" json:"registered_by_id"`
	CategoryID     uint      `gorm:"not null;index:idx_clients_category_id" json:"category_id"`
	AssignedAt     time.Time `gorm:"not null" json:"assigned_at"`
	CreatedAt      time.Time `gorm:"not null;index:idx_clients_created_at" json:"created_at"`
	UpdatedAt      time.Time `gorm:"not null" json:"updated_at"`

	RegisteredBy *User     `gorm:"foreignKey:RegisteredByID;constraint:OnUpdate:CASCADE,OnDelete:RESTRICT" json:"registered_by,omitempty"`
	Category     *Category `gorm:"foreignKey:CategoryID;constraint:OnUpdate:CASCADE,OnDelete:RESTRICT" json:"category,omitempty"`
}

func (Client) TableName() string {
	return "clients"
}

// ClientFilter represents filter criteria for client queries
type ClientFilter struct {
	ID             *uint
	SerialNumber   *int64
	RegisteredByID *uint
	CategoryID     *uint
	FirstName      *string
	LastName       *string
	CreatedAfter   *time.Time
	CreatedBefore  *time.Time
}
