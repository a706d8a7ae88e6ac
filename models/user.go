// Package models contains the persistent entities of the client registry
package models

import (
	"time"

	"github.com/google/uuid"
)

// User is an operator account that registers clients
type User struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	UUID         uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:uk_users_uuid" json:"uuid"`
	FirstName    string    `gorm:"size:255;not null" json:"first_name"`
	LastName     string    `gorm:"size:255;not null" json:"last_name"`
	Username     string    `gorm:"size:255;not null;uniqueIndex:uk_users_username" json:"username"`
	PasswordHash string    `gorm:"size:255;not null" json:"-"`

	IsActive    *bool      `gorm:"not null;default:true;index:idx_users_is_active" json:"is_active"`
	CreatedAt   time.Time  `gorm:"not null;index:idx_users_created_at" json:"created_at"`
	UpdatedAt   time.Time  `gorm:"not null" json:"updated_at"`
	LastLoginAt *time.Time `json:"last_login_at,omitempty"`
}

func (User) TableName() string {
	return "users"
}

// UserFilter represents filter criteria for user queries
type UserFilter struct {
	ID            *uint
	UUID          *uuid.UUID
	Username      *string
	IsActive      *bool
	CreatedAfter  *time.Time
	CreatedBefore *time.Time
}
