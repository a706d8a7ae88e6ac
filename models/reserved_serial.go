package models

import "time"

// ReservedSerial is a short-lived hold on a serial, redeemable with Token.
// Only the operator in ReservedByID is ever handed the token.
type ReservedSerial struct {
	SerialNumber int64     `gorm:"primaryKey;autoIncrement:false" json:"serial_number"`
	Token        string    `gorm:"size:64;not null;uniqueIndex:uk_reserved_serials_token" json:"-"`
	ReservedByID *uint     `gorm:"index:idx_reserved_serials_reserved_by_id" json:"reserved_by_id,omitempty"`
	ReservedBy   *User     `gorm:"foreignKey:ReservedByID;references:ID;constraint:OnDelete:SET NULL" json:"-"`
	ReservedAt   time.Time `gorm:"not null;index:idx_reserved_serials_reserved_at" json:"reserved_at"`
}

func (ReservedSerial) TableName() string {
	return "reserved_serials"
}

// ExpiresAt returns when the hold lapses for the given ttl
func (r ReservedSerial) ExpiresAt(ttl time.Duration) time.Time {
	return r.ReservedAt.Add(ttl)
}

// ReservedSerialFilter represents filter criteria for reservation queries
type ReservedSerialFilter struct {
	SerialNumber   *int64
	Token          *string
	ReservedByID   *uint
	ReservedBefore *time.Time
	ReservedAfter  *time.Time
}
