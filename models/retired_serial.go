package models

import "time"

// RetiredSerial records a serial freed by client deletion. Retired serials are
// never handed out again.
type RetiredSerial struct {
	SerialNumber     int64     `gorm:"primaryKey;autoIncrement:false" json:"serial_number"`
	RetiredAt        time.Time `gorm:"not null;index:idx_retired_serials_retired_at" json:"retired_at"`
	OriginalClientID uint      `gorm:"not null;index:idx_retired_serials_original_client_id" json:"original_client_id"`
	Reason           *string   `gorm:"size:512" json:"reason,omitempty"`
}

func (RetiredSerial) TableName() string {
	return "retired_serials"
}

// RetiredSerialFilter represents filter criteria for retired serial queries
type RetiredSerialFilter struct {
	SerialNumber     *int64
	OriginalClientID *uint
	RetiredAfter     *time.Time
	RetiredBefore    *time.Time
}
