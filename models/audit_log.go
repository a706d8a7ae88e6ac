package models

import "time"

// AuditLog records who did what to the serial registry and from where
type AuditLog struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	UserID       *uint     `gorm:"index:idx_audit_user_id" json:"user_id,omitempty"`
	User         *User     `gorm:"foreignKey:UserID;references:ID;constraint:OnDelete:SET NULL" json:"user,omitempty"`
	Action       string    `gorm:"size:64;not null;index:idx_audit_action" json:"action"`
	SerialNumber *int64    `gorm:"index:idx_audit_serial_number" json:"serial_number,omitempty"`
	Description  *string   `gorm:"type:text" json:"description,omitempty"`
	IPAddress    *string   `gorm:"size:64;index:idx_audit_ip_address" json:"ip_address,omitempty"`
	UserAgent    *string   `gorm:"type:text" json:"user_agent,omitempty"`
	RequestID    *string   `gorm:"size:255;index:idx_audit_request_id" json:"request_id,omitempty"`
	Success      *bool     `gorm:"default:true;index:idx_audit_success" json:"success"`
	ErrorMessage *string   `gorm:"type:text" json:"error_message,omitempty"`
	CreatedAt    time.Time `gorm:"not null;index:idx_audit_created_at" json:"created_at"`
}

func (AuditLog) TableName() string {
	return "audit_log"
}

// Audit action constants
const (
	AuditActionSignupCompleted      = "signup_completed"
	AuditActionLoginSuccess         = "login_success"
	AuditActionLoginFailed          = "login_failed"
	AuditActionLogout               = "logout"
	AuditActionClientRegistered     = "client_registered"
	AuditActionClientRegisterFailed = "client_register_failed"
	AuditActionClientUpdated        = "client_updated"
	AuditActionClientRetired        = "client_retired"
	AuditActionSerialReserved       = "serial_reserved"
	AuditActionReservationReleased  = "reservation_released"
	AuditActionReservationsSwept    = "reservations_swept"
)

// AuditLogFilter represents filter criteria for audit log queries
type AuditLogFilter struct {
	ID            *uint
	UserID        *uint
	Action        *string
	SerialNumber  *int64
	Success       *bool
	RequestID     *string
	CreatedAfter  *time.Time
	CreatedBefore *time.Time
}

func (a *AuditLog) IsFailed() bool {
	return a.Success != nil && !*a.Success
}

// IsSerialEvent reports whether the entry changed the state of a serial
func (a *AuditLog) IsSerialEvent() bool {
	switch a.Action {
	case AuditActionClientRegistered, AuditActionClientRetired, AuditActionSerialReserved,
		AuditActionReservationReleased, AuditActionReservationsSwept:
		return true
	}
	return false
}
