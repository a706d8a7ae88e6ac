package dto

// AuditLogDTO is one entry of the registry audit trail
type AuditLogDTO struct {
	ID           uint    `json:"id"`
	UserID       *uint   `json:"user_id,omitempty"`
	Username     *string `json:"username,omitempty"`
	Action       string  `json:"action"`
	SerialNumber *int64  `json:"serial_number,omitempty"`
	Serial       *string `json:"serial,omitempty"`
	Description  *string `json:"description,omitempty"`
	IPAddress    *string `json:"ip_address,omitempty"`
	UserAgent    *string `json:"user_agent,omitempty"`
	RequestID    *string `json:"request_id,omitempty"`
	Success      bool    `json:"success"`
	ErrorMessage *string `json:"error_message,omitempty"`
	CreatedAt    string  `json:"created_at"`
}

// ListAuditLogsRequest filters the audit trail
type ListAuditLogsRequest struct {
	PaginationRequest
	Action       *string `query:"action" validate:"omitempty,max=64"`
	UserID       *uint   `query:"user_id" validate:"omitempty,min=1"`
	SerialNumber *int64  `query:"serial_number" validate:"omitempty,min=1"`
	Success      *bool   `query:"success"`
}

type ListAuditLogsResponse struct {
	Items      []AuditLogDTO  `json:"items"`
	Pagination PaginationInfo `json:"pagination"`
}

// SerialHistoryResponse lists everything that happened to one serial, oldest first
type SerialHistoryResponse struct {
	SerialNumber int64         `json:"serial_number"`
	Serial       string        `json:"serial"`
	Events       []AuditLogDTO `json:"events"`
}
