package dto

// RegisterClientRequest registers a client. When serial_number and
// reservation_token are set the reserved serial is redeemed; otherwise the
// next free serial is assigned. Exactly one of category_id and
// new_category_name must be given.
type RegisterClientRequest struct {
	FirstName        string  `json:"first_name" validate:"required,min=1,max=255" example:"Reza"`
	LastName         string  `json:"last_name" validate:"required,min=1,max=255" example:"Ahmadi"`
	CategoryID       *uint   `json:"category_id,omitempty" validate:"omitempty,min=1" example:"3"`
	NewCategoryName  *string `json:"new_category_name,omitempty" validate:"omitempty,min=1,max=255" example:"retail"`
	SerialNumber     *int64  `json:"serial_number,omitempty" validate:"required_with=ReservationToken,omitempty,min=1" example:"5004"`
	ReservationToken *string `json:"reservation_token,omitempty" validate:"required_with=SerialNumber,omitempty,uuid" example:"0b7e2c1a-9d1f-4a43-8f1e-7f1c2a3b4c5d"`
}

// UpdateClientRequest changes descriptive fields; the serial cannot change
type UpdateClientRequest struct {
	FirstName  *string `json:"first_name,omitempty" validate:"omitempty,min=1,max=255"`
	LastName   *string `json:"last_name,omitempty" validate:"omitempty,min=1,max=255"`
	CategoryID *uint   `json:"category_id,omitempty" validate:"omitempty,min=1"`
}

// DeleteClientRequest optionally records why the client was removed
type DeleteClientRequest struct {
	Reason *string `json:"reason,omitempty" validate:"omitempty,max=512"`
}

// ListClientsRequest filters the client list
type ListClientsRequest struct {
	PaginationRequest
	RegisteredBy *string `query:"registered_by" validate:"omitempty,min=3,max=64"`
	CategoryID   *uint   `query:"category_id" validate:"omitempty,min=1"`
}

// ClientDTO is the public view of a client
type ClientDTO struct {
	ID           uint         `json:"id" example:"41"`
	FirstName    string       `json:"first_name" example:"Reza"`
	LastName     string       `json:"last_name" example:"Ahmadi"`
	SerialNumber int64        `json:"serial_number" example:"5004"`
	Serial       string       `json:"serial" example:"05004"`
	RegisteredBy *UserDTO     `json:"registered_by,omitempty"`
	Category     *CategoryDTO `json:"category,omitempty"`
	AssignedAt   string       `json:"assigned_at" example:"2024-01-15T10:30:00Z"`
	CreatedAt    string       `json:"created_at" example:"2024-01-15T10:30:00Z"`
	UpdatedAt    string       `json:"updated_at" example:"2024-01-15T10:30:00Z"`
}

// ListClientsResponse wraps a page of clients
type ListClientsResponse struct {
	Items      []ClientDTO    `json:"items"`
	Pagination PaginationInfo `json:"pagination"`
}

// RetiredSerialDTO is returned when a client is deleted
type RetiredSerialDTO struct {
	SerialNumber     int64   `json:"serial_number" example:"5004"`
	OriginalClientID uint    `json:"original_client_id" example:"41"`
	RetiredAt        string  `json:"retired_at" example:"2024-01-15T10:30:00Z"`
	Reason           *string `json:"reason,omitempty"`
}
