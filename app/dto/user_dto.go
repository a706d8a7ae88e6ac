package dto

// UserDTO is the public view of an operator account
type UserDTO struct {
	ID          uint    `json:"id" example:"12"`
	UUID        string  `json:"uuid" example:"550e8400-e29b-41d4-a716-446655440000"`
	FirstName   string  `json:"first_name" example:"Sara"`
	LastName    string  `json:"last_name" example:"Karimi"`
	Username    string  `json:"username" example:"skarimi"`
	IsActive    bool    `json:"is_active" example:"true"`
	CreatedAt   string  `json:"created_at" example:"2024-01-15T10:30:00Z"`
	LastLoginAt *string `json:"last_login_at,omitempty"`
}

// UpdateUserRequest changes profile fields and optionally the password
type UpdateUserRequest struct {
	FirstName   *string `json:"first_name,omitempty" validate:"omitempty,min=1,max=255"`
	LastName    *string `json:"last_name,omitempty" validate:"omitempty,min=1,max=255"`
	NewPassword *string `json:"new_password,omitempty" validate:"omitempty,min=8,max=100,password_strength"`
	IsActive    *bool   `json:"is_active,omitempty"`
}

// ListUsersResponse wraps all users
type ListUsersResponse struct {
	Items []UserDTO `json:"items"`
}
