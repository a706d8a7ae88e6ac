package dto

import "time"

// SignupRequest creates an operator account
type SignupRequest struct {
	FirstName string `json:"first_name" validate:"required,min=1,max=255" example:"Sara"`
	LastName  string `json:"last_name" validate:"required,min=1,max=255" example:"Karimi"`
	Username  string `json:"username" validate:"required,min=3,max=64,username_format" example:"skarimi"`
	Password  string `json:"password" validate:"required,min=8,max=100,password_strength" example:"SecurePass123!"`
}

// LoginRequest represents the request payload for user login
type LoginRequest struct {
	Username string `json:"username" validate:"required,min=3,max=64" example:"skarimi"`
	Password string `json:"password" validate:"required,min=8,max=100" example:"SecurePass123!"`
}

// RefreshTokenRequest exchanges a refresh token for a new pair
type RefreshTokenRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

// AuthResponse is returned by signup, login and refresh
type AuthResponse struct {
	AccessToken  string    `json:"access_token" example:"eyJhbGciOiJIUzI1NiIsInR5cCI6IkpXVCJ9..."`
	RefreshToken string    `json:"refresh_token" example:"eyJhbGciOiJIUzI1NiIsInR5cCI6IkpXVCJ9..."`
	TokenType    string    `json:"token_type" example:"Bearer"`
	ExpiresIn    int       `json:"expires_in" example:"86400"`
	ExpiresAt    time.Time `json:"expires_at" example:"2024-01-15T16:30:00Z"`
	User         UserDTO   `json:"user"`
}
