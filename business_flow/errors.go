// Package businessflow contains the use cases behind the HTTP handlers
package businessflow

import (
	"errors"
	"fmt"
)

// Business flow error constants
var (
	// User-related errors
	ErrUserNotFound          = errors.New("user not found")
	ErrUserInactive          = errors.New("user is inactive")
	ErrIncorrectPassword     = errors.New("incorrect password")
	ErrUsernameAlreadyExists = errors.New("username already exists")
	ErrUserHasClients        = errors.New("user has registered clients")
	ErrUserUpdateRequired    = errors.New("at least one field must be provided for update")

	// Category-related errors
	ErrCategoryNotFound       = errors.New("category not found")
	ErrCategoryAlreadyExists  = errors.New("category already exists")
	ErrCategoryChoiceRequired = errors.New("exactly one of category_id and new_category_name is required")

	// Client-related errors
	ErrClientNotFound       = errors.New("client not found")
	ErrClientUpdateRequired = errors.New("at least one field must be provided for update")
	ErrRedeemFieldsRequired = errors.New("serial_number and reservation_token must be given together")
	ErrUnknownSerialState   = errors.New("unknown serial state")

	// Filter errors
	ErrInvalidPage     = errors.New("page must be at least 1")
	ErrInvalidPageSize = errors.New("page size must be between 1 and 500")
)

type BusinessError struct {
	Code    string
	Message string
	Err     error
}

func (e *BusinessError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *BusinessError) Unwrap() error {
	return e.Err
}

func NewBusinessError(code, message string, err error) *BusinessError {
	return &BusinessError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

func NewBusinessErrorf(code, message string, err error, args ...any) *BusinessError {
	return &BusinessError{
		Code:    code,
		Message: fmt.Sprintf(message, args...),
		Err:     err,
	}
}

func IsUserNotFound(err error) bool {
	return errors.Is(err, ErrUserNotFound)
}

func IsUserInactive(err error) bool {
	return errors.Is(err, ErrUserInactive)
}

func IsIncorrectPassword(err error) bool {
	return errors.Is(err, ErrIncorrectPassword)
}

func IsUsernameAlreadyExists(err error) bool {
	return errors.Is(err, ErrUsernameAlreadyExists)
}

func IsUserHasClients(err error) bool {
	return errors.Is(err, ErrUserHasClients)
}

func IsCategoryNotFound(err error) bool {
	return errors.Is(err, ErrCategoryNotFound)
}

func IsCategoryAlreadyExists(err error) bool {
	return errors.Is(err, ErrCategoryAlreadyExists)
}

func IsClientNotFound(err error) bool {
	return errors.Is(err, ErrClientNotFound)
}

// IsValidationError reports request-shape errors raised by the flows
func IsValidationError(err error) bool {
	return errors.Is(err, ErrCategoryChoiceRequired) ||
		errors.Is(err, ErrClientUpdateRequired) ||
		errors.Is(err, ErrUserUpdateRequired) ||
		errors.Is(err, ErrRedeemFieldsRequired) ||
		errors.Is(err, ErrUnknownSerialState) ||
		errors.Is(err, ErrInvalidPage) ||
		errors.Is(err, ErrInvalidPageSize)
}
