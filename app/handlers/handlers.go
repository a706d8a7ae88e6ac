// Package handlers contains HTTP request handlers and presentation layer logic for the API endpoints
package handlers

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"
	"time"
	"unicode"

	"github.com/amirphl/ams-registry/allocation"
	"github.com/amirphl/ams-registry/app/dto"
	"github.com/amirphl/ams-registry/app/services"
	businessflow "github.com/amirphl/ams-registry/business_flow"
	"github.com/amirphl/ams-registry/utils"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/requestid"
)

// lockRetryAfterSeconds is advertised when the allocation lock is busy
const lockRetryAfterSeconds = 1

// baseHandler carries the response helpers every handler shares
type baseHandler struct {
	validator *validator.Validate
}

func newBaseHandler() baseHandler {
	v := validator.New()
	setupCustomValidations(v)
	return baseHandler{validator: v}
}

func (h *baseHandler) ErrorResponse(c fiber.Ctx, statusCode int, message, errorCode string, details any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: false,
		Message: message,
		Error: dto.ErrorDetail{
			Code:    errorCode,
			Details: details,
		},
	})
}

func (h *baseHandler) SuccessResponse(c fiber.Ctx, statusCode int, message string, data any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: true,
		Message: message,
		Data:    data,
	})
}

// validate runs struct validation and writes a 400 on failure; ok is false
// when a response was written
func (h *baseHandler) validate(c fiber.Ctx, req any) (bool, error) {
	err := h.validator.Struct(req)
	if err == nil {
		return true, nil
	}
	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return false, h.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", err.Error())
	}
	messages := make([]string, 0, len(validationErrors))
	for _, fe := range validationErrors {
		messages = append(messages, getValidationErrorMessage(fe))
	}
	return false, h.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", messages)
}

// createRequestContext creates a context with the default request timeout.
// The caller must call the returned cancel func.
func (h *baseHandler) createRequestContext(c fiber.Ctx, endpoint string) (context.Context, context.CancelFunc) {
	return h.createRequestContextWithTimeout(c, endpoint, utils.RequestTimeout)
}

func (h *baseHandler) createRequestContextWithTimeout(c fiber.Ctx, endpoint string, timeout time.Duration) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)

	// Add request-scoped values for observability
	ctx = context.WithValue(ctx, utils.RequestIDKey, requestID(c))
	ctx = context.WithValue(ctx, utils.UserAgentKey, c.Get("User-Agent"))
	ctx = context.WithValue(ctx, utils.IPAddressKey, c.IP())
	ctx = context.WithValue(ctx, utils.EndpointKey, endpoint)
	ctx = context.WithValue(ctx, utils.TimeoutKey, timeout)
	if userID, ok := c.Locals(utils.UserIDKey).(uint); ok {
		ctx = context.WithValue(ctx, utils.UserIDKey, userID)
	}

	return ctx, cancel
}

func (h *baseHandler) metadata(c fiber.Ctx) *businessflow.ClientMetadata {
	md := businessflow.NewClientMetadata(c.IP(), c.Get("User-Agent"))
	md.SetRequestID(requestID(c))
	return md
}

// userID returns the authenticated operator set by the auth middleware
func (h *baseHandler) userID(c fiber.Ctx) (uint, bool) {
	id, ok := c.Locals(utils.UserIDKey).(uint)
	return id, ok && id != 0
}

func (h *baseHandler) uintParam(c fiber.Ctx, name string) (uint, error) {
	v, err := strconv.ParseUint(c.Params(name), 10, 64)
	if err != nil || v == 0 {
		return 0, fmt.Errorf("%s must be a positive integer", name)
	}
	return uint(v), nil
}

func (h *baseHandler) serialParam(c fiber.Ctx, name string) (int64, error) {
	v, err := strconv.ParseInt(c.Params(name), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer", name)
	}
	return v, nil
}

// flowError maps a business flow error to an HTTP response
func (h *baseHandler) flowError(c fiber.Ctx, err error, fallbackMessage, fallbackCode string) error {
	status, code, message := classify(err)
	if status == fiber.StatusInternalServerError {
		log.Printf("%s: %v", fallbackCode, err)
		return h.ErrorResponse(c, status, fallbackMessage, fallbackCode, nil)
	}
	if status == fiber.StatusServiceUnavailable && allocation.IsLockTimeout(err) {
		c.Set(fiber.HeaderRetryAfter, strconv.Itoa(lockRetryAfterSeconds))
	}
	return h.ErrorResponse(c, status, message, code, nil)
}

func classify(err error) (status int, code, message string) {
	code, message = "INTERNAL_ERROR", err.Error()
	var be *businessflow.BusinessError
	if errors.As(err, &be) {
		code, message = be.Code, be.Message
	}

	switch {
	case businessflow.IsValidationError(err), allocation.IsOutOfRange(err),
		errors.Is(err, allocation.ErrReservationOwnerRequired):
		return fiber.StatusBadRequest, code, message
	case allocation.IsExhausted(err):
		return fiber.StatusServiceUnavailable, "SERIAL_RANGE_EXHAUSTED", message
	case allocation.IsLockTimeout(err):
		return fiber.StatusServiceUnavailable, "SERIAL_LOCK_TIMEOUT", message
	case allocation.IsConflict(err):
		return fiber.StatusConflict, "SERIAL_CONFLICT", message
	case errors.Is(err, allocation.ErrReservationTokenMismatch):
		return fiber.StatusForbidden, code, message
	case errors.Is(err, allocation.ErrReservationExpired):
		return fiber.StatusGone, code, message
	case allocation.IsNotFound(err),
		errors.Is(err, allocation.ErrReservationNotFound),
		businessflow.IsClientNotFound(err),
		businessflow.IsUserNotFound(err),
		businessflow.IsCategoryNotFound(err):
		return fiber.StatusNotFound, code, message
	case businessflow.IsUsernameAlreadyExists(err),
		businessflow.IsCategoryAlreadyExists(err),
		businessflow.IsUserHasClients(err):
		return fiber.StatusConflict, code, message
	case businessflow.IsIncorrectPassword(err),
		businessflow.IsUserInactive(err),
		errors.Is(err, services.ErrTokenExpired),
		errors.Is(err, services.ErrTokenInvalid),
		errors.Is(err, services.ErrTokenRevoked):
		return fiber.StatusUnauthorized, code, message
	case errors.Is(err, context.DeadlineExceeded):
		return fiber.StatusGatewayTimeout, "REQUEST_TIMEOUT", "Request timed out"
	default:
		return fiber.StatusInternalServerError, code, message
	}
}

func requestID(c fiber.Ctx) string {
	if id := requestid.FromContext(c); id != "" {
		return id
	}
	return c.Get(fiber.HeaderXRequestID)
}

func setupCustomValidations(v *validator.Validate) {
	_ = v.RegisterValidation("username_format", func(fl validator.FieldLevel) bool {
		for _, char := range fl.Field().String() {
			if !(unicode.IsLetter(char) || unicode.IsDigit(char) || char == '_' || char == '.' || char == '-') {
				return false
			}
		}
		return true
	})

	_ = v.RegisterValidation("password_strength", func(fl validator.FieldLevel) bool {
		hasUpper := false
		hasNumber := false
		for _, char := range fl.Field().String() {
			if char >= 'A' && char <= 'Z' {
				hasUpper = true
			}
			if char >= '0' && char <= '9' {
				hasNumber = true
			}
		}
		return hasUpper && hasNumber
	})
}

func getValidationErrorMessage(err validator.FieldError) string {
	switch err.Tag() {
	case "required":
		return err.Field() + " is required"
	case "required_with":
		return err.Field() + " is required when " + err.Param() + " is set"
	case "min":
		return err.Field() + " must be at least " + err.Param()
	case "max":
		return err.Field() + " must be at most " + err.Param()
	case "uuid":
		return err.Field() + " must be a UUID"
	case "username_format":
		return "Username may contain only letters, digits, '.', '_' and '-'"
	case "password_strength":
		return "Password must contain at least 1 uppercase letter and 1 number"
	case "gte":
		return fmt.Sprintf("%s must be greater than or equal to %s", err.Field(), err.Param())
	case "lte":
		return fmt.Sprintf("%s must be less than or equal to %s", err.Field(), err.Param())
	default:
		return err.Field() + " is invalid"
	}
}
