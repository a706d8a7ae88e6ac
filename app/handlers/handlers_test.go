package handlers

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/amirphl/ams-registry/allocation"
	"github.com/amirphl/ams-registry/app/dto"
	"github.com/amirphl/ams-registry/app/services"
	businessflow "github.com/amirphl/ams-registry/business_flow"
	"github.com/amirphl/ams-registry/utils"
	"github.com/gofiber/fiber/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassify(t *testing.T) {
	wrap := func(code string, err error) error {
		return businessflow.NewBusinessError(code, "message", err)
	}

	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{name: "exhausted", err: wrap("SERIAL_RANGE_EXHAUSTED", &allocation.ExhaustedError{Min: 5000, Max: 99999}), wantStatus: fiber.StatusServiceUnavailable, wantCode: "SERIAL_RANGE_EXHAUSTED"},
		{name: "lock timeout", err: wrap("SERIAL_LOCK_TIMEOUT", &allocation.LockTimeoutError{Lock: allocation.LockName, Mode: allocation.ModeExclusive}), wantStatus: fiber.StatusServiceUnavailable, wantCode: "SERIAL_LOCK_TIMEOUT"},
		{name: "conflict", err: wrap("SERIAL_CONFLICT", &allocation.ConflictError{Serial: 5000, State: allocation.StateRetired}), wantStatus: fiber.StatusConflict, wantCode: "SERIAL_CONFLICT"},
		{name: "client not found", err: wrap("CLIENT_NOT_FOUND", &allocation.NotFoundError{ClientID: 3}), wantStatus: fiber.StatusNotFound, wantCode: "CLIENT_NOT_FOUND"},
		{name: "out of range", err: wrap("SERIAL_OUT_OF_RANGE", &allocation.OutOfRangeError{Serial: 4999, Min: 5000, Max: 99999}), wantStatus: fiber.StatusBadRequest, wantCode: "SERIAL_OUT_OF_RANGE"},
		{name: "token mismatch", err: wrap("RESERVATION_TOKEN_MISMATCH", allocation.ErrReservationTokenMismatch), wantStatus: fiber.StatusForbidden, wantCode: "RESERVATION_TOKEN_MISMATCH"},
		{name: "reservation expired", err: wrap("RESERVATION_EXPIRED", allocation.ErrReservationExpired), wantStatus: fiber.StatusGone, wantCode: "RESERVATION_EXPIRED"},
		{name: "reservation not found", err: wrap("RESERVATION_NOT_FOUND", allocation.ErrReservationNotFound), wantStatus: fiber.StatusNotFound, wantCode: "RESERVATION_NOT_FOUND"},
		{name: "validation", err: wrap("CATEGORY_CHOICE_REQUIRED", businessflow.ErrCategoryChoiceRequired), wantStatus: fiber.StatusBadRequest, wantCode: "CATEGORY_CHOICE_REQUIRED"},
		{name: "username taken", err: wrap("USERNAME_ALREADY_EXISTS", businessflow.ErrUsernameAlreadyExists), wantStatus: fiber.StatusConflict, wantCode: "USERNAME_ALREADY_EXISTS"},
		{name: "bad password", err: wrap("INCORRECT_CREDENTIALS", businessflow.ErrIncorrectPassword), wantStatus: fiber.StatusUnauthorized, wantCode: "INCORRECT_CREDENTIALS"},
		{name: "revoked token", err: wrap("INVALID_REFRESH_TOKEN", services.ErrTokenRevoked), wantStatus: fiber.StatusUnauthorized, wantCode: "INVALID_REFRESH_TOKEN"},
		{name: "deadline", err: fmt.Errorf("query: %w", context.DeadlineExceeded), wantStatus: fiber.StatusGatewayTimeout, wantCode: "REQUEST_TIMEOUT"},
		{name: "unknown", err: wrap("DB_DOWN", fmt.Errorf("connection refused")), wantStatus: fiber.StatusInternalServerError, wantCode: "DB_DOWN"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, code, _ := classify(tt.err)
			assert.Equal(t, tt.wantStatus, status)
			assert.Equal(t, tt.wantCode, code)
		})
	}
}

func TestFlowErrorSetsRetryAfterOnLockTimeout(t *testing.T) {
	h := newBaseHandler()
	app := fiber.New()
	app.Get("/busy", func(c fiber.Ctx) error {
		return h.flowError(c, businessflow.NewBusinessError("SERIAL_LOCK_TIMEOUT", "busy", &allocation.LockTimeoutError{Lock: allocation.LockName}), "failed", "FAILED")
	})
	app.Get("/boom", func(c fiber.Ctx) error {
		return h.flowError(c, fmt.Errorf("boom"), "Operation failed", "OPERATION_FAILED")
	})

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/busy", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusServiceUnavailable, resp.StatusCode)
	assert.Equal(t, "1", resp.Header.Get(fiber.HeaderRetryAfter))

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/boom", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusInternalServerError, resp.StatusCode)
	assert.Empty(t, resp.Header.Get(fiber.HeaderRetryAfter))
}

func TestValidationRules(t *testing.T) {
	h := newBaseHandler()

	tests := []struct {
		name  string
		req   any
		valid bool
	}{
		{name: "signup ok", req: &dto.SignupRequest{FirstName: "A", LastName: "B", Username: "op_1", Password: "Passw0rdX"}, valid: true},
		{name: "weak password", req: &dto.SignupRequest{FirstName: "A", LastName: "B", Username: "op_1", Password: "password"}},
		{name: "bad username", req: &dto.SignupRequest{FirstName: "A", LastName: "B", Username: "op 1!", Password: "Passw0rdX"}},
		{name: "register direct", req: &dto.RegisterClientRequest{FirstName: "A", LastName: "B"}, valid: true},
		{name: "token without serial", req: &dto.RegisterClientRequest{FirstName: "A", LastName: "B", ReservationToken: utils.ToPtr("0b7e2c1a-9d1f-4a43-8f1e-7f1c2a3b4c5d")}},
		{name: "token not uuid", req: &dto.RegisterClientRequest{FirstName: "A", LastName: "B", SerialNumber: utils.ToPtr(int64(5000)), ReservationToken: utils.ToPtr("abc")}},
		{name: "release needs token", req: &dto.ReleaseReservationRequest{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := h.validator.Struct(tt.req)
			if tt.valid {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}
