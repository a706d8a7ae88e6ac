package handlers

import (
	"github.com/amirphl/ams-registry/app/dto"
	businessflow "github.com/amirphl/ams-registry/business_flow"
	"github.com/gofiber/fiber/v3"
)

// SerialHandlerInterface defines the contract for serial handlers
type SerialHandlerInterface interface {
	Reserve(c fiber.Ctx) error
	Release(c fiber.Ctx) error
	PreviewNext(c fiber.Ctx) error
	ListActive(c fiber.Ctx) error
	ListRetired(c fiber.Ctx) error
	ListReserved(c fiber.Ctx) error
	Usage(c fiber.Ctx) error
	Sweep(c fiber.Ctx) error
}

type SerialHandler struct {
	baseHandler
	flow businessflow.SerialFlow
}

func NewSerialHandler(flow businessflow.SerialFlow) *SerialHandler {
	return &SerialHandler{baseHandler: newBaseHandler(), flow: flow}
}

// Reserve holds a serial for a registration form
// @Summary Reserve serial
// @Description Holds a serial for one hour. An unexpired hold is handed back instead of creating a new one.
// @Tags Serials
// @Produce json
// @Security BearerAuth
// @Success 201 {object} dto.APIResponse{data=dto.ReservationDTO}
// @Failure 503 {object} dto.APIResponse "Serial range exhausted or allocation busy"
// @Router /api/v1/serials/reservations [post]
func (h *SerialHandler) Reserve(c fiber.Ctx) error {
	operatorID, ok := h.userID(c)
	if !ok {
		return h.ErrorResponse(c, fiber.StatusUnauthorized, "User ID not found in context", "MISSING_USER_ID", nil)
	}

	ctx, cancel := h.createRequestContext(c, "/api/v1/serials/reservations")
	defer cancel()

	result, err := h.flow.Reserve(ctx, operatorID)
	if err != nil {
		return h.flowError(c, err, "Failed to reserve serial", "RESERVE_SERIAL_FAILED")
	}
	return h.SuccessResponse(c, fiber.StatusCreated, "Serial reserved", result)
}

// Release gives a held serial back
// @Summary Release reservation
// @Tags Serials
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param serial path int true "Reserved serial"
// @Param request body dto.ReleaseReservationRequest true "Reservation token"
// @Success 200 {object} dto.APIResponse
// @Failure 403 {object} dto.APIResponse "Reservation token mismatch"
// @Failure 404 {object} dto.APIResponse "Reservation not found"
// @Router /api/v1/serials/reservations/{serial} [delete]
func (h *SerialHandler) Release(c fiber.Ctx) error {
	serial, err := h.serialParam(c, "serial")
	if err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, err.Error(), "INVALID_SERIAL", nil)
	}

	var req dto.ReleaseReservationRequest
	if err := c.Bind().JSON(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}
	if ok, err := h.validate(c, &req); !ok {
		return err
	}

	ctx, cancel := h.createRequestContext(c, "/api/v1/serials/reservations/:serial")
	defer cancel()

	if err := h.flow.Release(ctx, serial, &req); err != nil {
		return h.flowError(c, err, "Failed to release reservation", "RELEASE_RESERVATION_FAILED")
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Reservation released", nil)
}

// PreviewNext shows the serial the next registration would likely get
// @Summary Preview next serial
// @Description Nothing is reserved; a concurrent registration may take the serial first.
// @Tags Serials
// @Produce json
// @Security BearerAuth
// @Success 200 {object} dto.APIResponse{data=dto.NextSerialDTO}
// @Router /api/v1/serials/next [get]
func (h *SerialHandler) PreviewNext(c fiber.Ctx) error {
	ctx, cancel := h.createRequestContext(c, "/api/v1/serials/next")
	defer cancel()

	result, err := h.flow.PreviewNext(ctx)
	if err != nil {
		return h.flowError(c, err, "Failed to preview serial", "PREVIEW_SERIAL_FAILED")
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Next serial", result)
}

// ListActive lists serials held by clients
// @Summary List active serials
// @Tags Serials
// @Produce json
// @Security BearerAuth
// @Success 200 {object} dto.APIResponse{data=dto.SerialListDTO}
// @Router /api/v1/serials/active [get]
func (h *SerialHandler) ListActive(c fiber.Ctx) error {
	return h.list(c, businessflow.SerialStateActive)
}

// ListRetired lists serials that will never be issued again
// @Summary List retired serials
// @Tags Serials
// @Produce json
// @Security BearerAuth
// @Success 200 {object} dto.APIResponse{data=dto.SerialListDTO}
// @Router /api/v1/serials/retired [get]
func (h *SerialHandler) ListRetired(c fiber.Ctx) error {
	return h.list(c, businessflow.SerialStateRetired)
}

// ListReserved lists held serials, including lapsed holds not yet swept
// @Summary List reserved serials
// @Tags Serials
// @Produce json
// @Security BearerAuth
// @Success 200 {object} dto.APIResponse{data=dto.SerialListDTO}
// @Router /api/v1/serials/reserved [get]
func (h *SerialHandler) ListReserved(c fiber.Ctx) error {
	return h.list(c, businessflow.SerialStateReserved)
}

func (h *SerialHandler) list(c fiber.Ctx, state string) error {
	ctx, cancel := h.createRequestContext(c, "/api/v1/serials/"+state)
	defer cancel()

	result, err := h.flow.ListSerials(ctx, state)
	if err != nil {
		return h.flowError(c, err, "Failed to list serials", "LIST_SERIALS_FAILED")
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Serials retrieved successfully", result)
}

// Usage counts serials per state
// @Summary Serial usage
// @Tags Serials
// @Produce json
// @Security BearerAuth
// @Success 200 {object} dto.APIResponse{data=dto.SerialUsageDTO}
// @Router /api/v1/serials/usage [get]
func (h *SerialHandler) Usage(c fiber.Ctx) error {
	ctx, cancel := h.createRequestContext(c, "/api/v1/serials/usage")
	defer cancel()

	result, err := h.flow.Usage(ctx)
	if err != nil {
		return h.flowError(c, err, "Failed to count serials", "SERIAL_USAGE_FAILED")
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Serial usage", result)
}

// Sweep removes lapsed reservations now
// @Summary Sweep expired reservations
// @Tags Serials
// @Produce json
// @Security BearerAuth
// @Success 200 {object} dto.APIResponse{data=dto.SweepResultDTO}
// @Router /api/v1/serials/sweep [post]
func (h *SerialHandler) Sweep(c fiber.Ctx) error {
	ctx, cancel := h.createRequestContext(c, "/api/v1/serials/sweep")
	defer cancel()

	result, err := h.flow.Sweep(ctx)
	if err != nil {
		return h.flowError(c, err, "Failed to sweep reservations", "SWEEP_FAILED")
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Expired reservations removed", result)
}
