package handlers

import (
	"strconv"

	"github.com/amirphl/ams-registry/app/dto"
	businessflow "github.com/amirphl/ams-registry/business_flow"
	"github.com/amirphl/ams-registry/utils"
	"github.com/gofiber/fiber/v3"
)

// AuditHandlerInterface defines the contract for audit trail handlers
type AuditHandlerInterface interface {
	ListAuditLogs(c fiber.Ctx) error
	SerialHistory(c fiber.Ctx) error
}

type AuditHandler struct {
	baseHandler
	flow businessflow.AuditFlow
}

func NewAuditHandler(flow businessflow.AuditFlow) *AuditHandler {
	return &AuditHandler{baseHandler: newBaseHandler(), flow: flow}
}

// ListAuditLogs returns a page of audit entries, newest first
// @Summary List audit logs
// @Tags Audit
// @Produce json
// @Security BearerAuth
// @Param page query int false "Page number" default(1)
// @Param page_size query int false "Page size" default(50)
// @Param action query string false "Action name"
// @Param user_id query int false "Operator ID"
// @Param serial_number query int false "Serial number"
// @Param success query bool false "Outcome"
// @Success 200 {object} dto.APIResponse{data=dto.ListAuditLogsResponse}
// @Router /api/v1/audit-logs [get]
func (h *AuditHandler) ListAuditLogs(c fiber.Ctx) error {
	req, err := h.listRequest(c)
	if err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, err.Error(), "INVALID_QUERY", nil)
	}
	if ok, err := h.validate(c, req); !ok {
		return err
	}

	ctx, cancel := h.createRequestContext(c, "/api/v1/audit-logs")
	defer cancel()

	result, err := h.flow.ListAuditLogs(ctx, req)
	if err != nil {
		return h.flowError(c, err, "Failed to list audit logs", "LIST_AUDIT_LOGS_FAILED")
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Audit logs retrieved successfully", result)
}

// SerialHistory returns every recorded event for one serial, oldest first
// @Summary Serial history
// @Tags Audit
// @Produce json
// @Security BearerAuth
// @Param serial path int true "Serial number"
// @Success 200 {object} dto.APIResponse{data=dto.SerialHistoryResponse}
// @Failure 400 {object} dto.APIResponse "Serial out of range"
// @Router /api/v1/serials/{serial}/history [get]
func (h *AuditHandler) SerialHistory(c fiber.Ctx) error {
	serial, err := h.serialParam(c, "serial")
	if err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, err.Error(), "INVALID_SERIAL", nil)
	}

	ctx, cancel := h.createRequestContext(c, "/api/v1/serials/:serial/history")
	defer cancel()

	result, err := h.flow.SerialHistory(ctx, serial)
	if err != nil {
		return h.flowError(c, err, "Failed to load serial history", "SERIAL_HISTORY_FAILED")
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Serial history retrieved successfully", result)
}

func (h *AuditHandler) listRequest(c fiber.Ctx) (*dto.ListAuditLogsRequest, error) {
	req := &dto.ListAuditLogsRequest{}
	var err error
	if v := c.Query("page"); v != "" {
		if req.Page, err = strconv.Atoi(v); err != nil {
			return nil, err
		}
	}
	if v := c.Query("page_size"); v != "" {
		if req.PageSize, err = strconv.Atoi(v); err != nil {
			return nil, err
		}
	}
	if v := c.Query("action"); v != "" {
		req.Action = &v
	}
	if v := c.Query("user_id"); v != "" {
		id, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return nil, err
		}
		req.UserID = utils.ToPtr(uint(id))
	}
	if v := c.Query("serial_number"); v != "" {
		serial, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return nil, err
		}
		req.SerialNumber = &serial
	}
	if v := c.Query("success"); v != "" {
		ok, err := strconv.ParseBool(v)
		if err != nil {
			return nil, err
		}
		req.Success = &ok
	}
	return req, nil
}
