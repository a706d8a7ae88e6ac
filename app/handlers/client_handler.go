package handlers

import (
	"strconv"

	"github.com/amirphl/ams-registry/app/dto"
	businessflow "github.com/amirphl/ams-registry/business_flow"
	"github.com/amirphl/ams-registry/utils"
	"github.com/gofiber/fiber/v3"
)

// ClientHandlerInterface defines the contract for client handlers
type ClientHandlerInterface interface {
	RegisterClient(c fiber.Ctx) error
	ListClients(c fiber.Ctx) error
	ExportClients(c fiber.Ctx) error
	GetClient(c fiber.Ctx) error
	GetClientBySerial(c fiber.Ctx) error
	UpdateClient(c fiber.Ctx) error
	DeleteClient(c fiber.Ctx) error
}

type ClientHandler struct {
	baseHandler
	flow businessflow.ClientFlow
}

func NewClientHandler(flow businessflow.ClientFlow) *ClientHandler {
	return &ClientHandler{baseHandler: newBaseHandler(), flow: flow}
}

// RegisterClient registers a client and assigns its serial number
// @Summary Register client
// @Description Assigns the next free serial, or redeems a reserved serial when serial_number and reservation_token are given
// @Tags Clients
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body dto.RegisterClientRequest true "Client data"
// @Success 201 {object} dto.APIResponse{data=dto.ClientDTO} "Client registered"
// @Failure 400 {object} dto.APIResponse "Validation error"
// @Failure 403 {object} dto.APIResponse "Reservation token mismatch"
// @Failure 409 {object} dto.APIResponse "Serial already in use"
// @Failure 410 {object} dto.APIResponse "Reservation expired"
// @Failure 503 {object} dto.APIResponse "Serial range exhausted or allocation busy"
// @Router /api/v1/clients [post]
func (h *ClientHandler) RegisterClient(c fiber.Ctx) error {
	operatorID, ok := h.userID(c)
	if !ok {
		return h.ErrorResponse(c, fiber.StatusUnauthorized, "User ID not found in context", "MISSING_USER_ID", nil)
	}

	var req dto.RegisterClientRequest
	if err := c.Bind().JSON(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}
	if ok, err := h.validate(c, &req); !ok {
		return err
	}

	ctx, cancel := h.createRequestContext(c, "/api/v1/clients")
	defer cancel()

	result, err := h.flow.RegisterClient(ctx, &req, operatorID, h.metadata(c))
	if err != nil {
		return h.flowError(c, err, "Failed to register client", "REGISTER_CLIENT_FAILED")
	}
	return h.SuccessResponse(c, fiber.StatusCreated, "Client registered successfully", result)
}

// ListClients returns a page of clients ordered by serial
// @Summary List clients
// @Tags Clients
// @Produce json
// @Security BearerAuth
// @Param page query int false "Page number" default(1)
// @Param page_size query int false "Page size" default(50)
// @Param registered_by query string false "Username of the registering operator"
// @Param category_id query int false "Category ID"
// @Success 200 {object} dto.APIResponse{data=dto.ListClientsResponse}
// @Router /api/v1/clients [get]
func (h *ClientHandler) ListClients(c fiber.Ctx) error {
	req, err := h.listRequest(c)
	if err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, err.Error(), "INVALID_QUERY", nil)
	}
	if ok, err := h.validate(c, req); !ok {
		return err
	}

	ctx, cancel := h.createRequestContext(c, "/api/v1/clients")
	defer cancel()

	result, err := h.flow.ListClients(ctx, req)
	if err != nil {
		return h.flowError(c, err, "Failed to list clients", "LIST_CLIENTS_FAILED")
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Clients retrieved successfully", result)
}

// ExportClients downloads the filtered client list as an Excel workbook
// @Summary Export clients
// @Tags Clients
// @Produce application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Security BearerAuth
// @Param registered_by query string false "Username of the registering operator"
// @Param category_id query int false "Category ID"
// @Success 200 {file} file
// @Router /api/v1/clients/export [get]
func (h *ClientHandler) ExportClients(c fiber.Ctx) error {
	req, err := h.listRequest(c)
	if err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, err.Error(), "INVALID_QUERY", nil)
	}

	ctx, cancel := h.createRequestContextWithTimeout(c, "/api/v1/clients/export", 2*utils.RequestTimeout)
	defer cancel()

	filename, data, err := h.flow.ExportClients(ctx, req)
	if err != nil {
		return h.flowError(c, err, "Failed to export clients", "EXPORT_CLIENTS_FAILED")
	}

	c.Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Set("Content-Disposition", "attachment; filename="+filename)
	return c.Send(data)
}

// GetClient returns one client
// @Summary Get client
// @Tags Clients
// @Produce json
// @Security BearerAuth
// @Param id path int true "Client ID"
// @Success 200 {object} dto.APIResponse{data=dto.ClientDTO}
// @Failure 404 {object} dto.APIResponse "Client not found"
// @Router /api/v1/clients/{id} [get]
func (h *ClientHandler) GetClient(c fiber.Ctx) error {
	id, err := h.uintParam(c, "id")
	if err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, err.Error(), "INVALID_CLIENT_ID", nil)
	}

	ctx, cancel := h.createRequestContext(c, "/api/v1/clients/:id")
	defer cancel()

	result, err := h.flow.GetClient(ctx, id)
	if err != nil {
		return h.flowError(c, err, "Failed to get client", "GET_CLIENT_FAILED")
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Client retrieved successfully", result)
}

// GetClientBySerial returns the client holding a serial
// @Summary Get client by serial
// @Tags Clients
// @Produce json
// @Security BearerAuth
// @Param serial path int true "Serial number"
// @Success 200 {object} dto.APIResponse{data=dto.ClientDTO}
// @Failure 400 {object} dto.APIResponse "Serial out of range"
// @Failure 404 {object} dto.APIResponse "No client holds the serial"
// @Router /api/v1/clients/serial/{serial} [get]
func (h *ClientHandler) GetClientBySerial(c fiber.Ctx) error {
	serial, err := h.serialParam(c, "serial")
	if err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, err.Error(), "INVALID_SERIAL", nil)
	}

	ctx, cancel := h.createRequestContext(c, "/api/v1/clients/serial/:serial")
	defer cancel()

	result, err := h.flow.GetClientBySerial(ctx, serial)
	if err != nil {
		return h.flowError(c, err, "Failed to get client", "GET_CLIENT_FAILED")
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Client retrieved successfully", result)
}

// UpdateClient edits a client's descriptive fields
// @Summary Update client
// @Tags Clients
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Client ID"
// @Param request body dto.UpdateClientRequest true "Fields to change"
// @Success 200 {object} dto.APIResponse{data=dto.ClientDTO}
// @Router /api/v1/clients/{id} [put]
func (h *ClientHandler) UpdateClient(c fiber.Ctx) error {
	id, err := h.uintParam(c, "id")
	if err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, err.Error(), "INVALID_CLIENT_ID", nil)
	}

	var req dto.UpdateClientRequest
	if err := c.Bind().JSON(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}
	if ok, err := h.validate(c, &req); !ok {
		return err
	}

	ctx, cancel := h.createRequestContext(c, "/api/v1/clients/:id")
	defer cancel()

	result, err := h.flow.UpdateClient(ctx, id, &req)
	if err != nil {
		return h.flowError(c, err, "Failed to update client", "UPDATE_CLIENT_FAILED")
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Client updated successfully", result)
}

// DeleteClient removes a client and retires its serial
// @Summary Delete client
// @Tags Clients
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Client ID"
// @Param request body dto.DeleteClientRequest false "Reason"
// @Success 200 {object} dto.APIResponse{data=dto.RetiredSerialDTO}
// @Failure 404 {object} dto.APIResponse "Client not found"
// @Router /api/v1/clients/{id} [delete]
func (h *ClientHandler) DeleteClient(c fiber.Ctx) error {
	id, err := h.uintParam(c, "id")
	if err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, err.Error(), "INVALID_CLIENT_ID", nil)
	}

	var req dto.DeleteClientRequest
	if len(c.Body()) > 0 {
		if err := c.Bind().JSON(&req); err != nil {
			return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
		}
		if ok, err := h.validate(c, &req); !ok {
			return err
		}
	}

	ctx, cancel := h.createRequestContext(c, "/api/v1/clients/:id")
	defer cancel()

	result, err := h.flow.DeleteClient(ctx, id, &req, h.metadata(c))
	if err != nil {
		return h.flowError(c, err, "Failed to delete client", "DELETE_CLIENT_FAILED")
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Client deleted and serial retired", result)
}

func (h *ClientHandler) listRequest(c fiber.Ctx) (*dto.ListClientsRequest, error) {
	req := &dto.ListClientsRequest{}
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
	if v := c.Query("registered_by"); v != "" {
		req.RegisteredBy = &v
	}
	if v := c.Query("category_id"); v != "" {
		id, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return nil, err
		}
		req.CategoryID = utils.ToPtr(uint(id))
	}
	return req, nil
}
