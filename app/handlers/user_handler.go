package handlers

import (
	"github.com/amirphl/ams-registry/app/dto"
	businessflow "github.com/amirphl/ams-registry/business_flow"
	"github.com/gofiber/fiber/v3"
)

// UserHandlerInterface defines the contract for operator account handlers
type UserHandlerInterface interface {
	ListUsers(c fiber.Ctx) error
	GetUser(c fiber.Ctx) error
	UpdateUser(c fiber.Ctx) error
	DeleteUser(c fiber.Ctx) error
}

type UserHandler struct {
	baseHandler
	flow businessflow.UserFlow
}

func NewUserHandler(flow businessflow.UserFlow) *UserHandler {
	return &UserHandler{baseHandler: newBaseHandler(), flow: flow}
}

// ListUsers returns every operator
// @Summary List users
// @Tags Users
// @Produce json
// @Security BearerAuth
// @Success 200 {object} dto.APIResponse{data=dto.ListUsersResponse}
// @Router /api/v1/users [get]
func (h *UserHandler) ListUsers(c fiber.Ctx) error {
	ctx, cancel := h.createRequestContext(c, "/api/v1/users")
	defer cancel()

	result, err := h.flow.ListUsers(ctx)
	if err != nil {
		return h.flowError(c, err, "Failed to list users", "LIST_USERS_FAILED")
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Users retrieved successfully", result)
}

// GetUser returns one operator
// @Summary Get user
// @Tags Users
// @Produce json
// @Security BearerAuth
// @Param id path int true "User ID"
// @Success 200 {object} dto.APIResponse{data=dto.UserDTO}
// @Failure 404 {object} dto.APIResponse "User not found"
// @Router /api/v1/users/{id} [get]
func (h *UserHandler) GetUser(c fiber.Ctx) error {
	id, err := h.uintParam(c, "id")
	if err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, err.Error(), "INVALID_USER_ID", nil)
	}

	ctx, cancel := h.createRequestContext(c, "/api/v1/users/:id")
	defer cancel()

	result, err := h.flow.GetUser(ctx, id)
	if err != nil {
		return h.flowError(c, err, "Failed to get user", "GET_USER_FAILED")
	}
	return h.SuccessResponse(c, fiber.StatusOK, "User retrieved successfully", result)
}

// UpdateUser edits an operator
// @Summary Update user
// @Tags Users
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "User ID"
// @Param request body dto.UpdateUserRequest true "Fields to change"
// @Success 200 {object} dto.APIResponse{data=dto.UserDTO}
// @Router /api/v1/users/{id} [put]
func (h *UserHandler) UpdateUser(c fiber.Ctx) error {
	id, err := h.uintParam(c, "id")
	if err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, err.Error(), "INVALID_USER_ID", nil)
	}

	var req dto.UpdateUserRequest
	if err := c.Bind().JSON(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}
	if ok, err := h.validate(c, &req); !ok {
		return err
	}

	ctx, cancel := h.createRequestContext(c, "/api/v1/users/:id")
	defer cancel()

	result, err := h.flow.UpdateUser(ctx, id, &req)
	if err != nil {
		return h.flowError(c, err, "Failed to update user", "UPDATE_USER_FAILED")
	}
	return h.SuccessResponse(c, fiber.StatusOK, "User updated successfully", result)
}

// DeleteUser removes an operator without clients
// @Summary Delete user
// @Tags Users
// @Produce json
// @Security BearerAuth
// @Param id path int true "User ID"
// @Success 200 {object} dto.APIResponse
// @Failure 409 {object} dto.APIResponse "User has registered clients"
// @Router /api/v1/users/{id} [delete]
func (h *UserHandler) DeleteUser(c fiber.Ctx) error {
	id, err := h.uintParam(c, "id")
	if err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, err.Error(), "INVALID_USER_ID", nil)
	}

	ctx, cancel := h.createRequestContext(c, "/api/v1/users/:id")
	defer cancel()

	if err := h.flow.DeleteUser(ctx, id); err != nil {
		return h.flowError(c, err, "Failed to delete user", "DELETE_USER_FAILED")
	}
	return h.SuccessResponse(c, fiber.StatusOK, "User deleted successfully", nil)
}
