package handlers

import (
	"github.com/amirphl/ams-registry/app/dto"
	businessflow "github.com/amirphl/ams-registry/business_flow"
	"github.com/gofiber/fiber/v3"
)

type CategoryHandlerInterface interface {
	ListCategories(c fiber.Ctx) error
	CreateCategory(c fiber.Ctx) error
}

type CategoryHandler struct {
	baseHandler
	flow businessflow.CategoryFlow
}

func NewCategoryHandler(flow businessflow.CategoryFlow) *CategoryHandler {
	return &CategoryHandler{baseHandler: newBaseHandler(), flow: flow}
}

// ListCategories returns all categories by name
// @Summary List categories
// @Tags Categories
// @Produce json
// @Security BearerAuth
// @Success 200 {object} dto.APIResponse{data=[]dto.CategoryDTO}
// @Router /api/v1/categories [get]
func (h *CategoryHandler) ListCategories(c fiber.Ctx) error {
	ctx, cancel := h.createRequestContext(c, "/api/v1/categories")
	defer cancel()

	result, err := h.flow.ListCategories(ctx)
	if err != nil {
		return h.flowError(c, err, "Failed to list categories", "LIST_CATEGORIES_FAILED")
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Categories retrieved successfully", result)
}

// CreateCategory adds a category
// @Summary Create category
// @Tags Categories
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body dto.CreateCategoryRequest true "Category"
// @Success 201 {object} dto.APIResponse{data=dto.CategoryDTO}
// @Failure 409 {object} dto.APIResponse "Category already exists"
// @Router /api/v1/categories [post]
func (h *CategoryHandler) CreateCategory(c fiber.Ctx) error {
	var req dto.CreateCategoryRequest
	if err := c.Bind().JSON(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}
	if ok, err := h.validate(c, &req); !ok {
		return err
	}

	ctx, cancel := h.createRequestContext(c, "/api/v1/categories")
	defer cancel()

	result, err := h.flow.CreateCategory(ctx, &req)
	if err != nil {
		return h.flowError(c, err, "Failed to create category", "CREATE_CATEGORY_FAILED")
	}
	return h.SuccessResponse(c, fiber.StatusCreated, "Category created successfully", result)
}
