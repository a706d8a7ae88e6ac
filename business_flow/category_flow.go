package businessflow

import (
	"context"
	"strings"

	"github.com/amirphl/ams-registry/app/dto"
	"github.com/amirphl/ams-registry/models"
	"github.com/amirphl/ams-registry/repository"
	"github.com/amirphl/ams-registry/utils"
)

// CategoryFlow lists and creates client categories
type CategoryFlow interface {
	ListCategories(ctx context.Context) ([]dto.CategoryDTO, error)
	CreateCategory(ctx context.Context, req *dto.CreateCategoryRequest) (*dto.CategoryDTO, error)
}

type CategoryFlowImpl struct {
	categoryRepo repository.CategoryRepository
}

func NewCategoryFlow(categoryRepo repository.CategoryRepository) CategoryFlow {
	return &CategoryFlowImpl{categoryRepo: categoryRepo}
}

func (cf *CategoryFlowImpl) ListCategories(ctx context.Context) ([]dto.CategoryDTO, error) {
	categories, err := cf.categoryRepo.ListAll(ctx)
	if err != nil {
		return nil, NewBusinessError("LIST_CATEGORIES_FAILED", "Failed to list categories", err)
	}
	out := make([]dto.CategoryDTO, 0, len(categories))
	for _, c := range categories {
		out = append(out, ToCategoryDTO(*c))
	}
	return out, nil
}

func (cf *CategoryFlowImpl) CreateCategory(ctx context.Context, req *dto.CreateCategoryRequest) (*dto.CategoryDTO, error) {
	name := strings.TrimSpace(req.Name)
	existing, err := cf.categoryRepo.ByName(ctx, name)
	if err != nil {
		return nil, NewBusinessError("CATEGORY_LOOKUP_FAILED", "Failed to lookup category", err)
	}
	if existing != nil {
		return nil, NewBusinessError("CATEGORY_ALREADY_EXISTS", "Category already exists", ErrCategoryAlreadyExists)
	}

	category, err := createCategory(ctx, cf.categoryRepo, name)
	if err != nil {
		if repository.IsUniqueViolation(err) {
			return nil, NewBusinessError("CATEGORY_ALREADY_EXISTS", "Category already exists", ErrCategoryAlreadyExists)
		}
		return nil, NewBusinessError("CATEGORY_CREATION_FAILED", "Failed to create category", err)
	}
	out := ToCategoryDTO(*category)
	return &out, nil
}

func createCategory(ctx context.Context, repo repository.CategoryRepository, name string) (*models.Category, error) {
	now := utils.UTCNow()
	category := &models.Category{Name: name, CreatedAt: now, UpdatedAt: now}
	if err := repo.Save(ctx, category); err != nil {
		return nil, err
	}
	return category, nil
}

// resolveCategory returns the category a registration refers to. A new name
// is created on first use; a concurrent creator wins and its row is reused.
func resolveCategory(ctx context.Context, repo repository.CategoryRepository, id *uint, newName *string) (*models.Category, error) {
	newName = utils.TrimPtr(newName)
	if (id == nil) == (newName == nil) {
		return nil, NewBusinessError("CATEGORY_CHOICE_REQUIRED", "Exactly one of category_id and new_category_name is required", ErrCategoryChoiceRequired)
	}

	if id != nil {
		category, err := repo.ByID(ctx, *id)
		if err != nil {
			return nil, NewBusinessError("CATEGORY_LOOKUP_FAILED", "Failed to lookup category", err)
		}
		if category == nil {
			return nil, NewBusinessErrorf("CATEGORY_NOT_FOUND", "Category %d not found", ErrCategoryNotFound, *id)
		}
		return category, nil
	}

	category, err := repo.ByName(ctx, *newName)
	if err != nil {
		return nil, NewBusinessError("CATEGORY_LOOKUP_FAILED", "Failed to lookup category", err)
	}
	if category != nil {
		return category, nil
	}

	category, err = createCategory(ctx, repo, *newName)
	if err == nil {
		return category, nil
	}
	if !repository.IsUniqueViolation(err) {
		return nil, NewBusinessError("CATEGORY_CREATION_FAILED", "Failed to create category", err)
	}
	category, err = repo.ByName(ctx, *newName)
	if err != nil || category == nil {
		return nil, NewBusinessError("CATEGORY_LOOKUP_FAILED", "Failed to lookup category", err)
	}
	return category, nil
}
