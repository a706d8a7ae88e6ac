package repository

import (
	"context"

	"github.com/amirphl/ams-registry/models"
	"gorm.io/gorm"
)

// CategoryRepositoryImpl implements CategoryRepository interface
type CategoryRepositoryImpl struct {
	*BaseRepository[models.Category, models.CategoryFilter]
}

// NewCategoryRepository creates a new category repository
func NewCategoryRepository(db *gorm.DB) CategoryRepository {
	return &CategoryRepositoryImpl{
		BaseRepository: NewBaseRepository[models.Category, models.CategoryFilter](db),
	}
}

// ByName retrieves a category by its unique name
func (r *CategoryRepositoryImpl) ByName(ctx context.Context, name string) (*models.Category, error) {
	categories, err := r.ByFilter(ctx, models.CategoryFilter{Name: &name}, "", 1, 0)
	if err != nil {
		return nil, err
	}
	if len(categories) == 0 {
		return nil, nil
	}
	return categories[0], nil
}

// ListAll returns every category ordered by name
func (r *CategoryRepositoryImpl) ListAll(ctx context.Context) ([]*models.Category, error) {
	return r.ByFilter(ctx, models.CategoryFilter{}, "name ASC", 0, 0)
}

func (r *CategoryRepositoryImpl) applyFilter(query *gorm.DB, filter models.CategoryFilter) *gorm.DB {
	if filter.ID != nil {
		query = query.Where("id = ?", *filter.ID)
	}
	if filter.Name != nil {
		query = query.Where("name = ?", *filter.Name)
	}
	return query
}

// ByFilter retrieves categories based on filter criteria
func (r *CategoryRepositoryImpl) ByFilter(ctx context.Context, filter models.CategoryFilter, orderBy string, limit, offset int) ([]*models.Category, error) {
	query := r.applyFilter(r.getDB(ctx).Model(&models.Category{}), filter)
	query = paginate(query, orderBy, "id DESC", limit, offset)

	var categories []*models.Category
	if err := query.Find(&categories).Error; err != nil {
		return nil, err
	}
	return categories, nil
}

// Count returns the number of categories matching the filter
func (r *CategoryRepositoryImpl) Count(ctx context.Context, filter models.CategoryFilter) (int64, error) {
	var count int64
	err := r.applyFilter(r.getDB(ctx).Model(&models.Category{}), filter).Count(&count).Error
	return count, err
}

// Exists checks if any category matching the filter exists
func (r *CategoryRepositoryImpl) Exists(ctx context.Context, filter models.CategoryFilter) (bool, error) {
	count, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}
