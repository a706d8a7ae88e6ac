package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/amirphl/ams-registry/models"
	"github.com/amirphl/ams-registry/utils"
	"gorm.io/gorm"
)

// ClientRepositoryImpl implements ClientRepository interface
type ClientRepositoryImpl struct {
	*BaseRepository[models.Client, models.ClientFilter]
}

// NewClientRepository creates a new client repository
func NewClientRepository(db *gorm.DB) ClientRepository {
	return &ClientRepositoryImpl{
		BaseRepository: NewBaseRepository[models.Client, models.ClientFilter](db),
	}
}

// BySerial retrieves the client holding serial
func (r *ClientRepositoryImpl) BySerial(ctx context.Context, serial int64) (*models.Client, error) {
	var client models.Client
	err := r.getDB(ctx).Where("serial_number = ?", serial).First(&client).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find client by serial %d: %w", serial, err)
	}
	return &client, nil
}

// MaxSerial returns the highest active serial
func (r *ClientRepositoryImpl) MaxSerial(ctx context.Context) (int64, bool, error) {
	return maxSerial(r.getDB(ctx), &models.Client{})
}

// Serials returns all active serials in ascending order
func (r *ClientRepositoryImpl) Serials(ctx context.Context) ([]int64, error) {
	return serials(r.getDB(ctx), &models.Client{})
}

// HasSerial reports whether serial is actively assigned
func (r *ClientRepositoryImpl) HasSerial(ctx context.Context, serial int64) (bool, error) {
	return hasSerial(r.getDB(ctx), &models.Client{}, serial)
}

// CountSerials counts active serials in [from, to]
func (r *ClientRepositoryImpl) CountSerials(ctx context.Context, from, to int64) (int64, error) {
	return countSerials(r.getDB(ctx), &models.Client{}, from, to)
}

// UpdateDetails updates the descriptive fields of a client. The serial number
// is not writable through this path.
func (r *ClientRepositoryImpl) UpdateDetails(ctx context.Context, id uint, firstName, lastName *string, categoryID *uint) error {
	updates := map[string]any{"updated_at": utils.UTCNow()}
	if firstName != nil {
		updates["first_name"] = *firstName
	}
	if lastName != nil {
		updates["last_name"] = *lastName
	}
	if categoryID != nil {
		updates["category_id"] = *categoryID
	}

	res := r.getDB(ctx).Model(&models.Client{}).Where("id = ?", id).Updates(updates)
	if res.Error != nil {
		return fmt.Errorf("failed to update client %d: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// Delete removes a client row
func (r *ClientRepositoryImpl) Delete(ctx context.Context, id uint) error {
	res := r.getDB(ctx).Delete(&models.Client{}, id)
	if res.Error != nil {
		return fmt.Errorf("failed to delete client %d: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *ClientRepositoryImpl) applyFilter(query *gorm.DB, filter models.ClientFilter) *gorm.DB {
	if filter.ID != nil {
		query = query.Where("id = ?", *filter.ID)
	}
	if filter.SerialNumber != nil {
		query = query.Where("serial_number = ?", *filter.SerialNumber)
	}
	if filter.RegisteredByID != nil {
		query = query.Where("registered_by_id = ?", *filter.RegisteredByID)
	}
	if filter.CategoryID != nil {
		query = query.Where("category_id = ?", *filter.CategoryID)
	}
	if filter.FirstName != nil {
		query = query.Where("first_name = ?", *filter.FirstName)
	}
	if filter.LastName != nil {
		query = query.Where("last_name = ?", *filter.LastName)
	}
	if filter.CreatedAfter != nil {
		query = query.Where("created_at > ?", *filter.CreatedAfter)
	}
	if filter.CreatedBefore != nil {
		query = query.Where("created_at < ?", *filter.CreatedBefore)
	}
	return query
}

// ByFilter retrieves clients based on filter criteria, with their user and category loaded
func (r *ClientRepositoryImpl) ByFilter(ctx context.Context, filter models.ClientFilter, orderBy string, limit, offset int) ([]*models.Client, error) {
	query := r.applyFilter(r.getDB(ctx).Model(&models.Client{}), filter)
	query = paginate(query, orderBy, "serial_number ASC", limit, offset)

	var clients []*models.Client
	if err := query.Preload("RegisteredBy").Preload("Category").Find(&clients).Error; err != nil {
		return nil, err
	}
	return clients, nil
}

// Count returns the number of clients matching the filter
func (r *ClientRepositoryImpl) Count(ctx context.Context, filter models.ClientFilter) (int64, error) {
	var count int64
	err := r.applyFilter(r.getDB(ctx).Model(&models.Client{}), filter).Count(&count).Error
	return count, err
}

// Exists checks if any client matching the filter exists
func (r *ClientRepositoryImpl) Exists(ctx context.Context, filter models.ClientFilter) (bool, error) {
	count, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}
