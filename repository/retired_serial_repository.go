package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/amirphl/ams-registry/models"
	"gorm.io/gorm"
)

// RetiredSerialRepositoryImpl implements RetiredSerialRepository interface
type RetiredSerialRepositoryImpl struct {
	*BaseRepository[models.RetiredSerial, models.RetiredSerialFilter]
}

// NewRetiredSerialRepository creates a new retired serial repository
func NewRetiredSerialRepository(db *gorm.DB) RetiredSerialRepository {
	return &RetiredSerialRepositoryImpl{
		BaseRepository: NewBaseRepository[models.RetiredSerial, models.RetiredSerialFilter](db),
	}
}

func (r *RetiredSerialRepositoryImpl) BySerial(ctx context.Context, serial int64) (*models.RetiredSerial, error) {
	var retired models.RetiredSerial
	err := r.getDB(ctx).Where("serial_number = ?", serial).First(&retired).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find retired serial %d: %w", serial, err)
	}
	return &retired, nil
}

func (r *RetiredSerialRepositoryImpl) MaxSerial(ctx context.Context) (int64, bool, error) {
	return maxSerial(r.getDB(ctx), &models.RetiredSerial{})
}

func (r *RetiredSerialRepositoryImpl) Serials(ctx context.Context) ([]int64, error) {
	return serials(r.getDB(ctx), &models.RetiredSerial{})
}

func (r *RetiredSerialRepositoryImpl) HasSerial(ctx context.Context, serial int64) (bool, error) {
	return hasSerial(r.getDB(ctx), &models.RetiredSerial{}, serial)
}

func (r *RetiredSerialRepositoryImpl) CountSerials(ctx context.Context, from, to int64) (int64, error) {
	return countSerials(r.getDB(ctx), &models.RetiredSerial{}, from, to)
}

func (r *RetiredSerialRepositoryImpl) applyFilter(query *gorm.DB, filter models.RetiredSerialFilter) *gorm.DB {
	if filter.SerialNumber != nil {
		query = query.Where("serial_number = ?", *filter.SerialNumber)
	}
	if filter.OriginalClientID != nil {
		query = query.Where("original_client_id = ?", *filter.OriginalClientID)
	}
	if filter.RetiredAfter != nil {
		query = query.Where("retired_at > ?", *filter.RetiredAfter)
	}
	if filter.RetiredBefore != nil {
		query = query.Where("retired_at < ?", *filter.RetiredBefore)
	}
	return query
}

func (r *RetiredSerialRepositoryImpl) ByFilter(ctx context.Context, filter models.RetiredSerialFilter, orderBy string, limit, offset int) ([]*models.RetiredSerial, error) {
	query := r.applyFilter(r.getDB(ctx).Model(&models.RetiredSerial{}), filter)
	query = paginate(query, orderBy, "serial_number ASC", limit, offset)

	var retired []*models.RetiredSerial
	if err := query.Find(&retired).Error; err != nil {
		return nil, err
	}
	return retired, nil
}

func (r *RetiredSerialRepositoryImpl) Count(ctx context.Context, filter models.RetiredSerialFilter) (int64, error) {
	var count int64
	err := r.applyFilter(r.getDB(ctx).Model(&models.RetiredSerial{}), filter).Count(&count).Error
	return count, err
}
