package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/amirphl/ams-registry/models"
	"gorm.io/gorm"
)

// ReservedSerialRepositoryImpl implements ReservedSerialRepository interface
type ReservedSerialRepositoryImpl struct {
	*BaseRepository[models.ReservedSerial, models.ReservedSerialFilter]
}

// NewReservedSerialRepository creates a new reservation repository
func NewReservedSerialRepository(db *gorm.DB) ReservedSerialRepository {
	return &ReservedSerialRepositoryImpl{
		BaseRepository: NewBaseRepository[models.ReservedSerial, models.ReservedSerialFilter](db),
	}
}

func (r *ReservedSerialRepositoryImpl) BySerial(ctx context.Context, serial int64) (*models.ReservedSerial, error) {
	var reserved models.ReservedSerial
	err := r.getDB(ctx).Where("serial_number = ?", serial).First(&reserved).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find reservation for serial %d: %w", serial, err)
	}
	return &reserved, nil
}

func (r *ReservedSerialRepositoryImpl) LiveHeldBy(ctx context.Context, userID uint, since time.Time) (*models.ReservedSerial, error) {
	var reserved models.ReservedSerial
	err := r.getDB(ctx).
		Where("reserved_by_id = ? AND reserved_at >= ?", userID, since).
		Order("serial_number ASC").
		First(&reserved).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find live reservation: %w", err)
	}
	return &reserved, nil
}

func (r *ReservedSerialRepositoryImpl) DeleteBySerial(ctx context.Context, serial int64) (bool, error) {
	res := r.getDB(ctx).Where("serial_number = ?", serial).Delete(&models.ReservedSerial{})
	if res.Error != nil {
		return false, fmt.Errorf("failed to delete reservation for serial %d: %w", serial, res.Error)
	}
	return res.RowsAffected > 0, nil
}

func (r *ReservedSerialRepositoryImpl) DeleteReservedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res := r.getDB(ctx).Where("reserved_at < ?", cutoff).Delete(&models.ReservedSerial{})
	if res.Error != nil {
		return 0, fmt.Errorf("failed to delete reservations before %s: %w", cutoff.Format(time.RFC3339), res.Error)
	}
	return res.RowsAffected, nil
}

func (r *ReservedSerialRepositoryImpl) MaxSerial(ctx context.Context) (int64, bool, error) {
	return maxSerial(r.getDB(ctx), &models.ReservedSerial{})
}

func (r *ReservedSerialRepositoryImpl) Serials(ctx context.Context) ([]int64, error) {
	return serials(r.getDB(ctx), &models.ReservedSerial{})
}

func (r *ReservedSerialRepositoryImpl) HasSerial(ctx context.Context, serial int64) (bool, error) {
	return hasSerial(r.getDB(ctx), &models.ReservedSerial{}, serial)
}

func (r *ReservedSerialRepositoryImpl) CountSerials(ctx context.Context, from, to int64) (int64, error) {
	return countSerials(r.getDB(ctx), &models.ReservedSerial{}, from, to)
}

func (r *ReservedSerialRepositoryImpl) applyFilter(query *gorm.DB, filter models.ReservedSerialFilter) *gorm.DB {
	if filter.SerialNumber != nil {
		query = query.Where("serial_number = ?", *filter.SerialNumber)
	}
	if filter.Token != nil {
		query = query.Where("token = ?", *filter.Token)
	}
	if filter.ReservedByID != nil {
		query = query.Where("reserved_by_id = ?", *filter.ReservedByID)
	}
	if filter.ReservedBefore != nil {
		query = query.Where("reserved_at < ?", *filter.ReservedBefore)
	}
	if filter.ReservedAfter != nil {
		query = query.Where("reserved_at > ?", *filter.ReservedAfter)
	}
	return query
}

func (r *ReservedSerialRepositoryImpl) ByFilter(ctx context.Context, filter models.ReservedSerialFilter, orderBy string, limit, offset int) ([]*models.ReservedSerial, error) {
	query := r.applyFilter(r.getDB(ctx).Model(&models.ReservedSerial{}), filter)
	query = paginate(query, orderBy, "serial_number ASC", limit, offset)

	var reserved []*models.ReservedSerial
	if err := query.Find(&reserved).Error; err != nil {
		return nil, err
	}
	return reserved, nil
}

func (r *ReservedSerialRepositoryImpl) Count(ctx context.Context, filter models.ReservedSerialFilter) (int64, error) {
	var count int64
	err := r.applyFilter(r.getDB(ctx).Model(&models.ReservedSerial{}), filter).Count(&count).Error
	return count, err
}
