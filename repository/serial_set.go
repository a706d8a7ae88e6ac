package repository

import (
	"database/sql"
	"fmt"

	"gorm.io/gorm"
)

// Every table occupying serials keys them in the serial_number column.

func maxSerial(db *gorm.DB, model any) (int64, bool, error) {
	var max sql.NullInt64
	if err := db.Model(model).Select("MAX(serial_number)").Row().Scan(&max); err != nil {
		return 0, false, fmt.Errorf("failed to read max serial: %w", err)
	}
	return max.Int64, max.Valid, nil
}

func serials(db *gorm.DB, model any) ([]int64, error) {
	var out []int64
	if err := db.Model(model).Order("serial_number ASC").Pluck("serial_number", &out).Error; err != nil {
		return nil, fmt.Errorf("failed to list serials: %w", err)
	}
	return out, nil
}

func hasSerial(db *gorm.DB, model any, serial int64) (bool, error) {
	var count int64
	if err := db.Model(model).Where("serial_number = ?", serial).Count(&count).Error; err != nil {
		return false, fmt.Errorf("failed to check serial %d: %w", serial, err)
	}
	return count > 0, nil
}

func countSerials(db *gorm.DB, model any, from, to int64) (int64, error) {
	var count int64
	if err := db.Model(model).Where("serial_number BETWEEN ? AND ?", from, to).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count serials %d..%d: %w", from, to, err)
	}
	return count, nil
}

func paginate(query *gorm.DB, orderBy, defaultOrder string, limit, offset int) *gorm.DB {
	if orderBy == "" {
		orderBy = defaultOrder
	}
	query = query.Order(orderBy)
	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}
	return query
}
