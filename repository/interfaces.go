package repository

import (
	"context"
	"time"

	"github.com/amirphl/ams-registry/models"
)

// RepositoryContext key for transaction in context
type contextKey string

const TxContextKey contextKey = "tx"

type Repository[T any, F any] interface {
	ByID(ctx context.Context, id uint) (*T, error)
	ByFilter(ctx context.Context, filter F, orderBy string, limit, offset int) ([]*T, error)
	Save(ctx context.Context, entity *T) error
	SaveBatch(ctx context.Context, entities []*T) error
	Count(ctx context.Context, filter F) (int64, error)
	Exists(ctx context.Context, filter F) (bool, error)
}

// UserRepository defines operations for operator accounts
type UserRepository interface {
	Repository[models.User, models.UserFilter]
	ByUsername(ctx context.Context, username string) (*models.User, error)
	ByUUID(ctx context.Context, uuid string) (*models.User, error)
	Update(ctx context.Context, user *models.User) error
	UpdateLastLogin(ctx context.Context, id uint, at time.Time) error
	Delete(ctx context.Context, id uint) error
}

// CategoryRepository defines operations for client categories
type CategoryRepository interface {
	Repository[models.Category, models.CategoryFilter]
	ByName(ctx context.Context, name string) (*models.Category, error)
	ListAll(ctx context.Context) ([]*models.Category, error)
}

// SerialSet is the read side shared by every table that occupies serial numbers
type SerialSet interface {
	// MaxSerial returns the highest serial in the set; ok is false when the set is empty
	MaxSerial(ctx context.Context) (max int64, ok bool, err error)
	// Serials returns every serial in the set in ascending order
	Serials(ctx context.Context) ([]int64, error)
	// HasSerial reports whether serial is a member of the set
	HasSerial(ctx context.Context, serial int64) (bool, error)
	// CountSerials returns how many serials of the set lie in [from, to]
	CountSerials(ctx context.Context, from, to int64) (int64, error)
}

// ClientRepository defines operations for clients, the active serial assignments
type ClientRepository interface {
	Repository[models.Client, models.ClientFilter]
	SerialSet
	BySerial(ctx context.Context, serial int64) (*models.Client, error)
	UpdateDetails(ctx context.Context, id uint, firstName, lastName *string, categoryID *uint) error
	Delete(ctx context.Context, id uint) error
}

// RetiredSerialRepository defines operations for serials freed by client deletion
type RetiredSerialRepository interface {
	SerialSet
	Save(ctx context.Context, retired *models.RetiredSerial) error
	BySerial(ctx context.Context, serial int64) (*models.RetiredSerial, error)
	ByFilter(ctx context.Context, filter models.RetiredSerialFilter, orderBy string, limit, offset int) ([]*models.RetiredSerial, error)
	Count(ctx context.Context, filter models.RetiredSerialFilter) (int64, error)
}

// ReservedSerialRepository defines operations for pending serial holds
type ReservedSerialRepository interface {
	SerialSet
	Save(ctx context.Context, reserved *models.ReservedSerial) error
	BySerial(ctx context.Context, serial int64) (*models.ReservedSerial, error)
	// LiveHeldBy returns userID's lowest-serial hold created at or after since
	LiveHeldBy(ctx context.Context, userID uint, since time.Time) (*models.ReservedSerial, error)
	DeleteBySerial(ctx context.Context, serial int64) (bool, error)
	// DeleteReservedBefore removes holds created strictly before cutoff
	DeleteReservedBefore(ctx context.Context, cutoff time.Time) (int64, error)
	ByFilter(ctx context.Context, filter models.ReservedSerialFilter, orderBy string, limit, offset int) ([]*models.ReservedSerial, error)
	Count(ctx context.Context, filter models.ReservedSerialFilter) (int64, error)
}

// AuditLogRepository stores the registry audit trail
type AuditLogRepository interface {
	Repository[models.AuditLog, models.AuditLogFilter]
	ListBySerial(ctx context.Context, serial int64) ([]*models.AuditLog, error)
}
