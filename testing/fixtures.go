package testing

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/amirphl/ams-registry/models"
	"github.com/amirphl/ams-registry/repository"
	"github.com/amirphl/ams-registry/utils"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// TestPassword is the plaintext password of every fixture user
const TestPassword = "TestPass123!"

// TestFixtures provides helper methods for creating test data
type TestFixtures struct {
	DB *TestDB
}

// NewTestFixtures creates a new test fixtures instance
func NewTestFixtures(db *TestDB) *TestFixtures {
	return &TestFixtures{DB: db}
}

// CreateTestUser creates an active user; an empty username gets a random one
func (tf *TestFixtures) CreateTestUser(username string) (*models.User, error) {
	if username == "" {
		username = fmt.Sprintf("operator_%06d", rand.Intn(1000000))
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(TestPassword), bcrypt.MinCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	now := utils.UTCNow()
	user := &models.User{
		UUID:         uuid.New(),
		FirstName:    "Test",
		LastName:     "Operator",
		Username:     username,
		PasswordHash: string(hashedPassword),
		IsActive:     utils.ToPtr(true),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := tf.DB.DB.Create(user).Error; err != nil {
		return nil, fmt.Errorf("failed to create test user: %w", err)
	}
	return user, nil
}

// CreateTestCategory creates a category with the given name
func (tf *TestFixtures) CreateTestCategory(name string) (*models.Category, error) {
	now := utils.UTCNow()
	category := &models.Category{Name: name, CreatedAt: now, UpdatedAt: now}
	if err := tf.DB.DB.Create(category).Error; err != nil {
		return nil, fmt.Errorf("failed to create test category: %w", err)
	}
	return category, nil
}

// CreateTestClient inserts a client holding serial directly, bypassing allocation
func (tf *TestFixtures) CreateTestClient(serial int64, userID, categoryID uint) (*models.Client, error) {
	now := utils.UTCNow()
	client := &models.Client{
		FirstName:      "Client",
		LastName:       fmt.Sprintf("No%d", serial),
		SerialNumber:   serial,
		RegisteredByID: userID,
		CategoryID:     categoryID,
		AssignedAt:     now,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := tf.DB.DB.Create(client).Error; err != nil {
		return nil, fmt.Errorf("failed to create test client %d: %w", serial, err)
	}
	return client, nil
}

// FillClients inserts one client for every serial in [from, to] through the
// client repository's batched insert
func (tf *TestFixtures) FillClients(from, to int64, userID, categoryID uint) error {
	if to < from {
		return nil
	}

	now := utils.UTCNow()
	clients := make([]*models.Client, 0, to-from+1)
	for serial := from; serial <= to; serial++ {
		clients = append(clients, &models.Client{
			FirstName:      "Bulk",
			LastName:       "Client",
			SerialNumber:   serial,
			RegisteredByID: userID,
			CategoryID:     categoryID,
			AssignedAt:     now,
			CreatedAt:      now,
			UpdatedAt:      now,
		})
	}

	if err := repository.NewClientRepository(tf.DB.DB).SaveBatch(context.Background(), clients); err != nil {
		return fmt.Errorf("failed to fill clients %d..%d: %w", from, to, err)
	}
	return nil
}

// CreateTestRetired records serial as retired
func (tf *TestFixtures) CreateTestRetired(serial int64, originalClientID uint) (*models.RetiredSerial, error) {
	retired := &models.RetiredSerial{
		SerialNumber:     serial,
		RetiredAt:        utils.UTCNow(),
		OriginalClientID: originalClientID,
	}
	if err := tf.DB.DB.Create(retired).Error; err != nil {
		return nil, fmt.Errorf("failed to create retired serial %d: %w", serial, err)
	}
	return retired, nil
}

// CreateTestReservation holds serial for reservedBy as if reserved at reservedAt
func (tf *TestFixtures) CreateTestReservation(serial int64, reservedBy *uint, reservedAt time.Time) (*models.ReservedSerial, error) {
	reserved := &models.ReservedSerial{
		SerialNumber: serial,
		Token:        uuid.NewString(),
		ReservedByID: reservedBy,
		ReservedAt:   reservedAt.UTC(),
	}
	if err := tf.DB.DB.Create(reserved).Error; err != nil {
		return nil, fmt.Errorf("failed to create reservation %d: %w", serial, err)
	}
	return reserved, nil
}

// CreateTestAuditLog records action against serial at createdAt
func (tf *TestFixtures) CreateTestAuditLog(userID *uint, action string, serial *int64, createdAt time.Time) (*models.AuditLog, error) {
	entry := &models.AuditLog{
		UserID:       userID,
		Action:       action,
		SerialNumber: serial,
		Success:      utils.ToPtr(true),
		CreatedAt:    createdAt.UTC(),
	}
	if err := tf.DB.DB.Create(entry).Error; err != nil {
		return nil, fmt.Errorf("failed to create audit log %s: %w", action, err)
	}
	return entry, nil
}
