package businessflow

import (
	"context"
	"io"
	"log"
	"testing"
	"time"

	"github.com/amirphl/ams-registry/allocation"
	"github.com/amirphl/ams-registry/app/services"
	"github.com/amirphl/ams-registry/models"
	"github.com/amirphl/ams-registry/repository"
	testutil "github.com/amirphl/ams-registry/testing"
	"github.com/stretchr/testify/require"
)

type flowEnv struct {
	db       *testutil.TestDB
	fx       *testutil.TestFixtures
	engine   *allocation.Engine
	user     *models.User
	category *models.Category

	users      repository.UserRepository
	categories repository.CategoryRepository
	clients    repository.ClientRepository
	reserved   repository.ReservedSerialRepository
	audit      repository.AuditLogRepository

	tokens services.TokenService
}

func setupFlows(t *testing.T) *flowEnv {
	t.Helper()

	tdb, err := testutil.SetupTestDB()
	require.NoError(t, err)
	t.Cleanup(func() { _ = tdb.TeardownTestDB() })

	fx := testutil.NewTestFixtures(tdb)
	user, err := fx.CreateTestUser("operator")
	require.NoError(t, err)
	category, err := fx.CreateTestCategory("general")
	require.NoError(t, err)

	env := &flowEnv{
		db:         tdb,
		fx:         fx,
		user:       user,
		category:   category,
		users:      repository.NewUserRepository(tdb.DB),
		categories: repository.NewCategoryRepository(tdb.DB),
		clients:    repository.NewClientRepository(tdb.DB),
		reserved:   repository.NewReservedSerialRepository(tdb.DB),
		audit:      repository.NewAuditLogRepository(tdb.DB),
	}

	var lock allocation.LockCoordinator = allocation.NewMutexCoordinator(10 * time.Second)
	if tdb.IsPostgres() {
		lock = allocation.NewPostgresAdvisoryCoordinator(tdb.DB, 10*time.Second)
	}
	env.engine, err = allocation.NewEngine(tdb.DB, env.clients, repository.NewRetiredSerialRepository(tdb.DB), env.reserved, lock,
		allocation.WithLogger(log.New(io.Discard, "", 0)))
	require.NoError(t, err)

	env.tokens, err = services.NewTokenService(15*time.Minute, time.Hour, "test-issuer", "test-audience", false, "", "", "test-secret-key-for-jwt-signing-32-chars", nil)
	require.NoError(t, err)

	return env
}

func (env *flowEnv) clientFlow() ClientFlow {
	return NewClientFlow(env.engine, env.clients, env.categories, env.users, env.audit)
}

func (env *flowEnv) serialFlow() SerialFlow {
	return NewSerialFlow(env.engine, env.audit)
}

// auditActions returns the recorded actions for a serial, oldest first
func (env *flowEnv) auditActions(t *testing.T, serial int64) []string {
	t.Helper()

	entries, err := env.audit.ListBySerial(context.Background(), serial)
	require.NoError(t, err)
	actions := make([]string, 0, len(entries))
	for _, e := range entries {
		actions = append(actions, e.Action)
	}
	return actions
}
