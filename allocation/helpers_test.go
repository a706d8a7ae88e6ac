package allocation

import (
	"io"
	"log"
	"sync"
	"testing"
	"time"

	"github.com/amirphl/ams-registry/models"
	"github.com/amirphl/ams-registry/repository"
	testutil "github.com/amirphl/ams-registry/testing"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type engineEnv struct {
	db       *testutil.TestDB
	fx       *testutil.TestFixtures
	engine   *Engine
	clock    *fakeClock
	user     *models.User
	category *models.Category
	clients  repository.ClientRepository
	retired  repository.RetiredSerialRepository
	reserved repository.ReservedSerialRepository
}

func setupEngine(t *testing.T, opts ...Option) *engineEnv {
	t.Helper()

	tdb, err := testutil.SetupTestDB()
	require.NoError(t, err)
	t.Cleanup(func() { _ = tdb.TeardownTestDB() })

	fx := testutil.NewTestFixtures(tdb)
	user, err := fx.CreateTestUser("")
	require.NoError(t, err)
	category, err := fx.CreateTestCategory("general")
	require.NoError(t, err)

	var lock LockCoordinator = NewMutexCoordinator(10 * time.Second)
	if tdb.IsPostgres() {
		lock = NewPostgresAdvisoryCoordinator(tdb.DB, 10*time.Second)
	}

	env := &engineEnv{
		db:       tdb,
		fx:       fx,
		clock:    &fakeClock{now: time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)},
		user:     user,
		category: category,
		clients:  repository.NewClientRepository(tdb.DB),
		retired:  repository.NewRetiredSerialRepository(tdb.DB),
		reserved: repository.NewReservedSerialRepository(tdb.DB),
	}

	opts = append([]Option{
		WithClock(env.clock.Now),
		WithLogger(log.New(io.Discard, "", 0)),
	}, opts...)
	env.engine, err = NewEngine(tdb.DB, env.clients, env.retired, env.reserved, lock, opts...)
	require.NoError(t, err)

	return env
}

func (env *engineEnv) registration() Registration {
	return Registration{
		FirstName:      "Ada",
		LastName:       "Lovelace",
		RegisteredByID: env.user.ID,
		CategoryID:     env.category.ID,
	}
}

func (env *engineEnv) seedActive(t *testing.T, serials ...int64) {
	t.Helper()
	for _, s := range serials {
		_, err := env.fx.CreateTestClient(s, env.user.ID, env.category.ID)
		require.NoError(t, err)
	}
}

func filterAll() models.ClientFilter {
	return models.ClientFilter{}
}
