package businessflow

import (
	"context"
	"testing"

	"github.com/amirphl/ams-registry/app/dto"
	"github.com/amirphl/ams-registry/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestUserFlow(t *testing.T) {
	env := setupFlows(t)
	ctx := context.Background()
	flow := NewUserFlow(env.users, env.clients)

	idle, err := env.fx.CreateTestUser("idle")
	require.NoError(t, err)

	list, err := flow.ListUsers(ctx)
	require.NoError(t, err)
	require.Len(t, list.Items, 2)
	assert.Equal(t, "idle", list.Items[0].Username)

	t.Run("update with password change", func(t *testing.T) {
		got, err := flow.UpdateUser(ctx, idle.ID, &dto.UpdateUserRequest{
			FirstName:   utils.ToPtr("Nima"),
			NewPassword: utils.ToPtr("AnotherPass123!"),
		})
		require.NoError(t, err)
		assert.Equal(t, "Nima", got.FirstName)

		stored, err := env.users.ByID(ctx, idle.ID)
		require.NoError(t, err)
		assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(stored.PasswordHash), []byte("AnotherPass123!")))
	})

	t.Run("empty update", func(t *testing.T) {
		_, err := flow.UpdateUser(ctx, idle.ID, &dto.UpdateUserRequest{})
		assert.ErrorIs(t, err, ErrUserUpdateRequired)
	})

	t.Run("user with clients cannot be deleted", func(t *testing.T) {
		_, err := env.fx.CreateTestClient(5000, env.user.ID, env.category.ID)
		require.NoError(t, err)
		err = flow.DeleteUser(ctx, env.user.ID)
		assert.True(t, IsUserHasClients(err))
	})

	t.Run("delete", func(t *testing.T) {
		require.NoError(t, flow.DeleteUser(ctx, idle.ID))
		_, err := flow.GetUser(ctx, idle.ID)
		assert.True(t, IsUserNotFound(err))
	})
}

func TestCategoryFlow(t *testing.T) {
	env := setupFlows(t)
	ctx := context.Background()
	flow := NewCategoryFlow(env.categories)

	created, err := flow.CreateCategory(ctx, &dto.CreateCategoryRequest{Name: " retail "})
	require.NoError(t, err)
	assert.Equal(t, "retail", created.Name)

	_, err = flow.CreateCategory(ctx, &dto.CreateCategoryRequest{Name: "retail"})
	assert.True(t, IsCategoryAlreadyExists(err))

	list, err := flow.ListCategories(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "general", list[0].Name)
	assert.Equal(t, "retail", list[1].Name)
}
