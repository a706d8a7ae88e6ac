package businessflow

import (
	"context"
	"testing"

	"github.com/amirphl/ams-registry/app/dto"
	"github.com/amirphl/ams-registry/app/services"
	"github.com/amirphl/ams-registry/models"
	testutil "github.com/amirphl/ams-registry/testing"
	"github.com/amirphl/ams-registry/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuthFlow(t *testing.T) {
	env := setupFlows(t)
	ctx := context.Background()
	flow := NewAuthFlow(env.users, env.audit, env.tokens)

	signup, err := flow.Signup(ctx, &dto.SignupRequest{
		FirstName: "Sara",
		LastName:  "Karimi",
		Username:  "SKarimi",
		Password:  "SecurePass123!",
	}, NewClientMetadata("10.0.0.1", "test"))
	require.NoError(t, err)
	assert.Equal(t, "skarimi", signup.User.Username)
	assert.Equal(t, "Bearer", signup.TokenType)
	assert.NotEmpty(t, signup.AccessToken)

	t.Run("duplicate username", func(t *testing.T) {
		_, err := flow.Signup(ctx, &dto.SignupRequest{FirstName: "S", LastName: "K", Username: "skarimi", Password: "SecurePass123!"}, nil)
		assert.True(t, IsUsernameAlreadyExists(err))
	})

	t.Run("login", func(t *testing.T) {
		tests := []struct {
			name     string
			username string
			password string
			wantErr  error
		}{
			{name: "valid credentials", username: "skarimi", password: "SecurePass123!"},
			{name: "wrong password", username: "skarimi", password: "WrongPass123!", wantErr: ErrIncorrectPassword},
			{name: "unknown user", username: "ghost", password: "SecurePass123!", wantErr: ErrIncorrectPassword},
			{name: "fixture user", username: "operator", password: testutil.TestPassword},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				resp, err := flow.Login(ctx, &dto.LoginRequest{Username: tt.username, Password: tt.password}, nil)
				if tt.wantErr != nil {
					assert.ErrorIs(t, err, tt.wantErr)
					return
				}
				require.NoError(t, err)
				assert.NotNil(t, resp.User.LastLoginAt)

				claims, err := env.tokens.ValidateToken(resp.AccessToken)
				require.NoError(t, err)
				assert.Equal(t, resp.User.ID, claims.UserID)
			})
		}
	})

	t.Run("inactive user cannot login", func(t *testing.T) {
		user, err := env.users.ByUsername(ctx, "skarimi")
		require.NoError(t, err)
		user.IsActive = utils.ToPtr(false)
		require.NoError(t, env.users.Update(ctx, user))
		t.Cleanup(func() {
			user.IsActive = utils.ToPtr(true)
			_ = env.users.Update(ctx, user)
		})

		_, err = flow.Login(ctx, &dto.LoginRequest{Username: "skarimi", Password: "SecurePass123!"}, nil)
		assert.True(t, IsUserInactive(err))
	})

	t.Run("refresh rotates and logout revokes", func(t *testing.T) {
		refreshed, err := flow.Refresh(ctx, &dto.RefreshTokenRequest{RefreshToken: signup.RefreshToken})
		require.NoError(t, err)
		assert.NotEqual(t, signup.RefreshToken, refreshed.RefreshToken)

		_, err = flow.Refresh(ctx, &dto.RefreshTokenRequest{RefreshToken: signup.RefreshToken})
		assert.ErrorIs(t, err, services.ErrTokenRevoked)

		require.NoError(t, flow.Logout(ctx, refreshed.AccessToken, refreshed.RefreshToken))
		_, err = env.tokens.ValidateToken(refreshed.AccessToken)
		assert.ErrorIs(t, err, services.ErrTokenRevoked)
	})

	t.Run("audit trail", func(t *testing.T) {
		count := func(action string, success bool) int64 {
			n, err := env.audit.Count(ctx, models.AuditLogFilter{Action: &action, Success: &success})
			require.NoError(t, err)
			return n
		}
		assert.Equal(t, int64(1), count(models.AuditActionSignupCompleted, true))
		assert.Equal(t, int64(2), count(models.AuditActionLoginSuccess, true))
		// wrong password, unknown user, inactive account
		assert.Equal(t, int64(3), count(models.AuditActionLoginFailed, false))
		assert.Equal(t, int64(1), count(models.AuditActionLogout, true))
	})
}
