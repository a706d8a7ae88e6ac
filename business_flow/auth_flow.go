package businessflow

import (
	"context"
	"errors"
	"log"
	"strings"

	"github.com/amirphl/ams-registry/app/dto"
	"github.com/amirphl/ams-registry/app/services"
	"github.com/amirphl/ams-registry/models"
	"github.com/amirphl/ams-registry/repository"
	"github.com/amirphl/ams-registry/utils"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// AuthFlow handles operator signup, login and token rotation
type AuthFlow interface {
	Signup(ctx context.Context, req *dto.SignupRequest, metadata *ClientMetadata) (*dto.AuthResponse, error)
	Login(ctx context.Context, req *dto.LoginRequest, metadata *ClientMetadata) (*dto.AuthResponse, error)
	Refresh(ctx context.Context, req *dto.RefreshTokenRequest) (*dto.AuthResponse, error)
	Logout(ctx context.Context, accessToken, refreshToken string) error
}

type AuthFlowImpl struct {
	userRepo     repository.UserRepository
	tokenService services.TokenService
	audit        auditRecorder
}

func NewAuthFlow(userRepo repository.UserRepository, auditRepo repository.AuditLogRepository, tokenService services.TokenService) AuthFlow {
	return &AuthFlowImpl{
		userRepo:     userRepo,
		tokenService: tokenService,
		audit:        auditRecorder{repo: auditRepo},
	}
}

func (af *AuthFlowImpl) Signup(ctx context.Context, req *dto.SignupRequest, metadata *ClientMetadata) (*dto.AuthResponse, error) {
	username := strings.ToLower(strings.TrimSpace(req.Username))

	existing, err := af.userRepo.ByUsername(ctx, username)
	if err != nil {
		return nil, NewBusinessError("USER_LOOKUP_FAILED", "Failed to lookup user", err)
	}
	if existing != nil {
		return nil, NewBusinessError("USERNAME_ALREADY_EXISTS", "Username already exists", ErrUsernameAlreadyExists)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, NewBusinessError("PASSWORD_HASH_FAILED", "Failed to hash password", err)
	}

	now := utils.UTCNow()
	user := &models.User{
		UUID:         uuid.New(),
		FirstName:    strings.TrimSpace(req.FirstName),
		LastName:     strings.TrimSpace(req.LastName),
		Username:     username,
		PasswordHash: string(hash),
		IsActive:     utils.ToPtr(true),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := af.userRepo.Save(ctx, user); err != nil {
		if repository.IsUniqueViolation(err) {
			return nil, NewBusinessError("USERNAME_ALREADY_EXISTS", "Username already exists", ErrUsernameAlreadyExists)
		}
		return nil, NewBusinessError("USER_CREATION_FAILED", "Failed to create user", err)
	}

	log.Printf("auth: signup user_id=%d username=%s ip=%s", user.ID, user.Username, ipOf(metadata))
	af.audit.record(ctx, auditEntry{userID: &user.ID, action: models.AuditActionSignupCompleted, description: "Operator account created"})
	return af.issue(*user)
}

func (af *AuthFlowImpl) Login(ctx context.Context, req *dto.LoginRequest, metadata *ClientMetadata) (*dto.AuthResponse, error) {
	username := strings.ToLower(strings.TrimSpace(req.Username))

	user, err := af.userRepo.ByUsername(ctx, username)
	if err != nil {
		return nil, NewBusinessError("USER_LOOKUP_FAILED", "Failed to lookup user", err)
	}
	if user == nil {
		af.audit.record(ctx, auditEntry{action: models.AuditActionLoginFailed, description: "Unknown username " + username, err: ErrIncorrectPassword})
		// same answer as a wrong password so usernames cannot be enumerated
		return nil, NewBusinessError("INCORRECT_CREDENTIALS", "Incorrect username or password", ErrIncorrectPassword)
	}
	if !utils.IsTrue(user.IsActive) {
		af.audit.record(ctx, auditEntry{userID: &user.ID, action: models.AuditActionLoginFailed, err: ErrUserInactive})
		return nil, NewBusinessError("USER_INACTIVE", "User account is inactive", ErrUserInactive)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		af.audit.record(ctx, auditEntry{userID: &user.ID, action: models.AuditActionLoginFailed, err: ErrIncorrectPassword})
		return nil, NewBusinessError("INCORRECT_CREDENTIALS", "Incorrect username or password", ErrIncorrectPassword)
	}

	now := utils.UTCNow()
	if err := af.userRepo.UpdateLastLogin(ctx, user.ID, now); err != nil {
		return nil, NewBusinessError("LOGIN_UPDATE_FAILED", "Failed to record login", err)
	}
	user.LastLoginAt = &now

	log.Printf("auth: login user_id=%d ip=%s", user.ID, ipOf(metadata))
	af.audit.record(ctx, auditEntry{userID: &user.ID, action: models.AuditActionLoginSuccess})
	return af.issue(*user)
}

func (af *AuthFlowImpl) Refresh(ctx context.Context, req *dto.RefreshTokenRequest) (*dto.AuthResponse, error) {
	claims, err := af.tokenService.ValidateToken(req.RefreshToken)
	if err != nil {
		return nil, NewBusinessError("INVALID_REFRESH_TOKEN", "Invalid refresh token", err)
	}

	user, err := af.userRepo.ByID(ctx, claims.UserID)
	if err != nil {
		return nil, NewBusinessError("USER_LOOKUP_FAILED", "Failed to lookup user", err)
	}
	if user == nil {
		return nil, NewBusinessError("USER_NOT_FOUND", "User not found", ErrUserNotFound)
	}
	if !utils.IsTrue(user.IsActive) {
		return nil, NewBusinessError("USER_INACTIVE", "User account is inactive", ErrUserInactive)
	}

	accessToken, refreshToken, err := af.tokenService.RefreshToken(req.RefreshToken)
	if err != nil {
		return nil, NewBusinessError("INVALID_REFRESH_TOKEN", "Invalid refresh token", err)
	}
	return af.response(*user, accessToken, refreshToken), nil
}

// Logout revokes the access token and, when given, the refresh token
func (af *AuthFlowImpl) Logout(ctx context.Context, accessToken, refreshToken string) error {
	if err := af.tokenService.RevokeToken(accessToken); err != nil {
		return NewBusinessError("TOKEN_REVOCATION_FAILED", "Failed to revoke token", err)
	}
	if refreshToken != "" {
		if err := af.tokenService.RevokeToken(refreshToken); err != nil && !errors.Is(err, services.ErrTokenExpired) {
			return NewBusinessError("TOKEN_REVOCATION_FAILED", "Failed to revoke token", err)
		}
	}
	af.audit.record(ctx, auditEntry{action: models.AuditActionLogout})
	return nil
}

func (af *AuthFlowImpl) issue(user models.User) (*dto.AuthResponse, error) {
	accessToken, refreshToken, err := af.tokenService.GenerateTokens(user.ID, user.Username)
	if err != nil {
		return nil, NewBusinessError("TOKEN_GENERATION_FAILED", "Failed to generate tokens", err)
	}
	return af.response(user, accessToken, refreshToken), nil
}

func (af *AuthFlowImpl) response(user models.User, accessToken, refreshToken string) *dto.AuthResponse {
	ttl := af.tokenService.AccessTokenTTL()
	return &dto.AuthResponse{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		TokenType:    "Bearer",
		ExpiresIn:    int(ttl.Seconds()),
		ExpiresAt:    utils.UTCNowAdd(ttl),
		User:         ToUserDTO(user),
	}
}

func ipOf(metadata *ClientMetadata) string {
	if metadata == nil {
		return ""
	}
	return metadata.IPAddress
}
