package businessflow

import (
	"context"
	"log"
	"strings"

	"github.com/amirphl/ams-registry/app/dto"
	"github.com/amirphl/ams-registry/models"
	"github.com/amirphl/ams-registry/repository"
	"golang.org/x/crypto/bcrypt"
)

// UserFlow manages operator accounts
type UserFlow interface {
	ListUsers(ctx context.Context) (*dto.ListUsersResponse, error)
	GetUser(ctx context.Context, id uint) (*dto.UserDTO, error)
	UpdateUser(ctx context.Context, id uint, req *dto.UpdateUserRequest) (*dto.UserDTO, error)
	DeleteUser(ctx context.Context, id uint) error
}

type UserFlowImpl struct {
	userRepo   repository.UserRepository
	clientRepo repository.ClientRepository
}

func NewUserFlow(userRepo repository.UserRepository, clientRepo repository.ClientRepository) UserFlow {
	return &UserFlowImpl{userRepo: userRepo, clientRepo: clientRepo}
}

func (uf *UserFlowImpl) ListUsers(ctx context.Context) (*dto.ListUsersResponse, error) {
	users, err := uf.userRepo.ByFilter(ctx, models.UserFilter{}, "username ASC", 0, 0)
	if err != nil {
		return nil, NewBusinessError("LIST_USERS_FAILED", "Failed to list users", err)
	}
	items := make([]dto.UserDTO, 0, len(users))
	for _, u := range users {
		items = append(items, ToUserDTO(*u))
	}
	return &dto.ListUsersResponse{Items: items}, nil
}

func (uf *UserFlowImpl) GetUser(ctx context.Context, id uint) (*dto.UserDTO, error) {
	user, err := uf.load(ctx, id)
	if err != nil {
		return nil, err
	}
	out := ToUserDTO(*user)
	return &out, nil
}

func (uf *UserFlowImpl) UpdateUser(ctx context.Context, id uint, req *dto.UpdateUserRequest) (*dto.UserDTO, error) {
	if req.FirstName == nil && req.LastName == nil && req.NewPassword == nil && req.IsActive == nil {
		return nil, NewBusinessError("USER_UPDATE_VALIDATION_FAILED", "Nothing to update", ErrUserUpdateRequired)
	}

	user, err := uf.load(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.FirstName != nil {
		user.FirstName = strings.TrimSpace(*req.FirstName)
	}
	if req.LastName != nil {
		user.LastName = strings.TrimSpace(*req.LastName)
	}
	if req.IsActive != nil {
		user.IsActive = req.IsActive
	}
	if req.NewPassword != nil {
		hash, err := bcrypt.GenerateFromPassword([]byte(*req.NewPassword), bcrypt.DefaultCost)
		if err != nil {
			return nil, NewBusinessError("PASSWORD_HASH_FAILED", "Failed to hash password", err)
		}
		user.PasswordHash = string(hash)
	}

	if err := uf.userRepo.Update(ctx, user); err != nil {
		return nil, NewBusinessError("USER_UPDATE_FAILED", "Failed to update user", err)
	}

	out := ToUserDTO(*user)
	return &out, nil
}

// DeleteUser removes an operator that has not registered any client
func (uf *UserFlowImpl) DeleteUser(ctx context.Context, id uint) error {
	if _, err := uf.load(ctx, id); err != nil {
		return err
	}

	hasClients, err := uf.clientRepo.Exists(ctx, models.ClientFilter{RegisteredByID: &id})
	if err != nil {
		return NewBusinessError("USER_DELETE_FAILED", "Failed to check user clients", err)
	}
	if hasClients {
		return NewBusinessError("USER_HAS_CLIENTS", "User has registered clients", ErrUserHasClients)
	}

	if err := uf.userRepo.Delete(ctx, id); err != nil {
		return NewBusinessError("USER_DELETE_FAILED", "Failed to delete user", err)
	}
	log.Printf("users: deleted user_id=%d", id)
	return nil
}

func (uf *UserFlowImpl) load(ctx context.Context, id uint) (*models.User, error) {
	user, err := uf.userRepo.ByID(ctx, id)
	if err != nil {
		return nil, NewBusinessError("USER_LOOKUP_FAILED", "Failed to lookup user", err)
	}
	if user == nil {
		return nil, NewBusinessError("USER_NOT_FOUND", "User not found", ErrUserNotFound)
	}
	return user, nil
}
