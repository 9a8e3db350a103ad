package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/noah-isme/campus-api/internal/authz"
	"github.com/noah-isme/campus-api/internal/dto"
	"github.com/noah-isme/campus-api/internal/models"
	"github.com/noah-isme/campus-api/internal/repository"
)

// UserService is the admin-facing account management surface.
type UserService interface {
	List(ctx context.Context, caller Caller, req dto.UserListRequest) (dto.UserListResponse, error)
	Get(ctx context.Context, caller Caller, id uint) (dto.UserResponse, error)
	Update(ctx context.Context, caller Caller, id uint, req dto.UserUpdateRequest) (dto.UserResponse, error)
	Delete(ctx context.Context, caller Caller, id uint) error
}

type userService struct {
	repo      repository.UserRepository
	policy    authz.Authorizer
	validator *validator.Validate
	activity  AuditRecorder
	logger    zerolog.Logger
}

// NewUserService constructs the user management service.
func NewUserService(repo repository.UserRepository, policy authz.Authorizer, validate *validator.Validate, activity AuditRecorder, logger zerolog.Logger) UserService {
	return &userService{
		repo:      repo,
		policy:    policy,
		validator: validate,
		activity:  activity,
		logger:    logger.With().Str("component", "user_service").Logger(),
	}
}

func (s *userService) List(ctx context.Context, caller Caller, req dto.UserListRequest) (dto.UserListResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return dto.UserListResponse{}, err
	}
	if err := authorize(s.policy, caller, 0, authz.ResourceUser, authz.ActionManage); err != nil {
		return dto.UserListResponse{}, err
	}

	page, pageSize := normalizePage(req.Page, req.PageSize)
	users, total, err := s.repo.List(ctx, repository.UserFilter{
		Page:     page,
		PageSize: pageSize,
		Role:     strings.ToLower(strings.TrimSpace(req.Role)),
		Search:   strings.TrimSpace(req.Search),
	})
	if err != nil {
		return dto.UserListResponse{}, fmt.Errorf("list users: %w", err)
	}

	items := make([]dto.UserResponse, 0, len(users))
	for _, user := range users {
		items = append(items, dto.NewUserResponse(user))
	}
	return dto.UserListResponse{Items: items, Pagination: dto.NewPaginationMeta(page, pageSize, total)}, nil
}

func (s *userService) Get(ctx context.Context, caller Caller, id uint) (dto.UserResponse, error) {
	user, err := s.load(ctx, id)
	if err != nil {
		return dto.UserResponse{}, err
	}
	if caller.ID != id {
		if err := authorize(s.policy, caller, user.ID, authz.ResourceUser, authz.ActionManage); err != nil {
			return dto.UserResponse{}, err
		}
	} else if err := authorize(s.policy, caller, user.ID, authz.ResourceUser, authz.ActionRead); err != nil {
		return dto.UserResponse{}, err
	}
	return dto.NewUserResponse(user), nil
}

func (s *userService) Update(ctx context.Context, caller Caller, id uint, req dto.UserUpdateRequest) (dto.UserResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return dto.UserResponse{}, err
	}

	user, err := s.load(ctx, id)
	if err != nil {
		return dto.UserResponse{}, err
	}
	if err := authorize(s.policy, caller, user.ID, authz.ResourceUser, authz.ActionManage); err != nil {
		return dto.UserResponse{}, err
	}

	updates := map[string]interface{}{}
	username := user.Username
	email := user.Email
	if req.Username != nil {
		username = strings.TrimSpace(*req.Username)
		updates["username"] = username
	}
	if req.Email != nil {
		email = strings.ToLower(strings.TrimSpace(*req.Email))
		updates["email"] = email
	}
	if len(updates) == 0 {
		return dto.NewUserResponse(user), nil
	}

	exists, err := s.repo.ExistsByUsernameOrEmail(ctx, username, email, user.ID)
	if err != nil {
		return dto.UserResponse{}, fmt.Errorf("check identity: %w", err)
	}
	if exists {
		return dto.UserResponse{}, conflictError("Username or email already exists!")
	}

	updated, err := s.repo.Update(ctx, user.ID, updates)
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return dto.UserResponse{}, conflictError("Username or email already exists!")
		}
		return dto.UserResponse{}, fmt.Errorf("update user: %w", err)
	}

	entry := caller.entry(models.ActionUpdated, models.EntityUser, uintPtr(updated.ID), fmt.Sprintf("Updated user %s", updated.Username))
	entry.Metadata = map[string]interface{}{"fields": changedFields(updates)}
	s.activity.Append(ctx, entry)

	return dto.NewUserResponse(updated), nil
}

// Delete removes the account row. Earlier audit entries keep the dangling actor id.
func (s *userService) Delete(ctx context.Context, caller Caller, id uint) error {
	user, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	if err := authorize(s.policy, caller, user.ID, authz.ResourceUser, authz.ActionManage); err != nil {
		return err
	}
	if caller.ID == user.ID {
		return validationError("You cannot delete your own account")
	}

	if err := s.repo.Delete(ctx, user.ID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return notFoundError("User not found!")
		}
		return fmt.Errorf("delete user: %w", err)
	}

	s.activity.Append(ctx, caller.entry(models.ActionDeleted, models.EntityUser, uintPtr(user.ID),
		fmt.Sprintf("Deleted %s account %s", user.Role, user.Username)))
	return nil
}

func (s *userService) load(ctx context.Context, id uint) (models.User, error) {
	user, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.User{}, notFoundError("User not found!")
		}
		return models.User{}, fmt.Errorf("load user: %w", err)
	}
	return user, nil
}

func changedFields(updates map[string]interface{}) []string {
	fields := make([]string, 0, len(updates))
	for key := range updates {
		fields = append(fields, key)
	}
	sort.Strings(fields)
	return fields
}
