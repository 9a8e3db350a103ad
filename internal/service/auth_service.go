package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/noah-isme/campus-api/internal/auth"
	"github.com/noah-isme/campus-api/internal/authz"
	"github.com/noah-isme/campus-api/internal/dto"
	"github.com/noah-isme/campus-api/internal/models"
	"github.com/noah-isme/campus-api/internal/observability"
	"github.com/noah-isme/campus-api/internal/repository"
)

// TokenIssuer issues and verifies session tokens.
type TokenIssuer interface {
	Issue(userID uint, email, role string) (string, time.Time, error)
	Verify(token string) (*auth.Claims, error)
}

// LoginLimiter tracks failed logins. A nil *auth.Lockout satisfies it and never locks.
type LoginLimiter interface {
	Locked(ctx context.Context, subject string) (bool, time.Duration, error)
	Fail(ctx context.Context, subject string) (int64, error)
	Reset(ctx context.Context, subject string) error
}

// AuthService registers, authenticates and manages credentials.
type AuthService interface {
	Register(ctx context.Context, req dto.RegisterRequest, caller Caller) (dto.UserResponse, error)
	Login(ctx context.Context, req dto.LoginRequest, caller Caller) (dto.LoginResponse, error)
	Verify(token string) (*auth.Claims, error)
	Profile(ctx context.Context, caller Caller) (dto.UserResponse, error)
	ChangePassword(ctx context.Context, caller Caller, req dto.ChangePasswordRequest) error
}

type authService struct {
	users     repository.UserRepository
	hasher    auth.Hasher
	tokens    TokenIssuer
	limiter   LoginLimiter
	policy    authz.Authorizer
	validator *validator.Validate
	activity  AuditRecorder
	logger    zerolog.Logger
}

// NewAuthService constructs the authentication service. limiter may be nil.
func NewAuthService(users repository.UserRepository, hasher auth.Hasher, tokens TokenIssuer, limiter LoginLimiter, policy authz.Authorizer, validate *validator.Validate, activity AuditRecorder, logger zerolog.Logger) AuthService {
	return &authService{
		users:     users,
		hasher:    hasher,
		tokens:    tokens,
		limiter:   limiter,
		policy:    policy,
		validator: validate,
		activity:  activity,
		logger:    logger.With().Str("component", "auth_service").Logger(),
	}
}

func (s *authService) Register(ctx context.Context, req dto.RegisterRequest, caller Caller) (dto.UserResponse, error) {
	req.Username = strings.TrimSpace(req.Username)
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	req.Role = strings.ToLower(strings.TrimSpace(req.Role))
	if req.Role == "" {
		req.Role = models.RoleStudent
	}
	if err := s.validator.Struct(req); err != nil {
		return dto.UserResponse{}, err
	}
	if err := authorize(s.policy, caller, 0, authz.ResourceSession, authz.ActionRegister); err != nil {
		return dto.UserResponse{}, err
	}

	exists, err := s.users.ExistsByUsernameOrEmail(ctx, req.Username, req.Email, 0)
	if err != nil {
		return dto.UserResponse{}, fmt.Errorf("check identity: %w", err)
	}
	if exists {
		return dto.UserResponse{}, conflictError("Username or email already exists!")
	}

	digest, err := s.hasher.Hash(req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrPasswordTooShort) {
			return dto.UserResponse{}, validationError("Password must be at least %d characters", auth.MinPasswordLength)
		}
		return dto.UserResponse{}, fmt.Errorf("hash password: %w", err)
	}

	user := models.User{
		Username:     req.Username,
		Email:        req.Email,
		PasswordHash: digest,
		Role:         req.Role,
	}
	if err := s.users.Create(ctx, &user); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return dto.UserResponse{}, conflictError("Username or email already exists!")
		}
		return dto.UserResponse{}, fmt.Errorf("create user: %w", err)
	}

	actor := caller
	if actor.ID == 0 {
		actor.ID = user.ID
	}
	s.activity.Append(ctx, actor.entry(models.ActionRegistered, models.EntityUser, uintPtr(user.ID),
		fmt.Sprintf("Registered %s account %s", user.Role, user.Username)))

	return dto.NewUserResponse(user), nil
}

func (s *authService) Login(ctx context.Context, req dto.LoginRequest, caller Caller) (dto.LoginResponse, error) {
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if err := s.validator.Struct(req); err != nil {
		return dto.LoginResponse{}, err
	}
	if err := authorize(s.policy, caller, 0, authz.ResourceSession, authz.ActionLogin); err != nil {
		return dto.LoginResponse{}, err
	}

	if s.limiter != nil {
		locked, retryIn, err := s.limiter.Locked(ctx, req.Email)
		if err != nil {
			s.logger.Warn().Err(err).Msg("login limiter unavailable")
		} else if locked {
			observability.LoginAttempts().WithLabelValues("locked").Inc()
			return dto.LoginResponse{}, newError(ErrTooManyAttempts, "Too many failed login attempts. Try again in %s", retryIn.Round(time.Second))
		}
	}

	user, err := s.users.GetByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			observability.LoginAttempts().WithLabelValues("unknown_user").Inc()
			return dto.LoginResponse{}, notFoundError("User not found!")
		}
		return dto.LoginResponse{}, fmt.Errorf("load user: %w", err)
	}

	if err := s.hasher.Verify(req.Password, user.PasswordHash); err != nil {
		observability.LoginAttempts().WithLabelValues("failed").Inc()
		s.recordFailure(ctx, req.Email)
		failed := caller
		failed.ID = user.ID
		entry := failed.entry(models.ActionLoginFailed, models.EntityUser, uintPtr(user.ID),
			fmt.Sprintf("Failed login attempt for user %d", user.ID))
		entry.Metadata = map[string]interface{}{"email": user.Email}
		s.activity.Append(ctx, entry)
		return dto.LoginResponse{}, newError(ErrInvalidCredentials, "Invalid credentials!")
	}

	token, expiresAt, err := s.tokens.Issue(user.ID, user.Email, user.Role)
	if err != nil {
		return dto.LoginResponse{}, fmt.Errorf("issue token: %w", err)
	}

	if s.limiter != nil {
		if err := s.limiter.Reset(ctx, req.Email); err != nil {
			s.logger.Warn().Err(err).Msg("failed to reset login failures")
		}
	}

	observability.LoginAttempts().WithLabelValues("success").Inc()
	success := caller
	success.ID = user.ID
	s.activity.Append(ctx, success.entry(models.ActionLogin, models.EntityUser, uintPtr(user.ID),
		fmt.Sprintf("User %s logged in", user.Username)))

	return dto.LoginResponse{
		Token:     token,
		TokenType: "Bearer",
		ExpiresAt: expiresAt,
		User:      dto.NewUserResponse(user),
	}, nil
}

func (s *authService) recordFailure(ctx context.Context, email string) {
	if s.limiter == nil {
		return
	}
	count, err := s.limiter.Fail(ctx, email)
	if err != nil {
		s.logger.Warn().Err(err).Msg("failed to record login failure")
		return
	}
	s.logger.Debug().Int64("failures", count).Msg("login failure recorded")
}

func (s *authService) Verify(token string) (*auth.Claims, error) {
	return s.tokens.Verify(token)
}

func (s *authService) Profile(ctx context.Context, caller Caller) (dto.UserResponse, error) {
	if err := authorize(s.policy, caller, caller.ID, authz.ResourceUser, authz.ActionRead); err != nil {
		return dto.UserResponse{}, err
	}

	user, err := s.users.GetByID(ctx, caller.ID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.UserResponse{}, notFoundError("User not found!")
		}
		return dto.UserResponse{}, fmt.Errorf("load user: %w", err)
	}
	return dto.NewUserResponse(user), nil
}

func (s *authService) ChangePassword(ctx context.Context, caller Caller, req dto.ChangePasswordRequest) error {
	if err := s.validator.Struct(req); err != nil {
		return err
	}
	if err := authorize(s.policy, caller, caller.ID, authz.ResourceUser, authz.ActionChangePassword); err != nil {
		return err
	}

	user, err := s.users.GetByID(ctx, caller.ID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return notFoundError("User not found!")
		}
		return fmt.Errorf("load user: %w", err)
	}

	if err := s.hasher.Verify(req.CurrentPassword, user.PasswordHash); err != nil {
		return newError(ErrInvalidCredentials, "Current password is incorrect!")
	}

	digest, err := s.hasher.Hash(req.NewPassword)
	if err != nil {
		if errors.Is(err, auth.ErrPasswordTooShort) {
			return validationError("Password must be at least %d characters", auth.MinPasswordLength)
		}
		return fmt.Errorf("hash password: %w", err)
	}

	if err := s.users.UpdatePassword(ctx, user.ID, digest); err != nil {
		return fmt.Errorf("update password: %w", err)
	}

	s.activity.Append(ctx, caller.entry(models.ActionPasswordChanged, models.EntityUser, uintPtr(user.ID),
		fmt.Sprintf("User %s changed password", user.Username)))
	return nil
}
