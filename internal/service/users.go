package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Shivanand-hulikatti/eventreg/internal/auth"
	"github.com/Shivanand-hulikatti/eventreg/internal/model"
	"github.com/Shivanand-hulikatti/eventreg/internal/repository"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// TokenIssuer signs access tokens for authenticated users.
type TokenIssuer interface {
	Issue(userID, email string) (string, error)
}

// AuthResult is returned by Register and Login.
type AuthResult struct {
	User  *model.User
	Token string
}

// UserService orchestrates account operations.
type UserService struct {
	users     UserStore
	tokens    TokenIssuer
	hasher    *auth.PasswordHasher
	validator *validator.Validate
	logger    zerolog.Logger
}

// NewUserService constructs a UserService with its dependencies.
func NewUserService(users UserStore, tokens TokenIssuer, hasher *auth.PasswordHasher, logger zerolog.Logger) *UserService {
	return &UserService{
		users:     users,
		tokens:    tokens,
		hasher:    hasher,
		validator: newValidator(),
		logger:    logger.With().Str("component", "users").Logger(),
	}
}

// List returns every user, newest first.
func (s *UserService) List(ctx context.Context) ([]model.User, error) {
	return s.users.List(ctx)
}

// Register creates an account and issues a token for it.
func (s *UserService) Register(ctx context.Context, req model.RegisterUserRequest) (*AuthResult, error) {
	req.Name = strings.TrimSpace(req.Name)
	req.Email = normalizeEmail(req.Email)
	if err := validate(s.validator, req); err != nil {
		return nil, err
	}

	if _, err := s.users.GetByEmail(ctx, req.Email); err == nil {
		return nil, repository.ErrDuplicateEmail
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("lookup email: %w", err)
	}

	hash, err := s.hashPassword(req.Password)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	user := &model.User{
		ID:        uuid.New().String(),
		Name:      req.Name,
		Email:     req.Email,
		Password:  hash,
		CreatedAt: now,
		UpdatedAt: now,
	}
	// The store's unique index still catches a concurrent duplicate.
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicateEmail) {
			return nil, err
		}
		return nil, fmt.Errorf("create user: %w", err)
	}

	token, err := s.tokens.Issue(user.ID, user.Email)
	if err != nil {
		return nil, err
	}

	s.logger.Info().Str("user_id", user.ID).Msg("user registered")
	return &AuthResult{User: user, Token: token}, nil
}

// Login checks credentials and issues a token.
func (s *UserService) Login(ctx context.Context, req model.LoginRequest) (*AuthResult, error) {
	req.Email = normalizeEmail(req.Email)
	if err := validate(s.validator, req); err != nil {
		return nil, err
	}

	user, err := s.users.GetByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("lookup user: %w", err)
	}

	ok, err := s.hasher.Compare(user.Password, req.Password)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrInvalidCredentials
	}

	token, err := s.tokens.Issue(user.ID, user.Email)
	if err != nil {
		return nil, err
	}
	return &AuthResult{User: user, Token: token}, nil
}

// Update changes the caller's own account. The password, when given, is
// re-hashed before it reaches the store.
func (s *UserService) Update(ctx context.Context, caller *auth.Identity, id string, req model.UpdateUserRequest) (*model.User, error) {
	if err := s.ensureSelf(ctx, caller, id); err != nil {
		return nil, err
	}

	if req.Name != nil {
		trimmed := strings.TrimSpace(*req.Name)
		req.Name = &trimmed
	}
	if req.Email != nil {
		normalized := normalizeEmail(*req.Email)
		req.Email = &normalized
	}
	if err := validate(s.validator, req); err != nil {
		return nil, err
	}
	if req.Name == nil && req.Email == nil && req.Password == nil {
		return nil, invalid("at least one field is required", "name", "email", "password")
	}

	upd := model.UserUpdate{Name: req.Name, Email: req.Email}
	if req.Password != nil {
		hash, err := s.hashPassword(*req.Password)
		if err != nil {
			return nil, err
		}
		upd.Password = &hash
	}

	user, err := s.users.Update(ctx, id, upd)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) || errors.Is(err, repository.ErrDuplicateEmail) {
			return nil, err
		}
		return nil, fmt.Errorf("update user: %w", err)
	}
	return user, nil
}

// Delete removes the caller's own account.
func (s *UserService) Delete(ctx context.Context, caller *auth.Identity, id string) error {
	if err := s.ensureSelf(ctx, caller, id); err != nil {
		return err
	}
	if err := s.users.Delete(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return err
		}
		return fmt.Errorf("delete user: %w", err)
	}
	s.logger.Info().Str("user_id", id).Msg("user deleted")
	return nil
}

// ensureSelf resolves id first so a missing user is NotFound regardless of
// who asks.
func (s *UserService) ensureSelf(ctx context.Context, caller *auth.Identity, id string) error {
	if !validID(id) {
		return repository.ErrNotFound
	}
	if _, err := s.users.GetByID(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return err
		}
		return fmt.Errorf("get user: %w", err)
	}
	if caller == nil || caller.UserID != id {
		return ErrForbidden
	}
	return nil
}

func (s *UserService) hashPassword(password string) (string, error) {
	hash, err := s.hasher.Hash(password)
	if errors.Is(err, auth.ErrPasswordTooLong) {
		return "", invalid("password must be at most 72 bytes", "password")
	}
	return hash, err
}
