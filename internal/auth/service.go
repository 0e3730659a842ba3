package auth

import (
	"context"
	"errors"
	"time"

	"the-keep/internal/core"
)

// Lifetime of authentication tokens issued on login.
const authTokenTTL = 24 * time.Hour

// Service provides authentication functionality
type Service struct {
	users       *UserModel
	tokens      *TokenModel
	permissions *PermissionModel
	logger      *core.Logger
	config      *core.Config
}

// NewService creates a new authentication service
func NewService(db *core.Database, logger *core.Logger, config *core.Config) *Service {
	return &Service{
		users:       NewUserModel(db, logger),
		tokens:      NewTokenModel(db, logger),
		permissions: NewPermissionModel(db, logger),
		logger:      logger,
		config:      config,
	}
}

// AuthenticateUser authenticates a user with email and password
func (s *Service) AuthenticateUser(ctx context.Context, email, password string) (*User, error) {
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		switch {
		case errors.Is(err, ErrRecordNotFound):
			return nil, ErrInvalidCredentials
		default:
			return nil, err
		}
	}

	if !user.Activated {
		return nil, ErrUserNotActivated
	}

	match, err := user.Password.Matches(password)
	if err != nil {
		return nil, err
	}

	if !match {
		return nil, ErrInvalidCredentials
	}

	return user, nil
}

// CreateAuthenticationToken creates a new authentication token for a user,
// replacing any existing ones.
func (s *Service) CreateAuthenticationToken(ctx context.Context, user *User) (*Token, error) {
	err := s.tokens.DeleteAllForUser(ctx, ScopeAuthentication, user.ID)
	if err != nil {
		return nil, err
	}

	token, err := s.tokens.New(ctx, user.ID, authTokenTTL, ScopeAuthentication)
	if err != nil {
		return nil, err
	}

	s.logger.Info("Created authentication token", "user_id", user.ID)
	return token, nil
}

// ValidateToken validates an authentication token
func (s *Service) ValidateToken(ctx context.Context, tokenPlaintext string) (*User, error) {
	user, err := s.users.GetForToken(ctx, ScopeAuthentication, tokenPlaintext)
	if err != nil {
		switch {
		case errors.Is(err, ErrRecordNotFound):
			return nil, ErrInvalidToken
		default:
			return nil, err
		}
	}

	return user, nil
}

// GetUserPermissions retrieves all permissions for a user
func (s *Service) GetUserPermissions(ctx context.Context, userID int) (Permissions, error) {
	return s.permissions.GetAllForUser(ctx, userID)
}

// UserHasPermission checks if a user has a specific permission
func (s *Service) UserHasPermission(ctx context.Context, userID int, permissionCode string) (bool, error) {
	permissions, err := s.permissions.GetAllForUser(ctx, userID)
	if err != nil {
		return false, err
	}

	return permissions.Include(permissionCode), nil
}

// CreateUser creates a new pre-activated user with admin permissions
func (s *Service) CreateUser(ctx context.Context, name, email, password string) (*User, error) {
	user := &User{
		Name:      name,
		Email:     email,
		Activated: true,
	}

	err := user.Password.Set(password)
	if err != nil {
		return nil, err
	}

	err = s.users.Insert(ctx, user)
	if err != nil {
		return nil, err
	}

	err = s.permissions.AddForUser(ctx, user.ID, PermissionDocsAdmin)
	if err != nil {
		return nil, err
	}

	s.logger.Info("Created user", "user_id", user.ID, "email", user.Email)
	return user, nil
}

// EnsureAdminUser creates the configured admin account if it does not exist
// yet. Called at startup after migrations have run.
func (s *Service) EnsureAdminUser(ctx context.Context) error {
	email := s.config.Auth.AdminEmail

	_, err := s.users.GetByEmail(ctx, email)
	if err == nil {
		return nil
	}
	if !errors.Is(err, ErrRecordNotFound) {
		return err
	}

	_, err = s.CreateUser(ctx, "Administrator", email, s.config.Auth.AdminPassword)
	if err != nil {
		return err
	}

	s.logger.Info("Seeded admin user", "email", email)
	return nil
}

// LogoutUser invalidates all authentication tokens for a user
func (s *Service) LogoutUser(ctx context.Context, userID int) error {
	err := s.tokens.DeleteAllForUser(ctx, ScopeAuthentication, userID)
	if err != nil {
		return err
	}

	s.logger.Info("User logged out", "user_id", userID)
	return nil
}

// Common authentication errors
var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUserNotActivated   = errors.New("user not activated")
	ErrInvalidToken       = errors.New("invalid or expired token")
)
