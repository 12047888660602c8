package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jackc/pgx/v5"

	"github.com/Astro-67/bookissue-backend/internal/auth"
	"github.com/Astro-67/bookissue-backend/internal/config"
	"github.com/Astro-67/bookissue-backend/internal/domain"
	"github.com/Astro-67/bookissue-backend/internal/events"
	"github.com/Astro-67/bookissue-backend/internal/repository"
	apperrors "github.com/Astro-67/bookissue-backend/pkg/util/errorutil"
)

// AuthService coordinates registration, login and self-service profile flows.
type AuthService struct {
	users      repository.UserRepository
	dispatcher events.Dispatcher
	tokenMgr   *auth.TokenManager
	bcryptCost int
}

// AuthDependencies encapsulates repo requirements for auth service.
type AuthDependencies struct {
	UserRepo   repository.UserRepository
	Dispatcher events.Dispatcher
}

// RegisterInput is a self-registration request. Self-registered accounts are always students.
type RegisterInput struct {
	Email       string
	Password    string
	FirstName   string
	LastName    string
	PhoneNumber *string
	StudentID   *string
	Department  *string
}

// ProfileInput carries the fields a user may change about themselves.
type ProfileInput struct {
	FirstName   *string
	LastName    *string
	PhoneNumber *string
	Department  *string
}

// Session is an issued access token.
type Session struct {
	User      *domain.User
	Token     string
	ExpiresAt time.Time
}

// NewAuthService builds the service.
func NewAuthService(cfg config.Config, deps AuthDependencies) *AuthService {
	return &AuthService{
		users:      deps.UserRepo,
		dispatcher: deps.Dispatcher,
		tokenMgr:   auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTLMinutes),
		bcryptCost: cfg.Auth.BcryptCost,
	}
}

// Register creates a student account and signs it in.
func (s *AuthService) Register(ctx context.Context, input RegisterInput) (*Session, error) {
	user, err := buildAccount(input.Email, input.Password, input.FirstName, input.LastName)
	if err != nil {
		return nil, err
	}
	user.Role = domain.RoleStudent
	user.Active = true
	user.PhoneNumber = optionalString(input.PhoneNumber)
	user.StudentID = optionalString(input.StudentID)
	user.Department = optionalString(input.Department)

	if err := s.createAccount(ctx, user, input.Password); err != nil {
		return nil, err
	}
	publishEvent(ctx, s.dispatcher, events.UserCreated{
		Metadata: events.NewMetadata(user.ID),
		User:     events.SnapshotUser(user),
	})
	return s.issue(user)
}

// Login authenticates by email and password.
func (s *AuthService) Login(ctx context.Context, email, password string) (*Session, error) {
	user, err := s.users.GetByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewUnauthorized("invalid credentials")
		}
		return nil, err
	}
	if err := auth.ComparePassword(user.PasswordHash, password); err != nil {
		return nil, apperrors.NewUnauthorized("invalid credentials")
	}
	if !user.Active {
		return nil, apperrors.NewUnauthorized("account is disabled")
	}
	return s.issue(user)
}

// UpdateProfile applies self-service profile edits.
func (s *AuthService) UpdateProfile(ctx context.Context, actor *domain.User, input ProfileInput) (*domain.User, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	user, err := s.users.GetByID(ctx, actor.ID)
	if err != nil {
		return nil, notFound(err, "user", actor.ID)
	}
	if input.FirstName != nil {
		user.FirstName = strings.TrimSpace(*input.FirstName)
	}
	if input.LastName != nil {
		user.LastName = strings.TrimSpace(*input.LastName)
	}
	if input.PhoneNumber != nil {
		user.PhoneNumber = optionalString(input.PhoneNumber)
	}
	if input.Department != nil {
		user.Department = optionalString(input.Department)
	}
	if err := s.users.Update(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// ChangePassword verifies current password before updating to new hash.
func (s *AuthService) ChangePassword(ctx context.Context, actor *domain.User, currentPassword, newPassword string) error {
	if err := requireActor(actor); err != nil {
		return err
	}
	if len(newPassword) < auth.MinPasswordLength {
		return apperrors.NewValidationError("new password is too short", map[string]any{"min_length": auth.MinPasswordLength})
	}
	user, err := s.users.GetByID(ctx, actor.ID)
	if err != nil {
		return notFound(err, "user", actor.ID)
	}
	if err := auth.ComparePassword(user.PasswordHash, currentPassword); err != nil {
		return apperrors.NewValidationError("current password is incorrect", map[string]any{"field": "old_password"})
	}
	hash, err := auth.HashPassword(newPassword, s.bcryptCost)
	if err != nil {
		return err
	}
	user.PasswordHash = hash
	return s.users.Update(ctx, user)
}

// TokenManager exposes the underlying token manager for middleware usage.
func (s *AuthService) TokenManager() *auth.TokenManager {
	return s.tokenMgr
}

func (s *AuthService) issue(user *domain.User) (*Session, error) {
	token, exp, err := s.tokenMgr.GenerateToken(user)
	if err != nil {
		return nil, err
	}
	return &Session{User: user, Token: token, ExpiresAt: exp}, nil
}

func (s *AuthService) createAccount(ctx context.Context, user *domain.User, password string) error {
	return createAccount(ctx, s.users, s.bcryptCost, user, password)
}

var fieldValidator = validator.New()

// buildAccount validates the fields shared by self-registration and admin creation.
func buildAccount(email, password, firstName, lastName string) (*domain.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if err := fieldValidator.Var(email, "required,email"); err != nil {
		return nil, apperrors.NewValidationError("a valid email is required", map[string]any{"field": "email"})
	}
	if len(password) < auth.MinPasswordLength {
		return nil, apperrors.NewValidationError("password is too short", map[string]any{"min_length": auth.MinPasswordLength})
	}
	return &domain.User{
		Email:     email,
		FirstName: strings.TrimSpace(firstName),
		LastName:  strings.TrimSpace(lastName),
	}, nil
}

func createAccount(ctx context.Context, users repository.UserRepository, cost int, user *domain.User, password string) error {
	if _, err := users.GetByEmail(ctx, user.Email); err == nil {
		return apperrors.NewValidationError("email already registered", map[string]any{"field": "email"})
	} else if !errors.Is(err, pgx.ErrNoRows) {
		return err
	}
	hash, err := auth.HashPassword(password, cost)
	if err != nil {
		return err
	}
	user.PasswordHash = hash
	if err := users.Create(ctx, user); err != nil {
		return duplicateError(err, "email or student id already registered", "email")
	}
	return nil
}
