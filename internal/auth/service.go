package auth

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/oceangate/oceangate/internal/shared"
)

// ErrUserExists reports a duplicate username or email.
var ErrUserExists = shared.Public("User with this email or username already exists", shared.ErrConflict)

// Service wraps authentication business rules.
type Service struct {
	repo     Repository
	tokens   *Tokens
	validate *validator.Validate
	logger   *slog.Logger
	now      func() time.Time
}

// NewService constructs a new Service.
func NewService(repo Repository, tokens *Tokens, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, tokens: tokens, validate: shared.NewValidator(), logger: logger, now: time.Now}
}

// Authenticate validates email/password credentials.
func (s *Service) Authenticate(ctx context.Context, email, password string) (*User, error) {
	user, err := s.repo.FindByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, shared.ErrInvalidCredentials
		}
		return nil, err
	}
	if !user.IsActive {
		return nil, shared.ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, shared.ErrInvalidCredentials
	}
	return user, nil
}

// Login authenticates the credentials and issues a bearer token.
func (s *Service) Login(ctx context.Context, req LoginRequest) (LoginResult, error) {
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if err := s.validate.Struct(req); err != nil {
		return LoginResult{}, shared.FromValidator(err)
	}
	user, err := s.Authenticate(ctx, req.Email, req.Password)
	if err != nil {
		s.logger.Info("login rejected", slog.String("email", req.Email))
		return LoginResult{}, err
	}
	token, expiresAt, err := s.tokens.Issue(*user)
	if err != nil {
		return LoginResult{}, err
	}
	s.logger.Info("login", slog.String("user_id", user.ID.String()))
	return LoginResult{Token: token, ExpiresAt: expiresAt, User: user.Principal()}, nil
}

// Verify resolves a bearer token to an active user.
func (s *Service) Verify(ctx context.Context, token string) (shared.Principal, error) {
	id, err := s.tokens.Parse(token)
	if err != nil {
		return shared.Principal{}, err
	}
	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return shared.Principal{}, ErrInvalidToken
		}
		return shared.Principal{}, err
	}
	if !user.IsActive {
		return shared.Principal{}, ErrInvalidToken
	}
	return user.Principal(), nil
}

// CreateUser stores a new account with a bcrypt hash of the password.
func (s *Service) CreateUser(ctx context.Context, in NewUser) (User, error) {
	in.Username = strings.TrimSpace(in.Username)
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	if in.Role == "" {
		in.Role = shared.RoleUser
	}
	if err := s.validate.Struct(in); err != nil {
		return User{}, shared.FromValidator(err)
	}
	hash, err := HashPassword(in.Password)
	if err != nil {
		return User{}, err
	}
	now := s.now().UTC()
	user := User{
		ID:           uuid.New(),
		Username:     in.Username,
		Email:        in.Email,
		PasswordHash: hash,
		Role:         in.Role,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.repo.Create(ctx, user); err != nil {
		return User{}, err
	}
	s.logger.Info("user created", slog.String("user_id", user.ID.String()), slog.String("role", user.Role))
	return user, nil
}

// RemoveUser deletes the account with the given email.
func (s *Service) RemoveUser(ctx context.Context, email string) error {
	return s.repo.DeleteByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
}

// ResetAdmin sets the admin password, creating the admin account when absent.
func (s *Service) ResetAdmin(ctx context.Context, password string) error {
	if len(password) < MinPasswordLength {
		return shared.Validation("password must be at least %d characters long", MinPasswordLength)
	}
	hash, err := HashPassword(password)
	if err != nil {
		return err
	}
	now := s.now().UTC()
	return s.repo.UpsertPassword(ctx, User{
		ID:           uuid.New(),
		Username:     "admin",
		Email:        AdminEmail,
		PasswordHash: hash,
		Role:         shared.RoleAdmin,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	})
}

// HashPassword returns the bcrypt hash of password.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}
