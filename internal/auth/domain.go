package auth

import (
	"time"

	"github.com/google/uuid"

	"github.com/oceangate/oceangate/internal/shared"
)

// AdminEmail is the account restored by a production reset.
const AdminEmail = "admin@oceangateintl.com"

// MinPasswordLength applies to every stored password.
const MinPasswordLength = 6

// User represents an authenticated user account.
type User struct {
	ID           uuid.UUID
	Username     string
	Email        string
	PasswordHash string
	Role         string
	IsActive     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Principal returns the request-scoped view of the user.
func (u User) Principal() shared.Principal {
	return shared.Principal{UserID: u.ID, Username: u.Username, Email: u.Email, Role: u.Role}
}

// LoginRequest is the payload of POST /api/auth/login.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// LoginResult carries the issued bearer token.
type LoginResult struct {
	Token     string           `json:"token"`
	ExpiresAt time.Time        `json:"expiresAt"`
	User      shared.Principal `json:"user"`
}

// NewUser is the input for creating an account.
type NewUser struct {
	Username string `json:"username" validate:"required,max=100"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
	Role     string `json:"role" validate:"oneof=user admin"`
}
