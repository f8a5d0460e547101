package auth

import (
	"fmt"
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/google/uuid"

	"github.com/oceangate/oceangate/internal/shared"
)

// DefaultTokenTTL applies when no lifetime is configured.
const DefaultTokenTTL = 24 * time.Hour

// Claims are the custom JWT claims carried by bearer tokens.
type Claims struct {
	ID   string `json:"id"`
	Role string `json:"role"`
	jwt.StandardClaims
}

// Tokens signs and verifies HS256 bearer tokens.
type Tokens struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewTokens builds Tokens with the shared secret.
func NewTokens(secret string, ttl time.Duration) *Tokens {
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	return &Tokens{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// Issue signs a token for the user.
func (t *Tokens) Issue(user User) (string, time.Time, error) {
	now := t.now()
	expiresAt := now.Add(t.ttl)
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, &Claims{
		ID:   user.ID.String(),
		Role: user.Role,
		StandardClaims: jwt.StandardClaims{
			Id:        uuid.NewString(),
			Subject:   user.Email,
			IssuedAt:  now.Unix(),
			ExpiresAt: expiresAt.Unix(),
		},
	})
	signed, err := token.SignedString(t.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, expiresAt, nil
}

// Parse verifies the signature and expiry and returns the user id.
func (t *Tokens) Parse(raw string) (uuid.UUID, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(tok *jwt.Token) (interface{}, error) {
		if _, ok := tok.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", tok.Header["alg"])
		}
		return t.secret, nil
	})
	if err != nil {
		return uuid.Nil, ErrInvalidToken
	}
	id, err := uuid.Parse(claims.ID)
	if err != nil {
		return uuid.Nil, ErrInvalidToken
	}
	return id, nil
}

var (
	// ErrMissingToken rejects requests without a bearer token.
	ErrMissingToken = shared.Public("No token, authorization denied", shared.ErrUnauthorized)
	// ErrInvalidToken rejects malformed, expired or foreign tokens.
	ErrInvalidToken = shared.Public("Token is not valid", shared.ErrUnauthorized)
)
