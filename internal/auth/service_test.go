package auth

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oceangate/oceangate/internal/shared"
)

type memoryRepo struct {
	mu    sync.Mutex
	users map[uuid.UUID]User
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{users: map[uuid.UUID]User{}}
}

func (m *memoryRepo) FindByEmail(ctx context.Context, email string) (*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if strings.EqualFold(u.Email, email) {
			u := u
			return &u, nil
		}
	}
	return nil, shared.NotFound("User")
}

func (m *memoryRepo) FindByID(ctx context.Context, id uuid.UUID) (*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, shared.NotFound("User")
	}
	return &u, nil
}

func (m *memoryRepo) Create(ctx context.Context, user User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == user.Email || u.Username == user.Username {
			return ErrUserExists
		}
	}
	m.users[user.ID] = user
	return nil
}

func (m *memoryRepo) DeleteByEmail(ctx context.Context, email string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, u := range m.users {
		if u.Email == email {
			delete(m.users, id)
			return nil
		}
	}
	return shared.NotFound("User")
}

func (m *memoryRepo) UpsertPassword(ctx context.Context, user User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, u := range m.users {
		if u.Email == user.Email {
			u.PasswordHash, u.Role, u.IsActive = user.PasswordHash, user.Role, true
			m.users[id] = u
			return nil
		}
	}
	m.users[user.ID] = user
	return nil
}

func newTestService(t *testing.T) (*Service, *memoryRepo) {
	t.Helper()
	repo := newMemoryRepo()
	return NewService(repo, NewTokens("test-secret", time.Hour), nil), repo
}

func TestLoginIssuesVerifiableToken(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	created, err := svc.CreateUser(ctx, NewUser{Username: "maria", Email: " Maria@Example.com ", Password: "secret12"})
	require.NoError(t, err)
	assert.Equal(t, "maria@example.com", created.Email)
	assert.Equal(t, shared.RoleUser, created.Role)
	assert.NotEqual(t, "secret12", created.PasswordHash)

	result, err := svc.Login(ctx, LoginRequest{Email: "MARIA@example.com", Password: "secret12"})
	require.NoError(t, err)
	require.NotEmpty(t, result.Token)
	assert.Equal(t, created.ID, result.User.UserID)

	principal, err := svc.Verify(ctx, result.Token)
	require.NoError(t, err)
	assert.Equal(t, "maria", principal.Username)
	assert.Equal(t, shared.RoleUser, principal.Role)
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()
	user, err := svc.CreateUser(ctx, NewUser{Username: "maria", Email: "maria@example.com", Password: "secret12"})
	require.NoError(t, err)

	_, err = svc.Login(ctx, LoginRequest{Email: "maria@example.com", Password: "wrong-pass"})
	require.ErrorIs(t, err, shared.ErrInvalidCredentials)
	assert.Equal(t, "Invalid credentials", shared.UserSafeMessage(err))

	_, err = svc.Login(ctx, LoginRequest{Email: "nobody@example.com", Password: "secret12"})
	require.ErrorIs(t, err, shared.ErrUnauthorized)

	_, err = svc.Login(ctx, LoginRequest{Email: "not-an-email", Password: "x"})
	require.ErrorIs(t, err, shared.ErrValidation)

	user.IsActive = false
	repo.users[user.ID] = user
	_, err = svc.Login(ctx, LoginRequest{Email: "maria@example.com", Password: "secret12"})
	require.ErrorIs(t, err, shared.ErrInvalidCredentials)
}

func TestVerifyRejectsForeignAndExpiredTokens(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	user, err := svc.CreateUser(ctx, NewUser{Username: "ops", Email: "ops@example.com", Password: "secret12", Role: shared.RoleAdmin})
	require.NoError(t, err)

	foreign, _, err := NewTokens("other-secret", time.Hour).Issue(user)
	require.NoError(t, err)
	_, err = svc.Verify(ctx, foreign)
	require.ErrorIs(t, err, ErrInvalidToken)

	stale := NewTokens("test-secret", time.Hour)
	stale.now = func() time.Time { return time.Now().Add(-48 * time.Hour) }
	expired, _, err := stale.Issue(user)
	require.NoError(t, err)
	_, err = svc.Verify(ctx, expired)
	require.ErrorIs(t, err, shared.ErrUnauthorized)

	_, err = svc.Verify(ctx, "garbage")
	require.ErrorIs(t, err, ErrInvalidToken)

	ghost, _, err := svc.tokens.Issue(User{ID: uuid.New(), Role: shared.RoleUser})
	require.NoError(t, err)
	_, err = svc.Verify(ctx, ghost)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestCreateUserRules(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.CreateUser(ctx, NewUser{Username: "a", Email: "a@example.com", Password: "123"})
	require.ErrorIs(t, err, shared.ErrValidation)

	_, err = svc.CreateUser(ctx, NewUser{Username: "a", Email: "a@example.com", Password: "secret12", Role: "root"})
	require.ErrorIs(t, err, shared.ErrValidation)

	_, err = svc.CreateUser(ctx, NewUser{Username: "a", Email: "a@example.com", Password: "secret12"})
	require.NoError(t, err)
	_, err = svc.CreateUser(ctx, NewUser{Username: "a", Email: "b@example.com", Password: "secret12"})
	require.ErrorIs(t, err, shared.ErrConflict)

	require.NoError(t, svc.RemoveUser(ctx, "A@example.com"))
	require.ErrorIs(t, svc.RemoveUser(ctx, "a@example.com"), shared.ErrNotFound)
}

func TestResetAdmin(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()

	require.ErrorIs(t, svc.ResetAdmin(ctx, "short"), shared.ErrValidation)

	require.NoError(t, svc.ResetAdmin(ctx, "first-pass"))
	require.Len(t, repo.users, 1)
	_, err := svc.Login(ctx, LoginRequest{Email: AdminEmail, Password: "first-pass"})
	require.NoError(t, err)

	require.NoError(t, svc.ResetAdmin(ctx, "second-pass"))
	require.Len(t, repo.users, 1)
	_, err = svc.Login(ctx, LoginRequest{Email: AdminEmail, Password: "first-pass"})
	require.ErrorIs(t, err, shared.ErrInvalidCredentials)
	result, err := svc.Login(ctx, LoginRequest{Email: AdminEmail, Password: "second-pass"})
	require.NoError(t, err)
	assert.Equal(t, shared.RoleAdmin, result.User.Role)
}
