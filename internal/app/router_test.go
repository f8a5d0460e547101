package app

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oceangate/oceangate/internal/auth"
	"github.com/oceangate/oceangate/internal/categories"
	"github.com/oceangate/oceangate/internal/observability"
	"github.com/oceangate/oceangate/internal/shared"
)

type userStore struct {
	users []auth.User
}

func (s *userStore) FindByEmail(ctx context.Context, email string) (*auth.User, error) {
	for _, u := range s.users {
		if strings.EqualFold(u.Email, email) {
			u := u
			return &u, nil
		}
	}
	return nil, shared.NotFound("User")
}

func (s *userStore) FindByID(ctx context.Context, id uuid.UUID) (*auth.User, error) {
	for _, u := range s.users {
		if u.ID == id {
			u := u
			return &u, nil
		}
	}
	return nil, shared.NotFound("User")
}

func (s *userStore) Create(ctx context.Context, user auth.User) error {
	s.users = append(s.users, user)
	return nil
}

func (s *userStore) DeleteByEmail(ctx context.Context, email string) error {
	return errors.New("not supported")
}

func (s *userStore) UpsertPassword(ctx context.Context, user auth.User) error {
	return errors.New("not supported")
}

type categoryStore struct{}

func (categoryStore) List(ctx context.Context) ([]categories.Category, error) {
	return []categories.Category{{ID: uuid.New(), Name: "Lot1", Species: "Mud crab", WeightRange: "200-300g"}}, nil
}

func (categoryStore) Get(ctx context.Context, id uuid.UUID) (categories.Category, error) {
	return categories.Category{}, shared.NotFound("Category")
}

func (categoryStore) Insert(ctx context.Context, c categories.Category) (categories.Category, error) {
	return c, nil
}

func (categoryStore) Update(ctx context.Context, c categories.Category) (categories.Category, error) {
	return c, nil
}

func (categoryStore) DeleteUnused(ctx context.Context, id uuid.UUID) (int, error) {
	return 0, nil
}

func newTestRouter(t *testing.T) (http.Handler, *auth.Service) {
	t.Helper()
	logger := NewLogger(&Config{LogFormat: "json"})
	authSvc := auth.NewService(&userStore{}, auth.NewTokens("router-secret", time.Hour), logger)
	_, err := authSvc.CreateUser(context.Background(), auth.NewUser{Username: "ops", Email: "ops@example.com", Password: "secret12"})
	require.NoError(t, err)

	router := NewRouter(RouterParams{
		Logger:          logger,
		Config:          &Config{AppEnv: "test", RateLimitPerMinute: 1000, CORSOrigins: []string{"http://localhost:3000"}},
		AuthHandler:     auth.NewHandler(logger, authSvc),
		AuthMiddleware:  auth.Middleware(authSvc, logger),
		CategoryHandler: categories.NewHandler(logger, categories.NewService(categoryStore{}, nil, logger)),
		Metrics:         observability.NewMetrics(),
	})
	return router, authSvc
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestHealthEndpoints(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, decode(t, rec)["success"])
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", decode(t, rec)["status"])
}

func TestProtectedRoutesRequireBearerToken(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/categories", nil))
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, false, body["success"])
	assert.Equal(t, "No token, authorization denied", body["message"])

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/auth/login",
		strings.NewReader(`{"email":"ops@example.com","password":"secret12"}`)))
	require.Equal(t, http.StatusOK, rec.Code)
	token := decode(t, rec)["data"].(map[string]any)["token"].(string)

	req := httptest.NewRequest(http.MethodGet, "/api/categories", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	items := decode(t, rec)["data"].([]any)
	assert.Len(t, items, 1)
}

func TestUnknownAPIRouteUsesEnvelope(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/unknown", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Route not found", decode(t, rec)["message"])
}

func TestMetricsEndpointRecordsRequests(t *testing.T) {
	router, _ := newTestRouter(t)
	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/health", nil))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `oceangate_http_requests_total{code="200",route="/api/health"}`)
}
