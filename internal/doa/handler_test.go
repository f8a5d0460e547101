package doa

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRouter(repo *memoryRepo) http.Handler {
	r := chi.NewRouter()
	r.Route("/api/doa", NewHandler(nil, NewService(repo, nil, nil, nil)).MountRoutes)
	return r
}

func TestRecordEndpointAcceptsStockID(t *testing.T) {
	repo := newMemoryRepo()
	lot := repo.store.AddLot(repo.store.AddCategory("Lot1"), 10, "3.0", "5")
	router := newTestRouter(repo)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/doa",
		strings.NewReader(`{"stockId":"`+lot.ID.String()+`","quantity":2}`)))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var env struct {
		Success bool `json:"success"`
		Data    struct {
			StockID string      `json:"stockId"`
			Weight  json.Number `json:"weight"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	assert.True(t, env.Success)
	assert.Equal(t, lot.ID.String(), env.Data.StockID)
	assert.Equal(t, "0.6", env.Data.Weight.String())

	after, _ := repo.store.Lot(lot.ID)
	assert.Equal(t, 8, after.Quantity)
	assert.Equal(t, "2.4", after.Weight.String())
}

func TestRecordEndpointRequiresStockID(t *testing.T) {
	router := newTestRouter(newMemoryRepo())

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/doa", strings.NewReader(`{"quantity":2}`)))
	require.Equal(t, http.StatusBadRequest, rec.Code)

	var env struct {
		Success bool   `json:"success"`
		Message string `json:"message"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	assert.False(t, env.Success)
	assert.Contains(t, env.Message, "stockId")
}
