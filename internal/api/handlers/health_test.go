package handlers_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hugh/go-crm/internal/api/handlers"
	"github.com/hugh/go-crm/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHealthHandler(t *testing.T) {
	db := testutil.SetupTestDB(t)
	h := handlers.NewHealthHandler(db, nil)

	rr := httptest.NewRecorder()
	h.Health(rr, httptest.NewRequest(http.MethodGet, "/health", nil))
	testutil.AssertStatus(t, rr, http.StatusOK)

	var resp handlers.HealthResponse
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	assert.Equal(t, "healthy", resp.Status)
	assert.Equal(t, "healthy", resp.Services["database"])
	assert.NotContains(t, resp.Services, "redis")

	rr = httptest.NewRecorder()
	h.Ready(rr, httptest.NewRequest(http.MethodGet, "/ready", nil))
	testutil.AssertStatus(t, rr, http.StatusOK)
}

func TestHealthHandler_DatabaseDown(t *testing.T) {
	db := testutil.SetupTestDB(t)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	require.NoError(t, sqlDB.Close())

	h := handlers.NewHealthHandler(db, nil)

	rr := httptest.NewRecorder()
	h.Health(rr, httptest.NewRequest(http.MethodGet, "/health", nil))
	testutil.AssertStatus(t, rr, http.StatusServiceUnavailable)

	rr = httptest.NewRecorder()
	h.Ready(rr, httptest.NewRequest(http.MethodGet, "/ready", nil))
	testutil.AssertStatus(t, rr, http.StatusServiceUnavailable)
}
