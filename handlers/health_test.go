package handlers

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
)

func TestHealthCheck(t *testing.T) {
	setupRouter := func() (*HealthHandler, *mux.Router) {
		handler := NewHealthHandler()
		router := mux.NewRouter()
		handler.SetupEndpoints(router)
		return handler, router
	}

	t.Run("reports_starting_until_ready", func(t *testing.T) {
		_, router := setupRouter()

		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthcheck", nil))

		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
		assert.JSONEq(t, `{"status":"starting"}`, rec.Body.String())
	})

	t.Run("reports_ok_after_set_ready", func(t *testing.T) {
		handler, router := setupRouter()
		handler.SetReady()

		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthcheck", nil))

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
		assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	})

	t.Run("rejects_non_get_methods", func(t *testing.T) {
		handler, router := setupRouter()
		handler.SetReady()

		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/healthcheck", nil))

		assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	})
}
