package handlers

import (
	"log"
	"net/http"
	"sync/atomic"

	"github.com/gorilla/mux"
)

// HealthHandler serves the container liveness probe. It reports 503 until
// SetReady is called after startup completes.
type HealthHandler struct {
	ready atomic.Bool
}

// NewHealthHandler creates a new health check handler
func NewHealthHandler() *HealthHandler {
	return &HealthHandler{}
}

// SetReady marks startup as complete so the probe starts returning 200
func (h *HealthHandler) SetReady() {
	h.ready.Store(true)
}

// SetupEndpoints registers the health check route on the router
func (h *HealthHandler) SetupEndpoints(router *mux.Router) {
	router.HandleFunc("/healthcheck", h.HandleHealthCheck).Methods("GET")
}

func (h *HealthHandler) HandleHealthCheck(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if !h.ready.Load() {
		w.WriteHeader(http.StatusServiceUnavailable)
		if _, err := w.Write([]byte(`{"status":"starting"}`)); err != nil {
			log.Printf("❌ Failed to write health check response: %v", err)
		}
		return
	}
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte(`{"status":"ok"}`)); err != nil {
		log.Printf("❌ Failed to write health check response: %v", err)
	}
}
