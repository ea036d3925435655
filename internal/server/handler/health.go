package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
)

// HealthHandler serves the liveness check consumed by uptime monitors and
// load balancers. It never touches a dependency: a process that can answer
// HTTP at all is considered live.
type HealthHandler struct {
	logger *slog.Logger
}

// NewHealthHandler builds a HealthHandler.
func NewHealthHandler(logger *slog.Logger) *HealthHandler {
	return &HealthHandler{logger: logger}
}

// HealthCheck writes a static 200 OK JSON body.
func (h *HealthHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}
