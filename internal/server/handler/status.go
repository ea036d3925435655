package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"
)

// StatusSnapshot summarizes daemon state for the /api/status route.
type StatusSnapshot struct {
	Mode            string
	StartedAt       time.Time
	StoresUnhealthy int
}

// StatusProvider produces a fresh StatusSnapshot on each request. It is
// satisfied by a closure over *app.Dependencies so this package never needs
// to import the healing or scheduler packages directly.
type StatusProvider func(ctx context.Context) (StatusSnapshot, error)

// StatusHandler serves a best-effort operational summary.
type StatusHandler struct {
	provide StatusProvider
	logger  *slog.Logger
}

// NewStatusHandler builds a StatusHandler.
func NewStatusHandler(provide StatusProvider, logger *slog.Logger) *StatusHandler {
	return &StatusHandler{provide: provide, logger: logger}
}

// GetStatus writes the current StatusSnapshot as JSON. A provider error is
// logged but does not fail the request; the handler still returns whatever
// partial snapshot it has.
func (h *StatusHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	snap, err := h.provide(r.Context())
	if err != nil {
		h.logger.WarnContext(r.Context(), "status handler: provider failed", slog.String("error", err.Error()))
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"mode":             snap.Mode,
		"started_at":       snap.StartedAt,
		"stores_unhealthy": snap.StoresUnhealthy,
	})
}
