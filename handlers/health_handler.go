package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"time"
)

// Pinger is satisfied by *sql.DB and the mongo client adapter.
type Pinger interface {
	PingContext(ctx context.Context) error
}

type HealthHandler struct {
	store Pinger
	responder
}

func NewHealthHandler(store Pinger, logger *slog.Logger) *HealthHandler {
	return &HealthHandler{store: store, responder: newResponder(logger)}
}

func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	status := http.StatusOK
	resp := jsonResponse{"status": "ok", "time": time.Now().UTC()}

	if h.store != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := h.store.PingContext(ctx); err != nil {
			h.logger.Warn("health check: store unreachable", slog.Any("error", err))
			status = http.StatusServiceUnavailable
			resp["status"] = "degraded"
			resp["store"] = err.Error()
		}
	}
	h.writeOK(w, r, status, resp)
}
