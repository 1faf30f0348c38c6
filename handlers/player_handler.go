package handlers

import (
	"log/slog"
	"net/http"

	"github.com/Dosada05/trust-tournament/services"
	"github.com/go-chi/chi/v5"
)

type PlayerHandler struct {
	playerService services.PlayerService
	responder
}

func NewPlayerHandler(ps services.PlayerService, logger *slog.Logger) *PlayerHandler {
	return &PlayerHandler{playerService: ps, responder: newResponder(logger)}
}

func (h *PlayerHandler) Leaderboard(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", 0)
	if err != nil {
		h.badRequestResponse(w, r, err)
		return
	}
	offset, err := queryInt(r, "offset", 0)
	if err != nil {
		h.badRequestResponse(w, r, err)
		return
	}

	players, err := h.playerService.Leaderboard(r.Context(), r.URL.Query().Get("sort"), limit, offset)
	if err != nil {
		h.mapServiceErrorToHTTP(w, r, err)
		return
	}
	h.writeOK(w, r, http.StatusOK, jsonResponse{"players": players})
}

func (h *PlayerHandler) GetPlayer(w http.ResponseWriter, r *http.Request) {
	stats, err := h.playerService.Stats(r.Context(), chi.URLParam(r, "address"))
	if err != nil {
		h.mapServiceErrorToHTTP(w, r, err)
		return
	}
	h.writeOK(w, r, http.StatusOK, jsonResponse{"player": stats})
}
