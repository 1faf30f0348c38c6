package handlers

import (
	"log/slog"
	"net/http"

	"github.com/Dosada05/trust-tournament/services"
)

type LobbyHandler struct {
	lobbyService services.LobbyService
	responder
}

func NewLobbyHandler(ls services.LobbyService, logger *slog.Logger) *LobbyHandler {
	return &LobbyHandler{lobbyService: ls, responder: newResponder(logger)}
}

func (h *LobbyHandler) GetLobby(w http.ResponseWriter, r *http.Request) {
	h.writeOK(w, r, http.StatusOK, jsonResponse{"lobby": h.lobbyService.State()})
}

// StartNow skips the countdown. Operator only.
func (h *LobbyHandler) StartNow(w http.ResponseWriter, r *http.Request) {
	t, err := h.lobbyService.StartNow(r.Context())
	if err != nil {
		h.mapServiceErrorToHTTP(w, r, err)
		return
	}
	h.writeOK(w, r, http.StatusCreated, jsonResponse{"tournament": t})
}
