package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/Dosada05/trust-tournament/brackets"
	"github.com/Dosada05/trust-tournament/services"
	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
)

type WebSocketHandler struct {
	hub               *brackets.Hub
	tournamentService services.TournamentService
	upgrader          websocket.Upgrader
	// ctx живёт столько же, сколько hub; ReadPump не должен зависеть от запроса.
	ctx context.Context
	responder
}

func NewWebSocketHandler(ctx context.Context, hub *brackets.Hub, ts services.TournamentService, allowedOrigins []string, logger *slog.Logger) *WebSocketHandler {
	return &WebSocketHandler{
		hub:               hub,
		tournamentService: ts,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(allowedOrigins),
		},
		ctx:       ctx,
		responder: newResponder(logger),
	}
}

// originChecker allows everything when no origins are configured.
func originChecker(allowed []string) func(r *http.Request) bool {
	if len(allowed) == 0 {
		return func(*http.Request) bool { return true }
	}
	set := make(map[string]struct{}, len(allowed))
	for _, o := range allowed {
		set[o] = struct{}{}
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		_, ok := set[origin]
		return ok
	}
}

// ServeLobby подключает клиента к комнате лобби; сообщения JOIN_LOBBY и т.д.
// обрабатывает LobbyService через hub.
func (h *WebSocketHandler) ServeLobby(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, brackets.LobbyRoom)
}

// ServeTournament: /ws/tournaments/{tournamentID}
func (h *WebSocketHandler) ServeTournament(w http.ResponseWriter, r *http.Request) {
	tournamentID := chi.URLParam(r, "tournamentID")
	if _, err := h.tournamentService.GetTournament(r.Context(), tournamentID); err != nil {
		h.mapServiceErrorToHTTP(w, r, err)
		return
	}
	h.serve(w, r, brackets.TournamentRoom(tournamentID))
}

func (h *WebSocketHandler) serve(w http.ResponseWriter, r *http.Request, room string) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade сам отвечает клиенту
		h.logger.Warn("websocket upgrade failed", slog.String("room", room), slog.Any("error", err))
		return
	}

	client := brackets.NewClient(h.hub, conn, room)
	if !h.hub.Join(h.ctx, client) {
		conn.Close()
		return
	}

	go client.WritePump()
	go client.ReadPump(h.ctx)

	h.logger.Info("websocket client connected", slog.String("room", room), slog.String("client_id", client.ID))
}
