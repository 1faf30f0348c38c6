package brackets

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/Dosada05/trust-tournament/models"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	MessageTournamentUpdated = "TOURNAMENT_UPDATED"
	MessageRoundSeeded       = "ROUND_SEEDED"
	MessageMatchAssigned     = "MATCH_ASSIGNED"
	MessageLobbyState        = "LOBBY_STATE"
	MessageTournamentStarted = "TOURNAMENT_STARTED"
	MessageError             = "ERROR"

	LobbyRoom = "lobby"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
)

func TournamentRoom(tournamentID string) string {
	return "tournament_" + tournamentID
}

type Client struct {
	ID       string
	Hub      *Hub
	Conn     *websocket.Conn
	Send     chan []byte
	Room     string
	IsClosed bool
	Mu       sync.Mutex
}

func NewClient(hub *Hub, conn *websocket.Conn, room string) *Client {
	return &Client{
		ID:   uuid.NewString(),
		Hub:  hub,
		Conn: conn,
		Send: make(chan []byte, 256),
		Room: room,
	}
}

type WebSocketMessage struct {
	Type    string      `json:"type"`              // TOURNAMENT_UPDATED, ROUND_SEEDED, ...
	Payload interface{} `json:"payload"`           // данные сообщения
	RoomID  string      `json:"room_id,omitempty"` // комната, к которой относится сообщение
}

// InboundMessage is what clients send over the socket.
type InboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// MessageHandler consumes client messages. HandleDisconnect runs after the
// session of the client has been torn down.
type MessageHandler interface {
	HandleMessage(ctx context.Context, clientID string, msg InboundMessage)
	HandleDisconnect(ctx context.Context, clientID, address string)
}

type RoundSeededPayload struct {
	TournamentID string         `json:"tournament_id"`
	RoundNumber  int            `json:"round_number"`
	Matches      []models.Match `json:"matches"`
}

type MatchAssignedPayload struct {
	TournamentID string       `json:"tournament_id"`
	RoundNumber  int          `json:"round_number"`
	MatchID      string       `json:"match_id"`
	Opponent     *models.Seed `json:"opponent,omitempty"`
	Stake        int64        `json:"stake"`
}

// Hub owns websocket rooms and the session registry (connection id -> address).
type Hub struct {
	Register   chan *Client
	Unregister chan *Client

	rooms    map[string]map[*Client]bool
	clients  map[string]*Client
	sessions map[string]string
	mu       sync.RWMutex

	handler MessageHandler
	logger  *slog.Logger
}

func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
		rooms:      make(map[string]map[*Client]bool),
		clients:    make(map[string]*Client),
		sessions:   make(map[string]string),
		logger:     logger,
	}
}

// SetHandler must be called before Run.
func (h *Hub) SetHandler(handler MessageHandler) {
	h.handler = handler
}

func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			return
		case client := <-h.Register:
			h.addClient(client)
		case client := <-h.Unregister:
			h.removeClient(ctx, client)
		}
	}
}

// Join hands the client to Run. False once ctx is done and Run has stopped.
func (h *Hub) Join(ctx context.Context, client *Client) bool {
	select {
	case h.Register <- client:
		return true
	case <-ctx.Done():
		return false
	}
}

func (h *Hub) leave(ctx context.Context, client *Client) {
	select {
	case h.Unregister <- client:
	case <-ctx.Done():
	}
}

func (h *Hub) addClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.rooms[client.Room]; !ok {
		h.rooms[client.Room] = make(map[*Client]bool)
	}
	h.rooms[client.Room][client] = true
	h.clients[client.ID] = client
	h.logger.Debug("client registered",
		slog.String("room", client.Room), slog.Int("room_size", len(h.rooms[client.Room])))
}

func (h *Hub) removeClient(ctx context.Context, client *Client) {
	h.mu.Lock()
	if _, ok := h.rooms[client.Room][client]; !ok {
		h.mu.Unlock()
		return
	}
	client.Mu.Lock()
	if !client.IsClosed {
		close(client.Send)
		client.IsClosed = true
	}
	client.Mu.Unlock()
	delete(h.rooms[client.Room], client)
	if len(h.rooms[client.Room]) == 0 {
		delete(h.rooms, client.Room)
	}
	delete(h.clients, client.ID)
	address, hadSession := h.sessions[client.ID]
	delete(h.sessions, client.ID)
	h.mu.Unlock()

	if hadSession && h.handler != nil {
		h.handler.HandleDisconnect(ctx, client.ID, address)
	}
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, room := range h.rooms {
		for client := range room {
			client.Mu.Lock()
			if !client.IsClosed {
				close(client.Send)
				client.IsClosed = true
			}
			client.Mu.Unlock()
		}
	}
	h.rooms = make(map[string]map[*Client]bool)
	h.clients = make(map[string]*Client)
	h.sessions = make(map[string]string)
}

// BindSession attaches a wallet address to a connection.
func (h *Hub) BindSession(clientID, address string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[clientID]; !ok {
		return
	}
	h.sessions[clientID] = models.NormalizeAddress(address)
}

func (h *Hub) SessionAddress(clientID string) (string, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	address, ok := h.sessions[clientID]
	return address, ok
}

func (h *Hub) ReleaseSession(clientID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.sessions, clientID)
}

// BroadcastToRoom отправляет сообщение всем клиентам в указанной комнате.
func (h *Hub) BroadcastToRoom(roomID string, message interface{}) {
	messageBytes, err := json.Marshal(message)
	if err != nil {
		h.logger.Error("failed to marshal room message", slog.String("room", roomID), slog.Any("error", err))
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for client := range h.rooms[roomID] {
		h.deliver(client, messageBytes)
	}
}

// SendToClient delivers a message to one connection.
func (h *Hub) SendToClient(clientID string, message interface{}) {
	messageBytes, err := json.Marshal(message)
	if err != nil {
		h.logger.Error("failed to marshal client message", slog.Any("error", err))
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	if client, ok := h.clients[clientID]; ok {
		h.deliver(client, messageBytes)
	}
}

// SendToAddress delivers a message to every connection bound to address.
// Addresses without a session (bots) are silently skipped.
func (h *Hub) SendToAddress(address string, message interface{}) int {
	messageBytes, err := json.Marshal(message)
	if err != nil {
		h.logger.Error("failed to marshal address message", slog.Any("error", err))
		return 0
	}
	address = models.NormalizeAddress(address)

	h.mu.RLock()
	defer h.mu.RUnlock()
	delivered := 0
	for clientID, bound := range h.sessions {
		if bound != address {
			continue
		}
		if client, ok := h.clients[clientID]; ok {
			h.deliver(client, messageBytes)
			delivered++
		}
	}
	return delivered
}

// deliver never blocks. Caller holds h.mu.
func (h *Hub) deliver(client *Client, message []byte) {
	client.Mu.Lock()
	defer client.Mu.Unlock()
	if client.IsClosed {
		return
	}
	select {
	case client.Send <- message:
	default:
		h.logger.Warn("client send buffer full, dropping message", slog.String("room", client.Room))
	}
}

// TournamentUpdated broadcasts the aggregate to its room.
func (h *Hub) TournamentUpdated(ctx context.Context, t *models.Tournament) error {
	if t == nil {
		return fmt.Errorf("tournament updated: nil tournament")
	}
	room := TournamentRoom(t.ID)
	h.BroadcastToRoom(room, WebSocketMessage{Type: MessageTournamentUpdated, Payload: t, RoomID: room})
	return nil
}

// RoundSeeded broadcasts the new pairings and tells every connected human
// participant which match to play.
func (h *Hub) RoundSeeded(ctx context.Context, t *models.Tournament, roundNumber int, matches []models.Match) error {
	if t == nil {
		return fmt.Errorf("round seeded: nil tournament")
	}
	room := TournamentRoom(t.ID)
	h.BroadcastToRoom(room, WebSocketMessage{
		Type:    MessageRoundSeeded,
		Payload: RoundSeededPayload{TournamentID: t.ID, RoundNumber: roundNumber, Matches: matches},
		RoomID:  room,
	})

	for _, m := range matches {
		if m.IsBye || m.ExternalMatchID == "" || m.SeedA == nil || m.SeedB == nil {
			continue
		}
		h.SendToAddress(m.SeedA.Address, WebSocketMessage{
			Type: MessageMatchAssigned,
			Payload: MatchAssignedPayload{
				TournamentID: t.ID, RoundNumber: roundNumber, MatchID: m.ExternalMatchID, Opponent: m.SeedB, Stake: m.Stake,
			},
		})
		h.SendToAddress(m.SeedB.Address, WebSocketMessage{
			Type: MessageMatchAssigned,
			Payload: MatchAssignedPayload{
				TournamentID: t.ID, RoundNumber: roundNumber, MatchID: m.ExternalMatchID, Opponent: m.SeedA, Stake: m.Stake,
			},
		})
	}
	return nil
}

func (c *Client) ReadPump(ctx context.Context) {
	defer func() {
		c.Hub.leave(ctx, c)
		c.Conn.Close()
	}()
	c.Conn.SetReadLimit(maxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error { c.Conn.SetReadDeadline(time.Now().Add(pongWait)); return nil })

	for {
		_, raw, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.Hub.logger.Warn("websocket closed unexpectedly", slog.String("room", c.Room), slog.Any("error", err))
			}
			return
		}

		var msg InboundMessage
		if err := json.Unmarshal(raw, &msg); err != nil || msg.Type == "" {
			c.Hub.SendToClient(c.ID, WebSocketMessage{Type: MessageError, Payload: "malformed message"})
			continue
		}
		if c.Hub.handler != nil {
			c.Hub.handler.HandleMessage(ctx, c.ID, msg)
		}
	}
}

func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()
	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
