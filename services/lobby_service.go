package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/Dosada05/trust-tournament/brackets"
	"github.com/Dosada05/trust-tournament/matchmaking"
	"github.com/Dosada05/trust-tournament/models"
)

const (
	DefaultMaxLobbyPlayers = 50
	DefaultLobbyCountdown  = 30 * time.Second

	MessageJoinLobby  = "JOIN_LOBBY"
	MessageSetReady   = "SET_READY"
	MessageLeaveLobby = "LEAVE_LOBBY"
)

// LobbyTransport is the session registry and fan-out owned by the websocket layer.
type LobbyTransport interface {
	BindSession(clientID, address string)
	SessionAddress(clientID string) (string, bool)
	ReleaseSession(clientID string)
	BroadcastToRoom(roomID string, message interface{})
	SendToClient(clientID string, message interface{})
}

type LobbyState struct {
	Participants    []matchmaking.Participant `json:"participants"`
	HumanCount      int                       `json:"human_count"`
	MaxPlayers      int                       `json:"max_players"`
	CountdownEndsAt *time.Time                `json:"countdown_ends_at,omitempty"`
}

type TournamentStartedPayload struct {
	TournamentID string `json:"tournament_id"`
	Participants int    `json:"participants"`
}

type joinPayload struct {
	Address  string `json:"address"`
	Username string `json:"username"`
}

type readyPayload struct {
	Ready bool `json:"ready"`
}

type LobbyService interface {
	brackets.MessageHandler

	Join(ctx context.Context, clientID string, seed models.Seed) (*LobbyState, error)
	SetReady(ctx context.Context, clientID string, ready bool) (*LobbyState, error)
	Leave(ctx context.Context, clientID string) (*LobbyState, error)
	State() *LobbyState
	// StartNow skips the countdown.
	StartNow(ctx context.Context) (*models.Tournament, error)
	Stop()
}

type LobbyConfig struct {
	MaxPlayers int
	Countdown  time.Duration
}

type lobbyService struct {
	queue       *matchmaking.Queue
	transport   LobbyTransport
	tournaments TournamentService
	matches     MatchService
	players     PlayerService
	botFactory  matchmaking.BotFactory
	cfg         LobbyConfig
	logger      *slog.Logger

	mu       sync.Mutex
	timer    *time.Timer
	timerGen uint64
	deadline time.Time
	startMu  sync.Mutex
	stopped  bool
}

func NewLobbyService(
	transport LobbyTransport,
	tournaments TournamentService,
	matches MatchService,
	players PlayerService,
	botFactory matchmaking.BotFactory,
	cfg LobbyConfig,
	logger *slog.Logger,
) LobbyService {
	if cfg.MaxPlayers < 2 {
		cfg.MaxPlayers = DefaultMaxLobbyPlayers
	}
	if cfg.Countdown <= 0 {
		cfg.Countdown = DefaultLobbyCountdown
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &lobbyService{
		queue:       matchmaking.NewQueue(),
		transport:   transport,
		tournaments: tournaments,
		matches:     matches,
		players:     players,
		botFactory:  botFactory,
		cfg:         cfg,
		logger:      logger,
	}
}

func (s *lobbyService) Join(ctx context.Context, clientID string, seed models.Seed) (*LobbyState, error) {
	seed.Address = models.NormalizeAddress(seed.Address)
	if seed.Address == "" {
		return nil, fmt.Errorf("%w: address is required", ErrValidationFailed)
	}
	if s.queue.HumanCount() >= s.cfg.MaxPlayers {
		if _, ok := s.queue.Participant(seed.Address); !ok {
			return nil, fmt.Errorf("%w: lobby is full", ErrValidationFailed)
		}
	}

	if s.players != nil {
		p, err := s.players.GetOrCreate(ctx, seed.Address, seed.DisplayName)
		if err != nil {
			return nil, err
		}
		seed.Reputation = p.Reputation
		if seed.DisplayName == "" {
			seed.DisplayName = p.Username
		}
	}
	if seed.Reputation == 0 {
		seed.Reputation = models.DefaultReputation
	}

	if err := s.queue.AddParticipant(seed, false); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidationFailed, err)
	}
	s.transport.BindSession(clientID, seed.Address)

	s.logger.Info("player joined lobby",
		slog.String("address", seed.Address),
		slog.Int("humans", s.queue.HumanCount()))
	return s.changed(), nil
}

func (s *lobbyService) SetReady(ctx context.Context, clientID string, ready bool) (*LobbyState, error) {
	address, ok := s.transport.SessionAddress(clientID)
	if !ok {
		return nil, ErrLobbyNotJoined
	}
	if !s.queue.SetReady(address, ready) {
		return nil, fmt.Errorf("%w: %s", ErrLobbyNotJoined, address)
	}
	return s.changed(), nil
}

func (s *lobbyService) Leave(ctx context.Context, clientID string) (*LobbyState, error) {
	address, ok := s.transport.SessionAddress(clientID)
	if !ok {
		return nil, ErrLobbyNotJoined
	}
	s.transport.ReleaseSession(clientID)
	s.queue.RemoveParticipant(address)
	s.logger.Info("player left lobby", slog.String("address", address))
	return s.changed(), nil
}

func (s *lobbyService) State() *LobbyState {
	s.mu.Lock()
	deadline := s.deadline
	s.mu.Unlock()

	state := &LobbyState{
		Participants: s.queue.Participants(),
		HumanCount:   s.queue.HumanCount(),
		MaxPlayers:   s.cfg.MaxPlayers,
	}
	if !deadline.IsZero() {
		state.CountdownEndsAt = &deadline
	}
	return state
}

// HandleMessage dispatches lobby messages coming from a websocket client.
func (s *lobbyService) HandleMessage(ctx context.Context, clientID string, msg brackets.InboundMessage) {
	var err error
	switch msg.Type {
	case MessageJoinLobby:
		var p joinPayload
		if err = json.Unmarshal(msg.Payload, &p); err != nil {
			err = fmt.Errorf("%w: malformed join payload", ErrValidationFailed)
			break
		}
		_, err = s.Join(ctx, clientID, models.Seed{Address: p.Address, DisplayName: p.Username})
	case MessageSetReady:
		var p readyPayload
		if err = json.Unmarshal(msg.Payload, &p); err != nil {
			err = fmt.Errorf("%w: malformed ready payload", ErrValidationFailed)
			break
		}
		_, err = s.SetReady(ctx, clientID, p.Ready)
	case MessageLeaveLobby:
		_, err = s.Leave(ctx, clientID)
	default:
		err = fmt.Errorf("%w: unknown message type %q", ErrValidationFailed, msg.Type)
	}
	if err != nil {
		s.transport.SendToClient(clientID, brackets.WebSocketMessage{Type: brackets.MessageError, Payload: err.Error()})
	}
}

// HandleDisconnect runs after the transport dropped the session.
func (s *lobbyService) HandleDisconnect(ctx context.Context, clientID, address string) {
	if s.queue.RemoveParticipant(address) {
		s.logger.Info("player disconnected from lobby", slog.String("address", address))
		s.changed()
	}
}

// changed re-evaluates the countdown and broadcasts the lobby state.
func (s *lobbyService) changed() *LobbyState {
	s.mu.Lock()
	armed := s.timer != nil
	shouldArm := !s.stopped && s.queue.HumanCount() > 0 && s.queue.AllHumansReady()
	switch {
	case shouldArm && !armed:
		s.deadline = time.Now().Add(s.cfg.Countdown).UTC()
		s.timerGen++
		gen := s.timerGen
		s.timer = time.AfterFunc(s.cfg.Countdown, func() { s.onCountdown(gen) })
		s.logger.Info("lobby countdown started", slog.Duration("countdown", s.cfg.Countdown))
	case !shouldArm && armed:
		s.disarmLocked()
		s.logger.Info("lobby countdown cancelled")
	}
	s.mu.Unlock()

	state := s.State()
	s.transport.BroadcastToRoom(brackets.LobbyRoom, brackets.WebSocketMessage{
		Type:    brackets.MessageLobbyState,
		Payload: state,
		RoomID:  brackets.LobbyRoom,
	})
	return state
}

func (s *lobbyService) disarmLocked() {
	if s.timer != nil {
		s.timer.Stop()
	}
	s.timer = nil
	s.deadline = time.Time{}
}

// onCountdown runs on the timer goroutine. A timer that already fired can't
// be stopped, so a disarmed or re-armed countdown is detected by generation.
func (s *lobbyService) onCountdown(gen uint64) {
	s.mu.Lock()
	if s.timer == nil || gen != s.timerGen {
		s.mu.Unlock()
		return
	}
	s.timer = nil
	s.deadline = time.Time{}
	ready := !s.stopped && s.queue.HumanCount() > 0 && s.queue.AllHumansReady()
	s.mu.Unlock()
	if !ready {
		s.logger.Info("lobby countdown expired without ready players")
		return
	}

	if _, err := s.start(context.Background()); err != nil {
		s.logger.Error("failed to start tournament from lobby", slog.Any("error", err))
	}
}

func (s *lobbyService) StartNow(ctx context.Context) (*models.Tournament, error) {
	s.mu.Lock()
	s.disarmLocked()
	s.mu.Unlock()
	return s.start(ctx)
}

// start fills the lobby with bots, builds the bracket and lets bot-only
// matches play out. The lobby is cleared only once the tournament exists.
func (s *lobbyService) start(ctx context.Context) (*models.Tournament, error) {
	s.startMu.Lock()
	defer s.startMu.Unlock()

	if s.queue.HumanCount() == 0 {
		return nil, ErrLobbyEmpty
	}
	if s.botFactory != nil {
		added, err := s.queue.FillWithBots(s.cfg.MaxPlayers, s.botFactory)
		if err != nil {
			if !errors.Is(err, matchmaking.ErrBotFactoryStalled) || s.queue.Count() < 2 {
				return nil, err
			}
			s.logger.Warn("lobby not fully filled with bots", slog.Int("count", s.queue.Count()), slog.Any("error", err))
		}
		s.logger.Info("lobby filled with bots", slog.Int("added", added))
	}

	roster := s.queue.Roster()
	t, err := s.tournaments.CreateFromRoster(ctx, roster)
	if err != nil {
		return nil, err
	}
	s.queue.Clear()

	if t, err = s.tournaments.MaterializeRoundMatches(ctx, t.ID, 1); err != nil {
		return nil, err
	}
	s.transport.BroadcastToRoom(brackets.LobbyRoom, brackets.WebSocketMessage{
		Type:    brackets.MessageTournamentStarted,
		Payload: TournamentStartedPayload{TournamentID: t.ID, Participants: len(roster)},
		RoomID:  brackets.LobbyRoom,
	})

	if t, err = s.tournaments.AutoPlayBotOnlyRounds(ctx, t.ID, 1); err != nil {
		return nil, err
	}
	if t.Status == models.TournamentStatusInProgress && s.matches != nil {
		if _, err := s.matches.ResolveBotMatches(ctx, t.ID, t.CurrentRoundNumber); err != nil {
			return nil, err
		}
		if t, err = s.tournaments.GetTournament(ctx, t.ID); err != nil {
			return nil, err
		}
	}

	s.logger.Info("tournament started from lobby",
		slog.String("tournament_id", t.ID),
		slog.Int("participants", len(roster)))
	s.changed()
	return t, nil
}

// Stop cancels a running countdown. The lobby ignores later timers.
func (s *lobbyService) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopped = true
	s.disarmLocked()
}
