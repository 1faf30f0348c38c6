package routes

import (
	"net/http"
	"time"

	"github.com/Dosada05/trust-tournament/handlers"
	"github.com/Dosada05/trust-tournament/middleware"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

type Handlers struct {
	Health     *handlers.HealthHandler
	Auth       *handlers.AuthHandler
	Tournament *handlers.TournamentHandler
	Match      *handlers.MatchHandler
	Player     *handlers.PlayerHandler
	Lobby      *handlers.LobbyHandler
	WebSocket  *handlers.WebSocketHandler
}

type Options struct {
	JWTSecret      []byte
	AllowedOrigins []string
	RateLimiter    *middleware.RateLimiter
}

func SetupRoutes(router chi.Router, h Handlers, opts Options) {
	origins := opts.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	router.Use(chiMiddleware.RequestID)
	router.Use(chiMiddleware.RealIP)
	router.Use(chiMiddleware.Logger)
	router.Use(chiMiddleware.Recoverer)
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	router.Get("/health", h.Health.Health)

	// websocket не проходит через таймаут и лимитер
	router.Route("/ws", func(r chi.Router) {
		r.Get("/lobby", h.WebSocket.ServeLobby)
		r.Get("/tournaments/{tournamentID}", h.WebSocket.ServeTournament)
	})

	router.Group(func(r chi.Router) {
		r.Use(chiMiddleware.Timeout(30 * time.Second))
		if opts.RateLimiter != nil {
			r.Use(opts.RateLimiter.Middleware)
		}

		operator := func(r chi.Router) chi.Router {
			return r.With(middleware.Authenticate(opts.JWTSecret), middleware.RequireOperator)
		}

		r.Post("/auth/operator-token", h.Auth.OperatorToken)

		r.Route("/tournaments", func(r chi.Router) {
			r.Get("/current", h.Tournament.GetCurrentTournament)
			r.Get("/{tournamentID}", h.Tournament.GetTournament)
			operator(r).Post("/{tournamentID}/advance", h.Tournament.Advance)
		})

		r.Route("/matches", func(r chi.Router) {
			r.Get("/{matchID}", h.Match.GetMatch)
			r.Post("/{matchID}/choice", h.Match.SubmitChoice)
			r.Post("/{matchID}/resolve", h.Match.Resolve)
		})

		r.Route("/players", func(r chi.Router) {
			r.Get("/leaderboard", h.Player.Leaderboard)
			r.Get("/{address}", h.Player.GetPlayer)
			r.Get("/{address}/history", h.Match.History)
		})

		r.Route("/lobby", func(r chi.Router) {
			r.Get("/", h.Lobby.GetLobby)
			operator(r).Post("/start", h.Lobby.StartNow)
		})
	})

	router.NotFound(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte("{\"error\": \"the requested resource could not be found\"}\n"))
	})
}
