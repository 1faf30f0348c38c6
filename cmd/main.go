package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Dosada05/trust-tournament/bots"
	"github.com/Dosada05/trust-tournament/brackets"
	"github.com/Dosada05/trust-tournament/config"
	"github.com/Dosada05/trust-tournament/db"
	"github.com/Dosada05/trust-tournament/handlers"
	"github.com/Dosada05/trust-tournament/middleware"
	"github.com/Dosada05/trust-tournament/models"
	"github.com/Dosada05/trust-tournament/repositories"
	api "github.com/Dosada05/trust-tournament/routes"
	"github.com/Dosada05/trust-tournament/services"
	"github.com/Dosada05/trust-tournament/storage"
	"github.com/Dosada05/trust-tournament/workers"
	"github.com/go-chi/chi/v5"
)

type stores struct {
	tournaments repositories.TournamentRepository
	matches     repositories.MatchRepository
	players     repositories.PlayerRepository
	pinger      handlers.Pinger
	close       func()
}

func main() {
	// Настройка логгера
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

	if err := run(logger); err != nil {
		logger.Error("application failed", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("application exited")
}

func run(logger *slog.Logger) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	logger.Info("configuration loaded",
		slog.Int("port", cfg.ServerPort),
		slog.String("store", cfg.StoreDriver))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, err := openStores(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer st.close()

	var archiver services.Archiver
	r2 := storage.CloudflareR2UploaderConfig{
		AccountID:       cfg.R2AccountID,
		AccessKeyID:     cfg.R2AccessKeyID,
		SecretAccessKey: cfg.R2SecretAccessKey,
		BucketName:      cfg.R2BucketName,
		PublicBaseURL:   cfg.R2PublicBaseURL,
	}
	if r2.Enabled() {
		uploader, err := storage.NewCloudflareR2Uploader(ctx, r2)
		if err != nil {
			return fmt.Errorf("failed to initialize Cloudflare R2 uploader: %w", err)
		}
		archiver = storage.NewTournamentArchiver(uploader, logger)
		logger.Info("tournament archive enabled", slog.String("bucket", cfg.R2BucketName))
	} else {
		logger.Info("tournament archive disabled: R2 credentials not set")
	}

	engine := bots.NewEngine(bots.Options{ControllerAddress: cfg.BotControllerAddress, Logger: logger})
	wsHub := brackets.NewHub(logger)

	tournamentService := services.NewTournamentService(
		st.tournaments,
		st.matches,
		brackets.NewSingleEliminationGenerator(),
		engine,
		wsHub,
		archiver,
		cfg.DefaultStake,
		logger,
	)
	playerService := services.NewPlayerService(st.players, logger)
	matchService := services.NewMatchService(st.matches, tournamentService, playerService, engine, logger)
	botFactory := func() (models.Seed, error) {
		return engine.CreateBot(""), nil
	}
	lobbyService := services.NewLobbyService(
		wsHub,
		tournamentService,
		matchService,
		playerService,
		botFactory,
		services.LobbyConfig{MaxPlayers: cfg.MaxLobbyPlayers, Countdown: cfg.LobbyCountdown},
		logger,
	)
	defer lobbyService.Stop()
	logger.Info("services initialized")

	// Hub обрабатывает входящие сообщения лобби
	wsHub.SetHandler(lobbyService)
	go wsHub.Run(ctx)
	logger.Info("WebSocket Hub started")

	limiter := middleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)
	sweeper := workers.NewSweeper(tournamentService, matchService, workers.SweeperConfig{
		Interval:     cfg.SweepInterval,
		Housekeeping: func() { limiter.Cleanup() },
	}, logger)
	if err := sweeper.Start(ctx); err != nil {
		return err
	}
	defer func() {
		if err := sweeper.Stop(); err != nil {
			logger.Error("failed to stop sweeper", slog.Any("error", err))
		}
	}()

	router := chi.NewRouter()
	api.SetupRoutes(router, api.Handlers{
		Health:     handlers.NewHealthHandler(st.pinger, logger),
		Auth:       handlers.NewAuthHandler(cfg.JWTSecretKey, cfg.OperatorKey, logger),
		Tournament: handlers.NewTournamentHandler(tournamentService, matchService, logger),
		Match:      handlers.NewMatchHandler(matchService, logger),
		Player:     handlers.NewPlayerHandler(playerService, logger),
		Lobby:      handlers.NewLobbyHandler(lobbyService, logger),
		WebSocket:  handlers.NewWebSocketHandler(ctx, wsHub, tournamentService, cfg.AllowedOrigins, logger),
	}, api.Options{
		JWTSecret:      []byte(cfg.JWTSecretKey),
		AllowedOrigins: cfg.AllowedOrigins,
		RateLimiter:    limiter,
	})
	logger.Info("routes configured")

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.ServerPort),
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 35 * time.Second,
		IdleTimeout:  120 * time.Second,
		ErrorLog:     slog.NewLogLogger(logger.Handler(), slog.LevelError),
	}

	serverErrors := make(chan error, 1)
	go func() {
		logger.Info("starting server", slog.String("address", server.Addr))
		serverErrors <- server.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		logger.Info("server stopped gracefully")
	case <-ctx.Done():
		logger.Info("shutdown signal received")
		shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancelShutdown()

		if err := server.Shutdown(shutdownCtx); err != nil {
			if closeErr := server.Close(); closeErr != nil {
				logger.Error("failed to force close server", slog.Any("error", closeErr))
			}
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		logger.Info("server shutdown complete")
	}
	return nil
}

func openStores(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*stores, error) {
	switch cfg.StoreDriver {
	case config.StoreDriverPostgres:
		dbConn, err := db.Connect(cfg.DatabaseURL, 5*time.Second)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		if err := db.EnsureSchema(ctx, dbConn); err != nil {
			dbConn.Close()
			return nil, err
		}
		logger.Info("database connection established")
		return &stores{
			tournaments: repositories.NewPostgresTournamentRepository(dbConn),
			matches:     repositories.NewPostgresMatchRepository(dbConn),
			players:     repositories.NewPostgresPlayerRepository(dbConn),
			pinger:      dbConn,
			close: func() {
				if err := dbConn.Close(); err != nil {
					logger.Error("failed to close database connection", slog.Any("error", err))
				}
			},
		}, nil

	case config.StoreDriverMongo:
		mongoStore, err := db.ConnectMongo(cfg.MongoURI, cfg.MongoDatabase, 10*time.Second)
		if err != nil {
			return nil, err
		}
		if err := repositories.EnsureMongoIndexes(ctx, mongoStore.Database); err != nil {
			_ = mongoStore.Close(context.Background())
			return nil, fmt.Errorf("failed to create mongo indexes: %w", err)
		}
		logger.Info("mongo connection established", slog.String("database", cfg.MongoDatabase))
		return &stores{
			tournaments: repositories.NewMongoTournamentRepository(mongoStore.Database),
			matches:     repositories.NewMongoMatchRepository(mongoStore.Database),
			players:     repositories.NewMongoPlayerRepository(mongoStore.Database),
			pinger:      mongoStore,
			close: func() {
				closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := mongoStore.Close(closeCtx); err != nil {
					logger.Error("failed to close mongo connection", slog.Any("error", err))
				}
			},
		}, nil

	default:
		logger.Warn("using in-memory store: state is lost on restart")
		return &stores{
			tournaments: repositories.NewMemoryTournamentRepository(),
			matches:     repositories.NewMemoryMatchRepository(),
			players:     repositories.NewMemoryPlayerRepository(),
			close:       func() {},
		}, nil
	}
}
