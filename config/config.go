package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	StoreDriverPostgres = "postgres"
	StoreDriverMongo    = "mongo"
	StoreDriverMemory   = "memory"
)

// Config хранит все конфигурационные параметры приложения.
type Config struct {
	ServerPort  int
	StoreDriver string

	DatabaseURL     string
	MongoURI        string
	MongoDatabase   string
	JWTSecretKey    string
	OperatorKey     string
	AllowedOrigins  []string
	DefaultStake    int64
	MaxLobbyPlayers int
	LobbyCountdown  time.Duration

	BotControllerAddress string
	SweepInterval        time.Duration
	RateLimitRPS         float64
	RateLimitBurst       int

	R2AccountID       string
	R2AccessKeyID     string
	R2SecretAccessKey string
	R2BucketName      string
	R2PublicBaseURL   string
}

// Load загружает конфигурацию из переменных окружения.
// Опционально подгружает .env файл (полезно для локальной разработки).
func Load() (*Config, error) {
	_ = godotenv.Load()
	return FromEnv(os.Getenv)
}

// FromEnv builds the config from an arbitrary lookup; Load uses os.Getenv.
func FromEnv(getenv func(string) string) (*Config, error) {
	var err error
	cfg := &Config{
		StoreDriver:          strings.ToLower(strings.TrimSpace(withDefault(getenv("STORE_DRIVER"), StoreDriverPostgres))),
		DatabaseURL:          getenv("DATABASE_URL"),
		MongoURI:             getenv("MONGODB_URI"),
		MongoDatabase:        withDefault(getenv("MONGODB_DATABASE"), "trust_tournament"),
		JWTSecretKey:         getenv("JWT_SECRET_KEY"),
		OperatorKey:          getenv("OPERATOR_KEY"),
		AllowedOrigins:       splitList(getenv("ALLOWED_ORIGINS")),
		BotControllerAddress: getenv("BOT_CONTROLLER_ADDRESS"),
		R2AccountID:          getenv("R2_ACCOUNT_ID"),
		R2AccessKeyID:        getenv("R2_ACCESS_KEY_ID"),
		R2SecretAccessKey:    getenv("R2_SECRET_ACCESS_KEY"),
		R2BucketName:         getenv("R2_BUCKET_NAME"),
		R2PublicBaseURL:      getenv("R2_PUBLIC_BASE_URL"),
	}

	switch cfg.StoreDriver {
	case StoreDriverPostgres:
		if cfg.DatabaseURL == "" {
			return nil, fmt.Errorf("DATABASE_URL environment variable is not set")
		}
	case StoreDriverMongo:
		if cfg.MongoURI == "" {
			return nil, fmt.Errorf("MONGODB_URI environment variable is not set")
		}
	case StoreDriverMemory:
	default:
		return nil, fmt.Errorf("invalid STORE_DRIVER %q: expected postgres, mongo or memory", cfg.StoreDriver)
	}

	if cfg.JWTSecretKey == "" {
		return nil, fmt.Errorf("JWT_SECRET_KEY environment variable is not set")
	}

	if cfg.ServerPort, err = intVar(getenv, "SERVER_PORT", 8080); err != nil {
		return nil, err
	}
	if cfg.ServerPort <= 0 || cfg.ServerPort > 65535 {
		return nil, fmt.Errorf("SERVER_PORT must be between 1 and 65535, got %d", cfg.ServerPort)
	}

	stake, err := intVar(getenv, "DEFAULT_MATCH_STAKE", 100)
	if err != nil {
		return nil, err
	}
	if stake <= 0 {
		return nil, fmt.Errorf("DEFAULT_MATCH_STAKE must be positive, got %d", stake)
	}
	cfg.DefaultStake = int64(stake)

	if cfg.MaxLobbyPlayers, err = intVar(getenv, "MAX_LOBBY_PLAYERS", 50); err != nil {
		return nil, err
	}
	if cfg.MaxLobbyPlayers < 2 {
		return nil, fmt.Errorf("MAX_LOBBY_PLAYERS must be at least 2, got %d", cfg.MaxLobbyPlayers)
	}

	if cfg.LobbyCountdown, err = durationVar(getenv, "LOBBY_COUNTDOWN", 30*time.Second); err != nil {
		return nil, err
	}
	if cfg.SweepInterval, err = durationVar(getenv, "SWEEP_INTERVAL", 15*time.Second); err != nil {
		return nil, err
	}

	rps := withDefault(getenv("RATE_LIMIT_RPS"), "20")
	if cfg.RateLimitRPS, err = strconv.ParseFloat(rps, 64); err != nil || cfg.RateLimitRPS <= 0 {
		return nil, fmt.Errorf("invalid RATE_LIMIT_RPS %q", rps)
	}
	if cfg.RateLimitBurst, err = intVar(getenv, "RATE_LIMIT_BURST", 40); err != nil {
		return nil, err
	}
	if cfg.RateLimitBurst < 1 {
		return nil, fmt.Errorf("RATE_LIMIT_BURST must be positive, got %d", cfg.RateLimitBurst)
	}

	return cfg, nil
}

func withDefault(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}

func intVar(getenv func(string) string, name string, def int) (int, error) {
	raw := getenv(name)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s environment variable: %w", name, err)
	}
	return v, nil
}

func durationVar(getenv func(string) string, name string, def time.Duration) (time.Duration, error) {
	raw := getenv(name)
	if raw == "" {
		return def, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s environment variable: %w", name, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("%s must be positive, got %s", name, d)
	}
	return d, nil
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
