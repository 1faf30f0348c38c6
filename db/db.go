package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq" // Import postgres driver
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

func Connect(dsn string, timeout time.Duration) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to create database handle: %w", err)
	}

	// Configure connection pool
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(5 * time.Minute)

	// Verify the connection with a timeout
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err = db.PingContext(ctx); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			return nil, fmt.Errorf("failed to ping database within %v: %w (close: %v)", timeout, err, closeErr)
		}
		return nil, fmt.Errorf("failed to ping database within %v: %w", timeout, err)
	}

	return db, nil
}

// Агрегаты хранятся как JSONB; отдельные колонки нужны только для фильтров и сортировки.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS tournaments (
		id          TEXT PRIMARY KEY,
		status      TEXT        NOT NULL,
		version     BIGINT      NOT NULL,
		doc         JSONB       NOT NULL,
		created_at  TIMESTAMPTZ NOT NULL,
		updated_at  TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS tournaments_status_created_idx ON tournaments (status, created_at DESC)`,
	`CREATE TABLE IF NOT EXISTS match_records (
		id             TEXT PRIMARY KEY,
		tournament_id  TEXT        NOT NULL,
		player1        TEXT        NOT NULL,
		player2        TEXT        NOT NULL,
		status         TEXT        NOT NULL,
		doc            JSONB       NOT NULL,
		created_at     TIMESTAMPTZ NOT NULL,
		updated_at     TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS match_records_player1_idx ON match_records (player1, created_at DESC)`,
	`CREATE INDEX IF NOT EXISTS match_records_player2_idx ON match_records (player2, created_at DESC)`,
	`CREATE INDEX IF NOT EXISTS match_records_tournament_idx ON match_records (tournament_id)`,
	`CREATE TABLE IF NOT EXISTS players (
		address         TEXT PRIMARY KEY,
		reputation      INTEGER     NOT NULL,
		total_earnings  BIGINT      NOT NULL DEFAULT 0,
		matches_won     INTEGER     NOT NULL DEFAULT 0,
		doc             JSONB       NOT NULL,
		updated_at      TIMESTAMPTZ NOT NULL
	)`,
}

// EnsureSchema creates the tables when they are missing. Idempotent.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin schema transaction: %w", err)
	}
	defer tx.Rollback()

	for _, stmt := range schema {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply schema statement: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit schema: %w", err)
	}
	return nil
}

// MongoStore adapts a mongo client to the health check Pinger.
type MongoStore struct {
	Client   *mongo.Client
	Database *mongo.Database
}

func (s *MongoStore) PingContext(ctx context.Context) error {
	return s.Client.Ping(ctx, readpref.Primary())
}

func (s *MongoStore) Close(ctx context.Context) error {
	return s.Client.Disconnect(ctx)
}

func ConnectMongo(uri, database string, timeout time.Duration) (*MongoStore, error) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongo: %w", err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping mongo within %v: %w", timeout, err)
	}
	return &MongoStore{Client: client, Database: client.Database(database)}, nil
}
