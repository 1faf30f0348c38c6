package repositories

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Dosada05/trust-tournament/models"
)

var ErrPlayerNotFound = errors.New("player not found")

type PlayerRepository interface {
	GetByAddress(ctx context.Context, address string) (*models.Player, error)
	Upsert(ctx context.Context, p *models.Player) error
	List(ctx context.Context, sortBy models.PlayerSort, limit, offset int) ([]*models.Player, error)
}

var playerSortColumns = map[models.PlayerSort]string{
	models.SortByReputation: "reputation",
	models.SortByEarnings:   "total_earnings",
	models.SortByWins:       "matches_won",
}

type postgresPlayerRepository struct {
	db *sql.DB
}

func NewPostgresPlayerRepository(db *sql.DB) PlayerRepository {
	return &postgresPlayerRepository{db: db}
}

func (r *postgresPlayerRepository) GetByAddress(ctx context.Context, address string) (*models.Player, error) {
	var doc []byte
	err := r.db.QueryRowContext(ctx, `SELECT doc FROM players WHERE address = $1`, models.NormalizeAddress(address)).Scan(&doc)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrPlayerNotFound
		}
		return nil, fmt.Errorf("failed to get player %s: %w", address, err)
	}
	return decodePlayer(doc)
}

func (r *postgresPlayerRepository) Upsert(ctx context.Context, p *models.Player) error {
	p.Address = models.NormalizeAddress(p.Address)
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	doc, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("failed to encode player %s: %w", p.Address, err)
	}

	query := `
		INSERT INTO players (address, reputation, total_earnings, matches_won, doc, updated_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
		ON CONFLICT (address) DO UPDATE
		SET reputation = EXCLUDED.reputation,
		    total_earnings = EXCLUDED.total_earnings,
		    matches_won = EXCLUDED.matches_won,
		    doc = EXCLUDED.doc,
		    updated_at = NOW()`

	if _, err := r.db.ExecContext(ctx, query, p.Address, p.Reputation, p.TotalEarnings, p.MatchesWon, doc); err != nil {
		return fmt.Errorf("failed to upsert player %s: %w", p.Address, err)
	}
	return nil
}

func (r *postgresPlayerRepository) List(ctx context.Context, sortBy models.PlayerSort, limit, offset int) ([]*models.Player, error) {
	column, ok := playerSortColumns[sortBy]
	if !ok {
		column = playerSortColumns[models.SortByReputation]
	}
	if offset < 0 {
		offset = 0
	}

	// column приходит только из белого списка
	query := fmt.Sprintf(`SELECT doc FROM players ORDER BY %s DESC, address ASC LIMIT $1 OFFSET $2`, column)
	rows, err := r.db.QueryContext(ctx, query, normalizeLimit(limit, 50, 200), offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list players: %w", err)
	}
	defer rows.Close()
	return scanPlayers(rows)
}

func scanPlayers(rows *sql.Rows) ([]*models.Player, error) {
	var players []*models.Player
	for rows.Next() {
		var doc []byte
		if err := rows.Scan(&doc); err != nil {
			return nil, fmt.Errorf("failed to scan player row: %w", err)
		}
		p, err := decodePlayer(doc)
		if err != nil {
			return nil, err
		}
		players = append(players, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating player rows: %w", err)
	}
	return players, nil
}

func decodePlayer(doc []byte) (*models.Player, error) {
	var p models.Player
	if err := json.Unmarshal(doc, &p); err != nil {
		return nil, fmt.Errorf("failed to decode player document: %w", err)
	}
	return &p, nil
}
