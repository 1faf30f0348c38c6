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

var (
	ErrMatchNotFound = errors.New("match not found")
	ErrMatchConflict = errors.New("match already exists")
)

type MatchRepository interface {
	Create(ctx context.Context, m *models.MatchRecord) error
	GetByID(ctx context.Context, id string) (*models.MatchRecord, error)
	Save(ctx context.Context, m *models.MatchRecord) error
	// ListByParticipant returns newest first.
	ListByParticipant(ctx context.Context, address string, limit int) ([]*models.MatchRecord, error)
}

type postgresMatchRepository struct {
	db *sql.DB
}

func NewPostgresMatchRepository(db *sql.DB) MatchRepository {
	return &postgresMatchRepository{db: db}
}

func (r *postgresMatchRepository) Create(ctx context.Context, m *models.MatchRecord) error {
	now := time.Now().UTC()
	if m.CreatedAt.IsZero() {
		m.CreatedAt = now
	}
	m.UpdatedAt = now

	doc, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("failed to encode match %s: %w", m.ID, err)
	}

	query := `
		INSERT INTO match_records (id, tournament_id, player1, player2, status, doc, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err = r.db.ExecContext(ctx, query,
		m.ID, m.TournamentID,
		models.NormalizeAddress(m.Player1.Address), models.NormalizeAddress(m.Player2.Address),
		m.Status, doc, m.CreatedAt, m.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrMatchConflict
		}
		return fmt.Errorf("failed to insert match %s: %w", m.ID, err)
	}
	return nil
}

func (r *postgresMatchRepository) GetByID(ctx context.Context, id string) (*models.MatchRecord, error) {
	var doc []byte
	err := r.db.QueryRowContext(ctx, `SELECT doc FROM match_records WHERE id = $1`, id).Scan(&doc)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrMatchNotFound
		}
		return nil, fmt.Errorf("failed to get match %s: %w", id, err)
	}
	return decodeMatch(doc)
}

func (r *postgresMatchRepository) Save(ctx context.Context, m *models.MatchRecord) error {
	m.UpdatedAt = time.Now().UTC()
	doc, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("failed to encode match %s: %w", m.ID, err)
	}

	query := `UPDATE match_records SET status = $1, doc = $2, updated_at = $3 WHERE id = $4`
	result, err := r.db.ExecContext(ctx, query, m.Status, doc, m.UpdatedAt, m.ID)
	if err != nil {
		return fmt.Errorf("failed to save match %s: %w", m.ID, err)
	}
	return checkAffectedRows(result, ErrMatchNotFound)
}

func (r *postgresMatchRepository) ListByParticipant(ctx context.Context, address string, limit int) ([]*models.MatchRecord, error) {
	query := `
		SELECT doc FROM match_records
		WHERE player1 = $1 OR player2 = $1
		ORDER BY created_at DESC
		LIMIT $2`

	rows, err := r.db.QueryContext(ctx, query, models.NormalizeAddress(address), normalizeLimit(limit, 20, 100))
	if err != nil {
		return nil, fmt.Errorf("failed to list matches for %s: %w", address, err)
	}
	defer rows.Close()

	var matches []*models.MatchRecord
	for rows.Next() {
		var doc []byte
		if err := rows.Scan(&doc); err != nil {
			return nil, fmt.Errorf("failed to scan match row: %w", err)
		}
		m, err := decodeMatch(doc)
		if err != nil {
			return nil, err
		}
		matches = append(matches, m)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating match rows: %w", err)
	}
	return matches, nil
}

func decodeMatch(doc []byte) (*models.MatchRecord, error) {
	var m models.MatchRecord
	if err := json.Unmarshal(doc, &m); err != nil {
		return nil, fmt.Errorf("failed to decode match document: %w", err)
	}
	return &m, nil
}
