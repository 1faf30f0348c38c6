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
	ErrTournamentNotFound = errors.New("tournament not found")
	ErrTournamentConflict = errors.New("tournament already exists")
	// ErrVersionConflict means the aggregate was written by someone else
	// since it was read.
	ErrVersionConflict = errors.New("tournament version conflict")
)

type TournamentRepository interface {
	Create(ctx context.Context, t *models.Tournament) error
	GetByID(ctx context.Context, id string) (*models.Tournament, error)
	// Save writes the whole aggregate if t.Version still matches the stored
	// version, then increments t.Version.
	Save(ctx context.Context, t *models.Tournament) error
	// ListByStatus returns newest first.
	ListByStatus(ctx context.Context, status models.TournamentStatus, limit int) ([]*models.Tournament, error)
}

type postgresTournamentRepository struct {
	db *sql.DB
}

func NewPostgresTournamentRepository(db *sql.DB) TournamentRepository {
	return &postgresTournamentRepository{db: db}
}

func (r *postgresTournamentRepository) Create(ctx context.Context, t *models.Tournament) error {
	now := time.Now().UTC()
	t.Version = 1
	t.CreatedAt = now
	t.UpdatedAt = now

	doc, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("failed to encode tournament %s: %w", t.ID, err)
	}

	query := `
		INSERT INTO tournaments (id, status, version, doc, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)`

	_, err = r.db.ExecContext(ctx, query, t.ID, t.Status, t.Version, doc, t.CreatedAt, t.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrTournamentConflict
		}
		return fmt.Errorf("failed to insert tournament %s: %w", t.ID, err)
	}
	return nil
}

func (r *postgresTournamentRepository) GetByID(ctx context.Context, id string) (*models.Tournament, error) {
	query := `SELECT doc, version FROM tournaments WHERE id = $1`

	var (
		doc     []byte
		version int64
	)
	err := r.db.QueryRowContext(ctx, query, id).Scan(&doc, &version)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTournamentNotFound
		}
		return nil, fmt.Errorf("failed to get tournament %s: %w", id, err)
	}
	return decodeTournament(doc, version)
}

func (r *postgresTournamentRepository) Save(ctx context.Context, t *models.Tournament) error {
	expected := t.Version
	t.Version = expected + 1
	t.UpdatedAt = time.Now().UTC()

	doc, err := json.Marshal(t)
	if err != nil {
		t.Version = expected
		return fmt.Errorf("failed to encode tournament %s: %w", t.ID, err)
	}

	query := `
		UPDATE tournaments
		SET doc = $1, status = $2, version = $3, updated_at = $4
		WHERE id = $5 AND version = $6`

	result, err := r.db.ExecContext(ctx, query, doc, t.Status, t.Version, t.UpdatedAt, t.ID, expected)
	if err != nil {
		t.Version = expected
		return fmt.Errorf("failed to save tournament %s: %w", t.ID, err)
	}
	if err := checkAffectedRows(result, ErrVersionConflict); err != nil {
		t.Version = expected
		if errors.Is(err, ErrVersionConflict) {
			return r.conflictOrMissing(ctx, t.ID)
		}
		return err
	}
	return nil
}

func (r *postgresTournamentRepository) conflictOrMissing(ctx context.Context, id string) error {
	var exists bool
	err := r.db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM tournaments WHERE id = $1)`, id).Scan(&exists)
	if err != nil {
		return fmt.Errorf("failed to check tournament %s: %w", id, err)
	}
	if !exists {
		return ErrTournamentNotFound
	}
	return ErrVersionConflict
}

func (r *postgresTournamentRepository) ListByStatus(ctx context.Context, status models.TournamentStatus, limit int) ([]*models.Tournament, error) {
	query := `
		SELECT doc, version FROM tournaments
		WHERE status = $1
		ORDER BY created_at DESC
		LIMIT $2`

	rows, err := r.db.QueryContext(ctx, query, status, normalizeLimit(limit, 20, 200))
	if err != nil {
		return nil, fmt.Errorf("failed to list tournaments: %w", err)
	}
	defer rows.Close()

	var tournaments []*models.Tournament
	for rows.Next() {
		var (
			doc     []byte
			version int64
		)
		if err := rows.Scan(&doc, &version); err != nil {
			return nil, fmt.Errorf("failed to scan tournament row: %w", err)
		}
		t, err := decodeTournament(doc, version)
		if err != nil {
			return nil, err
		}
		tournaments = append(tournaments, t)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating tournament rows: %w", err)
	}
	return tournaments, nil
}

func decodeTournament(doc []byte, version int64) (*models.Tournament, error) {
	var t models.Tournament
	if err := json.Unmarshal(doc, &t); err != nil {
		return nil, fmt.Errorf("failed to decode tournament document: %w", err)
	}
	// колонка version - источник истины
	t.Version = version
	if t.Metrics.ReputationBonuses == nil {
		t.Metrics.ReputationBonuses = make(map[string]int64)
	}
	return &t, nil
}
