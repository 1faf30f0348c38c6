package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Dosada05/trust-tournament/models"
	"github.com/Dosada05/trust-tournament/payoff"
	"github.com/Dosada05/trust-tournament/repositories"
)

const (
	defaultLeaderboardLimit = 20
	maxLeaderboardLimit     = 100
)

// PlayerStats is the public view of a player.
type PlayerStats struct {
	*models.Player
	WinRate float64 `json:"win_rate"`
}

type PlayerService interface {
	GetOrCreate(ctx context.Context, address, username string) (*models.Player, error)
	// RecordMatch books one resolved match for a human participant.
	RecordMatch(ctx context.Context, side models.MatchPlayer, choice payoff.Choice, won bool) error
	// CreditEarnings adds a tournament payout and reputation bonus.
	CreditEarnings(ctx context.Context, address string, amount int64, reputation int) error
	Leaderboard(ctx context.Context, sortBy string, limit, offset int) ([]PlayerStats, error)
	Stats(ctx context.Context, address string) (*PlayerStats, error)
}

type playerService struct {
	playerRepo repositories.PlayerRepository
	locks      *keyedLocker
	logger     *slog.Logger
}

func NewPlayerService(playerRepo repositories.PlayerRepository, logger *slog.Logger) PlayerService {
	if logger == nil {
		logger = slog.Default()
	}
	return &playerService{
		playerRepo: playerRepo,
		locks:      newKeyedLocker(),
		logger:     logger,
	}
}

func (s *playerService) GetOrCreate(ctx context.Context, address, username string) (*models.Player, error) {
	address = models.NormalizeAddress(address)
	if address == "" {
		return nil, fmt.Errorf("%w: address is required", ErrValidationFailed)
	}
	unlock := s.locks.Lock(address)
	defer unlock()

	p, created, err := s.loadOrNew(ctx, address, username)
	if err != nil {
		return nil, err
	}
	if created {
		if err := s.playerRepo.Upsert(ctx, p); err != nil {
			return nil, fmt.Errorf("failed to create player %s: %w", address, err)
		}
	}
	return p, nil
}

func (s *playerService) RecordMatch(ctx context.Context, side models.MatchPlayer, choice payoff.Choice, won bool) error {
	address := models.NormalizeAddress(side.Address)
	unlock := s.locks.Lock(address)
	defer unlock()

	p, _, err := s.loadOrNew(ctx, address, side.Username)
	if err != nil {
		return err
	}
	p.MatchesPlayed++
	if won {
		p.MatchesWon++
	}
	switch choice {
	case payoff.Cooperate:
		p.Cooperations++
	case payoff.Betray:
		p.Betrayals++
	default:
		p.Abstentions++
	}
	p.Reputation += side.ReputationChange
	p.TokensAvailable += side.TokensEarned
	p.LastActiveAt = time.Now().UTC()

	if err := s.playerRepo.Upsert(ctx, p); err != nil {
		return fmt.Errorf("failed to update player %s: %w", address, err)
	}
	return nil
}

func (s *playerService) CreditEarnings(ctx context.Context, address string, amount int64, reputation int) error {
	address = models.NormalizeAddress(address)
	unlock := s.locks.Lock(address)
	defer unlock()

	p, _, err := s.loadOrNew(ctx, address, "")
	if err != nil {
		return err
	}
	p.TotalEarnings += amount
	p.TokensAvailable += amount
	p.Reputation += reputation
	p.LastActiveAt = time.Now().UTC()

	if err := s.playerRepo.Upsert(ctx, p); err != nil {
		return fmt.Errorf("failed to credit player %s: %w", address, err)
	}
	s.logger.Info("player credited",
		slog.String("address", address),
		slog.Int64("amount", amount),
		slog.Int("reputation", reputation))
	return nil
}

func (s *playerService) Leaderboard(ctx context.Context, sortBy string, limit, offset int) ([]PlayerStats, error) {
	sort := models.PlayerSort(sortBy)
	if sortBy == "" {
		sort = models.SortByReputation
	}
	if !sort.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidSort, sortBy)
	}
	if limit <= 0 {
		limit = defaultLeaderboardLimit
	}
	if limit > maxLeaderboardLimit {
		limit = maxLeaderboardLimit
	}
	if offset < 0 {
		offset = 0
	}

	players, err := s.playerRepo.List(ctx, sort, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list players: %w", err)
	}
	out := make([]PlayerStats, 0, len(players))
	for _, p := range players {
		out = append(out, PlayerStats{Player: p, WinRate: p.WinRate()})
	}
	return out, nil
}

func (s *playerService) Stats(ctx context.Context, address string) (*PlayerStats, error) {
	p, err := s.playerRepo.GetByAddress(ctx, models.NormalizeAddress(address))
	if err != nil {
		if errors.Is(err, repositories.ErrPlayerNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrPlayerNotFound, address)
		}
		return nil, fmt.Errorf("failed to load player %s: %w", address, err)
	}
	return &PlayerStats{Player: p, WinRate: p.WinRate()}, nil
}

// loadOrNew returns the stored player or an unsaved one with the default
// reputation.
func (s *playerService) loadOrNew(ctx context.Context, address, username string) (*models.Player, bool, error) {
	p, err := s.playerRepo.GetByAddress(ctx, address)
	if err == nil {
		if p.Username == "" && username != "" {
			p.Username = username
		}
		return p, false, nil
	}
	if !errors.Is(err, repositories.ErrPlayerNotFound) {
		return nil, false, fmt.Errorf("failed to load player %s: %w", address, err)
	}
	now := time.Now().UTC()
	return &models.Player{
		Address:      address,
		Username:     username,
		Reputation:   models.DefaultReputation,
		CreatedAt:    now,
		LastActiveAt: now,
	}, true, nil
}
