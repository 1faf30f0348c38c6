package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Dosada05/trust-tournament/brackets"
	"github.com/Dosada05/trust-tournament/models"
	"github.com/Dosada05/trust-tournament/repositories"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

const DefaultMatchStake int64 = 100

// RecordResult is returned by RecordMatchResult.
type RecordResult struct {
	Tournament       *models.Tournament
	AdvancingPlayers []models.Seed
	RoundCompleted   bool
	RoundNumber      int
	// TournamentCompleted is set only by the call that finished the tournament.
	TournamentCompleted bool
}

type SeedResult struct {
	Tournament  *models.Tournament
	RoundNumber int
	Matches     []models.Match
}

// TournamentService is the bracket orchestrator. Every mutating call is
// serialized per tournament id and writes the whole aggregate back.
type TournamentService interface {
	CreateFromRoster(ctx context.Context, seeds []models.Seed) (*models.Tournament, error)
	MaterializeRoundMatches(ctx context.Context, tournamentID string, roundNumber int) (*models.Tournament, error)
	RecordMatchResult(ctx context.Context, tournamentID string, roundNumber int, matchID, winnerAddress string) (*RecordResult, error)
	RecordMatchResultForSide(ctx context.Context, tournamentID string, roundNumber int, matchID, side string) (*RecordResult, error)
	MarkMatchInProgress(ctx context.Context, tournamentID string, roundNumber int, matchID string) (*models.Tournament, error)
	SeedNextRound(ctx context.Context, tournamentID string, advancingPlayers []models.Seed) (*SeedResult, error)
	AutoPlayBotOnlyRounds(ctx context.Context, tournamentID string, fromRoundNumber int) (*models.Tournament, error)
	ScheduleRematch(ctx context.Context, tournamentID string, roundNumber, sequence int) (*models.Tournament, error)

	GetTournament(ctx context.Context, tournamentID string) (*models.Tournament, error)
	GetCurrentTournament(ctx context.Context) (*models.Tournament, error)
	ListInProgress(ctx context.Context, limit int) ([]*models.Tournament, error)
}

type tournamentService struct {
	tournamentRepo repositories.TournamentRepository
	matchRepo      repositories.MatchRepository
	generator      brackets.BracketGenerator
	bots           BotEngine
	notifier       Notifier
	archiver       Archiver
	locks          *keyedLocker
	defaultStake   int64
	logger         *slog.Logger
}

func NewTournamentService(
	tournamentRepo repositories.TournamentRepository,
	matchRepo repositories.MatchRepository,
	generator brackets.BracketGenerator,
	bots BotEngine,
	notifier Notifier,
	archiver Archiver,
	defaultStake int64,
	logger *slog.Logger,
) TournamentService {
	if notifier == nil {
		notifier = nopNotifier{}
	}
	if generator == nil {
		generator = brackets.NewSingleEliminationGenerator()
	}
	if defaultStake <= 0 {
		defaultStake = DefaultMatchStake
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &tournamentService{
		tournamentRepo: tournamentRepo,
		matchRepo:      matchRepo,
		generator:      generator,
		bots:           bots,
		notifier:       notifier,
		archiver:       archiver,
		locks:          newKeyedLocker(),
		defaultStake:   defaultStake,
		logger:         logger,
	}
}

func (s *tournamentService) CreateFromRoster(ctx context.Context, seeds []models.Seed) (*models.Tournament, error) {
	if len(seeds) < 2 {
		return nil, fmt.Errorf("%w (got %d)", ErrNotEnoughSeeds, len(seeds))
	}
	for i, seed := range seeds {
		if models.NormalizeAddress(seed.Address) == "" {
			return nil, fmt.Errorf("%w: seed %d has no address", ErrValidationFailed, i)
		}
	}

	rounds, err := s.generator.GenerateBracket(ctx, brackets.GenerateBracketParams{Seeds: seeds, Stake: s.defaultStake})
	if err != nil {
		if errors.Is(err, brackets.ErrNotEnoughSeeds) {
			return nil, ErrNotEnoughSeeds
		}
		return nil, fmt.Errorf("failed to generate bracket: %w", err)
	}

	t := &models.Tournament{
		ID:                 uuid.NewString(),
		SchemaVersion:      models.TournamentSchemaVersion,
		Status:             models.TournamentStatusInProgress,
		CurrentRoundNumber: 1,
		Rounds:             rounds,
		Metrics:            models.Metrics{ReputationBonuses: make(map[string]int64)},
	}
	if err := s.tournamentRepo.Create(ctx, t); err != nil {
		return nil, fmt.Errorf("failed to create tournament: %w", err)
	}

	s.logger.Info("tournament created",
		slog.String("tournament_id", t.ID),
		slog.Int("seeds", len(seeds)),
		slog.Int("rounds", len(rounds)))

	if err := s.notifier.TournamentUpdated(ctx, t); err != nil {
		return nil, fmt.Errorf("failed to notify tournament update: %w", err)
	}
	return t, nil
}

func (s *tournamentService) MaterializeRoundMatches(ctx context.Context, tournamentID string, roundNumber int) (*models.Tournament, error) {
	unlock := s.locks.Lock(tournamentID)
	defer unlock()

	t, err := s.load(ctx, tournamentID)
	if err != nil {
		return nil, err
	}
	created, err := s.materializeLocked(ctx, t, roundNumber)
	if err != nil {
		return nil, err
	}
	if len(created) == 0 {
		return t, nil
	}
	if err := s.save(ctx, t); err != nil {
		return nil, err
	}
	if err := s.notifier.TournamentUpdated(ctx, t); err != nil {
		return nil, fmt.Errorf("failed to notify tournament update: %w", err)
	}
	if err := s.notifier.RoundSeeded(ctx, t, roundNumber, created); err != nil {
		return nil, fmt.Errorf("failed to notify round seeded: %w", err)
	}
	return t, nil
}

// materializeLocked assigns external ids to playable slots of a round and
// creates their match records. Records are created in parallel; ids are only
// written to the aggregate once every record exists, and a record left over
// from an earlier failed attempt is accepted as is.
func (s *tournamentService) materializeLocked(ctx context.Context, t *models.Tournament, roundNumber int) ([]models.Match, error) {
	round, ok := t.Round(roundNumber)
	if !ok {
		return nil, fmt.Errorf("%w: round %d of tournament %s", ErrRoundNotFound, roundNumber, t.ID)
	}
	if !round.Seeded {
		return nil, fmt.Errorf("%w: round %d", ErrRoundNotSeeded, roundNumber)
	}

	var pending []int
	for i := range round.Matches {
		m := &round.Matches[i]
		if m.IsBye || m.ExternalMatchID != "" || m.Decided() {
			continue
		}
		pending = append(pending, i)
	}
	if len(pending) == 0 {
		return nil, nil
	}

	ids := make([]string, len(pending))
	g, gctx := errgroup.WithContext(ctx)
	for k, idx := range pending {
		m := round.Matches[idx]
		id := matchRecordID(t.ID, roundNumber, m.Sequence, m.Rematches)
		ids[k] = id
		record := newMatchRecord(t.ID, roundNumber, &m, id)

		g.Go(func() error {
			err := s.matchRepo.Create(gctx, record)
			if err != nil && !errors.Is(err, repositories.ErrMatchConflict) {
				return fmt.Errorf("failed to create match record %s: %w", id, err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	created := make([]models.Match, 0, len(pending))
	for k, idx := range pending {
		round.Matches[idx].ExternalMatchID = ids[k]
		created = append(created, round.Matches[idx])
	}
	return created, nil
}

func (s *tournamentService) RecordMatchResult(ctx context.Context, tournamentID string, roundNumber int, matchID, winnerAddress string) (*RecordResult, error) {
	return s.recordResult(ctx, tournamentID, roundNumber, matchID, func(m *models.Match) (string, error) {
		side := sideOf(m, winnerAddress)
		if side == "" {
			return "", fmt.Errorf("%w: %s in match %s", ErrInvalidWinner, winnerAddress, matchID)
		}
		return side, nil
	})
}

// RecordMatchResultForSide records the winner by slot side. Bots sharing one
// controller address can only be told apart this way.
func (s *tournamentService) RecordMatchResultForSide(ctx context.Context, tournamentID string, roundNumber int, matchID, side string) (*RecordResult, error) {
	return s.recordResult(ctx, tournamentID, roundNumber, matchID, func(m *models.Match) (string, error) {
		switch {
		case side == models.SideA && m.SeedA != nil, side == models.SideB && m.SeedB != nil:
			return side, nil
		}
		return "", fmt.Errorf("%w: side %q in match %s", ErrInvalidWinner, side, matchID)
	})
}

func (s *tournamentService) recordResult(ctx context.Context, tournamentID string, roundNumber int, matchID string, pick func(m *models.Match) (string, error)) (*RecordResult, error) {
	unlock := s.locks.Lock(tournamentID)
	defer unlock()

	t, err := s.load(ctx, tournamentID)
	if err != nil {
		return nil, err
	}
	round, idx, err := locateMatch(t, roundNumber, matchID)
	if err != nil {
		return nil, err
	}
	m := &round.Matches[idx]
	if m.IsBye {
		return nil, fmt.Errorf("%w: match %s is a bye", ErrMatchNotPlayable, matchID)
	}

	side, err := pick(m)
	if err != nil {
		return nil, err
	}

	if m.Status == models.MatchStatusCompleted {
		if m.WinnerSide == side {
			// повторный вызов: ничего не пересчитываем
			return roundOutcome(t, round), nil
		}
		return nil, fmt.Errorf("%w: match %s", ErrMatchAlreadyCompleted, matchID)
	}
	if t.Status != models.TournamentStatusInProgress {
		return nil, fmt.Errorf("%w: %s", ErrTournamentNotActive, t.Status)
	}

	result := s.applyResult(t, round, idx, side)
	if err := s.save(ctx, t); err != nil {
		return nil, err
	}
	s.afterResult(ctx, t, result)

	if err := s.notifier.TournamentUpdated(ctx, t); err != nil {
		return nil, fmt.Errorf("failed to notify tournament update: %w", err)
	}
	return result, nil
}

// MarkMatchInProgress moves a pending slot to in-progress once a player has
// chosen. Any other slot state is left alone.
func (s *tournamentService) MarkMatchInProgress(ctx context.Context, tournamentID string, roundNumber int, matchID string) (*models.Tournament, error) {
	unlock := s.locks.Lock(tournamentID)
	defer unlock()

	t, err := s.load(ctx, tournamentID)
	if err != nil {
		return nil, err
	}
	round, idx, err := locateMatch(t, roundNumber, matchID)
	if err != nil {
		return nil, err
	}
	m := &round.Matches[idx]
	if m.IsBye || m.Status != models.MatchStatusPending {
		return t, nil
	}
	if t.Status != models.TournamentStatusInProgress {
		return nil, fmt.Errorf("%w: %s", ErrTournamentNotActive, t.Status)
	}

	m.Status = models.MatchStatusInProgress
	if err := s.save(ctx, t); err != nil {
		return nil, err
	}
	if err := s.notifier.TournamentUpdated(ctx, t); err != nil {
		return nil, fmt.Errorf("failed to notify tournament update: %w", err)
	}
	return t, nil
}

// applyResult marks a slot decided and books rewards, round advancement and
// the final payout. Caller holds the tournament lock.
func (s *tournamentService) applyResult(t *models.Tournament, round *models.Round, idx int, side string) *RecordResult {
	m := &round.Matches[idx]
	m.Status = models.MatchStatusCompleted
	m.WinnerSide = side
	if winner, ok := m.Winner(); ok {
		m.WinnerAddress = winner.Address
	}
	applyMatchReward(&t.Metrics, round.Number, m)

	result := roundOutcome(t, round)
	if !result.RoundCompleted {
		return result
	}

	if t.IsFinalRound(round.Number) {
		final := finalMatch(round)
		winner, _ := final.Winner()
		if runnerUp, ok := final.Loser(); ok {
			applyFinalPayout(&t.Metrics, winner, runnerUp)
		}
		now := time.Now().UTC()
		t.Status = models.TournamentStatusCompleted
		t.CompletedAt = &now
		result.TournamentCompleted = true
	} else if t.CurrentRoundNumber < round.Number+1 {
		t.CurrentRoundNumber = round.Number + 1
	}
	return result
}

func (s *tournamentService) afterResult(ctx context.Context, t *models.Tournament, result *RecordResult) {
	if !result.RoundCompleted {
		return
	}
	if t.Status != models.TournamentStatusCompleted {
		s.logger.Info("round completed",
			slog.String("tournament_id", t.ID),
			slog.Int("round", result.RoundNumber),
			slog.Int("advancing", len(result.AdvancingPlayers)))
		return
	}

	attrs := []any{slog.String("tournament_id", t.ID), slog.Float64("prize_pool", t.Metrics.PrizePool)}
	if t.Metrics.WinnerReward != nil {
		attrs = append(attrs, slog.String("winner", t.Metrics.WinnerReward.Address), slog.Int64("winner_reward", t.Metrics.WinnerReward.Amount))
	}
	s.logger.Info("tournament completed", attrs...)

	if s.archiver != nil {
		if err := s.archiver.ArchiveTournament(ctx, t); err != nil {
			s.logger.Warn("failed to archive tournament", slog.String("tournament_id", t.ID), slog.Any("error", err))
		}
	}
}

func (s *tournamentService) SeedNextRound(ctx context.Context, tournamentID string, advancingPlayers []models.Seed) (*SeedResult, error) {
	unlock := s.locks.Lock(tournamentID)
	defer unlock()

	t, err := s.load(ctx, tournamentID)
	if err != nil {
		return nil, err
	}

	round, changed, err := s.seedLocked(t, advancingPlayers)
	if err != nil {
		return nil, err
	}
	if !changed {
		return &SeedResult{Tournament: t, RoundNumber: round.Number, Matches: round.Matches}, nil
	}

	if _, err := s.materializeLocked(ctx, t, round.Number); err != nil {
		return nil, err
	}
	if err := s.save(ctx, t); err != nil {
		return nil, err
	}
	round, _ = t.Round(round.Number)

	s.logger.Info("round seeded",
		slog.String("tournament_id", t.ID),
		slog.Int("round", round.Number),
		slog.Int("matches", len(round.Matches)))

	if err := s.notifier.TournamentUpdated(ctx, t); err != nil {
		return nil, fmt.Errorf("failed to notify tournament update: %w", err)
	}
	if err := s.notifier.RoundSeeded(ctx, t, round.Number, round.Matches); err != nil {
		return nil, fmt.Errorf("failed to notify round seeded: %w", err)
	}
	return &SeedResult{Tournament: t, RoundNumber: round.Number, Matches: round.Matches}, nil
}

// seedLocked fills round CurrentRoundNumber with pairings of the advancing
// players. An already seeded round is returned unchanged.
func (s *tournamentService) seedLocked(t *models.Tournament, advancing []models.Seed) (*models.Round, bool, error) {
	if t.Status != models.TournamentStatusInProgress {
		return nil, false, fmt.Errorf("%w: %s", ErrTournamentNotActive, t.Status)
	}
	target := t.CurrentRoundNumber
	prev, ok := t.Round(target - 1)
	if !ok {
		return nil, false, fmt.Errorf("%w: no round precedes round %d", ErrRoundNotCompleted, target)
	}
	if !prev.Completed() {
		return nil, false, fmt.Errorf("%w: round %d", ErrRoundNotCompleted, prev.Number)
	}

	existing, exists := t.Round(target)
	if exists && existing.Seeded {
		return existing, false, nil
	}

	entries, err := matchAdvancing(prev, advancing)
	if err != nil {
		return nil, false, err
	}
	seeds := make([]models.Seed, len(entries))
	for i, e := range entries {
		seeds[i] = e.seed
	}

	firstSequence := nextSequence(t)
	if exists && len(existing.Matches) > 0 {
		firstSequence = existing.Matches[0].Sequence
	}
	built := s.generator.SeedRound(target, firstSequence, seeds, s.defaultStake)
	attachProvenance(&built, entries)

	if exists {
		*existing = built
		return existing, true, nil
	}
	t.Rounds = append(t.Rounds, built)
	return &t.Rounds[len(t.Rounds)-1], true, nil
}

type advancingEntry struct {
	seed   models.Seed
	source models.MatchSource
	used   bool
}

// matchAdvancing checks that advancing is exactly the multiset of winners of
// prev (by address, position breaks duplicates) and returns the recorded
// winner seeds in the caller's order together with where each came from.
func matchAdvancing(prev *models.Round, advancing []models.Seed) ([]advancingEntry, error) {
	var expected []advancingEntry
	for i := range prev.Matches {
		m := &prev.Matches[i]
		if w, ok := m.Winner(); ok {
			expected = append(expected, advancingEntry{seed: w, source: models.MatchSource{Round: prev.Number, Sequence: m.Sequence}})
		}
	}
	if len(advancing) != len(expected) {
		return nil, fmt.Errorf("%w: got %d players, round %d has %d winners",
			ErrInvalidAdvancingList, len(advancing), prev.Number, len(expected))
	}

	entries := make([]advancingEntry, 0, len(advancing))
	for _, a := range advancing {
		found := false
		for i := range expected {
			if expected[i].used || !models.SameAddress(expected[i].seed.Address, a.Address) {
				continue
			}
			expected[i].used = true
			entries = append(entries, advancingEntry{seed: expected[i].seed, source: expected[i].source})
			found = true
			break
		}
		if !found {
			return nil, fmt.Errorf("%w: %s did not win in round %d", ErrInvalidAdvancingList, a.Address, prev.Number)
		}
	}
	return entries, nil
}

func attachProvenance(round *models.Round, entries []advancingEntry) {
	take := func(seed *models.Seed) *models.MatchSource {
		if seed == nil {
			return nil
		}
		for i := range entries {
			if !entries[i].used && entries[i].seed == *seed {
				entries[i].used = true
				src := entries[i].source
				return &src
			}
		}
		return nil
	}
	for i := range entries {
		entries[i].used = false
	}
	for i := range round.Matches {
		round.Matches[i].SourceA = take(round.Matches[i].SeedA)
		round.Matches[i].SourceB = take(round.Matches[i].SeedB)
	}
}

func (s *tournamentService) ScheduleRematch(ctx context.Context, tournamentID string, roundNumber, sequence int) (*models.Tournament, error) {
	unlock := s.locks.Lock(tournamentID)
	defer unlock()

	t, err := s.load(ctx, tournamentID)
	if err != nil {
		return nil, err
	}
	if t.Status != models.TournamentStatusInProgress {
		return nil, fmt.Errorf("%w: %s", ErrTournamentNotActive, t.Status)
	}
	round, ok := t.Round(roundNumber)
	if !ok {
		return nil, fmt.Errorf("%w: round %d", ErrRoundNotFound, roundNumber)
	}

	var m *models.Match
	for i := range round.Matches {
		if round.Matches[i].Sequence == sequence {
			m = &round.Matches[i]
			break
		}
	}
	if m == nil {
		return nil, fmt.Errorf("%w: slot %d in round %d", ErrMatchNotFound, sequence, roundNumber)
	}
	if m.Decided() || m.SeedA == nil || m.SeedB == nil {
		return nil, fmt.Errorf("%w: slot %d cannot be replayed", ErrMatchNotPlayable, sequence)
	}

	m.Rematches++
	m.ExternalMatchID = ""
	m.Status = models.MatchStatusPending

	created, err := s.materializeLocked(ctx, t, roundNumber)
	if err != nil {
		return nil, err
	}
	if err := s.save(ctx, t); err != nil {
		return nil, err
	}

	s.logger.Info("rematch scheduled",
		slog.String("tournament_id", t.ID),
		slog.Int("round", roundNumber),
		slog.Int("slot", sequence),
		slog.Int("rematch", m.Rematches))

	if err := s.notifier.TournamentUpdated(ctx, t); err != nil {
		return nil, fmt.Errorf("failed to notify tournament update: %w", err)
	}
	if err := s.notifier.RoundSeeded(ctx, t, roundNumber, created); err != nil {
		return nil, fmt.Errorf("failed to notify round seeded: %w", err)
	}
	return t, nil
}

func (s *tournamentService) GetTournament(ctx context.Context, tournamentID string) (*models.Tournament, error) {
	return s.load(ctx, tournamentID)
}

// GetCurrentTournament returns the newest running tournament, or the newest
// completed one when nothing is running.
func (s *tournamentService) GetCurrentTournament(ctx context.Context) (*models.Tournament, error) {
	for _, status := range []models.TournamentStatus{models.TournamentStatusInProgress, models.TournamentStatusCompleted} {
		list, err := s.tournamentRepo.ListByStatus(ctx, status, 1)
		if err != nil {
			return nil, fmt.Errorf("failed to list tournaments: %w", err)
		}
		if len(list) > 0 {
			return list[0], nil
		}
	}
	return nil, ErrTournamentNotFound
}

func (s *tournamentService) ListInProgress(ctx context.Context, limit int) ([]*models.Tournament, error) {
	list, err := s.tournamentRepo.ListByStatus(ctx, models.TournamentStatusInProgress, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list tournaments: %w", err)
	}
	return list, nil
}

func (s *tournamentService) load(ctx context.Context, tournamentID string) (*models.Tournament, error) {
	t, err := s.tournamentRepo.GetByID(ctx, tournamentID)
	if err != nil {
		if errors.Is(err, repositories.ErrTournamentNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrTournamentNotFound, tournamentID)
		}
		return nil, fmt.Errorf("failed to load tournament %s: %w", tournamentID, err)
	}
	if t.Metrics.ReputationBonuses == nil {
		t.Metrics.ReputationBonuses = make(map[string]int64)
	}
	return t, nil
}

func (s *tournamentService) save(ctx context.Context, t *models.Tournament) error {
	if err := s.tournamentRepo.Save(ctx, t); err != nil {
		switch {
		case errors.Is(err, repositories.ErrVersionConflict):
			return fmt.Errorf("%w: %s", ErrConcurrentUpdate, t.ID)
		case errors.Is(err, repositories.ErrTournamentNotFound):
			return fmt.Errorf("%w: %s", ErrTournamentNotFound, t.ID)
		}
		return fmt.Errorf("failed to save tournament %s: %w", t.ID, err)
	}
	return nil
}

func locateMatch(t *models.Tournament, roundNumber int, matchID string) (*models.Round, int, error) {
	round, ok := t.Round(roundNumber)
	if !ok {
		return nil, 0, fmt.Errorf("%w: round %d of tournament %s", ErrRoundNotFound, roundNumber, t.ID)
	}
	for i := range round.Matches {
		if matchID != "" && round.Matches[i].ExternalMatchID == matchID {
			return round, i, nil
		}
	}
	return nil, 0, fmt.Errorf("%w: %s in round %d", ErrMatchNotFound, matchID, roundNumber)
}

// sideOf resolves an address to a slot side, seed A first.
func sideOf(m *models.Match, address string) string {
	switch {
	case m.SeedA != nil && models.SameAddress(m.SeedA.Address, address):
		return models.SideA
	case m.SeedB != nil && models.SameAddress(m.SeedB.Address, address):
		return models.SideB
	}
	return ""
}

func roundOutcome(t *models.Tournament, round *models.Round) *RecordResult {
	return &RecordResult{
		Tournament:       t,
		AdvancingPlayers: round.Winners(),
		RoundCompleted:   round.Completed(),
		RoundNumber:      round.Number,
	}
}

// finalMatch is the last non-bye slot of the final round.
func finalMatch(round *models.Round) *models.Match {
	for i := len(round.Matches) - 1; i >= 0; i-- {
		if !round.Matches[i].IsBye {
			return &round.Matches[i]
		}
	}
	return &round.Matches[len(round.Matches)-1]
}

func nextSequence(t *models.Tournament) int {
	last := 0
	for _, r := range t.Rounds {
		for _, m := range r.Matches {
			if m.Sequence > last {
				last = m.Sequence
			}
		}
	}
	return last + 1
}

func matchRecordID(tournamentID string, roundNumber, sequence, rematch int) string {
	id := fmt.Sprintf("tournament_%s_%d_%d", tournamentID, roundNumber, sequence)
	if rematch > 0 {
		id += fmt.Sprintf("_r%d", rematch)
	}
	return id
}

func newMatchRecord(tournamentID string, roundNumber int, m *models.Match, id string) *models.MatchRecord {
	now := time.Now().UTC()
	record := &models.MatchRecord{
		ID:           id,
		TournamentID: tournamentID,
		Round:        roundNumber,
		Sequence:     m.Sequence,
		Rematch:      m.Rematches,
		Status:       models.MatchRecordPending,
		Stake:        m.Stake,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if m.SeedA != nil {
		record.Player1 = models.MatchPlayer{
			Address:    models.NormalizeAddress(m.SeedA.Address),
			Username:   m.SeedA.DisplayName,
			Reputation: m.SeedA.Reputation,
		}
	}
	if m.SeedB != nil {
		record.Player2 = models.MatchPlayer{
			Address:    models.NormalizeAddress(m.SeedB.Address),
			Username:   m.SeedB.DisplayName,
			Reputation: m.SeedB.Reputation,
		}
	}
	return record
}
