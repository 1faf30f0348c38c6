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
	defaultHistoryLimit = 20
	maxHistoryLimit     = 100
)

// ResolveResult describes what resolving one match did to its tournament.
type ResolveResult struct {
	Match      *models.MatchRecord `json:"match"`
	Tournament *models.Tournament  `json:"tournament,omitempty"`
	Rematch    bool                `json:"rematch"`
}

type MatchService interface {
	SubmitChoice(ctx context.Context, matchID, address string, choice int) (*models.MatchRecord, error)
	Resolve(ctx context.Context, matchID string) (*ResolveResult, error)
	// ResolveBotMatches plays the open bot-vs-bot matches of a round that
	// also holds human matches.
	ResolveBotMatches(ctx context.Context, tournamentID string, roundNumber int) (int, error)
	GetMatch(ctx context.Context, matchID string) (*models.MatchRecord, error)
	History(ctx context.Context, address string, limit int) ([]*models.MatchRecord, error)
}

type matchService struct {
	matchRepo   repositories.MatchRepository
	tournaments TournamentService
	players     PlayerService
	bots        BotEngine
	locks       *keyedLocker
	logger      *slog.Logger
}

func NewMatchService(
	matchRepo repositories.MatchRepository,
	tournaments TournamentService,
	players PlayerService,
	bots BotEngine,
	logger *slog.Logger,
) MatchService {
	if logger == nil {
		logger = slog.Default()
	}
	return &matchService{
		matchRepo:   matchRepo,
		tournaments: tournaments,
		players:     players,
		bots:        bots,
		locks:       newKeyedLocker(),
		logger:      logger,
	}
}

func (s *matchService) SubmitChoice(ctx context.Context, matchID, address string, choice int) (*models.MatchRecord, error) {
	c, err := payoff.ParseChoice(choice)
	if err != nil {
		return nil, fmt.Errorf("%w: %d", ErrInvalidChoice, choice)
	}

	record, first, ready, err := s.storeChoice(ctx, matchID, address, c)
	if err != nil {
		return nil, err
	}
	if !ready {
		if first {
			s.markSlotInProgress(ctx, record)
		}
		return record, nil
	}

	// все люди выбрали: матч можно разыгрывать
	res, err := s.Resolve(ctx, matchID)
	if err != nil {
		if errors.Is(err, ErrMatchAlreadyResolved) {
			return s.GetMatch(ctx, matchID)
		}
		return nil, err
	}
	return res.Match, nil
}

// storeChoice saves one choice. first is set when the record left pending.
func (s *matchService) storeChoice(ctx context.Context, matchID, address string, c payoff.Choice) (record *models.MatchRecord, first, ready bool, err error) {
	unlock := s.locks.Lock(matchID)
	defer unlock()

	record, err = s.load(ctx, matchID)
	if err != nil {
		return nil, false, false, err
	}
	if record.Status == models.MatchRecordResolved {
		return nil, false, false, fmt.Errorf("%w: %s", ErrMatchAlreadyResolved, matchID)
	}
	self, _, ok := record.Side(address)
	if !ok {
		return nil, false, false, fmt.Errorf("%w: %s in match %s", ErrNotMatchParticipant, address, matchID)
	}
	if self.Choice != nil {
		return nil, false, false, fmt.Errorf("%w: %s in match %s", ErrChoiceAlreadySubmitted, address, matchID)
	}

	first = record.Status == models.MatchRecordPending
	value := int(c)
	self.Choice = &value
	record.Status = models.MatchRecordInProgress
	record.UpdatedAt = time.Now().UTC()
	if err := s.matchRepo.Save(ctx, record); err != nil {
		return nil, false, false, fmt.Errorf("failed to save match %s: %w", matchID, err)
	}

	s.logger.Info("choice submitted",
		slog.String("match_id", matchID),
		slog.String("address", models.NormalizeAddress(address)))
	return record, first, s.humansReady(record), nil
}

// markSlotInProgress mirrors the record state onto its bracket slot. The
// record is already stored, so a failure here is only logged.
func (s *matchService) markSlotInProgress(ctx context.Context, record *models.MatchRecord) {
	if record.TournamentID == "" {
		return
	}
	if _, err := s.tournaments.MarkMatchInProgress(ctx, record.TournamentID, record.Round, record.ID); err != nil {
		s.logger.Warn("failed to mark bracket slot in progress",
			slog.String("match_id", record.ID),
			slog.Any("error", err))
	}
}

// humansReady reports whether every human side has chosen.
func (s *matchService) humansReady(record *models.MatchRecord) bool {
	for _, p := range []*models.MatchPlayer{&record.Player1, &record.Player2} {
		if p.Choice == nil && !s.isBot(p.Address) {
			return false
		}
	}
	return true
}

func (s *matchService) Resolve(ctx context.Context, matchID string) (*ResolveResult, error) {
	res, recorded, err := s.resolveLocked(ctx, matchID)
	if err != nil {
		return nil, err
	}
	if recorded != nil && recorded.RoundCompleted && !recorded.TournamentCompleted &&
		recorded.Tournament.Status == models.TournamentStatusInProgress {
		if t, err := s.advance(ctx, recorded); err != nil {
			s.logger.Warn("failed to advance tournament after round completion",
				slog.String("tournament_id", recorded.Tournament.ID),
				slog.Int("round", recorded.RoundNumber),
				slog.Any("error", err))
		} else {
			res.Tournament = t
		}
	}
	return res, nil
}

// resolveLocked settles the record and pushes the outcome into the bracket.
// The match lock is released before any follow-up round is played.
func (s *matchService) resolveLocked(ctx context.Context, matchID string) (*ResolveResult, *RecordResult, error) {
	unlock := s.locks.Lock(matchID)
	defer unlock()

	record, err := s.load(ctx, matchID)
	if err != nil {
		return nil, nil, err
	}
	if record.Status == models.MatchRecordResolved {
		return s.resync(ctx, record)
	}

	botA, botB := s.isBot(record.Player1.Address), s.isBot(record.Player2.Address)
	var winner models.MatchWinner
	if botA && botB {
		play := playBotMatch(s.bots, recordSeed(record.Player1), recordSeed(record.Player2))
		play.apply(record)
		s.bots.ReweightStrategies()
		winner = record.Winner
	} else {
		choiceA, choiceB, err := s.collectChoices(record)
		if err != nil {
			return nil, nil, err
		}
		winner = s.settle(record, choiceA, choiceB)
	}
	record.UpdatedAt = time.Now().UTC()
	if err := s.matchRepo.Save(ctx, record); err != nil {
		return nil, nil, fmt.Errorf("failed to save match %s: %w", matchID, err)
	}

	s.logger.Info("match resolved",
		slog.String("match_id", matchID),
		slog.String("winner", string(winner)),
		slog.String("description", record.Description))

	if !botA {
		s.recordPlayer(ctx, record.Player1, winner == models.WinnerPlayer1)
	}
	if !botB {
		s.recordPlayer(ctx, record.Player2, winner == models.WinnerPlayer2)
	}

	return s.pushToBracket(ctx, record)
}

// collectChoices fills missing bot choices. A missing human choice blocks.
func (s *matchService) collectChoices(record *models.MatchRecord) (payoff.Choice, payoff.Choice, error) {
	pick := func(self, opp *models.MatchPlayer) (payoff.Choice, error) {
		if self.Choice != nil {
			return payoff.Choice(*self.Choice), nil
		}
		if !s.isBot(self.Address) {
			return 0, fmt.Errorf("%w: %s has not chosen", ErrChoicesPending, self.Address)
		}
		c := s.bots.Decide(self.Address, opp.Address, opp.Reputation)
		value := int(c)
		self.Choice = &value
		return c, nil
	}
	a, err := pick(&record.Player1, &record.Player2)
	if err != nil {
		return 0, 0, err
	}
	b, err := pick(&record.Player2, &record.Player1)
	if err != nil {
		return 0, 0, err
	}
	return a, b, nil
}

// settle applies the payoff table to a match with at least one human.
func (s *matchService) settle(record *models.MatchRecord, a, b payoff.Choice) models.MatchWinner {
	result := payoff.Resolve(a, b)
	now := time.Now().UTC()

	record.Player1.TokensEarned = result.TokensA
	record.Player2.TokensEarned = result.TokensB
	record.Player1.ReputationChange = result.ReputationDeltaA
	record.Player2.ReputationChange = result.ReputationDeltaB
	record.Description = result.Description
	record.Status = models.MatchRecordResolved
	record.ResolvedAt = &now

	switch result.Winner {
	case payoff.WinnerA:
		record.Winner = models.WinnerPlayer1
	case payoff.WinnerB:
		record.Winner = models.WinnerPlayer2
	default:
		record.Winner = models.WinnerTie
	}

	if s.bots != nil {
		tie := record.Winner == models.WinnerTie
		for _, side := range []struct {
			self, opp *models.MatchPlayer
			won       bool
		}{
			{&record.Player1, &record.Player2, record.Winner == models.WinnerPlayer1},
			{&record.Player2, &record.Player1, record.Winner == models.WinnerPlayer2},
		} {
			if !s.bots.IsBot(side.self.Address) {
				continue
			}
			s.bots.RecordChoice(side.self.Address, side.opp.Address, payoff.Choice(*side.opp.Choice))
			if !tie {
				s.bots.RecordOutcome(side.self.Address, side.won)
			}
		}
		s.bots.ReweightStrategies()
	}
	return record.Winner
}

func (s *matchService) recordPlayer(ctx context.Context, side models.MatchPlayer, won bool) {
	if s.players == nil || side.Choice == nil {
		return
	}
	if err := s.players.RecordMatch(ctx, side, payoff.Choice(*side.Choice), won); err != nil {
		s.logger.Warn("failed to update player stats",
			slog.String("address", side.Address),
			slog.Any("error", err))
	}
}

// pushToBracket reports the record's outcome to the tournament. A tie
// schedules a rematch of the slot instead of advancing anyone.
func (s *matchService) pushToBracket(ctx context.Context, record *models.MatchRecord) (*ResolveResult, *RecordResult, error) {
	res := &ResolveResult{Match: record}
	if record.TournamentID == "" {
		return res, nil, nil
	}

	if record.Winner == models.WinnerTie {
		t, err := s.tournaments.ScheduleRematch(ctx, record.TournamentID, record.Round, record.Sequence)
		if err != nil {
			return nil, nil, err
		}
		res.Tournament = t
		res.Rematch = true
		return res, nil, nil
	}

	side := models.SideA
	if record.Winner == models.WinnerPlayer2 {
		side = models.SideB
	}
	recorded, err := s.tournaments.RecordMatchResultForSide(ctx, record.TournamentID, record.Round, record.ID, side)
	if err != nil {
		return nil, nil, err
	}
	res.Tournament = recorded.Tournament
	if recorded.TournamentCompleted {
		s.creditPayouts(ctx, recorded.Tournament)
	}
	return res, recorded, nil
}

// resync handles a record that was resolved earlier but whose outcome may
// not have reached the bracket.
func (s *matchService) resync(ctx context.Context, record *models.MatchRecord) (*ResolveResult, *RecordResult, error) {
	if record.TournamentID == "" {
		return nil, nil, fmt.Errorf("%w: %s", ErrMatchAlreadyResolved, record.ID)
	}
	t, err := s.tournaments.GetTournament(ctx, record.TournamentID)
	if err != nil {
		return nil, nil, err
	}
	round, ok := t.Round(record.Round)
	if !ok {
		return nil, nil, fmt.Errorf("%w: %s", ErrMatchAlreadyResolved, record.ID)
	}
	for i := range round.Matches {
		m := &round.Matches[i]
		if m.ExternalMatchID == record.ID && !m.Decided() {
			return s.pushToBracket(ctx, record)
		}
	}
	return nil, nil, fmt.Errorf("%w: %s", ErrMatchAlreadyResolved, record.ID)
}

// advance seeds the round after a completed one and lets bots play whatever
// they can on their own.
func (s *matchService) advance(ctx context.Context, recorded *RecordResult) (*models.Tournament, error) {
	tournamentID := recorded.Tournament.ID
	seeded, err := s.tournaments.SeedNextRound(ctx, tournamentID, recorded.AdvancingPlayers)
	if err != nil {
		return nil, err
	}
	t, err := s.tournaments.AutoPlayBotOnlyRounds(ctx, tournamentID, seeded.RoundNumber)
	if err != nil {
		return nil, err
	}
	if t.Status != models.TournamentStatusInProgress {
		return t, nil
	}
	if _, err := s.ResolveBotMatches(ctx, tournamentID, t.CurrentRoundNumber); err != nil {
		return nil, err
	}
	return s.tournaments.GetTournament(ctx, tournamentID)
}

// creditPayouts pays the final rewards to human finalists.
func (s *matchService) creditPayouts(ctx context.Context, t *models.Tournament) {
	if s.players == nil {
		return
	}
	rewards := []struct {
		reward     *models.Reward
		reputation int
	}{
		{t.Metrics.WinnerReward, winnerReputation},
		{t.Metrics.RunnerUpReward, runnerUpReputation},
	}
	for _, r := range rewards {
		if r.reward == nil || s.isBot(r.reward.Address) {
			continue
		}
		if err := s.players.CreditEarnings(ctx, r.reward.Address, r.reward.Amount, r.reputation); err != nil {
			s.logger.Warn("failed to credit tournament payout",
				slog.String("tournament_id", t.ID),
				slog.String("address", r.reward.Address),
				slog.Any("error", err))
		}
	}
}

func (s *matchService) ResolveBotMatches(ctx context.Context, tournamentID string, roundNumber int) (int, error) {
	if s.bots == nil {
		return 0, nil
	}
	t, err := s.tournaments.GetTournament(ctx, tournamentID)
	if err != nil {
		return 0, err
	}
	round, ok := t.Round(roundNumber)
	if !ok {
		return 0, fmt.Errorf("%w: round %d of tournament %s", ErrRoundNotFound, roundNumber, tournamentID)
	}

	var ids []string
	for _, m := range round.Matches {
		if m.Decided() || m.ExternalMatchID == "" || m.SeedA == nil || m.SeedB == nil {
			continue
		}
		if s.bots.IsBot(m.SeedA.Address) && s.bots.IsBot(m.SeedB.Address) {
			ids = append(ids, m.ExternalMatchID)
		}
	}

	resolved := 0
	for _, id := range ids {
		if _, err := s.Resolve(ctx, id); err != nil {
			if errors.Is(err, ErrMatchAlreadyResolved) || errors.Is(err, ErrMatchAlreadyCompleted) {
				continue
			}
			return resolved, err
		}
		resolved++
	}
	return resolved, nil
}

func (s *matchService) GetMatch(ctx context.Context, matchID string) (*models.MatchRecord, error) {
	return s.load(ctx, matchID)
}

func (s *matchService) History(ctx context.Context, address string, limit int) ([]*models.MatchRecord, error) {
	address = models.NormalizeAddress(address)
	if address == "" {
		return nil, fmt.Errorf("%w: address is required", ErrValidationFailed)
	}
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}
	records, err := s.matchRepo.ListByParticipant(ctx, address, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list matches of %s: %w", address, err)
	}
	if records == nil {
		return []*models.MatchRecord{}, nil
	}
	return records, nil
}

func (s *matchService) load(ctx context.Context, matchID string) (*models.MatchRecord, error) {
	record, err := s.matchRepo.GetByID(ctx, matchID)
	if err != nil {
		if errors.Is(err, repositories.ErrMatchNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrMatchNotFound, matchID)
		}
		return nil, fmt.Errorf("failed to load match %s: %w", matchID, err)
	}
	return record, nil
}

func (s *matchService) isBot(address string) bool {
	return s.bots != nil && s.bots.IsBot(address)
}

func recordSeed(p models.MatchPlayer) models.Seed {
	return models.Seed{Address: p.Address, DisplayName: p.Username, Reputation: p.Reputation}
}
