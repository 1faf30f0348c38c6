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

// maxBotRematches bounds replays of a tied bot-vs-bot match before the
// reputation tie-break decides it.
const maxBotRematches = 3

// AutoPlayBotOnlyRounds resolves rounds in which every open match is
// bot-vs-bot, seeding each following round, until it meets a round with a
// human match, a round it cannot seed yet, or the end of the tournament.
// Each iteration completes one round, so it runs at most once per remaining
// round. Notification failures are logged and skipped; persistence failures
// abort the chain.
func (s *tournamentService) AutoPlayBotOnlyRounds(ctx context.Context, tournamentID string, fromRoundNumber int) (*models.Tournament, error) {
	unlock := s.locks.Lock(tournamentID)
	defer unlock()

	t, err := s.load(ctx, tournamentID)
	if err != nil {
		return nil, err
	}
	if _, ok := t.Round(fromRoundNumber); !ok {
		return nil, fmt.Errorf("%w: round %d of tournament %s", ErrRoundNotFound, fromRoundNumber, tournamentID)
	}
	if s.bots == nil {
		return t, nil
	}

	roundNumber := fromRoundNumber
	for steps := len(t.Rounds) - fromRoundNumber + 1; steps > 0; steps-- {
		if t.Status != models.TournamentStatusInProgress {
			break
		}
		round, ok := t.Round(roundNumber)
		if !ok {
			break
		}

		if !round.Seeded {
			seeded, err := s.seedFromPrevious(ctx, t, roundNumber)
			if err != nil {
				return nil, err
			}
			if !seeded {
				break
			}
			round, _ = t.Round(roundNumber)
		}

		if !s.botOnly(round) {
			break
		}
		if err := s.playBotRound(ctx, t, roundNumber); err != nil {
			return nil, err
		}
		s.notifyQuietly(ctx, t, func() error { return s.notifier.TournamentUpdated(ctx, t) })

		round, _ = t.Round(roundNumber)
		if !round.Completed() {
			break
		}
		roundNumber++
	}
	return t, nil
}

// seedFromPrevious seeds roundNumber from the winners of the round before it
// when that round is complete.
func (s *tournamentService) seedFromPrevious(ctx context.Context, t *models.Tournament, roundNumber int) (bool, error) {
	prev, ok := t.Round(roundNumber - 1)
	if !ok || !prev.Completed() {
		return false, nil
	}
	if t.CurrentRoundNumber < roundNumber {
		t.CurrentRoundNumber = roundNumber
	}

	round, changed, err := s.seedLocked(t, prev.Winners())
	if err != nil {
		return false, err
	}
	if !changed {
		return true, nil
	}
	if _, err := s.materializeLocked(ctx, t, round.Number); err != nil {
		return false, err
	}
	if err := s.save(ctx, t); err != nil {
		return false, err
	}

	round, _ = t.Round(roundNumber)
	s.logger.Info("round seeded",
		slog.String("tournament_id", t.ID),
		slog.Int("round", roundNumber),
		slog.Int("matches", len(round.Matches)))
	s.notifyQuietly(ctx, t, func() error { return s.notifier.TournamentUpdated(ctx, t) })
	matches := round.Matches
	s.notifyQuietly(ctx, t, func() error { return s.notifier.RoundSeeded(ctx, t, roundNumber, matches) })
	return true, nil
}

// botOnly reports whether every open slot of the round is bot-vs-bot.
func (s *tournamentService) botOnly(round *models.Round) bool {
	for i := range round.Matches {
		m := &round.Matches[i]
		if m.Decided() {
			continue
		}
		if m.SeedA == nil || m.SeedB == nil {
			return false
		}
		if !s.bots.IsBot(m.SeedA.Address) || !s.bots.IsBot(m.SeedB.Address) {
			return false
		}
	}
	return true
}

// playBotRound resolves every open slot of a bot-only round sequentially,
// persisting the aggregate after each result.
func (s *tournamentService) playBotRound(ctx context.Context, t *models.Tournament, roundNumber int) error {
	created, err := s.materializeLocked(ctx, t, roundNumber)
	if err != nil {
		return err
	}
	if len(created) > 0 {
		if err := s.save(ctx, t); err != nil {
			return err
		}
	}

	round, _ := t.Round(roundNumber)
	for idx := range round.Matches {
		m := &round.Matches[idx]
		if m.Decided() {
			continue
		}

		play := playBotMatch(s.bots, *m.SeedA, *m.SeedB)
		if err := s.recordBotPlay(ctx, m.ExternalMatchID, play); err != nil {
			return err
		}

		result := s.applyResult(t, round, idx, play.side)
		if err := s.save(ctx, t); err != nil {
			return fmt.Errorf("autoplay aborted at round %d slot %d: %w", roundNumber, m.Sequence, err)
		}
		s.afterResult(ctx, t, result)
	}

	s.bots.ReweightStrategies()
	return nil
}

// recordBotPlay writes the outcome into the standalone match record.
func (s *tournamentService) recordBotPlay(ctx context.Context, matchID string, play botPlay) error {
	record, err := s.matchRepo.GetByID(ctx, matchID)
	if err != nil {
		if errors.Is(err, repositories.ErrMatchNotFound) {
			return fmt.Errorf("%w: %s", ErrMatchNotFound, matchID)
		}
		return fmt.Errorf("failed to load match %s: %w", matchID, err)
	}
	play.apply(record)
	if err := s.matchRepo.Save(ctx, record); err != nil {
		return fmt.Errorf("failed to save match %s: %w", matchID, err)
	}
	return nil
}

func (s *tournamentService) notifyQuietly(ctx context.Context, t *models.Tournament, notify func() error) {
	if err := notify(); err != nil {
		s.logger.Warn("notification failed during autoplay",
			slog.String("tournament_id", t.ID),
			slog.Any("error", err))
	}
}

// botPlay is the outcome of one bot-vs-bot match including replays.
type botPlay struct {
	choiceA  payoff.Choice
	choiceB  payoff.Choice
	result   payoff.Result
	side     string
	replays  int
	tieBreak bool
}

// playBotMatch lets both bots decide, replaying ties up to maxBotRematches
// times. A tie that survives goes to the higher reputation, then to seed A.
func playBotMatch(engine BotEngine, a, b models.Seed) botPlay {
	var play botPlay
	for attempt := 0; ; attempt++ {
		play.choiceA = engine.Decide(a.Address, b.Address, b.Reputation)
		play.choiceB = engine.Decide(b.Address, a.Address, a.Reputation)
		play.result = payoff.Resolve(play.choiceA, play.choiceB)
		engine.RecordChoice(a.Address, b.Address, play.choiceB)
		engine.RecordChoice(b.Address, a.Address, play.choiceA)
		play.replays = attempt

		if play.result.Winner != payoff.WinnerTie || attempt >= maxBotRematches {
			break
		}
	}

	switch play.result.Winner {
	case payoff.WinnerA:
		play.side = models.SideA
	case payoff.WinnerB:
		play.side = models.SideB
	default:
		play.tieBreak = true
		play.side = models.SideA
		if b.Reputation > a.Reputation {
			play.side = models.SideB
		}
	}

	engine.RecordOutcome(a.Address, play.side == models.SideA)
	engine.RecordOutcome(b.Address, play.side == models.SideB)
	return play
}

func (p botPlay) apply(record *models.MatchRecord) {
	choiceA, choiceB := int(p.choiceA), int(p.choiceB)
	now := time.Now().UTC()

	record.Player1.Choice = &choiceA
	record.Player2.Choice = &choiceB
	record.Player1.TokensEarned = p.result.TokensA
	record.Player2.TokensEarned = p.result.TokensB
	record.Player1.ReputationChange = p.result.ReputationDeltaA
	record.Player2.ReputationChange = p.result.ReputationDeltaB
	record.Description = p.result.Description
	if p.tieBreak {
		record.Description += " (decided by reputation)"
	}
	record.Winner = models.WinnerPlayer1
	if p.side == models.SideB {
		record.Winner = models.WinnerPlayer2
	}
	record.Status = models.MatchRecordResolved
	record.ResolvedAt = &now
}
