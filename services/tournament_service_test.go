package services

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/Dosada05/trust-tournament/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateFromRosterBuildsBracket(t *testing.T) {
	f := newFixture(t)
	tour := f.create(t, humans(5))

	assert.Equal(t, models.TournamentStatusInProgress, tour.Status)
	assert.Equal(t, 1, tour.CurrentRoundNumber)
	require.Len(t, tour.Rounds, 3)
	assert.Equal(t, 1, f.notifier.updateCount())

	first := tour.Rounds[0]
	require.Len(t, first.Matches, 3)
	bye := first.Matches[2]
	assert.True(t, bye.IsBye)
	assert.Equal(t, "0xhuman04", bye.SeedA.Address)
	assert.Zero(t, bye.Stake)
	assert.Equal(t, models.MatchStatusCompleted, bye.Status)
	assert.Equal(t, models.SideA, bye.WinnerSide)

	assert.False(t, tour.Rounds[1].Seeded)
	assert.Len(t, tour.Rounds[1].Matches, 2)
	assert.Len(t, tour.Rounds[2].Matches, 1)
	assert.Equal(t, 6, tour.Rounds[2].Matches[0].Sequence)

	stored, err := f.tournaments.GetTournament(context.Background(), tour.ID)
	require.NoError(t, err)
	assert.Equal(t, tour.ID, stored.ID)
}

func TestCreateFromRosterRejectsBadInput(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.tournaments.CreateFromRoster(ctx, humans(1))
	assert.ErrorIs(t, err, ErrNotEnoughSeeds)
	assert.ErrorIs(t, err, ErrValidationFailed)

	seeds := humans(3)
	seeds[1].Address = "  "
	_, err = f.tournaments.CreateFromRoster(ctx, seeds)
	assert.ErrorIs(t, err, ErrValidationFailed)
	assert.Zero(t, f.notifier.updateCount())
}

func TestMaterializeRoundMatches(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	tour := f.create(t, humans(4))

	tour, err := f.tournaments.MaterializeRoundMatches(ctx, tour.ID, 1)
	require.NoError(t, err)
	first := tour.Rounds[0]
	assert.Equal(t, "tournament_"+tour.ID+"_1_1", first.Matches[0].ExternalMatchID)
	assert.Equal(t, "tournament_"+tour.ID+"_1_2", first.Matches[1].ExternalMatchID)

	record, err := f.matchRepo.GetByID(ctx, first.Matches[0].ExternalMatchID)
	require.NoError(t, err)
	assert.Equal(t, "0xhuman00", record.Player1.Address)
	assert.Equal(t, "0xhuman03", record.Player2.Address)
	assert.Equal(t, models.MatchRecordPending, record.Status)
	assert.Equal(t, DefaultMatchStake, record.Stake)

	require.Len(t, f.notifier.seeded, 1)
	assert.Len(t, f.notifier.seeded[0].matches, 2)

	// повторный вызов ничего не создаёт
	_, err = f.tournaments.MaterializeRoundMatches(ctx, tour.ID, 1)
	require.NoError(t, err)
	assert.Len(t, f.notifier.seeded, 1)

	_, err = f.tournaments.MaterializeRoundMatches(ctx, tour.ID, 2)
	assert.ErrorIs(t, err, ErrRoundNotSeeded)

	_, err = f.tournaments.MaterializeRoundMatches(ctx, tour.ID, 9)
	assert.ErrorIs(t, err, ErrRoundNotFound)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = f.tournaments.MaterializeRoundMatches(ctx, "missing", 1)
	assert.ErrorIs(t, err, ErrTournamentNotFound)
}

func TestFourPlayerTournamentAccounting(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	seeds := humans(4)
	tour := f.create(t, seeds)
	tour, err := f.tournaments.MaterializeRoundMatches(ctx, tour.ID, 1)
	require.NoError(t, err)
	first := tour.Rounds[0]

	res, err := f.tournaments.RecordMatchResult(ctx, tour.ID, 1, first.Matches[0].ExternalMatchID, "0xhuman03")
	require.NoError(t, err)
	assert.False(t, res.RoundCompleted)
	assert.Equal(t, int64(100), res.Tournament.Metrics.TotalStaked)
	assert.Equal(t, 100.0, res.Tournament.Metrics.PrizePool)
	assert.Equal(t, int64(10), res.Tournament.Metrics.ReputationBonuses["0xhuman00"])

	res, err = f.tournaments.RecordMatchResult(ctx, tour.ID, 1, first.Matches[1].ExternalMatchID, "0xhuman01")
	require.NoError(t, err)
	assert.True(t, res.RoundCompleted)
	assert.Equal(t, 2, res.Tournament.CurrentRoundNumber)
	require.Len(t, res.AdvancingPlayers, 2)
	assert.Equal(t, "0xhuman03", res.AdvancingPlayers[0].Address)
	assert.Equal(t, "0xhuman01", res.AdvancingPlayers[1].Address)

	seeded, err := f.tournaments.SeedNextRound(ctx, tour.ID, res.AdvancingPlayers)
	require.NoError(t, err)
	assert.Equal(t, 2, seeded.RoundNumber)
	require.Len(t, seeded.Matches, 1)
	final := seeded.Matches[0]
	assert.Equal(t, 3, final.Sequence)
	assert.Equal(t, "0xhuman01", final.SeedA.Address)
	assert.Equal(t, "0xhuman03", final.SeedB.Address)
	assert.Equal(t, &models.MatchSource{Round: 1, Sequence: 2}, final.SourceA)
	assert.Equal(t, &models.MatchSource{Round: 1, Sequence: 1}, final.SourceB)
	assert.Equal(t, "tournament_"+tour.ID+"_2_3", final.ExternalMatchID)

	res, err = f.tournaments.RecordMatchResult(ctx, tour.ID, 2, final.ExternalMatchID, "0xhuman03")
	require.NoError(t, err)
	assert.True(t, res.TournamentCompleted)

	done := res.Tournament
	assert.Equal(t, models.TournamentStatusCompleted, done.Status)
	assert.NotNil(t, done.CompletedAt)
	assert.Equal(t, int64(300), done.Metrics.TotalStaked)
	assert.Equal(t, 350.0, done.Metrics.PrizePool)
	require.NotNil(t, done.Metrics.WinnerReward)
	require.NotNil(t, done.Metrics.RunnerUpReward)
	assert.Equal(t, models.Reward{Address: "0xhuman03", Amount: 210}, *done.Metrics.WinnerReward)
	assert.Equal(t, models.Reward{Address: "0xhuman01", Amount: 105}, *done.Metrics.RunnerUpReward)
	assert.Equal(t, int64(50), done.Metrics.ReputationBonuses["0xhuman03"])
	assert.Equal(t, int64(50), done.Metrics.ReputationBonuses["0xhuman01"])
	assert.Equal(t, []string{tour.ID}, f.archiver.archived)
}

func TestOddRosterByeAdvances(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	tour := f.create(t, humans(3))

	res := f.playRound(t, tour.ID, 1)
	require.True(t, res.RoundCompleted)
	require.Len(t, res.AdvancingPlayers, 2)
	assert.Equal(t, "0xhuman00", res.AdvancingPlayers[0].Address)
	assert.Equal(t, "0xhuman02", res.AdvancingPlayers[1].Address)

	_, err := f.tournaments.SeedNextRound(ctx, tour.ID, res.AdvancingPlayers)
	require.NoError(t, err)
	res = f.playRound(t, tour.ID, 2)

	done := res.Tournament
	assert.Equal(t, models.TournamentStatusCompleted, done.Status)
	assert.Equal(t, int64(200), done.Metrics.TotalStaked)
	assert.Equal(t, 250.0, done.Metrics.PrizePool)
	assert.Equal(t, int64(150), done.Metrics.WinnerReward.Amount)
	assert.Equal(t, "0xhuman00", done.Metrics.WinnerReward.Address)
	assert.Equal(t, int64(75), done.Metrics.RunnerUpReward.Amount)
}

func TestPrizePoolNeverDecreases(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	tour := f.create(t, humans(8))

	pool := 0.0
	staked := int64(0)
	for roundNumber := 1; ; roundNumber++ {
		current, err := f.tournaments.MaterializeRoundMatches(ctx, tour.ID, roundNumber)
		require.NoError(t, err)
		round, _ := current.Round(roundNumber)

		var res *RecordResult
		for _, m := range round.Matches {
			res, err = f.tournaments.RecordMatchResult(ctx, tour.ID, roundNumber, m.ExternalMatchID, m.SeedB.Address)
			require.NoError(t, err)
			assert.GreaterOrEqual(t, res.Tournament.Metrics.PrizePool, pool)
			assert.GreaterOrEqual(t, res.Tournament.Metrics.TotalStaked, staked)
			pool = res.Tournament.Metrics.PrizePool
			staked = res.Tournament.Metrics.TotalStaked
		}
		if res.TournamentCompleted {
			break
		}
		_, err = f.tournaments.SeedNextRound(ctx, tour.ID, res.AdvancingPlayers)
		require.NoError(t, err)
	}

	assert.Equal(t, int64(700), staked)
	assert.Equal(t, 900.0, pool)
}

func TestRecordMatchResultIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	tour := f.create(t, humans(4))
	tour, err := f.tournaments.MaterializeRoundMatches(ctx, tour.ID, 1)
	require.NoError(t, err)
	matchID := tour.Rounds[0].Matches[0].ExternalMatchID

	first, err := f.tournaments.RecordMatchResult(ctx, tour.ID, 1, matchID, "0xhuman00")
	require.NoError(t, err)
	saves, updates := f.repo.saveCount(), f.notifier.updateCount()

	again, err := f.tournaments.RecordMatchResult(ctx, tour.ID, 1, matchID, strings.ToUpper("0xhuman00"))
	require.NoError(t, err)
	assert.Equal(t, saves, f.repo.saveCount())
	assert.Equal(t, updates, f.notifier.updateCount())
	assert.Equal(t, first.Tournament.Metrics, again.Tournament.Metrics)

	_, err = f.tournaments.RecordMatchResult(ctx, tour.ID, 1, matchID, "0xhuman03")
	assert.ErrorIs(t, err, ErrMatchAlreadyCompleted)
	assert.ErrorIs(t, err, ErrValidationFailed)
}

func TestRecordMatchResultRejectsInvalidInput(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	tour := f.create(t, humans(4))
	tour, err := f.tournaments.MaterializeRoundMatches(ctx, tour.ID, 1)
	require.NoError(t, err)
	matchID := tour.Rounds[0].Matches[0].ExternalMatchID

	_, err = f.tournaments.RecordMatchResult(ctx, tour.ID, 1, matchID, "0xhuman01")
	assert.ErrorIs(t, err, ErrInvalidWinner)
	assert.ErrorIs(t, err, ErrValidationFailed)

	_, err = f.tournaments.RecordMatchResult(ctx, tour.ID, 1, "nope", "0xhuman00")
	assert.ErrorIs(t, err, ErrMatchNotFound)

	_, err = f.tournaments.RecordMatchResultForSide(ctx, tour.ID, 1, matchID, "C")
	assert.ErrorIs(t, err, ErrInvalidWinner)

	_, err = f.tournaments.RecordMatchResult(ctx, tour.ID, 4, matchID, "0xhuman00")
	assert.ErrorIs(t, err, ErrRoundNotFound)

	_, err = f.tournaments.RecordMatchResult(ctx, "missing", 1, matchID, "0xhuman00")
	assert.ErrorIs(t, err, ErrTournamentNotFound)

	stored, err := f.tournaments.GetTournament(ctx, tour.ID)
	require.NoError(t, err)
	assert.False(t, stored.Rounds[0].Matches[0].Decided())
	assert.Zero(t, stored.Metrics.TotalStaked)
}

func TestSeedNextRoundValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	tour := f.create(t, humans(4))

	_, err := f.tournaments.SeedNextRound(ctx, tour.ID, humans(2))
	assert.ErrorIs(t, err, ErrRoundNotCompleted)

	res := f.playRound(t, tour.ID, 1)
	require.True(t, res.RoundCompleted)

	_, err = f.tournaments.SeedNextRound(ctx, tour.ID, res.AdvancingPlayers[:1])
	assert.ErrorIs(t, err, ErrInvalidAdvancingList)

	wrong := []models.Seed{res.AdvancingPlayers[0], {Address: "0xhuman03"}}
	_, err = f.tournaments.SeedNextRound(ctx, tour.ID, wrong)
	assert.ErrorIs(t, err, ErrInvalidAdvancingList)

	// only addresses are needed, recorded seeds are used
	bare := []models.Seed{{Address: "0xHUMAN01"}, {Address: "0xhuman00"}}
	seeded, err := f.tournaments.SeedNextRound(ctx, tour.ID, bare)
	require.NoError(t, err)
	require.Len(t, seeded.Matches, 1)
	assert.Equal(t, 1000, seeded.Matches[0].SeedA.Reputation)
	assert.Equal(t, 1010, seeded.Matches[0].SeedB.Reputation)
	notified := len(f.notifier.seeded)

	again, err := f.tournaments.SeedNextRound(ctx, tour.ID, bare)
	require.NoError(t, err)
	assert.Equal(t, seeded.Matches[0].ExternalMatchID, again.Matches[0].ExternalMatchID)
	assert.Len(t, f.notifier.seeded, notified)
}

func TestConcurrentResultsAreSerialized(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	tour := f.create(t, humans(16))
	tour, err := f.tournaments.MaterializeRoundMatches(ctx, tour.ID, 1)
	require.NoError(t, err)

	var wg sync.WaitGroup
	errs := make([]error, len(tour.Rounds[0].Matches))
	for i, m := range tour.Rounds[0].Matches {
		wg.Add(1)
		go func(i int, m models.Match) {
			defer wg.Done()
			_, errs[i] = f.tournaments.RecordMatchResult(ctx, tour.ID, 1, m.ExternalMatchID, m.SeedA.Address)
		}(i, m)
	}
	wg.Wait()
	for _, err := range errs {
		require.NoError(t, err)
	}

	stored, err := f.tournaments.GetTournament(ctx, tour.ID)
	require.NoError(t, err)
	assert.True(t, stored.Rounds[0].Completed())
	assert.Equal(t, int64(800), stored.Metrics.TotalStaked)
	assert.Equal(t, int64(10), stored.Version)
	assert.Equal(t, 2, stored.CurrentRoundNumber)
	assert.Zero(t, f.tournaments.locks.size())
}

func TestNotifierFailurePropagatesAfterPersisting(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	tour := f.create(t, humans(2))
	tour, err := f.tournaments.MaterializeRoundMatches(ctx, tour.ID, 1)
	require.NoError(t, err)

	boom := errors.New("socket closed")
	f.notifier.failUpdates = boom
	_, err = f.tournaments.RecordMatchResult(ctx, tour.ID, 1, tour.Rounds[0].Matches[0].ExternalMatchID, "0xhuman01")
	assert.ErrorIs(t, err, boom)

	stored, err := f.tournaments.GetTournament(ctx, tour.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TournamentStatusCompleted, stored.Status)
}

func TestPersistenceFailureSurfaces(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	tour := f.create(t, humans(2))
	tour, err := f.tournaments.MaterializeRoundMatches(ctx, tour.ID, 1)
	require.NoError(t, err)

	f.repo.failAt = f.repo.saveCount() + 1
	f.repo.failErr = errStoreDown
	_, err = f.tournaments.RecordMatchResult(ctx, tour.ID, 1, tour.Rounds[0].Matches[0].ExternalMatchID, "0xhuman01")
	assert.ErrorIs(t, err, errStoreDown)
	assert.Empty(t, f.archiver.archived)
}

func TestScheduleRematch(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	tour := f.create(t, humans(2))
	tour, err := f.tournaments.MaterializeRoundMatches(ctx, tour.ID, 1)
	require.NoError(t, err)

	tour, err = f.tournaments.ScheduleRematch(ctx, tour.ID, 1, 1)
	require.NoError(t, err)
	m := tour.Rounds[0].Matches[0]
	assert.Equal(t, 1, m.Rematches)
	assert.Equal(t, "tournament_"+tour.ID+"_1_1_r1", m.ExternalMatchID)
	assert.Equal(t, models.MatchStatusPending, m.Status)

	record, err := f.matchRepo.GetByID(ctx, m.ExternalMatchID)
	require.NoError(t, err)
	assert.Equal(t, 1, record.Rematch)

	last := f.notifier.seeded[len(f.notifier.seeded)-1]
	assert.Equal(t, 1, last.round)
	assert.Len(t, last.matches, 1)

	_, err = f.tournaments.ScheduleRematch(ctx, tour.ID, 1, 7)
	assert.ErrorIs(t, err, ErrMatchNotFound)

	_, err = f.tournaments.RecordMatchResult(ctx, tour.ID, 1, m.ExternalMatchID, "0xhuman00")
	require.NoError(t, err)
	_, err = f.tournaments.ScheduleRematch(ctx, tour.ID, 1, 1)
	assert.ErrorIs(t, err, ErrTournamentNotActive)
}

func TestGetCurrentTournament(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.tournaments.GetCurrentTournament(ctx)
	assert.ErrorIs(t, err, ErrTournamentNotFound)

	tour := f.create(t, humans(2))
	current, err := f.tournaments.GetCurrentTournament(ctx)
	require.NoError(t, err)
	assert.Equal(t, tour.ID, current.ID)

	list, err := f.tournaments.ListInProgress(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestMarkMatchInProgressOnlyMovesPendingSlots(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	tour := f.create(t, humans(3))
	tour, err := f.tournaments.MaterializeRoundMatches(ctx, tour.ID, 1)
	require.NoError(t, err)
	slot := tour.Rounds[0].Matches[0]
	require.False(t, slot.IsBye)

	marked, err := f.tournaments.MarkMatchInProgress(ctx, tour.ID, 1, slot.ExternalMatchID)
	require.NoError(t, err)
	assert.Equal(t, models.MatchStatusInProgress, marked.Rounds[0].Matches[0].Status)

	saves := f.repo.saveCount()
	again, err := f.tournaments.MarkMatchInProgress(ctx, tour.ID, 1, slot.ExternalMatchID)
	require.NoError(t, err)
	assert.Equal(t, saves, f.repo.saveCount())
	assert.Equal(t, marked.Version, again.Version)

	_, err = f.tournaments.RecordMatchResult(ctx, tour.ID, 1, slot.ExternalMatchID, slot.SeedA.Address)
	require.NoError(t, err)
	done, err := f.tournaments.MarkMatchInProgress(ctx, tour.ID, 1, slot.ExternalMatchID)
	require.NoError(t, err)
	assert.Equal(t, models.MatchStatusCompleted, done.Rounds[0].Matches[0].Status)

	_, err = f.tournaments.MarkMatchInProgress(ctx, tour.ID, 1, "nope")
	assert.ErrorIs(t, err, ErrMatchNotFound)
}
