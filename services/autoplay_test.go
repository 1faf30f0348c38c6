package services

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/Dosada05/trust-tournament/models"
	"github.com/Dosada05/trust-tournament/payoff"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPlayBotMatch(t *testing.T) {
	fb := newFakeBots()
	fb.add("0xa", payoff.Cooperate)
	fb.add("0xb", payoff.Betray)
	a := models.Seed{Address: "0xa", Reputation: 1000}
	b := models.Seed{Address: "0xb", Reputation: 900}

	play := playBotMatch(fb, a, b)
	assert.Equal(t, models.SideB, play.side)
	assert.Zero(t, play.replays)
	assert.False(t, play.tieBreak)
	assert.Equal(t, 2, fb.decisions)
	assert.Equal(t, []bool{false}, fb.outcomes["0xa"])
	assert.Equal(t, []bool{true}, fb.outcomes["0xb"])
	assert.Equal(t, []payoff.Choice{payoff.Betray}, fb.seen["0xa"])
}

func TestPlayBotMatchBreaksTies(t *testing.T) {
	fb := newFakeBots()
	fb.add("0xa", payoff.Cooperate)
	fb.add("0xb", payoff.Cooperate)

	play := playBotMatch(fb, models.Seed{Address: "0xa", Reputation: 1000}, models.Seed{Address: "0xb", Reputation: 1200})
	assert.True(t, play.tieBreak)
	assert.Equal(t, maxBotRematches, play.replays)
	assert.Equal(t, models.SideB, play.side)
	assert.Equal(t, 2*(maxBotRematches+1), fb.decisions)

	play = playBotMatch(fb, models.Seed{Address: "0xa", Reputation: 1000}, models.Seed{Address: "0xb", Reputation: 1000})
	assert.Equal(t, models.SideA, play.side)
}

func TestAutoPlayAllBotTournamentCompletes(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	tour := f.create(t, f.botSeeds(6, payoff.Betray))

	done, err := f.tournaments.AutoPlayBotOnlyRounds(ctx, tour.ID, 1)
	require.NoError(t, err)

	assert.Equal(t, models.TournamentStatusCompleted, done.Status)
	require.Len(t, done.Rounds, 3)
	for _, r := range done.Rounds {
		assert.True(t, r.Completed(), "round %d", r.Number)
	}
	require.NotNil(t, done.Metrics.WinnerReward)
	assert.Equal(t, "0xbot05", done.Metrics.WinnerReward.Address)
	assert.Equal(t, "0xbot04", done.Metrics.RunnerUpReward.Address)
	assert.Equal(t, int64(500), done.Metrics.TotalStaked)
	assert.Equal(t, 650.0, done.Metrics.PrizePool)
	assert.Equal(t, int64(390), done.Metrics.WinnerReward.Amount)
	assert.Equal(t, int64(195), done.Metrics.RunnerUpReward.Amount)

	assert.Equal(t, 3, f.bots.reweights)
	assert.Equal(t, []string{tour.ID}, f.archiver.archived)

	record, err := f.matchRepo.GetByID(ctx, "tournament_"+tour.ID+"_1_1")
	require.NoError(t, err)
	assert.Equal(t, models.MatchRecordResolved, record.Status)
	assert.Equal(t, models.WinnerPlayer2, record.Winner)
	assert.True(t, strings.HasSuffix(record.Description, "(decided by reputation)"))
	require.NotNil(t, record.Player1.Choice)
	assert.Equal(t, int(payoff.Betray), *record.Player1.Choice)

	stored, err := f.tournaments.GetTournament(ctx, tour.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TournamentStatusCompleted, stored.Status)

	// завершённый турнир больше не трогается
	again, err := f.tournaments.AutoPlayBotOnlyRounds(ctx, tour.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, stored.Version, again.Version)
}

func TestAutoPlaySeedsBotOnlyFollowUpRound(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	bots := f.botSeeds(2, payoff.Betray)
	people := []models.Seed{
		{Address: "0xhuman00", Reputation: 1100},
		{Address: "0xhuman01", Reputation: 1110},
	}
	tour := f.create(t, append(people, bots...))

	// ботам первый раунд не достаётся целиком
	tour, err := f.tournaments.AutoPlayBotOnlyRounds(ctx, tour.ID, 1)
	require.NoError(t, err)
	assert.Zero(t, f.bots.decisions)

	tour, err = f.tournaments.MaterializeRoundMatches(ctx, tour.ID, 1)
	require.NoError(t, err)
	for _, m := range tour.Rounds[0].Matches {
		_, err := f.tournaments.RecordMatchResult(ctx, tour.ID, 1, m.ExternalMatchID, m.SeedA.Address)
		require.NoError(t, err)
	}

	done, err := f.tournaments.AutoPlayBotOnlyRounds(ctx, tour.ID, 2)
	require.NoError(t, err)
	assert.Equal(t, models.TournamentStatusCompleted, done.Status)
	assert.Equal(t, "0xbot01", done.Metrics.WinnerReward.Address)
	last := f.notifier.seeded[len(f.notifier.seeded)-1]
	assert.Equal(t, 2, last.round)
}

func TestAutoPlayPublishesSeededRound(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	// человек получает bye, первый раунд целиком ботовый
	seeds := append(f.botSeeds(2, payoff.Betray), models.Seed{Address: "0xhuman00", Reputation: 2000})
	tour := f.create(t, seeds)

	tour, err := f.tournaments.AutoPlayBotOnlyRounds(ctx, tour.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, models.TournamentStatusInProgress, tour.Status)
	assert.Equal(t, 2, tour.CurrentRoundNumber)
	require.True(t, tour.Rounds[1].Seeded)

	last := f.notifier.lastUpdated()
	require.NotNil(t, last)
	assert.Equal(t, tour.Version, last.Version)
	require.Len(t, last.Rounds, 2)
	assert.True(t, last.Rounds[1].Seeded)
	assert.NotEmpty(t, last.Rounds[1].Matches[0].ExternalMatchID)
}

func TestAutoPlayStopsAtHumanMatch(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	bots := f.botSeeds(2, payoff.Betray)
	people := []models.Seed{
		{Address: "0xhuman00", Reputation: 1100},
		{Address: "0xhuman01", Reputation: 1110},
	}
	tour := f.create(t, append(people, bots...))
	tour, err := f.tournaments.MaterializeRoundMatches(ctx, tour.ID, 1)
	require.NoError(t, err)

	// первый слот: бот против человека, человек побеждает
	first := tour.Rounds[0].Matches[0]
	require.False(t, f.bots.IsBot(first.SeedB.Address))
	_, err = f.tournaments.RecordMatchResult(ctx, tour.ID, 1, first.ExternalMatchID, first.SeedB.Address)
	require.NoError(t, err)
	second := tour.Rounds[0].Matches[1]
	_, err = f.tournaments.RecordMatchResult(ctx, tour.ID, 1, second.ExternalMatchID, second.SeedA.Address)
	require.NoError(t, err)

	tour, err = f.tournaments.AutoPlayBotOnlyRounds(ctx, tour.ID, 2)
	require.NoError(t, err)
	assert.Equal(t, models.TournamentStatusInProgress, tour.Status)
	final := tour.Rounds[1]
	assert.True(t, final.Seeded)
	assert.NotEmpty(t, final.Matches[0].ExternalMatchID)
	assert.False(t, final.Completed())
	assert.Zero(t, f.bots.decisions)
}

func TestAutoPlaySwallowsNotificationFailures(t *testing.T) {
	f := newFixture(t)
	tour := f.create(t, f.botSeeds(4, payoff.Cooperate))
	f.notifier.failUpdates = errors.New("hub down")
	f.notifier.failSeeded = errors.New("hub down")

	done, err := f.tournaments.AutoPlayBotOnlyRounds(context.Background(), tour.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, models.TournamentStatusCompleted, done.Status)
}

func TestAutoPlayAbortsOnPersistenceFailure(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	tour := f.create(t, f.botSeeds(4, payoff.Betray))

	// материализация сохраняется, первый результат уже нет
	f.repo.failAt = f.repo.saveCount() + 2
	f.repo.failErr = errStoreDown

	_, err := f.tournaments.AutoPlayBotOnlyRounds(ctx, tour.ID, 1)
	assert.ErrorIs(t, err, errStoreDown)

	stored, err := f.tournaments.GetTournament(ctx, tour.ID)
	require.NoError(t, err)
	for _, m := range stored.Rounds[0].Matches {
		assert.False(t, m.Decided())
	}
	assert.Zero(t, stored.Metrics.TotalStaked)
	assert.Empty(t, f.archiver.archived)
}

func TestAutoPlayUnknownRound(t *testing.T) {
	f := newFixture(t)
	tour := f.create(t, f.botSeeds(2, payoff.Betray))

	_, err := f.tournaments.AutoPlayBotOnlyRounds(context.Background(), tour.ID, 5)
	assert.ErrorIs(t, err, ErrRoundNotFound)

	_, err = f.tournaments.AutoPlayBotOnlyRounds(context.Background(), "missing", 1)
	assert.ErrorIs(t, err, ErrTournamentNotFound)
}
