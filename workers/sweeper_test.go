package workers

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/Dosada05/trust-tournament/bots"
	"github.com/Dosada05/trust-tournament/models"
	"github.com/Dosada05/trust-tournament/repositories"
	"github.com/Dosada05/trust-tournament/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sweepFixture struct {
	engine      *bots.Engine
	tournaments services.TournamentService
	sweeper     *Sweeper
}

func newSweepFixture(t *testing.T) *sweepFixture {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	engine := bots.NewEngine(bots.Options{Seed: 7, Logger: logger})

	matchRepo := repositories.NewMemoryMatchRepository()
	tournaments := services.NewTournamentService(
		repositories.NewMemoryTournamentRepository(), matchRepo, nil, engine, nil, nil, 0, logger)
	players := services.NewPlayerService(repositories.NewMemoryPlayerRepository(), logger)
	matches := services.NewMatchService(matchRepo, tournaments, players, engine, logger)

	return &sweepFixture{
		engine:      engine,
		tournaments: tournaments,
		sweeper:     NewSweeper(tournaments, matches, SweeperConfig{}, logger),
	}
}

func TestSweepOnceFinishesAllBotTournament(t *testing.T) {
	f := newSweepFixture(t)
	ctx := context.Background()

	seeds := []models.Seed{
		f.engine.CreateBot(bots.Betrayer),
		f.engine.CreateBot(bots.Cooperator),
		f.engine.CreateBot(bots.Betrayer),
		f.engine.CreateBot(bots.Cooperator),
	}
	tour, err := f.tournaments.CreateFromRoster(ctx, seeds)
	require.NoError(t, err)

	advanced, err := f.sweeper.SweepOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, advanced)

	done, err := f.tournaments.GetTournament(ctx, tour.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TournamentStatusCompleted, done.Status)
	require.NotNil(t, done.Metrics.WinnerReward)

	advanced, err = f.sweeper.SweepOnce(ctx)
	require.NoError(t, err)
	assert.Zero(t, advanced)
}

// Бот-против-бота в смешанном раунде доигрывается, люди ждут.
func TestSweepOnceResolvesBotSlotInMixedRound(t *testing.T) {
	f := newSweepFixture(t)
	ctx := context.Background()

	betrayer := f.engine.CreateBot(bots.Betrayer)
	cooperator := f.engine.CreateBot(bots.Cooperator)
	seeds := []models.Seed{
		betrayer,
		{Address: "0xhuman01", Reputation: 1100},
		{Address: "0xhuman02", Reputation: 1120},
		cooperator,
	}
	tour, err := f.tournaments.CreateFromRoster(ctx, seeds)
	require.NoError(t, err)

	advanced, err := f.sweeper.SweepOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, advanced)

	current, err := f.tournaments.GetTournament(ctx, tour.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TournamentStatusInProgress, current.Status)

	var botSlot, humanSlot *models.Match
	for i := range current.Rounds[0].Matches {
		m := &current.Rounds[0].Matches[i]
		if f.engine.IsBot(m.SeedA.Address) {
			botSlot = m
		} else {
			humanSlot = m
		}
	}
	require.NotNil(t, botSlot)
	require.NotNil(t, humanSlot)
	assert.True(t, botSlot.Decided())
	assert.Equal(t, betrayer.Address, botSlot.WinnerAddress)
	assert.NotEmpty(t, humanSlot.ExternalMatchID)
	assert.False(t, humanSlot.Decided())

	advanced, err = f.sweeper.SweepOnce(ctx)
	require.NoError(t, err)
	assert.Zero(t, advanced)
}

func TestSweepOnceStopsOnCancelledContext(t *testing.T) {
	f := newSweepFixture(t)
	ctx, cancel := context.WithCancel(context.Background())

	_, err := f.tournaments.CreateFromRoster(ctx, []models.Seed{
		f.engine.CreateBot(bots.Betrayer),
		f.engine.CreateBot(bots.Betrayer),
	})
	require.NoError(t, err)

	cancel()
	_, err = f.sweeper.SweepOnce(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSweeperStartStop(t *testing.T) {
	f := newSweepFixture(t)
	require.NoError(t, f.sweeper.Start(context.Background()))
	assert.NoError(t, f.sweeper.Stop())
}
