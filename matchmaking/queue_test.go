package matchmaking

import (
	"errors"
	"fmt"
	"testing"

	"github.com/Dosada05/trust-tournament/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seed(addr string, rep int) models.Seed {
	return models.Seed{Address: addr, DisplayName: addr, Reputation: rep}
}

func counterFactory() BotFactory {
	n := 0
	return func() (models.Seed, error) {
		n++
		return seed(fmt.Sprintf("0xbot%d", n), 1000), nil
	}
}

func TestAddParticipantHumansAreIdempotent(t *testing.T) {
	q := NewQueue()
	require.NoError(t, q.AddParticipant(seed("0xAAA", 1000), false))
	require.NoError(t, q.AddParticipant(seed("0xbbb", 1000), false))
	require.NoError(t, q.AddParticipant(seed("0xaaa", 1300), false))

	assert.Equal(t, 2, q.Count())
	roster := q.Roster()
	require.Len(t, roster, 2)
	assert.Equal(t, 1300, roster[0].Reputation, "last write wins, position kept")
	assert.Equal(t, "0xbbb", roster[1].Address)
}

func TestAddParticipantRejectsEmptyAddress(t *testing.T) {
	q := NewQueue()
	assert.ErrorIs(t, q.AddParticipant(seed("  ", 1000), false), ErrInvalidParticipant)
}

func TestBotsAllowDuplicateAddresses(t *testing.T) {
	q := NewQueue()
	require.NoError(t, q.AddParticipant(seed("0xctrl", 1000), true))
	require.NoError(t, q.AddParticipant(seed("0xctrl", 1100), true))
	assert.Equal(t, 2, q.Count())

	// боты не удаляются по одному
	assert.False(t, q.RemoveParticipant("0xctrl"))
	assert.Equal(t, 2, q.Count())
}

func TestRemoveParticipant(t *testing.T) {
	q := NewQueue()
	require.NoError(t, q.AddParticipant(seed("0xaaa", 1000), false))
	require.NoError(t, q.AddParticipant(seed("0xbbb", 1000), false))

	assert.True(t, q.RemoveParticipant("0xAAA"))
	assert.False(t, q.RemoveParticipant("0xaaa"))
	assert.Equal(t, []models.Seed{seed("0xbbb", 1000)}, q.Roster())
}

func TestRosterPutsHumansBeforeBots(t *testing.T) {
	q := NewQueue()
	require.NoError(t, q.AddParticipant(seed("0xbot", 1000), true))
	require.NoError(t, q.AddParticipant(seed("0xh1", 1000), false))
	require.NoError(t, q.AddParticipant(seed("0xh2", 1000), false))

	roster := q.Roster()
	require.Len(t, roster, 3)
	assert.Equal(t, "0xh1", roster[0].Address)
	assert.Equal(t, "0xh2", roster[1].Address)
	assert.Equal(t, "0xbot", roster[2].Address)
}

func TestFillWithBots(t *testing.T) {
	q := NewQueue()
	require.NoError(t, q.AddParticipant(seed("0xh1", 1000), false))

	added, err := q.FillWithBots(8, counterFactory())
	require.NoError(t, err)
	assert.Equal(t, 7, added)
	assert.Equal(t, 8, q.Count())

	added, err = q.FillWithBots(4, counterFactory())
	require.NoError(t, err)
	assert.Zero(t, added)
}

func TestFillWithBotsStopsOnStalledFactory(t *testing.T) {
	q := NewQueue()
	calls := 0
	failing := func() (models.Seed, error) {
		calls++
		return models.Seed{}, errors.New("rpc down")
	}

	_, err := q.FillWithBots(10, failing)
	require.ErrorIs(t, err, ErrBotFactoryStalled)
	assert.Equal(t, 28, calls)
	assert.Zero(t, q.Count())
}

func TestFillWithBotsSkipsEmptySeeds(t *testing.T) {
	q := NewQueue()
	n := 0
	flaky := func() (models.Seed, error) {
		n++
		if n%2 == 0 {
			return models.Seed{}, nil
		}
		return seed(fmt.Sprintf("0xbot%d", n), 1000), nil
	}

	_, err := q.FillWithBots(4, flaky)
	require.NoError(t, err)
	assert.Equal(t, 4, q.Count())
}

func TestReadiness(t *testing.T) {
	q := NewQueue()
	assert.False(t, q.AllHumansReady())

	require.NoError(t, q.AddParticipant(seed("0xh1", 1000), false))
	require.NoError(t, q.AddParticipant(seed("0xh2", 1000), false))
	assert.True(t, q.SetReady("0xH1", true))
	assert.False(t, q.AllHumansReady())
	assert.True(t, q.SetReady("0xh2", true))
	assert.True(t, q.AllHumansReady())

	// повторный вход не сбрасывает готовность
	require.NoError(t, q.AddParticipant(seed("0xh2", 1200), false))
	assert.True(t, q.AllHumansReady())

	assert.False(t, q.SetReady("0xmissing", true))
}

func TestClear(t *testing.T) {
	q := NewQueue()
	require.NoError(t, q.AddParticipant(seed("0xh1", 1000), false))
	_, err := q.FillWithBots(3, counterFactory())
	require.NoError(t, err)

	q.Clear()
	assert.Zero(t, q.Count())
	assert.Empty(t, q.Roster())
}
