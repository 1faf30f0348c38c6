package services

import (
	"sync"
	"testing"
	"time"

	"github.com/Dosada05/trust-tournament/models"
	"github.com/stretchr/testify/assert"
)

func TestRoundMultiplier(t *testing.T) {
	cases := map[int]float64{0: 1.0, 1: 1.0, 2: 1.5, 3: 2.0, 4: 3.0, 5: 4.0, 6: 5.0, 7: 1.0, 12: 1.0}
	for round, want := range cases {
		assert.Equal(t, want, RoundMultiplier(round), "round %d", round)
	}
}

func TestApplyMatchRewardFloorsBonus(t *testing.T) {
	var metrics models.Metrics
	m := &models.Match{Stake: 37, SeedA: &models.Seed{Address: "0xAA"}, SeedB: &models.Seed{Address: "0xbb"}}

	applyMatchReward(&metrics, 2, m)
	assert.Equal(t, int64(37), metrics.TotalStaked)
	assert.InDelta(t, 55.5, metrics.PrizePool, 1e-9)
	assert.Equal(t, int64(5), metrics.ReputationBonuses["0xaa"])
	assert.NotContains(t, metrics.ReputationBonuses, "0xbb")
}

func TestApplyFinalPayout(t *testing.T) {
	metrics := models.Metrics{PrizePool: 333}
	applyFinalPayout(&metrics, models.Seed{Address: "0xW"}, models.Seed{Address: "0xr"})

	assert.Equal(t, int64(199), metrics.WinnerReward.Amount)
	assert.Equal(t, "0xW", metrics.WinnerReward.Address)
	assert.Equal(t, int64(99), metrics.RunnerUpReward.Amount)
	assert.Equal(t, int64(50), metrics.ReputationBonuses["0xw"])
	assert.Equal(t, int64(25), metrics.ReputationBonuses["0xr"])
}

func TestKeyedLockerSerializesPerKey(t *testing.T) {
	l := newKeyedLocker()
	var mu sync.Mutex
	active, peak := 0, 0

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := l.Lock("t1")
			defer unlock()
			mu.Lock()
			active++
			if active > peak {
				peak = active
			}
			mu.Unlock()
			time.Sleep(time.Millisecond)
			mu.Lock()
			active--
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, peak)
	assert.Zero(t, l.size())

	// разные ключи не блокируют друг друга
	unlockA := l.Lock("a")
	unlockB := l.Lock("b")
	assert.Equal(t, 2, l.size())
	unlockA()
	unlockB()
	assert.Zero(t, l.size())
}
