package services

import (
	"math"

	"github.com/Dosada05/trust-tournament/models"
)

const (
	winnerShare            = 0.6
	runnerUpShare          = 0.3
	slotBonusShare         = 0.1
	winnerReputation       = 50
	runnerUpReputation     = 25
	defaultRoundMultiplier = 1.0
)

var roundMultipliers = map[int]float64{
	1: 1.0,
	2: 1.5,
	3: 2.0,
	4: 3.0,
	5: 4.0,
	6: 5.0,
}

// RoundMultiplier scales a match stake by how deep into the bracket it is.
func RoundMultiplier(round int) float64 {
	if m, ok := roundMultipliers[round]; ok {
		return m
	}
	return defaultRoundMultiplier
}

// applyMatchReward books one resolved match. The reputation bonus goes to the
// slot's seed A, whoever won.
func applyMatchReward(metrics *models.Metrics, round int, match *models.Match) {
	if metrics.ReputationBonuses == nil {
		metrics.ReputationBonuses = make(map[string]int64)
	}
	weighted := float64(match.Stake) * RoundMultiplier(round)
	metrics.TotalStaked += match.Stake
	metrics.PrizePool += weighted
	if match.SeedA != nil {
		key := models.NormalizeAddress(match.SeedA.Address)
		metrics.ReputationBonuses[key] += int64(math.Floor(weighted * slotBonusShare))
	}
}

// applyFinalPayout sets both rewards from the prize pool at this moment.
// The remaining 10% stays unallocated.
func applyFinalPayout(metrics *models.Metrics, winner, runnerUp models.Seed) {
	if metrics.ReputationBonuses == nil {
		metrics.ReputationBonuses = make(map[string]int64)
	}
	metrics.WinnerReward = &models.Reward{
		Address: winner.Address,
		Amount:  int64(math.Floor(metrics.PrizePool * winnerShare)),
	}
	metrics.RunnerUpReward = &models.Reward{
		Address: runnerUp.Address,
		Amount:  int64(math.Floor(metrics.PrizePool * runnerUpShare)),
	}
	metrics.ReputationBonuses[models.NormalizeAddress(winner.Address)] += winnerReputation
	metrics.ReputationBonuses[models.NormalizeAddress(runnerUp.Address)] += runnerUpReputation
}
