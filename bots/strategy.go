package bots

import "github.com/Dosada05/trust-tournament/payoff"

type Strategy string

const (
	Cooperator Strategy = "cooperator"
	Betrayer   Strategy = "betrayer"
	Random     Strategy = "random"
	TitForTat  Strategy = "titfortat"
	Reputation Strategy = "reputation"
	Adaptive   Strategy = "adaptive"
)

// AllStrategies fixes the roulette order.
var AllStrategies = []Strategy{Cooperator, Betrayer, Random, TitForTat, Reputation, Adaptive}

func (s Strategy) Valid() bool {
	for _, known := range AllStrategies {
		if s == known {
			return true
		}
	}
	return false
}

const (
	initialScore        = 1000
	winScoreDelta       = 10
	lossScoreDelta      = -5
	adaptiveThreshold   = 1020
	reputationThreshold = 1100

	minWeight   = 0.05
	maxWeight   = 0.4
	weightScale = 1200.0
)

// baseReputation is the starting reputation of a freshly created bot.
func baseReputation(s Strategy) int {
	switch s {
	case Cooperator:
		return 1150
	case Betrayer:
		return 1050
	default:
		return 1000
	}
}

// Weights is the sampling distribution over strategies.
type Weights map[Strategy]float64

func DefaultWeights() Weights {
	return Weights{
		Cooperator: 0.2,
		Betrayer:   0.2,
		Random:     0.2,
		TitForTat:  0.15,
		Reputation: 0.15,
		Adaptive:   0.1,
	}
}

func (w Weights) clone() Weights {
	c := make(Weights, len(w))
	for k, v := range w {
		c[k] = v
	}
	return c
}

// Reweight computes the next distribution from the running scores of every bot,
// grouped by strategy. A strategy's weight is its average score / 1200 clamped
// to [0.05, 0.4]; strategies without bots keep their current weight. The result
// is normalized to sum to 1, or reset to DefaultWeights when the total is not
// positive.
func Reweight(scores map[Strategy][]int, current Weights) Weights {
	next := make(Weights, len(AllStrategies))
	total := 0.0
	for _, s := range AllStrategies {
		w := current[s]
		if group := scores[s]; len(group) > 0 {
			sum := 0
			for _, v := range group {
				sum += v
			}
			avg := float64(sum) / float64(len(group))
			w = clamp(avg/weightScale, minWeight, maxWeight)
		}
		if w < 0 {
			w = 0
		}
		next[s] = w
		total += w
	}

	if total <= 0 {
		return DefaultWeights()
	}
	for s := range next {
		next[s] /= total
	}
	return next
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// decide applies a strategy to the bot's memory. Caller holds mem.mu.
func (e *Engine) decide(mem *memory, opponent string, opponentReputation int) payoff.Choice {
	switch mem.strategy {
	case Cooperator:
		return payoff.Cooperate
	case Betrayer:
		return payoff.Betray
	case Random:
		return payoff.Choice(e.intN(3))
	case TitForTat:
		if last, ok := mem.history[opponent]; ok {
			return last
		}
		return payoff.Cooperate
	case Reputation:
		if opponentReputation >= reputationThreshold {
			return payoff.Cooperate
		}
		return payoff.Betray
	case Adaptive:
		if mem.score >= adaptiveThreshold {
			return payoff.Cooperate
		}
		return payoff.Betray
	default:
		return payoff.Cooperate
	}
}
