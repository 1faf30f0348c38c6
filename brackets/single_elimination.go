package brackets

import (
	"context"
	"errors"
	"math/bits"
	"sort"

	"github.com/Dosada05/trust-tournament/models"
)

var ErrNotEnoughSeeds = errors.New("not enough seeds to generate a single elimination bracket (minimum 2)")

// Pairing is one slot produced by PairSeeds. B is nil for a bye.
type Pairing struct {
	A models.Seed
	B *models.Seed
}

func (p Pairing) IsBye() bool { return p.B == nil }

// PairSeeds sorts seeds by ascending reputation (stable, so roster order breaks
// ties). With an odd count the highest seed is popped first and gets a bye;
// the rest pair lowest with highest. The bye, if any, is the last pairing.
func PairSeeds(seeds []models.Seed) []Pairing {
	sorted := make([]models.Seed, len(seeds))
	copy(sorted, seeds)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Reputation < sorted[j].Reputation
	})

	var bye *models.Seed
	if len(sorted)%2 != 0 {
		last := sorted[len(sorted)-1]
		bye = &last
		sorted = sorted[:len(sorted)-1]
	}

	pairings := make([]Pairing, 0, len(sorted)/2+1)
	for lo, hi := 0, len(sorted)-1; lo < hi; lo, hi = lo+1, hi-1 {
		b := sorted[hi]
		pairings = append(pairings, Pairing{A: sorted[lo], B: &b})
	}
	if bye != nil {
		pairings = append(pairings, Pairing{A: *bye})
	}
	return pairings
}

// RoundCount is ceil(log2(n)) for n >= 2.
func RoundCount(n int) int {
	if n < 2 {
		return 0
	}
	return bits.Len(uint(n - 1))
}

type SingleEliminationGenerator struct{}

func NewSingleEliminationGenerator() BracketGenerator {
	return &SingleEliminationGenerator{}
}

func (g *SingleEliminationGenerator) GetName() string {
	return "SingleElimination"
}

// GenerateBracket builds every round up front. Round 1 is seeded; every later
// round is a placeholder with one slot per pair of incoming winners, to be
// filled by SeedRound. Sequence numbers run across the whole bracket.
func (g *SingleEliminationGenerator) GenerateBracket(ctx context.Context, params GenerateBracketParams) ([]models.Round, error) {
	n := len(params.Seeds)
	if n < 2 {
		return nil, ErrNotEnoughSeeds
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	numRounds := RoundCount(n)
	rounds := make([]models.Round, 0, numRounds)

	first := g.SeedRound(1, 1, params.Seeds, params.Stake)
	rounds = append(rounds, first)

	nextSequence := 1 + len(first.Matches)
	remaining := len(first.Matches)
	for r := 2; remaining > 1; r++ {
		slots := (remaining + 1) / 2
		round := models.Round{Number: r, Matches: make([]models.Match, slots)}
		for i := range round.Matches {
			round.Matches[i] = models.Match{
				Sequence: nextSequence,
				Status:   models.MatchStatusPending,
				Stake:    params.Stake,
			}
			nextSequence++
		}
		rounds = append(rounds, round)
		remaining = slots
	}

	if len(rounds) != numRounds {
		return nil, errors.New("internal error: generated round count does not match ceil(log2(n))")
	}
	return rounds, nil
}

// SeedRound builds concrete pairings for a round.
func (g *SingleEliminationGenerator) SeedRound(roundNumber, firstSequence int, seeds []models.Seed, stake int64) models.Round {
	pairings := PairSeeds(seeds)
	round := models.Round{
		Number:  roundNumber,
		Seeded:  true,
		Matches: make([]models.Match, 0, len(pairings)),
	}

	for i, p := range pairings {
		a := p.A
		m := models.Match{
			Sequence: firstSequence + i,
			SeedA:    &a,
			Status:   models.MatchStatusPending,
			Stake:    stake,
		}
		if p.IsBye() {
			m.IsBye = true
			m.Stake = 0
			m.Status = models.MatchStatusCompleted
			m.WinnerAddress = a.Address
			m.WinnerSide = models.SideA
		} else {
			b := *p.B
			m.SeedB = &b
		}
		round.Matches = append(round.Matches, m)
	}
	return round
}
