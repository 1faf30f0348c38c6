package brackets

import (
	"context"

	"github.com/Dosada05/trust-tournament/models"
)

type GenerateBracketParams struct {
	Seeds []models.Seed
	// Stake is assigned to every non-bye match.
	Stake int64
}

type BracketGenerator interface {
	GenerateBracket(ctx context.Context, params GenerateBracketParams) ([]models.Round, error)

	// SeedRound fills a round from the winners of the previous one.
	SeedRound(roundNumber, firstSequence int, seeds []models.Seed, stake int64) models.Round

	GetName() string
}
