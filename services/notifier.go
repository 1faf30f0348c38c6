package services

import (
	"context"

	"github.com/Dosada05/trust-tournament/models"
	"github.com/Dosada05/trust-tournament/payoff"
)

// Notifier is implemented by the transport layer (websocket hub).
type Notifier interface {
	TournamentUpdated(ctx context.Context, t *models.Tournament) error
	RoundSeeded(ctx context.Context, t *models.Tournament, roundNumber int, matches []models.Match) error
}

// Archiver stores a completed tournament outside the primary store.
type Archiver interface {
	ArchiveTournament(ctx context.Context, t *models.Tournament) error
}

// BotEngine is the part of the bot engine the services rely on.
type BotEngine interface {
	IsBot(address string) bool
	Decide(botAddress, opponentAddress string, opponentReputation int) payoff.Choice
	RecordChoice(botAddress, opponentAddress string, choice payoff.Choice)
	RecordOutcome(botAddress string, won bool)
	ReweightStrategies()
}

type nopNotifier struct{}

func (nopNotifier) TournamentUpdated(context.Context, *models.Tournament) error { return nil }

func (nopNotifier) RoundSeeded(context.Context, *models.Tournament, int, []models.Match) error {
	return nil
}
