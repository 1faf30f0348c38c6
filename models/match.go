package models

import "time"

type MatchRecordStatus string

const (
	MatchRecordPending    MatchRecordStatus = "pending"
	MatchRecordInProgress MatchRecordStatus = "in-progress"
	MatchRecordResolved   MatchRecordStatus = "resolved"
)

type MatchWinner string

const (
	WinnerPlayer1 MatchWinner = "player1"
	WinnerPlayer2 MatchWinner = "player2"
	WinnerTie     MatchWinner = "tie"
)

// MatchPlayer is one side of a played match.
type MatchPlayer struct {
	Address          string `json:"address" bson:"address"`
	Username         string `json:"username" bson:"username"`
	Reputation       int    `json:"reputation" bson:"reputation"`
	Choice           *int   `json:"choice,omitempty" bson:"choice,omitempty"`
	TokensEarned     int64  `json:"tokens_earned" bson:"tokensEarned"`
	ReputationChange int    `json:"reputation_change" bson:"reputationChange"`
}

// MatchRecord is the standalone document for a materialized bracket slot.
type MatchRecord struct {
	ID           string            `json:"id" bson:"_id"`
	TournamentID string            `json:"tournament_id" bson:"tournamentId"`
	Round        int               `json:"round" bson:"round"`
	Sequence     int               `json:"sequence" bson:"sequence"`
	Rematch      int               `json:"rematch,omitempty" bson:"rematch,omitempty"`
	Player1      MatchPlayer       `json:"player1" bson:"player1"`
	Player2      MatchPlayer       `json:"player2" bson:"player2"`
	Winner       MatchWinner       `json:"winner,omitempty" bson:"winner,omitempty"`
	Status       MatchRecordStatus `json:"status" bson:"status"`
	Stake        int64             `json:"stake" bson:"stake"`
	Description  string            `json:"description,omitempty" bson:"description,omitempty"`
	CreatedAt    time.Time         `json:"created_at" bson:"createdAt"`
	ResolvedAt   *time.Time        `json:"resolved_at,omitempty" bson:"resolvedAt,omitempty"`
	UpdatedAt    time.Time         `json:"updated_at" bson:"updatedAt"`
}

// Side returns the player entry for an address, player1 first.
func (m *MatchRecord) Side(address string) (*MatchPlayer, *MatchPlayer, bool) {
	switch {
	case SameAddress(m.Player1.Address, address):
		return &m.Player1, &m.Player2, true
	case SameAddress(m.Player2.Address, address):
		return &m.Player2, &m.Player1, true
	}
	return nil, nil, false
}
