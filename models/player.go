package models

import "time"

const DefaultReputation = 1000

// Player хранит накопленную статистику человека-участника.
type Player struct {
	Address         string    `json:"address" bson:"_id"`
	Username        string    `json:"username" bson:"username"`
	Reputation      int       `json:"reputation" bson:"reputation"`
	TokensAvailable int64     `json:"tokens_available" bson:"tokensAvailable"`
	TotalEarnings   int64     `json:"total_earnings" bson:"totalEarnings"`
	MatchesPlayed   int       `json:"matches_played" bson:"matchesPlayed"`
	MatchesWon      int       `json:"matches_won" bson:"matchesWon"`
	Cooperations    int       `json:"cooperations" bson:"cooperations"`
	Betrayals       int       `json:"betrayals" bson:"betrayals"`
	Abstentions     int       `json:"abstentions" bson:"abstentions"`
	LastActiveAt    time.Time `json:"last_active_at" bson:"lastActiveAt"`
	CreatedAt       time.Time `json:"created_at" bson:"createdAt"`
}

// WinRate is a percentage in [0, 100].
func (p *Player) WinRate() float64 {
	if p.MatchesPlayed == 0 {
		return 0
	}
	return float64(p.MatchesWon) / float64(p.MatchesPlayed) * 100
}

// PlayerSort names the leaderboard ordering.
type PlayerSort string

const (
	SortByReputation PlayerSort = "reputation"
	SortByEarnings   PlayerSort = "earnings"
	SortByWins       PlayerSort = "wins"
)

func (s PlayerSort) Valid() bool {
	switch s {
	case SortByReputation, SortByEarnings, SortByWins:
		return true
	}
	return false
}
