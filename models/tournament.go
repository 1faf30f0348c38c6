package models

import "time"

// TournamentSchemaVersion is bumped whenever the persisted aggregate changes shape.
const TournamentSchemaVersion = 1

// TournamentStatus описывает жизненный цикл турнира.
type TournamentStatus string

const (
	TournamentStatusPending    TournamentStatus = "pending"
	TournamentStatusInProgress TournamentStatus = "in_progress"
	TournamentStatusCompleted  TournamentStatus = "completed"
)

// MatchStatus is the state of a bracket slot.
type MatchStatus string

const (
	MatchStatusPending    MatchStatus = "pending"
	MatchStatusInProgress MatchStatus = "in-progress"
	MatchStatusCompleted  MatchStatus = "completed"
)

// MatchSource points to the bracket slot a seed advanced from.
type MatchSource struct {
	Round    int `json:"round" bson:"round"`
	Sequence int `json:"sequence" bson:"sequence"`
}

// Match is one slot of a round. A bye has no SeedB and is completed from the start.
type Match struct {
	Sequence        int         `json:"sequence" bson:"sequence"`
	ExternalMatchID string      `json:"external_match_id,omitempty" bson:"externalMatchId,omitempty"`
	SeedA           *Seed       `json:"seed_a,omitempty" bson:"seedA,omitempty"`
	SeedB           *Seed       `json:"seed_b,omitempty" bson:"seedB,omitempty"`
	Status          MatchStatus `json:"status" bson:"status"`
	WinnerAddress   string      `json:"winner_address,omitempty" bson:"winnerAddress,omitempty"`
	// WinnerSide is "A" or "B". Needed because bots may share an address.
	WinnerSide string       `json:"winner_side,omitempty" bson:"winnerSide,omitempty"`
	IsBye      bool         `json:"is_bye" bson:"isBye"`
	Stake      int64        `json:"stake" bson:"stake"`
	SourceA    *MatchSource `json:"source_a,omitempty" bson:"sourceA,omitempty"`
	SourceB    *MatchSource `json:"source_b,omitempty" bson:"sourceB,omitempty"`
	Rematches  int          `json:"rematches,omitempty" bson:"rematches,omitempty"`
}

// Decided reports whether the slot already has a winner.
func (m *Match) Decided() bool {
	return m.IsBye || m.Status == MatchStatusCompleted
}

// Winner returns the winning seed of a decided slot.
func (m *Match) Winner() (Seed, bool) {
	if m.IsBye && m.SeedA != nil {
		return *m.SeedA, true
	}
	if m.Status != MatchStatusCompleted {
		return Seed{}, false
	}
	switch m.WinnerSide {
	case SideA:
		if m.SeedA != nil {
			return *m.SeedA, true
		}
	case SideB:
		if m.SeedB != nil {
			return *m.SeedB, true
		}
	}
	return Seed{}, false
}

// Loser returns the other seed of a completed, non-bye slot.
func (m *Match) Loser() (Seed, bool) {
	if m.IsBye || m.Status != MatchStatusCompleted || m.SeedA == nil || m.SeedB == nil {
		return Seed{}, false
	}
	if m.WinnerSide == SideA {
		return *m.SeedB, true
	}
	return *m.SeedA, true
}

const (
	SideA = "A"
	SideB = "B"
)

// Round holds the slots of one bracket round. Rounds after the first are
// created as unseeded placeholders and filled once the previous round ends.
type Round struct {
	Number  int     `json:"round_number" bson:"roundNumber"`
	Seeded  bool    `json:"seeded" bson:"seeded"`
	Matches []Match `json:"matches" bson:"matches"`
}

// Completed reports whether every slot is a bye or has a winner.
func (r *Round) Completed() bool {
	if !r.Seeded {
		return false
	}
	for i := range r.Matches {
		if !r.Matches[i].Decided() {
			return false
		}
	}
	return true
}

// Winners returns winners of decided slots in slot order.
func (r *Round) Winners() []Seed {
	winners := make([]Seed, 0, len(r.Matches))
	for i := range r.Matches {
		if w, ok := r.Matches[i].Winner(); ok {
			winners = append(winners, w)
		}
	}
	return winners
}

type Reward struct {
	Address string `json:"address" bson:"address"`
	Amount  int64  `json:"amount" bson:"amount"`
}

type Metrics struct {
	TotalStaked       int64            `json:"total_staked" bson:"totalStaked"`
	PrizePool         float64          `json:"prize_pool" bson:"prizePool"`
	ReputationBonuses map[string]int64 `json:"reputation_bonuses" bson:"reputationBonuses"`
	WinnerReward      *Reward          `json:"winner_reward,omitempty" bson:"winnerReward,omitempty"`
	RunnerUpReward    *Reward          `json:"runner_up_reward,omitempty" bson:"runnerUpReward,omitempty"`
}

// Tournament is the persisted bracket aggregate. It is always read, modified
// and written back whole; Version guards concurrent writers.
type Tournament struct {
	ID                 string           `json:"id" bson:"_id"`
	SchemaVersion      int              `json:"schema_version" bson:"schemaVersion"`
	Version            int64            `json:"version" bson:"version"`
	Status             TournamentStatus `json:"status" bson:"status"`
	CurrentRoundNumber int              `json:"current_round" bson:"currentRound"`
	Rounds             []Round          `json:"rounds" bson:"rounds"`
	Metrics            Metrics          `json:"metrics" bson:"metrics"`
	CreatedAt          time.Time        `json:"created_at" bson:"createdAt"`
	UpdatedAt          time.Time        `json:"updated_at" bson:"updatedAt"`
	CompletedAt        *time.Time       `json:"completed_at,omitempty" bson:"completedAt,omitempty"`
}

// Round returns a pointer into t.Rounds for the given 1-based number.
func (t *Tournament) Round(number int) (*Round, bool) {
	if number < 1 || number > len(t.Rounds) {
		return nil, false
	}
	r := &t.Rounds[number-1]
	if r.Number != number {
		for i := range t.Rounds {
			if t.Rounds[i].Number == number {
				return &t.Rounds[i], true
			}
		}
		return nil, false
	}
	return r, true
}

func (t *Tournament) IsFinalRound(number int) bool {
	return number == len(t.Rounds)
}

// Clone returns a deep copy, so callers never share slices with a store.
func (t *Tournament) Clone() *Tournament {
	if t == nil {
		return nil
	}
	c := *t
	c.Rounds = make([]Round, len(t.Rounds))
	for i, r := range t.Rounds {
		cr := r
		cr.Matches = make([]Match, len(r.Matches))
		for j, m := range r.Matches {
			cm := m
			if m.SeedA != nil {
				a := *m.SeedA
				cm.SeedA = &a
			}
			if m.SeedB != nil {
				b := *m.SeedB
				cm.SeedB = &b
			}
			if m.SourceA != nil {
				s := *m.SourceA
				cm.SourceA = &s
			}
			if m.SourceB != nil {
				s := *m.SourceB
				cm.SourceB = &s
			}
			cr.Matches[j] = cm
		}
		c.Rounds[i] = cr
	}
	c.Metrics.ReputationBonuses = make(map[string]int64, len(t.Metrics.ReputationBonuses))
	for k, v := range t.Metrics.ReputationBonuses {
		c.Metrics.ReputationBonuses[k] = v
	}
	if t.Metrics.WinnerReward != nil {
		w := *t.Metrics.WinnerReward
		c.Metrics.WinnerReward = &w
	}
	if t.Metrics.RunnerUpReward != nil {
		r := *t.Metrics.RunnerUpReward
		c.Metrics.RunnerUpReward = &r
	}
	if t.CompletedAt != nil {
		ts := *t.CompletedAt
		c.CompletedAt = &ts
	}
	return &c
}
