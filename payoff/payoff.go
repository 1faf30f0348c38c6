// Package payoff resolves a pair of simultaneous choices into token and
// reputation deltas.
package payoff

import "fmt"

type Choice int

const (
	Cooperate Choice = 0
	Betray    Choice = 1
	Abstain   Choice = 2
)

func (c Choice) Valid() bool {
	return c >= Cooperate && c <= Abstain
}

func (c Choice) String() string {
	switch c {
	case Cooperate:
		return "Cooperate"
	case Betray:
		return "Betray"
	case Abstain:
		return "Abstain"
	default:
		return fmt.Sprintf("Choice(%d)", int(c))
	}
}

// ParseChoice accepts the numeric value of a choice.
func ParseChoice(v int) (Choice, error) {
	c := Choice(v)
	if !c.Valid() {
		return 0, fmt.Errorf("invalid choice %d: must be 0 (cooperate), 1 (betray) or 2 (abstain)", v)
	}
	return c, nil
}

type Winner string

const (
	WinnerA   Winner = "A"
	WinnerB   Winner = "B"
	WinnerTie Winner = "tie"
)

type Result struct {
	TokensA          int64
	TokensB          int64
	ReputationDeltaA int
	ReputationDeltaB int
	Winner           Winner
	Description      string
}

type outcome struct {
	tokensA, tokensB int64
	repA, repB       int
	description      string
}

var table = map[[2]Choice]outcome{
	{Cooperate, Cooperate}: {50, 50, 10, 10, "Both cooperated - mutual benefit"},
	{Cooperate, Betray}:    {0, 100, -20, 5, "Player 2 betrayed - major loss for Player 1"},
	{Betray, Cooperate}:    {100, 0, 5, -20, "Player 1 betrayed - major loss for Player 2"},
	{Betray, Betray}:       {0, 0, -10, -10, "Mutual betrayal - both lose"},
	{Abstain, Abstain}:     {25, 25, 0, 0, "Both abstained - neutral outcome"},
	{Cooperate, Abstain}:   {25, 25, 0, 0, "One cooperated, one abstained - neutral split"},
	{Abstain, Cooperate}:   {25, 25, 0, 0, "One cooperated, one abstained - neutral split"},
	{Betray, Abstain}:      {25, 25, 0, 0, "One betrayed, one abstained - neutral split"},
	{Abstain, Betray}:      {25, 25, 0, 0, "One betrayed, one abstained - neutral split"},
}

// Resolve maps both choices to the outcome table. Unknown choices count as Abstain.
func Resolve(a, b Choice) Result {
	if !a.Valid() {
		a = Abstain
	}
	if !b.Valid() {
		b = Abstain
	}
	o := table[[2]Choice{a, b}]

	res := Result{
		TokensA:          o.tokensA,
		TokensB:          o.tokensB,
		ReputationDeltaA: o.repA,
		ReputationDeltaB: o.repB,
		Description:      o.description,
	}
	switch {
	case o.tokensA > o.tokensB:
		res.Winner = WinnerA
	case o.tokensB > o.tokensA:
		res.Winner = WinnerB
	default:
		res.Winner = WinnerTie
	}
	return res
}
