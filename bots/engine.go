// Package bots simulates non-human tournament participants.
package bots

import (
	"encoding/hex"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/Dosada05/trust-tournament/models"
	"github.com/Dosada05/trust-tournament/payoff"
	"github.com/google/uuid"
	"golang.org/x/crypto/sha3"
)

var botNames = []string{
	"Aurora", "Cipher", "Nebula", "Quanta", "Vesper",
	"Onyx", "Kairo", "Nyx", "Riven", "Solace",
}

// memory is the per-bot state. Its mutex serializes a bot playing several
// matches of the same round.
type memory struct {
	mu       sync.Mutex
	strategy Strategy
	score    int
	history  map[string]payoff.Choice
}

type Options struct {
	// ControllerAddress, when set, is used as the address of every bot.
	ControllerAddress string
	// Seed makes strategy rolls and names reproducible. Zero means time based.
	Seed   uint64
	Logger *slog.Logger
}

type Engine struct {
	mu      sync.RWMutex
	bots    map[string]*memory
	weights Weights

	rngMu sync.Mutex
	rng   *rand.Rand

	controller string
	logger     *slog.Logger
}

func NewEngine(opts Options) *Engine {
	seed := opts.Seed
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		bots:       make(map[string]*memory),
		weights:    DefaultWeights(),
		rng:        rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
		controller: models.NormalizeAddress(opts.ControllerAddress),
		logger:     logger,
	}
}

// CreateBot builds and registers a new bot. An empty preferred strategy is
// rolled from the current weights.
func (e *Engine) CreateBot(preferred Strategy) models.Seed {
	strategy := preferred
	if !strategy.Valid() {
		strategy = e.pickStrategy()
	}

	address := e.controller
	if address == "" {
		address = deriveAddress(uuid.New())
	}

	seed := models.Seed{
		Address:     address,
		DisplayName: fmt.Sprintf("%s-%d", botNames[e.intN(len(botNames))], 100+e.intN(900)),
		Reputation:  baseReputation(strategy),
	}
	e.RegisterBot(seed.Address, strategy)
	return seed
}

// RegisterBot (re)initializes the memory of a bot address. Bots sharing a
// controller address share one memory; the latest registration wins.
func (e *Engine) RegisterBot(address string, strategy Strategy) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.bots[models.NormalizeAddress(address)] = &memory{
		strategy: strategy,
		score:    initialScore,
		history:  make(map[string]payoff.Choice),
	}
}

func (e *Engine) IsBot(address string) bool {
	_, ok := e.lookup(address)
	return ok
}

func (e *Engine) StrategyOf(address string) (Strategy, bool) {
	mem, ok := e.lookup(address)
	if !ok {
		return "", false
	}
	mem.mu.Lock()
	defer mem.mu.Unlock()
	return mem.strategy, true
}

func (e *Engine) Score(address string) (int, bool) {
	mem, ok := e.lookup(address)
	if !ok {
		return 0, false
	}
	mem.mu.Lock()
	defer mem.mu.Unlock()
	return mem.score, true
}

// Decide returns the bot's move against an opponent. Unknown bots cooperate.
func (e *Engine) Decide(botAddress, opponentAddress string, opponentReputation int) payoff.Choice {
	mem, ok := e.lookup(botAddress)
	if !ok {
		e.logger.Warn("decide called for unknown bot", slog.String("address", botAddress))
		return payoff.Cooperate
	}
	mem.mu.Lock()
	defer mem.mu.Unlock()
	return e.decide(mem, models.NormalizeAddress(opponentAddress), opponentReputation)
}

// RecordChoice stores the opponent's last move against this bot.
func (e *Engine) RecordChoice(botAddress, opponentAddress string, choice payoff.Choice) {
	mem, ok := e.lookup(botAddress)
	if !ok {
		return
	}
	mem.mu.Lock()
	mem.history[models.NormalizeAddress(opponentAddress)] = choice
	mem.mu.Unlock()
}

func (e *Engine) RecordOutcome(botAddress string, won bool) {
	mem, ok := e.lookup(botAddress)
	if !ok {
		return
	}
	mem.mu.Lock()
	if won {
		mem.score += winScoreDelta
	} else {
		mem.score += lossScoreDelta
	}
	mem.mu.Unlock()
}

// ReweightStrategies snapshots every bot's score and replaces the weights.
func (e *Engine) ReweightStrategies() {
	e.mu.RLock()
	scores := make(map[Strategy][]int, len(AllStrategies))
	for _, mem := range e.bots {
		mem.mu.Lock()
		scores[mem.strategy] = append(scores[mem.strategy], mem.score)
		mem.mu.Unlock()
	}
	e.mu.RUnlock()

	e.mu.Lock()
	e.weights = Reweight(scores, e.weights)
	e.mu.Unlock()
}

func (e *Engine) Weights() Weights {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.weights.clone()
}

func (e *Engine) lookup(address string) (*memory, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	mem, ok := e.bots[models.NormalizeAddress(address)]
	return mem, ok
}

// pickStrategy is a cumulative-weight roulette over AllStrategies.
func (e *Engine) pickStrategy() Strategy {
	weights := e.Weights()
	total := 0.0
	for _, s := range AllStrategies {
		total += weights[s]
	}
	if total <= 0 {
		return Cooperator
	}

	e.rngMu.Lock()
	roll := e.rng.Float64() * total
	e.rngMu.Unlock()

	cumulative := 0.0
	for _, s := range AllStrategies {
		cumulative += weights[s]
		if roll < cumulative {
			return s
		}
	}
	return AllStrategies[len(AllStrategies)-1]
}

func (e *Engine) intN(n int) int {
	e.rngMu.Lock()
	defer e.rngMu.Unlock()
	return e.rng.IntN(n)
}

// deriveAddress turns a random id into a 20-byte hex address the way
// wallet addresses are derived: the tail of a Keccak-256 digest.
func deriveAddress(id uuid.UUID) string {
	h := sha3.NewLegacyKeccak256()
	h.Write(id[:])
	sum := h.Sum(nil)
	return "0x" + hex.EncodeToString(sum[len(sum)-20:])
}
