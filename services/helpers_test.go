package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/Dosada05/trust-tournament/models"
	"github.com/Dosada05/trust-tournament/payoff"
	"github.com/Dosada05/trust-tournament/repositories"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeBots plays a fixed choice per bot address.
type fakeBots struct {
	mu        sync.Mutex
	choices   map[string]payoff.Choice
	outcomes  map[string][]bool
	seen      map[string][]payoff.Choice
	decisions int
	reweights int
}

func newFakeBots() *fakeBots {
	return &fakeBots{
		choices:  make(map[string]payoff.Choice),
		outcomes: make(map[string][]bool),
		seen:     make(map[string][]payoff.Choice),
	}
}

func (f *fakeBots) add(address string, choice payoff.Choice) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.choices[models.NormalizeAddress(address)] = choice
}

func (f *fakeBots) IsBot(address string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.choices[models.NormalizeAddress(address)]
	return ok
}

func (f *fakeBots) Decide(botAddress, opponentAddress string, opponentReputation int) payoff.Choice {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.decisions++
	return f.choices[models.NormalizeAddress(botAddress)]
}

func (f *fakeBots) RecordChoice(botAddress, opponentAddress string, choice payoff.Choice) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := models.NormalizeAddress(botAddress)
	f.seen[key] = append(f.seen[key], choice)
}

func (f *fakeBots) RecordOutcome(botAddress string, won bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := models.NormalizeAddress(botAddress)
	f.outcomes[key] = append(f.outcomes[key], won)
}

func (f *fakeBots) ReweightStrategies() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reweights++
}

type roundSeededCall struct {
	round   int
	matches []models.Match
}

type recordingNotifier struct {
	mu          sync.Mutex
	updates     int
	lastUpdate  *models.Tournament
	seeded      []roundSeededCall
	failUpdates error
	failSeeded  error
}

func (n *recordingNotifier) TournamentUpdated(ctx context.Context, t *models.Tournament) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.updates++
	n.lastUpdate = t.Clone()
	return n.failUpdates
}

func (n *recordingNotifier) RoundSeeded(ctx context.Context, t *models.Tournament, roundNumber int, matches []models.Match) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.seeded = append(n.seeded, roundSeededCall{round: roundNumber, matches: matches})
	return n.failSeeded
}

func (n *recordingNotifier) lastUpdated() *models.Tournament {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.lastUpdate
}

func (n *recordingNotifier) updateCount() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.updates
}

type recordingArchiver struct {
	mu       sync.Mutex
	archived []string
	err      error
}

func (a *recordingArchiver) ArchiveTournament(ctx context.Context, t *models.Tournament) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.archived = append(a.archived, t.ID)
	return a.err
}

// countingRepo counts saves and can fail the Nth one.
type countingRepo struct {
	repositories.TournamentRepository
	mu      sync.Mutex
	saves   int
	failAt  int
	failErr error
}

func (r *countingRepo) Save(ctx context.Context, t *models.Tournament) error {
	r.mu.Lock()
	r.saves++
	fail := r.failAt > 0 && r.saves >= r.failAt
	r.mu.Unlock()
	if fail {
		return r.failErr
	}
	return r.TournamentRepository.Save(ctx, t)
}

func (r *countingRepo) saveCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.saves
}

var errStoreDown = errors.New("store is down")

type fixture struct {
	tournaments *tournamentService
	repo        *countingRepo
	matchRepo   repositories.MatchRepository
	notifier    *recordingNotifier
	archiver    *recordingArchiver
	bots        *fakeBots
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		repo:      &countingRepo{TournamentRepository: repositories.NewMemoryTournamentRepository()},
		matchRepo: repositories.NewMemoryMatchRepository(),
		notifier:  &recordingNotifier{},
		archiver:  &recordingArchiver{},
		bots:      newFakeBots(),
	}
	svc := NewTournamentService(f.repo, f.matchRepo, nil, f.bots, f.notifier, f.archiver, 0, discardLogger())
	f.tournaments = svc.(*tournamentService)
	return f
}

// humans returns n seeds with ascending, distinct reputations.
func humans(n int) []models.Seed {
	seeds := make([]models.Seed, n)
	for i := range seeds {
		seeds[i] = models.Seed{
			Address:     fmt.Sprintf("0xhuman%02d", i),
			DisplayName: fmt.Sprintf("human-%d", i),
			Reputation:  1000 + i*10,
		}
	}
	return seeds
}

// botSeeds registers n bots playing choice.
func (f *fixture) botSeeds(n int, choice payoff.Choice) []models.Seed {
	seeds := make([]models.Seed, n)
	for i := range seeds {
		seeds[i] = models.Seed{
			Address:     fmt.Sprintf("0xbot%02d", i),
			DisplayName: fmt.Sprintf("bot-%d", i),
			Reputation:  1000 + i*10,
		}
		f.bots.add(seeds[i].Address, choice)
	}
	return seeds
}

func (f *fixture) create(t *testing.T, seeds []models.Seed) *models.Tournament {
	t.Helper()
	tour, err := f.tournaments.CreateFromRoster(context.Background(), seeds)
	require.NoError(t, err)
	return tour
}

// playRound materializes a seeded round and lets seed A win every open slot.
func (f *fixture) playRound(t *testing.T, tournamentID string, roundNumber int) *RecordResult {
	t.Helper()
	ctx := context.Background()
	tour, err := f.tournaments.MaterializeRoundMatches(ctx, tournamentID, roundNumber)
	require.NoError(t, err)
	round, ok := tour.Round(roundNumber)
	require.True(t, ok)

	var last *RecordResult
	for _, m := range round.Matches {
		if m.Decided() {
			continue
		}
		last, err = f.tournaments.RecordMatchResult(ctx, tournamentID, roundNumber, m.ExternalMatchID, m.SeedA.Address)
		require.NoError(t, err)
	}
	require.NotNil(t, last)
	return last
}
