package repositories

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/Dosada05/trust-tournament/models"
)

// In-memory implementations, used by STORE_DRIVER=memory and by tests.
// Every read and write goes through a deep copy.

type memoryTournamentRepository struct {
	mu          sync.RWMutex
	tournaments map[string]*models.Tournament
}

func NewMemoryTournamentRepository() TournamentRepository {
	return &memoryTournamentRepository{tournaments: make(map[string]*models.Tournament)}
}

func (r *memoryTournamentRepository) Create(ctx context.Context, t *models.Tournament) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.tournaments[t.ID]; ok {
		return ErrTournamentConflict
	}
	now := time.Now().UTC()
	t.Version = 1
	t.CreatedAt = now
	t.UpdatedAt = now
	r.tournaments[t.ID] = t.Clone()
	return nil
}

func (r *memoryTournamentRepository) GetByID(ctx context.Context, id string) (*models.Tournament, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tournaments[id]
	if !ok {
		return nil, ErrTournamentNotFound
	}
	return t.Clone(), nil
}

func (r *memoryTournamentRepository) Save(ctx context.Context, t *models.Tournament) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.tournaments[t.ID]
	if !ok {
		return ErrTournamentNotFound
	}
	if stored.Version != t.Version {
		return ErrVersionConflict
	}
	t.Version++
	t.UpdatedAt = time.Now().UTC()
	r.tournaments[t.ID] = t.Clone()
	return nil
}

func (r *memoryTournamentRepository) ListByStatus(ctx context.Context, status models.TournamentStatus, limit int) ([]*models.Tournament, error) {
	r.mu.RLock()
	var list []*models.Tournament
	for _, t := range r.tournaments {
		if t.Status == status {
			list = append(list, t.Clone())
		}
	}
	r.mu.RUnlock()

	sort.Slice(list, func(i, j int) bool {
		if list[i].CreatedAt.Equal(list[j].CreatedAt) {
			return list[i].ID > list[j].ID
		}
		return list[i].CreatedAt.After(list[j].CreatedAt)
	})
	if limit = normalizeLimit(limit, 20, 200); len(list) > limit {
		list = list[:limit]
	}
	return list, nil
}

type memoryMatchRepository struct {
	mu      sync.RWMutex
	matches map[string]models.MatchRecord
}

func NewMemoryMatchRepository() MatchRepository {
	return &memoryMatchRepository{matches: make(map[string]models.MatchRecord)}
}

func cloneRecord(m models.MatchRecord) *models.MatchRecord {
	c := m
	if m.Player1.Choice != nil {
		v := *m.Player1.Choice
		c.Player1.Choice = &v
	}
	if m.Player2.Choice != nil {
		v := *m.Player2.Choice
		c.Player2.Choice = &v
	}
	if m.ResolvedAt != nil {
		ts := *m.ResolvedAt
		c.ResolvedAt = &ts
	}
	return &c
}

func (r *memoryMatchRepository) Create(ctx context.Context, m *models.MatchRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.matches[m.ID]; ok {
		return ErrMatchConflict
	}
	now := time.Now().UTC()
	if m.CreatedAt.IsZero() {
		m.CreatedAt = now
	}
	m.UpdatedAt = now
	r.matches[m.ID] = *cloneRecord(*m)
	return nil
}

func (r *memoryMatchRepository) GetByID(ctx context.Context, id string) (*models.MatchRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.matches[id]
	if !ok {
		return nil, ErrMatchNotFound
	}
	return cloneRecord(m), nil
}

func (r *memoryMatchRepository) Save(ctx context.Context, m *models.MatchRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.matches[m.ID]; !ok {
		return ErrMatchNotFound
	}
	m.UpdatedAt = time.Now().UTC()
	r.matches[m.ID] = *cloneRecord(*m)
	return nil
}

func (r *memoryMatchRepository) ListByParticipant(ctx context.Context, address string, limit int) ([]*models.MatchRecord, error) {
	r.mu.RLock()
	var list []*models.MatchRecord
	for _, m := range r.matches {
		if models.SameAddress(m.Player1.Address, address) || models.SameAddress(m.Player2.Address, address) {
			list = append(list, cloneRecord(m))
		}
	}
	r.mu.RUnlock()

	sort.Slice(list, func(i, j int) bool {
		if list[i].CreatedAt.Equal(list[j].CreatedAt) {
			return list[i].ID > list[j].ID
		}
		return list[i].CreatedAt.After(list[j].CreatedAt)
	})
	if limit = normalizeLimit(limit, 20, 100); len(list) > limit {
		list = list[:limit]
	}
	return list, nil
}

type memoryPlayerRepository struct {
	mu      sync.RWMutex
	players map[string]models.Player
}

func NewMemoryPlayerRepository() PlayerRepository {
	return &memoryPlayerRepository{players: make(map[string]models.Player)}
}

func (r *memoryPlayerRepository) GetByAddress(ctx context.Context, address string) (*models.Player, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.players[models.NormalizeAddress(address)]
	if !ok {
		return nil, ErrPlayerNotFound
	}
	return &p, nil
}

func (r *memoryPlayerRepository) Upsert(ctx context.Context, p *models.Player) error {
	p.Address = models.NormalizeAddress(p.Address)
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.players[p.Address] = *p
	return nil
}

func (r *memoryPlayerRepository) List(ctx context.Context, sortBy models.PlayerSort, limit, offset int) ([]*models.Player, error) {
	r.mu.RLock()
	list := make([]*models.Player, 0, len(r.players))
	for _, p := range r.players {
		p := p
		list = append(list, &p)
	}
	r.mu.RUnlock()

	key := func(p *models.Player) int64 {
		switch sortBy {
		case models.SortByEarnings:
			return p.TotalEarnings
		case models.SortByWins:
			return int64(p.MatchesWon)
		default:
			return int64(p.Reputation)
		}
	}
	sort.Slice(list, func(i, j int) bool {
		ki, kj := key(list[i]), key(list[j])
		if ki != kj {
			return ki > kj
		}
		return list[i].Address < list[j].Address
	})

	if offset < 0 {
		offset = 0
	}
	if offset >= len(list) {
		return []*models.Player{}, nil
	}
	list = list[offset:]
	if limit = normalizeLimit(limit, 50, 200); len(list) > limit {
		list = list[:limit]
	}
	return list, nil
}
