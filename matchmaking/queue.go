// Package matchmaking collects participants before a tournament starts.
package matchmaking

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/Dosada05/trust-tournament/models"
)

var (
	ErrInvalidParticipant = errors.New("participant address is required")
	ErrBotFactoryStalled  = errors.New("bot factory stopped producing bots")
)

// BotFactory creates one bot seed per call.
type BotFactory func() (models.Seed, error)

type Participant struct {
	models.Seed
	IsBot    bool      `json:"is_bot"`
	Ready    bool      `json:"ready"`
	JoinedAt time.Time `json:"joined_at"`
}

// Queue holds humans keyed by lower-cased address and bots by position.
type Queue struct {
	sync.RWMutex
	humans map[string]*Participant
	order  []string
	bots   []Participant
}

func NewQueue() *Queue {
	return &Queue{
		humans: make(map[string]*Participant),
	}
}

// AddParticipant is idempotent for humans (re-adding replaces the seed but
// keeps the original position). Bots are always appended.
func (q *Queue) AddParticipant(seed models.Seed, isBot bool) error {
	if models.NormalizeAddress(seed.Address) == "" {
		return ErrInvalidParticipant
	}
	q.Lock()
	defer q.Unlock()
	q.addLocked(seed, isBot)
	return nil
}

func (q *Queue) addLocked(seed models.Seed, isBot bool) {
	p := Participant{Seed: seed, IsBot: isBot, JoinedAt: time.Now()}
	if isBot {
		p.Ready = true
		q.bots = append(q.bots, p)
		return
	}

	key := models.NormalizeAddress(seed.Address)
	if existing, ok := q.humans[key]; ok {
		p.Ready = existing.Ready
		p.JoinedAt = existing.JoinedAt
		*existing = p
		return
	}
	q.humans[key] = &p
	q.order = append(q.order, key)
}

// RemoveParticipant removes a human. Bots are never removed individually.
func (q *Queue) RemoveParticipant(address string) bool {
	key := models.NormalizeAddress(address)
	q.Lock()
	defer q.Unlock()

	if _, ok := q.humans[key]; !ok {
		return false
	}
	delete(q.humans, key)
	for i, k := range q.order {
		if k == key {
			q.order = append(q.order[:i], q.order[i+1:]...)
			break
		}
	}
	return true
}

// SetReady toggles the ready flag of a human.
func (q *Queue) SetReady(address string, ready bool) bool {
	q.Lock()
	defer q.Unlock()
	p, ok := q.humans[models.NormalizeAddress(address)]
	if !ok {
		return false
	}
	p.Ready = ready
	return true
}

// AllHumansReady is false for an empty lobby.
func (q *Queue) AllHumansReady() bool {
	q.RLock()
	defer q.RUnlock()
	if len(q.humans) == 0 {
		return false
	}
	for _, p := range q.humans {
		if !p.Ready {
			return false
		}
	}
	return true
}

// FillWithBots calls factory until Count() reaches target. The loop is capped
// so a misbehaving factory cannot spin forever.
func (q *Queue) FillWithBots(target int, factory BotFactory) (int, error) {
	q.Lock()
	defer q.Unlock()

	missing := target - q.countLocked()
	if missing <= 0 {
		return 0, nil
	}

	maxCalls := missing*2 + 8
	added := 0
	var lastErr error
	for calls := 0; q.countLocked() < target && calls < maxCalls; calls++ {
		seed, err := factory()
		if err != nil {
			lastErr = err
			continue
		}
		if models.NormalizeAddress(seed.Address) == "" {
			lastErr = ErrInvalidParticipant
			continue
		}
		q.addLocked(seed, true)
		added++
	}

	if q.countLocked() < target {
		if lastErr != nil {
			return added, fmt.Errorf("%w after %d calls (%d/%d): %v", ErrBotFactoryStalled, maxCalls, q.countLocked(), target, lastErr)
		}
		return added, fmt.Errorf("%w after %d calls (%d/%d)", ErrBotFactoryStalled, maxCalls, q.countLocked(), target)
	}
	return added, nil
}

// Roster returns humans in insertion order followed by bots.
func (q *Queue) Roster() []models.Seed {
	q.RLock()
	defer q.RUnlock()

	roster := make([]models.Seed, 0, q.countLocked())
	for _, key := range q.order {
		roster = append(roster, q.humans[key].Seed)
	}
	for _, b := range q.bots {
		roster = append(roster, b.Seed)
	}
	return roster
}

// Participants is Roster with lobby flags, for display.
func (q *Queue) Participants() []Participant {
	q.RLock()
	defer q.RUnlock()

	list := make([]Participant, 0, q.countLocked())
	for _, key := range q.order {
		list = append(list, *q.humans[key])
	}
	list = append(list, q.bots...)
	return list
}

func (q *Queue) Participant(address string) (Participant, bool) {
	q.RLock()
	defer q.RUnlock()
	p, ok := q.humans[models.NormalizeAddress(address)]
	if !ok {
		return Participant{}, false
	}
	return *p, true
}

func (q *Queue) Count() int {
	q.RLock()
	defer q.RUnlock()
	return q.countLocked()
}

func (q *Queue) HumanCount() int {
	q.RLock()
	defer q.RUnlock()
	return len(q.humans)
}

func (q *Queue) countLocked() int {
	return len(q.humans) + len(q.bots)
}

func (q *Queue) Clear() {
	q.Lock()
	defer q.Unlock()
	q.humans = make(map[string]*Participant)
	q.order = nil
	q.bots = nil
}
