// Package memory provides an in-memory bonus.Store.
package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/trouble2112/Bouns-tools/bonus"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Memory struct {
	mu      sync.RWMutex
	order   []string
	persons map[string]bonus.Person
	params  *bonus.Parameters
	now     func() time.Time
}

var _ bonus.Store = (*Memory)(nil)

func New() *Memory {
	return &Memory{
		persons: make(map[string]bonus.Person),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// ListPersons returns every person in insertion order.
func (m *Memory) ListPersons(_ context.Context) ([]bonus.Person, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]bonus.Person, 0, len(m.order))
	for _, id := range m.order {
		out = append(out, m.persons[id])
	}
	return out, nil
}

// GetPerson returns (nil, nil) for unknown IDs.
func (m *Memory) GetPerson(_ context.Context, id string) (*bonus.Person, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	p, ok := m.persons[id]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (m *Memory) CreatePerson(_ context.Context, p bonus.Person) (bonus.Person, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.insertLocked(p)
}

func (m *Memory) UpdatePerson(_ context.Context, p bonus.Person) (bonus.Person, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	existing, ok := m.persons[p.ID]
	if !ok {
		return bonus.Person{}, fmt.Errorf("%w: %s", bonus.ErrPersonNotFound, p.ID)
	}
	p.CreatedAt = existing.CreatedAt
	p.UpdatedAt = m.now()
	m.persons[p.ID] = p
	return p, nil
}

func (m *Memory) DeletePerson(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.persons[id]; !ok {
		return fmt.Errorf("%w: %s", bonus.ErrPersonNotFound, id)
	}
	delete(m.persons, id)
	for i, oid := range m.order {
		if oid == id {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
	return nil
}

func (m *Memory) DeleteAllPersons(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.persons = make(map[string]bonus.Person)
	m.order = nil
	return nil
}

// ReplacePersons swaps the roster. On error the previous roster is kept.
func (m *Memory) ReplacePersons(_ context.Context, persons []bonus.Person) ([]bonus.Person, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	prevPersons, prevOrder := m.persons, m.order
	m.persons = make(map[string]bonus.Person, len(persons))
	m.order = nil

	out := make([]bonus.Person, 0, len(persons))
	for _, p := range persons {
		created, err := m.insertLocked(p)
		if err != nil {
			m.persons, m.order = prevPersons, prevOrder
			return nil, err
		}
		out = append(out, created)
	}
	return out, nil
}

func (m *Memory) insertLocked(p bonus.Person) (bonus.Person, error) {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if _, ok := m.persons[p.ID]; ok {
		return bonus.Person{}, fmt.Errorf("%w: %s", bonus.ErrDuplicatePerson, p.ID)
	}
	now := m.now()
	p.CreatedAt, p.UpdatedAt = now, now
	m.persons[p.ID] = p
	m.order = append(m.order, p.ID)
	return p, nil
}

// GetParameters returns the saved set or the defaults.
func (m *Memory) GetParameters(_ context.Context) (bonus.Parameters, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.params == nil {
		return bonus.DefaultParameters(), nil
	}
	return *m.params, nil
}

func (m *Memory) SaveParameters(_ context.Context, params bonus.Parameters) error {
	if err := params.Validate(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	params.UpdatedAt = m.now()
	m.params = &params
	return nil
}

// Reset clears persons and parameters.
func (m *Memory) Reset(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.persons = make(map[string]bonus.Person)
	m.order = nil
	m.params = nil
	return nil
}
