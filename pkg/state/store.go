// Package state tracks per-sender conversation state for multi-step flows.
//
// A sender has at most one State: a name plus an optional data mapping.
// Operations on data are no-ops while the sender has no state, and deleting a
// state removes its data with it. Nothing expires on its own.
package state

import (
	"context"
	"maps"
	"sync"
)

// State is one sender's conversation state.
type State struct {
	Name string         `json:"name"`
	Data map[string]any `json:"data,omitempty"`
}

func (s *State) clone() *State {
	if s == nil {
		return nil
	}
	return &State{Name: s.Name, Data: cloneData(s.Data)}
}

func cloneData(data map[string]any) map[string]any {
	if data == nil {
		return nil
	}
	return maps.Clone(data)
}

// Store is the conversation state contract. Getters return copies.
type Store interface {
	// Get returns the sender's state, if any.
	Get(ctx context.Context, sender string) (*State, bool, error)

	// Set creates or replaces the state with the given name and no data.
	Set(ctx context.Context, sender, name string) error

	// Update renames an existing state, keeping its data, or behaves like Set.
	Update(ctx context.Context, sender, name string) error

	// Delete removes the state and its data. Deleting nothing is fine.
	Delete(ctx context.Context, sender string) error

	// GetData returns the state's data, absent when there is no state or no data.
	GetData(ctx context.Context, sender string) (map[string]any, bool, error)

	// SetData replaces the data wholesale when a state exists.
	SetData(ctx context.Context, sender string, data map[string]any) error

	// UpdateData shallow-merges data into the existing data when a state
	// exists, overwriting keys present in both.
	UpdateData(ctx context.Context, sender string, data map[string]any) error

	// DeleteData clears the data but keeps the state name.
	DeleteData(ctx context.Context, sender string) error
}

// MemoryStore is the default in-process Store. It never returns an error.
type MemoryStore struct {
	mu     sync.Mutex
	states map[string]*State
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{states: make(map[string]*State)}
}

func (m *MemoryStore) Get(_ context.Context, sender string) (*State, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	st, ok := m.states[sender]
	if !ok {
		return nil, false, nil
	}
	return st.clone(), true, nil
}

func (m *MemoryStore) Set(_ context.Context, sender, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.states[sender] = &State{Name: name}
	return nil
}

func (m *MemoryStore) Update(_ context.Context, sender, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if st, ok := m.states[sender]; ok {
		st.Name = name
		return nil
	}
	m.states[sender] = &State{Name: name}
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, sender string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.states, sender)
	return nil
}

func (m *MemoryStore) GetData(_ context.Context, sender string) (map[string]any, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	st, ok := m.states[sender]
	if !ok || st.Data == nil {
		return nil, false, nil
	}
	return cloneData(st.Data), true, nil
}

func (m *MemoryStore) SetData(_ context.Context, sender string, data map[string]any) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if st, ok := m.states[sender]; ok {
		st.Data = cloneData(data)
	}
	return nil
}

func (m *MemoryStore) UpdateData(_ context.Context, sender string, data map[string]any) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	st, ok := m.states[sender]
	if !ok {
		return nil
	}
	st.Data = mergeData(st.Data, data)
	return nil
}

func (m *MemoryStore) DeleteData(_ context.Context, sender string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if st, ok := m.states[sender]; ok {
		st.Data = nil
	}
	return nil
}

// Senders lists senders that currently have a state.
func (m *MemoryStore) Senders(_ context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	senders := make([]string, 0, len(m.states))
	for sender := range m.states {
		senders = append(senders, sender)
	}
	return senders, nil
}

// mergeData returns existing with update's keys written over it.
// A nil existing map behaves like a replace.
func mergeData(existing, update map[string]any) map[string]any {
	if existing == nil {
		return cloneData(update)
	}
	merged := maps.Clone(existing)
	maps.Copy(merged, update)
	return merged
}
