package store

import (
	"sync"
)

const subscriberBuffer = 100

// MemoryStore is an in-memory implementation of [Store].
//
// Panel states are keyed by name and listed in registration order. New
// states replace previous ones unless the ordering policy rejects them.
//
// Subscribers receive updates via buffered channels (buffer size 100). Updates
// are sent non-blocking; if a subscriber's buffer is full, the update is dropped
// for that subscriber to prevent blocking the entire system.
type MemoryStore struct {
	ordering Ordering

	mu     sync.RWMutex
	order  []string
	states map[string]PanelState

	subscribers map[chan PanelState]struct{}
	subMu       sync.RWMutex
}

// NewMemoryStore creates a new in-memory [Store] applying ordering.
func NewMemoryStore(ordering Ordering) *MemoryStore {
	return &MemoryStore{
		ordering:    ordering,
		states:      make(map[string]PanelState),
		subscribers: make(map[chan PanelState]struct{}),
	}
}

// Register adds a panel in its initial state.
func (m *MemoryStore) Register(state PanelState) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.states[state.Name]; ok {
		return
	}
	m.order = append(m.order, state.Name)
	m.states[state.Name] = state
}

// Update stores a [PanelState] and notifies all subscribers.
//
// Under [IssueOrder], a state whose generation is lower than the stored one
// is dropped and Update returns false. Unknown names are registered on
// first update.
func (m *MemoryStore) Update(state PanelState) bool {
	m.mu.Lock()
	current, ok := m.states[state.Name]
	if !ok {
		m.order = append(m.order, state.Name)
	} else if m.ordering == IssueOrder && state.Generation < current.Generation {
		m.mu.Unlock()
		return false
	}
	m.states[state.Name] = state
	m.mu.Unlock()

	m.notifySubscribers(state)
	return true
}

// Get returns the current state of the named panel.
func (m *MemoryStore) Get(name string) (PanelState, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	state, ok := m.states[name]
	return state, ok
}

// GetAll returns a snapshot of all panel states in registration order.
func (m *MemoryStore) GetAll() []PanelState {
	m.mu.RLock()
	defer m.mu.RUnlock()

	results := make([]PanelState, 0, len(m.order))
	for _, name := range m.order {
		results = append(results, m.states[name])
	}
	return results
}

// Subscribe creates a new subscription and returns a channel for receiving updates.
//
// The returned channel has a buffer of 100 messages. If the buffer fills
// (slow consumer), new updates are dropped for this subscriber.
//
// Caller must call [MemoryStore.Unsubscribe] when done to prevent resource leaks.
func (m *MemoryStore) Subscribe() <-chan PanelState {
	ch := make(chan PanelState, subscriberBuffer)

	m.subMu.Lock()
	m.subscribers[ch] = struct{}{}
	m.subMu.Unlock()

	return ch
}

// Unsubscribe removes a subscription and closes its channel.
//
// Safe to call multiple times or with an unknown channel.
func (m *MemoryStore) Unsubscribe(ch <-chan PanelState) {
	m.subMu.Lock()
	defer m.subMu.Unlock()

	for subCh := range m.subscribers {
		if subCh == ch {
			delete(m.subscribers, subCh)
			close(subCh)
			break
		}
	}
}

// notifySubscribers sends the state to all active subscribers without
// blocking; full buffers drop the message.
func (m *MemoryStore) notifySubscribers(state PanelState) {
	m.subMu.RLock()
	defer m.subMu.RUnlock()

	for ch := range m.subscribers {
		select {
		case ch <- state:
		default:
			// subscriber is slow, drop the message
		}
	}
}
