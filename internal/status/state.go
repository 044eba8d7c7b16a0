package status

import (
	"fmt"
	"slices"
	"sync"

	"github.com/matheus3301/chatline/internal/bus"
	"github.com/matheus3301/chatline/internal/domain"
)

// State represents the lifecycle state of the chat view.
type State string

const (
	Closed  State = "CLOSED"
	Opening State = "OPENING"
	Open    State = "OPEN"
)

// validTransitions defines allowed state transitions. Opening a different
// chat while one is open goes straight back to Opening.
var validTransitions = map[State][]State{
	Closed:  {Opening},
	Opening: {Open, Closed},
	Open:    {Opening, Closed},
}

// Machine tracks and enforces chat view lifecycle transitions.
type Machine struct {
	mu      sync.RWMutex
	current State
	chat    domain.ChatKey
	bus     *bus.Bus
}

// NewMachine creates a new state machine starting in Closed state.
func NewMachine(b *bus.Bus) *Machine {
	return &Machine{
		current: Closed,
		bus:     b,
	}
}

// Current returns the current state.
func (m *Machine) Current() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

// Chat returns the chat the view is opening or showing.
func (m *Machine) Chat() domain.ChatKey {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.chat
}

// Transition attempts to move to a new state for chat. Returns error if
// transition is invalid.
func (m *Machine) Transition(to State, chat domain.ChatKey) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	allowed := validTransitions[m.current]
	if !slices.Contains(allowed, to) {
		return fmt.Errorf("invalid transition from %s to %s", m.current, to)
	}
	if to == Open && chat != m.chat {
		return fmt.Errorf("invalid transition to %s for %s: opening %s", to, chat, m.chat)
	}
	from := m.current
	m.current = to
	if to == Closed {
		m.chat = domain.ChatKey{}
	} else {
		m.chat = chat
	}
	if m.bus != nil {
		m.bus.Emit(bus.KindViewState, ViewChange{
			From: from,
			To:   to,
			Chat: chat,
		})
	}
	return nil
}

// ViewChange is the payload for view state change events.
type ViewChange struct {
	From State
	To   State
	Chat domain.ChatKey
}
