// Package memstore is an in-memory domain.Backend for tests.
package memstore

import (
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/matheus3301/chatline/internal/domain"
)

type Backend struct {
	mu       sync.RWMutex
	nextID   domain.MessageID
	chats    map[domain.ChatKey][]domain.MessageID
	messages map[domain.MessageID]*domain.Message
	owner    map[domain.MessageID]domain.ChatKey
	drafts   map[domain.ChatKey]*domain.Draft
	accepted map[domain.ChatKey]bool
}

func NewBackend() *Backend {
	return &Backend{
		chats:    make(map[domain.ChatKey][]domain.MessageID),
		messages: make(map[domain.MessageID]*domain.Message),
		owner:    make(map[domain.MessageID]domain.ChatKey),
		drafts:   make(map[domain.ChatKey]*domain.Draft),
		accepted: make(map[domain.ChatKey]bool),
	}
}

// Add stores a copy of m in chat key. A zero m.ID is assigned the next id.
func (b *Backend) Add(key domain.ChatKey, m domain.Message) domain.MessageID {
	b.mu.Lock()
	defer b.mu.Unlock()

	if m.ID == 0 {
		b.nextID++
		m.ID = b.nextID
	} else if m.ID > b.nextID {
		b.nextID = m.ID
	}
	if m.ChatJID == "" {
		m.ChatJID = key.Chat
	}
	if _, exists := b.messages[m.ID]; !exists {
		ids := b.chats[key]
		at, _ := slices.BinarySearch(ids, m.ID)
		b.chats[key] = slices.Insert(ids, at, m.ID)
	}
	b.messages[m.ID] = &m
	b.owner[m.ID] = key
	return m.ID
}

// Delete removes a message. Unknown ids return domain.ErrNotFound.
func (b *Backend) Delete(id domain.MessageID) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	key, ok := b.owner[id]
	if !ok {
		return fmt.Errorf("delete message %d: %w", id, domain.ErrNotFound)
	}
	b.chats[key] = slices.DeleteFunc(b.chats[key], func(x domain.MessageID) bool { return x == id })
	delete(b.messages, id)
	delete(b.owner, id)
	return nil
}

// SetState updates the delivery state of a message.
func (b *Backend) SetState(id domain.MessageID, state string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	m, ok := b.messages[id]
	if !ok {
		return fmt.Errorf("set state %d: %w", id, domain.ErrNotFound)
	}
	m.State = state
	return nil
}

func (b *Backend) FetchOrderedMessageIDs(key domain.ChatKey) ([]domain.MessageID, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return slices.Clone(b.chats[key]), nil
}

func (b *Backend) FetchMessageDetail(id domain.MessageID) (*domain.Message, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	m, ok := b.messages[id]
	if !ok {
		return nil, fmt.Errorf("message %d: %w", id, domain.ErrNotFound)
	}
	cp := *m
	return &cp, nil
}

// SearchMessages matches the query case-insensitively against message
// bodies, newest first.
func (b *Backend) SearchMessages(key domain.ChatKey, query string) ([]domain.MessageID, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return nil, nil
	}
	ids := b.chats[key]
	var out []domain.MessageID
	for i := len(ids) - 1; i >= 0; i-- {
		if strings.Contains(strings.ToLower(b.messages[ids[i]].Body), q) {
			out = append(out, ids[i])
		}
	}
	return out, nil
}

func (b *Backend) GetDraft(key domain.ChatKey) (*domain.Draft, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.drafts[key].Clone(), nil
}

func (b *Backend) SetDraft(key domain.ChatKey, d *domain.Draft) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if d.Empty() {
		delete(b.drafts, key)
		return nil
	}
	b.drafts[key] = d.Clone()
	return nil
}

func (b *Backend) MarkSeen(ids []domain.MessageID) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, id := range ids {
		if m, ok := b.messages[id]; ok {
			m.Seen = true
			if !m.FromMe {
				m.State = domain.StateSeen
			}
		}
	}
	return nil
}

// DeleteMessage removes a message.
func (b *Backend) DeleteMessage(id domain.MessageID) error {
	return b.Delete(id)
}

// AcceptContactRequest records that key's contact request was accepted.
func (b *Backend) AcceptContactRequest(key domain.ChatKey) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.accepted[key] = true
	return nil
}

// Accepted reports whether AcceptContactRequest was called for key.
func (b *Backend) Accepted(key domain.ChatKey) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.accepted[key]
}
