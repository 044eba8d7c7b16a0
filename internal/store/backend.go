package store

import (
	"github.com/matheus3301/chatline/internal/domain"
)

// Backend exposes one account's database as a domain.Backend. Chat keys of
// other accounts see an empty store.
type Backend struct {
	DB          *DB
	Account     string
	SearchLimit int
}

var _ domain.Backend = (*Backend)(nil)

// NewBackend creates a backend for account.
func NewBackend(db *DB, account string, searchLimit int) *Backend {
	return &Backend{DB: db, Account: account, SearchLimit: searchLimit}
}

func (b *Backend) owns(key domain.ChatKey) bool {
	return key.Account == b.Account && key.Chat != ""
}

func (b *Backend) FetchOrderedMessageIDs(key domain.ChatKey) ([]domain.MessageID, error) {
	if !b.owns(key) {
		return nil, nil
	}
	return b.DB.MessageIDs(key.Chat)
}

// FetchMessageDetail loads a message. Inbound messages stored without a
// sender name take it from the contacts table.
func (b *Backend) FetchMessageDetail(id domain.MessageID) (*domain.Message, error) {
	m, err := b.DB.GetMessage(id)
	if err != nil || m == nil || m.FromMe || m.SenderName != "" || m.SenderJID == "" {
		return m, err
	}
	c, err := b.DB.GetContact(m.SenderJID)
	if err != nil {
		return nil, err
	}
	if c != nil {
		if c.Name != "" {
			m.SenderName = c.Name
		} else {
			m.SenderName = c.PushName
		}
	}
	return m, nil
}

func (b *Backend) SearchMessages(key domain.ChatKey, query string) ([]domain.MessageID, error) {
	if !b.owns(key) {
		return nil, nil
	}
	return b.DB.SearchMessageIDs(key.Chat, query, b.SearchLimit)
}

func (b *Backend) GetDraft(key domain.ChatKey) (*domain.Draft, error) {
	if !b.owns(key) {
		return nil, nil
	}
	return b.DB.GetDraft(key.Chat)
}

func (b *Backend) SetDraft(key domain.ChatKey, d *domain.Draft) error {
	if !b.owns(key) {
		return nil
	}
	return b.DB.SetDraft(key.Chat, d)
}

func (b *Backend) MarkSeen(ids []domain.MessageID) error {
	return b.DB.MarkSeen(ids)
}

// DeleteMessage removes a message of this account.
func (b *Backend) DeleteMessage(id domain.MessageID) error {
	_, err := b.DB.DeleteMessage(id)
	return err
}

// AcceptContactRequest clears the contact request flag of key.
func (b *Backend) AcceptContactRequest(key domain.ChatKey) error {
	if !b.owns(key) {
		return nil
	}
	return b.DB.AcceptContactRequest(key.Chat)
}
