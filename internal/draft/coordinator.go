// Package draft keeps the per-chat compose drafts of a session and decides
// when they reach the store.
package draft

import (
	"fmt"

	"github.com/matheus3301/chatline/internal/domain"
	"go.uber.org/zap"
)

// State is the shape of a chat's draft.
type State int

const (
	NoDraft State = iota
	HasText
	HasTextAndAttachment
)

func (s State) String() string {
	switch s {
	case NoDraft:
		return "no_draft"
	case HasText:
		return "text"
	case HasTextAndAttachment:
		return "text_attachment"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Status combines the draft shape with the orthogonal quote flag.
type Status struct {
	State     State
	WithQuote bool
}

// StatusOf classifies d.
func StatusOf(d *domain.Draft) Status {
	if d.Empty() {
		return Status{State: NoDraft}
	}
	st := Status{State: HasText, WithQuote: d.QuoteID != 0}
	if d.Attachment != nil {
		st.State = HasTextAndAttachment
	}
	return st
}

// Coordinator owns the drafts of every chat touched in this session. Only
// the open chat accepts text, and only while the text gate is open.
//
// Text edits are buffered and written on Flush, CloseChat or a chat switch.
// Attachment and quote changes are written immediately.
//
// A Coordinator is not safe for concurrent use.
type Coordinator struct {
	store  domain.DraftStore
	logger *zap.Logger

	drafts      map[domain.ChatKey]*domain.Draft
	open        domain.ChatKey
	isOpen      bool
	dirty       bool
	textAllowed bool
}

// NewCoordinator creates a coordinator persisting through store.
func NewCoordinator(store domain.DraftStore, logger *zap.Logger) *Coordinator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Coordinator{
		store:  store,
		logger: logger,
		drafts: make(map[domain.ChatKey]*domain.Draft),
	}
}

// OpenChat makes key the open chat. The previously open chat, key itself
// included, is flushed first, then key's draft is loaded from the store. The
// text gate stays closed until AllowDraftText is called for key.
func (c *Coordinator) OpenChat(key domain.ChatKey) error {
	c.textAllowed = false
	if c.isOpen {
		if err := c.Flush(c.open); err != nil {
			return err
		}
	}

	d, err := c.store.GetDraft(key)
	if err != nil {
		return fmt.Errorf("load draft %s: %w", key, err)
	}
	if d.Empty() {
		delete(c.drafts, key)
	} else {
		c.drafts[key] = d.Clone()
	}
	c.open = key
	c.isOpen = true
	c.dirty = false
	return nil
}

// CloseChat flushes key and leaves no chat open.
func (c *Coordinator) CloseChat(key domain.ChatKey) error {
	if !c.isOpen || c.open != key {
		return nil
	}
	err := c.Flush(key)
	c.isOpen = false
	c.textAllowed = false
	return err
}

// Open returns the open chat.
func (c *Coordinator) Open() (domain.ChatKey, bool) {
	return c.open, c.isOpen
}

// AllowDraftText reopens the text gate once key has finished loading.
func (c *Coordinator) AllowDraftText(key domain.ChatKey) {
	if c.isOpen && c.open == key {
		c.textAllowed = true
	}
}

// DisallowDraftText closes the text gate while a chat switch is in flight.
func (c *Coordinator) DisallowDraftText() {
	c.textAllowed = false
}

// SetDraftText buffers text for key. It is dropped when key is not the open
// chat or the text gate is closed.
func (c *Coordinator) SetDraftText(key domain.ChatKey, text string) {
	if !c.textAllowed || !c.isOpen || c.open != key {
		c.logger.Debug("draft text suppressed", zap.Stringer("chat", key))
		return
	}
	d := c.drafts[key]
	if d == nil {
		d = &domain.Draft{}
	}
	if d.Text == text {
		return
	}
	d.Text = text
	c.keep(key, d)
	c.dirty = true
}

// SetAttachment replaces key's attachment; nil removes it and keeps any
// text and quote. The change is persisted immediately.
func (c *Coordinator) SetAttachment(key domain.ChatKey, a *domain.Attachment) error {
	d, err := c.draft(key)
	if err != nil {
		return err
	}
	if a == nil {
		d.Attachment = nil
	} else {
		cp := *a
		d.Attachment = &cp
	}
	c.keep(key, d)
	return c.persist(key)
}

// SetQuote sets the quoted message of key's draft; zero removes it. The
// change is persisted immediately.
func (c *Coordinator) SetQuote(key domain.ChatKey, id domain.MessageID) error {
	d, err := c.draft(key)
	if err != nil {
		return err
	}
	d.QuoteID = id
	c.keep(key, d)
	return c.persist(key)
}

// Flush writes key's draft to the store. An empty draft clears the stored
// one. The open chat is only written when it has unsaved text.
func (c *Coordinator) Flush(key domain.ChatKey) error {
	if c.isOpen && c.open == key && !c.dirty {
		return nil
	}
	return c.persist(key)
}

// Draft returns a copy of key's draft, or nil.
func (c *Coordinator) Draft(key domain.ChatKey) *domain.Draft {
	return c.drafts[key].Clone()
}

// Status returns the shape of key's draft.
func (c *Coordinator) Status(key domain.ChatKey) Status {
	return StatusOf(c.drafts[key])
}

// TakeForSend removes key's draft and clears it in the store. It returns nil
// when there is nothing to send.
func (c *Coordinator) TakeForSend(key domain.ChatKey) (*domain.Draft, error) {
	d := c.drafts[key]
	if d.Empty() {
		return nil, nil
	}
	delete(c.drafts, key)
	if err := c.persist(key); err != nil {
		c.drafts[key] = d
		return nil, err
	}
	return d, nil
}

// draft returns key's working draft. A chat that is not open and has no
// draft in this session starts from its stored draft.
func (c *Coordinator) draft(key domain.ChatKey) (*domain.Draft, error) {
	if d, ok := c.drafts[key]; ok {
		return d, nil
	}
	if c.isOpen && c.open == key {
		return &domain.Draft{}, nil
	}
	d, err := c.store.GetDraft(key)
	if err != nil {
		return nil, fmt.Errorf("load draft %s: %w", key, err)
	}
	if d == nil {
		return &domain.Draft{}, nil
	}
	return d.Clone(), nil
}

// keep holds d in the session map, or forgets it once it is empty.
func (c *Coordinator) keep(key domain.ChatKey, d *domain.Draft) {
	if d.Empty() {
		delete(c.drafts, key)
		return
	}
	c.drafts[key] = d
}

func (c *Coordinator) persist(key domain.ChatKey) error {
	d := c.drafts[key]
	var err error
	if d.Empty() {
		err = c.store.SetDraft(key, nil)
	} else {
		err = c.store.SetDraft(key, d.Clone())
	}
	if err != nil {
		return fmt.Errorf("save draft %s: %w", key, err)
	}
	if c.isOpen && c.open == key {
		c.dirty = false
	}
	c.logger.Debug("draft saved",
		zap.Stringer("chat", key),
		zap.Stringer("state", StatusOf(d).State))
	return nil
}
