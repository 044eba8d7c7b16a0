// Package viewmodel presents one open chat as a newest-first row model.
package viewmodel

import (
	"errors"
	"fmt"

	"github.com/matheus3301/chatline/internal/domain"
	"github.com/matheus3301/chatline/internal/draft"
	"github.com/matheus3301/chatline/internal/search"
	"github.com/matheus3301/chatline/internal/status"
	"github.com/matheus3301/chatline/internal/timeline"
	"go.uber.org/zap"
)

// Mutator applies user actions that change stored messages or chats.
type Mutator interface {
	DeleteMessage(id domain.MessageID) error
	AcceptContactRequest(key domain.ChatKey) error
}

// Outbox queues a draft for delivery and returns its client id.
type Outbox interface {
	Enqueue(key domain.ChatKey, d *domain.Draft) (string, error)
}

// Options controls per-session view behavior.
type Options struct {
	MarkSeenOnOpen bool
	ShowSeparator  bool
}

// infoType marks system messages that never group with their neighbours.
const infoType = "info"

// ErrNoChat is returned by operations that need an open chat.
var ErrNoChat = errors.New("no chat open")

// ChatView drives the timeline, search and draft state of the open chat.
//
// A ChatView is not safe for concurrent use. Bus events reach it through
// Watch, which hands every update to a Dispatcher.
type ChatView struct {
	backend domain.Backend
	mutator Mutator
	outbox  Outbox
	machine *status.Machine
	opts    Options
	logger  *zap.Logger

	tl      *timeline.Timeline
	sep     *timeline.Separator
	engine  *timeline.Engine
	tracker *search.Tracker
	drafts  *draft.Coordinator

	listener       Listener
	key            domain.ChatKey
	open           bool
	contactRequest bool
}

// New creates a ChatView. machine may be nil.
func New(backend domain.Backend, mutator Mutator, outbox Outbox, machine *status.Machine, opts Options, logger *zap.Logger) *ChatView {
	if logger == nil {
		logger = zap.NewNop()
	}
	v := &ChatView{
		backend:  backend,
		mutator:  mutator,
		outbox:   outbox,
		machine:  machine,
		opts:     opts,
		logger:   logger,
		tl:       timeline.New(),
		sep:      timeline.NewSeparator(),
		listener: NopListener{},
	}
	fw := forward{l: v.listener}
	v.engine = timeline.NewEngine(v.tl, v.sep, fw, logger)
	v.tracker = search.NewTracker(backend, v.tl, fw, logger)
	v.drafts = draft.NewCoordinator(backend, logger)
	return v
}

// SetListener attaches the row model consumer. Nil detaches it.
func (v *ChatView) SetListener(l Listener) {
	if l == nil {
		l = NopListener{}
	}
	v.listener = l
	fw := forward{l: l}
	v.engine.SetObserver(fw)
	v.tracker.SetListener(fw)
}

// Chat returns the open chat.
func (v *ChatView) Chat() (domain.ChatKey, bool) {
	return v.key, v.open
}

// ContactRequest reports whether the open chat is an unaccepted contact
// request.
func (v *ChatView) ContactRequest() bool {
	return v.contactRequest
}

// Open loads key's messages and draft. Messages of a contact request are not
// marked seen and get no separator until the request is accepted.
//
// The composer must call Ready once it has shown the loaded draft; text
// edits reported before that are ignored.
func (v *ChatView) Open(key domain.ChatKey, contactRequest bool) error {
	v.transition(status.Opening, key)
	ids, err := v.backend.FetchOrderedMessageIDs(key)
	if err != nil {
		// The previous chat is closed, so the view never shows one chat
		// while its draft belongs to another.
		if v.open {
			if cerr := v.Close(); cerr != nil {
				v.logger.Warn("failed to close chat", zap.Stringer("chat", v.key), zap.Error(cerr))
			}
		} else {
			v.transition(status.Closed, key)
		}
		return fmt.Errorf("open %s: %w", key, err)
	}
	if err := v.drafts.OpenChat(key); err != nil {
		v.logger.Warn("failed to load draft", zap.Stringer("chat", key), zap.Error(err))
	}

	v.key = key
	v.open = true
	v.contactRequest = contactRequest
	v.tracker.Reset(key)

	v.sep.SetAnchor(0)
	if !contactRequest {
		anchor, at := v.firstUnread(ids)
		if anchor != 0 {
			if v.opts.ShowSeparator {
				v.sep.SetAnchor(anchor)
			}
			if v.opts.MarkSeenOnOpen {
				if err := v.backend.MarkSeen(ids[at:]); err != nil {
					v.logger.Warn("failed to mark seen", zap.Stringer("chat", key), zap.Error(err))
				}
			}
		}
	}
	v.engine.Load(ids)
	v.logger.Debug("chat opened",
		zap.Stringer("chat", key),
		zap.Int("messages", len(ids)),
		zap.Int("separator", v.tl.SeparatorIndex()),
	)
	return nil
}

// firstUnread scans ids oldest first and returns the first unread message
// and its position.
func (v *ChatView) firstUnread(ids []domain.MessageID) (domain.MessageID, int) {
	for i, id := range ids {
		m, err := v.backend.FetchMessageDetail(id)
		if err != nil {
			if !errors.Is(err, domain.ErrNotFound) {
				v.logger.Warn("failed to fetch message", zap.Int64("id", int64(id)), zap.Error(err))
			}
			continue
		}
		if m.Unread() {
			return id, i
		}
	}
	return 0, -1
}

// Ready marks the open chat as fully shown and accepts draft text edits.
func (v *ChatView) Ready() {
	if !v.open {
		return
	}
	v.drafts.AllowDraftText(v.key)
	v.transition(status.Open, v.key)
}

// Close flushes the draft and empties the row model.
func (v *ChatView) Close() error {
	if !v.open {
		return nil
	}
	key := v.key
	err := v.drafts.CloseChat(key)
	v.open = false
	v.contactRequest = false
	v.key = domain.ChatKey{}
	v.sep.SetAnchor(0)
	v.tracker.Reset(domain.ChatKey{})
	v.engine.Load(nil)
	v.transition(status.Closed, key)
	return err
}

func (v *ChatView) transition(to status.State, key domain.ChatKey) {
	if v.machine == nil {
		return
	}
	if err := v.machine.Transition(to, key); err != nil {
		v.logger.Debug("view transition skipped", zap.Error(err))
	}
}

// RowCount returns the number of rows, separator included.
func (v *ChatView) RowCount() int { return v.tl.Len() }

// RowAt returns the entry at row.
func (v *ChatView) RowAt(row int) (timeline.Entry, bool) { return v.tl.At(row) }

// IsSeparator reports whether row is the unread separator.
func (v *ChatView) IsSeparator(row int) bool {
	e, ok := v.tl.At(row)
	return ok && e.IsSeparator()
}

// SeparatorIndex returns the separator row, or -1.
func (v *ChatView) SeparatorIndex() int { return v.tl.SeparatorIndex() }

// UnreadCount returns how many messages sit above the separator.
func (v *ChatView) UnreadCount() int {
	if i := v.tl.SeparatorIndex(); i > 0 {
		return i
	}
	return 0
}

// Detail returns the message shown at row. ok is false for the separator and
// out of range rows.
func (v *ChatView) Detail(row int) (*domain.Message, bool, error) {
	return v.tl.Detail(row, v.backend.FetchMessageDetail)
}

// IsSearchMatch reports whether row holds a message matching the query.
func (v *ChatView) IsSearchMatch(row int) bool {
	e, ok := v.tl.At(row)
	if !ok || e.IsSeparator() {
		return false
	}
	return v.tracker.IsMatch(e.ID())
}

// SameSenderAsNext reports whether row and the newer row above it come from
// the same sender, so the UI can group them.
func (v *ChatView) SameSenderAsNext(row int) bool {
	if row <= 0 || v.IsSeparator(row-1) {
		return false
	}
	cur, ok, err := v.Detail(row)
	if err != nil || !ok {
		return false
	}
	next, ok := v.tl.At(row - 1)
	if !ok {
		return false
	}
	nm, err := v.backend.FetchMessageDetail(next.ID())
	if err != nil {
		return false
	}
	if cur.MessageType == infoType || nm.MessageType == infoType {
		return false
	}
	if cur.FromMe || nm.FromMe {
		return cur.FromMe && nm.FromMe
	}
	return cur.SenderJID == nm.SenderJID
}

// DataChanged re-fetches the open chat and reconciles the row model. changed
// names the message whose attributes moved, zero for any.
func (v *ChatView) DataChanged(changed domain.MessageID) error {
	if !v.open {
		return nil
	}
	ids, err := v.backend.FetchOrderedMessageIDs(v.key)
	if err != nil {
		return fmt.Errorf("refresh %s: %w", v.key, err)
	}
	return v.engine.Reconcile(ids, changed)
}

// MessageStatusChanged refreshes the row of id after a delivery state change.
func (v *ChatView) MessageStatusChanged(id domain.MessageID) {
	v.tl.Invalidate()
	if row := v.tl.IndexOf(id); row >= 0 {
		v.listener.RowChanged(row)
	}
}

// SetQuery starts a search in the open chat; empty clears it.
func (v *ChatView) SetQuery(q string) error {
	if !v.open {
		return ErrNoChat
	}
	return v.tracker.SetQuery(q)
}

// Query returns the active search query.
func (v *ChatView) Query() string { return v.tracker.Query() }

// JumpToPosition moves the current search match.
func (v *ChatView) JumpToPosition(p search.Position) { v.tracker.JumpToPosition(p) }

// CurrentMatchPosition returns the 1-based current match and the total.
func (v *ChatView) CurrentMatchPosition() (current, total int) { return v.tracker.Position() }

// JumpToQuoted asks the UI to show the message quoted by row. It returns
// false when row quotes nothing or the quote is not in this chat.
func (v *ChatView) JumpToQuoted(row int) bool {
	m, ok, err := v.Detail(row)
	if err != nil || !ok || m.QuoteID == 0 {
		return false
	}
	target := v.tl.IndexOf(m.QuoteID)
	if target < 0 {
		return false
	}
	v.listener.RequestJump(target)
	return true
}

// DeleteMessage deletes the message at row. The separator is dropped for
// the rest of the session.
func (v *ChatView) DeleteMessage(row int) error {
	e, ok := v.tl.At(row)
	if !v.open || !ok || e.IsSeparator() {
		return fmt.Errorf("delete row %d: %w", row, domain.ErrNotFound)
	}
	if err := v.mutator.DeleteMessage(e.ID()); err != nil {
		return fmt.Errorf("delete row %d: %w", row, err)
	}
	v.sep.Drop()
	return v.DataChanged(0)
}

// AcceptContactRequest accepts the open chat and marks its messages seen.
func (v *ChatView) AcceptContactRequest() error {
	if !v.open {
		return ErrNoChat
	}
	if !v.contactRequest {
		return nil
	}
	if err := v.mutator.AcceptContactRequest(v.key); err != nil {
		return fmt.Errorf("accept %s: %w", v.key, err)
	}
	v.contactRequest = false
	if err := v.backend.MarkSeen(v.tl.MessageIDs()); err != nil {
		v.logger.Warn("failed to mark seen", zap.Stringer("chat", v.key), zap.Error(err))
	}
	return v.DataChanged(0)
}

// Draft returns a copy of the open chat's draft, or nil.
func (v *ChatView) Draft() *domain.Draft {
	if !v.open {
		return nil
	}
	return v.drafts.Draft(v.key)
}

// DraftStatus returns the shape of the open chat's draft.
func (v *ChatView) DraftStatus() draft.Status {
	if !v.open {
		return draft.Status{}
	}
	return v.drafts.Status(v.key)
}

// SetDraftText reports a composer edit. It is ignored before Ready.
func (v *ChatView) SetDraftText(text string) {
	if !v.open {
		return
	}
	v.drafts.SetDraftText(v.key, text)
}

// SetAttachment attaches a file to the draft; nil detaches.
func (v *ChatView) SetAttachment(a *domain.Attachment) error {
	if !v.open {
		return ErrNoChat
	}
	return v.drafts.SetAttachment(v.key, a)
}

// QuoteRow sets the draft's quote to the message at row.
func (v *ChatView) QuoteRow(row int) error {
	e, ok := v.tl.At(row)
	if !v.open || !ok || e.IsSeparator() {
		return fmt.Errorf("quote row %d: %w", row, domain.ErrNotFound)
	}
	return v.drafts.SetQuote(v.key, e.ID())
}

// Unquote removes the draft's quote.
func (v *ChatView) Unquote() error {
	if !v.open {
		return ErrNoChat
	}
	return v.drafts.SetQuote(v.key, 0)
}

// FlushDraft persists pending draft text.
func (v *ChatView) FlushDraft() error {
	if !v.open {
		return nil
	}
	return v.drafts.Flush(v.key)
}

// Send sets the draft text to text, queues the draft and clears it. It
// returns an empty id when there was nothing to send.
func (v *ChatView) Send(text string) (string, error) {
	if !v.open {
		return "", ErrNoChat
	}
	v.drafts.SetDraftText(v.key, text)
	d := v.drafts.Draft(v.key)
	if d.Empty() {
		return "", nil
	}
	id, err := v.outbox.Enqueue(v.key, d)
	if err != nil {
		return "", fmt.Errorf("send %s: %w", v.key, err)
	}
	if _, err := v.drafts.TakeForSend(v.key); err != nil {
		v.logger.Warn("failed to clear sent draft", zap.Stringer("chat", v.key), zap.Error(err))
	}
	return id, nil
}
