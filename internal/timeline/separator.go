package timeline

import (
	"slices"

	"github.com/matheus3301/chatline/internal/domain"
)

// Separator tracks the unread separator of one chat-open session. The
// anchor is the first unread message at the time the chat was opened; it is
// relocated on every pass but never recomputed.
type Separator struct {
	anchor domain.MessageID
	lost   bool
}

// NewSeparator returns a separator with no anchor.
func NewSeparator() *Separator {
	return &Separator{}
}

// SetAnchor starts a new session anchored at id. Zero means no separator.
func (s *Separator) SetAnchor(id domain.MessageID) {
	s.anchor = id
	s.lost = false
}

// Drop removes the separator for the rest of the session.
func (s *Separator) Drop() {
	if s.anchor != 0 {
		s.lost = true
	}
}

// Anchor returns the anchor id while the separator is still alive.
func (s *Separator) Anchor() (domain.MessageID, bool) {
	if s.anchor == 0 || s.lost {
		return 0, false
	}
	return s.anchor, true
}

// Place returns the row the separator belongs at in messages (newest first),
// immediately after its anchor. An anchor that is gone from messages loses
// the separator permanently.
func (s *Separator) Place(messages []domain.MessageID) (int, bool) {
	anchor, ok := s.Anchor()
	if !ok {
		return 0, false
	}
	k := slices.Index(messages, anchor)
	if k < 0 {
		s.lost = true
		return 0, false
	}
	return k + 1, true
}
