package timeline

import (
	"fmt"

	"github.com/matheus3301/chatline/internal/domain"
)

// Entry is one timeline row: either a message or the unread separator.
// Entries are comparable and used directly as map keys.
type Entry struct {
	separator bool
	id        domain.MessageID
}

// MessageEntry returns the row for message id.
func MessageEntry(id domain.MessageID) Entry {
	return Entry{id: id}
}

// SeparatorEntry returns the unread separator row.
func SeparatorEntry() Entry {
	return Entry{separator: true}
}

// IsSeparator reports whether e is the unread separator.
func (e Entry) IsSeparator() bool { return e.separator }

// ID returns the message id, or 0 for the separator.
func (e Entry) ID() domain.MessageID { return e.id }

func (e Entry) String() string {
	if e.separator {
		return "Separator"
	}
	return fmt.Sprintf("Message(%d)", e.id)
}
