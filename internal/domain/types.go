package domain

import "fmt"

// MessageID identifies a message in the backing store. Zero means
// "unspecified" wherever a single id is optional.
type MessageID int64

// ChatKey is the account+chat composite key.
type ChatKey struct {
	Account string
	Chat    string
}

// String renders the key as <account>_<chat>.
func (k ChatKey) String() string {
	return fmt.Sprintf("%s_%s", k.Account, k.Chat)
}

// IsZero reports whether the key names no chat. A zero Chat is used as a
// broadcast key in change notifications.
func (k ChatKey) IsZero() bool {
	return k.Chat == ""
}

// Matches reports whether a change notification for k concerns chat other.
func (k ChatKey) Matches(other ChatKey) bool {
	if k.IsZero() {
		return k.Account == "" || k.Account == other.Account
	}
	return k == other
}

// Message states.
const (
	StateReceived = "received"
	StateSeen     = "seen"
	StateSending  = "sending"
	StateSent     = "sent"
	StateFailed   = "failed"
)

// Message is the detail record fetched for one timeline row.
type Message struct {
	ID          MessageID
	ChatJID     string
	MsgID       string
	SenderJID   string
	SenderName  string
	Body        string
	MessageType string
	FromMe      bool
	State       string
	Seen        bool
	QuoteID     MessageID
	Timestamp   int64
}

// Unread reports whether the message counts toward the unread separator.
func (m *Message) Unread() bool {
	return !m.Seen && !m.FromMe
}

// AttachmentKind is the declared kind of a draft attachment.
type AttachmentKind string

const (
	AttachImage AttachmentKind = "image"
	AttachAudio AttachmentKind = "audio"
	AttachVoice AttachmentKind = "voice"
	AttachFile  AttachmentKind = "file"
)

// ParseAttachmentKind validates a user supplied kind.
func ParseAttachmentKind(s string) (AttachmentKind, error) {
	switch k := AttachmentKind(s); k {
	case AttachImage, AttachAudio, AttachVoice, AttachFile:
		return k, nil
	}
	return "", fmt.Errorf("unknown attachment kind %q", s)
}

// Attachment describes a file attached to a draft.
type Attachment struct {
	Path string
	Kind AttachmentKind
}

// Draft is the persisted draft of a chat.
type Draft struct {
	Text       string
	Attachment *Attachment
	QuoteID    MessageID
}

// Empty reports whether the draft carries nothing worth persisting.
func (d *Draft) Empty() bool {
	return d == nil || (d.Text == "" && d.Attachment == nil && d.QuoteID == 0)
}

// Clone returns a deep copy.
func (d *Draft) Clone() *Draft {
	if d == nil {
		return nil
	}
	c := *d
	if d.Attachment != nil {
		a := *d.Attachment
		c.Attachment = &a
	}
	return &c
}

// DataChanged is the payload of "message.changed" bus events.
type DataChanged struct {
	Key   ChatKey
	MsgID MessageID
}
