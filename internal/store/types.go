package store

import "github.com/matheus3301/chatline/internal/domain"

// Chat represents a stored chat.
type Chat struct {
	JID                string
	Name               string
	IsGroup            bool
	ContactRequest     bool
	UnreadCount        int
	LastMessageAt      int64
	LastMessagePreview string
}

// Contact represents a stored contact.
type Contact struct {
	JID      string
	Name     string
	PushName string
}

// OutboxEntry represents a pending outgoing message.
type OutboxEntry struct {
	ID             int64
	ClientMsgID    string
	ChatJID        string
	Body           string
	QuoteID        domain.MessageID
	AttachmentPath string
	AttachmentKind domain.AttachmentKind
	Status         string // queued, sending, sent, failed
	ErrorMessage   string
	ServerMsgID    string
}

// Attachment returns the entry's attachment, or nil.
func (e *OutboxEntry) Attachment() *domain.Attachment {
	if e.AttachmentPath == "" {
		return nil
	}
	return &domain.Attachment{Path: e.AttachmentPath, Kind: e.AttachmentKind}
}

// SearchResult holds a message with a search snippet.
type SearchResult struct {
	Message domain.Message
	Snippet string
}
