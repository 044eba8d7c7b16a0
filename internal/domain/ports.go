package domain

import "errors"

// ErrNotFound is returned when a message or chat no longer exists.
var ErrNotFound = errors.New("not found")

// Backend is the message store the timeline core depends on.
type Backend interface {
	// FetchOrderedMessageIDs returns the chat's message ids, oldest first.
	FetchOrderedMessageIDs(key ChatKey) ([]MessageID, error)
	// FetchMessageDetail returns ErrNotFound for ids that no longer exist.
	FetchMessageDetail(id MessageID) (*Message, error)
	// SearchMessages returns matching ids, newest first.
	SearchMessages(key ChatKey, query string) ([]MessageID, error)
	GetDraft(key ChatKey) (*Draft, error)
	// SetDraft stores d, or clears the draft when d is nil.
	SetDraft(key ChatKey, d *Draft) error
	MarkSeen(ids []MessageID) error
}

// DraftStore is the subset of Backend used by the draft coordinator.
type DraftStore interface {
	GetDraft(key ChatKey) (*Draft, error)
	SetDraft(key ChatKey, d *Draft) error
}

// Searcher is the subset of Backend used by the search tracker.
type Searcher interface {
	SearchMessages(key ChatKey, query string) ([]MessageID, error)
}
