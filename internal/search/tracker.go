// Package search tracks the full-text search highlights of one open chat.
package search

import (
	"fmt"

	"github.com/matheus3301/chatline/internal/domain"
	"go.uber.org/zap"
)

// Locator maps a message id to its current row, or -1.
type Locator interface {
	IndexOf(id domain.MessageID) int
}

// Listener receives the tracker's notifications.
type Listener interface {
	// OnRowChanged reports a row whose match attribute toggled.
	OnRowChanged(row int)
	// OnMatchCount reports the 1-based cursor position and the number of
	// matches. Both are zero without matches.
	OnMatchCount(current, total int)
	// OnJumpTo asks the view to scroll to row.
	OnJumpTo(row int)
}

// Position selects a match for JumpToPosition.
type Position int

const (
	First Position = iota
	Previous
	Next
	Last
)

func (p Position) String() string {
	switch p {
	case First:
		return "first"
	case Previous:
		return "previous"
	case Next:
		return "next"
	case Last:
		return "last"
	default:
		return fmt.Sprintf("Position(%d)", int(p))
	}
}

type nopListener struct{}

func (nopListener) OnRowChanged(int)      {}
func (nopListener) OnMatchCount(int, int) {}
func (nopListener) OnJumpTo(int)          {}

// Tracker holds the search state of one chat: the query, the matching ids
// (newest first) and a cursor into them.
type Tracker struct {
	searcher domain.Searcher
	loc      Locator
	listener Listener
	logger   *zap.Logger

	key     domain.ChatKey
	query   string
	results []domain.MessageID // nil while no query is set
	matches map[domain.MessageID]struct{}
	cursor  int
}

// NewTracker creates a tracker that searches through s and resolves rows
// through loc.
func NewTracker(s domain.Searcher, loc Locator, l Listener, logger *zap.Logger) *Tracker {
	if l == nil {
		l = nopListener{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Tracker{searcher: s, loc: loc, listener: l, logger: logger}
}

// SetListener replaces the listener. Nil detaches it.
func (t *Tracker) SetListener(l Listener) {
	if l == nil {
		l = nopListener{}
	}
	t.listener = l
}

// Reset forgets the previous chat's state and starts tracking key. No
// notifications are emitted; the view is rebuilt by the caller anyway.
func (t *Tracker) Reset(key domain.ChatKey) {
	t.key = key
	t.query = ""
	t.results = nil
	t.matches = nil
	t.cursor = 0
}

// Query returns the current query.
func (t *Tracker) Query() string { return t.query }

// IsMatch reports whether id is in the current result set.
func (t *Tracker) IsMatch(id domain.MessageID) bool {
	_, ok := t.matches[id]
	return ok
}

// Position returns the 1-based cursor and the total number of matches.
func (t *Tracker) Position() (current, total int) {
	if len(t.results) == 0 {
		return 0, 0
	}
	return t.cursor + 1, len(t.results)
}

// SetQuery runs q and notifies only the rows whose highlight toggled.
// Setting the current query again does nothing. An empty query clears
// the results.
func (t *Tracker) SetQuery(q string) error {
	if q == t.query {
		return nil
	}

	var next []domain.MessageID
	if q != "" {
		ids, err := t.searcher.SearchMessages(t.key, q)
		if err != nil {
			return fmt.Errorf("search %s: %w", t.key, err)
		}
		next = ids
		if next == nil {
			next = []domain.MessageID{}
		}
	}
	t.query = q

	prev := t.matches
	nextSet := make(map[domain.MessageID]struct{}, len(next))
	unique := next[:0:0]
	for _, id := range next {
		if _, dup := nextSet[id]; dup {
			continue
		}
		nextSet[id] = struct{}{}
		unique = append(unique, id)
	}
	next = unique
	t.results = next
	t.matches = nextSet
	t.cursor = 0

	if len(prev) == 0 && len(next) == 0 {
		t.listener.OnMatchCount(0, 0)
		return nil
	}

	toggled := 0
	for id := range prev {
		if _, ok := nextSet[id]; !ok {
			toggled += t.notify(id)
		}
	}
	for _, id := range next {
		if _, ok := prev[id]; !ok {
			toggled += t.notify(id)
		}
	}
	t.logger.Debug("search query applied",
		zap.Stringer("chat", t.key),
		zap.Int("matches", len(next)),
		zap.Int("toggled", toggled))

	t.listener.OnMatchCount(t.Position())
	if len(next) > 0 {
		t.jump()
	}
	return nil
}

// JumpToPosition moves the cursor within the current results, clamped to
// both ends, and reports the new position.
func (t *Tracker) JumpToPosition(p Position) {
	if len(t.results) == 0 {
		t.listener.OnMatchCount(0, 0)
		return
	}
	switch p {
	case First:
		t.cursor = 0
	case Last:
		t.cursor = len(t.results) - 1
	case Next:
		t.cursor = min(t.cursor+1, len(t.results)-1)
	case Previous:
		t.cursor = max(t.cursor-1, 0)
	}
	t.jump()
	t.listener.OnMatchCount(t.Position())
}

func (t *Tracker) notify(id domain.MessageID) int {
	row := t.loc.IndexOf(id)
	if row < 0 {
		return 0
	}
	t.listener.OnRowChanged(row)
	return 1
}

// jump requests the row under the cursor; a match whose message has since
// disappeared is skipped.
func (t *Tracker) jump() {
	if row := t.loc.IndexOf(t.results[t.cursor]); row >= 0 {
		t.listener.OnJumpTo(row)
	}
}
