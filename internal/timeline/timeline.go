package timeline

import (
	"errors"
	"slices"

	"github.com/matheus3301/chatline/internal/domain"
)

// Timeline is the ordered row sequence of one open chat, newest first.
// It is not safe for concurrent use.
type Timeline struct {
	rows  []Entry
	cache detailCache
}

// detailCache holds the detail of the most recently looked up row.
type detailCache struct {
	valid bool
	row   int
	id    domain.MessageID
	msg   domain.Message
}

// New returns an empty timeline.
func New() *Timeline {
	return &Timeline{}
}

// Len returns the number of rows, separator included.
func (t *Timeline) Len() int { return len(t.rows) }

// At returns the entry at row i.
func (t *Timeline) At(i int) (Entry, bool) {
	if i < 0 || i >= len(t.rows) {
		return Entry{}, false
	}
	return t.rows[i], true
}

// Entries returns a copy of all rows.
func (t *Timeline) Entries() []Entry {
	return slices.Clone(t.rows)
}

// MessageIDs returns the message ids in row order, skipping the separator.
func (t *Timeline) MessageIDs() []domain.MessageID {
	ids := make([]domain.MessageID, 0, len(t.rows))
	for _, e := range t.rows {
		if !e.separator {
			ids = append(ids, e.id)
		}
	}
	return ids
}

// IndexOf returns the row holding message id, or -1.
func (t *Timeline) IndexOf(id domain.MessageID) int {
	if id == 0 {
		return -1
	}
	return slices.Index(t.rows, MessageEntry(id))
}

// SeparatorIndex returns the separator row, or -1.
func (t *Timeline) SeparatorIndex() int {
	return slices.Index(t.rows, SeparatorEntry())
}

// Detail returns the message at row, fetching it through fetch unless the
// cached slot already holds that row. A separator row yields ok == false, as
// does a message that no longer exists in the store.
func (t *Timeline) Detail(row int, fetch func(domain.MessageID) (*domain.Message, error)) (*domain.Message, bool, error) {
	e, ok := t.At(row)
	if !ok || e.separator {
		return nil, false, nil
	}
	if t.cache.valid && t.cache.row == row && t.cache.id == e.id {
		m := t.cache.msg
		return &m, true, nil
	}
	m, err := fetch(e.id)
	if errors.Is(err, domain.ErrNotFound) {
		t.Invalidate()
		return nil, false, nil
	}
	if err != nil {
		t.Invalidate()
		return nil, false, err
	}
	t.cache = detailCache{valid: true, row: row, id: e.id, msg: *m}
	return m, true, nil
}

// Invalidate empties the detail cache.
func (t *Timeline) Invalidate() {
	t.cache = detailCache{}
}

func (t *Timeline) insert(at int, e Entry) {
	t.Invalidate()
	t.rows = slices.Insert(t.rows, at, e)
}

func (t *Timeline) remove(from, count int) {
	t.Invalidate()
	t.rows = slices.Delete(t.rows, from, from+count)
}

func (t *Timeline) move(from, to int) {
	t.Invalidate()
	e := t.rows[from]
	t.rows = slices.Delete(t.rows, from, from+1)
	t.rows = slices.Insert(t.rows, to, e)
}

func (t *Timeline) reset(rows []Entry) {
	t.Invalidate()
	t.rows = rows
}
