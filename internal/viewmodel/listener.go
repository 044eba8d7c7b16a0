package viewmodel

import "github.com/matheus3301/chatline/internal/timeline"

// Listener is the row-model contract the UI implements. Calls arrive on the
// thread that drives the ChatView, in the order the changes were applied.
type Listener interface {
	RowsInserted(index, count int)
	RowsRemoved(index, count int)
	RowsMoved(from, to int)
	RowChanged(row int)
	// Reset means every row must be re-read.
	Reset()
	MatchCountChanged(current, total int)
	RequestJump(row int)
}

// NopListener ignores every notification. Embed it to implement only part
// of Listener.
type NopListener struct{}

func (NopListener) RowsInserted(int, int)      {}
func (NopListener) RowsRemoved(int, int)       {}
func (NopListener) RowsMoved(int, int)         {}
func (NopListener) RowChanged(int)             {}
func (NopListener) Reset()                     {}
func (NopListener) MatchCountChanged(int, int) {}
func (NopListener) RequestJump(int)            {}

// forward adapts a Listener to the timeline observer and the search
// tracker's listener.
type forward struct {
	l Listener
}

func (f forward) OnInsert(at int, _ timeline.Entry) { f.l.RowsInserted(at, 1) }
func (f forward) OnRemove(from, count int)          { f.l.RowsRemoved(from, count) }
func (f forward) OnMove(from, to int)               { f.l.RowsMoved(from, to) }
func (f forward) OnRowChanged(row int)              { f.l.RowChanged(row) }
func (f forward) OnReset()                          { f.l.Reset() }
func (f forward) OnMatchCount(current, total int)   { f.l.MatchCountChanged(current, total) }
func (f forward) OnJumpTo(row int)                  { f.l.RequestJump(row) }
