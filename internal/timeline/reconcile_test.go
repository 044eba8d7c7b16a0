package timeline

import (
	"math/rand/v2"
	"slices"
	"testing"

	"github.com/matheus3301/chatline/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mirror applies observer calls to its own copy of the rows, the way a UI
// list model would.
type mirror struct {
	Recorder
	rows []Entry
	tl   *Timeline
}

func (m *mirror) OnInsert(at int, e Entry) {
	m.Recorder.OnInsert(at, e)
	m.rows = slices.Insert(m.rows, at, e)
}

func (m *mirror) OnRemove(from, count int) {
	m.Recorder.OnRemove(from, count)
	m.rows = slices.Delete(m.rows, from, from+count)
}

func (m *mirror) OnMove(from, to int) {
	m.Recorder.OnMove(from, to)
	e := m.rows[from]
	m.rows = slices.Delete(m.rows, from, from+1)
	m.rows = slices.Insert(m.rows, to, e)
}

func (m *mirror) OnReset() {
	m.Recorder.OnReset()
	m.rows = m.tl.Entries()
}

func ids(v ...int) []domain.MessageID {
	out := make([]domain.MessageID, len(v))
	for i, x := range v {
		out[i] = domain.MessageID(x)
	}
	return out
}

func rows(v ...int) []Entry {
	out := make([]Entry, len(v))
	for i, x := range v {
		if x == 0 {
			out[i] = SeparatorEntry()
		} else {
			out[i] = MessageEntry(domain.MessageID(x))
		}
	}
	return out
}

func newFixture(anchor int, oldestFirst ...int) (*Engine, *mirror) {
	tl := New()
	sep := NewSeparator()
	sep.SetAnchor(domain.MessageID(anchor))
	m := &mirror{tl: tl}
	e := NewEngine(tl, sep, m, nil)
	e.Load(ids(oldestFirst...))
	m.Clear()
	return e, m
}

func TestLoadPlacesSeparatorAfterAnchor(t *testing.T) {
	e, m := newFixture(3, 1, 2, 3, 4, 5)
	assert.Equal(t, rows(5, 4, 3, 0, 2, 1), e.tl.Entries())
	assert.Equal(t, e.tl.Entries(), m.rows)
	assert.Equal(t, 3, e.tl.SeparatorIndex())
}

func TestReconcileNewMessageKeepsSeparator(t *testing.T) {
	e, m := newFixture(3, 1, 2, 3, 4, 5)

	require.NoError(t, e.Reconcile(ids(1, 2, 3, 4, 5, 6), 6))

	assert.Equal(t, []Op{{Kind: OpInsert, A: 0, Entry: MessageEntry(6)}}, m.Structural())
	assert.Equal(t, rows(6, 5, 4, 3, 0, 2, 1), e.tl.Entries())
	assert.Equal(t, 4, e.tl.SeparatorIndex())
	assert.Equal(t, []int{0, 1}, m.Changed())
}

func TestReconcileDeletedMessage(t *testing.T) {
	e, m := newFixture(0, 8, 9, 10)

	require.NoError(t, e.Reconcile(ids(8, 10), 0))

	assert.Equal(t, []Op{
		{Kind: OpMove, A: 2, B: 1},
		{Kind: OpRemove, A: 2, B: 1},
	}, m.Structural())
	assert.Equal(t, rows(10, 8), e.tl.Entries())
	assert.Equal(t, e.tl.Entries(), m.rows)
}

func TestReconcileIdempotent(t *testing.T) {
	e, m := newFixture(2, 1, 2, 3)
	snapshot := ids(1, 2, 3, 4)

	require.NoError(t, e.Reconcile(snapshot, 0))
	m.Clear()
	require.NoError(t, e.Reconcile(snapshot, 0))

	assert.Empty(t, m.Structural())
}

func TestReconcileEmptySnapshot(t *testing.T) {
	e, m := newFixture(2, 1, 2, 3)

	require.NoError(t, e.Reconcile(nil, 0))

	assert.Equal(t, []Op{{Kind: OpRemove, A: 0, B: 4}}, m.Structural())
	assert.Zero(t, e.tl.Len())
	_, alive := e.sep.Anchor()
	assert.False(t, alive)
}

func TestSeparatorAnchorLostIsNeverRecreated(t *testing.T) {
	e, _ := newFixture(2, 1, 2, 3)
	require.Equal(t, rows(3, 2, 0, 1), e.tl.Entries())

	require.NoError(t, e.Reconcile(ids(1, 3), 0))
	assert.Equal(t, rows(3, 1), e.tl.Entries())

	// The anchor id showing up again does not bring the separator back.
	require.NoError(t, e.Reconcile(ids(1, 2, 3), 0))
	assert.Equal(t, -1, e.tl.SeparatorIndex())
}

func TestSeparatorAppendedWhenAnchorIsOldest(t *testing.T) {
	e, _ := newFixture(1, 1, 2, 3)
	assert.Equal(t, rows(3, 2, 1, 0), e.tl.Entries())

	require.NoError(t, e.Reconcile(ids(1, 2, 3, 4), 4))
	assert.Equal(t, rows(4, 3, 2, 1, 0), e.tl.Entries())
}

func TestReconcileChangedRows(t *testing.T) {
	e, m := newFixture(0, 1, 2, 3)

	require.NoError(t, e.Reconcile(ids(1, 2, 3), 1))
	assert.Equal(t, []int{2}, m.Changed(), "oldest row has no follower")

	m.Clear()
	require.NoError(t, e.Reconcile(ids(1, 2, 3), 0))
	assert.Equal(t, []int{0, 1, 2}, m.Changed())

	m.Clear()
	require.NoError(t, e.Reconcile(ids(1, 2, 3), 99))
	assert.Empty(t, m.Changed(), "unknown id is a stale reference")
}

func TestReconcileDuplicateFallsBackToReset(t *testing.T) {
	e, m := newFixture(0, 1, 2, 3)

	err := e.Reconcile(ids(1, 2, 2, 3), 0)

	require.ErrorIs(t, err, ErrInconsistentOrdering)
	assert.Equal(t, []Op{{Kind: OpReset}}, m.Structural())
	assert.Equal(t, rows(3, 2, 1), e.tl.Entries())
}

func TestReconcileBackwardMoveFallsBackToReset(t *testing.T) {
	e, m := newFixture(0, 1, 2, 3)

	err := e.Reconcile(ids(1, 3, 2), 0)

	require.ErrorIs(t, err, ErrInconsistentOrdering)
	assert.Equal(t, []Op{{Kind: OpReset}}, m.Structural())
	assert.Equal(t, rows(2, 3, 1), e.tl.Entries())
	assert.Equal(t, e.tl.Entries(), m.rows)
}

func TestReconcileInsertsBackfilledHistory(t *testing.T) {
	e, m := newFixture(0, 10, 20, 30)

	require.NoError(t, e.Reconcile(ids(5, 10, 15, 20, 30), 0))

	assert.Equal(t, rows(30, 20, 15, 10, 5), e.tl.Entries())
	assert.Equal(t, e.tl.Entries(), m.rows)
}

// reentrant reconciles again from inside the first callback it receives.
type reentrant struct {
	Recorder
	t     *testing.T
	e     *Engine
	fired bool
}

func (r *reentrant) OnInsert(at int, en Entry) {
	r.Recorder.OnInsert(at, en)
	if !r.fired {
		r.fired = true
		require.NoError(r.t, r.e.Reconcile(ids(1, 2, 3, 4), 0))
	}
}

func TestReconcileQueuesReentrantCalls(t *testing.T) {
	tl := New()
	r := &reentrant{t: t}
	e := NewEngine(tl, NewSeparator(), r, nil)
	r.e = e
	e.Load(ids(1))
	r.Clear()

	require.NoError(t, e.Reconcile(ids(1, 2, 3), 0))

	// The queued pass only starts after the first pass's two inserts.
	assert.Equal(t, []Op{
		{Kind: OpInsert, A: 0, Entry: MessageEntry(3)},
		{Kind: OpInsert, A: 1, Entry: MessageEntry(2)},
		{Kind: OpInsert, A: 0, Entry: MessageEntry(4)},
	}, r.Structural())
	assert.Equal(t, rows(4, 3, 2, 1), tl.Entries())
}

func TestReconcileInvalidatesDetailCache(t *testing.T) {
	e, _ := newFixture(0, 1, 2)
	fetches := 0
	fetch := func(id domain.MessageID) (*domain.Message, error) {
		fetches++
		return &domain.Message{ID: id}, nil
	}

	_, _, err := e.tl.Detail(0, fetch)
	require.NoError(t, err)
	_, _, err = e.tl.Detail(0, fetch)
	require.NoError(t, err)
	assert.Equal(t, 1, fetches)

	require.NoError(t, e.Reconcile(ids(1, 2), 0))
	_, _, err = e.tl.Detail(0, fetch)
	require.NoError(t, err)
	assert.Equal(t, 2, fetches)
}

// TestReconcileRandomizedConvergence drives the engine through random
// deletions and arrivals and checks the invariants after every pass.
func TestReconcileRandomizedConvergence(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))
	for round := 0; round < 200; round++ {
		store := ids(1, 2, 3, 4, 5, 6, 7, 8)
		next := 9
		anchor := int(store[rng.IntN(len(store))])
		e, m := newFixture(anchor, 1, 2, 3, 4, 5, 6, 7, 8)

		for step := 0; step < 10; step++ {
			// Delete a random subset.
			store = slices.DeleteFunc(store, func(domain.MessageID) bool { return rng.IntN(4) == 0 })
			// Append new arrivals.
			for n := rng.IntN(3); n > 0; n-- {
				store = append(store, domain.MessageID(next))
				next++
			}
			before := positions(e.tl)
			m.Clear()

			require.NoError(t, e.Reconcile(store, 0))

			assert.True(t, slices.Equal(e.tl.Entries(), m.rows), "observer diverged: %v vs %v", m.rows, e.tl.Entries())
			wantLen := len(store)
			if e.tl.SeparatorIndex() >= 0 {
				wantLen++
			}
			assert.Equal(t, wantLen, e.tl.Len())
			assert.True(t, slices.Equal(newestFirst(store), e.tl.MessageIDs()))
			assertNoBackwardMove(t, before, positions(e.tl))
			for _, op := range m.Structural() {
				assert.NotEqual(t, OpReset, op.Kind)
				if op.Kind == OpMove {
					assert.Greater(t, op.A, op.B, "moves go toward the front")
				}
			}
		}
	}
}

func positions(tl *Timeline) map[domain.MessageID]int {
	out := make(map[domain.MessageID]int)
	for i, id := range tl.MessageIDs() {
		out[id] = i
	}
	return out
}

// assertNoBackwardMove checks that surviving messages keep their relative order.
func assertNoBackwardMove(t *testing.T, before, after map[domain.MessageID]int) {
	t.Helper()
	type pair struct {
		id       domain.MessageID
		from, to int
	}
	var survivors []pair
	for id, from := range before {
		if to, ok := after[id]; ok {
			survivors = append(survivors, pair{id, from, to})
		}
	}
	slices.SortFunc(survivors, func(a, b pair) int { return a.from - b.from })
	for i := 1; i < len(survivors); i++ {
		assert.Less(t, survivors[i-1].to, survivors[i].to, "message %d overtaken", survivors[i].id)
	}
}
