package viewmodel

import (
	"context"
	"errors"
	"slices"
	"testing"
	"time"

	"github.com/matheus3301/chatline/internal/bus"
	"github.com/matheus3301/chatline/internal/domain"
	"github.com/matheus3301/chatline/internal/draft"
	"github.com/matheus3301/chatline/internal/memstore"
	"github.com/matheus3301/chatline/internal/search"
	"github.com/matheus3301/chatline/internal/status"
	"github.com/matheus3301/chatline/internal/timeline"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	alice = domain.ChatKey{Account: "me", Chat: "alice@s.whatsapp.net"}
	bob   = domain.ChatKey{Account: "me", Chat: "bob@s.whatsapp.net"}
)

// model mirrors the view's rows through the listener calls only.
type model struct {
	v       *ChatView
	rows    []timeline.Entry
	changed []int
	jumps   []int
	counts  [][2]int
	resets  int
}

func (m *model) RowsInserted(index, count int) {
	for i := range count {
		e, _ := m.v.RowAt(index + i)
		m.rows = slices.Insert(m.rows, index+i, e)
	}
}

func (m *model) RowsRemoved(index, count int) {
	m.rows = slices.Delete(m.rows, index, index+count)
}

func (m *model) RowsMoved(from, to int) {
	e := m.rows[from]
	m.rows = slices.Delete(m.rows, from, from+1)
	m.rows = slices.Insert(m.rows, to, e)
}

func (m *model) RowChanged(row int) { m.changed = append(m.changed, row) }

func (m *model) Reset() {
	m.resets++
	m.rows = m.rows[:0]
	for i := range m.v.RowCount() {
		e, _ := m.v.RowAt(i)
		m.rows = append(m.rows, e)
	}
}

func (m *model) MatchCountChanged(current, total int) {
	m.counts = append(m.counts, [2]int{current, total})
}

func (m *model) RequestJump(row int) { m.jumps = append(m.jumps, row) }

// layout renders the mirrored rows as ids, 0 for the separator.
func (m *model) layout() []int {
	out := make([]int, len(m.rows))
	for i, e := range m.rows {
		if !e.IsSeparator() {
			out[i] = int(e.ID())
		}
	}
	return out
}

func (m *model) clear() {
	m.changed = nil
	m.jumps = nil
	m.counts = nil
}

type fakeOutbox struct {
	queued []*domain.Draft
	err    error
}

func (f *fakeOutbox) Enqueue(_ domain.ChatKey, d *domain.Draft) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.queued = append(f.queued, d)
	return "client-1", nil
}

type fixture struct {
	view    *ChatView
	store   *memstore.Backend
	model   *model
	outbox  *fakeOutbox
	machine *status.Machine
}

func newFixture(t *testing.T, opts Options) *fixture {
	t.Helper()
	store := memstore.NewBackend()
	out := &fakeOutbox{}
	machine := status.NewMachine(nil)
	v := New(store, store, out, machine, opts, nil)
	m := &model{v: v}
	v.SetListener(m)
	return &fixture{view: v, store: store, model: m, outbox: out, machine: machine}
}

func (f *fixture) add(key domain.ChatKey, body string, seen bool) domain.MessageID {
	return f.store.Add(key, domain.Message{
		SenderJID: key.Chat,
		Body:      body,
		Seen:      seen,
		State:     domain.StateReceived,
	})
}

func (f *fixture) addMine(key domain.ChatKey, body string) domain.MessageID {
	return f.store.Add(key, domain.Message{
		SenderJID: "me",
		Body:      body,
		FromMe:    true,
		Seen:      true,
		State:     domain.StateSent,
	})
}

func defaults() Options {
	return Options{MarkSeenOnOpen: true, ShowSeparator: true}
}

func TestOpenPlacesSeparatorAboveFirstUnread(t *testing.T) {
	f := newFixture(t, defaults())
	f.add(alice, "one", true)
	f.add(alice, "two", true)
	f.add(alice, "three", false)
	f.add(alice, "four", false)
	f.addMine(alice, "five")

	require.NoError(t, f.view.Open(alice, false))

	assert.Equal(t, []int{5, 4, 3, 0, 2, 1}, f.model.layout())
	assert.Equal(t, 3, f.view.SeparatorIndex())
	assert.Equal(t, 3, f.view.UnreadCount())
	assert.True(t, f.view.IsSeparator(3))
	assert.Equal(t, 1, f.model.resets)

	for _, id := range []domain.MessageID{3, 4} {
		m, err := f.store.FetchMessageDetail(id)
		require.NoError(t, err)
		assert.True(t, m.Seen, "message %d", id)
		assert.Equal(t, domain.StateSeen, m.State)
	}
}

func TestOpenWithoutUnreadHasNoSeparator(t *testing.T) {
	f := newFixture(t, defaults())
	f.add(alice, "one", true)
	f.addMine(alice, "two")

	require.NoError(t, f.view.Open(alice, false))

	assert.Equal(t, []int{2, 1}, f.model.layout())
	assert.Equal(t, -1, f.view.SeparatorIndex())
	assert.Zero(t, f.view.UnreadCount())
}

func TestOpenHonoursOptions(t *testing.T) {
	f := newFixture(t, Options{})
	f.add(alice, "one", false)

	require.NoError(t, f.view.Open(alice, false))

	assert.Equal(t, []int{1}, f.model.layout())
	m, err := f.store.FetchMessageDetail(1)
	require.NoError(t, err)
	assert.False(t, m.Seen)
}

func TestContactRequestStaysUnseenUntilAccepted(t *testing.T) {
	f := newFixture(t, defaults())
	f.add(alice, "hi", false)
	f.add(alice, "there", false)

	require.NoError(t, f.view.Open(alice, true))
	assert.Equal(t, []int{2, 1}, f.model.layout())
	assert.True(t, f.view.ContactRequest())
	m, err := f.store.FetchMessageDetail(1)
	require.NoError(t, err)
	assert.False(t, m.Seen)

	f.model.clear()
	require.NoError(t, f.view.AcceptContactRequest())

	assert.True(t, f.store.Accepted(alice))
	assert.False(t, f.view.ContactRequest())
	for _, id := range []domain.MessageID{1, 2} {
		m, err := f.store.FetchMessageDetail(id)
		require.NoError(t, err)
		assert.True(t, m.Seen)
	}
	// The separator policy is fixed for the session.
	assert.Equal(t, []int{2, 1}, f.model.layout())
	assert.Equal(t, []int{0, 1}, f.model.changed)
}

func TestDataChangedAppliesIncrementally(t *testing.T) {
	f := newFixture(t, defaults())
	f.add(alice, "one", true)
	f.add(alice, "two", false)
	require.NoError(t, f.view.Open(alice, false))
	require.Equal(t, []int{2, 0, 1}, f.model.layout())

	id := f.add(alice, "three", false)
	f.model.clear()
	require.NoError(t, f.view.DataChanged(id))

	assert.Equal(t, []int{3, 2, 0, 1}, f.model.layout())
	assert.Equal(t, []int{0, 1}, f.model.changed)
	assert.Equal(t, 1, f.model.resets)

	f.add(bob, "elsewhere", false)
	require.NoError(t, f.view.DataChanged(0))
	assert.Equal(t, []int{3, 2, 0, 1}, f.model.layout())
}

func TestDataChangedOnClosedViewIsNoop(t *testing.T) {
	f := newFixture(t, defaults())
	f.add(alice, "one", false)

	require.NoError(t, f.view.DataChanged(0))
	assert.Zero(t, f.view.RowCount())
	assert.Zero(t, f.model.resets)
}

func TestDeleteMessageDropsSeparator(t *testing.T) {
	f := newFixture(t, defaults())
	f.add(alice, "one", true)
	f.add(alice, "two", false)
	f.add(alice, "three", false)
	require.NoError(t, f.view.Open(alice, false))
	require.Equal(t, []int{3, 2, 0, 1}, f.model.layout())

	require.NoError(t, f.view.DeleteMessage(0))

	assert.Equal(t, []int{2, 1}, f.model.layout())
	assert.Equal(t, -1, f.view.SeparatorIndex())

	id := f.add(alice, "four", false)
	require.NoError(t, f.view.DataChanged(id))
	assert.Equal(t, []int{4, 2, 1}, f.model.layout())
}

func TestDeleteMessageRejectsSeparatorRow(t *testing.T) {
	f := newFixture(t, defaults())
	f.add(alice, "one", true)
	f.add(alice, "two", false)
	require.NoError(t, f.view.Open(alice, false))

	err := f.view.DeleteMessage(f.view.SeparatorIndex())
	assert.True(t, errors.Is(err, domain.ErrNotFound))
	assert.Equal(t, []int{2, 0, 1}, f.model.layout())
}

func TestDetailSkipsSeparatorAndDeletedRows(t *testing.T) {
	f := newFixture(t, defaults())
	f.add(alice, "one", true)
	f.add(alice, "two", false)
	require.NoError(t, f.view.Open(alice, false))

	m, ok, err := f.view.Detail(0)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "two", m.Body)

	_, ok, err = f.view.Detail(1)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, f.store.Delete(1))
	_, ok, err = f.view.Detail(2)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMessageStatusChangedRefreshesRow(t *testing.T) {
	f := newFixture(t, defaults())
	f.add(alice, "one", true)
	id := f.addMine(alice, "two")
	require.NoError(t, f.view.Open(alice, false))

	m, _, err := f.view.Detail(0)
	require.NoError(t, err)
	require.Equal(t, domain.StateSent, m.State)

	require.NoError(t, f.store.SetState(id, domain.StateFailed))
	f.view.MessageStatusChanged(id)

	assert.Equal(t, []int{0}, f.model.changed)
	m, _, err = f.view.Detail(0)
	require.NoError(t, err)
	assert.Equal(t, domain.StateFailed, m.State)
}

func TestSameSenderAsNext(t *testing.T) {
	f := newFixture(t, Options{})
	f.add(alice, "one", true)
	f.add(alice, "two", true)
	f.addMine(alice, "three")
	f.addMine(alice, "four")
	f.store.Add(alice, domain.Message{SenderJID: alice.Chat, Body: "joined", MessageType: "info", Seen: true})
	require.NoError(t, f.view.Open(alice, false))
	// rows: [5 info, 4 mine, 3 mine, 2 alice, 1 alice]

	assert.False(t, f.view.SameSenderAsNext(0))
	assert.False(t, f.view.SameSenderAsNext(1))
	assert.True(t, f.view.SameSenderAsNext(2))
	assert.False(t, f.view.SameSenderAsNext(3))
	assert.True(t, f.view.SameSenderAsNext(4))
}

func TestSameSenderBreaksAtSeparator(t *testing.T) {
	f := newFixture(t, defaults())
	f.add(alice, "one", true)
	f.add(alice, "two", false)
	require.NoError(t, f.view.Open(alice, false))
	require.Equal(t, []int{2, 0, 1}, f.model.layout())

	assert.False(t, f.view.SameSenderAsNext(2))
}

func TestSearchHighlightsAndJumps(t *testing.T) {
	f := newFixture(t, Options{})
	f.add(alice, "hello there", true)
	f.add(alice, "unrelated", true)
	f.add(alice, "Hello again", true)
	require.NoError(t, f.view.Open(alice, false))

	require.NoError(t, f.view.SetQuery("hello"))

	assert.True(t, f.view.IsSearchMatch(0))
	assert.False(t, f.view.IsSearchMatch(1))
	assert.True(t, f.view.IsSearchMatch(2))
	assert.ElementsMatch(t, []int{0, 2}, f.model.changed)
	assert.Equal(t, [][2]int{{1, 2}}, f.model.counts)
	assert.Equal(t, []int{0}, f.model.jumps)

	f.model.clear()
	f.view.JumpToPosition(search.Next)
	assert.Equal(t, []int{2}, f.model.jumps)
	cur, total := f.view.CurrentMatchPosition()
	assert.Equal(t, 2, cur)
	assert.Equal(t, 2, total)

	f.model.clear()
	require.NoError(t, f.view.SetQuery(""))
	assert.False(t, f.view.IsSearchMatch(0))
	assert.Equal(t, [][2]int{{0, 0}}, f.model.counts)
}

func TestSearchRequiresOpenChat(t *testing.T) {
	f := newFixture(t, Options{})
	assert.ErrorIs(t, f.view.SetQuery("x"), ErrNoChat)
}

func TestSearchResetsOnChatSwitch(t *testing.T) {
	f := newFixture(t, Options{})
	f.add(alice, "hello", true)
	f.add(bob, "hello", true)
	require.NoError(t, f.view.Open(alice, false))
	require.NoError(t, f.view.SetQuery("hello"))

	require.NoError(t, f.view.Open(bob, false))
	assert.Empty(t, f.view.Query())
	assert.False(t, f.view.IsSearchMatch(0))
}

func TestJumpToQuoted(t *testing.T) {
	f := newFixture(t, Options{})
	first := f.add(alice, "question?", true)
	f.add(alice, "noise", true)
	f.store.Add(alice, domain.Message{SenderJID: "me", FromMe: true, Body: "answer", QuoteID: first, Seen: true})
	f.store.Add(alice, domain.Message{SenderJID: "me", FromMe: true, Body: "gone", QuoteID: 99, Seen: true})
	require.NoError(t, f.view.Open(alice, false))

	assert.True(t, f.view.JumpToQuoted(1))
	assert.Equal(t, []int{3}, f.model.jumps)

	assert.False(t, f.view.JumpToQuoted(0))
	assert.False(t, f.view.JumpToQuoted(2))
}

func TestDraftTextIgnoredUntilReady(t *testing.T) {
	f := newFixture(t, Options{})
	require.NoError(t, f.store.SetDraft(alice, &domain.Draft{Text: "saved"}))

	require.NoError(t, f.view.Open(alice, false))
	assert.Equal(t, "saved", f.view.Draft().Text)

	// The composer echoes its reset before the loaded draft is shown.
	f.view.SetDraftText("")
	assert.Equal(t, "saved", f.view.Draft().Text)

	f.view.Ready()
	f.view.SetDraftText("saved, edited")
	require.NoError(t, f.view.FlushDraft())

	d, err := f.store.GetDraft(alice)
	require.NoError(t, err)
	assert.Equal(t, "saved, edited", d.Text)
	assert.Equal(t, status.Open, f.machine.Current())
}

func TestChatSwitchFlushesDraft(t *testing.T) {
	f := newFixture(t, Options{})
	require.NoError(t, f.view.Open(alice, false))
	f.view.Ready()
	f.view.SetDraftText("for alice")

	require.NoError(t, f.view.Open(bob, false))
	f.view.SetDraftText("stray")
	assert.Nil(t, f.view.Draft())

	d, err := f.store.GetDraft(alice)
	require.NoError(t, err)
	assert.Equal(t, "for alice", d.Text)
	d, err = f.store.GetDraft(bob)
	require.NoError(t, err)
	assert.Nil(t, d)
	assert.Equal(t, status.Opening, f.machine.Current())
}

func TestQuoteAndAttachmentStatus(t *testing.T) {
	f := newFixture(t, defaults())
	f.add(alice, "one", true)
	f.add(alice, "two", false)
	require.NoError(t, f.view.Open(alice, false))
	f.view.Ready()

	assert.Error(t, f.view.QuoteRow(1))
	require.NoError(t, f.view.QuoteRow(0))
	require.NoError(t, f.view.SetAttachment(&domain.Attachment{Path: "/tmp/cat.png", Kind: domain.AttachImage}))
	f.view.SetDraftText("look")

	st := f.view.DraftStatus()
	assert.Equal(t, draft.HasTextAndAttachment, st.State)
	assert.True(t, st.WithQuote)

	require.NoError(t, f.view.Unquote())
	require.NoError(t, f.view.SetAttachment(nil))
	st = f.view.DraftStatus()
	assert.Equal(t, draft.HasText, st.State)
	assert.False(t, st.WithQuote)
}

func TestSendQueuesDraftAndClearsIt(t *testing.T) {
	f := newFixture(t, Options{})
	f.add(alice, "one", true)
	require.NoError(t, f.view.Open(alice, false))
	f.view.Ready()
	require.NoError(t, f.view.QuoteRow(0))

	id, err := f.view.Send("reply")
	require.NoError(t, err)
	assert.Equal(t, "client-1", id)
	require.Len(t, f.outbox.queued, 1)
	assert.Equal(t, "reply", f.outbox.queued[0].Text)
	assert.Equal(t, domain.MessageID(1), f.outbox.queued[0].QuoteID)

	assert.Nil(t, f.view.Draft())
	d, err := f.store.GetDraft(alice)
	require.NoError(t, err)
	assert.Nil(t, d)

	id, err = f.view.Send("")
	require.NoError(t, err)
	assert.Empty(t, id)
	assert.Len(t, f.outbox.queued, 1)
}

func TestSendKeepsDraftOnOutboxError(t *testing.T) {
	f := newFixture(t, Options{})
	require.NoError(t, f.view.Open(alice, false))
	f.view.Ready()
	f.outbox.err = errors.New("disk full")

	_, err := f.view.Send("hello")
	require.Error(t, err)
	assert.Equal(t, "hello", f.view.Draft().Text)
}

func TestCloseEmptiesRows(t *testing.T) {
	f := newFixture(t, defaults())
	f.add(alice, "one", false)
	require.NoError(t, f.view.Open(alice, false))
	f.view.Ready()

	require.NoError(t, f.view.Close())

	assert.Zero(t, f.view.RowCount())
	assert.Empty(t, f.model.layout())
	_, open := f.view.Chat()
	assert.False(t, open)
	assert.Equal(t, status.Closed, f.machine.Current())
}

// queue collects dispatched updates so the test goroutine can run them.
type queue chan func()

func (q queue) Dispatch(f func()) { q <- f }

// until runs dispatched updates until cond holds.
func (q queue) until(t *testing.T, cond func() bool) {
	t.Helper()
	timeout := time.After(2 * time.Second)
	for !cond() {
		select {
		case f := <-q:
			f()
		case <-timeout:
			t.Fatal("timed out waiting for dispatched update")
		}
	}
}

func TestWatchForwardsEventsOfOpenChat(t *testing.T) {
	f := newFixture(t, defaults())
	f.add(alice, "one", true)
	require.NoError(t, f.view.Open(alice, false))

	b := bus.New()
	q := make(queue, 8)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		f.view.Watch(ctx, b, q)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	// Events for other chats are dispatched but change nothing. Keep
	// emitting until the subscription is in place.
	other := f.add(bob, "not shown", false)
	require.Eventually(t, func() bool {
		b.Emit(bus.KindMessageChanged, domain.DataChanged{Key: bob, MsgID: other})
		return len(q) > 0
	}, 2*time.Second, 10*time.Millisecond)
	q.until(t, func() bool { return len(q) == 0 })
	assert.Equal(t, []int{1}, f.model.layout())

	id := f.add(alice, "two", false)
	b.Emit(bus.KindMessageChanged, domain.DataChanged{Key: alice, MsgID: id})
	q.until(t, func() bool { return slices.Equal(f.model.layout(), []int{2, 1}) })

	f.model.clear()
	require.NoError(t, f.store.SetState(id, domain.StateSeen))
	b.Emit(bus.KindMessageStatus, domain.DataChanged{Key: alice, MsgID: id})
	q.until(t, func() bool { return len(f.model.changed) > 0 })
	assert.Equal(t, []int{0}, f.model.changed)

	// Account-wide changes from the database watcher.
	f.add(alice, "three", false)
	b.Emit(bus.KindMessageChanged, domain.DataChanged{Key: domain.ChatKey{Account: "me"}})
	q.until(t, func() bool { return slices.Equal(f.model.layout(), []int{3, 2, 1}) })
}

// fetchFailing fails to list the messages of one chat.
type fetchFailing struct {
	*memstore.Backend
	chat domain.ChatKey
}

func (b fetchFailing) FetchOrderedMessageIDs(key domain.ChatKey) ([]domain.MessageID, error) {
	if key == b.chat {
		return nil, errors.New("database is locked")
	}
	return b.Backend.FetchOrderedMessageIDs(key)
}

func TestFailedOpenClosesPreviousChat(t *testing.T) {
	store := memstore.NewBackend()
	machine := status.NewMachine(nil)
	v := New(fetchFailing{Backend: store, chat: bob}, store, &fakeOutbox{}, machine, Options{}, nil)
	v.SetListener(&model{v: v})
	store.Add(alice, domain.Message{SenderJID: alice.Chat, Body: "hi", Seen: true})

	require.NoError(t, v.Open(alice, false))
	v.Ready()
	v.SetDraftText("first")

	require.Error(t, v.Open(bob, false))

	_, open := v.Chat()
	assert.False(t, open)
	assert.Zero(t, v.RowCount())
	assert.Equal(t, status.Closed, machine.Current())
	d, err := store.GetDraft(alice)
	require.NoError(t, err)
	assert.Equal(t, "first", d.Text, "the previous chat's draft is flushed")

	require.NoError(t, v.Open(alice, false))
	v.Ready()
	v.SetDraftText("second")
	assert.Equal(t, "second", v.Draft().Text)
}

func TestFailedOpenWithoutPreviousChat(t *testing.T) {
	store := memstore.NewBackend()
	machine := status.NewMachine(nil)
	v := New(fetchFailing{Backend: store, chat: bob}, store, &fakeOutbox{}, machine, Options{}, nil)

	require.Error(t, v.Open(bob, false))

	_, open := v.Chat()
	assert.False(t, open)
	assert.Equal(t, status.Closed, machine.Current())
}
