package sync

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/matheus3301/chatline/internal/bus"
	"github.com/matheus3301/chatline/internal/domain"
	"github.com/matheus3301/chatline/internal/store"
	"go.uber.org/zap"
)

func testDB(t *testing.T) *store.DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	db, err := store.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := db.Migrate(); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func waitEvent(t *testing.T, ch <-chan bus.Event) bus.Event {
	t.Helper()
	select {
	case evt := <-ch:
		return evt
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for event")
	}
	return bus.Event{}
}

func TestEngineIngestMessage(t *testing.T) {
	db := testDB(t)
	b := bus.New()
	e := NewEngine(db, b, "main", nil)

	ch, unsub := b.Subscribe("message.", 10)
	defer unsub()

	msg := &domain.Message{
		ChatJID: "chat@s", MsgID: "m1", Body: "hello",
		MessageType: "text", Timestamp: 1000,
	}
	id, err := e.IngestMessage(msg)
	if err != nil {
		t.Fatal(err)
	}

	// Verify chat was auto-created.
	chat, err := db.GetChat("chat@s")
	if err != nil {
		t.Fatal(err)
	}
	if chat == nil {
		t.Fatal("chat not created")
	}

	// Verify message stored.
	msgs, err := db.ListMessages("chat@s", 0, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(msgs) != 1 || msgs[0].Body != "hello" {
		t.Errorf("got %d messages, want 1 with body=hello", len(msgs))
	}

	evt := waitEvent(t, ch)
	if evt.Kind != bus.KindMessageChanged {
		t.Errorf("event kind = %q, want message.changed", evt.Kind)
	}
	want := domain.DataChanged{Key: domain.ChatKey{Account: "main", Chat: "chat@s"}, MsgID: id}
	if evt.Payload != want {
		t.Errorf("payload = %+v, want %+v", evt.Payload, want)
	}
}

func TestEngineIngestMessageIdempotent(t *testing.T) {
	db := testDB(t)
	e := NewEngine(db, bus.New(), "main", nil)

	msg := &domain.Message{
		ChatJID: "chat@s", MsgID: "m1", Body: "v1",
		MessageType: "text", Timestamp: 1000,
	}
	if _, err := e.IngestMessage(msg); err != nil {
		t.Fatal(err)
	}
	msg.Body = "v2"
	if _, err := e.IngestMessage(msg); err != nil {
		t.Fatal(err)
	}

	msgs, err := db.ListMessages("chat@s", 0, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(msgs) != 1 {
		t.Fatalf("got %d messages, want 1 (idempotent)", len(msgs))
	}
	if msgs[0].Body != "v2" {
		t.Errorf("body = %q, want v2 (updated)", msgs[0].Body)
	}
}

func TestEngineIngestHistoryBatch(t *testing.T) {
	db := testDB(t)
	b := bus.New()
	e := NewEngine(db, b, "main", nil)

	syncCh, unsubSync := b.Subscribe("sync.", 10)
	defer unsubSync()
	changedCh, unsubChanged := b.Subscribe(bus.KindMessageChanged, 10)
	defer unsubChanged()

	msgs := []*domain.Message{
		{ChatJID: "a@s", MsgID: "m1", Body: "one", Timestamp: 1000},
		{ChatJID: "a@s", MsgID: "m2", Body: "two", Timestamp: 2000},
		{ChatJID: "b@s", MsgID: "m3", Body: "three", Timestamp: 3000},
	}

	if err := e.IngestHistoryBatch(msgs); err != nil {
		t.Fatal(err)
	}

	// Verify chats created.
	chats, err := db.ListChats(10, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(chats) != 2 {
		t.Errorf("got %d chats, want 2", len(chats))
	}

	// Verify all messages stored.
	msgsA, _ := db.ListMessages("a@s", 0, 10)
	msgsB, _ := db.ListMessages("b@s", 0, 10)
	if len(msgsA) != 2 || len(msgsB) != 1 {
		t.Errorf("got %d+%d messages, want 2+1", len(msgsA), len(msgsB))
	}

	// One change event per chat, none naming a single message.
	for _, jid := range []string{"a@s", "b@s"} {
		evt := waitEvent(t, changedCh)
		dc := evt.Payload.(domain.DataChanged)
		if dc.Key.Chat != jid || dc.MsgID != 0 {
			t.Errorf("payload = %+v, want chat %s with no message id", dc, jid)
		}
	}

	evt := waitEvent(t, syncCh)
	if evt.Kind != bus.KindHistoryIngested {
		t.Errorf("event kind = %q, want sync.history_batch", evt.Kind)
	}
}

func TestEngineHistoryBatchIdempotent(t *testing.T) {
	db := testDB(t)
	e := NewEngine(db, bus.New(), "main", nil)

	msgs := []*domain.Message{
		{ChatJID: "a@s", MsgID: "m1", Body: "hello", Timestamp: 1000, State: domain.StateReceived},
	}

	// Ingest twice.
	if err := e.IngestHistoryBatch(msgs); err != nil {
		t.Fatal(err)
	}
	if err := e.IngestHistoryBatch(msgs); err != nil {
		t.Fatal(err)
	}

	stored, _ := db.ListMessages("a@s", 0, 10)
	if len(stored) != 1 {
		t.Errorf("got %d messages, want 1 (idempotent batch)", len(stored))
	}
}

// TestEngineBusSubscription verifies the engine processes inbound events
// from the bus.
func TestEngineBusSubscription(t *testing.T) {
	db := testDB(t)
	b := bus.New()
	logger, _ := zap.NewDevelopment()
	e := NewEngine(db, b, "main", logger)

	ctx := context.Background()
	e.Start(ctx)
	defer e.Stop()

	b.Emit(bus.KindInboundMessage, &domain.Message{
		ChatJID: "bus-test@s", MsgID: "bm1", Body: "from bus", Timestamp: 5000,
	})

	// Give the engine time to process.
	time.Sleep(100 * time.Millisecond)

	msgs, err := db.ListMessages("bus-test@s", 0, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(msgs) != 1 {
		t.Fatalf("got %d messages, want 1 (bus subscription)", len(msgs))
	}
	if msgs[0].Body != "from bus" {
		t.Errorf("body = %q, want 'from bus'", msgs[0].Body)
	}

	b.Emit(bus.KindInboundHistory, []*domain.Message{
		{ChatJID: "batch@s", MsgID: "hm1", Body: "history", Timestamp: 6000},
		{ChatJID: "batch@s", MsgID: "hm2", Body: "history2", Timestamp: 7000},
	})

	time.Sleep(100 * time.Millisecond)

	msgs, err = db.ListMessages("batch@s", 0, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(msgs) != 2 {
		t.Errorf("got %d messages, want 2 (history batch via bus)", len(msgs))
	}

	b.Emit(bus.KindInboundDelete, DeleteRequest{ChatJID: "batch@s", MsgID: "hm1"})

	time.Sleep(100 * time.Millisecond)

	msgs, _ = db.ListMessages("batch@s", 0, 10)
	if len(msgs) != 1 || msgs[0].MsgID != "hm2" {
		t.Errorf("got %+v, want only hm2 after delete", msgs)
	}
}

func TestEngineDeleteUnknownMessage(t *testing.T) {
	db := testDB(t)
	e := NewEngine(db, bus.New(), "main", nil)

	if err := e.DeleteMessage("chat@s", "nope"); err == nil {
		t.Error("expected error for unknown message")
	}
}

func TestTruncateKeepsRunes(t *testing.T) {
	if got := truncate("héllo", 2); got != "hé" {
		t.Errorf("truncate = %q, want hé", got)
	}
	if got := truncate("hi", 10); got != "hi" {
		t.Errorf("truncate = %q, want hi", got)
	}
}

func TestEngineRecordsSenderContacts(t *testing.T) {
	db := testDB(t)
	e := NewEngine(db, bus.New(), "main", nil)

	if _, err := e.IngestMessage(&domain.Message{
		ChatJID: "g@s", MsgID: "m1", SenderJID: "ann@s", SenderName: "Ann", Body: "hi", Timestamp: 1,
	}); err != nil {
		t.Fatal(err)
	}
	if err := e.IngestHistoryBatch([]*domain.Message{
		{ChatJID: "g@s", MsgID: "m2", SenderJID: "bob@s", SenderName: "Bob", Body: "yo", Timestamp: 2},
		{ChatJID: "g@s", MsgID: "m3", SenderJID: "me@s", SenderName: "Me", FromMe: true, Body: "hey", Timestamp: 3},
		{ChatJID: "g@s", MsgID: "m4", SenderJID: "cat@s", Body: "anon", Timestamp: 4},
	}); err != nil {
		t.Fatal(err)
	}

	for jid, want := range map[string]string{"ann@s": "Ann", "bob@s": "Bob"} {
		c, err := db.GetContact(jid)
		if err != nil {
			t.Fatal(err)
		}
		if c == nil || c.PushName != want {
			t.Errorf("contact %s = %v, want push name %s", jid, c, want)
		}
	}
	for _, jid := range []string{"me@s", "cat@s"} {
		if c, _ := db.GetContact(jid); c != nil {
			t.Errorf("contact %s = %+v, want none", jid, c)
		}
	}
}
