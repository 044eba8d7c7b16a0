package sync

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/matheus3301/chatline/internal/bus"
	"github.com/matheus3301/chatline/internal/domain"
	"github.com/matheus3301/chatline/internal/store"
	"go.uber.org/zap"
)

// DeleteRequest is the payload of "inbound.delete" events.
type DeleteRequest struct {
	ChatJID string
	MsgID   string
}

// Engine handles idempotent ingestion of messages into the store.
// It subscribes to "inbound.*" events on the bus and announces every change
// as a "message.changed" event for the account's chat views.
type Engine struct {
	db      *store.DB
	bus     *bus.Bus
	account string
	logger  *zap.Logger
	cancel  context.CancelFunc
}

// NewEngine creates a new sync engine.
func NewEngine(db *store.DB, b *bus.Bus, account string, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		db:      db,
		bus:     b,
		account: account,
		logger:  logger,
	}
}

// Start subscribes to inbound events on the bus.
func (e *Engine) Start(ctx context.Context) {
	ctx, e.cancel = context.WithCancel(ctx)
	ch, unsub := e.bus.Subscribe("inbound.", 256)

	go func() {
		defer unsub()
		for {
			select {
			case evt := <-ch:
				e.handleEvent(evt)
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop stops the engine.
func (e *Engine) Stop() {
	if e.cancel != nil {
		e.cancel()
	}
}

func (e *Engine) handleEvent(evt bus.Event) {
	switch evt.Kind {
	case bus.KindInboundMessage:
		msg, ok := evt.Payload.(*domain.Message)
		if !ok {
			return
		}
		if _, err := e.IngestMessage(msg); err != nil {
			e.logger.Error("failed to ingest message", zap.Error(err), zap.String("msg_id", msg.MsgID))
		}
	case bus.KindInboundHistory:
		msgs, ok := evt.Payload.([]*domain.Message)
		if !ok {
			return
		}
		if err := e.IngestHistoryBatch(msgs); err != nil {
			e.logger.Error("failed to ingest history batch", zap.Error(err), zap.Int("count", len(msgs)))
		} else {
			e.logger.Info("history batch ingested", zap.Int("messages", len(msgs)))
		}
	case bus.KindInboundDelete:
		req, ok := evt.Payload.(DeleteRequest)
		if !ok {
			return
		}
		if err := e.DeleteMessage(req.ChatJID, req.MsgID); err != nil && !errors.Is(err, domain.ErrNotFound) {
			e.logger.Error("failed to delete message", zap.Error(err), zap.String("msg_id", req.MsgID))
		}
	}
}

func (e *Engine) key(chatJID string) domain.ChatKey {
	return domain.ChatKey{Account: e.account, Chat: chatJID}
}

// IngestMessage processes a single message into the store (idempotent).
func (e *Engine) IngestMessage(msg *domain.Message) (domain.MessageID, error) {
	if err := e.db.UpsertChat(&store.Chat{
		JID:                msg.ChatJID,
		LastMessageAt:      msg.Timestamp,
		LastMessagePreview: truncate(msg.Body, 100),
	}); err != nil {
		return 0, fmt.Errorf("upsert chat: %w", err)
	}

	if c := senderContact(msg); c != nil {
		if err := e.db.UpsertContact(c); err != nil {
			return 0, err
		}
	}

	id, err := e.db.UpsertMessage(msg)
	if err != nil {
		return 0, fmt.Errorf("upsert message: %w", err)
	}

	e.bus.Emit(bus.KindMessageChanged, domain.DataChanged{Key: e.key(msg.ChatJID), MsgID: id})
	return id, nil
}

// IngestHistoryBatch processes a batch of history messages in a transaction.
// Each touched chat gets one "message.changed" event without a message id,
// since a batch can land anywhere in the chat's history.
func (e *Engine) IngestHistoryBatch(msgs []*domain.Message) error {
	tx, err := e.db.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	var chats []string
	for _, m := range msgs {
		if err := tx.UpsertChat(&store.Chat{
			JID:                m.ChatJID,
			LastMessageAt:      m.Timestamp,
			LastMessagePreview: truncate(m.Body, 100),
		}); err != nil {
			return fmt.Errorf("upsert chat in batch: %w", err)
		}
		if c := senderContact(m); c != nil {
			if err := tx.UpsertContact(c); err != nil {
				return err
			}
		}
		if _, err := tx.UpsertMessage(m); err != nil {
			return fmt.Errorf("upsert message in batch: %w", err)
		}
		if !slices.Contains(chats, m.ChatJID) {
			chats = append(chats, m.ChatJID)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit batch: %w", err)
	}

	for _, jid := range chats {
		e.bus.Emit(bus.KindMessageChanged, domain.DataChanged{Key: e.key(jid)})
	}
	e.bus.Emit(bus.KindHistoryIngested, map[string]int{
		"messages_count": len(msgs),
		"chats_count":    len(chats),
	})
	return nil
}

// senderContact returns the contact an inbound message announces, or nil
// when it carries no sender name.
func senderContact(m *domain.Message) *store.Contact {
	if m.FromMe || m.SenderJID == "" || m.SenderName == "" {
		return nil
	}
	return &store.Contact{JID: m.SenderJID, PushName: m.SenderName}
}

// DeleteMessage removes a message identified by its protocol id.
func (e *Engine) DeleteMessage(chatJID, msgID string) error {
	id, err := e.db.FindMessage(chatJID, msgID)
	if err != nil {
		return err
	}
	if _, err := e.db.DeleteMessage(id); err != nil {
		return err
	}
	e.bus.Emit(bus.KindMessageChanged, domain.DataChanged{Key: e.key(chatJID)})
	return nil
}

func truncate(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	return string(r[:maxLen])
}
