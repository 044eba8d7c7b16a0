package outbox

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/matheus3301/chatline/internal/bus"
	"github.com/matheus3301/chatline/internal/domain"
	"github.com/matheus3301/chatline/internal/store"
	"go.uber.org/zap"
)

// TextSender delivers one outbox entry to the chat's transport.
type TextSender interface {
	Send(ctx context.Context, e *store.OutboxEntry) (serverMsgID string, err error)
}

// Enqueue turns a draft into an outbox entry and returns its client id.
func Enqueue(db *store.DB, chatJID string, d *domain.Draft) (string, error) {
	if d.Empty() {
		return "", fmt.Errorf("enqueue %s: empty draft", chatJID)
	}
	e := &store.OutboxEntry{
		ClientMsgID: uuid.NewString(),
		ChatJID:     chatJID,
		Body:        d.Text,
		QuoteID:     d.QuoteID,
	}
	if d.Attachment != nil {
		e.AttachmentPath = d.Attachment.Path
		e.AttachmentKind = d.Attachment.Kind
	}
	if err := db.QueueOutbox(e); err != nil {
		return "", fmt.Errorf("enqueue %s: %w", chatJID, err)
	}
	return e.ClientMsgID, nil
}

// Queue enqueues drafts for one account's chats.
type Queue struct {
	DB *store.DB
}

// Enqueue queues d for key's chat.
func (q Queue) Enqueue(key domain.ChatKey, d *domain.Draft) (string, error) {
	return Enqueue(q.DB, key.Chat, d)
}

// Sender drains the outbox and sends messages through a TextSender.
type Sender struct {
	db      *store.DB
	sender  TextSender
	bus     *bus.Bus
	account string
	logger  *zap.Logger
	cancel  context.CancelFunc
}

// NewSender creates a new outbox sender.
func NewSender(db *store.DB, sender TextSender, b *bus.Bus, account string, logger *zap.Logger) *Sender {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Sender{
		db:      db,
		sender:  sender,
		bus:     b,
		account: account,
		logger:  logger,
	}
}

// Start begins polling the outbox for pending messages.
func (s *Sender) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)
	go s.loop(ctx)
}

// Stop stops the sender loop.
func (s *Sender) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
}

func (s *Sender) loop(ctx context.Context) {
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.processPending(ctx)
		case <-ctx.Done():
			return
		}
	}
}

func messageType(e *store.OutboxEntry) string {
	if e.AttachmentPath != "" {
		return string(e.AttachmentKind)
	}
	return "text"
}

func (s *Sender) processPending(ctx context.Context) {
	pending, err := s.db.PendingOutbox()
	if err != nil {
		s.logger.Error("failed to read outbox", zap.Error(err))
		return
	}

	for i := range pending {
		entry := &pending[i]
		if err := s.db.MarkOutboxSending(entry.ClientMsgID); err != nil {
			s.logger.Error("failed to mark sending", zap.Error(err), zap.String("client_msg_id", entry.ClientMsgID))
			continue
		}
		key := domain.ChatKey{Account: s.account, Chat: entry.ChatJID}

		// Optimistic insert: show the message in the UI immediately.
		now := time.Now().UnixMilli()
		if err := s.db.UpsertChat(&store.Chat{JID: entry.ChatJID, LastMessageAt: now, LastMessagePreview: entry.Body}); err != nil {
			s.logger.Warn("failed to touch chat", zap.Error(err), zap.String("chat", entry.ChatJID))
		}
		id, err := s.db.UpsertMessage(&domain.Message{
			ChatJID:     entry.ChatJID,
			MsgID:       entry.ClientMsgID,
			Body:        entry.Body,
			MessageType: messageType(entry),
			FromMe:      true,
			State:       domain.StateSending,
			Seen:        true,
			QuoteID:     entry.QuoteID,
			Timestamp:   now,
		})
		if err != nil {
			s.logger.Error("failed optimistic insert", zap.Error(err), zap.String("client_msg_id", entry.ClientMsgID))
		} else {
			s.bus.Emit(bus.KindMessageChanged, domain.DataChanged{Key: key, MsgID: id})
		}

		serverMsgID, err := s.sender.Send(ctx, entry)
		if err != nil {
			s.logger.Error("failed to send message", zap.Error(err), zap.String("client_msg_id", entry.ClientMsgID))
			_ = s.db.MarkOutboxFailed(entry.ClientMsgID, err.Error())
			s.setState(key, id, domain.StateFailed)
			s.bus.Emit(bus.KindSendFailed, map[string]string{
				"client_msg_id": entry.ClientMsgID,
				"error":         err.Error(),
			})
			continue
		}

		if err := s.db.MarkOutboxSent(entry.ClientMsgID, serverMsgID); err != nil {
			s.logger.Error("failed to mark sent", zap.Error(err), zap.String("client_msg_id", entry.ClientMsgID))
		}
		s.setState(key, id, domain.StateSent)

		s.logger.Info("message sent", zap.String("client_msg_id", entry.ClientMsgID), zap.String("server_msg_id", serverMsgID))
		s.bus.Emit(bus.KindSendAck, map[string]string{
			"client_msg_id": entry.ClientMsgID,
			"server_msg_id": serverMsgID,
		})
	}
}

// setState moves the optimistic message to its final delivery state.
func (s *Sender) setState(key domain.ChatKey, id domain.MessageID, state string) {
	if id == 0 {
		return
	}
	if err := s.db.SetMessageState(id, state); err != nil {
		s.logger.Warn("failed to update message state", zap.Error(err), zap.Int64("id", int64(id)))
		return
	}
	s.bus.Emit(bus.KindMessageStatus, domain.DataChanged{Key: key, MsgID: id})
}
