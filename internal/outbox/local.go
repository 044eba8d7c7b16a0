package outbox

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/matheus3301/chatline/internal/bus"
	"github.com/matheus3301/chatline/internal/domain"
	"github.com/matheus3301/chatline/internal/store"
)

// LocalSender is a loopback transport: every message is accepted at once and
// echoed back as an inbound message carrying the final state.
type LocalSender struct {
	bus *bus.Bus
}

// NewLocalSender creates a loopback sender publishing echoes on b.
func NewLocalSender(b *bus.Bus) *LocalSender {
	return &LocalSender{bus: b}
}

func (l *LocalSender) Send(ctx context.Context, e *store.OutboxEntry) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if e.AttachmentPath != "" {
		if _, err := os.Stat(e.AttachmentPath); err != nil {
			return "", fmt.Errorf("attachment: %w", err)
		}
	}
	serverID := "local-" + uuid.NewString()
	l.bus.Emit(bus.KindInboundMessage, &domain.Message{
		ChatJID:     e.ChatJID,
		MsgID:       e.ClientMsgID,
		Body:        e.Body,
		MessageType: messageType(e),
		FromMe:      true,
		State:       domain.StateSent,
		Seen:        true,
		QuoteID:     e.QuoteID,
		Timestamp:   time.Now().UnixMilli(),
	})
	return serverID, nil
}
