package bus

import "time"

// Event represents a domain event published on the bus.
type Event struct {
	Kind      string
	Timestamp time.Time
	Payload   any
}

// Event kinds shared between publishers and subscribers.
const (
	// KindMessageChanged carries a domain.DataChanged. A zero MsgID means
	// the change could not be narrowed to one message.
	KindMessageChanged = "message.changed"
	// KindMessageStatus carries a domain.DataChanged naming the message
	// whose delivery state moved.
	KindMessageStatus = "message.status_changed"
	KindSendAck       = "message.send_ack"
	KindSendFailed    = "message.send_failed"

	// Inbound events feed the sync engine.
	KindInboundMessage = "inbound.message"
	KindInboundHistory = "inbound.history_batch"
	KindInboundDelete  = "inbound.delete"

	KindHistoryIngested = "sync.history_batch"
	KindViewState       = "view.state_changed"
)
