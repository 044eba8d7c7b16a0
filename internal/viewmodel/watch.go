package viewmodel

import (
	"context"
	"errors"

	"github.com/matheus3301/chatline/internal/bus"
	"github.com/matheus3301/chatline/internal/domain"
	"github.com/matheus3301/chatline/internal/timeline"
	"go.uber.org/zap"
)

// Dispatcher runs f on the goroutine that owns the ChatView.
type Dispatcher interface {
	Dispatch(f func())
}

// DispatcherFunc adapts a function to Dispatcher.
type DispatcherFunc func(f func())

func (d DispatcherFunc) Dispatch(f func()) { d(f) }

const watchBuffer = 256

// Watch forwards message events of the open chat to the view until ctx is
// done. Every update runs through d.
func (v *ChatView) Watch(ctx context.Context, b *bus.Bus, d Dispatcher) {
	ch, unsub := b.Subscribe("message.", watchBuffer)
	defer unsub()

	for {
		select {
		case <-ctx.Done():
			return
		case evt, ok := <-ch:
			if !ok {
				return
			}
			change, ok := evt.Payload.(domain.DataChanged)
			if !ok {
				continue
			}
			switch evt.Kind {
			case bus.KindMessageChanged:
				d.Dispatch(func() { v.handleChange(change) })
			case bus.KindMessageStatus:
				d.Dispatch(func() { v.handleStatus(change) })
			}
		}
	}
}

func (v *ChatView) handleChange(change domain.DataChanged) {
	if !v.open || !change.Key.Matches(v.key) {
		return
	}
	err := v.DataChanged(change.MsgID)
	if err != nil && !errors.Is(err, timeline.ErrInconsistentOrdering) {
		v.logger.Warn("failed to refresh chat", zap.Stringer("chat", v.key), zap.Error(err))
	}
}

func (v *ChatView) handleStatus(change domain.DataChanged) {
	if !v.open || !change.Key.Matches(v.key) {
		return
	}
	v.MessageStatusChanged(change.MsgID)
}
