package store

import (
	"context"
	"time"

	"github.com/matheus3301/chatline/internal/bus"
	"github.com/matheus3301/chatline/internal/domain"
	"go.uber.org/zap"
)

// Watcher notices commits made to the database by other processes, such as
// chatlinectl, and announces them as a change to every chat of the account.
type Watcher struct {
	db       *DB
	bus      *bus.Bus
	account  string
	interval time.Duration
	logger   *zap.Logger
	cancel   context.CancelFunc
	last     int64
}

// NewWatcher creates a watcher polling every interval.
func NewWatcher(db *DB, b *bus.Bus, account string, interval time.Duration, logger *zap.Logger) *Watcher {
	if interval <= 0 {
		interval = 500 * time.Millisecond
	}
	return &Watcher{db: db, bus: b, account: account, interval: interval, logger: logger}
}

// Start begins polling.
func (w *Watcher) Start(ctx context.Context) error {
	v, err := w.db.DataVersion()
	if err != nil {
		return err
	}
	w.last = v
	ctx, w.cancel = context.WithCancel(ctx)
	go w.loop(ctx)
	return nil
}

// Stop stops the polling loop.
func (w *Watcher) Stop() {
	if w.cancel != nil {
		w.cancel()
	}
}

func (w *Watcher) loop(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			w.poll()
		case <-ctx.Done():
			return
		}
	}
}

func (w *Watcher) poll() {
	v, err := w.db.DataVersion()
	if err != nil {
		w.logger.Warn("failed to poll data version", zap.Error(err))
		return
	}
	if v == w.last {
		return
	}
	w.last = v
	w.logger.Debug("external database change", zap.Int64("data_version", v))
	w.bus.Emit(bus.KindMessageChanged, domain.DataChanged{Key: domain.ChatKey{Account: w.account}})
}
