package sync

import (
	"fmt"
	"strconv"

	"github.com/matheus3301/chatline/internal/store"
	"go.uber.org/zap"
)

// Reconciler manages history sync checkpoints, so an interrupted import
// resumes where it stopped.
type Reconciler struct {
	db     *store.DB
	logger *zap.Logger
}

// NewReconciler creates a new reconciler.
func NewReconciler(db *store.DB, logger *zap.Logger) *Reconciler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reconciler{db: db, logger: logger}
}

// UpdateCheckpoint updates a sync checkpoint value.
func (r *Reconciler) UpdateCheckpoint(key, value string) error {
	return r.db.SetCheckpoint(key, value)
}

// GetCheckpoint retrieves a sync checkpoint value; "" when none was stored.
func (r *Reconciler) GetCheckpoint(key string) (string, error) {
	return r.db.Checkpoint(key)
}

// Offset returns a numeric checkpoint, or 0 when none was stored.
func (r *Reconciler) Offset(key string) (int, error) {
	v, err := r.db.Checkpoint(key)
	if err != nil || v == "" {
		return 0, err
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		r.logger.Warn("ignoring malformed checkpoint", zap.String("key", key), zap.String("value", v))
		return 0, nil
	}
	return n, nil
}

// SetOffset stores a numeric checkpoint.
func (r *Reconciler) SetOffset(key string, n int) error {
	if err := r.db.SetCheckpoint(key, strconv.Itoa(n)); err != nil {
		return fmt.Errorf("checkpoint %s: %w", key, err)
	}
	return nil
}
