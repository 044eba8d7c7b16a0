package sync

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/matheus3301/chatline/internal/domain"
	"go.uber.org/zap"
)

// Record is one line of a JSONL message export.
type Record struct {
	Chat       string `json:"chat"`
	ID         string `json:"id"`
	Sender     string `json:"sender"`
	SenderName string `json:"sender_name"`
	Body       string `json:"body"`
	Type       string `json:"type"`
	FromMe     bool   `json:"from_me"`
	Seen       bool   `json:"seen"`
	Timestamp  int64  `json:"ts"`
}

func (r *Record) message() *domain.Message {
	state := domain.StateReceived
	if r.FromMe {
		state = domain.StateSent
	}
	return &domain.Message{
		ChatJID:     r.Chat,
		MsgID:       r.ID,
		SenderJID:   r.Sender,
		SenderName:  r.SenderName,
		Body:        r.Body,
		MessageType: r.Type,
		FromMe:      r.FromMe,
		State:       state,
		Seen:        r.Seen,
		Timestamp:   r.Timestamp,
	}
}

// ImportResult summarizes an import run.
type ImportResult struct {
	Skipped  int
	Imported int
}

// Importer feeds JSONL exports through the engine in batches and keeps a
// line checkpoint per source, so re-running an import resumes after the
// last committed batch.
type Importer struct {
	engine     *Engine
	reconciler *Reconciler
	batchSize  int
	logger     *zap.Logger
}

// NewImporter creates an importer committing batchSize lines at a time.
func NewImporter(e *Engine, r *Reconciler, batchSize int, logger *zap.Logger) *Importer {
	if batchSize <= 0 {
		batchSize = 200
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Importer{engine: e, reconciler: r, batchSize: batchSize, logger: logger}
}

// Import reads records from src. source names the checkpoint.
func (im *Importer) Import(ctx context.Context, source string, src io.Reader) (ImportResult, error) {
	var res ImportResult
	key := "import:" + source
	done, err := im.reconciler.Offset(key)
	if err != nil {
		return res, err
	}

	sc := bufio.NewScanner(src)
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
	line := 0
	var batch []*domain.Message

	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := im.engine.IngestHistoryBatch(batch); err != nil {
			return err
		}
		res.Imported += len(batch)
		batch = batch[:0]
		return im.reconciler.SetOffset(key, line)
	}

	for sc.Scan() {
		line++
		if line <= done {
			res.Skipped++
			continue
		}
		if err := ctx.Err(); err != nil {
			return res, err
		}
		var rec Record
		if err := json.Unmarshal(sc.Bytes(), &rec); err != nil {
			return res, fmt.Errorf("%s:%d: %w", source, line, err)
		}
		if rec.Chat == "" || rec.ID == "" {
			return res, fmt.Errorf("%s:%d: chat and id are required", source, line)
		}
		batch = append(batch, rec.message())
		if len(batch) == im.batchSize {
			if err := flush(); err != nil {
				return res, err
			}
		}
	}
	if err := sc.Err(); err != nil {
		return res, fmt.Errorf("read %s: %w", source, err)
	}
	if err := flush(); err != nil {
		return res, err
	}
	im.logger.Info("import finished",
		zap.String("source", source),
		zap.Int("imported", res.Imported),
		zap.Int("skipped", res.Skipped))
	return res, nil
}
