package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/matheus3301/chatline/internal/domain"
)

// GetDraft returns the stored draft of a chat, or nil.
func (db *DB) GetDraft(chatJID string) (*domain.Draft, error) {
	var (
		d    domain.Draft
		path string
		kind domain.AttachmentKind
	)
	err := db.QueryRow(`SELECT text, attachment_path, attachment_kind, quote_id FROM drafts WHERE chat_jid = ?`, chatJID).
		Scan(&d.Text, &path, &kind, &d.QuoteID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get draft %s: %w", chatJID, err)
	}
	if path != "" {
		d.Attachment = &domain.Attachment{Path: path, Kind: kind}
	}
	return &d, nil
}

// SetDraft stores the draft of a chat. An empty or nil draft deletes it.
func (db *DB) SetDraft(chatJID string, d *domain.Draft) error {
	if d.Empty() {
		if _, err := db.Exec(`DELETE FROM drafts WHERE chat_jid = ?`, chatJID); err != nil {
			return fmt.Errorf("clear draft %s: %w", chatJID, err)
		}
		return nil
	}
	var (
		path string
		kind domain.AttachmentKind
	)
	if d.Attachment != nil {
		path, kind = d.Attachment.Path, d.Attachment.Kind
	}
	_, err := db.Exec(`
		INSERT INTO drafts (chat_jid, text, attachment_path, attachment_kind, quote_id, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(chat_jid) DO UPDATE SET
			text = excluded.text,
			attachment_path = excluded.attachment_path,
			attachment_kind = excluded.attachment_kind,
			quote_id = excluded.quote_id,
			updated_at = excluded.updated_at`,
		chatJID, d.Text, path, kind, d.QuoteID, time.Now().UnixMilli())
	if err != nil {
		return fmt.Errorf("set draft %s: %w", chatJID, err)
	}
	return nil
}
