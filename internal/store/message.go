package store

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/matheus3301/chatline/internal/domain"
)

const messageColumns = `id, chat_jid, msg_id, sender_jid, sender_name, body, message_type, from_me, state, seen, quote_id, timestamp`

type scanner interface {
	Scan(dest ...any) error
}

func scanMessage(s scanner, m *domain.Message) error {
	return s.Scan(&m.ID, &m.ChatJID, &m.MsgID, &m.SenderJID, &m.SenderName, &m.Body,
		&m.MessageType, &m.FromMe, &m.State, &m.Seen, &m.QuoteID, &m.Timestamp)
}

// UpsertMessage inserts or updates a message (idempotent on chat_jid + msg_id)
// and returns its row id.
func (db *DB) UpsertMessage(m *domain.Message) (domain.MessageID, error) {
	return upsertMessage(db, m)
}

// UpsertMessage is UpsertMessage within the transaction.
func (tx *Tx) UpsertMessage(m *domain.Message) (domain.MessageID, error) {
	return upsertMessage(tx, m)
}

func upsertMessage(q queryer, m *domain.Message) (domain.MessageID, error) {
	now := time.Now().UnixMilli()
	if m.MessageType == "" {
		m.MessageType = "text"
	}
	if m.State == "" {
		m.State = domain.StateReceived
	}
	var id domain.MessageID
	err := q.QueryRow(`
		INSERT INTO messages (chat_jid, msg_id, sender_jid, sender_name, body, message_type, from_me, state, seen, quote_id, timestamp, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(chat_jid, msg_id) DO UPDATE SET
			sender_name = excluded.sender_name,
			body = excluded.body,
			state = excluded.state,
			seen = MAX(messages.seen, excluded.seen),
			quote_id = excluded.quote_id
		RETURNING id`,
		m.ChatJID, m.MsgID, m.SenderJID, m.SenderName, m.Body, m.MessageType, m.FromMe, m.State, m.Seen, m.QuoteID, m.Timestamp, now).
		Scan(&id)
	if err != nil {
		return 0, err
	}
	m.ID = id
	return id, nil
}

// ListMessages returns messages for a chat, newest first, using keyset
// pagination by row id.
func (db *DB) ListMessages(chatJID string, beforeID domain.MessageID, limit int) ([]domain.Message, error) {
	if limit <= 0 {
		limit = 50
	}
	if beforeID <= 0 {
		beforeID = 1<<63 - 1
	}
	rows, err := db.Query(`
		SELECT `+messageColumns+`
		FROM messages
		WHERE chat_jid = ? AND id < ?
		ORDER BY id DESC
		LIMIT ?`, chatJID, beforeID, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var msgs []domain.Message
	for rows.Next() {
		var m domain.Message
		if err := scanMessage(rows, &m); err != nil {
			return nil, err
		}
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}

// MessageIDs returns the ids of a chat's messages, oldest first.
func (db *DB) MessageIDs(chatJID string) ([]domain.MessageID, error) {
	rows, err := db.Query(`SELECT id FROM messages WHERE chat_jid = ? ORDER BY id ASC`, chatJID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var ids []domain.MessageID
	for rows.Next() {
		var id domain.MessageID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// GetMessage returns a message by row id, or domain.ErrNotFound.
func (db *DB) GetMessage(id domain.MessageID) (*domain.Message, error) {
	var m domain.Message
	err := scanMessage(db.QueryRow(`SELECT `+messageColumns+` FROM messages WHERE id = ?`, id), &m)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("message %d: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// FindMessage returns the row id of a message by its protocol id.
func (db *DB) FindMessage(chatJID, msgID string) (domain.MessageID, error) {
	var id domain.MessageID
	err := db.QueryRow(`SELECT id FROM messages WHERE chat_jid = ? AND msg_id = ?`, chatJID, msgID).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("message %s/%s: %w", chatJID, msgID, domain.ErrNotFound)
	}
	return id, err
}

// DeleteMessage removes a message and returns the chat it belonged to.
func (db *DB) DeleteMessage(id domain.MessageID) (string, error) {
	var chatJID string
	err := db.QueryRow(`DELETE FROM messages WHERE id = ? RETURNING chat_jid`, id).Scan(&chatJID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("delete message %d: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("delete message %d: %w", id, err)
	}
	return chatJID, nil
}

// SetMessageState updates the delivery state of a message.
func (db *DB) SetMessageState(id domain.MessageID, state string) error {
	res, err := db.Exec(`UPDATE messages SET state = ? WHERE id = ?`, state, id)
	if err != nil {
		return fmt.Errorf("set state %d: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("set state %d: %w", id, domain.ErrNotFound)
	}
	return nil
}

// MarkSeen flags messages as seen. Incoming messages also move to the seen
// state; outgoing ones keep their delivery state.
func (db *DB) MarkSeen(ids []domain.MessageID) error {
	if len(ids) == 0 {
		return nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]any, 0, len(ids)+1)
	args = append(args, domain.StateSeen)
	for _, id := range ids {
		args = append(args, id)
	}
	_, err := db.Exec(`
		UPDATE messages SET
			seen = 1,
			state = CASE WHEN from_me = 0 THEN ? ELSE state END
		WHERE id IN (`+placeholders+`) AND seen = 0`, args...)
	if err != nil {
		return fmt.Errorf("mark seen: %w", err)
	}
	return nil
}

// MarkChatSeen flags every message of a chat as seen and returns how many
// changed.
func (db *DB) MarkChatSeen(chatJID string) (int64, error) {
	res, err := db.Exec(`
		UPDATE messages SET
			seen = 1,
			state = CASE WHEN from_me = 0 THEN ? ELSE state END
		WHERE chat_jid = ? AND seen = 0`, domain.StateSeen, chatJID)
	if err != nil {
		return 0, fmt.Errorf("mark chat seen: %w", err)
	}
	return res.RowsAffected()
}
