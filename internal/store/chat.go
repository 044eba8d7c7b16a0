package store

import (
	"database/sql"
	"time"
)

// UpsertChat inserts or updates a chat record. The contact request flag is
// only taken from the first insert; AcceptContactRequest clears it.
func (db *DB) UpsertChat(c *Chat) error {
	return upsertChat(db, c)
}

// UpsertChat is UpsertChat within the transaction.
func (tx *Tx) UpsertChat(c *Chat) error {
	return upsertChat(tx, c)
}

func upsertChat(q queryer, c *Chat) error {
	now := time.Now().UnixMilli()
	_, err := q.Exec(`
		INSERT INTO chats (jid, name, is_group, contact_request, last_message_at, last_message_preview, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(jid) DO UPDATE SET
			name = CASE WHEN excluded.name != '' THEN excluded.name ELSE chats.name END,
			is_group = MAX(chats.is_group, excluded.is_group),
			last_message_at = MAX(chats.last_message_at, excluded.last_message_at),
			last_message_preview = CASE WHEN excluded.last_message_at >= chats.last_message_at
				THEN excluded.last_message_preview ELSE chats.last_message_preview END,
			updated_at = excluded.updated_at`,
		c.JID, c.Name, c.IsGroup, c.ContactRequest, c.LastMessageAt, c.LastMessagePreview, now)
	return err
}

// AcceptContactRequest clears the contact request flag of a chat.
func (db *DB) AcceptContactRequest(jid string) error {
	_, err := db.Exec(`UPDATE chats SET contact_request = 0, updated_at = ? WHERE jid = ?`, time.Now().UnixMilli(), jid)
	return err
}

const chatColumns = `
	SELECT c.jid,
		COALESCE(NULLIF(c.name,''), NULLIF(ct.push_name,''), NULLIF(ct.name,''), c.jid) AS display_name,
		c.is_group, c.contact_request,
		(SELECT COUNT(*) FROM messages m WHERE m.chat_jid = c.jid AND m.seen = 0 AND m.from_me = 0) AS unread,
		c.last_message_at, c.last_message_preview
	FROM chats c
	LEFT JOIN contacts ct ON c.jid = ct.jid`

// ListChats returns chats sorted by last message timestamp descending.
// Names are resolved via LEFT JOIN to contacts table with fallback:
// chat.name -> contact.push_name -> contact.name -> chat.jid
func (db *DB) ListChats(limit, offset int) ([]Chat, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := db.Query(chatColumns+`
		ORDER BY c.last_message_at DESC
		LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var chats []Chat
	for rows.Next() {
		var c Chat
		if err := rows.Scan(&c.JID, &c.Name, &c.IsGroup, &c.ContactRequest, &c.UnreadCount, &c.LastMessageAt, &c.LastMessagePreview); err != nil {
			return nil, err
		}
		chats = append(chats, c)
	}
	return chats, rows.Err()
}

// GetChat returns a single chat by JID.
func (db *DB) GetChat(jid string) (*Chat, error) {
	var c Chat
	err := db.QueryRow(chatColumns+`
		WHERE c.jid = ?`, jid).
		Scan(&c.JID, &c.Name, &c.IsGroup, &c.ContactRequest, &c.UnreadCount, &c.LastMessageAt, &c.LastMessagePreview)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}
