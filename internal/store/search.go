package store

import (
	"strings"

	"github.com/matheus3301/chatline/internal/domain"
)

// MatchQuery turns free text into an FTS4 query: every word must match as a
// prefix. It returns "" when nothing searchable is left.
func MatchQuery(text string) string {
	var terms []string
	for _, w := range strings.Fields(text) {
		w = strings.Map(func(r rune) rune {
			if r == '"' || r == '*' {
				return -1
			}
			return r
		}, w)
		if w != "" {
			terms = append(terms, `"`+w+`*"`)
		}
	}
	return strings.Join(terms, " ")
}

// SearchMessageIDs returns the ids of a chat's messages matching text,
// newest first.
func (db *DB) SearchMessageIDs(chatJID, text string, limit int) ([]domain.MessageID, error) {
	q := MatchQuery(text)
	if q == "" {
		return nil, nil
	}
	if limit <= 0 {
		limit = 500
	}
	rows, err := db.Query(`
		SELECT m.id
		FROM messages_fts f
		JOIN messages m ON m.id = f.docid
		WHERE messages_fts MATCH ? AND m.chat_jid = ?
		ORDER BY m.id DESC
		LIMIT ?`, q, chatJID, limit)
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

// SearchMessages performs a full-text search on message bodies.
func (db *DB) SearchMessages(text string, chatJID string, limit int) ([]SearchResult, error) {
	q := MatchQuery(text)
	if q == "" {
		return nil, nil
	}
	if limit <= 0 {
		limit = 50
	}

	query := `
		SELECT m.id, m.chat_jid, m.msg_id, m.sender_jid, m.sender_name, m.body,
		       m.message_type, m.from_me, m.state, m.seen, m.quote_id, m.timestamp,
		       snippet(messages_fts, '<<', '>>', '...', -1, 16)
		FROM messages_fts f
		JOIN messages m ON m.id = f.docid
		WHERE messages_fts MATCH ?`

	args := []any{q}
	if chatJID != "" {
		query += " AND m.chat_jid = ?"
		args = append(args, chatJID)
	}
	query += " ORDER BY m.id DESC LIMIT ?"
	args = append(args, limit)

	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var results []SearchResult
	for rows.Next() {
		var r SearchResult
		m := &r.Message
		if err := rows.Scan(
			&m.ID, &m.ChatJID, &m.MsgID, &m.SenderJID, &m.SenderName, &m.Body,
			&m.MessageType, &m.FromMe, &m.State, &m.Seen, &m.QuoteID, &m.Timestamp,
			&r.Snippet,
		); err != nil {
			return nil, err
		}
		results = append(results, r)
	}
	return results, rows.Err()
}
