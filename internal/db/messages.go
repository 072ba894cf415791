package db

import (
	"context"
	"fmt"
	"strings"
)

// CreateMessage inserts a new message and sets its ID
func (db *DB) CreateMessage(ctx context.Context, m *Message) error {
	id, err := db.insert(ctx, `
		INSERT INTO messages (sender, recipient, body, read, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, m.Sender, m.Recipient, m.Body, m.Read, m.CreatedAt.UTC())
	if err != nil {
		return fmt.Errorf("create message: %w", err)
	}
	m.ID = id
	return nil
}

// ListMessages returns messages matching filter, newest first
func (db *DB) ListMessages(ctx context.Context, filter MessageFilter) ([]*Message, error) {
	var (
		where []string
		args  []any
	)
	if filter.Sender != nil {
		where = append(where, "sender = ?")
		args = append(args, *filter.Sender)
	}
	if filter.Recipient != nil {
		where = append(where, "recipient = ?")
		args = append(args, *filter.Recipient)
	}
	if filter.UnreadOnly {
		where = append(where, "read = ?")
		args = append(args, false)
	}

	query := `SELECT id, sender, recipient, body, read, created_at FROM messages`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at DESC, id DESC"

	rows, err := db.query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	var messages []*Message
	for rows.Next() {
		m := &Message{}
		if err := rows.Scan(&m.ID, &m.Sender, &m.Recipient, &m.Body, &m.Read, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("list messages: %w", err)
		}
		m.CreatedAt = m.CreatedAt.UTC()
		messages = append(messages, m)
	}
	return messages, rows.Err()
}

// MarkMessageRead flags a message as read
func (db *DB) MarkMessageRead(ctx context.Context, id int64) error {
	return db.execOne(ctx, "message", id, `UPDATE messages SET read = ? WHERE id = ?`, true, id)
}

// DeleteMessagesForCoworker removes every message the coworker sent or received
func (db *DB) DeleteMessagesForCoworker(ctx context.Context, name string) (int64, error) {
	n, err := db.execCount(ctx, `DELETE FROM messages WHERE sender = ? OR recipient = ?`, name, name)
	if err != nil {
		return 0, fmt.Errorf("delete messages for %q: %w", name, err)
	}
	return n, nil
}
