package store

import (
	"fmt"
	"time"
)

// UpsertMessage inserts a message into the archive, ignoring duplicates by
// server-assigned ID. Archived entries are never updated: messages are
// immutable once constructed.
func (db *DB) UpsertMessage(m *Message) error {
	_, err := db.Exec(`
		INSERT INTO messages (id, role, content, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING`,
		m.ID, string(m.Role), m.Content, m.CreatedAt.UnixMilli())
	return err
}

// InsertBatch archives a historical snapshot in one transaction,
// insert-or-ignore per message.
func (db *DB) InsertBatch(msgs []Message) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, m := range msgs {
		if _, err := tx.Exec(`
			INSERT INTO messages (id, role, content, created_at)
			VALUES (?, ?, ?, ?)
			ON CONFLICT(id) DO NOTHING`,
			m.ID, string(m.Role), m.Content, m.CreatedAt.UnixMilli()); err != nil {
			return fmt.Errorf("insert message in batch: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit batch: %w", err)
	}
	return nil
}

// RecentMessages returns up to limit newest archived messages in ascending
// (created_at, id) order, matching the conversation's display order.
func (db *DB) RecentMessages(limit int) ([]Message, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := db.Query(`
		SELECT id, role, content, created_at
		FROM messages
		ORDER BY created_at DESC, id DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var msgs []Message
	for rows.Next() {
		var m Message
		var role string
		var createdAt int64
		if err := rows.Scan(&m.ID, &role, &m.Content, &createdAt); err != nil {
			return nil, err
		}
		m.Role = Role(role)
		m.CreatedAt = time.UnixMilli(createdAt).UTC()
		msgs = append(msgs, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Query read newest-first; flip to display order.
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	return msgs, nil
}
