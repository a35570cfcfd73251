package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // SQLite driver
)

// SQLite implements MessageStore using a local SQLite database.
type SQLite struct {
	db *sql.DB
}

// NewSQLite creates a SQLite-backed message store.
// dsn is the data source name, e.g. "messages.db" or ":memory:".
func NewSQLite(dsn string) (*SQLite, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS messages (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			author TEXT NOT NULL,
			content TEXT NOT NULL,
			created_at DATETIME NOT NULL,
			notified INTEGER NOT NULL DEFAULT 0
		);
		CREATE INDEX IF NOT EXISTS idx_messages_created_at ON messages(created_at);
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating table: %w", err)
	}

	return &SQLite{db: db}, nil
}

// Append inserts a message with notified=false and returns the generated id.
func (s *SQLite) Append(ctx context.Context, author, content string) (int64, error) {
	result, err := s.db.ExecContext(ctx, `
		INSERT INTO messages (author, content, created_at, notified)
		VALUES (?, ?, ?, 0)
	`, author, content, time.Now().UTC())
	if err != nil {
		return 0, fmt.Errorf("appending message: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("reading generated id: %w", err)
	}
	return id, nil
}

// Recent returns the most recent limit messages, oldest first.
func (s *SQLite) Recent(ctx context.Context, limit int) ([]Message, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, author, content, created_at, notified
		FROM messages
		ORDER BY created_at DESC, id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying recent messages: %w", err)
	}
	defer rows.Close()

	var newestFirst []Message
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.ID, &m.Author, &m.Content, &m.CreatedAt, &m.Notified); err != nil {
			return nil, fmt.Errorf("scanning message: %w", err)
		}
		newestFirst = append(newestFirst, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating messages: %w", err)
	}

	out := make([]Message, len(newestFirst))
	for i, m := range newestFirst {
		out[len(newestFirst)-1-i] = m
	}
	return out, nil
}

// Notified reports the current notification flag for a message.
func (s *SQLite) Notified(ctx context.Context, id int64) (bool, error) {
	var notified bool
	err := s.db.QueryRowContext(ctx,
		"SELECT notified FROM messages WHERE id = ?", id).Scan(&notified)
	if errors.Is(err, sql.ErrNoRows) {
		return false, ErrNotFound
	}
	if err != nil {
		return false, fmt.Errorf("reading notified flag: %w", err)
	}
	return notified, nil
}

// SetNotified marks a message as notified. Safe to call repeatedly.
func (s *SQLite) SetNotified(ctx context.Context, id int64) error {
	result, err := s.db.ExecContext(ctx,
		"UPDATE messages SET notified = 1 WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("setting notified flag: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// ClaimNotification flips notified from false to true in a single
// conditional update; the row count tells whether this caller won.
func (s *SQLite) ClaimNotification(ctx context.Context, id int64) (bool, error) {
	result, err := s.db.ExecContext(ctx,
		"UPDATE messages SET notified = 1 WHERE id = ? AND notified = 0", id)
	if err != nil {
		return false, fmt.Errorf("claiming notification: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("checking rows affected: %w", err)
	}
	return n == 1, nil
}

// Close closes the database connection.
func (s *SQLite) Close() error {
	return s.db.Close()
}
