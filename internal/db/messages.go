package db

import (
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// NullTime handles both string and time.Time values from SQLite
type NullTime struct {
	Time  time.Time
	Valid bool
}

// Scan implements sql.Scanner for NullTime
func (nt *NullTime) Scan(value interface{}) error {
	if value == nil {
		nt.Time, nt.Valid = time.Time{}, false
		return nil
	}

	switch v := value.(type) {
	case time.Time:
		nt.Time, nt.Valid = v, true
		return nil
	case string:
		formats := []string{
			time.RFC3339Nano,
			"2006-01-02 15:04:05.999999999 -0700 MST",
			"2006-01-02 15:04:05.999999999-07:00",
			"2006-01-02 15:04:05",
		}

		var err error
		for _, format := range formats {
			var t time.Time
			if t, err = time.Parse(format, v); err == nil {
				nt.Time, nt.Valid = t, true
				return nil
			}
		}
		return fmt.Errorf("failed to parse time string %q: %w", v, err)
	default:
		return fmt.Errorf("unsupported Scan type for NullTime: %T", value)
	}
}

// Value implements driver.Valuer for NullTime
func (nt NullTime) Value() (driver.Value, error) {
	if !nt.Valid {
		return nil, nil
	}
	return nt.Time, nil
}

// Message is an uploaded raw message
type Message struct {
	ID        string
	Subject   string
	Sender    string
	Snippet   string
	Raw       []byte
	Size      int64
	CreatedAt NullTime
}

// InsertMessage stores m under a new random ID and returns that ID
func (db *DB) InsertMessage(m *Message) (string, error) {
	id := uuid.NewString()
	_, err := db.Exec(`
		INSERT INTO messages (id, subject, sender, snippet, raw, size)
		VALUES (?, ?, ?, ?, ?, ?)
	`, id, m.Subject, m.Sender, m.Snippet, m.Raw, int64(len(m.Raw)))
	if err != nil {
		return "", fmt.Errorf("failed to insert message: %w", err)
	}
	m.ID = id
	m.Size = int64(len(m.Raw))
	return id, nil
}

// GetMessage returns the message with the given ID or ErrNotFound
func (db *DB) GetMessage(id string) (*Message, error) {
	m := &Message{}
	err := db.QueryRow(`
		SELECT id, subject, sender, snippet, raw, size, created_at
		FROM messages WHERE id = ?
	`, id).Scan(&m.ID, &m.Subject, &m.Sender, &m.Snippet, &m.Raw, &m.Size, &m.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("message %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get message: %w", err)
	}
	return m, nil
}

// ListMessages returns up to limit messages without their raw bytes,
// newest first
func (db *DB) ListMessages(limit int) ([]*Message, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := db.Query(`
		SELECT id, subject, sender, snippet, size, created_at
		FROM messages ORDER BY created_at DESC, id LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	defer rows.Close()

	var out []*Message
	for rows.Next() {
		m := &Message{}
		if err := rows.Scan(&m.ID, &m.Subject, &m.Sender, &m.Snippet, &m.Size, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// DeleteMessage removes a message and its cached renders
func (db *DB) DeleteMessage(id string) error {
	res, err := db.Exec("DELETE FROM messages WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete message: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("message %s: %w", id, ErrNotFound)
	}
	if _, err := db.Exec("DELETE FROM render_cache WHERE message_id = ?", id); err != nil {
		return fmt.Errorf("failed to drop cached renders: %w", err)
	}
	return nil
}
