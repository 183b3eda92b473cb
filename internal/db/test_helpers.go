package db

import (
	"fmt"
	"testing"
)

// SetupTestDB creates an in-memory SQLite database for testing
func SetupTestDB(t *testing.T) *DB {
	t.Helper()

	db, err := Open(":memory:")
	if err != nil {
		t.Fatalf("Failed to create test database: %v", err)
	}
	t.Cleanup(func() {
		if err := db.Close(); err != nil {
			t.Errorf("Failed to close test database: %v", err)
		}
	})

	return db
}

// CreateTestMessage returns a minimal uploadable message
func CreateTestMessage(subject, sender, body string) *Message {
	raw := fmt.Sprintf("From: %s\r\nSubject: %s\r\nContent-Type: text/plain; charset=utf-8\r\n\r\n%s\r\n", sender, subject, body)
	return &Message{
		Subject: subject,
		Sender:  sender,
		Snippet: body,
		Raw:     []byte(raw),
	}
}

// InsertTestMessages inserts messages and returns their IDs in order
func InsertTestMessages(t *testing.T, db *DB, msgs ...*Message) []string {
	t.Helper()

	ids := make([]string, 0, len(msgs))
	for i, m := range msgs {
		id, err := db.InsertMessage(m)
		if err != nil {
			t.Fatalf("Failed to insert test message %d: %v", i, err)
		}
		ids = append(ids, id)
	}
	return ids
}
