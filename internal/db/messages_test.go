package db

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInsertMessage(t *testing.T) {
	db := SetupTestDB(t)

	m := CreateTestMessage("Hello", "alice@example.com", "Body text")
	id, err := db.InsertMessage(m)
	require.NoError(t, err)

	_, err = uuid.Parse(id)
	assert.NoError(t, err, "IDs are UUIDs")
	assert.Equal(t, id, m.ID)

	got, err := db.GetMessage(id)
	require.NoError(t, err)
	assert.Equal(t, "Hello", got.Subject)
	assert.Equal(t, "alice@example.com", got.Sender)
	assert.Equal(t, "Body text", got.Snippet)
	assert.Equal(t, m.Raw, got.Raw)
	assert.Equal(t, int64(len(m.Raw)), got.Size)
	assert.True(t, got.CreatedAt.Valid)
}

func TestGetMessage_NotFound(t *testing.T) {
	db := SetupTestDB(t)

	_, err := db.GetMessage("missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListMessages(t *testing.T) {
	db := SetupTestDB(t)
	ids := InsertTestMessages(t, db,
		CreateTestMessage("one", "a@example.com", "1"),
		CreateTestMessage("two", "b@example.com", "2"),
		CreateTestMessage("three", "c@example.com", "3"),
	)

	list, err := db.ListMessages(0)
	require.NoError(t, err)
	require.Len(t, list, 3)

	got := map[string]bool{}
	for _, m := range list {
		assert.Nil(t, m.Raw, "listing does not load raw bytes")
		got[m.ID] = true
	}
	for _, id := range ids {
		assert.True(t, got[id])
	}

	list, err = db.ListMessages(2)
	require.NoError(t, err)
	assert.Len(t, list, 2)
}

func TestDeleteMessage(t *testing.T) {
	db := SetupTestDB(t)
	ids := InsertTestMessages(t, db, CreateTestMessage("bye", "a@example.com", "x"))

	require.NoError(t, db.DeleteMessage(ids[0]))

	_, err := db.GetMessage(ids[0])
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, db.DeleteMessage(ids[0]), ErrNotFound)
}

func TestMessageQueriesAreParameterized(t *testing.T) {
	db := SetupTestDB(t)
	InsertTestMessages(t, db, CreateTestMessage("keep", "a@example.com", "x"))

	for _, id := range []string{"' OR '1'='1", "x'; DROP TABLE messages; --"} {
		_, err := db.GetMessage(id)
		assert.ErrorIs(t, err, ErrNotFound)
		assert.ErrorIs(t, db.DeleteMessage(id), ErrNotFound)
	}

	list, err := db.ListMessages(10)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}
