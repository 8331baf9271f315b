package db

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, db.Close())
	})
	return db
}

func TestSaveToken(t *testing.T) {
	db := setupTestDB(t)

	expires := time.Date(2030, 1, 1, 12, 0, 0, 0, time.UTC)
	err := db.SaveToken("msa:abc", `{"refresh":"r1"}`, expires)
	require.NoError(t, err)

	// Verify it was saved
	token, err := db.GetToken("msa:abc")
	require.NoError(t, err)
	require.NotNil(t, token)
	assert.Equal(t, "msa:abc", token.Key)
	assert.Equal(t, `{"refresh":"r1"}`, token.Data)
	assert.True(t, expires.Equal(token.ExpiresAt))
	assert.False(t, token.UpdatedAt.IsZero())
}

func TestSaveToken_NoExpiry(t *testing.T) {
	db := setupTestDB(t)

	require.NoError(t, db.SaveToken("curseforge", "api-key", time.Time{}))

	token, err := db.GetToken("curseforge")
	require.NoError(t, err)
	assert.True(t, token.ExpiresAt.IsZero())
}

func TestSaveToken_Update(t *testing.T) {
	db := setupTestDB(t)

	require.NoError(t, db.SaveToken("msa:abc", "old", time.Time{}))
	require.NoError(t, db.SaveToken("msa:abc", "new", time.Time{}))

	token, err := db.GetToken("msa:abc")
	require.NoError(t, err)
	assert.Equal(t, "new", token.Data)
}

func TestGetToken_NotFound(t *testing.T) {
	db := setupTestDB(t)

	token, err := db.GetToken("nonexistent")
	assert.NoError(t, err)
	assert.Nil(t, token)
}

func TestDeleteToken(t *testing.T) {
	db := setupTestDB(t)

	require.NoError(t, db.SaveToken("msa:abc", "data", time.Time{}))

	has, err := db.HasToken("msa:abc")
	require.NoError(t, err)
	assert.True(t, has)

	require.NoError(t, db.DeleteToken("msa:abc"))

	has, err = db.HasToken("msa:abc")
	require.NoError(t, err)
	assert.False(t, has)

	// Deleting a missing token is not an error
	assert.NoError(t, db.DeleteToken("msa:abc"))
}
