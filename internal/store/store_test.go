package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/compliance-assistant/client/internal/db"
)

func setupTestStore(t *testing.T) *Store {
	t.Helper()

	database, err := db.NewTestDB()
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })

	s, err := New(database)
	require.NoError(t, err)
	return s
}

func TestTokenRoundTrip(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	access, refresh, err := s.Tokens(ctx)
	require.NoError(t, err)
	assert.Empty(t, access)
	assert.Empty(t, refresh)

	require.NoError(t, s.SaveTokens(ctx, "acc-123", "ref-456"))

	access, refresh, err = s.Tokens(ctx)
	require.NoError(t, err)
	assert.Equal(t, "acc-123", access)
	assert.Equal(t, "ref-456", refresh)

	require.NoError(t, s.ClearTokens(ctx))
	access, refresh, err = s.Tokens(ctx)
	require.NoError(t, err)
	assert.Empty(t, access)
	assert.Empty(t, refresh)
}

func TestTokensAreNotStoredInPlaintext(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.SaveTokens(ctx, "secret-token", "secret-refresh"))

	raw, err := s.get(ctx, keyAccessToken)
	require.NoError(t, err)
	assert.NotEmpty(t, raw)
	assert.NotEqual(t, "secret-token", raw)
	assert.NotContains(t, raw, "secret")
}

func TestLegacyKeyMigration(t *testing.T) {
	database, err := db.NewTestDB()
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })

	ctx := context.Background()

	// Seed legacy unnamespaced keys in the stored (obfuscated) format.
	_, err = database.ExecContext(ctx,
		`INSERT INTO kv (key, value) VALUES (?, ?), (?, ?)`,
		legacyAccessToken, obfuscate("old-access"),
		legacyRefreshToken, obfuscate("old-refresh"),
	)
	require.NoError(t, err)

	s, err := New(database)
	require.NoError(t, err)

	access, refresh, err := s.Tokens(ctx)
	require.NoError(t, err)
	assert.Equal(t, "old-access", access)
	assert.Equal(t, "old-refresh", refresh)

	// Legacy keys must be gone after migration.
	legacy, err := s.get(ctx, legacyAccessToken)
	require.NoError(t, err)
	assert.Empty(t, legacy)
}

func TestLegacyMigrationDoesNotOverwriteCurrentKeys(t *testing.T) {
	database, err := db.NewTestDB()
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })

	ctx := context.Background()
	_, err = database.ExecContext(ctx,
		`INSERT INTO kv (key, value) VALUES (?, ?), (?, ?)`,
		legacyAccessToken, obfuscate("stale"),
		keyAccessToken, obfuscate("current"),
	)
	require.NoError(t, err)

	s, err := New(database)
	require.NoError(t, err)

	access, _, err := s.Tokens(ctx)
	require.NoError(t, err)
	assert.Equal(t, "current", access)
}

func TestSessionIDPersistence(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	id, err := s.SessionID(ctx)
	require.NoError(t, err)
	assert.Empty(t, id)

	require.NoError(t, s.SaveSessionID(ctx, "sess-789"))
	id, err = s.SessionID(ctx)
	require.NoError(t, err)
	assert.Equal(t, "sess-789", id)

	require.NoError(t, s.ClearSessionID(ctx))
	id, err = s.SessionID(ctx)
	require.NoError(t, err)
	assert.Empty(t, id)
}

func TestConnTokenPersistence(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	token, err := s.ConnToken(ctx)
	require.NoError(t, err)
	assert.Empty(t, token)

	require.NoError(t, s.SaveConnToken(ctx, "lease-123"))
	token, err = s.ConnToken(ctx)
	require.NoError(t, err)
	assert.Equal(t, "lease-123", token)
}

func TestObfuscationRoundTrip(t *testing.T) {
	for _, value := range []string{"a", "token-with-∂-unicode", "eyJhbGciOiJIUzI1NiJ9.payload.sig"} {
		decoded, err := deobfuscate(obfuscate(value))
		require.NoError(t, err)
		assert.Equal(t, value, decoded)
	}
}
