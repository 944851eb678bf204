// Package store persists credentials and session-resumption state in the
// local key-value database. Tokens are obfuscated with XOR + base64 to
// match the original storage format; this is obfuscation, not encryption.
package store

import (
	"context"
	"database/sql"
	"encoding/base64"
	"fmt"
	"time"
)

// Namespaced storage keys. Legacy unnamespaced token keys are migrated
// once on startup.
const (
	keyAccessToken  = "assistant.access_token"
	keyRefreshToken = "assistant.refresh_token"
	keySessionID    = "assistant.session_id"
	keyConnToken    = "assistant.conn_token"

	legacyAccessToken  = "access_token"
	legacyRefreshToken = "refresh_token"
)

// obfuscationKey is a fixed XOR pad. Its only purpose is to keep tokens
// from being casually readable in the database file.
var obfuscationKey = []byte("cmpl-assist-v1")

// Store provides access to the local credential and session state.
type Store struct {
	db *sql.DB
}

// New creates a Store and migrates any legacy unnamespaced token keys.
func New(db *sql.DB) (*Store, error) {
	s := &Store{db: db}
	if err := s.migrateLegacyKeys(context.Background()); err != nil {
		return nil, fmt.Errorf("failed to migrate legacy keys: %w", err)
	}
	return s, nil
}

// Tokens returns the stored access and refresh tokens. Empty strings mean
// no credential is stored.
func (s *Store) Tokens(ctx context.Context) (access, refresh string, err error) {
	access, err = s.getObfuscated(ctx, keyAccessToken)
	if err != nil {
		return "", "", err
	}
	refresh, err = s.getObfuscated(ctx, keyRefreshToken)
	if err != nil {
		return "", "", err
	}
	return access, refresh, nil
}

// SaveTokens stores both tokens, replacing any previous values.
func (s *Store) SaveTokens(ctx context.Context, access, refresh string) error {
	if err := s.setObfuscated(ctx, keyAccessToken, access); err != nil {
		return err
	}
	return s.setObfuscated(ctx, keyRefreshToken, refresh)
}

// ClearTokens removes the stored credentials.
func (s *Store) ClearTokens(ctx context.Context) error {
	if err := s.delete(ctx, keyAccessToken); err != nil {
		return err
	}
	return s.delete(ctx, keyRefreshToken)
}

// SessionID returns the identifier of the most recent conversation, or ""
// when none is stored.
func (s *Store) SessionID(ctx context.Context) (string, error) {
	return s.get(ctx, keySessionID)
}

// SaveSessionID records the identifier of the most recent conversation so
// the next run can resume it.
func (s *Store) SaveSessionID(ctx context.Context, id string) error {
	return s.set(ctx, keySessionID, id)
}

// ClearSessionID forgets the most recent conversation.
func (s *Store) ClearSessionID(ctx context.Context) error {
	return s.delete(ctx, keySessionID)
}

// ConnToken returns the client-generated connection token, or "" when
// none is stored.
func (s *Store) ConnToken(ctx context.Context) (string, error) {
	return s.get(ctx, keyConnToken)
}

// SaveConnToken records the connection token reused on session resume.
func (s *Store) SaveConnToken(ctx context.Context, token string) error {
	return s.set(ctx, keyConnToken, token)
}

// migrateLegacyKeys performs the one-time move of tokens stored under the
// old unnamespaced keys. The legacy values were stored in the same
// obfuscated format.
func (s *Store) migrateLegacyKeys(ctx context.Context) error {
	pairs := []struct{ legacy, current string }{
		{legacyAccessToken, keyAccessToken},
		{legacyRefreshToken, keyRefreshToken},
	}
	for _, p := range pairs {
		value, err := s.get(ctx, p.legacy)
		if err != nil {
			return err
		}
		if value == "" {
			continue
		}
		existing, err := s.get(ctx, p.current)
		if err != nil {
			return err
		}
		if existing == "" {
			if err := s.set(ctx, p.current, value); err != nil {
				return err
			}
		}
		if err := s.delete(ctx, p.legacy); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) getObfuscated(ctx context.Context, key string) (string, error) {
	encoded, err := s.get(ctx, key)
	if err != nil || encoded == "" {
		return "", err
	}
	value, err := deobfuscate(encoded)
	if err != nil {
		return "", fmt.Errorf("failed to decode %s: %w", key, err)
	}
	return value, nil
}

func (s *Store) setObfuscated(ctx context.Context, key, value string) error {
	if value == "" {
		return s.delete(ctx, key)
	}
	return s.set(ctx, key, obfuscate(value))
}

func (s *Store) get(ctx context.Context, key string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM kv WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", key, err)
	}
	return value, nil
}

func (s *Store) set(ctx context.Context, key, value string) error {
	query := `
		INSERT INTO kv (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`
	if _, err := s.db.ExecContext(ctx, query, key, value, time.Now()); err != nil {
		return fmt.Errorf("failed to write %s: %w", key, err)
	}
	return nil
}

func (s *Store) delete(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM kv WHERE key = ?`, key); err != nil {
		return fmt.Errorf("failed to delete %s: %w", key, err)
	}
	return nil
}

// obfuscate XORs the value with the fixed pad and base64-encodes it.
func obfuscate(value string) string {
	data := []byte(value)
	for i := range data {
		data[i] ^= obfuscationKey[i%len(obfuscationKey)]
	}
	return base64.StdEncoding.EncodeToString(data)
}

// deobfuscate reverses obfuscate.
func deobfuscate(encoded string) (string, error) {
	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", err
	}
	for i := range data {
		data[i] ^= obfuscationKey[i%len(obfuscationKey)]
	}
	return string(data), nil
}
