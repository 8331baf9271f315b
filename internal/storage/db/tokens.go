package db

import (
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// StoredToken is secret material stored under a key, e.g. "msa:<uuid>" or "curseforge"
type StoredToken struct {
	Key       string
	Data      string
	ExpiresAt time.Time // Zero when the token does not expire
	UpdatedAt time.Time
}

// SaveToken saves or updates a token
func (d *DB) SaveToken(key, data string, expiresAt time.Time) error {
	var expires any
	if !expiresAt.IsZero() {
		expires = expiresAt.UTC()
	}

	_, err := d.Exec(`
        INSERT INTO auth_tokens (token_key, token_data, expires_at, updated_at)
        VALUES (?, ?, ?, CURRENT_TIMESTAMP)
        ON CONFLICT(token_key) DO UPDATE SET
            token_data = excluded.token_data,
            expires_at = excluded.expires_at,
            updated_at = CURRENT_TIMESTAMP
    `, key, data, expires)
	if err != nil {
		return fmt.Errorf("saving token: %w", err)
	}
	return nil
}

// GetToken retrieves a token, returning nil if none is stored
func (d *DB) GetToken(key string) (*StoredToken, error) {
	var token StoredToken
	var expires sql.NullTime
	err := d.QueryRow(`
        SELECT token_key, token_data, expires_at, updated_at
        FROM auth_tokens
        WHERE token_key = ?
    `, key).Scan(&token.Key, &token.Data, &expires, &token.UpdatedAt)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting token: %w", err)
	}
	if expires.Valid {
		token.ExpiresAt = expires.Time
	}
	return &token, nil
}

// DeleteToken removes a token
func (d *DB) DeleteToken(key string) error {
	_, err := d.Exec("DELETE FROM auth_tokens WHERE token_key = ?", key)
	if err != nil {
		return fmt.Errorf("deleting token: %w", err)
	}
	return nil
}

// HasToken checks if a token exists for a key
func (d *DB) HasToken(key string) (bool, error) {
	var count int
	err := d.QueryRow("SELECT COUNT(*) FROM auth_tokens WHERE token_key = ?", key).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("checking token: %w", err)
	}
	return count > 0, nil
}
