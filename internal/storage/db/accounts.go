package db

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/DonovanMods/lion-launcher/internal/domain"
)

// SaveAccount inserts or updates an account's public identity. Secrets live in the token vault.
func (d *DB) SaveAccount(acct *domain.Account) error {
	_, err := d.Exec(`
		INSERT INTO accounts (uuid, username, kind, head_url, skin_url, active)
		VALUES (?, ?, ?, ?, ?, 0)
		ON CONFLICT(uuid) DO UPDATE SET
			username = excluded.username,
			kind = excluded.kind,
			head_url = excluded.head_url,
			skin_url = excluded.skin_url
	`, acct.UUID, acct.Username, acct.Kind, acct.HeadURL, acct.SkinURL)
	if err != nil {
		return fmt.Errorf("saving account: %w", err)
	}
	return nil
}

// GetAccounts returns all accounts in the order they were added
func (d *DB) GetAccounts() ([]domain.Account, error) {
	rows, err := d.Query(`
		SELECT uuid, username, kind, head_url, skin_url, active
		FROM accounts
		ORDER BY added_at, rowid
	`)
	if err != nil {
		return nil, fmt.Errorf("querying accounts: %w", err)
	}
	defer rows.Close()

	var accounts []domain.Account
	for rows.Next() {
		acct, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, *acct)
	}

	return accounts, rows.Err()
}

// GetAccount returns a single account by uuid
func (d *DB) GetAccount(uuid string) (*domain.Account, error) {
	row := d.QueryRow(`
		SELECT uuid, username, kind, head_url, skin_url, active
		FROM accounts WHERE uuid = ?
	`, uuid)

	acct, err := scanAccount(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrAccountNotFound
	}
	return acct, err
}

// GetActiveAccount returns the active account, or nil when there is none
func (d *DB) GetActiveAccount() (*domain.Account, error) {
	row := d.QueryRow(`
		SELECT uuid, username, kind, head_url, skin_url, active
		FROM accounts WHERE active = 1
	`)

	acct, err := scanAccount(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return acct, err
}

// SetActiveAccount makes uuid the single active account
func (d *DB) SetActiveAccount(uuid string) error {
	tx, err := d.Begin()
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	var count int
	if err := tx.QueryRow("SELECT COUNT(*) FROM accounts WHERE uuid = ?", uuid).Scan(&count); err != nil {
		return fmt.Errorf("checking account: %w", err)
	}
	if count == 0 {
		return domain.ErrAccountNotFound
	}

	if _, err := tx.Exec("UPDATE accounts SET active = 0 WHERE active = 1"); err != nil {
		return fmt.Errorf("clearing active account: %w", err)
	}
	if _, err := tx.Exec("UPDATE accounts SET active = 1 WHERE uuid = ?", uuid); err != nil {
		return fmt.Errorf("setting active account: %w", err)
	}

	return tx.Commit()
}

// DeleteAccount removes an account. If it was active, the oldest remaining account is
// activated and its uuid returned; otherwise the returned uuid is empty.
func (d *DB) DeleteAccount(uuid string) (string, error) {
	tx, err := d.Begin()
	if err != nil {
		return "", fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	var active bool
	err = tx.QueryRow("SELECT active FROM accounts WHERE uuid = ?", uuid).Scan(&active)
	if errors.Is(err, sql.ErrNoRows) {
		return "", domain.ErrAccountNotFound
	}
	if err != nil {
		return "", fmt.Errorf("checking account: %w", err)
	}

	if _, err := tx.Exec("DELETE FROM accounts WHERE uuid = ?", uuid); err != nil {
		return "", fmt.Errorf("deleting account: %w", err)
	}

	var next string
	if active {
		err = tx.QueryRow("SELECT uuid FROM accounts ORDER BY added_at, rowid LIMIT 1").Scan(&next)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return "", fmt.Errorf("finding next account: %w", err)
		}
		if next != "" {
			if _, err := tx.Exec("UPDATE accounts SET active = 1 WHERE uuid = ?", next); err != nil {
				return "", fmt.Errorf("activating next account: %w", err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("committing: %w", err)
	}
	return next, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanAccount(s scanner) (*domain.Account, error) {
	var acct domain.Account
	var headURL, skinURL sql.NullString
	if err := s.Scan(&acct.UUID, &acct.Username, &acct.Kind, &headURL, &skinURL, &acct.Active); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scanning account: %w", err)
	}
	acct.HeadURL = headURL.String
	acct.SkinURL = skinURL.String
	return &acct, nil
}
