package db

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/DonovanMods/lion-launcher/internal/domain"
)

// Rows are keyed by the base filename; the on-disk name is derived from the enabled flag.

// SaveContent inserts or updates an installed content record
func (d *DB) SaveContent(item *domain.ContentItem) error {
	installedAt := item.InstalledAt
	if installedAt.IsZero() {
		installedAt = time.Now()
	}

	_, err := d.Exec(`
		INSERT INTO installed_content (profile_id, kind, filename, source_id, registry_id, version_id, name, version, sha1, enabled, installed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(profile_id, kind, filename) DO UPDATE SET
			source_id = excluded.source_id,
			registry_id = excluded.registry_id,
			version_id = excluded.version_id,
			name = excluded.name,
			version = excluded.version,
			sha1 = excluded.sha1,
			enabled = excluded.enabled,
			installed_at = excluded.installed_at
	`, item.ProfileID, item.Kind, item.BaseFilename(), item.SourceID, item.RegistryID, item.VersionID,
		item.Name, item.Version, item.SHA1, item.Enabled, installedAt.UTC())
	if err != nil {
		return fmt.Errorf("saving content: %w", err)
	}
	return nil
}

// GetContent returns all content of a kind installed in a profile, sorted by filename
func (d *DB) GetContent(profileID string, kind domain.ContentKind) ([]domain.ContentItem, error) {
	rows, err := d.Query(`
		SELECT profile_id, kind, filename, source_id, registry_id, version_id, name, version, sha1, enabled, installed_at
		FROM installed_content
		WHERE profile_id = ? AND kind = ?
		ORDER BY filename
	`, profileID, kind)
	if err != nil {
		return nil, fmt.Errorf("querying content: %w", err)
	}
	defer rows.Close()

	var items []domain.ContentItem
	for rows.Next() {
		item, err := scanContent(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *item)
	}

	return items, rows.Err()
}

// GetContentItem returns one content record by its base filename
func (d *DB) GetContentItem(profileID string, kind domain.ContentKind, filename string) (*domain.ContentItem, error) {
	row := d.QueryRow(`
		SELECT profile_id, kind, filename, source_id, registry_id, version_id, name, version, sha1, enabled, installed_at
		FROM installed_content
		WHERE profile_id = ? AND kind = ? AND filename = ?
	`, profileID, kind, filename)

	item, err := scanContent(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrContentNotFound
	}
	return item, err
}

// SetContentEnabled updates the enabled flag of a content record
func (d *DB) SetContentEnabled(profileID string, kind domain.ContentKind, filename string, enabled bool) error {
	result, err := d.Exec(`
		UPDATE installed_content SET enabled = ?
		WHERE profile_id = ? AND kind = ? AND filename = ?
	`, enabled, profileID, kind, filename)
	if err != nil {
		return fmt.Errorf("updating content: %w", err)
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return domain.ErrContentNotFound
	}
	return nil
}

// DeleteContent removes a content record
func (d *DB) DeleteContent(profileID string, kind domain.ContentKind, filename string) error {
	result, err := d.Exec(`
		DELETE FROM installed_content
		WHERE profile_id = ? AND kind = ? AND filename = ?
	`, profileID, kind, filename)
	if err != nil {
		return fmt.Errorf("deleting content: %w", err)
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return domain.ErrContentNotFound
	}
	return nil
}

// DeleteProfileContent removes every content record of a profile
func (d *DB) DeleteProfileContent(profileID string) error {
	if _, err := d.Exec("DELETE FROM installed_content WHERE profile_id = ?", profileID); err != nil {
		return fmt.Errorf("deleting profile content: %w", err)
	}
	return nil
}

// GetContentByRegistryID returns every profile's record of a registry project
func (d *DB) GetContentByRegistryID(sourceID, registryID string) ([]domain.ContentItem, error) {
	rows, err := d.Query(`
		SELECT profile_id, kind, filename, source_id, registry_id, version_id, name, version, sha1, enabled, installed_at
		FROM installed_content
		WHERE source_id = ? AND registry_id = ?
		ORDER BY profile_id, filename
	`, sourceID, registryID)
	if err != nil {
		return nil, fmt.Errorf("querying content: %w", err)
	}
	defer rows.Close()

	var items []domain.ContentItem
	for rows.Next() {
		item, err := scanContent(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *item)
	}

	return items, rows.Err()
}

// CountContentBySHA1 returns how many records in any profile reference a file checksum
func (d *DB) CountContentBySHA1(sha1 string) (int, error) {
	var n int
	if err := d.QueryRow("SELECT COUNT(*) FROM installed_content WHERE sha1 = ?", sha1).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting content: %w", err)
	}
	return n, nil
}

// ContentSHA1s returns the set of lowercase checksums recorded by any profile
func (d *DB) ContentSHA1s() (map[string]bool, error) {
	rows, err := d.Query("SELECT DISTINCT LOWER(sha1) FROM installed_content WHERE sha1 IS NOT NULL AND sha1 != ''")
	if err != nil {
		return nil, fmt.Errorf("querying content checksums: %w", err)
	}
	defer rows.Close()

	sums := make(map[string]bool)
	for rows.Next() {
		var sum string
		if err := rows.Scan(&sum); err != nil {
			return nil, fmt.Errorf("scanning checksum: %w", err)
		}
		sums[sum] = true
	}
	return sums, rows.Err()
}

func scanContent(s scanner) (*domain.ContentItem, error) {
	var item domain.ContentItem
	var sourceID, registryID, versionID, version, sha1 sql.NullString
	err := s.Scan(&item.ProfileID, &item.Kind, &item.Filename, &sourceID, &registryID, &versionID,
		&item.Name, &version, &sha1, &item.Enabled, &item.InstalledAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scanning content: %w", err)
	}

	item.SourceID = sourceID.String
	item.RegistryID = registryID.String
	item.VersionID = versionID.String
	item.Version = version.String
	item.SHA1 = sha1.String
	if !item.Enabled {
		item.Filename += domain.DisabledSuffix
	}
	return &item, nil
}
