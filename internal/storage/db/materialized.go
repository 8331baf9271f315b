package db

import (
	"database/sql"
	"errors"
	"fmt"
)

// ReplaceMaterialized records the version graph a profile's runtime was last built from,
// along with the cache keys it references
func (d *DB) ReplaceMaterialized(profileID, graphID string, keys []string) error {
	tx, err := d.Begin()
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM materialized WHERE profile_id = ?", profileID); err != nil {
		return fmt.Errorf("clearing materialized: %w", err)
	}
	if _, err := tx.Exec("INSERT INTO materialized (profile_id, graph_id) VALUES (?, ?)", profileID, graphID); err != nil {
		return fmt.Errorf("recording materialized: %w", err)
	}

	stmt, err := tx.Prepare("INSERT OR IGNORE INTO materialized_artifacts (profile_id, cache_key) VALUES (?, ?)")
	if err != nil {
		return fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()

	for _, key := range keys {
		if _, err := stmt.Exec(profileID, key); err != nil {
			return fmt.Errorf("recording artifact %s: %w", key, err)
		}
	}

	return tx.Commit()
}

// GetMaterialized returns the graph id a profile was materialized from, or "" if never
func (d *DB) GetMaterialized(profileID string) (string, error) {
	var graphID string
	err := d.QueryRow("SELECT graph_id FROM materialized WHERE profile_id = ?", profileID).Scan(&graphID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("getting materialized: %w", err)
	}
	return graphID, nil
}

// DeleteMaterialized forgets a profile's materialization, forcing the next launch to rebuild it
func (d *DB) DeleteMaterialized(profileID string) error {
	if _, err := d.Exec("DELETE FROM materialized WHERE profile_id = ?", profileID); err != nil {
		return fmt.Errorf("deleting materialized: %w", err)
	}
	return nil
}

// MaterializedKeys returns the set of cache keys referenced by any profile
func (d *DB) MaterializedKeys() (map[string]bool, error) {
	rows, err := d.Query("SELECT DISTINCT cache_key FROM materialized_artifacts")
	if err != nil {
		return nil, fmt.Errorf("querying materialized keys: %w", err)
	}
	defer rows.Close()

	keys := make(map[string]bool)
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, fmt.Errorf("scanning key: %w", err)
		}
		keys[key] = true
	}
	return keys, rows.Err()
}
