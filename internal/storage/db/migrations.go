package db

import "fmt"

func (d *DB) migrate() error {
	// Create migrations table if it doesn't exist
	if _, err := d.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`); err != nil {
		return fmt.Errorf("creating migrations table: %w", err)
	}

	// Get current version
	var version int
	err := d.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&version)
	if err != nil {
		return fmt.Errorf("getting schema version: %w", err)
	}

	// Apply migrations
	migrations := []func(*DB) error{
		migrateV1,
		migrateV2,
	}

	for i := version; i < len(migrations); i++ {
		if err := migrations[i](d); err != nil {
			return fmt.Errorf("migration %d: %w", i+1, err)
		}
		if _, err := d.Exec("INSERT INTO schema_migrations (version) VALUES (?)", i+1); err != nil {
			return fmt.Errorf("recording migration %d: %w", i+1, err)
		}
	}

	return nil
}

func migrateV1(d *DB) error {
	statements := []string{
		`CREATE TABLE accounts (
			uuid TEXT PRIMARY KEY,
			username TEXT NOT NULL,
			kind INTEGER NOT NULL,
			head_url TEXT,
			skin_url TEXT,
			active INTEGER NOT NULL DEFAULT 0,
			added_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
		// At most one row may be active
		`CREATE UNIQUE INDEX idx_accounts_active ON accounts(active) WHERE active = 1`,
		`CREATE TABLE auth_tokens (
			token_key TEXT PRIMARY KEY,
			token_data BLOB,
			expires_at DATETIME,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE installed_content (
			profile_id TEXT NOT NULL,
			kind INTEGER NOT NULL,
			filename TEXT NOT NULL,
			source_id TEXT,
			registry_id TEXT,
			version_id TEXT,
			name TEXT NOT NULL,
			version TEXT,
			sha1 TEXT,
			enabled INTEGER DEFAULT 1,
			installed_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY(profile_id, kind, filename)
		)`,
		`CREATE INDEX idx_installed_content_registry ON installed_content(registry_id)`,
		`CREATE INDEX idx_installed_content_sha1 ON installed_content(sha1)`,
	}

	for _, stmt := range statements {
		if _, err := d.Exec(stmt); err != nil {
			return fmt.Errorf("executing %q: %w", stmt[:30], err)
		}
	}

	return nil
}

func migrateV2(d *DB) error {
	// Track which cached artifacts each profile's runtime was built from, and keep the last
	// good copy of every upstream metadata document for offline fallback
	statements := []string{
		`CREATE TABLE materialized (
			profile_id TEXT PRIMARY KEY,
			graph_id TEXT NOT NULL,
			materialized_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE materialized_artifacts (
			profile_id TEXT NOT NULL,
			cache_key TEXT NOT NULL,
			PRIMARY KEY(profile_id, cache_key),
			FOREIGN KEY(profile_id) REFERENCES materialized(profile_id) ON DELETE CASCADE
		)`,
		`CREATE TABLE manifest_cache (
			doc_key TEXT PRIMARY KEY,
			url TEXT NOT NULL,
			body BLOB NOT NULL,
			fetched_at DATETIME NOT NULL
		)`,
	}

	for _, stmt := range statements {
		if _, err := d.Exec(stmt); err != nil {
			return fmt.Errorf("executing %q: %w", stmt[:30], err)
		}
	}

	return nil
}
