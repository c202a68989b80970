package store

import (
	"context"
	"fmt"
)

// Version returns the Config Store's current schema version, or 0 if the
// schema_version table does not exist yet (a fresh database).
func (s *Store) Version(ctx context.Context) (int, error) {
	var exists bool
	const existsQ = `SELECT EXISTS (SELECT 1 FROM information_schema.tables WHERE table_name = 'schema_version')`
	if err := s.pool.QueryRow(ctx, existsQ).Scan(&exists); err != nil {
		return 0, fmt.Errorf("store: check schema_version table: %w", err)
	}
	if !exists {
		return 0, nil
	}

	var version int
	const versionQ = `SELECT COALESCE(MAX(version), 0) FROM schema_version`
	if err := s.pool.QueryRow(ctx, versionQ).Scan(&version); err != nil {
		return 0, fmt.Errorf("store: read schema_version: %w", err)
	}
	return version, nil
}

// Setup is what cmd/orr-migrate calls after an up run: it creates the
// schema_version table if it is missing and records version in it.
func (s *Store) Setup(ctx context.Context, version int) error {
	const q = `
CREATE TABLE IF NOT EXISTS schema_version (version INT PRIMARY KEY, applied_at TIMESTAMPTZ NOT NULL DEFAULT now())`
	if _, err := s.pool.Exec(ctx, q); err != nil {
		return fmt.Errorf("store: create schema_version: %w", err)
	}
	const insert = `INSERT INTO schema_version (version) VALUES ($1) ON CONFLICT DO NOTHING`
	if _, err := s.pool.Exec(ctx, insert, version); err != nil {
		return fmt.Errorf("store: record schema version: %w", err)
	}
	return nil
}
