package queue

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
)

//go:embed schema.sql
var schemaSQL string

// SchemaVersion is the work item schema this build reads and writes.
const SchemaVersion = 1

// ErrSchemaMismatch is returned by Open when the database was written by a
// different schema version.
var ErrSchemaMismatch = errors.New("schema version mismatch")

// initSchema creates the tables on first open and refuses databases written
// with another schema version. Both steps share one transaction so a crash
// never leaves tables without a recorded version.
func (s *Store) initSchema(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}

	var version int
	err = tx.QueryRowContext(ctx, "SELECT version FROM schema_version LIMIT 1").Scan(&version)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		if _, err := tx.ExecContext(ctx, "INSERT INTO schema_version (version) VALUES (?)", SchemaVersion); err != nil {
			return fmt.Errorf("record schema version: %w", err)
		}
	case err != nil:
		return fmt.Errorf("read schema version: %w", err)
	case version != SchemaVersion:
		return fmt.Errorf("%w: %s has version %d, this build expects %d (remove the file to start over)",
			ErrSchemaMismatch, s.path, version, SchemaVersion)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema: %w", err)
	}
	return nil
}
