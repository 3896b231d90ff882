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

// schemaVersion is stored in PRAGMA user_version. There are no migrations:
// a database written by another version must be removed by hand.
const schemaVersion = 1

// ErrSchemaMismatch reports a state database created by a different schema
// version.
var ErrSchemaMismatch = errors.New("schema version mismatch")

func (s *Store) initSchema(ctx context.Context) error {
	var version int
	if err := s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	switch version {
	case schemaVersion:
		return nil
	case 0:
		return s.withTx(ctx, func(tx *sql.Tx) error {
			if _, err := tx.ExecContext(ctx, schemaSQL); err != nil {
				return fmt.Errorf("create schema: %w", err)
			}
			// PRAGMA does not accept bound parameters.
			if _, err := tx.ExecContext(ctx, fmt.Sprintf("PRAGMA user_version = %d", schemaVersion)); err != nil {
				return fmt.Errorf("record schema version: %w", err)
			}
			return nil
		})
	default:
		return fmt.Errorf("%w: %s has version %d, want %d", ErrSchemaMismatch, s.path, version, schemaVersion)
	}
}
