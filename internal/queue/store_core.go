package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"songflow/internal/config"
)

// Store persists sessions, songs and settings in a single SQLite file. The
// daemon and the CLI may hold a Store on the same file at once.
type Store struct {
	db   *sql.DB
	path string
	now  func() time.Time
}

// Connection pragmas, applied by the driver to every new connection.
var pragmas = []string{
	"journal_mode(WAL)",
	"foreign_keys(1)",
	"busy_timeout(5000)",
}

// busyBackoff is the wait before each retry of a statement that hit
// SQLITE_BUSY after busy_timeout expired.
var busyBackoff = []time.Duration{
	10 * time.Millisecond,
	20 * time.Millisecond,
	40 * time.Millisecond,
	80 * time.Millisecond,
}

// Open opens the state database under paths.data_dir.
func Open(cfg *config.Config) (*Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}
	return OpenPath(cfg.DatabasePath())
}

// OpenPath opens the state database at dbPath, creating the schema when the
// file is new.
func OpenPath(dbPath string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("ensure database directory: %w", err)
	}
	db, err := sql.Open("sqlite", dsn(dbPath))
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	db.SetMaxOpenConns(1)

	store := &Store{db: db, path: dbPath, now: time.Now}
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// dsn builds a modernc.org/sqlite DSN: file:path?_pragma=a(b)&_pragma=c(d).
func dsn(path string) string {
	return "file:" + path + "?_pragma=" + strings.Join(pragmas, "&_pragma=")
}

// Path returns the database file location.
func (s *Store) Path() string {
	return s.path
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) timestamp() time.Time {
	now := time.Now
	if s.now != nil {
		now = s.now
	}
	return now().UTC()
}

func ensureContext(ctx context.Context) context.Context {
	if ctx == nil {
		return context.Background()
	}
	return ctx
}

func isSQLiteBusy(err error) bool {
	var coded interface{ Code() int }
	if errors.As(err, &coded) {
		// SQLITE_BUSY plus its extended codes.
		return coded.Code()&0xff == 5
	}
	return err != nil && strings.Contains(err.Error(), "database is locked")
}

// retryOnBusy runs op, repeating it on SQLITE_BUSY with the busyBackoff
// schedule. Any other error ends the loop.
func retryOnBusy(ctx context.Context, op func() error) error {
	err := op()
	for _, wait := range busyBackoff {
		if !isSQLiteBusy(err) {
			return err
		}
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
		err = op()
	}
	return err
}

func (s *Store) execWithRetry(ctx context.Context, query string, args ...any) (sql.Result, error) {
	ctx = ensureContext(ctx)
	var res sql.Result
	err := retryOnBusy(ctx, func() error {
		var execErr error
		res, execErr = s.db.ExecContext(ctx, query, args...)
		return execErr
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// withTx runs fn in one transaction. A busy database restarts the whole
// transaction, so fn must not have side effects outside tx.
func (s *Store) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	ctx = ensureContext(ctx)
	return retryOnBusy(ctx, func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		if err := fn(tx); err != nil {
			_ = tx.Rollback()
			return err
		}
		return tx.Commit()
	})
}
