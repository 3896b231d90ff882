package queue

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"
)

// Stats returns a count of songs grouped by status. An empty sessionID
// counts every session.
func (s *Store) Stats(ctx context.Context, sessionID string) (map[Status]int, error) {
	query := `SELECT status, COUNT(1) FROM songs`
	var args []any
	if sessionID != "" {
		query += ` WHERE session_id = ?`
		args = append(args, sessionID)
	}
	query += ` GROUP BY status`
	rows, err := s.db.QueryContext(ensureContext(ctx), query, args...)
	if err != nil {
		return nil, fmt.Errorf("song stats: %w", err)
	}
	defer rows.Close()

	stats := make(map[Status]int)
	for rows.Next() {
		var status Status
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		stats[status] = count
	}
	return stats, rows.Err()
}

// Health aggregates song state for diagnostic output.
func (s *Store) Health(ctx context.Context) (HealthSummary, error) {
	stats, err := s.Stats(ctx, "")
	if err != nil {
		return HealthSummary{}, err
	}
	health := HealthSummary{}
	for status, count := range stats {
		health.Total += count
		switch {
		case status == StatusPending, status == StatusMetadataReady, status == StatusRetryPending:
			health.Pending += count
		case status == StatusReady:
			health.Ready += count
		case status == StatusPlayed:
			health.Played += count
		case status == StatusError:
			health.Failed += count
		case IsTransient(status):
			health.Processing += count
		}
	}
	return health, nil
}

// CheckHealth returns diagnostic information about the state database.
func (s *Store) CheckHealth(ctx context.Context) (DatabaseHealth, error) {
	health := DatabaseHealth{DBPath: s.path}

	if s.path == "" {
		return health, errors.New("state database path is unknown")
	}

	info, err := os.Stat(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return health, nil
		}
		return health, fmt.Errorf("stat state database: %w", err)
	}
	if info.IsDir() {
		return health, fmt.Errorf("state database path %q is a directory", s.path)
	}
	health.DatabaseExists = true

	if s.db == nil {
		return health, errors.New("state database connection unavailable")
	}

	connCtx, cancel := context.WithTimeout(ensureContext(ctx), 2*time.Second)
	defer cancel()

	if err := s.db.PingContext(connCtx); err != nil {
		health.Error = err.Error()
		return health, fmt.Errorf("ping state database: %w", err)
	}
	health.DatabaseReadable = true

	if err := s.db.QueryRowContext(connCtx, "PRAGMA user_version").Scan(&health.SchemaVersion); err != nil {
		health.Error = err.Error()
		return health, fmt.Errorf("read schema version: %w", err)
	}
	if err := s.db.QueryRowContext(connCtx, "SELECT COUNT(*) FROM sessions").Scan(&health.TotalSessions); err != nil {
		health.Error = err.Error()
		return health, fmt.Errorf("count sessions: %w", err)
	}
	if err := s.db.QueryRowContext(connCtx, "SELECT COUNT(*) FROM songs").Scan(&health.TotalSongs); err != nil {
		health.Error = err.Error()
		return health, fmt.Errorf("count songs: %w", err)
	}

	var integrityResult string
	if err := s.db.QueryRowContext(connCtx, "PRAGMA integrity_check").Scan(&integrityResult); err != nil {
		health.Error = err.Error()
		return health, fmt.Errorf("integrity check: %w", err)
	}
	health.IntegrityCheck = strings.EqualFold(integrityResult, "ok")

	return health, nil
}
