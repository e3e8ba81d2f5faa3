// Package probecache persists device classification records in SQLite.
package probecache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/dudu/facefx/internal/perf"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS device_probe (
	signature   TEXT PRIMARY KEY,
	tier        TEXT NOT NULL,
	duration_ns INTEGER NOT NULL,
	measured_at INTEGER NOT NULL
);`

// Store implements perf.ProbeCache on a SQLite database.
type Store struct {
	db *sql.DB
}

var _ perf.ProbeCache = (*Store)(nil)

// Open opens (creating if needed) the database at path. Use ":memory:" for a
// throwaway store.
func Open(path string) (*Store, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create probe cache directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open probe cache: %w", err)
	}
	// A single connection keeps ":memory:" databases shared across calls.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping probe cache: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize probe cache schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Load returns the record for signature, if any.
func (s *Store) Load(ctx context.Context, signature string) (perf.Record, bool, error) {
	var (
		tierName   string
		durationNs int64
		measuredAt int64
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT tier, duration_ns, measured_at FROM device_probe WHERE signature = ?`,
		signature,
	).Scan(&tierName, &durationNs, &measuredAt)
	if errors.Is(err, sql.ErrNoRows) {
		return perf.Record{}, false, nil
	}
	if err != nil {
		return perf.Record{}, false, fmt.Errorf("failed to load probe record: %w", err)
	}

	tier, err := perf.ParseTier(tierName)
	if err != nil {
		return perf.Record{}, false, fmt.Errorf("corrupt probe record: %w", err)
	}
	return perf.Record{
		Signature:  signature,
		Tier:       tier,
		Duration:   time.Duration(durationNs),
		MeasuredAt: time.Unix(0, measuredAt),
	}, true, nil
}

// Save inserts or replaces the record for r.Signature.
func (s *Store) Save(ctx context.Context, r perf.Record) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO device_probe (signature, tier, duration_ns, measured_at)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT(signature) DO UPDATE SET
			tier = excluded.tier,
			duration_ns = excluded.duration_ns,
			measured_at = excluded.measured_at`,
		r.Signature, r.Tier.String(), int64(r.Duration), r.MeasuredAt.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("failed to save probe record: %w", err)
	}
	return nil
}

// Purge deletes records measured before cutoff and returns how many were
// removed.
func (s *Store) Purge(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM device_probe WHERE measured_at < ?`, cutoff.UnixNano())
	if err != nil {
		return 0, fmt.Errorf("failed to purge probe records: %w", err)
	}
	return res.RowsAffected()
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}
