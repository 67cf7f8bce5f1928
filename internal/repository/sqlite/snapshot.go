package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/cmlabs-hris/hris-ledger-go/internal/repository/snapshot"
)

type snapshotBackendImpl struct {
	db *sql.DB
}

// NewSnapshotBackend stores snapshots in the state_snapshots table of an
// SQLite database.
func NewSnapshotBackend(db *sql.DB) snapshot.Backend {
	return &snapshotBackendImpl{db: db}
}

// Migrate creates the state_snapshots table when missing.
func Migrate(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS state_snapshots (
			key        TEXT PRIMARY KEY,
			payload    BLOB NOT NULL,
			revision   INTEGER NOT NULL DEFAULT 1,
			updated_at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%fZ', 'now'))
		)
	`)
	if err != nil {
		return fmt.Errorf("create state_snapshots: %w", err)
	}
	return nil
}

// Read implements snapshot.Backend.
func (r *snapshotBackendImpl) Read(ctx context.Context, key string) ([]byte, error) {
	var payload []byte
	err := r.db.QueryRowContext(ctx, `SELECT payload FROM state_snapshots WHERE key = ?`, key).Scan(&payload)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, snapshot.ErrNotFound
		}
		return nil, err
	}
	return payload, nil
}

// Write implements snapshot.Backend.
func (r *snapshotBackendImpl) Write(ctx context.Context, key string, payload []byte) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO state_snapshots (key, payload, revision, updated_at)
		VALUES (?, ?, 1, strftime('%Y-%m-%dT%H:%M:%fZ', 'now'))
		ON CONFLICT (key) DO UPDATE
		SET payload = excluded.payload,
			revision = state_snapshots.revision + 1,
			updated_at = excluded.updated_at
	`, key, payload)
	return err
}
