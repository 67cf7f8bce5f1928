package postgresql

import (
	"context"
	"errors"
	"fmt"

	"github.com/cmlabs-hris/hris-ledger-go/internal/pkg/database"
	"github.com/cmlabs-hris/hris-ledger-go/internal/repository/snapshot"
	"github.com/jackc/pgx/v5"
)

type snapshotBackendImpl struct {
	db *database.DB
}

// NewSnapshotBackend stores snapshots in the state_snapshots table.
func NewSnapshotBackend(db *database.DB) snapshot.Backend {
	return &snapshotBackendImpl{db: db}
}

// Migrate creates the state_snapshots table when missing.
func Migrate(ctx context.Context, db *database.DB) error {
	return WithTransaction(ctx, db, func(ctx context.Context, tx pgx.Tx) error {
		q := GetQuerier(ctx, db)

		if _, err := q.Exec(ctx, `
			CREATE TABLE IF NOT EXISTS state_snapshots (
				key        TEXT PRIMARY KEY,
				payload    JSONB NOT NULL,
				revision   BIGINT NOT NULL DEFAULT 1,
				updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
			)
		`); err != nil {
			return fmt.Errorf("create state_snapshots: %w", err)
		}

		if _, err := q.Exec(ctx, `
			CREATE INDEX IF NOT EXISTS idx_state_snapshots_updated_at
			ON state_snapshots (updated_at)
		`); err != nil {
			return fmt.Errorf("create state_snapshots index: %w", err)
		}

		return nil
	})
}

// Read implements snapshot.Backend.
func (r *snapshotBackendImpl) Read(ctx context.Context, key string) ([]byte, error) {
	q := GetQuerier(ctx, r.db)

	var payload []byte
	err := q.QueryRow(ctx, `SELECT payload FROM state_snapshots WHERE key = $1`, key).Scan(&payload)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, snapshot.ErrNotFound
		}
		return nil, err
	}
	return payload, nil
}

// Write implements snapshot.Backend.
func (r *snapshotBackendImpl) Write(ctx context.Context, key string, payload []byte) error {
	q := GetQuerier(ctx, r.db)

	query := `
		INSERT INTO state_snapshots (key, payload, revision, updated_at)
		VALUES ($1, $2, 1, NOW())
		ON CONFLICT (key) DO UPDATE
		SET payload = EXCLUDED.payload,
			revision = state_snapshots.revision + 1,
			updated_at = NOW()
	`
	commandTag, err := q.Exec(ctx, query, key, payload)
	if err != nil {
		return err
	}
	if commandTag.RowsAffected() != 1 {
		return fmt.Errorf("snapshot %s not written", key)
	}
	return nil
}
