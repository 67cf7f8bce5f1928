package postgresql

import (
	"context"
	"os"
	"testing"

	"github.com/cmlabs-hris/hris-ledger-go/internal/pkg/database"
	"github.com/cmlabs-hris/hris-ledger-go/internal/repository/snapshot"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func snapshotTestDB(t *testing.T) *database.DB {
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	ctx := context.Background()
	db, err := database.NewPostgreSQLDB(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(db.Close)

	require.NoError(t, Migrate(ctx, db))
	_, err = db.Exec(ctx, "TRUNCATE TABLE state_snapshots")
	require.NoError(t, err)
	return db
}

func TestSnapshotBackend_ReadMissing(t *testing.T) {
	db := snapshotTestDB(t)
	backend := NewSnapshotBackend(db)

	_, err := backend.Read(context.Background(), "attendance")
	assert.ErrorIs(t, err, snapshot.ErrNotFound)
}

func TestSnapshotBackend_UpsertBumpsRevision(t *testing.T) {
	ctx := context.Background()
	db := snapshotTestDB(t)
	backend := NewSnapshotBackend(db)

	require.NoError(t, backend.Write(ctx, "leave", []byte(`{"requests":[]}`)))
	require.NoError(t, backend.Write(ctx, "leave", []byte(`{"requests":[{"id":"r1"}]}`)))

	got, err := backend.Read(ctx, "leave")
	require.NoError(t, err)
	assert.JSONEq(t, `{"requests":[{"id":"r1"}]}`, string(got))

	var revision int64
	require.NoError(t, db.QueryRow(ctx, `SELECT revision FROM state_snapshots WHERE key = 'leave'`).Scan(&revision))
	assert.Equal(t, int64(2), revision)
}
