package repository

import (
	"path/filepath"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"blogapi/internal/config"
)

// newTestDB opens a migrated SQLite database that lives for the duration of the test.
func newTestDB(t *testing.T) *sqlx.DB {
	t.Helper()
	logger := zap.NewNop()

	db, err := NewDB(config.DatabaseSQLite, filepath.Join(t.TempDir(), "blog.db"), logger)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	require.NoError(t, MigrateDB(db, config.DatabaseSQLite, logger))
	return db
}
