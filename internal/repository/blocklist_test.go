package repository

import (
	"context"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type blocklistRow struct {
	ID        int64     `db:"id"`
	ExpiresAt int64     `db:"expires_at"`
	CreatedAt time.Time `db:"created_at"`
}

func loadBlocklistRow(t *testing.T, db *sqlx.DB, jti string) blocklistRow {
	t.Helper()
	var row blocklistRow
	require.NoError(t, db.Get(&row, `SELECT id, expires_at, created_at FROM token_blocklist WHERE jti = ?`, jti))
	return row
}

func TestBlocklistRepository_RecordAndContains(t *testing.T) {
	db := newTestDB(t)
	repo := NewBlocklistRepository(db, zap.NewNop())
	ctx := context.Background()
	exp := time.Now().Add(time.Hour)

	found, err := repo.Contains(ctx, "jti-1")
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, repo.Record(ctx, "jti-1", exp))

	found, err = repo.Contains(ctx, "jti-1")
	require.NoError(t, err)
	assert.True(t, found)

	found, err = repo.Contains(ctx, "jti-2")
	require.NoError(t, err)
	assert.False(t, found)

	entry := loadBlocklistRow(t, db, "jti-1")
	assert.Equal(t, exp.Unix(), entry.ExpiresAt)
	assert.WithinDuration(t, time.Now(), entry.CreatedAt, time.Minute)
}

func TestBlocklistRepository_RecordIsIdempotent(t *testing.T) {
	db := newTestDB(t)
	repo := NewBlocklistRepository(db, zap.NewNop())
	ctx := context.Background()

	require.NoError(t, repo.Record(ctx, "jti-1", time.Now().Add(time.Hour)))
	first := loadBlocklistRow(t, db, "jti-1")

	require.NoError(t, repo.Record(ctx, "jti-1", time.Now().Add(2*time.Hour)))

	second := loadBlocklistRow(t, db, "jti-1")
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, first.ExpiresAt, second.ExpiresAt)

	var rows int
	require.NoError(t, db.Get(&rows, `SELECT COUNT(*) FROM token_blocklist`))
	assert.Equal(t, 1, rows)
}

func TestBlocklistRepository_DeleteExpired(t *testing.T) {
	repo := NewBlocklistRepository(newTestDB(t), zap.NewNop())
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, repo.Record(ctx, "expired", now.Add(-time.Hour)))
	require.NoError(t, repo.Record(ctx, "live", now.Add(time.Hour)))
	require.NoError(t, repo.Record(ctx, "unknown-expiry", time.Time{}))

	deleted, err := repo.DeleteExpired(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	for jti, want := range map[string]bool{"expired": false, "live": true, "unknown-expiry": true} {
		found, err := repo.Contains(ctx, jti)
		require.NoError(t, err)
		assert.Equal(t, want, found, jti)
	}
}

func TestRepositories_LogStorageFailures(t *testing.T) {
	core, logs := observer.New(zap.ErrorLevel)
	logger := zap.New(core)
	db := newTestDB(t)
	blocklist := NewBlocklistRepository(db, logger)
	users := NewUserRepository(db, logger)
	ctx := context.Background()
	require.NoError(t, db.Close())

	_, err := blocklist.Contains(ctx, "jti-1")
	require.Error(t, err)
	require.Error(t, blocklist.Record(ctx, "jti-1", time.Now()))
	_, err = users.GetUserByUsername(ctx, "alice")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrUserNotFound)

	messages := make([]string, 0, logs.Len())
	for _, entry := range logs.All() {
		messages = append(messages, entry.Message)
	}
	assert.Equal(t, []string{
		"Failed to query blocklist",
		"Failed to record revoked token",
		"Failed to get user by username",
	}, messages)
}
