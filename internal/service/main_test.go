package service

import (
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"blogapi/internal/config"
	"blogapi/internal/crypto"
	"blogapi/internal/repository"
	"blogapi/internal/token"
)

var testKey = []byte("0123456789abcdef0123456789abcdef")

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type testEnv struct {
	db            *sqlx.DB
	clock         *fakeClock
	users         repository.UserRepository
	blocklistRepo repository.BlocklistRepository
	svc           AuthService
}

func newTestDB(t *testing.T) *sqlx.DB {
	t.Helper()
	db, err := repository.NewDB(config.DatabaseSQLite, filepath.Join(t.TempDir(), "blog.db"), zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, repository.MigrateDB(db, config.DatabaseSQLite, zap.NewNop()))
	return db
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	logger := zap.NewNop()
	db := newTestDB(t)

	clock := &fakeClock{t: time.Now().Truncate(time.Second)}
	issuer := token.NewIssuer(testKey, token.Config{
		Issuer:     "blog-test",
		AccessTTL:  15 * time.Minute,
		RefreshTTL: 24 * time.Hour,
	}, token.WithClock(clock.Now))

	hasher, err := crypto.NewPasswordHasher(config.PasswordBcrypt, 4)
	require.NoError(t, err)

	users := repository.NewUserRepository(db, logger)
	blocklistRepo := repository.NewBlocklistRepository(db, logger)
	svc := NewAuthService(users, hasher, issuer, NewBlocklist(blocklistRepo, nil, 0, logger), logger)

	return &testEnv{db: db, clock: clock, users: users, blocklistRepo: blocklistRepo, svc: svc}
}
