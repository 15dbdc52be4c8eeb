package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

// BlocklistRepository persists revoked token identifiers.
type BlocklistRepository interface {
	Record(ctx context.Context, jti string, expiresAt time.Time) error
	Contains(ctx context.Context, jti string) (bool, error)
	DeleteExpired(ctx context.Context, before time.Time) (int64, error)
}

type blocklistRepository struct {
	db     *sqlx.DB
	logger *zap.Logger
}

func NewBlocklistRepository(db *sqlx.DB, logger *zap.Logger) BlocklistRepository {
	return &blocklistRepository{db: db, logger: logger}
}

// Record inserts a revocation row. Recording a jti twice is a no-op.
func (r *blocklistRepository) Record(ctx context.Context, jti string, expiresAt time.Time) error {
	var exp int64
	if !expiresAt.IsZero() {
		exp = expiresAt.Unix()
	}

	query := r.db.Rebind(`INSERT INTO token_blocklist (jti, expires_at, created_at) VALUES (?, ?, ?)
		ON CONFLICT (jti) DO NOTHING`)
	if _, err := r.db.ExecContext(ctx, query, jti, exp, time.Now().UTC()); err != nil {
		r.logger.Error("Failed to record revoked token", zap.String("jti", jti), zap.Error(err))
		return fmt.Errorf("failed to record revoked token: %w", err)
	}
	return nil
}

func (r *blocklistRepository) Contains(ctx context.Context, jti string) (bool, error) {
	var count int
	query := r.db.Rebind(`SELECT COUNT(*) FROM token_blocklist WHERE jti = ?`)
	if err := r.db.GetContext(ctx, &count, query, jti); err != nil {
		r.logger.Error("Failed to query blocklist", zap.String("jti", jti), zap.Error(err))
		return false, fmt.Errorf("failed to query blocklist: %w", err)
	}
	return count > 0, nil
}

// DeleteExpired removes rows whose token expired before the given instant.
// Rows without a known expiry are kept.
func (r *blocklistRepository) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	query := r.db.Rebind(`DELETE FROM token_blocklist WHERE expires_at > 0 AND expires_at < ?`)
	res, err := r.db.ExecContext(ctx, query, before.Unix())
	if err != nil {
		r.logger.Error("Failed to prune blocklist", zap.Error(err))
		return 0, fmt.Errorf("failed to prune blocklist: %w", err)
	}
	return res.RowsAffected()
}
