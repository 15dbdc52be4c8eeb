package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"blogapi/internal/cache"
	"blogapi/internal/repository"
	"blogapi/internal/token"
)

// Blocklist is the set of revoked token identifiers. The database is the
// source of truth; the optional cache only short-circuits lookups.
type Blocklist interface {
	Record(ctx context.Context, claims *token.Claims) error
	Contains(ctx context.Context, jti string) (bool, error)
}

type blocklist struct {
	repo    repository.BlocklistRepository
	cache   cache.RevocationCache
	fillTTL time.Duration
	now     func() time.Time
	logger  *zap.Logger
}

// NewBlocklist builds a blocklist over repo. revocations may be nil, in which
// case every lookup goes to the database.
func NewBlocklist(repo repository.BlocklistRepository, revocations cache.RevocationCache, fillTTL time.Duration, logger *zap.Logger) Blocklist {
	return &blocklist{
		repo:    repo,
		cache:   revocations,
		fillTTL: fillTTL,
		now:     time.Now,
		logger:  logger,
	}
}

func (b *blocklist) Record(ctx context.Context, claims *token.Claims) error {
	if err := b.repo.Record(ctx, claims.JTI(), claims.ExpiresAtTime()); err != nil {
		return err
	}

	if b.cache == nil {
		return nil
	}

	ttl := claims.ExpiresAtTime().Sub(b.now())
	if err := b.cache.MarkRevoked(ctx, claims.JTI(), ttl); err != nil {
		b.logger.Warn("Failed to cache revoked token, dropping cached state", zap.String("jti", claims.JTI()), zap.Error(err))
		if err := b.cache.Forget(ctx, claims.JTI()); err != nil {
			b.logger.Error("Failed to drop cached token state", zap.String("jti", claims.JTI()), zap.Error(err))
		}
	}
	return nil
}

func (b *blocklist) Contains(ctx context.Context, jti string) (bool, error) {
	if b.cache != nil {
		revoked, found, err := b.cache.Lookup(ctx, jti)
		if err != nil {
			b.logger.Warn("Blocklist cache lookup failed, falling back to database", zap.String("jti", jti), zap.Error(err))
		} else if found {
			return revoked, nil
		}
	}

	revoked, err := b.repo.Contains(ctx, jti)
	if err != nil {
		return false, fmt.Errorf("failed to check blocklist: %w", err)
	}

	if b.cache != nil {
		var cacheErr error
		if revoked {
			cacheErr = b.cache.MarkRevoked(ctx, jti, b.fillTTL)
		} else {
			cacheErr = b.cache.MarkActive(ctx, jti, b.fillTTL)
		}
		if cacheErr != nil {
			b.logger.Debug("Failed to back-fill blocklist cache", zap.String("jti", jti), zap.Error(cacheErr))
		}
	}

	return revoked, nil
}
