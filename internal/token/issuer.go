// Package token mints and verifies the signed access and refresh tokens
// handed out at login.
package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

type Type string

const (
	Access  Type = "access"
	Refresh Type = "refresh"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token expired")
)

// Claims defines the structure of the JWT claims. Subject carries the
// username and ID carries the jti used for revocation.
type Claims struct {
	Type Type `json:"type"`
	jwt.RegisteredClaims
}

func (c *Claims) JTI() string { return c.ID }

func (c *Claims) Username() string { return c.Subject }

// ExpiresAtTime returns the expiry, or the zero time if the claim is absent.
func (c *Claims) ExpiresAtTime() time.Time {
	if c.ExpiresAt == nil {
		return time.Time{}
	}
	return c.ExpiresAt.Time
}

type Config struct {
	Issuer     string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

type Option func(*Issuer)

// WithClock replaces time.Now for issuing and validating tokens.
func WithClock(now func() time.Time) Option {
	return func(i *Issuer) { i.now = now }
}

type Issuer struct {
	key    []byte
	cfg    Config
	now    func() time.Time
	parser *jwt.Parser
}

func NewIssuer(key []byte, cfg Config, opts ...Option) *Issuer {
	if cfg.AccessTTL <= 0 {
		cfg.AccessTTL = 15 * time.Minute
	}
	if cfg.RefreshTTL <= 0 {
		cfg.RefreshTTL = 30 * 24 * time.Hour
	}

	i := &Issuer{key: key, cfg: cfg, now: time.Now}
	for _, opt := range opts {
		opt(i)
	}

	parserOpts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(i.now),
	}
	if cfg.Issuer != "" {
		parserOpts = append(parserOpts, jwt.WithIssuer(cfg.Issuer))
	}
	i.parser = jwt.NewParser(parserOpts...)

	return i
}

func (i *Issuer) IssueAccess(subject string) (string, *Claims, error) {
	return i.issue(subject, Access, i.cfg.AccessTTL)
}

func (i *Issuer) IssueRefresh(subject string) (string, *Claims, error) {
	return i.issue(subject, Refresh, i.cfg.RefreshTTL)
}

func (i *Issuer) issue(subject string, typ Type, ttl time.Duration) (string, *Claims, error) {
	if subject == "" {
		return "", nil, errors.New("token subject is empty")
	}

	now := i.now()
	claims := &Claims{
		Type: typ,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   subject,
			Issuer:    i.cfg.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.key)
	if err != nil {
		return "", nil, fmt.Errorf("failed to sign %s token: %w", typ, err)
	}
	return signed, claims, nil
}

// Parse verifies signature, issuer and expiry and returns the claims. Expired
// tokens yield ErrExpiredToken; every other failure is ErrInvalidToken.
func (i *Issuer) Parse(tokenString string) (*Claims, error) {
	claims := &Claims{}
	parsed, err := i.parser.ParseWithClaims(tokenString, claims, func(*jwt.Token) (interface{}, error) {
		return i.key, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !parsed.Valid {
		return nil, ErrInvalidToken
	}

	if claims.Subject == "" || claims.ID == "" {
		return nil, fmt.Errorf("%w: missing subject or jti", ErrInvalidToken)
	}
	if claims.Type != Access && claims.Type != Refresh {
		return nil, fmt.Errorf("%w: unknown token type %q", ErrInvalidToken, claims.Type)
	}

	return claims, nil
}
