package crypto

import (
	"errors"
)

// MinSigningKeyLength is the HS256 key size.
const MinSigningKeyLength = 32

var (
	ErrSigningKeyNotSet   = errors.New("jwt signing key not set")
	ErrSigningKeyTooShort = errors.New("jwt signing key must be at least 32 bytes")
)

// NewSigningKey validates the configured secret and returns it as key material
// for the token issuer.
func NewSigningKey(secret string) ([]byte, error) {
	if secret == "" {
		return nil, ErrSigningKeyNotSet
	}
	if len(secret) < MinSigningKeyLength {
		return nil, ErrSigningKeyTooShort
	}

	key := make([]byte, len(secret))
	copy(key, secret)
	return key, nil
}
