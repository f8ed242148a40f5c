package auth

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// BcryptCost is the work factor used by HashSecret.
const BcryptCost = 12

// bcryptMaxLength is the longest input bcrypt reads; later bytes are ignored.
const bcryptMaxLength = 72

// bcryptPrefixes mark a configured secret as a bcrypt hash instead of plain text.
var bcryptPrefixes = []string{"$2a$", "$2b$", "$2y$"}

// SharedSecret is the single dashboard credential. It holds either the plain
// secret or a bcrypt hash of it.
type SharedSecret struct {
	plain []byte
	hash  []byte
}

// NewSharedSecret interprets a configured value. Values that look like bcrypt
// hashes are verified with bcrypt; anything else must match exactly.
func NewSharedSecret(configured string) SharedSecret {
	if IsBcryptHash(configured) {
		return SharedSecret{hash: []byte(configured)}
	}
	return SharedSecret{plain: []byte(configured)}
}

// Hashed reports whether the secret is stored as a bcrypt hash.
func (s SharedSecret) Hashed() bool {
	return s.hash != nil
}

// Verify compares a candidate in constant time for plain secrets. Hashed
// secrets refuse candidates longer than bcrypt can distinguish.
func (s SharedSecret) Verify(candidate string) bool {
	if s.hash != nil {
		if len(candidate) > bcryptMaxLength {
			return false
		}
		return bcrypt.CompareHashAndPassword(s.hash, []byte(candidate)) == nil
	}
	if len(s.plain) == 0 {
		return false
	}
	return subtle.ConstantTimeCompare(s.plain, []byte(candidate)) == 1
}

// HashSecret produces a bcrypt hash suitable for DASHBOARD_PASSWORD.
func HashSecret(secret string) (string, error) {
	if secret == "" {
		return "", errors.New("secret cannot be empty")
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(secret), BcryptCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash secret: %w", err)
	}
	return string(hashed), nil
}

// IsBcryptHash reports whether a value looks like a bcrypt hash.
func IsBcryptHash(value string) bool {
	for _, prefix := range bcryptPrefixes {
		if strings.HasPrefix(value, prefix) {
			return true
		}
	}
	return false
}
