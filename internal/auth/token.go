package auth

import (
	"fmt"
	"time"

	"github.com/BradenHooton/dashgate/internal/models"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// IdentityManager issues and validates the signed client and session tokens
type IdentityManager struct {
	secret     []byte
	clientTTL  time.Duration
	sessionTTL time.Duration
}

// NewIdentityManager creates a new IdentityManager
func NewIdentityManager(secret string, clientTTL, sessionTTL time.Duration) *IdentityManager {
	return &IdentityManager{
		secret:     []byte(secret),
		clientTTL:  clientTTL,
		sessionTTL: sessionTTL,
	}
}

// TTL returns the lifetime of tokens of the given kind
func (im *IdentityManager) TTL(kind models.IdentityKind) time.Duration {
	if kind == models.IdentityClient {
		return im.clientTTL
	}
	return im.sessionTTL
}

// Issue mints a fresh random id and the token carrying it
func (im *IdentityManager) Issue(kind models.IdentityKind) (id, token string, err error) {
	id = uuid.New().String()
	token, err = im.Renew(kind, id)
	if err != nil {
		return "", "", err
	}
	return id, token, nil
}

// Renew mints a new token for an existing id with a full lifetime
func (im *IdentityManager) Renew(kind models.IdentityKind, id string) (string, error) {
	now := time.Now()

	claims := &models.IdentityClaims{
		Kind: kind,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.New().String(),
			Subject:   id,
			ExpiresAt: jwt.NewNumericDate(now.Add(im.TTL(kind))),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(im.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign %s token: %w", kind, err)
	}

	return token, nil
}

// Parse verifies a token of the given kind and returns the id it carries
func (im *IdentityManager) Parse(kind models.IdentityKind, tokenString string) (string, error) {
	claims, err := im.parseClaims(kind, tokenString)
	if err != nil {
		return "", err
	}
	return claims.Subject, nil
}

// NeedsRenewal reports whether more than half of the token's lifetime has
// elapsed. Tokens without an issue time always need renewal.
func (im *IdentityManager) NeedsRenewal(claims *models.IdentityClaims) bool {
	if claims.IssuedAt == nil {
		return true
	}
	return time.Since(claims.IssuedAt.Time) >= im.TTL(claims.Kind)/2
}

func (im *IdentityManager) parseClaims(kind models.IdentityKind, tokenString string) (*models.IdentityClaims, error) {
	claims := &models.IdentityClaims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		return im.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrInvalidToken, err)
	}

	if !token.Valid {
		return nil, models.ErrInvalidToken
	}

	if claims.Kind != kind {
		return nil, fmt.Errorf("%w: expected %s token, got %q", models.ErrInvalidToken, kind, claims.Kind)
	}

	if _, err := uuid.Parse(claims.Subject); err != nil {
		return nil, fmt.Errorf("%w: malformed subject", models.ErrInvalidToken)
	}

	return claims, nil
}
