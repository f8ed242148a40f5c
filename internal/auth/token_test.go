package auth_test

import (
	"testing"
	"time"

	"github.com/BradenHooton/dashgate/internal/auth"
	"github.com/BradenHooton/dashgate/internal/models"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret-that-is-long-enough-for-hs256"

func TestIdentityManager_IssueAndParse(t *testing.T) {
	im := auth.NewIdentityManager(testSecret, time.Hour, time.Minute)

	id, token, err := im.Issue(models.IdentityClient)
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	parsed, err := im.Parse(models.IdentityClient, token)
	require.NoError(t, err)
	assert.Equal(t, id, parsed)
}

func TestIdentityManager_RejectsWrongKind(t *testing.T) {
	im := auth.NewIdentityManager(testSecret, time.Hour, time.Minute)

	_, token, err := im.Issue(models.IdentitySession)
	require.NoError(t, err)

	_, err = im.Parse(models.IdentityClient, token)
	assert.ErrorIs(t, err, models.ErrInvalidToken)
}

func TestIdentityManager_RejectsForeignSecret(t *testing.T) {
	issuer := auth.NewIdentityManager("another-secret-that-is-long-enough", time.Hour, time.Hour)
	verifier := auth.NewIdentityManager(testSecret, time.Hour, time.Hour)

	_, token, err := issuer.Issue(models.IdentityClient)
	require.NoError(t, err)

	_, err = verifier.Parse(models.IdentityClient, token)
	assert.ErrorIs(t, err, models.ErrInvalidToken)
}

func TestIdentityManager_RejectsExpired(t *testing.T) {
	claims := &models.IdentityClaims{
		Kind: models.IdentitySession,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "0f8fad5b-d9cb-469f-a165-70867728950e",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)

	im := auth.NewIdentityManager(testSecret, time.Hour, time.Hour)
	_, err = im.Parse(models.IdentitySession, token)

	assert.ErrorIs(t, err, models.ErrInvalidToken)
}

func TestIdentityManager_RejectsNonUUIDSubject(t *testing.T) {
	claims := &models.IdentityClaims{
		Kind: models.IdentityClient,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "../../etc/passwd",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)

	im := auth.NewIdentityManager(testSecret, time.Hour, time.Hour)
	_, err = im.Parse(models.IdentityClient, token)

	assert.ErrorIs(t, err, models.ErrInvalidToken)
}

func TestIdentityManager_RejectsGarbage(t *testing.T) {
	im := auth.NewIdentityManager(testSecret, time.Hour, time.Hour)

	for _, token := range []string{"", "abc", "a.b.c"} {
		_, err := im.Parse(models.IdentityClient, token)
		assert.ErrorIs(t, err, models.ErrInvalidToken, "token=%q", token)
	}
}

func TestIdentityManager_NeedsRenewal(t *testing.T) {
	im := auth.NewIdentityManager(testSecret, time.Hour, time.Hour)
	now := time.Now()

	claimsIssuedAt := func(issuedAt *jwt.NumericDate) *models.IdentityClaims {
		return &models.IdentityClaims{
			Kind:             models.IdentitySession,
			RegisteredClaims: jwt.RegisteredClaims{IssuedAt: issuedAt},
		}
	}

	assert.False(t, im.NeedsRenewal(claimsIssuedAt(jwt.NewNumericDate(now.Add(-10*time.Minute)))))
	assert.True(t, im.NeedsRenewal(claimsIssuedAt(jwt.NewNumericDate(now.Add(-31*time.Minute)))))
	assert.True(t, im.NeedsRenewal(claimsIssuedAt(nil)))
}

func TestIdentityManager_RenewKeepsID(t *testing.T) {
	im := auth.NewIdentityManager(testSecret, time.Hour, time.Minute)
	id, _, err := im.Issue(models.IdentitySession)
	require.NoError(t, err)

	token, err := im.Renew(models.IdentitySession, id)
	require.NoError(t, err)

	parsed, err := im.Parse(models.IdentitySession, token)
	require.NoError(t, err)
	assert.Equal(t, id, parsed)
}
