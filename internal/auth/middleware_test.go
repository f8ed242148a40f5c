package auth_test

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/BradenHooton/dashgate/internal/auth"
	"github.com/BradenHooton/dashgate/internal/models"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func identifyHandler(t *testing.T, im *auth.IdentityManager, seen *models.Identity) http.Handler {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return auth.Identify(im, auth.CookieConfig{SameSite: "lax"}, logger)(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, ok := auth.IdentityFromContext(r.Context())
			require.True(t, ok)
			*seen = id
			w.WriteHeader(http.StatusNoContent)
		}),
	)
}

func cookieByName(cookies []*http.Cookie, name string) *http.Cookie {
	for _, c := range cookies {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func TestIdentify_IssuesBothCookiesOnFirstVisit(t *testing.T) {
	im := auth.NewIdentityManager(testSecret, 24*time.Hour, time.Hour)
	var seen models.Identity

	rec := httptest.NewRecorder()
	identifyHandler(t, im, &seen).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	client := cookieByName(rec.Result().Cookies(), auth.ClientCookieName)
	session := cookieByName(rec.Result().Cookies(), auth.SessionCookieName)
	require.NotNil(t, client)
	require.NotNil(t, session)

	assert.True(t, client.HttpOnly)
	assert.Equal(t, 24*60*60, client.MaxAge)
	assert.Equal(t, 0, session.MaxAge)
	assert.True(t, session.Expires.IsZero())
	assert.NotEmpty(t, seen.ClientID)
	assert.NotEmpty(t, seen.SessionID)
	assert.NotEqual(t, seen.ClientID, seen.SessionID)
}

func TestIdentify_ReusesValidCookies(t *testing.T) {
	im := auth.NewIdentityManager(testSecret, 24*time.Hour, time.Hour)
	clientID, clientToken, err := im.Issue(models.IdentityClient)
	require.NoError(t, err)
	sessionID, sessionToken, err := im.Issue(models.IdentitySession)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: auth.ClientCookieName, Value: clientToken})
	req.AddCookie(&http.Cookie{Name: auth.SessionCookieName, Value: sessionToken})

	var seen models.Identity
	rec := httptest.NewRecorder()
	identifyHandler(t, im, &seen).ServeHTTP(rec, req)

	assert.Empty(t, rec.Result().Cookies())
	assert.Equal(t, models.Identity{ClientID: clientID, SessionID: sessionID}, seen)
}

func TestIdentify_ReplacesOnlyTheInvalidCookie(t *testing.T) {
	im := auth.NewIdentityManager(testSecret, 24*time.Hour, time.Hour)
	clientID, clientToken, err := im.Issue(models.IdentityClient)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: auth.ClientCookieName, Value: clientToken})
	req.AddCookie(&http.Cookie{Name: auth.SessionCookieName, Value: "tampered"})

	var seen models.Identity
	rec := httptest.NewRecorder()
	identifyHandler(t, im, &seen).ServeHTTP(rec, req)

	assert.Nil(t, cookieByName(rec.Result().Cookies(), auth.ClientCookieName))
	assert.NotNil(t, cookieByName(rec.Result().Cookies(), auth.SessionCookieName))
	assert.Equal(t, clientID, seen.ClientID)
	assert.NotEmpty(t, seen.SessionID)
}

func TestIdentityFromContext_Missing(t *testing.T) {
	_, ok := auth.IdentityFromContext(httptest.NewRequest(http.MethodGet, "/", nil).Context())
	assert.False(t, ok)
}

// signedAt signs an identity token as if it had been issued at issuedAt
func signedAt(t *testing.T, kind models.IdentityKind, id string, issuedAt time.Time, ttl time.Duration) string {
	t.Helper()
	claims := &models.IdentityClaims{
		Kind: kind,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   id,
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			NotBefore: jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(issuedAt.Add(ttl)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)
	return token
}

func TestIdentify_RenewsAgeingSessionForSameID(t *testing.T) {
	im := auth.NewIdentityManager(testSecret, 24*time.Hour, time.Hour)
	clientID, clientToken, err := im.Issue(models.IdentityClient)
	require.NoError(t, err)
	sessionID := uuid.New().String()
	oldSession := signedAt(t, models.IdentitySession, sessionID, time.Now().Add(-40*time.Minute), time.Hour)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: auth.ClientCookieName, Value: clientToken})
	req.AddCookie(&http.Cookie{Name: auth.SessionCookieName, Value: oldSession})

	var seen models.Identity
	rec := httptest.NewRecorder()
	identifyHandler(t, im, &seen).ServeHTTP(rec, req)

	assert.Equal(t, models.Identity{ClientID: clientID, SessionID: sessionID}, seen)

	cookies := rec.Result().Cookies()
	assert.Nil(t, cookieByName(cookies, auth.ClientCookieName))
	renewed := cookieByName(cookies, auth.SessionCookieName)
	require.NotNil(t, renewed)
	assert.NotEqual(t, oldSession, renewed.Value)

	parsed, err := im.Parse(models.IdentitySession, renewed.Value)
	require.NoError(t, err)
	assert.Equal(t, sessionID, parsed)
}

func TestIdentify_FreshTokensAreNotRenewed(t *testing.T) {
	im := auth.NewIdentityManager(testSecret, 24*time.Hour, time.Hour)
	_, clientToken, err := im.Issue(models.IdentityClient)
	require.NoError(t, err)
	sessionID := uuid.New().String()
	recentSession := signedAt(t, models.IdentitySession, sessionID, time.Now().Add(-10*time.Minute), time.Hour)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: auth.ClientCookieName, Value: clientToken})
	req.AddCookie(&http.Cookie{Name: auth.SessionCookieName, Value: recentSession})

	var seen models.Identity
	rec := httptest.NewRecorder()
	identifyHandler(t, im, &seen).ServeHTTP(rec, req)

	assert.Equal(t, sessionID, seen.SessionID)
	assert.Empty(t, rec.Result().Cookies())
}
