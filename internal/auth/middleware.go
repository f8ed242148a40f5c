package auth

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/BradenHooton/dashgate/internal/models"
	pkghttp "github.com/BradenHooton/dashgate/pkg/http"
)

// contextKey is a custom type for context keys
type contextKey string

const (
	// IdentityContextKey is the key for storing the request identity in context
	IdentityContextKey contextKey = "identity"
)

// Identify resolves the client and session identities from their cookies,
// minting and setting fresh ones when missing or invalid, and injects the
// result into the request context. Tokens past half their lifetime are
// re-issued for the same id, so identities in active use do not expire.
func Identify(im *IdentityManager, cookies CookieConfig, logger *slog.Logger) func(next http.Handler) http.Handler {
	setClient := func(w http.ResponseWriter, token string) {
		SetClientCookie(w, token, im.TTL(models.IdentityClient), cookies)
	}
	setSession := func(w http.ResponseWriter, token string) {
		SetSessionCookie(w, token, cookies)
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			clientID, err := resolveIdentity(w, r, im, models.IdentityClient, ClientCookieName, setClient, logger)
			if err != nil {
				pkghttp.WriteInternalError(w, "internal server error")
				return
			}

			sessionID, err := resolveIdentity(w, r, im, models.IdentitySession, SessionCookieName, setSession, logger)
			if err != nil {
				pkghttp.WriteInternalError(w, "internal server error")
				return
			}

			ctx := WithIdentity(r.Context(), models.Identity{ClientID: clientID, SessionID: sessionID})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// resolveIdentity returns the id carried by the named cookie. A missing or
// invalid cookie gets a new identity; an ageing one is renewed in place.
func resolveIdentity(
	w http.ResponseWriter,
	r *http.Request,
	im *IdentityManager,
	kind models.IdentityKind,
	cookieName string,
	set func(http.ResponseWriter, string),
	logger *slog.Logger,
) (string, error) {
	claims, err := im.parseClaims(kind, ReadCookie(r, cookieName))
	if err != nil {
		id, token, issueErr := im.Issue(kind)
		if issueErr != nil {
			logger.Error("failed to issue identity", "kind", kind, "error", issueErr)
			return "", issueErr
		}
		set(w, token)
		return id, nil
	}

	if im.NeedsRenewal(claims) {
		token, renewErr := im.Renew(kind, claims.Subject)
		if renewErr != nil {
			// The current token is still valid.
			logger.Warn("failed to renew identity", "kind", kind, "error", renewErr)
			return claims.Subject, nil
		}
		set(w, token)
	}

	return claims.Subject, nil
}

// WithIdentity returns a copy of ctx carrying id
func WithIdentity(ctx context.Context, id models.Identity) context.Context {
	return context.WithValue(ctx, IdentityContextKey, id)
}

// IdentityFromContext extracts the identity from request context
func IdentityFromContext(ctx context.Context) (models.Identity, bool) {
	id, ok := ctx.Value(IdentityContextKey).(models.Identity)
	return id, ok
}
