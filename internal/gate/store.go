package gate

import "context"

// Persistence keys. The values are part of the stored layout and must not change.
const (
	// SessionKey holds "true" in the session store once the session is authenticated.
	SessionKey = "dashboard_auth"

	// AttemptsKey holds the JSON attempt record in the durable store.
	AttemptsKey = "dashboard_attempts"

	// SessionAuthenticated is the SessionKey value of an authenticated session.
	SessionAuthenticated = "true"
)

// Store is a key/value capability bound to a single persistence scope.
// The gate is handed two of them: one that lives as long as the browsing
// session and one that survives reloads for the same browser.
type Store interface {
	// Get returns the stored value and whether it was present.
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
}
