package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"sync"
	"time"
)

// csrfTokenEntry stores token metadata
type csrfTokenEntry struct {
	sessionID string
	expiry    time.Time
}

// CSRFTokenManager handles CSRF tokens for the gate form. Each session holds
// at most one live token, reissued with a fresh expiry on every render.
type CSRFTokenManager struct {
	validTokens map[string]*csrfTokenEntry // token -> entry
	bySession   map[string]string          // sessionID -> token
	mu          sync.Mutex
	tokenTTL    time.Duration
	now         func() time.Time
}

// NewCSRFTokenManager creates a new CSRF token manager
func NewCSRFTokenManager(ttl time.Duration) *CSRFTokenManager {
	return &CSRFTokenManager{
		validTokens: make(map[string]*csrfTokenEntry),
		bySession:   make(map[string]string),
		tokenTTL:    ttl,
		now:         time.Now,
	}
}

// Token returns the session's CSRF token, generating one if needed
func (m *CSRFTokenManager) Token(sessionID string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	if token, ok := m.bySession[sessionID]; ok {
		if entry := m.validTokens[token]; entry != nil && now.Before(entry.expiry) {
			entry.expiry = now.Add(m.tokenTTL)
			return token, nil
		}
		delete(m.validTokens, token)
	}

	randomBytes := make([]byte, 32)
	if _, err := rand.Read(randomBytes); err != nil {
		return "", err
	}

	token := hex.EncodeToString(randomBytes)
	m.validTokens[token] = &csrfTokenEntry{
		sessionID: sessionID,
		expiry:    now.Add(m.tokenTTL),
	}
	m.bySession[sessionID] = token

	return token, nil
}

// ValidateToken checks if a CSRF token is valid and belongs to the session
func (m *CSRFTokenManager) ValidateToken(token, sessionID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, exists := m.validTokens[token]
	if !exists {
		return false
	}

	if subtle.ConstantTimeCompare([]byte(entry.sessionID), []byte(sessionID)) != 1 {
		return false
	}

	if m.now().After(entry.expiry) {
		m.removeLocked(token, entry)
		return false
	}

	return true
}

// RevokeToken invalidates a CSRF token
func (m *CSRFTokenManager) RevokeToken(token string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if entry, ok := m.validTokens[token]; ok {
		m.removeLocked(token, entry)
	}
}

// Sweep removes expired tokens and reports how many were dropped
func (m *CSRFTokenManager) Sweep() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	removed := 0
	for token, entry := range m.validTokens {
		if now.After(entry.expiry) {
			m.removeLocked(token, entry)
			removed++
		}
	}
	return removed
}

func (m *CSRFTokenManager) removeLocked(token string, entry *csrfTokenEntry) {
	delete(m.validTokens, token)
	if m.bySession[entry.sessionID] == token {
		delete(m.bySession, entry.sessionID)
	}
}
