package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/BradenHooton/dashgate/internal/auth"
	"github.com/BradenHooton/dashgate/internal/gate"
	"github.com/BradenHooton/dashgate/internal/models"
	"github.com/BradenHooton/dashgate/internal/services"
	pkghttp "github.com/BradenHooton/dashgate/pkg/http"
	"github.com/stretchr/testify/assert"
)

var testIdentity = models.Identity{
	ClientID:  "0f8fad5b-d9cb-469f-a165-70867728950e",
	SessionID: "7c9e6679-7425-40de-944b-e07fc1f90ae7",
}

// NewTestRequest creates an HTTP request with JSON body for testing
func NewTestRequest(t *testing.T, method, url string, body interface{}) *http.Request {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("failed to encode request body: %v", err)
		}
	}
	req := httptest.NewRequest(method, url, &buf)
	req.Header.Set("Content-Type", "application/json")
	return req
}

// WithIdentityContext attaches the test identity, as the Identify middleware would
func WithIdentityContext(req *http.Request) *http.Request {
	return req.WithContext(auth.WithIdentity(req.Context(), testIdentity))
}

// AssertJSONResponse checks that response has correct status and decodes JSON body
func AssertJSONResponse(t *testing.T, w *httptest.ResponseRecorder, expectedStatus int, target interface{}) {
	assert.Equal(t, expectedStatus, w.Code, "Response status mismatch")

	contentType := w.Header().Get("Content-Type")
	assert.Equal(t, "application/json", contentType, "Content-Type should be application/json")

	if target != nil {
		err := json.Unmarshal(w.Body.Bytes(), target)
		assert.NoError(t, err, "Failed to decode response JSON")
	}
}

// AssertErrorResponse checks that response is a valid error response
func AssertErrorResponse(t *testing.T, w *httptest.ResponseRecorder, expectedStatus int, expectedError string) {
	assert.Equal(t, expectedStatus, w.Code, "Response status mismatch")

	var resp pkghttp.ErrorResponse
	err := json.Unmarshal(w.Body.Bytes(), &resp)
	assert.NoError(t, err, "Failed to decode error response")
	assert.Equal(t, expectedError, resp.Error, "Error code mismatch")
	assert.NotEmpty(t, resp.Message, "Error message should not be empty")
}

// MockGateService implements GateServiceInterface for testing
type MockGateService struct {
	StatusFunc func(ctx context.Context, id models.Identity) (gate.Snapshot, error)
	SubmitFunc func(ctx context.Context, id models.Identity, password string, meta services.RequestMeta) (gate.Snapshot, error)
}

func (m *MockGateService) Status(ctx context.Context, id models.Identity) (gate.Snapshot, error) {
	if m.StatusFunc != nil {
		return m.StatusFunc(ctx, id)
	}
	return gate.Snapshot{Status: gate.StatusUnblocked}, nil
}

func (m *MockGateService) Submit(ctx context.Context, id models.Identity, password string, meta services.RequestMeta) (gate.Snapshot, error) {
	if m.SubmitFunc != nil {
		return m.SubmitFunc(ctx, id, password, meta)
	}
	return gate.Snapshot{}, models.ErrInternalServer
}

// MockCSRF accepts exactly one token until it is revoked
type MockCSRF struct {
	Valid   string
	Revoked []string
}

func (m *MockCSRF) Token(sessionID string) (string, error) {
	return m.Valid, nil
}

func (m *MockCSRF) ValidateToken(token, sessionID string) bool {
	return token != "" && token == m.Valid
}

func (m *MockCSRF) RevokeToken(token string) {
	m.Revoked = append(m.Revoked, token)
	if token == m.Valid {
		m.Valid = ""
	}
}

func newTestHandler(service GateServiceInterface) *GateHandler {
	return newTestHandlerWithCSRF(service, &MockCSRF{Valid: "csrf-ok"})
}

func newTestHandlerWithCSRF(service GateServiceInterface, csrf CSRFTokenSource) *GateHandler {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewGateHandler(service, csrf, nil, logger)
}
