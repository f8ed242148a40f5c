package middleware

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSameOriginWrites(t *testing.T) {
	handler := SameOriginWrites(slog.New(slog.NewTextHandler(io.Discard, nil)))(okHandler())

	tests := []struct {
		name    string
		method  string
		headers map[string]string
		want    int
	}{
		{"get from anywhere", http.MethodGet, map[string]string{"Origin": "https://evil.example"}, http.StatusOK},
		{"same origin post", http.MethodPost, map[string]string{"Origin": "http://example.com"}, http.StatusOK},
		{"cross origin post", http.MethodPost, map[string]string{"Origin": "https://evil.example"}, http.StatusForbidden},
		{"cross origin referer", http.MethodPost, map[string]string{"Referer": "https://evil.example/page"}, http.StatusForbidden},
		{"same origin referer", http.MethodPost, map[string]string{"Referer": "http://example.com/login"}, http.StatusOK},
		{"no origin headers", http.MethodPost, nil, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, "http://example.com/login", nil)
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}

			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)

			assert.Equal(t, tt.want, w.Code)
		})
	}
}
