package routes_test

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/BradenHooton/dashgate/internal/auth"
	"github.com/BradenHooton/dashgate/internal/handlers"
	"github.com/BradenHooton/dashgate/internal/middleware"
	"github.com/BradenHooton/dashgate/internal/repositories"
	"github.com/BradenHooton/dashgate/internal/routes"
	"github.com/BradenHooton/dashgate/internal/services"
	pkgauth "github.com/BradenHooton/dashgate/pkg/auth"
	pkglogger "github.com/BradenHooton/dashgate/pkg/logger"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var csrfField = regexp.MustCompile(`name="csrf_token" value="([0-9a-f]+)"`)

type testApp struct {
	server  *httptest.Server
	service *services.GateService
}

func newTestApp(t *testing.T, submitsPerMinute int) *testApp {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	repo := repositories.NewMemoryStateRepository()
	service := services.NewGateService(
		repo,
		pkgauth.NewSharedSecret("admin123"),
		auth.NewFailureDelay(auth.TimingConfig{}),
		services.GateServiceConfig{IdleTimeout: time.Hour, SessionTTL: time.Hour},
		logger,
		pkglogger.NewAuditLogger(logger),
	)
	t.Cleanup(service.Close)

	identities := auth.NewIdentityManager("routes-test-secret-0123456789abcdef", time.Hour, time.Hour)
	gateHandler := handlers.NewGateHandler(service, auth.NewCSRFTokenManager(15*time.Minute), nil, logger)
	dashboard, err := handlers.NewDashboardHandler("", logger)
	require.NoError(t, err)

	router := chi.NewRouter()
	routes.RegisterRoutes(
		router,
		gateHandler,
		handlers.HealthCheck(service, "memory"),
		dashboard,
		auth.Identify(identities, auth.CookieConfig{SameSite: "lax"}, logger),
		middleware.RateLimitConfig{RequestsPerMinute: submitsPerMinute},
		logger,
	)

	server := httptest.NewServer(router)
	t.Cleanup(server.Close)

	return &testApp{server: server, service: service}
}

func (a *testApp) client(t *testing.T) *http.Client {
	t.Helper()
	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	return &http.Client{Jar: jar}
}

func readBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(body)
}

func (a *testApp) loginPage(t *testing.T, client *http.Client) (string, string) {
	t.Helper()
	resp, err := client.Get(a.server.URL + "/login")
	require.NoError(t, err)
	body := readBody(t, resp)

	match := csrfField.FindStringSubmatch(body)
	require.Len(t, match, 2, "csrf token not found in page")
	return body, match[1]
}

func (a *testApp) postLogin(t *testing.T, client *http.Client, password, token string) (*http.Response, string) {
	t.Helper()
	resp, err := client.PostForm(a.server.URL+"/login", url.Values{
		"password":   {password},
		"csrf_token": {token},
		"redirect":   {"/"},
	})
	require.NoError(t, err)
	return resp, readBody(t, resp)
}

func TestRoutes_Health(t *testing.T) {
	app := newTestApp(t, 100)

	resp, err := http.Get(app.server.URL + "/health")
	require.NoError(t, err)
	body := readBody(t, resp)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, `"healthy"`)
}

func TestRoutes_DashboardRequiresPassword(t *testing.T) {
	app := newTestApp(t, 100)
	client := app.client(t)

	resp, err := client.Get(app.server.URL + "/")
	require.NoError(t, err)
	body := readBody(t, resp)

	assert.Equal(t, "/login", resp.Request.URL.Path)
	assert.Contains(t, body, "Enter password to access the dashboard")
	assert.NotContains(t, body, "Access granted")
}

func TestRoutes_APIRequiresPassword(t *testing.T) {
	app := newTestApp(t, 100)

	resp, err := app.client(t).Get(app.server.URL + "/api/documents")
	require.NoError(t, err)
	readBody(t, resp)

	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestRoutes_LoginGrantsDashboard(t *testing.T) {
	app := newTestApp(t, 100)
	client := app.client(t)

	_, token := app.loginPage(t, client)
	resp, body := app.postLogin(t, client, "admin123", token)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "/", resp.Request.URL.Path)
	assert.Contains(t, body, "Access granted")

	statusResp, err := client.Get(app.server.URL + "/api/gate")
	require.NoError(t, err)
	var status handlers.StatusResponse
	require.NoError(t, json.Unmarshal([]byte(readBody(t, statusResp)), &status))
	assert.Equal(t, "authenticated", status.State)
}

func TestRoutes_FifthFailureBlocks(t *testing.T) {
	app := newTestApp(t, 100)
	client := app.client(t)

	_, token := app.loginPage(t, client)

	var body string
	for i := 1; i <= 4; i++ {
		_, body = app.postLogin(t, client, "wrong", token)
		assert.Contains(t, body, "Incorrect password")
	}
	assert.Contains(t, body, "Failed attempts: 4/5")

	_, body = app.postLogin(t, client, "wrong", token)
	assert.Contains(t, body, "Too many failed attempts. Please wait 30 seconds.")
	assert.Contains(t, body, "Blocked (30s)")
	assert.Contains(t, body, `http-equiv="refresh"`)

	// Correct password is refused while blocked
	_, body = app.postLogin(t, client, "admin123", token)
	assert.Contains(t, body, "Blocked (")
	assert.NotContains(t, body, "Access granted")
}

func TestRoutes_LockoutSurvivesNewSession(t *testing.T) {
	app := newTestApp(t, 100)
	client := app.client(t)

	_, token := app.loginPage(t, client)
	for i := 0; i < 5; i++ {
		app.postLogin(t, client, "wrong", token)
	}

	// Drop the session cookie, as closing the browser would
	serverURL, err := url.Parse(app.server.URL)
	require.NoError(t, err)
	var kept []*http.Cookie
	for _, c := range client.Jar.Cookies(serverURL) {
		if c.Name == auth.ClientCookieName {
			kept = append(kept, c)
		}
	}
	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	jar.SetCookies(serverURL, kept)
	client.Jar = jar

	body, _ := app.loginPage(t, client)
	assert.Contains(t, body, "Blocked (")
}

func TestRoutes_JSONSubmit(t *testing.T) {
	app := newTestApp(t, 100)
	client := app.client(t)

	resp, err := client.Post(app.server.URL+"/api/gate/submit", "application/json", strings.NewReader(`{"password":"wrong"}`))
	require.NoError(t, err)
	readBody(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, err = client.Post(app.server.URL+"/api/gate/submit", "application/json", strings.NewReader(`{"password":"admin123"}`))
	require.NoError(t, err)
	readBody(t, resp)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestRoutes_CrossOriginSubmitRejected(t *testing.T) {
	app := newTestApp(t, 100)

	req, err := http.NewRequest(http.MethodPost, app.server.URL+"/api/gate/submit", strings.NewReader(`{"password":"admin123"}`))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Origin", "https://evil.example")

	resp, err := app.client(t).Do(req)
	require.NoError(t, err)
	readBody(t, resp)

	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestRoutes_SubmitRateLimitSharedAcrossRoutes(t *testing.T) {
	app := newTestApp(t, 2)
	client := app.client(t)

	_, token := app.loginPage(t, client)
	app.postLogin(t, client, "wrong", token)

	resp, err := client.Post(app.server.URL+"/api/gate/submit", "application/json", strings.NewReader(`{"password":"wrong"}`))
	require.NoError(t, err)
	readBody(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, err = client.Post(app.server.URL+"/api/gate/submit", "application/json", strings.NewReader(`{"password":"wrong"}`))
	require.NoError(t, err)
	readBody(t, resp)
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
}
