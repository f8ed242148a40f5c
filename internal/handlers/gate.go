package handlers

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"html/template"
	"log/slog"
	"mime"
	"net/http"
	"net/url"
	"strings"

	"github.com/BradenHooton/dashgate/internal/auth"
	"github.com/BradenHooton/dashgate/internal/gate"
	"github.com/BradenHooton/dashgate/internal/models"
	"github.com/BradenHooton/dashgate/internal/services"
	pkghttp "github.com/BradenHooton/dashgate/pkg/http"
)

//go:embed templates/gate.html
var templateFS embed.FS

var gatePage = template.Must(template.ParseFS(templateFS, "templates/gate.html"))

const (
	pageTitle   = "OCR Dashboard"
	pagePrompt  = "Enter password to access the dashboard"
	loginPath   = "/login"
	maxFormSize = 8 << 10

	msgFormExpired = "Your session expired. Please try again."
)

// GateServiceInterface defines the gate operations used by the handlers
type GateServiceInterface interface {
	Status(ctx context.Context, id models.Identity) (gate.Snapshot, error)
	Submit(ctx context.Context, id models.Identity, password string, meta services.RequestMeta) (gate.Snapshot, error)
}

// CSRFTokenSource issues and checks form tokens bound to a session
type CSRFTokenSource interface {
	Token(sessionID string) (string, error)
	ValidateToken(token, sessionID string) bool
	RevokeToken(token string)
}

// GateHandler serves the gate page, its JSON API and the Protect middleware
type GateHandler struct {
	service  GateServiceInterface
	csrf     CSRFTokenSource
	ipConfig *pkghttp.IPConfig
	logger   *slog.Logger
}

// NewGateHandler creates a new GateHandler
func NewGateHandler(service GateServiceInterface, csrf CSRFTokenSource, ipConfig *pkghttp.IPConfig, logger *slog.Logger) *GateHandler {
	return &GateHandler{
		service:  service,
		csrf:     csrf,
		ipConfig: ipConfig,
		logger:   logger,
	}
}

// SubmitRequest represents the request body for a JSON submission
type SubmitRequest struct {
	Password string `json:"password" validate:"required,max=1024"`
}

// LoginForm represents the gate page form
type LoginForm struct {
	Password  string `validate:"max=1024"`
	CSRFToken string `validate:"required"`
	Redirect  string
}

// StatusResponse represents the gate state in JSON responses
type StatusResponse struct {
	State            string `json:"state"`
	FailedAttempts   int    `json:"failed_attempts"`
	MaxAttempts      int    `json:"max_attempts"`
	RemainingSeconds int    `json:"remaining_seconds"`
	Remaining        string `json:"remaining,omitempty"`
	Error            string `json:"error,omitempty"`
}

type pageData struct {
	Title     string
	Prompt    string
	View      gate.View
	CSRFToken string
	Redirect  string
	Refresh   bool
}

func newStatusResponse(snap gate.Snapshot) StatusResponse {
	resp := StatusResponse{
		State:            snap.Status.String(),
		FailedAttempts:   snap.FailureCount,
		MaxAttempts:      gate.FreeAttempts,
		RemainingSeconds: snap.RemainingSeconds,
		Error:            snap.Error,
	}
	if snap.Status == gate.StatusBlocked {
		resp.Remaining = gate.FormatRemaining(snap.RemainingSeconds)
	}
	return resp
}

// LoginPage renders the gate page, or redirects once authenticated
func (h *GateHandler) LoginPage(w http.ResponseWriter, r *http.Request) {
	id, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		pkghttp.WriteInternalError(w, "internal server error")
		return
	}

	redirect := safeRedirect(r.URL.Query().Get("redirect"))

	snap, err := h.service.Status(r.Context(), id)
	if err != nil {
		h.logger.Error("failed to load gate status", slog.Any("error", err))
		pkghttp.WriteInternalError(w, "internal server error")
		return
	}

	if snap.Authenticated() {
		http.Redirect(w, r, redirect, http.StatusSeeOther)
		return
	}

	h.render(w, http.StatusOK, id, snap, redirect)
}

// LoginSubmit handles the gate page form
func (h *GateHandler) LoginSubmit(w http.ResponseWriter, r *http.Request) {
	id, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		pkghttp.WriteInternalError(w, "internal server error")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxFormSize)
	if err := r.ParseForm(); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid form body")
		return
	}

	form := LoginForm{
		Password:  r.PostForm.Get("password"),
		CSRFToken: r.PostForm.Get("csrf_token"),
		Redirect:  safeRedirect(r.PostForm.Get("redirect")),
	}

	if !h.csrf.ValidateToken(form.CSRFToken, id.SessionID) {
		snap, statusErr := h.service.Status(r.Context(), id)
		if statusErr != nil {
			h.logger.Error("failed to load gate status", slog.Any("error", statusErr))
			pkghttp.WriteInternalError(w, "internal server error")
			return
		}
		if snap.Status != gate.StatusBlocked {
			snap.Error = msgFormExpired
		}
		h.render(w, http.StatusForbidden, id, snap, form.Redirect)
		return
	}

	if err := ValidateRequest(form); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	snap, err := h.service.Submit(r.Context(), id, form.Password, h.requestMeta(r))
	switch {
	case err == nil:
		h.csrf.RevokeToken(form.CSRFToken)
		http.Redirect(w, r, form.Redirect, http.StatusSeeOther)
	case errors.Is(err, gate.ErrInvalidCredential),
		errors.Is(err, gate.ErrLockedOut),
		errors.Is(err, services.ErrBlankPassword):
		h.render(w, http.StatusOK, id, snap, form.Redirect)
	default:
		h.logger.Error("gate submission failed", slog.Any("error", err))
		pkghttp.WriteInternalError(w, "internal server error")
	}
}

// Status returns the gate state as JSON
func (h *GateHandler) Status(w http.ResponseWriter, r *http.Request) {
	id, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		pkghttp.WriteInternalError(w, "internal server error")
		return
	}

	snap, err := h.service.Status(r.Context(), id)
	if err != nil {
		h.logger.Error("failed to load gate status", slog.Any("error", err))
		pkghttp.WriteInternalError(w, "internal server error")
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, newStatusResponse(snap))
}

// Submit checks a password sent as JSON
func (h *GateHandler) Submit(w http.ResponseWriter, r *http.Request) {
	id, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		pkghttp.WriteInternalError(w, "internal server error")
		return
	}

	if mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type")); err != nil || mediaType != "application/json" {
		pkghttp.WriteBadRequest(w, "Content-Type must be application/json")
		return
	}

	var req SubmitRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxFormSize)).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}

	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	snap, err := h.service.Submit(r.Context(), id, req.Password, h.requestMeta(r))
	switch {
	case err == nil:
		pkghttp.WriteJSON(w, http.StatusOK, newStatusResponse(snap))
	case snap.Status == gate.StatusBlocked && (errors.Is(err, gate.ErrLockedOut) || errors.Is(err, gate.ErrInvalidCredential)):
		message := snap.Error
		if message == "" {
			message = "Blocked for: " + gate.FormatRemaining(snap.RemainingSeconds)
		}
		pkghttp.WriteLockedOut(w, snap.RemainingSeconds, message)
	case errors.Is(err, gate.ErrInvalidCredential):
		pkghttp.WriteError(w, http.StatusUnauthorized, "incorrect_password", snap.Error)
	case errors.Is(err, services.ErrBlankPassword):
		pkghttp.WriteBadRequest(w, "password is required")
	default:
		h.logger.Error("gate submission failed", slog.Any("error", err))
		pkghttp.WriteInternalError(w, "internal server error")
	}
}

// Protect only lets authenticated sessions reach next. Other HTML requests
// are sent to the gate page and API requests get 401.
func (h *GateHandler) Protect(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, ok := auth.IdentityFromContext(r.Context())
		if !ok {
			pkghttp.WriteInternalError(w, "internal server error")
			return
		}

		snap, err := h.service.Status(r.Context(), id)
		if err != nil {
			h.logger.Error("failed to load gate status", slog.Any("error", err))
			pkghttp.WriteInternalError(w, "internal server error")
			return
		}

		if snap.Authenticated() {
			next.ServeHTTP(w, r)
			return
		}

		if strings.HasPrefix(r.URL.Path, "/api/") {
			pkghttp.WriteUnauthorized(w, "dashboard password required")
			return
		}

		target := loginPath
		if dest := r.URL.RequestURI(); dest != "/" {
			target += "?redirect=" + url.QueryEscape(dest)
		}
		http.Redirect(w, r, target, http.StatusSeeOther)
	})
}

func (h *GateHandler) render(w http.ResponseWriter, status int, id models.Identity, snap gate.Snapshot, redirect string) {
	token, err := h.csrf.Token(id.SessionID)
	if err != nil {
		h.logger.Error("failed to issue csrf token", slog.Any("error", err))
		pkghttp.WriteInternalError(w, "internal server error")
		return
	}

	data := pageData{
		Title:     pageTitle,
		Prompt:    pagePrompt,
		View:      snap.View(),
		CSRFToken: token,
		Redirect:  redirect,
		Refresh:   snap.Status == gate.StatusBlocked,
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	if err := gatePage.Execute(w, data); err != nil {
		h.logger.Error("failed to render gate page", slog.Any("error", err))
	}
}

func (h *GateHandler) requestMeta(r *http.Request) services.RequestMeta {
	return services.RequestMeta{
		IPAddress: pkghttp.ExtractClientIP(r, h.ipConfig),
		UserAgent: r.UserAgent(),
	}
}

// safeRedirect only allows local absolute paths outside the gate itself
func safeRedirect(target string) string {
	if target == "" || !strings.HasPrefix(target, "/") ||
		strings.HasPrefix(target, "//") || strings.HasPrefix(target, "/\\") {
		return "/"
	}
	if u, err := url.Parse(target); err != nil || u.Host != "" || u.Scheme != "" || u.Path == loginPath {
		return "/"
	}
	return target
}
