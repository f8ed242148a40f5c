// Package gate implements the password gate in front of the dashboard: a
// small state machine that counts failed submissions, escalates timed
// lockouts, and remembers a successful login for the rest of the session.
package gate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Errors returned by Submit. Neither is fatal; callers turn them into the
// generic message carried by the snapshot.
var (
	ErrInvalidCredential = errors.New("incorrect password")
	ErrLockedOut         = errors.New("submissions are locked out")
)

// User-facing messages.
const (
	MsgIncorrectPassword = "Incorrect password"
	msgLockedOutFormat   = "Too many failed attempts. Please wait %d seconds."
)

// Status is the gate state.
type Status int

const (
	StatusLoading Status = iota
	StatusUnblocked
	StatusBlocked
	StatusAuthenticated
)

func (s Status) String() string {
	switch s {
	case StatusLoading:
		return "loading"
	case StatusUnblocked:
		return "unauthenticated"
	case StatusBlocked:
		return "blocked"
	case StatusAuthenticated:
		return "authenticated"
	default:
		return "unknown"
	}
}

// Snapshot is a point-in-time copy of the gate state.
type Snapshot struct {
	Status           Status
	FailureCount     int
	RemainingSeconds int
	Error            string
}

// Authenticated reports whether protected content may be shown.
func (s Snapshot) Authenticated() bool {
	return s.Status == StatusAuthenticated
}

// Verifier checks a submitted credential.
type Verifier interface {
	Verify(candidate string) bool
}

// VerifierFunc adapts a function to Verifier.
type VerifierFunc func(candidate string) bool

func (f VerifierFunc) Verify(candidate string) bool { return f(candidate) }

// Option configures a Gate.
type Option func(*Gate)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(g *Gate) { g.now = now }
}

// WithScheduler replaces the ticker used for the lockout countdown.
func WithScheduler(s Scheduler) Option {
	return func(g *Gate) { g.scheduler = s }
}

// WithLogger sets the logger used for store failures and transitions.
func WithLogger(logger *slog.Logger) Option {
	return func(g *Gate) { g.logger = logger }
}

// Gate owns the authentication and lockout state of one browsing session.
type Gate struct {
	verifier Verifier
	session  Store
	durable  Store

	now       func() time.Time
	scheduler Scheduler
	logger    *slog.Logger

	mu        sync.Mutex
	status    Status
	failures  int
	remaining int
	errMsg    string
	closed    bool

	stopTick func()
	tickGen  uint64
}

// New builds a gate and restores it from the session and durable stores.
// The returned gate is never in StatusLoading.
func New(ctx context.Context, verifier Verifier, session, durable Store, opts ...Option) *Gate {
	g := &Gate{
		verifier:  verifier,
		session:   session,
		durable:   durable,
		now:       time.Now,
		scheduler: TickerScheduler{},
		logger:    slog.Default(),
		status:    StatusLoading,
	}
	for _, opt := range opts {
		opt(g)
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	g.restore(ctx)

	return g
}

func (g *Gate) restore(ctx context.Context) {
	if value, ok := g.read(ctx, g.session, SessionKey); ok && value == SessionAuthenticated {
		g.status = StatusAuthenticated
		return
	}

	g.status = StatusUnblocked

	raw, ok := g.read(ctx, g.durable, AttemptsKey)
	if !ok {
		return
	}

	rec, err := DecodeAttemptRecord(raw)
	if err != nil {
		g.logger.Warn("ignoring malformed attempt record", slog.Any("error", err))
		return
	}

	g.failures = rec.FailureCount
	if rec.BlockedUntil == nil {
		return
	}
	if wait := rec.BlockedUntil.Sub(g.now()); wait > 0 {
		g.enterBlocked(ceilSeconds(wait))
	}
}

// Snapshot returns the current state.
func (g *Gate) Snapshot() Snapshot {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.snapshot()
}

// Submit checks a credential. It returns nil once the session is
// authenticated (including when it already was), ErrLockedOut without any
// state change while a lockout is running, and ErrInvalidCredential after
// recording a failure.
func (g *Gate) Submit(ctx context.Context, candidate string) (Snapshot, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	switch {
	case g.status == StatusAuthenticated:
		return g.snapshot(), nil
	case g.status == StatusBlocked:
		return g.snapshot(), ErrLockedOut
	case g.closed || g.status == StatusLoading:
		return g.snapshot(), ErrLockedOut
	}

	if g.verifier.Verify(candidate) {
		g.write(ctx, g.session, SessionKey, SessionAuthenticated)
		g.remove(ctx, g.durable, AttemptsKey)
		g.errMsg = ""
		g.failures = 0
		g.status = StatusAuthenticated
		return g.snapshot(), nil
	}

	g.failures++
	g.errMsg = MsgIncorrectPassword

	block := Lockout(g.failures)
	rec := AttemptRecord{FailureCount: g.failures}
	if block > 0 {
		until := g.now().Add(block)
		rec.BlockedUntil = &until
	}

	if raw, err := rec.Encode(); err != nil {
		g.logger.Error("failed to encode attempt record", slog.Any("error", err))
	} else {
		g.write(ctx, g.durable, AttemptsKey, raw)
	}

	if block > 0 {
		seconds := ceilSeconds(block)
		g.errMsg = fmt.Sprintf(msgLockedOutFormat, seconds)
		g.enterBlocked(seconds)
	}

	return g.snapshot(), ErrInvalidCredential
}

// Close tears the gate down and stops any running countdown. A closed gate
// rejects further submissions.
func (g *Gate) Close() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.closed = true
	g.stopCountdown()
}

func (g *Gate) snapshot() Snapshot {
	return Snapshot{
		Status:           g.status,
		FailureCount:     g.failures,
		RemainingSeconds: g.remaining,
		Error:            g.errMsg,
	}
}

// enterBlocked must be called with mu held.
func (g *Gate) enterBlocked(seconds int) {
	g.status = StatusBlocked
	g.remaining = seconds
	if g.closed {
		return
	}

	g.stopCountdown()
	gen := g.tickGen
	g.stopTick = g.scheduler.Every(time.Second, func() { g.tick(gen) })
}

// stopCountdown must be called with mu held. Bumping the generation makes any
// tick already in flight a no-op.
func (g *Gate) stopCountdown() {
	g.tickGen++
	if g.stopTick != nil {
		g.stopTick()
		g.stopTick = nil
	}
}

func (g *Gate) tick(gen uint64) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if gen != g.tickGen || g.closed || g.status != StatusBlocked {
		return
	}

	if g.remaining <= 1 {
		g.remaining = 0
		g.status = StatusUnblocked
		g.errMsg = ""
		g.stopCountdown()
		g.logger.Info("lockout expired", slog.Int("failed_attempts", g.failures))
		return
	}

	g.remaining--
}

// read fails open: a store error reads as an absent value.
func (g *Gate) read(ctx context.Context, store Store, key string) (string, bool) {
	value, ok, err := store.Get(ctx, key)
	if err != nil {
		g.logger.Error("failed to read gate state", slog.String("key", key), slog.Any("error", err))
		return "", false
	}
	return value, ok
}

func (g *Gate) write(ctx context.Context, store Store, key, value string) {
	if err := store.Set(ctx, key, value); err != nil {
		g.logger.Error("failed to write gate state", slog.String("key", key), slog.Any("error", err))
	}
}

func (g *Gate) remove(ctx context.Context, store Store, key string) {
	if err := store.Delete(ctx, key); err != nil {
		g.logger.Error("failed to delete gate state", slog.String("key", key), slog.Any("error", err))
	}
}
