package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/BradenHooton/dashgate/internal/gate"
	"github.com/BradenHooton/dashgate/internal/models"
	"github.com/BradenHooton/dashgate/internal/repositories"
	pkglogger "github.com/BradenHooton/dashgate/pkg/logger"
)

// ErrBlankPassword is returned when a submission carries no password. The
// gate is left untouched.
var ErrBlankPassword = errors.New("password is required")

// Delayer slows down rejected submissions
type Delayer interface {
	Wait(ctx context.Context) error
}

// GateServiceConfig holds lifetimes for live gates and session state
type GateServiceConfig struct {
	IdleTimeout time.Duration // live gate eviction after inactivity
	SessionTTL  time.Duration // session-scope rows purged after this age
}

// RequestMeta carries request details for audit records
type RequestMeta struct {
	IPAddress string
	UserAgent string
}

type liveGate struct {
	gate     *gate.Gate
	lastSeen time.Time
	renewed  time.Time // last rewrite of the session row while authenticated
}

// GateService keeps one live gate per (client, session) identity
type GateService struct {
	repo        repositories.StateRepository
	verifier    gate.Verifier
	delay       Delayer
	config      GateServiceConfig
	logger      *slog.Logger
	auditLogger *pkglogger.AuditLogger
	gateOpts    []gate.Option
	now         func() time.Time

	mu     sync.Mutex
	gates  map[models.Identity]*liveGate
	closed bool
}

// NewGateService creates a new GateService. delay may be nil.
func NewGateService(
	repo repositories.StateRepository,
	verifier gate.Verifier,
	delay Delayer,
	config GateServiceConfig,
	logger *slog.Logger,
	auditLogger *pkglogger.AuditLogger,
	gateOpts ...gate.Option,
) *GateService {
	return &GateService{
		repo:        repo,
		verifier:    verifier,
		delay:       delay,
		config:      config,
		logger:      logger,
		auditLogger: auditLogger,
		gateOpts:    append([]gate.Option{gate.WithLogger(logger)}, gateOpts...),
		now:         time.Now,
		gates:       make(map[models.Identity]*liveGate),
	}
}

// acquire returns the live gate for id, mounting it from persistence on
// first use, and keeps an authenticated session's row fresh.
func (s *GateService) acquire(ctx context.Context, id models.Identity) (*liveGate, error) {
	live, err := s.lookup(ctx, id)
	if err != nil {
		return nil, err
	}
	s.renewSession(ctx, id, live)
	return live, nil
}

// lookup finds or mounts the live gate for id. Mounting happens outside the
// registry lock; a concurrent mount that loses the race is closed.
func (s *GateService) lookup(ctx context.Context, id models.Identity) (*liveGate, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, fmt.Errorf("gate service closed: %w", models.ErrInternalServer)
	}
	if live, ok := s.gates[id]; ok {
		live.lastSeen = s.now()
		s.mu.Unlock()
		return live, nil
	}
	s.mu.Unlock()

	mounted := gate.New(ctx, s.verifier,
		repositories.NewScopedStore(s.repo, models.ScopeSession, id.SessionID),
		repositories.NewScopedStore(s.repo, models.ScopeDurable, id.ClientID),
		s.gateOpts...,
	)

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		mounted.Close()
		return nil, fmt.Errorf("gate service closed: %w", models.ErrInternalServer)
	}
	if live, ok := s.gates[id]; ok {
		mounted.Close()
		live.lastSeen = s.now()
		return live, nil
	}

	live := &liveGate{gate: mounted, lastSeen: s.now()}
	s.gates[id] = live
	return live, nil
}

// renewSession rewrites the session row of an authenticated gate at most once
// per half session TTL, so PurgeStaleSessions only drops sessions gone quiet.
func (s *GateService) renewSession(ctx context.Context, id models.Identity, live *liveGate) {
	if !live.gate.Snapshot().Authenticated() {
		return
	}

	now := s.now()
	s.mu.Lock()
	due := now.Sub(live.renewed) >= s.config.SessionTTL/2
	if due {
		live.renewed = now
	}
	s.mu.Unlock()
	if !due {
		return
	}

	err := s.repo.Put(ctx, &models.GateStateEntry{
		Scope:   models.ScopeSession,
		OwnerID: id.SessionID,
		Key:     gate.SessionKey,
		Value:   gate.SessionAuthenticated,
	})
	if err != nil {
		s.logger.Warn("failed to renew session state", "error", err)
	}
}

// Status returns the current gate state for id
func (s *GateService) Status(ctx context.Context, id models.Identity) (gate.Snapshot, error) {
	live, err := s.acquire(ctx, id)
	if err != nil {
		return gate.Snapshot{}, err
	}
	return live.gate.Snapshot(), nil
}

// Submit checks a password for id. Errors from the gate (gate.ErrLockedOut,
// gate.ErrInvalidCredential) are returned unwrapped alongside the snapshot.
func (s *GateService) Submit(ctx context.Context, id models.Identity, password string, meta RequestMeta) (gate.Snapshot, error) {
	live, err := s.acquire(ctx, id)
	if err != nil {
		return gate.Snapshot{}, err
	}
	g := live.gate

	before := g.Snapshot()
	if before.Authenticated() {
		return before, nil
	}

	if strings.TrimSpace(password) == "" {
		return before, ErrBlankPassword
	}

	snap, err := g.Submit(ctx, password)

	event := pkglogger.GateEvent{
		ClientID:     id.ClientID,
		IPAddress:    meta.IPAddress,
		UserAgent:    meta.UserAgent,
		FailureCount: snap.FailureCount,
	}

	switch {
	case err == nil:
		event.Type = pkglogger.EventGateGranted
		event.FailureCount = before.FailureCount
		s.mu.Lock()
		live.renewed = s.now()
		s.mu.Unlock()
	case errors.Is(err, gate.ErrLockedOut):
		event.Type = pkglogger.EventGateBlocked
	case errors.Is(err, gate.ErrInvalidCredential):
		event.Type = pkglogger.EventGateRejected
		if snap.Status == gate.StatusBlocked {
			event.Type = pkglogger.EventGateLockedOut
			event.Lockout = gate.Lockout(snap.FailureCount)
		}
	}
	s.auditLogger.LogGateEvent(ctx, event)

	if errors.Is(err, gate.ErrInvalidCredential) && s.delay != nil {
		// The attempt is already recorded; a cancelled wait changes nothing.
		_ = s.delay.Wait(ctx)
	}

	return snap, err
}

// EvictIdle closes and drops gates not used within the idle timeout
func (s *GateService) EvictIdle() int {
	cutoff := s.now().Add(-s.config.IdleTimeout)

	s.mu.Lock()
	var idle []*gate.Gate
	for id, live := range s.gates {
		if live.lastSeen.Before(cutoff) {
			idle = append(idle, live.gate)
			delete(s.gates, id)
		}
	}
	s.mu.Unlock()

	for _, g := range idle {
		g.Close()
	}
	return len(idle)
}

// PurgeStaleSessions deletes session-scope state older than the session TTL.
// Durable state is never purged.
func (s *GateService) PurgeStaleSessions(ctx context.Context) (int64, error) {
	deleted, err := s.repo.DeleteStale(ctx, models.ScopeSession, s.now().Add(-s.config.SessionTTL))
	if err != nil {
		return 0, fmt.Errorf("failed to purge session state: %w", err)
	}
	return deleted, nil
}

// LiveGates reports how many gates are currently mounted
func (s *GateService) LiveGates() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.gates)
}

// HealthCheck reports whether the backing store is reachable
func (s *GateService) HealthCheck(ctx context.Context) error {
	return s.repo.HealthCheck(ctx)
}

// Close tears down every live gate. Later calls fail.
func (s *GateService) Close() {
	s.mu.Lock()
	gates := s.gates
	s.gates = make(map[models.Identity]*liveGate)
	s.closed = true
	s.mu.Unlock()

	for _, live := range gates {
		live.gate.Close()
	}
}
