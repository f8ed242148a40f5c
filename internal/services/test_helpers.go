package services

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/BradenHooton/dashgate/internal/gate"
	"github.com/BradenHooton/dashgate/internal/repositories"
	pkglogger "github.com/BradenHooton/dashgate/pkg/logger"
)

// idleScheduler never fires; it records how many countdowns are running
type idleScheduler struct {
	mu     sync.Mutex
	active int
}

func (s *idleScheduler) Every(interval time.Duration, fn func()) func() {
	s.mu.Lock()
	s.active++
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			s.active--
			s.mu.Unlock()
		})
	}
}

func (s *idleScheduler) running() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// countingDelayer records Wait calls without sleeping
type countingDelayer struct {
	mu    sync.Mutex
	calls int
}

func (d *countingDelayer) Wait(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls++
	return nil
}

func (d *countingDelayer) count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.calls
}

type serviceFixture struct {
	repo      *repositories.MemoryStateRepository
	scheduler *idleScheduler
	delay     *countingDelayer
	now       time.Time
	service   *GateService
}

func newServiceFixture() *serviceFixture {
	f := &serviceFixture{
		scheduler: &idleScheduler{},
		delay:     &countingDelayer{},
		now:       time.UnixMilli(1_700_000_000_000),
	}
	f.repo = repositories.NewMemoryStateRepositoryWithClock(f.clock)
	f.service = f.newService()

	return f
}

func (f *serviceFixture) clock() time.Time { return f.now }

// newService builds a service over the fixture's repository, as a restarted
// process would.
func (f *serviceFixture) newService() *GateService {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	service := NewGateService(
		f.repo,
		gate.VerifierFunc(func(candidate string) bool { return candidate == "admin123" }),
		f.delay,
		GateServiceConfig{IdleTimeout: 30 * time.Minute, SessionTTL: 12 * time.Hour},
		logger,
		pkglogger.NewAuditLogger(logger),
		gate.WithClock(f.clock),
		gate.WithScheduler(f.scheduler),
	)
	service.now = f.clock

	return service
}
