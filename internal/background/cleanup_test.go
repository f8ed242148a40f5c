package background_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/BradenHooton/dashgate/internal/background"
	"github.com/stretchr/testify/assert"
)

type fakeGates struct {
	evictions atomic.Int32
	purges    atomic.Int32
	purgeErr  error
}

func (f *fakeGates) EvictIdle() int {
	f.evictions.Add(1)
	return 1
}

func (f *fakeGates) PurgeStaleSessions(ctx context.Context) (int64, error) {
	f.purges.Add(1)
	if _, ok := ctx.Deadline(); !ok {
		return 0, errors.New("expected deadline")
	}
	return 2, f.purgeErr
}

type fakeTokens struct {
	sweeps atomic.Int32
}

func (f *fakeTokens) Sweep() int {
	f.sweeps.Add(1)
	return 0
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestCleanupManager_RunOnce(t *testing.T) {
	gates, tokens := &fakeGates{}, &fakeTokens{}
	cm := background.NewCleanupManager(gates, tokens, discardLogger(), time.Hour)

	cm.RunOnce(context.Background())

	assert.Equal(t, int32(1), gates.evictions.Load())
	assert.Equal(t, int32(1), gates.purges.Load())
	assert.Equal(t, int32(1), tokens.sweeps.Load())
}

func TestCleanupManager_RunOnceSurvivesPurgeError(t *testing.T) {
	gates := &fakeGates{purgeErr: errors.New("db down")}
	tokens := &fakeTokens{}
	cm := background.NewCleanupManager(gates, tokens, discardLogger(), time.Hour)

	assert.NotPanics(t, func() { cm.RunOnce(context.Background()) })
	assert.Equal(t, int32(1), tokens.sweeps.Load())
}

func TestCleanupManager_TicksUntilStopped(t *testing.T) {
	gates, tokens := &fakeGates{}, &fakeTokens{}
	cm := background.NewCleanupManager(gates, tokens, discardLogger(), 5*time.Millisecond)

	done := make(chan struct{})
	go func() {
		cm.Start(context.Background())
		close(done)
	}()

	assert.Eventually(t, func() bool { return gates.evictions.Load() >= 2 }, time.Second, time.Millisecond)

	cm.Stop()
	cm.Stop()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("cleanup manager did not stop")
	}
}

func TestCleanupManager_StopsOnContextCancel(t *testing.T) {
	cm := background.NewCleanupManager(&fakeGates{}, &fakeTokens{}, discardLogger(), time.Hour)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		cm.Start(ctx)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("cleanup manager ignored context cancellation")
	}
}

func TestCleanupManager_NonPositiveIntervalFallsBackToDefault(t *testing.T) {
	cm := background.NewCleanupManager(&fakeGates{}, &fakeTokens{}, discardLogger(), 0)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		defer close(done)
		assert.NotPanics(t, func() { cm.Start(ctx) })
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("cleanup manager did not stop")
	}
}
