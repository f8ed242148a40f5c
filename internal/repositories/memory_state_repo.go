package repositories

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/BradenHooton/dashgate/internal/models"
)

type stateKey struct {
	scope   models.StateScope
	ownerID string
	key     string
}

// MemoryStateRepository keeps gate state in process memory. Durable entries
// only last as long as the process.
type MemoryStateRepository struct {
	mu      sync.RWMutex
	entries map[stateKey]models.GateStateEntry
	now     func() time.Time
}

// NewMemoryStateRepository creates an empty in-memory repository
func NewMemoryStateRepository() *MemoryStateRepository {
	return NewMemoryStateRepositoryWithClock(time.Now)
}

// NewMemoryStateRepositoryWithClock stamps entries using now instead of time.Now
func NewMemoryStateRepositoryWithClock(now func() time.Time) *MemoryStateRepository {
	return &MemoryStateRepository{
		entries: make(map[stateKey]models.GateStateEntry),
		now:     now,
	}
}

// Get returns a copy of the entry or models.ErrNotFound
func (r *MemoryStateRepository) Get(ctx context.Context, scope models.StateScope, ownerID, key string) (*models.GateStateEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entry, ok := r.entries[stateKey{scope, ownerID, key}]
	if !ok {
		return nil, models.ErrNotFound
	}
	return &entry, nil
}

// Put inserts or replaces an entry and stamps UpdatedAt
func (r *MemoryStateRepository) Put(ctx context.Context, entry *models.GateStateEntry) error {
	if !entry.Scope.Valid() {
		return fmt.Errorf("invalid scope %q: %w", entry.Scope, models.ErrBadRequest)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	stored := *entry
	stored.UpdatedAt = r.now()
	r.entries[stateKey{entry.Scope, entry.OwnerID, entry.Key}] = stored
	return nil
}

// Delete removes an entry; deleting a missing entry is not an error
func (r *MemoryStateRepository) Delete(ctx context.Context, scope models.StateScope, ownerID, key string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.entries, stateKey{scope, ownerID, key})
	return nil
}

// DeleteStale removes entries of a scope last written before the cutoff
func (r *MemoryStateRepository) DeleteStale(ctx context.Context, scope models.StateScope, before time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var deleted int64
	for k, entry := range r.entries {
		if k.scope == scope && entry.UpdatedAt.Before(before) {
			delete(r.entries, k)
			deleted++
		}
	}
	return deleted, nil
}

func (r *MemoryStateRepository) HealthCheck(ctx context.Context) error {
	return nil
}
