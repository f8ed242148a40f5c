package repositories

import (
	"context"
	"errors"
	"time"

	"github.com/BradenHooton/dashgate/internal/models"
)

// StateRepository persists gate state entries for both scopes.
type StateRepository interface {
	Get(ctx context.Context, scope models.StateScope, ownerID, key string) (*models.GateStateEntry, error)
	Put(ctx context.Context, entry *models.GateStateEntry) error
	Delete(ctx context.Context, scope models.StateScope, ownerID, key string) error
	DeleteStale(ctx context.Context, scope models.StateScope, before time.Time) (int64, error)
	HealthCheck(ctx context.Context) error
}

// ScopedStore exposes one owner's entries in one scope as a plain key/value
// store, which is the shape the gate consumes.
type ScopedStore struct {
	repo    StateRepository
	scope   models.StateScope
	ownerID string
}

// NewScopedStore binds a repository to a scope and owner.
func NewScopedStore(repo StateRepository, scope models.StateScope, ownerID string) *ScopedStore {
	return &ScopedStore{repo: repo, scope: scope, ownerID: ownerID}
}

func (s *ScopedStore) Get(ctx context.Context, key string) (string, bool, error) {
	entry, err := s.repo.Get(ctx, s.scope, s.ownerID, key)
	if errors.Is(err, models.ErrNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return entry.Value, true, nil
}

func (s *ScopedStore) Set(ctx context.Context, key, value string) error {
	return s.repo.Put(ctx, &models.GateStateEntry{
		Scope:   s.scope,
		OwnerID: s.ownerID,
		Key:     key,
		Value:   value,
	})
}

func (s *ScopedStore) Delete(ctx context.Context, key string) error {
	return s.repo.Delete(ctx, s.scope, s.ownerID, key)
}
