package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/BradenHooton/dashgate/internal/database"
	"github.com/BradenHooton/dashgate/internal/models"
)

// GateStateRepository handles database operations for gate state
type GateStateRepository struct {
	db *database.DB
}

// NewGateStateRepository creates a new GateStateRepository
func NewGateStateRepository(db *database.DB) *GateStateRepository {
	return &GateStateRepository{db: db}
}

// Get loads a single entry
func (r *GateStateRepository) Get(ctx context.Context, scope models.StateScope, ownerID, key string) (*models.GateStateEntry, error) {
	query := `
		SELECT scope, owner_id, key, value, updated_at FROM gate_state
		WHERE scope = $1 AND owner_id = $2 AND key = $3
	`

	var entry models.GateStateEntry
	var scopeValue string
	err := r.db.Pool.QueryRow(ctx, query, string(scope), ownerID, key).Scan(
		&scopeValue,
		&entry.OwnerID,
		&entry.Key,
		&entry.Value,
		&entry.UpdatedAt,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}

	entry.Scope = models.StateScope(scopeValue)
	return &entry, nil
}

// Put upserts an entry
func (r *GateStateRepository) Put(ctx context.Context, entry *models.GateStateEntry) error {
	if !entry.Scope.Valid() {
		return fmt.Errorf("invalid scope %q: %w", entry.Scope, models.ErrBadRequest)
	}

	query := `
		INSERT INTO gate_state (scope, owner_id, key, value, updated_at)
		VALUES ($1, $2, $3, $4, CURRENT_TIMESTAMP)
		ON CONFLICT (scope, owner_id, key)
		DO UPDATE SET value = EXCLUDED.value, updated_at = EXCLUDED.updated_at
	`

	_, err := r.db.Pool.Exec(ctx, query, string(entry.Scope), entry.OwnerID, entry.Key, entry.Value)
	return database.MapPostgresError(err)
}

// Delete removes an entry if present
func (r *GateStateRepository) Delete(ctx context.Context, scope models.StateScope, ownerID, key string) error {
	query := `DELETE FROM gate_state WHERE scope = $1 AND owner_id = $2 AND key = $3`

	_, err := r.db.Pool.Exec(ctx, query, string(scope), ownerID, key)
	return database.MapPostgresError(err)
}

// DeleteStale removes entries of a scope last written before the cutoff
func (r *GateStateRepository) DeleteStale(ctx context.Context, scope models.StateScope, before time.Time) (int64, error) {
	query := `DELETE FROM gate_state WHERE scope = $1 AND updated_at < $2`

	tag, err := r.db.Pool.Exec(ctx, query, string(scope), before)
	if err != nil {
		return 0, database.MapPostgresError(err)
	}
	return tag.RowsAffected(), nil
}

func (r *GateStateRepository) HealthCheck(ctx context.Context) error {
	return r.db.HealthCheck(ctx)
}
