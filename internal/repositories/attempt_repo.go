package repositories

import (
	"context"
	"time"

	"github.com/questkeep/questkeep/internal/models"
)

// AttemptRepository persists attempt records, for PIN entry or recovery codes
type AttemptRepository struct {
	store KVStore
	key   func(userID string) string
}

// NewAttemptRepository creates the repository for PIN entry attempts
func NewAttemptRepository(store KVStore) *AttemptRepository {
	return &AttemptRepository{store: store, key: AttemptKey}
}

// NewRecoveryAttemptRepository creates the repository for failed recovery codes
func NewRecoveryAttemptRepository(store KVStore) *AttemptRepository {
	return &AttemptRepository{store: store, key: RecoveryAttemptKey}
}

// Get returns the attempt record for userID, or models.ErrNotFound when none exists
func (r *AttemptRepository) Get(ctx context.Context, userID string) (*models.AttemptRecord, error) {
	var record models.AttemptRecord
	if err := loadJSON(ctx, r.store, r.key(userID), &record); err != nil {
		return nil, err
	}
	return &record, nil
}

// Save writes the record. ttl zero keeps it until the next reset.
func (r *AttemptRepository) Save(ctx context.Context, record *models.AttemptRecord, ttl time.Duration) error {
	return storeJSON(ctx, r.store, r.key(record.UserID), record, ttl)
}

// Delete removes the record; a missing record is not an error
func (r *AttemptRepository) Delete(ctx context.Context, userID string) error {
	return r.store.Remove(ctx, r.key(userID))
}
