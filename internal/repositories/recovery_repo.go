package repositories

import (
	"context"

	"github.com/questkeep/questkeep/internal/models"
)

// RecoveryRepository persists encrypted PIN recovery secrets
type RecoveryRepository struct {
	store KVStore
}

// NewRecoveryRepository creates a new RecoveryRepository
func NewRecoveryRepository(store KVStore) *RecoveryRepository {
	return &RecoveryRepository{store: store}
}

// Get returns the recovery secret, or models.ErrNotFound
func (r *RecoveryRepository) Get(ctx context.Context, userID string) (*models.RecoverySecret, error) {
	var secret models.RecoverySecret
	if err := loadJSON(ctx, r.store, recoveryKey(userID), &secret); err != nil {
		return nil, err
	}
	return &secret, nil
}

// Save replaces the recovery secret
func (r *RecoveryRepository) Save(ctx context.Context, secret *models.RecoverySecret) error {
	return storeJSON(ctx, r.store, recoveryKey(secret.UserID), secret, 0)
}
