package repositories

import (
	"context"
	"errors"

	"github.com/questkeep/questkeep/internal/models"
)

// CredentialRepository persists PIN credentials
type CredentialRepository struct {
	store KVStore
}

// NewCredentialRepository creates a new CredentialRepository
func NewCredentialRepository(store KVStore) *CredentialRepository {
	return &CredentialRepository{store: store}
}

// Get returns the credential, or models.ErrCredentialNotFound
func (r *CredentialRepository) Get(ctx context.Context, userID string) (*models.Credential, error) {
	var cred models.Credential
	if err := loadJSON(ctx, r.store, credentialKey(userID), &cred); err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, models.ErrCredentialNotFound
		}
		return nil, err
	}
	return &cred, nil
}

// Create stores a first credential and fails with models.ErrConflict if one exists.
// Callers serialise per user; the check is not atomic across processes.
func (r *CredentialRepository) Create(ctx context.Context, cred *models.Credential) error {
	_, err := r.Get(ctx, cred.UserID)
	switch {
	case err == nil:
		return models.ErrConflict
	case !errors.Is(err, models.ErrCredentialNotFound):
		return err
	}
	return r.Save(ctx, cred)
}

// Save replaces the credential
func (r *CredentialRepository) Save(ctx context.Context, cred *models.Credential) error {
	return storeJSON(ctx, r.store, credentialKey(cred.UserID), cred, 0)
}
