package repositories

import (
	"context"
	"errors"

	"github.com/questkeep/questkeep/internal/models"
)

// LayoutRepository persists the placed buildings of each castle session
type LayoutRepository struct {
	store KVStore
}

// NewLayoutRepository creates a new LayoutRepository
func NewLayoutRepository(store KVStore) *LayoutRepository {
	return &LayoutRepository{store: store}
}

// Get returns the session's buildings; an unknown session has an empty layout
func (r *LayoutRepository) Get(ctx context.Context, sessionID string) ([]models.PlacedBuilding, error) {
	var placed []models.PlacedBuilding
	if err := loadJSON(ctx, r.store, layoutKey(sessionID), &placed); err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return []models.PlacedBuilding{}, nil
		}
		return nil, err
	}
	if placed == nil {
		placed = []models.PlacedBuilding{}
	}
	return placed, nil
}

// Save replaces the session's layout
func (r *LayoutRepository) Save(ctx context.Context, sessionID string, placed []models.PlacedBuilding) error {
	return storeJSON(ctx, r.store, layoutKey(sessionID), placed, 0)
}
