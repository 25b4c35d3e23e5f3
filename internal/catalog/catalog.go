// Package catalog loads the castle building catalog.
package catalog

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"

	"github.com/questkeep/questkeep/internal/models"
)

//go:embed buildings.json
var defaultCatalog []byte

// Load returns the building types from path, or the embedded catalog when path is empty
func Load(path string) ([]models.BuildingType, error) {
	data := defaultCatalog
	if path != "" {
		var err error
		data, err = os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read catalog %s: %w", path, err)
		}
	}
	return Parse(data)
}

// Parse decodes and validates a JSON array of building types
func Parse(data []byte) ([]models.BuildingType, error) {
	var types []models.BuildingType
	if err := json.Unmarshal(data, &types); err != nil {
		return nil, fmt.Errorf("invalid catalog: %w", err)
	}
	if len(types) == 0 {
		return nil, fmt.Errorf("invalid catalog: no building types")
	}

	seen := make(map[string]bool, len(types))
	for _, bt := range types {
		switch {
		case bt.ID == "":
			return nil, fmt.Errorf("invalid catalog: building type without id")
		case seen[bt.ID]:
			return nil, fmt.Errorf("invalid catalog: duplicate id %q", bt.ID)
		case bt.Width < 1 || bt.Height < 1:
			return nil, fmt.Errorf("invalid catalog: %q must be at least 1x1", bt.ID)
		case bt.Cost < 0:
			return nil, fmt.Errorf("invalid catalog: %q has negative cost", bt.ID)
		}
		seen[bt.ID] = true
	}
	return types, nil
}
