package services

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/questkeep/questkeep/internal/models"
)

// DefaultGridSize is the side length of the castle grid in cells
const DefaultGridSize = 10

// Catalog is the immutable set of building types, indexed by id
type Catalog struct {
	types      []models.BuildingType
	footprints map[string]models.BuildingType
}

// NewCatalog indexes types by id. Ids must be unique and footprints at least 1x1.
func NewCatalog(types []models.BuildingType) (*Catalog, error) {
	c := &Catalog{
		types:      make([]models.BuildingType, len(types)),
		footprints: make(map[string]models.BuildingType, len(types)),
	}
	copy(c.types, types)

	for _, bt := range types {
		if _, dup := c.footprints[bt.ID]; dup {
			return nil, fmt.Errorf("duplicate building type %q", bt.ID)
		}
		if bt.Width < 1 || bt.Height < 1 {
			return nil, fmt.Errorf("building type %q must be at least 1x1", bt.ID)
		}
		c.footprints[bt.ID] = bt
	}
	return c, nil
}

// Lookup returns the building type with the given id
func (c *Catalog) Lookup(id string) (models.BuildingType, bool) {
	bt, ok := c.footprints[id]
	return bt, ok
}

// Types returns the catalog in its original order
func (c *Catalog) Types() []models.BuildingType {
	out := make([]models.BuildingType, len(c.types))
	copy(out, c.types)
	return out
}

// Grid validates placements on a square grid of Size x Size cells. It is a pure
// validator and never mutates the layouts it is given.
type Grid struct {
	Size    int
	catalog *Catalog
}

// NewGrid creates a new Grid
func NewGrid(size int, catalog *Catalog) *Grid {
	return &Grid{Size: size, catalog: catalog}
}

// Catalog returns the grid's building catalog
func (g *Grid) Catalog() *Catalog {
	return g.catalog
}

// Validate explains why a placement is illegal, or returns nil. Checks run in
// order: building type, coordinates, bounds, overlap.
func (g *Grid) Validate(placed []models.PlacedBuilding, buildingTypeID string, x, y int) error {
	bt, ok := g.catalog.Lookup(buildingTypeID)
	if !ok {
		return models.ErrUnknownBuildingType
	}

	if x < 0 || y < 0 {
		return models.ErrInvalidCoordinates
	}
	if x+bt.Width > g.Size || y+bt.Height > g.Size {
		return models.ErrOutOfBounds
	}

	candidate := models.Rect{X: x, Y: y, W: bt.Width, H: bt.Height}
	for _, pb := range placed {
		existing, ok := g.footprint(pb)
		if !ok {
			continue
		}
		if candidate.Overlaps(existing) {
			return models.ErrOverlap
		}
	}
	return nil
}

// CanPlace reports whether buildingTypeID fits at (x, y)
func (g *Grid) CanPlace(placed []models.PlacedBuilding, buildingTypeID string, x, y int) bool {
	return g.Validate(placed, buildingTypeID, x, y) == nil
}

// Place re-validates and returns a new layout with the building appended at level 1.
// The input slice is left untouched.
func (g *Grid) Place(placed []models.PlacedBuilding, buildingTypeID string, x, y int, now time.Time) ([]models.PlacedBuilding, models.PlacedBuilding, error) {
	if err := g.Validate(placed, buildingTypeID, x, y); err != nil {
		return nil, models.PlacedBuilding{}, err
	}

	building := models.PlacedBuilding{
		ID:             uuid.New().String(),
		BuildingTypeID: buildingTypeID,
		X:              x,
		Y:              y,
		Level:          1,
		PlacedAt:       now,
	}

	next := make([]models.PlacedBuilding, len(placed), len(placed)+1)
	copy(next, placed)
	return append(next, building), building, nil
}

// footprint is false for buildings whose type is no longer in the catalog
func (g *Grid) footprint(pb models.PlacedBuilding) (models.Rect, bool) {
	bt, ok := g.catalog.Lookup(pb.BuildingTypeID)
	if !ok {
		return models.Rect{}, false
	}
	return models.Rect{X: pb.X, Y: pb.Y, W: bt.Width, H: bt.Height}, true
}
