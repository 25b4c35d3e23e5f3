package models

import "time"

// BuildingType is an immutable catalog entry describing a placeable footprint
type BuildingType struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
	Cost   int    `json:"cost"`
}

// PlacedBuilding is a BuildingType anchored at grid coordinates
type PlacedBuilding struct {
	ID             string    `json:"id"`
	BuildingTypeID string    `json:"building_type_id"`
	X              int       `json:"x"`
	Y              int       `json:"y"`
	Level          int       `json:"level"`
	PlacedAt       time.Time `json:"placed_at"`
}

// Rect is an axis-aligned footprint in grid cells
type Rect struct {
	X, Y, W, H int
}

// Overlaps reports whether two rectangles share a cell.
// Edge or corner contact is not an overlap.
func (r Rect) Overlaps(o Rect) bool {
	return r.X < o.X+o.W && r.X+r.W > o.X && r.Y < o.Y+o.H && r.Y+r.H > o.Y
}
