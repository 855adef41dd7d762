// pkg/core/types.go
package core

import "math"

// Position2D is a point on the field, in field units (yards).
type Position2D struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// IsFinite reports whether both coordinates are finite numbers.
func (p Position2D) IsFinite() bool {
	return !math.IsNaN(p.X) && !math.IsInf(p.X, 0) && !math.IsNaN(p.Y) && !math.IsInf(p.Y, 0)
}

// Category is the instrument family of a band member.
type Category string

const (
	CategoryBrass      Category = "brass"
	CategoryWoodwind   Category = "woodwind"
	CategoryPercussion Category = "percussion"
)

// Categories lists every valid category in display order.
var Categories = []Category{CategoryBrass, CategoryWoodwind, CategoryPercussion}

// Valid reports whether c is one of the known categories.
func (c Category) Valid() bool {
	switch c {
	case CategoryBrass, CategoryWoodwind, CategoryPercussion:
		return true
	}
	return false
}

// Color returns the display color used by renderers for the category.
func (c Category) Color() string {
	switch c {
	case CategoryBrass:
		return "#FFD700"
	case CategoryWoodwind:
		return "#90EE90"
	case CategoryPercussion:
		return "#FF69B4"
	default:
		return "#FFFFFF"
	}
}
