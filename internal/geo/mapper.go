package geo

import (
	"fmt"

	"github.com/bandfield/marchsim/pkg/core"
)

// DefaultField is a football field in yards, end line to end line by sideline to sideline.
var DefaultField = core.Size{Width: 100, Height: 54}

// DefaultSurface is the pixel size of the standard playback board.
var DefaultSurface = core.Size{Width: 800, Height: 432}

// ToDisplay maps a field point onto a display surface by linear scaling.
func ToDisplay(p core.Position2D, field, surface core.Size) core.Position2D {
	return core.Position2D{
		X: p.X / field.Width * surface.Width,
		Y: p.Y / field.Height * surface.Height,
	}
}

// ToField is the exact inverse of ToDisplay.
func ToField(p core.Position2D, field, surface core.Size) core.Position2D {
	return core.Position2D{
		X: p.X / surface.Width * field.Width,
		Y: p.Y / surface.Height * field.Height,
	}
}

// Mapper binds a field and a surface size together.
type Mapper struct {
	Field   core.Size
	Surface core.Size
}

// NewMapper validates both sizes and returns a Mapper.
func NewMapper(field, surface core.Size) (Mapper, error) {
	if err := validSize("field", field); err != nil {
		return Mapper{}, err
	}
	if err := validSize("surface", surface); err != nil {
		return Mapper{}, err
	}
	return Mapper{Field: field, Surface: surface}, nil
}

// ToDisplay maps a field point to surface pixels.
func (m Mapper) ToDisplay(p core.Position2D) core.Position2D {
	return ToDisplay(p, m.Field, m.Surface)
}

// ToField maps surface pixels to a field point.
func (m Mapper) ToField(p core.Position2D) core.Position2D {
	return ToField(p, m.Field, m.Surface)
}

// Scale returns the pixels-per-field-unit factor on each axis.
func (m Mapper) Scale() (sx, sy float64) {
	return m.Surface.Width / m.Field.Width, m.Surface.Height / m.Field.Height
}

func validSize(name string, s core.Size) error {
	if !(s.Width > 0) || !(s.Height > 0) {
		return fmt.Errorf("%s size must be positive, got %gx%g", name, s.Width, s.Height)
	}
	p := core.Position2D{X: s.Width, Y: s.Height}
	if !p.IsFinite() {
		return fmt.Errorf("%s size must be finite", name)
	}
	return nil
}
