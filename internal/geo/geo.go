package geo

import (
	"errors"
	"math"
	"strconv"
	"strings"

	"github.com/bandfield/marchsim/pkg/core"
	geom "github.com/peterstace/simplefeatures/geom"
)

// Field positions are stored as plain XY points in field units. The field is a
// local planar grid, so no SRID transform is applied; geometry is written as WKB
// and scans back identically on both postgres and sqlite.

// ErrInvalidCoordinates is returned when the coordinates are invalid
var ErrInvalidCoordinates = errors.New("invalid coordinates provided")

// PositionFromString parses an "x,y" string into a core.Position2D.
// Surrounding whitespace around either component is ignored.
func PositionFromString(coords string) (core.Position2D, error) {
	parts := strings.Split(coords, ",")
	if len(parts) != 2 {
		return core.Position2D{}, ErrInvalidCoordinates
	}
	x, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return core.Position2D{}, ErrInvalidCoordinates
	}
	y, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return core.Position2D{}, ErrInvalidCoordinates
	}
	p := core.Position2D{X: x, Y: y}
	if !p.IsFinite() {
		return core.Position2D{}, ErrInvalidCoordinates
	}
	return p, nil
}

// PointFromPosition converts a field position to a geom.Point.
func PointFromPosition(p core.Position2D) geom.Point {
	return geom.NewPoint(geom.Coordinates{XY: geom.XY{X: p.X, Y: p.Y}})
}

// PositionFromPoint converts a geom.Point back to a field position.
// An empty point yields the origin.
func PositionFromPoint(p geom.Point) core.Position2D {
	coords, ok := p.Coordinates()
	if !ok {
		return core.Position2D{}
	}
	return core.Position2D{X: coords.X, Y: coords.Y}
}

// SegmentToLineString builds the straight start->end path of an actor.
func SegmentToLineString(start, end core.Position2D) geom.LineString {
	seq := geom.NewSequence([]float64{start.X, start.Y, end.X, end.Y}, geom.DimXY)
	return geom.NewLineString(seq)
}

// LineStringToSegment returns the first and last vertex of a path.
func LineStringToSegment(ls geom.LineString) (start, end core.Position2D, ok bool) {
	seq := ls.Coordinates()
	n := seq.Length()
	if n < 2 {
		return core.Position2D{}, core.Position2D{}, false
	}
	first := seq.GetXY(0)
	last := seq.GetXY(n - 1)
	return core.Position2D{X: first.X, Y: first.Y}, core.Position2D{X: last.X, Y: last.Y}, true
}

// Mod is a floored modulo: the result always has the sign of n.
// Mod(-1, 4) == 3, unlike math.Mod which returns -1.
func Mod(a, n float64) float64 {
	return math.Mod(math.Mod(a, n)+n, n)
}
