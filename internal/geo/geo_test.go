package geo

import (
	"errors"
	"math"
	"testing"

	"github.com/bandfield/marchsim/pkg/core"
)

func TestPositionFromString_Valid(t *testing.T) {
	p, err := PositionFromString("12.5, 30.25")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.X != 12.5 {
		t.Errorf("expected X=12.5, got %f", p.X)
	}
	if p.Y != 30.25 {
		t.Errorf("expected Y=30.25, got %f", p.Y)
	}
}

func TestPositionFromString_Invalid(t *testing.T) {
	tests := []string{
		"",
		"1",
		"1,2,3",
		"abc,2",
		"1,xyz",
		"NaN,1",
		"1,+Inf",
	}
	for _, in := range tests {
		t.Run(in, func(t *testing.T) {
			_, err := PositionFromString(in)
			if !errors.Is(err, ErrInvalidCoordinates) {
				t.Errorf("expected ErrInvalidCoordinates for %q, got %v", in, err)
			}
		})
	}
}

func TestPointPositionRoundTrip(t *testing.T) {
	in := core.Position2D{X: 42.125, Y: 7.5}
	out := PositionFromPoint(PointFromPosition(in))
	if out != in {
		t.Errorf("expected %+v, got %+v", in, out)
	}
}

func TestSegmentLineString(t *testing.T) {
	start := core.Position2D{X: 10, Y: 10}
	end := core.Position2D{X: 20, Y: 25}

	ls := SegmentToLineString(start, end)
	if ls.Coordinates().Length() != 2 {
		t.Fatalf("expected 2 vertices, got %d", ls.Coordinates().Length())
	}

	gotStart, gotEnd, ok := LineStringToSegment(ls)
	if !ok {
		t.Fatal("expected segment")
	}
	if gotStart != start || gotEnd != end {
		t.Errorf("expected %+v -> %+v, got %+v -> %+v", start, end, gotStart, gotEnd)
	}
}

func TestMod(t *testing.T) {
	tests := []struct {
		a, n, want float64
	}{
		{5, 4, 1},
		{-1, 4, 3},
		{-4, 4, 0},
		{0, 4, 0},
		{8.5, 4, 0.5},
		{-0.5, 2, 1.5},
	}
	for _, tt := range tests {
		got := Mod(tt.a, tt.n)
		if math.Abs(got-tt.want) > 1e-12 {
			t.Errorf("Mod(%v, %v) = %v, want %v", tt.a, tt.n, got, tt.want)
		}
	}
}
