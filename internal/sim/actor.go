// Package sim is the formation playback core: actors moving in straight lines
// across the field, pairwise collision checks, and the session clock that
// orchestrates both.
package sim

import (
	"errors"
	"fmt"
	"math"

	"github.com/bandfield/marchsim/pkg/core"
	"github.com/golang/geo/r2"
)

// ErrInvalidActor is returned when an actor definition cannot be simulated.
var ErrInvalidActor = errors.New("invalid actor definition")

// arrivalEpsilon is the distance, in field units, under which an actor counts as at its end.
const arrivalEpsilon = 1e-9

// MovementFlag multiplies an actor's displacement each tick.
type MovementFlag int

const (
	Reverse MovementFlag = -1
	Stopped MovementFlag = 0
	Forward MovementFlag = 1
)

func (f MovementFlag) String() string {
	switch f {
	case Forward:
		return "forward"
	case Stopped:
		return "stopped"
	case Reverse:
		return "reverse"
	default:
		return fmt.Sprintf("MovementFlag(%d)", int(f))
	}
}

// Definition is the immutable description of one actor for a session.
type Definition struct {
	ID       string
	Name     string
	Category core.Category
	Start    core.Position2D
	End      core.Position2D
	Speed    float64
	Radius   float64
}

// State is the mutable runtime state of one actor.
type State struct {
	Position core.Position2D
	Flag     MovementFlag
}

// Actor pairs a definition with its runtime state.
type Actor struct {
	Def   Definition
	State State
}

// Validate returns an error wrapping ErrInvalidActor if d cannot be simulated.
func (d Definition) Validate() error {
	if d.ID == "" {
		return fmt.Errorf("%w: empty id", ErrInvalidActor)
	}
	if !d.Start.IsFinite() || !d.End.IsFinite() {
		return fmt.Errorf("%w: actor %q: non-finite coordinates", ErrInvalidActor, d.ID)
	}
	if !finite(d.Speed) || d.Speed <= 0 {
		return fmt.Errorf("%w: actor %q: speed must be positive, got %v", ErrInvalidActor, d.ID, d.Speed)
	}
	if !finite(d.Radius) || d.Radius <= 0 {
		return fmt.Errorf("%w: actor %q: radius must be positive, got %v", ErrInvalidActor, d.ID, d.Radius)
	}
	if d.Category != "" && !d.Category.Valid() {
		return fmt.Errorf("%w: actor %q: unknown category %q", ErrInvalidActor, d.ID, d.Category)
	}
	return nil
}

// Degenerate reports whether the actor has zero travel distance.
func (d Definition) Degenerate() bool {
	return d.travel().Norm() == 0
}

// Distance is the straight-line travel distance from start to end.
func (d Definition) Distance() float64 {
	return d.travel().Norm()
}

// Initial returns the state an actor starts a session with.
func (d Definition) Initial() State {
	if d.Degenerate() {
		return State{Position: d.Start, Flag: Stopped}
	}
	return State{Position: d.Start, Flag: Forward}
}

// Arrived reports whether s is at the actor's end within epsilon.
func (d Definition) Arrived(s State) bool {
	return point(d.End).Sub(point(s.Position)).Norm() <= arrivalEpsilon
}

// Progress is the fraction of the start->end line covered by s, in [0, 1].
func (d Definition) Progress(s State) float64 {
	dist := d.Distance()
	if dist == 0 {
		return 1
	}
	along := point(s.Position).Sub(point(d.Start)).Dot(d.travel()) / (dist * dist)
	return math.Max(0, math.Min(1, along))
}

// Info returns the recordable description of the actor.
func (d Definition) Info() core.ActorInfo {
	return core.ActorInfo{
		ID:       d.ID,
		Name:     d.Name,
		Category: d.Category,
		Start:    d.Start,
		End:      d.End,
		Speed:    d.Speed,
		Radius:   d.Radius,
	}
}

func (d Definition) travel() r2.Point {
	return point(d.End).Sub(point(d.Start))
}

func point(p core.Position2D) r2.Point {
	return r2.Point{X: p.X, Y: p.Y}
}

func position(p r2.Point) core.Position2D {
	return core.Position2D{X: p.X, Y: p.Y}
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
