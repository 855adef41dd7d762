package sim

import (
	"fmt"
	"math"
	"time"

	"github.com/bandfield/marchsim/internal/geo"
	"github.com/bandfield/marchsim/pkg/core"
)

// HaltReason explains why a running session stopped on its own.
type HaltReason string

const (
	HaltNone       HaltReason = ""
	HaltCollision  HaltReason = "collision"
	HaltAllStopped HaltReason = "allStopped"
)

// TickResult describes what a single Tick did.
type TickResult struct {
	Advanced  bool
	Dt        float64
	Halted    bool
	Reason    HaltReason
	Complete  bool
	Collision *Collision
}

// Session is one playback of a formation.
//
// A Session is not safe for concurrent use. All calls must come from the
// goroutine that owns it.
type Session struct {
	actors []Actor
	index  map[string]int
	mapper geo.Mapper

	elapsed   float64
	ticks     uint64
	running   bool
	halt      HaltReason
	complete  bool
	collision *Collision
	debug     bool

	last    time.Duration
	hasLast bool
}

// NewSession validates defs and builds a session in the Idle state.
// No session is returned if any definition is invalid or ids repeat.
func NewSession(defs []Definition, mapper geo.Mapper) (*Session, error) {
	if _, err := geo.NewMapper(mapper.Field, mapper.Surface); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidActor, err)
	}
	s := &Session{
		actors: make([]Actor, len(defs)),
		index:  make(map[string]int, len(defs)),
		mapper: mapper,
	}
	for i, d := range defs {
		if err := d.Validate(); err != nil {
			return nil, err
		}
		if _, dup := s.index[d.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate id %q", ErrInvalidActor, d.ID)
		}
		s.index[d.ID] = i
		s.actors[i] = Actor{Def: d, State: d.Initial()}
	}
	return s, nil
}

// Play starts or resumes the clock. Every actor not yet at its end is set
// forward, including actors stopped by ToggleActor. It reports whether the
// session was idle.
func (s *Session) Play() bool {
	if s.running {
		return false
	}
	for i := range s.actors {
		a := &s.actors[i]
		if a.Def.Degenerate() || a.Def.Arrived(a.State) {
			a.State.Flag = Stopped
			continue
		}
		a.State.Flag = Forward
	}
	s.running = true
	s.halt = HaltNone
	s.complete = false
	s.collision = nil
	s.hasLast = false
	return true
}

// Pause stops the clock without touching movement flags.
func (s *Session) Pause() bool {
	if !s.running {
		return false
	}
	s.running = false
	return true
}

// Reset returns every actor to its start and clears the clock.
func (s *Session) Reset() {
	for i := range s.actors {
		s.actors[i].State = s.actors[i].Def.Initial()
	}
	s.elapsed = 0
	s.ticks = 0
	s.running = false
	s.halt = HaltNone
	s.complete = false
	s.collision = nil
	s.hasLast = false
}

// ToggleActor flips an actor between forward and stopped. It is ignored
// while running, for unknown ids and for actors already at their end, which
// stay stopped.
func (s *Session) ToggleActor(id string) bool {
	if s.running {
		return false
	}
	i, ok := s.index[id]
	if !ok {
		return false
	}
	a := &s.actors[i]
	if a.Def.Degenerate() || a.Def.Arrived(a.State) {
		return false
	}
	if a.State.Flag == Stopped {
		a.State.Flag = Forward
	} else {
		a.State.Flag = Stopped
	}
	return true
}

// Click toggles the actor under a surface point. Of the actors whose radius
// contains the point the nearest wins; equal distances go to list order.
func (s *Session) Click(surface core.Position2D) (string, bool) {
	if s.running {
		return "", false
	}
	id, ok := s.HitTest(surface)
	if !ok {
		return "", false
	}
	return id, s.ToggleActor(id)
}

// HitTest returns the actor a Click at surface would select.
func (s *Session) HitTest(surface core.Position2D) (string, bool) {
	p := point(s.mapper.ToField(surface))
	best := -1
	bestDist := math.Inf(1)
	for i, a := range s.actors {
		dist := p.Sub(point(a.State.Position)).Norm()
		if dist <= a.Def.Radius && dist < bestDist {
			best, bestDist = i, dist
		}
	}
	if best < 0 {
		return "", false
	}
	return s.actors[best].Def.ID, true
}

// ToggleDebug flips the debug overlay flag carried in snapshots.
func (s *Session) ToggleDebug() bool {
	s.debug = !s.debug
	return s.debug
}

// Tick advances the clock to timestamp now. The first tick after creation,
// Play or Reset only records now as the baseline. Time going backwards
// yields a zero step. Idle sessions only move the baseline.
func (s *Session) Tick(now time.Duration) TickResult {
	dt := 0.0
	if s.hasLast && now > s.last {
		dt = (now - s.last).Seconds()
	}
	s.last = now
	s.hasLast = true

	if !s.running {
		return TickResult{}
	}
	return s.Step(dt)
}

// Step advances a running session by dt seconds. Every actor moves before
// collisions are checked once over the updated positions.
func (s *Session) Step(dt float64) TickResult {
	if !s.running {
		return TickResult{}
	}
	if !(dt > 0) || math.IsInf(dt, 0) {
		dt = 0
	}

	for i := range s.actors {
		a := &s.actors[i]
		a.State = Advance(a.Def, a.State, dt)
	}
	s.elapsed += dt
	s.ticks++

	res := TickResult{Advanced: true, Dt: dt}
	if c, hit := Detect(s.actors); hit {
		s.running = false
		s.halt = HaltCollision
		s.collision = &c
		res.Halted = true
		res.Reason = HaltCollision
		res.Collision = &c
		return res
	}

	if s.allStopped() {
		s.running = false
		s.halt = HaltAllStopped
		s.complete = s.allArrived()
		res.Halted = true
		res.Reason = HaltAllStopped
		res.Complete = s.complete
	}
	return res
}

func (s *Session) allStopped() bool {
	for _, a := range s.actors {
		if a.State.Flag != Stopped {
			return false
		}
	}
	return true
}

func (s *Session) allArrived() bool {
	for _, a := range s.actors {
		if !a.Def.Arrived(a.State) {
			return false
		}
	}
	return true
}

// Running reports whether the clock is advancing.
func (s *Session) Running() bool { return s.running }

// HaltReason returns why the session last stopped on its own.
func (s *Session) HaltReason() HaltReason { return s.halt }

// Complete reports whether the last all-stopped halt had every actor at its end.
func (s *Session) Complete() bool { return s.complete }

// Elapsed is the accumulated simulated time in seconds.
func (s *Session) Elapsed() float64 { return s.elapsed }

// Ticks is the number of advanced ticks since the last Reset.
func (s *Session) Ticks() uint64 { return s.ticks }

// LastCollision returns the pair that caused a collision halt, if any.
func (s *Session) LastCollision() (Collision, bool) {
	if s.collision == nil {
		return Collision{}, false
	}
	return *s.collision, true
}

// Mapper returns the coordinate mapper used for display positions and clicks.
func (s *Session) Mapper() geo.Mapper { return s.mapper }

// Len is the number of actors.
func (s *Session) Len() int { return len(s.actors) }

// Actors returns a copy of the actors in list order.
func (s *Session) Actors() []Actor {
	out := make([]Actor, len(s.actors))
	copy(out, s.actors)
	return out
}

// Actor returns the actor with the given id.
func (s *Session) Actor(id string) (Actor, bool) {
	i, ok := s.index[id]
	if !ok {
		return Actor{}, false
	}
	return s.actors[i], true
}

// Progress is the mean fraction of travel covered across all actors.
func (s *Session) Progress() float64 {
	if len(s.actors) == 0 {
		return 1
	}
	var sum float64
	for _, a := range s.actors {
		sum += a.Def.Progress(a.State)
	}
	return sum / float64(len(s.actors))
}
