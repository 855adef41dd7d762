package sim

import "github.com/bandfield/marchsim/pkg/core"

// ActorSnapshot is the renderable state of one actor.
type ActorSnapshot struct {
	ID       string          `json:"id"`
	Category core.Category   `json:"category"`
	Color    string          `json:"color"`
	Position core.Position2D `json:"position"`
	Display  core.Position2D `json:"display"`
	Radius   float64         `json:"radius"`
	Flag     MovementFlag    `json:"flag"`
	Arrived  bool            `json:"arrived"`
}

// Snapshot is everything a renderer needs for one frame.
type Snapshot struct {
	Actors     []ActorSnapshot `json:"actors"`
	Tick       uint64          `json:"tick"`
	Elapsed    float64         `json:"elapsed"`
	Running    bool            `json:"running"`
	HaltReason HaltReason      `json:"haltReason,omitempty"`
	Complete   bool            `json:"complete"`
	Progress   float64         `json:"progress"`
	Debug      bool            `json:"debug"`
	Collision  *Collision      `json:"collision,omitempty"`
	Field      core.Size       `json:"field"`
	Surface    core.Size       `json:"surface"`
}

// Snapshot copies the current session state.
func (s *Session) Snapshot() Snapshot {
	snap := Snapshot{
		Actors:     make([]ActorSnapshot, len(s.actors)),
		Tick:       s.ticks,
		Elapsed:    s.elapsed,
		Running:    s.running,
		HaltReason: s.halt,
		Complete:   s.complete,
		Progress:   s.Progress(),
		Debug:      s.debug,
		Field:      s.mapper.Field,
		Surface:    s.mapper.Surface,
	}
	if s.collision != nil {
		c := *s.collision
		snap.Collision = &c
	}
	for i, a := range s.actors {
		snap.Actors[i] = ActorSnapshot{
			ID:       a.Def.ID,
			Category: a.Def.Category,
			Color:    a.Def.Category.Color(),
			Position: a.State.Position,
			Display:  s.mapper.ToDisplay(a.State.Position),
			Radius:   a.Def.Radius,
			Flag:     a.State.Flag,
			Arrived:  a.Def.Arrived(a.State),
		}
	}
	return snap
}

// Frame converts the snapshot into a recordable frame.
func (snap Snapshot) Frame(runID string) core.Frame {
	f := core.Frame{
		RunID:   runID,
		Tick:    snap.Tick,
		Elapsed: snap.Elapsed,
		Actors:  make([]core.ActorFrame, len(snap.Actors)),
	}
	for i, a := range snap.Actors {
		f.Actors[i] = core.ActorFrame{ActorID: a.ID, Position: a.Position, Flag: int(a.Flag)}
	}
	return f
}
