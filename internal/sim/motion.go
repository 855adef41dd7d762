package sim

import "math"

// Advance moves an actor along its start->end line for dt seconds.
//
// Displacement is speed*flag*dt along the unit direction. When the remaining
// vector to end no longer points along the travel direction the actor is
// clamped to end and stopped. Negative or NaN dt is treated as zero.
func Advance(def Definition, st State, dt float64) State {
	if !(dt > 0) || math.IsInf(dt, 0) {
		dt = 0
	}

	d := def.travel()
	length := d.Norm()
	if length == 0 {
		return State{Position: def.Start, Flag: Stopped}
	}
	if st.Flag == Stopped {
		return st
	}

	u := d.Mul(1 / length)
	end := point(def.End)
	pos := point(st.Position).Add(u.Mul(def.Speed * float64(st.Flag) * dt))

	if end.Sub(pos).Dot(u) <= arrivalEpsilon {
		return State{Position: def.End, Flag: Stopped}
	}
	return State{Position: position(pos), Flag: st.Flag}
}
