package sim

// Collision identifies the first overlapping pair found by Detect.
type Collision struct {
	First    int     `json:"first"`
	Second   int     `json:"second"`
	FirstID  string  `json:"firstId"`
	SecondID string  `json:"secondId"`
	Distance float64 `json:"distance"`
}

// Detect reports the first pair (i<j, in list order) whose centers are closer
// than the sum of their radii. Touching circles do not collide.
//
// Every pair is checked, so cost grows with the square of the actor count.
// Formations hold tens of actors; larger bands would need a spatial index.
func Detect(actors []Actor) (Collision, bool) {
	for i := 0; i < len(actors); i++ {
		a := actors[i]
		pa := point(a.State.Position)
		for j := i + 1; j < len(actors); j++ {
			b := actors[j]
			dist := pa.Sub(point(b.State.Position)).Norm()
			if dist < a.Def.Radius+b.Def.Radius {
				return Collision{
					First:    i,
					Second:   j,
					FirstID:  a.Def.ID,
					SecondID: b.Def.ID,
					Distance: dist,
				}, true
			}
		}
	}
	return Collision{}, false
}
