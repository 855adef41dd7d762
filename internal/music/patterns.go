package music

import (
	"github.com/bandfield/marchsim/pkg/core"
)

const (
	DefaultTempo    = 120
	DefaultDuration = 4
)

// Role is how a pattern relates to the one before it in the arrangement.
type Role string

const (
	RolePoint        Role = "point"
	RoleCounterpoint Role = "counterpoint"
)

// Pattern is one voice of the band arrangement.
type Pattern struct {
	MemberID   uint          `json:"memberId"`
	Name       string        `json:"name"`
	Category   core.Category `json:"instrument"`
	Role       Role          `json:"type"`
	Notes      []int         `json:"notes"`
	Lengths    []int         `json:"lengths"`
	Tempo      int           `json:"tempo"`
	Instrument int           `json:"instrumentNumber"`
}

// Duration returns the length of one pass through the pattern in seconds.
func (p Pattern) Duration() float64 {
	return PatternDuration(p.Lengths, p.Tempo)
}

// InstrumentNumber is the General MIDI program used for a category.
func InstrumentNumber(c core.Category) int {
	switch c {
	case core.CategoryPercussion:
		return 115
	case core.CategoryBrass:
		return 56
	default:
		return 73
	}
}

// DefaultTrack generates the starter track given to new band members.
func DefaultTrack(c core.Category) core.MIDITrack {
	notes := []int{60, 64, 67, 72}
	if c == core.CategoryPercussion {
		notes = []int{35, 38, 42, 46}
	}
	return core.MIDITrack{
		TrackNumber:      0,
		InstrumentNumber: InstrumentNumber(c),
		Data: core.TrackData{
			Notes:    notes,
			Lengths:  []int{TicksPerBeat, TicksPerBeat, TicksPerBeat, TicksPerBeat},
			Tempo:    DefaultTempo,
			Duration: DefaultDuration,
		},
	}
}

// Arrange builds one pattern per member, alternating point and counterpoint in
// member order. Members without a track get the default for their category.
// Counterpoint melodies are snapped to G major; percussion keeps its drum notes.
func Arrange(members []core.BandMember) []Pattern {
	patterns := make([]Pattern, 0, len(members))
	for i, m := range members {
		track := DefaultTrack(m.Category)
		if len(m.MIDITracks) > 0 && len(m.MIDITracks[0].Data.Notes) > 0 {
			track = m.MIDITracks[0]
		}

		p := Pattern{
			MemberID:   m.ID,
			Name:       m.Name,
			Category:   m.Category,
			Role:       RolePoint,
			Notes:      append([]int(nil), track.Data.Notes...),
			Lengths:    normalizeLengths(track.Data.Lengths, len(track.Data.Notes)),
			Tempo:      track.Data.Tempo,
			Instrument: track.InstrumentNumber,
		}
		if p.Tempo <= 0 {
			p.Tempo = DefaultTempo
		}
		if i%2 == 1 {
			p.Role = RoleCounterpoint
			if m.Category != core.CategoryPercussion {
				for j, n := range p.Notes {
					p.Notes[j] = SnapToScale(n)
				}
			}
		}
		patterns = append(patterns, p)
	}
	return patterns
}

// normalizeLengths pads missing lengths with a beat so notes and lengths pair up.
func normalizeLengths(lengths []int, n int) []int {
	out := make([]int, n)
	for i := range out {
		if i < len(lengths) && lengths[i] > 0 {
			out[i] = lengths[i]
		} else {
			out[i] = TicksPerBeat
		}
	}
	return out
}

// LoopLength is the shortest pattern duration; all voices restart on it.
// It is 0 when there are no patterns.
func LoopLength(patterns []Pattern) float64 {
	var shortest float64
	for i, p := range patterns {
		d := p.Duration()
		if i == 0 || d < shortest {
			shortest = d
		}
	}
	return shortest
}
