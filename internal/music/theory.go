// Package music turns band member tracks into audio: note theory, default
// patterns, a small beep synthesizer and the loop bookkeeping used during playback.
package music

import (
	"math"
	"time"
)

// TicksPerBeat is the MIDI resolution of track lengths.
const TicksPerBeat = 480

// minNoteSeconds is the shortest audible note.
const minNoteSeconds = 0.1

// GMajor is the G4..G5 scale patterns are snapped to.
var GMajor = []int{67, 69, 71, 72, 74, 76, 78, 79}

// SnapToScale returns the scale note closest to note. Ties go to the lower note.
func SnapToScale(note int) int {
	best := GMajor[0]
	for _, n := range GMajor[1:] {
		if abs(n-note) < abs(best-note) {
			best = n
		}
	}
	return best
}

// Frequency is the equal-tempered frequency of a MIDI note (A4 = 440 Hz).
func Frequency(note int) float64 {
	return 440 * math.Pow(2, float64(note-69)/12)
}

// NoteDuration converts a length in ticks to seconds at tempo (bpm).
func NoteDuration(lengthTicks, tempo int) float64 {
	if tempo <= 0 {
		tempo = DefaultTempo
	}
	return math.Max(minNoteSeconds, float64(lengthTicks)*60/(float64(tempo)*TicksPerBeat))
}

// PatternDuration is the summed note durations of a pattern in seconds.
func PatternDuration(lengths []int, tempo int) float64 {
	var d float64
	for _, l := range lengths {
		d += NoteDuration(l, tempo)
	}
	return d
}

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
