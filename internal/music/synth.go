package music

import (
	"math"
	"time"

	"github.com/bandfield/marchsim/pkg/core"
	"github.com/gopxl/beep"
	"github.com/gopxl/beep/effects"
)

// WaveType defines oscillator wave shapes
type WaveType int

const (
	WaveSine WaveType = iota
	WaveSquare
	WaveSaw
)

// attack is the fade-in and fade-out of each note.
const attack = 10 * time.Millisecond

// Voice is the timbre of a category.
type Voice struct {
	Wave   WaveType
	Volume float64
}

// VoiceFor returns the oscillator and gain for a category.
func VoiceFor(c core.Category) Voice {
	switch c {
	case core.CategoryBrass:
		return Voice{Wave: WaveSaw, Volume: 0.2}
	case core.CategoryWoodwind:
		return Voice{Wave: WaveSine, Volume: 0.25}
	case core.CategoryPercussion:
		return Voice{Wave: WaveSquare, Volume: 0.15}
	default:
		return Voice{Wave: WaveSine, Volume: 0.2}
	}
}

type oscillator struct {
	freq     float64
	phase    float64
	duration int
	position int
	wave     WaveType
	rate     beep.SampleRate
}

// NewOscillator creates a streamer producing one tone for duration.
func NewOscillator(freq float64, duration time.Duration, wave WaveType, rate beep.SampleRate) beep.Streamer {
	return &oscillator{
		freq:     freq,
		duration: rate.N(duration),
		wave:     wave,
		rate:     rate,
	}
}

func (o *oscillator) Stream(samples [][2]float64) (n int, ok bool) {
	for i := range samples {
		if o.position >= o.duration {
			return i, i > 0
		}

		var val float64
		switch o.wave {
		case WaveSine:
			val = math.Sin(2 * math.Pi * o.phase)
		case WaveSquare:
			if o.phase < 0.5 {
				val = 1.0
			} else {
				val = -1.0
			}
		case WaveSaw:
			val = 2.0 * (o.phase - 0.5)
		}

		samples[i][0] = val
		samples[i][1] = val

		o.phase += o.freq / float64(o.rate)
		o.phase -= math.Floor(o.phase)
		o.position++
	}
	return len(samples), true
}

func (o *oscillator) Err() error { return nil }

type envelope struct {
	streamer beep.Streamer
	position int
	ramp     int
	total    int
}

// NewEnvelope ramps the streamer linearly in and out over ramp.
func NewEnvelope(s beep.Streamer, duration, ramp time.Duration, rate beep.SampleRate) beep.Streamer {
	total := rate.N(duration)
	r := rate.N(ramp)
	if 2*r > total {
		r = total / 2
	}
	return &envelope{streamer: s, ramp: r, total: total}
}

func (e *envelope) Stream(samples [][2]float64) (n int, ok bool) {
	n, ok = e.streamer.Stream(samples)
	for i := 0; i < n; i++ {
		vol := 1.0
		if e.ramp > 0 {
			if e.position < e.ramp {
				vol = float64(e.position) / float64(e.ramp)
			} else if remaining := e.total - e.position; remaining < e.ramp {
				vol = math.Max(0, float64(remaining)/float64(e.ramp))
			}
		}
		samples[i][0] *= vol
		samples[i][1] *= vol
		e.position++
	}
	return n, ok
}

func (e *envelope) Err() error { return e.streamer.Err() }

// newVolume scales amplitude linearly; 0 is silent.
func newVolume(s beep.Streamer, vol float64) beep.Streamer {
	if vol <= 0 {
		return &effects.Volume{Streamer: s, Base: 2, Volume: 0, Silent: true}
	}
	return &effects.Volume{Streamer: s, Base: 2, Volume: math.Log2(vol)}
}

// PatternStreamer plays the pattern once at the given sample rate.
func PatternStreamer(p Pattern, rate beep.SampleRate) beep.Streamer {
	voice := VoiceFor(p.Category)
	notes := make([]beep.Streamer, 0, len(p.Notes))
	for i, n := range p.Notes {
		d := seconds(NoteDuration(p.Lengths[i], p.Tempo))
		osc := NewOscillator(Frequency(n), d, voice.Wave, rate)
		notes = append(notes, NewEnvelope(osc, d, attack, rate))
	}
	return newVolume(beep.Seq(notes...), voice.Volume)
}
