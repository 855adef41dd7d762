package music

import (
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/gopxl/beep"
	"github.com/gopxl/beep/wav"
)

var ErrNoPatterns = errors.New("no patterns to render")

// RenderOptions controls offline rendering.
type RenderOptions struct {
	SampleRate int
	// Seconds is the rendered length. 0 renders one loop.
	Seconds float64
	// Offset starts the loop part-way through, as LoopOffset would.
	Offset float64
}

// Render mixes every pattern, each looping on its own, and cuts the mix to
// the requested length.
func Render(patterns []Pattern, opts RenderOptions) (beep.Streamer, beep.Format, error) {
	format := beep.Format{SampleRate: beep.SampleRate(opts.SampleRate), NumChannels: 2, Precision: 2}
	patterns = audible(patterns)
	if len(patterns) == 0 {
		return nil, format, ErrNoPatterns
	}
	if opts.SampleRate <= 0 {
		return nil, format, fmt.Errorf("invalid sample rate %d", opts.SampleRate)
	}

	loop := LoopLength(patterns)
	length := opts.Seconds
	if length <= 0 {
		length = loop
	}
	offset := LoopOffset(opts.Offset, loop)

	rate := format.SampleRate
	voices := make([]beep.Streamer, 0, len(patterns))
	for _, p := range patterns {
		// each voice repeats often enough to cover offset + length
		reps := int(math.Ceil((offset+length)/p.Duration())) + 1
		passes := make([]beep.Streamer, reps)
		for i := range passes {
			passes[i] = PatternStreamer(p, rate)
		}
		voice := beep.Seq(passes...)
		if offset > 0 {
			voice = skip(voice, rate.N(seconds(offset)))
		}
		voices = append(voices, voice)
	}

	mix := beep.Mix(voices...)
	return beep.Take(rate.N(seconds(length)), mix), format, nil
}

// WriteWAV renders the patterns to w as 16-bit stereo WAV.
func WriteWAV(w io.WriteSeeker, patterns []Pattern, opts RenderOptions) error {
	s, format, err := Render(patterns, opts)
	if err != nil {
		return err
	}
	if err := wav.Encode(w, s, format); err != nil {
		return fmt.Errorf("error encoding wav: %w", err)
	}
	return nil
}

func audible(patterns []Pattern) []Pattern {
	out := make([]Pattern, 0, len(patterns))
	for _, p := range patterns {
		if len(p.Notes) > 0 && len(p.Lengths) == len(p.Notes) {
			out = append(out, p)
		}
	}
	return out
}

// skip discards the first n samples of s.
func skip(s beep.Streamer, n int) beep.Streamer {
	skipped := false
	return beep.StreamerFunc(func(samples [][2]float64) (int, bool) {
		if !skipped {
			skipped = true
			buf := make([][2]float64, 512)
			for n > 0 {
				chunk := buf
				if n < len(chunk) {
					chunk = chunk[:n]
				}
				got, ok := s.Stream(chunk)
				n -= got
				if !ok {
					return 0, false
				}
			}
		}
		return s.Stream(samples)
	})
}
