package music

import (
	"log/slog"
	"math"
	"sync"

	"github.com/bandfield/marchsim/internal/geo"
)

// LoopOffset is where in the loop playback at elapsed seconds falls.
func LoopOffset(elapsed, loop float64) float64 {
	if loop <= 0 || math.IsNaN(elapsed) || math.IsInf(elapsed, 0) {
		return 0
	}
	return geo.Mod(elapsed, loop)
}

// State is what the band is currently doing musically.
type State string

const (
	StateStopped State = "stopped"
	StatePlaying State = "playing"
	StatePaused  State = "paused"
)

// Status is a snapshot of the notifier.
type Status struct {
	State    State     `json:"state"`
	Offset   float64   `json:"offset"`
	Loop     float64   `json:"loop"`
	Patterns []Pattern `json:"patterns,omitempty"`
}

// Notifier follows a playback session so clients can keep audio in step
// with the formation. It is safe for concurrent use.
type Notifier struct {
	mu       sync.Mutex
	patterns []Pattern
	loop     float64
	state    State
	offset   float64
	logger   *slog.Logger
}

// NewNotifier creates a stopped notifier for the arrangement.
func NewNotifier(patterns []Pattern, logger *slog.Logger) *Notifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Notifier{
		patterns: patterns,
		loop:     LoopLength(patterns),
		state:    StateStopped,
		logger:   logger,
	}
}

// Play starts or resumes music at the session's elapsed time.
func (n *Notifier) Play(elapsed float64) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.state = StatePlaying
	n.offset = LoopOffset(elapsed, n.loop)
	n.logger.Debug("music playing", "offset", n.offset, "loop", n.loop)
}

// Pause holds the loop position at elapsed.
func (n *Notifier) Pause(elapsed float64) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.state != StatePlaying {
		return
	}
	n.state = StatePaused
	n.offset = LoopOffset(elapsed, n.loop)
	n.logger.Debug("music paused", "offset", n.offset)
}

// Stop silences the band and rewinds the loop.
func (n *Notifier) Stop() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.state = StateStopped
	n.offset = 0
}

// Status returns the current state without the pattern list.
func (n *Notifier) Status() Status {
	n.mu.Lock()
	defer n.mu.Unlock()
	return Status{State: n.state, Offset: n.offset, Loop: n.loop}
}

// Patterns returns the arrangement.
func (n *Notifier) Patterns() []Pattern {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]Pattern(nil), n.patterns...)
}
