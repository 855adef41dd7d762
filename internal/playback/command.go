package playback

import (
	"errors"

	"github.com/bandfield/marchsim/internal/sim"
	"github.com/bandfield/marchsim/pkg/core"
)

var (
	ErrHostClosed      = errors.New("session closed")
	ErrSessionNotFound = errors.New("session not found")
	ErrTooManySessions = errors.New("too many open sessions")
	ErrUnknownCommand  = errors.New("unknown command")
)

// CommandKind names a user input to a session.
type CommandKind string

const (
	CmdPlay   CommandKind = "play"
	CmdPause  CommandKind = "pause"
	CmdReset  CommandKind = "reset"
	CmdToggle CommandKind = "toggle"
	CmdClick  CommandKind = "click"
	CmdDebug  CommandKind = "debug"
	CmdSnap   CommandKind = "snapshot"
)

// Command is delivered to the host goroutine; the result comes back on Resp.
type Command struct {
	Kind    CommandKind
	ActorID string          // toggle
	Point   core.Position2D // click, surface pixels
	Resp    chan Result
}

// Result is the outcome of a command.
type Result struct {
	// Changed is false when the command was a no-op in the current state.
	Changed  bool         `json:"changed"`
	ActorID  string       `json:"actorId,omitempty"`
	Snapshot sim.Snapshot `json:"snapshot"`
	Err      error        `json:"-"`
}

// MusicHook follows the session clock.
type MusicHook interface {
	Play(elapsed float64)
	Pause(elapsed float64)
	Stop()
}
