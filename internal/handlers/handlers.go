package handlers

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/bandfield/marchsim/internal/dispatcher"
	"github.com/bandfield/marchsim/internal/geo"
	"github.com/bandfield/marchsim/internal/levels"
	"github.com/bandfield/marchsim/internal/logging"
	"github.com/bandfield/marchsim/internal/playback"
)

// Command names understood by the service.
const (
	CmdOpen     = ":OPEN:"
	CmdClose    = ":CLOSE:"
	CmdPlay     = ":PLAY:"
	CmdPause    = ":PAUSE:"
	CmdReset    = ":RESET:"
	CmdToggle   = ":TOGGLE:"
	CmdClick    = ":CLICK:"
	CmdDebug    = ":DEBUG:"
	CmdSnapshot = ":SNAPSHOT:"
	CmdSessions = ":SESSIONS:"
)

var ErrMissingArgument = errors.New("missing argument")

// DefaultTimeout bounds how long a command waits for its session host.
const DefaultTimeout = 5 * time.Second

// Dependencies holds all dependencies needed by handlers
type Dependencies struct {
	Registry   *playback.Registry
	Levels     *levels.Store
	LogManager *logging.SlogManager
	Timeout    time.Duration
}

// Service turns dispatcher events into session commands.
type Service struct {
	deps         Dependencies
	writeLogFunc func(functionName, data, level string)
}

// NewService creates a new handler service
func NewService(deps Dependencies) *Service {
	if deps.Timeout <= 0 {
		deps.Timeout = DefaultTimeout
	}
	s := &Service{deps: deps}
	s.writeLogFunc = func(functionName, data, level string) {
		if deps.LogManager != nil {
			deps.LogManager.WriteLog(functionName, data, level)
		}
	}
	return s
}

func (s *Service) writeLog(functionName, data, level string) {
	s.writeLogFunc(functionName, data, level)
}

// Register wires every command into d.
func (s *Service) Register(d *dispatcher.Dispatcher) {
	d.Register(CmdOpen, s.OpenSession, dispatcher.Logged())
	d.Register(CmdClose, s.CloseSession, dispatcher.Logged())
	d.Register(CmdPlay, s.sessionCommand(playback.CmdPlay), dispatcher.Logged())
	d.Register(CmdPause, s.sessionCommand(playback.CmdPause), dispatcher.Logged())
	d.Register(CmdReset, s.sessionCommand(playback.CmdReset), dispatcher.Logged())
	d.Register(CmdDebug, s.sessionCommand(playback.CmdDebug))
	d.Register(CmdSnapshot, s.sessionCommand(playback.CmdSnap))
	d.Register(CmdToggle, s.ToggleActor, dispatcher.Logged())
	d.Register(CmdClick, s.Click, dispatcher.Logged())
	d.Register(CmdSessions, func(dispatcher.Event) (any, error) {
		return s.deps.Registry.List(), nil
	})
}

// OpenSession loads the level named by the first argument and opens a
// session for it. The result is the new session id.
func (s *Service) OpenSession(e dispatcher.Event) (any, error) {
	raw := e.Arg(0)
	if raw == "" {
		return nil, fmt.Errorf("%w: level id", ErrMissingArgument)
	}
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid level id %q: %w", raw, err)
	}

	ctx, cancel := s.context()
	defer cancel()

	level, err := s.deps.Levels.GetLevel(ctx, uint(id))
	if err != nil {
		return nil, err
	}
	h, err := s.deps.Registry.Open(level)
	if err != nil {
		s.writeLog(CmdOpen, fmt.Sprintf("Failed to open session for level %d: %v", id, err), "ERROR")
		return nil, err
	}
	if err := s.deps.Levels.IncrementPlays(ctx, level.ID); err != nil {
		s.writeLog(CmdOpen, fmt.Sprintf("Failed to count play of level %d: %v", id, err), "WARN")
	}
	s.writeLog(CmdOpen, fmt.Sprintf("Opened session %s for level %q", h.ID(), level.Name), "INFO")
	return h.ID(), nil
}

// CloseSession stops the session named by the first argument.
func (s *Service) CloseSession(e dispatcher.Event) (any, error) {
	id := e.Arg(0)
	if id == "" {
		return nil, fmt.Errorf("%w: session id", ErrMissingArgument)
	}
	if err := s.deps.Registry.Close(id); err != nil {
		return nil, err
	}
	return "ok", nil
}

// ToggleActor flips the actor named by the second argument.
func (s *Service) ToggleActor(e dispatcher.Event) (any, error) {
	actor := e.Arg(1)
	if actor == "" {
		return nil, fmt.Errorf("%w: actor id", ErrMissingArgument)
	}
	return s.do(e, playback.Command{Kind: playback.CmdToggle, ActorID: actor})
}

// Click toggles the actor under the "x,y" surface point in the second argument.
func (s *Service) Click(e dispatcher.Event) (any, error) {
	raw := e.Arg(1)
	if raw == "" {
		return nil, fmt.Errorf("%w: click position", ErrMissingArgument)
	}
	p, err := geo.PositionFromString(raw)
	if err != nil {
		return nil, err
	}
	return s.do(e, playback.Command{Kind: playback.CmdClick, Point: p})
}

func (s *Service) sessionCommand(kind playback.CommandKind) dispatcher.HandlerFunc {
	return func(e dispatcher.Event) (any, error) {
		return s.do(e, playback.Command{Kind: kind})
	}
}

func (s *Service) do(e dispatcher.Event, cmd playback.Command) (any, error) {
	id := e.Arg(0)
	if id == "" {
		return nil, fmt.Errorf("%w: session id", ErrMissingArgument)
	}
	h, err := s.deps.Registry.Get(id)
	if err != nil {
		return nil, err
	}
	ctx, cancel := s.context()
	defer cancel()
	res, err := h.Do(ctx, cmd)
	if err != nil {
		return nil, err
	}
	return res, nil
}

func (s *Service) context() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), s.deps.Timeout)
}
