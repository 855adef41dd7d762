package httpapi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/bandfield/marchsim/internal/dispatcher"
	"github.com/bandfield/marchsim/internal/handlers"
	"github.com/bandfield/marchsim/internal/playback"
	"github.com/bandfield/marchsim/internal/sim"
	"github.com/gorilla/websocket"
)

const (
	writeWait  = 5 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
)

type openBody struct {
	LevelID uint `json:"levelId"`
}

type openResponse struct {
	ID       string       `json:"id"`
	Snapshot sim.Snapshot `json:"snapshot"`
}

// commandBody is a user input for a session. X and Y are surface pixels
// and only used by click.
type commandBody struct {
	Command string   `json:"command"`
	ActorID string   `json:"actorId,omitempty"`
	X       *float64 `json:"x,omitempty"`
	Y       *float64 `json:"y,omitempty"`
}

var commandNames = map[string]string{
	"play":     handlers.CmdPlay,
	"pause":    handlers.CmdPause,
	"reset":    handlers.CmdReset,
	"toggle":   handlers.CmdToggle,
	"click":    handlers.CmdClick,
	"debug":    handlers.CmdDebug,
	"snapshot": handlers.CmdSnapshot,
}

// event converts the body into a dispatcher event for session id.
func (b commandBody) event(id string) (dispatcher.Event, error) {
	name, ok := commandNames[strings.ToLower(b.Command)]
	if !ok {
		return dispatcher.Event{}, fmt.Errorf("%w: %q", dispatcher.ErrUnknownCommand, b.Command)
	}
	e := dispatcher.Event{Command: name, Args: []string{id}, Timestamp: time.Now()}
	switch name {
	case handlers.CmdToggle:
		e.Args = append(e.Args, b.ActorID)
	case handlers.CmdClick:
		if b.X == nil || b.Y == nil {
			return dispatcher.Event{}, fmt.Errorf("%w: click needs x and y", errBadRequest)
		}
		e.Args = append(e.Args, strconv.FormatFloat(*b.X, 'f', -1, 64)+","+strconv.FormatFloat(*b.Y, 'f', -1, 64))
	}
	return e, nil
}

func (s *Server) listSessions(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.deps.Registry.List())
}

func (s *Server) openSession(w http.ResponseWriter, r *http.Request) {
	var body openBody
	if err := decode(r, &body); err != nil {
		s.writeError(w, r, err)
		return
	}
	if body.LevelID == 0 {
		s.writeError(w, r, fmt.Errorf("%w: levelId is required", errBadRequest))
		return
	}
	out, err := s.deps.Dispatcher.Dispatch(dispatcher.Event{
		Command: handlers.CmdOpen,
		Args:    []string{strconv.FormatUint(uint64(body.LevelID), 10)},
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	id, _ := out.(string)
	h, err := s.deps.Registry.Get(id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, openResponse{ID: id, Snapshot: h.Last()})
}

func (s *Server) getSession(w http.ResponseWriter, r *http.Request) {
	h, err := s.deps.Registry.Get(r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, h.Last())
}

func (s *Server) sessionCommand(w http.ResponseWriter, r *http.Request) {
	var body commandBody
	if err := decode(r, &body); err != nil {
		s.writeError(w, r, err)
		return
	}
	res, err := s.dispatchCommand(r.PathValue("id"), body)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) dispatchCommand(id string, body commandBody) (playback.Result, error) {
	e, err := body.event(id)
	if err != nil {
		return playback.Result{}, err
	}
	out, err := s.deps.Dispatcher.Dispatch(e)
	if err != nil {
		return playback.Result{}, err
	}
	res, _ := out.(playback.Result)
	return res, nil
}

func (s *Server) closeSession(w http.ResponseWriter, r *http.Request) {
	_, err := s.deps.Dispatcher.Dispatch(dispatcher.Event{
		Command: handlers.CmdClose,
		Args:    []string{r.PathValue("id")},
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) sessionMusic(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if _, err := s.deps.Registry.Get(id); err != nil {
		s.writeError(w, r, err)
		return
	}
	n, ok := s.deps.Registry.Music(id)
	if !ok {
		s.writeError(w, r, fmt.Errorf("%w: session %s has no music", errNotFound, id))
		return
	}
	writeJSON(w, http.StatusOK, n.Status())
}

// streamMessage is sent to stream clients: a snapshot on every published
// frame, or the result of a command sent over the socket.
type streamMessage struct {
	Type     string           `json:"type"`
	Snapshot *sim.Snapshot    `json:"snapshot,omitempty"`
	Result   *playback.Result `json:"result,omitempty"`
	Error    string           `json:"error,omitempty"`
}

// streamSession upgrades to a websocket that carries snapshots out and
// commands in.
func (s *Server) streamSession(w http.ResponseWriter, r *http.Request) {
	h, err := s.deps.Registry.Get(r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.deps.Logger.WarnContext(r.Context(), "websocket upgrade failed", "session", h.ID(), "error", err)
		return
	}
	defer conn.Close()

	log := s.deps.Logger.With("session", h.ID(), "remote", r.RemoteAddr)
	log.DebugContext(r.Context(), "stream client connected")

	frames, cancel := h.Subscribe()
	defer cancel()

	var writeMu sync.Mutex
	send := func(msg streamMessage) error {
		writeMu.Lock()
		defer writeMu.Unlock()
		_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
		return conn.WriteJSON(msg)
	}

	first := h.Last()
	if err := send(streamMessage{Type: "snapshot", Snapshot: &first}); err != nil {
		return
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		s.readCommands(conn, h.ID(), send)
	}()

	ping := time.NewTicker(pingPeriod)
	defer ping.Stop()
	for {
		select {
		case <-done:
			log.Debug("stream client disconnected")
			return
		case snap, ok := <-frames:
			if !ok {
				writeMu.Lock()
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "session closed"),
					time.Now().Add(writeWait))
				writeMu.Unlock()
				return
			}
			if err := send(streamMessage{Type: "snapshot", Snapshot: &snap}); err != nil {
				return
			}
		case <-ping.C:
			writeMu.Lock()
			err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait))
			writeMu.Unlock()
			if err != nil {
				return
			}
		}
	}
}

func (s *Server) readCommands(conn *websocket.Conn, id string, send func(streamMessage) error) {
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var body commandBody
		if err := json.Unmarshal(payload, &body); err != nil {
			_ = send(streamMessage{Type: "error", Error: "malformed command"})
			continue
		}
		res, err := s.dispatchCommand(id, body)
		if err != nil {
			_ = send(streamMessage{Type: "error", Error: err.Error()})
			continue
		}
		_ = send(streamMessage{Type: "result", Result: &res})
	}
}
