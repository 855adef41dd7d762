// Package httpapi serves levels, band members, sessions and music over HTTP.
package httpapi

import (
	"bufio"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/bandfield/marchsim/internal/dispatcher"
	"github.com/bandfield/marchsim/internal/geo"
	"github.com/bandfield/marchsim/internal/handlers"
	"github.com/bandfield/marchsim/internal/levels"
	"github.com/bandfield/marchsim/internal/logging"
	"github.com/bandfield/marchsim/internal/playback"
	"github.com/bandfield/marchsim/internal/sim"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// Dependencies holds what the API serves from.
type Dependencies struct {
	Levels     *levels.Store
	Registry   *playback.Registry
	Dispatcher *dispatcher.Dispatcher
	Logger     *slog.Logger
	SampleRate int
	Version    string
}

// Server routes API requests.
type Server struct {
	deps     Dependencies
	mux      *http.ServeMux
	upgrader websocket.Upgrader
}

// New builds the API with every route registered.
func New(deps Dependencies) *Server {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.SampleRate <= 0 {
		deps.SampleRate = 44100
	}
	s := &Server{
		deps: deps,
		mux:  http.NewServeMux(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.mux.HandleFunc("GET /healthcheck", s.healthcheck)

	s.mux.HandleFunc("GET /api/v1/levels", s.listLevels)
	s.mux.HandleFunc("POST /api/v1/levels", s.createLevel)
	s.mux.HandleFunc("GET /api/v1/levels/{id}", s.getLevel)
	s.mux.HandleFunc("PATCH /api/v1/levels/{id}", s.updateLevel)
	s.mux.HandleFunc("DELETE /api/v1/levels/{id}", s.deleteLevel)
	s.mux.HandleFunc("POST /api/v1/levels/{id}/members", s.addMember)
	s.mux.HandleFunc("GET /api/v1/levels/{id}/music", s.levelMusic)
	s.mux.HandleFunc("GET /api/v1/levels/{id}/music.wav", s.levelWAV)

	s.mux.HandleFunc("GET /api/v1/members", s.listMembers)
	s.mux.HandleFunc("GET /api/v1/members/{id}", s.getMember)
	s.mux.HandleFunc("PATCH /api/v1/members/{id}", s.updateMember)
	s.mux.HandleFunc("PUT /api/v1/members/{id}/position", s.updatePosition)
	s.mux.HandleFunc("DELETE /api/v1/members/{id}", s.deleteMember)

	s.mux.HandleFunc("GET /api/v1/sessions", s.listSessions)
	s.mux.HandleFunc("POST /api/v1/sessions", s.openSession)
	s.mux.HandleFunc("GET /api/v1/sessions/{id}", s.getSession)
	s.mux.HandleFunc("POST /api/v1/sessions/{id}/commands", s.sessionCommand)
	s.mux.HandleFunc("DELETE /api/v1/sessions/{id}", s.closeSession)
	s.mux.HandleFunc("GET /api/v1/sessions/{id}/stream", s.streamSession)
	s.mux.HandleFunc("GET /api/v1/sessions/{id}/music", s.sessionMusic)
}

// ServeHTTP logs each request and hands it to the router.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx := logging.ContextWith(r.Context(), "request", uuid.NewString())
	rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
	s.mux.ServeHTTP(rec, r.WithContext(ctx))
	s.deps.Logger.DebugContext(ctx, "http request",
		"method", r.Method,
		"path", r.URL.Path,
		"status", rec.status,
		"duration", time.Since(start),
	)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Unwrap() http.ResponseWriter { return r.ResponseWriter }

// Hijack hands the connection to the websocket upgrader.
func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	r.status = http.StatusSwitchingProtocols
	return h.Hijack()
}

func (s *Server) healthcheck(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":   "ok",
		"version":  s.deps.Version,
		"sessions": s.deps.Registry.Stats().Open,
	})
}

type errorBody struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.deps.Logger.ErrorContext(r.Context(), "request failed", "error", err)
	}
	writeJSON(w, status, errorBody{Error: err.Error()})
}

var (
	errBadRequest = errors.New("bad request")
	errNotFound   = errors.New("not found")
)

func statusFor(err error) int {
	switch {
	case errors.Is(err, levels.ErrNotFound), errors.Is(err, playback.ErrSessionNotFound), errors.Is(err, errNotFound):
		return http.StatusNotFound
	case errors.Is(err, levels.ErrInvalidLevel), errors.Is(err, levels.ErrNoChanges),
		errors.Is(err, errBadRequest), errors.Is(err, dispatcher.ErrUnknownCommand),
		errors.Is(err, playback.ErrUnknownCommand), errors.Is(err, handlers.ErrMissingArgument),
		errors.Is(err, geo.ErrInvalidCoordinates), errors.Is(err, sim.ErrInvalidActor):
		return http.StatusBadRequest
	case errors.Is(err, playback.ErrTooManySessions), errors.Is(err, dispatcher.ErrQueueFull):
		return http.StatusServiceUnavailable
	case errors.Is(err, playback.ErrHostClosed):
		return http.StatusGone
	default:
		return http.StatusInternalServerError
	}
}

func pathID(r *http.Request) (uint, error) {
	raw := r.PathValue("id")
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		return 0, errors.Join(errBadRequest, errors.New("invalid id "+strconv.Quote(raw)))
	}
	return uint(id), nil
}

func decode(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return errors.Join(errBadRequest, err)
	}
	return nil
}
