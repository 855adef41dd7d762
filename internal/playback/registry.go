package playback

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bandfield/marchsim/internal/geo"
	"github.com/bandfield/marchsim/internal/levels"
	"github.com/bandfield/marchsim/internal/model"
	"github.com/bandfield/marchsim/internal/music"
	"github.com/bandfield/marchsim/internal/sim"
	"github.com/bandfield/marchsim/internal/storage"
	"github.com/bandfield/marchsim/pkg/core"
)

// RegistryConfig configures a Registry.
type RegistryConfig struct {
	Mapper      geo.Mapper
	TickRate    int
	RecordEvery int
	MaxSessions int // 0 means unlimited
	Logger      *slog.Logger
	Metrics     *Metrics
	// NewRecorder returns an initialised backend for one session. Nil disables recording.
	NewRecorder func(sessionID string) (storage.Backend, error)
	// PlayMusic attaches a music notifier to each session.
	PlayMusic bool
}

// SessionInfo summarises an open session.
type SessionInfo struct {
	ID        string  `json:"id"`
	LevelID   uint    `json:"levelId"`
	LevelName string  `json:"levelName"`
	Running   bool    `json:"running"`
	Ticks     uint64  `json:"ticks"`
	Elapsed   float64 `json:"elapsed"`
	Dropped   uint64  `json:"dropped"`
	// RecordDropped counts frames lost because the recorder fell behind.
	RecordDropped uint64 `json:"recordDropped"`
}

// Stats aggregates every open session.
type Stats struct {
	Open    int
	Running int
	Ticks   uint64
	Dropped uint64
	// RecordPending and RecordDropped cover the per-session recorder queues.
	RecordPending int
	RecordDropped uint64
}

type entry struct {
	host     *Host
	recorder storage.Backend
	music    *music.Notifier
}

// Registry owns the open session hosts.
type Registry struct {
	cfg RegistryConfig
	ctx context.Context
	log *slog.Logger

	mu       sync.RWMutex
	sessions map[string]*entry
	open     atomic.Int64
	closed   bool
}

// NewRegistry creates a registry whose hosts stop when ctx is done.
func NewRegistry(ctx context.Context, cfg RegistryConfig) *Registry {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Registry{
		cfg:      cfg,
		ctx:      ctx,
		log:      cfg.Logger,
		sessions: make(map[string]*entry),
	}
}

// Open builds a session for level and starts its host. The recorder is
// created without holding the registry lock, since backends may dial out.
func (r *Registry) Open(level core.Level) (*Host, error) {
	if err := r.admit(); err != nil {
		return nil, err
	}

	session, err := sim.NewSession(levels.Definitions(level), r.cfg.Mapper)
	if err != nil {
		return nil, fmt.Errorf("build session for level %q: %w", level.Name, err)
	}

	e := &entry{}
	opts := Options{
		TickRate:    r.cfg.TickRate,
		RecordEvery: r.cfg.RecordEvery,
		Logger:      r.log,
		Metrics:     r.cfg.Metrics,
	}
	if r.cfg.PlayMusic {
		e.music = music.NewNotifier(music.Arrange(level.BandMembers), r.log)
		opts.Music = e.music
	}
	e.host = NewHost(level, session, opts)

	if r.cfg.NewRecorder != nil {
		rec, err := r.cfg.NewRecorder(e.host.ID())
		if err != nil {
			return nil, fmt.Errorf("create recorder: %w", err)
		}
		e.recorder = rec
		e.host.opts.Recorder = rec
	}

	r.mu.Lock()
	if err := r.admitLocked(); err != nil {
		r.mu.Unlock()
		if e.recorder != nil {
			if cerr := e.recorder.Close(); cerr != nil {
				r.log.Warn("failed to close unused recorder", "session", e.host.ID(), "error", cerr)
			}
		}
		return nil, err
	}
	e.host.Start(r.ctx)
	r.sessions[e.host.ID()] = e
	r.open.Add(1)
	r.mu.Unlock()

	r.log.Info("session opened", "session", e.host.ID(), "level", level.Name, "actors", session.Len())
	return e.host, nil
}

// admit fails fast before any work is done for a new session.
func (r *Registry) admit() error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.admitLocked()
}

func (r *Registry) admitLocked() error {
	if r.closed {
		return ErrHostClosed
	}
	if r.cfg.MaxSessions > 0 && len(r.sessions) >= r.cfg.MaxSessions {
		return ErrTooManySessions
	}
	return nil
}

// Get returns an open session host.
func (r *Registry) Get(id string) (*Host, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	return e.host, nil
}

// Music returns the music notifier of a session, if it has one.
func (r *Registry) Music(id string) (*music.Notifier, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.sessions[id]
	if !ok || e.music == nil {
		return nil, false
	}
	return e.music, true
}

// Close stops a session and closes its recorder.
func (r *Registry) Close(id string) error {
	r.mu.Lock()
	e, ok := r.sessions[id]
	delete(r.sessions, id)
	if ok {
		r.open.Add(-1)
	}
	r.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	return r.closeEntry(e)
}

func (r *Registry) closeEntry(e *entry) error {
	e.host.Close()
	r.log.Info("session closed", "session", e.host.ID(), "ticks", e.host.Ticks())
	if e.recorder != nil {
		if err := e.recorder.Close(); err != nil {
			return fmt.Errorf("close recorder for session %s: %w", e.host.ID(), err)
		}
	}
	return nil
}

// List returns every open session ordered by id.
func (r *Registry) List() []SessionInfo {
	r.mu.RLock()
	out := make([]SessionInfo, 0, len(r.sessions))
	for _, e := range r.sessions {
		last := e.host.Last()
		out = append(out, SessionInfo{
			ID:            e.host.ID(),
			LevelID:       e.host.Level().ID,
			LevelName:     e.host.Level().Name,
			Running:       e.host.Running(),
			Ticks:         e.host.Ticks(),
			Elapsed:       last.Elapsed,
			Dropped:       e.host.Dropped(),
			RecordDropped: e.host.RecordDropped(),
		})
	}
	r.mu.RUnlock()
	slices.SortFunc(out, func(a, b SessionInfo) int { return strings.Compare(a.ID, b.ID) })
	return out
}

// Stats aggregates counters over every open session.
func (r *Registry) Stats() Stats {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var s Stats
	for _, e := range r.sessions {
		s.Open++
		if e.host.Running() {
			s.Running++
		}
		s.Ticks += e.host.Ticks()
		s.Dropped += e.host.Dropped()
		s.RecordPending += e.host.RecordPending()
		s.RecordDropped += e.host.RecordDropped()
	}
	return s
}

// WriteStats sums the write queues of every session recorder and returns
// the slowest last write.
func (r *Registry) WriteStats() (model.WriteQueueLengths, time.Duration) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var (
		q       model.WriteQueueLengths
		slowest time.Duration
	)
	for _, e := range r.sessions {
		if e.recorder == nil {
			continue
		}
		for _, rep := range storage.Reporters(e.recorder) {
			l := rep.QueueLengths()
			q.ActorStates += l.ActorStates
			q.PlaybackEvents += l.PlaybackEvents
			slowest = max(slowest, rep.LastWriteDuration())
		}
	}
	return q, slowest
}

// OpenCount is the number of open sessions. It takes no lock, so log
// handlers may call it from anywhere.
func (r *Registry) OpenCount() int {
	return int(r.open.Load())
}

// Shutdown closes every session. Open fails afterwards.
func (r *Registry) Shutdown() error {
	r.mu.Lock()
	r.closed = true
	entries := make([]*entry, 0, len(r.sessions))
	for id, e := range r.sessions {
		entries = append(entries, e)
		delete(r.sessions, id)
	}
	r.open.Store(0)
	r.mu.Unlock()

	var errs []error
	for _, e := range entries {
		if err := r.closeEntry(e); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
