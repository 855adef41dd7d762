// Package playback runs sessions in real time: one goroutine per session
// ticks the simulation, applies user commands, fans snapshots out to
// subscribers and records runs to a storage backend.
package playback

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bandfield/marchsim/internal/sim"
	"github.com/bandfield/marchsim/internal/storage"
	"github.com/bandfield/marchsim/pkg/core"
	"github.com/google/uuid"
)

const (
	DefaultTickRate    = 60
	DefaultRecordEvery = 6
	subscriberBuffer   = 8
)

// Options configures a Host.
type Options struct {
	TickRate    int // ticks per second
	RecordEvery int // record a frame every N advanced ticks
	// Recorder receives the runs. Calls are made from a separate goroutine,
	// so a slow backend delays recording, never the session.
	Recorder storage.Backend
	// RecordBacklog caps the frames waiting for Recorder. Defaults to DefaultRecordBacklog.
	RecordBacklog int
	Music         MusicHook
	Logger        *slog.Logger
	Metrics       *Metrics
	// Now returns the session clock. Defaults to the monotonic time since the host started.
	Now func() time.Duration
}

// Host owns one session. All session access happens on the host goroutine.
type Host struct {
	id      string
	level   core.Level
	session *sim.Session
	opts    Options
	log     *slog.Logger

	cmds   chan Command
	done   chan struct{}
	closed chan struct{}
	once   sync.Once

	subMu   sync.Mutex
	subs    map[int]chan sim.Snapshot
	nextSub int

	rec        *recordWriter
	run        *core.Run
	collisions int

	ticks   atomic.Uint64
	dropped atomic.Uint64
	running atomic.Bool
	last    atomic.Pointer[sim.Snapshot]
}

// NewHost creates a host for level. The session is built from defs and
// must be valid. Call Start to begin ticking.
func NewHost(level core.Level, session *sim.Session, opts Options) *Host {
	if opts.TickRate <= 0 {
		opts.TickRate = DefaultTickRate
	}
	if opts.RecordEvery <= 0 {
		opts.RecordEvery = DefaultRecordEvery
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Now == nil {
		start := time.Now()
		opts.Now = func() time.Duration { return time.Since(start) }
	}
	id := uuid.NewString()
	h := &Host{
		id:      id,
		level:   level,
		session: session,
		opts:    opts,
		log:     opts.Logger.With("session", id, "level", level.Name),
		cmds:    make(chan Command),
		done:    make(chan struct{}),
		closed:  make(chan struct{}),
		subs:    make(map[int]chan sim.Snapshot),
	}
	snap := session.Snapshot()
	h.last.Store(&snap)
	return h
}

// ID is the session id.
func (h *Host) ID() string { return h.id }

// Level is the level the session plays.
func (h *Host) Level() core.Level { return h.level }

// Running reports whether the session clock is advancing.
func (h *Host) Running() bool { return h.running.Load() }

// Ticks is the number of advanced ticks across all runs of this host.
func (h *Host) Ticks() uint64 { return h.ticks.Load() }

// Dropped is the number of snapshots not delivered to slow subscribers.
func (h *Host) Dropped() uint64 { return h.dropped.Load() }

// RecordDropped is the number of frames dropped because the recorder fell behind.
func (h *Host) RecordDropped() uint64 {
	if h.rec == nil {
		return 0
	}
	return h.rec.dropped.Load()
}

// RecordPending is the number of recording calls waiting for the recorder.
func (h *Host) RecordPending() int {
	if h.rec == nil {
		return 0
	}
	return h.rec.pending()
}

// Last returns the most recently published snapshot.
func (h *Host) Last() sim.Snapshot { return *h.last.Load() }

// Start runs the host goroutine until ctx is done or Close is called.
func (h *Host) Start(ctx context.Context) {
	if h.opts.Recorder != nil {
		h.rec = newRecordWriter(h.opts.Recorder, h.opts.RecordBacklog, h.log)
		h.rec.start()
	}
	go h.loop(ctx)
}

// Close stops the host and waits for it to finish. Open runs are ended and
// everything queued for the recorder is written before Close returns.
func (h *Host) Close() {
	h.once.Do(func() { close(h.done) })
	<-h.closed
}

// Do sends a command and waits for its result.
func (h *Host) Do(ctx context.Context, cmd Command) (Result, error) {
	cmd.Resp = make(chan Result, 1)
	select {
	case h.cmds <- cmd:
	case <-h.closed:
		return Result{}, ErrHostClosed
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}
	select {
	case res := <-cmd.Resp:
		return res, res.Err
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}
}

// Subscribe returns a channel of snapshots published after each advanced
// tick and each command. A slow subscriber misses snapshots rather than
// blocking the host. The channel is closed by cancel or when the host stops.
func (h *Host) Subscribe() (<-chan sim.Snapshot, func()) {
	h.subMu.Lock()
	defer h.subMu.Unlock()
	ch := make(chan sim.Snapshot, subscriberBuffer)
	if h.subs == nil {
		close(ch)
		return ch, func() {}
	}
	id := h.nextSub
	h.nextSub++
	h.subs[id] = ch
	return ch, func() {
		h.subMu.Lock()
		defer h.subMu.Unlock()
		if c, ok := h.subs[id]; ok {
			delete(h.subs, id)
			close(c)
		}
	}
}

func (h *Host) publish(snap sim.Snapshot) {
	h.last.Store(&snap)
	h.subMu.Lock()
	defer h.subMu.Unlock()
	for _, ch := range h.subs {
		select {
		case ch <- snap:
		default:
			h.dropped.Add(1)
			h.opts.Metrics.frameDropped()
		}
	}
}

func (h *Host) loop(ctx context.Context) {
	defer close(h.closed)
	ticker := time.NewTicker(time.Second / time.Duration(h.opts.TickRate))
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			h.shutdown()
			return
		case <-h.done:
			h.shutdown()
			return
		case cmd := <-h.cmds:
			cmd.Resp <- h.apply(cmd)
		case <-ticker.C:
			h.tick()
		}
	}
}

func (h *Host) shutdown() {
	if h.run != nil {
		h.endRun()
	}
	if h.opts.Music != nil {
		h.opts.Music.Stop()
	}
	if h.rec != nil {
		h.rec.close()
	}
	h.subMu.Lock()
	for id, ch := range h.subs {
		close(ch)
		delete(h.subs, id)
	}
	h.subs = nil
	h.subMu.Unlock()
	h.running.Store(false)
	h.log.Debug("session host stopped")
}

func (h *Host) tick() {
	res := h.session.Tick(h.opts.Now())
	if !res.Advanced {
		return
	}
	h.ticks.Add(1)
	h.opts.Metrics.tick()
	snap := h.session.Snapshot()

	if h.run != nil && (snap.Tick%uint64(h.opts.RecordEvery) == 0 || res.Halted) {
		h.recordFrame(snap)
	}
	if res.Halted {
		h.halted(res, snap)
	}
	h.publish(snap)
}

func (h *Host) halted(res sim.TickResult, snap sim.Snapshot) {
	h.running.Store(false)
	if h.opts.Music != nil {
		h.opts.Music.Stop()
	}
	switch res.Reason {
	case sim.HaltCollision:
		h.collisions++
		h.opts.Metrics.collision()
		c := res.Collision
		h.log.Info("collision", "first", c.FirstID, "second", c.SecondID, "distance", c.Distance, "tick", snap.Tick)
		h.recordEvent(snap, core.EventCollision, c.FirstID, c.SecondID,
			fmt.Sprintf("%s and %s collided at distance %.3f", c.FirstID, c.SecondID, c.Distance))
	case sim.HaltAllStopped:
		kind := core.EventIncomplete
		if res.Complete {
			kind = core.EventComplete
		}
		h.log.Info("all actors stopped", "complete", res.Complete, "tick", snap.Tick)
		h.recordEvent(snap, kind, "", "", "")
	}
	h.endRun()
}

func (h *Host) apply(cmd Command) Result {
	var res Result
	switch cmd.Kind {
	case CmdPlay:
		res.Changed = h.session.Play()
		if res.Changed {
			h.running.Store(true)
			if h.run == nil {
				h.startRun()
			}
			if h.opts.Music != nil {
				h.opts.Music.Play(h.session.Elapsed())
			}
		}
	case CmdPause:
		res.Changed = h.session.Pause()
		if res.Changed {
			h.running.Store(false)
			if h.opts.Music != nil {
				h.opts.Music.Pause(h.session.Elapsed())
			}
		}
	case CmdReset:
		if h.run != nil {
			h.recordEvent(h.session.Snapshot(), core.EventReset, "", "", "")
			h.endRun()
		}
		h.session.Reset()
		h.running.Store(false)
		if h.opts.Music != nil {
			h.opts.Music.Stop()
		}
		res.Changed = true
	case CmdToggle:
		res.ActorID = cmd.ActorID
		res.Changed = h.session.ToggleActor(cmd.ActorID)
	case CmdClick:
		res.ActorID, res.Changed = h.session.Click(cmd.Point)
	case CmdDebug:
		h.session.ToggleDebug()
		res.Changed = true
	case CmdSnap:
	default:
		res.Err = fmt.Errorf("%w: %q", ErrUnknownCommand, cmd.Kind)
		return res
	}

	snap := h.session.Snapshot()
	if res.Changed {
		switch cmd.Kind {
		case CmdPlay:
			h.recordEvent(snap, core.EventPlay, "", "", "")
		case CmdPause:
			h.recordEvent(snap, core.EventPause, "", "", "")
		case CmdToggle, CmdClick:
			h.recordEvent(snap, core.EventToggle, res.ActorID, "", "")
		}
		h.publish(snap)
	}
	res.Snapshot = snap
	return res
}
