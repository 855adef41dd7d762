package playback

import (
	"log/slog"
	"sync/atomic"

	"github.com/bandfield/marchsim/internal/queue"
	"github.com/bandfield/marchsim/internal/storage"
	"github.com/bandfield/marchsim/pkg/core"
)

// DefaultRecordBacklog is how many frames may wait for a slow recorder
// before new frames are dropped.
const DefaultRecordBacklog = 4096

// recordOp is one backend call. Exactly one field group is set.
type recordOp struct {
	run     *core.Run
	actors  []core.ActorInfo
	frame   *core.Frame
	event   *core.RunEvent
	summary *core.RunSummary
}

// recordWriter feeds a storage backend from its own goroutine, so backends
// that wait on the network never hold up ticks or commands. Operations reach
// the backend in the order they were queued. Only frames are dropped when
// the backlog is full; runs, events and summaries are always kept.
type recordWriter struct {
	backend storage.Backend
	log     *slog.Logger
	backlog int64

	ops     *queue.Queue[recordOp]
	frames  atomic.Int64
	dropped atomic.Uint64

	wake chan struct{}
	stop chan struct{}
	done chan struct{}
}

func newRecordWriter(b storage.Backend, backlog int, log *slog.Logger) *recordWriter {
	if backlog <= 0 {
		backlog = DefaultRecordBacklog
	}
	return &recordWriter{
		backend: b,
		log:     log,
		backlog: int64(backlog),
		ops:     queue.New[recordOp](),
		wake:    make(chan struct{}, 1),
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
}

func (w *recordWriter) start() {
	go w.loop()
}

// close writes what is still queued and stops the goroutine.
func (w *recordWriter) close() {
	close(w.stop)
	<-w.done
}

func (w *recordWriter) push(op recordOp) {
	w.ops.Push(op)
	select {
	case w.wake <- struct{}{}:
	default:
	}
}

func (w *recordWriter) startRun(run *core.Run, actors []core.ActorInfo) {
	w.push(recordOp{run: run, actors: actors})
}

func (w *recordWriter) endRun(s *core.RunSummary) {
	w.push(recordOp{summary: s})
}

func (w *recordWriter) event(e *core.RunEvent) {
	w.push(recordOp{event: e})
}

// frame queues f unless the backlog is full.
func (w *recordWriter) frame(f *core.Frame) {
	if w.frames.Load() >= w.backlog {
		w.dropped.Add(1)
		return
	}
	w.frames.Add(1)
	w.push(recordOp{frame: f})
}

// pending is the number of queued operations.
func (w *recordWriter) pending() int {
	return w.ops.Len()
}

func (w *recordWriter) loop() {
	defer close(w.done)
	for {
		select {
		case <-w.wake:
			w.drain()
		case <-w.stop:
			w.drain()
			return
		}
	}
}

func (w *recordWriter) drain() {
	for _, op := range w.ops.Take(0) {
		w.write(op)
	}
}

func (w *recordWriter) write(op recordOp) {
	switch {
	case op.run != nil:
		if err := w.backend.StartRun(op.run, op.actors); err != nil {
			w.log.Error("failed to start run recording", "run", op.run.ID, "error", err)
		}
	case op.frame != nil:
		w.frames.Add(-1)
		if err := w.backend.RecordFrame(op.frame); err != nil {
			w.log.Warn("failed to record frame", "tick", op.frame.Tick, "error", err)
		}
	case op.event != nil:
		if err := w.backend.RecordEvent(op.event); err != nil {
			w.log.Warn("failed to record event", "kind", op.event.Kind, "error", err)
		}
	case op.summary != nil:
		if err := w.backend.EndRun(op.summary); err != nil {
			w.log.Error("failed to end run recording", "run", op.summary.RunID, "error", err)
		}
	}
}
