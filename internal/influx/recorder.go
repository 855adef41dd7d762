package influx

import (
	"sync"

	"github.com/bandfield/marchsim/internal/storage"
	"github.com/bandfield/marchsim/pkg/core"
)

// Recorder is a storage backend that writes run events and summaries as
// points. Frames are not written; the time series is per run, not per tick.
type Recorder struct {
	m *Manager

	mu  sync.Mutex
	run *core.Run
}

var _ storage.Backend = (*Recorder)(nil)

// NewRecorder creates a recorder writing through m.
func NewRecorder(m *Manager) *Recorder {
	return &Recorder{m: m}
}

func (r *Recorder) Init() error  { return nil }
func (r *Recorder) Close() error { return nil }

func (r *Recorder) StartRun(run *core.Run, _ []core.ActorInfo) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *run
	r.run = &cp
	return nil
}

func (r *Recorder) EndRun(s *core.RunSummary) error {
	r.mu.Lock()
	run := r.run
	r.run = nil
	r.mu.Unlock()
	if run == nil {
		return nil
	}
	return r.m.WritePoint(BucketRuns, RunPoint(*run, *s))
}

func (r *Recorder) RecordFrame(*core.Frame) error { return nil }

func (r *Recorder) RecordEvent(e *core.RunEvent) error {
	r.mu.Lock()
	run := r.run
	r.mu.Unlock()
	if run == nil {
		return nil
	}
	return r.m.WritePoint(BucketRuns, EventPoint(*run, *e))
}
