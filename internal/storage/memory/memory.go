// internal/storage/memory/memory.go
package memory

import (
	"errors"
	"sync"

	"github.com/bandfield/marchsim/internal/config"
	"github.com/bandfield/marchsim/internal/storage"
	v1 "github.com/bandfield/marchsim/internal/storage/memory/export/v1"
	"github.com/bandfield/marchsim/pkg/core"
)

// ErrNoRun is returned when recording without a started run.
var ErrNoRun = errors.New("no run in progress")

var (
	_ storage.Backend    = (*Backend)(nil)
	_ storage.Uploadable = (*Backend)(nil)
)

// Backend keeps a run in memory and exports it as a JSON replay on EndRun
type Backend struct {
	cfg config.MemoryConfig

	run     *core.Run
	summary *core.RunSummary
	actors  []*v1.ActorRecord
	byID    map[string]*v1.ActorRecord
	events  []core.RunEvent

	lastExportPath     string
	lastExportMetadata core.UploadMetadata

	mu sync.RWMutex
}

// New creates a new memory backend
func New(cfg config.MemoryConfig) *Backend {
	return &Backend{
		cfg:  cfg,
		byID: make(map[string]*v1.ActorRecord),
	}
}

// Init initializes the backend
func (b *Backend) Init() error {
	return nil
}

// Close cleans up resources
func (b *Backend) Close() error {
	return nil
}

// StartRun begins recording a new run, discarding any unfinished one
func (b *Backend) StartRun(run *core.Run, actors []core.ActorInfo) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.run = run
	b.summary = nil
	b.actors = make([]*v1.ActorRecord, 0, len(actors))
	b.byID = make(map[string]*v1.ActorRecord, len(actors))
	b.events = nil

	for _, a := range actors {
		rec := &v1.ActorRecord{Info: a}
		b.actors = append(b.actors, rec)
		b.byID[a.ID] = rec
	}
	return nil
}

// RecordFrame appends a sample for every known actor in the frame
func (b *Backend) RecordFrame(f *core.Frame) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.run == nil {
		return ErrNoRun
	}
	for _, af := range f.Actors {
		rec, ok := b.byID[af.ActorID]
		if !ok {
			continue // silently ignore actors not announced in StartRun
		}
		rec.States = append(rec.States, v1.Sample{Tick: f.Tick, Position: af.Position, Flag: af.Flag})
	}
	return nil
}

// RecordEvent records a run event
func (b *Backend) RecordEvent(e *core.RunEvent) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.run == nil {
		return ErrNoRun
	}
	b.events = append(b.events, *e)
	return nil
}

// EndRun finalizes and exports the run
func (b *Backend) EndRun(summary *core.RunSummary) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.run == nil {
		return ErrNoRun
	}
	b.summary = summary
	err := b.exportJSON()
	b.run = nil
	return err
}

// Samples returns a copy of the recorded samples of one actor.
func (b *Backend) Samples(actorID string) []v1.Sample {
	b.mu.RLock()
	defer b.mu.RUnlock()

	rec, ok := b.byID[actorID]
	if !ok {
		return nil
	}
	out := make([]v1.Sample, len(rec.States))
	copy(out, rec.States)
	return out
}

// Events returns a copy of the recorded events.
func (b *Backend) Events() []core.RunEvent {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make([]core.RunEvent, len(b.events))
	copy(out, b.events)
	return out
}

// GetExportedFilePath returns the path of the last exported replay
func (b *Backend) GetExportedFilePath() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.lastExportPath
}

// GetExportMetadata describes the last exported replay
func (b *Backend) GetExportMetadata() core.UploadMetadata {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.lastExportMetadata
}
