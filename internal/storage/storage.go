// internal/storage/storage.go
package storage

import (
	"errors"
	"time"

	"github.com/bandfield/marchsim/internal/model"
	"github.com/bandfield/marchsim/pkg/core"
)

// Backend records playback runs. A backend holds at most one open run at a
// time; hosts that record concurrently each get their own backend.
type Backend interface {
	// Lifecycle
	Init() error
	Close() error

	// Run management
	StartRun(run *core.Run, actors []core.ActorInfo) error
	EndRun(summary *core.RunSummary) error

	// Recording
	RecordFrame(f *core.Frame) error
	RecordEvent(e *core.RunEvent) error
}

// Uploadable is an optional interface for storage backends that produce
// replay files suitable for upload to the gallery server.
type Uploadable interface {
	GetExportedFilePath() string
	GetExportMetadata() core.UploadMetadata
}

// QueueReporter is an optional interface for backends that write
// asynchronously through queues.
type QueueReporter interface {
	QueueLengths() model.WriteQueueLengths
	LastWriteDuration() time.Duration
}

// Reporters returns b if it reports queue lengths, or the members of a
// Multi that do.
func Reporters(b Backend) []QueueReporter {
	if m, ok := b.(Multi); ok {
		var out []QueueReporter
		for _, member := range m {
			out = append(out, Reporters(member)...)
		}
		return out
	}
	if r, ok := b.(QueueReporter); ok {
		return []QueueReporter{r}
	}
	return nil
}

// Multi fans every call out to several backends. Errors are joined; a
// failing backend does not stop the others.
type Multi []Backend

var _ Backend = Multi(nil)

func (m Multi) each(fn func(Backend) error) error {
	var errs []error
	for _, b := range m {
		if err := fn(b); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m Multi) Init() error  { return m.each(Backend.Init) }
func (m Multi) Close() error { return m.each(Backend.Close) }

func (m Multi) StartRun(run *core.Run, actors []core.ActorInfo) error {
	return m.each(func(b Backend) error { return b.StartRun(run, actors) })
}

func (m Multi) EndRun(summary *core.RunSummary) error {
	return m.each(func(b Backend) error { return b.EndRun(summary) })
}

func (m Multi) RecordFrame(f *core.Frame) error {
	return m.each(func(b Backend) error { return b.RecordFrame(f) })
}

func (m Multi) RecordEvent(e *core.RunEvent) error {
	return m.each(func(b Backend) error { return b.RecordEvent(e) })
}

// Uploadables returns the members that produce uploadable files.
func (m Multi) Uploadables() []Uploadable {
	var out []Uploadable
	for _, b := range m {
		if u, ok := b.(Uploadable); ok {
			out = append(out, u)
		}
	}
	return out
}
