// Package postgres implements the storage.Backend interface using GORM/PostgreSQL
// with internal queues and a background DB writer goroutine.
package postgres

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bandfield/marchsim/internal/database"
	"github.com/bandfield/marchsim/internal/logging"
	"github.com/bandfield/marchsim/internal/model"
	"github.com/bandfield/marchsim/internal/model/convert"
	"github.com/bandfield/marchsim/internal/queue"
	"github.com/bandfield/marchsim/pkg/core"
	"github.com/rs/zerolog"

	"gorm.io/gorm"
)

// DefaultWriteInterval is how often queued rows are flushed.
const DefaultWriteInterval = 2 * time.Second

var ErrNoRun = errors.New("no run started")

// Dependencies holds all dependencies for the GORM storage backend.
type Dependencies struct {
	DB            *gorm.DB
	LogManager    *logging.SlogManager
	WriteInterval time.Duration
}

// queues holds the write queues for batch DB insertion.
type queues struct {
	ActorStates *queue.Queue[model.ActorState]
	Events      *queue.Queue[model.PlaybackEvent]
}

// Queue limits. Past them the oldest rows are dropped rather than letting a
// slow database grow the process without bound.
const (
	MaxQueuedActorStates = 500_000
	MaxQueuedEvents      = 10_000
)

func newQueues() *queues {
	return &queues{
		ActorStates: queue.NewBounded[model.ActorState](MaxQueuedActorStates),
		Events:      queue.NewBounded[model.PlaybackEvent](MaxQueuedEvents),
	}
}

// Backend implements storage.Backend using GORM with queue-based batch writes.
type Backend struct {
	deps   Dependencies
	queues *queues
	runID  atomic.Uint64

	mu  sync.Mutex
	run *model.PlaybackRun

	flushMu       sync.Mutex
	lastWriteNano atomic.Int64

	stopChan chan struct{}
	done     chan struct{}
}

// New creates a new GORM storage backend.
func New(deps Dependencies) *Backend {
	if deps.LogManager == nil {
		deps.LogManager = logging.NewSlogManager()
	}
	if deps.WriteInterval <= 0 {
		deps.WriteInterval = DefaultWriteInterval
	}
	return &Backend{
		deps:   deps,
		queues: newQueues(),
	}
}

// Init runs schema migration and starts the DB writer goroutine.
// If no DB was injected via Dependencies, it creates its own postgres connection.
func (b *Backend) Init() error {
	if b.deps.DB == nil {
		db, err := database.GetPostgresDBStandalone()
		if err != nil {
			return fmt.Errorf("failed to connect to postgres: %w", err)
		}
		sqlDB, err := db.DB()
		if err != nil {
			return fmt.Errorf("failed to access sql interface: %w", err)
		}
		if err = sqlDB.Ping(); err != nil {
			return fmt.Errorf("failed to validate connection: %w", err)
		}
		sqlDB.SetMaxOpenConns(10)
		b.deps.DB = db
	}

	if err := database.Migrate(b.deps.DB, zerolog.Nop()); err != nil {
		return fmt.Errorf("failed to setup DB: %w", err)
	}
	b.deps.LogManager.WriteLog("postgres:Init", "Database setup complete", "INFO")

	b.stopChan = make(chan struct{})
	b.done = make(chan struct{})
	go b.writerLoop()
	return nil
}

// Close stops the writer goroutine and flushes what is still queued.
func (b *Backend) Close() error {
	if b.stopChan == nil {
		return nil
	}
	close(b.stopChan)
	<-b.done
	b.stopChan = nil
	return b.Flush()
}

// DB returns the connection the backend writes to.
func (b *Backend) DB() *gorm.DB {
	return b.deps.DB
}

// StartRun inserts the run and its actors synchronously so queued states
// can reference the run id.
func (b *Backend) StartRun(run *core.Run, actors []core.ActorInfo) error {
	if b.deps.DB == nil {
		return fmt.Errorf("start run %s: database not initialized", run.ID)
	}
	row := convert.CoreToRun(*run, actors)
	if err := b.deps.DB.Create(&row).Error; err != nil {
		return fmt.Errorf("failed to insert run %s: %w", run.ID, err)
	}

	b.mu.Lock()
	b.run = &row
	b.mu.Unlock()
	b.runID.Store(uint64(row.ID))
	return nil
}

// EndRun flushes queued rows and stores the summary on the run.
func (b *Backend) EndRun(summary *core.RunSummary) error {
	b.mu.Lock()
	run := b.run
	b.run = nil
	b.mu.Unlock()
	if run == nil {
		return ErrNoRun
	}

	flushErr := b.Flush()
	b.runID.Store(0)

	convert.ApplySummary(run, *summary)
	err := b.deps.DB.Model(&model.PlaybackRun{ID: run.ID}).Select(
		"end_time", "ticks", "elapsed", "halt_reason", "complete", "progress", "collisions",
	).Updates(run).Error
	if err != nil {
		return fmt.Errorf("failed to update run %s: %w", run.RunUUID, err)
	}
	return flushErr
}

// RecordFrame converts a frame to actor state rows and queues them.
func (b *Backend) RecordFrame(f *core.Frame) error {
	id := uint(b.runID.Load())
	if id == 0 {
		return ErrNoRun
	}
	b.queues.ActorStates.Push(convert.CoreToActorStates(id, *f)...)
	return nil
}

// RecordEvent converts and queues a run event.
func (b *Backend) RecordEvent(e *core.RunEvent) error {
	id := uint(b.runID.Load())
	if id == 0 {
		return ErrNoRun
	}
	b.queues.Events.Push(convert.CoreToEvent(id, *e))
	return nil
}

// QueueLengths reports how many rows wait to be written.
func (b *Backend) QueueLengths() model.WriteQueueLengths {
	return model.WriteQueueLengths{
		ActorStates:    b.queues.ActorStates.Len(),
		PlaybackEvents: b.queues.Events.Len(),
	}
}

// Dropped is the number of rows discarded because a queue was full.
func (b *Backend) Dropped() uint64 {
	return b.queues.ActorStates.Dropped() + b.queues.Events.Dropped()
}

// LastWriteDuration is the duration of the most recent flush.
func (b *Backend) LastWriteDuration() time.Duration {
	return time.Duration(b.lastWriteNano.Load())
}

// Flush writes every queued row now.
func (b *Backend) Flush() error {
	if b.deps.DB == nil {
		return nil
	}
	b.flushMu.Lock()
	defer b.flushMu.Unlock()

	start := time.Now()
	log := b.deps.LogManager.WriteLog
	err := errors.Join(
		writeQueue(b.deps.DB, b.queues.ActorStates, "actor states", log),
		writeQueue(b.deps.DB, b.queues.Events, "playback events", log),
	)
	b.lastWriteNano.Store(int64(time.Since(start)))
	return err
}

// writeQueue writes all items from a queue to the database in a transaction.
// On failure the items are put back for the next cycle.
func writeQueue[T any](db *gorm.DB, q *queue.Queue[T], name string, log func(string, string, string)) error {
	if q.Empty() {
		return nil
	}

	items := q.Take(0)
	tx := db.Begin()
	if err := tx.CreateInBatches(&items, 1000).Error; err != nil {
		log(":DB:WRITER:", fmt.Sprintf("Error creating %s: %v", name, err), "ERROR")
		tx.Rollback()
		q.Requeue(items...)
		return fmt.Errorf("failed to write %s: %w", name, err)
	}
	return tx.Commit().Error
}

// writerLoop periodically drains queues into the DB until Close.
func (b *Backend) writerLoop() {
	defer close(b.done)
	ticker := time.NewTicker(b.deps.WriteInterval)
	defer ticker.Stop()

	for {
		select {
		case <-b.stopChan:
			return
		case <-ticker.C:
			_ = b.Flush()
		}
	}
}
