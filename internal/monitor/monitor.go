package monitor

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/bandfield/marchsim/internal/influx"
	"github.com/bandfield/marchsim/internal/logging"
	"github.com/bandfield/marchsim/internal/model"
	"github.com/bandfield/marchsim/internal/playback"

	"gorm.io/gorm"
)

// StatusFileName is rewritten every interval with the current host status.
const StatusFileName = "status.txt"

// Sessions reports session and recorder counters.
type Sessions interface {
	Stats() playback.Stats
	WriteStats() (model.WriteQueueLengths, time.Duration)
}

// LevelCache reports the level cache size and its hit counts.
type LevelCache interface {
	Len() int
	Stats() (hits, misses int)
}

// Dependencies holds all dependencies for the monitor service
type Dependencies struct {
	DB              *gorm.DB
	LogManager      *logging.SlogManager
	Sessions        Sessions
	Cache           LevelCache // optional
	Influx          *influx.Manager
	StatusDir       string
	Interval        time.Duration
	IsDatabaseValid func() bool
}

// Service samples host performance on an interval.
type Service struct {
	deps      Dependencies
	isRunning bool
	mu        sync.RWMutex
	stopChan  chan struct{}
	done      chan struct{}
}

// NewService creates a new monitor service
func NewService(deps Dependencies) *Service {
	if deps.Interval <= 0 {
		deps.Interval = time.Second
	}
	if deps.IsDatabaseValid == nil {
		deps.IsDatabaseValid = func() bool { return deps.DB != nil }
	}
	return &Service{deps: deps}
}

// IsRunning returns whether the status monitor is running
func (s *Service) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// Sample collects the current host performance.
func (s *Service) Sample() model.HostPerformance {
	stats := s.deps.Sessions.Stats()
	queues, lastWrite := s.deps.Sessions.WriteStats()
	perf := model.HostPerformance{
		Time:                time.Now(),
		OpenSessions:        stats.Open,
		RunningSessions:     stats.Running,
		Ticks:               stats.Ticks,
		FramesDropped:       stats.Dropped,
		RecordPending:       stats.RecordPending,
		RecordDropped:       stats.RecordDropped,
		WriteQueueLengths:   queues,
		LastWriteDurationMs: float32(lastWrite.Microseconds()) / 1000,
	}
	if s.deps.Cache != nil {
		perf.CachedLevels = s.deps.Cache.Len()
		perf.CacheHits, perf.CacheMisses = s.deps.Cache.Stats()
	}
	return perf
}

// StatusLines renders a sample for the status file.
func StatusLines(perf model.HostPerformance) []string {
	sessions, err := json.MarshalIndent(map[string]any{
		"open":          perf.OpenSessions,
		"running":       perf.RunningSessions,
		"ticks":         perf.Ticks,
		"framesDropped": perf.FramesDropped,
		"recordPending": perf.RecordPending,
		"recordDropped": perf.RecordDropped,
		"cachedLevels":  perf.CachedLevels,
		"cacheHits":     perf.CacheHits,
		"cacheMisses":   perf.CacheMisses,
	}, "", "  ")
	if err != nil {
		sessions = []byte(fmt.Sprintf(`{"error": "%s"}`, err))
	}
	queues, err := json.MarshalIndent(perf.WriteQueueLengths, "", "  ")
	if err != nil {
		queues = []byte(fmt.Sprintf(`{"error": "%s"}`, err))
	}
	return []string{
		perf.Time.Format(time.RFC3339),
		string(sessions),
		string(queues),
		fmt.Sprintf("lastWriteMs: %.3f", perf.LastWriteDurationMs),
	}
}

// Record writes a sample to the status file, the database and influx.
// Only the status file is written while no session is open.
func (s *Service) Record(ctx context.Context, statusFile *os.File, perf model.HostPerformance) {
	logger := s.deps.LogManager.Logger()

	if statusFile != nil {
		if err := rewrite(statusFile, StatusLines(perf)); err != nil {
			logger.Error("Error writing status file", "error", err)
		}
	}
	if perf.OpenSessions == 0 {
		return
	}

	if s.deps.IsDatabaseValid() {
		if err := s.deps.DB.WithContext(ctx).Create(&perf).Error; err != nil {
			logger.Error("Error writing host performance", "error", err)
		}
	}
	if s.deps.Influx != nil {
		if err := s.deps.Influx.WritePoint(influx.BucketHost, influx.HostPoint(perf)); err != nil {
			logger.Warn("Error writing host performance point", "error", err)
		}
	}
}

func rewrite(f *os.File, lines []string) error {
	if err := f.Truncate(0); err != nil {
		return err
	}
	if _, err := f.Seek(0, 0); err != nil {
		return err
	}
	for _, line := range lines {
		if _, err := f.WriteString(line + "\n"); err != nil {
			return err
		}
	}
	return nil
}

// Start starts the status monitor goroutine
func (s *Service) Start() error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = true
	s.stopChan = make(chan struct{})
	s.done = make(chan struct{})
	stop, done := s.stopChan, s.done
	s.mu.Unlock()

	logger := s.deps.LogManager.Logger()
	var statusFile *os.File
	if s.deps.StatusDir != "" {
		f, err := os.Create(filepath.Join(s.deps.StatusDir, StatusFileName))
		if err != nil {
			logger.Error("Error creating status file", "error", err)
		} else {
			statusFile = f
		}
	}

	go func() {
		defer close(done)
		defer func() {
			if statusFile != nil {
				statusFile.Close()
			}
			s.mu.Lock()
			s.isRunning = false
			s.mu.Unlock()
		}()

		logger.Debug("Starting status monitor", "interval", s.deps.Interval)
		ticker := time.NewTicker(s.deps.Interval)
		defer ticker.Stop()

		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				s.Record(context.Background(), statusFile, s.Sample())
			}
		}
	}()

	return nil
}

// Stop stops the status monitor and waits for it to exit.
func (s *Service) Stop() {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return
	}
	s.isRunning = false
	close(s.stopChan)
	done := s.done
	s.mu.Unlock()
	<-done
}
