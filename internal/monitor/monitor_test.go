package monitor

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/bandfield/marchsim/internal/database"
	"github.com/bandfield/marchsim/internal/logging"
	"github.com/bandfield/marchsim/internal/model"
	"github.com/bandfield/marchsim/internal/playback"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type fakeSessions struct {
	stats playback.Stats
}

func (f fakeSessions) Stats() playback.Stats { return f.stats }
func (f fakeSessions) WriteStats() (model.WriteQueueLengths, time.Duration) {
	return model.WriteQueueLengths{ActorStates: 5, PlaybackEvents: 1}, 2500 * time.Microsecond
}

func newLogManager() *logging.SlogManager {
	lm := logging.NewSlogManager()
	lm.Setup(nil, "error", nil)
	return lm
}

func newDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := database.GetSqliteDBStandalone(filepath.Join(t.TempDir(), "monitor.db"))
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db, zerolog.Nop()))
	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })
	return db
}

type fakeCache struct{}

func (fakeCache) Len() int                  { return 2 }
func (fakeCache) Stats() (hits, misses int) { return 7, 3 }

func TestSample(t *testing.T) {
	s := NewService(Dependencies{
		LogManager: newLogManager(),
		Sessions: fakeSessions{stats: playback.Stats{
			Open: 3, Running: 2, Ticks: 90, Dropped: 4, RecordPending: 12, RecordDropped: 6,
		}},
		Cache: fakeCache{},
	})

	perf := s.Sample()
	assert.Equal(t, 3, perf.OpenSessions)
	assert.Equal(t, 2, perf.RunningSessions)
	assert.Equal(t, uint64(90), perf.Ticks)
	assert.Equal(t, uint64(4), perf.FramesDropped)
	assert.Equal(t, 12, perf.RecordPending)
	assert.Equal(t, uint64(6), perf.RecordDropped)
	assert.Equal(t, 2, perf.CachedLevels)
	assert.Equal(t, 7, perf.CacheHits)
	assert.Equal(t, 3, perf.CacheMisses)
	assert.Equal(t, 5, perf.WriteQueueLengths.ActorStates)
	assert.InDelta(t, 2.5, perf.LastWriteDurationMs, 1e-6)
}

func TestRecord_WritesStatusAndRow(t *testing.T) {
	db := newDB(t)
	s := NewService(Dependencies{DB: db, LogManager: newLogManager(), Sessions: fakeSessions{}})

	f, err := os.Create(filepath.Join(t.TempDir(), StatusFileName))
	require.NoError(t, err)
	defer f.Close()

	perf := model.HostPerformance{Time: time.Now(), OpenSessions: 1, Ticks: 10}
	s.Record(context.Background(), f, perf)
	s.Record(context.Background(), f, perf)

	data, err := os.ReadFile(f.Name())
	require.NoError(t, err)
	assert.Equal(t, 1, strings.Count(string(data), `"open": 1`))

	var count int64
	require.NoError(t, db.Model(&model.HostPerformance{}).Count(&count).Error)
	assert.Equal(t, int64(2), count)
}

func TestRecord_SkipsRowWithoutSessions(t *testing.T) {
	db := newDB(t)
	s := NewService(Dependencies{DB: db, LogManager: newLogManager(), Sessions: fakeSessions{}})

	s.Record(context.Background(), nil, model.HostPerformance{Time: time.Now()})

	var count int64
	require.NoError(t, db.Model(&model.HostPerformance{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestStartStop(t *testing.T) {
	dir := t.TempDir()
	s := NewService(Dependencies{
		LogManager: newLogManager(),
		Sessions:   fakeSessions{stats: playback.Stats{Open: 1}},
		StatusDir:  dir,
		Interval:   5 * time.Millisecond,
	})

	require.NoError(t, s.Start())
	assert.True(t, s.IsRunning())
	require.NoError(t, s.Start())

	require.Eventually(t, func() bool {
		data, err := os.ReadFile(filepath.Join(dir, StatusFileName))
		return err == nil && strings.Contains(string(data), "lastWriteMs")
	}, time.Second, 5*time.Millisecond)

	s.Stop()
	assert.False(t, s.IsRunning())
	s.Stop()
}
