package influx

import (
	"compress/gzip"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/bandfield/marchsim/internal/model"
	"github.com/bandfield/marchsim/pkg/core"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readBackup(t *testing.T, path string) []string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	zr, err := gzip.NewReader(f)
	require.NoError(t, err)
	data, err := io.ReadAll(zr)
	require.NoError(t, err)
	return strings.Split(strings.TrimSpace(string(data)), "\n")
}

func TestConnect_Disabled(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)
	viper.Set("influx.enabled", false)

	m := NewManager(zerolog.Nop(), filepath.Join(t.TempDir(), "backup.lp.gz"))
	assert.Error(t, m.Connect(t.Context()))
	assert.False(t, m.IsValid)
}

func TestServerURL(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)
	viper.Set("influx.protocol", "https")
	viper.Set("influx.host", "metrics")
	viper.Set("influx.port", "8086")
	assert.Equal(t, "https://metrics:8086", ServerURL())
}

func TestWritePoint_NotConnected(t *testing.T) {
	m := NewManager(zerolog.Nop(), "")
	err := m.WritePoint(BucketHost, HostPoint(model.HostPerformance{}))
	assert.ErrorIs(t, err, ErrNotConnected)
}

func TestWritePoint_Backup(t *testing.T) {
	path := filepath.Join(t.TempDir(), "backup.lp.gz")
	m := NewManager(zerolog.Nop(), path)
	require.NoError(t, m.OpenBackup())

	perf := model.HostPerformance{
		Time:              time.Unix(100, 0),
		OpenSessions:      2,
		RunningSessions:   1,
		Ticks:             600,
		WriteQueueLengths: model.WriteQueueLengths{ActorStates: 12},
	}
	require.NoError(t, m.WritePoint(BucketHost, HostPoint(perf)))
	require.NoError(t, m.Close())

	lines := readBackup(t, path)
	require.Len(t, lines, 1)
	assert.True(t, strings.HasPrefix(lines[0], "host "))
	assert.Contains(t, lines[0], "open_sessions=2i")
	assert.Contains(t, lines[0], "writequeue_actor_states=12i")
	assert.True(t, strings.HasSuffix(lines[0], " 100000000000"))
}

func TestRecorder_WritesEventsAndSummary(t *testing.T) {
	path := filepath.Join(t.TempDir(), "runs.lp.gz")
	m := NewManager(zerolog.Nop(), path)
	require.NoError(t, m.OpenBackup())
	r := NewRecorder(m)

	// nothing is written outside a run
	require.NoError(t, r.RecordEvent(&core.RunEvent{Kind: core.EventPlay}))

	run := &core.Run{ID: "run-1", SessionID: "s-1", LevelName: "Opener", Author: "dana"}
	require.NoError(t, r.StartRun(run, nil))
	require.NoError(t, r.RecordFrame(&core.Frame{RunID: "run-1"}))
	require.NoError(t, r.RecordEvent(&core.RunEvent{
		RunID: "run-1", Kind: core.EventCollision, ActorID: "1", OtherID: "2", Tick: 30, Time: time.Unix(5, 0),
	}))
	require.NoError(t, r.EndRun(&core.RunSummary{
		RunID: "run-1", HaltReason: "collision", Ticks: 30, Collisions: 1, EndTime: time.Unix(6, 0),
	}))
	require.NoError(t, r.EndRun(&core.RunSummary{RunID: "run-1"}))
	require.NoError(t, m.Close())

	lines := readBackup(t, path)
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[0], "run_event,kind=collision,level=Opener "))
	assert.Contains(t, lines[0], `actor_id="1"`)
	assert.Contains(t, lines[0], `other_id="2"`)
	assert.True(t, strings.HasPrefix(lines[1], "run_summary,author=dana,halt_reason=collision,level=Opener "))
	assert.Contains(t, lines[1], "collisions=1i")
	assert.Contains(t, lines[1], `run_id="run-1"`)
}
