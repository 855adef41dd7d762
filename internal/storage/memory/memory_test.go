// internal/storage/memory/memory_test.go
package memory

import (
	"compress/gzip"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/bandfield/marchsim/internal/config"
	v1 "github.com/bandfield/marchsim/internal/storage/memory/export/v1"
	"github.com/bandfield/marchsim/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRun() (*core.Run, []core.ActorInfo) {
	run := &core.Run{
		ID:        "run-1",
		LevelID:   1,
		LevelName: "Test Level: Opener",
		Author:    "Director",
		StartTime: time.Date(2026, 3, 1, 18, 0, 0, 0, time.UTC),
		TickRate:  60,
		Field:     core.Size{Width: 100, Height: 54},
	}
	actors := []core.ActorInfo{
		{ID: "1", Category: core.CategoryBrass, Start: core.Position2D{X: 10, Y: 10}, End: core.Position2D{X: 20, Y: 20}, Speed: 1, Radius: 1},
		{ID: "2", Category: core.CategoryPercussion, Start: core.Position2D{X: 30, Y: 30}, End: core.Position2D{X: 40, Y: 40}, Speed: 1, Radius: 1},
	}
	return run, actors
}

func recordRun(t *testing.T, b *Backend) {
	t.Helper()
	run, actors := testRun()
	require.NoError(t, b.Init())
	require.NoError(t, b.StartRun(run, actors))
	require.NoError(t, b.RecordEvent(&core.RunEvent{RunID: "run-1", Kind: core.EventPlay}))
	for tick := uint64(0); tick < 3; tick++ {
		require.NoError(t, b.RecordFrame(&core.Frame{
			RunID: "run-1",
			Tick:  tick,
			Actors: []core.ActorFrame{
				{ActorID: "1", Position: core.Position2D{X: 10 + float64(tick), Y: 10}, Flag: 1},
				{ActorID: "2", Position: core.Position2D{X: 30, Y: 30 + float64(tick)}, Flag: 1},
				{ActorID: "ghost", Position: core.Position2D{}, Flag: 0},
			},
		}))
	}
	require.NoError(t, b.RecordEvent(&core.RunEvent{RunID: "run-1", Tick: 3, Kind: core.EventComplete}))
}

func TestBackend_RecordsSamplesAndEvents(t *testing.T) {
	b := New(config.MemoryConfig{OutputDir: t.TempDir()})
	recordRun(t, b)

	samples := b.Samples("1")
	require.Len(t, samples, 3)
	assert.Equal(t, core.Position2D{X: 12, Y: 10}, samples[2].Position)
	assert.Nil(t, b.Samples("ghost"))

	events := b.Events()
	require.Len(t, events, 2)
	assert.Equal(t, core.EventComplete, events[1].Kind)
}

func TestBackend_RecordWithoutRun(t *testing.T) {
	b := New(config.MemoryConfig{})
	assert.ErrorIs(t, b.RecordFrame(&core.Frame{}), ErrNoRun)
	assert.ErrorIs(t, b.RecordEvent(&core.RunEvent{}), ErrNoRun)
	assert.ErrorIs(t, b.EndRun(&core.RunSummary{}), ErrNoRun)
}

func TestBackend_EndRunWritesGzipReplay(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested")
	b := New(config.MemoryConfig{OutputDir: dir, CompressOutput: true})
	recordRun(t, b)

	require.NoError(t, b.EndRun(&core.RunSummary{RunID: "run-1", Ticks: 3, Elapsed: 1.5, HaltReason: "allStopped", Complete: true, Progress: 1}))

	path := b.GetExportedFilePath()
	assert.Equal(t, filepath.Join(dir, "Test_Level__Opener_20260301_180000.json.gz"), path)

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	gz, err := gzip.NewReader(f)
	require.NoError(t, err)

	var export v1.Export
	require.NoError(t, json.NewDecoder(gz).Decode(&export))
	assert.Equal(t, "run-1", export.RunID)
	assert.Equal(t, "complete", export.Outcome)
	assert.Equal(t, uint64(3), export.EndTick)
	require.Len(t, export.Actors, 2)
	assert.Len(t, export.Actors[0].Positions, 3)
	assert.Len(t, export.Events, 2)

	meta := b.GetExportMetadata()
	assert.Equal(t, "Test Level: Opener", meta.LevelName)
	assert.Equal(t, "Director", meta.Author)
	assert.Equal(t, 1.5, meta.Duration)
	assert.Equal(t, "complete", meta.Outcome)

	assert.ErrorIs(t, b.RecordFrame(&core.Frame{}), ErrNoRun, "run is closed after export")
}

func TestBackend_EndRunWritesPlainJSON(t *testing.T) {
	dir := t.TempDir()
	b := New(config.MemoryConfig{OutputDir: dir})
	recordRun(t, b)
	require.NoError(t, b.EndRun(&core.RunSummary{HaltReason: "collision"}))

	path := b.GetExportedFilePath()
	assert.Equal(t, ".json", filepath.Ext(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var export v1.Export
	require.NoError(t, json.Unmarshal(data, &export))
	assert.Equal(t, "collision", export.Outcome)
}

func TestBackend_StartRunResets(t *testing.T) {
	b := New(config.MemoryConfig{OutputDir: t.TempDir()})
	recordRun(t, b)

	run, actors := testRun()
	run.ID = "run-2"
	require.NoError(t, b.StartRun(run, actors[:1]))
	assert.Empty(t, b.Samples("1"))
	assert.Nil(t, b.Samples("2"))
	assert.Empty(t, b.Events())
}
