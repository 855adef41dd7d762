package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/bandfield/marchsim/internal/config"
	"github.com/bandfield/marchsim/internal/geo"
	"github.com/bandfield/marchsim/internal/levels"
	"github.com/bandfield/marchsim/internal/logging"
	"github.com/bandfield/marchsim/internal/music"
	"github.com/bandfield/marchsim/internal/sim"
	"github.com/bandfield/marchsim/internal/storage"
	"github.com/bandfield/marchsim/internal/storage/memory"
	"github.com/bandfield/marchsim/pkg/core"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const soloYAML = `name: Solo
author: director
tempo: 120
members:
  - name: Trumpet 1
    category: brass
    start: "10,10"
    end: "14,10"
    notes: [60, 64, 67]
    lengths: [480, 480, 960]
`

const headOnYAML = `name: Head On
members:
  - name: Trumpet 1
    category: brass
    start: "10,10"
    end: "30,10"
  - name: Trumpet 2
    category: brass
    start: "30,10"
    end: "10,10"
`

func writeLevel(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "level.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path
}

func testMapper() geo.Mapper {
	return geo.Mapper{Field: geo.DefaultField, Surface: geo.DefaultSurface}
}

func loadLevel(t *testing.T, body string) core.Level {
	t.Helper()
	l, err := levels.LoadFile(writeLevel(t, body))
	require.NoError(t, err)
	return l
}

func TestHttpToWS(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"http://localhost:5000", "ws://localhost:5000"},
		{"https://gallery.example.com", "wss://gallery.example.com"},
		{"http://localhost:5000/", "ws://localhost:5000"},
		{"https://gallery.example.com/", "wss://gallery.example.com"},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, httpToWS(tt.input))
		})
	}
}

func TestWSURL(t *testing.T) {
	assert.Equal(t, "ws://collector:9000/runs", wsURL(config.WebSocketConfig{URL: "ws://collector:9000/runs"}))
}

func TestSimulateComplete(t *testing.T) {
	level := loadLevel(t, soloYAML)

	out, err := simulate(level, testMapper(), 60, 60, nil)
	require.NoError(t, err)

	assert.False(t, out.TimedOut)
	assert.Equal(t, sim.HaltAllStopped, out.HaltReason)
	assert.True(t, out.Complete)
	assert.Nil(t, out.Collision)
	assert.InDelta(t, 4.0, out.Elapsed, 0.05)
	assert.InDelta(t, 1.0, out.Progress, 1e-9)
	assert.Contains(t, out.String(), "complete in")
}

func TestSimulateCollision(t *testing.T) {
	level := loadLevel(t, headOnYAML)

	out, err := simulate(level, testMapper(), 60, 60, nil)
	require.NoError(t, err)

	assert.Equal(t, sim.HaltCollision, out.HaltReason)
	assert.False(t, out.Complete)
	require.NotNil(t, out.Collision)
	assert.Less(t, out.Elapsed, 10.0, "they meet before the midpoint")
	assert.Contains(t, out.String(), "collision between")
}

func TestSimulateTimeout(t *testing.T) {
	level := loadLevel(t, headOnYAML)

	out, err := simulate(level, testMapper(), 10, 1, nil)
	require.NoError(t, err)

	assert.True(t, out.TimedOut)
	assert.Equal(t, uint64(10), out.Ticks)
	assert.Contains(t, out.String(), "still running")
}

func TestSimulateInvalidTickRate(t *testing.T) {
	_, err := simulate(loadLevel(t, soloYAML), testMapper(), 0, 1, nil)
	assert.Error(t, err)
}

func TestSimulateWritesReplay(t *testing.T) {
	dir := t.TempDir()
	rec := memory.New(config.MemoryConfig{OutputDir: dir})

	out, err := simulate(loadLevel(t, soloYAML), testMapper(), 30, 60, rec)
	require.NoError(t, err)

	require.NotEmpty(t, out.Replay)
	assert.FileExists(t, out.Replay)
	assert.Equal(t, dir, filepath.Dir(out.Replay))

	events := rec.Events()
	require.NotEmpty(t, events)
	assert.Equal(t, core.EventComplete, events[len(events)-1].Kind)

	var buf bytes.Buffer
	require.NoError(t, printOutcome(&buf, out))
	assert.Contains(t, buf.String(), "replay: "+out.Replay)
}

func TestRenderFile(t *testing.T) {
	out := filepath.Join(t.TempDir(), "solo.wav")

	err := renderFile(writeLevel(t, soloYAML), out, music.RenderOptions{SampleRate: 8000, Seconds: 0.5})
	require.NoError(t, err)

	info, err := os.Stat(out)
	require.NoError(t, err)
	assert.Equal(t, int64(44+4000*4), info.Size())
}

func TestRenderFileBadSampleRate(t *testing.T) {
	out := filepath.Join(t.TempDir(), "broken.wav")

	err := renderFile(writeLevel(t, headOnYAML), out, music.RenderOptions{SampleRate: -1})
	require.Error(t, err)
	assert.NoFileExists(t, out)
}

func TestRenderFileMissingLevel(t *testing.T) {
	err := renderFile(filepath.Join(t.TempDir(), "nope.yaml"), filepath.Join(t.TempDir(), "x.wav"), music.RenderOptions{SampleRate: 8000})
	assert.Error(t, err)
}

func TestRecorderFactoryMemory(t *testing.T) {
	f, err := newRecorderFactory(config.StorageConfig{
		Type:   "memory",
		Memory: config.MemoryConfig{OutputDir: t.TempDir()},
	}, logging.NewSlogManager(), nil, nil)
	require.NoError(t, err)
	defer f.Close()

	b, err := f.New("session-1")
	require.NoError(t, err)
	_, ok := b.(storage.Uploadable)
	assert.True(t, ok)
	assert.Empty(t, storage.Reporters(b))
}

func TestRecorderFactoryRejectsUnknownType(t *testing.T) {
	_, err := newRecorderFactory(config.StorageConfig{Type: "tape"}, logging.NewSlogManager(), nil, nil)
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "tape"))
}

func TestRecorderFactoryPostgresNeedsDB(t *testing.T) {
	_, err := newRecorderFactory(config.StorageConfig{Type: "postgres"}, logging.NewSlogManager(), nil, nil)
	assert.Error(t, err)
}

func TestRootCommands(t *testing.T) {
	cmd := rootCmd()
	var names []string
	for _, c := range cmd.Commands() {
		names = append(names, c.Name())
	}
	assert.Subset(t, names, []string{"serve", "simulate", "render", "seed"})
}
