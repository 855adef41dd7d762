package handlers

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/bandfield/marchsim/internal/cache"
	"github.com/bandfield/marchsim/internal/database"
	"github.com/bandfield/marchsim/internal/dispatcher"
	"github.com/bandfield/marchsim/internal/geo"
	"github.com/bandfield/marchsim/internal/levels"
	"github.com/bandfield/marchsim/internal/logging"
	"github.com/bandfield/marchsim/internal/playback"
	"github.com/bandfield/marchsim/pkg/core"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testMapper = geo.Mapper{Field: geo.DefaultField, Surface: geo.DefaultSurface}

type fixture struct {
	svc      *Service
	d        *dispatcher.Dispatcher
	store    *levels.Store
	registry *playback.Registry
	level    core.Level
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db, err := database.GetSqliteDBStandalone(filepath.Join(t.TempDir(), "handlers.db"))
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db, zerolog.Nop()))
	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	store := levels.NewStore(db, cache.NewLevelCache())
	level, err := store.SeedTestLevel(context.Background())
	require.NoError(t, err)

	registry := playback.NewRegistry(context.Background(), playback.RegistryConfig{Mapper: testMapper, TickRate: 200})
	t.Cleanup(func() { _ = registry.Shutdown() })

	logManager := logging.NewSlogManager()
	logManager.Setup(nil, "error", nil)

	d, err := dispatcher.New(logging.NewDispatcherLogger(zerolog.Nop()))
	require.NoError(t, err)
	t.Cleanup(d.Close)

	svc := NewService(Dependencies{Registry: registry, Levels: store, LogManager: logManager})
	svc.Register(d)
	return &fixture{svc: svc, d: d, store: store, registry: registry, level: level}
}

func (f *fixture) dispatch(t *testing.T, cmd string, args ...string) (any, error) {
	t.Helper()
	return f.d.Dispatch(dispatcher.Event{Command: cmd, Args: args})
}

func (f *fixture) open(t *testing.T) string {
	t.Helper()
	out, err := f.dispatch(t, CmdOpen, fmt.Sprint(f.level.ID))
	require.NoError(t, err)
	id, ok := out.(string)
	require.True(t, ok)
	return id
}

func TestRegister_AllCommands(t *testing.T) {
	f := newFixture(t)
	assert.Equal(t, []string{
		CmdClick, CmdClose, CmdDebug, CmdOpen, CmdPause, CmdPlay, CmdReset, CmdSessions, CmdSnapshot, CmdToggle,
	}, f.d.Commands())
}

func TestOpenSession_CountsPlay(t *testing.T) {
	f := newFixture(t)
	id := f.open(t)
	assert.NotEmpty(t, id)

	l, err := f.store.GetLevel(context.Background(), f.level.ID)
	require.NoError(t, err)
	assert.Equal(t, f.level.Plays+1, l.Plays)

	out, err := f.dispatch(t, CmdSessions)
	require.NoError(t, err)
	list := out.([]playback.SessionInfo)
	require.Len(t, list, 1)
	assert.Equal(t, id, list[0].ID)
}

func TestOpenSession_BadArgs(t *testing.T) {
	f := newFixture(t)

	_, err := f.dispatch(t, CmdOpen)
	assert.ErrorIs(t, err, ErrMissingArgument)

	_, err = f.dispatch(t, CmdOpen, "abc")
	assert.Error(t, err)

	_, err = f.dispatch(t, CmdOpen, "9999")
	assert.ErrorIs(t, err, levels.ErrNotFound)
}

func TestPlayPause(t *testing.T) {
	f := newFixture(t)
	id := f.open(t)

	out, err := f.dispatch(t, CmdPlay, id)
	require.NoError(t, err)
	res := out.(playback.Result)
	assert.True(t, res.Changed)
	assert.True(t, res.Snapshot.Running)

	out, err = f.dispatch(t, CmdPause, id)
	require.NoError(t, err)
	assert.False(t, out.(playback.Result).Snapshot.Running)

	out, err = f.dispatch(t, CmdReset, id)
	require.NoError(t, err)
	assert.Zero(t, out.(playback.Result).Snapshot.Tick)
}

func TestToggleAndClick(t *testing.T) {
	f := newFixture(t)
	id := f.open(t)

	out, err := f.dispatch(t, CmdSnapshot, id)
	require.NoError(t, err)
	first := out.(playback.Result).Snapshot.Actors[0]

	out, err = f.dispatch(t, CmdToggle, id, first.ID)
	require.NoError(t, err)
	assert.True(t, out.(playback.Result).Changed)

	_, err = f.dispatch(t, CmdToggle, id)
	assert.ErrorIs(t, err, ErrMissingArgument)

	click := fmt.Sprintf("%g,%g", first.Display.X, first.Display.Y)
	out, err = f.dispatch(t, CmdClick, id, click)
	require.NoError(t, err)
	res := out.(playback.Result)
	assert.True(t, res.Changed)
	assert.Equal(t, first.ID, res.ActorID)

	_, err = f.dispatch(t, CmdClick, id, "nowhere")
	assert.ErrorIs(t, err, geo.ErrInvalidCoordinates)
}

func TestDebugToggles(t *testing.T) {
	f := newFixture(t)
	id := f.open(t)

	out, err := f.dispatch(t, CmdDebug, id)
	require.NoError(t, err)
	assert.True(t, out.(playback.Result).Snapshot.Debug)
}

func TestUnknownSession(t *testing.T) {
	f := newFixture(t)

	_, err := f.dispatch(t, CmdPlay, "missing")
	assert.ErrorIs(t, err, playback.ErrSessionNotFound)

	_, err = f.dispatch(t, CmdPlay)
	assert.ErrorIs(t, err, ErrMissingArgument)
}

func TestCloseSession(t *testing.T) {
	f := newFixture(t)
	id := f.open(t)

	out, err := f.dispatch(t, CmdClose, id)
	require.NoError(t, err)
	assert.Equal(t, "ok", out)

	_, err = f.dispatch(t, CmdClose, id)
	assert.ErrorIs(t, err, playback.ErrSessionNotFound)
	assert.Empty(t, f.registry.List())
}
