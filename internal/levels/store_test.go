package levels

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/bandfield/marchsim/internal/cache"
	"github.com/bandfield/marchsim/internal/database"
	"github.com/bandfield/marchsim/internal/model"
	"github.com/bandfield/marchsim/pkg/core"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) (*Store, *cache.LevelCache) {
	t.Helper()
	db, err := database.GetSqliteDBStandalone(filepath.Join(t.TempDir(), "levels.db"))
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db, zerolog.Nop()))
	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	c := cache.NewLevelCache()
	return NewStore(db, c), c
}

func ptr[T any](v T) *T { return &v }

func TestCreateLevel_WithMembers(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	l, err := s.SeedTestLevel(ctx)
	require.NoError(t, err)

	assert.NotZero(t, l.ID)
	assert.Equal(t, "Test Level", l.Name)
	require.Len(t, l.BandMembers, 3)
	assert.Equal(t, core.Position2D{X: 10, Y: 10}, l.BandMembers[0].Start)
	assert.Equal(t, core.Position2D{X: 60, Y: 60}, l.BandMembers[2].End)
	assert.Less(t, l.BandMembers[0].ID, l.BandMembers[1].ID)

	// default tracks are generated per category
	require.Len(t, l.BandMembers[2].MIDITracks, 1)
	assert.Equal(t, []int{35, 38, 42, 46}, l.BandMembers[2].MIDITracks[0].Data.Notes)
	assert.Equal(t, 115, l.BandMembers[2].MIDITracks[0].InstrumentNumber)
}

func TestCreateLevel_Invalid(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	_, err := s.CreateLevel(ctx, core.Level{Author: "a"})
	assert.ErrorIs(t, err, ErrInvalidLevel)

	_, err = s.CreateLevel(ctx, core.Level{Name: "n"})
	assert.ErrorIs(t, err, ErrInvalidLevel)

	bad := TestLevel()
	bad.BandMembers[1].Speed = 0
	_, err = s.CreateLevel(ctx, bad)
	assert.ErrorIs(t, err, ErrInvalidLevel)

	var count int64
	require.NoError(t, s.DB().Model(&model.Level{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestGetLevel_NotFound(t *testing.T) {
	s, _ := newTestStore(t)
	_, err := s.GetLevel(context.Background(), 42)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestGetLevel_UsesCache(t *testing.T) {
	s, c := newTestStore(t)
	ctx := context.Background()
	l, err := s.SeedTestLevel(ctx)
	require.NoError(t, err)

	_, err = s.GetLevel(ctx, l.ID)
	require.NoError(t, err)
	hits, _ := c.Stats()
	assert.GreaterOrEqual(t, hits, 1)

	// writes invalidate
	_, err = s.UpdateLevel(ctx, l.ID, LevelUpdate{Name: ptr("Renamed")})
	require.NoError(t, err)
	got, err := s.GetLevel(ctx, l.ID)
	require.NoError(t, err)
	assert.Equal(t, "Renamed", got.Name)
}

func TestGetLevel_CacheSurvivesPlays(t *testing.T) {
	s, c := newTestStore(t)
	ctx := context.Background()
	l, err := s.SeedTestLevel(ctx)
	require.NoError(t, err)
	hitsBefore, missesBefore := c.Stats()

	// opening a session reads the level and counts a play
	for i := 0; i < 5; i++ {
		_, err := s.GetLevel(ctx, l.ID)
		require.NoError(t, err)
		require.NoError(t, s.IncrementPlays(ctx, l.ID))
	}

	hits, misses := c.Stats()
	assert.Equal(t, missesBefore, misses, "CreateLevel already cached the level")
	assert.Equal(t, hitsBefore+5, hits)

	got, err := s.GetLevel(ctx, l.ID)
	require.NoError(t, err)
	assert.Equal(t, 5, got.Plays)
}

func TestListLevels(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	_, err := s.SeedTestLevel(ctx)
	require.NoError(t, err)
	_, err = s.CreateLevel(ctx, core.Level{Name: "Empty", Author: "a"})
	require.NoError(t, err)

	levels, err := s.ListLevels(ctx)
	require.NoError(t, err)
	require.Len(t, levels, 2)
	assert.Equal(t, "Empty", levels[0].Name)
	assert.Len(t, levels[1].BandMembers, 3)
}

func TestUpdateLevel(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	l, err := s.SeedTestLevel(ctx)
	require.NoError(t, err)

	got, err := s.UpdateLevel(ctx, l.ID, LevelUpdate{Tempo: ptr(96), SongTitle: ptr("Fanfare")})
	require.NoError(t, err)
	assert.Equal(t, 96, got.Tempo)
	assert.Equal(t, "Fanfare", got.SongTitle)
	assert.Equal(t, "Test Level", got.Name)

	_, err = s.UpdateLevel(ctx, l.ID, LevelUpdate{})
	assert.ErrorIs(t, err, ErrNoChanges)

	_, err = s.UpdateLevel(ctx, l.ID, LevelUpdate{Name: ptr("")})
	assert.ErrorIs(t, err, ErrInvalidLevel)

	_, err = s.UpdateLevel(ctx, 999, LevelUpdate{Tempo: ptr(1)})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDeleteLevel_Cascades(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	l, err := s.SeedTestLevel(ctx)
	require.NoError(t, err)

	require.NoError(t, s.DeleteLevel(ctx, l.ID))

	_, err = s.GetLevel(ctx, l.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	var members, tracks int64
	require.NoError(t, s.DB().Model(&model.BandMember{}).Count(&members).Error)
	require.NoError(t, s.DB().Model(&model.MIDITrack{}).Count(&tracks).Error)
	assert.Zero(t, members)
	assert.Zero(t, tracks)

	assert.ErrorIs(t, s.DeleteLevel(ctx, l.ID), ErrNotFound)
}

func TestIncrementPlays(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	l, err := s.SeedTestLevel(ctx)
	require.NoError(t, err)

	require.NoError(t, s.IncrementPlays(ctx, l.ID))
	require.NoError(t, s.IncrementPlays(ctx, l.ID))
	got, err := s.GetLevel(ctx, l.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, got.Plays)

	assert.ErrorIs(t, s.IncrementPlays(ctx, 999), ErrNotFound)
}
