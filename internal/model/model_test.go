package model

import (
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestTableNames(t *testing.T) {
	tests := []struct {
		name     string
		model    interface{ TableName() string }
		expected string
	}{
		{"Level", &Level{}, "levels"},
		{"BandMember", &BandMember{}, "band_members"},
		{"MIDITrack", &MIDITrack{}, "midi_tracks"},
		{"PlaybackRun", &PlaybackRun{}, "playback_runs"},
		{"RunActor", &RunActor{}, "run_actors"},
		{"ActorState", &ActorState{}, "actor_states"},
		{"PlaybackEvent", &PlaybackEvent{}, "playback_events"},
		{"HostPerformance", &HostPerformance{}, "host_performances"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.model.TableName())
		})
	}
}

func TestDatabaseModels_CoversAll(t *testing.T) {
	assert.Len(t, DatabaseModels, len(LevelModels)+len(RecordingModels))
}

func TestAutoMigrate_SQLite(t *testing.T) {
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{SkipDefaultTransaction: true})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(DatabaseModels...))
	for _, m := range DatabaseModels {
		assert.True(t, db.Migrator().HasTable(m))
	}
}
