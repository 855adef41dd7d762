package database

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/bandfield/marchsim/internal/model"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T) *Manager {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	db, err := GetSqliteDBStandalone(path)
	require.NoError(t, err)
	m := NewManager(zerolog.Nop())
	m.DB = db
	m.SqlDB, err = db.DB()
	require.NoError(t, err)
	t.Cleanup(func() { _ = m.Close() })
	return m
}

func TestPostgresDSN(t *testing.T) {
	t.Cleanup(viper.Reset)
	viper.Set("db.host", "pg")
	viper.Set("db.port", "5433")
	viper.Set("db.username", "band")
	viper.Set("db.password", "secret")
	viper.Set("db.database", "marchsim")

	assert.Equal(t, "host=pg port=5433 user=band password=secret dbname=marchsim sslmode=disable", PostgresDSN())
}

func TestSetup_MigratesSqlite(t *testing.T) {
	m := openTestDB(t)
	require.NoError(t, m.Setup())

	assert.True(t, m.DB.Migrator().HasTable(&model.Level{}))
	assert.True(t, m.DB.Migrator().HasTable(&model.ActorState{}))
}

func TestDumpMemoryDBToDisk(t *testing.T) {
	m := openTestDB(t)
	require.NoError(t, m.Setup())
	require.NoError(t, m.DB.Create(&model.Level{Name: "Opener", Author: "a"}).Error)

	out := filepath.Join(t.TempDir(), "dump.db")
	require.NoError(t, os.WriteFile(out, []byte("stale"), 0644))
	m.SqliteFilePath = out
	require.NoError(t, m.DumpMemoryToDisk())

	restored, err := GetSqliteDBStandalone(out)
	require.NoError(t, err)
	var count int64
	require.NoError(t, restored.Model(&model.Level{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestDumpMemoryDBToDisk_NoPath(t *testing.T) {
	m := openTestDB(t)
	assert.ErrorIs(t, m.DumpMemoryToDisk(), ErrNoDumpPath)
}
