package main

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/bandfield/marchsim/internal/api"
	"github.com/bandfield/marchsim/internal/config"
	"github.com/bandfield/marchsim/internal/influx"
	"github.com/bandfield/marchsim/internal/logging"
	"github.com/bandfield/marchsim/internal/storage"
	"github.com/bandfield/marchsim/internal/storage/memory"
	pgstorage "github.com/bandfield/marchsim/internal/storage/postgres"
	sqlitestorage "github.com/bandfield/marchsim/internal/storage/sqlite"
	wsstorage "github.com/bandfield/marchsim/internal/storage/websocket"
	"github.com/bandfield/marchsim/pkg/core"

	"github.com/spf13/viper"
	"gorm.io/gorm"
)

const (
	uploadTimeout      = 2 * time.Minute
	healthcheckTimeout = 5 * time.Second
)

// recorderFactory builds one storage backend per playback session.
// Postgres and sqlite sessions share a single connection; sqlite additionally
// owns the dump loop for the whole process.
type recorderFactory struct {
	cfg    config.StorageConfig
	logs   *logging.SlogManager
	log    *slog.Logger
	db     *gorm.DB
	sqlite *sqlitestorage.Backend
	influx *influx.Manager
	upload *api.Client

	uploads sync.WaitGroup
}

func newRecorderFactory(cfg config.StorageConfig, logs *logging.SlogManager, db *gorm.DB, im *influx.Manager) (*recorderFactory, error) {
	f := &recorderFactory{
		cfg:    cfg,
		logs:   logs,
		log:    logs.Logger(),
		db:     db,
		influx: im,
	}

	switch cfg.Type {
	case "sqlite":
		path := cfg.SQLite.Path
		if path == "" {
			path = filepath.Join(viper.GetString("logsDir"), fmt.Sprintf("%s_%s.db", AppName, SessionStartTime.Format("20060102_150405")))
		}
		backend, err := sqlitestorage.New(sqlitestorage.Config{
			DumpInterval: cfg.SQLite.DumpInterval,
			DumpPath:     path,
		}, logs)
		if err != nil {
			return nil, fmt.Errorf("failed to create SQLite backend: %w", err)
		}
		if err := backend.Init(); err != nil {
			return nil, fmt.Errorf("failed to initialize SQLite backend: %w", err)
		}
		f.sqlite = backend
		f.log.Info("SQLite storage backend initialized", "dumpPath", path)
	case "postgres":
		if db == nil {
			return nil, fmt.Errorf("postgres storage needs a database connection")
		}
		f.log.Info("Postgres storage backend initialized")
	case "websocket":
		f.log.Info("WebSocket storage backend initialized", "url", wsURL(cfg.WebSocket))
	case "memory", "":
		f.log.Info("Memory storage backend initialized", "outputDir", cfg.Memory.OutputDir)
	default:
		return nil, fmt.Errorf("unknown storage type %q", cfg.Type)
	}

	if cfg.Upload {
		f.upload = api.New(viper.GetString("api.serverUrl"), viper.GetString("api.apiKey"))
		go f.checkUpload()
	}
	return f, nil
}

// checkUpload warns early when the gallery server is unreachable; uploads are
// still attempted at the end of each run.
func (f *recorderFactory) checkUpload() {
	ctx, cancel := context.WithTimeout(context.Background(), healthcheckTimeout)
	defer cancel()
	if err := f.upload.Healthcheck(ctx); err != nil {
		f.log.Warn("Gallery server unreachable, uploads will likely fail", "error", err)
		return
	}
	f.log.Info("Gallery server reachable, replays will be uploaded")
}

// New returns an initialised backend for one session.
func (f *recorderFactory) New(sessionID string) (storage.Backend, error) {
	backend, err := f.create()
	if err != nil {
		return nil, err
	}
	if f.influx != nil {
		backend = storage.Multi{backend, influx.NewRecorder(f.influx)}
	}
	if err := backend.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize storage for session %s: %w", sessionID, err)
	}
	f.log.Debug("Session recorder ready", "session", sessionID, "type", f.cfg.Type)
	return backend, nil
}

func (f *recorderFactory) create() (storage.Backend, error) {
	switch f.cfg.Type {
	case "postgres":
		return pgstorage.New(pgstorage.Dependencies{DB: f.db, LogManager: f.logs}), nil
	case "sqlite":
		return pgstorage.New(pgstorage.Dependencies{DB: f.sqlite.DB(), LogManager: f.logs}), nil
	case "websocket":
		return wsstorage.New(wsstorage.Config{
			URL:    wsURL(f.cfg.WebSocket),
			Secret: f.cfg.WebSocket.Secret,
		}, f.log), nil
	case "memory", "":
		mem := memory.New(f.cfg.Memory)
		if f.upload == nil {
			return mem, nil
		}
		return &uploader{Backend: mem, replay: mem, factory: f}, nil
	default:
		return nil, fmt.Errorf("unknown storage type %q", f.cfg.Type)
	}
}

// Close waits for pending uploads and writes the final sqlite dump.
func (f *recorderFactory) Close() error {
	f.uploads.Wait()
	if f.sqlite != nil {
		return f.sqlite.Close()
	}
	return nil
}

func (f *recorderFactory) uploadReplay(u storage.Uploadable) {
	path := u.GetExportedFilePath()
	if path == "" {
		return
	}
	meta := u.GetExportMetadata()
	f.uploads.Add(1)
	go func() {
		defer f.uploads.Done()
		ctx, cancel := context.WithTimeout(context.Background(), uploadTimeout)
		defer cancel()
		if err := f.upload.Upload(ctx, path, meta); err != nil {
			f.log.Error("Failed to upload replay", "path", path, "error", err)
			return
		}
		f.log.Info("Uploaded replay", "path", path, "level", meta.LevelName)
	}()
}

// uploader sends every exported replay to the gallery server.
type uploader struct {
	storage.Backend
	replay  storage.Uploadable
	factory *recorderFactory
}

func (u *uploader) EndRun(summary *core.RunSummary) error {
	if err := u.Backend.EndRun(summary); err != nil {
		return err
	}
	u.factory.uploadReplay(u.replay)
	return nil
}

// wsURL derives the collector address from the websocket section, falling
// back to the api server.
func wsURL(cfg config.WebSocketConfig) string {
	if cfg.URL != "" {
		return cfg.URL
	}
	return httpToWS(viper.GetString("api.serverUrl")) + "/api"
}

// httpToWS converts an HTTP(S) URL to a WebSocket URL.
func httpToWS(httpURL string) string {
	s := strings.TrimRight(httpURL, "/")
	s = strings.Replace(s, "https://", "wss://", 1)
	s = strings.Replace(s, "http://", "ws://", 1)
	return s
}
