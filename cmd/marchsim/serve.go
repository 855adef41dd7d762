package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/bandfield/marchsim/internal/cache"
	"github.com/bandfield/marchsim/internal/config"
	"github.com/bandfield/marchsim/internal/database"
	"github.com/bandfield/marchsim/internal/dispatcher"
	"github.com/bandfield/marchsim/internal/handlers"
	"github.com/bandfield/marchsim/internal/httpapi"
	"github.com/bandfield/marchsim/internal/influx"
	"github.com/bandfield/marchsim/internal/levels"
	"github.com/bandfield/marchsim/internal/logging"
	"github.com/bandfield/marchsim/internal/monitor"
	"github.com/bandfield/marchsim/internal/playback"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func serveCmd() *cobra.Command {
	var addr string
	var seed bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the playback server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			if addr != "" {
				viper.Set("server.address", addr)
			}
			return runServe(ctx, seed)
		},
	}

	cmd.Flags().StringVarP(&addr, "addr", "a", "", "listen address, overrides server.address")
	cmd.Flags().BoolVar(&seed, "seed", false, "insert the demo level when the database has none")
	return cmd
}

// openDatabase connects to Postgres or falls back to in-memory SQLite, and
// migrates the schema.
func openDatabase() (*database.Manager, error) {
	dbm := database.NewManager(ZLogger.With().Str("component", "database").Logger())
	if err := dbm.Connect(); err != nil {
		return nil, err
	}
	if dbm.ShouldSaveLocal {
		dbm.SqliteFilePath = filepath.Join(viper.GetString("logsDir"), fmt.Sprintf("%s_levels_%s.db", AppName, SessionStartTime.Format("20060102_150405")))
	}
	if err := dbm.Setup(); err != nil {
		dbm.Close()
		return nil, err
	}
	return dbm, nil
}

func runServe(ctx context.Context, seed bool) error {
	serverCfg := config.GetServerConfig()
	playbackCfg := config.GetPlaybackConfig()

	mapper, err := fieldMapper()
	if err != nil {
		return fmt.Errorf("invalid field config: %w", err)
	}

	dbm, err := openDatabase()
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer func() {
		if dbm.ShouldSaveLocal {
			if err := dbm.DumpMemoryToDisk(); err != nil {
				Logger.Error("Failed to dump database", "error", err)
			}
		}
		dbm.Close()
	}()

	levelCache := cache.NewLevelCache()
	store := levels.NewStore(dbm.DB, levelCache)
	if seed {
		existing, err := store.ListLevels(ctx)
		if err != nil {
			return err
		}
		if len(existing) == 0 {
			l, err := store.SeedTestLevel(ctx)
			if err != nil {
				return fmt.Errorf("failed to seed level: %w", err)
			}
			Logger.Info("Seeded demo level", "id", l.ID, "name", l.Name)
		}
	}

	var im *influx.Manager
	if viper.GetBool("influx.enabled") {
		backup := filepath.Join(viper.GetString("logsDir"), fmt.Sprintf("influx_backup_%s.log.gz", SessionStartTime.Format("20060102_150405")))
		im = influx.NewManager(ZLogger.With().Str("component", "influx").Logger(), backup)
		if err := im.Connect(ctx); err != nil {
			Logger.Warn("InfluxDB disabled", "error", err)
			im = nil
		} else {
			defer im.Close()
		}
	}

	recorders, err := newRecorderFactory(config.GetStorageConfig(), SlogManager, dbm.DB, im)
	if err != nil {
		return err
	}
	defer func() {
		if err := recorders.Close(); err != nil {
			Logger.Error("Failed to close storage", "error", err)
		}
	}()

	metrics, err := playback.NewMetrics()
	if err != nil {
		Logger.Warn("Playback metrics unavailable", "error", err)
	}

	registry := playback.NewRegistry(ctx, playback.RegistryConfig{
		Mapper:      mapper,
		TickRate:    playbackCfg.TickRate,
		RecordEvery: playbackCfg.RecordEvery,
		MaxSessions: playbackCfg.MaxSessions,
		Logger:      Logger,
		Metrics:     metrics,
		NewRecorder: recorders.New,
		PlayMusic:   true,
	})
	activeRegistry.Store(registry)
	defer func() {
		activeRegistry.Store(nil)
		if err := registry.Shutdown(); err != nil {
			Logger.Error("Failed to shut down sessions", "error", err)
		}
	}()

	eventDispatcher, err := dispatcher.New(logging.NewDispatcherLogger(ZLogger.With().Str("component", "dispatcher").Logger()))
	if err != nil {
		return fmt.Errorf("failed to create dispatcher: %w", err)
	}
	defer eventDispatcher.Close()

	handlers.NewService(handlers.Dependencies{
		Registry:   registry,
		Levels:     store,
		LogManager: SlogManager,
	}).Register(eventDispatcher)
	Logger.Info("Registered commands", "commands", eventDispatcher.Commands())

	monitorService := monitor.NewService(monitor.Dependencies{
		DB:              dbm.DB,
		LogManager:      SlogManager,
		Sessions:        registry,
		Cache:           levelCache,
		Influx:          im,
		StatusDir:       viper.GetString("logsDir"),
		Interval:        serverCfg.MonitorInterval,
		IsDatabaseValid: func() bool { return dbm.IsValid },
	})
	if err := monitorService.Start(); err != nil {
		Logger.Warn("Failed to start monitor", "error", err)
	}
	defer monitorService.Stop()

	api := httpapi.New(httpapi.Dependencies{
		Levels:     store,
		Registry:   registry,
		Dispatcher: eventDispatcher,
		Logger:     Logger,
		SampleRate: config.GetMusicConfig().SampleRate,
		Version:    Version,
	})
	srv := &http.Server{
		Addr:              serverCfg.Address,
		Handler:           api,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(_ net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		Logger.Info("Listening", "address", serverCfg.Address)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	Logger.Info("Shutting down", "timeout", serverCfg.ShutdownTimeout)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), serverCfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	return nil
}
