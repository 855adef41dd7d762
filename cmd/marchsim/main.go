package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync/atomic"
	"time"

	"github.com/bandfield/marchsim/internal/config"
	"github.com/bandfield/marchsim/internal/geo"
	"github.com/bandfield/marchsim/internal/logging"
	intOtel "github.com/bandfield/marchsim/internal/otel"
	"github.com/bandfield/marchsim/internal/playback"
	"github.com/bandfield/marchsim/pkg/core"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// module defs - Version and BuildDate can be set at build time via ldflags
var (
	Version   string = "0.0.1"
	BuildDate string = "unknown"

	AppName string = "marchsim"
)

// global variables
var (
	// ConfigDir holds marchsim.cfg.json
	ConfigDir string

	// LogFile is the per-process log file, nil when logging to stdout
	LogFile *os.File

	// SlogManager handles all slog-based logging
	SlogManager *logging.SlogManager

	// Logger is the slog logger (convenience reference)
	Logger *slog.Logger

	// ZLogger feeds the zerolog-based components (database, influx, dispatcher)
	ZLogger zerolog.Logger

	// OTelProvider handles OpenTelemetry
	OTelProvider *intOtel.Provider

	SessionStartTime time.Time = time.Now()

	// activeRegistry is set while serve runs so log records carry the open session count
	activeRegistry atomic.Pointer[playback.Registry]
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var logLevel string
	var stdout bool

	cmd := &cobra.Command{
		Use:           AppName,
		Short:         "Marching band formation playback server and tools",
		Version:       fmt.Sprintf("%s (%s)", Version, BuildDate),
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return setup(logLevel, stdout)
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			teardown()
		},
	}

	cmd.PersistentFlags().StringVarP(&ConfigDir, "config", "c", ".", "directory containing "+config.FileName)
	cmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override the configured log level")
	cmd.PersistentFlags().BoolVar(&stdout, "stdout", false, "log to stdout instead of the logs directory")

	cmd.AddCommand(serveCmd())
	cmd.AddCommand(simulateCmd())
	cmd.AddCommand(renderCmd())
	cmd.AddCommand(seedCmd())
	return cmd
}

// setup loads the config and wires logging the same way for every command.
func setup(logLevel string, stdout bool) error {
	SlogManager = logging.NewSlogManager()
	SlogManager.Setup(nil, "info", nil)
	Logger = SlogManager.Logger()

	if err := config.Load(ConfigDir); err != nil {
		Logger.Warn("Failed to load config, using defaults!", "error", err)
	} else {
		Logger.Debug("Loaded config", "file", viper.ConfigFileUsed())
	}
	if logLevel != "" {
		viper.Set("logLevel", logLevel)
	}

	var out io.Writer = os.Stdout
	if !stdout {
		logsDir := viper.GetString("logsDir")
		if err := os.MkdirAll(logsDir, 0755); err != nil {
			return fmt.Errorf("create logs dir: %w", err)
		}
		path := logging.LogFilePath(logsDir, AppName, SessionStartTime)
		if _, err := os.Stat(path); err == nil {
			_ = os.Rename(path, path+".old")
		}
		f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)
		if err != nil {
			return fmt.Errorf("open log file %s: %w", path, err)
		}
		LogFile = f
		out = f
	}

	if viper.GetBool("graylog.enabled") {
		if err := SlogManager.EnableGraylog(viper.GetString("graylog.address")); err != nil {
			Logger.Warn("Failed to connect to Graylog", "error", err)
		}
	}

	otelCfg := config.GetOTelConfig()
	provider, err := intOtel.New(intOtel.Config{
		Enabled:        otelCfg.Enabled,
		ServiceName:    otelCfg.ServiceName,
		ServiceVersion: Version,
		BatchTimeout:   otelCfg.BatchTimeout,
		LogWriter:      out,
		Endpoint:       otelCfg.Endpoint,
		Insecure:       otelCfg.Insecure,
	})
	if err != nil {
		Logger.Warn("Failed to set up OpenTelemetry, continuing without it", "error", err)
		provider, _ = intOtel.New(intOtel.Config{})
	}
	OTelProvider = provider

	SlogManager.SetContextProvider(func() []slog.Attr {
		if r := activeRegistry.Load(); r != nil {
			return []slog.Attr{slog.Int("sessions", r.OpenCount())}
		}
		return nil
	})
	if stdout {
		SlogManager.Setup(nil, viper.GetString("logLevel"), OTelProvider.LoggerProvider())
	} else {
		SlogManager.Setup(LogFile, viper.GetString("logLevel"), OTelProvider.LoggerProvider())
	}
	Logger = SlogManager.Logger()

	lvl, err := zerolog.ParseLevel(viper.GetString("logLevel"))
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	ZLogger = zerolog.New(out).Level(lvl).With().Timestamp().Logger()

	Logger.Info("Starting", "app", AppName, "version", Version, "buildDate", BuildDate)
	return nil
}

func teardown() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if OTelProvider != nil {
		if err := OTelProvider.Shutdown(ctx); err != nil {
			Logger.Warn("OpenTelemetry shutdown failed", "error", err)
		}
	}
	if SlogManager != nil {
		_ = SlogManager.Flush(ctx)
	}
	if LogFile != nil {
		LogFile.Close()
	}
}

// fieldMapper builds the coordinate mapper from the field section.
func fieldMapper() (geo.Mapper, error) {
	fc := config.GetFieldConfig()
	return geo.NewMapper(
		core.Size{Width: fc.Width, Height: fc.Height},
		core.Size{Width: fc.SurfaceWidth, Height: fc.SurfaceHeight},
	)
}
