package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// FileName is the config file looked up in the config directory.
const FileName = "marchsim.cfg.json"

// MemoryConfig holds in-memory/JSON replay storage settings
type MemoryConfig struct {
	OutputDir      string `json:"outputDir" mapstructure:"outputDir"`
	CompressOutput bool   `json:"compressOutput" mapstructure:"compressOutput"`
}

// SQLiteConfig holds sqlite storage backend settings
type SQLiteConfig struct {
	Path         string        `json:"path" mapstructure:"path"`
	DumpInterval time.Duration `json:"dumpInterval" mapstructure:"dumpInterval"`
}

// WebSocketConfig holds remote collector settings
type WebSocketConfig struct {
	URL    string `json:"url" mapstructure:"url"`
	Secret string `json:"secret" mapstructure:"secret"`
}

// StorageConfig selects and configures the run recording backend
type StorageConfig struct {
	Type      string          `json:"type" mapstructure:"type"`
	Memory    MemoryConfig    `json:"memory" mapstructure:"memory"`
	SQLite    SQLiteConfig    `json:"sqlite" mapstructure:"sqlite"`
	WebSocket WebSocketConfig `json:"websocket" mapstructure:"websocket"`
	Upload    bool            `json:"upload" mapstructure:"upload"`
}

// OTelConfig holds OpenTelemetry settings
type OTelConfig struct {
	Enabled      bool          `json:"enabled" mapstructure:"enabled"`
	ServiceName  string        `json:"serviceName" mapstructure:"serviceName"`
	BatchTimeout time.Duration `json:"batchTimeout" mapstructure:"batchTimeout"`
	Endpoint     string        `json:"endpoint" mapstructure:"endpoint"`
	Insecure     bool          `json:"insecure" mapstructure:"insecure"`
}

// FieldConfig holds the field size in field units and the display surface in pixels
type FieldConfig struct {
	Width         float64
	Height        float64
	SurfaceWidth  float64
	SurfaceHeight float64
}

// PlaybackConfig controls playback hosts
type PlaybackConfig struct {
	TickRate    int `json:"tickRate" mapstructure:"tickRate"`
	RecordEvery int `json:"recordEvery" mapstructure:"recordEvery"`
	MaxSessions int `json:"maxSessions" mapstructure:"maxSessions"`
}

// ServerConfig controls the HTTP server
type ServerConfig struct {
	Address         string        `json:"address" mapstructure:"address"`
	ShutdownTimeout time.Duration `json:"shutdownTimeout" mapstructure:"shutdownTimeout"`
	MonitorInterval time.Duration `json:"monitorInterval" mapstructure:"monitorInterval"`
}

// MusicConfig controls audio rendering
type MusicConfig struct {
	SampleRate int `json:"sampleRate" mapstructure:"sampleRate"`
	Tempo      int `json:"tempo" mapstructure:"tempo"`
}

// SetDefaults registers default values for every known key.
func SetDefaults() {
	viper.SetDefault("logLevel", "info")
	viper.SetDefault("logsDir", "./marchlogs")

	viper.SetDefault("api.serverUrl", "http://localhost:5000")
	viper.SetDefault("api.apiKey", "")

	viper.SetDefault("db.host", "localhost")
	viper.SetDefault("db.port", "5432")
	viper.SetDefault("db.username", "postgres")
	viper.SetDefault("db.password", "postgres")
	viper.SetDefault("db.database", "marchsim")

	viper.SetDefault("influx.enabled", false)
	viper.SetDefault("influx.host", "localhost")
	viper.SetDefault("influx.port", "8086")
	viper.SetDefault("influx.protocol", "http")
	viper.SetDefault("influx.token", "supersecrettoken")
	viper.SetDefault("influx.org", "marchsim")

	viper.SetDefault("graylog.enabled", false)
	viper.SetDefault("graylog.address", "localhost:12201")

	viper.SetDefault("storage.type", "memory")
	viper.SetDefault("storage.memory.outputDir", "./recordings")
	viper.SetDefault("storage.memory.compressOutput", true)
	viper.SetDefault("storage.sqlite.path", "./marchsim.db")
	viper.SetDefault("storage.sqlite.dumpInterval", "3m")
	viper.SetDefault("storage.websocket.url", "")
	viper.SetDefault("storage.websocket.secret", "")
	viper.SetDefault("storage.upload", false)

	viper.SetDefault("otel.enabled", false)
	viper.SetDefault("otel.serviceName", "marchsim")
	viper.SetDefault("otel.batchTimeout", "5s")
	viper.SetDefault("otel.endpoint", "")
	viper.SetDefault("otel.insecure", true)

	viper.SetDefault("field.width", 100.0)
	viper.SetDefault("field.height", 54.0)
	viper.SetDefault("surface.width", 800.0)
	viper.SetDefault("surface.height", 432.0)

	viper.SetDefault("playback.tickRate", 60)
	viper.SetDefault("playback.recordEvery", 6)
	viper.SetDefault("playback.maxSessions", 64)

	viper.SetDefault("server.address", ":8080")
	viper.SetDefault("server.shutdownTimeout", "10s")
	viper.SetDefault("server.monitorInterval", "1s")

	viper.SetDefault("music.sampleRate", 44100)
	viper.SetDefault("music.tempo", 120)
}

// Load reads configuration from JSON file and sets default values.
// configDir is the directory containing the config file.
func Load(configDir string) error {
	SetDefaults()

	viper.SetConfigName(FileName)
	viper.AddConfigPath(configDir)
	viper.SetConfigType("json")

	err := viper.ReadInConfig()
	if err != nil {
		return fmt.Errorf("error reading config file: %w", err)
	}

	return nil
}

// GetString returns a string config value.
func GetString(key string) string {
	return viper.GetString(key)
}

// GetInt returns an int config value.
func GetInt(key string) int {
	return viper.GetInt(key)
}

// GetBool returns a bool config value.
func GetBool(key string) bool {
	return viper.GetBool(key)
}

// GetFloat64 returns a float config value.
func GetFloat64(key string) float64 {
	return viper.GetFloat64(key)
}

// GetStorageConfig returns the storage section.
func GetStorageConfig() StorageConfig {
	return StorageConfig{
		Type: viper.GetString("storage.type"),
		Memory: MemoryConfig{
			OutputDir:      viper.GetString("storage.memory.outputDir"),
			CompressOutput: viper.GetBool("storage.memory.compressOutput"),
		},
		SQLite: SQLiteConfig{
			Path:         viper.GetString("storage.sqlite.path"),
			DumpInterval: viper.GetDuration("storage.sqlite.dumpInterval"),
		},
		WebSocket: WebSocketConfig{
			URL:    viper.GetString("storage.websocket.url"),
			Secret: viper.GetString("storage.websocket.secret"),
		},
		Upload: viper.GetBool("storage.upload"),
	}
}

// GetOTelConfig returns the otel section.
func GetOTelConfig() OTelConfig {
	return OTelConfig{
		Enabled:      viper.GetBool("otel.enabled"),
		ServiceName:  viper.GetString("otel.serviceName"),
		BatchTimeout: viper.GetDuration("otel.batchTimeout"),
		Endpoint:     viper.GetString("otel.endpoint"),
		Insecure:     viper.GetBool("otel.insecure"),
	}
}

// GetFieldConfig returns the field and surface dimensions.
func GetFieldConfig() FieldConfig {
	return FieldConfig{
		Width:         viper.GetFloat64("field.width"),
		Height:        viper.GetFloat64("field.height"),
		SurfaceWidth:  viper.GetFloat64("surface.width"),
		SurfaceHeight: viper.GetFloat64("surface.height"),
	}
}

// GetPlaybackConfig returns the playback section.
func GetPlaybackConfig() PlaybackConfig {
	return PlaybackConfig{
		TickRate:    viper.GetInt("playback.tickRate"),
		RecordEvery: viper.GetInt("playback.recordEvery"),
		MaxSessions: viper.GetInt("playback.maxSessions"),
	}
}

// GetServerConfig returns the server section.
func GetServerConfig() ServerConfig {
	return ServerConfig{
		Address:         viper.GetString("server.address"),
		ShutdownTimeout: viper.GetDuration("server.shutdownTimeout"),
		MonitorInterval: viper.GetDuration("server.monitorInterval"),
	}
}

// GetMusicConfig returns the music section.
func GetMusicConfig() MusicConfig {
	return MusicConfig{
		SampleRate: viper.GetInt("music.sampleRate"),
		Tempo:      viper.GetInt("music.tempo"),
	}
}
