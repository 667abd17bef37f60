package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// ConfigFileName is looked up in the directory passed to Load.
const ConfigFileName = "wsiview.cfg.json"

// EnvPrefix prefixes every environment override, e.g. WSIVIEW_LOGLEVEL.
const EnvPrefix = "WSIVIEW"

// TileServerConfig holds tile server client settings
type TileServerConfig struct {
	BaseURL    string        `json:"baseUrl" mapstructure:"baseUrl"`
	Timeout    time.Duration `json:"timeout" mapstructure:"timeout"`
	TileFormat string        `json:"tileFormat" mapstructure:"tileFormat"`
}

// ViewerConfig holds viewport sizing and zoom limits
type ViewerConfig struct {
	Width         float64 `json:"width" mapstructure:"width"`
	Height        float64 `json:"height" mapstructure:"height"`
	MinZoomLog2   float64 `json:"minZoomLog2" mapstructure:"minZoomLog2"`
	MaxZoomLog2   float64 `json:"maxZoomLog2" mapstructure:"maxZoomLog2"`
	DefaultZoom   float64 `json:"defaultZoom" mapstructure:"defaultZoom"`
	ZoomPerScroll float64 `json:"zoomPerScroll" mapstructure:"zoomPerScroll"`
	PanelWidth    float64 `json:"panelWidth" mapstructure:"panelWidth"`
	PanelHeight   float64 `json:"panelHeight" mapstructure:"panelHeight"`
}

// SQLiteConfig holds SQLite annotation store settings
type SQLiteConfig struct {
	Path string `json:"path" mapstructure:"path"`
}

// PostgresConfig holds Postgres annotation store settings
type PostgresConfig struct {
	Host     string `json:"host" mapstructure:"host"`
	Port     string `json:"port" mapstructure:"port"`
	Username string `json:"username" mapstructure:"username"`
	Password string `json:"password" mapstructure:"password"`
	Database string `json:"database" mapstructure:"database"`
}

// DSN returns the libpq connection string.
func (c PostgresConfig) DSN() string {
	return fmt.Sprintf(`host=%s port=%s user=%s password=%s dbname=%s sslmode=disable`,
		c.Host, c.Port, c.Username, c.Password, c.Database)
}

// AnnotationConfig selects and configures the annotation source
type AnnotationConfig struct {
	Type           string         `json:"type" mapstructure:"type"`
	MarkersPath    string         `json:"markersPath" mapstructure:"markersPath"`
	TumorAreasPath string         `json:"tumorAreasPath" mapstructure:"tumorAreasPath"`
	SQLite         SQLiteConfig   `json:"sqlite" mapstructure:"sqlite"`
	Postgres       PostgresConfig `json:"postgres" mapstructure:"postgres"`
}

// StreamConfig holds view-state streaming settings
type StreamConfig struct {
	Enabled bool   `json:"enabled" mapstructure:"enabled"`
	URL     string `json:"url" mapstructure:"url"`
	Secret  string `json:"secret" mapstructure:"secret"`
}

// OTelConfig holds OpenTelemetry settings
type OTelConfig struct {
	Enabled      bool          `json:"enabled" mapstructure:"enabled"`
	ServiceName  string        `json:"serviceName" mapstructure:"serviceName"`
	BatchTimeout time.Duration `json:"batchTimeout" mapstructure:"batchTimeout"`
	Endpoint     string        `json:"endpoint" mapstructure:"endpoint"`
	Insecure     bool          `json:"insecure" mapstructure:"insecure"`
}

// LoadEnv loads .env files into the process environment. Missing files are
// skipped; with no paths, ./.env is tried.
func LoadEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if _, err := os.Stat(p); errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			return fmt.Errorf("error loading env file %s: %w", p, err)
		}
	}
	return nil
}

// Load sets default values, binds environment overrides and reads the
// optional JSON config file from configDir.
func Load(configDir string) error {
	// Set default values
	viper.SetDefault("logLevel", "info")
	viper.SetDefault("logsDir", "./wsilogs")

	viper.SetDefault("tileServer.baseUrl", "http://localhost:8000")
	viper.SetDefault("tileServer.timeout", "30s")
	viper.SetDefault("tileServer.tileFormat", "jpg")

	viper.SetDefault("viewer.width", 800)
	viper.SetDefault("viewer.height", 600)
	viper.SetDefault("viewer.minZoomLog2", -4)
	viper.SetDefault("viewer.maxZoomLog2", 8)
	viper.SetDefault("viewer.defaultZoom", 0.5)
	viper.SetDefault("viewer.zoomPerScroll", 1.2)

	viper.SetDefault("panels.width", 400)
	viper.SetDefault("panels.height", 260)

	viper.SetDefault("annotations.type", "json")
	viper.SetDefault("annotations.markersPath", "")
	viper.SetDefault("annotations.tumorAreasPath", "")
	viper.SetDefault("annotations.sqlite.path", "./annotations.db")
	viper.SetDefault("annotations.postgres.host", "localhost")
	viper.SetDefault("annotations.postgres.port", "5432")
	viper.SetDefault("annotations.postgres.username", "postgres")
	viper.SetDefault("annotations.postgres.password", "postgres")
	viper.SetDefault("annotations.postgres.database", "wsiview")

	viper.SetDefault("stream.enabled", false)
	viper.SetDefault("stream.url", "")
	viper.SetDefault("stream.secret", "")

	viper.SetDefault("otel.enabled", false)
	viper.SetDefault("otel.serviceName", "wsiview")
	viper.SetDefault("otel.batchTimeout", "5s")
	viper.SetDefault("otel.endpoint", "")
	viper.SetDefault("otel.insecure", true)

	viper.SetEnvPrefix(EnvPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()
	if err := viper.BindEnv("tileServer.baseUrl", EnvPrefix+"_TILESERVER_BASEURL", "TILE_SERVER_URL"); err != nil {
		return fmt.Errorf("error binding env: %w", err)
	}

	viper.SetConfigName(ConfigFileName)
	viper.AddConfigPath(configDir)
	viper.SetConfigType("json")

	err := viper.ReadInConfig()
	if err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil
		}
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

// GetTileServerConfig returns the tile server client configuration.
func GetTileServerConfig() TileServerConfig {
	return TileServerConfig{
		BaseURL:    viper.GetString("tileServer.baseUrl"),
		Timeout:    viper.GetDuration("tileServer.timeout"),
		TileFormat: viper.GetString("tileServer.tileFormat"),
	}
}

// GetViewerConfig returns the viewer configuration.
func GetViewerConfig() ViewerConfig {
	return ViewerConfig{
		Width:         viper.GetFloat64("viewer.width"),
		Height:        viper.GetFloat64("viewer.height"),
		MinZoomLog2:   viper.GetFloat64("viewer.minZoomLog2"),
		MaxZoomLog2:   viper.GetFloat64("viewer.maxZoomLog2"),
		DefaultZoom:   viper.GetFloat64("viewer.defaultZoom"),
		ZoomPerScroll: viper.GetFloat64("viewer.zoomPerScroll"),
		PanelWidth:    viper.GetFloat64("panels.width"),
		PanelHeight:   viper.GetFloat64("panels.height"),
	}
}

// GetAnnotationConfig returns the annotation source configuration.
func GetAnnotationConfig() AnnotationConfig {
	return AnnotationConfig{
		Type:           viper.GetString("annotations.type"),
		MarkersPath:    viper.GetString("annotations.markersPath"),
		TumorAreasPath: viper.GetString("annotations.tumorAreasPath"),
		SQLite: SQLiteConfig{
			Path: viper.GetString("annotations.sqlite.path"),
		},
		Postgres: PostgresConfig{
			Host:     viper.GetString("annotations.postgres.host"),
			Port:     viper.GetString("annotations.postgres.port"),
			Username: viper.GetString("annotations.postgres.username"),
			Password: viper.GetString("annotations.postgres.password"),
			Database: viper.GetString("annotations.postgres.database"),
		},
	}
}

// GetStreamConfig returns the streaming configuration.
func GetStreamConfig() StreamConfig {
	return StreamConfig{
		Enabled: viper.GetBool("stream.enabled"),
		URL:     viper.GetString("stream.url"),
		Secret:  viper.GetString("stream.secret"),
	}
}

// GetOTelConfig returns the OpenTelemetry configuration.
func GetOTelConfig() OTelConfig {
	return OTelConfig{
		Enabled:      viper.GetBool("otel.enabled"),
		ServiceName:  viper.GetString("otel.serviceName"),
		BatchTimeout: viper.GetDuration("otel.batchTimeout"),
		Endpoint:     viper.GetString("otel.endpoint"),
		Insecure:     viper.GetBool("otel.insecure"),
	}
}
