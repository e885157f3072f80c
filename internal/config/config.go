// Package config loads application configuration from config.yaml with
// CATCHMENT_* environment overrides, and initializes the global logger.
package config

import (
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	ORS      ORSConfig      `yaml:"ors" mapstructure:"ors"`
	Raster   RasterConfig   `yaml:"raster" mapstructure:"raster"`
	Analysis AnalysisConfig `yaml:"analysis" mapstructure:"analysis"`
	Files    FilesConfig    `yaml:"files" mapstructure:"files"`
	Map      MapConfig      `yaml:"map" mapstructure:"map"`
	Store    StoreConfig    `yaml:"store" mapstructure:"store"`
	Server   ServerConfig   `yaml:"server" mapstructure:"server"`
	Log      LogConfig      `yaml:"log" mapstructure:"log"`
}

// ORSConfig configures the OpenRouteService routing backend.
type ORSConfig struct {
	BaseURL        string  `yaml:"base_url" mapstructure:"base_url"`
	APIKey         string  `yaml:"api_key" mapstructure:"api_key"`
	Profile        string  `yaml:"profile" mapstructure:"profile"`
	TimeoutSecs    int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	RetryAttempts  int     `yaml:"retry_attempts" mapstructure:"retry_attempts"`
	RetryDelayMs   int     `yaml:"retry_delay_ms" mapstructure:"retry_delay_ms"`
	RateLimitRPS   float64 `yaml:"rate_limit_rps" mapstructure:"rate_limit_rps"`
	BreakerTrips   int     `yaml:"breaker_trips" mapstructure:"breaker_trips"`
	BreakerResetS  int     `yaml:"breaker_reset_secs" mapstructure:"breaker_reset_secs"`
}

// RasterConfig configures the population raster aggregation backend.
type RasterConfig struct {
	BaseURL       string `yaml:"base_url" mapstructure:"base_url"`
	APIKey        string `yaml:"api_key" mapstructure:"api_key"`
	Dataset       string `yaml:"dataset" mapstructure:"dataset"`
	Band          string `yaml:"band" mapstructure:"band"`
	ReferenceYear int    `yaml:"reference_year" mapstructure:"reference_year"`
	ScaleMeters   int    `yaml:"scale_meters" mapstructure:"scale_meters"`
	MaxPixels     int64  `yaml:"max_pixels" mapstructure:"max_pixels"`
	TimeoutSecs   int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// AnalysisConfig configures the batch analysis.
type AnalysisConfig struct {
	RangeSeconds   []int    `yaml:"range_seconds" mapstructure:"range_seconds"`
	TargetLevels   []string `yaml:"target_levels" mapstructure:"target_levels"`
	SleepBetweenMs int      `yaml:"sleep_between_ms" mapstructure:"sleep_between_ms"`

	// Swap heuristic bounds: coordinates with lat > SwapMaxLat or
	// lon < SwapMinLon are treated as transposed. Regional, not universal;
	// the defaults match a deployment whose latitude band is roughly [-5, 6]
	// and longitude band [34, 42].
	SwapEnabled bool    `yaml:"swap_enabled" mapstructure:"swap_enabled"`
	SwapMaxLat  float64 `yaml:"swap_max_lat" mapstructure:"swap_max_lat"`
	SwapMinLon  float64 `yaml:"swap_min_lon" mapstructure:"swap_min_lon"`
}

// FilesConfig configures input and output paths.
type FilesConfig struct {
	Input         string `yaml:"input" mapstructure:"input"`
	OutputCSV     string `yaml:"output_csv" mapstructure:"output_csv"`
	OutputGeoJSON string `yaml:"output_geojson" mapstructure:"output_geojson"`
	OutputMap     string `yaml:"output_map" mapstructure:"output_map"`
}

// MapConfig configures the rendered Leaflet map.
type MapConfig struct {
	CenterLat float64           `yaml:"center_lat" mapstructure:"center_lat"`
	CenterLon float64           `yaml:"center_lon" mapstructure:"center_lon"`
	ZoomStart int               `yaml:"zoom_start" mapstructure:"zoom_start"`
	Opacity   float64           `yaml:"opacity" mapstructure:"opacity"`
	Colors    map[string]string `yaml:"colors" mapstructure:"colors"` // keyed by minutes
}

// ColorFor returns the overlay color for a threshold in minutes, falling back
// to the last configured color for unknown thresholds.
func (m MapConfig) ColorFor(minutes int) string {
	if c, ok := m.Colors[strconv.Itoa(minutes)]; ok {
		return c
	}
	return "#3388ff"
}

// StoreConfig configures the local SQLite store.
type StoreConfig struct {
	Path          string `yaml:"path" mapstructure:"path"`
	CacheTTLHours int    `yaml:"cache_ttl_hours" mapstructure:"cache_ttl_hours"`
}

// ServerConfig configures the artifact server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	v.SetEnvPrefix("CATCHMENT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("ors.base_url", "http://localhost:8080/ors")
	v.SetDefault("ors.api_key", "")
	v.SetDefault("ors.profile", "driving-car")
	v.SetDefault("ors.timeout_secs", 30)
	v.SetDefault("ors.retry_attempts", 3)
	v.SetDefault("ors.retry_delay_ms", 1000)
	v.SetDefault("ors.rate_limit_rps", 2.0)
	v.SetDefault("ors.breaker_trips", 5)
	v.SetDefault("ors.breaker_reset_secs", 60)

	v.SetDefault("raster.base_url", "https://earthengine.googleapis.com")
	v.SetDefault("raster.dataset", "WorldPop/GP/100m/pop")
	v.SetDefault("raster.band", "population")
	v.SetDefault("raster.reference_year", 2020)
	v.SetDefault("raster.scale_meters", 100)
	v.SetDefault("raster.max_pixels", int64(1_000_000_000))
	v.SetDefault("raster.timeout_secs", 60)

	v.SetDefault("analysis.range_seconds", []int{900, 1800, 2700})
	v.SetDefault("analysis.target_levels", []string{"4", "5", "6"})
	v.SetDefault("analysis.sleep_between_ms", 500)
	v.SetDefault("analysis.swap_enabled", true)
	v.SetDefault("analysis.swap_max_lat", 10.0)
	v.SetDefault("analysis.swap_min_lon", -5.0)

	v.SetDefault("files.input", "facilities.xlsx")
	v.SetDefault("files.output_csv", "population_analysis_results.csv")
	v.SetDefault("files.output_geojson", "isochrones.geojson")
	v.SetDefault("files.output_map", "isochrone_map.html")

	v.SetDefault("map.center_lat", 0.0236)
	v.SetDefault("map.center_lon", 37.9062)
	v.SetDefault("map.zoom_start", 6)
	v.SetDefault("map.opacity", 0.3)
	v.SetDefault("map.colors", map[string]string{
		"15": "#ff0000",
		"30": "#ff8800",
		"45": "#ffaa00",
	})

	v.SetDefault("store.path", "catchment.db")
	v.SetDefault("store.cache_ttl_hours", 24*7)

	v.SetDefault("server.port", 8080)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
