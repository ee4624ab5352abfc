// Package config loads application configuration from file and environment.
package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	CMS       CMSConfig       `yaml:"cms" mapstructure:"cms"`
	Nominatim NominatimConfig `yaml:"nominatim" mapstructure:"nominatim"`
	Census    CensusConfig    `yaml:"census" mapstructure:"census"`
	Geocode   GeocodeConfig   `yaml:"geocode" mapstructure:"geocode"`
	Cache     CacheConfig     `yaml:"cache" mapstructure:"cache"`
	Seeds     SeedsConfig     `yaml:"seeds" mapstructure:"seeds"`
	Join      JoinConfig      `yaml:"join" mapstructure:"join"`
	Output    OutputConfig    `yaml:"output" mapstructure:"output"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// CMSConfig locates the dialysis facility catalog.
type CMSConfig struct {
	MetadataURL    string `yaml:"metadata_url" mapstructure:"metadata_url"`
	FallbackCSVURL string `yaml:"fallback_csv_url" mapstructure:"fallback_csv_url"`
	TimeoutSecs    int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// NominatimConfig configures the interactive geocoding provider.
type NominatimConfig struct {
	BaseURL         string  `yaml:"base_url" mapstructure:"base_url"`
	UserAgent       string  `yaml:"user_agent" mapstructure:"user_agent"`
	MinIntervalSecs float64 `yaml:"min_interval_secs" mapstructure:"min_interval_secs"`
	TimeoutSecs     int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// CensusConfig configures the batch geocoding provider.
type CensusConfig struct {
	BatchURL    string `yaml:"batch_url" mapstructure:"batch_url"`
	Benchmark   string `yaml:"benchmark" mapstructure:"benchmark"`
	Vintage     string `yaml:"vintage" mapstructure:"vintage"`
	ChunkSize   int    `yaml:"chunk_size" mapstructure:"chunk_size"`
	TimeoutSecs int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	RateLimit   int    `yaml:"rate_limit" mapstructure:"rate_limit"`
}

// GeocodeConfig selects the resolution strategy and cache behavior.
type GeocodeConfig struct {
	Strategy             string `yaml:"strategy" mapstructure:"strategy"` // "batch" or "interactive"
	CheckpointEvery      int    `yaml:"checkpoint_every" mapstructure:"checkpoint_every"`
	RetryFailedAfterDays int    `yaml:"retry_failed_after_days" mapstructure:"retry_failed_after_days"`
}

// CacheConfig configures the durable geocode cache.
type CacheConfig struct {
	Backend      string `yaml:"backend" mapstructure:"backend"` // "file", "sqlite", "postgres"
	FacilityPath string `yaml:"facility_path" mapstructure:"facility_path"`
	ResortPath   string `yaml:"resort_path" mapstructure:"resort_path"`
	DatabaseURL  string `yaml:"database_url" mapstructure:"database_url"`
}

// SeedsConfig locates the pre-seeded resort list.
type SeedsConfig struct {
	Path      string `yaml:"path" mapstructure:"path"`           // empty = embedded seed list
	Shapefile string `yaml:"shapefile" mapstructure:"shapefile"` // optional point shapefile of resorts
}

// JoinConfig configures the proximity join.
type JoinConfig struct {
	ThresholdMiles float64 `yaml:"threshold_miles" mapstructure:"threshold_miles"`
}

// OutputConfig configures result serialization.
type OutputConfig struct {
	Dir         string `yaml:"dir" mapstructure:"dir"`
	ClinicsFile string `yaml:"clinics_file" mapstructure:"clinics_file"`
	ResortsFile string `yaml:"resorts_file" mapstructure:"resorts_file"`
	GeoJSON     bool   `yaml:"geojson" mapstructure:"geojson"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("SKIWITHCARE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("cms.metadata_url", "https://data.cms.gov/provider-data/api/1/metastore/schemas/dataset/items/23ew-n7w9")
	v.SetDefault("cms.fallback_csv_url", "https://data.cms.gov/provider-data/sites/default/files/resources/c04d84bc5c641284494bee4f20f17f9c_1759341903/DFC_FACILITY.csv")
	v.SetDefault("cms.timeout_secs", 120)
	v.SetDefault("nominatim.base_url", "https://nominatim.openstreetmap.org")
	v.SetDefault("nominatim.user_agent", "skiwithcare-datagen/1.0")
	v.SetDefault("nominatim.min_interval_secs", 1.1)
	v.SetDefault("nominatim.timeout_secs", 60)
	v.SetDefault("census.batch_url", "https://geocoding.geo.census.gov/geocoder/locations/addressbatch")
	v.SetDefault("census.benchmark", "Public_AR_Current")
	v.SetDefault("census.vintage", "Current_Current")
	v.SetDefault("census.chunk_size", 5000)
	v.SetDefault("census.timeout_secs", 300)
	v.SetDefault("census.rate_limit", 3)
	v.SetDefault("geocode.strategy", "batch")
	v.SetDefault("geocode.checkpoint_every", 100)
	v.SetDefault("geocode.retry_failed_after_days", 0)
	v.SetDefault("cache.backend", "file")
	v.SetDefault("cache.facility_path", "facility_geocoded_cache.json")
	v.SetDefault("cache.resort_path", "resort_geocoded_cache.json")
	v.SetDefault("join.threshold_miles", 200)
	v.SetDefault("output.dir", "public")
	v.SetDefault("output.clinics_file", "clinics.json")
	v.SetDefault("output.resorts_file", "resorts.json")
	v.SetDefault("output.geojson", false)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
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
