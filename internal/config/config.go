// Package config loads application configuration and wires the global logger.
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
	Linkage LinkageConfig `yaml:"linkage" mapstructure:"linkage"`
	Input   InputConfig   `yaml:"input" mapstructure:"input"`
	Geocode GeocodeConfig `yaml:"geocode" mapstructure:"geocode"`
	Log     LogConfig     `yaml:"log" mapstructure:"log"`
}

// LinkageConfig holds the clustering thresholds and score weights.
type LinkageConfig struct {
	DistanceThresholdMiles        float64 `yaml:"distance_threshold_miles" mapstructure:"distance_threshold_miles"`
	SimilarityAcceptanceThreshold float64 `yaml:"similarity_acceptance_threshold" mapstructure:"similarity_acceptance_threshold"`
	LowSimilarityReportThreshold  float64 `yaml:"low_similarity_report_threshold" mapstructure:"low_similarity_report_threshold"`
	NameWeight                    float64 `yaml:"name_weight" mapstructure:"name_weight"`
	AddressWeight                 float64 `yaml:"address_weight" mapstructure:"address_weight"`
}

// InputConfig names the interpreted input columns.
type InputConfig struct {
	NameColumn    string `yaml:"name_column" mapstructure:"name_column"`
	AddressColumn string `yaml:"address_column" mapstructure:"address_column"`
}

// GeocodeConfig configures the geocoding provider cascade.
type GeocodeConfig struct {
	Providers        []string `yaml:"providers" mapstructure:"providers"`
	Concurrency      int      `yaml:"concurrency" mapstructure:"concurrency"`
	RateLimitRPS     float64  `yaml:"rate_limit_rps" mapstructure:"rate_limit_rps"`
	TimeoutSecs      int      `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	MaxRetries       int      `yaml:"max_retries" mapstructure:"max_retries"`
	CacheEnabled     bool     `yaml:"cache_enabled" mapstructure:"cache_enabled"`
	CachePath        string   `yaml:"cache_path" mapstructure:"cache_path"`
	UserAgent        string   `yaml:"user_agent" mapstructure:"user_agent"`
	NominatimBaseURL string   `yaml:"nominatim_base_url" mapstructure:"nominatim_base_url"`
	ArcGISBaseURL    string   `yaml:"arcgis_base_url" mapstructure:"arcgis_base_url"`
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
	v.SetEnvPrefix("LINKAGE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("linkage.distance_threshold_miles", 50.0)
	v.SetDefault("linkage.similarity_acceptance_threshold", 80.0)
	v.SetDefault("linkage.low_similarity_report_threshold", 68.0)
	v.SetDefault("linkage.name_weight", 1.4)
	v.SetDefault("linkage.address_weight", 1.0)
	v.SetDefault("input.name_column", "Company Name")
	v.SetDefault("input.address_column", "first3_addresses")
	v.SetDefault("geocode.providers", []string{"nominatim", "arcgis"})
	v.SetDefault("geocode.concurrency", 8)
	v.SetDefault("geocode.rate_limit_rps", 1.0)
	v.SetDefault("geocode.timeout_secs", 10)
	v.SetDefault("geocode.max_retries", 3)
	v.SetDefault("geocode.cache_enabled", true)
	v.SetDefault("geocode.cache_path", "geocode_cache.db")
	v.SetDefault("geocode.user_agent", "linkage-cli (blake@sellsadvisors.com)")
	v.SetDefault("geocode.nominatim_base_url", "https://nominatim.openstreetmap.org")
	v.SetDefault("geocode.arcgis_base_url", "https://geocode.arcgis.com")
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

// Validate rejects configurations that would misbehave mid-run.
// Called once at startup; the core never re-checks.
func (c *Config) Validate() error {
	if c.Linkage.DistanceThresholdMiles < 0 {
		return eris.Errorf("config: distance_threshold_miles must be >= 0, got %v", c.Linkage.DistanceThresholdMiles)
	}
	if c.Linkage.SimilarityAcceptanceThreshold < 0 || c.Linkage.SimilarityAcceptanceThreshold > 100 {
		return eris.Errorf("config: similarity_acceptance_threshold must be in [0,100], got %v", c.Linkage.SimilarityAcceptanceThreshold)
	}
	if c.Linkage.LowSimilarityReportThreshold < 0 || c.Linkage.LowSimilarityReportThreshold > 100 {
		return eris.Errorf("config: low_similarity_report_threshold must be in [0,100], got %v", c.Linkage.LowSimilarityReportThreshold)
	}
	if c.Linkage.NameWeight < 0 || c.Linkage.AddressWeight < 0 {
		return eris.New("config: score weights must be >= 0")
	}
	if c.Linkage.NameWeight+c.Linkage.AddressWeight == 0 {
		return eris.New("config: name_weight and address_weight cannot both be 0")
	}
	if c.Input.NameColumn == "" || c.Input.AddressColumn == "" {
		return eris.New("config: input name_column and address_column are required")
	}
	if c.Geocode.Concurrency < 1 {
		return eris.Errorf("config: geocode concurrency must be >= 1, got %d", c.Geocode.Concurrency)
	}
	if c.Geocode.RateLimitRPS <= 0 {
		return eris.Errorf("config: geocode rate_limit_rps must be > 0, got %v", c.Geocode.RateLimitRPS)
	}
	if c.Geocode.MaxRetries < 0 {
		return eris.Errorf("config: geocode max_retries must be >= 0, got %d", c.Geocode.MaxRetries)
	}
	for _, p := range c.Geocode.Providers {
		if p != "nominatim" && p != "arcgis" {
			return eris.Errorf("config: unknown geocode provider %q", p)
		}
	}
	return nil
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
