package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Source modes
const (
	ModeLive = "live"
	ModeMock = "mock"
)

// Store formats
const (
	FormatCSV      = "csv"
	FormatJSON     = "json"
	FormatSQLite   = "sqlite"
	FormatPostgres = "postgres"
)

// Config defines the application configuration structure
type Config struct {
	Source   SourceConfig   `mapstructure:"source"`
	Download DownloadConfig `mapstructure:"download"`
	Store    StoreConfig    `mapstructure:"store"`
	Parquet  ParquetConfig  `mapstructure:"parquet"`
	Cache    CacheConfig    `mapstructure:"cache"`
	LogLevel string         `mapstructure:"log_level"`
}

// SourceConfig defines where bars are fetched from
type SourceConfig struct {
	Mode           string `mapstructure:"mode"`
	ApiKey         string `mapstructure:"api_key"`
	BaseURL        string `mapstructure:"base_url"`
	Function       string `mapstructure:"function"`
	OutputSize     string `mapstructure:"output_size"`
	Adjusted       string `mapstructure:"adjusted"`
	ExtendedHours  string `mapstructure:"extended_hours"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
	MockFile       string `mapstructure:"mock_file"`
}

// DownloadConfig defines which series is downloaded
type DownloadConfig struct {
	Symbol   string `mapstructure:"symbol"`
	Interval string `mapstructure:"interval"`
	Year     int    `mapstructure:"year"`
}

// StoreConfig defines where the merged table is persisted
type StoreConfig struct {
	Format     string `mapstructure:"format"`
	OutputPath string `mapstructure:"output_path"`
	DSN        string `mapstructure:"dsn"`
}

// ParquetConfig defines the optional month-partitioned parquet export
type ParquetConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Dir     string `mapstructure:"dir"`
}

// CacheConfig defines the optional redis payload cache
type CacheConfig struct {
	RedisAddr     string `mapstructure:"redis_addr"`
	RedisPassword string `mapstructure:"redis_password"`
	RedisDB       int    `mapstructure:"redis_db"`
	TTLMinutes    int    `mapstructure:"ttl_minutes"`
	Namespace     string `mapstructure:"namespace"`
}

// envBindings maps nested config keys to environment variables
var envBindings = map[string]string{
	"source.mode":            "INTRADAY_SOURCE_MODE",
	"source.api_key":         "INTRADAY_API_KEY",
	"source.base_url":        "INTRADAY_BASE_URL",
	"source.function":        "INTRADAY_FUNCTION",
	"source.output_size":     "INTRADAY_OUTPUT_SIZE",
	"source.adjusted":        "INTRADAY_ADJUSTED",
	"source.extended_hours":  "INTRADAY_EXTENDED_HOURS",
	"source.timeout_seconds": "INTRADAY_TIMEOUT_SECONDS",
	"source.mock_file":       "INTRADAY_MOCK_FILE",
	"download.symbol":        "INTRADAY_SYMBOL",
	"download.interval":      "INTRADAY_INTERVAL",
	"download.year":          "INTRADAY_YEAR",
	"store.format":           "INTRADAY_STORE_FORMAT",
	"store.output_path":      "INTRADAY_OUTPUT_PATH",
	"store.dsn":              "INTRADAY_STORE_DSN",
	"parquet.enabled":        "INTRADAY_PARQUET_ENABLED",
	"parquet.dir":            "INTRADAY_PARQUET_DIR",
	"cache.redis_addr":       "INTRADAY_REDIS_ADDR",
	"cache.redis_password":   "INTRADAY_REDIS_PASSWORD",
	"cache.redis_db":         "INTRADAY_REDIS_DB",
	"cache.ttl_minutes":      "INTRADAY_CACHE_TTL_MINUTES",
	"cache.namespace":        "INTRADAY_CACHE_NAMESPACE",
	"log_level":              "INTRADAY_LOG_LEVEL",
}

// LoadConfig loads configuration from a .env file, the YAML file at path and
// the environment. Environment variables take precedence over the file.
// A missing file is not an error. The output path is left as configured;
// call Resolve once all overrides are applied.
func LoadConfig(path string) (Config, error) {
	// .env is optional
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix("INTRADAY")
	for key, env := range envBindings {
		if err := v.BindEnv(key, env); err != nil {
			return Config{}, fmt.Errorf("bind env %s: %w", env, err)
		}
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
				return Config{}, fmt.Errorf("error reading config file %s: %w", path, err)
			}
			slog.Info("config file not found, using environment and defaults", "path", path)
		} else {
			slog.Info("loaded config file", "path", v.ConfigFileUsed())
		}
	}

	v.AutomaticEnv()

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return Config{}, fmt.Errorf("error unmarshaling config: %w", err)
	}

	applyDefaults(&config)
	return config, nil
}

// applyDefaults sets default values for any config values not set from file or environment
func applyDefaults(config *Config) {
	if config.Source.Mode == "" {
		config.Source.Mode = ModeLive
	}
	if config.Source.BaseURL == "" {
		config.Source.BaseURL = "https://www.alphavantage.co/query"
	}
	if config.Source.Function == "" {
		config.Source.Function = "TIME_SERIES_INTRADAY"
	}
	if config.Source.OutputSize == "" {
		config.Source.OutputSize = "full"
	}
	if config.Source.TimeoutSeconds == 0 {
		config.Source.TimeoutSeconds = 30
	}

	if config.Download.Symbol == "" {
		config.Download.Symbol = "SPY"
	}
	if config.Download.Interval == "" {
		config.Download.Interval = "1min"
	}
	if config.Download.Year == 0 {
		config.Download.Year = 2010
	}

	if config.Store.Format == "" {
		config.Store.Format = FormatCSV
	}

	if config.Parquet.Dir == "" {
		config.Parquet.Dir = "./parquet_data"
	}

	if config.Cache.TTLMinutes == 0 {
		config.Cache.TTLMinutes = 24 * 60
	}
	if config.Cache.Namespace == "" {
		config.Cache.Namespace = "intraday"
	}

	if config.LogLevel == "" {
		config.LogLevel = "info"
	}
}

// Resolve normalizes mode and format and derives the default output path
// from the final format and symbol when none was given.
func (c *Config) Resolve() {
	c.Source.Mode = normalize(c.Source.Mode)
	c.Store.Format = normalize(c.Store.Format)
	if c.Store.OutputPath == "" {
		c.Store.OutputPath = defaultOutputPath(c.Store.Format, c.Download.Symbol)
	}
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func defaultOutputPath(format, symbol string) string {
	name := strings.ToLower(symbol)
	switch format {
	case FormatJSON:
		return "./data/" + name + ".json"
	case FormatSQLite:
		return "./data/" + name + ".db"
	default:
		return "./data/" + name + ".csv"
	}
}

// Validate checks that the configuration can drive a run
func (c Config) Validate() error {
	switch normalize(c.Source.Mode) {
	case ModeLive:
		if c.Source.ApiKey == "" {
			return fmt.Errorf("source.api_key is required in %s mode", ModeLive)
		}
	case ModeMock:
	default:
		return fmt.Errorf("invalid source mode: %q (use %s or %s)", c.Source.Mode, ModeLive, ModeMock)
	}

	switch normalize(c.Store.Format) {
	case FormatCSV, FormatJSON, FormatSQLite:
		if c.Store.OutputPath == "" {
			return fmt.Errorf("store.output_path is required for format %s", c.Store.Format)
		}
	case FormatPostgres:
		if c.Store.DSN == "" {
			return fmt.Errorf("store.dsn is required for format %s", FormatPostgres)
		}
	default:
		return fmt.Errorf("invalid store format: %q", c.Store.Format)
	}

	if strings.TrimSpace(c.Download.Symbol) == "" {
		return fmt.Errorf("download.symbol is required")
	}
	if strings.TrimSpace(c.Download.Interval) == "" {
		return fmt.Errorf("download.interval is required")
	}
	if c.Download.Year <= 0 {
		return fmt.Errorf("invalid download.year: %d", c.Download.Year)
	}
	if c.Source.TimeoutSeconds < 0 {
		return fmt.Errorf("invalid source.timeout_seconds: %d", c.Source.TimeoutSeconds)
	}
	return nil
}

// Timeout returns the HTTP timeout for live requests
func (c SourceConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// CacheTTL returns how long fetched payloads stay in the cache
func (c CacheConfig) CacheTTL() time.Duration {
	return time.Duration(c.TTLMinutes) * time.Minute
}

// CacheEnabled reports whether a redis address is configured
func (c CacheConfig) CacheEnabled() bool {
	return c.RedisAddr != ""
}
