package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"
)

const (
	// EnvPrefix namespaces every environment variable read by Load.
	EnvPrefix = "QUOTEPULSE"

	// ConfigFileEnv names the variable holding an explicit YAML config path.
	ConfigFileEnv = "QUOTEPULSE_CONFIG"

	// legacyTwelveKeyEnv is honoured when QUOTEPULSE_TWELVEDATA_API_KEY is unset.
	legacyTwelveKeyEnv = "TWELVE_API_KEY"
)

// Config represents the complete application configuration
type Config struct {
	Server     ServerConfig     `yaml:"server" envconfig:"SERVER"`
	Security   SecurityConfig   `yaml:"security" envconfig:"SECURITY"`
	Logging    LoggingConfig    `yaml:"logging" envconfig:"LOGGING"`
	Telemetry  TelemetryConfig  `yaml:"telemetry" envconfig:"TELEMETRY"`
	GDELT      GDELTConfig      `yaml:"gdelt" envconfig:"GDELT"`
	Stooq      StooqConfig      `yaml:"stooq" envconfig:"STOOQ"`
	TwelveData TwelveDataConfig `yaml:"twelvedata" envconfig:"TWELVEDATA"`
	Analysis   AnalysisConfig   `yaml:"analysis" envconfig:"ANALYSIS"`
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Port            int           `yaml:"port" envconfig:"PORT"`
	ReadTimeout     time.Duration `yaml:"read_timeout" envconfig:"READ_TIMEOUT"`
	WriteTimeout    time.Duration `yaml:"write_timeout" envconfig:"WRITE_TIMEOUT"`
	IdleTimeout     time.Duration `yaml:"idle_timeout" envconfig:"IDLE_TIMEOUT"`
	MaxHeaderBytes  int           `yaml:"max_header_bytes" envconfig:"MAX_HEADER_BYTES"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" envconfig:"SHUTDOWN_TIMEOUT"`
	RequestTimeout  time.Duration `yaml:"request_timeout" envconfig:"REQUEST_TIMEOUT"`
}

// SecurityConfig contains security-related configuration
type SecurityConfig struct {
	AllowedOrigins []string        `yaml:"allowed_origins" envconfig:"ALLOWED_ORIGINS"`
	EnableCORS     bool            `yaml:"enable_cors" envconfig:"ENABLE_CORS"`
	RateLimit      RateLimitConfig `yaml:"rate_limit" envconfig:"RATE_LIMIT"`
}

// RateLimitConfig contains inbound rate limiting configuration
type RateLimitConfig struct {
	Enabled bool    `yaml:"enabled" envconfig:"ENABLED"`
	RPS     float64 `yaml:"rps" envconfig:"RPS"`
	Burst   int     `yaml:"burst" envconfig:"BURST"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level    string `yaml:"level" envconfig:"LEVEL"`
	Format   string `yaml:"format" envconfig:"FORMAT"`
	Output   string `yaml:"output" envconfig:"OUTPUT"`
	FilePath string `yaml:"file_path" envconfig:"FILE_PATH"`
}

// TelemetryConfig selects the OpenTelemetry exporters
type TelemetryConfig struct {
	ServiceName    string  `yaml:"service_name" envconfig:"SERVICE_NAME"`
	Environment    string  `yaml:"environment" envconfig:"ENVIRONMENT"`
	TraceExporter  string  `yaml:"trace_exporter" envconfig:"TRACE_EXPORTER"`
	MetricExporter string  `yaml:"metric_exporter" envconfig:"METRIC_EXPORTER"`
	SampleRatio    float64 `yaml:"sample_ratio" envconfig:"SAMPLE_RATIO"`
}

// GDELTConfig configures the news search upstream
type GDELTConfig struct {
	BaseURL     string        `yaml:"base_url" envconfig:"BASE_URL"`
	ProxyURL    string        `yaml:"proxy_url" envconfig:"PROXY_URL"`
	ProxyCache  bool          `yaml:"proxy_cache" envconfig:"PROXY_CACHE"`
	Timeout     time.Duration `yaml:"timeout" envconfig:"TIMEOUT"`
	MinInterval time.Duration `yaml:"min_interval" envconfig:"MIN_INTERVAL"`
	MaxRecords  int           `yaml:"max_records" envconfig:"MAX_RECORDS"`
	QuerySuffix string        `yaml:"query_suffix" envconfig:"QUERY_SUFFIX"`
}

// StooqConfig configures the daily price upstream
type StooqConfig struct {
	BaseURL string        `yaml:"base_url" envconfig:"BASE_URL"`
	Symbol  string        `yaml:"symbol" envconfig:"SYMBOL"`
	Timeout time.Duration `yaml:"timeout" envconfig:"TIMEOUT"`
}

// TwelveDataConfig configures the intraday snapshot
type TwelveDataConfig struct {
	BaseURL         string        `yaml:"base_url" envconfig:"BASE_URL"`
	APIKey          string        `yaml:"api_key" envconfig:"API_KEY"`
	Timeout         time.Duration `yaml:"timeout" envconfig:"TIMEOUT"`
	Symbol          string        `yaml:"symbol" envconfig:"SYMBOL"`
	Interval        string        `yaml:"interval" envconfig:"INTERVAL"`
	OutputSize      int           `yaml:"output_size" envconfig:"OUTPUT_SIZE"`
	Timezone        string        `yaml:"timezone" envconfig:"TIMEZONE"`
	CacheTTL        time.Duration `yaml:"cache_ttl" envconfig:"CACHE_TTL"`
	HeadlineQuery   string        `yaml:"headline_query" envconfig:"HEADLINE_QUERY"`
	HeadlineRecords int           `yaml:"headline_records" envconfig:"HEADLINE_RECORDS"`
}

// AnalysisConfig tunes the quote analysis
type AnalysisConfig struct {
	CacheTTL        time.Duration `yaml:"cache_ttl" envconfig:"CACHE_TTL"`
	CacheMaxEntries int64         `yaml:"cache_max_entries" envconfig:"CACHE_MAX_ENTRIES"`
	MinSeriesPoints int           `yaml:"min_series_points" envconfig:"MIN_SERIES_POINTS"`
	WindowRadius    int           `yaml:"window_radius" envconfig:"WINDOW_RADIUS"`
	DateResolver    string        `yaml:"date_resolver" envconfig:"DATE_RESOLVER"`
	DefaultQuote    string        `yaml:"default_quote" envconfig:"DEFAULT_QUOTE"`
	MaxQuoteRunes   int           `yaml:"max_quote_runes" envconfig:"MAX_QUOTE_RUNES"`
}

// Load builds the configuration from defaults, then the optional YAML file,
// then environment variables. Later sources win.
func Load() (*Config, error) {
	cfg := Default()

	if path := getConfigFilePath(); path != "" {
		if err := loadFromFile(path, cfg); err != nil {
			return nil, fmt.Errorf("failed to load config from file %s: %w", path, err)
		}
	}

	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from env: %w", err)
	}

	if cfg.TwelveData.APIKey == "" {
		cfg.TwelveData.APIKey = os.Getenv(legacyTwelveKeyEnv)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// loadFromFile overlays YAML values onto cfg
func loadFromFile(filePath string, cfg *Config) error {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, cfg)
}

// Validate checks ranges and normalizes enumerations
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	if c.Server.ReadTimeout <= 0 {
		return fmt.Errorf("server read timeout must be positive")
	}

	if c.Server.WriteTimeout <= 0 {
		return fmt.Errorf("server write timeout must be positive")
	}

	if c.Security.EnableCORS && len(c.Security.AllowedOrigins) == 0 {
		return fmt.Errorf("at least one allowed origin must be specified")
	}

	if c.Security.RateLimit.Enabled && (c.Security.RateLimit.RPS <= 0 || c.Security.RateLimit.Burst <= 0) {
		return fmt.Errorf("rate limit rps and burst must be positive")
	}

	c.Logging.Format = "json"
	switch strings.ToLower(c.Logging.Output) {
	case "console", "file", "both":
		c.Logging.Output = strings.ToLower(c.Logging.Output)
	default:
		return fmt.Errorf("invalid logging output: %q", c.Logging.Output)
	}
	if c.Logging.Output != "console" && c.Logging.FilePath == "" {
		c.Logging.FilePath = "logs/app.log"
	}

	if c.Telemetry.SampleRatio < 0 || c.Telemetry.SampleRatio > 1 {
		return fmt.Errorf("telemetry sample ratio must be within [0, 1]")
	}

	if c.GDELT.MaxRecords <= 0 || c.GDELT.MaxRecords > 250 {
		return fmt.Errorf("gdelt max records must be within 1..250, got %d", c.GDELT.MaxRecords)
	}

	if c.GDELT.MinInterval < 0 {
		return fmt.Errorf("gdelt min interval cannot be negative")
	}

	if c.Stooq.Symbol == "" {
		return fmt.Errorf("stooq symbol is required")
	}

	if _, err := time.LoadLocation(c.TwelveData.Timezone); err != nil {
		return fmt.Errorf("invalid twelvedata timezone %q: %w", c.TwelveData.Timezone, err)
	}

	if c.Analysis.MinSeriesPoints < 2 {
		return fmt.Errorf("analysis min series points must be at least 2")
	}

	if c.Analysis.WindowRadius < 0 {
		return fmt.Errorf("analysis window radius cannot be negative")
	}

	if c.Analysis.MaxQuoteRunes <= 0 {
		return fmt.Errorf("analysis max quote runes must be positive")
	}

	switch c.Analysis.DateResolver {
	case DateResolverCalendar, DateResolverSession:
	default:
		return fmt.Errorf("invalid analysis date resolver: %q", c.Analysis.DateResolver)
	}

	return nil
}

// Date resolver names accepted by AnalysisConfig.DateResolver
const (
	DateResolverCalendar = "calendar"
	DateResolverSession  = "session"
)

// getConfigFilePath returns the path to the config file
func getConfigFilePath() string {
	if explicit := os.Getenv(ConfigFileEnv); explicit != "" {
		return explicit
	}

	locations := []string{
		"config.yaml",
		"configs/config.yaml",
	}

	for _, location := range locations {
		if _, err := os.Stat(location); err == nil {
			return location
		}
	}

	return "" // No config file found, use env vars only
}

// Default returns default configuration
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    60 * time.Second,
			IdleTimeout:     60 * time.Second,
			MaxHeaderBytes:  1 << 20, // 1MB
			ShutdownTimeout: 30 * time.Second,
			RequestTimeout:  45 * time.Second,
		},
		Security: SecurityConfig{
			AllowedOrigins: []string{"http://localhost:8080"},
			EnableCORS:     true,
			RateLimit: RateLimitConfig{
				Enabled: true,
				RPS:     10,
				Burst:   20,
			},
		},
		Logging: LoggingConfig{
			Level:    "info",
			Format:   "json",
			Output:   "console",
			FilePath: "logs/app.log",
		},
		Telemetry: TelemetryConfig{
			ServiceName:    "quotepulse",
			Environment:    "development",
			TraceExporter:  "none",
			MetricExporter: "prometheus",
			SampleRatio:    1.0,
		},
		GDELT: GDELTConfig{
			BaseURL:     "https://api.gdeltproject.org/api/v2/doc/doc",
			ProxyCache:  true,
			Timeout:     20 * time.Second,
			MinInterval: 6 * time.Second,
			MaxRecords:  20,
			QuerySuffix: "trump",
		},
		Stooq: StooqConfig{
			BaseURL: "https://stooq.com/q/d/l/",
			Symbol:  "spy.us",
			Timeout: 20 * time.Second,
		},
		TwelveData: TwelveDataConfig{
			BaseURL:         "https://api.twelvedata.com",
			Timeout:         20 * time.Second,
			Symbol:          "SPY",
			Interval:        "1h",
			OutputSize:      120,
			Timezone:        "America/New_York",
			CacheTTL:        2 * time.Minute,
			HeadlineQuery:   "trump",
			HeadlineRecords: 50,
		},
		Analysis: AnalysisConfig{
			CacheTTL:        60 * time.Second,
			CacheMaxEntries: 1000,
			MinSeriesPoints: 30,
			WindowRadius:    10,
			DateResolver:    DateResolverCalendar,
			DefaultQuote:    "border wall",
			MaxQuoteRunes:   240,
		},
	}
}
